// Package interactions handles delegator-facing Discord events: vote buttons,
// delegation verification and comments in proposal threads.
package interactions

import (
	"context"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/bot/api"
	"github.com/stake-plus/cardano-gov-sentiment/src/discord"
)

const (
	customVerifyStart = "verify:start"
	customVerifyCheck = "verify:check"
)

// Backend is the part of the backend API these handlers call.
type Backend interface {
	RecordReaction(ctx context.Context, r api.Reaction) (api.Counts, error)
	RecordComment(ctx context.Context, c api.Comment) error
	CheckDelegator(ctx context.Context, discordUserID, drepID string) (bool, error)
	UpdateGuildChannels(ctx context.Context, guildID string, ch api.GuildChannels) (*api.Guild, error)
}

// Settings are the per-deployment values handlers need.
type Settings struct {
	DrepID         string
	VerifiedRoleID string
	VerifyURL      string
}

type Handler struct {
	s       discord.Session
	backend Backend
	cfg     Settings
	log     *zap.Logger

	// threads caches channel id -> proposal id; "" marks a channel that is
	// not a proposal thread.
	threads sync.Map
}

func NewHandler(s discord.Session, backend Backend, cfg Settings, log *zap.Logger) *Handler {
	return &Handler{s: s, backend: backend, cfg: cfg, log: log.Named("interactions")}
}

// Handle dispatches an interaction and reports whether it was recognised.
func (h *Handler) Handle(ctx context.Context, i *discordgo.Interaction) bool {
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		id := i.MessageComponentData().CustomID
		switch {
		case strings.HasPrefix(id, "vote:"):
			h.handleVote(ctx, i, id)
		case id == customVerifyStart:
			h.handleVerifyStart(ctx, i)
		case id == customVerifyCheck:
			h.handleVerifyCheck(ctx, i)
		default:
			return false
		}
		return true
	case discordgo.InteractionApplicationCommand:
		switch i.ApplicationCommandData().Name {
		case discord.CommandVerify:
			h.handleVerifyStart(ctx, i)
		case discord.CommandSetup:
			h.handleSetup(ctx, i)
		default:
			return false
		}
		return true
	}
	return false
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	if i.User != nil {
		return i.User
	}
	return &discordgo.User{}
}

func (h *Handler) respondEphemeral(ctx context.Context, i *discordgo.Interaction, data *discordgo.InteractionResponseData) {
	data.Flags |= discordgo.MessageFlagsEphemeral
	err := h.s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
	if err != nil {
		h.log.Warn("respond to interaction", zap.String("interaction", i.ID), zap.Error(err))
	}
}

// deferEphemeral acknowledges a slash command or button before a slow
// backend call; finish with editReply.
func (h *Handler) deferEphemeral(ctx context.Context, i *discordgo.Interaction) bool {
	err := h.s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
	if err != nil {
		h.log.Warn("defer interaction", zap.String("interaction", i.ID), zap.Error(err))
		return false
	}
	return true
}

func (h *Handler) editReply(ctx context.Context, i *discordgo.Interaction, content string, components []discordgo.MessageComponent) {
	edit := &discordgo.WebhookEdit{Content: &content}
	if components != nil {
		edit.Components = &components
	}
	if _, err := h.s.InteractionResponseEdit(i, edit, discordgo.WithContext(ctx)); err != nil {
		h.log.Warn("edit interaction reply", zap.String("interaction", i.ID), zap.Error(err))
	}
}

func (h *Handler) followupEphemeral(ctx context.Context, i *discordgo.Interaction, content string) {
	_, err := h.s.FollowupMessageCreate(i, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}, discordgo.WithContext(ctx))
	if err != nil {
		h.log.Warn("interaction followup", zap.String("interaction", i.ID), zap.Error(err))
	}
}

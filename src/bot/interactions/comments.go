package interactions

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/bot/api"
	"github.com/stake-plus/cardano-gov-sentiment/src/bot/proposals"
)

// CollectComment forwards a delegator's message in a proposal thread to the
// backend together with a guessed sentiment.
func (h *Handler) CollectComment(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}
	proposalID, ok := h.threadProposal(ctx, m.ChannelID)
	if !ok {
		return
	}

	c := api.Comment{
		ProposalID:      proposalID,
		DrepID:          h.cfg.DrepID,
		GuildID:         m.GuildID,
		ChannelID:       m.ChannelID,
		DiscordUserID:   m.Author.ID,
		DiscordUsername: m.Author.Username,
		Comment:         content,
	}
	if s, ok := GuessSentiment(content); ok {
		c.SuggestedSentiment = s
	}
	if err := h.backend.RecordComment(ctx, c); err != nil {
		h.log.Warn("record comment", zap.String("proposal", proposalID), zap.String("message", m.ID), zap.Error(err))
	}
}

// threadProposal reads the thread's starter message, which shares the
// thread's id, and extracts the proposal id from its embed footer.
func (h *Handler) threadProposal(ctx context.Context, channelID string) (string, bool) {
	if v, ok := h.threads.Load(channelID); ok {
		id := v.(string)
		return id, id != ""
	}
	starter, err := h.s.ChannelMessage(channelID, channelID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			h.threads.Store(channelID, "")
		} else {
			h.log.Debug("load thread starter", zap.String("channel", channelID), zap.Error(err))
		}
		return "", false
	}
	id, ok := proposals.ParseFooter(starter.Embeds)
	if !ok {
		id = ""
	}
	h.threads.Store(channelID, id)
	return id, ok
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode == http.StatusNotFound
	}
	return strings.Contains(err.Error(), "404")
}

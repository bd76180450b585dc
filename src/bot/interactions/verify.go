package interactions

import (
	"context"
	"fmt"
	"net/url"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/bot/api"
	"github.com/stake-plus/cardano-gov-sentiment/src/discord"
)

const (
	verifyIntro = "Connect your wallet on the verification page to confirm you delegate to this DRep. " +
		"When you are done, press **I've Verified**."
	verifyMissing = "I could not find a verified delegation for your account yet. " +
		"Finish the steps on the verification page, then press **I've Verified** again."
	verifyUnavailable = "The verification service is unavailable right now. Please try again later."
	verifyRoleFailed  = "Your delegation is confirmed, but I could not assign the delegator role. Please ask a moderator."
	verifyDone        = "✅ Delegation confirmed. You now have the verified delegator role."
)

// VerifyLink is the personal verification page URL for a Discord user.
func VerifyLink(base, discordUserID, drepID string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("discordUserId", discordUserID)
	q.Set("drepId", drepID)
	u.RawQuery = q.Encode()
	return u.String()
}

func (h *Handler) verifyComponents(userID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Open Verification", Style: discordgo.LinkButton, URL: VerifyLink(h.cfg.VerifyURL, userID, h.cfg.DrepID)},
			discordgo.Button{Label: "I've Verified", Style: discordgo.SuccessButton, CustomID: customVerifyCheck},
		}},
	}
}

// handleVerifyStart answers /verify and the panel button with a personal link.
func (h *Handler) handleVerifyStart(ctx context.Context, i *discordgo.Interaction) {
	user := interactionUser(i)
	h.respondEphemeral(ctx, i, &discordgo.InteractionResponseData{
		Content:    verifyIntro,
		Components: h.verifyComponents(user.ID),
	})
}

func (h *Handler) handleVerifyCheck(ctx context.Context, i *discordgo.Interaction) {
	if !h.deferEphemeral(ctx, i) {
		return
	}
	user := interactionUser(i)
	ok, err := h.backend.CheckDelegator(ctx, user.ID, h.cfg.DrepID)
	if err != nil {
		h.log.Error("check delegator", zap.String("user", user.ID), zap.Error(err))
		h.editReply(ctx, i, verifyUnavailable, nil)
		return
	}
	if !ok {
		h.editReply(ctx, i, verifyMissing, h.verifyComponents(user.ID))
		return
	}
	if i.GuildID == "" {
		h.editReply(ctx, i, "✅ Delegation confirmed.", nil)
		return
	}
	if err := discord.GrantRole(ctx, h.s, i.GuildID, user.ID, h.cfg.VerifiedRoleID); err != nil {
		h.log.Error("grant verified role", zap.String("user", user.ID), zap.Error(err))
		h.editReply(ctx, i, verifyRoleFailed, nil)
		return
	}
	h.log.Info("delegator verified", zap.String("user", user.ID), zap.String("guild", i.GuildID))
	h.editReply(ctx, i, verifyDone, nil)
}

// VerificationPanel is the public message posted by /setup delegate.
func VerificationPanel() *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title: "Delegator verification",
			Description: "Delegate to this DRep and verify your wallet to unlock the delegator role. " +
				"Press the button below to get your personal verification link.",
			Color: 0x0033ad,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Start Verification", Style: discordgo.PrimaryButton, CustomID: customVerifyStart},
			}},
		},
	}
}

func (h *Handler) handleSetup(ctx context.Context, i *discordgo.Interaction) {
	sub, opts := discord.SubcommandOptions(i.ApplicationCommandData())
	if sub != discord.SubcommandDelegate {
		h.respondEphemeral(ctx, i, &discordgo.InteractionResponseData{Content: "Unknown setup option."})
		return
	}
	if !h.deferEphemeral(ctx, i) {
		return
	}
	channelID := i.ChannelID
	if opt, ok := opts[discord.OptionChannel]; ok {
		if id, ok := opt.Value.(string); ok && id != "" {
			channelID = id
		}
	}

	if _, err := h.s.ChannelMessageSendComplex(channelID, VerificationPanel(), discordgo.WithContext(ctx)); err != nil {
		h.log.Error("post verification panel", zap.String("channel", channelID), zap.Error(err))
		h.editReply(ctx, i, "I could not post in that channel. Check my permissions there and try again.", nil)
		return
	}

	reply := fmt.Sprintf("Verification panel posted in <#%s>.", channelID)
	if _, err := h.backend.UpdateGuildChannels(ctx, i.GuildID, api.GuildChannels{DelegateChannelID: &channelID}); err != nil {
		h.log.Warn("save delegate channel", zap.String("guild", i.GuildID), zap.Error(err))
		reply += " The channel could not be saved with the backend; run `/proposal sync` to register this server, then run setup again."
	}
	h.editReply(ctx, i, reply, nil)
}

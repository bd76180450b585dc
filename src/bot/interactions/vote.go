package interactions

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/bot/api"
	"github.com/stake-plus/cardano-gov-sentiment/src/bot/proposals"
)

const voteFailed = "Sorry, your vote could not be recorded right now. Please try again in a moment."

// handleVote forwards a button click to the backend and redraws the tally
// from the counts it returns.
func (h *Handler) handleVote(ctx context.Context, i *discordgo.Interaction, customID string) {
	sentiment, proposalID, ok := proposals.ParseVoteCustomID(customID)
	if !ok {
		h.respondEphemeral(ctx, i, &discordgo.InteractionResponseData{Content: "This button is no longer valid."})
		return
	}

	err := h.s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}, discordgo.WithContext(ctx))
	if err != nil {
		h.log.Warn("acknowledge vote", zap.String("proposal", proposalID), zap.Error(err))
		return
	}

	user := interactionUser(i)
	counts, err := h.backend.RecordReaction(ctx, api.Reaction{
		ProposalID:      proposalID,
		DrepID:          h.cfg.DrepID,
		GuildID:         i.GuildID,
		ChannelID:       i.ChannelID,
		DiscordUserID:   user.ID,
		DiscordUsername: user.Username,
		Sentiment:       sentiment,
	})
	if err != nil {
		h.log.Error("record reaction", zap.String("proposal", proposalID), zap.String("user", user.ID), zap.Error(err))
		h.followupEphemeral(ctx, i, voteFailed)
		return
	}

	if i.Message != nil {
		embeds := proposals.UpdateSentiment(i.Message.Embeds, counts)
		if _, err := h.s.InteractionResponseEdit(i, &discordgo.WebhookEdit{Embeds: &embeds}, discordgo.WithContext(ctx)); err != nil {
			h.log.Warn("update vote counts", zap.String("proposal", proposalID), zap.Error(err))
		}
	}
	h.followupEphemeral(ctx, i, fmt.Sprintf("Your **%s** vote was recorded. Thanks for sharing your view!", sentiment))
}

package proposals

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
	"github.com/stake-plus/cardano-gov-sentiment/src/discord"
)

// archiveAfter is the auto-archive duration of proposal threads, in minutes.
const archiveAfter = 10080

// ForumPoster creates proposal threads in a Discord forum channel.
type ForumPoster struct {
	s   discord.Session
	log *zap.Logger
}

func NewForumPoster(s discord.Session, log *zap.Logger) *ForumPoster {
	return &ForumPoster{s: s, log: log}
}

// CreateProposalThread starts a thread for p and returns its id. A forum tag
// named after the proposal type is applied when one exists.
func (f *ForumPoster) CreateProposalThread(ctx context.Context, forumID string, p types.Proposal) (string, error) {
	start := &discordgo.ThreadStart{
		Name:                ThreadName(p),
		AutoArchiveDuration: archiveAfter,
	}
	if tag, ok := f.tagFor(ctx, forumID, p.Type); ok {
		start.AppliedTags = []string{tag}
	}
	th, err := f.s.ForumThreadStartComplex(forumID, start, Message(p), discordgo.WithContext(ctx))
	if err != nil {
		return "", errors.Annotatef(err, "create thread for %s", p.ProposalID)
	}
	return th.ID, nil
}

func (f *ForumPoster) tagFor(ctx context.Context, forumID, proposalType string) (string, bool) {
	ch, err := f.s.Channel(forumID, discordgo.WithContext(ctx))
	if err != nil {
		f.log.Debug("forum tags unavailable", zap.String("forum", forumID), zap.Error(err))
		return "", false
	}
	return MatchTag(ch.AvailableTags, proposalType)
}

// Package notifier announces a DRep's on-chain votes in the proposal threads
// where delegators discussed them.
package notifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
	"github.com/stake-plus/cardano-gov-sentiment/src/discord"
	"github.com/stake-plus/cardano-gov-sentiment/src/logging"
)

// Backend exposes the pending-notification queue.
type Backend interface {
	PendingDrepVotes(ctx context.Context, drepID string) ([]types.GuildProposalPost, error)
	MarkDrepVoteNotified(ctx context.Context, postID uint64) error
}

// Notifier polls for announced-but-unposted DRep votes.
type Notifier struct {
	s        discord.Session
	backend  Backend
	drepID   string
	interval time.Duration
	clock    clock.Clock
	log      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(s discord.Session, backend Backend, drepID string, interval time.Duration, clk clock.Clock, log *zap.Logger) *Notifier {
	return &Notifier{
		s:        s,
		backend:  backend,
		drepID:   drepID,
		interval: interval,
		clock:    clk,
		log:      log.Named("notifier"),
	}
}

func (n *Notifier) Name() string { return "drep-vote-notifier" }

func (n *Notifier) Start(ctx context.Context) error {
	if n.interval <= 0 {
		return errors.NotValidf("poll interval %s", n.interval)
	}
	ctx, n.cancel = context.WithCancel(ctx)
	n.wg.Add(1)
	go n.loop(ctx)
	return nil
}

func (n *Notifier) Stop(context.Context) {
	if n.cancel == nil {
		return
	}
	n.cancel()
	n.wg.Wait()
}

func (n *Notifier) loop(ctx context.Context) {
	defer n.wg.Done()
	for {
		if _, err := n.Poll(ctx); err != nil && ctx.Err() == nil {
			n.log.Warn("poll pending DRep votes", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-n.clock.After(n.interval):
		}
	}
}

// Poll posts one notice per pending vote and marks it notified. A post that
// cannot be delivered stays pending for the next poll.
func (n *Notifier) Poll(ctx context.Context) (int, error) {
	pending, err := n.backend.PendingDrepVotes(ctx, n.drepID)
	if err != nil {
		return 0, errors.Annotate(err, "list pending votes")
	}
	sent := 0
	for _, post := range pending {
		if post.DrepVote == nil || post.ThreadID == "" {
			continue
		}
		log := n.log.With(zap.Uint64("post", post.ID), zap.String("thread", post.ThreadID), zap.String("proposal", post.ProposalID))
		_, err := n.s.ChannelMessageSendComplex(post.ThreadID, &discordgo.MessageSend{
			Content:         Notice(post),
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		}, discordgo.WithContext(ctx))
		if err != nil {
			if logging.IsRateLimit(err) {
				log.Warn("rate limited, deferring remaining notices", zap.Error(err))
				return sent, nil
			}
			log.Warn("post vote notice", zap.Error(err))
			continue
		}
		if err := n.backend.MarkDrepVoteNotified(ctx, post.ID); err != nil {
			// The notice is out; the next poll may repeat it.
			log.Error("mark vote notified", zap.Error(err))
			continue
		}
		sent++
		log.Info("vote notice posted", zap.String("vote", string(*post.DrepVote)))
	}
	return sent, nil
}

var voteIcons = map[types.Sentiment]string{
	types.SentimentYes:     "✅",
	types.SentimentNo:      "❌",
	types.SentimentAbstain: "⚪",
}

// Notice is the thread message announcing the DRep's vote.
func Notice(post types.GuildProposalPost) string {
	vote := types.Sentiment("UNKNOWN")
	if post.DrepVote != nil {
		vote = *post.DrepVote
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🗳️ **The DRep has voted on-chain: %s %s**", voteIcons[vote], vote)
	if post.DrepRationaleURL != "" {
		fmt.Fprintf(&b, "\nRationale: %s", discord.WrapURLsNoEmbed(post.DrepRationaleURL))
	}
	if post.DrepVoteTxHash != "" {
		fmt.Fprintf(&b, "\nTransaction: `%s`", post.DrepVoteTxHash)
	}
	b.WriteString("\nThank you to everyone who shared their view in this thread.")
	return b.String()
}

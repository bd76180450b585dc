package data

import (
	"context"

	"github.com/juju/errors"
	"gorm.io/gorm"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
)

// DrepVoteInput announces a DRep's on-chain vote. DrepID must be normalized
// and the registration already checked.
type DrepVoteInput struct {
	DrepID       string
	ProposalID   string
	Vote         types.Sentiment
	TxHash       string
	RationaleURL string
}

// NotifyDrepVote stores the vote on every post of the proposal for this DRep
// and moves them to PENDING_NOTIFY. No posts is not an error.
func (s *Store) NotifyDrepVote(ctx context.Context, in DrepVoteInput) ([]types.GuildProposalPost, error) {
	now := s.clock.Now()
	posts := []types.GuildProposalPost{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("drep_id = ? AND proposal_id = ?", in.DrepID, in.ProposalID).
			Order("id").Find(&posts).Error; err != nil {
			return err
		}
		if len(posts) == 0 {
			return nil
		}
		vote := in.Vote
		err := tx.Model(&types.GuildProposalPost{}).
			Where("drep_id = ? AND proposal_id = ?", in.DrepID, in.ProposalID).
			Updates(map[string]interface{}{
				"drep_vote":           vote,
				"drep_rationale_url":  in.RationaleURL,
				"drep_vote_tx_hash":   in.TxHash,
				"drep_voted_at":       now,
				"notify_state":        types.NotifyPending,
				"notify_state_at":     now,
				"discord_notified_at": nil,
			}).Error
		if err != nil {
			return err
		}
		for i := range posts {
			posts[i].DrepVote = &vote
			posts[i].DrepRationaleURL = in.RationaleURL
			posts[i].DrepVoteTxHash = in.TxHash
			posts[i].DrepVotedAt = &now
			posts[i].NotifyState = types.NotifyPending
			posts[i].NotifyStateAt = &now
			posts[i].DiscordNotifiedAt = nil
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return posts, nil
}

// PendingDrepVotes returns posts awaiting a Discord notice, oldest vote first.
func (s *Store) PendingDrepVotes(ctx context.Context, drepID string) ([]types.GuildProposalPost, error) {
	db := s.db.WithContext(ctx).
		Where("notify_state = ? AND drep_vote IS NOT NULL AND discord_notified_at IS NULL", types.NotifyPending)
	if drepID != "" {
		db = db.Where("drep_id = ?", drepID)
	}
	posts := []types.GuildProposalPost{}
	err := db.Order("drep_voted_at ASC, id ASC").Find(&posts).Error
	return posts, errors.Trace(err)
}

// MarkDrepVoteNotified closes the loop for one post. Marking twice is a no-op.
// A non-empty drepID restricts the update to that DRep's posts.
func (s *Store) MarkDrepVoteNotified(ctx context.Context, postID uint64, drepID string) (*types.GuildProposalPost, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if drepID != "" && post.DrepID != drepID {
		return nil, errors.NotFoundf("post %d", postID)
	}
	if post.NotifyState == types.NotifyDone && post.DiscordNotifiedAt != nil {
		return post, nil
	}
	now := s.clock.Now()
	err = s.db.WithContext(ctx).Model(post).Updates(map[string]interface{}{
		"notify_state":        types.NotifyDone,
		"notify_state_at":     now,
		"discord_notified_at": now,
	}).Error
	if err != nil {
		return nil, errors.Trace(err)
	}
	post.NotifyState = types.NotifyDone
	post.NotifyStateAt = &now
	post.DiscordNotifiedAt = &now
	return post, nil
}

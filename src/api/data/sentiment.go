package data

import (
	"context"

	"github.com/juju/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
)

// Pagination bounds for the sentiment listings.
const (
	CommentsDefaultLimit  = 50
	CommentsMaxLimit      = 100
	ReactionsDefaultLimit = 100
	ReactionsMaxLimit     = 500
)

// SentimentQuery selects tally rows. DrepID is CIP-129 or empty for all DReps.
type SentimentQuery struct {
	ProposalID string
	DrepID     string
}

// SentimentTotals sums tally rows.
type SentimentTotals struct {
	YesCount       int64 `json:"yesCount"`
	NoCount        int64 `json:"noCount"`
	AbstainCount   int64 `json:"abstainCount"`
	CommentCount   int64 `json:"commentCount"`
	TotalReactions int64 `json:"totalReactions"`
}

// Totals sums any number of tally rows.
func Totals(rows ...types.ProposalSentiment) SentimentTotals {
	var t SentimentTotals
	for _, r := range rows {
		t.add(r)
	}
	return t
}

func (t *SentimentTotals) add(row types.ProposalSentiment) {
	t.YesCount += row.YesCount
	t.NoCount += row.NoCount
	t.AbstainCount += row.AbstainCount
	t.CommentCount += row.CommentCount
	t.TotalReactions = t.YesCount + t.NoCount + t.AbstainCount
}

// SentimentSummary is the per-DRep breakdown for a proposal.
type SentimentSummary struct {
	ProposalID string                    `json:"proposalId"`
	DrepID     string                    `json:"drepId,omitempty"`
	Totals     SentimentTotals           `json:"totals"`
	ByDrep     []types.ProposalSentiment `json:"byDrep"`
}

// Sentiment aggregates tally rows. No rows yields zero totals.
func (s *Store) Sentiment(ctx context.Context, q SentimentQuery) (SentimentSummary, error) {
	db := s.db.WithContext(ctx).Where("proposal_id = ?", q.ProposalID)
	if q.DrepID != "" {
		db = db.Where("drep_id = ?", q.DrepID)
	}
	rows := []types.ProposalSentiment{}
	if err := db.Order("drep_id").Find(&rows).Error; err != nil {
		return SentimentSummary{}, errors.Trace(err)
	}

	return SentimentSummary{ProposalID: q.ProposalID, DrepID: q.DrepID, Totals: Totals(rows...), ByDrep: rows}, nil
}

// DrepSentiment lists every tally row belonging to a DRep, newest activity first.
func (s *Store) DrepSentiment(ctx context.Context, drepID string) ([]types.ProposalSentiment, error) {
	rows := []types.ProposalSentiment{}
	err := s.db.WithContext(ctx).Where("drep_id = ?", drepID).
		Order("updated_at DESC, id DESC").Find(&rows).Error
	return rows, errors.Trace(err)
}

// CommentsQuery lists reactions carrying a comment.
type CommentsQuery struct {
	ProposalID string
	DrepID     string
	Page       Page
}

func (s *Store) Comments(ctx context.Context, q CommentsQuery) ([]types.DiscordReaction, int64, error) {
	db := s.db.WithContext(ctx).Model(&types.DiscordReaction{}).
		Where("proposal_id = ? AND comment IS NOT NULL", q.ProposalID)
	if q.DrepID != "" {
		db = db.Where("drep_id = ?", q.DrepID)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}
	rows := []types.DiscordReaction{}
	err := db.Order("created_at DESC, id DESC").Limit(q.Page.Limit).Offset(q.Page.Offset).Find(&rows).Error
	return rows, total, errors.Trace(err)
}

// ReactionsQuery lists every reaction, optionally narrowed to one sentiment.
type ReactionsQuery struct {
	ProposalID string
	DrepID     string
	Sentiment  types.Sentiment
	Page       Page
}

// ReactionRow is a reaction with the reacting delegator's stake, when known.
type ReactionRow struct {
	types.DiscordReaction
	StakeAddress *string `json:"stakeAddress"`
	LiveStake    *string `json:"liveStake"`
}

func (s *Store) Reactions(ctx context.Context, q ReactionsQuery) ([]ReactionRow, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Where("r.proposal_id = ?", q.ProposalID)
		if q.DrepID != "" {
			db = db.Where("r.drep_id = ?", q.DrepID)
		}
		if q.Sentiment != "" {
			db = db.Where("r.sentiment = ?", q.Sentiment)
		}
		return db
	}

	var total int64
	err := s.db.WithContext(ctx).Table("discord_reactions AS r").Scopes(filter).Count(&total).Error
	if err != nil {
		return nil, 0, errors.Trace(err)
	}

	rows := []ReactionRow{}
	err = s.db.WithContext(ctx).Table("discord_reactions AS r").
		Select("r.*, d.stake_address AS stake_address, d.live_stake AS live_stake").
		Joins("LEFT JOIN delegators d ON d.discord_user_id = r.discord_user_id AND d.drep_id = r.drep_id").
		Scopes(filter).
		Order("r.created_at DESC, r.id DESC").
		Limit(q.Page.Limit).Offset(q.Page.Offset).
		Scan(&rows).Error
	return rows, total, errors.Trace(err)
}

// ReactionInput is one vote button click.
type ReactionInput struct {
	ProposalID      string
	DrepID          string
	GuildID         string
	ChannelID       string
	DiscordUserID   string
	DiscordUsername string
	Sentiment       types.Sentiment
}

// RecordReaction stores the click and bumps the tally in one transaction,
// returning the updated tally.
func (s *Store) RecordReaction(ctx context.Context, in ReactionInput) (types.ProposalSentiment, error) {
	sentiment := in.Sentiment
	row := types.DiscordReaction{
		ProposalID:      in.ProposalID,
		DrepID:          in.DrepID,
		GuildID:         in.GuildID,
		ChannelID:       in.ChannelID,
		DiscordUserID:   in.DiscordUserID,
		DiscordUsername: in.DiscordUsername,
		Sentiment:       &sentiment,
		CreatedAt:       s.clock.Now(),
	}
	column := map[types.Sentiment]string{
		types.SentimentYes:     "yes_count",
		types.SentimentNo:      "no_count",
		types.SentimentAbstain: "abstain_count",
	}[in.Sentiment]
	if column == "" {
		return types.ProposalSentiment{}, errors.NotValidf("sentiment %q", in.Sentiment)
	}
	return s.recordInteraction(ctx, &row, column)
}

// CommentInput is a message posted in a proposal thread.
type CommentInput struct {
	ProposalID         string
	DrepID             string
	GuildID            string
	ChannelID          string
	DiscordUserID      string
	DiscordUsername    string
	Comment            string
	SuggestedSentiment types.Sentiment
}

// RecordComment stores a comment. The suggested sentiment is kept for
// display only and never counted as a vote.
func (s *Store) RecordComment(ctx context.Context, in CommentInput) (types.ProposalSentiment, error) {
	comment := in.Comment
	row := types.DiscordReaction{
		ProposalID:      in.ProposalID,
		DrepID:          in.DrepID,
		GuildID:         in.GuildID,
		ChannelID:       in.ChannelID,
		DiscordUserID:   in.DiscordUserID,
		DiscordUsername: in.DiscordUsername,
		Comment:         &comment,
		CreatedAt:       s.clock.Now(),
	}
	if in.SuggestedSentiment != "" {
		suggested := in.SuggestedSentiment
		row.SuggestedSentiment = &suggested
	}
	return s.recordInteraction(ctx, &row, "comment_count")
}

func (s *Store) recordInteraction(ctx context.Context, row *types.DiscordReaction, column string) (types.ProposalSentiment, error) {
	now := s.clock.Now()
	var tally types.ProposalSentiment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		seed := types.ProposalSentiment{ProposalID: row.ProposalID, DrepID: row.DrepID, UpdatedAt: now}
		switch column {
		case "yes_count":
			seed.YesCount = 1
		case "no_count":
			seed.NoCount = 1
		case "abstain_count":
			seed.AbstainCount = 1
		case "comment_count":
			seed.CommentCount = 1
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "proposal_id"}, {Name: "drep_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				column:       gorm.Expr(column + " + 1"),
				"updated_at": now,
			}),
		}).Create(&seed).Error
		if err != nil {
			return err
		}
		return tx.Where("proposal_id = ? AND drep_id = ?", row.ProposalID, row.DrepID).Take(&tally).Error
	})
	return tally, errors.Annotate(err, "record interaction")
}

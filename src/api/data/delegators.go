package data

import (
	"context"

	"github.com/juju/errors"
	"gorm.io/gorm/clause"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
)

// DelegatorInput is a verified delegation reported by the verify service.
type DelegatorInput struct {
	DiscordUserID   string
	DiscordUsername string
	DrepID          string
	StakeAddress    string
	LiveStake       string
}

// UpsertDelegator records or refreshes a delegation for (user, DRep).
func (s *Store) UpsertDelegator(ctx context.Context, in DelegatorInput) (*types.Delegator, error) {
	live := in.LiveStake
	if live == "" {
		live = "0"
	}
	d := types.Delegator{
		DiscordUserID:   in.DiscordUserID,
		DiscordUsername: in.DiscordUsername,
		DrepID:          in.DrepID,
		StakeAddress:    in.StakeAddress,
		LiveStake:       live,
		IsActive:        true,
		VerifiedAt:      s.clock.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "discord_user_id"}, {Name: "drep_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"discord_username", "stake_address", "live_stake", "is_active", "verified_at", "updated_at",
		}),
	}).Create(&d).Error
	if err != nil {
		return nil, errors.Trace(err)
	}
	return s.FindDelegator(ctx, in.DiscordUserID, in.DrepID)
}

func (s *Store) FindDelegator(ctx context.Context, discordUserID, drepID string) (*types.Delegator, error) {
	var d types.Delegator
	err := s.db.WithContext(ctx).
		Where("discord_user_id = ? AND drep_id = ? AND is_active = ?", discordUserID, drepID, true).
		Take(&d).Error
	if isMissing(err) {
		return nil, errors.NotFoundf("delegator %s for %s", discordUserID, drepID)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &d, nil
}

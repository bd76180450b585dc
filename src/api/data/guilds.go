package data

import (
	"context"

	"github.com/juju/errors"
	"gorm.io/gorm"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
)

// GuildInput registers a Discord guild for a DRep.
type GuildInput struct {
	GuildID        string
	GuildName      string
	DrepID         string
	ForumChannelID string
}

func (s *Store) RegisterGuild(ctx context.Context, in GuildInput) (*types.Guild, error) {
	g := types.Guild{
		GuildID:        in.GuildID,
		GuildName:      in.GuildName,
		DrepID:         in.DrepID,
		ForumChannelID: in.ForumChannelID,
	}
	err := s.db.WithContext(ctx).Create(&g).Error
	if isDuplicate(err) {
		return nil, errors.AlreadyExistsf("guild %s", in.GuildID)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &g, nil
}

func (s *Store) GetGuild(ctx context.Context, guildID string) (*types.Guild, error) {
	var g types.Guild
	err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).Take(&g).Error
	if isMissing(err) {
		return nil, errors.NotFoundf("guild %s", guildID)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &g, nil
}

// GuildChannels changes only the channels that are set.
type GuildChannels struct {
	ForumChannelID    *string
	DelegateChannelID *string
}

func (s *Store) UpdateGuildChannels(ctx context.Context, guildID string, ch GuildChannels) (*types.Guild, error) {
	g, err := s.GetGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if ch.ForumChannelID != nil {
		updates["forum_channel_id"] = *ch.ForumChannelID
	}
	if ch.DelegateChannelID != nil {
		updates["delegate_channel_id"] = *ch.DelegateChannelID
	}
	if len(updates) == 0 {
		return g, nil
	}
	if err := s.db.WithContext(ctx).Model(g).Updates(updates).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return s.GetGuild(ctx, guildID)
}

// PostedProposalIDs lists proposals that already have a thread in the guild.
func (s *Store) PostedProposalIDs(ctx context.Context, guildID, drepID string) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).Model(&types.GuildProposalPost{}).
		Where("guild_id = ? AND drep_id = ?", guildID, drepID).
		Order("posted_at ASC, id ASC").
		Pluck("proposal_id", &ids).Error
	return ids, errors.Trace(err)
}

// PostInput records a forum thread created for a proposal.
type PostInput struct {
	GuildID    string
	DrepID     string
	ProposalID string
	ThreadID   string
}

// RecordPost fails with AlreadyExists when the proposal was already posted
// for this guild and DRep.
func (s *Store) RecordPost(ctx context.Context, in PostInput) (*types.GuildProposalPost, error) {
	post := types.GuildProposalPost{
		GuildID:     in.GuildID,
		DrepID:      in.DrepID,
		ProposalID:  in.ProposalID,
		ThreadID:    in.ThreadID,
		PostedAt:    s.clock.Now(),
		NotifyState: types.NotifyIdle,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		err := tx.Model(&types.GuildProposalPost{}).
			Where("guild_id = ? AND drep_id = ? AND proposal_id = ?", in.GuildID, in.DrepID, in.ProposalID).
			Count(&n).Error
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.AlreadyExistsf("post of %s in guild %s", in.ProposalID, in.GuildID)
		}
		return tx.Create(&post).Error
	})
	if isDuplicate(err) {
		return nil, errors.AlreadyExistsf("post of %s in guild %s", in.ProposalID, in.GuildID)
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *Store) GetPost(ctx context.Context, id uint64) (*types.GuildProposalPost, error) {
	var post types.GuildProposalPost
	err := s.db.WithContext(ctx).Take(&post, id).Error
	if isMissing(err) {
		return nil, errors.NotFoundf("post %d", id)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &post, nil
}

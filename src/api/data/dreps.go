package data

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/errors"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
)

const apiKeyPrefix = "gsk_"

// NewAPIKey returns a fresh random key for an approved DRep.
func NewAPIKey() string {
	return apiKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// DrepRegistrationInput is a self-registration request.
type DrepRegistrationInput struct {
	DrepID         string
	DiscordGuildID string
	DrepName       string
	ContactEmail   string
}

func (s *Store) RegisterDrep(ctx context.Context, in DrepRegistrationInput) (*types.DrepRegistration, error) {
	reg := types.DrepRegistration{
		DrepID:         in.DrepID,
		DiscordGuildID: in.DiscordGuildID,
		DrepName:       in.DrepName,
		ContactEmail:   in.ContactEmail,
		Status:         types.RegistrationPending,
	}
	err := s.db.WithContext(ctx).Create(&reg).Error
	if isDuplicate(err) {
		return nil, errors.AlreadyExistsf("drep %s", in.DrepID)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &reg, nil
}

func (s *Store) GetDrep(ctx context.Context, drepID string) (*types.DrepRegistration, error) {
	var reg types.DrepRegistration
	err := s.db.WithContext(ctx).Where("drep_id = ?", drepID).Take(&reg).Error
	if isMissing(err) {
		return nil, errors.NotFoundf("drep %s", drepID)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &reg, nil
}

// DrepByAPIKey finds the approved registration owning key.
func (s *Store) DrepByAPIKey(ctx context.Context, key string) (*types.DrepRegistration, error) {
	if key == "" {
		return nil, errors.Unauthorizedf("api key")
	}
	var reg types.DrepRegistration
	err := s.db.WithContext(ctx).
		Where("api_key = ? AND status = ?", key, types.RegistrationApproved).Take(&reg).Error
	if isMissing(err) {
		return nil, errors.Unauthorizedf("api key")
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &reg, nil
}

// RequireApprovedDrep fails with Forbidden unless drepID is registered and approved.
func (s *Store) RequireApprovedDrep(ctx context.Context, drepID string) (*types.DrepRegistration, error) {
	reg, err := s.GetDrep(ctx, drepID)
	if errors.Is(err, errors.NotFound) {
		return nil, errors.Forbiddenf("drep %s is not registered", drepID)
	}
	if err != nil {
		return nil, err
	}
	if reg.Status != types.RegistrationApproved {
		return nil, errors.Forbiddenf("drep %s is %s", drepID, strings.ToLower(string(reg.Status)))
	}
	return reg, nil
}

func (s *Store) ListDreps(ctx context.Context, status types.RegistrationStatus) ([]types.DrepRegistration, error) {
	db := s.db.WithContext(ctx)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	out := []types.DrepRegistration{}
	return out, errors.Trace(db.Order("created_at ASC, id ASC").Find(&out).Error)
}

// ReviewDrep approves or rejects a registration. Approval issues an API key
// when none exists; rejection revokes it.
func (s *Store) ReviewDrep(ctx context.Context, drepID string, approve bool, rationale string) (*types.DrepRegistration, error) {
	reg, err := s.GetDrep(ctx, drepID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	reg.ReviewedAt = &now
	reg.Rationale = rationale
	if approve {
		reg.Status = types.RegistrationApproved
		if reg.APIKey == nil {
			key := NewAPIKey()
			reg.APIKey = &key
		}
	} else {
		reg.Status = types.RegistrationRejected
		reg.APIKey = nil
	}
	if err := s.db.WithContext(ctx).Save(reg).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return reg, nil
}

// RotateAPIKey replaces the key of an approved DRep.
func (s *Store) RotateAPIKey(ctx context.Context, drepID string) (*types.DrepRegistration, error) {
	reg, err := s.GetDrep(ctx, drepID)
	if err != nil {
		return nil, err
	}
	if reg.Status != types.RegistrationApproved {
		return nil, errors.NotValidf("drep %s is %s, key rotation", drepID, strings.ToLower(string(reg.Status)))
	}
	key := NewAPIKey()
	reg.APIKey = &key
	if err := s.db.WithContext(ctx).Model(reg).Update("api_key", key).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return reg, nil
}

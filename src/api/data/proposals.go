package data

import (
	"context"
	"math/big"
	"strings"

	"github.com/juju/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
	"github.com/stake-plus/cardano-gov-sentiment/src/cardano"
)

// ResolveProposalID maps a stored proposal id, a CIP-129 gov_action id or a
// "txHash:index" / "txHash#index" reference to the stored proposal id.
// Unknown input is returned unchanged so callers see an empty result instead
// of an error.
func (s *Store) ResolveProposalID(ctx context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	db := s.db.WithContext(ctx)

	var p types.Proposal
	err := db.Select("proposal_id").Where("proposal_id = ?", raw).Take(&p).Error
	if err == nil {
		return p.ProposalID, nil
	}
	if !isMissing(err) {
		return "", errors.Annotate(err, "resolve proposal")
	}

	ref, ok := parseProposalRef(raw)
	if !ok {
		return raw, nil
	}
	found, err := s.proposalByTx(ctx, ref)
	if errors.Is(err, errors.NotFound) {
		return raw, nil
	}
	if err != nil {
		return "", errors.Annotate(err, "resolve proposal by tx")
	}
	return found.ProposalID, nil
}

func parseProposalRef(raw string) (cardano.GovActionID, bool) {
	if strings.HasPrefix(strings.ToLower(raw), "gov_action1") {
		ref, err := cardano.ParseGovActionID(raw)
		return ref, err == nil
	}
	ref, err := cardano.ParseTxRef(raw)
	return ref, err == nil
}

func (s *Store) proposalByTx(ctx context.Context, ref cardano.GovActionID) (*types.Proposal, error) {
	var p types.Proposal
	err := s.db.WithContext(ctx).
		Where("tx_hash = ? AND cert_index = ?", ref.TxHash, ref.Index).
		Take(&p).Error
	if isMissing(err) {
		return nil, errors.NotFoundf("proposal %s", ref)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &p, nil
}

// GetProposal loads a proposal by any id form.
func (s *Store) GetProposal(ctx context.Context, raw string) (*types.Proposal, error) {
	id, err := s.ResolveProposalID(ctx, raw)
	if err != nil {
		return nil, err
	}
	var p types.Proposal
	if err := s.db.WithContext(ctx).Where("proposal_id = ?", id).Take(&p).Error; err != nil {
		if isMissing(err) {
			return nil, errors.NotFoundf("proposal %q", raw)
		}
		return nil, errors.Trace(err)
	}
	return &p, nil
}

// ProposalQuery filters the proposal list.
type ProposalQuery struct {
	Status types.ProposalStatus
	Page   Page
}

// ListProposals returns newest submissions first plus the unpaged total.
func (s *Store) ListProposals(ctx context.Context, q ProposalQuery) ([]types.Proposal, int64, error) {
	db := s.db.WithContext(ctx).Model(&types.Proposal{})
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}
	out := []types.Proposal{}
	err := db.Order("submission_epoch DESC, id DESC").Limit(q.Page.Limit).Offset(q.Page.Offset).Find(&out).Error
	return out, total, errors.Trace(err)
}

// ActiveProposals returns every ACTIVE proposal, unpaged.
func (s *Store) ActiveProposals(ctx context.Context) ([]types.Proposal, error) {
	out := []types.Proposal{}
	err := s.db.WithContext(ctx).Where("status = ?", types.StatusActive).
		Order("submission_epoch ASC, id ASC").Find(&out).Error
	return out, errors.Trace(err)
}

// ProposalInput is an upsert from the external chain sync.
type ProposalInput struct {
	ProposalID       string
	TxHash           string
	CertIndex        uint32
	Title            string
	Description      string
	Rationale        string
	Type             string
	Status           types.ProposalStatus
	SubmissionEpoch  uint32
	ExpirationEpoch  uint32
	WithdrawalAmount string
}

// UpsertProposal inserts or refreshes a proposal keyed by its canonical id.
// A missing id is taken from the row with the same tx reference, or
// derived from it.
func (s *Store) UpsertProposal(ctx context.Context, in ProposalInput) (*types.Proposal, error) {
	ref := cardano.GovActionID{TxHash: strings.ToLower(in.TxHash), Index: in.CertIndex}
	if _, err := cardano.ParseTxRef(ref.String()); err != nil {
		return nil, errors.NotValidf("txHash %q", in.TxHash)
	}
	derived := in.ProposalID == ""
	if derived {
		id, err := ref.Bech32()
		if err != nil {
			return nil, errors.NotValidf("txHash %q", in.TxHash)
		}
		in.ProposalID = id
	}
	status, ok := types.ParseProposalStatus(string(in.Status))
	if !ok {
		return nil, errors.NotValidf("proposal status %q", in.Status)
	}
	in.Status = status
	if !validProposalType(in.Type) {
		return nil, errors.NotValidf("proposal type %q", in.Type)
	}
	if in.WithdrawalAmount != "" && !isLovelace(in.WithdrawalAmount) {
		return nil, errors.NotValidf("withdrawalAmount %q", in.WithdrawalAmount)
	}

	p := types.Proposal{
		ProposalID:       in.ProposalID,
		TxHash:           ref.TxHash,
		CertIndex:        ref.Index,
		Title:            in.Title,
		Description:      in.Description,
		Rationale:        in.Rationale,
		Type:             in.Type,
		Status:           in.Status,
		SubmissionEpoch:  in.SubmissionEpoch,
		ExpirationEpoch:  in.ExpirationEpoch,
		WithdrawalAmount: in.WithdrawalAmount,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Both proposal_id and (tx_hash, cert_index) are unique. MySQL's
		// ON DUPLICATE KEY fires on either, so a row must not be claimed by
		// one key while the other points elsewhere.
		var byTx types.Proposal
		err := tx.Where("tx_hash = ? AND cert_index = ?", ref.TxHash, ref.Index).Take(&byTx).Error
		switch {
		case err == nil && byTx.ProposalID != in.ProposalID && derived:
			in.ProposalID = byTx.ProposalID
			p.ProposalID = byTx.ProposalID
		case err == nil && byTx.ProposalID != in.ProposalID:
			return errors.AlreadyExistsf("proposal with tx %s as %s", ref, byTx.ProposalID)
		case err != nil && !isMissing(err):
			return err
		}
		var byID types.Proposal
		err = tx.Where("proposal_id = ?", in.ProposalID).Take(&byID).Error
		switch {
		case err == nil && (byID.TxHash != ref.TxHash || byID.CertIndex != ref.Index):
			return errors.AlreadyExistsf("proposal %s with tx %s:%d", in.ProposalID, byID.TxHash, byID.CertIndex)
		case err != nil && !isMissing(err):
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "proposal_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "description", "rationale", "type", "status",
				"submission_epoch", "expiration_epoch", "withdrawal_amount", "updated_at",
			}),
		}).Create(&p).Error
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, errors.AlreadyExistsf("proposal with tx %s", ref)
		}
		if errors.Is(err, errors.AlreadyExists) {
			return nil, err
		}
		return nil, errors.Trace(err)
	}
	return s.GetProposal(ctx, in.ProposalID)
}

func validProposalType(t string) bool {
	for _, known := range types.ProposalTypes {
		if t == known {
			return true
		}
	}
	return false
}

func isLovelace(v string) bool {
	n, ok := new(big.Int).SetString(v, 10)
	return ok && n.Sign() >= 0
}

// StatusCounts is the proposal count per lifecycle state.
type StatusCounts struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Ratified int64 `json:"ratified"`
	Enacted  int64 `json:"enacted"`
	Expired  int64 `json:"expired"`
	Closed   int64 `json:"closed"`
}

func (s *Store) CountProposalsByStatus(ctx context.Context) (StatusCounts, error) {
	var rows []struct {
		Status types.ProposalStatus
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&types.Proposal{}).
		Select("status, count(*) as count").Group("status").Scan(&rows).Error
	if err != nil {
		return StatusCounts{}, errors.Trace(err)
	}

	var out StatusCounts
	for _, r := range rows {
		out.Total += r.Count
		switch r.Status {
		case types.StatusActive:
			out.Active = r.Count
		case types.StatusRatified:
			out.Ratified = r.Count
		case types.StatusEnacted:
			out.Enacted = r.Count
		case types.StatusExpired:
			out.Expired = r.Count
		case types.StatusClosed:
			out.Closed = r.Count
		}
	}
	return out, nil
}

// NCLForYear returns the record for year, or nil when none is tracked.
func (s *Store) NCLForYear(ctx context.Context, year int) (*types.NCLRecord, error) {
	var rec types.NCLRecord
	err := s.db.WithContext(ctx).Where("year = ?", year).Take(&rec).Error
	if isMissing(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &rec, nil
}

// UpsertNCL stores the treasury utilization for year.
func (s *Store) UpsertNCL(ctx context.Context, year int, current, limit string) (*types.NCLRecord, error) {
	if year < 2020 || year > 9999 {
		return nil, errors.NotValidf("year %d", year)
	}
	if !isLovelace(current) {
		return nil, errors.NotValidf("current %q", current)
	}
	if !isLovelace(limit) {
		return nil, errors.NotValidf("limit %q", limit)
	}
	rec := types.NCLRecord{Year: year, Current: current, Limit: limit, UpdatedAt: s.clock.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "year"}},
		DoUpdates: clause.AssignmentColumns([]string{"current", "limit_amount", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return nil, errors.Trace(err)
	}
	return s.NCLForYear(ctx, year)
}

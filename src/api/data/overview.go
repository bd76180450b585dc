package data

import (
	"context"
)

// NCLSnapshot carries lovelace amounts as decimal strings.
type NCLSnapshot struct {
	Year    int    `json:"year"`
	Current string `json:"current"`
	Limit   string `json:"limit"`
}

// Overview is the dashboard landing summary.
type Overview struct {
	Proposals StatusCounts `json:"proposals"`
	NCL       NCLSnapshot  `json:"ncl"`
}

// Overview counts proposals by status and reads this year's NCL. A year
// without a record reports zero amounts.
func (s *Store) Overview(ctx context.Context) (Overview, error) {
	counts, err := s.CountProposalsByStatus(ctx)
	if err != nil {
		return Overview{}, err
	}
	year := s.clock.Now().UTC().Year()
	out := Overview{
		Proposals: counts,
		NCL:       NCLSnapshot{Year: year, Current: "0", Limit: "0"},
	}
	rec, err := s.NCLForYear(ctx, year)
	if err != nil {
		return Overview{}, err
	}
	if rec != nil {
		out.NCL.Current = rec.Current
		out.NCL.Limit = rec.Limit
	}
	return out, nil
}

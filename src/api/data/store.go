// Package data is the API's access layer over MySQL and Redis. Queries take
// explicit parameter structs whose fields are already normalized.
package data

import (
	"github.com/juju/clock"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

// Store runs the typed queries behind every endpoint.
type Store struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewStore(db *gorm.DB, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Store{db: db, clock: clk}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB { return s.db }

// Page is a clamped limit/offset pair.
type Page struct {
	Limit  int
	Offset int
}

// ClampPage applies the default when limit is unset or invalid and caps it
// at max. Negative offsets become zero.
func ClampPage(limit, offset, def, max int) Page {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func isMissing(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Package entity holds the engine's records and the rules that belong to a
// single record: the booking status graph, payment derivation, snapshots for
// the audit log.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Base is embedded by mutable records.
type Base struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func NewBase(at time.Time) Base {
	return Base{ID: uuid.New(), CreatedAt: at, UpdatedAt: at}
}

// BaseSimple is embedded by append-only records, which are never updated.
type BaseSimple struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
}

func NewBaseSimple(at time.Time) BaseSimple {
	return BaseSimple{ID: uuid.New(), CreatedAt: at}
}

package store

import (
	"context"
	"time"
)

// Round is one revealed estimation round.
type Round struct {
	ID         int64
	RoomID     string
	Number     int
	RevealedAt time.Time
	Estimates  []Estimate
}

// Estimate is a single card in an archived round, in room member order.
type Estimate struct {
	ParticipantID string
	Name          string
	Value         string
}

// RoundStore handles round archive persistence.
type RoundStore interface {
	// SaveRound persists a round with its estimates and sets round.ID.
	SaveRound(ctx context.Context, round *Round) error

	// ListRounds returns up to limit rounds, newest first.
	// If beforeID is provided, returns rounds older than that ID.
	ListRounds(ctx context.Context, limit int, beforeID *int64) ([]*Round, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	RoundStore

	// Close closes the underlying database connection.
	Close() error
}

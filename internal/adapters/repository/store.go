// Package repository defines the entrant store interface and its in-memory
// implementation. SQL backends live in the sqlite and postgres subpackages.
package repository

import (
	"context"
	"fmt"

	"github.com/okian/arena/internal/domain/model"
)

// EntrantStore is the persisted catalog of entrants.
type EntrantStore interface {
	// Add validates attrs and stores a new entrant with zero stats.
	// Returns model.ErrValidation or model.ErrDuplicate.
	Add(ctx context.Context, attrs model.Attributes) (model.Entrant, error)

	// GetByID returns the entrant, including soft-deleted ones.
	GetByID(ctx context.Context, id int64) (model.Entrant, error)

	// GetByName returns the non-deleted entrant with exactly this name.
	GetByName(ctx context.Context, name string) (model.Entrant, error)

	// Delete soft-deletes the entrant. Deleting an unknown or already
	// deleted entrant returns model.ErrNotFound.
	Delete(ctx context.Context, id int64) error

	// List returns entrants in id order.
	List(ctx context.Context, includeDeleted bool) ([]model.Entrant, error)
}

// StatsUpdater persists contest outcomes.
type StatsUpdater interface {
	// RecordResult adds a fight to both entrants and a win to the winner in
	// one atomic step. Either entrant unknown or deleted -> model.ErrNotFound
	// and nothing changes.
	RecordResult(ctx context.Context, winnerID, loserID int64) error
}

// Store is the full storage contract the service depends on.
type Store interface {
	EntrantStore
	StatsUpdater

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// CheckPair rejects a contest result naming the same entrant twice.
func CheckPair(winnerID, loserID int64) error {
	if winnerID == loserID {
		return fmt.Errorf("%w: winner and loser must differ (id %d)", model.ErrValidation, winnerID)
	}
	return nil
}

// PrepareAttributes normalizes and validates attributes before insertion.
func PrepareAttributes(attrs model.Attributes) (model.Attributes, error) {
	attrs = attrs.Normalize()
	if err := attrs.Validate(); err != nil {
		return model.Attributes{}, err
	}
	return attrs, nil
}

// NotFound wraps model.ErrNotFound with the id.
func NotFound(id int64) error {
	return fmt.Errorf("%w: id %d", model.ErrNotFound, id)
}

// NameNotFound wraps model.ErrNotFound with the name.
func NameNotFound(name string) error {
	return fmt.Errorf("%w: name %q", model.ErrNotFound, name)
}

// Duplicate wraps model.ErrDuplicate with the name.
func Duplicate(name string) error {
	return fmt.Errorf("%w: name %q", model.ErrDuplicate, name)
}

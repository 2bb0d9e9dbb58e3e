// Package types contains common types used across the application
package types

import "github.com/okian/arena/internal/domain/model"

// Standing is one leaderboard row.
type Standing struct {
	Rank    int
	Entrant model.Entrant
	Value   float64
}

// ArenaState describes how many slots of an arena are occupied.
type ArenaState string

// Arena states.
const (
	ArenaEmpty   ArenaState = "EMPTY"
	ArenaPartial ArenaState = "PARTIAL"
	ArenaFull    ArenaState = "FULL"
)

// StateFor returns the state of an arena holding n entrants.
func StateFor(n int) ArenaState {
	switch {
	case n <= 0:
		return ArenaEmpty
	case n == 1:
		return ArenaPartial
	default:
		return ArenaFull
	}
}

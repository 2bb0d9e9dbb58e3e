package model

import "errors"

// Error kinds shared by every layer. Callers match them with errors.Is;
// producers wrap them with fmt.Errorf("%w: ...") to add detail.
var (
	ErrValidation           = errors.New("validation error")
	ErrDuplicate            = errors.New("duplicate entrant")
	ErrNotFound             = errors.New("entrant not found")
	ErrAlreadyPresent       = errors.New("entrant already in arena")
	ErrCapacity             = errors.New("arena is full")
	ErrInsufficientEntrants = errors.New("arena needs two entrants")
	ErrInvalidSort          = errors.New("invalid sort metric")
)

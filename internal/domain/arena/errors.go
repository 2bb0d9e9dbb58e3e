package arena

import "errors"

// Sentinel kinds for arena errors that are not domain error kinds.
var (
	ErrInvalidDraw = errors.New("random draw outside [0,1)")
	ErrDraw        = errors.New("random draw failed")
)

package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrClosed        = errors.New("store is closed")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

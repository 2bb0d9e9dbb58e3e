package service

import "errors"

var (
	// ErrNotStarted is returned by operations called before Start or after Stop.
	ErrNotStarted = errors.New("service not started")

	// ErrUnknownRandomSource is returned by Start for an unrecognised source.
	ErrUnknownRandomSource = errors.New("unknown random source")
)

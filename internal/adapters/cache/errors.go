package cache

import "errors"

var (
	// ErrMiss reports that a key is not cached.
	ErrMiss = errors.New("cache miss")

	// ErrNoAddr reports an empty redis address.
	ErrNoAddr = errors.New("redis address is required")
)

package smoketest

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned for a config that cannot drive a run.
	ErrInvalidConfig = errors.New("invalid smoke test config")
	// ErrCheckFailed is returned when the service breaks an expectation.
	ErrCheckFailed = errors.New("smoke check failed")
)

// StatusError is a response with an unexpected status code.
type StatusError struct {
	Method string
	Path   string
	Status int
	Code   string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: status %d (%s)", e.Method, e.Path, e.Status, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

func checkFailed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCheckFailed, fmt.Sprintf(format, args...))
}

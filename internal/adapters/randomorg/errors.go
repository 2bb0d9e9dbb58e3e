package randomorg

import "errors"

var (
	// ErrTimeout reports that random.org did not answer in time.
	ErrTimeout = errors.New("random.org request timed out")

	// ErrRequest reports a transport failure or a non-2xx status.
	ErrRequest = errors.New("random.org request failed")

	// ErrInvalidResponse reports a body that is not a fraction in [0, 1).
	ErrInvalidResponse = errors.New("invalid response from random.org")
)

package ai

import "errors"

var (
	// ErrInvalidInput marks a request the service will never accept
	// (empty or oversize text). Not retried.
	ErrInvalidInput = errors.New("invalid input for ai service")

	// ErrServiceUnavailable marks a transient network or service failure.
	// Retried with bounded backoff before surfacing.
	ErrServiceUnavailable = errors.New("ai service unavailable")
)

func isTransient(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

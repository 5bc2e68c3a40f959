// Package retry holds the single backoff policy shared by every outbound
// service client (embedding, generation, vector index).
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy retries an operation with exponential backoff and jitter.
// The zero value is unusable; use NewPolicy.
type Policy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxJitter   time.Duration
}

func NewPolicy(maxAttempts int, baseDelay, maxJitter time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	return Policy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxJitter:   maxJitter,
	}
}

// Do runs op up to the attempt budget, doubling the delay between attempts.
// retryable decides whether an error is transient; permanent errors are
// returned immediately. Context cancellation stops waiting and returns the
// context error.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, retryable func(error) bool) error {
	var err error
	delay := p.baseDelay
	for attempt := 1; ; attempt++ {
		err = op(ctx)
		if err == nil || !retryable(err) || attempt >= p.maxAttempts {
			return err
		}

		wait := delay
		if p.maxJitter > 0 {
			wait += time.Duration(rand.Int63n(int64(p.maxJitter)))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
	}
}

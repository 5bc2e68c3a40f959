package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTransient = errors.New("transient")

func always(error) bool { return true }

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	p := NewPolicy(3, time.Millisecond, 0)
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}, always)
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilBudgetExhausted(t *testing.T) {
	p := NewPolicy(3, time.Millisecond, 0)
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errTransient
	}, always)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	p := NewPolicy(5, time.Millisecond, 0)
	permanent := errors.New("permanent")
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	}, func(err error) bool { return !errors.Is(err, permanent) })
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_StopsOnContextCancel(t *testing.T) {
	p := NewPolicy(10, 50*time.Millisecond, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Do(ctx, func(ctx context.Context) error {
		return errTransient
	}, always)
	assert.ErrorIs(t, err, context.Canceled)
}

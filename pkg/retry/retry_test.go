package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")
var errFatal = errors.New("fatal")

func fastConfig(maxAttempts int) Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = maxAttempts
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.JitterFraction = 0
	return cfg
}

func TestDo_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastConfig(4), func(int) error {
		calls++
		return errTransient
	})

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 4, attempts)
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	attempts, err := Do(context.Background(), fastConfig(3), func(attempt int) error {
		if attempt < 2 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	cfg := fastConfig(5)
	cfg.RetryableErrors = []error{errTransient}

	calls := 0
	_, err := Do(context.Background(), cfg, func(int) error {
		calls++
		return errFatal
	})

	require.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestDo_IsRetryableOverridesList(t *testing.T) {
	cfg := fastConfig(3)
	cfg.RetryableErrors = []error{errTransient}
	cfg.IsRetryable = func(err error) bool { return errors.Is(err, errFatal) }

	calls := 0
	_, _ = Do(context.Background(), cfg, func(int) error {
		calls++
		return errFatal
	})
	assert.Equal(t, 3, calls)
}

func TestDo_DelayForIsApplied(t *testing.T) {
	cfg := fastConfig(2)
	var seen []time.Duration
	cfg.DelayFor = func(err error, backoff time.Duration) time.Duration {
		seen = append(seen, backoff)
		return 0
	}

	_, _ = Do(context.Background(), cfg, func(int) error { return errTransient })
	assert.Len(t, seen, 1)
}

func TestDo_ContextCancelledBeforeNextAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(5)
	cfg.InitialDelay = 50 * time.Millisecond

	calls := 0
	attempts, err := Do(ctx, cfg, func(int) error {
		calls++
		cancel()
		return errTransient
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, attempts)
}

func TestDoWithResult(t *testing.T) {
	v, attempts, err := DoWithResult(context.Background(), fastConfig(3), func(attempt int) (string, error) {
		if attempt == 1 {
			return "", errTransient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, attempts)
}

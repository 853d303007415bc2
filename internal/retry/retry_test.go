package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phrazzld/docgen/internal/breaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

// recordingSleep returns a Sleep that records delays without waiting.
func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func testPolicy(delays *[]time.Duration) Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		Classifier: func(err error) Class {
			if errors.Is(err, errFatal) {
				return Fatal
			}
			return DefaultClassifier(err)
		},
		Sleep: recordingSleep(delays),
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()
	var delays []time.Duration
	var retries []int

	calls := 0
	attempts, err := Do(context.Background(), testPolicy(&delays), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, Hooks{
		OnRetry: func(_ context.Context, attempt int, err error, _ time.Duration) {
			assert.ErrorIs(t, err, errTransient)
			retries = append(retries, attempt)
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retries)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)
}

func TestDoExhausted(t *testing.T) {
	t.Parallel()
	var delays []time.Duration

	attempts, err := Do(context.Background(), testPolicy(&delays), func(context.Context) error {
		return errTransient
	}, Hooks{})

	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.ErrorIs(t, err, errTransient, "last error is preserved")

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, errTransient, exhausted.Last)
	assert.Len(t, delays, 2, "no sleep after the last attempt")
}

func TestDoFatalStopsImmediately(t *testing.T) {
	t.Parallel()
	var delays []time.Duration

	calls := 0
	attempts, err := Do(context.Background(), testPolicy(&delays), func(context.Context) error {
		calls++
		return errFatal
	}, Hooks{})

	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errFatal)
	assert.NotErrorIs(t, err, ErrRetryExhausted)
	assert.Empty(t, delays)
}

func TestDoBeforeAttemptStops(t *testing.T) {
	t.Parallel()
	var delays []time.Duration
	errStop := errors.New("cancelled by user")

	calls := 0
	attempts, err := Do(context.Background(), testPolicy(&delays), func(context.Context) error {
		calls++
		return errTransient
	}, Hooks{
		BeforeAttempt: func(_ context.Context, attempt int) error {
			if attempt == 2 {
				return errStop
			}
			return nil
		},
	})

	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errStop)
}

func TestDoAttemptTimeout(t *testing.T) {
	t.Parallel()
	var delays []time.Duration
	p := testPolicy(&delays)
	p.AttemptTimeout = 10 * time.Millisecond

	calls := 0
	attempts, err := Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}, Hooks{
		OnRetry: func(_ context.Context, _ int, err error, _ time.Duration) {
			assert.ErrorIs(t, err, ErrAttemptTimeout)
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestDoCircuitOpen(t *testing.T) {
	t.Parallel()

	openFor := func(d time.Duration) error {
		return &breaker.OpenError{Name: "authoring", RetryAfter: d}
	}

	t.Run("surfaced early when budget is short", func(t *testing.T) {
		var delays []time.Duration
		attempts, err := Do(context.Background(), testPolicy(&delays), func(context.Context) error {
			return openFor(time.Minute)
		}, Hooks{})

		assert.Equal(t, 1, attempts)
		var early *CircuitOpenEarlyError
		require.True(t, errors.As(err, &early))
		assert.Equal(t, time.Minute, early.RetryAfter)
		assert.Equal(t, 300*time.Millisecond, early.Budget)
		assert.ErrorIs(t, err, breaker.ErrOpen)
		assert.NotErrorIs(t, err, ErrRetryExhausted)
		assert.Empty(t, delays)
	})

	t.Run("waits out the cooldown when budget covers it", func(t *testing.T) {
		var delays []time.Duration
		calls := 0
		attempts, err := Do(context.Background(), testPolicy(&delays), func(context.Context) error {
			calls++
			if calls == 1 {
				return openFor(250 * time.Millisecond)
			}
			return nil
		}, Hooks{})

		require.NoError(t, err)
		assert.Equal(t, 2, attempts)
		assert.Equal(t, []time.Duration{250 * time.Millisecond}, delays)
	})

	t.Run("last attempt counts as exhaustion", func(t *testing.T) {
		var delays []time.Duration
		calls := 0
		_, err := Do(context.Background(), testPolicy(&delays), func(context.Context) error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return openFor(time.Minute)
		}, Hooks{})

		assert.ErrorIs(t, err, ErrRetryExhausted)
		assert.ErrorIs(t, err, breaker.ErrOpen)
	})
}

func TestDoContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())

	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour}
	attempts, err := Do(ctx, p, func(context.Context) error {
		return errTransient
	}, Hooks{
		OnRetry: func(context.Context, int, error, time.Duration) { cancel() },
	})

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicyDelay(t *testing.T) {
	t.Parallel()
	p := Policy{BaseDelay: 500 * time.Millisecond, MaxDelay: 3 * time.Second}

	assert.Equal(t, 500*time.Millisecond, p.Delay(1))
	assert.Equal(t, time.Second, p.Delay(2))
	assert.Equal(t, 2*time.Second, p.Delay(3))
	assert.Equal(t, 3*time.Second, p.Delay(4))
	assert.Equal(t, 3*time.Second, p.Delay(40))

	p.Jitter = true
	for range 20 {
		d := p.Delay(2)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, time.Second)
	}
}

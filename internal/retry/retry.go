// Package retry runs an operation under an exponential-backoff policy that
// tells retryable errors from fatal ones.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/phrazzld/docgen/internal/breaker"
)

// Class is the retry decision for an error.
type Class int

// Error classes
const (
	// Retryable errors are retried after a backoff delay.
	Retryable Class = iota
	// Fatal errors are returned immediately.
	Fatal
	// CircuitOpen marks a fast-fail from an open circuit breaker.
	CircuitOpen
)

var (
	// ErrRetryExhausted is matched by the error returned when every attempt
	// failed with a retryable error.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrAttemptTimeout is returned for an attempt that outlived AttemptTimeout.
	ErrAttemptTimeout = errors.New("attempt timed out")
)

// ExhaustedError reports the last error after MaxAttempts retryable failures.
// It matches ErrRetryExhausted and unwraps to the last error unchanged.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrRetryExhausted, e.Attempts, e.Last)
}

// Is matches ErrRetryExhausted.
func (e *ExhaustedError) Is(target error) bool { return target == ErrRetryExhausted }

// Unwrap returns the last attempt's error.
func (e *ExhaustedError) Unwrap() error { return e.Last }

// CircuitOpenEarlyError is returned when the breaker will stay open longer
// than the remaining retry budget can wait.
type CircuitOpenEarlyError struct {
	Attempts   int
	RetryAfter time.Duration
	Budget     time.Duration
	Err        error
}

func (e *CircuitOpenEarlyError) Error() string {
	return fmt.Sprintf("circuit open for %s, remaining retry budget %s: %v", e.RetryAfter, e.Budget, e.Err)
}

// Unwrap returns the breaker error.
func (e *CircuitOpenEarlyError) Unwrap() error { return e.Err }

// Hooks are optional composition points around attempts.
type Hooks struct {
	// BeforeAttempt runs before every attempt; a non-nil error stops the loop
	// and is returned as is. Used for cancellation checks.
	BeforeAttempt func(ctx context.Context, attempt int) error

	// OnRetry runs after a retryable failure, before the backoff sleep.
	OnRetry func(ctx context.Context, attempt int, err error, delay time.Duration)
}

// Policy configures Do.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	Jitter         bool

	// Classifier maps an error to its Class. Defaults to DefaultClassifier.
	Classifier func(error) Class

	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultClassifier treats breaker fast-fails as CircuitOpen, cancellation as
// Fatal and everything else as Retryable.
func DefaultClassifier(err error) Class {
	switch {
	case errors.Is(err, breaker.ErrOpen):
		return CircuitOpen
	case errors.Is(err, context.Canceled):
		return Fatal
	default:
		return Retryable
	}
}

// Delay returns the backoff before the attempt following attempt n (1-based):
// BaseDelay * 2^(n-1), capped at MaxDelay, with optional full jitter.
func (p Policy) Delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter && d > 0 {
		d = d/2 + rand.N(d/2+1)
	}
	return d
}

// budget sums the backoff delays still available after attempt n.
func (p Policy) budget(n int) time.Duration {
	var total time.Duration
	for i := n; i < p.MaxAttempts; i++ {
		total += p.withoutJitter().Delay(i)
	}
	return total
}

func (p Policy) withoutJitter() Policy {
	p.Jitter = false
	return p
}

// Do runs op until it succeeds, fails fatally or MaxAttempts is reached. It
// returns the number of attempts made.
//
// A breaker fast-fail is retried only while the remaining backoff budget
// covers the breaker's RetryAfter; otherwise a *CircuitOpenEarlyError is
// returned without further attempts. On the last attempt it counts towards
// exhaustion like any retryable error.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error, hooks Hooks) (int, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	classify := p.Classifier
	if classify == nil {
		classify = DefaultClassifier
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if hooks.BeforeAttempt != nil {
			if err := hooks.BeforeAttempt(ctx, attempt); err != nil {
				return attempt - 1, err
			}
		}
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		err := runAttempt(ctx, p.AttemptTimeout, op)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		var openErr *breaker.OpenError
		circuitOpen := errors.As(err, &openErr)

		switch classify(err) {
		case Fatal:
			return attempt, err
		case CircuitOpen:
			if circuitOpen && attempt < p.MaxAttempts {
				if remaining := p.budget(attempt); remaining < openErr.RetryAfter {
					return attempt, &CircuitOpenEarlyError{
						Attempts:   attempt,
						RetryAfter: openErr.RetryAfter,
						Budget:     remaining,
						Err:        err,
					}
				}
			}
		}

		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		if circuitOpen && openErr.RetryAfter > delay {
			delay = openErr.RetryAfter
		}
		if hooks.OnRetry != nil {
			hooks.OnRetry(ctx, attempt, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return attempt, err
		}
	}

	return p.MaxAttempts, &ExhaustedError{Attempts: p.MaxAttempts, Last: lastErr}
}

// runAttempt runs op under its own timeout. A deadline hit by the attempt
// context, and not by the parent, becomes ErrAttemptTimeout.
func runAttempt(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := op(attemptCtx)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w after %s: %w", ErrAttemptTimeout, timeout, err)
	}
	return err
}

// SleepContext waits for d or until ctx is done, returning ctx.Err() in the
// latter case. It is the default Policy.Sleep.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Package breaker implements a circuit breaker for calls to an unreliable
// downstream dependency.
//
// The breaker starts Closed. Failures are counted in a sliding time window;
// once the count reaches the threshold the breaker opens and every call fails
// fast with an *OpenError until the cooldown has elapsed. The first call after
// the cooldown is admitted as a half-open probe: success closes the breaker and
// clears the window, failure reopens it for another cooldown.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the breaker state.
type State int

// Breaker states
const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrOpen is matched by every error returned while the breaker denies calls.
var ErrOpen = errors.New("circuit breaker is open")

// OpenError is returned instead of invoking the operation while the breaker
// is open, or while a half-open probe is already in flight.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open, retry after %s", e.Name, e.RetryAfter)
}

// Unwrap returns ErrOpen.
func (e *OpenError) Unwrap() error { return ErrOpen }

// Settings configures a Breaker.
type Settings struct {
	// Name identifies the protected dependency in errors and hooks.
	Name string

	// Threshold is the number of failures within Window that opens the breaker.
	Threshold int

	// Window is the sliding window failures are counted over.
	Window time.Duration

	// Cooldown is how long the breaker stays open before admitting a probe.
	Cooldown time.Duration

	// IsFailure decides whether an error counts against the breaker.
	// Defaults to every non-nil error except context.Canceled.
	IsFailure func(error) bool

	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(name string, from, to State)

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Breaker is safe for concurrent use; a single mutex guards all state.
type Breaker struct {
	name          string
	threshold     int
	window        time.Duration
	cooldown      time.Duration
	isFailure     func(error) bool
	onStateChange func(name string, from, to State)
	now           func() time.Time

	mu       sync.Mutex
	state    State
	failures []time.Time
	openedAt time.Time
	probing  bool
}

// New creates a closed Breaker.
func New(s Settings) *Breaker {
	if s.Threshold < 1 {
		s.Threshold = 1
	}
	if s.IsFailure == nil {
		s.IsFailure = DefaultIsFailure
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return &Breaker{
		name:          s.Name,
		threshold:     s.Threshold,
		window:        s.Window,
		cooldown:      s.Cooldown,
		isFailure:     s.IsFailure,
		onStateChange: s.OnStateChange,
		now:           s.Now,
		state:         StateClosed,
	}
}

// DefaultIsFailure counts every error except context cancellation.
func DefaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state, promoting Open to HalfOpen when the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	from, to := b.refreshLocked()
	state := b.state
	b.mu.Unlock()
	b.notify(from, to)
	return state
}

// Execute runs op if the breaker admits the call and records its outcome.
// A denied call returns an *OpenError without invoking op.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	probe, err := b.allow()
	if err != nil {
		return err
	}
	opErr := op(ctx)
	b.record(probe, opErr)
	return opErr
}

// allow decides whether a call may proceed and whether it is the probe.
func (b *Breaker) allow() (bool, error) {
	b.mu.Lock()
	from, to := b.refreshLocked()

	var (
		probe  bool
		denied *OpenError
	)
	switch b.state {
	case StateOpen:
		denied = &OpenError{Name: b.name, RetryAfter: b.openedAt.Add(b.cooldown).Sub(b.now())}
	case StateHalfOpen:
		if b.probing {
			denied = &OpenError{Name: b.name, RetryAfter: b.cooldown}
		} else {
			b.probing = true
			probe = true
		}
	}
	b.mu.Unlock()
	b.notify(from, to)

	if denied != nil {
		if denied.RetryAfter < 0 {
			denied.RetryAfter = 0
		}
		return false, denied
	}
	return probe, nil
}

func (b *Breaker) record(probe bool, err error) {
	failed := b.isFailure(err)

	b.mu.Lock()
	var from, to State
	switch {
	case probe:
		b.probing = false
		from = b.state
		switch {
		case failed:
			b.trip()
		case errors.Is(err, context.Canceled):
			// An abandoned probe leaves the breaker half-open for the next caller.
		default:
			b.state = StateClosed
			b.failures = b.failures[:0]
		}
		to = b.state
	case failed && b.state == StateClosed:
		now := b.now()
		b.failures = append(b.pruneLocked(now), now)
		if len(b.failures) >= b.threshold {
			from = b.state
			b.trip()
			to = b.state
		}
	}
	b.mu.Unlock()
	b.notify(from, to)
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = b.failures[:0]
}

// refreshLocked performs the lazy Open to HalfOpen transition.
func (b *Breaker) refreshLocked() (State, State) {
	if b.state == StateOpen && !b.now().Before(b.openedAt.Add(b.cooldown)) {
		b.state = StateHalfOpen
		b.probing = false
		return StateOpen, StateHalfOpen
	}
	return b.state, b.state
}

// pruneLocked drops failures that have left the window.
func (b *Breaker) pruneLocked(now time.Time) []time.Time {
	if b.window <= 0 {
		return b.failures
	}
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.failures) && !b.failures[i].After(cutoff) {
		i++
	}
	return append(b.failures[:0], b.failures[i:]...)
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}

// Package resilience provides circuit breaking and retry helpers for calls to
// external services.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// State is the state of a Breaker.
type State int

const (
	// StateClosed lets calls through.
	StateClosed State = iota
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets a single probe through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrOpen is returned when the breaker rejects a call.
var ErrOpen = eris.New("circuit breaker is open")

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// Name identifies the guarded service in logs and metrics.
	Name string
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Default 5.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before probing. Default 30s.
	Cooldown time.Duration
	// ShouldTrip decides whether an error counts as a failure. Nil counts
	// every non-nil error except context cancellation by the caller.
	ShouldTrip func(err error) bool
	// OnStateChange is called on every transition, under the breaker lock.
	OnStateChange func(name string, from, to State)
}

// Breaker is a consecutive-failure circuit breaker for one service.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool

	now func() time.Time
}

// NewBreaker creates a closed Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Name returns the configured service name.
func (b *Breaker) Name() string { return b.cfg.Name }

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call runs fn through b and returns its value.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if b == nil {
		return fn(ctx)
	}
	if err := b.admit(); err != nil {
		return zero, eris.Wrapf(err, "resilience: %s", b.cfg.Name)
	}
	v, err := fn(ctx)
	b.record(ctx, err)
	return v, err
}

// State reports the current state, accounting for an elapsed cooldown.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	b.setState(StateClosed)
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return ErrOpen
		}
		b.setState(StateHalfOpen)
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if !b.trips(ctx, err) {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.setState(StateClosed)
		}
		return
	}

	b.failures++
	switch {
	case b.state == StateHalfOpen:
		b.openedAt = b.now()
		b.setState(StateOpen)
	case b.failures >= b.cfg.FailureThreshold:
		b.openedAt = b.now()
		b.setState(StateOpen)
	}
}

func (b *Breaker) trips(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if b.cfg.ShouldTrip != nil {
		return b.cfg.ShouldTrip(err)
	}
	// The caller giving up is not a signal about the service.
	return ctx.Err() == nil
}

func (b *Breaker) setState(to State) {
	from := b.state
	b.state = to
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}

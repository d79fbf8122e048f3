// Package resilience provides a three-state circuit breaker (closed, open,
// half-open) used to shield callers of remote APIs from cascading failures.
// The hint generator wraps its chat-completion calls in one so that a dead
// upstream turns into fast rejections instead of piled-up timeouts.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] when the breaker is open and the reset
// timeout has not yet elapsed. Test with errors.Is.
var ErrOpen = errors.New("resilience: breaker open")

// State is the breaker's current operating mode.
type State int

const (
	// Closed forwards every call.
	Closed State = iota

	// Open rejects calls with [ErrOpen] until the reset timeout elapses.
	Open

	// HalfOpen lets a limited number of probe calls through. Enough probe
	// successes close the breaker; any probe failure re-opens it.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero-valued fields fall back to defaults.
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// MaxFailures is the number of consecutive failures while closed that
	// trips the breaker. Default 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing.
	// Default 30s.
	ResetTimeout time.Duration

	// ProbeBudget is how many probe calls the half-open state allows; that
	// many successes close the breaker. Default 2.
	ProbeBudget int
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	probeBudget  int

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probes      int
	probeFails  int
}

// NewBreaker creates a Breaker from cfg, applying defaults to zero fields.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.ProbeBudget <= 0 {
		cfg.ProbeBudget = 2
	}
	return &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		probeBudget:  cfg.ProbeBudget,
	}
}

// Do runs fn unless the breaker is open, in which case it returns [ErrOpen]
// without calling fn. fn's error is returned unchanged and drives the
// failure accounting.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case Open:
		if time.Since(b.lastFailure) < b.resetTimeout {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = HalfOpen
		b.probes = 0
		b.probeFails = 0
		slog.Info("resilience: breaker half-open", "name", b.name)

	case HalfOpen:
		if b.probes >= b.probeBudget {
			b.mu.Unlock()
			return ErrOpen
		}
	}

	probing := b.state == HalfOpen
	if probing {
		b.probes++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(probing)
	} else {
		b.onSuccess(probing)
	}
	return err
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure(probing bool) {
	b.lastFailure = time.Now()
	if probing {
		// One failed probe re-opens immediately.
		b.probeFails++
		b.state = Open
		b.failures = b.maxFailures
		slog.Warn("resilience: breaker re-opened", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.state = Open
		slog.Warn("resilience: breaker opened",
			"name", b.name, "consecutive_failures", b.failures)
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess(probing bool) {
	if probing {
		if b.probes-b.probeFails >= b.probeBudget {
			b.state = Closed
			b.failures = 0
			b.probes = 0
			b.probeFails = 0
			slog.Info("resilience: breaker closed", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// State reports the breaker's mode. An open breaker whose reset timeout has
// elapsed reports HalfOpen; the transition itself happens on the next Do.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && time.Since(b.lastFailure) >= b.resetTimeout {
		return HalfOpen
	}
	return b.state
}

// Reset forces the breaker back to Closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.probes = 0
	b.probeFails = 0
}

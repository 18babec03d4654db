package fetch

import (
	"sync"
	"time"
)

// breakerState represents the current state of a circuit breaker.
type breakerState int

const (
	// breakerClosed means requests are allowed.
	breakerClosed breakerState = iota
	// breakerOpen means requests are blocked.
	breakerOpen
	// breakerHalfOpen means one probe request is allowed to test recovery.
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// breaker implements the circuit breaker pattern for a single source.
// After threshold consecutive failures the circuit opens and fetches are
// skipped until the cooldown elapses; the next attempt is a half-open
// probe, and its outcome closes or reopens the circuit.
type breaker struct {
	mu          sync.Mutex
	threshold   int
	cooldown    time.Duration
	failures    int
	lastFailure time.Time
	state       breakerState
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	return &breaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     breakerClosed,
	}
}

// allow reports whether a fetch may proceed, moving an open circuit to
// half-open once the cooldown has elapsed.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerOpen && time.Since(b.lastFailure) >= b.cooldown {
		b.state = breakerHalfOpen
	}
	return b.state != breakerOpen
}

// success records a successful fetch, closing the circuit.
func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.state = breakerClosed
}

// failure records a failed fetch. The circuit opens when consecutive
// failures reach the threshold, or immediately on a failed half-open probe.
func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	if b.state == breakerHalfOpen || b.failures >= b.threshold {
		b.state = breakerOpen
	}
}

// currentState returns the state without side effects.
func (b *breaker) currentState() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

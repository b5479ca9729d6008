// Package circuitbreaker guards outbound adapter calls so a dead calendar
// provider or Redis instance sheds load fast instead of tying up request
// goroutines in timeouts.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker is rejecting calls.
var ErrOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

type Settings struct {
	Name string
	// MaxRequests is the consecutive-failure threshold that trips the
	// breaker.
	MaxRequests int
	// Interval is how long a failure streak is remembered; a quiet
	// period longer than this resets the count.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
}

type CircuitBreaker struct {
	settings Settings

	mu          sync.Mutex
	state       state
	failures    int
	lastFailure time.Time
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	return &CircuitBreaker{settings: settings, state: stateClosed}
}

// Execute runs fn unless the breaker is open. The first call after the
// open timeout is let through as a trial; its outcome closes or re-opens
// the breaker.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == stateOpen {
		if time.Since(cb.lastFailure) < cb.settings.Timeout {
			return ErrOpen
		}
		cb.state = stateHalfOpen
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.state = stateClosed
		cb.failures = 0
		return
	}

	if cb.settings.Interval > 0 && time.Since(cb.lastFailure) > cb.settings.Interval {
		cb.failures = 0
	}
	cb.failures++
	cb.lastFailure = time.Now()

	if cb.state == stateHalfOpen || cb.failures >= cb.settings.MaxRequests {
		cb.state = stateOpen
	}
}

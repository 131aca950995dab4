// Package circuitbreaker guards calls to upstream services (the bot-check
// verifier) so a dead dependency fails fast instead of tying up requests.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitBreaker struct {
	failureThreshold int
	cooldown         time.Duration

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
}

func New(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		state:            StateClosed,
	}
}

// Execute runs fn unless the breaker is open. After the cooldown a single
// probe is allowed through (half-open); its outcome closes or reopens the
// breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastFailure) <= cb.cooldown {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.failures = 0
	}

	err := fn()
	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold {
			cb.state = StateOpen
		}
		return err
	}

	cb.state = StateClosed
	cb.failures = 0
	return nil
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

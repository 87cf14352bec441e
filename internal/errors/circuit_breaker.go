package errors

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker refuses calls after repeated failures.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// CircuitBreaker shields the bot from a flapping oracle endpoint: after
// FailureThreshold consecutive failures it rejects calls for Cooldown, then
// lets a single probe through.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            breakerState
	consecutiveFails int
	openedAt         time.Time

	failureThreshold int
	cooldown         time.Duration
}

// NewCircuitBreaker builds a breaker tripping after failureThreshold
// consecutive failures and staying open for cooldown.
func NewCircuitBreaker(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
	}
}

// Call runs fn unless the breaker is open.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}

	cb.mu.Lock()
	switch cb.state {
	case breakerOpen:
		if time.Since(cb.openedAt) < cb.cooldown {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = breakerHalfOpen
	case breakerHalfOpen, breakerClosed:
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.consecutiveFails++
		if cb.state == breakerHalfOpen || cb.consecutiveFails >= cb.failureThreshold {
			cb.state = breakerOpen
			cb.openedAt = time.Now()
		}
		return err
	}

	cb.state = breakerClosed
	cb.consecutiveFails = 0
	return nil
}

// Open reports whether the breaker is currently rejecting calls.
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == breakerOpen && time.Since(cb.openedAt) < cb.cooldown
}

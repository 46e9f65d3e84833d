// Package circuitbreaker guards intent execution: a keeper hammering a
// failing intent trips its breaker and gets rejected until the reset
// timeout passes. Breakers are tracked per intent id.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/gabikreal1/AlgoFlow/pkg/metrics"
)

// CircuitBreaker implements the circuit breaker pattern for one intent
type CircuitBreaker struct {
	enabled       bool
	failureCount  int
	failureWindow time.Duration
	failThreshold int
	resetTimeout  time.Duration
	lastFailure   time.Time
	tripped       bool
	tripTime      time.Time
	now           func() time.Time
	mu            sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(enabled bool, threshold int, window time.Duration, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		enabled:       enabled,
		failThreshold: threshold,
		failureWindow: window,
		resetTimeout:  resetTimeout,
		now:           time.Now,
	}
}

// RecordFailure records a failure and trips the circuit if the threshold
// is exceeded within the window. Returns true if the circuit is open.
func (cb *CircuitBreaker) RecordFailure() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()

	// If the circuit is already tripped, check if it's time to try again
	if cb.tripped {
		if now.Sub(cb.tripTime) > cb.resetTimeout {
			cb.tripped = false
			cb.failureCount = 0
		} else {
			return true // Still tripped
		}
	}

	// Reset failure count if outside window
	if now.Sub(cb.lastFailure) > cb.failureWindow {
		cb.failureCount = 0
	}

	cb.failureCount++
	cb.lastFailure = now

	if cb.failureCount >= cb.failThreshold {
		cb.tripped = true
		cb.tripTime = now
		metrics.BreakerTrips.Inc()
		return true
	}

	return false
}

// IsOpen returns true if the circuit is open (tripped)
func (cb *CircuitBreaker) IsOpen() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// If tripped but reset timeout has passed, try again
	if cb.tripped && cb.now().Sub(cb.tripTime) > cb.resetTimeout {
		cb.tripped = false
		cb.failureCount = 0
		return false
	}

	return cb.tripped
}

// Reset manually resets the circuit breaker
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.tripped = false
	cb.failureCount = 0
}

// Set tracks one breaker per intent id, created lazily with shared
// settings.
type Set struct {
	enabled      bool
	threshold    int
	window       time.Duration
	resetTimeout time.Duration
	breakers     map[uint64]*CircuitBreaker
	mu           sync.Mutex
}

// NewSet creates an empty breaker set
func NewSet(enabled bool, threshold int, window time.Duration, resetTimeout time.Duration) *Set {
	return &Set{
		enabled:      enabled,
		threshold:    threshold,
		window:       window,
		resetTimeout: resetTimeout,
		breakers:     make(map[uint64]*CircuitBreaker),
	}
}

// For returns the breaker for one intent id, creating it on first use
func (s *Set) For(intentID uint64) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.breakers[intentID]
	if !ok {
		cb = NewCircuitBreaker(s.enabled, s.threshold, s.window, s.resetTimeout)
		s.breakers[intentID] = cb
	}
	return cb
}

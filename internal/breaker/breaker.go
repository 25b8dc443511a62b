// Package breaker implements the execution circuit breaker: a CLOSED/OPEN
// state machine over a consecutive-failure counter and a cooldown window.
package breaker

import (
	"sync"
	"time"
)

// Trip reason codes reported with CircuitBreakerTriggered events.
const (
	TripReasonConsecutiveFailures = "CONSECUTIVE_FAILURES"
	TripReasonPriceDeviation      = "PRICE_DEVIATION"
)

// CircuitBreaker halts execution for a cooldown period after repeated
// failures or a price-deviation trip. OPEN -> CLOSED happens lazily: the
// breaker is open iff the cooldown expiry lies in the future, so no
// explicit close transition exists.
type CircuitBreaker struct {
	mu sync.Mutex

	enabled           bool
	maxFailures       int
	failureCooldown   time.Duration
	deviationCooldown time.Duration

	consecutiveFailures int
	cooldownUntil       int64 // unix seconds, 0 when never tripped
}

// New creates a closed breaker. A disabled breaker never opens and ignores
// recorded outcomes.
func New(enabled bool, maxFailures int, failureCooldown, deviationCooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		enabled:           enabled,
		maxFailures:       maxFailures,
		failureCooldown:   failureCooldown,
		deviationCooldown: deviationCooldown,
	}
}

// Active reports whether the breaker is open at now.
func (b *CircuitBreaker) Active(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled && now.Unix() < b.cooldownUntil
}

// Status returns the active flag and the cooldown expiry (unix seconds,
// 0 when never tripped).
func (b *CircuitBreaker) Status(now time.Time) (bool, int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled && now.Unix() < b.cooldownUntil, b.cooldownUntil
}

// RecordSuccess resets the consecutive-failure counter. A success resets
// the tally regardless of breaker state.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
}

// RecordFailure increments the consecutive-failure tally and opens the
// breaker once the threshold is reached. Returns true when this failure
// tripped it.
func (b *CircuitBreaker) RecordFailure(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.enabled {
		return false
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.maxFailures {
		b.cooldownUntil = now.Add(b.failureCooldown).Unix()
		b.consecutiveFailures = 0
		return true
	}
	return false
}

// TripDeviation opens the breaker immediately, bypassing the tally. Used
// when the price-deviation guard fires.
func (b *CircuitBreaker) TripDeviation(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.enabled {
		return
	}
	b.cooldownUntil = now.Add(b.deviationCooldown).Unix()
}

// ConsecutiveFailures returns the current tally.
func (b *CircuitBreaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}

package chat

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen rejects a model call while the breaker cools down.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState is the breaker position for the upstream model.
type CircuitState int

const (
	// CircuitClosed passes every call through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the cooldown elapses.
	CircuitOpen
	// CircuitHalfOpen lets trial calls check whether the model recovered.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes the breaker guarding generation calls.
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures that open the circuit
	SuccessThreshold int           // trial successes that close it again
	Timeout          time.Duration // cooldown before trial calls are admitted
}

// DefaultCircuitBreakerConfig returns the thresholds used in production.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// CircuitBreaker stops the orchestrator from hammering a broken model
// provider. Consecutive failures open the circuit; after the cooldown a
// half-open trial phase decides whether it closes again. A single failed
// trial re-opens it immediately.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu         sync.Mutex
	state      CircuitState
	failStreak int
	trialWins  int
	reopenAt   time.Time
}

// NewCircuitBreaker builds a closed breaker; zero config fields take the
// production defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Allow reports whether a call may proceed. Crossing the cooldown
// deadline moves the circuit to half-open, so this takes the write lock.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if cb.now().Before(cb.reopenAt) {
			return ErrCircuitOpen
		}
		cb.state = CircuitHalfOpen
		cb.trialWins = 0
	}
	return nil
}

// Success records a completed call and closes the circuit once enough
// half-open trials succeed.
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failStreak = 0
	case CircuitHalfOpen:
		cb.trialWins++
		if cb.trialWins >= cb.cfg.SuccessThreshold {
			cb.toClosed()
		}
	}
}

// Failure records a failed call. A failed half-open trial re-opens the
// circuit without waiting for another full streak.
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failStreak++
	if cb.state == CircuitHalfOpen || cb.failStreak >= cb.cfg.FailureThreshold {
		cb.state = CircuitOpen
		cb.trialWins = 0
		cb.reopenAt = cb.now().Add(cb.cfg.Timeout)
	}
}

// State returns the current position of the breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.toClosed()
}

// toClosed clears all counters; callers hold cb.mu.
func (cb *CircuitBreaker) toClosed() {
	cb.state = CircuitClosed
	cb.failStreak = 0
	cb.trialWins = 0
	cb.reopenAt = time.Time{}
}

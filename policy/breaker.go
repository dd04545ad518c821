package policy

import (
	"context"
	"sync"
	"time"

	"github.com/bastionpool/bastion/internal/logging"
	"github.com/bastionpool/bastion/internal/metrics"
	"github.com/bastionpool/bastion/types"
)

// CircuitBreaker guards calls to a failing dependency.
//
// The breaker is a tri-state machine:
//
//   - Closed: calls flow through. Consecutive failures are counted; reaching
//     the failure threshold trips the breaker to Open.
//   - Open: calls are rejected immediately with CircuitBreakerOpenError until
//     the reset timeout elapses.
//   - HalfOpen: entered lazily by the first call after the reset timeout.
//     Consecutive successes close the breaker; any single failure reopens it.
//
// The Open → HalfOpen transition is lazy: it happens on the next attempted
// execution (or State() call) after the reset timeout, not on a timer.
//
// All methods are safe for concurrent use.
type CircuitBreaker struct {
	failureThreshold int
	successThreshold int
	resetTimeout     time.Duration
	metrics          types.MetricsCollector
	logger           types.Logger

	mu                   sync.Mutex
	state                types.BreakerState
	consecutiveFailures  int
	consecutiveSuccesses int
	nextAttemptAt        time.Time
	trips                uint64
}

// BreakerStats is a point-in-time snapshot of breaker state.
type BreakerStats struct {
	// State is the current breaker state.
	State types.BreakerState

	// ConsecutiveFailures is the current consecutive failure count.
	ConsecutiveFailures int

	// ConsecutiveSuccesses is the consecutive success count while HalfOpen.
	ConsecutiveSuccesses int

	// NextAttemptAt is when the next probing call is allowed.
	// Zero unless the breaker is Open.
	NextAttemptAt time.Time

	// Trips is the total number of Closed/HalfOpen → Open transitions.
	Trips uint64
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithFailureThreshold sets the number of consecutive failures that trip the
// breaker from Closed to Open.
//
// Default: 5
//
// Parameters:
//   - n: Number of consecutive failures required
//
// Returns:
//   - CircuitBreakerOption: Configuration option
func WithFailureThreshold(n int) CircuitBreakerOption {
	return func(c *CircuitBreaker) {
		c.failureThreshold = n
	}
}

// WithSuccessThreshold sets the number of consecutive successes required in
// HalfOpen before the breaker closes.
//
// Default: 2
//
// Parameters:
//   - n: Number of consecutive successes required
//
// Returns:
//   - CircuitBreakerOption: Configuration option
func WithSuccessThreshold(n int) CircuitBreakerOption {
	return func(c *CircuitBreaker) {
		c.successThreshold = n
	}
}

// WithResetTimeout sets how long the breaker stays Open before allowing a
// probing call.
//
// Default: 30s
//
// Parameters:
//   - d: Open-state cooldown duration
//
// Returns:
//   - CircuitBreakerOption: Configuration option
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(c *CircuitBreaker) {
		c.resetTimeout = d
	}
}

// WithBreakerMetrics sets the metrics collector for the circuit breaker.
//
// Parameters:
//   - m: The metrics collector
//
// Returns:
//   - CircuitBreakerOption: Configuration option
func WithBreakerMetrics(m types.MetricsCollector) CircuitBreakerOption {
	return func(c *CircuitBreaker) {
		c.metrics = m
	}
}

// WithBreakerLogger sets the logger for the circuit breaker.
//
// Parameters:
//   - l: The logger
//
// Returns:
//   - CircuitBreakerOption: Configuration option
func WithBreakerLogger(l types.Logger) CircuitBreakerOption {
	return func(c *CircuitBreaker) {
		c.logger = l
	}
}

// NewCircuitBreaker creates a new CircuitBreaker.
//
// Defaults: failureThreshold=5, successThreshold=2, resetTimeout=30s
//
// Parameters:
//   - opts: Optional configuration options
//
// Returns:
//   - *CircuitBreaker: A new circuit breaker in the Closed state
func NewCircuitBreaker(opts ...CircuitBreakerOption) *CircuitBreaker {
	c := &CircuitBreaker{
		failureThreshold: 5,
		successThreshold: 2,
		resetTimeout:     30 * time.Second,
		state:            types.BreakerClosed,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure metrics is never nil
	if c.metrics == nil {
		c.metrics = metrics.NewNopMetrics()
	}

	// Ensure logger is never nil
	if c.logger == nil {
		c.logger = logging.NewNopLogger()
	}

	return c
}

// Execute runs fn under breaker protection.
//
// If the breaker is Open and the reset timeout has not elapsed, fn is NOT
// invoked and a CircuitBreakerOpenError carrying the remaining cooldown is
// returned. If the reset timeout has elapsed, the breaker transitions to
// HalfOpen and fn is attempted.
//
// On success or failure the corresponding counters are updated; the original
// error from fn is always returned unchanged.
//
// Parameters:
//   - ctx: Context passed through to fn
//   - fn: The protected operation
//
// Returns:
//   - error: CircuitBreakerOpenError if rejected, otherwise fn's error
func (c *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.allow(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil {
		c.onFailure()
	} else {
		c.onSuccess()
	}

	return err
}

// State returns the current breaker state.
//
// Checking the state performs the lazy Open → HalfOpen transition as a side
// effect, so callers observing the state also observe the cooldown decay.
//
// Returns:
//   - types.BreakerState: The current state
func (c *CircuitBreaker) State() types.BreakerState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.currentState(time.Now())
}

// Stats returns a snapshot of the breaker counters and state.
//
// Returns:
//   - BreakerStats: Point-in-time snapshot
func (c *CircuitBreaker) Stats() BreakerStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return BreakerStats{
		State:                c.currentState(time.Now()),
		ConsecutiveFailures:  c.consecutiveFailures,
		ConsecutiveSuccesses: c.consecutiveSuccesses,
		NextAttemptAt:        c.nextAttemptAt,
		Trips:                c.trips,
	}
}

// Reset force-returns the breaker to Closed and clears all counters.
//
// Intended for manual operator intervention only; normal recovery goes
// through HalfOpen.
func (c *CircuitBreaker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.state
	c.state = types.BreakerClosed
	c.consecutiveFailures = 0
	c.consecutiveSuccesses = 0
	c.nextAttemptAt = time.Time{}

	if prev != types.BreakerClosed {
		c.metrics.SetCircuitBreakerState(int(types.BreakerClosed))
		c.logger.Info("circuit breaker manually reset", "from", prev.String())
	}
}

// allow decides whether a call may proceed, applying the lazy transition.
func (c *CircuitBreaker) allow() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.currentState(now) == types.BreakerOpen {
		remaining := c.nextAttemptAt.Sub(now)
		c.metrics.IncCircuitBreakerReject()

		return &types.CircuitBreakerOpenError{Remaining: remaining}
	}

	return nil
}

// currentState applies the lazy Open → HalfOpen transition. Callers must
// hold c.mu.
func (c *CircuitBreaker) currentState(now time.Time) types.BreakerState {
	if c.state == types.BreakerOpen && !now.Before(c.nextAttemptAt) {
		c.state = types.BreakerHalfOpen
		c.consecutiveSuccesses = 0
		c.metrics.SetCircuitBreakerState(int(types.BreakerHalfOpen))
		c.logger.Info("circuit breaker probing recovery", "state", "half-open")
	}

	return c.state
}

func (c *CircuitBreaker) onSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case types.BreakerClosed:
		c.consecutiveFailures = 0
	case types.BreakerHalfOpen:
		c.consecutiveSuccesses++
		if c.consecutiveSuccesses >= c.successThreshold {
			c.state = types.BreakerClosed
			c.consecutiveFailures = 0
			c.consecutiveSuccesses = 0
			c.nextAttemptAt = time.Time{}
			c.metrics.SetCircuitBreakerState(int(types.BreakerClosed))
			c.logger.Info("circuit breaker closed", "successes", c.successThreshold)
		}
	case types.BreakerOpen:
		// Unreachable: Open calls are rejected in allow.
	}
}

func (c *CircuitBreaker) onFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures++

	switch c.state {
	case types.BreakerHalfOpen:
		// Any failure while probing reopens immediately.
		c.trip()
	case types.BreakerClosed:
		if c.consecutiveFailures >= c.failureThreshold {
			c.trip()
		}
	case types.BreakerOpen:
	}
}

// trip moves the breaker to Open and starts the cooldown. Callers must
// hold c.mu.
func (c *CircuitBreaker) trip() {
	c.state = types.BreakerOpen
	c.consecutiveSuccesses = 0
	c.nextAttemptAt = time.Now().Add(c.resetTimeout)
	c.trips++

	c.metrics.IncCircuitBreakerTrip()
	c.metrics.SetCircuitBreakerState(int(types.BreakerOpen))
	c.logger.Warn("circuit breaker tripped",
		"failures", c.consecutiveFailures,
		"reset_timeout", c.resetTimeout,
	)
}

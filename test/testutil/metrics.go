package testutil

import (
	"sync"

	"github.com/bastionpool/bastion/types"
)

// TestMetricsCollector is a test implementation of types.MetricsCollector
// that tracks method calls for assertion in tests.
type TestMetricsCollector struct {
	mu sync.RWMutex

	// Acquire
	AcquireTotal  map[types.Role]int64
	AcquireErrors map[types.Role]int64
	AcquireWaits  map[types.Role][]float64

	// Session lifecycle
	SessionsCreated    map[types.Role]int64
	SessionsDestroyed  map[types.Role]int64
	SessionsEvicted    map[types.Role]int64
	ValidationFailures map[types.Role]int64

	// Gauges
	IdleSessions    int
	ActiveSessions  int
	WaitingAcquires int

	// Circuit breaker
	BreakerState   int
	BreakerTrips   int64
	BreakerRejects int64

	// Retry / rate limit
	Retries        int64
	RateLimitHits  int64
	RateLimitWaits []float64

	// Orchestrator
	ExecuteSuccesses int64
	ExecuteFailures  int64
}

// Compile-time assertion that TestMetricsCollector implements types.MetricsCollector.
var _ types.MetricsCollector = (*TestMetricsCollector)(nil)

// NewTestMetricsCollector creates a new test metrics collector.
func NewTestMetricsCollector() *TestMetricsCollector {
	return &TestMetricsCollector{
		AcquireTotal:       make(map[types.Role]int64),
		AcquireErrors:      make(map[types.Role]int64),
		AcquireWaits:       make(map[types.Role][]float64),
		SessionsCreated:    make(map[types.Role]int64),
		SessionsDestroyed:  make(map[types.Role]int64),
		SessionsEvicted:    make(map[types.Role]int64),
		ValidationFailures: make(map[types.Role]int64),
	}
}

func (c *TestMetricsCollector) IncAcquireTotal(role types.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AcquireTotal[role]++
}

func (c *TestMetricsCollector) IncAcquireError(role types.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AcquireErrors[role]++
}

func (c *TestMetricsCollector) ObserveAcquireWait(role types.Role, seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AcquireWaits[role] = append(c.AcquireWaits[role], seconds)
}

func (c *TestMetricsCollector) IncSessionCreated(role types.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SessionsCreated[role]++
}

func (c *TestMetricsCollector) IncSessionDestroyed(role types.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SessionsDestroyed[role]++
}

func (c *TestMetricsCollector) IncSessionEvicted(role types.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SessionsEvicted[role]++
}

func (c *TestMetricsCollector) IncValidationFailure(role types.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ValidationFailures[role]++
}

func (c *TestMetricsCollector) SetIdleSessions(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.IdleSessions = n
}

func (c *TestMetricsCollector) SetActiveSessions(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ActiveSessions = n
}

func (c *TestMetricsCollector) SetWaitingAcquires(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.WaitingAcquires = n
}

func (c *TestMetricsCollector) SetCircuitBreakerState(state int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BreakerState = state
}

func (c *TestMetricsCollector) IncCircuitBreakerTrip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BreakerTrips++
}

func (c *TestMetricsCollector) IncCircuitBreakerReject() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BreakerRejects++
}

func (c *TestMetricsCollector) IncRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Retries++
}

func (c *TestMetricsCollector) IncRateLimitHit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RateLimitHits++
}

func (c *TestMetricsCollector) ObserveRateLimitWait(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RateLimitWaits = append(c.RateLimitWaits, seconds)
}

func (c *TestMetricsCollector) IncExecuteSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ExecuteSuccesses++
}

func (c *TestMetricsCollector) IncExecuteFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ExecuteFailures++
}

// GetAcquireTotal returns the acquire count for a role.
func (c *TestMetricsCollector) GetAcquireTotal(role types.Role) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.AcquireTotal[role]
}

// GetSessionsCreated returns the created-session count for a role.
func (c *TestMetricsCollector) GetSessionsCreated(role types.Role) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.SessionsCreated[role]
}

// GetSessionsDestroyed returns the destroyed-session count for a role.
func (c *TestMetricsCollector) GetSessionsDestroyed(role types.Role) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.SessionsDestroyed[role]
}

// GetValidationFailures returns the probe failure count for a role.
func (c *TestMetricsCollector) GetValidationFailures(role types.Role) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.ValidationFailures[role]
}

// GetBreakerTrips returns the breaker trip count.
func (c *TestMetricsCollector) GetBreakerTrips() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.BreakerTrips
}

// GetRetries returns the retry count.
func (c *TestMetricsCollector) GetRetries() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.Retries
}

package vm

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"

	"github.com/bastionpool/bastion/types"
)

// Option configures a Collector.
type Option func(*Collector)

// WithPrefix sets the metric name prefix.
//
// Default: "bastion"
//
// Parameters:
//   - prefix: The prefix to use for all metric names
//
// Returns:
//   - Option: A configuration option
func WithPrefix(prefix string) Option {
	return func(c *Collector) {
		c.prefix = prefix
	}
}

// WithMetricsSet sets the metrics set to use.
//
// If provided, the collector will register metrics with this set instead of
// creating a new one. The caller is responsible for exposing this set
// (e.g., via metrics.WritePrometheus or a custom handler).
//
// Parameters:
//   - set: The metrics set to use
//
// Returns:
//   - Option: A configuration option
func WithMetricsSet(set *metrics.Set) Option {
	return func(c *Collector) {
		c.set = set
	}
}

// Collector implements types.MetricsCollector using VictoriaMetrics.
//
// All metrics are pre-created at initialization time for optimal performance.
// Thread-safe for concurrent use.
type Collector struct {
	set    *metrics.Set
	prefix string

	// Acquire metrics, per role
	acquireTotalPrimary  *metrics.Counter
	acquireTotalReplica  *metrics.Counter
	acquireErrorsPrimary *metrics.Counter
	acquireErrorsReplica *metrics.Counter
	acquireWaitPrimary   *metrics.Histogram
	acquireWaitReplica   *metrics.Histogram

	// Session lifecycle metrics, per role
	sessionsCreatedPrimary    *metrics.Counter
	sessionsCreatedReplica    *metrics.Counter
	sessionsDestroyedPrimary  *metrics.Counter
	sessionsDestroyedReplica  *metrics.Counter
	sessionsEvictedPrimary    *metrics.Counter
	sessionsEvictedReplica    *metrics.Counter
	validationFailuresPrimary *metrics.Counter
	validationFailuresReplica *metrics.Counter

	// Pool gauges
	idleSessions    atomic.Int64
	activeSessions  atomic.Int64
	waitingAcquires atomic.Int64

	// Circuit breaker metrics
	circuitState   atomic.Int64
	circuitTrips   *metrics.Counter
	circuitRejects *metrics.Counter

	// Retry / rate limit metrics
	retries       *metrics.Counter
	rateLimitHits *metrics.Counter
	rateLimitWait *metrics.Histogram

	// Orchestrator metrics
	executeSuccess *metrics.Counter
	executeFailure *metrics.Counter
}

// New creates a new VictoriaMetrics-based metrics collector.
//
// The collector creates its own metrics.Set and registers it globally.
// All metrics are pre-created at initialization for optimal performance.
//
// Parameters:
//   - opts: Configuration options (e.g., WithPrefix)
//
// Returns:
//   - *Collector: A new metrics collector ready for use
//
// Example:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//	pool, _ := bastion.NewPool(factory,
//	    bastion.WithMetrics(collector),
//	)
func New(opts ...Option) *Collector {
	c := &Collector{
		prefix: "bastion",
	}

	for _, opt := range opts {
		opt(c)
	}

	// If no set is provided, create a new one and register it globally.
	// If a set is provided, we assume the caller manages it.
	if c.set == nil {
		c.set = metrics.NewSet()
		metrics.RegisterSet(c.set)
	}

	c.initMetrics()

	return c
}

// initMetrics pre-creates all metrics with the configured prefix.
func (c *Collector) initMetrics() {
	p := c.prefix
	pri := string(types.RolePrimary)
	rep := string(types.RoleReplica)

	// Acquire metrics
	c.acquireTotalPrimary = c.set.NewCounter(fmt.Sprintf(`%s_acquire_total{role="%s"}`, p, pri))
	c.acquireTotalReplica = c.set.NewCounter(fmt.Sprintf(`%s_acquire_total{role="%s"}`, p, rep))
	c.acquireErrorsPrimary = c.set.NewCounter(fmt.Sprintf(`%s_acquire_errors_total{role="%s"}`, p, pri))
	c.acquireErrorsReplica = c.set.NewCounter(fmt.Sprintf(`%s_acquire_errors_total{role="%s"}`, p, rep))
	c.acquireWaitPrimary = c.set.NewHistogram(fmt.Sprintf(`%s_acquire_wait_seconds{role="%s"}`, p, pri))
	c.acquireWaitReplica = c.set.NewHistogram(fmt.Sprintf(`%s_acquire_wait_seconds{role="%s"}`, p, rep))

	// Session lifecycle metrics
	c.sessionsCreatedPrimary = c.set.NewCounter(fmt.Sprintf(`%s_sessions_created_total{role="%s"}`, p, pri))
	c.sessionsCreatedReplica = c.set.NewCounter(fmt.Sprintf(`%s_sessions_created_total{role="%s"}`, p, rep))
	c.sessionsDestroyedPrimary = c.set.NewCounter(fmt.Sprintf(`%s_sessions_destroyed_total{role="%s"}`, p, pri))
	c.sessionsDestroyedReplica = c.set.NewCounter(fmt.Sprintf(`%s_sessions_destroyed_total{role="%s"}`, p, rep))
	c.sessionsEvictedPrimary = c.set.NewCounter(fmt.Sprintf(`%s_sessions_evicted_total{role="%s"}`, p, pri))
	c.sessionsEvictedReplica = c.set.NewCounter(fmt.Sprintf(`%s_sessions_evicted_total{role="%s"}`, p, rep))
	c.validationFailuresPrimary = c.set.NewCounter(fmt.Sprintf(`%s_validation_failures_total{role="%s"}`, p, pri))
	c.validationFailuresReplica = c.set.NewCounter(fmt.Sprintf(`%s_validation_failures_total{role="%s"}`, p, rep))

	// Pool gauges - use gauges with callbacks
	c.set.NewGauge(fmt.Sprintf(`%s_idle_sessions`, p), func() float64 {
		return float64(c.idleSessions.Load())
	})
	c.set.NewGauge(fmt.Sprintf(`%s_active_sessions`, p), func() float64 {
		return float64(c.activeSessions.Load())
	})
	c.set.NewGauge(fmt.Sprintf(`%s_waiting_acquires`, p), func() float64 {
		return float64(c.waitingAcquires.Load())
	})

	// Circuit breaker metrics
	c.set.NewGauge(fmt.Sprintf(`%s_circuit_breaker_state`, p), func() float64 {
		return float64(c.circuitState.Load())
	})
	c.circuitTrips = c.set.NewCounter(fmt.Sprintf(`%s_circuit_breaker_trips_total`, p))
	c.circuitRejects = c.set.NewCounter(fmt.Sprintf(`%s_circuit_breaker_rejects_total`, p))

	// Retry / rate limit metrics
	c.retries = c.set.NewCounter(fmt.Sprintf(`%s_retries_total`, p))
	c.rateLimitHits = c.set.NewCounter(fmt.Sprintf(`%s_rate_limit_hits_total`, p))
	c.rateLimitWait = c.set.NewHistogram(fmt.Sprintf(`%s_rate_limit_wait_seconds`, p))

	// Orchestrator metrics
	c.executeSuccess = c.set.NewCounter(fmt.Sprintf(`%s_execute_success_total`, p))
	c.executeFailure = c.set.NewCounter(fmt.Sprintf(`%s_execute_failure_total`, p))
}

func (c *Collector) Set() *metrics.Set {
	return c.set
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
//
// Example:
//
//	http.HandleFunc("/metrics", collector.Handler)
func (c *Collector) Handler(w http.ResponseWriter, _ *http.Request) {
	c.set.WritePrometheus(w)
}

// WritePrometheus writes all metrics in Prometheus format to the given writer.
//
// Parameters:
//   - w: The writer to write metrics to
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}

// ----------------------
// Acquire / Release
// ----------------------

// IncAcquireTotal increments the total acquire operations counter.
func (c *Collector) IncAcquireTotal(role types.Role) {
	if role == types.RoleReplica {
		c.acquireTotalReplica.Inc()
	} else {
		c.acquireTotalPrimary.Inc()
	}
}

// IncAcquireError increments the acquire error counter.
func (c *Collector) IncAcquireError(role types.Role) {
	if role == types.RoleReplica {
		c.acquireErrorsReplica.Inc()
	} else {
		c.acquireErrorsPrimary.Inc()
	}
}

// ObserveAcquireWait records an acquire wait duration in seconds.
func (c *Collector) ObserveAcquireWait(role types.Role, seconds float64) {
	if role == types.RoleReplica {
		c.acquireWaitReplica.Update(seconds)
	} else {
		c.acquireWaitPrimary.Update(seconds)
	}
}

// ----------------------
// Session Lifecycle
// ----------------------

// IncSessionCreated increments the session creation counter.
func (c *Collector) IncSessionCreated(role types.Role) {
	if role == types.RoleReplica {
		c.sessionsCreatedReplica.Inc()
	} else {
		c.sessionsCreatedPrimary.Inc()
	}
}

// IncSessionDestroyed increments the session destruction counter.
func (c *Collector) IncSessionDestroyed(role types.Role) {
	if role == types.RoleReplica {
		c.sessionsDestroyedReplica.Inc()
	} else {
		c.sessionsDestroyedPrimary.Inc()
	}
}

// IncSessionEvicted increments the sweep eviction counter.
func (c *Collector) IncSessionEvicted(role types.Role) {
	if role == types.RoleReplica {
		c.sessionsEvictedReplica.Inc()
	} else {
		c.sessionsEvictedPrimary.Inc()
	}
}

// IncValidationFailure increments the probe failure counter.
func (c *Collector) IncValidationFailure(role types.Role) {
	if role == types.RoleReplica {
		c.validationFailuresReplica.Inc()
	} else {
		c.validationFailuresPrimary.Inc()
	}
}

// ----------------------
// Pool Gauges
// ----------------------

// SetIdleSessions sets the idle session count gauge.
func (c *Collector) SetIdleSessions(n int) {
	c.idleSessions.Store(int64(n))
}

// SetActiveSessions sets the active session count gauge.
func (c *Collector) SetActiveSessions(n int) {
	c.activeSessions.Store(int64(n))
}

// SetWaitingAcquires sets the queued acquire count gauge.
func (c *Collector) SetWaitingAcquires(n int) {
	c.waitingAcquires.Store(int64(n))
}

// ----------------------
// Circuit Breaker
// ----------------------

// SetCircuitBreakerState sets the circuit breaker state gauge.
func (c *Collector) SetCircuitBreakerState(state int) {
	c.circuitState.Store(int64(state))
}

// IncCircuitBreakerTrip increments the breaker trip counter.
func (c *Collector) IncCircuitBreakerTrip() {
	c.circuitTrips.Inc()
}

// IncCircuitBreakerReject increments the breaker rejection counter.
func (c *Collector) IncCircuitBreakerReject() {
	c.circuitRejects.Inc()
}

// ----------------------
// Retry / Rate Limit
// ----------------------

// IncRetry increments the retry counter.
func (c *Collector) IncRetry() {
	c.retries.Inc()
}

// IncRateLimitHit increments the rate limit hit counter.
func (c *Collector) IncRateLimitHit() {
	c.rateLimitHits.Inc()
}

// ObserveRateLimitWait records a rate limit wait duration in seconds.
func (c *Collector) ObserveRateLimitWait(seconds float64) {
	c.rateLimitWait.Update(seconds)
}

// ----------------------
// Orchestrator
// ----------------------

// IncExecuteSuccess increments the successful operation counter.
func (c *Collector) IncExecuteSuccess() {
	c.executeSuccess.Inc()
}

// IncExecuteFailure increments the failed operation counter.
func (c *Collector) IncExecuteFailure() {
	c.executeFailure.Inc()
}

// Compile-time interface check.
var _ types.MetricsCollector = (*Collector)(nil)

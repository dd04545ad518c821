package types

// MetricsCollector defines methods for collecting operational metrics.
//
// All session-scoped methods accept a Role parameter for labeling.
// Implementations should be thread-safe as methods may be called concurrently.
//
// Example usage with VictoriaMetrics (via contrib/metrics/vm):
//
//	import vmmetrics "github.com/bastionpool/bastion/contrib/metrics/vm"
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	pool, _ := bastion.NewPool(factory,
//	    bastion.WithMetrics(collector),
//	)
//
//	// Expose metrics via HTTP
//	http.HandleFunc("/metrics", collector.Handler)
type MetricsCollector interface {
	// ----------------------
	// Acquire / Release
	// ----------------------

	// IncAcquireTotal increments the total acquire operations counter.
	IncAcquireTotal(role Role)

	// IncAcquireError increments the acquire error counter.
	// Counted for timeouts, exhaustion, and factory failures.
	IncAcquireError(role Role)

	// ObserveAcquireWait records how long an acquire waited, in seconds.
	ObserveAcquireWait(role Role, seconds float64)

	// ----------------------
	// Session Lifecycle
	// ----------------------

	// IncSessionCreated increments the session creation counter.
	IncSessionCreated(role Role)

	// IncSessionDestroyed increments the session destruction counter.
	IncSessionDestroyed(role Role)

	// IncSessionEvicted increments the counter for sessions destroyed by the
	// eviction sweep (idle timeout or lifetime exceeded).
	IncSessionEvicted(role Role)

	// IncValidationFailure increments the counter for idle sessions the
	// validation probe rejected. These never feed the circuit breaker.
	IncValidationFailure(role Role)

	// ----------------------
	// Pool Gauges
	// ----------------------

	// SetIdleSessions sets the idle session count gauge.
	SetIdleSessions(n int)

	// SetActiveSessions sets the active session count gauge.
	SetActiveSessions(n int)

	// SetWaitingAcquires sets the queued acquire count gauge.
	SetWaitingAcquires(n int)

	// ----------------------
	// Circuit Breaker
	// ----------------------

	// SetCircuitBreakerState sets the circuit breaker state gauge.
	// State values: 0=closed, 1=open, 2=half-open (BreakerState order).
	SetCircuitBreakerState(state int)

	// IncCircuitBreakerTrip increments the counter when the breaker trips open.
	IncCircuitBreakerTrip()

	// IncCircuitBreakerReject increments the counter when a call is rejected
	// while the breaker is open.
	IncCircuitBreakerReject()

	// ----------------------
	// Retry / Rate Limit
	// ----------------------

	// IncRetry increments the retry counter. Called once per re-attempt.
	IncRetry()

	// IncRateLimitHit increments the counter when an acquire had to wait for
	// the rate-limit window to reset.
	IncRateLimitHit()

	// ObserveRateLimitWait records how long a caller waited on the rate
	// limiter, in seconds.
	ObserveRateLimitWait(seconds float64)

	// ----------------------
	// Orchestrator
	// ----------------------

	// IncExecuteSuccess increments the successful operation counter.
	IncExecuteSuccess()

	// IncExecuteFailure increments the failed operation counter.
	IncExecuteFailure()
}

// Package policy provides the resilience building blocks composed by the
// bastion orchestrator: a circuit breaker, a bounded-backoff retrier, and a
// window-based rate limiter.
//
// # Circuit Breaker
//
// The circuit breaker guards calls to a failing dependency with a tri-state
// machine (Closed, Open, HalfOpen):
//
//	cb := policy.NewCircuitBreaker(
//	    policy.WithFailureThreshold(5),
//	    policy.WithSuccessThreshold(2),
//	    policy.WithResetTimeout(30 * time.Second),
//	)
//	err := cb.Execute(ctx, func(ctx context.Context) error {
//	    return callDependency(ctx)
//	})
//
// While Open, calls are rejected with types.CircuitBreakerOpenError carrying
// the remaining cooldown. The first call after the cooldown transitions the
// breaker to HalfOpen; a run of consecutive successes closes it, any failure
// reopens it.
//
// # Retrier
//
// The retrier re-attempts transient failures with capped exponential backoff
// and optional jitter:
//
//	r := policy.NewRetrier(
//	    policy.WithMaxRetries(3),
//	    policy.WithInitialDelay(100 * time.Millisecond),
//	)
//	err := r.Execute(ctx, op, policy.DefaultClassifier)
//
// Retryability is always decided by a Classifier; when attempts are
// exhausted the last error is returned unchanged.
//
// # Rate Limiter
//
// The rate limiter enforces a window-bounded request budget and queues
// callers FIFO when the budget is exhausted:
//
//	rl := policy.NewRateLimiter(
//	    policy.WithLimit(100),
//	    policy.WithWindow(time.Minute),
//	)
//	if err := rl.Acquire(ctx); err != nil { ... }
//
// Server-reported limits are authoritative and can be applied at any time
// with Update.
package policy

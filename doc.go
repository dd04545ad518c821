// Package bastion provides a resilient connection pool for remote resources.
//
// Bastion manages a bounded set of sessions over vendor connections, with
// FIFO acquire queueing, periodic health and eviction sweeps, and graceful
// drain. Around the pool it layers independent resilience policies: a
// tri-state circuit breaker, bounded exponential-backoff retry, and a
// window-based rate limiter, composed by an Orchestrator.
//
// # Key Features
//
//   - Bounded Pooling: min/max session counts, eager warm-up, backfill after destroys
//   - FIFO Acquire Queue: strict arrival order with independent per-request timeouts
//   - Self-Healing: validation probes destroy broken sessions and backfill silently
//   - Circuit Breaker: Closed/Open/HalfOpen with lazy cooldown decay
//   - Retry: capped exponential backoff with jitter and pluggable retryability
//   - Rate Limiting: window budgets with server-authoritative updates
//
// # Basic Usage
//
//	// Wrap a vendor driver in a ConnectionFactory
//	factory := bastion.ConnectionFactoryFunc(func(ctx context.Context, role types.Role) (bastion.RawConnection, error) {
//	    return dialBackend(ctx, role)
//	})
//
//	pool, err := bastion.NewPool(factory,
//	    bastion.WithPoolConfig(bastion.DefaultPoolConfig()),
//	    bastion.WithValidationProbe(probe),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Close()
//
//	err = pool.WithConnection(ctx, types.RolePrimary, func(sess *bastion.Session) error {
//	    return doWork(ctx, sess.Conn())
//	})
//
// # Resilience
//
// The Orchestrator applies rate limiting, then the circuit breaker, then
// retry around an operation:
//
//	orch := bastion.NewOrchestrator(
//	    bastion.WithCircuitBreaker(policy.NewCircuitBreaker(policy.WithFailureThreshold(3))),
//	)
//	defer orch.Close()
//
//	err := orch.Execute(ctx, func(ctx context.Context) error {
//	    return pool.WithConnection(ctx, types.RolePrimary, query)
//	})
//
// # Error Handling
//
// Bastion uses standard Go errors with sentinel values for control flow:
//
//   - types.ErrPoolClosed: Operation on a closed pool
//   - types.ErrPoolDraining: Acquire during graceful shutdown
//   - types.ErrPoolExhausted: Acquire queue at its configured bound
//   - types.ErrAcquireTimeout: Queued acquire expired
//   - types.ErrConnectionFailed: Factory could not establish a connection
//   - types.ErrCircuitOpen: Circuit breaker rejected the call
//
// Check sentinels with errors.Is:
//
//	if errors.Is(err, types.ErrCircuitOpen) {
//	    // Back off; the breaker is cooling down
//	}
//
// Wrapped errors carry context and unwrap to their sentinel:
//
//	var timeoutErr *types.AcquireTimeoutError
//	if errors.As(err, &timeoutErr) {
//	    log.Printf("%s acquire timed out after %s with %d waiting",
//	        timeoutErr.Role, timeoutErr.Timeout, timeoutErr.Waiting)
//	}
//
// The original vendor error is always reachable through errors.Is/As; the
// retrier and orchestrator never replace it with synthetic wrappers.
//
// # Observability
//
// Logging and metrics default to no-ops. Wire real implementations with
// WithLogger (see contrib/logging/zap) and WithMetrics (see
// contrib/metrics/vm), and watch session lifecycle transitions with
// WithSessionObserver.
package bastion

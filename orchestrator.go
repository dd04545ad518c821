package bastion

import (
	"context"
	"sync/atomic"

	"github.com/bastionpool/bastion/internal/logging"
	"github.com/bastionpool/bastion/internal/metrics"
	"github.com/bastionpool/bastion/policy"
	"github.com/bastionpool/bastion/types"
)

// Orchestrator composes the resilience policies around a single operation.
//
// The layering is fixed: rate limiting is applied first (an operation that
// must wait for window budget should not burn breaker or retry state), the
// circuit breaker second, and retry outermost, so each retry attempt is
// individually admitted by the limiter and the breaker. Breaker rejections
// are not retried by the default classifier; the cooldown already tells the
// caller when trying again is worthwhile.
//
// All methods are safe for concurrent use.
type Orchestrator struct {
	limiter *policy.RateLimiter
	breaker *policy.CircuitBreaker
	retrier *policy.Retrier
	logger  types.Logger
	metrics types.MetricsCollector

	successes     atomic.Uint64
	failures      atomic.Uint64
	rateLimitHits atomic.Uint64
	totalRetries  atomic.Uint64
}

// OrchestratorStats aggregates counters across the composed policies.
type OrchestratorStats struct {
	// SuccessfulRequests counts Execute calls that returned nil.
	SuccessfulRequests uint64

	// FailedRequests counts Execute calls that returned an error, including
	// breaker rejections and rate-limit cancellations.
	FailedRequests uint64

	// RateLimitHits counts Execute calls that found the window budget
	// exhausted and had to queue.
	RateLimitHits uint64

	// CircuitBreakerTrips counts transitions into the Open state.
	CircuitBreakerTrips uint64

	// TotalRetries counts re-attempts across all Execute calls.
	TotalRetries uint64

	// BreakerState is the breaker's current state.
	BreakerState types.BreakerState

	// RateLimit is the current rate-limit window snapshot.
	RateLimit policy.RateLimitInfo
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRateLimiter sets the rate limiter.
//
// If not set, a limiter with package defaults is created.
//
// Parameters:
//   - l: The rate limiter
//
// Returns:
//   - OrchestratorOption: Configuration option
func WithRateLimiter(l *policy.RateLimiter) OrchestratorOption {
	return func(o *Orchestrator) {
		o.limiter = l
	}
}

// WithCircuitBreaker sets the circuit breaker.
//
// If not set, a breaker with package defaults is created.
//
// Parameters:
//   - b: The circuit breaker
//
// Returns:
//   - OrchestratorOption: Configuration option
func WithCircuitBreaker(b *policy.CircuitBreaker) OrchestratorOption {
	return func(o *Orchestrator) {
		o.breaker = b
	}
}

// WithRetrier sets the retrier.
//
// If not set, a retrier with package defaults is created.
//
// Parameters:
//   - r: The retrier
//
// Returns:
//   - OrchestratorOption: Configuration option
func WithRetrier(r *policy.Retrier) OrchestratorOption {
	return func(o *Orchestrator) {
		o.retrier = r
	}
}

// WithOrchestratorLogger sets the logger, also used for any policy the
// orchestrator creates itself.
//
// Parameters:
//   - l: The logger
//
// Returns:
//   - OrchestratorOption: Configuration option
func WithOrchestratorLogger(l types.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithOrchestratorMetrics sets the metrics collector, also used for any
// policy the orchestrator creates itself.
//
// Parameters:
//   - m: The metrics collector
//
// Returns:
//   - OrchestratorOption: Configuration option
func WithOrchestratorMetrics(m types.MetricsCollector) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// NewOrchestrator creates an Orchestrator.
//
// Policies not supplied through options are created with their package
// defaults, sharing the orchestrator's logger and metrics collector.
//
// Parameters:
//   - opts: Optional configuration options
//
// Returns:
//   - *Orchestrator: A new orchestrator
func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{}

	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = logging.NewNopLogger()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewNopMetrics()
	}

	if o.limiter == nil {
		o.limiter = policy.NewRateLimiter(
			policy.WithRateLimiterLogger(o.logger),
			policy.WithRateLimiterMetrics(o.metrics),
		)
	}
	if o.breaker == nil {
		o.breaker = policy.NewCircuitBreaker(
			policy.WithBreakerLogger(o.logger),
			policy.WithBreakerMetrics(o.metrics),
		)
	}
	if o.retrier == nil {
		o.retrier = policy.NewRetrier(
			policy.WithRetrierLogger(o.logger),
			policy.WithRetrierMetrics(o.metrics),
		)
	}

	return o
}

// execOptions holds per-call overrides.
type execOptions struct {
	rateLimit  bool
	retry      bool
	classifier policy.Classifier
}

// ExecOption adjusts a single Execute call.
type ExecOption func(*execOptions)

// SkipRateLimit bypasses rate-limit admission for this call.
//
// Returns:
//   - ExecOption: Per-call option
func SkipRateLimit() ExecOption {
	return func(e *execOptions) {
		e.rateLimit = false
	}
}

// SkipRetry disables retry for this call; the operation is attempted once.
//
// Returns:
//   - ExecOption: Per-call option
func SkipRetry() ExecOption {
	return func(e *execOptions) {
		e.retry = false
	}
}

// WithRetryClassifier overrides the retryability decision for this call.
//
// Parameters:
//   - fn: The classifier to use
//
// Returns:
//   - ExecOption: Per-call option
func WithRetryClassifier(fn policy.Classifier) ExecOption {
	return func(e *execOptions) {
		e.classifier = fn
	}
}

// Execute runs fn under the full resilience stack.
//
// Each attempt acquires rate-limit admission, then runs fn under breaker
// protection; failures are retried per the retrier's policy. The error
// returned is always the underlying cause unchanged: fn's error,
// CircuitBreakerOpenError, or ctx.Err(), never a synthetic wrapper.
//
// Parameters:
//   - ctx: Context for cancellation; bounds rate-limit waits and backoff sleeps
//   - fn: The operation to execute
//   - opts: Per-call overrides
//
// Returns:
//   - error: nil on success, otherwise the last underlying error
func (o *Orchestrator) Execute(ctx context.Context, fn func(ctx context.Context) error, opts ...ExecOption) error {
	eo := execOptions{rateLimit: true, retry: true}
	for _, opt := range opts {
		opt(&eo)
	}

	attempt := func(ctx context.Context) error {
		if eo.rateLimit {
			if o.limiter.Info().Remaining == 0 {
				o.rateLimitHits.Add(1)
			}
			if err := o.limiter.Acquire(ctx); err != nil {
				return err
			}
		}

		return o.breaker.Execute(ctx, fn)
	}

	var err error
	if eo.retry {
		classifier := eo.classifier
		if classifier == nil {
			classifier = policy.DefaultClassifier
		}
		counted := func(err error) bool {
			if classifier(err) {
				o.totalRetries.Add(1)

				return true
			}

			return false
		}
		err = o.retrier.Execute(ctx, attempt, counted)
	} else {
		err = attempt(ctx)
	}

	if err != nil {
		o.failures.Add(1)
		o.metrics.IncExecuteFailure()

		return err
	}

	o.successes.Add(1)
	o.metrics.IncExecuteSuccess()

	return nil
}

// UpdateRateLimit feeds server-reported limits into the rate limiter.
//
// Parameters:
//   - info: The server-reported window snapshot
func (o *Orchestrator) UpdateRateLimit(info policy.RateLimitInfo) {
	o.limiter.Update(info)
}

// Breaker returns the composed circuit breaker.
func (o *Orchestrator) Breaker() *policy.CircuitBreaker {
	return o.breaker
}

// Limiter returns the composed rate limiter.
func (o *Orchestrator) Limiter() *policy.RateLimiter {
	return o.limiter
}

// Retrier returns the composed retrier.
func (o *Orchestrator) Retrier() *policy.Retrier {
	return o.retrier
}

// Stats returns aggregate counters across the composed policies.
//
// Returns:
//   - OrchestratorStats: Point-in-time snapshot
func (o *Orchestrator) Stats() OrchestratorStats {
	bs := o.breaker.Stats()

	return OrchestratorStats{
		SuccessfulRequests:  o.successes.Load(),
		FailedRequests:      o.failures.Load(),
		RateLimitHits:       o.rateLimitHits.Load(),
		CircuitBreakerTrips: bs.Trips,
		TotalRetries:        o.totalRetries.Load(),
		BreakerState:        bs.State,
		RateLimit:           o.limiter.Info(),
	}
}

// Close releases orchestrator resources, failing any acquires queued on the
// rate limiter.
func (o *Orchestrator) Close() {
	o.limiter.Close()
}

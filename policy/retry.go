package policy

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/bastionpool/bastion/internal/logging"
	"github.com/bastionpool/bastion/internal/metrics"
	"github.com/bastionpool/bastion/types"
)

// Classifier decides whether an error is transient and worth retrying.
type Classifier func(err error) bool

// Retrier executes operations with bounded exponential backoff.
//
// An operation is attempted up to maxRetries+1 times. After a failure the
// retrier sleeps for min(initialDelay * multiplier^attempt, maxDelay), with
// optional jitter randomizing the delay within [delay/2, delay*1.5).
//
// Retryability is decided by an injected Classifier, never hardcoded. When
// attempts are exhausted the LAST error is returned unchanged, not a
// synthetic "retries exhausted" wrapper, so callers can pattern-match on
// the original cause.
//
// All methods are safe for concurrent use.
type Retrier struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       bool
	classifier   Classifier
	metrics      types.MetricsCollector
	logger       types.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// RetrierOption configures a Retrier.
type RetrierOption func(*Retrier)

// WithMaxRetries sets the maximum number of re-attempts after the first try.
//
// Default: 3
//
// Parameters:
//   - n: Maximum retry count (0 disables retries)
//
// Returns:
//   - RetrierOption: Configuration option
func WithMaxRetries(n int) RetrierOption {
	return func(r *Retrier) {
		r.maxRetries = n
	}
}

// WithInitialDelay sets the backoff delay before the first retry.
//
// Default: 100ms
//
// Parameters:
//   - d: Initial delay
//
// Returns:
//   - RetrierOption: Configuration option
func WithInitialDelay(d time.Duration) RetrierOption {
	return func(r *Retrier) {
		r.initialDelay = d
	}
}

// WithMaxDelay caps the backoff delay.
//
// Default: 10s
//
// Parameters:
//   - d: Maximum delay
//
// Returns:
//   - RetrierOption: Configuration option
func WithMaxDelay(d time.Duration) RetrierOption {
	return func(r *Retrier) {
		r.maxDelay = d
	}
}

// WithMultiplier sets the exponential backoff multiplier.
//
// Default: 2.0
//
// Parameters:
//   - m: Backoff multiplier (1.0 gives constant delay)
//
// Returns:
//   - RetrierOption: Configuration option
func WithMultiplier(m float64) RetrierOption {
	return func(r *Retrier) {
		r.multiplier = m
	}
}

// WithJitter enables or disables randomized backoff perturbation.
//
// Jitter avoids thundering-herd retries when many callers fail together.
//
// Default: true
//
// Parameters:
//   - enabled: true to randomize delays within [delay/2, delay*1.5)
//
// Returns:
//   - RetrierOption: Configuration option
func WithJitter(enabled bool) RetrierOption {
	return func(r *Retrier) {
		r.jitter = enabled
	}
}

// WithRandSource sets the PRNG used for jitter.
//
// Providing a seeded source makes jittered delays deterministic, which is
// useful in tests.
//
// Parameters:
//   - src: The random source
//
// Returns:
//   - RetrierOption: Configuration option
func WithRandSource(src rand.Source) RetrierOption {
	return func(r *Retrier) {
		r.rng = rand.New(src)
	}
}

// WithClassifier sets the default retryability classifier.
//
// Default: DefaultClassifier
//
// Parameters:
//   - fn: The classifier
//
// Returns:
//   - RetrierOption: Configuration option
func WithClassifier(fn Classifier) RetrierOption {
	return func(r *Retrier) {
		r.classifier = fn
	}
}

// WithRetrierMetrics sets the metrics collector for the retrier.
//
// Parameters:
//   - m: The metrics collector
//
// Returns:
//   - RetrierOption: Configuration option
func WithRetrierMetrics(m types.MetricsCollector) RetrierOption {
	return func(r *Retrier) {
		r.metrics = m
	}
}

// WithRetrierLogger sets the logger for the retrier.
//
// Parameters:
//   - l: The logger
//
// Returns:
//   - RetrierOption: Configuration option
func WithRetrierLogger(l types.Logger) RetrierOption {
	return func(r *Retrier) {
		r.logger = l
	}
}

// NewRetrier creates a new Retrier.
//
// Defaults: maxRetries=3, initialDelay=100ms, maxDelay=10s, multiplier=2.0,
// jitter=true, classifier=DefaultClassifier.
//
// Parameters:
//   - opts: Optional configuration options
//
// Returns:
//   - *Retrier: A new retrier
func NewRetrier(opts ...RetrierOption) *Retrier {
	r := &Retrier{
		maxRetries:   3,
		initialDelay: 100 * time.Millisecond,
		maxDelay:     10 * time.Second,
		multiplier:   2.0,
		jitter:       true,
		classifier:   DefaultClassifier,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	if r.metrics == nil {
		r.metrics = metrics.NewNopMetrics()
	}

	if r.logger == nil {
		r.logger = logging.NewNopLogger()
	}

	return r
}

// DefaultClassifier is the default retryability decision.
//
// Transient by default: network errors (including timeouts), connection
// factory failures, acquire timeouts, and pool exhaustion. Never transient:
// context cancellation, configuration errors, and circuit breaker rejections
// (the breaker's cooldown already informs backoff).
//
// Parameters:
//   - err: The error to classify
//
// Returns:
//   - bool: true if the error is worth retrying
func DefaultClassifier(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(err, types.ErrCircuitOpen) {
		return false
	}

	var cfgErr *types.ConfigurationError
	if errors.As(err, &cfgErr) {
		return false
	}

	if errors.Is(err, types.ErrConnectionFailed) ||
		errors.Is(err, types.ErrAcquireTimeout) ||
		errors.Is(err, types.ErrPoolExhausted) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}

// TransientClassifier builds a classifier that extends DefaultClassifier
// with an explicit list of additional transient signals, matched with
// errors.Is.
//
// Parameters:
//   - transient: Additional errors to treat as retryable
//
// Returns:
//   - Classifier: The combined classifier
func TransientClassifier(transient ...error) Classifier {
	return func(err error) bool {
		for _, t := range transient {
			if errors.Is(err, t) {
				return true
			}
		}

		return DefaultClassifier(err)
	}
}

// Execute runs fn with bounded retry.
//
// shouldRetry overrides the retrier's classifier for this call; pass nil to
// use the configured one. When a failure is non-retryable or attempts are
// exhausted, the error is returned immediately with no trailing sleep.
//
// Parameters:
//   - ctx: Context for cancellation; aborts backoff sleeps
//   - fn: The operation to attempt
//   - shouldRetry: Per-call classifier override (may be nil)
//
// Returns:
//   - error: nil on success, otherwise the last error from fn unchanged
func (r *Retrier) Execute(ctx context.Context, fn func(ctx context.Context) error, shouldRetry Classifier) error {
	if shouldRetry == nil {
		shouldRetry = r.classifier
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == r.maxRetries || !shouldRetry(lastErr) {
			return lastErr
		}

		delay := r.backoff(attempt)
		r.metrics.IncRetry()
		r.logger.Debug("retrying after transient failure",
			"attempt", attempt+1,
			"delay", delay,
			"error", lastErr,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// BaseDelay returns the backoff delay for the given attempt, before jitter.
//
// The delay is initialDelay * multiplier^attempt, capped at maxDelay, so it
// is non-decreasing in attempt.
//
// Parameters:
//   - attempt: Zero-based attempt index
//
// Returns:
//   - time.Duration: The capped exponential delay
func (r *Retrier) BaseDelay(attempt int) time.Duration {
	d := float64(r.initialDelay) * math.Pow(r.multiplier, float64(attempt))
	if d > float64(r.maxDelay) {
		d = float64(r.maxDelay)
	}

	return time.Duration(d)
}

// backoff returns the jittered delay for the given attempt.
//
// With jitter enabled the result is uniformly distributed in
// [base/2, base*1.5), bounded and deterministic under a fixed PRNG seed.
func (r *Retrier) backoff(attempt int) time.Duration {
	base := r.BaseDelay(attempt)
	if !r.jitter || base <= 0 {
		return base
	}

	r.rngMu.Lock()
	f := r.rng.Float64()
	r.rngMu.Unlock()

	return base/2 + time.Duration(f*float64(base))
}

package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bastionpool/bastion/internal/logging"
	"github.com/bastionpool/bastion/internal/metrics"
	"github.com/bastionpool/bastion/types"
)

// ErrLimiterClosed indicates an acquire was attempted on, or interrupted by,
// a closed rate limiter.
var ErrLimiterClosed = errors.New("bastion: rate limiter is closed")

// RateLimitInfo is a snapshot of the current rate-limit window.
type RateLimitInfo struct {
	// Limit is the number of requests permitted per window.
	Limit int

	// Remaining is the unused budget in the current window. Never negative.
	Remaining int

	// ResetAt is when the window refills to Limit.
	ResetAt time.Time
}

// RateLimiter is a window-based admission controller.
//
// Each window grants Limit requests; when the budget is exhausted callers
// queue and are granted FIFO when the window resets. The remote service's
// self-reported limits are authoritative: Update unconditionally overwrites
// the local estimate and may immediately release queued callers.
//
// A single rescheduling timer wakes the queue at the window reset; if the
// reset has not actually elapsed when it fires (clock skew), the timer is
// rescheduled rather than busy-polling.
//
// All methods are safe for concurrent use.
type RateLimiter struct {
	window  time.Duration
	metrics types.MetricsCollector
	logger  types.Logger

	mu        sync.Mutex
	limit     int
	remaining int
	resetAt   time.Time
	waiters   []*rlWaiter
	timer     *time.Timer
	closed    bool
}

// rlWaiter is one queued Acquire. granted is written under the limiter lock;
// the channel is buffered so grants never block the timer callback.
type rlWaiter struct {
	ch      chan struct{}
	granted bool
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithLimit sets the number of requests permitted per window.
//
// Default: 100
//
// Parameters:
//   - n: Requests per window
//
// Returns:
//   - RateLimiterOption: Configuration option
func WithLimit(n int) RateLimiterOption {
	return func(r *RateLimiter) {
		r.limit = n
		r.remaining = n
	}
}

// WithWindow sets the window duration.
//
// Default: 1m
//
// Parameters:
//   - d: Window duration
//
// Returns:
//   - RateLimiterOption: Configuration option
func WithWindow(d time.Duration) RateLimiterOption {
	return func(r *RateLimiter) {
		r.window = d
	}
}

// WithInitialRemaining sets the budget already available in the first
// window, for services that report consumed quota at startup.
//
// Default: same as the limit
//
// Parameters:
//   - n: Initial remaining budget
//
// Returns:
//   - RateLimiterOption: Configuration option
func WithInitialRemaining(n int) RateLimiterOption {
	return func(r *RateLimiter) {
		r.remaining = n
	}
}

// WithRateLimiterMetrics sets the metrics collector for the rate limiter.
//
// Parameters:
//   - m: The metrics collector
//
// Returns:
//   - RateLimiterOption: Configuration option
func WithRateLimiterMetrics(m types.MetricsCollector) RateLimiterOption {
	return func(r *RateLimiter) {
		r.metrics = m
	}
}

// WithRateLimiterLogger sets the logger for the rate limiter.
//
// Parameters:
//   - l: The logger
//
// Returns:
//   - RateLimiterOption: Configuration option
func WithRateLimiterLogger(l types.Logger) RateLimiterOption {
	return func(r *RateLimiter) {
		r.logger = l
	}
}

// NewRateLimiter creates a new RateLimiter.
//
// Defaults: limit=100, window=1m, remaining=limit.
//
// Parameters:
//   - opts: Optional configuration options
//
// Returns:
//   - *RateLimiter: A new rate limiter with a full first window
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		window:    time.Minute,
		limit:     100,
		remaining: 100,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.metrics == nil {
		r.metrics = metrics.NewNopMetrics()
	}

	if r.logger == nil {
		r.logger = logging.NewNopLogger()
	}

	r.resetAt = time.Now().Add(r.window)

	return r
}

// Acquire consumes one unit of the window budget.
//
// Returns immediately while budget remains. When the budget is exhausted the
// caller queues until the window resets (or the server reports new capacity
// via Update); queued callers are granted strictly FIFO.
//
// Parameters:
//   - ctx: Context for cancellation while queued
//
// Returns:
//   - error: nil when admitted, ctx.Err() if cancelled while queued,
//     ErrLimiterClosed if the limiter closes while waiting
func (r *RateLimiter) Acquire(ctx context.Context) error {
	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return ErrLimiterClosed
	}

	now := time.Now()
	r.refillLocked(now)

	// Fast path only when nobody is queued, preserving FIFO order.
	if r.remaining > 0 && len(r.waiters) == 0 {
		r.remaining--
		r.mu.Unlock()

		return nil
	}

	w := &rlWaiter{ch: make(chan struct{}, 1)}
	r.waiters = append(r.waiters, w)
	r.scheduleLocked(now)
	r.mu.Unlock()

	r.metrics.IncRateLimitHit()
	start := now

	select {
	case <-ctx.Done():
		r.mu.Lock()
		if w.granted {
			// Lost the race with a grant: refund the slot so it is not leaked.
			r.remaining++
			r.releaseWaitersLocked()
		} else {
			r.removeWaiterLocked(w)
		}
		r.mu.Unlock()

		return ctx.Err()
	case <-w.ch:
		r.mu.Lock()
		granted := w.granted
		r.mu.Unlock()

		if !granted {
			return ErrLimiterClosed
		}

		r.metrics.ObserveRateLimitWait(time.Since(start).Seconds())

		return nil
	}
}

// Update overwrites the local window with the server's self-reported limits.
//
// The server is authoritative; the local estimate is replaced
// unconditionally. If remaining capacity increased, queued callers are
// released immediately in FIFO order. Info values typically come from a
// vendor's rate-limit response headers.
//
// Parameters:
//   - info: The server-reported limit, remaining budget, and reset time
func (r *RateLimiter) Update(info RateLimitInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.limit = info.Limit
	r.remaining = info.Remaining
	if r.remaining < 0 {
		r.remaining = 0
	}
	if !info.ResetAt.IsZero() {
		r.resetAt = info.ResetAt
	}

	r.logger.Debug("rate limit updated from server",
		"limit", r.limit,
		"remaining", r.remaining,
		"reset_at", r.resetAt,
	)

	r.releaseWaitersLocked()
	if len(r.waiters) > 0 {
		r.scheduleLocked(time.Now())
	}
}

// Info returns a snapshot of the current window.
//
// The snapshot is read-only: when the reset time has already elapsed it
// reports the refilled budget without advancing the window, so polling Info
// never consumes a reset that queued acquires are waiting on.
//
// Returns:
//   - RateLimitInfo: The current limit, remaining budget, and reset time
func (r *RateLimiter) Info() RateLimitInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := RateLimitInfo{
		Limit:     r.limit,
		Remaining: r.remaining,
		ResetAt:   r.resetAt,
	}
	if !time.Now().Before(r.resetAt) {
		info.Remaining = r.limit
	}

	return info
}

// Waiting returns the number of queued acquires.
//
// Returns:
//   - int: Queue length
func (r *RateLimiter) Waiting() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.waiters)
}

// Close stops the reset timer and fails all queued acquires with
// ErrLimiterClosed. Close is safe to call multiple times.
func (r *RateLimiter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	if r.timer != nil {
		r.timer.Stop()
	}

	for _, w := range r.waiters {
		// granted stays false: the waiter wakes and observes the close.
		w.ch <- struct{}{}
	}
	r.waiters = nil
}

// refillLocked refills the window when the reset time has elapsed and hands
// the fresh budget to queued acquires first, so whichever caller observes the
// elapsed reset cannot consume it ahead of the queue. Callers must hold r.mu.
func (r *RateLimiter) refillLocked(now time.Time) {
	if now.Before(r.resetAt) {
		return
	}

	r.remaining = r.limit
	r.resetAt = now.Add(r.window)
	r.releaseWaitersLocked()
}

// releaseWaitersLocked grants queued acquires FIFO while budget remains.
// Callers must hold r.mu.
func (r *RateLimiter) releaseWaitersLocked() {
	for len(r.waiters) > 0 && r.remaining > 0 {
		w := r.waiters[0]
		r.waiters = r.waiters[1:]
		r.remaining--
		w.granted = true
		w.ch <- struct{}{}
	}
}

// removeWaiterLocked unlinks a cancelled waiter without disturbing the
// positions of other waiters. Callers must hold r.mu.
func (r *RateLimiter) removeWaiterLocked(target *rlWaiter) {
	for i, w := range r.waiters {
		if w == target {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			return
		}
	}
}

// scheduleLocked arms the reset timer for the current resetAt.
// Callers must hold r.mu.
func (r *RateLimiter) scheduleLocked(now time.Time) {
	d := r.resetAt.Sub(now)
	if d < 0 {
		d = 0
	}

	if r.timer == nil {
		r.timer = time.AfterFunc(d, r.onReset)
	} else {
		r.timer.Reset(d)
	}
}

// onReset fires at the computed window reset and wakes the queue.
func (r *RateLimiter) onReset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	now := time.Now()
	if now.Before(r.resetAt) {
		// Clock skew: the window has not actually elapsed. Reschedule
		// instead of busy-polling.
		r.scheduleLocked(now)
		return
	}

	r.refillLocked(now)

	if len(r.waiters) > 0 {
		r.scheduleLocked(now)
	}
}

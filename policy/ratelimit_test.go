package policy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterFastPath(t *testing.T) {
	rl := NewRateLimiter(WithLimit(3), WithWindow(time.Minute))
	defer rl.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Acquire(ctx))
	}

	info := rl.Info()
	assert.Equal(t, 3, info.Limit)
	assert.Equal(t, 0, info.Remaining)
}

func TestRateLimiterQueuesWhenExhausted(t *testing.T) {
	rl := NewRateLimiter(WithLimit(1), WithWindow(time.Minute))
	defer rl.Close()

	ctx := context.Background()
	require.NoError(t, rl.Acquire(ctx))

	ctx2, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	err := rl.Acquire(ctx2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, rl.Waiting())
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter(WithLimit(1), WithWindow(50*time.Millisecond))
	defer rl.Close()

	ctx := context.Background()
	require.NoError(t, rl.Acquire(ctx))

	// Exhausted; the second acquire waits for the window to reset.
	start := time.Now()
	require.NoError(t, rl.Acquire(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestRateLimiterFIFOOrder(t *testing.T) {
	rl := NewRateLimiter(WithLimit(2), WithWindow(time.Minute))
	defer rl.Close()

	ctx := context.Background()
	require.NoError(t, rl.Acquire(ctx))
	require.NoError(t, rl.Acquire(ctx))

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	// Enqueue three waiters one at a time so queue positions are known.
	for i := 1; i <= 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, rl.Acquire(ctx))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}()

		require.Eventually(t, func() bool {
			return rl.Waiting() == i
		}, time.Second, time.Millisecond)
	}

	// Server reports fresh capacity for all three.
	rl.Update(RateLimitInfo{Limit: 5, Remaining: 3, ResetAt: time.Now().Add(time.Minute)})
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestRateLimiterUpdateIsAuthoritative(t *testing.T) {
	rl := NewRateLimiter(WithLimit(10), WithWindow(time.Minute))
	defer rl.Close()

	resetAt := time.Now().Add(30 * time.Second)
	rl.Update(RateLimitInfo{Limit: 5, Remaining: 2, ResetAt: resetAt})

	info := rl.Info()
	assert.Equal(t, 5, info.Limit)
	assert.Equal(t, 2, info.Remaining)
	assert.WithinDuration(t, resetAt, info.ResetAt, time.Millisecond)

	// Negative remaining is clamped to zero.
	rl.Update(RateLimitInfo{Limit: 5, Remaining: -3, ResetAt: resetAt})
	assert.Equal(t, 0, rl.Info().Remaining)
}

func TestRateLimiterPartialRelease(t *testing.T) {
	rl := NewRateLimiter(WithLimit(1), WithWindow(time.Minute))
	defer rl.Close()

	ctx := context.Background()
	require.NoError(t, rl.Acquire(ctx))

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- rl.Acquire(ctx)
		}()
	}
	require.Eventually(t, func() bool {
		return rl.Waiting() == 2
	}, time.Second, time.Millisecond)

	// Only one unit of budget: exactly one waiter is released.
	rl.Update(RateLimitInfo{Limit: 1, Remaining: 1, ResetAt: time.Now().Add(time.Minute)})

	require.NoError(t, <-results)
	assert.Equal(t, 1, rl.Waiting())
}

func TestRateLimiterCancelWhileQueued(t *testing.T) {
	rl := NewRateLimiter(WithLimit(1), WithWindow(time.Minute))
	defer rl.Close()

	require.NoError(t, rl.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- rl.Acquire(ctx)
	}()
	require.Eventually(t, func() bool {
		return rl.Waiting() == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 0, rl.Waiting())
}

func TestRateLimiterClose(t *testing.T) {
	rl := NewRateLimiter(WithLimit(1), WithWindow(time.Minute))

	require.NoError(t, rl.Acquire(context.Background()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- rl.Acquire(context.Background())
	}()
	require.Eventually(t, func() bool {
		return rl.Waiting() == 1
	}, time.Second, time.Millisecond)

	rl.Close()
	assert.ErrorIs(t, <-errCh, ErrLimiterClosed)

	// Acquire after close fails immediately; double close is a no-op.
	assert.ErrorIs(t, rl.Acquire(context.Background()), ErrLimiterClosed)
	rl.Close()
}

func TestRateLimiterInitialRemaining(t *testing.T) {
	rl := NewRateLimiter(WithLimit(10), WithInitialRemaining(1), WithWindow(time.Minute))
	defer rl.Close()

	require.NoError(t, rl.Acquire(context.Background()))
	assert.Equal(t, 0, rl.Info().Remaining)
}

func TestRateLimiterInfoPollingDoesNotStarveWaiters(t *testing.T) {
	rl := NewRateLimiter(WithLimit(1), WithWindow(50*time.Millisecond))
	defer rl.Close()

	require.NoError(t, rl.Acquire(context.Background()))

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- rl.Acquire(ctx)
	}()
	require.Eventually(t, func() bool {
		return rl.Waiting() == 1
	}, time.Second, time.Millisecond)

	// Hammer Info while the acquire is queued. Snapshots must not consume
	// the window reset out from under the queue.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				rl.Info()
			}
		}
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("queued acquire starved while Info was being polled")
	}

	close(stop)
	wg.Wait()
}

func TestRateLimiterAcquireRefillServesQueueFirst(t *testing.T) {
	rl := NewRateLimiter(WithLimit(1), WithWindow(40*time.Millisecond))
	defer rl.Close()

	ctx := context.Background()
	require.NoError(t, rl.Acquire(ctx))

	done := make(chan error, 1)
	go func() { done <- rl.Acquire(ctx) }()
	require.Eventually(t, func() bool {
		return rl.Waiting() == 1
	}, time.Second, time.Millisecond)

	// Let the window elapse, then arrive late: the refill observed by this
	// call goes to the queued acquire, and this one waits its turn.
	time.Sleep(60 * time.Millisecond)
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err := rl.Acquire(ctx2)

	assert.NoError(t, <-done)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

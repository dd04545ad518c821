package bastion_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionpool/bastion"
	"github.com/bastionpool/bastion/test/testutil"
	"github.com/bastionpool/bastion/types"
)

// quietConfig returns a config whose sweeps stay out of the way.
func quietConfig() bastion.PoolConfig {
	cfg := bastion.DefaultPoolConfig()
	cfg.MinConnections = 2
	cfg.MaxConnections = 5
	cfg.AcquireTimeout = time.Second
	cfg.EvictionInterval = time.Hour
	cfg.HealthCheckInterval = 0

	return cfg
}

func newTestPool(t *testing.T, factory *testutil.MockFactory, opts ...bastion.Option) *bastion.Pool {
	t.Helper()

	opts = append([]bastion.Option{bastion.WithPoolConfig(quietConfig())}, opts...)
	pool, err := bastion.NewPool(factory, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	return pool
}

func TestNewPoolRequiresFactory(t *testing.T) {
	_, err := bastion.NewPool(nil)
	require.Error(t, err)

	var cfgErr *types.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNewPoolValidatesConfig(t *testing.T) {
	cfg := quietConfig()
	cfg.MinConnections = 10
	cfg.MaxConnections = 5

	_, err := bastion.NewPool(testutil.NewMockFactory(), bastion.WithPoolConfig(cfg))
	require.Error(t, err)

	var cfgErr *types.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "min_connections", cfgErr.Field)
}

func TestNewPoolWarmsUpMinConnections(t *testing.T) {
	factory := testutil.NewMockFactory()
	pool := newTestPool(t, factory)

	assert.Equal(t, 2, factory.Created())

	stats := pool.Stats()
	assert.Equal(t, 2, stats.Idle)
	assert.Equal(t, 0, stats.Active)
}

func TestNewPoolInitFailureIsFatal(t *testing.T) {
	dialErr := errors.New("dial refused")

	factory := testutil.NewMockFactory()
	created := 0
	factory.OnCreate = func(ctx context.Context, role types.Role) (bastion.RawConnection, error) {
		created++
		if created > 1 {
			return nil, dialErr
		}

		return &testutil.MockConn{Role: role}, nil
	}

	_, err := bastion.NewPool(factory, bastion.WithPoolConfig(quietConfig()))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConnectionFailed)
	assert.ErrorIs(t, err, dialErr)
}

func TestAcquireReusesIdleSession(t *testing.T) {
	factory := testutil.NewMockFactory()
	pool := newTestPool(t, factory)
	ctx := context.Background()

	sess, err := pool.Acquire(ctx, types.RolePrimary)
	require.NoError(t, err)
	assert.Equal(t, types.SessionActive, sess.State())

	require.NoError(t, pool.Release(sess, false))

	sess2, err := pool.Acquire(ctx, types.RolePrimary)
	require.NoError(t, err)
	require.NoError(t, pool.Release(sess2, false))

	// Both acquires were served from warm-up sessions.
	assert.Equal(t, 2, factory.Created())
}

func TestAcquireGrowsToMax(t *testing.T) {
	defer leaktest.Check(t)()

	factory := testutil.NewMockFactory()
	pool, err := bastion.NewPool(factory, bastion.WithPoolConfig(quietConfig()))
	require.NoError(t, err)
	defer func() { _ = pool.Close() }()
	ctx := context.Background()

	sessions := make([]*bastion.Session, 0, 5)
	for i := 0; i < 5; i++ {
		s, err := pool.Acquire(ctx, types.RolePrimary)
		require.NoError(t, err)
		sessions = append(sessions, s)
	}

	assert.Equal(t, 5, factory.Created())

	stats := pool.Stats()
	assert.Equal(t, 5, stats.Active)
	assert.Equal(t, 0, stats.Idle)

	for _, sess := range sessions {
		require.NoError(t, pool.Release(sess, false))
	}
}

func TestAcquireTimesOutAtCapacity(t *testing.T) {
	cfg := quietConfig()
	cfg.AcquireTimeout = 100 * time.Millisecond

	factory := testutil.NewMockFactory()
	pool, err := bastion.NewPool(factory, bastion.WithPoolConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	ctx := context.Background()
	sessions := make([]*bastion.Session, 0, 5)
	for i := 0; i < 5; i++ {
		sess, err := pool.Acquire(ctx, types.RolePrimary)
		require.NoError(t, err)
		sessions = append(sessions, sess)
	}

	start := time.Now()
	_, err = pool.Acquire(ctx, types.RolePrimary)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrAcquireTimeout)

	var timeoutErr *types.AcquireTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, types.RolePrimary, timeoutErr.Role)
	assert.Equal(t, 100*time.Millisecond, timeoutErr.Timeout)

	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)

	for _, sess := range sessions {
		require.NoError(t, pool.Release(sess, false))
	}
}

func TestWaiterTimeoutDoesNotAffectOthers(t *testing.T) {
	cfg := quietConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1
	cfg.AcquireTimeout = 5 * time.Second

	factory := testutil.NewMockFactory()
	pool, err := bastion.NewPool(factory, bastion.WithPoolConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	ctx := context.Background()
	sess, err := pool.Acquire(ctx, types.RolePrimary)
	require.NoError(t, err)

	// First waiter gives up early; second is served when the session comes
	// back, keeping its own queue position and clock.
	firstCtx, firstCancel := context.WithTimeout(ctx, 80*time.Millisecond)
	defer firstCancel()

	firstErr := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(firstCtx, types.RolePrimary)
		firstErr <- err
	}()
	require.Eventually(t, func() bool {
		return pool.Stats().Waiting == 1
	}, time.Second, time.Millisecond)

	secondDone := make(chan error, 1)
	go func() {
		s, err := pool.Acquire(ctx, types.RolePrimary)
		if err == nil {
			err = pool.Release(s, false)
		}
		secondDone <- err
	}()
	require.Eventually(t, func() bool {
		return pool.Stats().Waiting == 2
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, <-firstErr, context.DeadlineExceeded)

	require.NoError(t, pool.Release(sess, false))
	assert.NoError(t, <-secondDone)
}

func TestReleaseHandsOffFIFO(t *testing.T) {
	cfg := quietConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1
	cfg.AcquireTimeout = 5 * time.Second

	factory := testutil.NewMockFactory()
	pool, err := bastion.NewPool(factory, bastion.WithPoolConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	ctx := context.Background()
	sess, err := pool.Acquire(ctx, types.RolePrimary)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 1; i <= 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := pool.Acquire(ctx, types.RolePrimary)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			assert.NoError(t, pool.Release(s, false))
		}()

		require.Eventually(t, func() bool {
			return pool.Stats().Waiting == i
		}, time.Second, time.Millisecond)
	}

	require.NoError(t, pool.Release(sess, false))
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order)
	// The single session served everyone; no extra connections were dialed.
	assert.Equal(t, 1, factory.Created())
}

func TestReleaseDestroyBackfillsToMin(t *testing.T) {
	factory := testutil.NewMockFactory()
	metrics := testutil.NewTestMetricsCollector()
	pool := newTestPool(t, factory, bastion.WithMetrics(metrics))
	ctx := context.Background()

	sess, err := pool.Acquire(ctx, types.RolePrimary)
	require.NoError(t, err)
	require.NoError(t, pool.Release(sess, true))

	require.Eventually(t, func() bool {
		stats := pool.Stats()

		return stats.Idle == 2 && stats.Active == 0
	}, time.Second, time.Millisecond)

	assert.Equal(t, int64(1), metrics.GetSessionsDestroyed(types.RolePrimary))
	assert.Equal(t, 3, factory.Created())
}

func TestReleaseDestroysErrorFlaggedSession(t *testing.T) {
	factory := testutil.NewMockFactory()
	pool := newTestPool(t, factory)
	ctx := context.Background()

	sess, err := pool.Acquire(ctx, types.RolePrimary)
	require.NoError(t, err)

	sess.MarkError()
	require.NoError(t, pool.Release(sess, false))

	assert.Equal(t, types.SessionClosed, sess.State())
	conn := sess.Conn().(*testutil.MockConn)
	assert.True(t, conn.Closed())
}

func TestReleaseAfterMaxLifetimeDestroys(t *testing.T) {
	cfg := quietConfig()
	cfg.MaxLifetime = 30 * time.Millisecond

	factory := testutil.NewMockFactory()
	pool, err := bastion.NewPool(factory, bastion.WithPoolConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	ctx := context.Background()
	sess, err := pool.Acquire(ctx, types.RolePrimary)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, pool.Release(sess, false))

	assert.Equal(t, types.SessionClosed, sess.State())

	// Backfill restores the minimum with a fresh session.
	require.Eventually(t, func() bool {
		return pool.Stats().Idle >= 2
	}, time.Second, time.Millisecond)
}

func TestReleaseTwiceFails(t *testing.T) {
	factory := testutil.NewMockFactory()
	pool := newTestPool(t, factory)

	sess, err := pool.Acquire(context.Background(), types.RolePrimary)
	require.NoError(t, err)

	require.NoError(t, pool.Release(sess, false))
	assert.ErrorIs(t, pool.Release(sess, false), types.ErrSessionNotActive)
	assert.ErrorIs(t, pool.Release(nil, false), types.ErrSessionNotActive)
}

func TestValidationFailureIsAbsorbed(t *testing.T) {
	factory := testutil.NewMockFactory()
	probe := testutil.NewMockProbe()
	metrics := testutil.NewTestMetricsCollector()

	bad := make(map[bastion.RawConnection]bool)
	var mu sync.Mutex
	probe.OnCheck = func(ctx context.Context, conn bastion.RawConnection) error {
		mu.Lock()
		defer mu.Unlock()
		if bad[conn] {
			return errors.New("stale connection")
		}

		return nil
	}

	pool := newTestPool(t, factory,
		bastion.WithValidationProbe(probe),
		bastion.WithMetrics(metrics),
	)
	ctx := context.Background()

	// Poison every idle connection, then acquire: the pool must absorb the
	// probe failures and serve a freshly created session.
	mu.Lock()
	for _, c := range factory.Conns() {
		bad[c] = true
	}
	mu.Unlock()

	sess, err := pool.Acquire(ctx, types.RolePrimary)
	require.NoError(t, err)
	require.NoError(t, pool.Release(sess, false))

	assert.Equal(t, int64(2), metrics.GetValidationFailures(types.RolePrimary))
	assert.GreaterOrEqual(t, factory.Created(), 3)
}

func TestMaxPendingAcquires(t *testing.T) {
	cfg := quietConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1
	cfg.MaxPendingAcquires = 1
	cfg.AcquireTimeout = 5 * time.Second

	factory := testutil.NewMockFactory()
	pool, err := bastion.NewPool(factory, bastion.WithPoolConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	ctx := context.Background()
	sess, err := pool.Acquire(ctx, types.RolePrimary)
	require.NoError(t, err)

	waiterErr := make(chan error, 1)
	go func() {
		s, err := pool.Acquire(ctx, types.RolePrimary)
		if err == nil {
			err = pool.Release(s, false)
		}
		waiterErr <- err
	}()
	require.Eventually(t, func() bool {
		return pool.Stats().Waiting == 1
	}, time.Second, time.Millisecond)

	// Queue is at its bound: fail fast instead of queueing.
	_, err = pool.Acquire(ctx, types.RolePrimary)
	assert.ErrorIs(t, err, types.ErrPoolExhausted)

	require.NoError(t, pool.Release(sess, false))
	assert.NoError(t, <-waiterErr)
}

func TestAcquireContextCancel(t *testing.T) {
	cfg := quietConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1
	cfg.AcquireTimeout = 5 * time.Second

	factory := testutil.NewMockFactory()
	pool, err := bastion.NewPool(factory, bastion.WithPoolConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	sess, err := pool.Acquire(context.Background(), types.RolePrimary)
	require.NoError(t, err)
	defer func() { _ = pool.Release(sess, false) }()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(ctx, types.RolePrimary)
		errCh <- err
	}()
	require.Eventually(t, func() bool {
		return pool.Stats().Waiting == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 0, pool.Stats().Waiting)
}

func TestReplicaFallsBackToPrimary(t *testing.T) {
	factory := testutil.NewMockFactory()
	pool := newTestPool(t, factory)

	// Warm-up sessions are primary; a replica request may use one.
	sess, err := pool.Acquire(context.Background(), types.RoleReplica)
	require.NoError(t, err)
	assert.Equal(t, types.RolePrimary, sess.Role())
	require.NoError(t, pool.Release(sess, false))
}

func TestWithConnection(t *testing.T) {
	factory := testutil.NewMockFactory()
	pool := newTestPool(t, factory)
	ctx := context.Background()

	var seen *bastion.Session
	err := pool.WithConnection(ctx, types.RolePrimary, func(sess *bastion.Session) error {
		seen = sess

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seen.QueryCount())

	// The session went back to the pool even though fn failed.
	opErr := errors.New("query failed")
	err = pool.WithConnection(ctx, types.RolePrimary, func(sess *bastion.Session) error {
		return opErr
	})
	assert.Equal(t, opErr, err)
	assert.Equal(t, 0, pool.Stats().Active)
}

func TestEvictionSweepRespectsMinimum(t *testing.T) {
	cfg := quietConfig()
	cfg.MinConnections = 2
	cfg.MaxConnections = 5
	cfg.IdleTimeout = 20 * time.Millisecond
	cfg.EvictionInterval = 20 * time.Millisecond

	factory := testutil.NewMockFactory()
	pool, err := bastion.NewPool(factory, bastion.WithPoolConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	// Grow the pool to four idle sessions.
	ctx := context.Background()
	sessions := make([]*bastion.Session, 0, 4)
	for i := 0; i < 4; i++ {
		sess, err := pool.Acquire(ctx, types.RolePrimary)
		require.NoError(t, err)
		sessions = append(sessions, sess)
	}
	for _, sess := range sessions {
		require.NoError(t, pool.Release(sess, false))
	}
	require.Equal(t, 4, pool.Stats().Idle)

	// Idle-timeout eviction trims the surplus but never below the minimum.
	require.Eventually(t, func() bool {
		return pool.Stats().Idle == 2
	}, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 2, pool.Stats().Idle)
}

func TestHealthSweepDestroysAndBackfills(t *testing.T) {
	cfg := quietConfig()
	cfg.HealthCheckInterval = 20 * time.Millisecond

	factory := testutil.NewMockFactory()
	probe := testutil.NewMockProbe()
	metrics := testutil.NewTestMetricsCollector()

	var mu sync.Mutex
	bad := make(map[bastion.RawConnection]bool)
	probe.OnCheck = func(ctx context.Context, conn bastion.RawConnection) error {
		mu.Lock()
		defer mu.Unlock()
		if bad[conn] {
			return errors.New("probe failed")
		}

		return nil
	}

	pool, err := bastion.NewPool(factory,
		bastion.WithPoolConfig(cfg),
		bastion.WithValidationProbe(probe),
		bastion.WithMetrics(metrics),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	// Poison one of the two warm-up connections.
	mu.Lock()
	victim := factory.Conns()[0]
	bad[victim] = true
	mu.Unlock()

	require.Eventually(t, func() bool {
		return victim.Closed() && pool.Stats().Idle == 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(1), metrics.GetValidationFailures(types.RolePrimary))
	assert.Equal(t, 3, factory.Created())
}

func TestDrainRejectsWaitersAndClosesIdle(t *testing.T) {
	defer leaktest.Check(t)()

	cfg := quietConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1
	cfg.AcquireTimeout = 5 * time.Second

	factory := testutil.NewMockFactory()
	pool, err := bastion.NewPool(factory, bastion.WithPoolConfig(cfg))
	require.NoError(t, err)

	ctx := context.Background()
	sess, err := pool.Acquire(ctx, types.RolePrimary)
	require.NoError(t, err)

	waiterErr := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(ctx, types.RolePrimary)
		waiterErr <- err
	}()
	require.Eventually(t, func() bool {
		return pool.Stats().Waiting == 1
	}, time.Second, time.Millisecond)

	drainDone := make(chan error, 1)
	go func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		drainDone <- pool.Drain(drainCtx)
	}()

	// The queued waiter is rejected immediately.
	assert.ErrorIs(t, <-waiterErr, types.ErrPoolDraining)

	// New acquires are rejected while draining.
	require.Eventually(t, func() bool {
		_, err := pool.Acquire(ctx, types.RolePrimary)

		return errors.Is(err, types.ErrPoolDraining) || errors.Is(err, types.ErrPoolClosed)
	}, time.Second, time.Millisecond)

	// Drain completes once the active session comes back.
	require.NoError(t, pool.Release(sess, false))
	assert.NoError(t, <-drainDone)

	assert.Equal(t, 0, factory.OpenConns())

	_, err = pool.Acquire(ctx, types.RolePrimary)
	assert.ErrorIs(t, err, types.ErrPoolClosed)
}

func TestDrainForceClosesOnDeadline(t *testing.T) {
	defer leaktest.Check(t)()

	factory := testutil.NewMockFactory()
	pool, err := bastion.NewPool(factory, bastion.WithPoolConfig(quietConfig()))
	require.NoError(t, err)

	sess, err := pool.Acquire(context.Background(), types.RolePrimary)
	require.NoError(t, err)

	drainCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = pool.Drain(drainCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The straggler was force-closed.
	conn := sess.Conn().(*testutil.MockConn)
	assert.True(t, conn.Closed())
	assert.Equal(t, 0, factory.OpenConns())
}

func TestCloseIsIdempotent(t *testing.T) {
	factory := testutil.NewMockFactory()
	pool, err := bastion.NewPool(factory, bastion.WithPoolConfig(quietConfig()))
	require.NoError(t, err)

	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())
}

func TestSessionObserverEvents(t *testing.T) {
	factory := testutil.NewMockFactory()
	rec := testutil.NewEventRecorder()
	pool := newTestPool(t, factory, bastion.WithSessionObserver(rec.Observe))

	sess, err := pool.Acquire(context.Background(), types.RolePrimary)
	require.NoError(t, err)
	require.NoError(t, pool.Release(sess, true))

	require.Eventually(t, func() bool {
		return rec.Count(types.SessionDestroyed) >= 1
	}, time.Second, time.Millisecond)

	assert.GreaterOrEqual(t, rec.Count(types.SessionCreated), 2)
	assert.Equal(t, 1, rec.Count(types.SessionAcquired))
	assert.Equal(t, 1, rec.Count(types.SessionReleased))
}

func TestPoolStats(t *testing.T) {
	factory := testutil.NewMockFactory()
	pool := newTestPool(t, factory)

	sess, err := pool.Acquire(context.Background(), types.RolePrimary)
	require.NoError(t, err)

	stats := pool.Stats()
	assert.Equal(t, 1, stats.Idle)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 0, stats.Waiting)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Min)
	assert.Equal(t, 5, stats.Max)

	require.NoError(t, pool.Release(sess, false))
}

func TestConcurrentAcquireRelease(t *testing.T) {
	defer leaktest.Check(t)()

	factory := testutil.NewMockFactory()
	pool, err := bastion.NewPool(factory, bastion.WithPoolConfig(quietConfig()))
	require.NoError(t, err)
	defer func() { _ = pool.Close() }()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				err := pool.WithConnection(ctx, types.RolePrimary, func(sess *bastion.Session) error {
					return nil
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	stats := pool.Stats()
	assert.Equal(t, 0, stats.Active)
	assert.LessOrEqual(t, stats.Total, 5)
}

func TestAcquireFailsWhenDrainRacesValidation(t *testing.T) {
	factory := testutil.NewMockFactory()

	var pool *bastion.Pool
	probe := testutil.NewMockProbe()
	probe.OnCheck = func(ctx context.Context, conn bastion.RawConnection) error {
		// The pool shuts down while the validation round-trip is in flight.
		_ = pool.Close()

		return nil
	}

	cfg := quietConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1

	var err error
	pool, err = bastion.NewPool(factory,
		bastion.WithPoolConfig(cfg),
		bastion.WithValidationProbe(probe),
	)
	require.NoError(t, err)

	_, err = pool.Acquire(context.Background(), types.RolePrimary)
	assert.ErrorIs(t, err, types.ErrPoolDraining)

	// The validated session was destroyed, not handed out on a closed pool.
	assert.Equal(t, 0, factory.OpenConns())
}

func TestDrainDeadlineBoundsSweepWait(t *testing.T) {
	var creates atomic.Int32
	factory := testutil.NewMockFactory()
	factory.OnCreate = func(ctx context.Context, role types.Role) (bastion.RawConnection, error) {
		if creates.Add(1) > 1 {
			// Replenish creates stall well past the drain deadline.
			time.Sleep(600 * time.Millisecond)
		}

		return &testutil.MockConn{Role: role}, nil
	}

	cfg := quietConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1

	pool, err := bastion.NewPool(factory, bastion.WithPoolConfig(cfg))
	require.NoError(t, err)

	sess, err := pool.Acquire(context.Background(), types.RolePrimary)
	require.NoError(t, err)
	require.NoError(t, pool.Release(sess, true))

	// The backfill create is now in flight and sleeping.
	require.Eventually(t, func() bool {
		return creates.Load() == 2
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = pool.Drain(ctx)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 400*time.Millisecond)
}

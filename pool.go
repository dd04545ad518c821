package bastion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bastionpool/bastion/internal/logging"
	"github.com/bastionpool/bastion/internal/metrics"
	"github.com/bastionpool/bastion/types"
)

// poolState tracks the pool lifecycle.
type poolState int32

const (
	poolRunning poolState = iota
	poolDraining
	poolClosed
)

// acquireResult is delivered to a queued waiter exactly once.
type acquireResult struct {
	session *Session
	err     error
}

// waiter is one queued Acquire. done is guarded by the pool mutex: whichever
// of delivery, timeout, or cancellation sets it first wins, so a waiter is
// fulfilled or rejected exactly once and a timed-out waiter is never granted
// a session that arrives after expiry.
type waiter struct {
	role       types.Role
	result     chan acquireResult
	enqueuedAt time.Time
	done       bool
}

// PoolStats is a point-in-time snapshot of pool occupancy.
type PoolStats struct {
	// Idle is the number of sessions owned by the pool and available.
	Idle int

	// Active is the number of sessions currently borrowed by callers.
	Active int

	// Waiting is the number of queued acquires.
	Waiting int

	// Total is idle + active + in-flight creations.
	Total int

	// Min is the configured minimum session count.
	Min int

	// Max is the configured maximum session count.
	Max int
}

// Pool manages a bounded set of sessions over connections produced by a
// ConnectionFactory.
//
// The pool maintains disjoint idle and active session sets (a session is
// owned either by the pool or by exactly one borrowing caller), serves
// queued acquires strictly FIFO with independent per-request timeouts, and
// runs periodic eviction and health sweeps over idle sessions. Validation
// failures are fully absorbed: the session is destroyed and the pool
// backfills toward the configured minimum.
//
// All methods are safe for concurrent use.
type Pool struct {
	factory   ConnectionFactory
	probe     ValidationProbe
	cfg       PoolConfig
	logger    types.Logger
	metrics   types.MetricsCollector
	observers []types.SessionObserver

	mu       sync.Mutex
	state    poolState
	idle     []*Session
	active   map[string]*Session
	waiters  []*waiter
	creating int

	stopSweeps     chan struct{}
	sweepWG        sync.WaitGroup
	activeReleased chan struct{}
}

// NewPool creates a pool and eagerly establishes MinConnections sessions.
//
// A factory failure during initialization is fatal: every session created so
// far is destroyed and the error is returned. The pool never starts in a
// partially-initialized state.
//
// Parameters:
//   - factory: The connection factory (required)
//   - opts: Optional configuration options
//
// Returns:
//   - *Pool: A running pool with MinConnections idle sessions
//   - error: ConfigurationError for invalid settings, or the factory error
//     wrapped in ConnectionFailedError
func NewPool(factory ConnectionFactory, opts ...Option) (*Pool, error) {
	if factory == nil {
		return nil, &types.ConfigurationError{Field: "factory", Reason: "connection factory is required"}
	}

	s := settings{config: DefaultPoolConfig()}
	for _, opt := range opts {
		opt(&s)
	}

	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNopMetrics()
	}

	if err := s.config.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		factory:        factory,
		probe:          s.probe,
		cfg:            s.config,
		logger:         s.logger,
		metrics:        s.metrics,
		observers:      s.observers,
		active:         make(map[string]*Session),
		stopSweeps:     make(chan struct{}),
		activeReleased: make(chan struct{}, 1),
	}

	for i := 0; i < p.cfg.MinConnections; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.AcquireTimeout)
		sess, err := p.createSession(ctx, types.RolePrimary)
		cancel()
		if err != nil {
			for _, created := range p.idle {
				p.destroy(created, false)
			}
			p.idle = nil

			return nil, err
		}
		p.idle = append(p.idle, sess)
	}
	p.updateGauges()

	p.sweepWG.Add(1)
	go p.evictionLoop()

	if p.cfg.HealthCheckInterval > 0 && p.probe != nil {
		p.sweepWG.Add(1)
		go p.healthLoop()
	}

	p.logger.Info("pool initialized",
		"min", p.cfg.MinConnections,
		"max", p.cfg.MaxConnections,
	)

	return p, nil
}

// Acquire borrows a session of the requested role.
//
// The fast path takes a validated idle session (a replica request falls back
// to an idle primary when no healthy replica is available). If the pool is
// under capacity a new session is created. Otherwise the caller queues; the
// queue is served strictly FIFO and each waiter owns an independent timeout,
// so one expiry never affects other waiters.
//
// Parameters:
//   - ctx: Context for cancellation while waiting
//   - role: The backend role; empty defaults to RolePrimary
//
// Returns:
//   - *Session: A session exclusively owned by the caller until Release
//   - error: AcquireTimeoutError, ErrPoolExhausted, ErrPoolDraining,
//     ErrPoolClosed, ctx.Err(), or ConnectionFailedError
func (p *Pool) Acquire(ctx context.Context, role types.Role) (*Session, error) {
	if role == "" {
		role = types.RolePrimary
	}

	p.metrics.IncAcquireTotal(role)
	start := time.Now()

	for {
		p.mu.Lock()

		switch p.state {
		case poolClosed:
			p.mu.Unlock()
			p.metrics.IncAcquireError(role)

			return nil, types.ErrPoolClosed
		case poolDraining:
			p.mu.Unlock()
			p.metrics.IncAcquireError(role)

			return nil, types.ErrPoolDraining
		case poolRunning:
		}

		// Step 1: a validated idle session, replica falling back to primary.
		if sess := p.popIdleLocked(role); sess != nil {
			if p.cfg.MaxLifetime > 0 && sess.Age() > p.cfg.MaxLifetime {
				p.mu.Unlock()
				p.destroy(sess, true)
				p.goReplenish()

				continue
			}
			p.mu.Unlock()

			if p.probe != nil {
				if err := p.probe.Check(ctx, sess.conn); err != nil {
					p.metrics.IncValidationFailure(sess.role)
					p.emit(types.SessionEvent{Type: types.SessionValidationFailed, SessionID: sess.id, Role: sess.role})
					p.destroy(sess, false)
					p.goReplenish()

					continue
				}
			}

			p.mu.Lock()
			if p.state != poolRunning {
				// Drain won the race while validation was in flight.
				p.mu.Unlock()
				p.destroy(sess, false)
				p.metrics.IncAcquireError(role)

				return nil, types.ErrPoolDraining
			}
			p.active[sess.id] = sess
			sess.setState(types.SessionActive)
			sess.touch()
			p.updateGaugesLocked()
			p.mu.Unlock()

			p.emit(types.SessionEvent{Type: types.SessionAcquired, SessionID: sess.id, Role: sess.role})
			p.metrics.ObserveAcquireWait(role, time.Since(start).Seconds())

			return sess, nil
		}

		// Step 2: create when under capacity.
		if p.totalLocked() < p.cfg.MaxConnections {
			p.creating++
			p.mu.Unlock()

			sess, err := p.createSession(ctx, role)

			p.mu.Lock()
			p.creating--
			if err != nil {
				p.mu.Unlock()
				p.metrics.IncAcquireError(role)

				return nil, err
			}
			if p.state != poolRunning {
				p.mu.Unlock()
				p.destroy(sess, false)
				p.metrics.IncAcquireError(role)

				return nil, types.ErrPoolDraining
			}
			p.active[sess.id] = sess
			sess.setState(types.SessionActive)
			sess.touch()
			p.updateGaugesLocked()
			p.mu.Unlock()

			p.emit(types.SessionEvent{Type: types.SessionAcquired, SessionID: sess.id, Role: sess.role})
			p.metrics.ObserveAcquireWait(role, time.Since(start).Seconds())

			return sess, nil
		}

		// Step 3: queue behind existing waiters.
		if p.cfg.MaxPendingAcquires > 0 && len(p.waiters) >= p.cfg.MaxPendingAcquires {
			p.mu.Unlock()
			p.metrics.IncAcquireError(role)

			return nil, types.ErrPoolExhausted
		}

		w := &waiter{
			role:       role,
			result:     make(chan acquireResult, 1),
			enqueuedAt: time.Now(),
		}
		p.waiters = append(p.waiters, w)
		p.updateGaugesLocked()
		p.mu.Unlock()

		return p.await(ctx, w, role, start)
	}
}

// await blocks a queued acquire until delivery, timeout, or cancellation.
func (p *Pool) await(ctx context.Context, w *waiter, role types.Role, start time.Time) (*Session, error) {
	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case res := <-w.result:
		if res.err != nil {
			p.metrics.IncAcquireError(role)

			return nil, res.err
		}
		p.metrics.ObserveAcquireWait(role, time.Since(start).Seconds())

		return res.session, nil

	case <-timer.C:
		if sess, delivered := p.expireWaiter(w, role, start); delivered {
			return sess, nil
		}

		p.mu.Lock()
		waiting := len(p.waiters)
		p.mu.Unlock()
		p.metrics.IncAcquireError(role)

		return nil, &types.AcquireTimeoutError{Role: role, Timeout: p.cfg.AcquireTimeout, Waiting: waiting}

	case <-ctx.Done():
		if sess, delivered := p.expireWaiter(w, role, start); delivered {
			return sess, nil
		}
		p.metrics.IncAcquireError(role)

		return nil, ctx.Err()
	}
}

// expireWaiter removes a waiter whose timeout or context fired. If a
// delivery won the race under the lock, the delivered result is accepted
// instead and the second return is true.
func (p *Pool) expireWaiter(w *waiter, role types.Role, start time.Time) (*Session, bool) {
	p.mu.Lock()
	if w.done {
		p.mu.Unlock()

		res := <-w.result
		if res.err != nil {
			return nil, false
		}
		p.metrics.ObserveAcquireWait(role, time.Since(start).Seconds())

		return res.session, true
	}

	w.done = true
	p.removeWaiterLocked(w)
	p.updateGaugesLocked()
	p.mu.Unlock()

	return nil, false
}

// Release returns a borrowed session to the pool.
//
// The session is destroyed when destroy is set, when it is closed or flagged
// with an error, or when its age exceeds MaxLifetime; the pool then
// backfills toward MinConnections. Otherwise the session is handed directly
// to the longest-waiting compatible waiter, skipping the idle set entirely,
// or returned to the idle set when nobody is waiting.
//
// Parameters:
//   - sess: The session being returned
//   - destroy: Force destruction of the underlying connection
//
// Returns:
//   - error: ErrSessionNotActive if the session is not currently borrowed
func (p *Pool) Release(sess *Session, destroy bool) error {
	if sess == nil {
		return types.ErrSessionNotActive
	}

	p.mu.Lock()
	if _, ok := p.active[sess.id]; !ok {
		p.mu.Unlock()

		return types.ErrSessionNotActive
	}
	delete(p.active, sess.id)

	st := sess.State()
	expired := p.cfg.MaxLifetime > 0 && sess.Age() > p.cfg.MaxLifetime
	if destroy || st == types.SessionClosed || st == types.SessionError || expired || p.state != poolRunning {
		p.updateGaugesLocked()
		p.signalDrainLocked()
		p.mu.Unlock()

		p.emit(types.SessionEvent{Type: types.SessionReleased, SessionID: sess.id, Role: sess.role})
		p.destroy(sess, false)
		p.goReplenish()

		return nil
	}

	if w := p.takeWaiterLocked(sess.role); w != nil {
		p.active[sess.id] = sess
		sess.touch()
		p.updateGaugesLocked()
		p.mu.Unlock()

		p.emit(
			types.SessionEvent{Type: types.SessionReleased, SessionID: sess.id, Role: sess.role},
			types.SessionEvent{Type: types.SessionAcquired, SessionID: sess.id, Role: sess.role},
		)
		w.result <- acquireResult{session: sess}

		return nil
	}

	sess.setState(types.SessionIdle)
	sess.touch()
	p.idle = append(p.idle, sess)
	p.updateGaugesLocked()
	p.mu.Unlock()

	p.emit(types.SessionEvent{Type: types.SessionReleased, SessionID: sess.id, Role: sess.role})

	return nil
}

// WithConnection acquires a session, runs fn, and guarantees the release.
//
// The session's query counter is incremented once. If fn flags the session
// with MarkError, the release destroys it.
//
// Parameters:
//   - ctx: Context for the acquire
//   - role: The backend role; empty defaults to RolePrimary
//   - fn: The unit of work to run with the session
//
// Returns:
//   - error: The acquire error, or fn's error unchanged
func (p *Pool) WithConnection(ctx context.Context, role types.Role, fn func(sess *Session) error) error {
	sess, err := p.Acquire(ctx, role)
	if err != nil {
		return err
	}
	defer func() {
		_ = p.Release(sess, false)
	}()

	sess.MarkUsed()

	return fn(sess)
}

// Drain gracefully shuts the pool down.
//
// Both sweep timers are stopped, every queued waiter is rejected with
// ErrPoolDraining, idle sessions are destroyed, and Drain then waits for
// active sessions to be released, bounded by ctx. If ctx expires first the
// remaining active sessions are force-closed and ctx.Err() is returned.
//
// Parameters:
//   - ctx: Bound on the wait for active sessions
//
// Returns:
//   - error: nil on clean drain, ctx.Err() if active sessions were
//     force-closed, ErrPoolClosed if the pool was already closed
func (p *Pool) Drain(ctx context.Context) error {
	p.mu.Lock()
	if p.state == poolClosed {
		p.mu.Unlock()

		return types.ErrPoolClosed
	}
	if p.state == poolRunning {
		p.state = poolDraining
		close(p.stopSweeps)
	}

	rejected := make([]*waiter, 0, len(p.waiters))
	for _, w := range p.waiters {
		if !w.done {
			w.done = true
			rejected = append(rejected, w)
		}
	}
	p.waiters = nil

	idle := p.idle
	p.idle = nil
	p.updateGaugesLocked()
	p.mu.Unlock()

	for _, w := range rejected {
		w.result <- acquireResult{err: types.ErrPoolDraining}
	}
	for _, sess := range idle {
		p.destroy(sess, false)
	}

	// An in-flight replenish create can outlive the caller's deadline; bound
	// the wait by ctx and let placeLocked destroy whatever it finishes with.
	sweepsDone := make(chan struct{})
	go func() {
		p.sweepWG.Wait()
		close(sweepsDone)
	}()

	select {
	case <-sweepsDone:
	case <-ctx.Done():
	}

	for {
		p.mu.Lock()
		if len(p.active) == 0 {
			p.state = poolClosed
			p.mu.Unlock()
			p.logger.Info("pool drained")

			return nil
		}
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			p.mu.Lock()
			remaining := make([]*Session, 0, len(p.active))
			for _, sess := range p.active {
				remaining = append(remaining, sess)
			}
			p.active = make(map[string]*Session)
			p.state = poolClosed
			p.updateGaugesLocked()
			p.mu.Unlock()

			p.logger.Warn("drain deadline reached, force-closing active sessions",
				"count", len(remaining),
			)
			for _, sess := range remaining {
				p.destroy(sess, false)
			}

			return ctx.Err()
		case <-p.activeReleased:
		}
	}
}

// Close drains the pool bounded by the configured DrainTimeout.
//
// Active sessions still held when the timeout elapses are force-closed;
// Close reports success in that case, logging the forced shutdown.
//
// Returns:
//   - error: nil on success (including forced close of stragglers)
func (p *Pool) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.DrainTimeout)
	defer cancel()

	err := p.Drain(ctx)
	if err == nil || errors.Is(err, types.ErrPoolClosed) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}

	return err
}

// Stats returns a snapshot of pool occupancy.
//
// Returns:
//   - PoolStats: Idle, active, waiting, and total counts plus configured bounds
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{
		Idle:    len(p.idle),
		Active:  len(p.active),
		Waiting: len(p.waiters),
		Total:   p.totalLocked(),
		Min:     p.cfg.MinConnections,
		Max:     p.cfg.MaxConnections,
	}
}

// ----------------------
// Internals
// ----------------------

// createSession establishes one connection and wraps it.
func (p *Pool) createSession(ctx context.Context, role types.Role) (*Session, error) {
	conn, err := p.factory.Create(ctx, role)
	if err != nil {
		return nil, &types.ConnectionFailedError{Role: role, Cause: err}
	}

	sess := newSession(conn, role)
	p.metrics.IncSessionCreated(role)
	p.emit(types.SessionEvent{Type: types.SessionCreated, SessionID: sess.id, Role: role})

	return sess, nil
}

// destroy closes a session's connection. The session must already be
// removed from the idle and active sets. evicted marks sweep-driven
// destruction for metrics and events.
func (p *Pool) destroy(sess *Session, evicted bool) {
	sess.setState(types.SessionClosed)
	if err := sess.conn.Close(); err != nil {
		p.logger.Debug("connection close failed", "session", sess.id, "error", err)
	}

	p.metrics.IncSessionDestroyed(sess.role)
	if evicted {
		p.metrics.IncSessionEvicted(sess.role)
		p.emit(types.SessionEvent{Type: types.SessionEvicted, SessionID: sess.id, Role: sess.role})
	}
	p.emit(types.SessionEvent{Type: types.SessionDestroyed, SessionID: sess.id, Role: sess.role})
}

// popIdleLocked removes and returns the first idle session usable for the
// requested role: an exact match, or a primary for a replica request.
// Callers must hold p.mu.
func (p *Pool) popIdleLocked(role types.Role) *Session {
	fallback := -1
	for i, sess := range p.idle {
		if sess.role == role {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)

			return sess
		}
		if role == types.RoleReplica && sess.role == types.RolePrimary && fallback < 0 {
			fallback = i
		}
	}

	if fallback >= 0 {
		sess := p.idle[fallback]
		p.idle = append(p.idle[:fallback], p.idle[fallback+1:]...)

		return sess
	}

	return nil
}

// takeWaiterLocked removes and returns the longest-waiting waiter that can
// use a session of the given role: an exact role match, or a replica
// request served by a primary session. Callers must hold p.mu.
func (p *Pool) takeWaiterLocked(sessionRole types.Role) *waiter {
	for i, w := range p.waiters {
		if w.done {
			continue
		}
		if w.role == sessionRole || (w.role == types.RoleReplica && sessionRole == types.RolePrimary) {
			w.done = true
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)

			return w
		}
	}

	return nil
}

// removeWaiterLocked unlinks a single waiter, leaving every other waiter's
// queue position untouched. Callers must hold p.mu.
func (p *Pool) removeWaiterLocked(target *waiter) {
	for i, w := range p.waiters {
		if w == target {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)

			return
		}
	}
}

// totalLocked counts every session the pool is responsible for, including
// connections still being established. Callers must hold p.mu.
func (p *Pool) totalLocked() int {
	return len(p.idle) + len(p.active) + p.creating
}

// signalDrainLocked wakes a Drain waiting for active sessions.
// Callers must hold p.mu.
func (p *Pool) signalDrainLocked() {
	if p.state != poolDraining {
		return
	}

	select {
	case p.activeReleased <- struct{}{}:
	default:
	}
}

// goReplenish starts a background replenish pass, tracked so Drain can wait
// for it. No-op once the pool leaves the running state.
func (p *Pool) goReplenish() {
	p.mu.Lock()
	if p.state != poolRunning {
		p.mu.Unlock()

		return
	}
	p.sweepWG.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.sweepWG.Done()
		p.replenish()
	}()
}

// replenish creates sessions until the pool is back at MinConnections and
// no waiter can be served by a creation. Creation failures are logged and
// retried by the next sweep rather than propagated.
func (p *Pool) replenish() {
	for {
		p.mu.Lock()
		if p.state != poolRunning {
			p.mu.Unlock()

			return
		}

		total := p.totalLocked()
		needWaiter := len(p.waiters) > 0 && total < p.cfg.MaxConnections
		needMin := total < p.cfg.MinConnections
		if !needWaiter && !needMin {
			p.mu.Unlock()

			return
		}

		role := types.RolePrimary
		if needWaiter {
			role = p.waiters[0].role
		}
		p.creating++
		p.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.AcquireTimeout)
		sess, err := p.createSession(ctx, role)
		cancel()

		p.mu.Lock()
		p.creating--
		if err != nil {
			p.mu.Unlock()
			p.logger.Warn("backfill connection creation failed", "role", role, "error", err)

			return
		}
		p.placeLocked(sess)
	}
}

// placeLocked routes a fresh or revalidated session to the longest-waiting
// compatible waiter, or to the idle set. Destroys it when the pool is no
// longer running. Callers must hold p.mu; the lock is released before
// returning.
func (p *Pool) placeLocked(sess *Session) {
	if p.state != poolRunning {
		p.mu.Unlock()
		p.destroy(sess, false)

		return
	}

	if w := p.takeWaiterLocked(sess.role); w != nil {
		p.active[sess.id] = sess
		sess.setState(types.SessionActive)
		sess.touch()
		p.updateGaugesLocked()
		p.mu.Unlock()

		p.emit(types.SessionEvent{Type: types.SessionAcquired, SessionID: sess.id, Role: sess.role})
		w.result <- acquireResult{session: sess}

		return
	}

	sess.setState(types.SessionIdle)
	p.idle = append(p.idle, sess)
	p.updateGaugesLocked()
	p.mu.Unlock()
}

// evictionLoop periodically destroys idle sessions that are too old or have
// been idle too long.
func (p *Pool) evictionLoop() {
	defer p.sweepWG.Done()

	ticker := time.NewTicker(p.cfg.EvictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopSweeps:
			return
		case <-ticker.C:
			p.evictExpired()
		}
	}
}

// evictExpired applies IdleTimeout and MaxLifetime to the idle set.
// Idle-timeout eviction never drops the pool below MinConnections;
// lifetime eviction is unconditional, with backfill restoring the minimum.
func (p *Pool) evictExpired() {
	p.mu.Lock()
	if p.state != poolRunning {
		p.mu.Unlock()

		return
	}

	var victims []*Session
	kept := p.idle[:0]
	total := p.totalLocked()
	for _, sess := range p.idle {
		lifetimeExceeded := p.cfg.MaxLifetime > 0 && sess.Age() > p.cfg.MaxLifetime
		idleExceeded := p.cfg.IdleTimeout > 0 && sess.IdleFor() > p.cfg.IdleTimeout

		switch {
		case lifetimeExceeded:
			victims = append(victims, sess)
			total--
		case idleExceeded && total > p.cfg.MinConnections:
			victims = append(victims, sess)
			total--
		default:
			kept = append(kept, sess)
		}
	}
	p.idle = kept
	p.updateGaugesLocked()
	p.mu.Unlock()

	for _, sess := range victims {
		p.destroy(sess, true)
	}
	if len(victims) > 0 {
		p.logger.Debug("eviction sweep destroyed sessions", "count", len(victims))
		p.goReplenish()
	}
}

// healthLoop periodically probes idle sessions.
func (p *Pool) healthLoop() {
	defer p.sweepWG.Done()

	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopSweeps:
			return
		case <-ticker.C:
			p.healthCheck()
		}
	}
}

// healthCheck probes each idle session once. Probe failures destroy the
// session and trigger backfill; they are never surfaced to callers and never
// feed circuit-breaker failure accounting.
func (p *Pool) healthCheck() {
	checked := make(map[string]struct{})

	for {
		p.mu.Lock()
		if p.state != poolRunning {
			p.mu.Unlock()

			return
		}

		var sess *Session
		idx := -1
		for i, cand := range p.idle {
			if _, ok := checked[cand.id]; !ok {
				sess, idx = cand, i
				break
			}
		}
		if sess == nil {
			p.mu.Unlock()

			return
		}
		p.idle = append(p.idle[:idx], p.idle[idx+1:]...)
		p.mu.Unlock()

		checked[sess.id] = struct{}{}

		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.AcquireTimeout)
		err := p.probe.Check(ctx, sess.conn)
		cancel()

		if err != nil {
			p.metrics.IncValidationFailure(sess.role)
			p.emit(types.SessionEvent{Type: types.SessionValidationFailed, SessionID: sess.id, Role: sess.role})
			p.destroy(sess, false)
			p.goReplenish()

			continue
		}

		p.mu.Lock()
		p.placeLocked(sess)
	}
}

// emit delivers events to every registered observer, synchronously and in
// registration order.
func (p *Pool) emit(events ...types.SessionEvent) {
	for _, ev := range events {
		for _, fn := range p.observers {
			fn(ev)
		}
	}
}

// updateGauges publishes occupancy gauges to the metrics collector.
func (p *Pool) updateGauges() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateGaugesLocked()
}

// updateGaugesLocked publishes occupancy gauges. Callers must hold p.mu.
func (p *Pool) updateGaugesLocked() {
	p.metrics.SetIdleSessions(len(p.idle))
	p.metrics.SetActiveSessions(len(p.active))
	p.metrics.SetWaitingAcquires(len(p.waiters))
}

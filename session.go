package bastion

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bastionpool/bastion/types"
)

// Session wraps one live connection together with its pool bookkeeping.
//
// A session is exclusively owned by exactly one actor at a time: the pool
// while idle, the borrowing caller while active. Ownership transfers only
// through Acquire, Release, and destruction; nothing else may mutate it.
// Callers use the session's connection between Acquire and Release and must
// not retain it afterwards.
type Session struct {
	id        string
	role      types.Role
	conn      RawConnection
	createdAt time.Time

	state      atomic.Int32
	lastUsedAt atomic.Int64 // Unix nano
	queryCount atomic.Uint64
}

// newSession wraps a freshly created connection.
func newSession(conn RawConnection, role types.Role) *Session {
	now := time.Now()
	s := &Session{
		id:        uuid.NewString(),
		role:      role,
		conn:      conn,
		createdAt: now,
	}
	s.lastUsedAt.Store(now.UnixNano())
	s.state.Store(int32(types.SessionIdle))

	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Role returns the backend role the session is connected to.
func (s *Session) Role() types.Role {
	return s.role
}

// Conn returns the raw connection.
//
// Valid only while the caller holds the session (between Acquire and
// Release). The connection must not be closed directly; release with
// destroy=true instead.
func (s *Session) Conn() RawConnection {
	return s.conn
}

// State returns the session's lifecycle state.
func (s *Session) State() types.SessionState {
	return types.SessionState(s.state.Load())
}

// CreatedAt returns when the session's connection was established.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// LastUsedAt returns when the session was last acquired or touched.
func (s *Session) LastUsedAt() time.Time {
	return time.Unix(0, s.lastUsedAt.Load())
}

// QueryCount returns how many units of work the session has served.
func (s *Session) QueryCount() uint64 {
	return s.queryCount.Load()
}

// Age returns how long ago the session was created.
func (s *Session) Age() time.Duration {
	return time.Since(s.createdAt)
}

// IdleFor returns how long the session has gone unused.
func (s *Session) IdleFor() time.Duration {
	return time.Since(s.LastUsedAt())
}

// MarkUsed records one unit of work against the session and refreshes its
// last-used timestamp. Callers typically invoke it once per query.
func (s *Session) MarkUsed() {
	s.queryCount.Add(1)
	s.touch()
}

// MarkError flags the session as broken. The pool destroys flagged sessions
// on release instead of returning them to the idle set.
func (s *Session) MarkError() {
	s.state.Store(int32(types.SessionError))
}

// touch refreshes the last-used timestamp.
func (s *Session) touch() {
	s.lastUsedAt.Store(time.Now().UnixNano())
}

// setState is the pool-internal state transition. Callers outside the pool
// must use MarkError.
func (s *Session) setState(st types.SessionState) {
	s.state.Store(int32(st))
}

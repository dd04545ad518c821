// Package testutil provides testing utilities for the bastion project.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bastionpool/bastion"
	"github.com/bastionpool/bastion/types"
)

// MockConn is a mock implementation of bastion.RawConnection for testing.
type MockConn struct {
	Role types.Role

	closed atomic.Bool

	// Hooks for custom behavior
	OnClose func() error
}

// Compile-time assertion that MockConn implements bastion.RawConnection.
var _ bastion.RawConnection = (*MockConn)(nil)

// Close marks the connection as closed.
func (m *MockConn) Close() error {
	m.closed.Store(true)
	if m.OnClose != nil {
		return m.OnClose()
	}

	return nil
}

// Closed reports whether Close has been called.
func (m *MockConn) Closed() bool {
	return m.closed.Load()
}

// MockFactory is a mock implementation of bastion.ConnectionFactory that
// tracks every connection it creates.
type MockFactory struct {
	mu    sync.Mutex
	conns []*MockConn
	fails int

	created atomic.Int64

	// Hooks for custom behavior
	OnCreate func(ctx context.Context, role types.Role) (bastion.RawConnection, error)

	// CreateErr, when set, fails every Create call with this error.
	CreateErr error
}

// Compile-time assertion that MockFactory implements bastion.ConnectionFactory.
var _ bastion.ConnectionFactory = (*MockFactory)(nil)

// NewMockFactory creates a new mock connection factory.
func NewMockFactory() *MockFactory {
	return &MockFactory{}
}

// Create returns a new MockConn, or the configured error.
func (m *MockFactory) Create(ctx context.Context, role types.Role) (bastion.RawConnection, error) {
	if m.OnCreate != nil {
		return m.OnCreate(ctx, role)
	}

	if m.CreateErr != nil {
		m.mu.Lock()
		m.fails++
		m.mu.Unlock()

		return nil, m.CreateErr
	}

	conn := &MockConn{Role: role}
	m.created.Add(1)

	m.mu.Lock()
	m.conns = append(m.conns, conn)
	m.mu.Unlock()

	return conn, nil
}

// Created returns how many connections the factory has produced.
func (m *MockFactory) Created() int {
	return int(m.created.Load())
}

// Failed returns how many Create calls failed.
func (m *MockFactory) Failed() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.fails
}

// Conns returns a snapshot of every connection created so far.
func (m *MockFactory) Conns() []*MockConn {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*MockConn, len(m.conns))
	copy(out, m.conns)

	return out
}

// OpenConns returns how many created connections have not been closed.
func (m *MockFactory) OpenConns() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	open := 0
	for _, c := range m.conns {
		if !c.Closed() {
			open++
		}
	}

	return open
}

// MockProbe is a mock implementation of bastion.ValidationProbe.
type MockProbe struct {
	checks atomic.Int64

	// Hooks for custom behavior
	OnCheck func(ctx context.Context, conn bastion.RawConnection) error

	// CheckErr, when set, fails every Check call with this error.
	CheckErr error
}

// Compile-time assertion that MockProbe implements bastion.ValidationProbe.
var _ bastion.ValidationProbe = (*MockProbe)(nil)

// NewMockProbe creates a new mock validation probe.
func NewMockProbe() *MockProbe {
	return &MockProbe{}
}

// Check records the call and returns the configured result.
func (m *MockProbe) Check(ctx context.Context, conn bastion.RawConnection) error {
	m.checks.Add(1)

	if m.OnCheck != nil {
		return m.OnCheck(ctx, conn)
	}

	return m.CheckErr
}

// Checks returns how many times Check has been called.
func (m *MockProbe) Checks() int {
	return int(m.checks.Load())
}

// EventRecorder collects session lifecycle events for assertion.
type EventRecorder struct {
	mu     sync.Mutex
	events []types.SessionEvent
}

// NewEventRecorder creates a new event recorder.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// Observe is the types.SessionObserver callback.
func (r *EventRecorder) Observe(ev types.SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
}

// Events returns a snapshot of recorded events.
func (r *EventRecorder) Events() []types.SessionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.SessionEvent, len(r.events))
	copy(out, r.events)

	return out
}

// Count returns how many events of the given type were recorded.
func (r *EventRecorder) Count(t types.SessionEventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}

	return n
}

// Package types provides shared types and errors for the Bastion library.
//
// This is a "leaf" package with no imports from other bastion packages,
// allowing it to be imported by any package without causing import cycles.
package types

import (
	"errors"
	"fmt"
	"time"
)

// Role identifies which class of backend a session is connected to.
type Role string

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

const (
	// RolePrimary represents the writable primary backend.
	RolePrimary Role = "primary"
	// RoleReplica represents a read-only replica backend.
	RoleReplica Role = "replica"
)

// SessionState represents the lifecycle state of a pooled session.
type SessionState int32

const (
	// SessionIdle means the session is owned by the pool and available.
	SessionIdle SessionState = iota
	// SessionActive means the session is borrowed by a caller.
	SessionActive
	// SessionClosed means the session has been destroyed. Closed sessions
	// are never reused.
	SessionClosed
	// SessionError means the session observed a connection-level error and
	// will be destroyed on release.
	SessionError
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	case SessionError:
		return "error"
	default:
		return "unknown"
	}
}

// BreakerState represents the circuit breaker state.
type BreakerState int32

const (
	// BreakerClosed is the normal operating state. Calls flow through.
	BreakerClosed BreakerState = iota
	// BreakerOpen is the tripped state. Calls are rejected immediately.
	BreakerOpen
	// BreakerHalfOpen is the probing state entered after the reset timeout.
	BreakerHalfOpen
)

// String returns the string representation of the breaker state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// SessionEventType identifies a session lifecycle event.
type SessionEventType string

const (
	// SessionCreated is emitted after the factory successfully creates a session.
	SessionCreated SessionEventType = "created"
	// SessionAcquired is emitted when a session is handed to a caller.
	SessionAcquired SessionEventType = "acquired"
	// SessionReleased is emitted when a caller returns a session to the pool.
	SessionReleased SessionEventType = "released"
	// SessionDestroyed is emitted after a session's connection is closed.
	SessionDestroyed SessionEventType = "destroyed"
	// SessionEvicted is emitted when the eviction sweep destroys an idle session.
	SessionEvicted SessionEventType = "evicted"
	// SessionValidationFailed is emitted when the validation probe rejects an
	// idle session. The session is destroyed; the failure is never surfaced.
	SessionValidationFailed SessionEventType = "validation_failed"
)

// SessionEvent describes a session lifecycle transition.
//
// Events are delivered synchronously to registered observers on the goroutine
// that performed the transition, outside the pool's internal lock.
type SessionEvent struct {
	// Type is the kind of lifecycle transition.
	Type SessionEventType

	// SessionID is the unique identifier of the affected session.
	SessionID string

	// Role is the backend role of the affected session.
	Role Role
}

// SessionObserver receives session lifecycle events.
//
// Observers must not call back into the pool synchronously; doing so from an
// event raised by the pool's own sweeps can deadlock.
type SessionObserver func(event SessionEvent)

// Logger is the minimal structured logging interface used throughout Bastion.
//
// The method signatures take a message followed by alternating key/value
// pairs, making the interface compatible with zap.SugaredLogger's *w methods.
// Use contrib/logging/zap to adapt a zap logger, or provide your own.
type Logger interface {
	// Debug logs a debug-level message with key/value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs an info-level message with key/value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning-level message with key/value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error-level message with key/value pairs.
	Error(msg string, keysAndValues ...any)
}

// Sentinel errors for common failure scenarios.
var (
	// ErrPoolClosed indicates an operation was attempted on a closed pool.
	ErrPoolClosed = errors.New("bastion: pool is closed")

	// ErrPoolDraining indicates the pool is shutting down and rejected a
	// queued acquire.
	ErrPoolDraining = errors.New("bastion: pool is draining")

	// ErrPoolExhausted indicates the pool is at capacity and the acquire
	// wait queue is full. Retry at the caller's discretion.
	ErrPoolExhausted = errors.New("bastion: pool exhausted, acquire queue is full")

	// ErrAcquireTimeout indicates an acquire waited longer than its timeout.
	// Returned wrapped inside an AcquireTimeoutError.
	ErrAcquireTimeout = errors.New("bastion: acquire timed out")

	// ErrConnectionFailed indicates the connection factory failed.
	// Returned wrapped inside a ConnectionFailedError.
	ErrConnectionFailed = errors.New("bastion: connection creation failed")

	// ErrCircuitOpen indicates the circuit breaker rejected a call without
	// invoking it. Returned wrapped inside a CircuitBreakerOpenError.
	ErrCircuitOpen = errors.New("bastion: circuit breaker is open")

	// ErrSessionNotActive indicates a release of a session the pool does not
	// consider borrowed. Releasing a session twice is a caller bug.
	ErrSessionNotActive = errors.New("bastion: session is not active")
)

// ConfigurationError indicates invalid configuration detected at construction.
//
// Configuration errors are fatal and never retryable.
type ConfigurationError struct {
	// Field is the configuration field that failed validation.
	Field string

	// Reason describes why the value was rejected.
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return "bastion: invalid configuration: " + e.Field + ": " + e.Reason
}

// AcquireTimeoutError indicates a queued acquire expired before a session
// became available. The expired waiter is removed from the queue without
// affecting other waiters.
type AcquireTimeoutError struct {
	// Role is the requested backend role.
	Role Role

	// Timeout is the per-request timeout that elapsed.
	Timeout time.Duration

	// Waiting is the number of acquires still queued at expiry.
	Waiting int
}

// Error implements the error interface.
func (e *AcquireTimeoutError) Error() string {
	return fmt.Sprintf("bastion: acquire %s session timed out after %v (%d still waiting)",
		e.Role, e.Timeout, e.Waiting)
}

// Unwrap returns ErrAcquireTimeout for errors.Is compatibility.
func (e *AcquireTimeoutError) Unwrap() error {
	return ErrAcquireTimeout
}

// ConnectionFailedError wraps a failure from the connection factory.
//
// The pool never retries factory failures itself; retrying belongs to the
// orchestrator layer around the caller's use of the pool.
type ConnectionFailedError struct {
	// Role is the backend role the connection was created for.
	Role Role

	// Cause is the underlying factory error.
	Cause error
}

// Error implements the error interface.
func (e *ConnectionFailedError) Error() string {
	return "bastion: failed to create " + string(e.Role) + " connection: " + e.Cause.Error()
}

// Unwrap returns the wrapped errors for errors.Is/As compatibility.
func (e *ConnectionFailedError) Unwrap() []error {
	return []error{ErrConnectionFailed, e.Cause}
}

// CircuitBreakerOpenError indicates the breaker rejected a call while Open.
//
// Remaining reports how long until the breaker will allow a probing call.
// The error is never retryable immediately; callers should back off for at
// least Remaining.
type CircuitBreakerOpenError struct {
	// Remaining is the time until the next probing attempt is allowed.
	Remaining time.Duration
}

// Error implements the error interface.
func (e *CircuitBreakerOpenError) Error() string {
	return fmt.Sprintf("bastion: circuit breaker is open, retry in %v", e.Remaining)
}

// Unwrap returns ErrCircuitOpen for errors.Is compatibility.
func (e *CircuitBreakerOpenError) Unwrap() error {
	return ErrCircuitOpen
}

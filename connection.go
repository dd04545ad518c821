package bastion

import (
	"context"

	"github.com/bastionpool/bastion/types"
)

// RawConnection is one live connection to the remote resource.
//
// The pool treats connections as opaque: it creates them through a
// ConnectionFactory, checks them through a ValidationProbe, and closes them
// when a session is destroyed. Everything else (building requests, parsing
// responses, authentication) happens strictly above or below this layer.
type RawConnection interface {
	// Close releases the underlying connection. Close is called exactly once
	// per connection, when the owning session is destroyed.
	Close() error
}

// ConnectionFactory creates raw connections for the pool.
//
// The factory is resolved once at pool construction; a missing or
// misconfigured factory surfaces as a typed ConfigurationError, never a
// runtime conditional import. Factory failures inside the pool are treated
// as unretryable: retry, if desired, belongs to the orchestrator layer
// around the caller's use of the pool.
//
// Implementations MUST be safe for concurrent use; the pool may create
// connections for several waiters at once.
type ConnectionFactory interface {
	// Create establishes a new connection for the given backend role.
	//
	// Parameters:
	//   - ctx: Context for cancellation and connect timeout
	//   - role: The backend role (primary or replica) to connect to
	//
	// Returns:
	//   - RawConnection: The established connection
	//   - error: The vendor error if the connection could not be established
	Create(ctx context.Context, role types.Role) (RawConnection, error)
}

// ConnectionFactoryFunc adapts a function to the ConnectionFactory interface.
type ConnectionFactoryFunc func(ctx context.Context, role types.Role) (RawConnection, error)

// Create calls f.
func (f ConnectionFactoryFunc) Create(ctx context.Context, role types.Role) (RawConnection, error) {
	return f(ctx, role)
}

// ValidationProbe cheaply verifies that a connection is still usable.
//
// The probe is used only for pre-acquire validation and the periodic health
// sweep over idle sessions. A probe failure destroys the session and is
// otherwise fully absorbed by the pool: it never surfaces to callers and
// never feeds circuit-breaker failure accounting. Pool self-healing is a
// distinct concern from the breaker, which only counts active call failures.
type ValidationProbe interface {
	// Check verifies the connection is alive.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - conn: The connection to verify
	//
	// Returns:
	//   - error: nil if the connection is usable, any error otherwise
	Check(ctx context.Context, conn RawConnection) error
}

// ValidationProbeFunc adapts a function to the ValidationProbe interface.
type ValidationProbeFunc func(ctx context.Context, conn RawConnection) error

// Check calls f.
func (f ValidationProbeFunc) Check(ctx context.Context, conn RawConnection) error {
	return f(ctx, conn)
}

package sql

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/bastionpool/bastion"
	"github.com/bastionpool/bastion/types"
)

// Conn is one pinned database/sql connection, usable as a pool session's
// raw connection.
//
// Each Conn is drawn from the driver with sql.DB.Conn, so statements run on
// it are guaranteed to use the same underlying connection. Pooling is done
// by bastion, not by database/sql.
type Conn struct {
	conn *sql.Conn
}

// Raw returns the pinned *sql.Conn for operations not covered by the
// convenience methods.
func (c *Conn) Raw() *sql.Conn {
	return c.conn
}

// ExecContext executes a statement without returning rows.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a query that returns at most one row.
func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.conn.QueryRowContext(ctx, query, args...)
}

// PingContext verifies the pinned connection is alive.
func (c *Conn) PingContext(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

// Close returns the pinned connection to the driver.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Factory creates pinned database/sql connections for a bastion pool.
//
// One *sql.DB handle is opened lazily per role and cached; Create then pins
// individual connections off it. The handle's own pooling is left unlimited
// so bastion's min/max bounds are the only ones in effect.
type Factory struct {
	driver string

	mu   sync.Mutex
	dsns map[types.Role]string
	dbs  map[types.Role]*sql.DB
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithReplicaDSN sets a separate DSN for replica connections.
//
// Without it, replica requests connect with the primary DSN.
//
// Parameters:
//   - dsn: The replica data source name
//
// Returns:
//   - FactoryOption: Configuration option
func WithReplicaDSN(dsn string) FactoryOption {
	return func(f *Factory) {
		f.dsns[types.RoleReplica] = dsn
	}
}

// NewFactory creates a connection factory for the given driver and DSN.
//
// Parameters:
//   - driver: The database/sql driver name, e.g. "sqlite3" or "postgres"
//   - dsn: The primary data source name
//   - opts: Optional configuration options
//
// Returns:
//   - *Factory: The factory; pass it to bastion.NewPool
func NewFactory(driver, dsn string, opts ...FactoryOption) *Factory {
	f := &Factory{
		driver: driver,
		dsns:   map[types.Role]string{types.RolePrimary: dsn},
		dbs:    make(map[types.Role]*sql.DB),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Create pins a new connection for the given role.
//
// Parameters:
//   - ctx: Context for the connect
//   - role: The backend role; replica falls back to the primary DSN when no
//     replica DSN is configured
//
// Returns:
//   - bastion.RawConnection: A *Conn pinned to one driver connection
//   - error: The driver error if the connection could not be established
func (f *Factory) Create(ctx context.Context, role types.Role) (bastion.RawConnection, error) {
	db, err := f.handle(role)
	if err != nil {
		return nil, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	return &Conn{conn: conn}, nil
}

// Close closes the cached database handles. Call after the pool is drained.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for role, db := range f.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(f.dbs, role)
	}

	return firstErr
}

// handle returns the cached *sql.DB for a role, opening it on first use.
func (f *Factory) handle(role types.Role) (*sql.DB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	dsn, ok := f.dsns[role]
	if !ok {
		dsn = f.dsns[types.RolePrimary]
	}
	if dsn == "" {
		return nil, fmt.Errorf("no DSN configured for role %q", role)
	}

	if db, ok := f.dbs[role]; ok {
		return db, nil
	}

	db, err := sql.Open(f.driver, dsn)
	if err != nil {
		return nil, err
	}
	// bastion owns pooling; keep the handle's internal idle pool out of the way.
	db.SetMaxIdleConns(0)
	f.dbs[role] = db

	return db, nil
}

// Probe validates SQL connections by running a liveness query.
type Probe struct {
	query string
}

// NewProbe creates a validation probe.
//
// Parameters:
//   - query: The liveness statement, e.g. "SELECT 1". Empty falls back to a
//     driver-level ping.
//
// Returns:
//   - *Probe: The probe; pass it via bastion.WithValidationProbe
func NewProbe(query string) *Probe {
	return &Probe{query: query}
}

// Check runs the liveness query on the connection.
//
// Parameters:
//   - ctx: Context for cancellation
//   - conn: The connection under test; must be a *Conn from this package
//
// Returns:
//   - error: nil if the connection is usable
func (p *Probe) Check(ctx context.Context, conn bastion.RawConnection) error {
	c, ok := conn.(*Conn)
	if !ok {
		return fmt.Errorf("unexpected connection type %T", conn)
	}

	if p.query == "" {
		return c.PingContext(ctx)
	}

	rows, err := c.QueryContext(ctx, p.query)
	if err != nil {
		return err
	}

	return rows.Close()
}

var (
	_ bastion.ConnectionFactory = (*Factory)(nil)
	_ bastion.ValidationProbe   = (*Probe)(nil)
	_ bastion.RawConnection     = (*Conn)(nil)
)

package cql

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/bastionpool/bastion"
	"github.com/bastionpool/bastion/types"
)

// Conn is one gocql session, usable as a pool session's raw connection.
//
// gocql multiplexes a session over its own host connections; bastion treats
// the whole session as the pooled unit, which gives per-session keyspace and
// consistency isolation.
type Conn struct {
	session *gocql.Session
}

// Session returns the underlying gocql session.
func (c *Conn) Session() *gocql.Session {
	return c.session
}

// Query creates a query on the underlying session.
func (c *Conn) Query(stmt string, values ...any) *gocql.Query {
	return c.session.Query(stmt, values...)
}

// Close terminates the gocql session.
func (c *Conn) Close() error {
	c.session.Close()

	return nil
}

// Factory creates gocql sessions for a bastion pool.
type Factory struct {
	clusters map[types.Role]*gocql.ClusterConfig
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithReplicaCluster sets a separate cluster configuration for replica
// connections.
//
// Without it, replica requests connect to the primary cluster.
//
// Parameters:
//   - cluster: The replica cluster configuration
//
// Returns:
//   - FactoryOption: Configuration option
func WithReplicaCluster(cluster *gocql.ClusterConfig) FactoryOption {
	return func(f *Factory) {
		f.clusters[types.RoleReplica] = cluster
	}
}

// NewFactory creates a connection factory over a gocql cluster config.
//
// Parameters:
//   - cluster: The primary cluster configuration
//   - opts: Optional configuration options
//
// Returns:
//   - *Factory: The factory; pass it to bastion.NewPool
func NewFactory(cluster *gocql.ClusterConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		clusters: map[types.Role]*gocql.ClusterConfig{types.RolePrimary: cluster},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Create establishes a new gocql session for the given role.
//
// gocql's own connect timeouts govern the dial; ctx cancellation is honored
// between the check and the connect.
//
// Parameters:
//   - ctx: Context for cancellation
//   - role: The backend role; replica falls back to the primary cluster when
//     no replica cluster is configured
//
// Returns:
//   - bastion.RawConnection: A *Conn wrapping the session
//   - error: The gocql error if the session could not be established
func (f *Factory) Create(ctx context.Context, role types.Role) (bastion.RawConnection, error) {
	cluster, ok := f.clusters[role]
	if !ok {
		cluster = f.clusters[types.RolePrimary]
	}
	if cluster == nil {
		return nil, fmt.Errorf("no cluster configured for role %q", role)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}

	return &Conn{session: session}, nil
}

// Probe validates CQL connections by executing a liveness statement.
type Probe struct {
	query   string
	timeout time.Duration
}

// NewProbe creates a validation probe.
//
// Parameters:
//   - query: The liveness statement, e.g. "SELECT release_version FROM system.local"
//
// Returns:
//   - *Probe: The probe; pass it via bastion.WithValidationProbe
func NewProbe(query string) *Probe {
	return &Probe{query: query, timeout: 5 * time.Second}
}

// Check executes the liveness statement on the connection.
//
// Parameters:
//   - ctx: Context for cancellation; additionally bounded by the probe's
//     own 5s timeout
//   - conn: The connection under test; must be a *Conn from this package
//
// Returns:
//   - error: nil if the connection is usable
func (p *Probe) Check(ctx context.Context, conn bastion.RawConnection) error {
	c, ok := conn.(*Conn)
	if !ok {
		return fmt.Errorf("unexpected connection type %T", conn)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return c.Query(p.query).WithContext(ctx).Exec()
}

var (
	_ bastion.ConnectionFactory = (*Factory)(nil)
	_ bastion.ValidationProbe   = (*Probe)(nil)
	_ bastion.RawConnection     = (*Conn)(nil)
)

// Package sql adapts database/sql drivers to bastion's factory and probe
// interfaces.
//
// The adapter pins one driver connection per bastion session using
// sql.DB.Conn, so session affinity holds: everything run on a session hits
// the same underlying connection. bastion's min/max bounds replace
// database/sql's own pooling.
//
// Usage:
//
//	factory := sqladapter.NewFactory("postgres", primaryDSN,
//	    sqladapter.WithReplicaDSN(replicaDSN),
//	)
//	pool, err := bastion.NewPool(factory,
//	    bastion.WithValidationProbe(sqladapter.NewProbe("SELECT 1")),
//	)
package sql

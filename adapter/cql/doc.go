// Package cql adapts the gocql driver to bastion's factory and probe
// interfaces.
//
// The pooled unit is a whole gocql session. gocql already maintains host
// connections internally; pooling sessions with bastion adds bounded
// concurrency, health sweeps, and drain on top, and keeps per-session
// settings (keyspace, consistency) isolated between borrowers.
//
// Usage:
//
//	cluster := gocql.NewCluster("cassandra-1", "cassandra-2")
//	cluster.Keyspace = "app"
//
//	factory := cqladapter.NewFactory(cluster)
//	pool, err := bastion.NewPool(factory,
//	    bastion.WithValidationProbe(cqladapter.NewProbe("SELECT release_version FROM system.local")),
//	)
package cql

// Package testutil provides testing utilities for the bastion project.
//
// It contains mock implementations of the pool's extension points
// (ConnectionFactory, ValidationProbe, RawConnection), an event recorder
// for session lifecycle assertions, and a metrics collector that tracks
// calls for verification.
//
// These utilities are used by bastion's own test suites and are exported so
// downstream projects can reuse them when testing code built on the pool.
package testutil

// Package vm provides a VictoriaMetrics-based implementation of the MetricsCollector interface.
//
// This package uses github.com/VictoriaMetrics/metrics for lightweight,
// high-performance Prometheus-compatible metrics collection.
//
// # Basic Usage
//
// Create a collector with default prefix "bastion":
//
//	collector := vm.New()
//	pool, _ := bastion.NewPool(factory,
//	    bastion.WithMetrics(collector),
//	)
//
// # Custom Prefix
//
// Use WithPrefix to customize the metric name prefix:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//
// This produces metrics like:
//   - myapp_acquire_total{role="primary"}
//   - myapp_sessions_created_total{role="replica"}
//
// # Exposing Metrics
//
// Use the Handler method to expose metrics via HTTP:
//
//	http.HandleFunc("/metrics", collector.Handler)
//	http.ListenAndServe(":8080", nil)
//
// Or use WritePrometheus to write metrics to a custom writer:
//
//	collector.WritePrometheus(w)
//
// # Metrics Provided
//
// Pool:
//   - {prefix}_acquire_total{role} - Counter of acquire operations
//   - {prefix}_acquire_errors_total{role} - Counter of failed acquires
//   - {prefix}_acquire_wait_seconds{role} - Histogram of acquire wait times
//   - {prefix}_sessions_created_total{role} - Counter of sessions created
//   - {prefix}_sessions_destroyed_total{role} - Counter of sessions destroyed
//   - {prefix}_sessions_evicted_total{role} - Counter of sweep evictions
//   - {prefix}_validation_failures_total{role} - Counter of probe failures
//   - {prefix}_idle_sessions - Gauge of idle sessions
//   - {prefix}_active_sessions - Gauge of borrowed sessions
//   - {prefix}_waiting_acquires - Gauge of queued acquires
//
// Resilience:
//   - {prefix}_circuit_breaker_state - Gauge (0=closed, 1=open, 2=half-open)
//   - {prefix}_circuit_breaker_trips_total - Counter of trips to Open
//   - {prefix}_circuit_breaker_rejects_total - Counter of rejected calls
//   - {prefix}_retries_total - Counter of re-attempts
//   - {prefix}_rate_limit_hits_total - Counter of acquires that had to queue
//   - {prefix}_rate_limit_wait_seconds - Histogram of rate-limit waits
//   - {prefix}_execute_success_total - Counter of successful operations
//   - {prefix}_execute_failure_total - Counter of failed operations
package vm

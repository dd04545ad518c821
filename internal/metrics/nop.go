// Package metrics provides internal metrics utilities for Bastion.
package metrics

import "github.com/bastionpool/bastion/types"

// NopMetrics is a no-op metrics collector that discards all metrics.
//
// This is used as the default metrics collector when no collector is configured,
// avoiding nil checks throughout the codebase.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements types.MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNopMetrics creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A collector that discards all metrics
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// ----------------------
// Acquire / Release
// ----------------------

// IncAcquireTotal discards the metric.
func (m *NopMetrics) IncAcquireTotal(_ types.Role) {}

// IncAcquireError discards the metric.
func (m *NopMetrics) IncAcquireError(_ types.Role) {}

// ObserveAcquireWait discards the metric.
func (m *NopMetrics) ObserveAcquireWait(_ types.Role, _ float64) {}

// ----------------------
// Session Lifecycle
// ----------------------

// IncSessionCreated discards the metric.
func (m *NopMetrics) IncSessionCreated(_ types.Role) {}

// IncSessionDestroyed discards the metric.
func (m *NopMetrics) IncSessionDestroyed(_ types.Role) {}

// IncSessionEvicted discards the metric.
func (m *NopMetrics) IncSessionEvicted(_ types.Role) {}

// IncValidationFailure discards the metric.
func (m *NopMetrics) IncValidationFailure(_ types.Role) {}

// ----------------------
// Pool Gauges
// ----------------------

// SetIdleSessions discards the metric.
func (m *NopMetrics) SetIdleSessions(_ int) {}

// SetActiveSessions discards the metric.
func (m *NopMetrics) SetActiveSessions(_ int) {}

// SetWaitingAcquires discards the metric.
func (m *NopMetrics) SetWaitingAcquires(_ int) {}

// ----------------------
// Circuit Breaker
// ----------------------

// SetCircuitBreakerState discards the metric.
func (m *NopMetrics) SetCircuitBreakerState(_ int) {}

// IncCircuitBreakerTrip discards the metric.
func (m *NopMetrics) IncCircuitBreakerTrip() {}

// IncCircuitBreakerReject discards the metric.
func (m *NopMetrics) IncCircuitBreakerReject() {}

// ----------------------
// Retry / Rate Limit
// ----------------------

// IncRetry discards the metric.
func (m *NopMetrics) IncRetry() {}

// IncRateLimitHit discards the metric.
func (m *NopMetrics) IncRateLimitHit() {}

// ObserveRateLimitWait discards the metric.
func (m *NopMetrics) ObserveRateLimitWait(_ float64) {}

// ----------------------
// Orchestrator
// ----------------------

// IncExecuteSuccess discards the metric.
func (m *NopMetrics) IncExecuteSuccess() {}

// IncExecuteFailure discards the metric.
func (m *NopMetrics) IncExecuteFailure() {}

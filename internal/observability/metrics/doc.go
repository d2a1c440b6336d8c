// Package metrics provides centralized Prometheus metrics for the reminder service.
//
// This package covers:
//   - HTTP request metrics for the trigger endpoints
//   - Run, claim and dispatch outcome metrics
//   - Ledger operation timings and connection pool gauges
//
// All metrics are registered with the Prometheus default registry and exposed via
// the /metrics endpoint.
package metrics

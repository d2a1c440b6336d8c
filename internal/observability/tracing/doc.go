// Package tracing wraps OpenTelemetry for the dispatcher.
//
// Spans cover trigger requests (Middleware), orchestrator runs, ledger claims
// and channel fan-out. Without a configured provider the global no-op tracer
// is used and every helper is free.
package tracing

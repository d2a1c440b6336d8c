// Package observability groups the dispatcher's logging, metrics and tracing.
//
// Subpackages:
//   - logging: slog JSON logger with request-id and context propagation
//   - metrics: Prometheus series for runs, claims, dispatch outcomes and HTTP
//   - tracing: OpenTelemetry spans around HTTP requests and dispatch runs
//
// Example usage:
//
//	import (
//	    "class-reminder/internal/observability/logging"
//	    "class-reminder/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("dispatcher started")
//
//	    metrics.RecordClaim("3h", "claimed")
//	}
package observability

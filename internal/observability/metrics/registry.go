package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Trigger API. The path label is a route template, never a raw session id.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests on the trigger API",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_request_duration_seconds",
		Help: "HTTP request duration in seconds. A dispatch request lasts one whole run.",
		// a POST /dispatch waits for the run, so the tail reaches the run budget
		Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
	}, []string{"method", "path", "status"})

	HTTPResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_response_size_bytes",
		Help:    "HTTP response size in bytes",
		Buckets: prometheus.ExponentialBuckets(64, 4, 7),
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	})
)

// Orchestrator runs and the delivery ledger.
var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_runs_total",
		Help: "Total number of reminder dispatch runs",
	}, []string{"result"}) // success, error, budget_exceeded

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reminder_run_duration_seconds",
		Help:    "Time taken by one reminder dispatch run",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	ClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_claims_total",
		Help: "Total number of ledger claim attempts",
	}, []string{"reminder_type", "result"}) // claimed, reclaimed, already_handled, error

	DispatchOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_dispatch_outcomes_total",
		Help: "Total number of committed reminder dispatches by outcome",
	}, []string{"reminder_type", "outcome", "catch_up"}) // sent, failed

	CommitErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_commit_errors_total",
		Help: "Total number of ledger commit errors",
	}, []string{"reason"}) // claim_lost, error

	StaleClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_stale_claims_total",
		Help: "Total number of stale ledger claims found",
	}, []string{"disposition"}) // reclaimable, exhausted

	LedgerPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_ledger_purged_total",
		Help: "Total number of ledger entries purged by retention",
	})

	LedgerOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reminder_ledger_operation_duration_seconds",
		Help:    "Duration of ledger claims and commits, commit retries included",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"operation", "result"})
)

// Session store connection pool, sampled by ObservePool.
var (
	DBConnectionsInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_connections_in_use",
		Help: "Number of session store connections in use",
	})

	DBConnectionsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_connections_idle",
		Help: "Number of idle session store connections",
	})

	DBConnectionWaitSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_connection_wait_seconds",
		Help: "Cumulative time spent waiting for a session store connection",
	})
)

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, path, status string, duration time.Duration, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordLedgerOperation times one claim or commit against the ledger backend.
func RecordLedgerOperation(operation string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	LedgerOperationDuration.WithLabelValues(operation, result).Observe(duration.Seconds())
}

// ObservePool copies a sql.DB pool snapshot into the db_connections gauges.
func ObservePool(stats sql.DBStats) {
	DBConnectionsInUse.Set(float64(stats.InUse))
	DBConnectionsIdle.Set(float64(stats.Idle))
	DBConnectionWaitSeconds.Set(stats.WaitDuration.Seconds())
}

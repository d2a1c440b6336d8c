package worker

import (
	"class-reminder/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DispatcherMetrics are the process-level metrics of the dispatcher: config
// loading plus one series per trigger. Per-dispatch metrics live in
// observability/metrics.
//
// Embedded metrics (from ConfigMetrics):
//   - dispatcher_config_load_timestamp
//   - dispatcher_config_validation_errors_total{field}
//   - dispatcher_config_fallbacks_total{field}
//   - dispatcher_config_fallback_active
type DispatcherMetrics struct {
	*config.ConfigMetrics

	// TriggerRunsTotal counts runs by trigger (http, sqs, cron) and status
	// (started, success, failure).
	TriggerRunsTotal *prometheus.CounterVec

	// TriggerRunDurationSeconds observes run wall time by trigger.
	TriggerRunDurationSeconds *prometheus.HistogramVec

	// LastSuccessTimestamp is the Unix time of the last run that returned no error.
	LastSuccessTimestamp prometheus.Gauge

	// PurgeRunsTotal counts retention purges by status.
	PurgeRunsTotal *prometheus.CounterVec
}

// NewDispatcherMetrics creates and registers the dispatcher metrics. It must be
// called once per process; promauto panics on duplicate registration.
func NewDispatcherMetrics() *DispatcherMetrics {
	return &DispatcherMetrics{
		ConfigMetrics: config.NewConfigMetrics("dispatcher"),

		TriggerRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatcher_trigger_runs_total",
			Help: "Total number of dispatch runs by trigger and status",
		}, []string{"trigger", "status"}),

		TriggerRunDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatcher_trigger_run_duration_seconds",
			Help:    "Duration of dispatch runs in seconds by trigger",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 240},
		}, []string{"trigger"}),

		LastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dispatcher_last_success_timestamp",
			Help: "Unix timestamp of the last successful dispatch run",
		}),

		PurgeRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatcher_purge_runs_total",
			Help: "Total number of ledger retention purges by status",
		}, []string{"status"}),
	}
}

// RecordRun records one finished run of trigger.
func (m *DispatcherMetrics) RecordRun(trigger, status string, seconds float64) {
	m.TriggerRunsTotal.WithLabelValues(trigger, status).Inc()
	m.TriggerRunDurationSeconds.WithLabelValues(trigger).Observe(seconds)
	if status == "success" {
		m.LastSuccessTimestamp.SetToCurrentTime()
	}
}

// RecordRunStarted counts a run as started.
func (m *DispatcherMetrics) RecordRunStarted(trigger string) {
	m.TriggerRunsTotal.WithLabelValues(trigger, "started").Inc()
}

// RecordPurge records one retention purge.
func (m *DispatcherMetrics) RecordPurge(status string) {
	m.PurgeRunsTotal.WithLabelValues(status).Inc()
}

package worker

import (
	"context"
	"log/slog"
	"time"

	"class-reminder/internal/handler/http/respond"
	"class-reminder/internal/usecase/reminder"
)

// Runner runs one dispatch pass. It is satisfied by *reminder.Service.
type Runner interface {
	Run(ctx context.Context) (*reminder.RunStats, error)
}

// InstrumentedRunner records trigger metrics around every run.
type InstrumentedRunner struct {
	runner  Runner
	trigger string
	metrics *DispatcherMetrics
	logger  *slog.Logger
}

// Instrument wraps runner for the named trigger.
func Instrument(runner Runner, trigger string, metrics *DispatcherMetrics, logger *slog.Logger) *InstrumentedRunner {
	return &InstrumentedRunner{runner: runner, trigger: trigger, metrics: metrics, logger: logger}
}

// Run delegates to the wrapped runner.
func (r *InstrumentedRunner) Run(ctx context.Context) (*reminder.RunStats, error) {
	start := time.Now()
	r.metrics.RecordRunStarted(r.trigger)

	stats, err := r.runner.Run(ctx)
	if err != nil {
		r.metrics.RecordRun(r.trigger, "failure", time.Since(start).Seconds())
		r.logger.Error("dispatch run failed",
			slog.String("trigger", r.trigger),
			slog.String("error", respond.SanitizeError(err)))
		return stats, err
	}
	r.metrics.RecordRun(r.trigger, "success", time.Since(start).Seconds())
	return stats, nil
}

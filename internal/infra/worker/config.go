package worker

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"class-reminder/internal/pkg/config"
)

// Trigger modes accepted in TRIGGER_MODES.
const (
	TriggerHTTP = "http"
	TriggerSQS  = "sqs"
	TriggerCron = "cron"
)

// Ledger backends accepted in LEDGER_BACKEND.
const (
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
	LedgerMemory   = "memory"
)

// DispatcherConfig holds the operational settings of the dispatcher process.
//
// Configuration sources:
//   - Environment variables (loaded via LoadConfigFromEnv)
//   - Default values (provided by DefaultConfig)
//
// Every field has a default and a validator. An invalid value never stops the
// process: it is replaced by the default and reported through the config metrics.
type DispatcherConfig struct {
	// TriggerModes lists the enabled invokers: http, sqs and/or cron.
	// Default: ["http"]
	TriggerModes []string

	// CronSchedule is the in-process dispatch schedule used by the cron trigger.
	// Default: "*/5 * * * *"
	CronSchedule string

	// PurgeSchedule is the cron expression of the daily ledger retention purge.
	// Default: "17 3 * * *"
	PurgeSchedule string

	// Timezone is the IANA timezone the cron schedules are evaluated in.
	// Reminder windows are always computed on absolute instants.
	// Default: "UTC"
	Timezone string

	// NotifyMaxConcurrent bounds concurrent channel sends within one dispatch.
	// Range: 1-50
	// Default: 10
	NotifyMaxConcurrent int

	// SendTimeout bounds one provider call.
	// Range: 1s-2m
	// Default: 15s
	SendTimeout time.Duration

	// NotifyRetryMaxAttempts caps attempts per target within one dispatch.
	// Range: 1-10
	// Default: 3
	NotifyRetryMaxAttempts int

	// RunBudget bounds the time a run spends starting new work.
	// Range: 10s-15m
	// Default: 4m
	RunBudget time.Duration

	// SessionConcurrency bounds sessions processed in parallel within one run.
	// Range: 1-32
	// Default: 4
	SessionConcurrency int

	// ClaimTimeout bounds one ledger claim.
	// Range: 1s-1m
	// Default: 5s
	ClaimTimeout time.Duration

	// CommitTimeout bounds one ledger commit including its retries.
	// Range: 1s-2m
	// Default: 10s
	CommitTimeout time.Duration

	// StaleAfter is the age after which a claimed ledger entry is abandoned.
	// Range: 1m-2h
	// Default: 10m
	StaleAfter time.Duration

	// MaxAttempts caps claims per dispatch key, reclaims included.
	// Range: 1-10
	// Default: 3
	MaxAttempts int

	// LedgerRetention is how long terminal ledger entries are kept.
	// Range: 25h-8760h
	// Default: 720h
	LedgerRetention time.Duration

	// LedgerBackend selects the ledger store: postgres, redis or memory.
	// Default: "postgres"
	LedgerBackend string

	// CatchUp enables catch-up of reminder types whose window was missed.
	// Default: true
	CatchUp bool

	// DryRun replaces every provider with a logging no-op notifier.
	// Default: false
	DryRun bool

	// HTTPPort is the port of the trigger and operator API.
	// Range: 1024-65535
	// Default: 8080
	HTTPPort int

	// HealthPort is the port of the probe server.
	// Range: 1024-65535
	// Default: 9091
	HealthPort int
}

// DefaultConfig returns a DispatcherConfig with production defaults: a five
// minute cadence matching the narrowest reminder window, a nightly purge and a
// run budget shorter than the cadence so runs rarely overlap.
func DefaultConfig() DispatcherConfig {
	return DispatcherConfig{
		TriggerModes:           []string{TriggerHTTP},
		CronSchedule:           "*/5 * * * *",
		PurgeSchedule:          "17 3 * * *",
		Timezone:               "UTC",
		NotifyMaxConcurrent:    10,
		SendTimeout:            15 * time.Second,
		NotifyRetryMaxAttempts: 3,
		RunBudget:              4 * time.Minute,
		SessionConcurrency:     4,
		ClaimTimeout:           5 * time.Second,
		CommitTimeout:          10 * time.Second,
		StaleAfter:             10 * time.Minute,
		MaxAttempts:            3,
		LedgerRetention:        720 * time.Hour,
		LedgerBackend:          LedgerPostgres,
		CatchUp:                true,
		DryRun:                 false,
		HTTPPort:               8080,
		HealthPort:             9091,
	}
}

// HasTrigger reports whether mode is enabled.
func (c *DispatcherConfig) HasTrigger(mode string) bool {
	for _, m := range c.TriggerModes {
		if m == mode {
			return true
		}
	}
	return false
}

// Validate checks every field and returns all failures together.
func (c *DispatcherConfig) Validate() error {
	var errs []error

	if err := validateTriggerModes(strings.Join(c.TriggerModes, ",")); err != nil {
		errs = append(errs, fmt.Errorf("trigger modes: %w", err))
	}
	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateCronSchedule(c.PurgeSchedule); err != nil {
		errs = append(errs, fmt.Errorf("purge schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateIntRange(c.NotifyMaxConcurrent, 1, 50); err != nil {
		errs = append(errs, fmt.Errorf("notify max concurrent: %w", err))
	}
	if err := config.ValidateDuration(c.SendTimeout, time.Second, 2*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("send timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.NotifyRetryMaxAttempts, 1, 10); err != nil {
		errs = append(errs, fmt.Errorf("notify retry max attempts: %w", err))
	}
	if err := config.ValidateDuration(c.RunBudget, 10*time.Second, 15*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("run budget: %w", err))
	}
	if err := config.ValidateIntRange(c.SessionConcurrency, 1, 32); err != nil {
		errs = append(errs, fmt.Errorf("session concurrency: %w", err))
	}
	if err := config.ValidateDuration(c.ClaimTimeout, time.Second, time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("claim timeout: %w", err))
	}
	if err := config.ValidateDuration(c.CommitTimeout, time.Second, 2*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("commit timeout: %w", err))
	}
	if err := config.ValidateDuration(c.StaleAfter, time.Minute, 2*time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("stale after: %w", err))
	}
	if err := config.ValidateIntRange(c.MaxAttempts, 1, 10); err != nil {
		errs = append(errs, fmt.Errorf("max attempts: %w", err))
	}
	if err := config.ValidateDuration(c.LedgerRetention, 25*time.Hour, 8760*time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("ledger retention: %w", err))
	}
	if err := validateLedgerBackend(c.LedgerBackend); err != nil {
		errs = append(errs, fmt.Errorf("ledger backend: %w", err))
	}
	if err := config.ValidateIntRange(c.HTTPPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("http port: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

func validateTriggerModes(v string) error {
	modes := splitList(v)
	if len(modes) == 0 {
		return fmt.Errorf("at least one trigger is required")
	}
	for _, m := range modes {
		switch m {
		case TriggerHTTP, TriggerSQS, TriggerCron:
		default:
			return fmt.Errorf("unknown trigger %q", m)
		}
	}
	return nil
}

func validateLedgerBackend(v string) error {
	switch v {
	case LedgerPostgres, LedgerRedis, LedgerMemory:
		return nil
	}
	return fmt.Errorf("unknown backend %q", v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// fallbackRecorder logs and counts the values that fell back to defaults.
type fallbackRecorder struct {
	logger  *slog.Logger
	metrics *DispatcherMetrics
	applied bool
}

// take returns r.Value, recording the fallback under the Go field name (logs)
// and the snake_case metric label.
func take[T any](f *fallbackRecorder, field, metricField string, r config.LoadResult[T]) T {
	if r.FallbackApplied {
		f.applied = true
		f.metrics.RecordFallback(metricField)
		f.logger.Warn("Configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", r.Warning))
	}
	return r.Value
}

// LoadConfigFromEnv loads the dispatcher configuration with the fail-open
// strategy: each value is read, validated and replaced by its default when
// invalid. It never returns an error.
//
// Environment variables:
//   - TRIGGER_MODES: comma-separated http, sqs, cron (default: "http")
//   - CRON_SCHEDULE: dispatch cron expression (default: "*/5 * * * *")
//   - PURGE_SCHEDULE: retention purge cron expression (default: "17 3 * * *")
//   - DISPATCHER_TIMEZONE: IANA timezone for the schedules (default: "UTC")
//   - NOTIFY_MAX_CONCURRENT: 1-50 (default: 10)
//   - NOTIFY_SEND_TIMEOUT: duration 1s-2m (default: 15s)
//   - NOTIFY_RETRY_MAX_ATTEMPTS: 1-10 (default: 3)
//   - RUN_BUDGET: duration 10s-15m (default: 4m)
//   - SESSION_CONCURRENCY: 1-32 (default: 4)
//   - CLAIM_TIMEOUT: duration 1s-1m (default: 5s)
//   - COMMIT_TIMEOUT: duration 1s-2m (default: 10s)
//   - CLAIM_STALE_AFTER: duration 1m-2h (default: 10m)
//   - CLAIM_MAX_ATTEMPTS: 1-10 (default: 3)
//   - LEDGER_RETENTION: duration 25h-8760h (default: 720h)
//   - LEDGER_BACKEND: postgres, redis or memory (default: "postgres")
//   - REMINDER_CATCH_UP: bool (default: true)
//   - DRY_RUN: bool (default: false)
//   - HTTP_PORT: 1024-65535 (default: 8080)
//   - HEALTH_PORT: 1024-65535 (default: 9091)
func LoadConfigFromEnv(logger *slog.Logger, metrics *DispatcherMetrics) (*DispatcherConfig, error) {
	cfg := DefaultConfig()
	rec := &fallbackRecorder{logger: logger, metrics: metrics}

	intIn := func(min, max int) config.Validator[int] {
		return func(v int) error { return config.ValidateIntRange(v, min, max) }
	}
	durationIn := func(min, max time.Duration) config.Validator[time.Duration] {
		return func(d time.Duration) error { return config.ValidateDuration(d, min, max) }
	}

	cfg.TriggerModes = splitList(take(rec, "TriggerModes", "trigger_modes",
		config.LoadEnvWithFallback("TRIGGER_MODES", strings.Join(cfg.TriggerModes, ","), validateTriggerModes)))
	cfg.CronSchedule = take(rec, "CronSchedule", "cron_schedule",
		config.LoadEnvWithFallback("CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule))
	cfg.PurgeSchedule = take(rec, "PurgeSchedule", "purge_schedule",
		config.LoadEnvWithFallback("PURGE_SCHEDULE", cfg.PurgeSchedule, config.ValidateCronSchedule))
	cfg.Timezone = take(rec, "Timezone", "timezone",
		config.LoadEnvWithFallback("DISPATCHER_TIMEZONE", cfg.Timezone, config.ValidateTimezone))

	cfg.NotifyMaxConcurrent = take(rec, "NotifyMaxConcurrent", "notify_max_concurrent",
		config.LoadEnvInt("NOTIFY_MAX_CONCURRENT", cfg.NotifyMaxConcurrent, intIn(1, 50)))
	cfg.SendTimeout = take(rec, "SendTimeout", "send_timeout",
		config.LoadEnvDuration("NOTIFY_SEND_TIMEOUT", cfg.SendTimeout, durationIn(time.Second, 2*time.Minute)))
	cfg.NotifyRetryMaxAttempts = take(rec, "NotifyRetryMaxAttempts", "notify_retry_max_attempts",
		config.LoadEnvInt("NOTIFY_RETRY_MAX_ATTEMPTS", cfg.NotifyRetryMaxAttempts, intIn(1, 10)))
	cfg.RunBudget = take(rec, "RunBudget", "run_budget",
		config.LoadEnvDuration("RUN_BUDGET", cfg.RunBudget, durationIn(10*time.Second, 15*time.Minute)))
	cfg.SessionConcurrency = take(rec, "SessionConcurrency", "session_concurrency",
		config.LoadEnvInt("SESSION_CONCURRENCY", cfg.SessionConcurrency, intIn(1, 32)))
	cfg.ClaimTimeout = take(rec, "ClaimTimeout", "claim_timeout",
		config.LoadEnvDuration("CLAIM_TIMEOUT", cfg.ClaimTimeout, durationIn(time.Second, time.Minute)))
	cfg.CommitTimeout = take(rec, "CommitTimeout", "commit_timeout",
		config.LoadEnvDuration("COMMIT_TIMEOUT", cfg.CommitTimeout, durationIn(time.Second, 2*time.Minute)))

	cfg.StaleAfter = take(rec, "StaleAfter", "stale_after",
		config.LoadEnvDuration("CLAIM_STALE_AFTER", cfg.StaleAfter, durationIn(time.Minute, 2*time.Hour)))
	cfg.MaxAttempts = take(rec, "MaxAttempts", "max_attempts",
		config.LoadEnvInt("CLAIM_MAX_ATTEMPTS", cfg.MaxAttempts, intIn(1, 10)))
	cfg.LedgerRetention = take(rec, "LedgerRetention", "ledger_retention",
		config.LoadEnvDuration("LEDGER_RETENTION", cfg.LedgerRetention, durationIn(25*time.Hour, 8760*time.Hour)))
	cfg.LedgerBackend = take(rec, "LedgerBackend", "ledger_backend",
		config.LoadEnvWithFallback("LEDGER_BACKEND", cfg.LedgerBackend, validateLedgerBackend))

	cfg.CatchUp = take(rec, "CatchUp", "catch_up", config.LoadEnvBool("REMINDER_CATCH_UP", cfg.CatchUp))
	cfg.DryRun = take(rec, "DryRun", "dry_run", config.LoadEnvBool("DRY_RUN", cfg.DryRun))

	cfg.HTTPPort = take(rec, "HTTPPort", "http_port",
		config.LoadEnvInt("HTTP_PORT", cfg.HTTPPort, intIn(1024, 65535)))
	cfg.HealthPort = take(rec, "HealthPort", "health_port",
		config.LoadEnvInt("HEALTH_PORT", cfg.HealthPort, intIn(1024, 65535)))

	metrics.SetFallbackActive(rec.applied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}

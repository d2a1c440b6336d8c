package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"class-reminder/internal/config"
	hhttp "class-reminder/internal/handler/http"
	pgRepo "class-reminder/internal/infra/adapter/persistence/postgres"
	"class-reminder/internal/infra/db"
	workerPkg "class-reminder/internal/infra/worker"
	"class-reminder/internal/observability/logging"
	"class-reminder/internal/resilience/retry"
	"class-reminder/internal/usecase/notify"
	"class-reminder/internal/usecase/reminder"
	"class-reminder/internal/usecase/window"
)

func waitForMigrations(logger *slog.Logger, db *sql.DB) {
	const probe = "SELECT 1 FROM reminder_ledger LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

func main() {
	envFile, envErr := config.LoadDotEnv()
	logger := initLogger()
	if envErr != nil {
		logger.Warn("failed to load .env file", slog.Any("error", envErr))
	} else if envFile != "" {
		logger.Info(".env file loaded", slog.String("path", envFile))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database := initDatabase(ctx, logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	// Load dispatcher configuration (fail-open strategy)
	dispatcherMetrics := workerPkg.NewDispatcherMetrics()
	cfg, err := workerPkg.LoadConfigFromEnv(logger, dispatcherMetrics)
	if err != nil {
		logger.Error("failed to load dispatcher configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("dispatcher configuration loaded",
		slog.Any("triggers", cfg.TriggerModes),
		slog.String("cron_schedule", cfg.CronSchedule),
		slog.String("purge_schedule", cfg.PurgeSchedule),
		slog.String("timezone", cfg.Timezone),
		slog.String("ledger_backend", cfg.LedgerBackend),
		slog.Duration("run_budget", cfg.RunBudget),
		slog.Int("session_concurrency", cfg.SessionConcurrency),
		slog.Int("notify_max_concurrent", cfg.NotifyMaxConcurrent),
		slog.Bool("catch_up", cfg.CatchUp),
		slog.Bool("dry_run", cfg.DryRun))

	ledger, err := openLedger(ctx, logger, cfg, database)
	if err != nil {
		logger.Error("failed to open delivery ledger", slog.Any("error", err))
		os.Exit(1)
	}
	defer ledger.Close()

	channelsConfig := config.LoadChannelsConfig()
	channels, closeChannels := buildChannels(logger, channelsConfig, cfg.DryRun)
	defer closeChannels()

	targets, err := config.LoadTargets(channelsConfig)
	if err != nil {
		logger.Error("failed to load reminder targets", slog.Any("error", err))
		os.Exit(1)
	}
	if len(targets) == 0 {
		logger.Warn("no reminder targets configured, runs will only record ledger entries")
	}

	dispatcher := notify.NewDispatcher(notify.Config{
		MaxConcurrent: cfg.NotifyMaxConcurrent,
		SendTimeout:   cfg.SendTimeout,
		Retry:         retry.NotificationConfig(cfg.NotifyRetryMaxAttempts),
	}, logger, channels...)
	warnUnroutable(logger, dispatcher.Kinds(), targets)
	logger.Info("notification dispatcher initialized",
		slog.Int("channels", len(channels)),
		slog.Int("targets", len(targets)),
		slog.Int("max_concurrent", cfg.NotifyMaxConcurrent))

	svc := reminder.NewService(
		pgRepo.NewSessionRepo(database),
		ledger.Repo,
		window.NewEvaluator(cfg.CatchUp),
		dispatcher,
		targets,
		reminder.Config{
			RunBudget:          cfg.RunBudget,
			SessionConcurrency: cfg.SessionConcurrency,
			ClaimTimeout:       cfg.ClaimTimeout,
			CommitTimeout:      cfg.CommitTimeout,
			Retention:          cfg.LedgerRetention,
		},
		reminder.WithLogger(logger),
	)

	// Start metrics HTTP server
	startMetricsServer(ctx, logger, dispatcher)
	go samplePoolStats(ctx, database, 15*time.Second)

	// Start health check server
	healthAddr := fmt.Sprintf(":%d", cfg.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	healthServer.AddCheck("database", database.PingContext)
	healthServer.AddCheck("ledger", ledger.Ping)
	healthServer.Handle("/health/channels", &hhttp.ChannelHealthHandler{Channels: dispatcher})
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	var wg sync.WaitGroup
	apiServer := startTriggers(ctx, &wg, logger, cfg, svc, dispatcherMetrics, database, ledger, dispatcher)
	scheduler := startCronWorker(logger, svc, cfg, dispatcherMetrics)

	healthServer.SetReady(true)
	logger.Info("dispatcher started", slog.Any("triggers", cfg.TriggerModes))

	<-ctx.Done()
	logger.Info("shutting down dispatcher...")
	healthServer.SetReady(false)

	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("api server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	// running jobs finish their claims; the run budget bounds the wait
	cronDone := scheduler.Stop()
	select {
	case <-cronDone.Done():
	case <-time.After(cfg.RunBudget + cfg.SendTimeout):
		logger.Warn("cron jobs still running at shutdown deadline")
	}
	wg.Wait()
	logger.Info("dispatcher stopped")
}

// initLogger initializes the JSON logger from LOG_LEVEL and installs it as default.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the session store connection and waits for migrations to complete.
func initDatabase(ctx context.Context, logger *slog.Logger) *sql.DB {
	database, err := db.Open(ctx)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	waitForMigrations(logger, database)
	return database
}

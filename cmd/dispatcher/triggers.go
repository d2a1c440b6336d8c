package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"class-reminder/internal/config"
	hhttp "class-reminder/internal/handler/http"
	hauth "class-reminder/internal/handler/http/auth"
	"class-reminder/internal/handler/http/requestid"
	"class-reminder/internal/handler/http/respond"
	"class-reminder/internal/handler/http/trigger"
	"class-reminder/internal/handler/queue"
	workerPkg "class-reminder/internal/infra/worker"
	"class-reminder/internal/observability/tracing"
	"class-reminder/internal/usecase/notify"
	"class-reminder/internal/usecase/reminder"
	pkgconfig "class-reminder/pkg/config"
)

// startTriggers starts the http and sqs triggers enabled in cfg. The cron trigger
// is started by startCronWorker. The API server is returned for shutdown; it is nil
// when the http trigger is off.
func startTriggers(
	ctx context.Context,
	wg *sync.WaitGroup,
	logger *slog.Logger,
	cfg *workerPkg.DispatcherConfig,
	svc *reminder.Service,
	metrics *workerPkg.DispatcherMetrics,
	database *sql.DB,
	ledger *ledgerHandle,
	dispatcher *notify.Dispatcher,
) *http.Server {
	var apiServer *http.Server
	if cfg.HasTrigger(workerPkg.TriggerHTTP) {
		apiServer = startAPIServer(ctx, logger, cfg, svc, metrics, database, ledger, dispatcher)
	}
	if cfg.HasTrigger(workerPkg.TriggerSQS) {
		startQueueConsumer(ctx, wg, logger, svc, metrics)
	}
	return apiServer
}

// startAPIServer serves the HTTP trigger, the operator ledger view and the probes.
func startAPIServer(
	ctx context.Context,
	logger *slog.Logger,
	cfg *workerPkg.DispatcherConfig,
	svc *reminder.Service,
	metrics *workerPkg.DispatcherMetrics,
	database *sql.DB,
	ledger *ledgerHandle,
	dispatcher *notify.Dispatcher,
) *http.Server {
	secret := []byte(os.Getenv("JWT_SECRET"))
	if err := hauth.ValidateSecret(secret); err != nil {
		logger.Error("http trigger requires a valid JWT_SECRET", slog.Any("error", err))
		os.Exit(1)
	}

	router := mux.NewRouter()
	router.Use(hhttp.MetricsMiddleware, tracing.Middleware, hauth.Authz(secret))

	router.Handle("/health", &hhttp.HealthHandler{
		DB:       database,
		Pings:    map[string]hhttp.PingFunc{"ledger": ledger.Ping},
		Channels: dispatcher,
		Version:  pkgconfig.GetEnvString("VERSION", "dev"),
	}).Methods(http.MethodGet)
	router.Handle("/health/channels", &hhttp.ChannelHealthHandler{Channels: dispatcher}).Methods(http.MethodGet)
	router.Handle("/ready", &hhttp.ReadyHandler{DB: database}).Methods(http.MethodGet)
	router.Handle("/live", &hhttp.LiveHandler{}).Methods(http.MethodGet)
	router.Handle("/metrics", hhttp.MetricsHandler()).Methods(http.MethodGet)

	instrumented := workerPkg.Instrument(svc, workerPkg.TriggerHTTP, metrics, logger)
	trigger.Register(router, struct {
		trigger.Runner
		trigger.LedgerReader
	}{instrumented, svc})

	// Apply in reverse order (innermost to outermost)
	var handler http.Handler = router
	handler = hhttp.InputValidation(hhttp.DefaultMaxBodyBytes)(handler)
	handler = hhttp.Logging(logger)(handler)
	handler = hhttp.Recover(logger)(handler)
	handler = requestid.Middleware(handler)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		// a dispatch run answers after it finished
		WriteTimeout: cfg.RunBudget + 2*cfg.SendTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("api server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()
	return srv
}

// startQueueConsumer long-polls SQS_QUEUE_URL; every received batch triggers one run.
func startQueueConsumer(ctx context.Context, wg *sync.WaitGroup, logger *slog.Logger, svc *reminder.Service, metrics *workerPkg.DispatcherMetrics) {
	awsConfig := config.LoadAWSConfig()
	sdkConfig, err := awsConfig.SDKConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS configuration", slog.Any("error", err))
		os.Exit(1)
	}
	client := sqs.NewFromConfig(sdkConfig, func(o *sqs.Options) {
		if ep := awsConfig.BaseEndpoint(); ep != nil {
			logger.Info("using custom endpoint for SQS", slog.String("endpoint", *ep))
			o.BaseEndpoint = ep
		}
	})

	consumer := queue.NewConsumer(client,
		workerPkg.Instrument(svc, workerPkg.TriggerSQS, metrics, logger),
		queue.Config{
			QueueURL:        os.Getenv("SQS_QUEUE_URL"),
			WaitTimeSeconds: int32(pkgconfig.GetEnvInt("SQS_WAIT_TIME_SECONDS", 20)),
		},
		logger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Start(ctx); err != nil {
			logger.Error("sqs trigger consumer failed", slog.Any("error", err))
		}
	}()
}

// startCronWorker schedules the retention purge and, when the cron trigger is on,
// the dispatch run. The returned scheduler is already started.
func startCronWorker(logger *slog.Logger, svc *reminder.Service, cfg *workerPkg.DispatcherConfig, metrics *workerPkg.DispatcherMetrics) *cron.Cron {
	// Load timezone
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	if cfg.HasTrigger(workerPkg.TriggerCron) {
		runner := workerPkg.Instrument(svc, workerPkg.TriggerCron, metrics, logger)
		_, err = c.AddFunc(cfg.CronSchedule, func() {
			runDispatchJob(logger, runner)
		})
		if err != nil {
			logger.Error("failed to add dispatch cron job", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("cron trigger scheduled", slog.String("schedule", cfg.CronSchedule), slog.String("timezone", cfg.Timezone))
	}

	_, err = c.AddFunc(cfg.PurgeSchedule, func() {
		runPurgeJob(logger, svc, metrics)
	})
	if err != nil {
		logger.Error("failed to add purge cron job", slog.Any("error", err))
		os.Exit(1)
	}

	c.Start()
	return c
}

// runDispatchJob executes one cron-triggered run. The run bounds itself with its
// budget and is not cancelled on shutdown; Stop waits for it.
func runDispatchJob(logger *slog.Logger, runner *workerPkg.InstrumentedRunner) {
	stats, err := runner.Run(requestid.WithRequestID(context.Background(), "cron:"+requestid.New()))
	if err != nil {
		return
	}
	logger.Info("cron triggered run completed",
		slog.String("run_id", stats.RunID),
		slog.Int("sent", stats.Sent),
		slog.Int("failed", stats.Failed),
		slog.Duration("duration", stats.Duration))
}

// runPurgeJob deletes terminal ledger entries older than the retention.
func runPurgeJob(logger *slog.Logger, svc *reminder.Service, metrics *workerPkg.DispatcherMetrics) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	n, err := svc.Purge(ctx)
	if err != nil {
		metrics.RecordPurge("failure")
		logger.Error("ledger purge failed", slog.String("error", respond.SanitizeError(err)))
		return
	}
	metrics.RecordPurge("success")
	logger.Info("ledger purge completed", slog.Int64("deleted", n))
}

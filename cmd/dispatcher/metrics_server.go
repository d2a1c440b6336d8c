package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	hhttp "class-reminder/internal/handler/http"
	"class-reminder/internal/observability/metrics"
	pkgconfig "class-reminder/pkg/config"
)

// startMetricsServer serves GET /metrics on METRICS_PORT (default 9090) and
// /health/channels for scrapers that alert on open breakers. It stops with ctx.
func startMetricsServer(ctx context.Context, logger *slog.Logger, channels hhttp.ChannelHealthReporter) {
	port := pkgconfig.GetEnvInt("METRICS_PORT", 9090)
	if port <= 0 || port > 65535 {
		logger.Warn("METRICS_PORT out of range, using 9090", slog.Int("port", port))
		port = 9090
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", hhttp.MetricsHandler())
	mux.Handle("GET /health/channels", &hhttp.ChannelHealthHandler{Channels: channels})

	serveUntilDone(ctx, logger, "metrics", &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	})
}

// serveUntilDone runs srv in the background and shuts it down, waiting up to
// five seconds for in-flight requests, once ctx is cancelled.
func serveUntilDone(ctx context.Context, logger *slog.Logger, name string, srv *http.Server) {
	logger = logger.With(slog.String("server", name), slog.String("addr", srv.Addr))
	go func() {
		logger.Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", slog.Any("error", err))
			return
		}
		logger.Info("server stopped")
	}()
}

// samplePoolStats copies the session store pool stats into the db_connections
// gauges every interval until ctx is cancelled.
func samplePoolStats(ctx context.Context, database *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		metrics.ObservePool(database.Stats())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

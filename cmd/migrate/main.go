// Command migrate creates or drops the delivery ledger schema in DATABASE_URL.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"class-reminder/internal/config"
	"class-reminder/internal/infra/db"
	"class-reminder/internal/observability/logging"
)

func main() {
	down := flag.Bool("down", false, "drop the ledger instead of creating it")
	flag.Parse()

	_, envErr := config.LoadDotEnv()
	logger := logging.NewTextLogger()
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Warn("failed to load .env file", slog.Any("error", envErr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database, err := db.Open(ctx)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	if *down {
		if err := db.MigrateDown(ctx, database); err != nil {
			logger.Error("failed to migrate down", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("ledger schema dropped")
		return
	}

	if err := db.MigrateUp(ctx, database); err != nil {
		logger.Error("failed to migrate up", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("ledger schema ready")
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"class-reminder/internal/domain/entity"
	"class-reminder/internal/infra/adapter/persistence/memory"
	pgRepo "class-reminder/internal/infra/adapter/persistence/postgres"
	redisRepo "class-reminder/internal/infra/adapter/persistence/redis"
	workerPkg "class-reminder/internal/infra/worker"
	"class-reminder/internal/repository"
	"class-reminder/internal/resilience/circuitbreaker"
	pkgconfig "class-reminder/pkg/config"
)

// ledgerHandle is the opened delivery ledger with its probe and cleanup.
type ledgerHandle struct {
	Repo  repository.DeliveryLedger
	Ping  func(ctx context.Context) error
	close func() error
}

// Close releases the backend connection, if any.
func (h *ledgerHandle) Close() {
	if h.close == nil {
		return
	}
	if err := h.close(); err != nil {
		slog.Error("failed to close ledger backend", slog.Any("error", err))
	}
}

// openLedger opens the ledger selected by LEDGER_BACKEND.
//
//   - postgres: the session database, behind the database circuit breaker
//   - redis: REDIS_URL, for deployments sharing a cache cluster
//   - memory: single process only; overlapping processes are not deduplicated
func openLedger(ctx context.Context, logger *slog.Logger, cfg *workerPkg.DispatcherConfig, database *sql.DB) (*ledgerHandle, error) {
	policy := entity.ClaimPolicy{StaleAfter: cfg.StaleAfter, MaxAttempts: cfg.MaxAttempts}

	switch cfg.LedgerBackend {
	case workerPkg.LedgerRedis:
		rdb, err := redisRepo.NewClient(ctx, pkgconfig.GetEnvString("REDIS_URL", "redis://localhost:6379/0"))
		if err != nil {
			return nil, fmt.Errorf("open redis ledger: %w", err)
		}
		logger.Info("delivery ledger opened", slog.String("backend", "redis"))
		return &ledgerHandle{
			Repo:  redisRepo.NewLedgerRepo(rdb, policy),
			Ping:  func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			close: rdb.Close,
		}, nil

	case workerPkg.LedgerMemory:
		logger.Warn("in-memory ledger selected, run a single dispatcher instance only")
		return &ledgerHandle{
			Repo: memory.NewLedger(policy),
			Ping: func(context.Context) error { return nil },
		}, nil

	default:
		cb := circuitbreaker.NewDBCircuitBreaker(database)
		logger.Info("delivery ledger opened", slog.String("backend", "postgres"))
		return &ledgerHandle{
			Repo: pgRepo.NewLedgerRepo(cb, policy),
			Ping: cb.PingContext,
		}, nil
	}
}

// Package db opens the PostgreSQL pool that holds sessions and, with the
// postgres ledger backend, the delivery ledger.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"class-reminder/internal/resilience/retry"
	pkgconfig "class-reminder/pkg/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrNoDSN is returned when DATABASE_URL is unset.
var ErrNoDSN = errors.New("DATABASE_URL not set")

// PoolConfig sizes the pool. A run holds at most SESSION_CONCURRENCY
// connections at once, plus one per HTTP ledger inspection.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig is used for any DB_* variable that is unset or not positive.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}
}

// startupPing tolerates a database that is still accepting connections when
// the dispatcher container starts.
var startupPing = retry.Config{
	MaxAttempts:    5,
	InitialDelay:   500 * time.Millisecond,
	MaxDelay:       4 * time.Second,
	Multiplier:     2.0,
	JitterFraction: 0.1,
}

// Open connects to DATABASE_URL with the pool settings from DB_MAX_OPEN_CONNS,
// DB_MAX_IDLE_CONNS, DB_CONN_MAX_LIFETIME and DB_CONN_MAX_IDLE_TIME.
func Open(ctx context.Context) (*sql.DB, error) {
	dsn := pkgconfig.GetEnvString("DATABASE_URL", "")
	if dsn == "" {
		return nil, ErrNoDSN
	}
	return OpenDSN(ctx, dsn, poolConfigFromEnv())
}

// OpenDSN opens dsn with the pgx driver and pings it, retrying refused or
// reset connections.
func OpenDSN(ctx context.Context, dsn string, cfg PoolConfig) (*sql.DB, error) {
	pool, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	configure(pool, cfg)

	err = retry.WithBackoff(ctx, startupPing, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pool.PingContext(pingCtx)
	})
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	slog.Info("database connection established")
	return pool, nil
}

func configure(pool *sql.DB, cfg PoolConfig) {
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	slog.Info("database pool configured",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		slog.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime))
}

func poolConfigFromEnv() PoolConfig {
	def := DefaultPoolConfig()
	return PoolConfig{
		MaxOpenConns:    positive(pkgconfig.GetEnvInt("DB_MAX_OPEN_CONNS", def.MaxOpenConns), def.MaxOpenConns),
		MaxIdleConns:    positive(pkgconfig.GetEnvInt("DB_MAX_IDLE_CONNS", def.MaxIdleConns), def.MaxIdleConns),
		ConnMaxLifetime: positive(pkgconfig.GetEnvDuration("DB_CONN_MAX_LIFETIME", def.ConnMaxLifetime), def.ConnMaxLifetime),
		ConnMaxIdleTime: positive(pkgconfig.GetEnvDuration("DB_CONN_MAX_IDLE_TIME", def.ConnMaxIdleTime), def.ConnMaxIdleTime),
	}
}

func positive[T int | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

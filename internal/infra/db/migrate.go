package db

import (
	"context"
	"database/sql"
	"fmt"
)

type step struct {
	name string
	sql  string
}

// upSteps create the delivery ledger and, for standalone deployments, the
// class_sessions table the session source reads from. Each is idempotent.
var upSteps = []step{
	{"class_sessions", `
CREATE TABLE IF NOT EXISTS class_sessions (
    id           TEXT PRIMARY KEY,
    course_name  TEXT NOT NULL,
    session_name TEXT,
    ordinal      INTEGER,
    start_at     TIMESTAMPTZ NOT NULL,
    status       VARCHAR(16) NOT NULL DEFAULT 'scheduled',
    join_url     TEXT
)`},
	{"reminder_ledger", `
CREATE TABLE IF NOT EXISTS reminder_ledger (
    session_id    TEXT NOT NULL,
    reminder_type VARCHAR(8) NOT NULL,
    state         VARCHAR(16) NOT NULL CHECK (state IN ('claimed', 'sent', 'failed')),
    claim_token   UUID,
    claimed_at    TIMESTAMPTZ NOT NULL,
    committed_at  TIMESTAMPTZ,
    attempts      INTEGER NOT NULL DEFAULT 1,
    last_error    TEXT,
    PRIMARY KEY (session_id, reminder_type)
)`},
	// window query: start_at range scan
	{"idx_class_sessions_start_at", `CREATE INDEX IF NOT EXISTS idx_class_sessions_start_at ON class_sessions(start_at)`},
	// stale sweep only looks at open claims
	{"idx_reminder_ledger_claimed", `CREATE INDEX IF NOT EXISTS idx_reminder_ledger_claimed ON reminder_ledger(claimed_at) WHERE state = 'claimed'`},
	// retention purge
	{"idx_reminder_ledger_committed_at", `CREATE INDEX IF NOT EXISTS idx_reminder_ledger_committed_at ON reminder_ledger(committed_at) WHERE state <> 'claimed'`},
}

// downSteps drop the ledger. class_sessions stays: it may be owned by the
// course management system.
var downSteps = []step{
	{"idx_reminder_ledger_committed_at", `DROP INDEX IF EXISTS idx_reminder_ledger_committed_at`},
	{"idx_reminder_ledger_claimed", `DROP INDEX IF EXISTS idx_reminder_ledger_claimed`},
	{"reminder_ledger", `DROP TABLE IF EXISTS reminder_ledger`},
}

// MigrateUp applies the schema in one transaction.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	return apply(ctx, db, "migrate up", upSteps)
}

// MigrateDown removes the ledger schema in one transaction.
func MigrateDown(ctx context.Context, db *sql.DB) error {
	return apply(ctx, db, "migrate down", downSteps)
}

func apply(ctx context.Context, db *sql.DB, op string, steps []step) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range steps {
		if _, err := tx.ExecContext(ctx, s.sql); err != nil {
			return fmt.Errorf("%s: %s: %w", op, s.name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

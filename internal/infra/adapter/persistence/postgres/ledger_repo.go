package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"class-reminder/internal/domain/entity"
	"class-reminder/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// LedgerRepo is the shared DeliveryLedger backed by the reminder_ledger table.
// The primary key (session_id, reminder_type) makes TryClaim a single atomic
// insert-or-takeover statement. All timestamps are supplied by the caller.
type LedgerRepo struct {
	db     DBTX
	policy entity.ClaimPolicy
}

func NewLedgerRepo(db DBTX, policy entity.ClaimPolicy) repository.DeliveryLedger {
	return &LedgerRepo{db: db, policy: policy}
}

func (repo *LedgerRepo) Policy() entity.ClaimPolicy {
	return repo.policy
}

func (repo *LedgerRepo) TryClaim(ctx context.Context, key entity.DispatchKey, now time.Time) (entity.Claim, error) {
	// The conditional DO UPDATE only fires for a stale claim below the attempt cap.
	// Any other conflict leaves the row untouched and returns no row.
	const query = `
INSERT INTO reminder_ledger (session_id, reminder_type, state, claim_token, claimed_at, attempts)
VALUES ($1, $2, 'claimed', $3, $4, 1)
ON CONFLICT (session_id, reminder_type) DO UPDATE
SET claim_token = EXCLUDED.claim_token,
    claimed_at  = EXCLUDED.claimed_at,
    attempts    = reminder_ledger.attempts + 1
WHERE reminder_ledger.state = 'claimed'
  AND reminder_ledger.claimed_at < $5
  AND reminder_ledger.attempts < $6
RETURNING attempts`

	token := uuid.New().String()
	var attempts int
	err := repo.db.QueryRowContext(ctx, query,
		key.SessionID, string(key.Type), token, now.UTC(),
		repo.policy.StaleCutoff(now).UTC(), repo.policy.MaxAttempts,
	).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Claim{Key: key, Status: entity.ClaimAlreadyHandled}, nil
	}
	if err != nil {
		return entity.Claim{}, fmt.Errorf("TryClaim: %w", err)
	}

	return entity.Claim{
		Key:       key,
		Status:    entity.ClaimClaimed,
		Token:     token,
		Attempt:   attempts,
		Reclaimed: attempts > 1,
	}, nil
}

func (repo *LedgerRepo) Commit(ctx context.Context, claim entity.Claim, state entity.LedgerState, detail string, now time.Time) error {
	if !state.Terminal() {
		return fmt.Errorf("Commit: state %q: %w", state, entity.ErrInvalidInput)
	}

	const query = `
UPDATE reminder_ledger
SET state = $1, committed_at = $2, last_error = NULLIF($3, '')
WHERE session_id = $4
  AND reminder_type = $5
  AND state = 'claimed'
  AND claim_token = $6`

	res, err := repo.db.ExecContext(ctx, query,
		string(state), now.UTC(), detail,
		claim.Key.SessionID, string(claim.Key.Type), claim.Token,
	)
	if err != nil {
		return fmt.Errorf("Commit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Commit: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("Commit %s: %w", claim.Key, entity.ErrClaimLost)
	}
	return nil
}

// ReclaimStale fails stale claims that hit the attempt cap, then those whose
// session has started, and reports what is left.
func (repo *LedgerRepo) ReclaimStale(ctx context.Context, now time.Time) (entity.StaleReport, error) {
	const exhaust = `
UPDATE reminder_ledger
SET state = 'failed', committed_at = $1, last_error = $2
WHERE state = 'claimed' AND claimed_at < $3 AND attempts >= $4
RETURNING session_id, reminder_type, claimed_at, attempts`

	const expire = `
UPDATE reminder_ledger
SET state = 'failed', committed_at = $1, last_error = $2
WHERE state = 'claimed' AND claimed_at < $3 AND claimed_at < $4
RETURNING session_id, reminder_type, claimed_at, attempts`

	const reclaimable = `
SELECT session_id, reminder_type, claimed_at, attempts
FROM reminder_ledger
WHERE state = 'claimed' AND claimed_at < $1 AND attempts < $2
ORDER BY claimed_at ASC`

	cutoff := repo.policy.StaleCutoff(now).UTC()

	var report entity.StaleReport
	rows, err := repo.db.QueryContext(ctx, exhaust, now.UTC(), entity.StaleExhaustedMessage, cutoff, repo.policy.MaxAttempts)
	if err != nil {
		return report, fmt.Errorf("ReclaimStale: %w", err)
	}
	report.Exhausted, err = scanStaleClaims(rows)
	if err != nil {
		return report, fmt.Errorf("ReclaimStale: %w", err)
	}

	rows, err = repo.db.QueryContext(ctx, expire, now.UTC(), entity.StaleExpiredMessage, cutoff, repo.policy.ExpiryCutoff(now).UTC())
	if err != nil {
		return report, fmt.Errorf("ReclaimStale: %w", err)
	}
	report.Expired, err = scanStaleClaims(rows)
	if err != nil {
		return report, fmt.Errorf("ReclaimStale: %w", err)
	}

	rows, err = repo.db.QueryContext(ctx, reclaimable, cutoff, repo.policy.MaxAttempts)
	if err != nil {
		return report, fmt.Errorf("ReclaimStale: %w", err)
	}
	report.Reclaimable, err = scanStaleClaims(rows)
	if err != nil {
		return report, fmt.Errorf("ReclaimStale: %w", err)
	}
	return report, nil
}

func (repo *LedgerRepo) Entries(ctx context.Context, sessionIDs []string) ([]entity.LedgerEntry, error) {
	if len(sessionIDs) == 0 {
		return []entity.LedgerEntry{}, nil
	}

	const query = `
SELECT session_id, reminder_type, state, COALESCE(claim_token::text, ''), claimed_at,
       committed_at, attempts, COALESCE(last_error, '')
FROM reminder_ledger
WHERE session_id = ANY($1)
ORDER BY session_id ASC, reminder_type ASC`

	rows, err := repo.db.QueryContext(ctx, query, pq.Array(sessionIDs))
	if err != nil {
		return nil, fmt.Errorf("Entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]entity.LedgerEntry, 0, len(sessionIDs)*3)
	for rows.Next() {
		var (
			e           entity.LedgerEntry
			rt, state   string
			committedAt sql.NullTime
		)
		if err := rows.Scan(&e.Key.SessionID, &rt, &state, &e.ClaimToken, &e.ClaimedAt,
			&committedAt, &e.Attempts, &e.LastError); err != nil {
			return nil, fmt.Errorf("Entries: %w", err)
		}
		e.Key.Type = entity.ReminderType(rt)
		e.State = entity.LedgerState(state)
		if committedAt.Valid {
			t := committedAt.Time
			e.CommittedAt = &t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Entries: %w", err)
	}
	return entries, nil
}

func (repo *LedgerRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
DELETE FROM reminder_ledger
WHERE state IN ('sent', 'failed') AND committed_at < $1`

	res, err := repo.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("PurgeBefore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("PurgeBefore: %w", err)
	}
	return n, nil
}


func scanStaleClaims(rows *sql.Rows) ([]entity.StaleClaim, error) {
	defer func() { _ = rows.Close() }()

	var out []entity.StaleClaim
	for rows.Next() {
		var (
			sc entity.StaleClaim
			rt string
		)
		if err := rows.Scan(&sc.Key.SessionID, &rt, &sc.ClaimedAt, &sc.Attempts); err != nil {
			return nil, err
		}
		sc.Key.Type = entity.ReminderType(rt)
		out = append(out, sc)
	}
	return out, rows.Err()
}

package repository

import (
	"context"
	"time"

	"class-reminder/internal/domain/entity"
)

// DeliveryLedger is the idempotency store for reminder dispatches.
//
// Implementations must make TryClaim atomic: concurrent callers racing on one key
// get exactly one ClaimClaimed. Claims are taken by insert-if-absent on the key,
// never by read-then-write. A claimed entry older than the policy's StaleAfter
// with fewer than MaxAttempts attempts is taken over inside the same atomic step.
type DeliveryLedger interface {
	// TryClaim reserves key for the caller.
	TryClaim(ctx context.Context, key entity.DispatchKey, now time.Time) (entity.Claim, error)

	// Commit moves a claimed entry to sent or failed. It returns entity.ErrClaimLost
	// when claim.Token no longer owns the entry.
	Commit(ctx context.Context, claim entity.Claim, state entity.LedgerState, detail string, now time.Time) error

	// ReclaimStale marks stale claims that exhausted MaxAttempts as failed and
	// reports the ones that may still be reclaimed.
	ReclaimStale(ctx context.Context, now time.Time) (entity.StaleReport, error)

	// Entries returns the entries recorded for the given sessions.
	Entries(ctx context.Context, sessionIDs []string) ([]entity.LedgerEntry, error)

	// PurgeBefore deletes terminal entries committed before cutoff.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Policy returns the claim policy the ledger enforces.
	Policy() entity.ClaimPolicy
}

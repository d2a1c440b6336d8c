// Package memory provides a process-local delivery ledger.
//
// It gives the same claim guarantees as the shared backends, but only within one
// process, which makes it suitable for tests, local runs and DRY_RUN deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"class-reminder/internal/domain/entity"
	"class-reminder/internal/repository"

	"github.com/google/uuid"
)

// Ledger is a thread-safe in-memory implementation of repository.DeliveryLedger.
type Ledger struct {
	mu      sync.Mutex
	entries map[entity.DispatchKey]*entity.LedgerEntry
	policy  entity.ClaimPolicy
}

var _ repository.DeliveryLedger = (*Ledger)(nil)

// NewLedger creates an empty ledger enforcing policy.
func NewLedger(policy entity.ClaimPolicy) *Ledger {
	return &Ledger{
		entries: make(map[entity.DispatchKey]*entity.LedgerEntry),
		policy:  policy,
	}
}

// Policy implements repository.DeliveryLedger.
func (l *Ledger) Policy() entity.ClaimPolicy {
	return l.policy
}

// TryClaim implements repository.DeliveryLedger.
func (l *Ledger) TryClaim(ctx context.Context, key entity.DispatchKey, now time.Time) (entity.Claim, error) {
	if err := ctx.Err(); err != nil {
		return entity.Claim{}, fmt.Errorf("TryClaim: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	token := uuid.New().String()
	e, ok := l.entries[key]
	if !ok {
		l.entries[key] = &entity.LedgerEntry{
			Key:        key,
			State:      entity.LedgerClaimed,
			ClaimToken: token,
			ClaimedAt:  now,
			Attempts:   1,
		}
		return entity.Claim{Key: key, Status: entity.ClaimClaimed, Token: token, Attempt: 1}, nil
	}

	if e.IsStale(now, l.policy) && e.Attempts < l.policy.MaxAttempts {
		e.ClaimToken = token
		e.ClaimedAt = now
		e.Attempts++
		return entity.Claim{Key: key, Status: entity.ClaimClaimed, Token: token, Attempt: e.Attempts, Reclaimed: true}, nil
	}

	return entity.Claim{Key: key, Status: entity.ClaimAlreadyHandled}, nil
}

// Commit implements repository.DeliveryLedger.
func (l *Ledger) Commit(ctx context.Context, claim entity.Claim, state entity.LedgerState, detail string, now time.Time) error {
	if !state.Terminal() {
		return fmt.Errorf("Commit: state %q: %w", state, entity.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("Commit: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[claim.Key]
	if !ok || e.State != entity.LedgerClaimed || e.ClaimToken != claim.Token {
		return fmt.Errorf("Commit %s: %w", claim.Key, entity.ErrClaimLost)
	}
	committed := now
	e.State = state
	e.CommittedAt = &committed
	e.LastError = detail
	return nil
}

// ReclaimStale implements repository.DeliveryLedger.
func (l *Ledger) ReclaimStale(ctx context.Context, now time.Time) (entity.StaleReport, error) {
	if err := ctx.Err(); err != nil {
		return entity.StaleReport{}, fmt.Errorf("ReclaimStale: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	expiry := l.policy.ExpiryCutoff(now)
	var report entity.StaleReport
	for _, e := range l.entries {
		if !e.IsStale(now, l.policy) {
			continue
		}
		sc := entity.StaleClaim{Key: e.Key, ClaimedAt: e.ClaimedAt, Attempts: e.Attempts}
		switch {
		case e.Attempts >= l.policy.MaxAttempts:
			fail(e, now, entity.StaleExhaustedMessage)
			report.Exhausted = append(report.Exhausted, sc)
		case e.ClaimedAt.Before(expiry):
			fail(e, now, entity.StaleExpiredMessage)
			report.Expired = append(report.Expired, sc)
		default:
			report.Reclaimable = append(report.Reclaimable, sc)
		}
	}
	sortStale(report.Reclaimable)
	sortStale(report.Exhausted)
	sortStale(report.Expired)
	return report, nil
}

func fail(e *entity.LedgerEntry, now time.Time, reason string) {
	committed := now
	e.State = entity.LedgerFailed
	e.CommittedAt = &committed
	e.LastError = reason
}

// Entries implements repository.DeliveryLedger.
func (l *Ledger) Entries(ctx context.Context, sessionIDs []string) ([]entity.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("Entries: %w", err)
	}

	want := make(map[string]struct{}, len(sessionIDs))
	for _, id := range sessionIDs {
		want[id] = struct{}{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]entity.LedgerEntry, 0)
	for key, e := range l.entries {
		if _, ok := want[key.SessionID]; ok {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out, nil
}

// PurgeBefore implements repository.DeliveryLedger.
func (l *Ledger) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("PurgeBefore: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var n int64
	for key, e := range l.entries {
		if e.State.Terminal() && e.CommittedAt != nil && e.CommittedAt.Before(cutoff) {
			delete(l.entries, key)
			n++
		}
	}
	return n, nil
}

// Get returns a copy of the entry for key.
func (l *Ledger) Get(key entity.DispatchKey) (entity.LedgerEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return entity.LedgerEntry{}, false
	}
	return *e, true
}

// Put stores an entry as-is. Tests use it to seed abandoned claims.
func (l *Ledger) Put(e entity.LedgerEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := e
	l.entries[e.Key] = &cp
}


func sortStale(s []entity.StaleClaim) {
	sort.Slice(s, func(i, j int) bool { return s[i].ClaimedAt.Before(s[j].ClaimedAt) })
}

package entity

import (
	"fmt"
	"strings"
	"time"
)

// DispatchKey identifies one (session, reminder type) pair. It is the idempotency
// unit of the scheduler: at most one successful dispatch happens per key.
type DispatchKey struct {
	SessionID string
	Type      ReminderType
}

// String renders the key as "session/type".
func (k DispatchKey) String() string {
	return k.SessionID + "/" + string(k.Type)
}

// ParseDispatchKey parses the output of DispatchKey.String.
func ParseDispatchKey(s string) (DispatchKey, error) {
	i := strings.LastIndex(s, "/")
	if i <= 0 || i == len(s)-1 {
		return DispatchKey{}, fmt.Errorf("parse dispatch key %q: %w", s, ErrInvalidInput)
	}
	rt, err := ParseReminderType(s[i+1:])
	if err != nil {
		return DispatchKey{}, fmt.Errorf("parse dispatch key %q: %w", s, err)
	}
	return DispatchKey{SessionID: s[:i], Type: rt}, nil
}

// LedgerState is the state of a ledger entry.
type LedgerState string

const (
	LedgerClaimed LedgerState = "claimed"
	LedgerSent    LedgerState = "sent"
	LedgerFailed  LedgerState = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s LedgerState) Terminal() bool {
	return s == LedgerSent || s == LedgerFailed
}

// LedgerEntry records the dispatch history of one key.
type LedgerEntry struct {
	Key         DispatchKey
	State       LedgerState
	ClaimToken  string
	ClaimedAt   time.Time
	CommittedAt *time.Time
	Attempts    int
	LastError   string
}

// IsStale reports whether a claimed entry was abandoned according to the policy.
func (e *LedgerEntry) IsStale(now time.Time, policy ClaimPolicy) bool {
	return e.State == LedgerClaimed && e.ClaimedAt.Before(policy.StaleCutoff(now))
}

// ClaimStatus is the outcome of a claim attempt.
type ClaimStatus int

const (
	ClaimAlreadyHandled ClaimStatus = iota
	ClaimClaimed
)

func (s ClaimStatus) String() string {
	if s == ClaimClaimed {
		return "claimed"
	}
	return "already_handled"
}

// Claim is the reservation returned by a ledger. Only the holder of Token may commit.
type Claim struct {
	Key       DispatchKey
	Status    ClaimStatus
	Token     string
	Attempt   int
	Reclaimed bool
}

// Won reports whether this invocation owns the key.
func (c Claim) Won() bool {
	return c.Status == ClaimClaimed
}

// ClaimPolicy bounds crash recovery of abandoned claims.
type ClaimPolicy struct {
	// StaleAfter is the age after which a claimed entry may be taken over.
	StaleAfter time.Duration
	// MaxAttempts caps how many times one key may be claimed in total.
	MaxAttempts int
	// Horizon is the widest reminder lead. Claims are only taken before the session
	// starts, so a claim older than Horizon belongs to a session that has started and
	// no run will claim it again. Zero means WidestLeadTime.
	Horizon time.Duration
}

// DefaultClaimPolicy returns a 10 minute stale threshold with 3 attempts.
func DefaultClaimPolicy() ClaimPolicy {
	return ClaimPolicy{StaleAfter: 10 * time.Minute, MaxAttempts: 3}
}

// StaleCutoff returns the instant before which a claim counts as abandoned.
func (p ClaimPolicy) StaleCutoff(now time.Time) time.Time {
	return now.Add(-p.StaleAfter)
}

// ExpiryCutoff returns the instant before which an abandoned claim can no longer
// be taken over because its session has started.
func (p ClaimPolicy) ExpiryCutoff(now time.Time) time.Time {
	h := p.Horizon
	if h <= 0 {
		h = WidestLeadTime()
	}
	return now.Add(-h)
}

// LastError values written by the stale sweep.
const (
	StaleExhaustedMessage = "stale claim: retry attempts exhausted"
	StaleExpiredMessage   = "stale claim: session started before delivery"
)

// StaleClaim describes an abandoned claim found by a reclaim sweep.
type StaleClaim struct {
	Key       DispatchKey
	ClaimedAt time.Time
	Attempts  int
}

// StaleReport is the result of a reclaim sweep.
type StaleReport struct {
	// Reclaimable claims may be taken over by the next TryClaim.
	Reclaimable []StaleClaim
	// Exhausted claims hit MaxAttempts and were marked failed by the sweep.
	Exhausted []StaleClaim
	// Expired claims belong to sessions that have started. They were marked failed
	// by the sweep.
	Expired []StaleClaim
}

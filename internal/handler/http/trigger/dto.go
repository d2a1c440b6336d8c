package trigger

import (
	"time"

	"class-reminder/internal/domain/entity"
	"class-reminder/internal/usecase/reminder"
)

// RunDTO is the response body of a dispatch trigger.
type RunDTO struct {
	RunID            string    `json:"run_id"`
	StartedAt        time.Time `json:"started_at"`
	DurationMS       int64     `json:"duration_ms"`
	Sessions         int       `json:"sessions"`
	Candidates       int       `json:"candidates"`
	Claimed          int       `json:"claimed"`
	Reclaimed        int       `json:"reclaimed"`
	Skipped          int       `json:"skipped"`
	Sent             int       `json:"sent"`
	Failed           int       `json:"failed"`
	Deferred         int       `json:"deferred"`
	ClaimErrors      int       `json:"claim_errors"`
	CommitErrors     int       `json:"commit_errors"`
	ClaimLost        int       `json:"claim_lost"`
	StaleReclaimable int       `json:"stale_reclaimable"`
	StaleExhausted   int       `json:"stale_exhausted"`
	StaleExpired     int       `json:"stale_expired"`
	BudgetExceeded   bool      `json:"budget_exceeded"`
}

func newRunDTO(st *reminder.RunStats) RunDTO {
	return RunDTO{
		RunID:            st.RunID,
		StartedAt:        st.StartedAt,
		DurationMS:       st.Duration.Milliseconds(),
		Sessions:         st.Sessions,
		Candidates:       st.Candidates,
		Claimed:          st.Claimed,
		Reclaimed:        st.Reclaimed,
		Skipped:          st.Skipped,
		Sent:             st.Sent,
		Failed:           st.Failed,
		Deferred:         st.Deferred,
		ClaimErrors:      st.ClaimErrors,
		CommitErrors:     st.CommitErrors,
		ClaimLost:        st.ClaimLost,
		StaleReclaimable: st.StaleReclaimable,
		StaleExhausted:   st.StaleExhausted,
		StaleExpired:     st.StaleExpired,
		BudgetExceeded:   st.BudgetExceeded,
	}
}

// LedgerEntryDTO is one ledger row as shown to operators. The claim token is
// never exposed.
type LedgerEntryDTO struct {
	SessionID    string     `json:"session_id"`
	ReminderType string     `json:"reminder_type"`
	State        string     `json:"state"`
	ClaimedAt    time.Time  `json:"claimed_at"`
	CommittedAt  *time.Time `json:"committed_at,omitempty"`
	Attempts     int        `json:"attempts"`
	LastError    string     `json:"last_error,omitempty"`
}

// SessionLedgerDTO is the response body of the session ledger endpoint.
type SessionLedgerDTO struct {
	SessionID string           `json:"session_id"`
	Entries   []LedgerEntryDTO `json:"entries"`
}

func newSessionLedgerDTO(sessionID string, entries []entity.LedgerEntry) SessionLedgerDTO {
	out := SessionLedgerDTO{SessionID: sessionID, Entries: make([]LedgerEntryDTO, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, LedgerEntryDTO{
			SessionID:    e.Key.SessionID,
			ReminderType: string(e.Key.Type),
			State:        string(e.State),
			ClaimedAt:    e.ClaimedAt,
			CommittedAt:  e.CommittedAt,
			Attempts:     e.Attempts,
			LastError:    e.LastError,
		})
	}
	return out
}

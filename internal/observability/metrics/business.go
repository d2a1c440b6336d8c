package metrics

import (
	"strconv"
	"time"
)

// RecordRun records a finished orchestrator run.
// Result should be "success", "error" or "budget_exceeded".
func RecordRun(result string, duration time.Duration) {
	RunsTotal.WithLabelValues(result).Inc()
	RunDuration.Observe(duration.Seconds())
}

// RecordClaim records one TryClaim call.
func RecordClaim(reminderType, result string) {
	ClaimsTotal.WithLabelValues(reminderType, result).Inc()
}

// RecordDispatchOutcome records a committed dispatch. Catch-up dispatches are
// labelled separately so late reminders stay visible.
func RecordDispatchOutcome(reminderType, outcome string, catchUp bool) {
	DispatchOutcomesTotal.WithLabelValues(reminderType, outcome, strconv.FormatBool(catchUp)).Inc()
}

// RecordCommitError records a commit that failed or lost its claim.
func RecordCommitError(reason string) {
	CommitErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordStaleClaims records the stale claims reported by the ledger sweep.
func RecordStaleClaims(reclaimable, exhausted, expired int) {
	if reclaimable > 0 {
		StaleClaimsTotal.WithLabelValues("reclaimable").Add(float64(reclaimable))
	}
	if exhausted > 0 {
		StaleClaimsTotal.WithLabelValues("exhausted").Add(float64(exhausted))
	}
	if expired > 0 {
		StaleClaimsTotal.WithLabelValues("expired").Add(float64(expired))
	}
}

// RecordLedgerPurged records entries removed by the retention purge.
func RecordLedgerPurged(count int64) {
	if count > 0 {
		LedgerPurgedTotal.Add(float64(count))
	}
}

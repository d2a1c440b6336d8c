package metrics

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRun(t *testing.T) {
	tests := []struct {
		name   string
		result string
	}{
		{"success", "success"},
		{"error", "error"},
		{"budget exceeded", "budget_exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(RunsTotal.WithLabelValues(tt.result))
			RecordRun(tt.result, 250*time.Millisecond)
			assert.Equal(t, before+1, testutil.ToFloat64(RunsTotal.WithLabelValues(tt.result)))
		})
	}
}

func TestRecordClaim(t *testing.T) {
	before := testutil.ToFloat64(ClaimsTotal.WithLabelValues("30m", "claimed"))
	RecordClaim("30m", "claimed")
	assert.Equal(t, before+1, testutil.ToFloat64(ClaimsTotal.WithLabelValues("30m", "claimed")))
}

func TestRecordDispatchOutcome(t *testing.T) {
	before := testutil.ToFloat64(DispatchOutcomesTotal.WithLabelValues("24h", "sent", "true"))
	RecordDispatchOutcome("24h", "sent", true)
	assert.Equal(t, before+1, testutil.ToFloat64(DispatchOutcomesTotal.WithLabelValues("24h", "sent", "true")))
}

func TestRecordCommitError(t *testing.T) {
	before := testutil.ToFloat64(CommitErrorsTotal.WithLabelValues("claim_lost"))
	RecordCommitError("claim_lost")
	assert.Equal(t, before+1, testutil.ToFloat64(CommitErrorsTotal.WithLabelValues("claim_lost")))
}

func TestRecordStaleClaims(t *testing.T) {
	reclaimable := testutil.ToFloat64(StaleClaimsTotal.WithLabelValues("reclaimable"))
	exhausted := testutil.ToFloat64(StaleClaimsTotal.WithLabelValues("exhausted"))
	expired := testutil.ToFloat64(StaleClaimsTotal.WithLabelValues("expired"))

	RecordStaleClaims(2, 0, 1)

	assert.Equal(t, reclaimable+2, testutil.ToFloat64(StaleClaimsTotal.WithLabelValues("reclaimable")))
	assert.Equal(t, exhausted, testutil.ToFloat64(StaleClaimsTotal.WithLabelValues("exhausted")))
	assert.Equal(t, expired+1, testutil.ToFloat64(StaleClaimsTotal.WithLabelValues("expired")))
}

func TestRecordLedgerPurged(t *testing.T) {
	before := testutil.ToFloat64(LedgerPurgedTotal)
	RecordLedgerPurged(0)
	RecordLedgerPurged(5)
	assert.Equal(t, before+5, testutil.ToFloat64(LedgerPurgedTotal))
}

func TestObservePool(t *testing.T) {
	ObservePool(sql.DBStats{InUse: 4, Idle: 6, WaitDuration: 1500 * time.Millisecond})

	assert.Equal(t, float64(4), testutil.ToFloat64(DBConnectionsInUse))
	assert.Equal(t, float64(6), testutil.ToFloat64(DBConnectionsIdle))
	assert.Equal(t, 1.5, testutil.ToFloat64(DBConnectionWaitSeconds))
}

func TestRecordLedgerOperation(t *testing.T) {
	RecordLedgerOperation("ledger_commit", 3*time.Millisecond, errors.New("claim lost"))
	RecordLedgerOperation("ledger_commit", 2*time.Millisecond, nil)

	// one series per (operation, result)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(LedgerOperationDuration), 2)
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/internal/reminders/dispatch", "200"))
	RecordHTTPRequest("POST", "/internal/reminders/dispatch", "200", 20*time.Millisecond, 180)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/internal/reminders/dispatch", "200")))
}

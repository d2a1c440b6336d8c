package trigger_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"class-reminder/internal/domain/entity"
	"class-reminder/internal/handler/http/trigger"
	"class-reminder/internal/usecase/reminder"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	stats   *reminder.RunStats
	runErr  error
	entries []entity.LedgerEntry
	ledErr  error

	runs     atomic.Int32
	runCtxOK atomic.Bool
	gotID    string
}

func (s *stubService) Run(ctx context.Context) (*reminder.RunStats, error) {
	s.runs.Add(1)
	s.runCtxOK.Store(ctx.Err() == nil)
	return s.stats, s.runErr
}

func (s *stubService) SessionLedger(_ context.Context, sessionID string) ([]entity.LedgerEntry, error) {
	s.gotID = sessionID
	if s.ledErr != nil {
		return nil, s.ledErr
	}
	return s.entries, nil
}

func newRouter(svc trigger.Service) *mux.Router {
	r := mux.NewRouter()
	trigger.Register(r, svc)
	return r
}

func TestDispatchHandler_OK(t *testing.T) {
	started := time.Date(2026, 5, 4, 11, 30, 0, 0, time.UTC)
	svc := &stubService{stats: &reminder.RunStats{
		RunID: "run-1", StartedAt: started, Duration: 1500 * time.Millisecond,
		Sessions: 2, Candidates: 4, Claimed: 3, Skipped: 1, Sent: 2, Failed: 1,
	}}
	rec := httptest.NewRecorder()

	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/reminders/dispatch", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got trigger.RunDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	want := trigger.RunDTO{
		RunID: "run-1", StartedAt: started, DurationMS: 1500,
		Sessions: 2, Candidates: 4, Claimed: 3, Skipped: 1, Sent: 2, Failed: 1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("run dto mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int32(1), svc.runs.Load())
}

func TestDispatchHandler_DetachedFromRequestCancel(t *testing.T) {
	svc := &stubService{stats: &reminder.RunStats{RunID: "run-2"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/internal/reminders/dispatch", nil).WithContext(ctx)

	newRouter(svc).ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, svc.runCtxOK.Load(), "run must not inherit the caller's cancellation")
}

func TestDispatchHandler_RunErrorIs503(t *testing.T) {
	svc := &stubService{runErr: errors.New("Run: list sessions: dial tcp 10.0.0.5:5432: connection refused")}
	rec := httptest.NewRecorder()

	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/reminders/dispatch", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "dispatch run failed")
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestDispatchHandler_MethodNotAllowed(t *testing.T) {
	svc := &stubService{}
	rec := httptest.NewRecorder()

	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/reminders/dispatch", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, int32(0), svc.runs.Load())
}

func TestLedgerHandler_OK(t *testing.T) {
	claimed := time.Date(2026, 5, 4, 11, 30, 0, 0, time.UTC)
	committed := claimed.Add(2 * time.Second)
	svc := &stubService{entries: []entity.LedgerEntry{
		{
			Key:   entity.DispatchKey{SessionID: "s-42", Type: entity.Reminder3h},
			State: entity.LedgerSent, ClaimToken: "secret-token", ClaimedAt: claimed,
			CommittedAt: &committed, Attempts: 1,
		},
		{
			Key:   entity.DispatchKey{SessionID: "s-42", Type: entity.Reminder30m},
			State: entity.LedgerClaimed, ClaimToken: "other-token", ClaimedAt: claimed, Attempts: 2,
			LastError: "email: invalid recipient",
		},
	}}
	rec := httptest.NewRecorder()

	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/reminders/sessions/s-42/ledger", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s-42", svc.gotID)
	assert.NotContains(t, rec.Body.String(), "token")

	var got trigger.SessionLedgerDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	want := trigger.SessionLedgerDTO{
		SessionID: "s-42",
		Entries: []trigger.LedgerEntryDTO{
			{SessionID: "s-42", ReminderType: "3h", State: "sent", ClaimedAt: claimed, CommittedAt: &committed, Attempts: 1},
			{SessionID: "s-42", ReminderType: "30m", State: "claimed", ClaimedAt: claimed, Attempts: 2, LastError: "email: invalid recipient"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ledger dto mismatch (-want +got):\n%s", diff)
	}
}

func TestLedgerHandler_EmptyLedger(t *testing.T) {
	rec := httptest.NewRecorder()

	newRouter(&stubService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/reminders/sessions/s-1/ledger", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entries":[]`)
}

func TestLedgerHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{
			name:   "invalid input",
			path:   "/internal/reminders/sessions/s-1/ledger",
			err:    fmt.Errorf("SessionLedger: session id: %w", entity.ErrInvalidInput),
			status: http.StatusBadRequest,
		},
		{
			name:   "store failure",
			path:   "/internal/reminders/sessions/s-1/ledger",
			err:    errors.New("SessionLedger: redis: connection pool timeout"),
			status: http.StatusInternalServerError,
		},
		{
			name:   "id too long",
			path:   "/internal/reminders/sessions/" + strings.Repeat("x", entity.MaxSessionIDLength+1) + "/ledger",
			status: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			newRouter(&stubService{ledErr: tt.err}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "redis")
		})
	}
}

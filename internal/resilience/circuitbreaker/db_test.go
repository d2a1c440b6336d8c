package circuitbreaker

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockBreaker(t *testing.T, cfg Config) (*DBCircuitBreaker, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewDBCircuitBreakerWithConfig(db, cfg), mock
}

func TestDBCircuitBreaker_QueryAndExec(t *testing.T) {
	dcb, mock := newMockBreaker(t, DBConfig())
	ctx := context.Background()

	mock.ExpectQuery("SELECT state FROM reminder_ledger").
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow("sent"))
	mock.ExpectExec("DELETE FROM reminder_ledger").
		WillReturnResult(sqlmock.NewResult(0, 3))

	rows, err := dcb.QueryContext(ctx, "SELECT state FROM reminder_ledger WHERE session_id = $1", "s-1")
	require.NoError(t, err)
	require.True(t, rows.Next())
	_ = rows.Close()

	res, err := dcb.ExecContext(ctx, "DELETE FROM reminder_ledger WHERE committed_at < $1", time.Now())
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DBConfig()
	cfg.Name = "database-test-open"
	cfg.Timeout = 50 * time.Millisecond
	dcb, mock := newMockBreaker(t, cfg)
	ctx := context.Background()
	errDown := errors.New("dial tcp: connection refused")

	for i := 0; i < 5; i++ {
		mock.ExpectExec("UPDATE reminder_ledger").WillReturnError(errDown)
		_, err := dcb.ExecContext(ctx, "UPDATE reminder_ledger SET state = 'sent'")
		require.ErrorIs(t, err, errDown)
	}
	require.True(t, dcb.IsOpen())

	_, err := dcb.QueryContext(ctx, "SELECT 1")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, dcb.PingContext(ctx), gobreaker.ErrOpenState)

	time.Sleep(80 * time.Millisecond)
	mock.ExpectPing()
	assert.NoError(t, dcb.PingContext(ctx))
	assert.False(t, dcb.IsOpen())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_CallerOutcomesDoNotTrip(t *testing.T) {
	cfg := DBConfig()
	cfg.Name = "database-test-healthy"
	dcb, mock := newMockBreaker(t, cfg)

	for i := 0; i < 6; i++ {
		mock.ExpectQuery("SELECT").WillReturnError(context.DeadlineExceeded)
		_, _ = dcb.QueryContext(context.Background(), "SELECT 1")
	}
	assert.False(t, dcb.IsOpen())
}

func TestDBCircuitBreaker_QueryRowBypassesBreaker(t *testing.T) {
	dcb, mock := newMockBreaker(t, DBConfig())
	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	var n int
	require.NoError(t, dcb.QueryRowContext(context.Background(), "SELECT count(*) FROM class_sessions").Scan(&n))
	assert.Equal(t, 7, n)
	assert.NotNil(t, dcb.DB())
}

func TestDBErrorIsHealthy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, true},
		{sql.ErrNoRows, true},
		{context.Canceled, true},
		{context.DeadlineExceeded, true},
		{errors.New("connection reset by peer"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dbErrorIsHealthy(tt.err), "err = %v", tt.err)
	}
}

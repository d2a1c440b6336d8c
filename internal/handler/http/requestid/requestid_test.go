package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	assert.Equal(t, "", FromContext(context.Background()))
	assert.Equal(t, "sqs:4b1c", FromContext(WithRequestID(context.Background(), "sqs:4b1c")))
}

func TestNew(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
	assert.True(t, Valid(a))
}

func TestValid(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"req-123", true},
		{"cron:2026-05-04T11:30", true},
		{"a.b_c-d", true},
		{"", false},
		{strings.Repeat("x", 128), true},
		{strings.Repeat("x", 129), false},
		{"id with space", false},
		{"id\nlevel=ERROR", false},
		{`id"}`, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Valid(tt.id), "Valid(%q)", tt.id)
	}
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{name: "reuses valid header", incoming: "trigger-7f3a", reuse: true},
		{name: "generates when missing", incoming: ""},
		{name: "replaces oversized header", incoming: strings.Repeat("a", 200)},
		{name: "replaces header with control bytes", incoming: "abc\r\nx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = FromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodPost, "/internal/reminders/dispatch", nil)
			if tt.incoming != "" {
				req.Header[Header] = []string{tt.incoming}
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get(Header))
			if tt.reuse {
				assert.Equal(t, tt.incoming, seen)
			} else {
				assert.NotEqual(t, tt.incoming, seen)
				_, err := uuid.Parse(seen)
				assert.NoError(t, err)
			}
		})
	}
}

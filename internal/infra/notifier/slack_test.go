package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"class-reminder/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackNotifier_BuildMessage(t *testing.T) {
	notifier := NewSlackNotifier(SlackConfig{Timeout: 10 * time.Second})
	n := testNotification()

	payload := notifier.buildMessage(n)

	assert.Equal(t, n.Subject, payload.Text)
	require.Len(t, payload.Blocks, 2)
	assert.Equal(t, "section", payload.Blocks[0].Type)
	assert.True(t, strings.HasPrefix(payload.Blocks[0].Text.Text, "*Reminder: Go Basics"))
	assert.Equal(t, "context", payload.Blocks[1].Type)
	assert.Contains(t, payload.Blocks[1].Elements[0].Text, "<https://meet.example.com/go|Join>")

	n.Body = strings.Repeat("x", 4000)
	payload = notifier.buildMessage(n)
	assert.LessOrEqual(t, len(payload.Blocks[0].Text.Text), maxSectionTextLength)
}

func TestSlackNotifier_Send(t *testing.T) {
	t.Run("should post block kit payload", func(t *testing.T) {
		var payload slackMessage
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		err := NewSlackNotifier(SlackConfig{Timeout: time.Second}).
			Send(context.Background(), testNotification(), entity.ChannelTarget{Kind: entity.ChannelSlack, Destination: srv.URL})

		require.NoError(t, err)
		assert.Len(t, payload.Blocks, 2)
	})

	t.Run("should classify invalid_payload as permanent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("invalid_payload"))
		}))
		defer srv.Close()

		err := NewSlackNotifier(SlackConfig{Timeout: time.Second}).
			Send(context.Background(), testNotification(), entity.ChannelTarget{Kind: entity.ChannelSlack, Destination: srv.URL})

		require.Error(t, err)
		assert.True(t, IsPermanent(err))
		assert.Contains(t, err.Error(), "invalid_payload")
	})

	t.Run("should return RateLimitError from Retry-After", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		err := NewSlackNotifier(SlackConfig{Timeout: time.Second}).
			Send(context.Background(), testNotification(), entity.ChannelTarget{Kind: entity.ChannelSlack, Destination: srv.URL})

		var rl *RateLimitError
		require.True(t, errors.As(err, &rl))
		assert.Equal(t, 30*time.Second, rl.RetryAfter)
	})

	t.Run("should reject non-slack target", func(t *testing.T) {
		err := NewSlackNotifier(SlackConfig{}).
			Send(context.Background(), testNotification(), entity.ChannelTarget{Kind: entity.ChannelDiscord, Destination: "https://x"})
		assert.True(t, IsPermanent(err))
	})
}

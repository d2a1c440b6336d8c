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

func newTelegramServer(t *testing.T, handler http.HandlerFunc) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTelegramNotifier(TelegramConfig{BotToken: "123:secret", BaseURL: srv.URL, Timeout: 2 * time.Second})
}

func TestTelegramNotifier_Send_Success(t *testing.T) {
	var got telegramSendMessage
	var path string
	n := newTelegramServer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	})

	err := n.Send(context.Background(), testNotification(), entity.ChannelTarget{Kind: entity.ChannelTelegramGroup, Destination: "-100123"})

	require.NoError(t, err)
	assert.Equal(t, "/bot123:secret/sendMessage", path)
	assert.Equal(t, "-100123", got.ChatID)
	assert.True(t, strings.HasPrefix(got.Text, "Reminder: Go Basics #3"))
	assert.True(t, got.DisableWebPagePreview)
}

func TestTelegramNotifier_Send_Channel(t *testing.T) {
	n := newTelegramServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	err := n.Send(context.Background(), testNotification(), entity.ChannelTarget{Kind: entity.ChannelTelegramChannel, Destination: "@classes"})
	assert.NoError(t, err)
}

func TestTelegramNotifier_Send_RateLimited(t *testing.T) {
	n := newTelegramServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 3","parameters":{"retry_after":3}}`))
	})

	err := n.Send(context.Background(), testNotification(), entity.ChannelTarget{Kind: entity.ChannelTelegramGroup, Destination: "-1"})

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 3*time.Second, rl.RetryAfter)
	assert.True(t, IsTransient(err))
}

func TestTelegramNotifier_Send_ChatNotFound(t *testing.T) {
	n := newTelegramServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	})

	err := n.Send(context.Background(), testNotification(), entity.ChannelTarget{Kind: entity.ChannelTelegramGroup, Destination: "-1"})

	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramNotifier_Send_ServerError(t *testing.T) {
	n := newTelegramServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := n.Send(context.Background(), testNotification(), entity.ChannelTarget{Kind: entity.ChannelTelegramGroup, Destination: "-1"})
	assert.True(t, IsTransient(err))
}

func TestTelegramNotifier_Send_NetworkErrorHidesToken(t *testing.T) {
	n := NewTelegramNotifier(TelegramConfig{BotToken: "123:secret", BaseURL: "http://127.0.0.1:1", Timeout: time.Second})

	err := n.Send(context.Background(), testNotification(), entity.ChannelTarget{Kind: entity.ChannelTelegramGroup, Destination: "-1"})

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
	assert.True(t, IsTransient(err))
}

func TestTelegramNotifier_Send_WrongKind(t *testing.T) {
	n := NewTelegramNotifier(TelegramConfig{BotToken: "t"})

	err := n.Send(context.Background(), testNotification(), entity.ChannelTarget{Kind: entity.ChannelEmail, Recipients: []string{"a@example.com"}})
	assert.True(t, IsPermanent(err))
}

func TestTelegramNotifier_buildMessage_Truncates(t *testing.T) {
	n := NewTelegramNotifier(TelegramConfig{})
	notification := testNotification()
	notification.Body = strings.Repeat("x", 5000)

	msg := n.buildMessage(notification, "-1")
	assert.LessOrEqual(t, len(msg.Text), maxTelegramTextLength)
	assert.True(t, strings.HasSuffix(msg.Text, "..."))
}

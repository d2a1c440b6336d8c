package notifier

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"class-reminder/internal/domain/entity"

	"github.com/stretchr/testify/assert"
)

func TestNoOpNotifier_Send(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := NewNoOpNotifier(logger).Send(context.Background(), testNotification(),
		entity.ChannelTarget{Kind: entity.ChannelDiscord, Destination: "https://discord.com/api/webhooks/1/secret"})

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "dry run")
	assert.Contains(t, buf.String(), "sess-1/30m")
	assert.NotContains(t, buf.String(), "secret")
}

func TestNoOpNotifier_NilLogger(t *testing.T) {
	err := NewNoOpNotifier(nil).Send(context.Background(), testNotification(), entity.ChannelTarget{Kind: entity.ChannelKafka, Destination: "t"})
	assert.NoError(t, err)
}

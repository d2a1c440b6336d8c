package config

import (
	"testing"
	"time"

	"class-reminder/internal/domain/entity"

	"github.com/google/go-cmp/cmp"
)

func TestLoadChannelsConfig_Defaults(t *testing.T) {
	cfg := LoadChannelsConfig()

	if cfg.TelegramEnabled() || cfg.EmailEnabled() || cfg.KafkaEnabled() {
		t.Error("no provider should be enabled without credentials")
	}
	if cfg.SendGrid.FromName != "Class Reminder" {
		t.Errorf("FromName = %q", cfg.SendGrid.FromName)
	}
	if cfg.Slack.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.Slack.Timeout)
	}
	if len(cfg.Targets()) != 0 {
		t.Errorf("targets = %v, want none", cfg.Targets())
	}
}

func TestLoadChannelsConfig_Targets(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_GROUP_IDS", "-100111, -100222")
	t.Setenv("TELEGRAM_CHANNEL_IDS", "@cohort_news")
	t.Setenv("SENDGRID_API_KEY", "SG.key")
	t.Setenv("EMAIL_FROM_ADDRESS", "noreply@example.com")
	t.Setenv("EMAIL_RECIPIENTS", "a@example.com,b@example.com")
	t.Setenv("DISCORD_WEBHOOK_URLS", "https://discord.test/api/webhooks/1/x")
	t.Setenv("SLACK_WEBHOOK_URLS", "https://hooks.slack.test/T/B/1,https://hooks.slack.test/T/B/2")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("KAFKA_TOPICS", "class-reminders")
	t.Setenv("CHANNEL_HTTP_TIMEOUT", "3s")

	cfg := LoadChannelsConfig()

	if !cfg.TelegramEnabled() || !cfg.EmailEnabled() || !cfg.KafkaEnabled() {
		t.Error("providers with credentials should be enabled")
	}
	if cfg.Telegram.Timeout != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", cfg.Telegram.Timeout)
	}

	want := []entity.ChannelTarget{
		{Kind: entity.ChannelTelegramGroup, Destination: "-100111"},
		{Kind: entity.ChannelTelegramGroup, Destination: "-100222"},
		{Kind: entity.ChannelTelegramChannel, Destination: "@cohort_news"},
		{Kind: entity.ChannelEmail, Recipients: []string{"a@example.com", "b@example.com"}},
		{Kind: entity.ChannelDiscord, Destination: "https://discord.test/api/webhooks/1/x", Label: "discord#1"},
		{Kind: entity.ChannelSlack, Destination: "https://hooks.slack.test/T/B/1", Label: "slack#1"},
		{Kind: entity.ChannelSlack, Destination: "https://hooks.slack.test/T/B/2", Label: "slack#2"},
		{Kind: entity.ChannelKafka, Destination: "class-reminders"},
	}
	if diff := cmp.Diff(want, cfg.Targets()); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
}

func TestChannelsConfig_EmailNeedsSender(t *testing.T) {
	t.Setenv("SENDGRID_API_KEY", "SG.key")

	if LoadChannelsConfig().EmailEnabled() {
		t.Error("email enabled without a from address")
	}
}

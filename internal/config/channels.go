package config

import (
	"fmt"
	"time"

	"class-reminder/internal/domain/entity"
	"class-reminder/internal/infra/notifier"
	pkgconfig "class-reminder/pkg/config"
)

// ChannelsConfig holds provider credentials and the destination lists read
// from the environment. A provider without credentials is disabled; its
// destinations are then rejected by the dispatcher as permanent failures.
type ChannelsConfig struct {
	Telegram notifier.TelegramConfig
	SendGrid notifier.SendGridConfig
	Discord  notifier.DiscordConfig
	Slack    notifier.SlackConfig
	Kafka    notifier.KafkaConfig

	TelegramGroupIDs   []string
	TelegramChannelIDs []string
	EmailRecipients    []string
	DiscordWebhookURLs []string
	SlackWebhookURLs   []string
	KafkaTopics        []string
}

// LoadChannelsConfig reads the channel settings.
//
// Environment variables:
//   - TELEGRAM_BOT_TOKEN, TELEGRAM_API_BASE_URL
//   - TELEGRAM_GROUP_IDS, TELEGRAM_CHANNEL_IDS: comma-separated chat ids
//   - SENDGRID_API_KEY, EMAIL_FROM_ADDRESS, EMAIL_FROM_NAME (default "Class Reminder")
//   - EMAIL_RECIPIENTS: comma-separated addresses, sent as one mail
//   - DISCORD_WEBHOOK_URLS, SLACK_WEBHOOK_URLS: comma-separated webhook URLs
//   - KAFKA_BROKERS, KAFKA_TOPICS: comma-separated
//   - CHANNEL_HTTP_TIMEOUT: provider HTTP timeout (default 10s)
func LoadChannelsConfig() ChannelsConfig {
	timeout := pkgconfig.GetEnvDuration("CHANNEL_HTTP_TIMEOUT", 10*time.Second)

	return ChannelsConfig{
		Telegram: notifier.TelegramConfig{
			BotToken: pkgconfig.GetEnvString("TELEGRAM_BOT_TOKEN", ""),
			BaseURL:  pkgconfig.GetEnvString("TELEGRAM_API_BASE_URL", ""),
			Timeout:  timeout,
		},
		SendGrid: notifier.SendGridConfig{
			APIKey:      pkgconfig.GetEnvString("SENDGRID_API_KEY", ""),
			FromAddress: pkgconfig.GetEnvString("EMAIL_FROM_ADDRESS", ""),
			FromName:    pkgconfig.GetEnvString("EMAIL_FROM_NAME", "Class Reminder"),
			Timeout:     timeout,
		},
		Discord: notifier.DiscordConfig{Timeout: timeout},
		Slack:   notifier.SlackConfig{Timeout: timeout},
		Kafka: notifier.KafkaConfig{
			Brokers:      pkgconfig.GetEnvStringList("KAFKA_BROKERS", nil),
			WriteTimeout: timeout,
		},

		TelegramGroupIDs:   pkgconfig.GetEnvStringList("TELEGRAM_GROUP_IDS", nil),
		TelegramChannelIDs: pkgconfig.GetEnvStringList("TELEGRAM_CHANNEL_IDS", nil),
		EmailRecipients:    pkgconfig.GetEnvStringList("EMAIL_RECIPIENTS", nil),
		DiscordWebhookURLs: pkgconfig.GetEnvStringList("DISCORD_WEBHOOK_URLS", nil),
		SlackWebhookURLs:   pkgconfig.GetEnvStringList("SLACK_WEBHOOK_URLS", nil),
		KafkaTopics:        pkgconfig.GetEnvStringList("KAFKA_TOPICS", nil),
	}
}

// TelegramEnabled reports whether a bot token is configured.
func (c ChannelsConfig) TelegramEnabled() bool { return c.Telegram.BotToken != "" }

// EmailEnabled reports whether SendGrid can send.
func (c ChannelsConfig) EmailEnabled() bool {
	return c.SendGrid.APIKey != "" && c.SendGrid.FromAddress != ""
}

// KafkaEnabled reports whether brokers are configured.
func (c ChannelsConfig) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }

// Targets expands the destination lists into one target per entry. Email
// recipients form a single target.
func (c ChannelsConfig) Targets() []entity.ChannelTarget {
	var targets []entity.ChannelTarget
	for _, id := range c.TelegramGroupIDs {
		targets = append(targets, entity.ChannelTarget{Kind: entity.ChannelTelegramGroup, Destination: id})
	}
	for _, id := range c.TelegramChannelIDs {
		targets = append(targets, entity.ChannelTarget{Kind: entity.ChannelTelegramChannel, Destination: id})
	}
	if len(c.EmailRecipients) > 0 {
		targets = append(targets, entity.ChannelTarget{Kind: entity.ChannelEmail, Recipients: c.EmailRecipients})
	}
	for i, url := range c.DiscordWebhookURLs {
		targets = append(targets, entity.ChannelTarget{
			Kind: entity.ChannelDiscord, Destination: url, Label: fmt.Sprintf("discord#%d", i+1),
		})
	}
	for i, url := range c.SlackWebhookURLs {
		targets = append(targets, entity.ChannelTarget{
			Kind: entity.ChannelSlack, Destination: url, Label: fmt.Sprintf("slack#%d", i+1),
		})
	}
	for _, topic := range c.KafkaTopics {
		targets = append(targets, entity.ChannelTarget{Kind: entity.ChannelKafka, Destination: topic})
	}
	return targets
}

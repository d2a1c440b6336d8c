package main

import (
	"log/slog"

	"class-reminder/internal/config"
	"class-reminder/internal/domain/entity"
	"class-reminder/internal/infra/notifier"
	"class-reminder/internal/usecase/notify"
)

// buildChannels creates one provider channel per configured provider. With dryRun
// every kind is served by a logging no-op notifier. The returned func closes
// providers holding connections.
func buildChannels(logger *slog.Logger, cfg config.ChannelsConfig, dryRun bool) ([]notify.Channel, func()) {
	if dryRun {
		logger.Warn("dry run enabled, reminders are logged and recorded but not sent")
		return []notify.Channel{
			notify.NewProviderChannel("dry-run", notifier.NewNoOpNotifier(logger), entity.ChannelKinds()...),
		}, func() {}
	}

	var channels []notify.Channel
	closers := []func() error{}

	if cfg.TelegramEnabled() {
		channels = append(channels, notify.NewProviderChannel("telegram",
			notifier.NewTelegramNotifier(cfg.Telegram),
			entity.ChannelTelegramGroup, entity.ChannelTelegramChannel))
		logger.Info("Telegram channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Telegram channel disabled")
	}

	if cfg.EmailEnabled() {
		channels = append(channels, notify.NewProviderChannel("sendgrid",
			notifier.NewSendGridNotifier(cfg.SendGrid), entity.ChannelEmail))
		logger.Info("SendGrid channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("SendGrid channel disabled")
	}

	// webhook URLs are the credentials, so these providers need no setup
	channels = append(channels,
		notify.NewProviderChannel("discord", notifier.NewDiscordNotifier(cfg.Discord), entity.ChannelDiscord),
		notify.NewProviderChannel("slack", notifier.NewSlackNotifier(cfg.Slack), entity.ChannelSlack),
	)

	if cfg.KafkaEnabled() {
		kafka := notifier.NewKafkaNotifier(cfg.Kafka)
		closers = append(closers, kafka.Close)
		channels = append(channels, notify.NewProviderChannel("kafka", kafka, entity.ChannelKafka))
		logger.Info("Kafka channel initialized", slog.Int("brokers", len(cfg.Kafka.Brokers)))
	} else {
		logger.Info("Kafka channel disabled")
	}

	return channels, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Error("failed to close channel", slog.Any("error", err))
			}
		}
	}
}

// warnUnroutable logs targets whose kind has no registered channel. Every send to
// them fails permanently.
func warnUnroutable(logger *slog.Logger, kinds []entity.ChannelKind, targets []entity.ChannelTarget) {
	registered := make(map[entity.ChannelKind]bool, len(kinds))
	for _, k := range kinds {
		registered[k] = true
	}
	for _, t := range targets {
		if !registered[t.Kind] {
			logger.Warn("target has no channel for its kind and will always fail",
				slog.String("kind", string(t.Kind)),
				slog.String("target", t.Name()))
		}
	}
}

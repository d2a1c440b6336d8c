package notifier

import (
	"context"
	"log/slog"

	"class-reminder/internal/domain/entity"
)

// NoOpNotifier accepts every notification without contacting a provider.
// DRY_RUN deployments use it for every channel kind so the full claim, dispatch and
// commit path runs without side effects.
type NoOpNotifier struct {
	logger *slog.Logger
}

// NewNoOpNotifier creates a NoOpNotifier. A nil logger disables logging.
func NewNoOpNotifier(logger *slog.Logger) *NoOpNotifier {
	return &NoOpNotifier{logger: logger}
}

// Send logs the notification at info level and returns nil.
func (n *NoOpNotifier) Send(ctx context.Context, notification *entity.Notification, target entity.ChannelTarget) error {
	if n.logger != nil {
		n.logger.InfoContext(ctx, "dry run: notification not sent",
			slog.String("dispatch_key", notification.Key.String()),
			slog.String("channel", string(target.Kind)),
			slog.String("target", target.Name()),
			slog.String("subject", notification.Subject))
	}
	return nil
}

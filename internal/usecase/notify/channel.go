// Package notify fans one rendered reminder out to every configured delivery target.
// Each target is sent independently: bounded concurrency, a per-attempt timeout,
// retries for transient failures and a circuit breaker per channel kind.
package notify

import (
	"context"

	"class-reminder/internal/domain/entity"
	"class-reminder/internal/infra/notifier"
)

// Channel represents a notification provider serving one or more target kinds
// (Telegram serves both group and channel broadcast).
//
// Retry Policy Contract:
//   - Send makes exactly one attempt; the Dispatcher owns retries and timeouts
//   - Errors are classified with notifier.IsPermanent and notifier.IsTransient
//
// Thread Safety:
//   - Send must be safe for concurrent use by multiple goroutines
type Channel interface {
	// Name returns the provider identifier used in logs.
	Name() string

	// Kinds returns the target kinds this channel delivers to.
	Kinds() []entity.ChannelKind

	// Send delivers the notification to one target.
	Send(ctx context.Context, n *entity.Notification, target entity.ChannelTarget) error
}

// ProviderChannel adapts a notifier from the infrastructure layer to Channel.
type ProviderChannel struct {
	name     string
	kinds    []entity.ChannelKind
	notifier notifier.Notifier
}

// NewProviderChannel creates a channel named name that serves kinds with n.
func NewProviderChannel(name string, n notifier.Notifier, kinds ...entity.ChannelKind) *ProviderChannel {
	return &ProviderChannel{name: name, kinds: kinds, notifier: n}
}

// Name implements Channel.
func (c *ProviderChannel) Name() string { return c.name }

// Kinds implements Channel.
func (c *ProviderChannel) Kinds() []entity.ChannelKind { return c.kinds }

// Send implements Channel.
func (c *ProviderChannel) Send(ctx context.Context, n *entity.Notification, target entity.ChannelTarget) error {
	return c.notifier.Send(ctx, n, target)
}

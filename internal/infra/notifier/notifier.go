// Package notifier delivers rendered class reminders to external providers.
//
// Every implementation makes exactly one delivery attempt per call and reports the
// outcome as a typed error (RateLimitError, ClientError, ServerError) so the caller
// can decide about retries. Implementations apply their own provider rate limits.
package notifier

import (
	"context"

	"class-reminder/internal/domain/entity"
)

// Notifier sends one notification to one target.
type Notifier interface {
	// Send delivers n to target. It must not modify n.
	//
	// Returns:
	//   - nil: the provider accepted the message
	//   - *RateLimitError: throttled, retry after the hint
	//   - *ClientError: rejected (bad destination or payload), never retried
	//   - *ServerError or network error: transient, may be retried
	Send(ctx context.Context, n *entity.Notification, target entity.ChannelTarget) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n *entity.Notification, target entity.ChannelTarget) error

// Send calls f.
func (f NotifierFunc) Send(ctx context.Context, n *entity.Notification, target entity.ChannelTarget) error {
	return f(ctx, n, target)
}

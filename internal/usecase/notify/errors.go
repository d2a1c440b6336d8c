package notify

import "errors"

// Sentinel errors for dispatch operations.
var (
	// ErrNoChannel indicates that no provider is registered for a target kind.
	// The target fails permanently without a send attempt.
	ErrNoChannel = errors.New("no channel registered for target kind")

	// ErrCircuitBreakerOpen indicates that the breaker for the target destination is open
	// and the provider was not called. It is a transient failure.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open for this channel")

	// ErrProviderPanic indicates that a provider panicked while sending. The panic is
	// confined to its target and treated as a permanent failure.
	ErrProviderPanic = errors.New("provider panicked")
)

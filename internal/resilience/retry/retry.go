// Package retry runs an operation again with exponential backoff and jitter.
// The delivery dispatcher uses NotificationConfig per channel target; ledger
// commits use DBConfig.
package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// ErrRetryAfterTooLong is returned when the failing side asks for a pause longer
// than the configured MaxDelay. The caller gives up instead of blocking.
var ErrRetryAfterTooLong = errors.New("retry-after exceeds max delay")

// Config is a backoff schedule. MaxAttempts includes the first call.
type Config struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
}

// NotificationConfig is the schedule for provider sends inside one dispatch.
// Delays stay short because the whole run has a budget.
func NotificationConfig(maxAttempts int) Config {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return Config{
		MaxAttempts:    maxAttempts,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// DBConfig is the schedule for ledger writes: three fast tries.
func DBConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// RetryAfterHinter is implemented by errors that carry a server-provided wait,
// such as a 429 from Telegram or Discord.
type RetryAfterHinter interface {
	RetryAfterHint() time.Duration
}

// WithBackoff retries fn while IsRetryable accepts its error.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	_, err := Do(ctx, cfg, IsRetryable, func(int) error { return fn() })
	return err
}

// Do runs fn until it succeeds, fails with an error retryable rejects, or
// cfg.MaxAttempts is reached. It returns the number of attempts made.
//
// A retry-after hint on the error raises the wait to at least the hint. A hint
// above cfg.MaxDelay stops retrying with ErrRetryAfterTooLong.
func Do(ctx context.Context, cfg Config, retryable func(error) bool, fn func(attempt int) error) (int, error) {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 1; ; attempt++ {
		if lastErr = fn(attempt); lastErr == nil {
			return attempt, nil
		}
		if !retryable(lastErr) {
			return attempt, lastErr
		}
		if attempt == cfg.MaxAttempts {
			return attempt, fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
		}

		wait := delay
		var hinter RetryAfterHinter
		if errors.As(lastErr, &hinter) {
			hint := hinter.RetryAfterHint()
			if hint > cfg.MaxDelay {
				return attempt, fmt.Errorf("%w (%s): %w", ErrRetryAfterTooLong, hint, lastErr)
			}
			wait = max(wait, hint)
		}

		slog.Debug("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Duration("delay", wait),
			slog.Any("error", lastErr))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempt, fmt.Errorf("retry aborted: %w", errors.Join(ctx.Err(), lastErr))
		}

		delay = addJitter(min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay), cfg.JitterFraction)
	}
}

// IsRetryable accepts connection-level failures: network timeouts, refused or
// reset connections, a dropped stream and bad pooled connections.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, driver.ErrBadConn)
}

func addJitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	fraction = min(fraction, 1.0)
	// #nosec G404 -- jitter does not need a secure source
	return d + time.Duration(rand.Float64()*float64(d)*fraction)
}

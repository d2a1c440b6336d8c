package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"class-reminder/internal/domain/entity"
)

// maxErrorBody caps how much of a provider error response is kept in error messages.
const maxErrorBody = 4 << 10

// defaultRetryAfter is used when a 429 carries no usable hint.
const defaultRetryAfter = 5 * time.Second

// RateLimitError represents a 429 rate limit error from a provider.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string // Optional custom message
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// RetryAfterHint returns the wait the provider asked for.
func (e *RateLimitError) RetryAfterHint() time.Duration {
	return e.RetryAfter
}

// ClientError represents a 4xx client error from a provider.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// ServerError represents a 5xx server error from a provider.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// IsPermanent reports whether retrying err cannot succeed: provider rejections and
// invalid targets. Rate limits are not permanent.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return true
	}
	return errors.Is(err, entity.ErrValidationFailed) || errors.Is(err, entity.ErrInvalidInput)
}

// IsTransient reports whether err may succeed on a later attempt. Network errors,
// per-attempt timeouts, 5xx and 429 are transient. A canceled caller is not.
func IsTransient(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// statusError maps a non-2xx provider response to a typed error.
func statusError(provider string, status int, body []byte, retryAfter time.Duration) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		if retryAfter <= 0 {
			retryAfter = defaultRetryAfter
		}
		return &RateLimitError{
			Message:    provider + " rate limit exceeded",
			RetryAfter: retryAfter,
		}
	case status >= 400 && status < 500:
		return &ClientError{
			StatusCode: status,
			Message:    fmt.Sprintf("%s API client error %d: %s", provider, status, string(body)),
		}
	default:
		return &ServerError{
			StatusCode: status,
			Message:    fmt.Sprintf("%s API server error %d: %s", provider, status, string(body)),
		}
	}
}

// retryAfterHeader parses a Retry-After header given in seconds.
func retryAfterHeader(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

// postJSON sends payload to endpoint and returns the status and a capped body.
// Network errors are returned with the URL reduced to scheme and host, because
// webhook and bot URLs carry credentials.
func postJSON(ctx context.Context, client *http.Client, endpoint string, payload any) (*http.Response, []byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, nil, fmt.Errorf("create http request: %w", redactURLError(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("execute http request: %w", redactURLError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return resp, body, nil
}

func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = redactURL(urlErr.URL)
	}
	return err
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "[redacted]"
	}
	return u.Scheme + "://" + u.Host + "/[redacted]"
}

// truncateText truncates text to maxLength bytes without splitting a UTF-8 rune.
// If truncated, appends suffix to indicate continuation.
func truncateText(text string, maxLength int, suffix string) string {
	if len(text) <= maxLength {
		return text
	}

	truncateAt := maxLength - len(suffix)
	if truncateAt < 0 {
		truncateAt = 0
	}
	for truncateAt > 0 && !isRuneStart(text[truncateAt]) {
		truncateAt--
	}
	return text[:truncateAt] + suffix
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func invalidTarget(kind entity.ChannelKind, target entity.ChannelTarget) error {
	if target.Kind != kind {
		return &entity.ValidationError{Field: "kind", Message: fmt.Sprintf("target kind %q sent to %s notifier", target.Kind, kind)}
	}
	return target.Validate()
}

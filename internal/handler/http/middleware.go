package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"class-reminder/internal/handler/http/requestid"
	"class-reminder/internal/handler/http/respond"
	"class-reminder/internal/observability/logging"

	"go.opentelemetry.io/otel/trace"
)

// Request limits enforced by InputValidation.
const (
	MaxAuthorizationHeaderBytes = 8 << 10
	MaxPathBytes                = 2 << 10
	DefaultMaxBodyBytes         = 1 << 20
)

// Logging returns middleware that logs every request with its status, size and
// duration. The request ID and the OpenTelemetry trace ID are attached so logs
// can be joined with traces. Handlers get a request-scoped logger through
// logging.FromContext.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newStatusRecorder(w)
			r = r.WithContext(logging.WithLogger(r.Context(), logging.WithRequestID(r.Context(), logger)))

			next.ServeHTTP(wrapped, r)

			span := trace.SpanFromContext(r.Context())
			duration := time.Since(start)

			level := slog.LevelInfo
			if wrapped.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "request completed",
				slog.String("request_id", requestid.FromContext(r.Context())),
				slog.String("trace_id", span.SpanContext().TraceID().String()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.Header.Get("User-Agent")),
				slog.Int("status", wrapped.status),
				slog.Int("bytes", wrapped.bytes),
				slog.Duration("duration", duration),
				slog.String("duration_ms", fmt.Sprintf("%.2f", duration.Seconds()*1000)),
			)
		})
	}
}

// Recover returns middleware that turns a handler panic into a 500 response.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					respond.Error(w, http.StatusInternalServerError, errors.New("handler panicked"))
					logger.Error("panic recovered",
						slog.String("request_id", requestid.FromContext(r.Context())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// InputValidation returns middleware that rejects oversized headers and paths and
// caps the request body at maxBodyBytes. A non-positive maxBodyBytes uses
// DefaultMaxBodyBytes.
func InputValidation(maxBodyBytes int64) func(http.Handler) http.Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(r.Header.Get("Authorization")) > MaxAuthorizationHeaderBytes {
				respond.Error(w, http.StatusBadRequest, respond.Public(errors.New("authorization header too long")))
				return
			}
			if len(r.URL.Path) > MaxPathBytes {
				respond.Error(w, http.StatusRequestURITooLong, respond.Public(errors.New("path too long")))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			next.ServeHTTP(w, r)
		})
	}
}

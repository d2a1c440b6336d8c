// Package respond writes JSON responses and error bodies that never leak provider
// credentials.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"class-reminder/internal/domain/entity"
)

// internalMessage is the body text of every error the caller may not see.
const internalMessage = "internal server error"

type errorBody struct {
	Error string `json:"error"`
}

// JSON writes v as the response body with status code. A nil v writes no body.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// headers are gone; only the log sees this
		slog.Default().Error("failed to encode JSON response",
			slog.Int("status_code", code),
			slog.Any("error", err))
	}
}

type publicError struct{ err error }

func (e publicError) Error() string { return e.err.Error() }
func (e publicError) Unwrap() error { return e.err }

// Public marks err as safe to echo to the caller on a 4xx.
func Public(err error) error {
	if err == nil {
		return nil
	}
	return publicError{err: err}
}

// IsPublic reports whether err may be shown to the caller: it was marked with
// Public, or it wraps entity.ErrInvalidInput.
func IsPublic(err error) bool {
	var pe publicError
	return errors.As(err, &pe) || errors.Is(err, entity.ErrInvalidInput)
}

// Error answers code with err's message when err is public and code is a 4xx.
// Anything else is logged with secrets masked and answered with a generic body.
func Error(w http.ResponseWriter, code int, err error) {
	if err == nil {
		return
	}
	if code < http.StatusInternalServerError && IsPublic(err) {
		JSON(w, code, errorBody{Error: err.Error()})
		return
	}
	logFailure(code, "", err)
	JSON(w, code, errorBody{Error: internalMessage})
}

// Message answers code with msg and logs err, masked. The dispatch trigger uses
// it to return a stable text the invoker can match on.
func Message(w http.ResponseWriter, code int, msg string, err error) {
	if err != nil {
		logFailure(code, msg, err)
	}
	JSON(w, code, errorBody{Error: msg})
}

func logFailure(code int, msg string, err error) {
	attrs := []any{
		slog.String("status", http.StatusText(code)),
		slog.Int("code", code),
		slog.String("error", SanitizeError(err)),
	}
	if msg != "" {
		attrs = append(attrs, slog.String("user_message", msg))
	}
	slog.Default().Error("request failed", attrs...)
}

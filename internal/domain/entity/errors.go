package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a caller mistake: an empty session id, an unknown
	// reminder type. It is never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed is matched by every *ValidationError.
	ErrValidationFailed = errors.New("validation failed")

	// ErrClaimLost is returned by Commit when the caller no longer holds the
	// claim: the entry was reclaimed after going stale, or already committed.
	ErrClaimLost = errors.New("claim lost")
)

// ValidationError names the field of a session or channel target that failed
// validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is matches ErrValidationFailed and ErrInvalidInput, so callers that only
// distinguish bad input from infrastructure failures need one check.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed || target == ErrInvalidInput
}

package repository

import (
	"context"
	"time"

	"class-reminder/internal/domain/entity"
)

// SessionRepository is the read-only query surface of the session store.
type SessionRepository interface {
	// ListStartingBetween returns sessions whose start lies in [from, to], ordered by start.
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]*entity.Session, error)
}

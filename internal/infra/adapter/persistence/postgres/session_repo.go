package postgres

import (
	"context"
	"fmt"
	"time"

	"class-reminder/internal/domain/entity"
	"class-reminder/internal/repository"
)

// SessionRepo reads class sessions from the class_sessions table owned by the
// course management system. It never writes.
type SessionRepo struct{ db DBTX }

func NewSessionRepo(db DBTX) repository.SessionRepository {
	return &SessionRepo{db: db}
}

func (repo *SessionRepo) ListStartingBetween(ctx context.Context, from, to time.Time) ([]*entity.Session, error) {
	const query = `
SELECT id, course_name, COALESCE(session_name, ''), COALESCE(ordinal, 0), start_at, status,
       COALESCE(join_url, '')
FROM class_sessions
WHERE start_at >= $1 AND start_at <= $2
ORDER BY start_at ASC, id ASC`

	rows, err := repo.db.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("ListStartingBetween: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]*entity.Session, 0, 16)
	for rows.Next() {
		var (
			s      entity.Session
			status string
		)
		if err := rows.Scan(&s.ID, &s.CourseName, &s.SessionName, &s.Ordinal, &s.StartAt,
			&status, &s.JoinURL); err != nil {
			return nil, fmt.Errorf("ListStartingBetween: %w", err)
		}
		s.Status = entity.SessionStatus(status)
		s.StartAt = s.StartAt.UTC()
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListStartingBetween: %w", err)
	}
	return sessions, nil
}

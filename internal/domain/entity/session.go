package entity

import (
	"fmt"
	"strings"
	"time"
)

// SessionStatus is the lifecycle state of a class session as owned by the session store.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionCancelled SessionStatus = "cancelled"
	SessionCompleted SessionStatus = "completed"
)

// MaxSessionIDLength bounds session IDs accepted from outside, e.g. in URLs.
const MaxSessionIDLength = 128

// Session is a read-only view of one scheduled class session.
// The reminder scheduler never mutates sessions.
type Session struct {
	ID          string
	CourseName  string
	SessionName string
	Ordinal     int
	StartAt     time.Time // absolute instant, UTC
	Status      SessionStatus
	JoinURL     string
}

// IsScheduled reports whether the session is still expected to take place.
func (s *Session) IsScheduled() bool {
	return s != nil && s.Status == SessionScheduled
}

// DisplayName returns a human-readable label such as "Go Basics #3: Interfaces".
func (s *Session) DisplayName() string {
	var b strings.Builder
	b.WriteString(s.CourseName)
	if s.Ordinal > 0 {
		fmt.Fprintf(&b, " #%d", s.Ordinal)
	}
	if s.SessionName != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(s.SessionName)
	}
	return b.String()
}

// Validate checks the fields the scheduler relies on.
func (s *Session) Validate() error {
	if s.ID == "" {
		return &ValidationError{Field: "id", Message: "session id is required"}
	}
	if len(s.ID) > MaxSessionIDLength {
		return &ValidationError{Field: "id", Message: "session id is too long"}
	}
	if s.StartAt.IsZero() {
		return &ValidationError{Field: "start_at", Message: "start time is required"}
	}
	switch s.Status {
	case SessionScheduled, SessionCancelled, SessionCompleted:
	default:
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", s.Status)}
	}
	return nil
}

package reminder

import (
	"fmt"
	"strings"
	"time"

	"class-reminder/internal/domain/entity"
)

// Render builds the channel-agnostic notification for one dispatch key.
// The lead phrase follows the actual time left, so a catch-up 24h reminder sent
// 20 hours ahead says "in 20 hours".
func Render(s *entity.Session, rt entity.ReminderType, now time.Time) *entity.Notification {
	name := s.DisplayName()
	start := s.StartAt.UTC()

	var body strings.Builder
	fmt.Fprintf(&body, "%s starts %s (%s).", name, startsIn(start.Sub(now), rt), start.Format("Mon 02 Jan 15:04 MST"))
	if s.JoinURL != "" {
		fmt.Fprintf(&body, "\nJoin: %s", s.JoinURL)
	}

	return &entity.Notification{
		Key:         entity.DispatchKey{SessionID: s.ID, Type: rt},
		Subject:     fmt.Sprintf("Reminder: %s starts %s", name, startsIn(start.Sub(now), rt)),
		Body:        body.String(),
		SessionName: s.SessionName,
		CourseName:  s.CourseName,
		StartAt:     start,
		JoinURL:     s.JoinURL,
		RenderedAt:  now.UTC(),
	}
}

func startsIn(until time.Duration, rt entity.ReminderType) string {
	switch {
	case until <= time.Minute:
		return "now"
	case until == rt.LeadTime():
		return rt.Label()
	case until < time.Hour:
		return plural(int(until.Round(time.Minute)/time.Minute), "minute")
	default:
		return plural(int(until.Round(time.Hour)/time.Hour), "hour")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "in 1 " + unit
	}
	return fmt.Sprintf("in %d %ss", n, unit)
}

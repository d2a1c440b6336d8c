package notifier

import (
	"time"

	"class-reminder/internal/domain/entity"
)

var testStart = time.Date(2026, 5, 4, 9, 29, 0, 0, time.UTC)

func testNotification() *entity.Notification {
	return &entity.Notification{
		Key:         entity.DispatchKey{SessionID: "sess-1", Type: entity.Reminder30m},
		Subject:     "Reminder: Go Basics #3: Interfaces starts in 30 minutes",
		Body:        "Go Basics #3: Interfaces starts at 09:29 UTC.\nJoin: https://meet.example.com/go",
		SessionName: "Interfaces",
		CourseName:  "Go Basics",
		StartAt:     testStart,
		JoinURL:     "https://meet.example.com/go",
		RenderedAt:  testStart.Add(-29 * time.Minute),
	}
}

package window

import (
	"testing"
	"time"

	"class-reminder/internal/domain/entity"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func session(until time.Duration) *entity.Session {
	return &entity.Session{
		ID:         "s1",
		CourseName: "Go Basics",
		StartAt:    now.Add(until),
		Status:     entity.SessionScheduled,
	}
}

func types(cands []Candidate) []entity.ReminderType {
	out := make([]entity.ReminderType, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Type)
	}
	return out
}

var all = []entity.ReminderType{entity.Reminder24h, entity.Reminder3h, entity.Reminder30m}

func TestDue_CatchUp(t *testing.T) {
	ev := NewEvaluator(true)

	tests := []struct {
		name  string
		until time.Duration
		want  []entity.ReminderType
	}{
		{"starts now", 0, all},
		{"29 minutes", 29 * time.Minute, all},
		{"20 hours", 20 * time.Hour, all},
		{"exactly 24 hours", 24 * time.Hour, all},
		{"24 hours and 1 second", 24*time.Hour + time.Second, nil},
		{"in the past", -time.Second, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ev.Due(now, session(tt.until))
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, types(got))
		})
	}
}

func TestDue_CatchUpFlag(t *testing.T) {
	ev := NewEvaluator(true)
	got := ev.Due(now, session(2*time.Hour))

	assert.Equal(t, []Candidate{
		{Type: entity.Reminder24h},
		{Type: entity.Reminder3h},
		{Type: entity.Reminder30m, CatchUp: true},
	}, got)
}

func TestDue_ExactWindowsOnly(t *testing.T) {
	ev := NewEvaluator(false)

	assert.Equal(t, all, types(ev.Due(now, session(30*time.Minute))))
	assert.Equal(t,
		[]entity.ReminderType{entity.Reminder24h, entity.Reminder3h},
		types(ev.Due(now, session(30*time.Minute+time.Second))))
	assert.Equal(t,
		[]entity.ReminderType{entity.Reminder24h},
		types(ev.Due(now, session(20*time.Hour))))
}

func TestInWindow_BoundaryInclusive(t *testing.T) {
	ev := NewEvaluator(true)

	assert.True(t, ev.InWindow(now, session(30*time.Minute), entity.Reminder30m))
	assert.False(t, ev.InWindow(now, session(30*time.Minute+time.Second), entity.Reminder30m))
	assert.True(t, ev.InWindow(now, session(0), entity.Reminder30m))
	assert.False(t, ev.InWindow(now, session(-time.Nanosecond), entity.Reminder30m))
}

func TestDue_NotScheduled(t *testing.T) {
	ev := NewEvaluator(true)
	for _, status := range []entity.SessionStatus{entity.SessionCancelled, entity.SessionCompleted, ""} {
		s := session(time.Hour)
		s.Status = status
		assert.Empty(t, ev.Due(now, s), status)
		assert.False(t, ev.InWindow(now, s, entity.Reminder3h), status)
	}
	assert.Empty(t, ev.Due(now, nil))
}

func TestNewEvaluator_SubsetOrdering(t *testing.T) {
	ev := NewEvaluator(true, entity.Reminder30m, entity.Reminder3h)

	assert.Equal(t, []entity.ReminderType{entity.Reminder3h, entity.Reminder30m}, ev.Types())
	assert.Equal(t, 3*time.Hour, ev.Horizon())
	assert.Empty(t, ev.Due(now, session(4*time.Hour)))
	assert.Equal(t,
		[]Candidate{{Type: entity.Reminder3h}, {Type: entity.Reminder30m}},
		ev.Due(now, session(time.Hour)))
}

package entity

import (
	"fmt"
	"time"
)

// ReminderType is a named offset before a session's start at which a reminder fires.
// The set is closed and fixed at deploy time.
type ReminderType string

const (
	Reminder24h ReminderType = "24h"
	Reminder3h  ReminderType = "3h"
	Reminder30m ReminderType = "30m"
)

// reminderTypes is ordered widest lead first.
var reminderTypes = []ReminderType{Reminder24h, Reminder3h, Reminder30m}

var leadTimes = map[ReminderType]time.Duration{
	Reminder24h: 24 * time.Hour,
	Reminder3h:  3 * time.Hour,
	Reminder30m: 30 * time.Minute,
}

// ReminderTypes returns every reminder type, widest lead time first.
func ReminderTypes() []ReminderType {
	out := make([]ReminderType, len(reminderTypes))
	copy(out, reminderTypes)
	return out
}

// WidestLeadTime returns the largest configured lead time.
func WidestLeadTime() time.Duration {
	return leadTimes[reminderTypes[0]]
}

// LeadTime returns how long before the session start this reminder is due.
// Unknown types have a zero lead time.
func (r ReminderType) LeadTime() time.Duration {
	return leadTimes[r]
}

// Valid reports whether r is one of the known reminder types.
func (r ReminderType) Valid() bool {
	_, ok := leadTimes[r]
	return ok
}

// Label returns a short phrase for message rendering, e.g. "in 3 hours".
func (r ReminderType) Label() string {
	switch r {
	case Reminder24h:
		return "tomorrow"
	case Reminder3h:
		return "in 3 hours"
	case Reminder30m:
		return "in 30 minutes"
	default:
		return "soon"
	}
}

// ParseReminderType converts a stored or configured value to a ReminderType.
func ParseReminderType(s string) (ReminderType, error) {
	r := ReminderType(s)
	if !r.Valid() {
		return "", &ValidationError{Field: "reminder_type", Message: fmt.Sprintf("unknown reminder type %q", s)}
	}
	return r, nil
}

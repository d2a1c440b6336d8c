// Package window decides which reminder types are due for a session at a given instant.
// Evaluation is pure: it reads no clock and no ledger. Duplicate suppression belongs to
// the delivery ledger, so the evaluator is free to over-report candidates.
package window

import (
	"time"

	"class-reminder/internal/domain/entity"
)

// Candidate is a reminder type that may be dispatched now.
type Candidate struct {
	Type entity.ReminderType
	// CatchUp is true when the type is due only because of the catch-up rule,
	// i.e. now is outside its own lead-time window.
	CatchUp bool
}

// Evaluator applies the due-window rules for a fixed set of reminder types.
type Evaluator struct {
	types   []entity.ReminderType
	widest  time.Duration
	catchUp bool
}

// NewEvaluator creates an evaluator over types, ordered widest lead first.
// With catchUp enabled, every type becomes a candidate as soon as the session is
// inside the widest window, so a coarse or interrupted trigger never skips a reminder.
// With no types given, all entity reminder types are used.
func NewEvaluator(catchUp bool, types ...entity.ReminderType) *Evaluator {
	if len(types) == 0 {
		types = entity.ReminderTypes()
	}
	ordered := make([]entity.ReminderType, 0, len(types))
	for _, t := range entity.ReminderTypes() {
		for _, want := range types {
			if t == want {
				ordered = append(ordered, t)
				break
			}
		}
	}

	var widest time.Duration
	for _, t := range ordered {
		if t.LeadTime() > widest {
			widest = t.LeadTime()
		}
	}

	return &Evaluator{types: ordered, widest: widest, catchUp: catchUp}
}

// Types returns the evaluated reminder types, widest first.
func (e *Evaluator) Types() []entity.ReminderType {
	out := make([]entity.ReminderType, len(e.types))
	copy(out, e.types)
	return out
}

// Horizon is how far ahead of now a session can start and still produce candidates.
func (e *Evaluator) Horizon() time.Duration {
	return e.widest
}

// InWindow applies the exact rule for one type: 0 <= start-now <= lead.
func (e *Evaluator) InWindow(now time.Time, s *entity.Session, rt entity.ReminderType) bool {
	if !s.IsScheduled() {
		return false
	}
	until := s.StartAt.Sub(now)
	return until >= 0 && until <= rt.LeadTime()
}

// Due returns the candidates for s at now, widest lead first.
//
// Rules:
//   - past sessions and sessions that are not scheduled are never due
//   - a type whose exact window contains now is due
//   - with catch-up, 0 < start-now <= widest lead makes every type due
//   - start == now is inside every window
func (e *Evaluator) Due(now time.Time, s *entity.Session) []Candidate {
	if !s.IsScheduled() {
		return nil
	}
	until := s.StartAt.Sub(now)
	if until < 0 || until > e.widest {
		return nil
	}

	var out []Candidate
	for _, rt := range e.types {
		switch {
		case e.InWindow(now, s, rt):
			out = append(out, Candidate{Type: rt})
		case e.catchUp:
			out = append(out, Candidate{Type: rt, CatchUp: true})
		}
	}
	return out
}

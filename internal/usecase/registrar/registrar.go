// Package registrar keeps exactly one periodic trigger registered for the dispatcher.
//
// Overlapping schedules would fire the orchestrator more than once per interval. The
// delivery ledger absorbs the duplicates, but they waste provider quota and make run
// metrics misleading, so deployment replaces every schedule targeting this dispatcher
// with a single fresh one.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Defaults applied by New to zero Config fields.
const (
	DefaultIntervalMinutes = 5
	DefaultScheduleName    = "dispatch"
)

// ErrScheduleNotFound is returned by a Schedules port when the named schedule does not exist.
var ErrScheduleNotFound = errors.New("schedule not found")

// Schedule is a periodic trigger as seen by the registrar.
type Schedule struct {
	Name       string
	TargetARN  string
	Expression string
}

// ScheduleSpec describes the schedule to create or update.
type ScheduleSpec struct {
	Name        string
	Expression  string
	TargetARN   string
	RoleARN     string
	Input       string
	Description string
}

// Schedules is the cron provider port.
type Schedules interface {
	// List returns the schedules whose name starts with prefix.
	List(ctx context.Context, prefix string) ([]Schedule, error)
	// Upsert creates spec, or updates it in place when a schedule of that name exists.
	// updated reports which of the two happened.
	Upsert(ctx context.Context, spec ScheduleSpec) (updated bool, err error)
	// Delete removes a schedule. A missing schedule yields ErrScheduleNotFound.
	Delete(ctx context.Context, name string) error
}

// Config identifies the dispatcher destination and the schedule to maintain.
type Config struct {
	// NamePrefix scopes the schedules this registrar owns
	NamePrefix string
	// ScheduleName is appended to NamePrefix for the fresh schedule
	ScheduleName string
	// TargetARN is the dispatcher destination (the trigger queue)
	TargetARN string
	// RoleARN is assumed by the cron provider to reach TargetARN
	RoleARN string
	// IntervalMinutes is the invocation period
	IntervalMinutes int
	// Input is the payload delivered on every invocation
	Input string
}

// Result reports what a registration changed.
type Result struct {
	Deleted    []string `json:"deleted"`
	Vanished   []string `json:"vanished,omitempty"`
	Schedule   string   `json:"schedule"`
	Expression string   `json:"expression"`
	Updated    bool     `json:"updated"`
}

// Registrar performs the find-and-replace registration.
type Registrar struct {
	schedules Schedules
	cfg       Config
	logger    *slog.Logger
}

// New creates a Registrar.
//
// Parameters:
//   - schedules: Cron provider adapter
//   - cfg: Destination and schedule settings (zero interval and name get defaults)
//   - logger: Logger for the changes made (nil uses slog.Default())
//
// Returns:
//   - *Registrar: Ready to use registrar
func New(schedules Schedules, cfg Config, logger *slog.Logger) *Registrar {
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = DefaultIntervalMinutes
	}
	if cfg.ScheduleName == "" {
		cfg.ScheduleName = DefaultScheduleName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registrar{schedules: schedules, cfg: cfg, logger: logger}
}

// Expression returns the rate expression for the configured interval.
func (r *Registrar) Expression() string {
	if r.cfg.IntervalMinutes == 1 {
		return "rate(1 minute)"
	}
	return fmt.Sprintf("rate(%d minutes)", r.cfg.IntervalMinutes)
}

// Name returns the full name of the maintained schedule.
func (r *Registrar) Name() string {
	return r.cfg.NamePrefix + r.cfg.ScheduleName
}

// Register lists the schedules under the prefix, deletes every one that targets this
// dispatcher, then creates the single fresh schedule. Schedules under the prefix that
// point elsewhere are left alone. Running Register twice leaves the same end state.
func (r *Registrar) Register(ctx context.Context) (*Result, error) {
	if r.cfg.TargetARN == "" {
		return nil, errors.New("Register: target ARN is required")
	}

	existing, err := r.schedules.List(ctx, r.cfg.NamePrefix)
	if err != nil {
		return nil, fmt.Errorf("Register: list schedules: %w", err)
	}

	result := &Result{Schedule: r.Name(), Expression: r.Expression(), Deleted: []string{}}
	for _, s := range existing {
		if !strings.EqualFold(s.TargetARN, r.cfg.TargetARN) {
			r.logger.DebugContext(ctx, "keeping schedule with foreign target",
				slog.String("schedule", s.Name),
				slog.String("target_arn", s.TargetARN))
			continue
		}
		if s.Name == r.Name() {
			// replaced in place below
			continue
		}
		err := r.schedules.Delete(ctx, s.Name)
		switch {
		case errors.Is(err, ErrScheduleNotFound):
			r.logger.InfoContext(ctx, "schedule already gone", slog.String("schedule", s.Name))
			result.Vanished = append(result.Vanished, s.Name)
		case err != nil:
			return result, fmt.Errorf("Register: delete schedule %s: %w", s.Name, err)
		default:
			r.logger.InfoContext(ctx, "deleted stale schedule", slog.String("schedule", s.Name))
			result.Deleted = append(result.Deleted, s.Name)
		}
	}

	updated, err := r.schedules.Upsert(ctx, ScheduleSpec{
		Name:        r.Name(),
		Expression:  r.Expression(),
		TargetARN:   r.cfg.TargetARN,
		RoleARN:     r.cfg.RoleARN,
		Input:       r.cfg.Input,
		Description: "class reminder dispatch trigger",
	})
	if err != nil {
		return result, fmt.Errorf("Register: upsert schedule %s: %w", r.Name(), err)
	}
	result.Updated = updated

	r.logger.InfoContext(ctx, "dispatch schedule registered",
		slog.String("schedule", result.Schedule),
		slog.String("expression", result.Expression),
		slog.Bool("updated", updated),
		slog.Int("deleted", len(result.Deleted)))
	return result, nil
}

// Package reminder runs one reminder dispatch pass: it finds due (session, reminder type)
// pairs, claims each in the delivery ledger, fans the notification out to every channel
// and commits the outcome. Runs are stateless and may overlap; the ledger claim is the
// only guard against duplicate delivery.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"class-reminder/internal/domain/entity"
	"class-reminder/internal/observability/logging"
	"class-reminder/internal/observability/metrics"
	"class-reminder/internal/observability/tracing"
	"class-reminder/internal/repository"
	"class-reminder/internal/resilience/retry"
	"class-reminder/internal/usecase/window"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Dispatcher delivers a notification to every target. It is satisfied by
// *notify.Dispatcher.
type Dispatcher interface {
	Send(ctx context.Context, n *entity.Notification, targets []entity.ChannelTarget) []entity.ChannelResult
}

// Config holds the orchestrator tuning.
type Config struct {
	// RunBudget bounds the time a run spends starting new work
	RunBudget time.Duration
	// ClaimTimeout bounds one TryClaim call
	ClaimTimeout time.Duration
	// CommitTimeout bounds one Commit including its retries
	CommitTimeout time.Duration
	// SessionConcurrency bounds sessions processed in parallel
	SessionConcurrency int
	// Retention is how long terminal ledger entries are kept
	Retention time.Duration
	// CommitRetry is the retry profile for ledger commits
	CommitRetry retry.Config
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		RunBudget:          4 * time.Minute,
		ClaimTimeout:       5 * time.Second,
		CommitTimeout:      10 * time.Second,
		SessionConcurrency: 4,
		Retention:          30 * 24 * time.Hour,
		CommitRetry:        retry.DBConfig(),
	}
}

// RunStats summarizes one run.
type RunStats struct {
	RunID            string        `json:"run_id"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration_ns"`
	Sessions         int           `json:"sessions"`
	Candidates       int           `json:"candidates"`
	Claimed          int           `json:"claimed"`
	Reclaimed        int           `json:"reclaimed"`
	Skipped          int           `json:"skipped"`
	Sent             int           `json:"sent"`
	Failed           int           `json:"failed"`
	Deferred         int           `json:"deferred"`
	ClaimErrors      int           `json:"claim_errors"`
	CommitErrors     int           `json:"commit_errors"`
	ClaimLost        int           `json:"claim_lost"`
	StaleReclaimable int           `json:"stale_reclaimable"`
	StaleExhausted   int           `json:"stale_exhausted"`
	StaleExpired     int           `json:"stale_expired"`
	BudgetExceeded   bool          `json:"budget_exceeded"`

	mu sync.Mutex
}

func (st *RunStats) add(f func(*RunStats)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	f(st)
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// Service is the dispatch orchestrator.
type Service struct {
	sessions   repository.SessionRepository
	ledger     repository.DeliveryLedger
	evaluator  *window.Evaluator
	dispatcher Dispatcher
	targets    []entity.ChannelTarget
	cfg        Config
	now        func() time.Time
	logger     *slog.Logger
}

// NewService wires the orchestrator. Zero Config fields fall back to DefaultConfig.
func NewService(
	sessions repository.SessionRepository,
	ledger repository.DeliveryLedger,
	evaluator *window.Evaluator,
	dispatcher Dispatcher,
	targets []entity.ChannelTarget,
	cfg Config,
	opts ...Option,
) *Service {
	def := DefaultConfig()
	if cfg.RunBudget <= 0 {
		cfg.RunBudget = def.RunBudget
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = def.ClaimTimeout
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = def.CommitTimeout
	}
	if cfg.SessionConcurrency <= 0 {
		cfg.SessionConcurrency = def.SessionConcurrency
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.CommitRetry.MaxAttempts <= 0 {
		cfg.CommitRetry = def.CommitRetry
	}

	s := &Service{
		sessions:   sessions,
		ledger:     ledger,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		targets:    targets,
		cfg:        cfg,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one dispatch pass. It returns an error only when nothing could be
// evaluated (the session query failed); individual units fail alone and are counted
// in RunStats.
func (s *Service) Run(ctx context.Context) (*RunStats, error) {
	began := time.Now()
	stats := &RunStats{RunID: uuid.New().String(), StartedAt: s.now().UTC()}
	logger := logging.WithRequestID(ctx, s.logger).With(slog.String("run_id", stats.RunID))

	ctx, span := tracing.StartSpan(ctx, "reminder.Run", attribute.String("reminder.run_id", stats.RunID))
	defer span.End()

	// budgetCtx gates new work only; claimed units finish on a detached context.
	budgetCtx, cancel := context.WithTimeout(ctx, s.cfg.RunBudget)
	defer cancel()

	now := s.now()
	s.sweepStale(budgetCtx, logger, now, stats)

	horizon := now.Add(s.evaluator.Horizon())
	sessions, err := s.sessions.ListStartingBetween(budgetCtx, now, horizon)
	if err != nil {
		stats.Duration = time.Since(began)
		metrics.RecordRun("error", stats.Duration)
		tracing.RecordError(span, err)
		logger.ErrorContext(ctx, "reminder run aborted: session query failed", slog.Any("error", err))
		return stats, fmt.Errorf("Run: list sessions: %w", err)
	}
	stats.Sessions = len(sessions)

	known := s.prefetch(budgetCtx, logger, sessions)

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.SessionConcurrency)
	for _, session := range sessions {
		if budgetCtx.Err() != nil {
			stats.add(func(st *RunStats) { st.Deferred += len(s.evaluator.Due(now, session)) })
			continue
		}
		g.Go(func() error {
			s.processSession(budgetCtx, logger, session, now, known, stats)
			return nil
		})
	}
	_ = g.Wait()

	stats.BudgetExceeded = errors.Is(budgetCtx.Err(), context.DeadlineExceeded)
	stats.Duration = time.Since(began)

	result := "success"
	if stats.BudgetExceeded {
		result = "budget_exceeded"
		logger.WarnContext(ctx, "run budget exceeded, remaining candidates deferred",
			slog.Int("deferred", stats.Deferred),
			slog.Duration("budget", s.cfg.RunBudget))
	}
	metrics.RecordRun(result, stats.Duration)
	span.SetAttributes(
		attribute.Int("reminder.sessions", stats.Sessions),
		attribute.Int("reminder.sent", stats.Sent),
		attribute.Int("reminder.failed", stats.Failed),
	)

	logger.InfoContext(ctx, "reminder run finished",
		slog.Int("sessions", stats.Sessions),
		slog.Int("candidates", stats.Candidates),
		slog.Int("claimed", stats.Claimed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("sent", stats.Sent),
		slog.Int("failed", stats.Failed),
		slog.Int("deferred", stats.Deferred),
		slog.Int("claim_errors", stats.ClaimErrors),
		slog.Int("commit_errors", stats.CommitErrors),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

// sweepStale reports abandoned claims. Failure is logged; the claim step still
// takes over stale entries on its own.
func (s *Service) sweepStale(ctx context.Context, logger *slog.Logger, now time.Time, stats *RunStats) {
	report, err := s.ledger.ReclaimStale(ctx, now)
	if err != nil {
		logger.ErrorContext(ctx, "stale claim sweep failed", slog.Any("error", err))
		return
	}
	policy := s.ledger.Policy()
	logger = logger.With(
		slog.Duration("stale_after", policy.StaleAfter),
		slog.Int("max_attempts", policy.MaxAttempts))
	stats.StaleReclaimable = len(report.Reclaimable)
	stats.StaleExhausted = len(report.Exhausted)
	stats.StaleExpired = len(report.Expired)
	metrics.RecordStaleClaims(stats.StaleReclaimable, stats.StaleExhausted, stats.StaleExpired)

	for _, sc := range report.Reclaimable {
		logger.WarnContext(ctx, "stale claim will be retried",
			slog.String("dispatch_key", sc.Key.String()),
			slog.Time("claimed_at", sc.ClaimedAt),
			slog.Int("attempts", sc.Attempts))
	}
	for _, sc := range report.Exhausted {
		logger.ErrorContext(ctx, "stale claim exhausted retries, marked failed",
			slog.String("dispatch_key", sc.Key.String()),
			slog.Time("claimed_at", sc.ClaimedAt),
			slog.Int("attempts", sc.Attempts))
	}
	for _, sc := range report.Expired {
		logger.ErrorContext(ctx, "stale claim outlived its session, marked failed",
			slog.String("dispatch_key", sc.Key.String()),
			slog.Time("claimed_at", sc.ClaimedAt),
			slog.Int("attempts", sc.Attempts))
	}
}

// prefetch loads the ledger state of the listed sessions. It is an optimization
// only: on error every candidate goes through TryClaim.
func (s *Service) prefetch(ctx context.Context, logger *slog.Logger, sessions []*entity.Session) map[entity.DispatchKey]entity.LedgerState {
	known := make(map[entity.DispatchKey]entity.LedgerState)
	if len(sessions) == 0 {
		return known
	}
	ids := make([]string, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
	}
	entries, err := s.ledger.Entries(ctx, ids)
	if err != nil {
		logger.WarnContext(ctx, "ledger prefetch failed, claiming every candidate", slog.Any("error", err))
		return known
	}
	for _, e := range entries {
		known[e.Key] = e.State
	}
	return known
}

func (s *Service) processSession(ctx context.Context, logger *slog.Logger, session *entity.Session, now time.Time, known map[entity.DispatchKey]entity.LedgerState, stats *RunStats) {
	if err := session.Validate(); err != nil {
		logger.WarnContext(ctx, "skipping invalid session",
			slog.String("session_id", session.ID),
			slog.Any("error", err))
		return
	}

	candidates := s.evaluator.Due(now, session)
	stats.add(func(st *RunStats) { st.Candidates += len(candidates) })

	for i, c := range candidates {
		if ctx.Err() != nil {
			remaining := len(candidates) - i
			stats.add(func(st *RunStats) { st.Deferred += remaining })
			return
		}
		key := entity.DispatchKey{SessionID: session.ID, Type: c.Type}
		unitLogger := logger.With(slog.String("dispatch_key", key.String()))

		if state, ok := known[key]; ok && state.Terminal() {
			stats.add(func(st *RunStats) { st.Skipped++ })
			unitLogger.DebugContext(ctx, "reminder already handled", slog.String("state", string(state)))
			continue
		}
		s.processUnit(ctx, unitLogger, session, c, key, stats)
	}
}

// processUnit claims, dispatches and commits one key.
func (s *Service) processUnit(ctx context.Context, logger *slog.Logger, session *entity.Session, c window.Candidate, key entity.DispatchKey, stats *RunStats) {
	claim, err := s.claim(ctx, key)
	if err != nil {
		stats.add(func(st *RunStats) { st.ClaimErrors++ })
		metrics.RecordClaim(string(key.Type), "error")
		logger.ErrorContext(ctx, "ledger claim failed", slog.Any("error", err))
		return
	}
	if !claim.Won() {
		stats.add(func(st *RunStats) { st.Skipped++ })
		metrics.RecordClaim(string(key.Type), "already_handled")
		logger.DebugContext(ctx, "reminder already claimed elsewhere")
		return
	}

	claimResult := "claimed"
	if claim.Reclaimed {
		claimResult = "reclaimed"
		logger.WarnContext(ctx, "took over stale claim", slog.Int("attempt", claim.Attempt))
	}
	metrics.RecordClaim(string(key.Type), claimResult)
	stats.add(func(st *RunStats) {
		st.Claimed++
		if claim.Reclaimed {
			st.Reclaimed++
		}
	})

	// A won claim is always driven to a commit, even past the run budget.
	detached := context.WithoutCancel(ctx)

	n := Render(session, c.Type, s.now())
	results := s.dispatcher.Send(detached, n, s.targets)
	outcome := entity.Outcome(results)
	detail := entity.FailureSummary(results)
	if len(results) == 0 {
		detail = "no delivery targets configured"
	}

	err = s.commit(detached, claim, outcome, detail)
	switch {
	case errors.Is(err, entity.ErrClaimLost):
		stats.add(func(st *RunStats) { st.ClaimLost++ })
		metrics.RecordCommitError("claim_lost")
		logger.WarnContext(ctx, "claim lost before commit", slog.String("outcome", string(outcome)))
		return
	case err != nil:
		stats.add(func(st *RunStats) { st.CommitErrors++ })
		metrics.RecordCommitError("error")
		logger.ErrorContext(ctx, "ledger commit failed",
			slog.String("outcome", string(outcome)),
			slog.Any("error", err))
		return
	}

	metrics.RecordDispatchOutcome(string(key.Type), string(outcome), c.CatchUp)
	if outcome == entity.LedgerSent {
		stats.add(func(st *RunStats) { st.Sent++ })
		logger.InfoContext(ctx, "reminder sent",
			slog.Bool("catch_up", c.CatchUp),
			slog.Int("targets", len(results)),
			slog.Time("start_at", session.StartAt))
		return
	}
	stats.add(func(st *RunStats) { st.Failed++ })
	logger.ErrorContext(ctx, "reminder failed on every channel",
		slog.Bool("catch_up", c.CatchUp),
		slog.Int("targets", len(results)),
		slog.String("detail", detail))
}

func (s *Service) claim(ctx context.Context, key entity.DispatchKey) (entity.Claim, error) {
	ctx, span := tracing.StartSpan(ctx, "reminder.Claim", attribute.String("reminder.dispatch_key", key.String()))
	defer span.End()

	claimCtx, cancel := context.WithTimeout(ctx, s.cfg.ClaimTimeout)
	defer cancel()

	start := time.Now()
	claim, err := s.ledger.TryClaim(claimCtx, key, s.now())
	metrics.RecordLedgerOperation("ledger_claim", time.Since(start), err)
	tracing.RecordError(span, err)
	if err != nil {
		return entity.Claim{}, fmt.Errorf("claim %s: %w", key, err)
	}
	span.SetAttributes(attribute.String("reminder.claim_status", claim.Status.String()))
	return claim, nil
}

// commit records the outcome under COMMIT_TIMEOUT, retrying transient ledger errors.
func (s *Service) commit(ctx context.Context, claim entity.Claim, state entity.LedgerState, detail string) error {
	commitCtx, cancel := context.WithTimeout(ctx, s.cfg.CommitTimeout)
	defer cancel()

	start := time.Now()
	_, err := retry.Do(commitCtx, s.cfg.CommitRetry, commitRetryable, func(int) error {
		return s.ledger.Commit(commitCtx, claim, state, detail, s.now())
	})
	metrics.RecordLedgerOperation("ledger_commit", time.Since(start), err)
	return err
}

func commitRetryable(err error) bool {
	return !errors.Is(err, entity.ErrClaimLost) &&
		!errors.Is(err, entity.ErrInvalidInput) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// Purge deletes terminal ledger entries older than the retention.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.cfg.Retention)
	n, err := s.ledger.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("Purge: %w", err)
	}
	metrics.RecordLedgerPurged(n)
	s.logger.InfoContext(ctx, "ledger purged",
		slog.Int64("deleted", n),
		slog.Time("cutoff", cutoff))
	return n, nil
}

// SessionLedger returns the ledger entries of one session for operators.
func (s *Service) SessionLedger(ctx context.Context, sessionID string) ([]entity.LedgerEntry, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("SessionLedger: session id: %w", entity.ErrInvalidInput)
	}
	entries, err := s.ledger.Entries(ctx, []string{sessionID})
	if err != nil {
		return nil, fmt.Errorf("SessionLedger: %w", err)
	}
	return entries, nil
}

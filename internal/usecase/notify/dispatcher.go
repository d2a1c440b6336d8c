package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"class-reminder/internal/domain/entity"
	"class-reminder/internal/infra/notifier"
	"class-reminder/internal/observability/tracing"
	"class-reminder/internal/resilience/circuitbreaker"
	"class-reminder/internal/resilience/retry"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Defaults applied by NewDispatcher to zero Config fields.
const (
	defaultMaxConcurrent = 10
	defaultSendTimeout   = 15 * time.Second
	defaultMaxAttempts   = 3
)

// Config holds the Dispatcher tuning.
type Config struct {
	// MaxConcurrent bounds the number of targets sent in parallel
	MaxConcurrent int

	// SendTimeout bounds a single provider attempt
	SendTimeout time.Duration

	// Retry is the backoff profile for transient failures
	Retry retry.Config
}

// ChannelHealthStatus represents the health status of one target kind. Breakers
// are kept per target; State is the worst state among the kind's targets.
type ChannelHealthStatus struct {
	Kind                entity.ChannelKind `json:"kind"`
	Channel             string             `json:"channel"`
	State               string             `json:"state"` // closed|half-open|open
	CircuitBreakerOpen  bool               `json:"circuit_breaker_open"`
	ConsecutiveFailures uint32             `json:"consecutive_failures"`
	OpenTargets         []string           `json:"open_targets,omitempty"`
}

// targetBreaker is the breaker of one destination.
type targetBreaker struct {
	kind entity.ChannelKind
	name string
	cb   *circuitbreaker.CircuitBreaker
}

// Dispatcher sends one notification to many targets. Targets are isolated from each
// other: none cancels, delays or fails another, and each destination has its own
// circuit breaker.
type Dispatcher struct {
	cfg      Config
	channels map[entity.ChannelKind]Channel
	logger   *slog.Logger

	mu       sync.Mutex
	breakers map[string]*targetBreaker // by ChannelTarget.ID
}

// NewDispatcher creates a Dispatcher routing each target kind to the channel that
// declares it. A later channel declaring the same kind replaces the earlier one.
//
// Parameters:
//   - cfg: Concurrency, timeout and retry settings (zero fields get defaults)
//   - logger: Logger for failed targets (nil uses slog.Default())
//   - channels: Provider channels
//
// Returns:
//   - *Dispatcher: Ready to use dispatcher
func NewDispatcher(cfg Config, logger *slog.Logger, channels ...Channel) *Dispatcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.NotificationConfig(defaultMaxAttempts)
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		cfg:      cfg,
		channels: make(map[entity.ChannelKind]Channel),
		breakers: make(map[string]*targetBreaker),
		logger:   logger,
	}
	for _, ch := range channels {
		for _, kind := range ch.Kinds() {
			d.channels[kind] = ch
		}
	}
	SetChannelsRegistered(float64(len(d.channels)))
	return d
}

// breakerFor returns the breaker of target's destination, creating it on first use.
func (d *Dispatcher) breakerFor(target entity.ChannelTarget) *circuitbreaker.CircuitBreaker {
	id := target.ID()
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.breakers[id]; ok {
		return b.cb
	}
	b := &targetBreaker{
		kind: target.Kind,
		name: target.Name(),
		cb:   circuitbreaker.New(circuitbreaker.ChannelConfig(id, breakerIgnores)),
	}
	d.breakers[id] = b
	return b.cb
}

// breakerIgnores reports errors that say nothing about provider health: success,
// permanent rejections and a canceled caller.
func breakerIgnores(err error) bool {
	return err == nil || notifier.IsPermanent(err) || errors.Is(err, context.Canceled)
}

// Send delivers n to every target and returns one result per target, in target order.
// It blocks until every target reached a final status. Zero targets yield an empty
// slice.
func (d *Dispatcher) Send(ctx context.Context, n *entity.Notification, targets []entity.ChannelTarget) []entity.ChannelResult {
	results := make([]entity.ChannelResult, len(targets))
	if len(targets) == 0 {
		return results
	}

	ctx, span := tracing.GetTracer().Start(ctx, "notify.Dispatch",
		trace.WithAttributes(
			attribute.String("reminder.dispatch_key", n.Key.String()),
			attribute.Int("reminder.targets", len(targets)),
		))
	defer span.End()

	// plain Group: a failed target must not cancel its siblings
	var g errgroup.Group
	g.SetLimit(d.cfg.MaxConcurrent)
	for i, target := range targets {
		g.Go(func() error {
			results[i] = d.sendTarget(ctx, n, target)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.OK() {
			continue
		}
		failed++
		d.logger.WarnContext(ctx, "channel delivery failed",
			slog.String("dispatch_key", n.Key.String()),
			slog.String("channel", string(r.Target.Kind)),
			slog.String("target", r.Target.Name()),
			slog.String("status", string(r.Status)),
			slog.Int("attempts", r.Attempts),
			slog.Duration("duration", r.Duration),
			slog.Any("error", r.Err))
	}
	span.SetAttributes(attribute.Int("reminder.failed_targets", failed))
	if failed == len(results) {
		span.SetStatus(codes.Error, "all targets failed")
	}
	return results
}

// sendTarget runs the retry loop for one target.
func (d *Dispatcher) sendTarget(ctx context.Context, n *entity.Notification, target entity.ChannelTarget) entity.ChannelResult {
	IncrementActiveSends()
	defer DecrementActiveSends()

	kind := string(target.Kind)
	start := time.Now()
	RecordDispatch(kind)

	result := entity.ChannelResult{Target: target}
	ch, ok := d.channels[target.Kind]
	if !ok {
		result.Status = entity.ResultPermanentFailure
		result.Err = fmt.Errorf("%s: %w", kind, ErrNoChannel)
		RecordResult(kind, string(result.Status), 0, time.Since(start))
		return result
	}
	breaker := d.breakerFor(target)

	attempts, err := retry.Do(ctx, d.cfg.Retry, isRetryable, func(attempt int) error {
		return d.attempt(ctx, ch, breaker, n, target)
	})

	result.Attempts = attempts
	result.Err = err
	result.Status = classify(err)
	result.Duration = time.Since(start)
	RecordResult(kind, string(result.Status), attempts, result.Duration)
	return result
}

// attempt makes one provider call under the per-attempt timeout and the target's breaker.
func (d *Dispatcher) attempt(ctx context.Context, ch Channel, breaker *circuitbreaker.CircuitBreaker, n *entity.Notification, target entity.ChannelTarget) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "panic in notification channel",
				slog.String("channel", ch.Name()),
				slog.String("dispatch_key", n.Key.String()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%s: %w: %v", ch.Name(), ErrProviderPanic, r)
		}
	}()

	attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	err = breaker.Call(func() error {
		return ch.Send(attemptCtx, n, target)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		RecordCircuitBreakerOpen(string(target.Kind))
		return fmt.Errorf("%s: %w", target.Name(), ErrCircuitBreakerOpen)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", ch.Name(), err)
	}
	return nil
}

// isRetryable allows another attempt only for transient provider failures. An open
// breaker will still be open after a short backoff.
func isRetryable(err error) bool {
	if errors.Is(err, ErrCircuitBreakerOpen) || errors.Is(err, ErrProviderPanic) {
		return false
	}
	return notifier.IsTransient(err)
}

func classify(err error) entity.ResultStatus {
	switch {
	case err == nil:
		return entity.ResultSuccess
	case errors.Is(err, ErrProviderPanic), errors.Is(err, ErrNoChannel), notifier.IsPermanent(err):
		return entity.ResultPermanentFailure
	default:
		return entity.ResultTransientFailure
	}
}

// ChannelHealth returns the breaker state of every registered kind, sorted by kind.
// A kind whose targets have not been sent to yet is closed.
func (d *Dispatcher) ChannelHealth() []ChannelHealthStatus {
	byKind := make(map[entity.ChannelKind]*ChannelHealthStatus, len(d.channels))
	worst := make(map[entity.ChannelKind]gobreaker.State, len(d.channels))
	for kind, ch := range d.channels {
		byKind[kind] = &ChannelHealthStatus{Kind: kind, Channel: ch.Name()}
		worst[kind] = gobreaker.StateClosed
	}

	d.mu.Lock()
	for _, b := range d.breakers {
		st, ok := byKind[b.kind]
		if !ok {
			continue
		}
		state := b.cb.State()
		if severity(state) > severity(worst[b.kind]) {
			worst[b.kind] = state
		}
		if state == gobreaker.StateOpen {
			st.CircuitBreakerOpen = true
			st.OpenTargets = append(st.OpenTargets, b.name)
		}
		if n := b.cb.Counts().ConsecutiveFailures; n > st.ConsecutiveFailures {
			st.ConsecutiveFailures = n
		}
	}
	d.mu.Unlock()

	statuses := make([]ChannelHealthStatus, 0, len(byKind))
	for kind, st := range byKind {
		st.State = worst[kind].String()
		sort.Strings(st.OpenTargets)
		statuses = append(statuses, *st)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Kind < statuses[j].Kind })
	return statuses
}

func severity(s gobreaker.State) int {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

// Kinds returns the registered target kinds, sorted.
func (d *Dispatcher) Kinds() []entity.ChannelKind {
	kinds := make([]entity.ChannelKind, 0, len(d.channels))
	for kind := range d.channels {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

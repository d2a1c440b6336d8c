// Package http provides the dispatcher's HTTP surface: probes, channel health,
// Prometheus metrics and the middleware chain shared by the trigger routes.
package http

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"class-reminder/internal/handler/http/respond"
	"class-reminder/internal/usecase/notify"
)

// Check states, from best to worst.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// poolSaturation is the in-use share of the session store pool above which the
// database check reports degraded.
const poolSaturation = 0.8

func severity(status string) int {
	switch status {
	case statusUnhealthy:
		return 2
	case statusDegraded:
		return 1
	default:
		return 0
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is the result of one dependency check.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// PingFunc checks one dependency, e.g. the Redis ledger.
type PingFunc func(ctx context.Context) error

// ChannelHealthReporter exposes channel breaker states. It is satisfied by
// *notify.Dispatcher.
type ChannelHealthReporter interface {
	ChannelHealth() []notify.ChannelHealthStatus
}

// HealthHandler reports the session store, the ledger backend and the delivery
// channels. The database and every entry of Pings are hard dependencies and
// answer 503 when down. An open channel breaker only degrades the status: a run
// still delivers through the remaining channels.
type HealthHandler struct {
	DB       *sql.DB
	Pings    map[string]PingFunc
	Channels ChannelHealthReporter
	Version  string
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]CheckStatus{"database": h.checkDatabase(ctx)}

	names := make([]string, 0, len(h.Pings))
	for name := range h.Pings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		checks[name] = pingCheck(ctx, h.Pings[name])
	}

	if h.Channels != nil {
		checks["channels"] = checkChannels(h.Channels.ChannelHealth())
	}

	overall := statusHealthy
	for _, c := range checks {
		if severity(c.Status) > severity(overall) {
			overall = c.Status
		}
	}
	code := http.StatusOK
	if overall == statusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Cache-Control", "no-store")
	respond.JSON(w, code, HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
}

func pingCheck(ctx context.Context, ping PingFunc) CheckStatus {
	if err := ping(ctx); err != nil {
		return CheckStatus{Status: statusUnhealthy, Message: respond.SanitizeError(err)}
	}
	return CheckStatus{Status: statusHealthy}
}

// checkDatabase pings the session store and reports pool usage. An unbounded
// pool or one above poolSaturation is degraded.
func (h *HealthHandler) checkDatabase(ctx context.Context) CheckStatus {
	if h.DB == nil {
		return CheckStatus{Status: statusUnhealthy, Message: "not configured"}
	}
	if c := pingCheck(ctx, h.DB.PingContext); c.Status != statusHealthy {
		return c
	}

	stats := h.DB.Stats()
	details := map[string]any{
		"max_open_connections": stats.MaxOpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
	if stats.MaxOpenConnections == 0 {
		return CheckStatus{Status: statusDegraded, Message: "connection pool is unbounded", Details: details}
	}

	used := float64(stats.InUse) / float64(stats.MaxOpenConnections)
	details["utilization_percent"] = used * 100
	if used >= poolSaturation {
		return CheckStatus{Status: statusDegraded, Message: "connection pool nearly exhausted", Details: details}
	}
	return CheckStatus{Status: statusHealthy, Details: details}
}

func checkChannels(statuses []notify.ChannelHealthStatus) CheckStatus {
	if len(statuses) == 0 {
		return CheckStatus{Status: statusDegraded, Message: "no channels registered"}
	}
	details := make(map[string]any, len(statuses))
	var open []string
	for _, s := range statuses {
		details[string(s.Kind)] = s.State
		if s.CircuitBreakerOpen {
			open = append(open, string(s.Kind))
		}
	}
	if len(open) > 0 {
		sort.Strings(open)
		details["open"] = open
		return CheckStatus{Status: statusDegraded, Message: "circuit breaker open", Details: details}
	}
	return CheckStatus{Status: statusHealthy, Details: details}
}

// ChannelHealthHandler serves GET /health/channels: every registered channel
// with its breaker state and failure counts.
type ChannelHealthHandler struct {
	Channels ChannelHealthReporter
}

func (h *ChannelHealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	statuses := []notify.ChannelHealthStatus{}
	if h.Channels != nil {
		statuses = h.Channels.ChannelHealth()
	}
	w.Header().Set("Cache-Control", "no-store")
	respond.JSON(w, http.StatusOK, struct {
		Channels  []notify.ChannelHealthStatus `json:"channels"`
		Timestamp string                       `json:"timestamp"`
	}{statuses, time.Now().UTC().Format(time.RFC3339)})
}

// ReadyHandler answers "ready" once the session store accepts connections.
type ReadyHandler struct {
	DB *sql.DB
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.DB == nil {
		http.Error(w, "database not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.DB.PingContext(ctx); err != nil {
		slog.Warn("readiness ping failed", slog.String("error", respond.SanitizeError(err)))
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	writeText(w, "ready")
}

// LiveHandler always answers "alive".
type LiveHandler struct{}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeText(w, "alive")
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("failed to write probe response", slog.Any("error", err))
	}
}

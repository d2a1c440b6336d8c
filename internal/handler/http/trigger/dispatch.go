package trigger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"class-reminder/internal/handler/http/respond"
	"class-reminder/internal/observability/logging"
	"class-reminder/internal/usecase/reminder"
)

// Runner runs one dispatch pass. It is satisfied by *reminder.Service.
type Runner interface {
	Run(ctx context.Context) (*reminder.RunStats, error)
}

// DispatchHandler triggers one reminder run per request.
type DispatchHandler struct{ Svc Runner }

// ServeHTTP runs the dispatcher and returns the run summary.
//
// The run is detached from the request context: a caller that hangs up must not
// abandon claims between TryClaim and Commit. The run bounds itself with its
// own budget. A run that could not start (session store down) answers 503 so
// the invoker retries.
func (h DispatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		respond.Message(w, http.StatusServiceUnavailable, "dispatch run failed", err)
		return
	}
	if stats == nil {
		respond.Error(w, http.StatusInternalServerError, errors.New("run returned no stats"))
		return
	}
	logging.FromContext(r.Context()).Info("dispatch run triggered over http",
		slog.String("run_id", stats.RunID),
		slog.Int("sent", stats.Sent),
		slog.Int("failed", stats.Failed))
	respond.JSON(w, http.StatusOK, newRunDTO(stats))
}

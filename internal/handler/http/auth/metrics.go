package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authzDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatcher_authz_decisions_total",
		Help: "Authorization decisions on the trigger API by role, method and result (allowed, unauthorized, forbidden)",
	}, []string{"role", "method", "result"})

	authzCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatcher_authz_check_duration_seconds",
		Help:    "Time spent verifying the bearer token and role",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01},
	})
)

// recordDecision counts one decision. Rejected tokens carry no trusted role and
// are recorded as "unknown".
func recordDecision(role, method, result string, started time.Time) {
	if role == "" {
		role = "unknown"
	}
	authzDecisionsTotal.WithLabelValues(role, method, result).Inc()
	authzCheckDuration.Observe(time.Since(started).Seconds())
}

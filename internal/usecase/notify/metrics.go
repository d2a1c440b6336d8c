package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for channel dispatch monitoring
var (
	// notificationDispatchedTotal tracks target sends started per channel kind
	notificationDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_channel_dispatched_total",
			Help: "Total number of target sends started",
		},
		[]string{"channel"},
	)

	// notificationSentTotal tracks final target results per channel kind
	notificationSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_channel_sent_total",
			Help: "Total number of target sends by final status",
		},
		[]string{"channel", "status"}, // status: success|transient_failure|permanent_failure
	)

	// notificationDuration tracks target send duration, retries included
	notificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reminder_channel_duration_seconds",
			Help:    "Target send duration in seconds, retries included",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"channel"},
	)

	// notificationRetriesTotal tracks extra attempts beyond the first
	notificationRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_channel_retries_total",
			Help: "Total number of send retries",
		},
		[]string{"channel"},
	)

	// circuitBreakerRejectedTotal tracks sends rejected by an open breaker
	circuitBreakerRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_channel_circuit_open_total",
			Help: "Total number of sends rejected by an open circuit breaker",
		},
		[]string{"channel"},
	)

	// activeSends tracks in-flight target sends
	activeSends = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reminder_channel_active_sends",
			Help: "Number of in-flight target sends",
		},
	)

	// channelsRegistered tracks the number of registered target kinds
	channelsRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reminder_channels_registered",
			Help: "Number of target kinds with a registered channel",
		},
	)
)

// RecordDispatch records the start of a target send.
func RecordDispatch(channel string) {
	notificationDispatchedTotal.WithLabelValues(channel).Inc()
}

// RecordResult records the final status of a target send and its duration.
//
// Parameters:
//   - channel: The target kind
//   - status: success, transient_failure or permanent_failure
//   - attempts: Number of attempts made
//   - duration: Total time including retries
func RecordResult(channel, status string, attempts int, duration time.Duration) {
	notificationSentTotal.WithLabelValues(channel, status).Inc()
	notificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
	if attempts > 1 {
		notificationRetriesTotal.WithLabelValues(channel).Add(float64(attempts - 1))
	}
}

// RecordCircuitBreakerOpen records a send rejected by an open breaker.
func RecordCircuitBreakerOpen(channel string) {
	circuitBreakerRejectedTotal.WithLabelValues(channel).Inc()
}

// IncrementActiveSends increments the active sends gauge by 1.
func IncrementActiveSends() {
	activeSends.Inc()
}

// DecrementActiveSends decrements the active sends gauge by 1.
func DecrementActiveSends() {
	activeSends.Dec()
}

// SetChannelsRegistered sets the number of registered target kinds.
func SetChannelsRegistered(count float64) {
	channelsRegistered.Set(count)
}

package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"class-reminder/internal/observability/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	metrics.HTTPRequestsTotal.Reset()

	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/internal/reminders/sessions/{sessionID}/ledger", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	for _, id := range []string{"s-1", "s-2", "s-3", "3f1c2a9e"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/reminders/sessions/"+id+"/ledger", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	if got := testutil.CollectAndCount(metrics.HTTPRequestsTotal); got != 1 {
		t.Errorf("series = %d, want 1", got)
	}
	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(
		http.MethodGet, "/internal/reminders/sessions/{sessionID}/ledger", "200"))
	if got != 4 {
		t.Errorf("count = %v, want 4", got)
	}
}

func TestMetricsMiddleware_FallsBackToNormalizedPath(t *testing.T) {
	metrics.HTTPRequestsTotal.Reset()

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	for _, p := range []string{"/wp-login.php", "/.env", "/admin"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "other", "404"))
	if got != 3 {
		t.Errorf("count = %v, want 3", got)
	}
}

func TestMetricsMiddleware_RecordsStatus(t *testing.T) {
	metrics.HTTPRequestsTotal.Reset()

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/internal/reminders/dispatch", nil))

	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/internal/reminders/dispatch", "503"))
	if got != 1 {
		t.Errorf("count = %v, want 1", got)
	}
	if v := testutil.ToFloat64(metrics.HTTPRequestsInFlight); v != 0 {
		t.Errorf("in flight = %v after request, want 0", v)
	}
}

func TestMetricsHandler(t *testing.T) {
	metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200").Inc()

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Error("metrics output missing http_requests_total")
	}
}

package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewDispatcherMetrics(t *testing.T) {
	m := globalTestMetrics

	if m.ConfigMetrics == nil {
		t.Fatal("ConfigMetrics is nil")
	}
	if m.TriggerRunsTotal == nil || m.TriggerRunDurationSeconds == nil || m.LastSuccessTimestamp == nil || m.PurgeRunsTotal == nil {
		t.Fatal("trigger metrics not initialized")
	}
}

func TestDispatcherMetrics_RecordRun(t *testing.T) {
	m := globalTestMetrics
	success := testutil.ToFloat64(m.TriggerRunsTotal.WithLabelValues("cron", "success"))
	failure := testutil.ToFloat64(m.TriggerRunsTotal.WithLabelValues("cron", "failure"))

	m.RecordRun("cron", "success", 1.5)
	m.RecordRun("cron", "failure", 0.2)
	m.RecordRun("cron", "success", 0.9)

	if got := testutil.ToFloat64(m.TriggerRunsTotal.WithLabelValues("cron", "success")); got != success+2 {
		t.Errorf("success = %v, want %v", got, success+2)
	}
	if got := testutil.ToFloat64(m.TriggerRunsTotal.WithLabelValues("cron", "failure")); got != failure+1 {
		t.Errorf("failure = %v, want %v", got, failure+1)
	}
	if testutil.ToFloat64(m.LastSuccessTimestamp) == 0 {
		t.Error("last success timestamp not set")
	}
}

func TestDispatcherMetrics_RecordPurge(t *testing.T) {
	m := globalTestMetrics
	before := testutil.ToFloat64(m.PurgeRunsTotal.WithLabelValues("success"))

	m.RecordPurge("success")

	if got := testutil.ToFloat64(m.PurgeRunsTotal.WithLabelValues("success")); got != before+1 {
		t.Errorf("purge success = %v, want %v", got, before+1)
	}
}

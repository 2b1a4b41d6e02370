package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitializeMetrics(t *testing.T) {
	// Must be callable repeatedly without panicking (idempotent label population).
	InitializeMetrics()
	InitializeMetrics()
}

func TestCountersStartAtZero(t *testing.T) {
	InitializeMetrics()

	if v := testutil.ToFloat64(WatcherEventsIgnored); v < 0 {
		t.Errorf("WatcherEventsIgnored = %v, want >= 0", v)
	}
	if v := testutil.ToFloat64(QueueJobsTotal.WithLabelValues("permanent")); v < 0 {
		t.Errorf("QueueJobsTotal(permanent) = %v, want >= 0", v)
	}
}

func TestGaugesSettable(t *testing.T) {
	QueueDepth.Set(3)
	if v := testutil.ToFloat64(QueueDepth); v != 3 {
		t.Errorf("QueueDepth = %v, want 3", v)
	}
	QueueDepth.Set(0)
}

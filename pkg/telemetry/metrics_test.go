package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func enabledMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "cloudinv"})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	return m
}

func TestItemsRejectedAddsBatch(t *testing.T) {
	m := enabledMetrics(t)

	m.ItemsRejected("flavors", 3)
	m.ItemsRejected("flavors", 0)
	m.ItemsRejected("servers", 1)

	if got := testutil.ToFloat64(m.itemsRejected.WithLabelValues("flavors")); got != 3 {
		t.Errorf("flavors rejected = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.itemsRejected.WithLabelValues("servers")); got != 1 {
		t.Errorf("servers rejected = %v, want 1", got)
	}
}

func TestRecordsSyncedPerOperation(t *testing.T) {
	m := enabledMetrics(t)

	m.RecordsSynced("flavors", 2, 1, 0)

	if got := testutil.ToFloat64(m.recordsSynced.WithLabelValues("flavors", "insert")); got != 2 {
		t.Errorf("inserts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.recordsSynced.WithLabelValues("flavors", "update")); got != 1 {
		t.Errorf("updates = %v, want 1", got)
	}
}

func TestDisabledMetricsAreNoOps(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	// None of these may panic on the nil registry.
	m.SweepStarted("dc1")
	m.ItemsRejected("flavors", 2)
	m.RecordsSynced("flavors", 1, 1, 1)
	m.LockSkipped("sweep")
}

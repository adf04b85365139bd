package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the reconciliation engine.
// When disabled, every method is a no-op so call sites stay clean.
type Metrics struct {
	config MetricsConfig

	// Sweep metrics
	sweepsStarted   *prometheus.CounterVec
	sweepsCompleted *prometheus.CounterVec
	sweepDuration   *prometheus.HistogramVec
	activeSweeps    prometheus.Gauge

	// Per-kind sync metrics
	syncRuns      *prometheus.CounterVec
	syncDuration  *prometheus.HistogramVec
	recordsSynced *prometheus.CounterVec

	// Failure metrics
	remoteErrors  *prometheus.CounterVec
	lockSkips     *prometheus.CounterVec
	itemsRejected *prometheus.CounterVec

	// Cleanup metrics
	recordsPurged *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		sweepsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_started_total",
				Help:      "Total number of inventory sweeps started",
			},
			[]string{"idc"},
		),
		sweepsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_completed_total",
				Help:      "Total number of inventory sweeps completed, by final status",
			},
			[]string{"idc", "status"},
		),
		sweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of full inventory sweeps",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"idc"},
		),
		activeSweeps: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sweeps",
				Help:      "Number of sweeps currently executing",
			},
		),
		syncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_runs_total",
				Help:      "Total number of per-kind synchronizer runs, by outcome",
			},
			[]string{"kind", "outcome"},
		),
		syncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_duration_seconds",
				Help:      "Duration of per-kind synchronizer runs",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		recordsSynced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_synced_total",
				Help:      "Records written by synchronizers, by kind and operation",
			},
			[]string{"kind", "op"},
		),
		remoteErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_errors_total",
				Help:      "Remote control-plane call failures, by kind and error class",
			},
			[]string{"kind", "class"},
		),
		lockSkips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lock_skips_total",
				Help:      "Scheduled invocations skipped due to lock contention",
			},
			[]string{"job"},
		),
		itemsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_rejected_total",
				Help:      "Remote items rejected by mapping validation",
			},
			[]string{"kind"},
		),
		recordsPurged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_purged_total",
				Help:      "Soft-deleted records physically removed by retention cleanup",
			},
			[]string{"kind"},
		),
	}

	collectors := []prometheus.Collector{
		m.sweepsStarted, m.sweepsCompleted, m.sweepDuration, m.activeSweeps,
		m.syncRuns, m.syncDuration, m.recordsSynced,
		m.remoteErrors, m.lockSkips, m.itemsRejected, m.recordsPurged,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SweepStarted records the start of a sweep for an IDC.
func (m *Metrics) SweepStarted(idc string) {
	if m.registry == nil {
		return
	}
	m.sweepsStarted.WithLabelValues(idc).Inc()
	m.activeSweeps.Inc()
}

// SweepCompleted records the end of a sweep with its final status.
func (m *Metrics) SweepCompleted(idc, status string, d time.Duration) {
	if m.registry == nil {
		return
	}
	m.sweepsCompleted.WithLabelValues(idc, status).Inc()
	m.sweepDuration.WithLabelValues(idc).Observe(d.Seconds())
	m.activeSweeps.Dec()
}

// SyncCompleted records one synchronizer run.
func (m *Metrics) SyncCompleted(kind, outcome string, d time.Duration) {
	if m.registry == nil {
		return
	}
	m.syncRuns.WithLabelValues(kind, outcome).Inc()
	m.syncDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordsSynced adds to the per-kind write counters.
func (m *Metrics) RecordsSynced(kind string, inserted, updated, deleted int) {
	if m.registry == nil {
		return
	}
	m.recordsSynced.WithLabelValues(kind, "insert").Add(float64(inserted))
	m.recordsSynced.WithLabelValues(kind, "update").Add(float64(updated))
	m.recordsSynced.WithLabelValues(kind, "delete").Add(float64(deleted))
}

// RemoteError records a classified remote call failure.
func (m *Metrics) RemoteError(kind, class string) {
	if m.registry == nil {
		return
	}
	m.remoteErrors.WithLabelValues(kind, class).Inc()
}

// LockSkipped records an invocation skipped due to lock contention.
func (m *Metrics) LockSkipped(job string) {
	if m.registry == nil {
		return
	}
	m.lockSkips.WithLabelValues(job).Inc()
}

// ItemsRejected adds n remote items dropped by mapping validation.
func (m *Metrics) ItemsRejected(kind string, n int) {
	if m.registry == nil || n == 0 {
		return
	}
	m.itemsRejected.WithLabelValues(kind).Add(float64(n))
}

// RecordsPurged records retention-cleanup deletions.
func (m *Metrics) RecordsPurged(kind string, n int64) {
	if m.registry == nil {
		return
	}
	m.recordsPurged.WithLabelValues(kind).Add(float64(n))
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/cloudinv/cloudinv/pkg/config"
	"github.com/cloudinv/cloudinv/pkg/store"
	"github.com/cloudinv/cloudinv/pkg/telemetry"
)

// Scheduler runs the periodic jobs: full sweeps per IDC, retention
// cleanup and health probes. Every scheduled invocation competes for a
// named lock so overlapping runs across ticks or replicas skip instead
// of piling up.
type Scheduler struct {
	cfg   *config.Config
	st    *store.Store
	orch  *Orchestrator
	tel   *telemetry.Telemetry
	log   *telemetry.Logger
	owner string
}

// NewScheduler creates a scheduler around an orchestrator.
func NewScheduler(cfg *config.Config, st *store.Store, orch *Orchestrator, tel *telemetry.Telemetry) *Scheduler {
	hostname, _ := os.Hostname()
	return &Scheduler{
		cfg:   cfg,
		st:    st,
		orch:  orch,
		tel:   tel,
		log:   tel.Logger.NewComponentLogger("scheduler"),
		owner: fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8]),
	}
}

// Run blocks until ctx is cancelled, firing each job at its configured
// interval. All jobs run once immediately at startup.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Infof("scheduler started: sweep=%s cleanup=%s health=%s",
		s.cfg.Sync.SweepInterval, s.cfg.Sync.CleanupInterval, s.cfg.Sync.HealthInterval)

	sweepTicker := time.NewTicker(s.cfg.Sync.SweepInterval)
	defer sweepTicker.Stop()
	cleanupTicker := time.NewTicker(s.cfg.Sync.CleanupInterval)
	defer cleanupTicker.Stop()
	healthTicker := time.NewTicker(s.cfg.Sync.HealthInterval)
	defer healthTicker.Stop()

	s.sweepAll(ctx)
	s.cleanup(ctx)
	s.healthAll(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-sweepTicker.C:
			s.sweepAll(ctx)
		case <-cleanupTicker.C:
			s.cleanup(ctx)
		case <-healthTicker.C:
			s.healthAll(ctx)
		}
	}
}

func (s *Scheduler) sweepAll(ctx context.Context) {
	for _, idc := range s.cfg.ActiveIDCs() {
		if ctx.Err() != nil {
			return
		}
		sw, err := s.orch.RunSweep(ctx, idc.Name)
		switch {
		case errors.Is(err, ErrSweepInProgress):
			s.log.WithIDC(idc.Name).Info("sweep skipped, already running")
		case err != nil:
			s.log.WithIDC(idc.Name).WithError(err).Error("sweep errored")
		case sw.Status == store.SweepStatusFailed:
			s.log.WithIDC(idc.Name).WithSweepID(sw.ID).Warn("sweep completed with failure")
		}
	}
}

func (s *Scheduler) cleanup(ctx context.Context) {
	locked, err := s.st.AcquireLock(ctx, "cleanup", s.owner, s.cfg.Sync.LockLease)
	if err != nil {
		s.log.WithError(err).Error("cleanup lock error")
		return
	}
	if !locked {
		s.tel.Metrics.LockSkipped("cleanup")
		s.log.Info("cleanup skipped, lock held")
		return
	}
	defer func() { _ = s.st.ReleaseLock(context.WithoutCancel(ctx), "cleanup", s.owner) }()

	purged, err := s.orch.RunCleanup(ctx)
	if err != nil {
		s.log.WithError(err).Error("cleanup failed")
		return
	}
	for table, n := range purged {
		s.log.Infof("purged %d expired rows from %s", n, table)
	}
}

func (s *Scheduler) healthAll(ctx context.Context) {
	for _, idc := range s.cfg.ActiveIDCs() {
		if ctx.Err() != nil {
			return
		}
		lockName := "health:" + idc.Name
		locked, err := s.st.AcquireLock(ctx, lockName, s.owner, s.cfg.Sync.LockLease)
		if err != nil {
			s.log.WithIDC(idc.Name).WithError(err).Error("health lock error")
			continue
		}
		if !locked {
			s.tel.Metrics.LockSkipped("health")
			continue
		}

		hs, err := s.orch.RunHealthCheck(ctx, idc.Name)
		_ = s.st.ReleaseLock(context.WithoutCancel(ctx), lockName, s.owner)
		if err != nil {
			s.log.WithIDC(idc.Name).WithError(err).Error("health check errored")
			continue
		}
		if !hs.Healthy {
			s.log.WithIDC(idc.Name).Warnf("control plane unhealthy: %s", hs.Detail)
		}
	}
}

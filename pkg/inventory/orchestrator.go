package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloudinv/cloudinv/pkg/config"
	"github.com/cloudinv/cloudinv/pkg/remote"
	"github.com/cloudinv/cloudinv/pkg/store"
	"github.com/cloudinv/cloudinv/pkg/telemetry"
)

// ErrSweepInProgress is returned when a sweep is requested while
// another holder owns the IDC's sweep lock. Callers skip, never wait.
var ErrSweepInProgress = errors.New("sweep already in progress")

// purgeTables lists the tables subject to retention cleanup. Junction
// kinds are hard-deleted during sync and never accumulate tombstones,
// but purging them is harmless so the list stays mechanical.
var purgeTables = []string{
	"regions", "projects", "flavors", "images",
	"security_groups", "security_group_rules", "zones", "server_groups",
	"servers", "subnets", "ports", "port_security_groups", "addresses",
	"volume_types", "volumes", "volume_attachments",
}

// DefaultChain returns the per-region synchronizer chain in its fixed
// execution order. Reference targets (flavors, images, zones) sync
// before servers; volumes sync before ports so attachment and address
// data land on fresh rows.
func DefaultChain(st *store.Store) []Synchronizer {
	return []Synchronizer{
		NewFlavorSync(st),
		NewImageSync(st),
		NewSecurityGroupSync(st),
		NewSecurityGroupRuleSync(st),
		NewZoneSync(st),
		NewServerGroupSync(st),
		NewSubnetSync(st),
		NewVolumeTypeSync(st),
		NewServerSync(st),
		NewVolumeSync(st),
		NewPortSync(st),
	}
}

// Orchestrator drives full inventory sweeps: the IDC-level syncs, the
// concurrent per-region chains, retention cleanup and the health probe.
// The same path serves both the scheduler and manual refreshes.
type Orchestrator struct {
	cfg     *config.Config
	st      *store.Store
	factory remote.Factory
	tel     *telemetry.Telemetry
	log     *telemetry.Logger
	base    *BaseSync
	chain   []Synchronizer
	owner   string
}

// NewOrchestrator wires an orchestrator with the default chain.
func NewOrchestrator(cfg *config.Config, st *store.Store, factory remote.Factory, tel *telemetry.Telemetry) *Orchestrator {
	hostname, _ := os.Hostname()
	return &Orchestrator{
		cfg:     cfg,
		st:      st,
		factory: factory,
		tel:     tel,
		log:     tel.Logger.NewComponentLogger("orchestrator"),
		base:    NewBaseSync(st),
		chain:   DefaultChain(st),
		owner:   fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8]),
	}
}

// sweepScope narrows a sweep to one region, one resource kind, or
// both. The zero value runs everything.
type sweepScope struct {
	Region string
	Kind   string
}

func (s sweepScope) narrowed() bool { return s.Region != "" || s.Kind != "" }

// sweepReport is the JSON summary persisted with each sweep record.
type sweepReport struct {
	Kinds   map[string]*Summary `json:"kinds"`
	Errors  map[string]string   `json:"errors,omitempty"`
	Purged  map[string]int64    `json:"purged,omitempty"`
	Healthy *bool               `json:"healthy,omitempty"`
}

// RunSweep executes one full sweep for an IDC and returns its recorded
// outcome. Returns ErrSweepInProgress when the sweep lock is held.
//
// A failing synchronizer halts only its own region's remaining chain;
// the sweep fails outright only when an IDC-level step (login, region
// or project sync) fails, because everything downstream would then be
// reconciling against a stale scope.
func (o *Orchestrator) RunSweep(ctx context.Context, idc string) (*store.Sweep, error) {
	return o.runSweep(ctx, idc, sweepScope{})
}

// RunRefresh runs a sweep narrowed to one region, one resource kind,
// or both. It takes the same sweep lock and walks the same record and
// synchronizer path as a full sweep; retention cleanup and the health
// probe are skipped so a targeted refresh stays cheap. Empty region or
// kind means "all".
func (o *Orchestrator) RunRefresh(ctx context.Context, idc, region, kind string) (*store.Sweep, error) {
	if kind != "" && !o.knownKind(kind) {
		return nil, fmt.Errorf("unknown resource kind: %s", kind)
	}
	return o.runSweep(ctx, idc, sweepScope{Region: region, Kind: kind})
}

func (o *Orchestrator) knownKind(kind string) bool {
	for _, s := range o.chain {
		if s.Kind() == kind {
			return true
		}
	}
	return false
}

func (o *Orchestrator) runSweep(ctx context.Context, idc string, scope sweepScope) (*store.Sweep, error) {
	lockName := "sweep:" + idc
	locked, err := o.st.AcquireLock(ctx, lockName, o.owner, o.cfg.Sync.LockLease)
	if err != nil {
		return nil, err
	}
	if !locked {
		o.tel.Metrics.LockSkipped("sweep")
		return nil, ErrSweepInProgress
	}
	defer func() { _ = o.st.ReleaseLock(context.WithoutCancel(ctx), lockName, o.owner) }()

	sweepID := uuid.New().String()
	log := o.log.WithIDC(idc).WithSweepID(sweepID)
	started := time.Now().UTC()

	ctx, span := o.tel.Tracer.StartSweepSpan(ctx, idc, sweepID)
	defer span.End()

	sw := &store.Sweep{
		ID:        sweepID,
		IDC:       idc,
		Status:    store.SweepStatusPending,
		StartedAt: started,
		Summary:   "{}",
		CreatedAt: started,
		UpdatedAt: started,
	}
	if err := o.st.CreateSweep(ctx, sw); err != nil {
		return nil, err
	}
	o.tel.Metrics.SweepStarted(idc)
	log.Info("sweep started")

	report := &sweepReport{
		Kinds:  make(map[string]*Summary),
		Errors: make(map[string]string),
	}

	fail := func(err error) (*store.Sweep, error) {
		telemetry.RecordError(span, err)
		msg := err.Error()
		_ = o.st.UpdateSweepStatus(ctx, sweepID, store.SweepStatusFailed, &msg, o.encodeReport(report))
		o.tel.Metrics.SweepCompleted(idc, string(store.SweepStatusFailed), time.Since(started))
		log.WithError(err).Error("sweep failed")
		return o.loadSweep(ctx, sweepID)
	}

	client, err := o.factory.ClientFor(ctx, idc)
	if err != nil {
		return fail(fmt.Errorf("failed to build client for %s: %w", idc, err))
	}

	regionSummary, regions, err := o.base.SyncRegions(ctx, idc, client)
	if err != nil {
		return fail(err)
	}
	o.recordSummary(report, regionSummary)
	if err := o.st.UpdateSweepStatus(ctx, sweepID, store.SweepStatusRegionsSynced, nil, nil); err != nil {
		return fail(err)
	}

	projectSummary, err := o.base.SyncProjects(ctx, idc, client)
	if err != nil {
		return fail(err)
	}
	o.recordSummary(report, projectSummary)
	if err := o.st.UpdateSweepStatus(ctx, sweepID, store.SweepStatusProjectsSynced, nil, nil); err != nil {
		return fail(err)
	}

	if scope.Region != "" {
		var matched []*Region
		for _, r := range regions {
			if r.Name == scope.Region {
				matched = append(matched, r)
			}
		}
		if len(matched) == 0 {
			return fail(fmt.Errorf("unknown region %q in %s", scope.Region, idc))
		}
		regions = matched
	}

	if err := o.st.UpdateSweepStatus(ctx, sweepID, store.SweepStatusResourceSync, nil, nil); err != nil {
		return fail(err)
	}
	o.syncRegions(ctx, idc, client, regions, scope, report, log)

	if !scope.narrowed() {
		if err := o.st.UpdateSweepStatus(ctx, sweepID, store.SweepStatusCleanup, nil, nil); err != nil {
			return fail(err)
		}
		purged, err := o.RunCleanup(ctx)
		if err != nil {
			// Cleanup failures do not invalidate the synced inventory.
			report.Errors["cleanup"] = err.Error()
			log.WithError(err).Warn("retention cleanup failed")
		}
		report.Purged = purged

		if err := o.st.UpdateSweepStatus(ctx, sweepID, store.SweepStatusHealthCheck, nil, nil); err != nil {
			return fail(err)
		}
		healthy := o.probeHealth(ctx, idc, client, log)
		report.Healthy = &healthy
	}

	var errMsg *string
	if len(report.Errors) > 0 {
		joined := o.joinErrors(report.Errors)
		errMsg = &joined
	}
	if err := o.st.UpdateSweepStatus(ctx, sweepID, store.SweepStatusDone, errMsg, o.encodeReport(report)); err != nil {
		return fail(err)
	}
	o.tel.Metrics.SweepCompleted(idc, string(store.SweepStatusDone), time.Since(started))
	log.Infof("sweep done in %s", time.Since(started).Round(time.Millisecond))

	return o.loadSweep(ctx, sweepID)
}

// syncRegions runs the per-region chains with bounded concurrency.
func (o *Orchestrator) syncRegions(ctx context.Context, idc string, client remote.Client, regions []*Region, scope sweepScope, report *sweepReport, log *telemetry.Logger) {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, o.cfg.Sync.MaxConcurrentRegions)
	)

	for _, region := range regions {
		wg.Add(1)
		go func(region *Region) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rc := &RegionContext{IDC: idc, Region: region, Client: client}
			rlog := log.WithRegion(region.Name)

			for _, syncer := range o.chain {
				if scope.Kind != "" && syncer.Kind() != scope.Kind {
					continue
				}
				summary, err := o.runOne(ctx, syncer, rc, rlog)
				mu.Lock()
				if summary != nil {
					o.recordSummary(report, summary)
				}
				if err != nil {
					report.Errors[region.Name] = fmt.Sprintf("%s: %v", syncer.Kind(), err)
				}
				mu.Unlock()
				if err != nil {
					rlog.WithError(err).WithKind(syncer.Kind()).Error("sync failed, halting region chain")
					return
				}
			}
		}(region)
	}
	wg.Wait()
}

// runOne executes a single synchronizer with tracing and metrics.
func (o *Orchestrator) runOne(ctx context.Context, syncer Synchronizer, rc *RegionContext, log *telemetry.Logger) (*Summary, error) {
	ctx, span := o.tel.Tracer.StartSyncSpan(ctx, rc.Region.Name, syncer.Kind())
	defer span.End()

	started := time.Now()
	summary, err := syncer.Sync(ctx, rc)
	elapsed := time.Since(started)

	if err != nil {
		telemetry.RecordError(span, err)
		o.tel.Metrics.SyncCompleted(syncer.Kind(), "error", elapsed)
		o.tel.Metrics.RemoteError(syncer.Kind(), ErrorClass(err))
		return nil, err
	}

	o.tel.Metrics.SyncCompleted(syncer.Kind(), "ok", elapsed)
	o.tel.Metrics.RecordsSynced(syncer.Kind(), summary.Inserted, summary.Updated, summary.Deleted)
	o.tel.Metrics.ItemsRejected(syncer.Kind(), summary.Rejected)
	for _, w := range summary.Warnings {
		log.WithKind(syncer.Kind()).Warn(w)
	}
	log.WithKind(syncer.Kind()).Debugf("synced: %s", summary)
	return summary, nil
}

// RunCleanup hard-deletes soft-deleted rows older than the retention
// horizon across all resource tables. Also used standalone by the
// scheduler's cleanup job and the CLI.
func (o *Orchestrator) RunCleanup(ctx context.Context) (map[string]int64, error) {
	horizon := time.Now().UTC().Add(-o.cfg.Sync.Retention)
	purged := make(map[string]int64)

	for _, table := range purgeTables {
		n, err := o.st.PurgeSoftDeleted(ctx, table, horizon)
		if err != nil {
			return purged, err
		}
		if n > 0 {
			purged[table] = n
			o.tel.Metrics.RecordsPurged(table, n)
		}
	}
	return purged, nil
}

// RunHealthCheck probes one IDC and caches the verdict. Also used
// standalone by the scheduler's health job and the CLI.
func (o *Orchestrator) RunHealthCheck(ctx context.Context, idc string) (*store.HealthStatus, error) {
	client, err := o.factory.ClientFor(ctx, idc)
	if err != nil {
		hs := o.storeVerdict(ctx, idc, false, err.Error())
		return hs, nil
	}

	if err := client.Ping(ctx); err != nil {
		return o.storeVerdict(ctx, idc, false, err.Error()), nil
	}
	return o.storeVerdict(ctx, idc, true, ""), nil
}

func (o *Orchestrator) probeHealth(ctx context.Context, idc string, client remote.Client, log *telemetry.Logger) bool {
	healthy := true
	detail := ""
	if err := client.Ping(ctx); err != nil {
		healthy = false
		detail = err.Error()
		log.WithError(err).Warn("health probe failed")
	}
	o.storeVerdict(ctx, idc, healthy, detail)
	return healthy
}

func (o *Orchestrator) storeVerdict(ctx context.Context, idc string, healthy bool, detail string) *store.HealthStatus {
	now := time.Now().UTC()
	hs := &store.HealthStatus{
		IDC:       idc,
		Healthy:   healthy,
		Detail:    detail,
		CheckedAt: now,
		ExpiresAt: now.Add(o.cfg.Sync.HealthInterval),
	}
	if err := o.st.SetHealthStatus(ctx, hs); err != nil {
		o.log.WithIDC(idc).WithError(err).Error("failed to cache health verdict")
	}
	return hs
}

func (o *Orchestrator) recordSummary(report *sweepReport, s *Summary) {
	if existing, ok := report.Kinds[s.Kind]; ok {
		existing.merge(s)
		return
	}
	report.Kinds[s.Kind] = s
}

func (o *Orchestrator) encodeReport(report *sweepReport) *string {
	raw, err := json.Marshal(report)
	if err != nil {
		o.log.WithError(err).Error("failed to encode sweep report")
		return nil
	}
	s := string(raw)
	return &s
}

func (o *Orchestrator) joinErrors(errs map[string]string) string {
	raw, _ := json.Marshal(errs)
	return string(raw)
}

func (o *Orchestrator) loadSweep(ctx context.Context, id string) (*store.Sweep, error) {
	return o.st.GetSweep(ctx, id)
}

package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cloudinv/cloudinv/pkg/config"
	"github.com/cloudinv/cloudinv/pkg/remote"
	"github.com/cloudinv/cloudinv/pkg/store"
)

func testConfig() *config.Config {
	return &config.Config{
		IDCs: []config.IDC{
			{Name: "dc1", Active: true},
		},
		Sync: config.SyncConfig{
			SweepInterval:        config.DefaultSweepInterval,
			CleanupInterval:      config.DefaultCleanupInterval,
			HealthInterval:       config.DefaultHealthInterval,
			Retention:            config.DefaultRetention,
			LockLease:            config.DefaultLockLease,
			MaxConcurrentRegions: 2,
		},
	}
}

// populatedClient returns a fake with two regions and a small but
// complete resource population in r1.
func populatedClient() *fakeClient {
	client := newFakeClient()
	client.regions = map[string]remote.RegionDetail{
		"r1": {Name: "r1"},
		"r2": {Name: "r2"},
	}
	client.projects = map[string]string{"admin": "admin-id", "team-a": "p1"}
	client.flavors["r1"] = []remote.Flavor{{ID: "f1", Name: "small", VCPUs: 1, RAM: 1024, Disk: 10}}
	client.images["r1"] = []remote.Image{{ID: "i1", Name: "debian-12"}}
	client.zones["r1"] = []remote.AvailabilityZone{{Name: "az1", Available: true, Hosts: []string{"hv1"}}}
	client.hypervisors["r1"] = []remote.Hypervisor{{Hostname: "hv1", State: "up", RunningVMs: 3}}
	client.servers["r1"] = []remote.Server{
		{ID: "s1", Name: "web-1", TenantID: "p1", Status: "ACTIVE", FlavorID: "f1", ImageID: "i1", AvailabilityZone: "az1"},
	}
	client.ports["r1"] = []remote.Port{
		{ID: "port1", ProjectID: "p1", DeviceID: "s1", FixedIPs: []remote.FixedIP{{SubnetID: "sub1", IPAddress: "10.0.0.5"}}},
	}
	client.subnets["r1"] = []remote.Subnet{{ID: "sub1", ProjectID: "p1", CIDR: "10.0.0.0/24"}}
	client.volumes["r1"] = []remote.Volume{{ID: "v1", TenantID: "p1", Size: 10}}
	return client
}

func TestRunSweepHappyPath(t *testing.T) {
	st := newTestStore(t)
	tel := newTestTelemetry(t)
	client := populatedClient()
	orch := NewOrchestrator(testConfig(), st, &fakeFactory{client: client}, tel)

	ctx := context.Background()
	sw, err := orch.RunSweep(ctx, "dc1")
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if sw.Status != store.SweepStatusDone {
		t.Fatalf("status = %s, want done (error=%v)", sw.Status, sw.Error)
	}
	if sw.CompletedAt == nil {
		t.Fatal("completed_at should be stamped")
	}

	var report sweepReport
	if err := json.Unmarshal([]byte(sw.Summary), &report); err != nil {
		t.Fatalf("summary is not valid JSON: %v", err)
	}
	if report.Kinds["regions"] == nil || report.Kinds["regions"].Inserted != 2 {
		t.Fatalf("regions summary = %+v, want 2 inserted", report.Kinds["regions"])
	}
	if report.Kinds["servers"] == nil || report.Kinds["servers"].Inserted != 1 {
		t.Fatalf("servers summary = %+v", report.Kinds["servers"])
	}
	if report.Healthy == nil || !*report.Healthy {
		t.Fatal("health verdict should be recorded")
	}
	if len(report.Errors) != 0 {
		t.Fatalf("unexpected region errors: %v", report.Errors)
	}

	// Server landed with references intact and IP backfilled.
	servers, err := store.Snapshot(ctx, st.DB(), serverMapping, RegionKey("dc1", "r1"))
	if err != nil {
		t.Fatalf("failed to snapshot servers: %v", err)
	}
	s1 := servers["s1"]
	if s1 == nil || s1.FlavorID == nil || s1.ZoneID == nil {
		t.Fatalf("server = %+v, want references resolved", s1)
	}
	if s1.IPAddress != "10.0.0.5" {
		t.Fatalf("server ip = %q, want backfilled within the sweep", s1.IPAddress)
	}

	// Lock released: a new sweep can start right away.
	if _, err := orch.RunSweep(ctx, "dc1"); err != nil {
		t.Fatalf("follow-up sweep failed: %v", err)
	}

	// Health verdict cached.
	hs, err := st.GetHealthStatus(ctx, "dc1")
	if err != nil || hs == nil || !hs.Healthy {
		t.Fatalf("health status = %+v err=%v", hs, err)
	}
}

func TestRunRefreshNarrowsScope(t *testing.T) {
	st := newTestStore(t)
	tel := newTestTelemetry(t)
	client := populatedClient()
	orch := NewOrchestrator(testConfig(), st, &fakeFactory{client: client}, tel)

	ctx := context.Background()
	sw, err := orch.RunRefresh(ctx, "dc1", "r1", "flavors")
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if sw.Status != store.SweepStatusDone {
		t.Fatalf("status = %s, want done (error=%v)", sw.Status, sw.Error)
	}

	var report sweepReport
	if err := json.Unmarshal([]byte(sw.Summary), &report); err != nil {
		t.Fatalf("summary is not valid JSON: %v", err)
	}
	if report.Kinds["flavors"] == nil || report.Kinds["flavors"].Inserted != 1 {
		t.Fatalf("flavors summary = %+v, want 1 inserted", report.Kinds["flavors"])
	}
	if report.Kinds["servers"] != nil {
		t.Fatalf("servers must not run in a flavors refresh: %+v", report.Kinds["servers"])
	}
	if report.Healthy != nil || report.Purged != nil {
		t.Fatal("targeted refresh must skip cleanup and the health probe")
	}

	// Flavors landed, servers did not.
	flavors, err := store.Snapshot(ctx, st.DB(), flavorMapping, RegionKey("dc1", "r1"))
	if err != nil {
		t.Fatalf("failed to snapshot flavors: %v", err)
	}
	if len(flavors) != 1 {
		t.Fatalf("got %d flavors, want 1", len(flavors))
	}
	servers, err := store.Snapshot(ctx, st.DB(), serverMapping, RegionKey("dc1", "r1"))
	if err != nil {
		t.Fatalf("failed to snapshot servers: %v", err)
	}
	if len(servers) != 0 {
		t.Fatalf("got %d servers, want none", len(servers))
	}
}

func TestRunRefreshValidation(t *testing.T) {
	st := newTestStore(t)
	tel := newTestTelemetry(t)
	orch := NewOrchestrator(testConfig(), st, &fakeFactory{client: populatedClient()}, tel)

	if _, err := orch.RunRefresh(context.Background(), "dc1", "", "no-such-kind"); err == nil {
		t.Fatal("unknown kind should be rejected")
	}

	sw, err := orch.RunRefresh(context.Background(), "dc1", "r9", "")
	if err != nil {
		t.Fatalf("unexpected hard error: %v", err)
	}
	if sw.Status != store.SweepStatusFailed {
		t.Fatalf("status = %s, want failed for unknown region", sw.Status)
	}
}

func TestRunSweepLockContention(t *testing.T) {
	st := newTestStore(t)
	tel := newTestTelemetry(t)
	orch := NewOrchestrator(testConfig(), st, &fakeFactory{client: populatedClient()}, tel)

	ctx := context.Background()
	locked, err := st.AcquireLock(ctx, "sweep:dc1", "someone-else", time.Minute)
	if err != nil || !locked {
		t.Fatalf("failed to pre-acquire lock: ok=%v err=%v", locked, err)
	}

	_, err = orch.RunSweep(ctx, "dc1")
	if !errors.Is(err, ErrSweepInProgress) {
		t.Fatalf("err = %v, want ErrSweepInProgress", err)
	}
}

func TestRunSweepRegionFailureIsolated(t *testing.T) {
	st := newTestStore(t)
	tel := newTestTelemetry(t)
	client := populatedClient()
	// r2's chain dies at its first step; r1 must still complete.
	client.errs["Flavors/r2"] = remote.NewUnavailableError("flavors", errors.New("connection refused"))
	orch := NewOrchestrator(testConfig(), st, &fakeFactory{client: client}, tel)

	ctx := context.Background()
	sw, err := orch.RunSweep(ctx, "dc1")
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if sw.Status != store.SweepStatusDone {
		t.Fatalf("status = %s, a region failure must not fail the sweep", sw.Status)
	}
	if sw.Error == nil {
		t.Fatal("region failure should be recorded on the sweep")
	}

	var report sweepReport
	if err := json.Unmarshal([]byte(sw.Summary), &report); err != nil {
		t.Fatalf("summary is not valid JSON: %v", err)
	}
	if _, ok := report.Errors["r2"]; !ok {
		t.Fatalf("errors = %v, want r2 recorded", report.Errors)
	}

	// r1 synced fully despite r2.
	flavors, err := store.Snapshot(ctx, st.DB(), flavorMapping, RegionKey("dc1", "r1"))
	if err != nil {
		t.Fatalf("failed to snapshot: %v", err)
	}
	if len(flavors) != 1 {
		t.Fatal("r1 should have synced despite r2's failure")
	}
}

func TestRunSweepIDCLevelFailure(t *testing.T) {
	st := newTestStore(t)
	tel := newTestTelemetry(t)
	client := populatedClient()
	client.errs["Regions"] = remote.NewAuthError("login", errors.New("401"))
	orch := NewOrchestrator(testConfig(), st, &fakeFactory{client: client}, tel)

	sw, err := orch.RunSweep(context.Background(), "dc1")
	if err != nil {
		t.Fatalf("unexpected hard error: %v", err)
	}
	if sw.Status != store.SweepStatusFailed {
		t.Fatalf("status = %s, want failed on IDC-level error", sw.Status)
	}
	if sw.Error == nil {
		t.Fatal("failure reason should be recorded")
	}
}

func TestRunHealthCheckUnhealthy(t *testing.T) {
	st := newTestStore(t)
	tel := newTestTelemetry(t)
	client := populatedClient()
	client.pingErr = remote.NewTimeoutError("ping", errors.New("deadline exceeded"))
	orch := NewOrchestrator(testConfig(), st, &fakeFactory{client: client}, tel)

	hs, err := orch.RunHealthCheck(context.Background(), "dc1")
	if err != nil {
		t.Fatalf("health check errored: %v", err)
	}
	if hs.Healthy {
		t.Fatal("verdict should be unhealthy")
	}

	cached, err := st.GetHealthStatus(context.Background(), "dc1")
	if err != nil || cached == nil || cached.Healthy {
		t.Fatalf("cached = %+v err=%v", cached, err)
	}
}

func TestRunCleanupPurgesOldTombstones(t *testing.T) {
	st := newTestStore(t)
	tel := newTestTelemetry(t)
	orch := NewOrchestrator(testConfig(), st, &fakeFactory{client: newFakeClient()}, tel)

	ctx := context.Background()
	if err := store.BulkInsert(ctx, st.DB(), flavorMapping, []*Flavor{
		{ID: "f1", RegionID: "dc1_r1", Name: "old", Enable: true},
	}); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}
	if err := store.DeleteOrphans(ctx, st.DB(), flavorMapping, []string{"f1"}); err != nil {
		t.Fatalf("failed to soft-delete: %v", err)
	}
	aged := time.Now().UTC().Add(-200 * 24 * time.Hour)
	if _, err := st.DB().ExecContext(ctx, "UPDATE flavors SET deleted_at = ?", aged); err != nil {
		t.Fatalf("failed to age tombstone: %v", err)
	}

	purged, err := orch.RunCleanup(ctx)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if purged["flavors"] != 1 {
		t.Fatalf("purged = %v, want flavors:1", purged)
	}
}

package store

import (
	"context"
	"testing"
	"time"
)

type testFlavor struct {
	ID       string
	RegionID string
	Name     string
	VCPUs    int64
	RAM      int64
	Disk     int64
	Enable   bool
}

var testFlavorMapping = Mapping[testFlavor]{
	Table:    "flavors",
	ScopeCol: "region_id",
	Cols:     []string{"id", "region_id", "name", "vcpus", "ram", "disk", "enable"},
	ID:       func(f *testFlavor) string { return f.ID },
	Args: func(f *testFlavor) []any {
		return []any{f.ID, f.RegionID, f.Name, f.VCPUs, f.RAM, f.Disk, f.Enable}
	},
	Scan: func(scan func(dest ...any) error) (*testFlavor, error) {
		f := &testFlavor{}
		err := scan(&f.ID, &f.RegionID, &f.Name, &f.VCPUs, &f.RAM, &f.Disk, &f.Enable)
		return f, err
	},
}

func TestMappingRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	m := testFlavorMapping

	recs := []*testFlavor{
		{ID: "f1", RegionID: "dc1_r1", Name: "small", VCPUs: 1, RAM: 1024, Disk: 10, Enable: true},
		{ID: "f2", RegionID: "dc1_r1", Name: "large", VCPUs: 8, RAM: 16384, Disk: 80, Enable: true},
		{ID: "f3", RegionID: "dc1_r2", Name: "small", VCPUs: 1, RAM: 1024, Disk: 10, Enable: true},
	}
	if err := BulkInsert(ctx, store.DB(), m, recs); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	// Snapshot is bounded by scope.
	snap, err := Snapshot(ctx, store.DB(), m, "dc1_r1")
	if err != nil {
		t.Fatalf("failed to snapshot: %v", err)
	}
	if len(snap) != 2 {
		t.Fatalf("got %d records for dc1_r1, want 2", len(snap))
	}
	if snap["f2"].RAM != 16384 {
		t.Fatalf("f2 ram = %d, want 16384", snap["f2"].RAM)
	}

	// Update overwrites synced columns only.
	snap["f1"].RAM = 2048
	if err := BulkUpdate(ctx, store.DB(), m, []*testFlavor{snap["f1"]}); err != nil {
		t.Fatalf("failed to update: %v", err)
	}
	snap, err = Snapshot(ctx, store.DB(), m, "dc1_r1")
	if err != nil {
		t.Fatalf("failed to snapshot after update: %v", err)
	}
	if snap["f1"].RAM != 2048 {
		t.Fatalf("f1 ram = %d, want 2048", snap["f1"].RAM)
	}
}

func TestMappingSoftDeleteAndRevive(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	m := testFlavorMapping

	rec := &testFlavor{ID: "f1", RegionID: "dc1_r1", Name: "small", VCPUs: 1, RAM: 1024, Disk: 10, Enable: true}
	if err := BulkInsert(ctx, store.DB(), m, []*testFlavor{rec}); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	if err := DeleteOrphans(ctx, store.DB(), m, []string{"f1"}); err != nil {
		t.Fatalf("failed to soft-delete: %v", err)
	}

	snap, err := Snapshot(ctx, store.DB(), m, "dc1_r1")
	if err != nil {
		t.Fatalf("failed to snapshot: %v", err)
	}
	if len(snap) != 0 {
		t.Fatalf("soft-deleted record should be excluded, got %d", len(snap))
	}

	// Row still physically present.
	var count int
	if err := store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM flavors WHERE id = 'f1' AND deleted_at IS NOT NULL").Scan(&count); err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 1 {
		t.Fatalf("got %d tombstones, want 1", count)
	}

	// Reappearing remote ID revives the row with fresh attributes.
	rec.RAM = 4096
	if err := BulkInsert(ctx, store.DB(), m, []*testFlavor{rec}); err != nil {
		t.Fatalf("failed to revive: %v", err)
	}
	snap, err = Snapshot(ctx, store.DB(), m, "dc1_r1")
	if err != nil {
		t.Fatalf("failed to snapshot after revive: %v", err)
	}
	if len(snap) != 1 || snap["f1"].RAM != 4096 {
		t.Fatalf("revive failed: %+v", snap["f1"])
	}
}

func TestMappingHardDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	m := testFlavorMapping
	m.HardDelete = true

	rec := &testFlavor{ID: "f1", RegionID: "dc1_r1", Name: "small", Enable: true}
	if err := BulkInsert(ctx, store.DB(), m, []*testFlavor{rec}); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if err := DeleteOrphans(ctx, store.DB(), m, []string{"f1"}); err != nil {
		t.Fatalf("failed to hard-delete: %v", err)
	}

	var count int
	if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM flavors").Scan(&count); err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 0 {
		t.Fatalf("got %d rows, want 0 after hard delete", count)
	}
}

func TestPurgeSoftDeleted(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	m := testFlavorMapping

	recs := []*testFlavor{
		{ID: "old", RegionID: "dc1_r1", Name: "old", Enable: true},
		{ID: "recent", RegionID: "dc1_r1", Name: "recent", Enable: true},
	}
	if err := BulkInsert(ctx, store.DB(), m, recs); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if err := DeleteOrphans(ctx, store.DB(), m, []string{"old", "recent"}); err != nil {
		t.Fatalf("failed to soft-delete: %v", err)
	}

	// Age one tombstone past the retention horizon.
	aged := time.Now().UTC().Add(-200 * 24 * time.Hour)
	if _, err := store.db.ExecContext(ctx,
		"UPDATE flavors SET deleted_at = ? WHERE id = 'old'", aged); err != nil {
		t.Fatalf("failed to age tombstone: %v", err)
	}

	horizon := time.Now().UTC().Add(-180 * 24 * time.Hour)
	n, err := store.PurgeSoftDeleted(ctx, "flavors", horizon)
	if err != nil {
		t.Fatalf("failed to purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d rows, want 1", n)
	}

	var count int
	if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM flavors").Scan(&count); err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 1 {
		t.Fatalf("got %d rows, want 1 surviving tombstone", count)
	}
}

package inventory

import (
	"fmt"
	"strings"
	"testing"
)

type remoteFlavor struct {
	ID    string
	Name  string
	VCPUs int64
	RAM   int64
}

func flavorDiffSpec() DiffSpec[Flavor, remoteFlavor] {
	return DiffSpec[Flavor, remoteFlavor]{
		Kind: "flavors",
		ID:   func(f *Flavor) string { return f.ID },
		Map: func(r remoteFlavor) (*Flavor, error) {
			if r.ID == "" {
				return nil, fmt.Errorf("missing id")
			}
			if r.RAM < 0 {
				return nil, fmt.Errorf("negative ram")
			}
			return &Flavor{ID: r.ID, RegionID: "dc1_r1", Name: r.Name, VCPUs: r.VCPUs, RAM: r.RAM, Enable: true}, nil
		},
		Fields: []Field[Flavor]{
			FieldOf("name", func(f *Flavor) string { return f.Name }, func(f *Flavor, v string) { f.Name = v }),
			FieldOf("vcpus", func(f *Flavor) int64 { return f.VCPUs }, func(f *Flavor, v int64) { f.VCPUs = v }),
			FieldOf("ram", func(f *Flavor) int64 { return f.RAM }, func(f *Flavor, v int64) { f.RAM = v }),
		},
	}
}

func localFlavors(flavors ...*Flavor) map[string]*Flavor {
	m := make(map[string]*Flavor, len(flavors))
	for _, f := range flavors {
		m[f.ID] = f
	}
	return m
}

// Local F1 changed remotely, F2 vanished, F3 is new.
func TestDiffInsertUpdateOrphan(t *testing.T) {
	local := localFlavors(
		&Flavor{ID: "f1", Name: "small", VCPUs: 1, RAM: 1024},
		&Flavor{ID: "f2", Name: "medium", VCPUs: 2, RAM: 4096},
	)
	remote := []remoteFlavor{
		{ID: "f1", Name: "small", VCPUs: 1, RAM: 2048},
		{ID: "f3", Name: "large", VCPUs: 8, RAM: 16384},
	}

	cs := Diff(flavorDiffSpec(), local, remote)

	if len(cs.Inserts) != 1 || cs.Inserts[0].ID != "f3" {
		t.Fatalf("inserts = %+v, want exactly f3", cs.Inserts)
	}
	if len(cs.Updates) != 1 || cs.Updates[0].ID != "f1" {
		t.Fatalf("updates = %+v, want exactly f1", cs.Updates)
	}
	if cs.Updates[0].RAM != 2048 {
		t.Fatalf("f1 ram = %d, want 2048 carried from remote", cs.Updates[0].RAM)
	}
	if len(cs.Orphans) != 1 || cs.Orphans[0] != "f2" {
		t.Fatalf("orphans = %v, want exactly f2", cs.Orphans)
	}
	if len(cs.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", cs.Warnings)
	}
}

// A second identical pass must produce no writes.
func TestDiffIdempotent(t *testing.T) {
	remote := []remoteFlavor{
		{ID: "f1", Name: "small", VCPUs: 1, RAM: 1024},
		{ID: "f2", Name: "large", VCPUs: 8, RAM: 16384},
	}

	first := Diff(flavorDiffSpec(), localFlavors(), remote)
	if len(first.Inserts) != 2 {
		t.Fatalf("first pass inserts = %d, want 2", len(first.Inserts))
	}

	local := localFlavors(first.Inserts...)
	second := Diff(flavorDiffSpec(), local, remote)
	if !second.Empty() {
		t.Fatalf("second pass should be empty, got %+v", second)
	}
}

func TestDiffUpdateMinimality(t *testing.T) {
	local := localFlavors(
		&Flavor{ID: "f1", Name: "small", VCPUs: 1, RAM: 1024},
		&Flavor{ID: "f2", Name: "large", VCPUs: 8, RAM: 16384},
	)
	remote := []remoteFlavor{
		{ID: "f1", Name: "small", VCPUs: 1, RAM: 1024},
		{ID: "f2", Name: "large", VCPUs: 8, RAM: 32768},
	}

	cs := Diff(flavorDiffSpec(), local, remote)
	if len(cs.Updates) != 1 || cs.Updates[0].ID != "f2" {
		t.Fatalf("updates = %+v, want only the changed record", cs.Updates)
	}
	if len(cs.Inserts) != 0 || len(cs.Orphans) != 0 {
		t.Fatalf("unchanged records must not produce writes: %+v", cs)
	}
}

func TestDiffEmptyRemoteOrphansEverything(t *testing.T) {
	local := localFlavors(
		&Flavor{ID: "f1"},
		&Flavor{ID: "f2"},
	)

	cs := Diff(flavorDiffSpec(), local, nil)
	if len(cs.Orphans) != 2 {
		t.Fatalf("orphans = %v, want both records", cs.Orphans)
	}
	if cs.Orphans[0] != "f1" || cs.Orphans[1] != "f2" {
		t.Fatalf("orphans should be sorted: %v", cs.Orphans)
	}
}

func TestDiffMalformedItemSkipped(t *testing.T) {
	local := localFlavors(&Flavor{ID: "f1", Name: "small"})
	remote := []remoteFlavor{
		{ID: "", Name: "broken"},
		{ID: "f1", Name: "small"},
	}

	cs := Diff(flavorDiffSpec(), local, remote)
	if len(cs.Warnings) != 1 || !strings.Contains(cs.Warnings[0], "rejected") {
		t.Fatalf("warnings = %v, want one rejection", cs.Warnings)
	}
	if cs.Rejected != 1 {
		t.Fatalf("rejected = %d, want 1", cs.Rejected)
	}
	if !cs.Empty() {
		t.Fatalf("malformed item must not produce writes: %+v", cs)
	}
}

// A malformed entry never pops its local counterpart, even when it
// carries the same ID: the local record falls into the orphan set
// instead of being kept alive with stale attributes.
func TestDiffMalformedItemOrphansLocal(t *testing.T) {
	local := localFlavors(&Flavor{ID: "f1", Name: "small", VCPUs: 1, RAM: 1024})
	remote := []remoteFlavor{
		{ID: "f1", Name: "small", VCPUs: 1, RAM: -1},
	}

	cs := Diff(flavorDiffSpec(), local, remote)
	if cs.Rejected != 1 {
		t.Fatalf("rejected = %d, want 1", cs.Rejected)
	}
	if len(cs.Orphans) != 1 || cs.Orphans[0] != "f1" {
		t.Fatalf("orphans = %v, want the unprotected local record", cs.Orphans)
	}
	if len(cs.Inserts) != 0 || len(cs.Updates) != 0 {
		t.Fatalf("rejected item must not produce writes: %+v", cs)
	}
}

func TestDiffDuplicateRemoteID(t *testing.T) {
	remote := []remoteFlavor{
		{ID: "f1", Name: "first", RAM: 1024},
		{ID: "f1", Name: "second", RAM: 2048},
	}

	cs := Diff(flavorDiffSpec(), localFlavors(), remote)
	if len(cs.Inserts) != 1 || cs.Inserts[0].Name != "first" {
		t.Fatalf("inserts = %+v, want first occurrence only", cs.Inserts)
	}
	if len(cs.Warnings) != 1 {
		t.Fatalf("warnings = %v, want duplicate notice", cs.Warnings)
	}
}

func TestPtrFieldOf(t *testing.T) {
	f := PtrFieldOf("image_id",
		func(s *Server) *string { return s.ImageID },
		func(s *Server, v *string) { s.ImageID = v })

	img := "img-1"
	other := "img-2"
	same := "img-1"

	cases := []struct {
		name string
		a, b *string
		want bool
	}{
		{"both nil", nil, nil, true},
		{"nil vs set", nil, &img, false},
		{"set vs nil", &img, nil, false},
		{"equal values", &img, &same, true},
		{"different values", &img, &other, false},
	}
	for _, tc := range cases {
		a := &Server{ImageID: tc.a}
		b := &Server{ImageID: tc.b}
		if got := f.Equal(a, b); got != tc.want {
			t.Errorf("%s: equal = %v, want %v", tc.name, got, tc.want)
		}
	}

	dst := &Server{}
	src := &Server{ImageID: &img}
	f.Copy(dst, src)
	if dst.ImageID == nil || *dst.ImageID != "img-1" {
		t.Fatal("copy should carry the pointer value")
	}
}

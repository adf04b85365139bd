package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cloudinv/cloudinv/pkg/remote"
	"github.com/cloudinv/cloudinv/pkg/store"
)

// BaseSync reconciles the IDC-level kinds: regions and projects. These
// run before the per-region chains because everything downstream is
// scoped by their output.
type BaseSync struct {
	st *store.Store
}

// NewBaseSync creates the IDC-level synchronizer.
func NewBaseSync(st *store.Store) *BaseSync {
	return &BaseSync{st: st}
}

type regionEntry struct {
	Name   string
	Detail remote.RegionDetail
}

// SyncRegions reconciles the region catalog for one IDC and returns the
// live region records the resource phase will iterate.
func (b *BaseSync) SyncRegions(ctx context.Context, idc string, client remote.Client) (*Summary, []*Region, error) {
	listing, err := client.Regions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list regions: %w", err)
	}

	entries := make([]regionEntry, 0, len(listing))
	for name, detail := range listing {
		entries = append(entries, regionEntry{Name: name, Detail: detail})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	spec := DiffSpec[Region, regionEntry]{
		Kind: "regions",
		ID:   func(r *Region) string { return r.ID },
		Map: func(e regionEntry) (*Region, error) {
			if e.Name == "" {
				return nil, fmt.Errorf("region with empty name")
			}
			details, err := json.Marshal(e.Detail.Endpoints)
			if err != nil {
				return nil, fmt.Errorf("unencodable endpoints: %w", err)
			}
			return &Region{
				ID:      RegionKey(idc, e.Name),
				IDC:     idc,
				Name:    e.Name,
				Details: string(details),
			}, nil
		},
		Fields: []Field[Region]{
			FieldOf("name", func(r *Region) string { return r.Name }, func(r *Region, v string) { r.Name = v }),
			FieldOf("details", func(r *Region) string { return r.Details }, func(r *Region, v string) { r.Details = v }),
		},
	}

	summary, err := syncKind(ctx, b.st, regionMapping, spec, idc, entries)
	if err != nil {
		return nil, nil, err
	}

	live, err := store.Snapshot(ctx, b.st.DB(), regionMapping, idc)
	if err != nil {
		return nil, nil, err
	}
	regions := make([]*Region, 0, len(live))
	for _, r := range live {
		regions = append(regions, r)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Name < regions[j].Name })

	return summary, regions, nil
}

type projectEntry struct {
	Name string
	ID   string
}

// SyncProjects reconciles the project catalog for one IDC.
func (b *BaseSync) SyncProjects(ctx context.Context, idc string, client remote.Client) (*Summary, error) {
	listing, err := client.Projects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	entries := make([]projectEntry, 0, len(listing))
	for name, id := range listing {
		entries = append(entries, projectEntry{Name: name, ID: id})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	spec := DiffSpec[Project, projectEntry]{
		Kind: "projects",
		ID:   func(p *Project) string { return p.ID },
		Map: func(e projectEntry) (*Project, error) {
			if e.ID == "" || e.Name == "" {
				return nil, fmt.Errorf("project with empty id or name")
			}
			return &Project{ID: e.ID, IDC: idc, Name: e.Name}, nil
		},
		Fields: []Field[Project]{
			FieldOf("name", func(p *Project) string { return p.Name }, func(p *Project, v string) { p.Name = v }),
		},
	}

	return syncKind(ctx, b.st, projectMapping, spec, idc, entries)
}

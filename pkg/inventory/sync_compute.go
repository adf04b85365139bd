package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudinv/cloudinv/pkg/remote"
	"github.com/cloudinv/cloudinv/pkg/store"
)

// FlavorSync reconciles compute flavors.
type FlavorSync struct {
	st *store.Store
}

func NewFlavorSync(st *store.Store) *FlavorSync { return &FlavorSync{st: st} }

func (s *FlavorSync) Kind() string { return "flavors" }

func (s *FlavorSync) Sync(ctx context.Context, rc *RegionContext) (*Summary, error) {
	items, err := rc.Client.Flavors(ctx, rc.Region.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list flavors: %w", err)
	}

	regionID := rc.Region.ID
	spec := DiffSpec[Flavor, remote.Flavor]{
		Kind: s.Kind(),
		ID:   func(f *Flavor) string { return f.ID },
		Map: func(r remote.Flavor) (*Flavor, error) {
			if err := validate.Struct(r); err != nil {
				return nil, err
			}
			return &Flavor{
				ID:       r.ID,
				RegionID: regionID,
				Name:     r.Name,
				VCPUs:    int64(r.VCPUs),
				RAM:      int64(r.RAM),
				Disk:     int64(r.Disk),
				Enable:   true,
			}, nil
		},
		Fields: []Field[Flavor]{
			FieldOf("name", func(f *Flavor) string { return f.Name }, func(f *Flavor, v string) { f.Name = v }),
			FieldOf("vcpus", func(f *Flavor) int64 { return f.VCPUs }, func(f *Flavor, v int64) { f.VCPUs = v }),
			FieldOf("ram", func(f *Flavor) int64 { return f.RAM }, func(f *Flavor, v int64) { f.RAM = v }),
			FieldOf("disk", func(f *Flavor) int64 { return f.Disk }, func(f *Flavor, v int64) { f.Disk = v }),
		},
	}

	return syncKind(ctx, s.st, flavorMapping, spec, regionID, items)
}

// ImageSync reconciles machine images.
type ImageSync struct {
	st *store.Store
}

func NewImageSync(st *store.Store) *ImageSync { return &ImageSync{st: st} }

func (s *ImageSync) Kind() string { return "images" }

func (s *ImageSync) Sync(ctx context.Context, rc *RegionContext) (*Summary, error) {
	items, err := rc.Client.Images(ctx, rc.Region.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	regionID := rc.Region.ID
	spec := DiffSpec[Image, remote.Image]{
		Kind: s.Kind(),
		ID:   func(i *Image) string { return i.ID },
		Map: func(r remote.Image) (*Image, error) {
			if err := validate.Struct(r); err != nil {
				return nil, err
			}
			return &Image{
				ID:              r.ID,
				RegionID:        regionID,
				Name:            r.Name,
				Status:          r.Status,
				Visibility:      r.Visibility,
				ContainerFormat: r.ContainerFormat,
				DiskFormat:      r.DiskFormat,
				OSDistro:        r.OSDistro,
				IsWin:           strings.Contains(strings.ToLower(r.Name), "win"),
				Enable:          true,
			}, nil
		},
		Fields: []Field[Image]{
			FieldOf("name", func(i *Image) string { return i.Name }, func(i *Image, v string) { i.Name = v }),
			FieldOf("status", func(i *Image) string { return i.Status }, func(i *Image, v string) { i.Status = v }),
			FieldOf("visibility", func(i *Image) string { return i.Visibility }, func(i *Image, v string) { i.Visibility = v }),
			FieldOf("container_format", func(i *Image) string { return i.ContainerFormat }, func(i *Image, v string) { i.ContainerFormat = v }),
			FieldOf("disk_format", func(i *Image) string { return i.DiskFormat }, func(i *Image, v string) { i.DiskFormat = v }),
			FieldOf("os_distro", func(i *Image) string { return i.OSDistro }, func(i *Image, v string) { i.OSDistro = v }),
			FieldOf("is_win", func(i *Image) bool { return i.IsWin }, func(i *Image, v bool) { i.IsWin = v }),
		},
	}

	return syncKind(ctx, s.st, imageMapping, spec, regionID, items)
}

// ZoneSync reconciles availability zones with hypervisor statistics
// folded in: a zone is down when any of its hypervisors reports down,
// and the capacity counters are sums across the zone's hypervisors.
type ZoneSync struct {
	st *store.Store
}

func NewZoneSync(st *store.Store) *ZoneSync { return &ZoneSync{st: st} }

func (s *ZoneSync) Kind() string { return "zones" }

func (s *ZoneSync) Sync(ctx context.Context, rc *RegionContext) (*Summary, error) {
	zones, err := rc.Client.AvailabilityZones(ctx, rc.Region.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability zones: %w", err)
	}
	hypervisors, err := rc.Client.Hypervisors(ctx, rc.Region.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list hypervisors: %w", err)
	}

	byHost := make(map[string]remote.Hypervisor, len(hypervisors))
	for _, h := range hypervisors {
		byHost[h.Hostname] = h
	}

	regionID := rc.Region.ID
	aggregates := make([]Zone, 0, len(zones))
	for _, az := range zones {
		agg := Zone{
			ID:       ZoneKey(regionID, az.Name),
			RegionID: regionID,
			Name:     az.Name,
			State:    "up",
		}
		if !az.Available {
			agg.State = "down"
		}

		hosts := append([]string(nil), az.Hosts...)
		sort.Strings(hosts)
		for _, host := range hosts {
			h, ok := byHost[host]
			if !ok {
				continue
			}
			if h.State == "down" {
				agg.State = "down"
			}
			agg.RunningVMs += int64(h.RunningVMs)
			agg.FreeRAMMB += int64(h.FreeRAMMB)
			agg.FreeDiskGB += int64(h.FreeDiskGB)
		}

		encoded, err := json.Marshal(hosts)
		if err != nil {
			return nil, fmt.Errorf("failed to encode zone hosts: %w", err)
		}
		agg.Hosts = string(encoded)
		aggregates = append(aggregates, agg)
	}

	spec := DiffSpec[Zone, Zone]{
		Kind: s.Kind(),
		ID:   func(z *Zone) string { return z.ID },
		Map: func(z Zone) (*Zone, error) {
			if z.Name == "" {
				return nil, fmt.Errorf("zone with empty name")
			}
			return &z, nil
		},
		Fields: []Field[Zone]{
			FieldOf("state", func(z *Zone) string { return z.State }, func(z *Zone, v string) { z.State = v }),
			FieldOf("running_vms", func(z *Zone) int64 { return z.RunningVMs }, func(z *Zone, v int64) { z.RunningVMs = v }),
			FieldOf("free_ram_mb", func(z *Zone) int64 { return z.FreeRAMMB }, func(z *Zone, v int64) { z.FreeRAMMB = v }),
			FieldOf("free_disk_gb", func(z *Zone) int64 { return z.FreeDiskGB }, func(z *Zone, v int64) { z.FreeDiskGB = v }),
			FieldOf("hosts", func(z *Zone) string { return z.Hosts }, func(z *Zone, v string) { z.Hosts = v }),
		},
	}

	return syncKind(ctx, s.st, zoneMapping, spec, regionID, aggregates)
}

// ServerGroupSync reconciles scheduler affinity groups.
type ServerGroupSync struct {
	st *store.Store
}

func NewServerGroupSync(st *store.Store) *ServerGroupSync { return &ServerGroupSync{st: st} }

func (s *ServerGroupSync) Kind() string { return "server_groups" }

func (s *ServerGroupSync) Sync(ctx context.Context, rc *RegionContext) (*Summary, error) {
	items, err := rc.Client.ServerGroups(ctx, rc.Region.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list server groups: %w", err)
	}

	regionID := rc.Region.ID
	spec := DiffSpec[ServerGroup, remote.ServerGroup]{
		Kind: s.Kind(),
		ID:   func(g *ServerGroup) string { return g.ID },
		Map: func(r remote.ServerGroup) (*ServerGroup, error) {
			if err := validate.Struct(r); err != nil {
				return nil, err
			}
			return &ServerGroup{ID: r.ID, RegionID: regionID, Name: r.Name}, nil
		},
		Fields: []Field[ServerGroup]{
			FieldOf("name", func(g *ServerGroup) string { return g.Name }, func(g *ServerGroup, v string) { g.Name = v }),
		},
	}

	return syncKind(ctx, s.st, serverGroupMapping, spec, regionID, items)
}

// ServerSync reconciles compute servers. References to flavors, images
// and zones that no longer exist locally are nulled with a warning
// instead of kept dangling. The application tag in instance metadata is
// resolved against the alias map.
type ServerSync struct {
	st *store.Store
}

func NewServerSync(st *store.Store) *ServerSync { return &ServerSync{st: st} }

func (s *ServerSync) Kind() string { return "servers" }

// appMetadataKey is the instance metadata key carrying the owning
// application's name or alias.
const appMetadataKey = "app"

func (s *ServerSync) Sync(ctx context.Context, rc *RegionContext) (*Summary, error) {
	items, err := rc.Client.Servers(ctx, rc.Region.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}

	regionID := rc.Region.ID

	flavors, err := store.Snapshot(ctx, s.st.DB(), flavorMapping, regionID)
	if err != nil {
		return nil, err
	}
	images, err := store.Snapshot(ctx, s.st.DB(), imageMapping, regionID)
	if err != nil {
		return nil, err
	}
	zones, err := store.Snapshot(ctx, s.st.DB(), zoneMapping, regionID)
	if err != nil {
		return nil, err
	}
	aliases, err := s.st.AppAliases(ctx)
	if err != nil {
		return nil, err
	}

	var refWarnings []string
	resolveRef := func(serverID, kind, id string, exists bool) *string {
		if id == "" {
			return nil
		}
		if !exists {
			refWarnings = append(refWarnings,
				fmt.Sprintf("servers: %s references unknown %s %s, nulled", serverID, kind, id))
			return nil
		}
		return &id
	}

	spec := DiffSpec[Server, remote.Server]{
		Kind: s.Kind(),
		ID:   func(sv *Server) string { return sv.ID },
		Map: func(r remote.Server) (*Server, error) {
			if err := validate.Struct(r); err != nil {
				return nil, err
			}
			meta, err := json.Marshal(r.Metadata)
			if err != nil {
				return nil, fmt.Errorf("unencodable metadata: %w", err)
			}

			_, hasFlavor := flavors[r.FlavorID]
			_, hasImage := images[r.ImageID]
			zoneID := ZoneKey(regionID, r.AvailabilityZone)
			_, hasZone := zones[zoneID]

			sv := &Server{
				ID:                 r.ID,
				RegionID:           regionID,
				ProjectID:          r.TenantID,
				Name:               r.Name,
				Status:             r.Status,
				KeyName:            r.KeyName,
				ImageID:            resolveRef(r.ID, "image", r.ImageID, hasImage),
				FlavorID:           resolveRef(r.ID, "flavor", r.FlavorID, hasFlavor),
				HypervisorHostname: r.HypervisorHost,
				Metadata:           string(meta),
			}
			if r.AvailabilityZone != "" {
				sv.ZoneID = resolveRef(r.ID, "zone", zoneID, hasZone)
			}
			if tag, ok := r.Metadata[appMetadataKey]; ok {
				if appID, known := aliases[strings.ToLower(tag)]; known {
					sv.AppID = &appID
				}
			}
			return sv, nil
		},
		Fields: []Field[Server]{
			FieldOf("name", func(v *Server) string { return v.Name }, func(v *Server, x string) { v.Name = x }),
			FieldOf("project_id", func(v *Server) string { return v.ProjectID }, func(v *Server, x string) { v.ProjectID = x }),
			FieldOf("status", func(v *Server) string { return v.Status }, func(v *Server, x string) { v.Status = x }),
			FieldOf("key_name", func(v *Server) string { return v.KeyName }, func(v *Server, x string) { v.KeyName = x }),
			PtrFieldOf("image_id", func(v *Server) *string { return v.ImageID }, func(v *Server, x *string) { v.ImageID = x }),
			PtrFieldOf("flavor_id", func(v *Server) *string { return v.FlavorID }, func(v *Server, x *string) { v.FlavorID = x }),
			PtrFieldOf("zone_id", func(v *Server) *string { return v.ZoneID }, func(v *Server, x *string) { v.ZoneID = x }),
			FieldOf("hypervisor_hostname", func(v *Server) string { return v.HypervisorHostname }, func(v *Server, x string) { v.HypervisorHostname = x }),
			PtrFieldOf("app_id", func(v *Server) *int64 { return v.AppID }, func(v *Server, x *int64) { v.AppID = x }),
			FieldOf("metadata", func(v *Server) string { return v.Metadata }, func(v *Server, x string) { v.Metadata = x }),
		},
	}

	summary, err := syncKind(ctx, s.st, serverMapping, spec, regionID, items)
	if err != nil {
		return nil, err
	}
	summary.Warnings = append(summary.Warnings, refWarnings...)
	return summary, nil
}

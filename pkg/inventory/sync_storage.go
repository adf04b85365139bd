package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudinv/cloudinv/pkg/remote"
	"github.com/cloudinv/cloudinv/pkg/store"
)

// VolumeTypeSync reconciles block storage types.
type VolumeTypeSync struct {
	st *store.Store
}

func NewVolumeTypeSync(st *store.Store) *VolumeTypeSync { return &VolumeTypeSync{st: st} }

func (s *VolumeTypeSync) Kind() string { return "volume_types" }

func (s *VolumeTypeSync) Sync(ctx context.Context, rc *RegionContext) (*Summary, error) {
	items, err := rc.Client.VolumeTypes(ctx, rc.Region.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list volume types: %w", err)
	}

	regionID := rc.Region.ID
	spec := DiffSpec[VolumeType, remote.VolumeType]{
		Kind: s.Kind(),
		ID:   func(v *VolumeType) string { return v.ID },
		Map: func(r remote.VolumeType) (*VolumeType, error) {
			if err := validate.Struct(r); err != nil {
				return nil, err
			}
			return &VolumeType{
				ID:          r.ID,
				RegionID:    regionID,
				Name:        r.Name,
				Description: r.Description,
				IsPublic:    r.IsPublic,
			}, nil
		},
		Fields: []Field[VolumeType]{
			FieldOf("name", func(v *VolumeType) string { return v.Name }, func(v *VolumeType, x string) { v.Name = x }),
			FieldOf("description", func(v *VolumeType) string { return v.Description }, func(v *VolumeType, x string) { v.Description = x }),
			FieldOf("is_public", func(v *VolumeType) bool { return v.IsPublic }, func(v *VolumeType, x bool) { v.IsPublic = x }),
		},
	}

	return syncKind(ctx, s.st, volumeTypeMapping, spec, regionID, items)
}

// VolumeSync reconciles volumes and their attachments in one pass.
// Attachments come from the first-class listing when the control plane
// supports it; on NotFound the pass falls back to the attachment data
// inlined in the volume listing instead of failing.
type VolumeSync struct {
	st *store.Store
}

func NewVolumeSync(st *store.Store) *VolumeSync { return &VolumeSync{st: st} }

func (s *VolumeSync) Kind() string { return "volumes" }

func (s *VolumeSync) Sync(ctx context.Context, rc *RegionContext) (*Summary, error) {
	items, err := rc.Client.Volumes(ctx, rc.Region.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes: %w", err)
	}

	regionID := rc.Region.ID
	spec := DiffSpec[Volume, remote.Volume]{
		Kind: s.Kind(),
		ID:   func(v *Volume) string { return v.ID },
		Map: func(r remote.Volume) (*Volume, error) {
			if err := validate.Struct(r); err != nil {
				return nil, err
			}
			return &Volume{
				ID:          r.ID,
				RegionID:    regionID,
				ProjectID:   r.TenantID,
				Name:        r.Name,
				Size:        int64(r.Size),
				VolumeType:  r.VolumeType,
				Status:      r.Status,
				Description: r.Description,
			}, nil
		},
		Fields: []Field[Volume]{
			FieldOf("name", func(v *Volume) string { return v.Name }, func(v *Volume, x string) { v.Name = x }),
			FieldOf("project_id", func(v *Volume) string { return v.ProjectID }, func(v *Volume, x string) { v.ProjectID = x }),
			FieldOf("size", func(v *Volume) int64 { return v.Size }, func(v *Volume, x int64) { v.Size = x }),
			FieldOf("volume_type", func(v *Volume) string { return v.VolumeType }, func(v *Volume, x string) { v.VolumeType = x }),
			FieldOf("status", func(v *Volume) string { return v.Status }, func(v *Volume, x string) { v.Status = x }),
			FieldOf("description", func(v *Volume) string { return v.Description }, func(v *Volume, x string) { v.Description = x }),
		},
	}

	summary, err := syncKind(ctx, s.st, volumeMapping, spec, regionID, items)
	if err != nil {
		return nil, err
	}

	attachments, fallback, err := s.listAttachments(ctx, rc, items)
	if err != nil {
		return nil, err
	}
	if fallback {
		summary.Warnings = append(summary.Warnings,
			"volumes: attachment listing unsupported, using inline attachment data")
	}

	attachSummary, err := s.syncAttachments(ctx, regionID, attachments)
	if err != nil {
		return nil, err
	}
	summary.merge(attachSummary)
	return summary, nil
}

func (s *VolumeSync) listAttachments(ctx context.Context, rc *RegionContext, volumes []remote.Volume) ([]remote.VolumeAttachment, bool, error) {
	attachments, err := rc.Client.VolumeAttachments(ctx, rc.Region.Name)
	if err == nil {
		return attachments, false, nil
	}
	if !remote.IsNotFound(err) {
		return nil, false, fmt.Errorf("failed to list volume attachments: %w", err)
	}

	var inline []remote.VolumeAttachment
	for _, v := range volumes {
		inline = append(inline, v.Attachments...)
	}
	return inline, true, nil
}

func (s *VolumeSync) syncAttachments(ctx context.Context, regionID string, items []remote.VolumeAttachment) (*Summary, error) {
	spec := DiffSpec[VolumeAttachment, remote.VolumeAttachment]{
		Kind: "volume_attachments",
		ID:   func(a *VolumeAttachment) string { return a.ID },
		Map: func(r remote.VolumeAttachment) (*VolumeAttachment, error) {
			if err := validate.Struct(r); err != nil {
				return nil, err
			}
			attachedAt := ""
			if r.AttachedAt != nil {
				attachedAt = r.AttachedAt.UTC().Format(time.RFC3339)
			}
			return &VolumeAttachment{
				ID:         r.ID,
				RegionID:   regionID,
				VolumeID:   r.VolumeID,
				ServerID:   r.ServerID,
				Device:     r.Device,
				AttachedAt: attachedAt,
			}, nil
		},
		Fields: []Field[VolumeAttachment]{
			FieldOf("volume_id", func(v *VolumeAttachment) string { return v.VolumeID }, func(v *VolumeAttachment, x string) { v.VolumeID = x }),
			FieldOf("server_id", func(v *VolumeAttachment) string { return v.ServerID }, func(v *VolumeAttachment, x string) { v.ServerID = x }),
			FieldOf("device", func(v *VolumeAttachment) string { return v.Device }, func(v *VolumeAttachment, x string) { v.Device = x }),
			FieldOf("attached_at", func(v *VolumeAttachment) string { return v.AttachedAt }, func(v *VolumeAttachment, x string) { v.AttachedAt = x }),
		},
	}

	return syncKind(ctx, s.st, volumeAttachmentMapping, spec, regionID, items)
}

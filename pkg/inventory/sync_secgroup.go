package inventory

import (
	"context"
	"fmt"

	"github.com/cloudinv/cloudinv/pkg/remote"
	"github.com/cloudinv/cloudinv/pkg/store"
)

// adminProjectName is the project whose default security group is the
// template cloned into newly discovered projects.
const adminProjectName = "admin"

// defaultGroupName is the name every project's implicit group carries.
const defaultGroupName = "default"

// SecurityGroupSync reconciles security groups. Before diffing it runs
// the default-group bootstrap: a default group seen for the first time
// gets the admin project's ingress rules cloned onto it, one rule at a
// time, log-and-continue.
type SecurityGroupSync struct {
	st *store.Store
}

func NewSecurityGroupSync(st *store.Store) *SecurityGroupSync { return &SecurityGroupSync{st: st} }

func (s *SecurityGroupSync) Kind() string { return "security_groups" }

func (s *SecurityGroupSync) Sync(ctx context.Context, rc *RegionContext) (*Summary, error) {
	items, err := rc.Client.SecurityGroups(ctx, rc.Region.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list security groups: %w", err)
	}

	bootstrapWarnings, err := s.bootstrapDefaults(ctx, rc, items)
	if err != nil {
		return nil, err
	}

	regionID := rc.Region.ID
	spec := DiffSpec[SecurityGroup, remote.SecurityGroup]{
		Kind: s.Kind(),
		ID:   func(g *SecurityGroup) string { return g.ID },
		Map: func(r remote.SecurityGroup) (*SecurityGroup, error) {
			if err := validate.Struct(r); err != nil {
				return nil, err
			}
			return &SecurityGroup{
				ID:          r.ID,
				RegionID:    regionID,
				ProjectID:   r.ProjectID,
				Name:        r.Name,
				Description: r.Description,
			}, nil
		},
		Fields: []Field[SecurityGroup]{
			FieldOf("name", func(v *SecurityGroup) string { return v.Name }, func(v *SecurityGroup, x string) { v.Name = x }),
			FieldOf("project_id", func(v *SecurityGroup) string { return v.ProjectID }, func(v *SecurityGroup, x string) { v.ProjectID = x }),
			FieldOf("description", func(v *SecurityGroup) string { return v.Description }, func(v *SecurityGroup, x string) { v.Description = x }),
		},
	}

	summary, err := syncKind(ctx, s.st, securityGroupMapping, spec, regionID, items)
	if err != nil {
		return nil, err
	}
	summary.Warnings = append(summary.Warnings, bootstrapWarnings...)
	return summary, nil
}

// bootstrapDefaults clones the admin default group's ingress rules onto
// default groups not seen before. A failed rule creation is recorded
// and skipped; the bootstrap never fails the group sync.
func (s *SecurityGroupSync) bootstrapDefaults(ctx context.Context, rc *RegionContext, items []remote.SecurityGroup) ([]string, error) {
	projects, err := store.Snapshot(ctx, s.st.DB(), projectMapping, rc.IDC)
	if err != nil {
		return nil, err
	}
	var adminProjectID string
	for _, p := range projects {
		if p.Name == adminProjectName {
			adminProjectID = p.ID
			break
		}
	}
	if adminProjectID == "" {
		return []string{"security_groups: admin project unknown, default bootstrap skipped"}, nil
	}

	var template *remote.SecurityGroup
	for i := range items {
		if items[i].Name == defaultGroupName && items[i].ProjectID == adminProjectID {
			template = &items[i]
			break
		}
	}
	if template == nil {
		return nil, nil
	}

	known, err := store.Snapshot(ctx, s.st.DB(), securityGroupMapping, rc.Region.ID)
	if err != nil {
		return nil, err
	}

	var warnings []string
	for _, g := range items {
		if g.Name != defaultGroupName || g.ProjectID == adminProjectID {
			continue
		}
		if _, seen := known[g.ID]; seen {
			continue
		}
		for _, rule := range template.Rules {
			if rule.Direction != "ingress" {
				continue
			}
			req := remote.NewRuleRequest{
				SecurityGroupID: g.ID,
				RemoteGroupID:   rule.RemoteGroupID,
				RemoteIPPrefix:  rule.RemoteIPPrefix,
				PortRangeMin:    rule.PortRangeMin,
				PortRangeMax:    rule.PortRangeMax,
				Protocol:        rule.Protocol,
				Direction:       rule.Direction,
				EtherType:       rule.EtherType,
				Description:     rule.Description,
			}
			if _, err := rc.Client.CreateSecurityGroupRule(ctx, rc.Region.Name, req); err != nil {
				warnings = append(warnings,
					fmt.Sprintf("security_groups: bootstrap rule for group %s failed: %v", g.ID, err))
			}
		}
	}
	return warnings, nil
}

// SecurityGroupRuleSync reconciles security group rules from their own
// listing endpoint.
type SecurityGroupRuleSync struct {
	st *store.Store
}

func NewSecurityGroupRuleSync(st *store.Store) *SecurityGroupRuleSync {
	return &SecurityGroupRuleSync{st: st}
}

func (s *SecurityGroupRuleSync) Kind() string { return "security_group_rules" }

func (s *SecurityGroupRuleSync) Sync(ctx context.Context, rc *RegionContext) (*Summary, error) {
	items, err := rc.Client.SecurityGroupRules(ctx, rc.Region.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list security group rules: %w", err)
	}

	regionID := rc.Region.ID
	spec := DiffSpec[SecurityGroupRule, remote.SecurityGroupRule]{
		Kind: s.Kind(),
		ID:   func(r *SecurityGroupRule) string { return r.ID },
		Map: func(r remote.SecurityGroupRule) (*SecurityGroupRule, error) {
			if err := validate.Struct(r); err != nil {
				return nil, err
			}
			return &SecurityGroupRule{
				ID:              r.ID,
				RegionID:        regionID,
				SecurityGroupID: r.SecurityGroupID,
				RemoteGroupID:   strPtr(r.RemoteGroupID),
				RemoteIPPrefix:  strPtr(r.RemoteIPPrefix),
				PortRangeMin:    intPtr(r.PortRangeMin),
				PortRangeMax:    intPtr(r.PortRangeMax),
				Protocol:        strPtr(r.Protocol),
				Direction:       r.Direction,
				Ethertype:       r.EtherType,
				Description:     r.Description,
			}, nil
		},
		Fields: []Field[SecurityGroupRule]{
			FieldOf("security_group_id", func(v *SecurityGroupRule) string { return v.SecurityGroupID }, func(v *SecurityGroupRule, x string) { v.SecurityGroupID = x }),
			PtrFieldOf("remote_group_id", func(v *SecurityGroupRule) *string { return v.RemoteGroupID }, func(v *SecurityGroupRule, x *string) { v.RemoteGroupID = x }),
			PtrFieldOf("remote_ip_prefix", func(v *SecurityGroupRule) *string { return v.RemoteIPPrefix }, func(v *SecurityGroupRule, x *string) { v.RemoteIPPrefix = x }),
			PtrFieldOf("port_range_min", func(v *SecurityGroupRule) *int64 { return v.PortRangeMin }, func(v *SecurityGroupRule, x *int64) { v.PortRangeMin = x }),
			PtrFieldOf("port_range_max", func(v *SecurityGroupRule) *int64 { return v.PortRangeMax }, func(v *SecurityGroupRule, x *int64) { v.PortRangeMax = x }),
			PtrFieldOf("protocol", func(v *SecurityGroupRule) *string { return v.Protocol }, func(v *SecurityGroupRule, x *string) { v.Protocol = x }),
			FieldOf("direction", func(v *SecurityGroupRule) string { return v.Direction }, func(v *SecurityGroupRule, x string) { v.Direction = x }),
			FieldOf("ethertype", func(v *SecurityGroupRule) string { return v.Ethertype }, func(v *SecurityGroupRule, x string) { v.Ethertype = x }),
			FieldOf("description", func(v *SecurityGroupRule) string { return v.Description }, func(v *SecurityGroupRule, x string) { v.Description = x }),
		},
	}

	return syncKind(ctx, s.st, securityGroupRuleMapping, spec, regionID, items)
}

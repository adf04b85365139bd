package inventory

import (
	"context"
	"fmt"

	"github.com/cloudinv/cloudinv/pkg/remote"
	"github.com/cloudinv/cloudinv/pkg/store"
)

// SubnetSync reconciles subnets.
type SubnetSync struct {
	st *store.Store
}

func NewSubnetSync(st *store.Store) *SubnetSync { return &SubnetSync{st: st} }

func (s *SubnetSync) Kind() string { return "subnets" }

func (s *SubnetSync) Sync(ctx context.Context, rc *RegionContext) (*Summary, error) {
	items, err := rc.Client.Subnets(ctx, rc.Region.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list subnets: %w", err)
	}

	regionID := rc.Region.ID
	spec := DiffSpec[Subnet, remote.Subnet]{
		Kind: s.Kind(),
		ID:   func(sn *Subnet) string { return sn.ID },
		Map: func(r remote.Subnet) (*Subnet, error) {
			if err := validate.Struct(r); err != nil {
				return nil, err
			}
			return &Subnet{
				ID:        r.ID,
				RegionID:  regionID,
				ProjectID: r.ProjectID,
				NetworkID: r.NetworkID,
				Name:      r.Name,
				CIDR:      r.CIDR,
				TotalIPs:  int64(r.TotalIPs),
			}, nil
		},
		Fields: []Field[Subnet]{
			FieldOf("name", func(v *Subnet) string { return v.Name }, func(v *Subnet, x string) { v.Name = x }),
			FieldOf("project_id", func(v *Subnet) string { return v.ProjectID }, func(v *Subnet, x string) { v.ProjectID = x }),
			FieldOf("network_id", func(v *Subnet) string { return v.NetworkID }, func(v *Subnet, x string) { v.NetworkID = x }),
			FieldOf("cidr", func(v *Subnet) string { return v.CIDR }, func(v *Subnet, x string) { v.CIDR = x }),
			FieldOf("total_ips", func(v *Subnet) int64 { return v.TotalIPs }, func(v *Subnet, x int64) { v.TotalIPs = x }),
		},
	}

	return syncKind(ctx, s.st, subnetMapping, spec, regionID, items)
}

// PortSync reconciles ports and the two derived kinds carried inline by
// the port listing: the port-to-security-group junction and the fixed
// IP addresses. It also backfills server IP addresses from the port
// device bindings.
type PortSync struct {
	st *store.Store
}

func NewPortSync(st *store.Store) *PortSync { return &PortSync{st: st} }

func (s *PortSync) Kind() string { return "ports" }

func (s *PortSync) Sync(ctx context.Context, rc *RegionContext) (*Summary, error) {
	items, err := rc.Client.Ports(ctx, rc.Region.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}

	regionID := rc.Region.ID

	portSpec := DiffSpec[Port, remote.Port]{
		Kind: s.Kind(),
		ID:   func(p *Port) string { return p.ID },
		Map: func(r remote.Port) (*Port, error) {
			if err := validate.Struct(r); err != nil {
				return nil, err
			}
			return &Port{
				ID:          r.ID,
				RegionID:    regionID,
				ProjectID:   r.ProjectID,
				DeviceID:    r.DeviceID,
				Status:      r.Status,
				Description: r.Description,
			}, nil
		},
		Fields: []Field[Port]{
			FieldOf("project_id", func(v *Port) string { return v.ProjectID }, func(v *Port, x string) { v.ProjectID = x }),
			FieldOf("device_id", func(v *Port) string { return v.DeviceID }, func(v *Port, x string) { v.DeviceID = x }),
			FieldOf("status", func(v *Port) string { return v.Status }, func(v *Port, x string) { v.Status = x }),
			FieldOf("description", func(v *Port) string { return v.Description }, func(v *Port, x string) { v.Description = x }),
		},
	}

	summary, err := syncKind(ctx, s.st, portMapping, portSpec, regionID, items)
	if err != nil {
		return nil, err
	}

	// Derived kinds are built from the same listing so the three diffs
	// always see a consistent view of the region.
	var memberships []PortSecurityGroup
	var addresses []Address
	serverIPs := make(map[string]string)

	for _, p := range items {
		if p.ID == "" {
			continue
		}
		for _, sg := range p.SecurityGroups {
			memberships = append(memberships, PortSecurityGroup{
				ID:              PortSecurityGroupKey(p.ID, sg),
				RegionID:        regionID,
				PortID:          p.ID,
				SecurityGroupID: sg,
			})
		}
		for _, fip := range p.FixedIPs {
			addresses = append(addresses, Address{
				ID:        AddressKey(regionID, fip.IPAddress),
				RegionID:  regionID,
				IPAddress: fip.IPAddress,
				SubnetID:  fip.SubnetID,
				PortID:    p.ID,
			})
		}
		if p.DeviceID != "" && len(p.FixedIPs) > 0 {
			if _, taken := serverIPs[p.DeviceID]; !taken {
				serverIPs[p.DeviceID] = p.FixedIPs[0].IPAddress
			}
		}
	}

	junctionSummary, err := syncKind(ctx, s.st, portSecurityGroupMapping, DiffSpec[PortSecurityGroup, PortSecurityGroup]{
		Kind: "port_security_groups",
		ID:   func(j *PortSecurityGroup) string { return j.ID },
		Map: func(j PortSecurityGroup) (*PortSecurityGroup, error) {
			if j.SecurityGroupID == "" {
				return nil, fmt.Errorf("membership with empty group id")
			}
			return &j, nil
		},
		// The junction has no mutable attributes; membership either
		// exists or it does not.
		Fields: nil,
	}, regionID, memberships)
	if err != nil {
		return nil, err
	}
	summary.merge(junctionSummary)

	addressSummary, err := syncKind(ctx, s.st, addressMapping, DiffSpec[Address, Address]{
		Kind: "addresses",
		ID:   func(a *Address) string { return a.ID },
		Map: func(a Address) (*Address, error) {
			if a.IPAddress == "" {
				return nil, fmt.Errorf("address with empty ip")
			}
			return &a, nil
		},
		Fields: []Field[Address]{
			FieldOf("subnet_id", func(v *Address) string { return v.SubnetID }, func(v *Address, x string) { v.SubnetID = x }),
			FieldOf("port_id", func(v *Address) string { return v.PortID }, func(v *Address, x string) { v.PortID = x }),
		},
	}, regionID, addresses)
	if err != nil {
		return nil, err
	}
	summary.merge(addressSummary)

	changed, err := s.st.UpdateServerIPs(ctx, serverIPs)
	if err != nil {
		return nil, err
	}
	summary.Updated += int(changed)

	return summary, nil
}

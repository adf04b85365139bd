package inventory

import "github.com/cloudinv/cloudinv/pkg/store"

// Store mappings, one per kind. The column lists are the explicit
// contract between records and schema; keep them in step with the
// migrations when either side changes.

var regionMapping = store.Mapping[Region]{
	Table:    "regions",
	ScopeCol: "idc",
	Cols:     []string{"id", "idc", "name", "details"},
	ID:       func(r *Region) string { return r.ID },
	Args: func(r *Region) []any {
		return []any{r.ID, r.IDC, r.Name, r.Details}
	},
	Scan: func(scan func(dest ...any) error) (*Region, error) {
		r := &Region{}
		err := scan(&r.ID, &r.IDC, &r.Name, &r.Details)
		return r, err
	},
}

var projectMapping = store.Mapping[Project]{
	Table:    "projects",
	ScopeCol: "idc",
	Cols:     []string{"id", "idc", "name"},
	ID:       func(p *Project) string { return p.ID },
	Args: func(p *Project) []any {
		return []any{p.ID, p.IDC, p.Name}
	},
	Scan: func(scan func(dest ...any) error) (*Project, error) {
		p := &Project{}
		err := scan(&p.ID, &p.IDC, &p.Name)
		return p, err
	},
}

var flavorMapping = store.Mapping[Flavor]{
	Table:    "flavors",
	ScopeCol: "region_id",
	Cols:     []string{"id", "region_id", "name", "vcpus", "ram", "disk", "enable"},
	ID:       func(f *Flavor) string { return f.ID },
	Args: func(f *Flavor) []any {
		return []any{f.ID, f.RegionID, f.Name, f.VCPUs, f.RAM, f.Disk, f.Enable}
	},
	Scan: func(scan func(dest ...any) error) (*Flavor, error) {
		f := &Flavor{}
		err := scan(&f.ID, &f.RegionID, &f.Name, &f.VCPUs, &f.RAM, &f.Disk, &f.Enable)
		return f, err
	},
}

var imageMapping = store.Mapping[Image]{
	Table:    "images",
	ScopeCol: "region_id",
	Cols: []string{
		"id", "region_id", "name", "status", "visibility",
		"container_format", "disk_format", "os_distro", "is_win", "enable",
	},
	ID: func(i *Image) string { return i.ID },
	Args: func(i *Image) []any {
		return []any{
			i.ID, i.RegionID, i.Name, i.Status, i.Visibility,
			i.ContainerFormat, i.DiskFormat, i.OSDistro, i.IsWin, i.Enable,
		}
	},
	Scan: func(scan func(dest ...any) error) (*Image, error) {
		i := &Image{}
		err := scan(&i.ID, &i.RegionID, &i.Name, &i.Status, &i.Visibility,
			&i.ContainerFormat, &i.DiskFormat, &i.OSDistro, &i.IsWin, &i.Enable)
		return i, err
	},
}

var securityGroupMapping = store.Mapping[SecurityGroup]{
	Table:    "security_groups",
	ScopeCol: "region_id",
	Cols:     []string{"id", "region_id", "project_id", "name", "description"},
	ID:       func(g *SecurityGroup) string { return g.ID },
	Args: func(g *SecurityGroup) []any {
		return []any{g.ID, g.RegionID, g.ProjectID, g.Name, g.Description}
	},
	Scan: func(scan func(dest ...any) error) (*SecurityGroup, error) {
		g := &SecurityGroup{}
		err := scan(&g.ID, &g.RegionID, &g.ProjectID, &g.Name, &g.Description)
		return g, err
	},
}

var securityGroupRuleMapping = store.Mapping[SecurityGroupRule]{
	Table:    "security_group_rules",
	ScopeCol: "region_id",
	Cols: []string{
		"id", "region_id", "security_group_id", "remote_group_id", "remote_ip_prefix",
		"port_range_min", "port_range_max", "protocol", "direction", "ethertype", "description",
	},
	ID: func(r *SecurityGroupRule) string { return r.ID },
	Args: func(r *SecurityGroupRule) []any {
		return []any{
			r.ID, r.RegionID, r.SecurityGroupID, r.RemoteGroupID, r.RemoteIPPrefix,
			r.PortRangeMin, r.PortRangeMax, r.Protocol, r.Direction, r.Ethertype, r.Description,
		}
	},
	Scan: func(scan func(dest ...any) error) (*SecurityGroupRule, error) {
		r := &SecurityGroupRule{}
		err := scan(&r.ID, &r.RegionID, &r.SecurityGroupID, &r.RemoteGroupID, &r.RemoteIPPrefix,
			&r.PortRangeMin, &r.PortRangeMax, &r.Protocol, &r.Direction, &r.Ethertype, &r.Description)
		return r, err
	},
}

var zoneMapping = store.Mapping[Zone]{
	Table:    "zones",
	ScopeCol: "region_id",
	Cols: []string{
		"id", "region_id", "name", "state",
		"running_vms", "free_ram_mb", "free_disk_gb", "hosts",
	},
	ID: func(z *Zone) string { return z.ID },
	Args: func(z *Zone) []any {
		return []any{z.ID, z.RegionID, z.Name, z.State, z.RunningVMs, z.FreeRAMMB, z.FreeDiskGB, z.Hosts}
	},
	Scan: func(scan func(dest ...any) error) (*Zone, error) {
		z := &Zone{}
		err := scan(&z.ID, &z.RegionID, &z.Name, &z.State, &z.RunningVMs, &z.FreeRAMMB, &z.FreeDiskGB, &z.Hosts)
		return z, err
	},
}

var serverGroupMapping = store.Mapping[ServerGroup]{
	Table:    "server_groups",
	ScopeCol: "region_id",
	Cols:     []string{"id", "region_id", "name"},
	ID:       func(g *ServerGroup) string { return g.ID },
	Args: func(g *ServerGroup) []any {
		return []any{g.ID, g.RegionID, g.Name}
	},
	Scan: func(scan func(dest ...any) error) (*ServerGroup, error) {
		g := &ServerGroup{}
		err := scan(&g.ID, &g.RegionID, &g.Name)
		return g, err
	},
}

var serverMapping = store.Mapping[Server]{
	Table:    "servers",
	ScopeCol: "region_id",
	Cols: []string{
		"id", "region_id", "project_id", "name", "status", "key_name", "ip_address",
		"image_id", "flavor_id", "zone_id", "hypervisor_hostname", "app_id", "metadata",
	},
	ID: func(s *Server) string { return s.ID },
	Args: func(s *Server) []any {
		return []any{
			s.ID, s.RegionID, s.ProjectID, s.Name, s.Status, s.KeyName, s.IPAddress,
			s.ImageID, s.FlavorID, s.ZoneID, s.HypervisorHostname, s.AppID, s.Metadata,
		}
	},
	Scan: func(scan func(dest ...any) error) (*Server, error) {
		s := &Server{}
		err := scan(&s.ID, &s.RegionID, &s.ProjectID, &s.Name, &s.Status, &s.KeyName, &s.IPAddress,
			&s.ImageID, &s.FlavorID, &s.ZoneID, &s.HypervisorHostname, &s.AppID, &s.Metadata)
		return s, err
	},
}

var subnetMapping = store.Mapping[Subnet]{
	Table:    "subnets",
	ScopeCol: "region_id",
	Cols:     []string{"id", "region_id", "project_id", "network_id", "name", "cidr", "total_ips"},
	ID:       func(s *Subnet) string { return s.ID },
	Args: func(s *Subnet) []any {
		return []any{s.ID, s.RegionID, s.ProjectID, s.NetworkID, s.Name, s.CIDR, s.TotalIPs}
	},
	Scan: func(scan func(dest ...any) error) (*Subnet, error) {
		s := &Subnet{}
		err := scan(&s.ID, &s.RegionID, &s.ProjectID, &s.NetworkID, &s.Name, &s.CIDR, &s.TotalIPs)
		return s, err
	},
}

var portMapping = store.Mapping[Port]{
	Table:    "ports",
	ScopeCol: "region_id",
	Cols:     []string{"id", "region_id", "project_id", "device_id", "status", "description"},
	ID:       func(p *Port) string { return p.ID },
	Args: func(p *Port) []any {
		return []any{p.ID, p.RegionID, p.ProjectID, p.DeviceID, p.Status, p.Description}
	},
	Scan: func(scan func(dest ...any) error) (*Port, error) {
		p := &Port{}
		err := scan(&p.ID, &p.RegionID, &p.ProjectID, &p.DeviceID, &p.Status, &p.Description)
		return p, err
	},
}

var portSecurityGroupMapping = store.Mapping[PortSecurityGroup]{
	Table:      "port_security_groups",
	ScopeCol:   "region_id",
	Cols:       []string{"id", "region_id", "port_id", "security_group_id"},
	HardDelete: true,
	ID:         func(j *PortSecurityGroup) string { return j.ID },
	Args: func(j *PortSecurityGroup) []any {
		return []any{j.ID, j.RegionID, j.PortID, j.SecurityGroupID}
	},
	Scan: func(scan func(dest ...any) error) (*PortSecurityGroup, error) {
		j := &PortSecurityGroup{}
		err := scan(&j.ID, &j.RegionID, &j.PortID, &j.SecurityGroupID)
		return j, err
	},
}

var addressMapping = store.Mapping[Address]{
	Table:      "addresses",
	ScopeCol:   "region_id",
	Cols:       []string{"id", "region_id", "ip_address", "subnet_id", "port_id"},
	HardDelete: true,
	ID:         func(a *Address) string { return a.ID },
	Args: func(a *Address) []any {
		return []any{a.ID, a.RegionID, a.IPAddress, a.SubnetID, a.PortID}
	},
	Scan: func(scan func(dest ...any) error) (*Address, error) {
		a := &Address{}
		err := scan(&a.ID, &a.RegionID, &a.IPAddress, &a.SubnetID, &a.PortID)
		return a, err
	},
}

var volumeTypeMapping = store.Mapping[VolumeType]{
	Table:    "volume_types",
	ScopeCol: "region_id",
	Cols:     []string{"id", "region_id", "name", "description", "is_public"},
	ID:       func(v *VolumeType) string { return v.ID },
	Args: func(v *VolumeType) []any {
		return []any{v.ID, v.RegionID, v.Name, v.Description, v.IsPublic}
	},
	Scan: func(scan func(dest ...any) error) (*VolumeType, error) {
		v := &VolumeType{}
		err := scan(&v.ID, &v.RegionID, &v.Name, &v.Description, &v.IsPublic)
		return v, err
	},
}

var volumeMapping = store.Mapping[Volume]{
	Table:    "volumes",
	ScopeCol: "region_id",
	Cols:     []string{"id", "region_id", "project_id", "name", "size", "volume_type", "status", "description"},
	ID:       func(v *Volume) string { return v.ID },
	Args: func(v *Volume) []any {
		return []any{v.ID, v.RegionID, v.ProjectID, v.Name, v.Size, v.VolumeType, v.Status, v.Description}
	},
	Scan: func(scan func(dest ...any) error) (*Volume, error) {
		v := &Volume{}
		err := scan(&v.ID, &v.RegionID, &v.ProjectID, &v.Name, &v.Size, &v.VolumeType, &v.Status, &v.Description)
		return v, err
	},
}

var volumeAttachmentMapping = store.Mapping[VolumeAttachment]{
	Table:      "volume_attachments",
	ScopeCol:   "region_id",
	Cols:       []string{"id", "region_id", "volume_id", "server_id", "device", "attached_at"},
	HardDelete: true,
	ID:         func(a *VolumeAttachment) string { return a.ID },
	Args: func(a *VolumeAttachment) []any {
		return []any{a.ID, a.RegionID, a.VolumeID, a.ServerID, a.Device, a.AttachedAt}
	},
	Scan: func(scan func(dest ...any) error) (*VolumeAttachment, error) {
		a := &VolumeAttachment{}
		err := scan(&a.ID, &a.RegionID, &a.VolumeID, &a.ServerID, &a.Device, &a.AttachedAt)
		return a, err
	},
}

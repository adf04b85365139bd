package inventory

// Local inventory records, one struct per synced kind. Field sets
// mirror the store schema exactly; anything not listed here is not
// owned by sync and never overwritten by it.

// Region is a control-plane region. The ID is "<idc>_<name>" so region
// identifiers stay unique across IDCs.
type Region struct {
	ID      string
	IDC     string
	Name    string
	Details string // JSON blob of region endpoints and capabilities
}

// Project is a tenant known to an IDC.
type Project struct {
	ID   string
	IDC  string
	Name string
}

// Flavor is a compute instance size definition.
type Flavor struct {
	ID       string
	RegionID string
	Name     string
	VCPUs    int64
	RAM      int64
	Disk     int64
	Enable   bool
}

// Image is a bootable machine image.
type Image struct {
	ID              string
	RegionID        string
	Name            string
	Status          string
	Visibility      string
	ContainerFormat string
	DiskFormat      string
	OSDistro        string
	IsWin           bool
	Enable          bool
}

// SecurityGroup is a firewall group scoped to a project.
type SecurityGroup struct {
	ID          string
	RegionID    string
	ProjectID   string
	Name        string
	Description string
}

// SecurityGroupRule is one ingress or egress rule. Nullable columns
// stay pointers so "unset" and "zero" remain distinguishable.
type SecurityGroupRule struct {
	ID              string
	RegionID        string
	SecurityGroupID string
	RemoteGroupID   *string
	RemoteIPPrefix  *string
	PortRangeMin    *int64
	PortRangeMax    *int64
	Protocol        *string
	Direction       string
	Ethertype       string
	Description     string
}

// Zone is an availability zone with hypervisor statistics folded in.
// The ID is "<region>_<name>". State is "down" when any hypervisor in
// the zone reports down; the capacity counters are sums across the
// zone's hypervisors.
type Zone struct {
	ID         string
	RegionID   string
	Name       string
	State      string
	RunningVMs int64
	FreeRAMMB  int64
	FreeDiskGB int64
	Hosts      string // JSON array of hypervisor hostnames
}

// ServerGroup is a scheduler affinity group.
type ServerGroup struct {
	ID       string
	RegionID string
	Name     string
}

// Server is a compute instance. ImageID, FlavorID and ZoneID are
// pointers because a reference to a vanished resource is nulled rather
// than kept dangling.
type Server struct {
	ID                 string
	RegionID           string
	ProjectID          string
	Name               string
	Status             string
	KeyName            string
	IPAddress          string
	ImageID            *string
	FlavorID           *string
	ZoneID             *string
	HypervisorHostname string
	AppID              *int64
	Metadata           string // JSON blob of instance metadata
}

// Subnet is an IP subnet.
type Subnet struct {
	ID        string
	RegionID  string
	ProjectID string
	NetworkID string
	Name      string
	CIDR      string
	TotalIPs  int64
}

// Port is a network port.
type Port struct {
	ID          string
	RegionID    string
	ProjectID   string
	DeviceID    string
	Status      string
	Description string
}

// PortSecurityGroup is the port-to-security-group junction. The ID is
// "<port>_<group>" so membership diffs like any other kind.
type PortSecurityGroup struct {
	ID              string
	RegionID        string
	PortID          string
	SecurityGroupID string
}

// Address is one fixed IP assignment. The ID is "<region>_<ip>".
type Address struct {
	ID        string
	RegionID  string
	IPAddress string
	SubnetID  string
	PortID    string
}

// VolumeType is a block storage type.
type VolumeType struct {
	ID          string
	RegionID    string
	Name        string
	Description string
	IsPublic    bool
}

// Volume is a block storage volume.
type Volume struct {
	ID          string
	RegionID    string
	ProjectID   string
	Name        string
	Size        int64
	VolumeType  string
	Status      string
	Description string
}

// VolumeAttachment is a volume-to-server attachment.
type VolumeAttachment struct {
	ID         string
	RegionID   string
	VolumeID   string
	ServerID   string
	Device     string
	AttachedAt string
}

// RegionKey builds the composite region identifier.
func RegionKey(idc, name string) string {
	return idc + "_" + name
}

// ZoneKey builds the composite zone identifier.
func ZoneKey(regionID, name string) string {
	return regionID + "_" + name
}

// AddressKey builds the composite address identifier.
func AddressKey(regionID, ip string) string {
	return regionID + "_" + ip
}

// PortSecurityGroupKey builds the composite junction identifier.
func PortSecurityGroupKey(portID, groupID string) string {
	return portID + "_" + groupID
}

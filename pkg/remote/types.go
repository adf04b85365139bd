package remote

import "time"

// RegionDetail describes one region's service endpoints as discovered
// from the identity catalog at login time.
type RegionDetail struct {
	Name      string            `json:"name" validate:"required"`
	Endpoints map[string]string `json:"endpoints"` // service type -> public URL
}

// Flavor is a compute flavor listing item.
type Flavor struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	VCPUs int    `json:"vcpus" validate:"gte=0"`
	RAM   int    `json:"ram" validate:"gte=0"`  // MiB
	Disk  int    `json:"disk" validate:"gte=0"` // GiB
}

// Image is an image-service listing item.
type Image struct {
	ID              string `json:"id" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Status          string `json:"status"`
	Visibility      string `json:"visibility"`
	ContainerFormat string `json:"container_format"`
	DiskFormat      string `json:"disk_format"`
	OSDistro        string `json:"os_distro"`
}

// SecurityGroup is a network security group listing item. Rules are
// inlined by the listing endpoint but synced as their own kind.
type SecurityGroup struct {
	ID          string              `json:"id" validate:"required"`
	Name        string              `json:"name" validate:"required"`
	ProjectID   string              `json:"project_id" validate:"required"`
	Description string              `json:"description"`
	CreatedAt   time.Time           `json:"created_at"`
	Rules       []SecurityGroupRule `json:"security_group_rules"`
}

// SecurityGroupRule is a single ingress/egress rule.
type SecurityGroupRule struct {
	ID              string `json:"id" validate:"required"`
	SecurityGroupID string `json:"security_group_id" validate:"required"`
	RemoteGroupID   string `json:"remote_group_id"`
	RemoteIPPrefix  string `json:"remote_ip_prefix"`
	PortRangeMin    *int   `json:"port_range_min"`
	PortRangeMax    *int   `json:"port_range_max"`
	Protocol        string `json:"protocol"`
	Direction       string `json:"direction" validate:"omitempty,oneof=ingress egress"`
	EtherType       string `json:"ethertype"`
	Description     string `json:"description"`
}

// AvailabilityZone is one entry of the availability-zone detail
// listing. Hosts carries the hypervisor host names in the zone.
type AvailabilityZone struct {
	Name      string   `json:"zoneName" validate:"required"`
	Available bool     `json:"available"`
	Hosts     []string `json:"hosts"`
}

// Hypervisor is one entry of the hypervisor detail listing, folded
// into zone aggregates during zone sync.
type Hypervisor struct {
	Hostname   string `json:"hypervisor_hostname" validate:"required"`
	State      string `json:"state"` // up / down
	RunningVMs int    `json:"running_vms"`
	FreeRAMMB  int    `json:"free_ram_mb"`
	FreeDiskGB int    `json:"free_disk_gb"`
}

// ServerGroup is a compute server-group listing item.
type ServerGroup struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// Server is a compute server detail listing item.
type Server struct {
	ID               string            `json:"id" validate:"required"`
	Name             string            `json:"name" validate:"required"`
	TenantID         string            `json:"tenant_id" validate:"required"`
	Status           string            `json:"status"`
	KeyName          string            `json:"key_name"`
	AvailabilityZone string            `json:"OS-EXT-AZ:availability_zone"`
	HypervisorHost   string            `json:"OS-EXT-SRV-ATTR:host"`
	ImageID          string            `json:"image_id"`
	FlavorID         string            `json:"flavor_id"`
	Metadata         map[string]string `json:"metadata"`
}

// Subnet is a network subnet listing item.
type Subnet struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name"`
	ProjectID string `json:"project_id" validate:"required"`
	NetworkID string `json:"network_id"`
	CIDR      string `json:"cidr" validate:"required,cidr"`
	TotalIPs  int    `json:"total_ips" validate:"gte=0"`
}

// FixedIP is one address binding carried inline on a port.
type FixedIP struct {
	SubnetID  string `json:"subnet_id" validate:"required"`
	IPAddress string `json:"ip_address" validate:"required,ip"`
}

// Port is a network port listing item.
type Port struct {
	ID             string    `json:"id" validate:"required"`
	ProjectID      string    `json:"project_id" validate:"required"`
	DeviceID       string    `json:"device_id"`
	Status         string    `json:"status"`
	Description    string    `json:"description"`
	FixedIPs       []FixedIP `json:"fixed_ips"`
	SecurityGroups []string  `json:"security_groups"`
}

// VolumeType is a block-storage volume type listing item.
type VolumeType struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

// Volume is a block-storage volume detail listing item. Attachments
// are inlined; the volume synchronizer feeds them to the attachment
// diff in the same pass.
type Volume struct {
	ID          string             `json:"id" validate:"required"`
	Name        string             `json:"name"`
	TenantID    string             `json:"os-vol-tenant-attr:tenant_id" validate:"required"`
	Size        int                `json:"size" validate:"gte=0"`
	VolumeType  string             `json:"volume_type"`
	Status      string             `json:"status"`
	Description string             `json:"description"`
	Attachments []VolumeAttachment `json:"attachments"`
}

// VolumeAttachment binds a volume to a server. It carries its own
// remote ID and lifetime independent of the volume.
type VolumeAttachment struct {
	ID         string     `json:"id" validate:"required"`
	VolumeID   string     `json:"volume_id" validate:"required"`
	ServerID   string     `json:"server_id"`
	Device     string     `json:"device"`
	AttachedAt *time.Time `json:"attached_at"`
}

// NewRuleRequest is the payload for creating a security-group rule
// during the default-group bootstrap.
type NewRuleRequest struct {
	SecurityGroupID string `json:"security_group_id" validate:"required"`
	RemoteGroupID   string `json:"remote_group_id"`
	RemoteIPPrefix  string `json:"remote_ip_prefix"`
	PortRangeMin    *int   `json:"port_range_min"`
	PortRangeMax    *int   `json:"port_range_max"`
	Protocol        string `json:"protocol"`
	Direction       string `json:"direction"`
	EtherType       string `json:"ethertype"`
	Description     string `json:"description"`
}

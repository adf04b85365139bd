// Package remote defines the contract to the cloud control-plane API:
// typed listings per resource kind, a classified error taxonomy that
// keeps "empty listing" distinguishable from "endpoint missing", and an
// explicit session cache with TTL-based invalidation.
//
// The HTTP transport behind this interface is deliberately thin and
// lives outside the reconciliation core; synchronizers depend only on
// the Client interface so tests can substitute fakes.
package remote

import "context"

// Credentials authenticates one IDC's admin account.
type Credentials struct {
	Endpoint string `yaml:"endpoint" validate:"required,url"`
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password" validate:"required"`
}

// Client lists control-plane resources for one IDC. Every call is a
// blocking I/O boundary carrying independent connect/read timeouts; a
// failed or timed-out call returns a classified *Error and the listing
// must be discarded, never treated as zero items.
type Client interface {
	// Regions returns the regions discovered from the identity catalog.
	Regions(ctx context.Context) (map[string]RegionDetail, error)

	// Projects returns project name -> remote project ID.
	Projects(ctx context.Context) (map[string]string, error)

	Flavors(ctx context.Context, region string) ([]Flavor, error)
	Images(ctx context.Context, region string) ([]Image, error)
	SecurityGroups(ctx context.Context, region string) ([]SecurityGroup, error)
	SecurityGroupRules(ctx context.Context, region string) ([]SecurityGroupRule, error)
	AvailabilityZones(ctx context.Context, region string) ([]AvailabilityZone, error)
	Hypervisors(ctx context.Context, region string) ([]Hypervisor, error)
	ServerGroups(ctx context.Context, region string) ([]ServerGroup, error)
	Servers(ctx context.Context, region string) ([]Server, error)
	Subnets(ctx context.Context, region string) ([]Subnet, error)
	Ports(ctx context.Context, region string) ([]Port, error)
	VolumeTypes(ctx context.Context, region string) ([]VolumeType, error)
	Volumes(ctx context.Context, region string) ([]Volume, error)

	// VolumeAttachments lists attachments as first-class records.
	// Control planes older than the attachments microversion return
	// ErrorKindNotFound; callers must treat that as "listing not
	// supported", not as an empty listing.
	VolumeAttachments(ctx context.Context, region string) ([]VolumeAttachment, error)

	// CreateSecurityGroupRule creates one rule; used only by the
	// default-group bootstrap for new projects.
	CreateSecurityGroupRule(ctx context.Context, region string, rule NewRuleRequest) (*SecurityGroupRule, error)

	// Ping verifies connectivity and credentials without mutating
	// anything. Used by the periodic health probe.
	Ping(ctx context.Context) error
}

// Factory builds (or returns a cached) client for an IDC. The sweep
// orchestrator resolves clients through a Factory so the session cache
// is injected rather than ambient.
type Factory interface {
	ClientFor(ctx context.Context, idc string) (Client, error)
}

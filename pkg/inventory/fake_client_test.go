package inventory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cloudinv/cloudinv/pkg/remote"
	"github.com/cloudinv/cloudinv/pkg/store"
	"github.com/cloudinv/cloudinv/pkg/telemetry"
)

// fakeClient is an in-memory remote.Client. Failures are injected per
// method, optionally per region via the "Method/region" key.
type fakeClient struct {
	regions      map[string]remote.RegionDetail
	projects     map[string]string
	flavors      map[string][]remote.Flavor
	images       map[string][]remote.Image
	secGroups    map[string][]remote.SecurityGroup
	secRules     map[string][]remote.SecurityGroupRule
	zones        map[string][]remote.AvailabilityZone
	hypervisors  map[string][]remote.Hypervisor
	serverGroups map[string][]remote.ServerGroup
	servers      map[string][]remote.Server
	subnets      map[string][]remote.Subnet
	ports        map[string][]remote.Port
	volumeTypes  map[string][]remote.VolumeType
	volumes      map[string][]remote.Volume
	attachments  map[string][]remote.VolumeAttachment

	errs         map[string]error
	pingErr      error
	createdRules []remote.NewRuleRequest
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		regions:      map[string]remote.RegionDetail{},
		projects:     map[string]string{},
		flavors:      map[string][]remote.Flavor{},
		images:       map[string][]remote.Image{},
		secGroups:    map[string][]remote.SecurityGroup{},
		secRules:     map[string][]remote.SecurityGroupRule{},
		zones:        map[string][]remote.AvailabilityZone{},
		hypervisors:  map[string][]remote.Hypervisor{},
		serverGroups: map[string][]remote.ServerGroup{},
		servers:      map[string][]remote.Server{},
		subnets:      map[string][]remote.Subnet{},
		ports:        map[string][]remote.Port{},
		volumeTypes:  map[string][]remote.VolumeType{},
		volumes:      map[string][]remote.Volume{},
		attachments:  map[string][]remote.VolumeAttachment{},
		errs:         map[string]error{},
	}
}

func (c *fakeClient) err(method, region string) error {
	if e, ok := c.errs[method+"/"+region]; ok {
		return e
	}
	return c.errs[method]
}

func (c *fakeClient) Regions(context.Context) (map[string]remote.RegionDetail, error) {
	return c.regions, c.err("Regions", "")
}

func (c *fakeClient) Projects(context.Context) (map[string]string, error) {
	return c.projects, c.err("Projects", "")
}

func (c *fakeClient) Flavors(_ context.Context, region string) ([]remote.Flavor, error) {
	return c.flavors[region], c.err("Flavors", region)
}

func (c *fakeClient) Images(_ context.Context, region string) ([]remote.Image, error) {
	return c.images[region], c.err("Images", region)
}

func (c *fakeClient) SecurityGroups(_ context.Context, region string) ([]remote.SecurityGroup, error) {
	return c.secGroups[region], c.err("SecurityGroups", region)
}

func (c *fakeClient) SecurityGroupRules(_ context.Context, region string) ([]remote.SecurityGroupRule, error) {
	return c.secRules[region], c.err("SecurityGroupRules", region)
}

func (c *fakeClient) AvailabilityZones(_ context.Context, region string) ([]remote.AvailabilityZone, error) {
	return c.zones[region], c.err("AvailabilityZones", region)
}

func (c *fakeClient) Hypervisors(_ context.Context, region string) ([]remote.Hypervisor, error) {
	return c.hypervisors[region], c.err("Hypervisors", region)
}

func (c *fakeClient) ServerGroups(_ context.Context, region string) ([]remote.ServerGroup, error) {
	return c.serverGroups[region], c.err("ServerGroups", region)
}

func (c *fakeClient) Servers(_ context.Context, region string) ([]remote.Server, error) {
	return c.servers[region], c.err("Servers", region)
}

func (c *fakeClient) Subnets(_ context.Context, region string) ([]remote.Subnet, error) {
	return c.subnets[region], c.err("Subnets", region)
}

func (c *fakeClient) Ports(_ context.Context, region string) ([]remote.Port, error) {
	return c.ports[region], c.err("Ports", region)
}

func (c *fakeClient) VolumeTypes(_ context.Context, region string) ([]remote.VolumeType, error) {
	return c.volumeTypes[region], c.err("VolumeTypes", region)
}

func (c *fakeClient) Volumes(_ context.Context, region string) ([]remote.Volume, error) {
	return c.volumes[region], c.err("Volumes", region)
}

func (c *fakeClient) VolumeAttachments(_ context.Context, region string) ([]remote.VolumeAttachment, error) {
	return c.attachments[region], c.err("VolumeAttachments", region)
}

func (c *fakeClient) CreateSecurityGroupRule(_ context.Context, region string, rule remote.NewRuleRequest) (*remote.SecurityGroupRule, error) {
	if err := c.err("CreateSecurityGroupRule", region); err != nil {
		return nil, err
	}
	c.createdRules = append(c.createdRules, rule)
	return &remote.SecurityGroupRule{ID: "created", SecurityGroupID: rule.SecurityGroupID}, nil
}

func (c *fakeClient) Ping(context.Context) error {
	return c.pingErr
}

type fakeFactory struct {
	client remote.Client
	err    error
}

func (f *fakeFactory) ClientFor(context.Context, string) (remote.Client, error) {
	return f.client, f.err
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.New(store.Config{
		Path: filepath.Join(t.TempDir(), "inventory.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := st.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestTelemetry(t *testing.T) *telemetry.Telemetry {
	t.Helper()

	cfg := telemetry.DefaultConfig("cloudinv-test", "test")
	cfg.Logging.Level = "error"
	tel, err := telemetry.New(cfg)
	if err != nil {
		t.Fatalf("failed to create telemetry: %v", err)
	}
	return tel
}

// seedRegion inserts a live region row and returns a RegionContext
// bound to it.
func seedRegion(t *testing.T, st *store.Store, client remote.Client, idc, name string) *RegionContext {
	t.Helper()

	region := &Region{ID: RegionKey(idc, name), IDC: idc, Name: name, Details: "{}"}
	if err := store.BulkInsert(context.Background(), st.DB(), regionMapping, []*Region{region}); err != nil {
		t.Fatalf("failed to seed region: %v", err)
	}
	return &RegionContext{IDC: idc, Region: region, Client: client}
}

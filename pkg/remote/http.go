package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// HTTPFactory builds HTTP-backed clients, one per IDC, sharing a
// session cache and a transport.
type HTTPFactory struct {
	mu    sync.RWMutex
	creds map[string]Credentials
	cache *SessionCache
	httpc *http.Client
}

// NewHTTPFactory creates a factory for the given IDC credential set.
func NewHTTPFactory(creds map[string]Credentials, cache *SessionCache) *HTTPFactory {
	return &HTTPFactory{
		creds: creds,
		cache: cache,
		httpc: &http.Client{Timeout: 30 * time.Second},
	}
}

// UpdateCredentials swaps the credential set and drops every cached
// session so the next calls log in with the new secrets. Used by the
// config hot-reload path for credential rotation.
func (f *HTTPFactory) UpdateCredentials(creds map[string]Credentials) {
	f.mu.Lock()
	f.creds = creds
	f.mu.Unlock()
	f.cache.Purge()
}

// ClientFor returns a client bound to one IDC's control plane.
func (f *HTTPFactory) ClientFor(_ context.Context, idc string) (Client, error) {
	f.mu.RLock()
	creds, ok := f.creds[idc]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown idc: %s", idc)
	}
	return &httpClient{
		idc:   idc,
		creds: creds,
		cache: f.cache,
		httpc: f.httpc,
	}, nil
}

type httpClient struct {
	idc   string
	creds Credentials
	cache *SessionCache
	httpc *http.Client
}

// loginResponse is the aggregate login payload: the token plus the
// identity catalog, so one round trip seeds regions and projects.
type loginResponse struct {
	Token    string                  `json:"token"`
	Regions  map[string]RegionDetail `json:"regions"`
	Projects map[string]string       `json:"projects"`
}

func (c *httpClient) login(ctx context.Context) (*Session, error) {
	payload, err := json.Marshal(map[string]string{
		"username": c.creds.Username,
		"password": c.creds.Password,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.creds.Endpoint+"/v3/auth/tokens", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, classifyTransport("login", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, NewAuthError("login", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, NewUnavailableError("login", fmt.Errorf("status %d", resp.StatusCode))
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, NewUnavailableError("login", fmt.Errorf("malformed response: %w", err))
	}
	return &Session{
		Token:    lr.Token,
		Regions:  lr.Regions,
		Projects: lr.Projects,
		IssuedAt: time.Now(),
	}, nil
}

func (c *httpClient) session(ctx context.Context) (*Session, error) {
	return c.cache.GetOrLogin(ctx, Key(c.idc, "admin"), c.login)
}

// do performs one authenticated call and decodes the JSON body into
// out. A 401 invalidates the cached session so the next call re-logins.
func (c *httpClient) do(ctx context.Context, method, region, path string, body, out any, op string) error {
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	url := c.creds.Endpoint + "/" + region + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Auth-Token", sess.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return classifyTransport(op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.cache.Invalidate(Key(c.idc, "admin"))
		return NewAuthError(op, fmt.Errorf("token rejected"))
	case resp.StatusCode == http.StatusNotFound:
		return NewNotFoundError(op, fmt.Errorf("status 404"))
	case resp.StatusCode == http.StatusRequestTimeout:
		return NewTimeoutError(op, fmt.Errorf("status 408"))
	case resp.StatusCode >= 400:
		return NewUnavailableError(op, fmt.Errorf("status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewUnavailableError(op, fmt.Errorf("malformed response: %w", err))
	}
	return nil
}

func (c *httpClient) get(ctx context.Context, region, path string, out any, op string) error {
	return c.do(ctx, http.MethodGet, region, path, nil, out, op)
}

// classifyTransport maps transport-level failures onto the taxonomy.
func classifyTransport(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError(op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(op, err)
	}
	return NewUnavailableError(op, err)
}

func (c *httpClient) Regions(ctx context.Context) (map[string]RegionDetail, error) {
	sess, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	return sess.Regions, nil
}

func (c *httpClient) Projects(ctx context.Context) (map[string]string, error) {
	sess, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	return sess.Projects, nil
}

func (c *httpClient) Flavors(ctx context.Context, region string) ([]Flavor, error) {
	var env struct {
		Flavors []Flavor `json:"flavors"`
	}
	if err := c.get(ctx, region, "/compute/flavors/detail", &env, "flavors"); err != nil {
		return nil, err
	}
	return env.Flavors, nil
}

func (c *httpClient) Images(ctx context.Context, region string) ([]Image, error) {
	var env struct {
		Images []Image `json:"images"`
	}
	if err := c.get(ctx, region, "/image/v2/images", &env, "images"); err != nil {
		return nil, err
	}
	return env.Images, nil
}

func (c *httpClient) SecurityGroups(ctx context.Context, region string) ([]SecurityGroup, error) {
	var env struct {
		SecurityGroups []SecurityGroup `json:"security_groups"`
	}
	if err := c.get(ctx, region, "/network/v2.0/security-groups", &env, "security_groups"); err != nil {
		return nil, err
	}
	return env.SecurityGroups, nil
}

func (c *httpClient) SecurityGroupRules(ctx context.Context, region string) ([]SecurityGroupRule, error) {
	var env struct {
		Rules []SecurityGroupRule `json:"security_group_rules"`
	}
	if err := c.get(ctx, region, "/network/v2.0/security-group-rules", &env, "security_group_rules"); err != nil {
		return nil, err
	}
	return env.Rules, nil
}

func (c *httpClient) AvailabilityZones(ctx context.Context, region string) ([]AvailabilityZone, error) {
	var env struct {
		Zones []AvailabilityZone `json:"availabilityZoneInfo"`
	}
	if err := c.get(ctx, region, "/compute/os-availability-zone/detail", &env, "availability_zones"); err != nil {
		return nil, err
	}
	return env.Zones, nil
}

func (c *httpClient) Hypervisors(ctx context.Context, region string) ([]Hypervisor, error) {
	var env struct {
		Hypervisors []Hypervisor `json:"hypervisors"`
	}
	if err := c.get(ctx, region, "/compute/os-hypervisors/detail", &env, "hypervisors"); err != nil {
		return nil, err
	}
	return env.Hypervisors, nil
}

func (c *httpClient) ServerGroups(ctx context.Context, region string) ([]ServerGroup, error) {
	var env struct {
		ServerGroups []ServerGroup `json:"server_groups"`
	}
	if err := c.get(ctx, region, "/compute/os-server-groups", &env, "server_groups"); err != nil {
		return nil, err
	}
	return env.ServerGroups, nil
}

func (c *httpClient) Servers(ctx context.Context, region string) ([]Server, error) {
	var env struct {
		Servers []Server `json:"servers"`
	}
	if err := c.get(ctx, region, "/compute/servers/detail?all_tenants=1", &env, "servers"); err != nil {
		return nil, err
	}
	return env.Servers, nil
}

func (c *httpClient) Subnets(ctx context.Context, region string) ([]Subnet, error) {
	var env struct {
		Subnets []Subnet `json:"subnets"`
	}
	if err := c.get(ctx, region, "/network/v2.0/subnets", &env, "subnets"); err != nil {
		return nil, err
	}
	return env.Subnets, nil
}

func (c *httpClient) Ports(ctx context.Context, region string) ([]Port, error) {
	var env struct {
		Ports []Port `json:"ports"`
	}
	if err := c.get(ctx, region, "/network/v2.0/ports", &env, "ports"); err != nil {
		return nil, err
	}
	return env.Ports, nil
}

func (c *httpClient) VolumeTypes(ctx context.Context, region string) ([]VolumeType, error) {
	var env struct {
		VolumeTypes []VolumeType `json:"volume_types"`
	}
	if err := c.get(ctx, region, "/volume/v3/types", &env, "volume_types"); err != nil {
		return nil, err
	}
	return env.VolumeTypes, nil
}

func (c *httpClient) Volumes(ctx context.Context, region string) ([]Volume, error) {
	var env struct {
		Volumes []Volume `json:"volumes"`
	}
	if err := c.get(ctx, region, "/volume/v3/volumes/detail?all_tenants=1", &env, "volumes"); err != nil {
		return nil, err
	}
	return env.Volumes, nil
}

func (c *httpClient) VolumeAttachments(ctx context.Context, region string) ([]VolumeAttachment, error) {
	var env struct {
		Attachments []VolumeAttachment `json:"attachments"`
	}
	if err := c.get(ctx, region, "/volume/v3/attachments/detail?all_tenants=1", &env, "volume_attachments"); err != nil {
		return nil, err
	}
	return env.Attachments, nil
}

func (c *httpClient) CreateSecurityGroupRule(ctx context.Context, region string, rule NewRuleRequest) (*SecurityGroupRule, error) {
	body := map[string]NewRuleRequest{"security_group_rule": rule}
	var env struct {
		Rule SecurityGroupRule `json:"security_group_rule"`
	}
	if err := c.do(ctx, http.MethodPost, region, "/network/v2.0/security-group-rules", body, &env, "create_security_group_rule"); err != nil {
		return nil, err
	}
	return &env.Rule, nil
}

// Ping performs a fresh login, bypassing the cache, so it exercises
// both connectivity and credentials.
func (c *httpClient) Ping(ctx context.Context) error {
	_, err := c.login(ctx)
	return err
}

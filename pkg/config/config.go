// Package config loads and validates the CloudInv configuration file.
// Configuration is plain YAML: the set of IDCs to inventory, the local
// store, scheduling intervals and telemetry settings.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cloudinv/cloudinv/pkg/remote"
)

// IDC is one cloud control plane to inventory. Regions are discovered
// from its identity catalog at sync time, not configured.
type IDC struct {
	Name        string             `yaml:"name" validate:"required"`
	Credentials remote.Credentials `yaml:"credentials" validate:"required"`
	Active      bool               `yaml:"active"`
}

// StoreConfig configures the local SQLite store.
type StoreConfig struct {
	Path            string        `yaml:"path" validate:"required"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// SyncConfig configures the periodic triggers and the reconciliation
// discipline.
type SyncConfig struct {
	// SweepInterval is how often the full resource sweep runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// CleanupInterval is how often the retention purge runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// HealthInterval is how often remote connectivity is probed.
	HealthInterval time.Duration `yaml:"health_interval"`

	// Retention is how long soft-deleted records are kept before the
	// cleanup pass hard-deletes them.
	Retention time.Duration `yaml:"retention"`

	// LockLease bounds how long a job lock is held if the holder dies.
	// Must exceed the expected job duration with margin.
	LockLease time.Duration `yaml:"lock_lease"`

	// MaxConcurrentRegions caps how many region chains run at once.
	MaxConcurrentRegions int `yaml:"max_concurrent_regions"`

	// SessionTTL bounds the remote session cache.
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// TelemetryConfig mirrors pkg/telemetry's configuration surface.
type TelemetryConfig struct {
	LogLevel       string  `yaml:"log_level"`
	LogFormat      string  `yaml:"log_format"` // console, json
	MetricsEnabled bool    `yaml:"metrics_enabled"`
	MetricsListen  string  `yaml:"metrics_listen"`
	TracingEnabled bool    `yaml:"tracing_enabled"`
	TraceExporter  string  `yaml:"trace_exporter"` // otlp, stdout, none
	TraceEndpoint  string  `yaml:"trace_endpoint"`
	SampleRate     float64 `yaml:"sample_rate"`
}

// Config is the full configuration tree.
type Config struct {
	IDCs      []IDC           `yaml:"idcs" validate:"required,min=1,dive"`
	Store     StoreConfig     `yaml:"store" validate:"required"`
	Sync      SyncConfig      `yaml:"sync"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Defaults applied when the corresponding YAML keys are absent.
const (
	DefaultSweepInterval   = 15 * time.Minute
	DefaultCleanupInterval = 24 * time.Hour
	DefaultHealthInterval  = 5 * time.Minute
	DefaultRetention       = 180 * 24 * time.Hour
	DefaultLockLease       = 10 * time.Minute
	DefaultMaxRegions      = 4
)

// Load reads, parses and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(raw)
}

// Parse parses and validates raw YAML configuration bytes.
func Parse(raw []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Sync.SweepInterval <= 0 {
		c.Sync.SweepInterval = DefaultSweepInterval
	}
	if c.Sync.CleanupInterval <= 0 {
		c.Sync.CleanupInterval = DefaultCleanupInterval
	}
	if c.Sync.HealthInterval <= 0 {
		c.Sync.HealthInterval = DefaultHealthInterval
	}
	if c.Sync.Retention <= 0 {
		c.Sync.Retention = DefaultRetention
	}
	if c.Sync.LockLease <= 0 {
		c.Sync.LockLease = DefaultLockLease
	}
	if c.Sync.MaxConcurrentRegions <= 0 {
		c.Sync.MaxConcurrentRegions = DefaultMaxRegions
	}
	if c.Sync.SessionTTL <= 0 {
		c.Sync.SessionTTL = remote.DefaultSessionTTL
	}
	if c.Telemetry.LogLevel == "" {
		c.Telemetry.LogLevel = "info"
	}
	if c.Telemetry.LogFormat == "" {
		c.Telemetry.LogFormat = "json"
	}
	if c.Telemetry.MetricsListen == "" {
		c.Telemetry.MetricsListen = ":9187"
	}
	if c.Telemetry.TraceExporter == "" {
		c.Telemetry.TraceExporter = "none"
	}
	if c.Telemetry.SampleRate <= 0 {
		c.Telemetry.SampleRate = 0.1
	}
}

// ActiveIDCs returns the IDCs enabled for sweeping.
func (c *Config) ActiveIDCs() []IDC {
	out := make([]IDC, 0, len(c.IDCs))
	for _, idc := range c.IDCs {
		if idc.Active {
			out = append(out, idc)
		}
	}
	return out
}

// IDCByName looks up a configured IDC.
func (c *Config) IDCByName(name string) (IDC, bool) {
	for _, idc := range c.IDCs {
		if idc.Name == name {
			return idc, true
		}
	}
	return IDC{}, false
}

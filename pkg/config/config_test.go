package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
idcs:
  - name: dc1
    active: true
    credentials:
      endpoint: https://dc1.example.com:5000
      username: inventory
      password: secret
  - name: dc2
    active: false
    credentials:
      endpoint: https://dc2.example.com:5000
      username: inventory
      password: secret
store:
  path: /var/lib/cloudinv/inventory.db
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Sync.SweepInterval != DefaultSweepInterval {
		t.Errorf("sweep interval = %s, want %s", cfg.Sync.SweepInterval, DefaultSweepInterval)
	}
	if cfg.Sync.Retention != DefaultRetention {
		t.Errorf("retention = %s, want %s", cfg.Sync.Retention, DefaultRetention)
	}
	if cfg.Sync.MaxConcurrentRegions != DefaultMaxRegions {
		t.Errorf("max regions = %d, want %d", cfg.Sync.MaxConcurrentRegions, DefaultMaxRegions)
	}
	if cfg.Telemetry.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.Telemetry.LogLevel)
	}
	if cfg.Telemetry.TraceExporter != "none" {
		t.Errorf("trace exporter = %q, want none", cfg.Telemetry.TraceExporter)
	}
}

func TestParseExplicitValuesKept(t *testing.T) {
	yaml := minimalYAML + `
sync:
  sweep_interval: 5m
  retention: 720h
  max_concurrent_regions: 8
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Sync.SweepInterval != 5*time.Minute {
		t.Errorf("sweep interval = %s, want 5m", cfg.Sync.SweepInterval)
	}
	if cfg.Sync.Retention != 720*time.Hour {
		t.Errorf("retention = %s, want 720h", cfg.Sync.Retention)
	}
	if cfg.Sync.MaxConcurrentRegions != 8 {
		t.Errorf("max regions = %d, want 8", cfg.Sync.MaxConcurrentRegions)
	}
}

func TestParseValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no idcs", "store:\n  path: /tmp/db\n"},
		{"missing store path", "idcs:\n  - name: dc1\n    credentials:\n      endpoint: https://x:5000\n      username: u\n      password: p\n"},
		{"bad endpoint", `
idcs:
  - name: dc1
    credentials:
      endpoint: not-a-url
      username: u
      password: p
store:
  path: /tmp/db
`},
		{"missing password", `
idcs:
  - name: dc1
    credentials:
      endpoint: https://x:5000
      username: u
store:
  path: /tmp/db
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestParseMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("idcs: [unclosed")); err == nil {
		t.Error("expected parse error, got nil")
	}
}

func TestActiveIDCs(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	active := cfg.ActiveIDCs()
	if len(active) != 1 {
		t.Fatalf("got %d active IDCs, want 1", len(active))
	}
	if active[0].Name != "dc1" {
		t.Errorf("active IDC = %q, want dc1", active[0].Name)
	}
}

func TestIDCByName(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	idc, ok := cfg.IDCByName("dc2")
	if !ok {
		t.Fatal("dc2 not found")
	}
	if idc.Active {
		t.Error("dc2 should be inactive")
	}

	if _, ok := cfg.IDCByName("dc9"); ok {
		t.Error("dc9 should not exist")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloudinv.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.IDCs) != 2 {
		t.Errorf("got %d IDCs, want 2", len(cfg.IDCs))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

package commands

import (
	"context"
	"fmt"

	"github.com/cloudinv/cloudinv/pkg/config"
	"github.com/cloudinv/cloudinv/pkg/inventory"
	"github.com/cloudinv/cloudinv/pkg/remote"
	"github.com/cloudinv/cloudinv/pkg/store"
	"github.com/cloudinv/cloudinv/pkg/telemetry"
)

// app bundles the wired components every command operates on.
type app struct {
	cfg     *config.Config
	tel     *telemetry.Telemetry
	st      *store.Store
	factory *remote.HTTPFactory
	orch    *inventory.Orchestrator
}

// setup loads the config and wires telemetry, store, client factory and
// orchestrator. The returned teardown flushes and closes everything.
func setup(ctx context.Context) (*app, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	tel, err := telemetry.New(telemetryConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	st, err := store.New(store.Config{
		Path:            cfg.Store.Path,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := st.Init(ctx); err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	factory := remote.NewHTTPFactory(credentialMap(cfg), remote.NewSessionCache(cfg.Sync.SessionTTL))
	orch := inventory.NewOrchestrator(cfg, st, factory, tel)

	teardown := func() {
		_ = st.Close()
		_ = tel.Shutdown(context.Background())
	}
	return &app{cfg: cfg, tel: tel, st: st, factory: factory, orch: orch}, teardown, nil
}

func credentialMap(cfg *config.Config) map[string]remote.Credentials {
	creds := make(map[string]remote.Credentials, len(cfg.IDCs))
	for _, idc := range cfg.IDCs {
		creds[idc.Name] = idc.Credentials
	}
	return creds
}

func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.DefaultConfig("cloudinv", "dev")
	tc.Logging.Level = cfg.Telemetry.LogLevel
	tc.Logging.Format = cfg.Telemetry.LogFormat
	tc.Metrics.Enabled = cfg.Telemetry.MetricsEnabled
	tc.Metrics.ListenAddress = cfg.Telemetry.MetricsListen
	tc.Tracing.Enabled = cfg.Telemetry.TracingEnabled
	tc.Tracing.Exporter = cfg.Telemetry.TraceExporter
	tc.Tracing.Endpoint = cfg.Telemetry.TraceEndpoint
	tc.Tracing.SamplingRate = cfg.Telemetry.SampleRate
	tc.Tracing.Insecure = true
	return tc
}

package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudinv/cloudinv/pkg/config"
	"github.com/cloudinv/cloudinv/pkg/inventory"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the inventory daemon",
		Long: `Run the scheduler that periodically sweeps every active IDC,
purges expired soft-deleted records and probes control-plane health.

The config file is watched for changes: credential rotation takes
effect without a restart. When metrics are enabled an HTTP endpoint
exposes Prometheus metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, teardown, err := setup(ctx)
			if err != nil {
				return err
			}
			defer teardown()

			log := a.tel.Logger.NewComponentLogger("serve")

			if a.cfg.Telemetry.MetricsEnabled {
				mux := http.NewServeMux()
				mux.Handle("/metrics", a.tel.Metrics.Handler())
				srv := &http.Server{
					Addr:              a.cfg.Telemetry.MetricsListen,
					Handler:           mux,
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.WithError(err).Error("metrics server failed")
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				log.Infof("metrics listening on %s", a.cfg.Telemetry.MetricsListen)
			}

			watcher, err := config.NewWatcher(configPath, func(cfg *config.Config) {
				a.factory.UpdateCredentials(credentialMap(cfg))
				log.Info("configuration reloaded, credentials rotated")
			})
			if err != nil {
				return err
			}
			go func() {
				if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Error("config watcher stopped")
				}
			}()

			sched := inventory.NewScheduler(a.cfg, a.st, a.orch, a.tel)
			if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

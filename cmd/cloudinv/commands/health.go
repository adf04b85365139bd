package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudinv/cloudinv/pkg/store"
)

func newHealthCommand() *cobra.Command {
	var (
		idcName string
		cached  bool
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check control-plane health",
		Long: `Probe one or all active IDC control planes and report the verdict.
With --cached, report the stored verdict from the last probe instead of
contacting the control plane.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, teardown, err := setup(ctx)
			if err != nil {
				return err
			}
			defer teardown()

			var targets []string
			if idcName != "" {
				if _, ok := a.cfg.IDCByName(idcName); !ok {
					return fmt.Errorf("unknown idc: %s", idcName)
				}
				targets = []string{idcName}
			} else {
				for _, idc := range a.cfg.ActiveIDCs() {
					targets = append(targets, idc.Name)
				}
			}

			var (
				verdicts  []*store.HealthStatus
				unhealthy bool
			)
			for _, name := range targets {
				var hs *store.HealthStatus
				if cached {
					hs, err = a.st.GetHealthStatus(ctx, name)
					if err != nil {
						return err
					}
					if hs == nil {
						fmt.Fprintf(os.Stderr, "%s: no cached verdict\n", name)
						unhealthy = true
						continue
					}
				} else {
					hs, err = a.orch.RunHealthCheck(ctx, name)
					if err != nil {
						return err
					}
				}
				verdicts = append(verdicts, hs)
				if !hs.Healthy {
					unhealthy = true
				}
			}

			if jsonOutput {
				if err := json.NewEncoder(os.Stdout).Encode(verdicts); err != nil {
					return err
				}
			} else {
				for _, hs := range verdicts {
					state := "healthy"
					if !hs.Healthy {
						state = "unhealthy: " + hs.Detail
					}
					fmt.Printf("%s: %s (checked %s)\n",
						hs.IDC, state, hs.CheckedAt.Format("2006-01-02 15:04:05 MST"))
				}
			}

			if unhealthy {
				return fmt.Errorf("one or more control planes unhealthy")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&idcName, "idc", "", "check a single IDC (default: all active)")
	cmd.Flags().BoolVar(&cached, "cached", false, "report the stored verdict without probing")
	return cmd
}

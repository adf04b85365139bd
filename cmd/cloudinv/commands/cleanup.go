package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Purge expired soft-deleted records",
		Long: `Hard-delete soft-deleted records whose tombstone is older than the
configured retention period. Takes the cleanup lock; if the daemon is
already running its cleanup job this invocation skips.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, teardown, err := setup(ctx)
			if err != nil {
				return err
			}
			defer teardown()

			hostname, _ := os.Hostname()
			owner := fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])

			locked, err := a.st.AcquireLock(ctx, "cleanup", owner, a.cfg.Sync.LockLease)
			if err != nil {
				return err
			}
			if !locked {
				return fmt.Errorf("cleanup already in progress, skipped")
			}
			defer func() { _ = a.st.ReleaseLock(context.WithoutCancel(ctx), "cleanup", owner) }()

			purged, err := a.orch.RunCleanup(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(purged)
			}
			if len(purged) == 0 {
				fmt.Println("nothing to purge")
				return nil
			}
			for table, n := range purged {
				fmt.Printf("%s: purged %d rows\n", table, n)
			}
			return nil
		},
	}
}

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	jsonOutput bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cloudinv",
		Short: "CloudInv - cloud inventory reconciliation engine",
		Long: `CloudInv keeps a local inventory database in sync with one or more
cloud control planes. It periodically lists every resource kind per
region, diffs the listings against the local records, and applies the
minimal set of inserts, updates and soft-deletes.

Features:
  - Full sweeps per IDC with concurrent per-region sync chains
  - Field-level change detection, no blind overwrites
  - Soft-delete with retention-based cleanup
  - Named time-bounded locks: overlapping runs skip, never queue
  - Cached health verdicts per control plane`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "cloudinv.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newSyncCommand())
	rootCmd.AddCommand(newCleanupCommand())
	rootCmd.AddCommand(newHealthCommand())
	rootCmd.AddCommand(newSweepsCommand())
	rootCmd.AddCommand(newMigrateCommand())

	return rootCmd
}

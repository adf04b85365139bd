package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloudinv/cloudinv/pkg/config"
	"github.com/cloudinv/cloudinv/pkg/store"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  `Open the inventory database and apply any pending schema migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			st, err := store.New(store.Config{
				Path:            cfg.Store.Path,
				MaxOpenConns:    cfg.Store.MaxOpenConns,
				MaxIdleConns:    cfg.Store.MaxIdleConns,
				ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
			})
			if err != nil {
				return err
			}
			if err := st.Init(ctx); err != nil {
				return err
			}
			defer st.Close()

			if err := st.Migrate(ctx); err != nil {
				return err
			}
			fmt.Printf("database %s is up to date\n", cfg.Store.Path)
			return nil
		},
	}
}

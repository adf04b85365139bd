package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSweepsCommand() *cobra.Command {
	var (
		idcName string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "sweeps",
		Short: "List recorded sweeps",
		Long:  `List recent sweep records, newest first, optionally filtered by IDC.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, teardown, err := setup(ctx)
			if err != nil {
				return err
			}
			defer teardown()

			sweeps, err := a.st.ListSweeps(ctx, idcName, limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(sweeps)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tIDC\tSTATUS\tSTARTED\tDURATION\tERRORS")
			for _, sw := range sweeps {
				duration := "-"
				if sw.CompletedAt != nil {
					duration = sw.CompletedAt.Sub(sw.StartedAt).Round(time.Millisecond).String()
				}
				errCol := ""
				if sw.Error != nil {
					errCol = *sw.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					sw.ID, sw.IDC, sw.Status,
					sw.StartedAt.Format("2006-01-02 15:04:05"),
					duration, errCol)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&idcName, "idc", "", "filter by IDC")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of sweeps to list")
	return cmd
}

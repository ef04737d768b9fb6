package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ning0612/fsbridge/internal/history"
	"github.com/Ning0612/fsbridge/internal/progress"
)

func (a *app) historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent transfers",
		Long: `Show recent downloads and uploads, newest first.

With --backend only the transfers of that backend are shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(a.cfg.DataDir, a.log)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			var records []history.Transfer
			if a.backend != "" {
				records, err = store.ForBackend(ctx, a.backend, limit)
			} else {
				records, err = store.Recent(ctx, limit)
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tBACKEND\tDIRECTION\tREMOTE\tLOCAL\tSIZE\tSTATUS\tDURATION")
			for _, r := range records {
				status := string(r.Status)
				if r.Error != "" {
					status += ": " + r.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.StartTime.Local().Format(time.DateTime),
					r.Backend,
					r.Direction,
					r.RemotePath,
					r.LocalPath,
					progress.HumanSize(r.Bytes, true),
					status,
					r.Duration().Round(time.Millisecond),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of transfers to show")
	return cmd
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"erpfetch/internal/fileutil"
	"erpfetch/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		orderID string
		runID   string
		limit   int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded download attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Journal.Enabled {
				return errors.New("the attempt journal is disabled (journal.enabled = false)")
			}
			exists, err := fileutil.Exists(cfg.Journal.Path)
			if err != nil {
				return err
			}
			if !exists {
				fmt.Fprintln(cmd.OutOrStdout(), "No attempts recorded yet")
				return nil
			}
			store, err := journal.Open(cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			attempts, err := store.History(cmd.Context(), journal.Query{OrderID: orderID, RunID: runID, Limit: limit})
			if err != nil {
				return err
			}
			if asJSON {
				if attempts == nil {
					attempts = []journal.Attempt{}
				}
				return writeJSON(cmd, attempts)
			}
			out := cmd.OutOrStdout()
			if len(attempts) == 0 {
				fmt.Fprintln(out, "No matching attempts")
				return nil
			}
			rows := make([][]string, 0, len(attempts))
			for _, a := range attempts {
				rows = append(rows, []string{
					a.StartedAt.Local().Format("2006-01-02 15:04:05"),
					a.OrderID,
					a.ReportName,
					a.Variant.String(),
					a.Status.String(),
					a.Duration.String(),
					a.Detail,
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Started", "Order", "Report", "Flow", "Status", "Took", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&orderID, "order", "", "Only show attempts for this order id")
	cmd.Flags().StringVar(&runID, "run", "", "Only show attempts from this run id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum attempts to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

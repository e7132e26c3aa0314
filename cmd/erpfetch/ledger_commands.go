package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"erpfetch/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or reset the progress ledger",
	}
	ledgerCmd.AddCommand(newLedgerShowCommand(ctx))
	ledgerCmd.AddCommand(newLedgerGetCommand(ctx))
	ledgerCmd.AddCommand(newLedgerClearCommand(ctx))
	return ledgerCmd
}

func newLedgerShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List every ledger row",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries, err := ledger.OpenReadOnly(cfg.Ledger.Path).Load()
			if err != nil {
				return err
			}
			if asJSON {
				if entries == nil {
					entries = []ledger.Entry{}
				}
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "Ledger %s is empty\n", cfg.Ledger.Path)
				return nil
			}
			rows := make([][]string, 0, len(entries))
			downloaded := 0
			for _, e := range entries {
				if e.Downloaded {
					downloaded++
				}
				rows = append(rows, []string{e.OrderID, e.DocType, yesNo(e.Downloaded), yesNo(e.Uploaded)})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Order", "Document", "Downloaded", "Uploaded"}, rows, nil))
			fmt.Fprintf(out, "%d rows, %d downloaded\n", len(entries), downloaded)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newLedgerGetCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "get ORDER DOCUMENT",
		Short: "Show the ledger row for one order and document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entry, ok, err := ledger.OpenReadOnly(cfg.Ledger.Path).Get(args[0], args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no ledger row for %s / %s", args[0], args[1])
			}
			if asJSON {
				return writeJSON(cmd, entry)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s / %s: downloaded=%s uploaded=%s\n",
				entry.OrderID, entry.DocType, yesNo(entry.Downloaded), yesNo(entry.Uploaded))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newLedgerClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the ledger so the next run starts from scratch",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear the ledger without --yes")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			led, err := ledger.Open(cfg.Ledger.Path)
			if err != nil {
				return err
			}
			defer led.Close()
			if err := led.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", cfg.Ledger.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the ledger should be deleted")
	return cmd
}

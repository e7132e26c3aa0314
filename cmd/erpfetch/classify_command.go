package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"erpfetch/internal/report"
)

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "classify [NAME...]",
		Short: "Show which page flow handles a report name",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dispatcher := report.NewDispatcher(cfg.Dispatch.Reports)
			out := cmd.OutOrStdout()

			if list {
				var rows [][]string
				for _, m := range dispatcher.KnownReports() {
					source := "built-in"
					if m.Custom {
						source = "config"
					}
					rows = append(rows, []string{m.Name, m.Variant.String(), source})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Report", "Flow", "Source"}, rows, nil))
				return nil
			}
			if len(args) == 0 {
				return errors.New("pass one or more report names, or --list")
			}

			rows := make([][]string, 0, len(args))
			for _, name := range args {
				v := dispatcher.Classify(name)
				route := "-"
				if path, ok := report.Route(v); ok {
					route = path
				}
				rows = append(rows, []string{strings.TrimSpace(name), v.String(), route})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Report", "Flow", "Page"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "List every known report name")
	return cmd
}

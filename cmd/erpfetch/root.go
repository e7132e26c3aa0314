package main

import (
	"github.com/spf13/cobra"

	"erpfetch/internal/browser"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWithLauncher(nil)
}

// newRootCommandWithLauncher builds the command tree. A nil launcher selects
// Playwright as configured.
func newRootCommandWithLauncher(launcher browser.Launcher) *cobra.Command {
	var (
		configFlag   string
		logLevelFlag string
		verboseFlag  bool
	)

	ctx := newCommandContext(&configFlag, &logLevelFlag, &verboseFlag)
	ctx.launcher = launcher

	rootCmd := &cobra.Command{
		Use:           "erpfetch",
		Short:         "Resumable ERP report downloader",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Shorthand for --log-level debug")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newLedgerCommand(ctx))
	rootCmd.AddCommand(newClassifyCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))

	return rootCmd
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"erpfetch/internal/config"
	"erpfetch/internal/journal"
	"erpfetch/internal/ledger"
	"erpfetch/internal/locators"
	"erpfetch/internal/logging"
	"erpfetch/internal/notifications"
	"erpfetch/internal/preflight"
	"erpfetch/internal/session"
	"erpfetch/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		worklistPath  string
		headless      bool
		skipCompleted bool
		orders        []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Download every report in the worklist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if worklistPath != "" {
				expanded, err := config.ExpandPath(worklistPath)
				if err != nil {
					return fmt.Errorf("resolve worklist path: %w", err)
				}
				cfg.Worklist.Path = expanded
			}
			if cmd.Flags().Changed("headless") {
				cfg.Session.Headless = headless
			}
			if cmd.Flags().Changed("skip-completed") {
				cfg.Ledger.SkipCompleted = skipCompleted
			}
			return runDownloads(cmd, ctx, cfg, orders)
		},
	}

	cmd.Flags().StringVarP(&worklistPath, "worklist", "w", "", "Worklist file (overrides worklist.path)")
	cmd.Flags().BoolVar(&headless, "headless", false, "Run the browser without a window")
	cmd.Flags().BoolVar(&skipCompleted, "skip-completed", false, "Skip rows the ledger already marks downloaded")
	cmd.Flags().StringSliceVar(&orders, "order", nil, "Only process these order ids (repeatable)")
	return cmd
}

func runDownloads(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, orders []string) error {
	for _, check := range []preflight.Result{preflight.CheckCredentials(cfg), preflight.CheckWorklist(cfg)} {
		if !check.Passed {
			return fmt.Errorf("%s: %s", strings.ToLower(check.Name), check.Detail)
		}
	}

	instance := flock.New(cfg.RunLockPath())
	locked, err := instance.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another erpfetch run is active (lock %s)", cfg.RunLockPath())
	}
	defer func() { _ = instance.Unlock() }()

	logger, err := ctx.newLogger(cmd, cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.PruneArtifacts(logger, cfg.Logging.RetentionDays, logging.RunArtifacts(cfg)...)

	runID := uuid.NewString()
	logger, runLog, err := logging.AttachRunLog(logger, cfg.Paths.LogDir, runID, time.Now())
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer runLog.Close()

	catalog, err := locators.Load(cfg.Diagnostics.LocatorsPath)
	if err != nil {
		return err
	}
	led, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer led.Close()

	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			logging.WarnWithContext(logger, "journal unavailable; attempts will not be recorded", "journal_open_failed",
				logging.Error(err),
				logging.ErrorHint("delete the journal file or set journal.enabled = false"),
			)
		} else {
			defer store.Close()
		}
	}

	ctrl := session.New(ctx.browserLauncher(cfg, logger), session.OptionsFromConfig(cfg), catalog.Login, logger)
	runner := workflow.New(cfg, workflow.Dependencies{
		Session:  ctrl,
		Ledger:   led,
		Journal:  store,
		Catalog:  catalog,
		Notifier: notifications.NewService(cfg),
	}, logger)

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	summary, runErr := runner.Run(signalCtx, workflow.Options{RunID: runID, Orders: orders})
	printSummary(cmd, summary)
	if errors.Is(runErr, context.Canceled) {
		fmt.Fprintln(cmd.OutOrStdout(), "Run interrupted; rerun to resume from the ledger.")
	}
	return runErr
}

func printSummary(cmd *cobra.Command, s workflow.Summary) {
	out := cmd.OutOrStdout()
	rows := [][]string{
		{"Orders", strconv.Itoa(s.Orders)},
		{"Items", strconv.Itoa(s.Items)},
		{"Downloaded", strconv.Itoa(s.Succeeded)},
		{"Not found", strconv.Itoa(s.NotFound)},
		{"Transient", strconv.Itoa(s.Transient)},
		{"Fatal", strconv.Itoa(s.Fatal)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Unrecognized", strconv.Itoa(s.Unrecognized)},
	}
	fmt.Fprintf(out, "Run %s finished in %s\n", s.RunID, s.Duration.Round(time.Second))
	fmt.Fprintln(out, renderTable(out, []string{"Outcome", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

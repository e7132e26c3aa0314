package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"erpfetch/internal/config"
	"erpfetch/internal/journal"
	"erpfetch/internal/ledger"
	"erpfetch/internal/locators"
	"erpfetch/internal/logging"
	"erpfetch/internal/notifications"
	"erpfetch/internal/report"
	"erpfetch/internal/services"
	"erpfetch/internal/session"
	"erpfetch/internal/textutil"
	"erpfetch/internal/worklist"
)

const component = "workflow"

// Dependencies are the collaborators a Runner drives. Journal and Notifier
// are optional.
type Dependencies struct {
	Session  *session.Controller
	Ledger   *ledger.Ledger
	Journal  *journal.Store
	Catalog  *locators.Catalog
	Notifier notifications.Service
}

// Options narrows a single run.
type Options struct {
	// RunID tags logs and journal rows; generated when empty.
	RunID string
	// Orders restricts the run to these order ids.
	Orders []string
	// Items replaces the configured worklist file.
	Items []report.WorkItem
}

// Runner executes download runs.
type Runner struct {
	cfg        *config.Config
	deps       Dependencies
	dispatcher *report.Dispatcher
	logger     *slog.Logger
	sleep      func(context.Context, time.Duration) error
}

// New constructs a Runner.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Runner {
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(cfg)
	}
	return &Runner{
		cfg:        cfg,
		deps:       deps,
		dispatcher: report.NewDispatcher(cfg.Dispatch.Reports),
		logger:     logging.NewComponentLogger(logger, component),
		sleep:      sleepContext,
	}
}

// Run processes the worklist once. The returned error is non-nil only for
// top-level faults; per-item failures are reflected in the Summary.
func (r *Runner) Run(ctx context.Context, opts Options) (summary Summary, err error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	summary.RunID = runID
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithRunID(r.logger, runID)
	started := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("run aborted by panic: %v", rec)
		}
		r.teardown(logger, runID, err)
		summary.Duration = time.Since(started)
		r.finish(ctx, logger, summary, err)
	}()

	r.logResumePoint(logger)

	items := opts.Items
	if items == nil {
		var stats worklist.Stats
		items, stats, err = worklist.Load(worklist.SourceFromConfig(r.cfg))
		if err != nil {
			return summary, services.Wrap(services.ErrConfiguration, component, "load worklist", r.cfg.Worklist.Path, err)
		}
		logger.Info("worklist loaded",
			logging.String("path", r.cfg.Worklist.Path),
			logging.Int("items", len(items)),
			logging.Int("dropped_empty", stats.Empty),
			logging.Int("dropped_duplicates", stats.Duplicates),
			logging.EventType("worklist_loaded"),
		)
	}
	items = worklist.FilterOrders(items, opts.Orders)
	orders := worklist.GroupByOrder(items)
	summary.Orders = len(orders)
	summary.Items = len(items)

	if err := r.deps.Notifier.NotifyRunStarted(ctx, len(orders), len(items)); err != nil {
		logger.Debug("run start notification failed", logging.Error(err))
	}
	if len(items) == 0 {
		logger.Info("nothing to download", logging.EventType("run_empty"))
		return summary, nil
	}

	if err := r.deps.Session.Start(ctx, r.cfg.Paths.DownloadRoot); err != nil {
		return summary, err
	}
	if err := r.login(ctx, logger); err != nil {
		return summary, err
	}
	h, err := r.newHandler(logger)
	if err != nil {
		return summary, err
	}

	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := r.processOrder(ctx, logger, runID, h, order, &summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (r *Runner) logResumePoint(logger *slog.Logger) {
	last, ok, err := r.deps.Ledger.Last()
	switch {
	case err != nil:
		logging.WarnWithContext(logger, "ledger unreadable; starting without resume point", "ledger_read_failed",
			logging.Error(err),
			logging.ErrorHint("check "+r.deps.Ledger.Path()),
		)
	case ok:
		logger.Info("resuming after last ledger entry",
			logging.OrderID(last.OrderID),
			logging.Report(last.DocType),
			logging.Bool("downloaded", last.Downloaded),
			logging.EventType("run_resume"),
		)
	default:
		logger.Info("ledger empty; starting fresh", logging.EventType("run_resume"))
	}
}

// teardown captures a final screenshot and closes the browser whatever the
// run's outcome.
func (r *Runner) teardown(logger *slog.Logger, runID string, runErr error) {
	if driver, err := r.deps.Session.Driver(); err == nil && r.cfg.Paths.ScreenshotsDir != "" {
		kind := "run_complete"
		if runErr != nil {
			kind = "run_failed"
		}
		shot := filepath.Join(r.cfg.Paths.ScreenshotsDir, textutil.SanitizeFileName(kind+"_"+runID+".png"))
		if err := driver.Screenshot(shot); err != nil {
			logger.Debug("final screenshot failed", logging.Error(err))
		} else {
			logger.Info("final screenshot saved", logging.String("path", shot),
				logging.EventType("screenshot_saved"))
		}
	}
	if err := r.deps.Session.End(); err != nil {
		logging.WarnWithContext(logger, "browser teardown failed", "session_end_failed",
			logging.Error(err),
			logging.ErrorHint("a browser process may need to be killed manually"),
		)
	}
}

func (r *Runner) finish(ctx context.Context, logger *slog.Logger, summary Summary, err error) {
	notifyCtx := context.WithoutCancel(ctx)
	attrs := []logging.Attr{
		logging.Int("orders", summary.Orders),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("not_found", summary.NotFound),
		logging.Int("transient", summary.Transient),
		logging.Int("fatal", summary.Fatal),
		logging.Int("skipped", summary.Skipped),
		logging.Int("unrecognized", summary.Unrecognized),
		logging.Duration("duration", summary.Duration),
	}
	if err != nil {
		label := "run"
		if errors.Is(err, context.Canceled) {
			label = "run (cancelled)"
		}
		attrs = append(attrs, logging.Error(err), logging.ErrorHint("see the run_failed screenshot and the log file"))
		logging.ErrorWithContext(logger, "run aborted", "run_failed", attrs...)
		if nerr := r.deps.Notifier.NotifyError(notifyCtx, err, label); nerr != nil {
			logger.Debug("failure notification failed", logging.Error(nerr))
		}
		return
	}
	attrs = append(attrs, logging.EventType("run_complete"))
	logger.Info("run complete", logging.Args(attrs...)...)
	if nerr := r.deps.Notifier.NotifyRunCompleted(notifyCtx, summary.stats()); nerr != nil {
		logger.Debug("completion notification failed", logging.Error(nerr))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"erpfetch/internal/browser"
	"erpfetch/internal/handlers"
	"erpfetch/internal/journal"
	"erpfetch/internal/logging"
	"erpfetch/internal/report"
	"erpfetch/internal/services"
	"erpfetch/internal/worklist"
)

// processOrder runs every item of one order and waits for its downloads. It
// returns an error only when the run must stop; an order whose download
// directory cannot be prepared is failed on its own.
func (r *Runner) processOrder(ctx context.Context, logger *slog.Logger, runID string, h *handlers.Handler, order worklist.Order, summary *Summary) error {
	ctx = services.WithOrderID(ctx, order.OrderID)
	orderLogger := logging.WithContext(ctx, logger)

	driver, err := r.deps.Session.Driver()
	if err != nil {
		return err
	}
	dir := r.cfg.OrderDownloadDir(order.OrderID)
	if err := prepareOrderDir(driver, dir); err != nil {
		if errors.Is(err, browser.ErrClosed) {
			return services.Wrap(services.ErrExternalTool, component, "prepare order", "redirect downloads", err)
		}
		r.failOrder(ctx, orderLogger, runID, order, summary, err)
		return nil
	}
	orderLogger.Info("processing order",
		logging.Int("items", len(order.Items)),
		logging.String("download_dir", dir),
		logging.EventType("order_started"),
	)

	for _, item := range order.Items {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.processItem(ctx, orderLogger, runID, h, item, dir, summary)
	}

	saved, err := driver.AwaitDownloads(ctx, r.cfg.Timeouts.Download())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logging.WarnWithContext(orderLogger, "downloads did not finish", "downloads_incomplete",
			logging.Error(err),
			logging.Int("saved", len(saved)),
			logging.ErrorHint("raise timeouts.download_seconds for large reports"),
			logging.Impact("some files may be missing from the order directory"),
		)
		return nil
	}
	orderLogger.Info("order complete",
		logging.Int("files", len(saved)),
		logging.EventType("order_complete"),
	)
	return nil
}

func prepareOrderDir(driver browser.Driver, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create download directory %s: %w", dir, err)
	}
	if err := driver.SetDownloadDir(dir); err != nil {
		return fmt.Errorf("redirect downloads to %s: %w", dir, err)
	}
	return nil
}

// failOrder records every recognized item of order as fatal without touching
// the browser or the ledger.
func (r *Runner) failOrder(ctx context.Context, logger *slog.Logger, runID string, order worklist.Order, summary *Summary, cause error) {
	logging.ErrorWithContext(logger, "order skipped; download directory unavailable", "order_failed",
		logging.Error(cause),
		logging.Int("items", len(order.Items)),
		logging.ErrorHint("check paths.download_root for a stray file or missing permissions"),
		logging.Impact("the order's reports are retried on the next run"),
	)
	now := time.Now()
	for _, item := range order.Items {
		variant := r.dispatcher.Resolve(item, r.cfg.Dispatch.PageFallback)
		if variant == report.Unrecognized {
			summary.Unrecognized++
			continue
		}
		out := report.Fatal("prepare order: %v", cause)
		summary.tally(out)
		r.record(ctx, logger, journal.Attempt{
			RunID:      runID,
			OrderID:    item.OrderID,
			ReportName: item.ReportName,
			ReportType: item.ReportType,
			Variant:    variant,
			Status:     out.Status,
			Detail:     out.Detail,
			StartedAt:  now,
		})
	}
}

func (r *Runner) processItem(ctx context.Context, logger *slog.Logger, runID string, h *handlers.Handler, item report.WorkItem, dir string, summary *Summary) {
	ctx = services.WithReport(ctx, item.ReportName)
	itemLogger := logging.WithContext(ctx, logger)

	variant := r.dispatcher.Resolve(item, r.cfg.Dispatch.PageFallback)
	if variant == report.Unrecognized {
		summary.Unrecognized++
		logging.WarnWithContext(itemLogger, "report name not recognized; skipping", "report_unrecognized",
			logging.Int("row", item.Row),
			logging.ErrorHint("add the name under [dispatch.reports] in config.toml"),
			logging.Impact("no ledger row is written for this report"),
		)
		return
	}

	existing, found, err := r.deps.Ledger.Get(item.OrderID, item.ReportName)
	if err != nil {
		logging.WarnWithContext(itemLogger, "ledger lookup failed", "ledger_read_failed",
			logging.Error(err),
			logging.ErrorHint("check the ledger file"),
		)
	}
	if r.cfg.Ledger.SkipCompleted && found && existing.Downloaded {
		summary.Skipped++
		itemLogger.Info("already downloaded; skipping",
			logging.EventType("item_skipped"))
		return
	}

	started := time.Now()
	var out report.Outcome
	if err := r.deps.Ledger.Upsert(item.OrderID, item.ReportName, false, found && existing.Uploaded); err != nil {
		out = report.Fatal("pending ledger write: %v", err)
		logging.ErrorWithContext(itemLogger, "pending ledger write failed", "ledger_write_failed",
			logging.Error(err),
			logging.ErrorHint("check that the ledger file is writable"),
		)
	} else {
		out = h.Download(ctx, handlers.Request{
			Variant:     variant,
			ReportName:  item.ReportName,
			ReportType:  item.ReportType,
			OrderID:     item.OrderID,
			DownloadDir: dir,
		})
	}
	summary.tally(out)
	r.record(ctx, itemLogger, journal.Attempt{
		RunID:      runID,
		OrderID:    item.OrderID,
		ReportName: item.ReportName,
		ReportType: item.ReportType,
		Variant:    variant,
		Status:     out.Status,
		Detail:     out.Detail,
		StartedAt:  started,
		Duration:   time.Since(started),
	})
}

func (r *Runner) record(ctx context.Context, logger *slog.Logger, a journal.Attempt) {
	if r.deps.Journal == nil {
		return
	}
	if _, err := r.deps.Journal.Record(context.WithoutCancel(ctx), a); err != nil {
		logger.Debug("journal write failed", logging.Error(err),
			logging.String("attempt", fmt.Sprintf("%s/%s", a.OrderID, a.ReportName)))
	}
}

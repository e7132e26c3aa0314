package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"erpfetch/internal/browser"
	"erpfetch/internal/config"
	"erpfetch/internal/locators"
	"erpfetch/internal/logging"
	"erpfetch/internal/recovery"
	"erpfetch/internal/report"
	"erpfetch/internal/services"
	"erpfetch/internal/textutil"
)

const component = "handlers"

// Step names a position in the page-flow state machine.
type Step string

const (
	StepEnsurePage        Step = "ensure_page"
	StepTabOpened         Step = "tab_opened"
	StepOrderSearched     Step = "order_searched"
	StepOrderSelected     Step = "order_selected"
	StepDialogOpened      Step = "dialog_opened"
	StepDocumentsSelected Step = "documents_selected"
	StepDownloadTriggered Step = "download_triggered"
	StepDialogClosed      Step = "dialog_closed"
	StepDone              Step = "done"
)

// Request describes one report download.
type Request struct {
	Variant     report.Variant
	ReportName  string
	ReportType  report.ReportType
	OrderID     string
	DownloadDir string
}

// Ledger records a completed download trigger.
type Ledger interface {
	SetDownloaded(orderID, docType string, downloaded bool) error
}

// Options holds the handler timeouts and diagnostic settings.
type Options struct {
	BaseURL        string
	Element        time.Duration
	SearchResults  time.Duration
	Dialog         time.Duration
	PageLoad       time.Duration
	Settle         time.Duration
	ScreenshotsDir string
	CaptureHTML    bool
}

// OptionsFromConfig extracts handler options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:        cfg.ERP.BaseURL,
		Element:        cfg.Timeouts.Element(),
		SearchResults:  cfg.Timeouts.SearchResults(),
		Dialog:         cfg.Timeouts.Dialog(),
		PageLoad:       cfg.Timeouts.PageLoad(),
		Settle:         cfg.Timeouts.Settle(),
		ScreenshotsDir: cfg.Paths.ScreenshotsDir,
		CaptureHTML:    cfg.Diagnostics.CaptureHTML,
	}
}

// Handler runs page flows against one browser driver.
type Handler struct {
	driver  browser.Driver
	rec     recovery.Primitives
	catalog *locators.Catalog
	ledger  Ledger
	opts    Options
	logger  *slog.Logger
}

// New constructs a Handler.
func New(driver browser.Driver, rec recovery.Primitives, catalog *locators.Catalog, ledger Ledger, opts Options, logger *slog.Logger) *Handler {
	return &Handler{
		driver:  driver,
		rec:     rec,
		catalog: catalog,
		ledger:  ledger,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, component),
	}
}

// Download performs the page flow for req. A stale dialog context triggers
// one page reload and a second run of the whole flow.
func (h *Handler) Download(ctx context.Context, req Request) report.Outcome {
	ctx = services.WithOrderID(ctx, req.OrderID)
	ctx = services.WithReport(ctx, req.ReportName)
	ctx = services.WithVariant(ctx, req.Variant.String())
	logger := logging.WithContext(ctx, h.logger)

	var (
		step Step
		err  error
	)
	for attempt := 1; attempt <= 2; attempt++ {
		step, err = h.runOnce(ctx, logger, req)
		if err == nil {
			logger.Info("report download triggered",
				logging.String("report_type", string(req.ReportType)),
				logging.String("download_dir", req.DownloadDir),
				logging.EventType("report_downloaded"),
			)
			return report.Success(fmt.Sprintf("%s download triggered", req.Variant))
		}
		if attempt == 1 && errors.Is(err, services.ErrStaleDialog) {
			logging.WarnWithContext(logger, "dialog context stale; reloading and rerunning", "dialog_stale",
				logging.State(string(step)),
				logging.Impact("handler reruns once from the start"),
			)
			if resetErr := h.rec.ResetDialogContext(ctx); resetErr != nil {
				err = errors.Join(err, resetErr)
				break
			}
			continue
		}
		break
	}

	out := services.Outcome(err)
	out.Detail = fmt.Sprintf("%s: %s", step, out.Detail)
	attrs := []logging.Attr{
		logging.State(string(step)),
		logging.String("status", out.Status.String()),
		logging.Error(err),
	}
	if out.Status == report.StatusItemNotFound {
		attrs = append(attrs, logging.EventType("order_not_found"))
		logger.Info("order not found; skipping report", logging.Args(attrs...)...)
	} else {
		attrs = append(attrs, logging.ErrorHint(errorHint(out.Status)))
		logging.ErrorWithContext(logger, "report download failed", "report_failed", attrs...)
	}
	h.captureDiagnostics(logger, req, failureKind(step, out.Status))
	return out
}

func (h *Handler) runOnce(ctx context.Context, logger *slog.Logger, req Request) (step Step, err error) {
	step = StepEnsurePage
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during %s: %v", step, r)
		}
	}()

	j, err := h.newJob(req, logger)
	if err != nil {
		return step, err
	}
	for _, s := range j.flow {
		step = s.name
		if err := ctx.Err(); err != nil {
			return step, err
		}
		logger.Debug("handler step", logging.State(string(step)),
			logging.EventType("handler_step"))
		if err := s.run(ctx, j); err != nil {
			return step, err
		}
	}
	return StepDone, nil
}

func (h *Handler) captureDiagnostics(logger *slog.Logger, req Request, kind string) {
	dir := h.opts.ScreenshotsDir
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Debug("screenshot dir unavailable", logging.Error(err))
		return
	}
	shot := filepath.Join(dir, textutil.ArtifactName(kind, req.OrderID, req.ReportName, ".png"))
	if err := h.driver.Screenshot(shot); err != nil {
		logger.Debug("screenshot failed", logging.Error(err))
	} else {
		logger.Info("failure screenshot saved", logging.String("path", shot),
			logging.EventType("screenshot_saved"))
	}
	if !h.opts.CaptureHTML {
		return
	}
	html, err := h.driver.Content()
	if err != nil {
		logger.Debug("page capture failed", logging.Error(err))
		return
	}
	page := filepath.Join(dir, textutil.ArtifactName(kind, req.OrderID, req.ReportName, ".html"))
	if err := os.WriteFile(page, []byte(html), 0o644); err != nil {
		logger.Debug("page capture write failed", logging.Error(err))
	}
}

func failureKind(step Step, status report.Status) string {
	if status == report.StatusItemNotFound {
		return "not_found"
	}
	return string(step) + "_failed"
}

func errorHint(status report.Status) string {
	switch status {
	case report.StatusTransient:
		return "the page was slow or covered; the report is retried on the next run"
	default:
		return "inspect the failure screenshot and the locator catalog"
	}
}

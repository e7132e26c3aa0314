package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"erpfetch/internal/browser"
	"erpfetch/internal/locators"
	"erpfetch/internal/logging"
	"erpfetch/internal/report"
	"erpfetch/internal/services"
)

type step struct {
	name Step
	run  func(ctx context.Context, j *job) error
}

// job carries the per-request state through the flow.
type job struct {
	h       *Handler
	req     Request
	page    locators.Page
	vars    locators.Vars
	pageURL string
	flow    []step
	logger  *slog.Logger

	// ticked holds checkboxes selected in the print dialog so they can be
	// cleared again once the download is triggered.
	ticked []string
}

func (h *Handler) newJob(req Request, logger *slog.Logger) (*job, error) {
	page, ok := h.catalog.Page(req.Variant)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, component, "dispatch",
			fmt.Sprintf("no page flow for variant %s", req.Variant), nil)
	}
	pageURL, err := report.PageURL(h.opts.BaseURL, req.Variant)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "dispatch", "page url", err)
	}
	j := &job{
		h:       h,
		req:     req,
		page:    page,
		pageURL: pageURL,
		logger:  logger,
		vars: locators.Vars{
			Order:      req.OrderID,
			Report:     req.ReportName,
			CheckboxID: report.CheckboxID(req.ReportName),
		},
	}
	flow, err := flowFor(req)
	if err != nil {
		return nil, err
	}
	j.flow = flow
	return j, nil
}

func (j *job) driver() browser.Driver { return j.h.driver }

func (j *job) common() locators.Common { return j.h.catalog.Common }

func (j *job) sel(selector string) string { return j.vars.Expand(selector) }

// pause lets the ERP's ajax handlers catch up between steps.
func (j *job) pause(ctx context.Context) error {
	if j.h.opts.Settle <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(j.h.opts.Settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// fail tags err with the outcome marker matching its cause.
func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	if hasMarker(err) {
		return err
	}
	if browser.IsTimeout(err) {
		return services.Wrap(services.ErrTimeout, component, op, "", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func hasMarker(err error) bool {
	for _, m := range []error{
		services.ErrTimeout, services.ErrTransient, services.ErrNotFound, services.ErrStaleDialog,
		services.ErrClickIntercepted, services.ErrLedger, services.ErrValidation, services.ErrConfiguration,
	} {
		if errors.Is(err, m) {
			return true
		}
	}
	return false
}

func (j *job) waitVisible(ctx context.Context, selector string, timeout time.Duration, op string) error {
	return fail(op, j.driver().WaitVisible(ctx, selector, timeout))
}

func (j *job) click(ctx context.Context, selector, op string) error {
	if err := j.waitVisible(ctx, selector, j.h.opts.Element, op); err != nil {
		return err
	}
	return fail(op, j.h.rec.Click(ctx, selector, browser.ClickOptions{Timeout: j.h.opts.Element}))
}

// check ticks selector unless it is already ticked and reports whether it
// changed state.
func (j *job) check(ctx context.Context, selector, op string) (bool, error) {
	checked, err := j.driver().IsChecked(selector)
	if err != nil {
		return false, fail(op, err)
	}
	if checked {
		return false, nil
	}
	if err := j.h.rec.Click(ctx, selector, browser.ClickOptions{Timeout: j.h.opts.Element}); err != nil {
		return false, fail(op, err)
	}
	return true, nil
}

// ensurePage navigates to the variant page when the browser is elsewhere and
// hides notification overlays.
func ensurePage(ctx context.Context, j *job) error {
	current := j.driver().URL()
	if samePage(current, j.pageURL) {
		return nil
	}
	j.logger.Debug("navigating to variant page", logging.String("from", current), logging.String("to", j.pageURL))
	if err := j.driver().Navigate(ctx, j.pageURL, j.h.opts.PageLoad); err != nil {
		return fail("navigate", err)
	}
	if err := j.h.rec.SuppressOverlays(ctx); err != nil {
		j.logger.Debug("overlay suppression failed", logging.Error(err))
	}
	return j.pause(ctx)
}

// samePage compares scheme, host and path case-insensitively, ignoring query
// and fragment.
func samePage(current, target string) bool {
	cu, err1 := url.Parse(current)
	tu, err2 := url.Parse(target)
	if err1 != nil || err2 != nil {
		return current == target
	}
	return strings.EqualFold(cu.Scheme, tu.Scheme) &&
		strings.EqualFold(cu.Host, tu.Host) &&
		strings.EqualFold(strings.TrimRight(cu.Path, "/"), strings.TrimRight(tu.Path, "/"))
}

func openTab(ctx context.Context, j *job) error {
	if j.page.Tab == "" {
		return nil
	}
	if err := j.click(ctx, j.page.Tab, "open tab"); err != nil {
		return err
	}
	return j.pause(ctx)
}

func searchOrder(ctx context.Context, j *job) error {
	d := j.driver()
	if err := j.waitVisible(ctx, j.page.Search, j.h.opts.Element, "search field"); err != nil {
		return err
	}
	if err := j.h.rec.ClearInput(ctx, j.page.Search); err != nil {
		return fail("clear search", err)
	}
	if err := d.Fill(ctx, j.page.Search, j.req.OrderID, j.h.opts.Element); err != nil {
		return fail("type order id", err)
	}
	if err := d.Press(ctx, j.page.Search, "Enter", j.h.opts.Element); err != nil {
		return fail("submit search", err)
	}
	if err := d.WaitIdle(ctx, j.h.opts.PageLoad); err != nil {
		j.logger.Debug("results grid did not go idle", logging.Error(err))
	}
	return j.pause(ctx)
}

// waitOrderCell waits for the exact-match order cell. Absence is
// ErrNotFound, which the orchestrator treats as a skip.
func (j *job) waitOrderCell(ctx context.Context) (string, error) {
	cell := j.sel(j.common().OrderCell)
	err := j.driver().WaitVisible(ctx, cell, j.h.opts.SearchResults)
	if err == nil {
		return cell, nil
	}
	if browser.IsTimeout(err) {
		return "", services.Wrap(services.ErrNotFound, component, "select order",
			fmt.Sprintf("order %s not in results after %s", j.req.OrderID, j.h.opts.SearchResults), err)
	}
	return "", fail("select order", err)
}

// selectOrderRow ticks the checkbox on the order's grid row.
func selectOrderRow(ctx context.Context, j *job) error {
	cell, err := j.waitOrderCell(ctx)
	if err != nil {
		return err
	}
	row := browser.Chain(cell, j.common().RowCheckbox)
	if _, err := j.check(ctx, row, "select order row"); err != nil {
		return err
	}
	return j.pause(ctx)
}

// clickOrderCell selects the order by clicking its cell.
func clickOrderCell(ctx context.Context, j *job) error {
	cell, err := j.waitOrderCell(ctx)
	if err != nil {
		return err
	}
	if err := j.h.rec.Click(ctx, cell, browser.ClickOptions{Timeout: j.h.opts.Element}); err != nil {
		return fail("click order", err)
	}
	return j.pause(ctx)
}

// ensureDialogContext reports ErrStaleDialog when the print dialog's reports
// container has dropped out of the DOM.
func ensureDialogContext(j *job) error {
	n, err := j.driver().Count(j.common().ReportsContainer)
	if err != nil {
		return fail("dialog context", err)
	}
	if n == 0 {
		return services.Wrap(services.ErrStaleDialog, component, "dialog context",
			j.common().ReportsContainer+" missing", nil)
	}
	return nil
}

// openPrintDialog clicks the standard or new print button and waits for the
// print dialog.
func openPrintDialog(ctx context.Context, j *job) error {
	if err := ensureDialogContext(j); err != nil {
		return err
	}
	button := j.page.StandardButton
	if j.req.ReportType == report.TypeNew && j.page.NewButton != "" {
		button = j.page.NewButton
	}
	if err := j.click(ctx, button, "open print dialog"); err != nil {
		return err
	}
	if j.page.Dialog != "" {
		if err := j.waitVisible(ctx, j.page.Dialog, j.h.opts.Dialog, "print dialog"); err != nil {
			return err
		}
	}
	return j.pause(ctx)
}

// selectDocumentGroup ticks every checkbox in the derived document group.
func selectDocumentGroup(ctx context.Context, j *job) error {
	anchor := j.sel(j.common().DocCheckbox)
	if err := j.waitVisible(ctx, anchor, j.h.opts.Dialog, "document checkbox "+j.vars.CheckboxID); err != nil {
		return err
	}
	group := j.sel(j.common().DocGroup)
	n, err := j.driver().Count(group)
	if err != nil {
		return fail("document group", err)
	}
	if n == 0 {
		// No enclosing group; the anchor checkbox is the whole selection.
		if _, err := j.check(ctx, anchor, "document checkbox"); err != nil {
			return err
		}
		j.ticked = append(j.ticked, anchor)
		return nil
	}
	for i := 0; i < n; i++ {
		cb := browser.Nth(group, i)
		changed, err := j.check(ctx, cb, "document checkbox")
		if err != nil {
			logging.WarnWithContext(j.logger, "could not tick document checkbox", "checkbox_failed",
				logging.String("selector", cb),
				logging.Error(err),
				logging.Impact("the download may miss one document"),
			)
			continue
		}
		if changed {
			j.ticked = append(j.ticked, cb)
		}
	}
	return j.pause(ctx)
}

// confirmDownload clicks the dialog's structural confirm button, announcing
// the download it starts, and records the trigger in the ledger.
func confirmDownload(ctx context.Context, j *job) error {
	confirm := j.common().Confirm
	if err := j.waitVisible(ctx, confirm, j.h.opts.Dialog, "confirm button"); err != nil {
		return err
	}
	err := j.driver().ExpectDownload(func() error {
		return j.h.rec.Click(ctx, confirm, browser.ClickOptions{Timeout: j.h.opts.Element})
	})
	if err != nil {
		return fail("confirm download", err)
	}
	if err := j.markDownloaded(); err != nil {
		return err
	}
	j.clearTicked(ctx)
	return j.pause(ctx)
}

func (j *job) markDownloaded() error {
	if j.h.ledger == nil {
		return nil
	}
	if err := j.h.ledger.SetDownloaded(j.req.OrderID, j.req.ReportName, true); err != nil {
		return services.Wrap(services.ErrLedger, component, "mark downloaded", j.req.OrderID+"/"+j.req.ReportName, err)
	}
	return nil
}

// clearTicked leaves the dialog's checkboxes as it found them for the next report.
func (j *job) clearTicked(ctx context.Context) {
	for _, cb := range j.ticked {
		checked, err := j.driver().IsChecked(cb)
		if err != nil || !checked {
			continue
		}
		if err := j.h.rec.Click(ctx, cb, browser.ClickOptions{Timeout: j.h.opts.Element}); err != nil {
			j.logger.Debug("could not clear checkbox", logging.String("selector", cb), logging.Error(err))
		}
	}
	j.ticked = nil
}

func closePrintDialog(ctx context.Context, j *job) error {
	if err := j.h.rec.CloseDialog(ctx, j.common().Close); err != nil {
		return fail("close dialog", err)
	}
	return j.pause(ctx)
}

package handlers

import (
	"context"
	"fmt"
	"net/url"

	"erpfetch/internal/browser"
	"erpfetch/internal/logging"
	"erpfetch/internal/report"
	"erpfetch/internal/services"
)

// flowFor assembles the step sequence for a request's variant and report type.
func flowFor(req Request) ([]step, error) {
	switch req.Variant {
	case report.Inbound:
		return printDialogFlow(selectOrderRow), nil
	case report.Settlement:
		if req.ReportType == report.TypeNew {
			return settlementModalFlow(), nil
		}
		return printDialogFlow(selectOrderRow), nil
	case report.Transaction:
		if req.ReportType != report.TypeStandard {
			return nil, services.Wrap(services.ErrValidation, component, "dispatch",
				"transaction reports support only the standard print flow", nil)
		}
		return transactionFlow(), nil
	case report.Audit:
		return auditFlow(), nil
	default:
		return nil, services.Wrap(services.ErrValidation, component, "dispatch",
			fmt.Sprintf("no page flow for variant %s", req.Variant), nil)
	}
}

// printDialogFlow is the checkbox-group flow shared by Inbound and standard
// Settlement reports.
func printDialogFlow(selectOrder func(context.Context, *job) error) []step {
	return []step{
		{StepEnsurePage, ensurePage},
		{StepTabOpened, openTab},
		{StepOrderSearched, searchOrder},
		{StepOrderSelected, selectOrder},
		{StepDialogOpened, openPrintDialog},
		{StepDocumentsSelected, selectDocumentGroup},
		{StepDownloadTriggered, confirmDownload},
		{StepDialogClosed, closePrintDialog},
	}
}

// settlementModalFlow picks the report by name from the reporting station
// modal instead of ticking dialog checkboxes.
func settlementModalFlow() []step {
	return []step{
		{StepEnsurePage, ensurePage},
		{StepTabOpened, openTab},
		{StepOrderSearched, searchOrder},
		{StepOrderSelected, selectOrderRow},
		{StepDialogOpened, openReportModal},
		{StepDocumentsSelected, pickModalReport},
		{StepDownloadTriggered, triggerModalDownload},
		{StepDialogClosed, closeReportModal},
	}
}

func openReportModal(ctx context.Context, j *job) error {
	if err := j.click(ctx, j.page.NewButton, "open report modal"); err != nil {
		return err
	}
	if err := j.waitVisible(ctx, j.page.Modal, j.h.opts.Dialog, "report modal"); err != nil {
		return err
	}
	return j.pause(ctx)
}

func pickModalReport(ctx context.Context, j *job) error {
	d := j.driver()
	search := j.page.ModalSearch
	if err := j.waitVisible(ctx, search, j.h.opts.Dialog, "modal search"); err != nil {
		return err
	}
	if err := j.h.rec.ClearInput(ctx, search); err != nil {
		return fail("clear modal search", err)
	}
	if err := d.Fill(ctx, search, j.req.ReportName, j.h.opts.Element); err != nil {
		return fail("type report name", err)
	}
	if err := d.Press(ctx, search, "Enter", j.h.opts.Element); err != nil {
		return fail("submit modal search", err)
	}
	if err := j.pause(ctx); err != nil {
		return err
	}

	item := browser.Nth(j.sel(j.page.ReportItem), 0)
	if err := d.WaitVisible(ctx, item, j.h.opts.Dialog); err != nil {
		if browser.IsTimeout(err) {
			return services.Wrap(services.ErrNotFound, component, "pick report",
				fmt.Sprintf("%q not offered by the report modal", j.req.ReportName), err)
		}
		return fail("pick report", err)
	}
	if err := j.h.rec.Click(ctx, item, browser.ClickOptions{Timeout: j.h.opts.Element}); err != nil {
		return fail("pick report", err)
	}
	return j.pause(ctx)
}

// triggerModalDownload dispatches the click from script; the modal's
// download button sits under an animated overlay.
func triggerModalDownload(ctx context.Context, j *job) error {
	button := browser.Nth(j.page.ModalDownload, 0)
	if err := j.waitVisible(ctx, button, j.h.opts.Dialog, "modal download button"); err != nil {
		return err
	}
	err := j.driver().ExpectDownload(func() error {
		if err := j.driver().ScriptClick(button); err != nil {
			j.logger.Debug("scripted download click failed; using pointer click", logging.Error(err))
			return j.h.rec.Click(ctx, button, browser.ClickOptions{Timeout: j.h.opts.Element})
		}
		return nil
	})
	if err != nil {
		return fail("modal download", err)
	}
	if err := j.markDownloaded(); err != nil {
		return err
	}
	return j.pause(ctx)
}

func closeReportModal(ctx context.Context, j *job) error {
	if err := j.h.rec.CloseDialog(ctx, browser.Nth(j.page.ModalClose, 0)); err != nil {
		return fail("close report modal", err)
	}
	return j.pause(ctx)
}

// transactionFlow opens the order's detail page through the popup its grid
// cell spawns, then prints the first invoice with the AR report.
func transactionFlow() []step {
	return []step{
		{StepEnsurePage, ensurePage},
		{StepOrderSearched, searchOrder},
		{StepOrderSelected, followOrderPopup},
		{StepDialogOpened, openInvoiceDialog},
		{StepDocumentsSelected, selectARReport},
		{StepDownloadTriggered, confirmDownload},
		{StepDialogClosed, closePrintDialog},
	}
}

// followOrderPopup double-clicks the order cell, captures the URL of the
// window it opens, closes that window and loads the URL in the main tab.
func followOrderPopup(ctx context.Context, j *job) error {
	cell, err := j.waitOrderCell(ctx)
	if err != nil {
		return err
	}
	d := j.driver()
	target, err := d.FollowPopup(ctx, func() error {
		return j.h.rec.Click(ctx, cell, browser.ClickOptions{Double: true, Timeout: j.h.opts.Element})
	}, j.h.opts.PageLoad)
	if err != nil {
		return fail("order popup", err)
	}
	j.logger.Debug("following order popup", logging.String("url", target))
	if err := d.Navigate(ctx, target, j.h.opts.PageLoad); err != nil {
		return fail("open order detail", err)
	}
	return j.pause(ctx)
}

func openInvoiceDialog(ctx context.Context, j *job) error {
	d := j.driver()
	history := j.page.SalesOrderHistory
	if err := j.waitVisible(ctx, history, j.h.opts.SearchResults, "sales order history"); err != nil {
		return err
	}
	href, err := d.Attribute(history, "href")
	if err != nil {
		return fail("sales order history link", err)
	}
	link, err := resolveLink(d.URL(), href)
	if err != nil {
		return services.Wrap(services.ErrValidation, component, "sales order history link", href, err)
	}
	if err := d.Navigate(ctx, link, j.h.opts.PageLoad); err != nil {
		return fail("open sales order history", err)
	}
	if err := j.pause(ctx); err != nil {
		return err
	}
	if err := j.click(ctx, j.page.InvoicesTab, "invoices tab"); err != nil {
		return err
	}
	if err := j.waitVisible(ctx, j.page.InvoiceCheckbox, j.h.opts.Element, "invoice checkbox"); err != nil {
		return err
	}
	if _, err := j.check(ctx, j.page.InvoiceCheckbox, "invoice checkbox"); err != nil {
		return err
	}
	if err := j.click(ctx, j.page.StandardButton, "open print dialog"); err != nil {
		return err
	}
	if j.page.Dialog != "" {
		if err := j.waitVisible(ctx, j.page.Dialog, j.h.opts.Dialog, "print dialog"); err != nil {
			return err
		}
	}
	return j.pause(ctx)
}

func selectARReport(ctx context.Context, j *job) error {
	ar := j.page.ARCheckbox
	if ar == "" {
		return nil
	}
	if err := j.waitVisible(ctx, ar, j.h.opts.Dialog, "AR report checkbox"); err != nil {
		return err
	}
	if changed, err := j.check(ctx, ar, "AR report checkbox"); err != nil {
		return err
	} else if changed {
		j.ticked = append(j.ticked, ar)
	}
	return j.pause(ctx)
}

func resolveLink(base, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}

// auditFlow selects the order by clicking its cell and prints the fixed
// audit report and include-drives checkbox pair.
func auditFlow() []step {
	return []step{
		{StepEnsurePage, ensurePage},
		{StepOrderSearched, searchOrder},
		{StepOrderSelected, clickOrderCell},
		{StepDialogOpened, openAuditDialog},
		{StepDocumentsSelected, selectAuditPair},
		{StepDownloadTriggered, confirmDownload},
		{StepDialogClosed, closePrintDialog},
	}
}

func openAuditDialog(ctx context.Context, j *job) error {
	if err := j.click(ctx, j.page.PrintButton, "audit print button"); err != nil {
		return err
	}
	if j.page.Dialog != "" {
		if err := j.waitVisible(ctx, j.page.Dialog, j.h.opts.Dialog, "print dialog"); err != nil {
			return err
		}
	}
	return j.pause(ctx)
}

func selectAuditPair(ctx context.Context, j *job) error {
	for _, cb := range []string{j.page.AuditCheckbox, j.page.IncludeDrivesCheckbox} {
		if cb == "" {
			continue
		}
		if err := j.waitVisible(ctx, cb, j.h.opts.Dialog, "audit checkbox"); err != nil {
			return err
		}
		if _, err := j.check(ctx, cb, "audit checkbox"); err != nil {
			return err
		}
	}
	return j.pause(ctx)
}

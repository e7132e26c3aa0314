package browsertest

import (
	"fmt"
	"sync"

	"erpfetch/internal/browser"
	"erpfetch/internal/locators"
	"erpfetch/internal/report"
)

// ERP scripts a Driver to behave like the ERP's list pages for a fixed set
// of orders and report names. Every click on a confirm or modal download
// button emits one download.
type ERP struct {
	Catalog *locators.Catalog
	// Orders present in every search result grid.
	Orders []string
	// Reports whose dialog checkboxes and modal entries exist.
	Reports []string
	// Title is the document title after navigation; defaults to "Dashboard".
	Title string
	// PopupURL is the detail page opened from a transaction grid cell.
	PopupURL string
	// StaleDialogs is the number of page loads during which the print
	// dialog's reports container is missing.
	StaleDialogs int

	mu        sync.Mutex
	downloads int
}

// Install registers the ERP's elements on d and rebuilds them after every
// navigation.
func (e *ERP) Install(d *Driver) {
	if d.PopupURL == "" {
		d.PopupURL = e.PopupURL
	}
	e.populate(d)
	d.OnNavigate = func(d *Driver, _ string) { e.populate(d) }
}

// Downloads returns how many downloads the fake has emitted.
func (e *ERP) Downloads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.downloads
}

func (e *ERP) emit(d *Driver) {
	e.mu.Lock()
	e.downloads++
	n := e.downloads
	e.mu.Unlock()
	d.EmitDownload(fmt.Sprintf("report-%d.pdf", n))
}

func (e *ERP) populate(d *Driver) {
	c := e.Catalog
	title := e.Title
	if title == "" {
		title = "Dashboard"
	}
	d.SetTitle(title)
	d.Show(c.Login.Email)
	d.Show(c.Login.Password)

	e.mu.Lock()
	stale := e.StaleDialogs > 0
	if stale {
		e.StaleDialogs--
	}
	e.mu.Unlock()
	if stale {
		d.Remove(c.Common.ReportsContainer)
	} else {
		d.Show(c.Common.ReportsContainer)
	}
	d.Add(c.Common.Confirm).OnClick = e.emit
	d.Show(c.Common.Close)

	for _, v := range report.Variants() {
		page, _ := c.Page(v)
		for _, sel := range []string{page.Tab, page.Search, page.ModalSearch, page.SalesOrderHistory,
			page.InvoicesTab, page.InvoiceCheckbox, page.ARCheckbox, page.AuditCheckbox, page.IncludeDrivesCheckbox} {
			if sel != "" {
				d.Add(sel)
			}
		}
		if page.Dialog != "" {
			d.Hide(page.Dialog)
			if d.Element(page.Dialog) == nil {
				d.Add(page.Dialog).Visible = false
			}
		}
		for _, button := range []string{page.StandardButton, page.PrintButton} {
			if button == "" {
				continue
			}
			dialog := page.Dialog
			d.Add(button).OnClick = func(d *Driver) { d.Show(dialog) }
		}
		if page.Modal != "" {
			d.Add(page.Modal).Visible = false
			modal := page.Modal
			if page.NewButton != page.StandardButton {
				d.Add(page.NewButton).OnClick = func(d *Driver) { d.Show(modal) }
			}
			d.Add(browser.Nth(page.ModalDownload, 0)).OnClick = e.emit
			d.Show(browser.Nth(page.ModalClose, 0))
		}
		if page.SalesOrderHistory != "" {
			d.Element(page.SalesOrderHistory).Attrs = map[string]string{
				"href": "/Admin/SalesOrderHistory.aspx?view=SALES_ORDER_HISTORY",
			}
		}
	}

	for _, order := range e.Orders {
		vars := locators.Vars{Order: order}
		cell := vars.Expand(c.Common.OrderCell)
		d.Show(cell)
		d.Add(browser.Chain(cell, c.Common.RowCheckbox))
	}
	for _, name := range e.Reports {
		vars := locators.Vars{Report: name, CheckboxID: report.CheckboxID(name)}
		d.Add(vars.Expand(c.Common.DocCheckbox))
		group := vars.Expand(c.Common.DocGroup)
		d.Add(group).Count = 2
		d.Add(browser.Nth(group, 0))
		d.Add(browser.Nth(group, 1))
		settlement := c.Pages.Settlement
		if settlement.ReportItem != "" {
			d.Add(browser.Nth(vars.Expand(settlement.ReportItem), 0))
		}
	}
}

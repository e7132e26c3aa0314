package locators

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"erpfetch/internal/report"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Login holds the login form selectors.
type Login struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Common holds selectors shared by every page flow.
type Common struct {
	OrderCell        string `yaml:"order_cell"`
	RowCheckbox      string `yaml:"row_checkbox"`
	ReportsContainer string `yaml:"reports_container"`
	DocCheckbox      string `yaml:"doc_checkbox"`
	DocGroup         string `yaml:"doc_group"`
	Confirm          string `yaml:"confirm"`
	Close            string `yaml:"close"`
	CloseFallback    string `yaml:"close_fallback"`
	Overlay          string `yaml:"overlay"`
}

// Page holds the selectors of one ERP list page. Fields a variant does not
// use stay empty.
type Page struct {
	Tab            string `yaml:"tab"`
	Search         string `yaml:"search"`
	StandardButton string `yaml:"standard_button"`
	NewButton      string `yaml:"new_button"`
	Dialog         string `yaml:"dialog"`

	Modal         string `yaml:"modal"`
	ModalSearch   string `yaml:"modal_search"`
	ReportItem    string `yaml:"report_item"`
	ModalDownload string `yaml:"modal_download"`
	ModalClose    string `yaml:"modal_close"`

	SalesOrderHistory string `yaml:"sales_order_history"`
	InvoicesTab       string `yaml:"invoices_tab"`
	InvoiceCheckbox   string `yaml:"invoice_checkbox"`
	ARCheckbox        string `yaml:"ar_checkbox"`

	PrintButton           string `yaml:"print_button"`
	AuditCheckbox         string `yaml:"audit_checkbox"`
	IncludeDrivesCheckbox string `yaml:"include_drives_checkbox"`
}

// Pages groups the per-variant page selectors.
type Pages struct {
	Inbound     Page `yaml:"inbound"`
	Settlement  Page `yaml:"settlement"`
	Transaction Page `yaml:"transaction"`
	Audit       Page `yaml:"audit"`
}

// Catalog is the complete selector and script set used by the handlers.
type Catalog struct {
	OverlayScript      string `yaml:"overlay_script"`
	CloseDialogsScript string `yaml:"close_dialogs_script"`
	ResetInputScript   string `yaml:"reset_input_script"`
	Login              Login  `yaml:"login"`
	Common             Common `yaml:"common"`
	Pages              Pages  `yaml:"pages"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(defaultCatalog, &c); err != nil {
		return nil, fmt.Errorf("parse embedded locator catalog: %w", err)
	}
	return &c, nil
}

// Load returns the embedded catalog with the override file at path merged on
// top. An empty path returns the defaults.
func Load(path string) (*Catalog, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return c, c.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locator overrides: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse locator overrides %s: %w", path, err)
	}
	return c, c.Validate()
}

// Page returns the selectors for variant.
func (c *Catalog) Page(v report.Variant) (Page, bool) {
	switch v {
	case report.Inbound:
		return c.Pages.Inbound, true
	case report.Settlement:
		return c.Pages.Settlement, true
	case report.Transaction:
		return c.Pages.Transaction, true
	case report.Audit:
		return c.Pages.Audit, true
	default:
		return Page{}, false
	}
}

// Validate reports every selector the handlers cannot run without.
func (c *Catalog) Validate() error {
	var missing []string
	need := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	need("overlay_script", c.OverlayScript)
	need("close_dialogs_script", c.CloseDialogsScript)
	need("login.email", c.Login.Email)
	need("login.password", c.Login.Password)
	need("common.order_cell", c.Common.OrderCell)
	need("common.confirm", c.Common.Confirm)
	need("common.close", c.Common.Close)
	need("common.reports_container", c.Common.ReportsContainer)
	need("common.doc_checkbox", c.Common.DocCheckbox)

	for _, v := range report.Variants() {
		p, _ := c.Page(v)
		prefix := "pages." + v.String() + "."
		need(prefix+"search", p.Search)
		switch v {
		case report.Inbound:
			need(prefix+"standard_button", p.StandardButton)
		case report.Settlement:
			need(prefix+"standard_button", p.StandardButton)
			need(prefix+"new_button", p.NewButton)
			need(prefix+"modal", p.Modal)
			need(prefix+"modal_search", p.ModalSearch)
			need(prefix+"report_item", p.ReportItem)
			need(prefix+"modal_download", p.ModalDownload)
		case report.Transaction:
			need(prefix+"sales_order_history", p.SalesOrderHistory)
			need(prefix+"invoices_tab", p.InvoicesTab)
			need(prefix+"invoice_checkbox", p.InvoiceCheckbox)
		case report.Audit:
			need(prefix+"print_button", p.PrintButton)
			need(prefix+"audit_checkbox", p.AuditCheckbox)
		}
	}
	if len(missing) > 0 {
		return errors.New("locator catalog missing: " + strings.Join(missing, ", "))
	}
	return nil
}

// Vars fills the {order}, {report} and {checkbox_id} placeholders.
type Vars struct {
	Order      string
	Report     string
	CheckboxID string
}

// Expand substitutes placeholders in selector. A placeholder wrapped in
// single quotes, as in [id='{checkbox_id}'], becomes a string literal in the
// selector's own syntax (XPath for "xpath=" and "//" selectors, CSS
// otherwise) so quotes and brackets in values cannot break the selector. A
// bare placeholder is substituted verbatim.
func (v Vars) Expand(selector string) string {
	literal := cssLiteral
	if strings.HasPrefix(selector, "xpath=") || strings.HasPrefix(selector, "//") {
		literal = xpathLiteral
	}
	values := [][2]string{
		{"{order}", v.Order},
		{"{report}", v.Report},
		{"{checkbox_id}", v.CheckboxID},
	}
	pairs := make([]string, 0, len(values)*4)
	for _, kv := range values {
		pairs = append(pairs, "'"+kv[0]+"'", literal(kv[1]))
	}
	for _, kv := range values {
		pairs = append(pairs, kv[0], kv[1])
	}
	return strings.NewReplacer(pairs...).Replace(selector)
}

func cssLiteral(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\a `)
	return "'" + r.Replace(s) + "'"
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if part != "" {
			quoted = append(quoted, "'"+part+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

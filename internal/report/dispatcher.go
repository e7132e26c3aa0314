package report

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// builtin maps normalized report names onto their page flow.
var builtin = map[string]Variant{
	"certificate of recycling":        Inbound,
	"certificate of data destruction": Inbound,
	"certificate of destruction":      Inbound,
	"receiving report":                Inbound,
	"inbound asset report":            Inbound,
	"weight ticket":                   Inbound,
	"bill of lading":                  Inbound,

	"settlement report":              Settlement,
	"settlement report - all assets": Settlement,
	"settlement summary":             Settlement,
	"asset settlement detail":        Settlement,
	"commodity settlement report":    Settlement,

	"invoice":             Transaction,
	"customer invoice":    Transaction,
	"sales order invoice": Transaction,
	"ar report":           Transaction,

	"audit report":       Audit,
	"audit report excel": Audit,
	"audit report pdf":   Audit,
	"drive audit report": Audit,
}

var routes = map[Variant]string{
	Inbound:     "/Admin/RecyclingOrders.aspx",
	Settlement:  "/Admin/SettlementList.aspx",
	Transaction: "/Admin/SettlementList.aspx",
	Audit:       "/Admin/Recycling/AuditOrders.aspx",
}

// pageKeys maps the worklist PAGE column onto variants.
var pageKeys = map[string]Variant{
	"INBOUND":    Inbound,
	"SETTLEMENT": Settlement,
	"INVOICE":    Transaction,
	"AUDIT":      Audit,
}

// Mapping is one row of the dispatcher table.
type Mapping struct {
	Name    string
	Variant Variant
	Custom  bool
}

// Dispatcher classifies report names. The zero value is not usable; build one
// with NewDispatcher.
type Dispatcher struct {
	table  map[string]Variant
	custom map[string]struct{}
}

var defaultDispatcher = NewDispatcher(nil)

// NewDispatcher returns a dispatcher seeded with the built-in table and
// layered with extra name to variant-name mappings. Extra entries with an
// unknown variant are ignored; config validation rejects them earlier.
func NewDispatcher(extra map[string]string) *Dispatcher {
	d := &Dispatcher{
		table:  make(map[string]Variant, len(builtin)+len(extra)),
		custom: make(map[string]struct{}, len(extra)),
	}
	for name, v := range builtin {
		d.table[name] = v
	}
	for name, variantName := range extra {
		v, ok := ParseVariant(variantName)
		if !ok {
			continue
		}
		key := NormalizeName(name)
		if key == "" {
			continue
		}
		d.table[key] = v
		d.custom[key] = struct{}{}
	}
	return d
}

// NormalizeName lowercases the name and collapses interior whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Classify resolves a report name using the built-in table.
func Classify(reportName string) Variant {
	return defaultDispatcher.Classify(reportName)
}

// Classify resolves a report name; unknown names yield Unrecognized.
func (d *Dispatcher) Classify(reportName string) Variant {
	if v, ok := d.table[NormalizeName(reportName)]; ok {
		return v
	}
	return Unrecognized
}

// Resolve classifies by name and, when pageFallback is set, falls back to the
// item's target page column.
func (d *Dispatcher) Resolve(item WorkItem, pageFallback bool) Variant {
	v := d.Classify(item.ReportName)
	if v == Unrecognized && pageFallback {
		return ClassifyPage(item.TargetPage)
	}
	return v
}

// KnownReports returns the dispatcher table sorted by variant then name.
func (d *Dispatcher) KnownReports() []Mapping {
	out := make([]Mapping, 0, len(d.table))
	for name, v := range d.table {
		_, custom := d.custom[name]
		out = append(out, Mapping{Name: name, Variant: v, Custom: custom})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Variant != out[j].Variant {
			return out[i].Variant < out[j].Variant
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// KnownReports enumerates the built-in table.
func KnownReports() []Mapping {
	return defaultDispatcher.KnownReports()
}

// ClassifyPage maps a worklist page key (INBOUND, SETTLEMENT, INVOICE, AUDIT).
func ClassifyPage(page string) Variant {
	if v, ok := pageKeys[strings.ToUpper(strings.TrimSpace(page))]; ok {
		return v
	}
	return Unrecognized
}

// Route returns the fixed path of the variant's page.
func Route(v Variant) (string, bool) {
	r, ok := routes[v]
	return r, ok
}

// PageURL joins baseURL with the variant's fixed route.
func PageURL(baseURL string, v Variant) (string, error) {
	route, ok := routes[v]
	if !ok {
		return "", fmt.Errorf("no page for variant %s", v)
	}
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("base url %q is not absolute", baseURL)
	}
	ref, err := url.Parse(route)
	if err != nil {
		return "", fmt.Errorf("parse route: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// CheckboxID derives the dialog checkbox id for a report name: "cb_Doc_"
// followed by the name's tokens joined with underscores, each token with its
// first letter upper-cased and the rest lower-cased ("e-Waste" -> "E-waste").
func CheckboxID(reportName string) string {
	upper := cases.Upper(language.Und)
	lower := cases.Lower(language.Und)
	tokens := strings.Fields(reportName)
	for i, tok := range tokens {
		_, size := utf8.DecodeRuneInString(tok)
		tokens[i] = upper.String(tok[:size]) + lower.String(tok[size:])
	}
	return "cb_Doc_" + strings.Join(tokens, "_")
}

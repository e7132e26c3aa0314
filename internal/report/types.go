package report

import (
	"fmt"
	"strings"
)

// ReportType selects which download button a page flow uses.
type ReportType string

const (
	TypeStandard ReportType = "standard"
	TypeNew      ReportType = "new"
)

// ParseReportType maps a worklist cell onto a ReportType. An empty cell is
// standard; any other value besides "standard" selects the new print flow.
func ParseReportType(value string) ReportType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(TypeStandard):
		return TypeStandard
	default:
		return TypeNew
	}
}

// WorkItem is one (order, report) unit of download work.
type WorkItem struct {
	OrderID    string
	ReportName string
	ReportType ReportType
	TargetPage string
	Account    string
	Priority   string
	// Row is the 1-based source row, kept for diagnostics.
	Row int
}

// Key returns the ledger key pair for the item.
func (w WorkItem) Key() (string, string) {
	return w.OrderID, w.ReportName
}

// Variant is the page-flow family a report name resolves to.
type Variant int

const (
	Unrecognized Variant = iota
	Inbound
	Settlement
	Transaction
	Audit
)

var variantNames = map[Variant]string{
	Unrecognized: "unrecognized",
	Inbound:      "inbound",
	Settlement:   "settlement",
	Transaction:  "transaction",
	Audit:        "audit",
}

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// ParseVariant resolves a variant by its lowercase name.
func ParseVariant(name string) (Variant, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for v, n := range variantNames {
		if n == name && v != Unrecognized {
			return v, true
		}
	}
	return Unrecognized, false
}

// Variants lists the handled variants in display order.
func Variants() []Variant {
	return []Variant{Inbound, Settlement, Transaction, Audit}
}

// Status classifies a handler invocation.
type Status string

const (
	StatusSuccess      Status = "success"
	StatusItemNotFound Status = "item_not_found"
	StatusTransient    Status = "transient"
	StatusFatal        Status = "fatal"
)

func (s Status) String() string { return string(s) }

// Outcome is returned by every handler invocation.
type Outcome struct {
	Status Status
	Detail string
}

// Succeeded reports whether the outcome is a success.
func (o Outcome) Succeeded() bool { return o.Status == StatusSuccess }

// Success builds a success outcome.
func Success(detail string) Outcome { return Outcome{Status: StatusSuccess, Detail: detail} }

// Fatal builds a fatal outcome.
func Fatal(format string, args ...any) Outcome {
	return Outcome{Status: StatusFatal, Detail: fmt.Sprintf(format, args...)}
}

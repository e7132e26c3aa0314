package report_test

import (
	"testing"

	"erpfetch/internal/report"
)

func TestClassifyIsCaseInsensitive(t *testing.T) {
	upper := report.Classify("Settlement Report - ALL ASSETS")
	lower := report.Classify("settlement report - all assets")
	if upper != lower {
		t.Fatalf("expected same variant, got %s and %s", upper, lower)
	}
	if upper != report.Settlement {
		t.Fatalf("expected settlement, got %s", upper)
	}
}

func TestClassifyKnownNames(t *testing.T) {
	tests := map[string]report.Variant{
		"Settlement Report":          report.Settlement,
		"Audit Report Excel":         report.Audit,
		"  audit   report  excel ":   report.Audit,
		"Certificate of Recycling":   report.Inbound,
		"Invoice":                    report.Transaction,
		"Unknown Report XYZ":         report.Unrecognized,
		"":                           report.Unrecognized,
		"Settlement Report - Assets": report.Unrecognized,
	}
	for name, want := range tests {
		if got := report.Classify(name); got != want {
			t.Errorf("Classify(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestKnownReportsEnumeratesEveryEntry(t *testing.T) {
	mappings := report.KnownReports()
	if len(mappings) == 0 {
		t.Fatal("expected built-in mappings")
	}
	seen := map[report.Variant]int{}
	for i, m := range mappings {
		if got := report.Classify(m.Name); got != m.Variant {
			t.Fatalf("table entry %q classifies as %s, listed as %s", m.Name, got, m.Variant)
		}
		if m.Variant == report.Unrecognized {
			t.Fatalf("table entry %q maps to unrecognized", m.Name)
		}
		if m.Name != report.NormalizeName(m.Name) {
			t.Fatalf("table entry %q is not normalized", m.Name)
		}
		if i > 0 {
			prev := mappings[i-1]
			if prev.Variant > m.Variant || (prev.Variant == m.Variant && prev.Name >= m.Name) {
				t.Fatalf("mappings not sorted at %d: %v then %v", i, prev, m)
			}
		}
		seen[m.Variant]++
	}
	for _, v := range report.Variants() {
		if seen[v] == 0 {
			t.Fatalf("variant %s has no report names", v)
		}
	}
}

func TestDispatcherExtraMappings(t *testing.T) {
	d := report.NewDispatcher(map[string]string{
		"Quarterly  Recap": "audit",
		"Broken":           "payroll",
	})
	if got := d.Classify("quarterly recap"); got != report.Audit {
		t.Fatalf("expected custom mapping to audit, got %s", got)
	}
	if got := d.Classify("Broken"); got != report.Unrecognized {
		t.Fatalf("expected invalid custom mapping ignored, got %s", got)
	}
	var found bool
	for _, m := range d.KnownReports() {
		if m.Name == "quarterly recap" {
			found = m.Custom
		}
	}
	if !found {
		t.Fatal("expected custom mapping flagged in KnownReports")
	}
	if report.Classify("quarterly recap") != report.Unrecognized {
		t.Fatal("custom mapping leaked into the default dispatcher")
	}
}

func TestResolvePageFallback(t *testing.T) {
	d := report.NewDispatcher(nil)
	item := report.WorkItem{OrderID: "ORD-1", ReportName: "Mystery", TargetPage: "invoice"}
	if got := d.Resolve(item, false); got != report.Unrecognized {
		t.Fatalf("expected unrecognized without fallback, got %s", got)
	}
	if got := d.Resolve(item, true); got != report.Transaction {
		t.Fatalf("expected transaction via page fallback, got %s", got)
	}
}

func TestPageURL(t *testing.T) {
	tests := []struct {
		variant report.Variant
		want    string
	}{
		{report.Inbound, "https://erp.example.com/Admin/RecyclingOrders.aspx"},
		{report.Settlement, "https://erp.example.com/Admin/SettlementList.aspx"},
		{report.Transaction, "https://erp.example.com/Admin/SettlementList.aspx"},
		{report.Audit, "https://erp.example.com/Admin/Recycling/AuditOrders.aspx"},
	}
	for _, tc := range tests {
		got, err := report.PageURL("https://erp.example.com/", tc.variant)
		if err != nil {
			t.Fatalf("PageURL(%s) error: %v", tc.variant, err)
		}
		if got != tc.want {
			t.Fatalf("PageURL(%s) = %q, want %q", tc.variant, got, tc.want)
		}
	}
	if _, err := report.PageURL("https://erp.example.com", report.Unrecognized); err == nil {
		t.Fatal("expected error for unrecognized variant")
	}
	if _, err := report.PageURL("erp.example.com", report.Audit); err == nil {
		t.Fatal("expected error for relative base url")
	}
}

func TestCheckboxID(t *testing.T) {
	tests := map[string]string{
		"settlement report":              "cb_Doc_Settlement_Report",
		"Settlement Report - ALL ASSETS": "cb_Doc_Settlement_Report_-_All_Assets",
		"certificate  of recycling":      "cb_Doc_Certificate_Of_Recycling",
		"e-Waste Report":                 "cb_Doc_E-waste_Report",
		"Drive Audit (PDF)":              "cb_Doc_Drive_Audit_(pdf)",
		"O'NEIL report":                  "cb_Doc_O'neil_Report",
		"ítem LIST":                      "cb_Doc_Ítem_List",
	}
	for name, want := range tests {
		if got := report.CheckboxID(name); got != want {
			t.Errorf("CheckboxID(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestParseReportType(t *testing.T) {
	tests := map[string]report.ReportType{
		" Standard ": report.TypeStandard,
		"":           report.TypeStandard,
		"   ":        report.TypeStandard,
		"PRINT/NEW":  report.TypeNew,
		"new":        report.TypeNew,
	}
	for in, want := range tests {
		if got := report.ParseReportType(in); got != want {
			t.Errorf("ParseReportType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseVariant(t *testing.T) {
	for _, v := range report.Variants() {
		got, ok := report.ParseVariant(v.String())
		if !ok || got != v {
			t.Fatalf("ParseVariant(%q) = %s, %v", v.String(), got, ok)
		}
	}
	if _, ok := report.ParseVariant("unrecognized"); ok {
		t.Fatal("unrecognized must not parse as a handled variant")
	}
}

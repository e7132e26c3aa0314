package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"erpfetch/internal/ledger"
	"erpfetch/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckERP_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	result := CheckERP(context.Background(), srv.URL)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckERP_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if result := CheckERP(context.Background(), srv.URL); result.Passed {
		t.Fatal("expected failure for 502")
	}
}

func TestCheckERP_MissingURL(t *testing.T) {
	if result := CheckERP(context.Background(), ""); result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestCheckCredentials(t *testing.T) {
	if r := CheckCredentials(testsupport.NewConfig(t)); !r.Passed {
		t.Fatalf("expected pass, got %s", r.Detail)
	}
	r := CheckCredentials(testsupport.NewConfig(t, testsupport.WithoutCredentials()))
	if r.Passed || !strings.Contains(r.Detail, "erp.email") {
		t.Fatalf("expected missing email, got %+v", r)
	}
}

func TestCheckWorklist(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if r := CheckWorklist(cfg); r.Passed {
		t.Fatal("expected failure for missing worklist")
	}
	testsupport.WriteFile(t, cfg.Worklist.Path,
		"AUTO NAME,REPORT NAME\nORD-1,Weight Ticket\nORD-1,Invoice\nORD-2,Invoice\nORD-2,Invoice\n")
	r := CheckWorklist(cfg)
	if !r.Passed || !strings.Contains(r.Detail, "3 items, 2 orders") || !strings.Contains(r.Detail, "1 rows dropped") {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestCheckLedgerDetectsLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "downloads.csv")
	if r := CheckLedger(path); !r.Passed {
		t.Fatalf("expected pass, got %s", r.Detail)
	}
	held, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer held.Close()
	if r := CheckLedger(path); r.Passed || !strings.Contains(r.Detail, "locked") {
		t.Fatalf("expected lock failure, got %+v", r)
	}
}

func TestCheckLocatorsRejectsBadOverride(t *testing.T) {
	if r := CheckLocators(""); !r.Passed {
		t.Fatalf("built-in catalog failed: %s", r.Detail)
	}
	bad := filepath.Join(t.TempDir(), "locators.yaml")
	testsupport.WriteFile(t, bad, "common: [not, a, map]\n")
	if r := CheckLocators(bad); r.Passed {
		t.Fatal("expected parse failure")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReadyConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.ERP.BaseURL = srv.URL
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteFile(t, cfg.Worklist.Path, "AUTO NAME,REPORT NAME\nORD-1,Weight Ticket\n")

	results := RunAll(context.Background(), cfg)
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
	names := make(map[string]bool)
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"ERP", "Journal", "Ledger", "Worklist"} {
		if !names[want] {
			t.Errorf("missing %s check", want)
		}
	}
}

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"erpfetch/internal/browser/browsertest"
	"erpfetch/internal/ledger"
	"erpfetch/internal/locators"
	"erpfetch/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, nil, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, nil, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, nil, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}

func TestConfigShowRedactsPassword(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, nil, env.configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "********")
	requireContains(t, out, "[erp]")
	if strings.Contains(out, "secret") {
		t.Fatalf("password leaked:\n%s", out)
	}
}

func TestLogLevelFlagRejectsUnknownLevel(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, nil, env.configPath, "--log-level", "loud", "config", "validate"); err == nil {
		t.Fatal("expected invalid log level to fail")
	}
}

func TestClassifyCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, nil, env.configPath, "classify", "Weight Ticket", "AUDIT report excel", "Mystery")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	requireContains(t, out, "inbound")
	requireContains(t, out, "audit")
	requireContains(t, out, "unrecognized")

	out, _, err = runCLI(t, nil, env.configPath, "classify", "--list")
	if err != nil {
		t.Fatalf("classify --list: %v", err)
	}
	requireContains(t, out, "settlement summary")
}

func TestLedgerCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, nil, env.configPath, "ledger", "show")
	if err != nil {
		t.Fatalf("ledger show: %v", err)
	}
	requireContains(t, out, "is empty")

	led, err := ledger.Open(env.cfg.Ledger.Path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	if err := led.Upsert("ORD-1", "Weight Ticket", true, false); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	_ = led.Close()

	out, _, err = runCLI(t, nil, env.configPath, "ledger", "show")
	if err != nil {
		t.Fatalf("ledger show: %v", err)
	}
	requireContains(t, out, "ORD-1")
	requireContains(t, out, "1 rows, 1 downloaded")

	out, _, err = runCLI(t, nil, env.configPath, "ledger", "show", "--json")
	if err != nil {
		t.Fatalf("ledger show --json: %v", err)
	}
	var entries []ledger.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(entries) != 1 || !entries[0].Downloaded {
		t.Fatalf("entries = %+v", entries)
	}

	out, _, err = runCLI(t, nil, env.configPath, "ledger", "get", "ORD-1", "Weight  Ticket")
	if err != nil {
		t.Fatalf("ledger get: %v", err)
	}
	requireContains(t, out, "downloaded=yes uploaded=no")

	if _, _, err := runCLI(t, nil, env.configPath, "ledger", "get", "ORD-2", "Invoice"); err == nil {
		t.Fatal("expected error for missing row")
	}
	if _, _, err := runCLI(t, nil, env.configPath, "ledger", "clear"); err == nil {
		t.Fatal("expected clear without --yes to fail")
	}
	if _, _, err := runCLI(t, nil, env.configPath, "ledger", "clear", "--yes"); err != nil {
		t.Fatalf("ledger clear: %v", err)
	}
	if _, err := os.Stat(env.cfg.Ledger.Path); !os.IsNotExist(err) {
		t.Fatalf("ledger file still present: %v", err)
	}
}

func newERPLauncher(t *testing.T, orders []string, reports ...string) *browsertest.Launcher {
	t.Helper()
	catalog, err := locators.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	erp := &browsertest.ERP{Catalog: catalog, Orders: orders, Reports: reports}
	return &browsertest.Launcher{Setup: erp.Install}
}

func TestRunCommandDownloadsAndRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteFile(t, env.cfg.Worklist.Path,
		"ACCOUNT NAME,AUTO NAME,REPORT TYPE,REPORT NAME,PRIORITY,PAGE\n"+
			"Acme,ORD-42,standard,Settlement Report,1,SETTLEMENT\n"+
			"Acme,ORD-42,standard,Audit Report Excel,1,AUDIT\n")
	launcher := newERPLauncher(t, []string{"ORD-42"}, "Settlement Report", "Audit Report Excel")

	out, _, err := runCLI(t, launcher, env.configPath, "run")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Downloaded")
	if launcher.Launched != 1 {
		t.Fatalf("launched = %d", launcher.Launched)
	}

	entries, err := ledger.OpenReadOnly(env.cfg.Ledger.Path).Load()
	if err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if len(entries) != 2 || !entries[0].Downloaded || !entries[1].Downloaded {
		t.Fatalf("ledger = %+v", entries)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.DownloadRoot, "ORD-42")); err != nil {
		t.Fatalf("order dir missing: %v", err)
	}

	out, _, err = runCLI(t, nil, env.configPath, "history", "--order", "ORD-42")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Settlement Report")
	requireContains(t, out, "success")
}

func TestRunCommandRefusesConcurrentRun(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteFile(t, env.cfg.Worklist.Path, "AUTO NAME,REPORT NAME\nORD-1,Weight Ticket\n")
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	held := flock.New(env.cfg.RunLockPath())
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("hold lock: %v %v", ok, err)
	}
	defer held.Unlock()

	launcher := newERPLauncher(t, []string{"ORD-1"}, "Weight Ticket")
	_, _, err := runCLI(t, launcher, env.configPath, "run")
	if err == nil {
		t.Fatal("expected run to refuse while locked")
	}
	requireContains(t, err.Error(), "another erpfetch run")
	if launcher.Launched != 0 {
		t.Fatal("browser launched despite lock")
	}
}

func TestRunCommandRequiresWorklist(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, newERPLauncher(t, nil), env.configPath, "run", "--worklist", filepath.Join(t.TempDir(), "missing.csv"))
	if err == nil {
		t.Fatal("expected missing worklist error")
	}
	requireContains(t, err.Error(), "worklist")
}

func TestHistoryWithoutJournalFile(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, nil, env.configPath, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No attempts recorded yet")
}

func TestDoctorReportsFailures(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, nil, env.configPath, "doctor")
	if err == nil {
		t.Fatal("expected doctor to fail without a worklist")
	}
	requireContains(t, out, "Worklist")
	requireContains(t, out, "FAIL")
}

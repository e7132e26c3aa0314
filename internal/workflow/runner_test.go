package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"erpfetch/internal/browser/browsertest"
	"erpfetch/internal/config"
	"erpfetch/internal/journal"
	"erpfetch/internal/ledger"
	"erpfetch/internal/locators"
	"erpfetch/internal/logging"
	"erpfetch/internal/notifications"
	"erpfetch/internal/report"
	"erpfetch/internal/services"
	"erpfetch/internal/session"
	"erpfetch/internal/testsupport"
)

const header = "ACCOUNT NAME,AUTO NAME,REPORT TYPE,REPORT NAME,PRIORITY,PAGE\n"

type recordingNotifier struct {
	mu        sync.Mutex
	started   int
	completed []notifications.RunStats
	errs      []error
}

func (n *recordingNotifier) NotifyRunStarted(context.Context, int, int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started++
	return nil
}

func (n *recordingNotifier) NotifyRunCompleted(_ context.Context, stats notifications.RunStats) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, stats)
	return nil
}

func (n *recordingNotifier) NotifyError(_ context.Context, err error, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

type harness struct {
	t        *testing.T
	cfg      *config.Config
	erp      *browsertest.ERP
	launcher *browsertest.Launcher
	ledger   *ledger.Ledger
	journal  *journal.Store
	notifier *recordingNotifier
	runner   *Runner
}

func newHarness(t *testing.T, worklistCSV string, erp *browsertest.ERP, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	testsupport.WriteFile(t, cfg.Worklist.Path, header+worklistCSV)

	catalog, err := locators.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	erp.Catalog = catalog
	launcher := &browsertest.Launcher{Setup: erp.Install}

	led, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	t.Cleanup(func() { _ = led.Close() })

	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			t.Fatalf("journal: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
	}

	notifier := &recordingNotifier{}
	ctrl := session.New(launcher, session.OptionsFromConfig(cfg), catalog.Login, logging.NewNop())
	runner := New(cfg, Dependencies{
		Session:  ctrl,
		Ledger:   led,
		Journal:  store,
		Catalog:  catalog,
		Notifier: notifier,
	}, logging.NewNop())
	return &harness{
		t:        t,
		cfg:      cfg,
		erp:      erp,
		launcher: launcher,
		ledger:   led,
		journal:  store,
		notifier: notifier,
		runner:   runner,
	}
}

func (h *harness) run(ctx context.Context, opts Options) (Summary, error) {
	h.t.Helper()
	if opts.RunID == "" {
		opts.RunID = "run-test"
	}
	return h.runner.Run(ctx, opts)
}

func (h *harness) entry(order, doc string) (ledger.Entry, bool) {
	h.t.Helper()
	e, ok, err := h.ledger.Get(order, doc)
	if err != nil {
		h.t.Fatalf("ledger get: %v", err)
	}
	return e, ok
}

func (h *harness) driver(i int) *browsertest.Driver {
	h.t.Helper()
	if i >= len(h.launcher.Drivers) {
		h.t.Fatalf("driver %d not launched (launched %d)", i, h.launcher.Launched)
	}
	return h.launcher.Drivers[i]
}

func TestRunDownloadsSettlementAndAuditForOneOrder(t *testing.T) {
	h := newHarness(t,
		"Acme,ORD-42,standard,Settlement Report,1,SETTLEMENT\n"+
			"Acme,ORD-42,standard,Audit Report Excel,1,AUDIT\n",
		&browsertest.ERP{
			Orders:  []string{"ORD-42"},
			Reports: []string{"Settlement Report", "Audit Report Excel"},
		})

	summary, err := h.run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Orders != 1 || summary.Items != 2 || summary.Succeeded != 2 || summary.Failed() != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	for _, doc := range []string{"Settlement Report", "Audit Report Excel"} {
		if e, ok := h.entry("ORD-42", doc); !ok || !e.Downloaded {
			t.Fatalf("%s ledger entry = %+v (found %v)", doc, e, ok)
		}
	}

	dir := filepath.Join(h.cfg.Paths.DownloadRoot, "ORD-42")
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("order dir: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 downloaded files, got %d", len(files))
	}
	if !h.driver(0).Closed() {
		t.Fatal("browser not closed after run")
	}
	if len(h.notifier.completed) != 1 || h.notifier.completed[0].Succeeded != 2 || h.notifier.started != 1 {
		t.Fatalf("notifications: started=%d completed=%+v", h.notifier.started, h.notifier.completed)
	}

	history, err := h.journal.History(context.Background(), journal.Query{RunID: "run-test"})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("journal rows = %d", len(history))
	}
	for _, a := range history {
		if a.Status != report.StatusSuccess || a.OrderID != "ORD-42" {
			t.Fatalf("journal attempt = %+v", a)
		}
	}
	if _, err := os.Stat(filepath.Join(h.cfg.Paths.ScreenshotsDir, "run_complete_run-test.png")); err != nil {
		t.Fatalf("final screenshot missing: %v", err)
	}
}

func TestRunContinuesAfterSearchTimeout(t *testing.T) {
	h := newHarness(t,
		"Acme,ORD-404,standard,Weight Ticket,1,INBOUND\n"+
			"Acme,ORD-7,standard,Weight Ticket,1,INBOUND\n",
		&browsertest.ERP{
			Orders:  []string{"ORD-7"},
			Reports: []string{"Weight Ticket"},
		})

	summary, err := h.run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.NotFound != 1 || summary.Succeeded != 1 || summary.Orders != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if e, ok := h.entry("ORD-404", "Weight Ticket"); !ok || e.Downloaded {
		t.Fatalf("missing order should keep a pending row, got %+v (found %v)", e, ok)
	}
	if e, ok := h.entry("ORD-7", "Weight Ticket"); !ok || !e.Downloaded {
		t.Fatalf("second order not downloaded: %+v", e)
	}
	shot := filepath.Join(h.cfg.Paths.ScreenshotsDir, "not_found_ORD-404_Weight Ticket.png")
	if _, err := os.Stat(shot); err != nil {
		t.Fatalf("not-found screenshot missing: %v", err)
	}
}

func TestRunSkipsUnrecognizedReports(t *testing.T) {
	h := newHarness(t,
		"Acme,ORD-7,standard,Mystery Report,1,\n",
		&browsertest.ERP{Orders: []string{"ORD-7"}})

	summary, err := h.run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Unrecognized != 1 || summary.Succeeded+summary.Failed() != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if _, ok := h.entry("ORD-7", "Mystery Report"); ok {
		t.Fatal("unrecognized report must not get a ledger row")
	}
	if navs := h.driver(0).CallsFor("Navigate"); len(navs) != 1 {
		t.Fatalf("expected only the start navigation, got %+v", navs)
	}
}

func TestRunUsesPageFallbackWhenEnabled(t *testing.T) {
	h := newHarness(t,
		"Acme,ORD-7,standard,Weight Ticket v2,1,INBOUND\n",
		&browsertest.ERP{Orders: []string{"ORD-7"}, Reports: []string{"Weight Ticket v2"}})
	h.cfg.Dispatch.PageFallback = true

	summary, err := h.run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Succeeded != 1 || summary.Unrecognized != 0 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRunEscalatesLoginFailuresThenAborts(t *testing.T) {
	h := newHarness(t,
		"Acme,ORD-7,standard,Weight Ticket,1,INBOUND\n",
		&browsertest.ERP{Title: "Sign in", Orders: []string{"ORD-7"}, Reports: []string{"Weight Ticket"}},
		testsupport.WithLoginRetries(3))
	h.cfg.Session.MaxRestarts = 1

	summary, err := h.run(context.Background(), Options{})
	if !errors.Is(err, services.ErrRetriesExhausted) {
		t.Fatalf("expected retries exhausted, got %v", err)
	}
	if h.launcher.Launched != 2 {
		t.Fatalf("expected one restart (2 launches), got %d", h.launcher.Launched)
	}
	for i := 0; i < 2; i++ {
		d := h.driver(i)
		if n := len(d.CallsFor("HardReload")); n != 3 {
			t.Fatalf("driver %d: %d login attempts, want 3", i, n)
		}
		if !d.Closed() {
			t.Fatalf("driver %d left open", i)
		}
	}
	if summary.Succeeded != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if _, ok := h.entry("ORD-7", "Weight Ticket"); ok {
		t.Fatal("no ledger row expected when login never succeeds")
	}
	if _, err := os.Stat(filepath.Join(h.cfg.Paths.ScreenshotsDir, "run_failed_run-test.png")); err != nil {
		t.Fatalf("failure screenshot missing: %v", err)
	}
	if len(h.notifier.errs) != 1 {
		t.Fatalf("expected one failure notification, got %d", len(h.notifier.errs))
	}
}

func TestRunSkipCompletedHonoursLedger(t *testing.T) {
	h := newHarness(t,
		"Acme,ORD-7,standard,Weight Ticket,1,INBOUND\n",
		&browsertest.ERP{Orders: []string{"ORD-7"}, Reports: []string{"Weight Ticket"}})
	if err := h.ledger.Upsert("ORD-7", "Weight Ticket", true, true); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	h.cfg.Ledger.SkipCompleted = true

	summary, err := h.run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped != 1 || summary.Succeeded != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if h.erp.Downloads() != 0 {
		t.Fatalf("skipped item triggered %d downloads", h.erp.Downloads())
	}
}

func TestRunReprocessesCompletedRowsByDefault(t *testing.T) {
	h := newHarness(t,
		"Acme,ORD-7,standard,Weight Ticket,1,INBOUND\n",
		&browsertest.ERP{Orders: []string{"ORD-7"}, Reports: []string{"Weight Ticket"}})
	if err := h.ledger.Upsert("ORD-7", "Weight Ticket", true, true); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	summary, err := h.run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Succeeded != 1 || h.erp.Downloads() != 1 {
		t.Fatalf("summary = %+v downloads = %d", summary, h.erp.Downloads())
	}
	if e, _ := h.entry("ORD-7", "Weight Ticket"); !e.Downloaded || !e.Uploaded {
		t.Fatalf("uploaded flag must survive reprocessing: %+v", e)
	}
}

func TestRunFiltersOrders(t *testing.T) {
	h := newHarness(t,
		"Acme,ORD-1,standard,Weight Ticket,1,INBOUND\n"+
			"Acme,ORD-2,standard,Weight Ticket,1,INBOUND\n",
		&browsertest.ERP{Orders: []string{"ORD-1", "ORD-2"}, Reports: []string{"Weight Ticket"}},
		testsupport.WithoutJournal())

	summary, err := h.run(context.Background(), Options{Orders: []string{"ORD-2"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Orders != 1 || summary.Succeeded != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if _, ok := h.entry("ORD-1", "Weight Ticket"); ok {
		t.Fatal("filtered order was processed")
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	h := newHarness(t,
		"Acme,ORD-7,standard,Weight Ticket,1,INBOUND\n",
		&browsertest.ERP{Orders: []string{"ORD-7"}, Reports: []string{"Weight Ticket"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.run(ctx, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if _, ok := h.entry("ORD-7", "Weight Ticket"); ok {
		t.Fatal("cancelled run wrote a ledger row")
	}
}

func TestRunWithEmptyWorklistDoesNotStartBrowser(t *testing.T) {
	h := newHarness(t, "", &browsertest.ERP{})

	summary, err := h.run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Items != 0 || h.launcher.Launched != 0 {
		t.Fatalf("summary = %+v launched = %d", summary, h.launcher.Launched)
	}
}

func TestRunContinuesWhenOrderDirectoryIsBlocked(t *testing.T) {
	h := newHarness(t,
		"Acme,ORD-1,standard,Weight Ticket,1,INBOUND\n"+
			"Acme,ORD-2,standard,Weight Ticket,1,INBOUND\n",
		&browsertest.ERP{Orders: []string{"ORD-1", "ORD-2"}, Reports: []string{"Weight Ticket"}})
	testsupport.WriteFile(t, filepath.Join(h.cfg.Paths.DownloadRoot, "ORD-1"), "not a directory")

	summary, err := h.run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Fatal != 1 || summary.Succeeded != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if _, ok := h.entry("ORD-1", "Weight Ticket"); ok {
		t.Fatal("blocked order should not get a ledger row")
	}
	if e, ok := h.entry("ORD-2", "Weight Ticket"); !ok || !e.Downloaded {
		t.Fatalf("ORD-2 not processed after ORD-1 failed: %+v (found %v)", e, ok)
	}
	if h.erp.Downloads() != 1 {
		t.Fatalf("downloads = %d", h.erp.Downloads())
	}

	history, err := h.journal.History(context.Background(), journal.Query{OrderID: "ORD-1"})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].Status != report.StatusFatal {
		t.Fatalf("ORD-1 journal = %+v", history)
	}
	if _, err := os.Stat(filepath.Join(h.cfg.Paths.ScreenshotsDir, "run_complete_run-test.png")); err != nil {
		t.Fatalf("run should complete normally: %v", err)
	}
}

func TestRunBindsEachDownloadToItsOrderDirectory(t *testing.T) {
	h := newHarness(t,
		"Acme,ORD-1,standard,Weight Ticket,1,INBOUND\n"+
			"Acme,ORD-2,standard,Weight Ticket,1,INBOUND\n",
		&browsertest.ERP{Orders: []string{"ORD-1", "ORD-2"}, Reports: []string{"Weight Ticket"}},
		testsupport.WithoutJournal())

	summary, err := h.run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Succeeded != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	announced := h.driver(0).CallsFor("ExpectDownload")
	if len(announced) != 2 {
		t.Fatalf("announced downloads = %d", len(announced))
	}
	for i, order := range []string{"ORD-1", "ORD-2"} {
		dir := filepath.Join(h.cfg.Paths.DownloadRoot, order)
		if announced[i].Arg != dir {
			t.Fatalf("download %d bound to %q, want %q", i, announced[i].Arg, dir)
		}
		files, err := os.ReadDir(dir)
		if err != nil || len(files) != 1 {
			t.Fatalf("%s files = %v (%v)", order, files, err)
		}
	}
}

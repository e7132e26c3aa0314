package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDownloadTrackerWaitsForInFlight(t *testing.T) {
	tr := newDownloadTracker("/tmp/orders/ORD-1")
	path := tr.begin("Settlement Report.pdf")
	if filepath.Dir(path) != "/tmp/orders/ORD-1" {
		t.Fatalf("unexpected destination %q", path)
	}

	done := make(chan struct{})
	var saved []string
	var err error
	go func() {
		saved, err = tr.wait(context.Background(), time.Second)
		close(done)
	}()

	tr.finish(path, nil)
	<-done
	if err != nil {
		t.Fatalf("wait returned error: %v", err)
	}
	if len(saved) != 1 || saved[0] != path {
		t.Fatalf("unexpected saved paths %v", saved)
	}

	again, err := tr.wait(context.Background(), time.Second)
	if err != nil || len(again) != 0 {
		t.Fatalf("expected saved list drained, got %v %v", again, err)
	}
}

func TestDownloadTrackerTimesOut(t *testing.T) {
	tr := newDownloadTracker(t.TempDir())
	tr.begin("stuck.xlsx")
	_, err := tr.wait(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestDownloadTrackerReportsFailures(t *testing.T) {
	tr := newDownloadTracker(t.TempDir())
	p := tr.begin("a.pdf")
	tr.finish(p, errors.New("canceled"))
	_, err := tr.wait(context.Background(), time.Second)
	if err == nil {
		t.Fatal("expected failure to be reported")
	}
}

func TestDownloadTrackerSwitchesDirectory(t *testing.T) {
	tr := newDownloadTracker("/a")
	tr.setDir("/b")
	if got := tr.begin("x.pdf"); got != "/b/x.pdf" {
		t.Fatalf("unexpected destination %q", got)
	}
}

func TestDownloadTrackerRenamesDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	tr := newDownloadTracker(dir)
	first := tr.begin("Report.pdf")
	second := tr.begin("Report.pdf")
	if first != filepath.Join(dir, "Report.pdf") {
		t.Fatalf("first = %q", first)
	}
	if second != filepath.Join(dir, "Report (1).pdf") {
		t.Fatalf("second = %q", second)
	}

	if err := os.WriteFile(first, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	tr.finish(first, nil)
	tr.finish(second, nil)
	if err := os.WriteFile(second, []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}
	if third := tr.begin("Report.pdf"); third != filepath.Join(dir, "Report (2).pdf") {
		t.Fatalf("name already on disk was reused: %q", third)
	}
}

func TestAvailablePathWithoutExtension(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "manifest"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := AvailablePath(dir, "manifest", nil); got != filepath.Join(dir, "manifest (1)") {
		t.Fatalf("got %q", got)
	}
}

func TestDownloadTrackerWaitsForAnnouncedDownload(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "ORD-1")
	second := filepath.Join(root, "ORD-2")
	tr := newDownloadTracker(first)
	tr.expect()

	done := make(chan struct{})
	var saved []string
	var err error
	go func() {
		saved, err = tr.wait(context.Background(), 5*time.Second)
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("wait returned before the announced download started")
	case <-time.After(50 * time.Millisecond):
	}

	// The browser reports the download after the next order took over.
	tr.setDir(second)
	path := tr.begin("ORD-1-settlement.pdf")
	if filepath.Dir(path) != first {
		t.Fatalf("late download saved under %q, want %q", path, first)
	}
	tr.finish(path, nil)
	<-done
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(saved) != 1 || saved[0] != path {
		t.Fatalf("saved = %v", saved)
	}
	if next := tr.begin("other.pdf"); filepath.Dir(next) != second {
		t.Fatalf("unannounced download should use the current directory, got %q", next)
	}
}

func TestDownloadTrackerDropsUnstartedOnTimeout(t *testing.T) {
	tr := newDownloadTracker(t.TempDir())
	tr.expect()
	_, err := tr.wait(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if saved, err := tr.wait(context.Background(), 20*time.Millisecond); err != nil || len(saved) != 0 {
		t.Fatalf("stale announcement still pending: %v %v", saved, err)
	}
}

func TestDownloadTrackerCancelWithdrawsAnnouncement(t *testing.T) {
	tr := newDownloadTracker(t.TempDir())
	cancel := tr.expect()
	cancel()
	cancel()
	if _, err := tr.wait(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("withdrawn announcement should not block: %v", err)
	}
}

func TestNthAndChain(t *testing.T) {
	if got := Nth("input[type=checkbox]", 2); got != "input[type=checkbox] >> nth=2" {
		t.Fatalf("Nth = %q", got)
	}
	if got := Chain("#dlg", "button"); got != "#dlg >> button" {
		t.Fatalf("Chain = %q", got)
	}
}

package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"erpfetch/internal/textutil"
)

// expectation is a download announced before the click that starts it. Its
// destination directory is fixed when it is announced.
type expectation struct {
	dir string
}

// downloadTracker pairs download events with announced expectations, counts
// transfers in flight and remembers where they landed.
type downloadTracker struct {
	mu       sync.Mutex
	dir      string
	expected []*expectation
	inFlight int
	reserved map[string]bool
	saved    []string
	errs     []error
	changed  chan struct{}
}

func newDownloadTracker(dir string) *downloadTracker {
	return &downloadTracker{
		dir:      dir,
		reserved: map[string]bool{},
		changed:  make(chan struct{}),
	}
}

func (t *downloadTracker) setDir(dir string) {
	t.mu.Lock()
	t.dir = dir
	t.mu.Unlock()
}

// notify wakes waiters. Callers hold t.mu.
func (t *downloadTracker) notify() {
	close(t.changed)
	t.changed = make(chan struct{})
}

// expect announces a download bound to the current directory. The returned
// cancel withdraws it if no download event has claimed it yet.
func (t *downloadTracker) expect() (cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := &expectation{dir: t.dir}
	t.expected = append(t.expected, e)
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, pending := range t.expected {
			if pending == e {
				t.expected = append(t.expected[:i], t.expected[i+1:]...)
				t.notify()
				return
			}
		}
	}
}

// begin claims the oldest expectation, or the current directory for an
// unannounced download, and reserves a destination that no other download
// in this session or file on disk already uses.
func (t *downloadTracker) begin(suggestedName string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	dir := t.dir
	if len(t.expected) > 0 {
		dir = t.expected[0].dir
		t.expected = t.expected[1:]
	}
	t.inFlight++
	name := textutil.SanitizeFileName(suggestedName)
	if name == "" {
		name = fmt.Sprintf("download-%d", time.Now().UnixNano())
	}
	path := AvailablePath(dir, name, func(p string) bool { return t.reserved[p] })
	t.reserved[path] = true
	t.notify()
	return path
}

func (t *downloadTracker) finish(path string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight--
	delete(t.reserved, path)
	if err != nil {
		t.errs = append(t.errs, fmt.Errorf("save %s: %w", filepath.Base(path), err))
	} else {
		t.saved = append(t.saved, path)
	}
	t.notify()
}

// wait blocks until every announced download has started and every started
// download has finished. On timeout, announcements that never produced a
// download are dropped so they cannot capture a later order's files.
func (t *downloadTracker) wait(ctx context.Context, timeout time.Duration) ([]string, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		t.mu.Lock()
		if t.inFlight == 0 && len(t.expected) == 0 {
			saved := t.saved
			errs := t.errs
			t.saved, t.errs = nil, nil
			t.mu.Unlock()
			if len(errs) > 0 {
				return saved, fmt.Errorf("%d download(s) failed: %w", len(errs), errs[0])
			}
			return saved, nil
		}
		changed := t.changed
		t.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			t.mu.Lock()
			unstarted := len(t.expected)
			running := t.inFlight
			t.expected = nil
			saved := t.saved
			t.saved = nil
			t.mu.Unlock()
			return saved, fmt.Errorf("%w: %d download(s) never started, %d still in progress",
				ErrTimeout, unstarted, running)
		}
	}
}

// AvailablePath returns dir/name, or "stem (n).ext" for the lowest n >= 1
// whose path is neither taken nor present on disk.
func AvailablePath(dir, name string, taken func(path string) bool) string {
	inUse := func(p string) bool {
		if taken != nil && taken(p) {
			return true
		}
		_, err := os.Lstat(p)
		return err == nil
	}
	path := filepath.Join(dir, name)
	if !inUse(path) {
		return path
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if !inUse(candidate) {
			return candidate
		}
	}
}

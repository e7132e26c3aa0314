// Package browsertest provides an in-memory browser.Driver for exercising
// page flows without a real browser.
package browsertest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"erpfetch/internal/browser"
)

// Element is a fake DOM node addressed by its exact selector string.
type Element struct {
	Visible bool
	// Checked toggles on every click, like a checkbox.
	Checked bool
	Value   string
	Attrs   map[string]string
	// Count overrides the match count reported by Count; zero means one.
	Count int
	// ClickErrs are returned by successive clicks before clicks succeed.
	ClickErrs []error
	// OnClick runs after a successful click or script click.
	OnClick func(d *Driver)
}

// Call records one driver invocation.
type Call struct {
	Method   string
	Selector string
	Arg      string
}

func (c Call) String() string {
	if c.Arg == "" {
		return c.Method + " " + c.Selector
	}
	return fmt.Sprintf("%s %s %q", c.Method, c.Selector, c.Arg)
}

type pendingDownload struct {
	dir  string
	name string
}

// Driver is a scripted fake. Selectors not present in Elements are absent
// from the page; waiting on them fails with browser.ErrTimeout.
type Driver struct {
	mu sync.Mutex

	Elements   map[string]*Element
	CurrentURL string
	PageTitle  string
	Calls      []Call

	// PopupURL is returned by FollowPopup after the trigger succeeds.
	PopupURL    string
	downloadDir string
	expected    []string
	pending     []pendingDownload
	saved       []string

	// OnNavigate runs after every Navigate/Reload/HardReload.
	OnNavigate func(d *Driver, url string)
	// EvaluateFunc answers Evaluate; nil returns (nil, nil).
	EvaluateFunc func(d *Driver, selector, script string, arg any) (any, error)
	// NavigateErr fails navigation while non-nil.
	NavigateErr error

	closed bool
}

// New returns an empty fake positioned at about:blank.
func New() *Driver {
	return &Driver{Elements: map[string]*Element{}, CurrentURL: "about:blank"}
}

// Add registers a visible element and returns it for further setup.
func (d *Driver) Add(selector string) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	el := &Element{Visible: true}
	d.Elements[selector] = el
	return el
}

// Show registers or reveals selector.
func (d *Driver) Show(selector string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.Elements[selector]; ok {
		el.Visible = true
		return
	}
	d.Elements[selector] = &Element{Visible: true}
}

// Hide keeps selector in the DOM but invisible.
func (d *Driver) Hide(selector string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.Elements[selector]; ok {
		el.Visible = false
	}
}

// Remove detaches selector from the DOM.
func (d *Driver) Remove(selector string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.Elements, selector)
}

// Element returns the registered element or nil.
func (d *Driver) Element(selector string) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Elements[selector]
}

// EmitDownload simulates a download that finishes on the next AwaitDownloads.
// It claims the oldest announced download's directory, or the current one.
func (d *Driver) EmitDownload(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dir := d.downloadDir
	if len(d.expected) > 0 {
		dir = d.expected[0]
		d.expected = d.expected[1:]
	}
	d.pending = append(d.pending, pendingDownload{dir: dir, name: name})
}

// CallsFor returns recorded calls of one method.
func (d *Driver) CallsFor(method string) []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Call
	for _, c := range d.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Clicked reports whether selector received a click of any kind.
func (d *Driver) Clicked(selector string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.Calls {
		if c.Selector == selector && (c.Method == "Click" || c.Method == "Dblclick" || c.Method == "ScriptClick") {
			return true
		}
	}
	return false
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Driver) record(method, selector, arg string) {
	d.Calls = append(d.Calls, Call{Method: method, Selector: selector, Arg: arg})
}

func (d *Driver) check(ctx context.Context) error {
	if d.closed {
		return browser.ErrClosed
	}
	if ctx != nil {
		return ctx.Err()
	}
	return nil
}

func missing(op, selector string) error {
	return fmt.Errorf("%s %q: %w", op, selector, browser.ErrTimeout)
}

func (d *Driver) navigate(method, url string) error {
	d.mu.Lock()
	d.record(method, "", url)
	if d.NavigateErr != nil {
		err := d.NavigateErr
		d.mu.Unlock()
		return err
	}
	if url != "" {
		d.CurrentURL = url
	}
	hook := d.OnNavigate
	d.mu.Unlock()
	if hook != nil {
		hook(d, d.CurrentURL)
	}
	return nil
}

func (d *Driver) Navigate(ctx context.Context, url string, _ time.Duration) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	return d.navigate("Navigate", url)
}

func (d *Driver) Reload(ctx context.Context, _ time.Duration) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	return d.navigate("Reload", "")
}

func (d *Driver) HardReload(ctx context.Context, url string, _ time.Duration) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	return d.navigate("HardReload", url)
}

func (d *Driver) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.CurrentURL
}

func (d *Driver) Title() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.PageTitle, d.check(nil)
}

// SetTitle changes the document title.
func (d *Driver) SetTitle(title string) {
	d.mu.Lock()
	d.PageTitle = title
	d.mu.Unlock()
}

func (d *Driver) WaitForTitle(ctx context.Context, fragment string, _ time.Duration) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("WaitForTitle", "", fragment)
	if !strings.Contains(d.PageTitle, fragment) {
		return fmt.Errorf("title %q lacks %q: %w", d.PageTitle, fragment, browser.ErrTimeout)
	}
	return nil
}

func (d *Driver) WaitVisible(ctx context.Context, selector string, _ time.Duration) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("WaitVisible", selector, "")
	if el, ok := d.Elements[selector]; !ok || !el.Visible {
		return missing("wait visible", selector)
	}
	return nil
}

func (d *Driver) WaitIdle(ctx context.Context, _ time.Duration) error {
	return d.check(ctx)
}

func (d *Driver) Count(selector string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(nil); err != nil {
		return 0, err
	}
	el, ok := d.Elements[selector]
	if !ok {
		return 0, nil
	}
	if el.Count > 0 {
		return el.Count, nil
	}
	return 1, nil
}

func (d *Driver) Click(ctx context.Context, selector string, opts browser.ClickOptions) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	method := "Click"
	if opts.Double {
		method = "Dblclick"
	}
	return d.click(method, selector, true)
}

func (d *Driver) ScriptClick(selector string) error {
	if err := d.check(nil); err != nil {
		return err
	}
	return d.click("ScriptClick", selector, false)
}

func (d *Driver) click(method, selector string, honourErrs bool) error {
	d.mu.Lock()
	d.record(method, selector, "")
	el, ok := d.Elements[selector]
	if !ok || (honourErrs && !el.Visible) {
		d.mu.Unlock()
		return missing(strings.ToLower(method), selector)
	}
	if honourErrs && len(el.ClickErrs) > 0 {
		err := el.ClickErrs[0]
		el.ClickErrs = el.ClickErrs[1:]
		d.mu.Unlock()
		return err
	}
	el.Checked = !el.Checked
	hook := el.OnClick
	d.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return nil
}

func (d *Driver) Fill(ctx context.Context, selector, value string, _ time.Duration) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Fill", selector, value)
	el, ok := d.Elements[selector]
	if !ok {
		return missing("fill", selector)
	}
	el.Value = value
	return nil
}

func (d *Driver) Clear(ctx context.Context, selector string, _ time.Duration) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Clear", selector, "")
	el, ok := d.Elements[selector]
	if !ok {
		return missing("clear", selector)
	}
	el.Value = ""
	return nil
}

func (d *Driver) Press(ctx context.Context, selector, key string, _ time.Duration) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	d.record("Press", selector, key)
	el, ok := d.Elements[selector]
	if !ok {
		d.mu.Unlock()
		return missing("press", selector)
	}
	hook := el.OnClick
	d.mu.Unlock()
	if key == "Enter" && hook != nil {
		hook(d)
	}
	return nil
}

func (d *Driver) IsChecked(selector string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.Elements[selector]
	if !ok {
		return false, missing("is checked", selector)
	}
	return el.Checked, nil
}

func (d *Driver) Attribute(selector, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.Elements[selector]
	if !ok {
		return "", missing("attribute", selector)
	}
	return el.Attrs[name], nil
}

func (d *Driver) Evaluate(selector, script string, arg any) (any, error) {
	d.mu.Lock()
	if err := d.check(nil); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	d.record("Evaluate", selector, script)
	fn := d.EvaluateFunc
	d.mu.Unlock()
	if fn != nil {
		return fn(d, selector, script, arg)
	}
	return nil, nil
}

func (d *Driver) FollowPopup(ctx context.Context, trigger func() error, _ time.Duration) (string, error) {
	if err := d.check(ctx); err != nil {
		return "", err
	}
	if err := trigger(); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("FollowPopup", "", d.PopupURL)
	if d.PopupURL == "" {
		return "", fmt.Errorf("popup: %w", browser.ErrTimeout)
	}
	return d.PopupURL, nil
}

func (d *Driver) SetDownloadDir(dir string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("SetDownloadDir", "", dir)
	d.downloadDir = dir
	return nil
}

func (d *Driver) ExpectDownload(trigger func() error) error {
	d.mu.Lock()
	if err := d.check(nil); err != nil {
		d.mu.Unlock()
		return err
	}
	d.record("ExpectDownload", "", d.downloadDir)
	d.expected = append(d.expected, d.downloadDir)
	n := len(d.expected)
	d.mu.Unlock()

	if err := trigger(); err != nil {
		d.mu.Lock()
		// Withdraw the announcement unless a download already claimed it.
		if len(d.expected) >= n {
			d.expected = append(d.expected[:n-1], d.expected[n:]...)
		}
		d.mu.Unlock()
		return err
	}
	return nil
}

// AwaitDownloads writes each emitted download as an empty file into the
// directory it was bound to, renaming duplicates the way a browser does.
// Announced downloads that were never emitted fail the wait and are dropped.
func (d *Driver) AwaitDownloads(ctx context.Context, _ time.Duration) ([]string, error) {
	if err := d.check(ctx); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var paths []string
	for _, p := range d.pending {
		if err := os.MkdirAll(p.dir, 0o755); err != nil {
			return paths, err
		}
		path := browser.AvailablePath(p.dir, p.name, nil)
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	d.pending = nil
	d.saved = append(d.saved, paths...)
	if unstarted := len(d.expected); unstarted > 0 {
		d.expected = nil
		return paths, fmt.Errorf("%d download(s) never started: %w", unstarted, browser.ErrTimeout)
	}
	return paths, nil
}

// Screenshot writes a placeholder PNG header to path.
func (d *Driver) Screenshot(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(nil); err != nil {
		return err
	}
	d.record("Screenshot", "", path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o644)
}

func (d *Driver) Content() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return "<html><title>" + d.PageTitle + "</title></html>", d.check(nil)
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Launcher hands out scripted drivers in order.
type Launcher struct {
	mu      sync.Mutex
	Drivers []*Driver
	// Setup runs against every driver as it is launched.
	Setup    func(d *Driver)
	Launched int
	Err      error
}

// Launch returns the next scripted driver, or a fresh one once the script is exhausted.
func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	var d *Driver
	if l.Launched < len(l.Drivers) {
		d = l.Drivers[l.Launched]
	} else {
		d = New()
		l.Drivers = append(l.Drivers, d)
	}
	l.Launched++
	d.downloadDir = opts.DownloadDir
	if l.Setup != nil {
		l.Setup(d)
	}
	return d, nil
}

var (
	_ browser.Driver   = (*Driver)(nil)
	_ browser.Launcher = (*Launcher)(nil)
)

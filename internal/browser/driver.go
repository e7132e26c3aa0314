package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout marks a bounded wait or action that expired.
	ErrTimeout = errors.New("browser wait timed out")
	// ErrNotFound marks an element that is absent from the DOM.
	ErrNotFound = errors.New("element not found")
	// ErrClosed marks use of a driver after Close.
	ErrClosed = errors.New("browser closed")
)

// ClickOptions adjusts a click.
type ClickOptions struct {
	Double  bool
	Timeout time.Duration
}

// Driver is the capability surface over a single browser tab. Implementations
// are not safe for concurrent use; the orchestrator owns the driver for the
// duration of a run.
type Driver interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Reload(ctx context.Context, timeout time.Duration) error
	// HardReload clears cookies, web storage and the HTTP cache, then loads url.
	HardReload(ctx context.Context, url string, timeout time.Duration) error
	URL() string
	Title() (string, error)
	WaitForTitle(ctx context.Context, fragment string, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	WaitIdle(ctx context.Context, timeout time.Duration) error

	Count(selector string) (int, error)
	Click(ctx context.Context, selector string, opts ClickOptions) error
	// ScriptClick dispatches a DOM click event, bypassing actionability checks
	// and any element covering the target.
	ScriptClick(selector string) error
	Fill(ctx context.Context, selector, value string, timeout time.Duration) error
	Clear(ctx context.Context, selector string, timeout time.Duration) error
	Press(ctx context.Context, selector, key string, timeout time.Duration) error
	IsChecked(selector string) (bool, error)
	Attribute(selector, name string) (string, error)
	// Evaluate runs a script in the page. When selector is non-empty the script
	// receives the matched element as its first argument.
	Evaluate(selector, script string, arg any) (any, error)

	// FollowPopup runs trigger, captures the popup it opens, closes the popup
	// and returns the URL it had loaded.
	FollowPopup(ctx context.Context, trigger func() error, timeout time.Duration) (string, error)
	// SetDownloadDir redirects downloads announced or started after the call.
	SetDownloadDir(dir string) error
	// ExpectDownload announces that trigger starts a download. The download is
	// saved into the directory current at announcement, however late the
	// browser reports it. A failed trigger withdraws the announcement.
	ExpectDownload(trigger func() error) error
	// AwaitDownloads blocks until every announced download has started and
	// every started download is saved, or timeout elapses. It returns the
	// paths saved since the previous call.
	AwaitDownloads(ctx context.Context, timeout time.Duration) ([]string, error)
	Screenshot(path string) error
	Content() (string, error)
	Close() error
}

// LaunchOptions configures a new browser session.
type LaunchOptions struct {
	DownloadDir    string
	DefaultTimeout time.Duration
}

// Launcher provisions drivers.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Driver, error)
}

// Nth narrows a selector to its i-th (0-based) match.
func Nth(selector string, i int) string {
	return fmt.Sprintf("%s >> nth=%d", selector, i)
}

// Chain scopes selector inside parent.
func Chain(parent, selector string) string {
	return parent + " >> " + selector
}

// IsTimeout reports whether err is a bounded-wait expiry.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

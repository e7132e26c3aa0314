package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"erpfetch/internal/logging"
)

const clearStorageScript = `() => {
	try { window.localStorage.clear(); } catch (e) {}
	try { window.sessionStorage.clear(); } catch (e) {}
}`

const titleContainsScript = `fragment => document.title.includes(fragment)`

// PlaywrightLauncher starts playwright-driven browsers.
type PlaywrightLauncher struct {
	// Browser is one of chromium, firefox or webkit.
	Browser  string
	Headless bool
	// Install downloads the browser binaries before the first launch.
	Install bool
	Logger  *slog.Logger
}

// Launch starts the playwright driver, a browser and a single tab.
func (l PlaywrightLauncher) Launch(ctx context.Context, opts LaunchOptions) (Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := logging.NewComponentLogger(l.Logger, "browser")
	browserName := strings.ToLower(strings.TrimSpace(l.Browser))
	if browserName == "" {
		browserName = "chromium"
	}

	runOpts := &playwright.RunOptions{
		Browsers: []string{browserName},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if l.Install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	var browserType playwright.BrowserType
	switch browserName {
	case "firefox":
		browserType = pw.Firefox
	case "webkit":
		browserType = pw.WebKit
	default:
		browserType = pw.Chromium
	}

	browser, err := browserType.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch %s: %w", browserName, err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		AcceptDownloads: playwright.Bool(true),
		Viewport:        &playwright.Size{Width: 1600, Height: 1000},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("create page: %w", err)
	}
	if opts.DefaultTimeout > 0 {
		page.SetDefaultTimeout(ms(opts.DefaultTimeout))
	}

	d := &playwrightDriver{
		pw:        pw,
		browser:   browser,
		bctx:      bctx,
		page:      page,
		chromium:  browserName == "chromium",
		downloads: newDownloadTracker(opts.DownloadDir),
		logger:    logger,
	}
	page.OnDownload(d.handleDownload)

	logger.Info("browser launched",
		logging.String("browser", browserName),
		logging.Bool("headless", l.Headless),
		logging.String("download_dir", opts.DownloadDir),
		logging.EventType("browser_launched"),
	)
	return d, nil
}

type playwrightDriver struct {
	pw        *playwright.Playwright
	browser   playwright.Browser
	bctx      playwright.BrowserContext
	page      playwright.Page
	chromium  bool
	downloads *downloadTracker
	logger    *slog.Logger

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

func (d *playwrightDriver) handleDownload(download playwright.Download) {
	dest := d.downloads.begin(download.SuggestedFilename())
	// SaveAs waits for the transfer; it must not run on the event dispatch goroutine.
	go func() {
		err := download.SaveAs(dest)
		d.downloads.finish(dest, err)
		if err != nil {
			logging.WarnWithContext(d.logger, "download save failed", "download_failed",
				logging.String("path", dest),
				logging.Error(err),
				logging.ErrorHint("check free space and download_root permissions"),
				logging.Impact("report file missing from the order directory"),
			)
			return
		}
		d.logger.Info("download saved",
			logging.String("path", dest),
			logging.EventType("download_saved"),
		)
	}()
}

func (d *playwrightDriver) active(ctx context.Context) error {
	if d.closed {
		return ErrClosed
	}
	if ctx != nil {
		return ctx.Err()
	}
	return nil
}

func (d *playwrightDriver) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := d.active(ctx); err != nil {
		return err
	}
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   optMS(timeout),
	})
	return wrap("navigate", url, err)
}

func (d *playwrightDriver) Reload(ctx context.Context, timeout time.Duration) error {
	if err := d.active(ctx); err != nil {
		return err
	}
	_, err := d.page.Reload(playwright.PageReloadOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   optMS(timeout),
	})
	return wrap("reload", d.page.URL(), err)
}

func (d *playwrightDriver) HardReload(ctx context.Context, url string, timeout time.Duration) error {
	if err := d.active(ctx); err != nil {
		return err
	}
	if err := d.bctx.ClearCookies(); err != nil {
		return wrap("clear cookies", "", err)
	}
	if _, err := d.page.Evaluate(clearStorageScript); err != nil {
		d.logger.Debug("storage clear skipped", logging.Error(err))
	}
	if d.chromium {
		if session, err := d.bctx.NewCDPSession(d.page); err == nil {
			if _, err := session.Send("Network.clearBrowserCache", nil); err != nil {
				d.logger.Debug("cache clear skipped", logging.Error(err))
			}
			_ = session.Detach()
		}
	}
	return d.Navigate(ctx, url, timeout)
}

func (d *playwrightDriver) URL() string {
	if d.closed {
		return ""
	}
	return d.page.URL()
}

func (d *playwrightDriver) Title() (string, error) {
	if err := d.active(nil); err != nil {
		return "", err
	}
	title, err := d.page.Title()
	return title, wrap("title", "", err)
}

func (d *playwrightDriver) WaitForTitle(ctx context.Context, fragment string, timeout time.Duration) error {
	if err := d.active(ctx); err != nil {
		return err
	}
	_, err := d.page.WaitForFunction(titleContainsScript, fragment, playwright.PageWaitForFunctionOptions{
		Timeout: optMS(timeout),
	})
	return wrap("wait for title", fragment, err)
}

func (d *playwrightDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := d.active(ctx); err != nil {
		return err
	}
	err := d.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: optMS(timeout),
	})
	return wrap("wait visible", selector, err)
}

func (d *playwrightDriver) WaitIdle(ctx context.Context, timeout time.Duration) error {
	if err := d.active(ctx); err != nil {
		return err
	}
	err := d.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: optMS(timeout),
	})
	return wrap("wait idle", "", err)
}

func (d *playwrightDriver) Count(selector string) (int, error) {
	if err := d.active(nil); err != nil {
		return 0, err
	}
	n, err := d.page.Locator(selector).Count()
	return n, wrap("count", selector, err)
}

func (d *playwrightDriver) Click(ctx context.Context, selector string, opts ClickOptions) error {
	if err := d.active(ctx); err != nil {
		return err
	}
	loc := d.page.Locator(selector)
	if opts.Double {
		return wrap("double click", selector, loc.Dblclick(playwright.LocatorDblclickOptions{Timeout: optMS(opts.Timeout)}))
	}
	return wrap("click", selector, loc.Click(playwright.LocatorClickOptions{Timeout: optMS(opts.Timeout)}))
}

func (d *playwrightDriver) ScriptClick(selector string) error {
	if err := d.active(nil); err != nil {
		return err
	}
	return wrap("script click", selector, d.page.Locator(selector).DispatchEvent("click", nil))
}

func (d *playwrightDriver) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	if err := d.active(ctx); err != nil {
		return err
	}
	return wrap("fill", selector, d.page.Locator(selector).Fill(value, playwright.LocatorFillOptions{Timeout: optMS(timeout)}))
}

func (d *playwrightDriver) Clear(ctx context.Context, selector string, timeout time.Duration) error {
	if err := d.active(ctx); err != nil {
		return err
	}
	return wrap("clear", selector, d.page.Locator(selector).Clear(playwright.LocatorClearOptions{Timeout: optMS(timeout)}))
}

func (d *playwrightDriver) Press(ctx context.Context, selector, key string, timeout time.Duration) error {
	if err := d.active(ctx); err != nil {
		return err
	}
	return wrap("press", selector, d.page.Locator(selector).Press(key, playwright.LocatorPressOptions{Timeout: optMS(timeout)}))
}

func (d *playwrightDriver) IsChecked(selector string) (bool, error) {
	if err := d.active(nil); err != nil {
		return false, err
	}
	checked, err := d.page.Locator(selector).IsChecked()
	return checked, wrap("is checked", selector, err)
}

func (d *playwrightDriver) Attribute(selector, name string) (string, error) {
	if err := d.active(nil); err != nil {
		return "", err
	}
	value, err := d.page.Locator(selector).GetAttribute(name)
	return value, wrap("attribute "+name, selector, err)
}

func (d *playwrightDriver) Evaluate(selector, script string, arg any) (any, error) {
	if err := d.active(nil); err != nil {
		return nil, err
	}
	if selector == "" {
		result, err := d.page.Evaluate(script, arg)
		return result, wrap("evaluate", "", err)
	}
	result, err := d.page.Locator(selector).Evaluate(script, arg)
	return result, wrap("evaluate", selector, err)
}

func (d *playwrightDriver) FollowPopup(ctx context.Context, trigger func() error, timeout time.Duration) (string, error) {
	if err := d.active(ctx); err != nil {
		return "", err
	}
	popup, err := d.page.ExpectPopup(trigger, playwright.PageExpectPopupOptions{Timeout: optMS(timeout)})
	if err != nil {
		return "", wrap("popup", "", err)
	}
	if err := popup.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: optMS(timeout),
	}); err != nil {
		_ = popup.Close()
		return "", wrap("popup load", "", err)
	}
	url := popup.URL()
	if err := popup.Close(); err != nil {
		d.logger.Debug("popup close failed", logging.Error(err))
	}
	if err := d.page.BringToFront(); err != nil {
		d.logger.Debug("bring to front failed", logging.Error(err))
	}
	return url, nil
}

func (d *playwrightDriver) SetDownloadDir(dir string) error {
	if err := d.active(nil); err != nil {
		return err
	}
	d.downloads.setDir(dir)
	return nil
}

func (d *playwrightDriver) ExpectDownload(trigger func() error) error {
	if err := d.active(nil); err != nil {
		return err
	}
	cancel := d.downloads.expect()
	if err := trigger(); err != nil {
		cancel()
		return err
	}
	return nil
}

func (d *playwrightDriver) AwaitDownloads(ctx context.Context, timeout time.Duration) ([]string, error) {
	return d.downloads.wait(ctx, timeout)
}

func (d *playwrightDriver) Screenshot(path string) error {
	if err := d.active(nil); err != nil {
		return err
	}
	_, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return wrap("screenshot", path, err)
}

func (d *playwrightDriver) Content() (string, error) {
	if err := d.active(nil); err != nil {
		return "", err
	}
	html, err := d.page.Content()
	return html, wrap("content", "", err)
}

func (d *playwrightDriver) Close() error {
	d.closeOnce.Do(func() {
		d.closed = true
		var errs []error
		if err := d.bctx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
		if err := d.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		if err := d.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}

func wrap(op, target string, err error) error {
	if err == nil {
		return nil
	}
	label := op
	if target != "" {
		label = fmt.Sprintf("%s %q", op, target)
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%s: %w: %w", label, ErrTimeout, err)
	}
	if errors.Is(err, playwright.ErrTargetClosed) {
		return fmt.Errorf("%s: %w: %w", label, ErrClosed, err)
	}
	return fmt.Errorf("%s: %w", label, err)
}

func ms(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}

func optMS(d time.Duration) *float64 {
	if d <= 0 {
		return nil
	}
	return playwright.Float(ms(d))
}

package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"erpfetch/internal/browser"
	"erpfetch/internal/locators"
	"erpfetch/internal/logging"
	"erpfetch/internal/services"
)

const component = "recovery"

// Primitives is the recovery surface page flows depend on.
type Primitives interface {
	// SuppressOverlays hides notification overlays that intercept clicks.
	SuppressOverlays(ctx context.Context) error
	// ResetDialogContext reloads the current page so dialogs are rebuilt.
	ResetDialogContext(ctx context.Context) error
	// Click clicks selector, falling back once to a scripted click after
	// suppressing overlays.
	Click(ctx context.Context, selector string, opts browser.ClickOptions) error
	// ClearInput empties a text input.
	ClearInput(ctx context.Context, selector string) error
	// CloseDialog clicks selector or, failing that, every generic dialog close button.
	CloseDialog(ctx context.Context, selector string) error
}

// Kit implements Primitives against a browser.Driver.
type Kit struct {
	driver   browser.Driver
	catalog  *locators.Catalog
	element  time.Duration
	pageLoad time.Duration
	logger   *slog.Logger
}

// New constructs a Kit.
func New(driver browser.Driver, catalog *locators.Catalog, element, pageLoad time.Duration, logger *slog.Logger) *Kit {
	return &Kit{
		driver:   driver,
		catalog:  catalog,
		element:  element,
		pageLoad: pageLoad,
		logger:   logging.NewComponentLogger(logger, component),
	}
}

func (k *Kit) SuppressOverlays(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := k.driver.Evaluate("", k.catalog.OverlayScript, nil); err != nil {
		return services.Wrap(services.ErrTransient, component, "suppress overlays", "overlay script failed", err)
	}
	return nil
}

func (k *Kit) ResetDialogContext(ctx context.Context) error {
	k.logger.Info("reloading page to reset dialog context",
		logging.String("url", k.driver.URL()),
		logging.EventType("dialog_context_reset"),
	)
	if err := k.driver.Reload(ctx, k.pageLoad); err != nil {
		return services.Wrap(services.ErrTransient, component, "reset dialog context", "reload failed", err)
	}
	if err := k.SuppressOverlays(ctx); err != nil {
		k.logger.Debug("overlay suppression after reload failed", logging.Error(err))
	}
	return nil
}

func (k *Kit) Click(ctx context.Context, selector string, opts browser.ClickOptions) error {
	if opts.Timeout <= 0 {
		opts.Timeout = k.element
	}
	err := k.driver.Click(ctx, selector, opts)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if n, countErr := k.driver.Count(selector); countErr == nil && n == 0 {
		return services.Wrap(services.ErrTimeout, component, "click", fmt.Sprintf("%q not present", selector), err)
	}

	logging.WarnWithContext(k.logger, "click failed; retrying with scripted click", "click_intercepted",
		logging.String("selector", selector),
		logging.Error(err),
		logging.ErrorHint("an overlay or animation covered the element"),
		logging.Impact("none if the scripted click succeeds"),
	)
	if supErr := k.SuppressOverlays(ctx); supErr != nil {
		k.logger.Debug("overlay suppression failed", logging.Error(supErr))
	}
	if opts.Double {
		_, scriptErr := k.driver.Evaluate(selector, dblclickScript, nil)
		if scriptErr == nil {
			return nil
		}
		return services.Wrap(services.ErrClickIntercepted, component, "double click", selector, errors.Join(err, scriptErr))
	}
	if scriptErr := k.driver.ScriptClick(selector); scriptErr != nil {
		return services.Wrap(services.ErrClickIntercepted, component, "click", selector, errors.Join(err, scriptErr))
	}
	return nil
}

const dblclickScript = `el => el.dispatchEvent(new MouseEvent('dblclick', { bubbles: true, cancelable: true }))`

// ClearInput tries, in order: the native clear, a scripted value reset, and
// select-all followed by Backspace.
func (k *Kit) ClearInput(ctx context.Context, selector string) error {
	nativeErr := k.driver.Clear(ctx, selector, k.element)
	if nativeErr == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	k.logger.Debug("native clear failed", logging.String("selector", selector), logging.Error(nativeErr))

	scriptErr := errors.New("no reset script configured")
	if k.catalog.ResetInputScript != "" {
		if _, scriptErr = k.driver.Evaluate(selector, k.catalog.ResetInputScript, nil); scriptErr == nil {
			return nil
		}
	}
	k.logger.Debug("scripted reset failed", logging.String("selector", selector), logging.Error(scriptErr))

	keysErr := k.driver.Press(ctx, selector, "ControlOrMeta+a", k.element)
	if keysErr == nil {
		keysErr = k.driver.Press(ctx, selector, "Backspace", k.element)
	}
	if keysErr == nil {
		return nil
	}
	marker := services.ErrTransient
	if browser.IsTimeout(nativeErr) {
		marker = services.ErrTimeout
	}
	return services.Wrap(marker, component, "clear input", selector, errors.Join(nativeErr, scriptErr, keysErr))
}

func (k *Kit) CloseDialog(ctx context.Context, selector string) error {
	var clickErr error
	if selector != "" {
		clickErr = k.Click(ctx, selector, browser.ClickOptions{})
		if clickErr == nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	result, err := k.driver.Evaluate("", k.catalog.CloseDialogsScript, nil)
	if err != nil {
		return services.Wrap(services.ErrTransient, component, "close dialog", "fallback close failed", errors.Join(clickErr, err))
	}
	k.logger.Debug("dialog closed by fallback", logging.String("selector", selector), logging.Any("closed", result))
	return nil
}

var _ Primitives = (*Kit)(nil)

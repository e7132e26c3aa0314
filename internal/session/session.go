package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"erpfetch/internal/browser"
	"erpfetch/internal/config"
	"erpfetch/internal/locators"
	"erpfetch/internal/logging"
	"erpfetch/internal/services"
)

const component = "session"

// State is the controller lifecycle position.
type State int

const (
	StateNotStarted State = iota
	StateStarted
	StateLoggedIn
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarted:
		return "started"
	case StateLoggedIn:
		return "logged_in"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	State    State
	LoggedIn bool
	// AttemptCount counts every failed login since the process started.
	AttemptCount int
	// ContextAttempts counts failed logins in the current browser since its
	// last successful login.
	ContextAttempts int
	Restarts        int
	BaseURL         string
}

// Options configures a Controller.
type Options struct {
	BaseURL            string
	Email              string
	Password           string
	AuthenticatedTitle string
	LoginRetries       int
	LoginTimeout       time.Duration
	PageLoadTimeout    time.Duration
	ElementTimeout     time.Duration
}

// OptionsFromConfig extracts controller options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:            cfg.ERP.BaseURL,
		Email:              cfg.ERP.Email,
		Password:           cfg.ERP.Password,
		AuthenticatedTitle: cfg.ERP.AuthenticatedTitle,
		LoginRetries:       cfg.Session.LoginRetries,
		LoginTimeout:       cfg.Timeouts.Login(),
		PageLoadTimeout:    cfg.Timeouts.PageLoad(),
		ElementTimeout:     cfg.Timeouts.Element(),
	}
}

// Controller provisions the browser and keeps it logged in. It is safe for
// concurrent use, though the orchestrator drives it from one goroutine.
type Controller struct {
	launcher browser.Launcher
	opts     Options
	login    locators.Login
	logger   *slog.Logger

	mu              sync.Mutex
	driver          browser.Driver
	state           State
	downloadDir     string
	attempts        int
	contextAttempts int
	restarts        int
}

// New constructs a controller in the NotStarted state.
func New(launcher browser.Launcher, opts Options, login locators.Login, logger *slog.Logger) *Controller {
	if opts.LoginRetries <= 0 {
		opts.LoginRetries = 1
	}
	return &Controller{
		launcher: launcher,
		opts:     opts,
		login:    login,
		logger:   logging.NewComponentLogger(logger, component),
	}
}

// Start provisions a browser whose downloads land in downloadDir and opens
// the base URL.
func (c *Controller) Start(ctx context.Context, downloadDir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(ctx, downloadDir)
}

func (c *Controller) startLocked(ctx context.Context, downloadDir string) error {
	if c.driver != nil {
		return nil
	}
	driver, err := c.launcher.Launch(ctx, browser.LaunchOptions{
		DownloadDir:    downloadDir,
		DefaultTimeout: c.opts.ElementTimeout,
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, component, "start", "browser could not be provisioned", err)
	}
	if err := driver.Navigate(ctx, c.opts.BaseURL, c.opts.PageLoadTimeout); err != nil {
		_ = driver.Close()
		return services.Wrap(services.ErrTransient, component, "start", "open base url", err)
	}
	c.driver = driver
	c.downloadDir = downloadDir
	c.contextAttempts = 0
	c.state = StateStarted
	c.logger.Info("session started",
		logging.String("base_url", c.opts.BaseURL),
		logging.String("download_dir", downloadDir),
		logging.EventType("session_started"),
	)
	return nil
}

// Login authenticates the current browser. It returns nil when the page is
// already authenticated, and an error wrapping services.ErrRetriesExhausted
// once the attempt ceiling for this browser is reached.
func (c *Controller) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.driver == nil {
		return services.Wrap(services.ErrSessionNotStarted, component, "login", "start the session first", nil)
	}

	var lastErr error
	for c.contextAttempts < c.opts.LoginRetries {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.attempt(ctx)
		if err == nil {
			c.state = StateLoggedIn
			c.contextAttempts = 0
			c.logger.Info("logged in",
				logging.Int("failed_attempts", c.attempts),
				logging.EventType("login_succeeded"),
			)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.attempts++
		c.contextAttempts++
		lastErr = err
		logging.WarnWithContext(c.logger, "login attempt failed", "login_failed",
			logging.Int("attempt", c.contextAttempts),
			logging.Int("ceiling", c.opts.LoginRetries),
			logging.Error(err),
			logging.ErrorHint("check erp.email, erp.password and erp.authenticated_title"),
			logging.Impact("login retried after a hard reload"),
		)
	}
	c.state = StateStarted
	return services.Wrap(services.ErrRetriesExhausted, component, "login",
		fmt.Sprintf("%d attempts failed in this browser", c.contextAttempts), lastErr)
}

func (c *Controller) attempt(ctx context.Context) error {
	d := c.driver
	if err := d.HardReload(ctx, c.opts.BaseURL, c.opts.PageLoadTimeout); err != nil {
		return fmt.Errorf("hard reload: %w", err)
	}
	if title, err := d.Title(); err == nil && c.authenticated(title) {
		c.logger.Debug("already authenticated", logging.String("title", title))
		return nil
	}
	if err := d.Fill(ctx, c.login.Email, c.opts.Email, c.opts.ElementTimeout); err != nil {
		return fmt.Errorf("fill email: %w", err)
	}
	if err := d.Fill(ctx, c.login.Password, c.opts.Password, c.opts.ElementTimeout); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	if err := d.Press(ctx, c.login.Password, "Enter", c.opts.ElementTimeout); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := d.WaitForTitle(ctx, c.opts.AuthenticatedTitle, c.opts.LoginTimeout); err != nil {
		return services.Wrap(services.ErrLoginFailed, component, "login", "authenticated title never appeared", err)
	}
	return nil
}

func (c *Controller) authenticated(title string) bool {
	marker := strings.TrimSpace(c.opts.AuthenticatedTitle)
	return marker != "" && strings.Contains(title, marker)
}

// End closes the browser. Calling it again is a no-op.
func (c *Controller) End() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endLocked()
}

func (c *Controller) endLocked() error {
	if c.driver == nil {
		if c.state != StateNotStarted {
			c.state = StateEnded
		}
		return nil
	}
	err := c.driver.Close()
	c.driver = nil
	c.state = StateEnded
	if err != nil && !errors.Is(err, browser.ErrClosed) {
		return fmt.Errorf("close browser: %w", err)
	}
	c.logger.Info("session ended", logging.EventType("session_ended"))
	return nil
}

// Restart tears the browser down and provisions a fresh one with the same
// download directory.
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.endLocked(); err != nil {
		c.logger.Debug("teardown before restart failed", logging.Error(err))
	}
	c.restarts++
	c.logger.Info("restarting session",
		logging.Int("restart", c.restarts),
		logging.EventType("session_restart"),
	)
	return c.startLocked(ctx, c.downloadDir)
}

// Driver returns the live browser driver.
func (c *Controller) Driver() (browser.Driver, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.driver == nil {
		return nil, services.Wrap(services.ErrSessionNotStarted, component, "driver", "no live browser", nil)
	}
	return c.driver, nil
}

// State returns the lifecycle position.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:           c.state,
		LoggedIn:        c.state == StateLoggedIn,
		AttemptCount:    c.attempts,
		ContextAttempts: c.contextAttempts,
		Restarts:        c.restarts,
		BaseURL:         c.opts.BaseURL,
	}
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateERP(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateWorklist(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateERP() error {
	if c.ERP.BaseURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.ERP.BaseURL)
	if err != nil {
		return fmt.Errorf("erp.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("erp.base_url must be an http(s) URL, got %q", c.ERP.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("erp.base_url must include a host, got %q", c.ERP.BaseURL)
	}
	return nil
}

func (c *Config) validateSession() error {
	switch c.Session.Browser {
	case "chromium", "firefox", "webkit":
	default:
		return fmt.Errorf("session.browser must be chromium, firefox or webkit, got %q", c.Session.Browser)
	}
	if c.Session.LoginRetries < 1 {
		return errors.New("session.login_retries must be >= 1")
	}
	if c.Session.MaxRestarts < 0 {
		return errors.New("session.max_restarts must be >= 0")
	}
	if c.Session.RestartBackoffSeconds < 0 {
		return errors.New("session.restart_backoff_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	if err := ensurePositiveMap(map[string]int{
		"timeouts.element_seconds":        c.Timeouts.ElementSeconds,
		"timeouts.search_results_seconds": c.Timeouts.SearchResultsSeconds,
		"timeouts.dialog_seconds":         c.Timeouts.DialogSeconds,
		"timeouts.login_seconds":          c.Timeouts.LoginSeconds,
		"timeouts.page_load_seconds":      c.Timeouts.PageLoadSeconds,
		"timeouts.download_seconds":       c.Timeouts.DownloadSeconds,
		"notifications.request_timeout":   c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Timeouts.SettleMillis < 0 {
		return errors.New("timeouts.settle_millis must be >= 0")
	}
	return nil
}

func (c *Config) validateWorklist() error {
	for _, field := range []string{FieldOrderID, FieldReportName} {
		if strings.TrimSpace(c.Worklist.Columns[field]) == "" {
			return fmt.Errorf("worklist.columns.%s must be set", field)
		}
	}
	known := DefaultColumns()
	for field := range c.Worklist.Columns {
		if _, ok := known[field]; !ok {
			return fmt.Errorf("worklist.columns: unknown field %q", field)
		}
	}
	return nil
}

func (c *Config) validateDispatch() error {
	names := make([]string, 0, len(c.Dispatch.Reports))
	for name := range c.Dispatch.Reports {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch c.Dispatch.Reports[name] {
		case "inbound", "settlement", "transaction", "audit":
		default:
			return fmt.Errorf("dispatch.reports[%q]: unknown variant %q", name, c.Dispatch.Reports[name])
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

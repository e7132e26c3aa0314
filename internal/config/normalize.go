package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeERP()
	c.normalizeSession()
	if err := c.normalizeWorklist(); err != nil {
		return err
	}
	if err := c.normalizeLedger(); err != nil {
		return err
	}
	c.normalizeDispatch()
	if err := c.normalizeJournal(); err != nil {
		return err
	}
	if err := c.normalizeDiagnostics(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DownloadRoot) == "" {
		c.Paths.DownloadRoot = defaultDownloadRoot
	}
	if c.Paths.DownloadRoot, err = expandPath(c.Paths.DownloadRoot); err != nil {
		return fmt.Errorf("paths.download_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.ScreenshotsDir) == "" {
		c.Paths.ScreenshotsDir = defaultScreenshotsDir
	}
	if c.Paths.ScreenshotsDir, err = expandPath(c.Paths.ScreenshotsDir); err != nil {
		return fmt.Errorf("paths.screenshots_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeERP() {
	c.ERP.BaseURL = strings.TrimSpace(c.ERP.BaseURL)
	if c.ERP.BaseURL == "" {
		c.ERP.BaseURL = lookupFirst("ERP_BASE_URL", "BASE_URL")
	}
	c.ERP.BaseURL = strings.TrimRight(c.ERP.BaseURL, "/")
	c.ERP.Email = strings.TrimSpace(c.ERP.Email)
	if c.ERP.Email == "" {
		c.ERP.Email = lookupFirst("ERP_USER_EMAIL", "USER_EMAIL")
	}
	if c.ERP.Password == "" {
		if value, ok := os.LookupEnv("ERP_USER_PASSWORD"); ok && value != "" {
			c.ERP.Password = value
		} else if value, ok := os.LookupEnv("USER_PASSWORD"); ok {
			c.ERP.Password = value
		}
	}
	c.ERP.AuthenticatedTitle = strings.TrimSpace(c.ERP.AuthenticatedTitle)
	if c.ERP.AuthenticatedTitle == "" {
		c.ERP.AuthenticatedTitle = defaultAuthenticatedTitle
	}
}

func (c *Config) normalizeSession() {
	c.Session.Browser = strings.ToLower(strings.TrimSpace(c.Session.Browser))
	if c.Session.Browser == "" {
		c.Session.Browser = defaultBrowser
	}
}

func (c *Config) normalizeWorklist() error {
	var err error
	c.Worklist.Path = strings.TrimSpace(c.Worklist.Path)
	if c.Worklist.Path == "" {
		c.Worklist.Path = lookupFirst("ERP_WORKLIST")
	}
	if c.Worklist.Path != "" {
		if c.Worklist.Path, err = expandPath(c.Worklist.Path); err != nil {
			return fmt.Errorf("worklist.path: %w", err)
		}
	}
	c.Worklist.Sheet = strings.TrimSpace(c.Worklist.Sheet)
	if c.Worklist.Sheet == "" {
		c.Worklist.Sheet = defaultWorklistSheet
	}
	merged := DefaultColumns()
	for field, header := range c.Worklist.Columns {
		key := strings.ToLower(strings.TrimSpace(field))
		if header = strings.TrimSpace(header); key != "" && header != "" {
			merged[key] = header
		}
	}
	c.Worklist.Columns = merged
	return nil
}

func (c *Config) normalizeLedger() error {
	var err error
	if strings.TrimSpace(c.Ledger.Path) == "" {
		c.Ledger.Path = filepath.Join(c.Paths.StateDir, defaultLedgerFile)
	}
	if c.Ledger.Path, err = expandPath(c.Ledger.Path); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeDispatch() {
	if len(c.Dispatch.Reports) == 0 {
		return
	}
	reports := make(map[string]string, len(c.Dispatch.Reports))
	for name, variant := range c.Dispatch.Reports {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		reports[name] = strings.ToLower(strings.TrimSpace(variant))
	}
	c.Dispatch.Reports = reports
}

func (c *Config) normalizeJournal() error {
	var err error
	if strings.TrimSpace(c.Journal.Path) == "" {
		c.Journal.Path = filepath.Join(c.Paths.StateDir, defaultJournalFile)
	}
	if c.Journal.Path, err = expandPath(c.Journal.Path); err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeDiagnostics() error {
	var err error
	c.Diagnostics.LocatorsPath = strings.TrimSpace(c.Diagnostics.LocatorsPath)
	if c.Diagnostics.LocatorsPath == "" {
		return nil
	}
	if c.Diagnostics.LocatorsPath, err = expandPath(c.Diagnostics.LocatorsPath); err != nil {
		return fmt.Errorf("diagnostics.locators_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = lookupFirst("NTFY_TOPIC")
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text", "pretty":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

func lookupFirst(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

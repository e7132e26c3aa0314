package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"erpfetch/internal/textutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the project-relative working directories.
type Paths struct {
	StateDir       string `toml:"state_dir"`
	DownloadRoot   string `toml:"download_root"`
	ScreenshotsDir string `toml:"screenshots_dir"`
	LogDir         string `toml:"log_dir"`
}

// ERP contains the target system address and credentials.
type ERP struct {
	BaseURL            string `toml:"base_url"`
	Email              string `toml:"email"`
	Password           string `toml:"password"`
	AuthenticatedTitle string `toml:"authenticated_title"`
}

// Session contains browser provisioning and login recovery settings.
type Session struct {
	Browser               string `toml:"browser"`
	Headless              bool   `toml:"headless"`
	InstallBrowsers       bool   `toml:"install_browsers"`
	LoginRetries          int    `toml:"login_retries"`
	MaxRestarts           int    `toml:"max_restarts"`
	RestartBackoffSeconds int    `toml:"restart_backoff_seconds"`
}

// Timeouts bounds every wait the automation performs.
type Timeouts struct {
	ElementSeconds       int `toml:"element_seconds"`
	SearchResultsSeconds int `toml:"search_results_seconds"`
	DialogSeconds        int `toml:"dialog_seconds"`
	LoginSeconds         int `toml:"login_seconds"`
	PageLoadSeconds      int `toml:"page_load_seconds"`
	DownloadSeconds      int `toml:"download_seconds"`
	SettleMillis         int `toml:"settle_millis"`
}

// Worklist describes where work items come from and how columns map to fields.
type Worklist struct {
	Path    string            `toml:"path"`
	Sheet   string            `toml:"sheet"`
	Columns map[string]string `toml:"columns"`
}

// Ledger contains progress ledger settings.
type Ledger struct {
	Path          string `toml:"path"`
	SkipCompleted bool   `toml:"skip_completed"`
}

// Dispatch contains report classification settings.
type Dispatch struct {
	PageFallback bool              `toml:"page_fallback"`
	Reports      map[string]string `toml:"reports"`
}

// Journal contains attempt history settings.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Diagnostics controls failure artifacts and locator overrides.
type Diagnostics struct {
	CaptureHTML  bool   `toml:"capture_html"`
	LocatorsPath string `toml:"locators_path"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunStart       bool   `toml:"run_start"`
	RunComplete    bool   `toml:"run_complete"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for erpfetch.
//
// Configuration sections by subsystem:
//   - Paths: state, download, screenshot and log directories
//   - ERP: base URL, credentials and the authenticated page marker
//   - Session: browser flavour, headless mode and login/restart ceilings
//   - Timeouts: bounded waits used by the page handlers
//   - Worklist: input file and column remapping
//   - Ledger: progress ledger location and resume policy
//   - Dispatch: report classification overrides
//   - Journal: sqlite attempt history
//   - Diagnostics: screenshots, page markup and locator overrides
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	ERP           ERP           `toml:"erp"`
	Session       Session       `toml:"session"`
	Timeouts      Timeouts      `toml:"timeouts"`
	Worklist      Worklist      `toml:"worklist"`
	Ledger        Ledger        `toml:"ledger"`
	Dispatch      Dispatch      `toml:"dispatch"`
	Journal       Journal       `toml:"journal"`
	Diagnostics   Diagnostics   `toml:"diagnostics"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/erpfetch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory or next to
// the resolved config file is loaded first; it never overrides variables already set.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(".env", filepath.Join(filepath.Dir(resolvedPath), ".env")); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv(candidates ...string) error {
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("load %s: %w", abs, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("erpfetch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working directories a run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.DownloadRoot, c.Paths.ScreenshotsDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RequireCredentials reports whether the ERP address and login are present.
// Only commands that drive the browser need them.
func (c *Config) RequireCredentials() error {
	var missing []string
	if strings.TrimSpace(c.ERP.BaseURL) == "" {
		missing = append(missing, "erp.base_url (ERP_BASE_URL)")
	}
	if strings.TrimSpace(c.ERP.Email) == "" {
		missing = append(missing, "erp.email (ERP_USER_EMAIL)")
	}
	if c.ERP.Password == "" {
		missing = append(missing, "erp.password (ERP_USER_PASSWORD)")
	}
	if len(missing) == 0 {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/erpfetch/config.toml"
	}
	return fmt.Errorf("missing %s. Set the env vars, a .env file, or edit %s (create with 'erpfetch config init')",
		strings.Join(missing, ", "), defaultPath)
}

// OrderDownloadDir returns the per-order download directory.
func (c *Config) OrderDownloadDir(orderID string) string {
	name := textutil.SanitizeFileName(orderID)
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(c.Paths.DownloadRoot, name)
}

// RunLockPath returns the path of the single-run instance lock.
func (c *Config) RunLockPath() string {
	return filepath.Join(c.Paths.StateDir, "erpfetch.lock")
}

// Duration helpers convert configured seconds into time.Duration values.

func (t Timeouts) Element() time.Duration       { return seconds(t.ElementSeconds) }
func (t Timeouts) SearchResults() time.Duration { return seconds(t.SearchResultsSeconds) }
func (t Timeouts) Dialog() time.Duration        { return seconds(t.DialogSeconds) }
func (t Timeouts) Login() time.Duration         { return seconds(t.LoginSeconds) }
func (t Timeouts) PageLoad() time.Duration      { return seconds(t.PageLoadSeconds) }
func (t Timeouts) Download() time.Duration      { return seconds(t.DownloadSeconds) }
func (t Timeouts) Settle() time.Duration        { return time.Duration(t.SettleMillis) * time.Millisecond }

// RestartBackoff returns the initial delay between session restarts.
func (s Session) RestartBackoff() time.Duration { return seconds(s.RestartBackoffSeconds) }

func seconds(v int) time.Duration { return time.Duration(v) * time.Second }

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

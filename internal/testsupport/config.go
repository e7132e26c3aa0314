package testsupport

import (
	"path/filepath"
	"testing"

	"erpfetch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Timeouts are shortened so fake-driver waits fail fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "application_state")
	cfgVal.Paths.DownloadRoot = filepath.Join(base, "downloads")
	cfgVal.Paths.ScreenshotsDir = filepath.Join(base, "screenshots")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Ledger.Path = filepath.Join(cfgVal.Paths.StateDir, "downloads.csv")
	cfgVal.Journal.Path = filepath.Join(cfgVal.Paths.StateDir, "journal.db")
	cfgVal.Worklist.Path = filepath.Join(base, "worklist.csv")
	cfgVal.ERP.BaseURL = "https://erp.test"
	cfgVal.ERP.Email = "ops@example.com"
	cfgVal.ERP.Password = "secret"
	cfgVal.Session.RestartBackoffSeconds = 0
	cfgVal.Timeouts.SettleMillis = 0
	cfgVal.Timeouts.DownloadSeconds = 1

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithoutCredentials clears the ERP login fields.
func WithoutCredentials() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ERP.Email = ""
		b.cfg.ERP.Password = ""
	}
}

// WithLoginRetries overrides the login attempt ceiling.
func WithLoginRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.LoginRetries = n
	}
}

// WithoutJournal disables the sqlite attempt journal.
func WithoutJournal() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

package preflight

import (
	"context"

	"erpfetch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Download root", cfg.Paths.DownloadRoot),
		CheckDirectoryAccess("Screenshots directory", cfg.Paths.ScreenshotsDir),
		CheckCredentials(cfg),
		CheckWorklist(cfg),
		CheckLocators(cfg.Diagnostics.LocatorsPath),
		CheckLedger(cfg.Ledger.Path),
	}
	if cfg.Journal.Enabled {
		results = append(results, CheckJournal(cfg.Journal.Path))
	}
	results = append(results, CheckNotifications(cfg))
	if cfg.ERP.BaseURL != "" {
		results = append(results, CheckERP(ctx, cfg.ERP.BaseURL))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

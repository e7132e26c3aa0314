package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"erpfetch/internal/config"
	"erpfetch/internal/journal"
	"erpfetch/internal/ledger"
	"erpfetch/internal/locators"
	"erpfetch/internal/notifications"
	"erpfetch/internal/worklist"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCredentials verifies the ERP address and login are configured.
func CheckCredentials(cfg *config.Config) Result {
	const name = "ERP credentials"
	if err := cfg.RequireCredentials(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: cfg.ERP.Email}
}

// CheckWorklist verifies the worklist parses and reports how many items it holds.
func CheckWorklist(cfg *config.Config) Result {
	const name = "Worklist"
	items, stats, err := worklist.Load(worklist.SourceFromConfig(cfg))
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	orders := len(worklist.GroupByOrder(items))
	detail := fmt.Sprintf("%s (%d items, %d orders)", cfg.Worklist.Path, len(items), orders)
	if dropped := stats.Empty + stats.Duplicates; dropped > 0 {
		detail += fmt.Sprintf(", %d rows dropped", dropped)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckLocators verifies the locator catalog and any override file parse.
func CheckLocators(path string) Result {
	const name = "Locator catalog"
	if _, err := locators.Load(path); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Passed: true, Detail: "built-in"}
	}
	return Result{Name: name, Passed: true, Detail: path + " (merged over built-in)"}
}

// CheckLedger verifies no other process holds the ledger writer lock.
func CheckLedger(path string) Result {
	const name = "Ledger"
	l, err := ledger.Open(path)
	if err != nil {
		if errors.Is(err, ledger.ErrLocked) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: locked by another run)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer l.Close()
	entries, err := l.Load()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d entries)", path, len(entries))}
}

// CheckJournal verifies the attempt journal opens with the expected schema.
func CheckJournal(path string) Result {
	const name = "Journal"
	store, err := journal.Open(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	_ = store.Close()
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckNotifications reports whether ntfy is configured. Disabled is not a failure.
func CheckNotifications(cfg *config.Config) Result {
	const name = "Notifications"
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: notifications.Endpoint(topic)}
}

// CheckERP verifies the ERP base URL answers over HTTP.
func CheckERP(ctx context.Context, baseURL string) Result {
	const name = "ERP"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Reachable (%d)", resp.StatusCode)}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out (ERP unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out (ERP unreachable)"
	}
	return err.Error()
}

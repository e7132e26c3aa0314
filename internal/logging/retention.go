package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"erpfetch/internal/config"
)

// RetentionTarget is a directory and the file pattern pruned inside it.
type RetentionTarget struct {
	Dir     string
	Pattern string
}

// RunArtifacts lists what runs leave behind: per-run logs and failure
// screenshots with their HTML snapshots. The shared erpfetch.log is never
// pruned.
func RunArtifacts(cfg *config.Config) []RetentionTarget {
	if cfg == nil {
		return nil
	}
	return []RetentionTarget{
		{Dir: cfg.Paths.LogDir, Pattern: "run-*.log"},
		{Dir: cfg.Paths.ScreenshotsDir, Pattern: "*.png"},
		{Dir: cfg.Paths.ScreenshotsDir, Pattern: "*.html"},
	}
}

// PruneArtifacts removes files older than retentionDays from every target
// and returns how many were removed. retentionDays <= 0 keeps everything.
func PruneArtifacts(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, target := range targets {
		n, failed := pruneTarget(target, cutoff)
		removed += n
		for path, err := range failed {
			WarnWithContext(logger, "artifact prune failed; file remains", "artifact_prune_failed",
				String("path", path),
				Error(err),
				ErrorHint("check file permissions on "+target.Dir),
				Impact("old artifact remains on disk"),
			)
		}
	}
	if removed > 0 && logger != nil {
		logger.Info("old run artifacts pruned",
			Int("removed", removed),
			Int("retention_days", retentionDays),
			EventType("artifacts_pruned"),
		)
	}
	return removed
}

func pruneTarget(target RetentionTarget, cutoff time.Time) (int, map[string]error) {
	if target.Dir == "" || target.Pattern == "" {
		return 0, nil
	}
	matches, err := filepath.Glob(filepath.Join(target.Dir, target.Pattern))
	if err != nil {
		return 0, nil
	}
	removed := 0
	var failed map[string]error
	for _, path := range matches {
		if filepath.Base(path) == LogFileName {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			if failed == nil {
				failed = map[string]error{}
			}
			failed[path] = err
			continue
		}
		removed++
	}
	return removed, failed
}

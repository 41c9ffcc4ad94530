package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names a log directory and the run-log pattern inside it.
// Keep lists files that stay regardless of age, such as the active run log.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Keep    []string
}

// PruneLogs removes run logs older than retentionDays and returns how many
// were removed. Symlinks such as the unitgo.log pointer are never touched.
// A retentionDays value of 0 disables pruning.
func PruneLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, target := range targets {
		for _, path := range expiredLogs(target, cutoff) {
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check file permissions and paths.log_dir ownership"),
					String(FieldImpact, "old run log stays on disk"),
				)
				continue
			}
			removed++
			logger.Debug("run log pruned", String("path", path), String(FieldEventType, "log_pruned"))
		}
	}
	if removed > 0 {
		logger.Info("pruned run logs",
			Int("removed", removed),
			Int("retention_days", retentionDays),
			String(FieldEventType, "log_retention"))
	}
	return removed
}

// expiredLogs lists regular files in target older than cutoff.
func expiredLogs(target RetentionTarget, cutoff time.Time) []string {
	dir := strings.TrimSpace(target.Dir)
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	keep := make(map[string]struct{}, len(target.Keep))
	for _, path := range target.Keep {
		if abs := absPath(path); abs != "" {
			keep[abs] = struct{}{}
		}
	}
	pattern := strings.TrimSpace(target.Pattern)

	var out []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if pattern != "" {
			if ok, err := filepath.Match(pattern, entry.Name()); err != nil || !ok {
				continue
			}
		}
		path := absPath(filepath.Join(dir, entry.Name()))
		if _, skip := keep[path]; skip {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		out = append(out, path)
	}
	return out
}

func absPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

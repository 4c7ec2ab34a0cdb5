package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Daemon runs write one log file each, named cardsync-<run id>.log, and a
// cardsync.log link in the same directory always points at the newest one.
const (
	RunLogPrefix   = "cardsync-"
	RunLogSuffix   = ".log"
	CurrentLogName = "cardsync.log"

	runIDLayout = "20060102T150405.000Z"
)

// RunLogPath returns the log file for a daemon run started at started.
func RunLogPath(dir string, started time.Time) string {
	return filepath.Join(dir, RunLogPrefix+started.UTC().Format(runIDLayout)+RunLogSuffix)
}

// IsRunLog reports whether name is a per-run daemon log file.
func IsRunLog(name string) bool {
	return strings.HasPrefix(name, RunLogPrefix) && strings.HasSuffix(name, RunLogSuffix) &&
		len(name) > len(RunLogPrefix)+len(RunLogSuffix)
}

// LinkCurrentLog points dir/cardsync.log at target, replacing any previous
// link. Filesystems without symlinks get a hard link instead.
func LinkCurrentLog(dir, target string) error {
	if dir == "" || target == "" {
		return nil
	}
	current := filepath.Join(dir, CurrentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

// PruneResult lists the run logs removed by PruneRunLogs.
type PruneResult struct {
	Removed []string
	Failed  int
}

// PruneRunLogs removes run logs in dir older than retentionDays. The files in
// keep and whatever cardsync.log points at are never removed. A retentionDays
// value of 0 disables pruning.
func PruneRunLogs(logger *slog.Logger, dir string, retentionDays int, keep ...string) PruneResult {
	var result PruneResult
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" {
		return result
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return result
	}

	protected := make(map[string]struct{}, len(keep)+1)
	for _, path := range keep {
		if path = strings.TrimSpace(path); path != "" {
			protected[filepath.Base(path)] = struct{}{}
		}
	}
	if target, err := os.Readlink(filepath.Join(dir, CurrentLogName)); err == nil {
		protected[filepath.Base(target)] = struct{}{}
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !IsRunLog(name) {
			continue
		}
		if _, skip := protected[name]; skip {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		fullPath := filepath.Join(dir, name)
		if err := os.Remove(fullPath); err != nil {
			result.Failed++
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", fullPath),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		result.Removed = append(result.Removed, fullPath)
	}

	if logger != nil && len(result.Removed) > 0 {
		logger.Info("pruned old run logs",
			Int("removed", len(result.Removed)),
			Int("retention_days", retentionDays),
			String(FieldEventType, "log_pruned"),
		)
	}
	return result
}

package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cardsync/internal/logging"
)

// PartialSuffix marks a staging directory that has not been promoted yet.
const PartialSuffix = ".partial"

// CleanResult contains the outcome of a cleanup pass.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanPartial removes partial download directories older than maxAge.
// A zero maxAge removes every partial directory regardless of age.
func CleanPartial(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	result := CleanResult{}

	dirs, err := ListPartial(stagingDir)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, dirPath := range dirs {
		if ctx.Err() != nil {
			break
		}
		if maxAge > 0 {
			info, err := os.Stat(dirPath)
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
		}
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			if logger != nil {
				logger.Warn("failed to remove partial staging directory",
					logging.String("path", dirPath),
					logging.Error(err),
					logging.String(logging.FieldEventType, "staging_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		if logger != nil {
			logger.Info("removed partial staging directory",
				logging.String("path", dirPath),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
	}

	return result
}

// ListPartial returns the partial download directories under stagingDir,
// sorted by path. A blank or missing directory yields nil.
func ListPartial(stagingDir string) ([]string, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), PartialSuffix) {
			continue
		}
		dirs = append(dirs, filepath.Join(stagingDir, entry.Name()))
	}
	sort.Strings(dirs)
	return dirs, nil
}

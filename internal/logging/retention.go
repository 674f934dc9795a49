package logging

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RunFilePath returns the per-run log file path under dir, bucketed by year
// and month so the tree stays navigable under frequent cron invocations.
func RunFilePath(dir string, now time.Time) string {
	return filepath.Join(
		dir,
		now.Format("2006"),
		now.Format("01"),
		now.Format("2006-01-02_15-04-05")+".log",
	)
}

// LogFilesNewestFirst walks dir recursively and returns every .log file
// ordered newest first by modification time.
func LogFilesNewestFirst(dir string) ([]string, error) {
	type logFile struct {
		path    string
		modTime time.Time
	}
	var files []logFile

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		files = append(files, logFile{path: path, modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

// RemoveOldLogFiles keeps the newest keep log files under dir and removes the
// rest, pruning directories the removals leave empty. A keep value of 0 or
// less disables pruning.
func RemoveOldLogFiles(logger *slog.Logger, dir string, keep int) {
	if keep <= 0 || strings.TrimSpace(dir) == "" {
		return
	}

	paths, err := LogFilesNewestFirst(dir)
	if err != nil {
		if logger != nil {
			logger.Warn("log retention scan failed", Error(err), String("dir", dir))
		}
		return
	}
	if len(paths) <= keep {
		return
	}

	for _, path := range paths[keep:] {
		if err := os.Remove(path); err != nil {
			if logger != nil {
				logger.Warn("log retention remove failed", String("path", path), Error(err))
			}
			continue
		}
		if logger != nil {
			logger.Debug("log pruned", String("path", path))
		}
	}

	pruneEmptyDirs(dir)
}

// pruneEmptyDirs removes directories under root left empty by log removal.
// The root itself is preserved.
func pruneEmptyDirs(root string) {
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})

	// Deepest first so nested empties collapse upward.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		entries, err := os.ReadDir(d)
		if err != nil || len(entries) > 0 {
			continue
		}
		_ = os.Remove(d)
	}
}

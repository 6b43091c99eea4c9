package core

import (
	"errorshield/models"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

// DefaultRecentLogLimit is how many files the admin listing shows.
const DefaultRecentLogLimit = 5

const (
	logFilePrefix = "error_shield_"
	logFileSuffix = ".log"
)

var logFileNamePattern = regexp.MustCompile(`^error_shield_\d{4}-\d{2}-\d{2}\.log$`)

// LogFileName returns the daily file name for t.
func LogFileName(t time.Time) string {
	return logFilePrefix + t.Format("2006-01-02") + logFileSuffix
}

// IsLogFileName reports whether name is a daily log file name. It rejects
// anything that could escape the log directory.
func IsLogFileName(name string) bool {
	return logFileNamePattern.MatchString(name)
}

// ListRecentLogFiles returns at most limit log files from dir, oldest first
// and most recent last. A missing directory yields an empty list.
func ListRecentLogFiles(fs afero.Fs, dir string, limit int) ([]models.LogFileInfo, error) {
	if limit <= 0 {
		limit = DefaultRecentLogLimit
	}

	entries, err := logFileEntries(fs, dir)
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	files := make([]models.LogFileInfo, 0, len(entries))
	for _, info := range entries {
		files = append(files, models.LogFileInfo{
			Name:      info.Name(),
			SizeBytes: info.Size(),
			SizeHuman: humanize.Bytes(uint64(info.Size())),
			ModTime:   info.ModTime(),
		})
	}
	return files, nil
}

// ReadLogFile returns the content of one daily log file.
func ReadLogFile(fs afero.Fs, dir, name string) ([]byte, error) {
	if !IsLogFileName(name) {
		return nil, ErrInvalidLogName
	}
	data, err := afero.ReadFile(fs, filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read log file %s: %w", name, err)
	}
	return data, nil
}

// ClearLogFiles removes every daily log file in dir and returns how many were
// deleted. Only an explicit administrator action calls this.
func ClearLogFiles(fs afero.Fs, dir string) (int, error) {
	entries, err := logFileEntries(fs, dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, info := range entries {
		if err := fs.Remove(filepath.Join(dir, info.Name())); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove %s: %w", info.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// logFileEntries returns the daily log files in dir sorted by name, which is
// also date order. The directory path is used literally, never as a pattern.
func logFileEntries(fs afero.Fs, dir string) ([]os.FileInfo, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}

	entries := make([]os.FileInfo, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || !IsLogFileName(info.Name()) {
			continue
		}
		entries = append(entries, info)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	return entries, nil
}

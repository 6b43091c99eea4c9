package core

import (
	"errorshield/models"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const logTimestampLayout = "2006-01-02 15:04:05"

// LogSink appends ErrorEvents to one file per calendar day.
type LogSink struct {
	fs     afero.Fs
	now    func() time.Time
	logger logrus.FieldLogger
}

// NewLogSink creates a sink on the given filesystem. A nil logger falls back
// to the standard logrus logger.
func NewLogSink(fs afero.Fs, logger logrus.FieldLogger) *LogSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogSink{
		fs:     fs,
		now:    time.Now,
		logger: logger,
	}
}

// Fs returns the filesystem the sink writes to.
func (s *LogSink) Fs() afero.Fs {
	return s.fs
}

// Write persists one event when logging is enabled. It never fails from the
// caller's point of view: I/O errors are reported to the operational log only.
func (s *LogSink) Write(event models.ErrorEvent, cfg models.LogConfig) {
	if !cfg.LogErrors {
		return
	}

	if err := s.write(event, cfg.LogLocation); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"log_location": cfg.LogLocation,
			"kind":         event.Kind.Label(),
		}).Warn("failed to persist error event")
	}
}

// EnsureDir creates dir and its parents. An existing directory is not an error.
func (s *LogSink) EnsureDir(dir string) error {
	if dir == "" {
		return ErrEmptyLogLocation
	}
	return s.fs.MkdirAll(dir, 0o755)
}

func (s *LogSink) write(event models.ErrorEvent, dir string) error {
	if err := s.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	path := filepath.Join(dir, LogFileName(event.Timestamp))
	f, err := s.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	defer f.Close()

	// Single write per entry so concurrent appenders never interleave lines
	if _, err := f.WriteString(FormatEntry(event)); err != nil {
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return nil
}

// FormatEntry renders an event as it appears in the log file, including the
// trailing newline.
func FormatEntry(event models.ErrorEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s in %s at line %d\n",
		event.Timestamp.Format(logTimestampLayout),
		event.Kind.Label(),
		event.Message,
		event.File,
		event.Line,
	)
	if event.Kind.HasTrace() && len(event.StackTrace) > 0 {
		b.WriteString(strings.Join(event.StackTrace, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

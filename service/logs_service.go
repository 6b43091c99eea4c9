package service

import (
	"errorshield/core"
	"errorshield/models"

	"github.com/spf13/afero"
)

// LogsService answers the administrator's questions about the daily log
// files. It always looks in the currently configured location.
type LogsService struct {
	fs           afero.Fs
	settings     *SettingsService
	htaccessPath string
}

// NewLogsService constructs a logs service
func NewLogsService(fs afero.Fs, settings *SettingsService, htaccessPath string) *LogsService {
	return &LogsService{
		fs:           fs,
		settings:     settings,
		htaccessPath: htaccessPath,
	}
}

// Fs returns the filesystem the log files live on.
func (s *LogsService) Fs() afero.Fs {
	return s.fs
}

func (s *LogsService) location() string {
	// LogConfig falls back to the defaults on error, which is what we list
	cfg, _ := s.settings.LogConfig()
	return cfg.LogLocation
}

// ListRecent returns up to limit files, most recent last.
func (s *LogsService) ListRecent(limit int) ([]models.LogFileInfo, error) {
	return core.ListRecentLogFiles(s.fs, s.location(), limit)
}

// Read returns the content of one daily file.
func (s *LogsService) Read(name string) ([]byte, error) {
	return core.ReadLogFile(s.fs, s.location(), name)
}

// Clear deletes every daily file and returns how many were removed.
func (s *LogsService) Clear() (int, error) {
	return core.ClearLogFiles(s.fs, s.location())
}

// Hardening inspects the web server configuration file.
func (s *LogsService) Hardening() models.HardeningReport {
	return core.InspectHardening(s.fs, s.htaccessPath)
}

package models

import (
	"path/filepath"
	"strings"
	"time"
)

// LogSettingsKey is the AppSetting key holding the serialized LogConfig.
const LogSettingsKey = "error_shield_settings"

// DefaultLogDirName is the log directory created under the content root.
const DefaultLogDirName = "error-shield-logs"

// LogConfig is the snapshot of logging options read for every event
type LogConfig struct {
	LogErrors   bool   `json:"log_errors"`
	LogLocation string `json:"log_location"`
}

// DefaultLogConfig returns the configuration used when none is stored or
// the stored one cannot be read.
func DefaultLogConfig(contentRoot string) LogConfig {
	return LogConfig{
		LogErrors:   true,
		LogLocation: filepath.Join(contentRoot, DefaultLogDirName) + string(filepath.Separator),
	}
}

// LogSettingsUpdate request payload for changing the log configuration
type LogSettingsUpdate struct {
	LogErrors   *bool  `json:"log_errors"`
	LogLocation string `json:"log_location"`
}

// Normalize trims whitespace from input fields
func (u *LogSettingsUpdate) Normalize() {
	u.LogLocation = strings.TrimSpace(u.LogLocation)
}

// LogFileInfo describes one daily log file in the admin listing
type LogFileInfo struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	SizeHuman string    `json:"size_human"`
	ModTime   time.Time `json:"mod_time"`
}

// HardeningReport is the advisory result of inspecting the web server
// configuration for display-disabling directives.
type HardeningReport struct {
	Path              string   `json:"path"`
	Readable          bool     `json:"readable"`
	DirectivesPresent bool     `json:"directives_present"`
	Recommended       []string `json:"recommended"`
}

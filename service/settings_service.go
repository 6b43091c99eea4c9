package service

import (
	"encoding/json"
	"errors"
	"errorshield/database"
	"errorshield/models"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrLogLocationNotAbsolute = errors.New("log location must be an absolute path")
	ErrEmptySettingsUpdate    = errors.New("no settings to update")
)

// SettingsService stores the log configuration as one AppSetting row.
type SettingsService struct {
	db       *gorm.DB
	defaults models.LogConfig
	logger   logrus.FieldLogger
}

// NewSettingsService constructs a settings service. The default log
// directory lives under contentRoot.
func NewSettingsService(db *gorm.DB, contentRoot string, logger logrus.FieldLogger) *SettingsService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if abs, err := filepath.Abs(contentRoot); err == nil {
		contentRoot = abs
	}
	return &SettingsService{
		db:       db,
		defaults: models.DefaultLogConfig(contentRoot),
		logger:   logger,
	}
}

// Defaults returns the configuration used when nothing is stored.
func (s *SettingsService) Defaults() models.LogConfig {
	return s.defaults
}

// LogConfig returns the stored configuration, or the defaults when none is
// stored. A read or decode failure is returned together with the defaults.
func (s *SettingsService) LogConfig() (models.LogConfig, error) {
	raw, ok, err := database.GetSetting(s.db, models.LogSettingsKey)
	if err != nil {
		return s.defaults, fmt.Errorf("failed to read log settings: %w", err)
	}
	if !ok {
		return s.defaults, nil
	}

	// Missing fields keep their defaults
	cfg := s.defaults
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return s.defaults, fmt.Errorf("failed to decode log settings: %w", err)
	}
	if strings.TrimSpace(cfg.LogLocation) == "" {
		cfg.LogLocation = s.defaults.LogLocation
	}
	return cfg, nil
}

// Update applies a partial update and persists the result.
func (s *SettingsService) Update(req models.LogSettingsUpdate) (models.LogConfig, error) {
	req.Normalize()
	if req.LogErrors == nil && req.LogLocation == "" {
		return models.LogConfig{}, ErrEmptySettingsUpdate
	}

	cfg, err := s.LogConfig()
	if err != nil {
		s.logger.WithError(err).Warn("stored log settings unreadable, updating from defaults")
	}

	if req.LogErrors != nil {
		cfg.LogErrors = *req.LogErrors
	}
	if req.LogLocation != "" {
		location, err := normalizeLogLocation(req.LogLocation)
		if err != nil {
			return models.LogConfig{}, err
		}
		cfg.LogLocation = location
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return models.LogConfig{}, fmt.Errorf("failed to encode log settings: %w", err)
	}
	if err := database.SetSetting(s.db, models.LogSettingsKey, string(data)); err != nil {
		return models.LogConfig{}, fmt.Errorf("failed to save log settings: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"log_errors":   cfg.LogErrors,
		"log_location": cfg.LogLocation,
	}).Info("log settings updated")
	return cfg, nil
}

// Reset removes the stored configuration so the defaults apply again.
func (s *SettingsService) Reset() (models.LogConfig, error) {
	if err := database.DeleteSetting(s.db, models.LogSettingsKey); err != nil {
		return models.LogConfig{}, fmt.Errorf("failed to reset log settings: %w", err)
	}
	return s.defaults, nil
}

// normalizeLogLocation cleans an absolute directory path and gives it a
// trailing separator.
func normalizeLogLocation(location string) (string, error) {
	if !filepath.IsAbs(location) {
		return "", fmt.Errorf("%w: %q", ErrLogLocationNotAbsolute, location)
	}
	cleaned := filepath.Clean(location)
	if !strings.HasSuffix(cleaned, string(filepath.Separator)) {
		cleaned += string(filepath.Separator)
	}
	return cleaned, nil
}

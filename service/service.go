package service

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gorm.io/gorm"
)

// Services is the global service container
type Services struct {
	Settings *SettingsService
	Logs     *LogsService
}

// GlobalServices is the global service instance
var GlobalServices *Services

// Options carries what the services need besides the database.
type Options struct {
	Fs           afero.Fs
	ContentRoot  string
	HtaccessPath string
	Logger       logrus.FieldLogger
}

// InitServices initializes all services
func InitServices(db *gorm.DB, opts Options) *Services {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	settingsSvc := NewSettingsService(db, opts.ContentRoot, opts.Logger)
	logsSvc := NewLogsService(opts.Fs, settingsSvc, opts.HtaccessPath)

	GlobalServices = &Services{
		Settings: settingsSvc,
		Logs:     logsSvc,
	}
	return GlobalServices
}

package database

import (
	"errorshield/config"
	"errorshield/models"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB opens the database described by config.Settings and stores it in DB.
func InitDB() error {
	db, err := Open(config.Settings, logrus.StandardLogger())
	if err != nil {
		return err
	}
	DB = db
	logrus.WithField("path", config.Settings.DatabaseURL).Info("Database initialized successfully")
	return nil
}

// Open opens a SQLite database, applies pool settings and PRAGMAs and
// migrates the settings table.
func Open(settings *config.Config, log *logrus.Logger) (*gorm.DB, error) {
	logLevel := logger.Silent
	if settings.LogLevel == "DEBUG" {
		logLevel = logger.Info
	}

	pragmas := settingsPragmas(settings)
	db, err := gorm.Open(sqlite.Open(sqliteDSN(settings.DatabaseURL, pragmas)), &gorm.Config{
		Logger: sqliteHealthLogger{
			inner: logger.New(log, logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  logLevel,
				IgnoreRecordNotFoundError: true,
			}),
			log: log,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	limits := settingsPoolLimits(settings)
	sqlDB.SetMaxIdleConns(limits.maxIdle)
	sqlDB.SetMaxOpenConns(limits.maxOpen)
	sqlDB.SetConnMaxIdleTime(limits.idleTime)
	sqlDB.SetConnMaxLifetime(limits.maxLifetime)

	// DSN parameters cover new connections; the open one gets them here too
	for _, p := range pragmas {
		if err := db.Exec(p.statement()).Error; err != nil {
			log.WithError(err).WithField("pragma", p.name).Warn("Failed to apply SQLite pragma")
		}
	}

	if err := db.AutoMigrate(&models.AppSetting{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// CloseDB closes the database connection and releases resources
func CloseDB() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	logrus.Info("Closing database connection...")
	return sqlDB.Close()
}

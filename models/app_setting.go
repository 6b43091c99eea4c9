package models

import "time"

// AppSetting is one persisted key/value pair. The log configuration is
// stored as JSON under LogSettingsKey.
type AppSetting struct {
	Key       string    `gorm:"primaryKey;size:128" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

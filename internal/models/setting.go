package models

import "time"

// Setting maps to the `settings` table: a generic key/value store for feature
// flags, per-account flags (trial eligibility, ban state, phone) and persisted
// wizard intent state. Intent rows live here so a restart or a second bot
// instance sees the same stage.
type Setting struct {
	Key       string    `gorm:"column:k;primaryKey;size:200" json:"key"`
	Value     string    `gorm:"column:v;type:text" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

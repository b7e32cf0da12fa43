package models

import (
	"time"

	"gorm.io/gorm"
)

// SiteEvent is the persisted form of a Change, kept in the history database.
type SiteEvent struct {
	gorm.Model

	Kind ChangeKind `gorm:"index;not null" json:"kind"`
	Name string     `gorm:"index;not null" json:"name"`
	Link string     `gorm:"index" json:"link"`
	At   time.Time  `gorm:"index" json:"at"`
}

// TableName pins the table name independently of the struct name.
func (SiteEvent) TableName() string { return "site_events" }

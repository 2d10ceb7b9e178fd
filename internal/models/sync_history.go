package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncHistory records every push or pull attempt of a terminal
type SyncHistory struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	InstanceID  string         `gorm:"type:varchar(64);not null;index" json:"instanceId"`
	Scope       string         `gorm:"type:varchar(16);not null;index" json:"scope"`  // push, pull
	Status      string         `gorm:"type:varchar(16);not null;index" json:"status"` // SAVED, ERROR
	CompletedAt time.Time      `gorm:"not null;index" json:"completedAt"`
	DurationMs  int64          `gorm:"default:0" json:"durationMs"`
	Records     int            `gorm:"default:0" json:"records"`
	Failed      int            `gorm:"default:0" json:"failed"`
	ErrorDetail string         `gorm:"type:text" json:"errorDetail,omitempty"`
	Details     datatypes.JSON `json:"details,omitempty"` // per-collection results
}

// TableName specifies the table name
func (SyncHistory) TableName() string {
	return "sync_history"
}

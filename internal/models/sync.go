package models

import (
	"time"

	"gorm.io/datatypes"
)

// MutationQueueEntry is a write waiting for remote acceptance.
// Entries drain by Timestamp, ties broken by Seq (insertion order).
type MutationQueueEntry struct {
	Seq        uint64         `gorm:"primaryKey;autoIncrement" json:"seq"`
	ID         string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"id"`
	Type       string         `gorm:"type:varchar(64);not null;index" json:"type"`
	Payload    datatypes.JSON `json:"payload"`
	Timestamp  time.Time      `gorm:"not null;index:idx_queue_order" json:"timestamp"`
	RetryCount int            `gorm:"default:0" json:"retryCount"`
	LastError  string         `gorm:"type:text" json:"lastError,omitempty"`
}

// TableName specifies the table name
func (MutationQueueEntry) TableName() string {
	return "mutation_queue"
}

// ConflictStatus tracks a conflict through resolution
type ConflictStatus string

const (
	ConflictPending  ConflictStatus = "pending"
	ConflictResolved ConflictStatus = "resolved"
)

// SyncConflict represents a same-id entity whose significant fields differ locally and remotely
type SyncConflict struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	EntityType string         `gorm:"type:varchar(64);not null;index:idx_conflict_entity" json:"entityType"`
	EntityID   string         `gorm:"type:varchar(64);not null;index:idx_conflict_entity" json:"entityId"`
	Fields     datatypes.JSON `json:"fields"`
	LocalData  datatypes.JSON `json:"localData"`
	RemoteData datatypes.JSON `json:"remoteData"`
	Status     ConflictStatus `gorm:"type:varchar(16);index" json:"status"`
	Resolution string         `gorm:"type:varchar(16)" json:"resolution,omitempty"` // local, remote
	ResolvedAt *time.Time     `json:"resolvedAt,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// TableName specifies the table name
func (SyncConflict) TableName() string {
	return "sync_conflicts"
}

// Key identifies the conflicted entity across pulls
func (c SyncConflict) Key() string {
	return c.EntityType + ":" + c.EntityID
}

// SyncMetadata tracks the outcome of the last cycle per terminal
type SyncMetadata struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	InstanceID     string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_instance_scope" json:"instanceId"`
	Scope          string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_instance_scope" json:"scope"`
	LastSyncAt     *time.Time `json:"lastSyncAt"`
	LastSyncStatus string     `gorm:"type:varchar(16)" json:"lastSyncStatus"`
	RecordsSynced  int        `json:"recordsSynced"`
	SyncDurationMs int64      `json:"syncDurationMs"`
	ErrorMessage   *string    `gorm:"type:text" json:"errorMessage,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// TableName specifies the table name
func (SyncMetadata) TableName() string {
	return "sync_metadata"
}

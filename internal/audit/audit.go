// Package audit records security and domain events in an append-only log.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/models"
	"gorm.io/gorm"
)

// Actions recorded by the core
const (
	ActionCheckout          = "order.checkout"
	ActionCheckoutRejected  = "order.checkout_rejected"
	ActionRepair            = "diagnostics.repair"
	ActionConflictResolved  = "sync.conflict_resolved"
	ActionSyncFailed        = "sync.failed"
	ActionLedgerTamper      = "ledger.integrity_break"
	ActionKeyGenerated      = "ledger.key_generated"
	ActionRemoteImport      = "sync.remote_import"
	ActionLayoutBackupPrune = "layout.backup_pruned"
)

// Event is the input for one audit record. Record ids are UUIDv7 so they sort by creation.
type Event struct {
	Action     string
	EntityType string
	EntityID   string
	Actor      string
	Details    any
}

// Log appends and reads audit records
type Log struct {
	db  *gorm.DB
	log *logrus.Entry
}

// New creates an audit log
func New(db *gorm.DB, log *logrus.Entry) *Log {
	return &Log{db: db, log: log}
}

// Record appends an event
func (a *Log) Record(ctx context.Context, ev Event) error {
	if err := RecordTx(a.db.WithContext(ctx), ev); err != nil {
		a.log.WithError(err).WithField("action", ev.Action).Error("❌ Failed to write audit record")
		return err
	}
	return nil
}

// RecordTx appends an event inside an open transaction
func RecordTx(tx *gorm.DB, ev Event) error {
	var details string
	if ev.Details != nil {
		data, err := json.Marshal(ev.Details)
		if err != nil {
			return apperrors.Validation("audit.Record", err)
		}
		details = string(data)
	}

	entry := models.AuditLog{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Action:     ev.Action,
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Actor:      ev.Actor,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return apperrors.Persistence("audit.Record", err)
	}
	return nil
}

// Tail returns up to n most recent records, oldest first
func (a *Log) Tail(ctx context.Context, n int) ([]models.AuditLog, error) {
	var rows []models.AuditLog
	if err := a.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(n).Find(&rows).Error; err != nil {
		return nil, apperrors.Persistence("audit.Tail", err)
	}
	reverse(rows)
	return rows, nil
}

// Unsynced returns up to n records not yet mirrored remotely, oldest first
func (a *Log) Unsynced(ctx context.Context, n int) ([]models.AuditLog, error) {
	var rows []models.AuditLog
	err := a.db.WithContext(ctx).Where("synced = ?", false).
		Order("created_at, id").Limit(n).Find(&rows).Error
	if err != nil {
		return nil, apperrors.Persistence("audit.Unsynced", err)
	}
	return rows, nil
}

// MarkSynced flags records as mirrored
func (a *Log) MarkSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := a.db.WithContext(ctx).Model(&models.AuditLog{}).Where("id IN ?", ids).Update("synced", true).Error; err != nil {
		return apperrors.Persistence("audit.MarkSynced", err)
	}
	return nil
}

// ByAction returns records with the given action, oldest first
func (a *Log) ByAction(ctx context.Context, action string) ([]models.AuditLog, error) {
	var rows []models.AuditLog
	if err := a.db.WithContext(ctx).Where("action = ?", action).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, apperrors.Persistence("audit.ByAction", err)
	}
	return rows, nil
}

func reverse(rows []models.AuditLog) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

package sync

import (
	"context"
	"time"

	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Metadata scopes
const (
	ScopePush = "push"
	ScopePull = "pull"
)

// CycleOutcome is what one push or pull reported
type CycleOutcome struct {
	Status   SaveStatus
	Records  int
	Failed   int
	Duration time.Duration
	Err      error
	At       time.Time
	Details  any // stored with the history row
}

// HistoryRetention is how long per-cycle history rows are kept
const HistoryRetention = 30 * 24 * time.Hour

// recordMetadata upserts the per-terminal row for scope
func recordMetadata(ctx context.Context, db *gorm.DB, instanceID, scope string, out CycleOutcome) error {
	at := out.At
	meta := models.SyncMetadata{
		InstanceID:     instanceID,
		Scope:          scope,
		LastSyncAt:     &at,
		LastSyncStatus: string(out.Status),
		RecordsSynced:  out.Records,
		SyncDurationMs: out.Duration.Milliseconds(),
	}
	if out.Err != nil {
		msg := out.Err.Error()
		meta.ErrorMessage = &msg
	}

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "instance_id"}, {Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_sync_at", "last_sync_status", "records_synced", "sync_duration_ms", "error_message", "updated_at",
		}),
	}).Create(&meta).Error
	if err != nil {
		return apperrors.Persistence("sync.recordMetadata", err)
	}
	return nil
}

// recordHistory appends one row per attempt
func recordHistory(ctx context.Context, db *gorm.DB, instanceID, scope string, out CycleOutcome) error {
	row := models.SyncHistory{
		InstanceID:  instanceID,
		Scope:       scope,
		Status:      string(out.Status),
		CompletedAt: out.At,
		DurationMs:  out.Duration.Milliseconds(),
		Records:     out.Records,
		Failed:      out.Failed,
	}
	if out.Err != nil {
		row.ErrorDetail = out.Err.Error()
	}
	if out.Details != nil {
		details, err := toJSON(out.Details)
		if err != nil {
			return err
		}
		row.Details = details
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		return apperrors.Persistence("sync.recordHistory", err)
	}
	return nil
}

// History returns up to limit attempts of this terminal, newest first
func (e *Engine) History(ctx context.Context, limit int) ([]models.SyncHistory, error) {
	var rows []models.SyncHistory
	err := e.db.WithContext(ctx).Where("instance_id = ?", e.terminalID).
		Order("completed_at DESC, id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, apperrors.Persistence("sync.History", err)
	}
	return rows, nil
}

// PruneHistory drops history rows older than HistoryRetention
func (e *Engine) PruneHistory(ctx context.Context, now time.Time) (int64, error) {
	res := e.db.WithContext(ctx).Where("completed_at < ?", now.Add(-HistoryRetention)).Delete(&models.SyncHistory{})
	if res.Error != nil {
		return 0, apperrors.Persistence("sync.PruneHistory", res.Error)
	}
	return res.RowsAffected, nil
}

// Metadata returns the stored rows for this terminal, one per scope
func (e *Engine) Metadata(ctx context.Context) ([]models.SyncMetadata, error) {
	var rows []models.SyncMetadata
	err := e.db.WithContext(ctx).Where("instance_id = ?", e.terminalID).Order("scope").Find(&rows).Error
	if err != nil {
		return nil, apperrors.Persistence("sync.Metadata", err)
	}
	return rows, nil
}

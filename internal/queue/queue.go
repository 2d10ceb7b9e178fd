// Package queue is the ordered backlog of writes destined for the remote store.
package queue

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/config"
	"github.com/xelth-com/eckposgo/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReplayFunc sends one entry to the remote store. A nil error means accepted.
type ReplayFunc func(ctx context.Context, entry models.MutationQueueEntry) error

// DrainResult summarizes one drain pass
type DrainResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// Queue persists entries and replays them in order. Entries the database
// refused are held in memory and flushed on the next call.
type Queue struct {
	db  *gorm.DB
	log *logrus.Entry
	now func() time.Time

	// mu guards overflow and store access; it is never held across a replay
	mu       sync.Mutex
	overflow []models.MutationQueueEntry

	// drainMu serializes drain passes
	drainMu sync.Mutex
}

// New creates a queue over the local store
func New(db *gorm.DB, log *logrus.Entry) *Queue {
	return &Queue{
		db:  db,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue appends a mutation. It never fails: if the entry cannot be persisted
// it is kept in memory until the store accepts it.
func (q *Queue) Enqueue(ctx context.Context, mutationType string, payload any) models.MutationQueueEntry {
	entry := models.MutationQueueEntry{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      mutationType,
		Timestamp: q.now(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// Kept so the failure stays visible in the backlog.
		entry.LastError = "encode payload: " + err.Error()
		data = []byte("null")
	}
	entry.Payload = datatypes.JSON(data)

	// A cancelled caller still gets its entry stored.
	ctx = context.WithoutCancel(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()

	q.flushLocked(ctx)
	if len(q.overflow) > 0 {
		q.overflow = append(q.overflow, entry)
		return entry
	}
	if err := q.db.WithContext(ctx).Create(&entry).Error; err != nil {
		config.LogError(q.log, "Enqueue", "queue entry held in memory", entry.Type, err)
		q.overflow = append(q.overflow, entry)
	}
	return entry
}

// Len returns the number of queued entries, persisted and in memory
func (q *Queue) Len(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.flushLocked(ctx)
	var n int64
	if err := q.db.WithContext(ctx).Model(&models.MutationQueueEntry{}).Count(&n).Error; err != nil {
		config.LogError(q.log, "Len", "count queue", nil, err)
	}
	return int(n) + len(q.overflow)
}

// Entries returns the queued entries in drain order
func (q *Queue) Entries(ctx context.Context) ([]models.MutationQueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.flushLocked(ctx)
	return q.loadLocked(ctx)
}

// Drain replays every entry in order. Accepted entries are removed; refused
// entries stay in place with RetryCount incremented. Draining stops early
// only when ctx is done. Enqueue and Len do not wait on replays.
func (q *Queue) Drain(ctx context.Context, replay ReplayFunc) (DrainResult, error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	var result DrainResult
	q.mu.Lock()
	q.flushLocked(ctx)
	entries, err := q.loadLocked(ctx)
	q.mu.Unlock()
	if err != nil {
		return result, err
	}

	persist := context.WithoutCancel(ctx)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		result.Attempted++

		err := replay(ctx, entry)

		q.mu.Lock()
		if err != nil {
			result.Failed++
			q.markFailedLocked(persist, entry, err)
		} else {
			result.Succeeded++
			q.removeLocked(persist, entry)
		}
		q.mu.Unlock()
	}

	q.mu.Lock()
	result.Remaining = q.countLocked(persist)
	q.mu.Unlock()
	if result.Attempted > 0 {
		q.log.WithFields(logrus.Fields{
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
			"remaining": result.Remaining,
		}).Info("📤 Mutation queue drained")
	}
	return result, nil
}

// loadLocked merges persisted and in-memory entries by timestamp then sequence
func (q *Queue) loadLocked(ctx context.Context) ([]models.MutationQueueEntry, error) {
	var entries []models.MutationQueueEntry
	if err := q.db.WithContext(ctx).Order("timestamp, seq").Find(&entries).Error; err != nil {
		if len(q.overflow) == 0 {
			return nil, apperrors.Persistence("queue.load", err)
		}
		config.LogError(q.log, "loadLocked", "draining in-memory entries only", nil, err)
		entries = nil
	}

	if len(q.overflow) > 0 {
		entries = append(entries, q.overflow...)
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		})
	}
	return entries, nil
}

// flushLocked moves in-memory entries into the store, oldest first, stopping at the first refusal
func (q *Queue) flushLocked(ctx context.Context) {
	for len(q.overflow) > 0 {
		entry := q.overflow[0]
		entry.Seq = 0
		if err := q.db.WithContext(ctx).Create(&entry).Error; err != nil {
			return
		}
		q.overflow = q.overflow[1:]
	}
}

func (q *Queue) markFailedLocked(ctx context.Context, entry models.MutationQueueEntry, cause error) {
	for i := range q.overflow {
		if q.overflow[i].ID == entry.ID {
			q.overflow[i].RetryCount++
			q.overflow[i].LastError = cause.Error()
			return
		}
	}
	// An in-memory entry may have been flushed since it was loaded, so match by id.
	err := q.db.WithContext(ctx).Model(&models.MutationQueueEntry{}).
		Where("id = ?", entry.ID).
		Updates(map[string]any{
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  cause.Error(),
		}).Error
	if err != nil {
		config.LogError(q.log, "Drain", "record retry", entry.ID, err)
	}
}

// removeLocked deletes an accepted entry. If the delete fails the entry is replayed
// again later, which the remote absorbs by id.
func (q *Queue) removeLocked(ctx context.Context, entry models.MutationQueueEntry) {
	for i := range q.overflow {
		if q.overflow[i].ID == entry.ID {
			q.overflow = append(q.overflow[:i], q.overflow[i+1:]...)
			return
		}
	}
	if err := q.db.WithContext(ctx).Where("id = ?", entry.ID).Delete(&models.MutationQueueEntry{}).Error; err != nil {
		config.LogError(q.log, "Drain", "remove accepted entry", entry.ID, err)
	}
}

func (q *Queue) countLocked(ctx context.Context) int {
	var n int64
	if err := q.db.WithContext(ctx).Model(&models.MutationQueueEntry{}).Count(&n).Error; err != nil {
		config.LogError(q.log, "Drain", "count queue", nil, err)
	}
	return int(n) + len(q.overflow)
}

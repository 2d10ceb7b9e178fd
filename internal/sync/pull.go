package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/audit"
	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/notify"
	"github.com/xelth-com/eckposgo/internal/remote"
	"github.com/xelth-com/eckposgo/internal/store"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PullResult summarizes one import from the remote store
type PullResult struct {
	Appended  int        `json:"appended"`
	Updated   int        `json:"updated"`
	Conflicts []Conflict `json:"conflicts"`
	Pending   int        `json:"pending"`
}

// Pull fetches the remote snapshot and merges it into the local store under
// the configured preferCloud policy. Conflicts the policy leaves open are
// stored for an explicit decision.
func (e *Engine) Pull(ctx context.Context) (*PullResult, error) {
	const op = "sync.Pull"

	release, ok, err := e.locker.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync lock: %w", err)
	}
	if !ok {
		return nil, ErrSyncInProgress
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout())
	defer cancel()
	started := e.now()

	fail := func(err error) (*PullResult, error) {
		e.saveMetadata(context.WithoutCancel(ctx), ScopePull, CycleOutcome{Status: StatusError, Duration: e.now().Sub(started), Err: err, At: e.now()})
		e.notifier.Notify(notify.Failure(op, err))
		return nil, err
	}

	snap, err := e.remote.PullAll(ctx)
	if err != nil {
		if apperrors.KindOf(err) == "" {
			err = apperrors.Remote(op, err)
		}
		return fail(err)
	}

	local, err := e.localMenu(ctx)
	if err != nil {
		return fail(err)
	}

	plan := Merge(local, snap, Policy(e.cfg.PreferCloud))
	res := e.store.ImportMenu(ctx, plan.Import, func(tx *gorm.DB) error {
		if err := persistConflicts(tx, plan, e.now()); err != nil {
			return err
		}
		return audit.RecordTx(tx, audit.Event{
			Action:     audit.ActionRemoteImport,
			EntityType: "menu",
			Actor:      "sync",
			Details: map[string]int{
				"appended":  plan.Appended,
				"updated":   plan.Updated,
				"conflicts": len(plan.Conflicts),
			},
		})
	})
	if !res.Success {
		return fail(res.Err())
	}

	result := &PullResult{Appended: plan.Appended, Updated: plan.Updated, Conflicts: plan.Conflicts}
	for _, d := range plan.Decisions {
		if d == DecisionPending {
			result.Pending++
		}
	}

	e.saveMetadata(context.WithoutCancel(ctx), ScopePull, CycleOutcome{
		Status: StatusSaved, Records: res.Data, Duration: e.now().Sub(started), At: e.now(),
		Details: map[string]int{"appended": result.Appended, "updated": result.Updated, "pending": result.Pending},
	})
	e.log.WithField("appended", result.Appended).
		WithField("updated", result.Updated).
		WithField("conflicts", len(result.Conflicts)).
		Info("📥 Remote snapshot imported")

	msg := fmt.Sprintf("Imported %d new and %d updated record(s)", result.Appended, result.Updated)
	if len(result.Conflicts) > 0 {
		msg += ", " + conflictSummary(len(result.Conflicts), result.Pending)
	}
	e.notifier.Notify(notify.Success(op, msg))
	return result, nil
}

func (e *Engine) localMenu(ctx context.Context) (LocalMenu, error) {
	cats := e.store.Categories.GetAll(ctx)
	if !cats.Success {
		return LocalMenu{}, cats.Err()
	}
	dishes := e.store.Dishes.GetAll(ctx)
	if !dishes.Success {
		return LocalMenu{}, dishes.Err()
	}
	users := e.store.Users.GetAll(ctx)
	if !users.Success {
		return LocalMenu{}, users.Err()
	}
	settings := e.store.Settings.GetByID(ctx, models.SettingsID)
	if !settings.Success {
		return LocalMenu{}, settings.Err()
	}
	return LocalMenu{Categories: cats.Data, Dishes: dishes.Data, Settings: settings.Data, Users: users.Data}, nil
}

// persistConflicts replaces open conflicts for the same entities with the
// ones found by this pull. Conflicts the policy already settled are stored
// as resolved.
func persistConflicts(tx *gorm.DB, plan MergePlan, at time.Time) error {
	for _, c := range plan.Conflicts {
		err := tx.Where("entity_type = ? AND entity_id = ? AND status = ?", c.EntityType, c.EntityID, models.ConflictPending).
			Delete(&models.SyncConflict{}).Error
		if err != nil {
			return err
		}

		row := models.SyncConflict{
			EntityType: c.EntityType,
			EntityID:   c.EntityID,
			Status:     models.ConflictPending,
			CreatedAt:  at,
		}
		if row.Fields, err = toJSON(c.Fields); err != nil {
			return err
		}
		if row.LocalData, err = toJSON(c.Local); err != nil {
			return err
		}
		if row.RemoteData, err = toJSON(c.Remote); err != nil {
			return err
		}

		decision := plan.Decisions[c.Key()]
		if decision.Valid() {
			resolvedAt := at
			row.Status = models.ConflictResolved
			row.Resolution = string(decision)
			row.ResolvedAt = &resolvedAt
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if decision.Valid() {
			if err := audit.RecordTx(tx, audit.Event{
				Action:     audit.ActionConflictResolved,
				EntityType: c.EntityType,
				EntityID:   c.EntityID,
				Actor:      "policy",
				Details:    map[string]any{"resolution": decision, "fields": c.Fields},
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func toJSON(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.Validation("sync.toJSON", err)
	}
	return datatypes.JSON(data), nil
}

// PendingConflicts lists conflicts waiting for a decision, oldest first
func (e *Engine) PendingConflicts(ctx context.Context) ([]models.SyncConflict, error) {
	var rows []models.SyncConflict
	err := e.db.WithContext(ctx).Where("status = ?", models.ConflictPending).Order("created_at, id").Find(&rows).Error
	if err != nil {
		return nil, apperrors.Persistence("sync.PendingConflicts", err)
	}
	return rows, nil
}

// ResolveConflicts applies explicit decisions keyed by "<entityType>:<entityID>".
// Taking remote merges the stored remote fields onto the local record; keeping
// local marks the record dirty so the next push overwrites the remote copy.
// All decisions commit together.
func (e *Engine) ResolveConflicts(ctx context.Context, decisions map[string]Decision, actor string) (int, error) {
	const op = "sync.ResolveConflicts"

	for key, d := range decisions {
		if !d.Valid() {
			return 0, apperrors.Validation(op, fmt.Errorf("conflict %s: decision must be %q or %q", key, DecisionLocal, DecisionRemote))
		}
	}

	pending, err := e.PendingConflicts(ctx)
	if err != nil {
		return 0, err
	}
	byKey := make(map[string]models.SyncConflict, len(pending))
	for _, c := range pending {
		byKey[c.Key()] = c
	}
	for key := range decisions {
		if _, ok := byKey[key]; !ok {
			return 0, apperrors.Validation(op, fmt.Errorf("no pending conflict %s", key))
		}
	}
	if len(decisions) == 0 {
		return 0, nil
	}

	now := e.now()
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, d := range decisions {
			c := byKey[key]
			if err := resolveOne(tx, c, d); err != nil {
				return err
			}
			err := tx.Model(&models.SyncConflict{}).Where("id = ?", c.ID).Updates(map[string]any{
				"status":      models.ConflictResolved,
				"resolution":  string(d),
				"resolved_at": now,
			}).Error
			if err != nil {
				return err
			}
			if err := audit.RecordTx(tx, audit.Event{
				Action:     audit.ActionConflictResolved,
				EntityType: c.EntityType,
				EntityID:   c.EntityID,
				Actor:      actor,
				Details:    map[string]string{"resolution": string(d)},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if apperrors.KindOf(err) == "" {
			err = apperrors.Persistence(op, err)
		}
		e.notifier.Notify(notify.Failure(op, err))
		return 0, err
	}

	e.notifier.Notify(notify.Success(op, fmt.Sprintf("Resolved %d conflict(s)", len(decisions))))
	return len(decisions), nil
}

// ResolveAll settles every pending conflict the same way
func (e *Engine) ResolveAll(ctx context.Context, preferCloud bool, actor string) (int, error) {
	pending, err := e.PendingConflicts(ctx)
	if err != nil {
		return 0, err
	}
	d := DecisionLocal
	if preferCloud {
		d = DecisionRemote
	}
	decisions := make(map[string]Decision, len(pending))
	for _, c := range pending {
		decisions[c.Key()] = d
	}
	return e.ResolveConflicts(ctx, decisions, actor)
}

func resolveOne(tx *gorm.DB, c models.SyncConflict, d Decision) error {
	switch c.EntityType {
	case "category":
		return resolveAs[models.Category, remote.CategoryDTO](tx, c, d)
	case "dish":
		return resolveAs[models.Dish, remote.DishDTO](tx, c, d)
	case "settings":
		return resolveAs[models.Settings, remote.SettingsDTO](tx, c, d)
	case "user":
		return resolveAs[models.User, remote.UserDTO](tx, c, d)
	default:
		return apperrors.Validation("sync.ResolveConflicts", fmt.Errorf("unknown entity type %q", c.EntityType))
	}
}

type mergeable[M any] interface {
	ApplyTo(*M)
	ToModel() M
}

func resolveAs[M any, D mergeable[M]](tx *gorm.DB, c models.SyncConflict, d Decision) error {
	if d == DecisionLocal {
		return tx.Model(new(M)).Where("id = ?", c.EntityID).Update("pending", true).Error
	}

	var dto D
	if err := json.Unmarshal(c.RemoteData, &dto); err != nil {
		return apperrors.Validation("sync.ResolveConflicts", err)
	}

	var rec M
	err := tx.Where("id = ?", c.EntityID).Take(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec = dto.ToModel()
	case err != nil:
		return err
	default:
		dto.ApplyTo(&rec)
	}

	if err := store.Validate("sync.ResolveConflicts", &rec); err != nil {
		return err
	}
	if err := tx.Omit(clause.Associations).Save(&rec).Error; err != nil {
		return err
	}
	return tx.Model(new(M)).Where("id = ?", c.EntityID).Update("pending", false).Error
}

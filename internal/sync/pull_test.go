package sync

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/audit"
	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/notify"
)

func (h *harness) seedMenu(t *testing.T) {
	t.Helper()
	local := localMenu()
	require.NoError(t, h.db.Create(&local.Categories).Error)
	require.NoError(t, h.db.Create(&local.Dishes).Error)
	require.NoError(t, h.db.Create(local.Settings).Error)
	require.NoError(t, h.db.Create(&local.Users).Error)
	h.remote.SetSnapshot(remoteSnapshot())
}

func TestPullKeepsConflictsPendingByDefault(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedMenu(t)

	res, err := h.engine.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Appended)
	assert.Zero(t, res.Updated)
	assert.Len(t, res.Conflicts, 3)
	assert.Equal(t, 3, res.Pending)

	var d1 models.Dish
	require.NoError(t, h.db.First(&d1, "id = ?", "d1").Error)
	assert.True(t, d1.Price.Equal(decimal.NewFromInt(20)), "local price kept")

	var cake models.Dish
	require.NoError(t, h.db.First(&cake, "id = ?", "d2").Error)
	assert.Equal(t, "c3", cake.CategoryID)

	pending, err := h.engine.PendingConflicts(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	// A second pull replaces the open conflicts instead of piling up.
	_, err = h.engine.Pull(ctx)
	require.NoError(t, err)
	pending, err = h.engine.PendingConflicts(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	imports, err := h.audit.ByAction(ctx, audit.ActionRemoteImport)
	require.NoError(t, err)
	assert.Len(t, imports, 2)
	assert.Equal(t, 2, h.notes.Count(notify.LevelSuccess))
}

func TestPullPreferCloudMergesRemote(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(h *harness) { h.cfg.PreferCloud = true })
	h.seedMenu(t)

	res, err := h.engine.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Appended)
	assert.Equal(t, 3, res.Updated)
	assert.Zero(t, res.Pending)

	var c1 models.Category
	require.NoError(t, h.db.First(&c1, "id = ?", "c1").Error)
	assert.Equal(t, "Main courses", c1.Name)
	assert.Equal(t, "#aa0000", c1.Color)

	var d1 models.Dish
	require.NoError(t, h.db.First(&d1, "id = ?", "d1").Error)
	assert.True(t, d1.Price.Equal(decimal.NewFromInt(22)))
	assert.Equal(t, "local notes", d1.Description)

	settings, err := h.store.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.TaxRate.Equal(decimal.RequireFromString("0.07")))

	pending, err := h.engine.PendingConflicts(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	resolved, err := h.audit.ByAction(ctx, audit.ActionConflictResolved)
	require.NoError(t, err)
	assert.Len(t, resolved, 3)
}

func TestPullRemoteFailureNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedMenu(t)
	h.remote.FailOn("pull")

	_, err := h.engine.Pull(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindRemote))
	assert.Equal(t, 1, h.notes.Count(notify.LevelError))

	var n int64
	require.NoError(t, h.db.Model(&models.Dish{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	meta, err := h.engine.Metadata(ctx)
	require.NoError(t, err)
	require.Len(t, meta, 1)
	assert.Equal(t, ScopePull, meta[0].Scope)
	require.NotNil(t, meta[0].ErrorMessage)
}

func TestResolveConflictsPerEntity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedMenu(t)
	_, err := h.engine.Pull(ctx)
	require.NoError(t, err)

	n, err := h.engine.ResolveConflicts(ctx, map[string]Decision{
		"dish:d1":     DecisionRemote,
		"category:c1": DecisionLocal,
	}, "manager")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var d1 models.Dish
	require.NoError(t, h.db.First(&d1, "id = ?", "d1").Error)
	assert.True(t, d1.Price.Equal(decimal.NewFromInt(22)))
	assert.Equal(t, "local notes", d1.Description)
	assert.False(t, d1.Pending)

	var c1 models.Category
	require.NoError(t, h.db.First(&c1, "id = ?", "c1").Error)
	assert.Equal(t, "Mains", c1.Name)
	assert.True(t, c1.Pending, "kept local side is pushed next cycle")

	pending, err := h.engine.PendingConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "settings", pending[0].EntityType)

	resolved, err := h.audit.ByAction(ctx, audit.ActionConflictResolved)
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "manager", resolved[0].Actor)

	n, err = h.engine.ResolveAll(ctx, true, "manager")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	settings, err := h.store.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.TaxRate.Equal(decimal.RequireFromString("0.07")))
}

func TestResolveConflictsRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedMenu(t)
	_, err := h.engine.Pull(ctx)
	require.NoError(t, err)

	_, err = h.engine.ResolveConflicts(ctx, map[string]Decision{"dish:d1": "both"}, "manager")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = h.engine.ResolveConflicts(ctx, map[string]Decision{"dish:nope": DecisionLocal}, "manager")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	pending, err := h.engine.PendingConflicts(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 3, "nothing resolved")
}

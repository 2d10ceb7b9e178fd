package diagnostics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/audit"
	"github.com/xelth-com/eckposgo/internal/ledger"
	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/testutil"
	"gorm.io/gorm"
)

type stubChain struct {
	report *ledger.VerifyReport
	err    error
}

func (s stubChain) Verify(context.Context) (*ledger.VerifyReport, error) {
	return s.report, s.err
}

func seedMenu(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&models.Category{ID: "c1", Name: "Mains"}).Error)
	require.NoError(t, db.Create(&[]models.Dish{
		{ID: "d1", CategoryID: "c1", Name: "Steak", Price: decimal.NewFromInt(20)},
		{ID: "d2", CategoryID: "gone", Name: "Soup", Price: decimal.NewFromInt(5)},
	}).Error)
}

func TestOrphanDishRepairedAndAudited(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t).DB
	seedMenu(t, db)

	report, err := New(db, nil, testutil.Log()).ValidateLocal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Repaired)
	assert.Zero(t, report.Blocking)

	var dish models.Dish
	require.NoError(t, db.First(&dish, "id = ?", "d2").Error)
	assert.Equal(t, models.DefaultCategoryID, dish.CategoryID)
	assert.True(t, dish.Pending)

	var fallback models.Category
	require.NoError(t, db.First(&fallback, "id = ?", models.DefaultCategoryID).Error)

	repairs, err := audit.New(db, testutil.Log()).ByAction(ctx, audit.ActionRepair)
	require.NoError(t, err)
	require.Len(t, repairs, 1)
	assert.Equal(t, "d2", repairs[0].EntityID)

	// Second run finds nothing left to repair.
	report, err = New(db, nil, testutil.Log()).Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Issues)
}

func TestClosedOrderWithoutSignatureBlocks(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t).DB
	closedAt := time.Now().UTC()
	require.NoError(t, db.Create(&models.Order{ID: "o1", Status: models.OrderStatusClosed, Total: decimal.NewFromInt(10), ClosedAt: &closedAt}).Error)

	report, err := New(db, nil, testutil.Log()).ValidateLocal(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindIntegrity))
	assert.Equal(t, 1, report.Blocking)
}

func TestOrphanItemsAreWarningsOnly(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t).DB
	require.NoError(t, db.Create(&models.OrderItem{ID: "i1", OrderID: "missing", Name: "Tea", Quantity: 1}).Error)

	report, err := New(db, nil, testutil.Log()).ValidateLocal(ctx)
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, SeverityWarning, report.Issues[0].Severity)
	assert.False(t, report.Issues[0].Repaired)
}

func TestNegativePriceBlocks(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t).DB
	require.NoError(t, db.Create(&models.Category{ID: "c1", Name: "Mains"}).Error)
	require.NoError(t, db.Create(&models.Dish{ID: "d1", CategoryID: "c1", Name: "Refund", Price: decimal.NewFromInt(-3)}).Error)

	_, err := New(db, nil, testutil.Log()).ValidateLocal(ctx)
	assert.True(t, apperrors.IsKind(err, apperrors.KindIntegrity))
}

func TestChainBreaksBlockAndMissingKeyWarns(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t).DB

	broken := stubChain{
		report: &ledger.VerifyReport{Breaks: []ledger.ChainBreak{{Seq: 2, OrderID: "o2", Reason: "hash does not match payload"}}},
		err:    apperrors.Integrity("ledger.Verify", errors.New("1 chain break(s)")),
	}
	report, err := New(db, broken, testutil.Log()).ValidateLocal(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, report.Blocking)
	assert.Equal(t, "o2", report.Issues[0].EntityID)

	noKey := stubChain{err: apperrors.Signing("ledger.Verify", errors.New("locked"))}
	report, err = New(db, noKey, testutil.Log()).ValidateLocal(ctx)
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, SeverityWarning, report.Issues[0].Severity)

	dbDown := stubChain{err: errors.New("disk I/O error")}
	_, err = New(db, dbDown, testutil.Log()).ValidateLocal(ctx)
	assert.True(t, apperrors.IsKind(err, apperrors.KindPersistence))
}

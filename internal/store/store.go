package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LayoutBackupRetention is how long floor plan backups are kept
const LayoutBackupRetention = 7 * 24 * time.Hour

// Store is the explicit handle to every entity family. Components take the
// repositories they need instead of reaching for global state.
type Store struct {
	db *gorm.DB

	Categories    *Repository[models.Category]
	Dishes        *Repository[models.Dish]
	Settings      *Repository[models.Settings]
	Tables        *Repository[models.Table]
	Orders        *OrderRepository
	Payments      *Repository[models.Payment]
	StockItems    *Repository[models.StockItem]
	Suppliers     *Repository[models.Supplier]
	Employees     *Repository[models.Employee]
	Attendance    *Repository[models.Attendance]
	Payroll       *Repository[models.Payroll]
	CashShifts    *Repository[models.CashShift]
	Customers     *Repository[models.Customer]
	Users         *Repository[models.User]
	LayoutBackups *Repository[models.LayoutBackup]
}

// New creates a store over an open database
func New(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Categories:    NewRepository[models.Category](db, "sort_order, id"),
		Dishes:        NewRepository[models.Dish](db, "category_id, name, id"),
		Settings:      NewRepository[models.Settings](db, "id"),
		Tables:        NewRepository[models.Table](db, "name, id"),
		Orders:        NewOrderRepository(db),
		Payments:      NewRepository[models.Payment](db, "created_at, id"),
		StockItems:    NewRepository[models.StockItem](db, "name, id"),
		Suppliers:     NewRepository[models.Supplier](db, "name, id"),
		Employees:     NewRepository[models.Employee](db, "name, id"),
		Attendance:    NewRepository[models.Attendance](db, "clock_in, id"),
		Payroll:       NewRepository[models.Payroll](db, "period, id"),
		CashShifts:    NewRepository[models.CashShift](db, "opened_at, id"),
		Customers:     NewRepository[models.Customer](db, "name, id"),
		Users:         NewRepository[models.User](db, "username"),
		LayoutBackups: NewRepository[models.LayoutBackup](db, "created_at"),
	}
}

// DB exposes the handle for components that run their own transactions
func (s *Store) DB() *gorm.DB {
	return s.db
}

// GetSettings returns the settings row, or defaults when none was saved
func (s *Store) GetSettings(ctx context.Context) (models.Settings, error) {
	res := s.Settings.GetByID(ctx, models.SettingsID)
	if !res.Success {
		return models.Settings{}, res.Err()
	}
	if res.Data == nil {
		return models.DefaultSettings(), nil
	}
	return *res.Data, nil
}

// SaveLayoutBackup snapshots the floor plan
func (s *Store) SaveLayoutBackup(ctx context.Context, layout any) Result[*models.LayoutBackup] {
	data, err := json.Marshal(layout)
	if err != nil {
		return fail[*models.LayoutBackup](apperrors.Validation("store.SaveLayoutBackup", err))
	}
	backup := &models.LayoutBackup{
		ID:        uuid.New().String(),
		Layout:    datatypes.JSON(data),
		CreatedAt: time.Now().UTC(),
	}
	return s.LayoutBackups.UpsertOne(ctx, backup)
}

// PruneLayoutBackups removes backups older than the retention window relative to now
func (s *Store) PruneLayoutBackups(ctx context.Context, now time.Time) Result[int64] {
	cutoff := now.Add(-LayoutBackupRetention)
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.LayoutBackup{})
	if res.Error != nil {
		return fail[int64](apperrors.Persistence("store.PruneLayoutBackups", res.Error))
	}
	return ok(res.RowsAffected)
}

// CountOrders counts orders in the given statuses
func (s *Store) CountOrders(ctx context.Context, statuses ...models.OrderStatus) (int64, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&models.Order{})
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, apperrors.Persistence("store.CountOrders", err)
	}
	return n, nil
}

// UnsyncedClosedOrders returns closed orders and their payments not yet accepted remotely
func (s *Store) UnsyncedClosedOrders(ctx context.Context) ([]models.Order, []models.Payment, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Preload("Items").
		Where("status IN ? AND synced = ?", []models.OrderStatus{models.OrderStatusClosed, models.OrderStatusPaid}, false).
		Order("closed_at, id").
		Find(&orders).Error
	if err != nil {
		return nil, nil, apperrors.Persistence("store.UnsyncedClosedOrders", err)
	}
	if len(orders) == 0 {
		return orders, nil, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	var payments []models.Payment
	if err := s.db.WithContext(ctx).Where("order_id IN ?", ids).Order("created_at, id").Find(&payments).Error; err != nil {
		return nil, nil, apperrors.Persistence("store.UnsyncedClosedOrders", err)
	}
	return orders, payments, nil
}

// Revenue sums totals of closed orders
func (s *Store) Revenue(ctx context.Context) (decimal.Decimal, error) {
	var totals []decimal.Decimal
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("status IN ?", []models.OrderStatus{models.OrderStatusClosed, models.OrderStatusPaid}).
		Pluck("total", &totals).Error
	if err != nil {
		return decimal.Zero, apperrors.Persistence("store.Revenue", err)
	}
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t)
	}
	return sum, nil
}

// MenuImport is a batch of entities accepted from the remote store
type MenuImport struct {
	Categories []models.Category
	Dishes     []models.Dish
	Settings   *models.Settings
	Users      []models.User
}

// Len counts the entities in the batch
func (m MenuImport) Len() int {
	n := len(m.Categories) + len(m.Dishes) + len(m.Users)
	if m.Settings != nil {
		n++
	}
	return n
}

// ImportMenu validates and writes the whole batch in one transaction. within,
// when non-nil, runs inside the same transaction so bookkeeping commits or
// rolls back together with the data.
func (s *Store) ImportMenu(ctx context.Context, imp MenuImport, within func(tx *gorm.DB) error) Result[int] {
	const op = "store.ImportMenu"

	entities := make([]any, 0, imp.Len())
	for i := range imp.Categories {
		entities = append(entities, &imp.Categories[i])
	}
	for i := range imp.Dishes {
		entities = append(entities, &imp.Dishes[i])
	}
	if imp.Settings != nil {
		entities = append(entities, imp.Settings)
	}
	for i := range imp.Users {
		entities = append(entities, &imp.Users[i])
	}
	for _, e := range entities {
		if err := Validate(op, e); err != nil {
			return fail[int](err)
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range entities {
			if err := upsert(tx, e); err != nil {
				return err
			}
		}
		if within != nil {
			return within(tx)
		}
		return nil
	})
	if err != nil {
		return fail[int](classify(op, err))
	}
	return ok(len(entities))
}

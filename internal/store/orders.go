package store

import (
	"context"
	"errors"

	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/models"
	"gorm.io/gorm"
)

// ErrOrderClosed rejects edits to an order that went through checkout
var ErrOrderClosed = errors.New("order is closed; items and total are immutable")

// OrderRepository persists orders together with their items.
// It shadows the generic write methods so closed orders stay frozen.
type OrderRepository struct {
	*Repository[models.Order]
	db *gorm.DB
}

// NewOrderRepository creates an order repository
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{
		Repository: NewRepository[models.Order](db, "created_at, id"),
		db:         db,
	}
}

// GetOrder loads an order with its items, nil Data when missing
func (r *OrderRepository) GetOrder(ctx context.Context, id string) Result[*models.Order] {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ok[*models.Order](nil)
	}
	if err != nil {
		return fail[*models.Order](apperrors.Persistence("store.GetOrder", err))
	}
	return ok(&order)
}

// List returns orders with items, optionally filtered by status
func (r *OrderRepository) List(ctx context.Context, statuses ...models.OrderStatus) Result[[]models.Order] {
	q := r.db.WithContext(ctx).Preload("Items").Order("created_at, id")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return fail[[]models.Order](apperrors.Persistence("store.ListOrders", err))
	}
	return ok(orders)
}

// UpsertOne saves an open order and replaces its items atomically
func (r *OrderRepository) UpsertOne(ctx context.Context, order *models.Order) Result[*models.Order] {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveOrder(tx, order)
	})
	if err != nil {
		return fail[*models.Order](classify("store.SaveOrder", err))
	}
	return ok(order)
}

// UpsertMany saves orders in one transaction
func (r *OrderRepository) UpsertMany(ctx context.Context, orders []models.Order) Result[int] {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range orders {
			if err := saveOrder(tx, &orders[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fail[int](classify("store.SaveOrders", err))
	}
	return ok(len(orders))
}

// DeleteByID removes an open order and its items. Closed orders are kept forever.
func (r *OrderRepository) DeleteByID(ctx context.Context, id string) Result[bool] {
	const op = "store.DeleteOrder"
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Order
		err := tx.Where("id = ?", id).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if existing.IsClosed() {
			return apperrors.Validation(op, ErrOrderClosed)
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&models.Order{}).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return fail[bool](classify(op, err))
	}
	return ok(deleted)
}

// MarkSynced flags closed orders as accepted by the remote store
func (r *OrderRepository) MarkSynced(ctx context.Context, ids []string) Result[int64] {
	if len(ids) == 0 {
		return ok[int64](0)
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"synced": true, "pending": false})
	if res.Error != nil {
		return fail[int64](apperrors.Persistence("store.MarkOrdersSynced", res.Error))
	}
	return ok(res.RowsAffected)
}

// saveOrder upserts one order inside tx. Closing happens only through fiscal
// checkout, so a closed status is rejected for open orders, and a closed order
// only accepts an unchanged copy whose sync markers may differ.
func saveOrder(tx *gorm.DB, order *models.Order) error {
	const op = "store.SaveOrder"
	if err := Validate(op, order); err != nil {
		return err
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		if err := Validate(op, &order.Items[i]); err != nil {
			return err
		}
	}

	var existing models.Order
	err := tx.Where("id = ?", order.ID).Take(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if order.IsClosed() {
			return apperrors.Validationf(op, "order %s: orders are closed through checkout", order.ID)
		}
	case err != nil:
		return err
	case existing.IsClosed():
		if !existing.Total.Equal(order.Total) || existing.Status != order.Status {
			return apperrors.Validation(op, ErrOrderClosed)
		}
		return tx.Model(&models.Order{}).Where("id = ?", order.ID).
			Updates(map[string]any{"synced": order.Synced, "pending": order.Pending}).Error
	case order.IsClosed():
		return apperrors.Validationf(op, "order %s: orders are closed through checkout", order.ID)
	}

	if err := upsert(tx, order); err != nil {
		return err
	}
	if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	if len(order.Items) > 0 {
		return tx.Create(&order.Items).Error
	}
	return nil
}

// classify keeps typed errors and marks everything else as a persistence failure
func classify(op string, err error) error {
	if apperrors.KindOf(err) != "" {
		return err
	}
	return apperrors.Persistence(op, err)
}

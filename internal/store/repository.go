package store

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/xelth-com/eckposgo/internal/apperrors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var validate = validator.New()

type selfValidator interface {
	Validate() error
}

// Validate runs struct tags then the entity's own Validate method, if any
func Validate(op string, entity any) error {
	if err := validate.Struct(entity); err != nil {
		return apperrors.Validation(op, err)
	}
	if v, ok := entity.(selfValidator); ok {
		if err := v.Validate(); err != nil {
			return apperrors.Validation(op, err)
		}
	}
	return nil
}

// Repository persists one entity family keyed by a string id
type Repository[T any] struct {
	db      *gorm.DB
	orderBy string
}

// NewRepository creates a repository; orderBy controls GetAll ordering
func NewRepository[T any](db *gorm.DB, orderBy string) *Repository[T] {
	if orderBy == "" {
		orderBy = "id"
	}
	return &Repository[T]{db: db, orderBy: orderBy}
}

// GetAll returns every entity. The slice is freshly scanned and owned by the caller.
func (r *Repository[T]) GetAll(ctx context.Context) Result[[]T] {
	var items []T
	if err := r.db.WithContext(ctx).Order(r.orderBy).Find(&items).Error; err != nil {
		return fail[[]T](apperrors.Persistence("store.GetAll", err))
	}
	if items == nil {
		items = []T{}
	}
	return ok(items)
}

// GetByID returns one entity, or a nil Data when it does not exist
func (r *Repository[T]) GetByID(ctx context.Context, id string) Result[*T] {
	var item T
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ok[*T](nil)
	}
	if err != nil {
		return fail[*T](apperrors.Persistence("store.GetByID", err))
	}
	return ok(&item)
}

// UpsertOne inserts or replaces an entity by id. Repeating the call is a no-op.
func (r *Repository[T]) UpsertOne(ctx context.Context, item *T) Result[*T] {
	if err := Validate("store.UpsertOne", item); err != nil {
		return fail[*T](err)
	}
	if err := upsert(r.db.WithContext(ctx), item); err != nil {
		return fail[*T](apperrors.Persistence("store.UpsertOne", err))
	}
	return ok(item)
}

// UpsertMany writes all entities in one transaction. Any failure rolls back the whole batch.
func (r *Repository[T]) UpsertMany(ctx context.Context, items []T) Result[int] {
	for i := range items {
		if err := Validate("store.UpsertMany", &items[i]); err != nil {
			return fail[int](err)
		}
	}
	if len(items) == 0 {
		return ok(0)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range items {
			if err := upsert(tx, &items[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fail[int](apperrors.Persistence("store.UpsertMany", err))
	}
	return ok(len(items))
}

// DeleteByID removes an entity. Data reports whether a row existed.
func (r *Repository[T]) DeleteByID(ctx context.Context, id string) Result[bool] {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return fail[bool](apperrors.Persistence("store.DeleteByID", res.Error))
	}
	return ok(res.RowsAffected > 0)
}

// Pending returns entities flagged dirty
func (r *Repository[T]) Pending(ctx context.Context) Result[[]T] {
	var items []T
	if err := r.db.WithContext(ctx).Where("pending = ?", true).Order(r.orderBy).Find(&items).Error; err != nil {
		return fail[[]T](apperrors.Persistence("store.Pending", err))
	}
	return ok(items)
}

// ClearPending resets the dirty marker for ids
func (r *Repository[T]) ClearPending(ctx context.Context, ids []string) Result[int64] {
	if len(ids) == 0 {
		return ok[int64](0)
	}
	res := r.db.WithContext(ctx).Model(new(T)).Where("id IN ?", ids).Update("pending", false)
	if res.Error != nil {
		return fail[int64](apperrors.Persistence("store.ClearPending", res.Error))
	}
	return ok(res.RowsAffected)
}

func upsert(tx *gorm.DB, item any) error {
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).
		Omit(clause.Associations).
		Create(item).Error
}

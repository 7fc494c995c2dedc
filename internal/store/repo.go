package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned by the single-row selects.
	ErrNotFound = gorm.ErrRecordNotFound
	// ErrStaleVersion means a compare-and-swap lost against a concurrent writer.
	ErrStaleVersion = errors.New("store: stale version")
)

// Scope narrows a query; see Where, OrderBy, Limit and Offset.
type Scope = func(*gorm.DB) *gorm.DB

func Where(query any, args ...any) Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Where(query, args...) }
}

func OrderBy(order string) Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Order(order) }
}

func Limit(n int) Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Limit(n) }
}

func Offset(n int) Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Offset(n) }
}

// Unscoped includes soft-deleted rows.
func Unscoped() Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Unscoped() }
}

// Repo is the per-entity data-access surface.
type Repo[T any] struct {
	db *gorm.DB
}

func (r Repo[T]) model(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(new(T))
}

func (r Repo[T]) Insert(ctx context.Context, v *T) error {
	if err := r.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("insert %T: %w", v, err)
	}
	return nil
}

func (r Repo[T]) SelectByID(ctx context.Context, id uint) (*T, error) {
	var v T
	if err := r.db.WithContext(ctx).First(&v, id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// SelectByIDUnscoped ignores soft-delete filtering.
func (r Repo[T]) SelectByIDUnscoped(ctx context.Context, id uint) (*T, error) {
	var v T
	if err := r.db.WithContext(ctx).Unscoped().First(&v, id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r Repo[T]) SelectOne(ctx context.Context, scopes ...Scope) (*T, error) {
	var v T
	if err := r.db.WithContext(ctx).Scopes(scopes...).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r Repo[T]) SelectList(ctx context.Context, scopes ...Scope) ([]T, error) {
	var list []T
	if err := r.db.WithContext(ctx).Scopes(scopes...).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("select list: %w", err)
	}
	return list, nil
}

func (r Repo[T]) SelectCount(ctx context.Context, scopes ...Scope) (int64, error) {
	var n int64
	if err := r.model(ctx).Scopes(scopes...).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("select count: %w", err)
	}
	return n, nil
}

// Update writes fields on the row with id. A missing row is ErrNotFound.
func (r Repo[T]) Update(ctx context.Context, id uint, fields map[string]any) error {
	n, err := r.UpdateWhere(ctx, fields, Where("id = ?", id))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateWhere is a single conditional UPDATE; the affected row count tells
// the caller whether its predicate held.
func (r Repo[T]) UpdateWhere(ctx context.Context, fields map[string]any, scopes ...Scope) (int64, error) {
	res := r.model(ctx).Scopes(scopes...).Updates(fields)
	if res.Error != nil {
		return 0, fmt.Errorf("update: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// SumAmount adds up the amount column of the matching rows. Amounts are
// decimal text, so the sum is done here rather than in SQL.
func (r Repo[T]) SumAmount(ctx context.Context, scopes ...Scope) (decimal.Decimal, error) {
	var raw []string
	if err := r.model(ctx).Scopes(scopes...).Pluck("amount", &raw).Error; err != nil {
		return decimal.Zero, fmt.Errorf("sum amount: %w", err)
	}
	total := decimal.Zero
	for _, s := range raw {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("sum amount: bad value %q: %w", s, err)
		}
		total = total.Add(d)
	}
	return total, nil
}

// Delete removes the row with id; models with gorm.DeletedAt are soft deleted.
func (r Repo[T]) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(new(T), id)
	if res.Error != nil {
		return fmt.Errorf("delete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Package catalog holds categories and medicines and the store that serves them.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          int64
	Name        string
	Description string
	Image       string
}

type Medicine struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryID  int64
	Image       string
}

// LineTotal is qty × price, the subtotal a cart or order line shows.
func (m Medicine) LineTotal(qty int) decimal.Decimal {
	return m.Price.Mul(decimal.NewFromInt(int64(qty)))
}

// MedicineFilter narrows ListMedicines. Zero values match everything.
type MedicineFilter struct {
	CategoryID int64
	Query      string // case-insensitive substring of the name
}

type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, c Category) (Category, error)
	// DeleteCategory removes the category and every medicine in it.
	DeleteCategory(ctx context.Context, id int64) error

	ListMedicines(ctx context.Context, f MedicineFilter) ([]Medicine, error)
	GetMedicine(ctx context.Context, id int64) (Medicine, error)
	CreateMedicine(ctx context.Context, m Medicine) (Medicine, error)
	UpdateMedicine(ctx context.Context, m Medicine) (Medicine, error)
	DeleteMedicine(ctx context.Context, id int64) error
}

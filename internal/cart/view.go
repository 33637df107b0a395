package cart

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-pharmacy-store/internal/apperr"
	"github.com/ariefcatur/go-pharmacy-store/internal/catalog"
	"github.com/shopspring/decimal"
)

type MedicineGetter interface {
	GetMedicine(ctx context.Context, id int64) (catalog.Medicine, error)
}

type Line struct {
	Medicine catalog.Medicine
	Quantity int
	Subtotal decimal.Decimal
}

// View is a cart resolved against the current catalog.
type View struct {
	Lines []Line
	Total decimal.Decimal
	// Stale lists ids whose medicine no longer exists; they are left out of Lines and Total.
	Stale []int64
}

func (v View) Line(id int64) (Line, bool) {
	for _, l := range v.Lines {
		if l.Medicine.ID == id {
			return l, true
		}
	}
	return Line{}, false
}

// Resolve looks every cart entry up in the catalog. Missing medicines go to Stale
// instead of failing the whole view; any other lookup error is returned.
func Resolve(ctx context.Context, c Cart, mg MedicineGetter) (View, error) {
	v := View{Total: decimal.Zero}
	for _, id := range c.IDs() {
		m, err := mg.GetMedicine(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			v.Stale = append(v.Stale, id)
			continue
		}
		if err != nil {
			return View{}, err
		}
		qty := c[id]
		sub := m.LineTotal(qty)
		v.Lines = append(v.Lines, Line{Medicine: m, Quantity: qty, Subtotal: sub})
		v.Total = v.Total.Add(sub)
	}
	return v, nil
}

// Prune removes the stale ids of v from c and reports whether anything changed.
func (c Cart) Prune(v View) bool {
	for _, id := range v.Stale {
		delete(c, id)
	}
	return len(v.Stale) > 0
}

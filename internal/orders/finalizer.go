package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-pharmacy-store/internal/apperr"
	"github.com/ariefcatur/go-pharmacy-store/internal/cart"
	"github.com/ariefcatur/go-pharmacy-store/internal/catalog"
)

var ErrEmptyCart = apperr.Invalid("cart is empty")

// Tx is the slice of the stores a checkout touches. Everything done through one Tx
// commits or rolls back together.
type Tx interface {
	// LockMedicine reads the medicine and holds it until the transaction ends.
	LockMedicine(ctx context.Context, id int64) (catalog.Medicine, error)
	// CreateOrder inserts a completed order stamped with the store's clock.
	CreateOrder(ctx context.Context, userID int64) (Order, error)
	CreateItem(ctx context.Context, orderID, medicineID int64, qty int) (OrderItem, error)
	// DecrementStock never takes stock below zero; it fails with ErrInsufficientStock instead.
	DecrementStock(ctx context.Context, medicineID int64, qty int) error
}

// TxRunner runs fn in a transaction; a non-nil return from fn rolls everything back.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type Shortage struct {
	MedicineID int64
	Name       string
	Requested  int
	Available  int
}

type StockShortageError struct {
	Shortages []Shortage
}

func (e *StockShortageError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s (id %d): requested %d, available %d", s.Name, s.MedicineID, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *StockShortageError) Is(target error) bool { return target == apperr.ErrInsufficientStock }

type Finalizer struct {
	Store TxRunner
}

// Finalize turns c into a completed order for userID. Either the order, all of its
// items and every stock decrement commit, or nothing does. c itself is not modified;
// clearing the session cart is up to the caller once Finalize succeeds.
func (f *Finalizer) Finalize(ctx context.Context, userID int64, c cart.Cart) (Receipt, error) {
	if c.Empty() {
		return Receipt{}, ErrEmptyCart
	}
	for id, qty := range c {
		if qty < 1 {
			return Receipt{}, apperr.Invalid(fmt.Sprintf("invalid quantity %d for medicine %d", qty, id))
		}
	}

	var receipt Receipt
	err := f.Store.InTx(ctx, func(tx Tx) error {
		// ascending ids so concurrent checkouts lock rows in the same order
		ids := c.IDs()
		meds := make(map[int64]catalog.Medicine, len(ids))
		var short []Shortage
		for _, id := range ids {
			m, err := tx.LockMedicine(ctx, id)
			if err != nil {
				return fmt.Errorf("medicine %d: %w", id, err)
			}
			meds[id] = m
			if m.Stock < c[id] {
				short = append(short, Shortage{MedicineID: id, Name: m.Name, Requested: c[id], Available: m.Stock})
			}
		}
		if len(short) > 0 {
			return &StockShortageError{Shortages: short}
		}

		order, err := tx.CreateOrder(ctx, userID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		lines := make([]Line, 0, len(ids))
		for _, id := range ids {
			qty := c[id]
			item, err := tx.CreateItem(ctx, order.ID, id, qty)
			if err != nil {
				return fmt.Errorf("create item for medicine %d: %w", id, err)
			}
			if err := tx.DecrementStock(ctx, id, qty); err != nil {
				return fmt.Errorf("decrement stock of medicine %d: %w", id, err)
			}
			m := meds[id]
			m.Stock -= qty
			lines = append(lines, Line{Item: item, Medicine: m})
		}
		receipt = NewReceipt(order, lines)
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// Shortages extracts the per-medicine details from a checkout error, if any.
func Shortages(err error) []Shortage {
	var se *StockShortageError
	if errors.As(err, &se) {
		return se.Shortages
	}
	return nil
}

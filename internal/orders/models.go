package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-pharmacy-store/internal/catalog"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID        int64
	UserID    int64
	CreatedAt time.Time
	Completed bool
}

type OrderItem struct {
	ID         int64
	OrderID    int64
	MedicineID int64
	Quantity   int
}

// Payment is persisted by an external payment flow; checkout never writes one.
type Payment struct {
	ID            int64
	OrderID       int64
	Amount        decimal.Decimal
	Status        string
	PaymentMethod string
	CreatedAt     time.Time
}

// Line pairs an item with the medicine it points at. Price is whatever the
// medicine costs when the line is read, not when it was ordered.
type Line struct {
	Item     OrderItem
	Medicine catalog.Medicine
}

func (l Line) Total() decimal.Decimal { return l.Medicine.LineTotal(l.Item.Quantity) }

type Receipt struct {
	Order Order
	Lines []Line
	Total decimal.Decimal
}

func NewReceipt(o Order, lines []Line) Receipt {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return Receipt{Order: o, Lines: lines, Total: total}
}

// Filter selects receipts; UserID 0 means every user.
type Filter struct {
	UserID int64
}

type Reader interface {
	// Receipt returns the order only when it belongs to userID.
	Receipt(ctx context.Context, orderID, userID int64) (Receipt, error)
	// Receipts lists newest first.
	Receipts(ctx context.Context, f Filter) ([]Receipt, error)
}

package httpx

import (
	"time"

	"github.com/ariefcatur/go-pharmacy-store/internal/auth"
	"github.com/ariefcatur/go-pharmacy-store/internal/cart"
	"github.com/ariefcatur/go-pharmacy-store/internal/catalog"
	"github.com/ariefcatur/go-pharmacy-store/internal/orders"
	"github.com/shopspring/decimal"
)

// money renders amounts the way they are stored, two decimals.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

type userDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	IsStaff  bool   `json:"is_staff"`
}

func toUser(u auth.User) userDTO {
	return userDTO{ID: u.ID, Username: u.Username, Email: u.Email, IsStaff: u.IsStaff}
}

type categoryDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

func toCategory(c catalog.Category) categoryDTO {
	return categoryDTO{ID: c.ID, Name: c.Name, Description: c.Description, Image: c.Image}
}

func toCategories(cs []catalog.Category) []categoryDTO {
	out := make([]categoryDTO, 0, len(cs))
	for _, c := range cs {
		out = append(out, toCategory(c))
	}
	return out
}

type medicineDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	CategoryID  int64  `json:"category_id"`
	Image       string `json:"image"`
}

func toMedicine(m catalog.Medicine) medicineDTO {
	return medicineDTO{
		ID: m.ID, Name: m.Name, Description: m.Description, Price: money(m.Price),
		Stock: m.Stock, CategoryID: m.CategoryID, Image: m.Image,
	}
}

func toMedicines(ms []catalog.Medicine) []medicineDTO {
	out := make([]medicineDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMedicine(m))
	}
	return out
}

type searchHit struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
	Stock int    `json:"stock"`
}

type cartLineDTO struct {
	Medicine medicineDTO `json:"medicine"`
	Quantity int         `json:"quantity"`
	Subtotal string      `json:"subtotal"`
}

type cartDTO struct {
	Items    []cartLineDTO `json:"items"`
	Total    string        `json:"total"`
	Warnings []string      `json:"warnings,omitempty"`
}

func toCart(v cart.View, warnings []string) cartDTO {
	items := make([]cartLineDTO, 0, len(v.Lines))
	for _, l := range v.Lines {
		items = append(items, cartLineDTO{Medicine: toMedicine(l.Medicine), Quantity: l.Quantity, Subtotal: money(l.Subtotal)})
	}
	return cartDTO{Items: items, Total: money(v.Total), Warnings: warnings}
}

type receiptLineDTO struct {
	ID         int64  `json:"id"`
	MedicineID int64  `json:"medicine_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
	LineTotal  string `json:"line_total"`
}

type receiptDTO struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	CreatedAt time.Time        `json:"created_at"`
	Completed bool             `json:"completed"`
	Items     []receiptLineDTO `json:"items"`
	Total     string           `json:"total"`
}

func toReceipt(r orders.Receipt) receiptDTO {
	items := make([]receiptLineDTO, 0, len(r.Lines))
	for _, l := range r.Lines {
		items = append(items, receiptLineDTO{
			ID:         l.Item.ID,
			MedicineID: l.Item.MedicineID,
			Name:       l.Medicine.Name,
			Quantity:   l.Item.Quantity,
			UnitPrice:  money(l.Medicine.Price),
			LineTotal:  money(l.Total()),
		})
	}
	return receiptDTO{
		ID: r.Order.ID, UserID: r.Order.UserID, CreatedAt: r.Order.CreatedAt,
		Completed: r.Order.Completed, Items: items, Total: money(r.Total),
	}
}

func toReceipts(rs []orders.Receipt) []receiptDTO {
	out := make([]receiptDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReceipt(r))
	}
	return out
}

type categoryReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

func (c categoryReq) model(id int64) catalog.Category {
	return catalog.Category{ID: id, Name: c.Name, Description: c.Description, Image: c.Image}
}

// Price accepts a JSON string or number.
type medicineReq struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CategoryID  int64           `json:"category_id"`
	Image       string          `json:"image"`
}

func (m medicineReq) model(id int64) catalog.Medicine {
	return catalog.Medicine{
		ID: id, Name: m.Name, Description: m.Description, Price: m.Price,
		Stock: m.Stock, CategoryID: m.CategoryID, Image: m.Image,
	}
}

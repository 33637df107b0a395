// Package cart is the session-held shopping cart: medicine id -> quantity.
package cart

import (
	"sort"

	"github.com/ariefcatur/go-pharmacy-store/internal/apperr"
)

// Cart maps medicine id to a quantity of at least 1. A missing key means "not in cart".
type Cart map[int64]int

// Add bumps the quantity of id by one.
func (c Cart) Add(id int64) {
	c[id]++
}

// Remove drops id. Removing an id that is not in the cart is a no-op.
func (c Cart) Remove(id int64) {
	delete(c, id)
}

// SetQuantity only touches ids already in the cart; it reports whether one was updated.
func (c Cart) SetQuantity(id int64, qty int) (bool, error) {
	if qty < 1 {
		return false, apperr.Invalid("quantity must be at least 1")
	}
	if _, ok := c[id]; !ok {
		return false, nil
	}
	c[id] = qty
	return true, nil
}

// IDs returns the medicine ids in ascending order.
func (c Cart) IDs() []int64 {
	ids := make([]int64, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c Cart) Empty() bool { return len(c) == 0 }

// Package memstore keeps catalog, orders and users in process memory. It backs
// STORE_DRIVER=memory and the handler tests.
package memstore

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-pharmacy-store/internal/apperr"
	"github.com/ariefcatur/go-pharmacy-store/internal/auth"
	"github.com/ariefcatur/go-pharmacy-store/internal/catalog"
	"github.com/ariefcatur/go-pharmacy-store/internal/orders"
)

type Store struct {
	mu sync.RWMutex

	categories map[int64]catalog.Category
	medicines  map[int64]catalog.Medicine
	orders     map[int64]orders.Order
	items      map[int64]orders.OrderItem
	users      map[int64]auth.User

	nextCategoryID int64
	nextMedicineID int64
	nextOrderID    int64
	nextItemID     int64
	nextUserID     int64

	// Now stamps new orders and users.
	Now func() time.Time
}

var (
	_ catalog.Repository = (*Store)(nil)
	_ orders.TxRunner    = (*Store)(nil)
	_ orders.Reader      = (*Store)(nil)
	_ auth.UserStore     = (*Store)(nil)
)

func New() *Store {
	return &Store{
		categories: make(map[int64]catalog.Category),
		medicines:  make(map[int64]catalog.Medicine),
		orders:     make(map[int64]orders.Order),
		items:      make(map[int64]orders.OrderItem),
		users:      make(map[int64]auth.User),
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// ---- catalog ----

func (s *Store) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]catalog.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, id int64) (catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return catalog.Category{}, apperr.NotFound("category")
	}
	return c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	if err := catalog.ValidateCategory(c); err != nil {
		return catalog.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCategoryID++
	c.ID = s.nextCategoryID
	c.Name = strings.TrimSpace(c.Name)
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	if err := catalog.ValidateCategory(c); err != nil {
		return catalog.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[c.ID]; !ok {
		return catalog.Category{}, apperr.NotFound("category")
	}
	c.Name = strings.TrimSpace(c.Name)
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return apperr.NotFound("category")
	}
	delete(s.categories, id)
	for mid, m := range s.medicines {
		if m.CategoryID == id {
			s.deleteMedicineLocked(mid)
		}
	}
	return nil
}

func (s *Store) ListMedicines(ctx context.Context, f catalog.MedicineFilter) ([]catalog.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]catalog.Medicine, 0)
	for _, m := range s.medicines {
		if f.CategoryID != 0 && m.CategoryID != f.CategoryID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(m.Name), q) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetMedicine(ctx context.Context, id int64) (catalog.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.medicines[id]
	if !ok {
		return catalog.Medicine{}, apperr.NotFound("medicine")
	}
	return m, nil
}

func (s *Store) CreateMedicine(ctx context.Context, m catalog.Medicine) (catalog.Medicine, error) {
	if err := catalog.ValidateMedicine(m); err != nil {
		return catalog.Medicine{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[m.CategoryID]; !ok {
		return catalog.Medicine{}, apperr.NotFound("category")
	}
	s.nextMedicineID++
	m.ID = s.nextMedicineID
	m.Name = strings.TrimSpace(m.Name)
	s.medicines[m.ID] = m
	return m, nil
}

func (s *Store) UpdateMedicine(ctx context.Context, m catalog.Medicine) (catalog.Medicine, error) {
	if err := catalog.ValidateMedicine(m); err != nil {
		return catalog.Medicine{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.medicines[m.ID]; !ok {
		return catalog.Medicine{}, apperr.NotFound("medicine")
	}
	if _, ok := s.categories[m.CategoryID]; !ok {
		return catalog.Medicine{}, apperr.NotFound("category")
	}
	m.Name = strings.TrimSpace(m.Name)
	s.medicines[m.ID] = m
	return m, nil
}

func (s *Store) DeleteMedicine(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.medicines[id]; !ok {
		return apperr.NotFound("medicine")
	}
	s.deleteMedicineLocked(id)
	return nil
}

// deleteMedicineLocked drops the medicine and the order lines pointing at it.
func (s *Store) deleteMedicineLocked(id int64) {
	delete(s.medicines, id)
	for iid, it := range s.items {
		if it.MedicineID == id {
			delete(s.items, iid)
		}
	}
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, u auth.User) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username {
			return auth.User{}, auth.ErrUsernameTaken
		}
	}
	s.nextUserID++
	u.ID = s.nextUserID
	u.CreatedAt = s.Now()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return auth.User{}, apperr.NotFound("user")
}

func (s *Store) UserByID(ctx context.Context, id int64) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return auth.User{}, apperr.NotFound("user")
	}
	return u, nil
}

// ---- orders ----

// InTx holds the write lock for the whole of fn, so checkouts are serialized. On
// error every map fn could have touched is restored.
func (s *Store) InTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	medicines   map[int64]catalog.Medicine
	orders      map[int64]orders.Order
	items       map[int64]orders.OrderItem
	nextOrderID int64
	nextItemID  int64
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		medicines:   maps.Clone(s.medicines),
		orders:      maps.Clone(s.orders),
		items:       maps.Clone(s.items),
		nextOrderID: s.nextOrderID,
		nextItemID:  s.nextItemID,
	}
}

func (s *Store) restore(sn snapshot) {
	s.medicines = sn.medicines
	s.orders = sn.orders
	s.items = sn.items
	s.nextOrderID = sn.nextOrderID
	s.nextItemID = sn.nextItemID
}

// memTx runs with s.mu already held.
type memTx struct{ s *Store }

func (t memTx) LockMedicine(ctx context.Context, id int64) (catalog.Medicine, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Medicine{}, err
	}
	m, ok := t.s.medicines[id]
	if !ok {
		return catalog.Medicine{}, apperr.NotFound("medicine")
	}
	return m, nil
}

func (t memTx) CreateOrder(ctx context.Context, userID int64) (orders.Order, error) {
	if _, ok := t.s.users[userID]; !ok {
		return orders.Order{}, apperr.NotFound("user")
	}
	t.s.nextOrderID++
	o := orders.Order{ID: t.s.nextOrderID, UserID: userID, CreatedAt: t.s.Now(), Completed: true}
	t.s.orders[o.ID] = o
	return o, nil
}

func (t memTx) CreateItem(ctx context.Context, orderID, medicineID int64, qty int) (orders.OrderItem, error) {
	if _, ok := t.s.orders[orderID]; !ok {
		return orders.OrderItem{}, apperr.NotFound("order")
	}
	if _, ok := t.s.medicines[medicineID]; !ok {
		return orders.OrderItem{}, apperr.NotFound("medicine")
	}
	t.s.nextItemID++
	it := orders.OrderItem{ID: t.s.nextItemID, OrderID: orderID, MedicineID: medicineID, Quantity: qty}
	t.s.items[it.ID] = it
	return it, nil
}

func (t memTx) DecrementStock(ctx context.Context, medicineID int64, qty int) error {
	m, ok := t.s.medicines[medicineID]
	if !ok {
		return apperr.NotFound("medicine")
	}
	if m.Stock < qty {
		return apperr.ErrInsufficientStock
	}
	m.Stock -= qty
	t.s.medicines[medicineID] = m
	return nil
}

func (s *Store) Receipt(ctx context.Context, orderID, userID int64) (orders.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[orderID]
	if !ok || o.UserID != userID {
		return orders.Receipt{}, apperr.NotFound("order")
	}
	return orders.NewReceipt(o, s.linesLocked(orderID)), nil
}

func (s *Store) Receipts(ctx context.Context, f orders.Filter) ([]orders.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]orders.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if f.UserID == 0 || o.UserID == f.UserID {
			list = append(list, o)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	out := make([]orders.Receipt, 0, len(list))
	for _, o := range list {
		out = append(out, orders.NewReceipt(o, s.linesLocked(o.ID)))
	}
	return out, nil
}

func (s *Store) linesLocked(orderID int64) []orders.Line {
	var lines []orders.Line
	for _, it := range s.items {
		if it.OrderID != orderID {
			continue
		}
		lines = append(lines, orders.Line{Item: it, Medicine: s.medicines[it.MedicineID]})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Item.ID < lines[j].Item.ID })
	return lines
}

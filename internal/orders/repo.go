package orders

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-pharmacy-store/internal/apperr"
	"github.com/ariefcatur/go-pharmacy-store/internal/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres order store. Checkout stock is guarded with row locks
// (SELECT ... FOR UPDATE) taken inside the checkout transaction.
type Repo struct{ DB *pgxpool.Pool }

var (
	_ TxRunner = (*Repo)(nil)
	_ Reader   = (*Repo)(nil)
)

func (r *Repo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct{ tx pgx.Tx }

func (t pgTx) LockMedicine(ctx context.Context, id int64) (catalog.Medicine, error) {
	var m catalog.Medicine
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, description, price, stock, category_id, image
		FROM medicines WHERE id=$1 FOR UPDATE`, id,
	).Scan(&m.ID, &m.Name, &m.Description, &m.Price, &m.Stock, &m.CategoryID, &m.Image)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Medicine{}, apperr.NotFound("medicine")
	}
	return m, err
}

func (t pgTx) CreateOrder(ctx context.Context, userID int64) (Order, error) {
	o := Order{UserID: userID, Completed: true}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders(user_id, completed) VALUES ($1, TRUE)
		RETURNING id, created_at`, userID,
	).Scan(&o.ID, &o.CreatedAt)
	return o, err
}

func (t pgTx) CreateItem(ctx context.Context, orderID, medicineID int64, qty int) (OrderItem, error) {
	it := OrderItem{OrderID: orderID, MedicineID: medicineID, Quantity: qty}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_items(order_id, medicine_id, quantity)
		VALUES ($1, $2, $3) RETURNING id`,
		orderID, medicineID, qty,
	).Scan(&it.ID)
	return it, err
}

func (t pgTx) DecrementStock(ctx context.Context, medicineID int64, qty int) error {
	ct, err := t.tx.Exec(ctx, `UPDATE medicines SET stock = stock - $2 WHERE id=$1 AND stock >= $2`, medicineID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.ErrInsufficientStock
	}
	return nil
}

func (r *Repo) Receipt(ctx context.Context, orderID, userID int64) (Receipt, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, created_at, completed FROM orders
		WHERE id=$1 AND user_id=$2`, orderID, userID,
	).Scan(&o.ID, &o.UserID, &o.CreatedAt, &o.Completed)
	if errors.Is(err, pgx.ErrNoRows) {
		return Receipt{}, apperr.NotFound("order")
	}
	if err != nil {
		return Receipt{}, err
	}

	lines, err := r.lines(ctx, []int64{o.ID})
	if err != nil {
		return Receipt{}, err
	}
	return NewReceipt(o, lines[o.ID]), nil
}

func (r *Repo) Receipts(ctx context.Context, f Filter) ([]Receipt, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, created_at, completed FROM orders
		WHERE $1::bigint = 0 OR user_id = $1::bigint
		ORDER BY created_at DESC, id DESC`, f.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		list []Order
		ids  []int64
	)
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.CreatedAt, &o.Completed); err != nil {
			return nil, err
		}
		list = append(list, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}

	lines, err := r.lines(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Receipt, 0, len(list))
	for _, o := range list {
		out = append(out, NewReceipt(o, lines[o.ID]))
	}
	return out, nil
}

// lines loads items of the given orders joined with their current medicine rows.
func (r *Repo) lines(ctx context.Context, orderIDs []int64) (map[int64][]Line, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.medicine_id, oi.quantity,
		       m.id, m.name, m.description, m.price, m.stock, m.category_id, m.image
		FROM order_items oi
		JOIN medicines m ON m.id = oi.medicine_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]Line, len(orderIDs))
	for rows.Next() {
		var (
			it OrderItem
			m  catalog.Medicine
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MedicineID, &it.Quantity,
			&m.ID, &m.Name, &m.Description, &m.Price, &m.Stock, &m.CategoryID, &m.Image); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], Line{Item: it, Medicine: m})
	}
	return out, rows.Err()
}

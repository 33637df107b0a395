package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-pharmacy-store/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres Repository.
type Repo struct{ DB *pgxpool.Pool }

var _ Repository = (*Repo)(nil)

const fkViolation = "23503"

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name, description, image FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Image); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.DB.QueryRow(ctx, `SELECT id, name, description, image FROM categories WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.Image)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, apperr.NotFound("category")
	}
	return c, err
}

func (r *Repo) CreateCategory(ctx context.Context, c Category) (Category, error) {
	if err := ValidateCategory(c); err != nil {
		return Category{}, err
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO categories(name, description, image)
		VALUES ($1, $2, $3) RETURNING id`,
		strings.TrimSpace(c.Name), c.Description, c.Image,
	).Scan(&c.ID)
	c.Name = strings.TrimSpace(c.Name)
	return c, err
}

func (r *Repo) UpdateCategory(ctx context.Context, c Category) (Category, error) {
	if err := ValidateCategory(c); err != nil {
		return Category{}, err
	}
	c.Name = strings.TrimSpace(c.Name)
	ct, err := r.DB.Exec(ctx, `UPDATE categories SET name=$2, description=$3, image=$4 WHERE id=$1`,
		c.ID, c.Name, c.Description, c.Image)
	if err != nil {
		return Category{}, err
	}
	if ct.RowsAffected() == 0 {
		return Category{}, apperr.NotFound("category")
	}
	return c, nil
}

func (r *Repo) DeleteCategory(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("category")
	}
	return nil
}

const medicineCols = `id, name, description, price, stock, category_id, image`

func scanMedicine(row pgx.Row) (Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.Price, &m.Stock, &m.CategoryID, &m.Image)
	return m, err
}

func (r *Repo) ListMedicines(ctx context.Context, f MedicineFilter) ([]Medicine, error) {
	var (
		where []string
		args  []any
	)
	if f.CategoryID != 0 {
		args = append(args, f.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	sql := `SELECT ` + medicineCols + ` FROM medicines`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY name, id`

	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repo) GetMedicine(ctx context.Context, id int64) (Medicine, error) {
	m, err := scanMedicine(r.DB.QueryRow(ctx, `SELECT `+medicineCols+` FROM medicines WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Medicine{}, apperr.NotFound("medicine")
	}
	return m, err
}

func (r *Repo) CreateMedicine(ctx context.Context, m Medicine) (Medicine, error) {
	if err := ValidateMedicine(m); err != nil {
		return Medicine{}, err
	}
	m.Name = strings.TrimSpace(m.Name)
	err := r.DB.QueryRow(ctx, `
		INSERT INTO medicines(name, description, price, stock, category_id, image)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		m.Name, m.Description, m.Price, m.Stock, m.CategoryID, m.Image,
	).Scan(&m.ID)
	if err != nil {
		return Medicine{}, mapFK(err)
	}
	return m, nil
}

func (r *Repo) UpdateMedicine(ctx context.Context, m Medicine) (Medicine, error) {
	if err := ValidateMedicine(m); err != nil {
		return Medicine{}, err
	}
	m.Name = strings.TrimSpace(m.Name)
	ct, err := r.DB.Exec(ctx, `
		UPDATE medicines
		SET name=$2, description=$3, price=$4, stock=$5, category_id=$6, image=$7
		WHERE id=$1`,
		m.ID, m.Name, m.Description, m.Price, m.Stock, m.CategoryID, m.Image,
	)
	if err != nil {
		return Medicine{}, mapFK(err)
	}
	if ct.RowsAffected() == 0 {
		return Medicine{}, apperr.NotFound("medicine")
	}
	return m, nil
}

func (r *Repo) DeleteMedicine(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM medicines WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("medicine")
	}
	return nil
}

// mapFK turns a category_id foreign key violation into NotFound.
func mapFK(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == fkViolation {
		return apperr.NotFound("category")
	}
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

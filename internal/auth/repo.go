package auth

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-pharmacy-store/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var _ UserStore = (*Repo)(nil)

const uniqueViolation = "23505"

func (r *Repo) CreateUser(ctx context.Context, u User) (User, error) {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO users(username, email, password_hash, is_staff)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		u.Username, u.Email, u.PasswordHash, u.IsStaff,
	).Scan(&u.ID, &u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return User{}, ErrUsernameTaken
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (r *Repo) UserByUsername(ctx context.Context, username string) (User, error) {
	return r.one(ctx, `WHERE username=$1`, username)
}

func (r *Repo) UserByID(ctx context.Context, id int64) (User, error) {
	return r.one(ctx, `WHERE id=$1`, id)
}

func (r *Repo) one(ctx context.Context, where string, arg any) (User, error) {
	var u User
	err := r.DB.QueryRow(ctx, `
		SELECT id, username, email, password_hash, is_staff, created_at
		FROM users `+where, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsStaff, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, apperr.NotFound("user")
	}
	return u, err
}

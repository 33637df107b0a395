// Package auth signs users up and in, keeps their sessions in Redis and guards routes.
package auth

import (
	"context"
	"time"

	"github.com/ariefcatur/go-pharmacy-store/internal/apperr"
)

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsStaff      bool
	CreatedAt    time.Time
}

// ErrInvalidCredentials never says which half of the pair was wrong.
var ErrInvalidCredentials = apperr.Unauthorized("username or password is incorrect")

// ErrUsernameTaken is returned by CreateUser for a duplicate username.
var ErrUsernameTaken = apperr.Conflict("username already taken")

type UserStore interface {
	// CreateUser fills in ID and CreatedAt.
	CreateUser(ctx context.Context, u User) (User, error)
	UserByUsername(ctx context.Context, username string) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ariefcatur/go-pharmacy-store/internal/apperr"
)

type ctxKey int

const (
	userKey ctxKey = iota
	sessionIDKey
)

func WithUser(ctx context.Context, u User, sid string) context.Context {
	ctx = context.WithValue(ctx, userKey, u)
	return context.WithValue(ctx, sessionIDKey, sid)
}

func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

// SessionIDFrom is the key the user's cart lives under.
func SessionIDFrom(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDKey).(string)
	return sid
}

// Authenticate loads the user behind the sid cookie, if any. It never rejects a
// request; RequireUser and RequireStaff do that.
func Authenticate(sessions *SessionStore, users UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(CookieName)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			id, err := sessions.UserID(ctx, c.Value)
			if err != nil {
				if !errors.Is(err, apperr.ErrUnauthorized) {
					log.Printf("auth: session lookup: %v", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			u, err := users.UserByID(ctx, id)
			if err != nil {
				if !errors.Is(err, apperr.ErrNotFound) {
					log.Printf("auth: load user %d: %v", id, err)
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(ctx, u, c.Value)))
		})
	}
}

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFrom(r.Context()); !ok {
			deny(w, http.StatusUnauthorized, "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFrom(r.Context())
		if !ok {
			deny(w, http.StatusUnauthorized, "login required")
			return
		}
		if !u.IsStaff {
			deny(w, http.StatusForbidden, "staff only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

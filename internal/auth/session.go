package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/go-pharmacy-store/internal/apperr"
	"github.com/ariefcatur/go-pharmacy-store/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const CookieName = "sid"

// SessionStore maps session:{key} to a user id. Each lookup slides the TTL forward.
type SessionStore struct {
	Redis *redis.Client
	TTL   time.Duration
}

func sessionKey(sid string) string { return fmt.Sprintf(redisx.KeySession, sid) }

func (s *SessionStore) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return redisx.TTLSession
}

func (s *SessionStore) Create(ctx context.Context, userID int64) (string, error) {
	sid := uuid.NewString()
	if err := s.Redis.Set(ctx, sessionKey(sid), userID, s.ttl()).Err(); err != nil {
		return "", err
	}
	return sid, nil
}

// UserID resolves a session key; unknown or expired keys give ErrUnauthorized.
func (s *SessionStore) UserID(ctx context.Context, sid string) (int64, error) {
	if sid == "" {
		return 0, apperr.ErrUnauthorized
	}
	v, err := s.Redis.GetEx(ctx, sessionKey(sid), s.ttl()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, apperr.ErrUnauthorized
	}
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("session %s: %w", sid, apperr.ErrUnauthorized)
	}
	return id, nil
}

func (s *SessionStore) Destroy(ctx context.Context, sid string) error {
	return s.Redis.Del(ctx, sessionKey(sid)).Err()
}

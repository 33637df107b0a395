package cart

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/go-pharmacy-store/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// Store is the session provider side of the cart. It is the only thing that mutates a stored cart.
type Store interface {
	Get(ctx context.Context, sessionKey string) (Cart, error)
	Put(ctx context.Context, sessionKey string, c Cart) error
	Clear(ctx context.Context, sessionKey string) error
}

// RedisStore keeps each cart as a hash cart:{session_key}, refreshed to TTL on every write.
type RedisStore struct {
	Redis *redis.Client
	TTL   time.Duration
}

var _ Store = (*RedisStore)(nil)

func key(sessionKey string) string { return fmt.Sprintf(redisx.KeyCart, sessionKey) }

func (s *RedisStore) Get(ctx context.Context, sessionKey string) (Cart, error) {
	fields, err := s.Redis.HGetAll(ctx, key(sessionKey)).Result()
	if err != nil {
		return nil, err
	}
	c := make(Cart, len(fields))
	for f, v := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(v)
		if err != nil || qty < 1 {
			continue
		}
		c[id] = qty
	}
	return c, nil
}

// Put replaces the stored cart with c; an empty cart deletes the key.
func (s *RedisStore) Put(ctx context.Context, sessionKey string, c Cart) error {
	k := key(sessionKey)
	if c.Empty() {
		return s.Redis.Del(ctx, k).Err()
	}
	values := make(map[string]any, len(c))
	for id, qty := range c {
		values[strconv.FormatInt(id, 10)] = qty
	}
	_, err := s.Redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.HSet(ctx, k, values)
		p.Expire(ctx, k, s.ttl())
		return nil
	})
	return err
}

func (s *RedisStore) Clear(ctx context.Context, sessionKey string) error {
	return s.Redis.Del(ctx, key(sessionKey)).Err()
}

func (s *RedisStore) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return redisx.TTLSession
}

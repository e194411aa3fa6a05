package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/memscribe/memscribe/pkg/core"
)

// RedisStore caches sessions in Redis under a session:<token_hash> key
// with SETEX, so expiry is enforced by Redis itself and no separate
// sweep is needed (Sweep is a no-op here, kept to satisfy the
// SessionStore interface).
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func redisKey(tokenHash string) string {
	return fmt.Sprintf("session:%s", tokenHash)
}

func (r *RedisStore) Get(ctx context.Context, tokenHash string) (*core.Session, error) {
	data, err := r.rdb.Get(ctx, redisKey(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get: %w", err)
	}

	var s core.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: decode cached session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *core.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode session: %w", err)
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, redisKey(s.TokenHash), data, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: redis put: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, tokenHash string) error {
	return r.rdb.Del(ctx, redisKey(tokenHash)).Err()
}

// Sweep is a no-op: Redis's own key expiry already evicts stale
// sessions, so there is nothing for a periodic task to clean up.
func (r *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

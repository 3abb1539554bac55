package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "idem:"

// RedisStore shares reservations across instances. SETNX makes the first
// reservation win; expiry is left to Redis.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(client redis.Cmdable) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: redis client is required")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, pendingTTL time.Duration) (State, Response, error) {
	pending, err := json.Marshal(record{Fingerprint: fingerprint})
	if err != nil {
		return StatePending, Response{}, err
	}
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+key, pending, pendingTTL).Result()
	if err != nil {
		return StatePending, Response{}, fmt.Errorf("idempotency: reserve: %w", err)
	}
	if ok {
		return StateNew, Response{}, nil
	}

	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		// Expired between SETNX and GET; report busy and let the client retry.
		return StatePending, Response{}, nil
	case err != nil:
		return StatePending, Response{}, fmt.Errorf("idempotency: load: %w", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return StatePending, Response{}, fmt.Errorf("idempotency: decode: %w", err)
	}
	return classify(rec, fingerprint)
}

func (s *RedisStore) Complete(ctx context.Context, key, fingerprint string, resp Response, ttl time.Duration) error {
	payload, err := json.Marshal(record{Fingerprint: fingerprint, Completed: true, Response: resp})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: complete: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

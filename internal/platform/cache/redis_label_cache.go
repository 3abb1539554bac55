package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Heang0/Digital-Label-sub001/internal/platform/config"
	"github.com/Heang0/Digital-Label-sub001/internal/services"
)

const (
	keyPrefix  = "label:"
	defaultTTL = time.Minute
)

// RedisLabelCache keeps resolved labels under label:{segment}. A label can be
// cached under each of its three identifiers, so invalidation deletes all of
// them.
type RedisLabelCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ services.LabelCache = (*RedisLabelCache)(nil)

// NewRedisClient dials the configured Redis instance.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedisLabelCache wraps client. A non-positive ttl falls back to one minute.
func NewRedisLabelCache(client redis.Cmdable, ttl time.Duration) (*RedisLabelCache, error) {
	if client == nil {
		return nil, errors.New("label cache: redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLabelCache{client: client, ttl: ttl}, nil
}

// Ping reports whether Redis answers.
func (c *RedisLabelCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisLabelCache) Get(ctx context.Context, segment string) (services.Label, bool, error) {
	key, ok := cacheKey(segment)
	if !ok {
		return services.Label{}, false, nil
	}
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return services.Label{}, false, nil
	}
	if err != nil {
		return services.Label{}, false, fmt.Errorf("label cache get: %w", err)
	}
	var label services.Label
	if err := json.Unmarshal(val, &label); err != nil {
		return services.Label{}, false, fmt.Errorf("label cache decode %s: %w", key, err)
	}
	return label, true, nil
}

func (c *RedisLabelCache) Set(ctx context.Context, segment string, label services.Label) error {
	key, ok := cacheKey(segment)
	if !ok {
		return nil
	}
	payload, err := json.Marshal(label)
	if err != nil {
		return fmt.Errorf("label cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("label cache set: %w", err)
	}
	return nil
}

func (c *RedisLabelCache) Invalidate(ctx context.Context, label services.Label) error {
	seen := map[string]struct{}{}
	var keys []string
	for _, segment := range []string{label.ID, label.LabelID, label.LabelCode} {
		key, ok := cacheKey(segment)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("label cache invalidate: %w", err)
	}
	return nil
}

func cacheKey(segment string) (string, bool) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "", false
	}
	return keyPrefix + segment, true
}

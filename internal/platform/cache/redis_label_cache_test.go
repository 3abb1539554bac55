package cache

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Heang0/Digital-Label-sub001/internal/services"
)

// stubRedis records the handful of commands the cache issues.
type stubRedis struct {
	redis.Cmdable
	values  map[string]string
	ttls    map[string]time.Duration
	deleted []string
	err     error
}

func newStubRedis() *stubRedis {
	return &stubRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *stubRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if s.err != nil {
		return redis.NewStringResult("", s.err)
	}
	val, ok := s.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (s *stubRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	if s.err != nil {
		return redis.NewStatusResult("", s.err)
	}
	s.values[key] = string(value.([]byte))
	s.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (s *stubRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if s.err != nil {
		return redis.NewIntResult(0, s.err)
	}
	s.deleted = append(s.deleted, keys...)
	for _, key := range keys {
		delete(s.values, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedisLabelCacheRoundTrip(t *testing.T) {
	client := newStubRedis()
	cache, err := NewRedisLabelCache(client, 30*time.Second)
	if err != nil {
		t.Fatalf("NewRedisLabelCache: %v", err)
	}
	ctx := context.Background()

	if _, ok, err := cache.Get(ctx, "SHELF-1"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	label := services.Label{ID: "L1", LabelID: "SHELF-1", LabelCode: "LBL-0001", FinalPrice: 7.5}
	if err := cache.Set(ctx, "SHELF-1", label); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if client.ttls["label:SHELF-1"] != 30*time.Second {
		t.Fatalf("expected ttl to be applied, got %v", client.ttls)
	}

	got, ok, err := cache.Get(ctx, "SHELF-1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.ID != "L1" || got.FinalPrice != 7.5 {
		t.Fatalf("unexpected label %+v", got)
	}
}

func TestRedisLabelCacheInvalidateDeletesEveryIdentifier(t *testing.T) {
	client := newStubRedis()
	cache, _ := NewRedisLabelCache(client, 0)

	err := cache.Invalidate(context.Background(), services.Label{ID: "L1", LabelID: "L1", LabelCode: "LBL-0001"})
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if want := []string{"label:L1", "label:LBL-0001"}; !reflect.DeepEqual(client.deleted, want) {
		t.Fatalf("expected %v deleted, got %v", want, client.deleted)
	}
}

func TestRedisLabelCacheSurfacesErrors(t *testing.T) {
	client := newStubRedis()
	client.err = errors.New("connection refused")
	cache, _ := NewRedisLabelCache(client, time.Minute)

	if _, _, err := cache.Get(context.Background(), "L1"); err == nil {
		t.Fatalf("expected get error")
	}
	if err := cache.Set(context.Background(), "L1", services.Label{}); err == nil {
		t.Fatalf("expected set error")
	}
}

func TestNewRedisLabelCacheRequiresClient(t *testing.T) {
	if _, err := NewRedisLabelCache(nil, time.Minute); err == nil {
		t.Fatalf("expected error without client")
	}
}

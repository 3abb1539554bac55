package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type stubRedis struct {
	redis.Cmdable
	values map[string][]byte
	ttls   map[string]time.Duration
	err    error
}

func newStubRedis() *stubRedis {
	return &stubRedis{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *stubRedis) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	if s.err != nil {
		return redis.NewBoolResult(false, s.err)
	}
	if _, ok := s.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	s.values[key] = value.([]byte)
	s.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (s *stubRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	s.values[key] = value.([]byte)
	s.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (s *stubRedis) Get(_ context.Context, key string) *redis.StringCmd {
	val, ok := s.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(val), nil)
}

func (s *stubRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(s.values, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedisStoreLifecycle(t *testing.T) {
	client := newStubRedis()
	store, err := NewRedisStore(client)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	ctx := context.Background()

	state, _, err := store.Reserve(ctx, "k", "fp", time.Minute)
	if err != nil || state != StateNew {
		t.Fatalf("expected new reservation, got %v %v", state, err)
	}
	if client.ttls["idem:k"] != time.Minute {
		t.Fatalf("expected pending ttl on reservation, got %s", client.ttls["idem:k"])
	}

	if state, _, err := store.Reserve(ctx, "k", "fp", time.Minute); err != nil || state != StatePending {
		t.Fatalf("expected pending, got %v %v", state, err)
	}
	if _, _, err := store.Reserve(ctx, "k", "other", time.Minute); !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected fingerprint mismatch, got %v", err)
	}

	resp := Response{Status: 201, Body: []byte(`{"ok":true}`)}
	if err := store.Complete(ctx, "k", "fp", resp, time.Hour); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	state, got, err := store.Reserve(ctx, "k", "fp", time.Minute)
	if err != nil || state != StateCompleted {
		t.Fatalf("expected completed, got %v %v", state, err)
	}
	if got.Status != 201 || string(got.Body) != `{"ok":true}` {
		t.Fatalf("unexpected replay %+v", got)
	}

	if err := store.Release(ctx, "k"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := client.values["idem:k"]; ok {
		t.Fatalf("expected key to be deleted")
	}
}

func TestRedisStoreWrapsErrors(t *testing.T) {
	client := newStubRedis()
	client.err = errors.New("connection refused")
	store, _ := NewRedisStore(client)
	if _, _, err := store.Reserve(context.Background(), "k", "fp", time.Minute); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewRedisStoreRequiresClient(t *testing.T) {
	if _, err := NewRedisStore(nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

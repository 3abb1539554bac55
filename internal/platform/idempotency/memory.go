package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps reservations in process. It suits the memory store driver
// and single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]record
	now     func() time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]record), now: time.Now}
}

func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, pendingTTL time.Duration) (State, Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rec, ok := s.records[key]; ok && now.Before(rec.ExpiresAt) {
		return classify(rec, fingerprint)
	}
	s.records[key] = record{Fingerprint: fingerprint, ExpiresAt: now.Add(pendingTTL)}
	s.pruneLocked(now)
	return StateNew, Response{}, nil
}

func (s *MemoryStore) Complete(_ context.Context, key, fingerprint string, resp Response, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = record{Fingerprint: fingerprint, Completed: true, Response: resp, ExpiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	for key, rec := range s.records {
		if !now.Before(rec.ExpiresAt) {
			delete(s.records, key)
		}
	}
}

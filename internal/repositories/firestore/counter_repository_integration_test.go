//go:build integration

package firestore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	pfirestore "github.com/Heang0/Digital-Label-sub001/internal/platform/firestore"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/firestore/emulatortest"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

func TestCounterRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	provider := pfirestore.NewProvider(emulatortest.Start(t))
	t.Cleanup(func() { _ = provider.Close(context.Background()) })

	repo, err := NewCounterRepository(provider)
	if err != nil {
		t.Fatalf("new counter repository: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	peek, err := repo.Peek(ctx, "company-1", domain.CounterProductNumber)
	if err != nil || peek != 1 {
		t.Fatalf("expected peek 1 on fresh counter, got %d %v", peek, err)
	}

	const workers = 8
	results := make([]int64, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(idx int) {
			defer wg.Done()
			value, err := repo.Next(ctx, "company-1", domain.CounterProductNumber)
			if err != nil {
				t.Errorf("next(%d): %v", idx, err)
				return
			}
			results[idx] = value
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, val := range results {
		if val != int64(i+1) {
			t.Fatalf("expected contiguous sequence, got %v", results)
		}
	}

	peek, err = repo.Peek(ctx, "company-1", domain.CounterProductNumber)
	if err != nil || peek != workers+1 {
		t.Fatalf("expected peek %d, got %d %v", workers+1, peek, err)
	}

	other, err := repo.Next(ctx, "company-1", domain.CounterBranchNumber)
	if err != nil || other != 1 {
		t.Fatalf("keys must be independent, got %d %v", other, err)
	}

	_, err = repo.Next(ctx, "company-1", domain.CounterKey("nextOrderNumber"))
	var counterErr *repositories.CounterError
	if !errors.As(err, &counterErr) || !errors.Is(err, repositories.ErrCounterInvalid) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories/memory"
)

var testNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func vendorUser() *User {
	return &User{ID: "u-vendor", CompanyID: "c1", Name: "Vera", Email: "vera@example.com", Role: domain.RoleVendor}
}

func staffUser(branchID string, perms domain.Permissions) *User {
	return &User{ID: "u-staff", CompanyID: "c1", BranchID: branchID, Name: "Sam", Email: "sam@example.com", Role: domain.RoleStaff, Permissions: perms}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []PriceChangeEvent
	err    error
}

func (p *recordingPublisher) PublishPriceChange(_ context.Context, event PriceChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type recordingCache struct {
	mu          sync.Mutex
	entries     map[string]Label
	invalidated []string
	getErr      error
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: map[string]Label{}}
}

func (c *recordingCache) Get(_ context.Context, segment string) (Label, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return Label{}, false, c.getErr
	}
	label, ok := c.entries[segment]
	return label, ok, nil
}

func (c *recordingCache) Set(_ context.Context, segment string, label Label) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[segment] = label
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, label Label) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, label.ID)
	delete(c.entries, label.ID)
	delete(c.entries, label.LabelID)
	delete(c.entries, label.LabelCode)
	return nil
}

type recordingLogger struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingLogger) log(_ context.Context, event string, _ map[string]any) {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
}

type countingPriceObserver struct {
	mu      sync.Mutex
	reasons []string
}

func (o *countingPriceObserver) ObservePriceChange(reason string) {
	o.mu.Lock()
	o.reasons = append(o.reasons, reason)
	o.mu.Unlock()
}

// seedStore returns a memory registry holding one branch, one product and one
// label bound to it at $10.
func seedStore() *memory.Registry {
	reg := memory.NewRegistry()
	ctx := context.Background()
	_ = reg.Branches().Save(ctx, domain.Branch{ID: "B1", CompanyID: "c1", Name: "Central", Code: "BR-0001", Status: domain.BranchStatusActive})
	_ = reg.Branches().Save(ctx, domain.Branch{ID: "B2", CompanyID: "c1", Name: "North", Code: "BR-0002", Status: domain.BranchStatusActive})
	_ = reg.Products().Save(ctx, domain.Product{ID: "P1", CompanyID: "c1", Name: "Milk", SKU: "SKU-000001", Category: "Dairy", BasePrice: 10})
	_ = reg.Labels().Insert(ctx, domain.Label{
		ID: "L1", CompanyID: "c1", BranchID: "B1", ProductID: "P1", ProductName: "Milk",
		LabelID: "SHELF-1", LabelCode: "LBL-0100", BasePrice: 10, CurrentPrice: 10, FinalPrice: 10,
		Status: domain.LabelStatusActive,
	})
	return reg
}

func ptr[T any](v T) *T { return &v }

type stubCounterService struct {
	nextFn func(context.Context, string, domain.CounterKey) (int64, error)
	peekFn func(context.Context, string, domain.CounterKey) (int64, error)
}

func (s stubCounterService) NextSequence(ctx context.Context, companyID string, key domain.CounterKey) (int64, error) {
	return s.nextFn(ctx, companyID, key)
}

func (s stubCounterService) Peek(ctx context.Context, companyID string, key domain.CounterKey) (int64, error) {
	if s.peekFn == nil {
		return 1, nil
	}
	return s.peekFn(ctx, companyID, key)
}

func unavailableCounter() CounterService {
	return stubCounterService{nextFn: func(context.Context, string, domain.CounterKey) (int64, error) {
		return 0, ErrCounterUnavailable
	}}
}

func memoryCounter(t interface{ Fatalf(string, ...any) }, store *memory.Registry) CounterService {
	svc, err := NewCounterService(CounterServiceDeps{Repository: store.Counters()})
	if err != nil {
		t.Fatalf("new counter service: %v", err)
	}
	return svc
}

func upsertAt(branchID, productID string, price float64) repositories.BranchProductUpsert {
	return repositories.BranchProductUpsert{BranchID: branchID, CompanyID: "c1", ProductID: productID, Price: price, At: testNow}
}

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories/memory"
)

func newTestLabelService(t *testing.T, store *memory.Registry, counters CounterService, events PriceEventPublisher) LabelService {
	t.Helper()
	resolver, err := NewLabelResolver(LabelResolverDeps{Labels: store.Labels()})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	svc, err := NewLabelService(LabelServiceDeps{
		Labels:         store.Labels(),
		Branches:       store.Branches(),
		Products:       store.Products(),
		BranchProducts: store.BranchProducts(),
		Counters:       counters,
		Resolver:       resolver,
		Events:         events,
		Clock:          func() time.Time { return testNow },
		IDGenerator:    sequentialIDs("label"),
	})
	if err != nil {
		t.Fatalf("new label service: %v", err)
	}
	return svc
}

func TestLabelServiceCreateLabelMintsCode(t *testing.T) {
	store := seedStore()
	svc := newTestLabelService(t, store, memoryCounter(t, store), nil)
	ctx := context.Background()

	first, err := svc.CreateLabel(ctx, CreateLabelCommand{Actor: vendorUser(), BranchID: "B1", Location: " Aisle 3 "})
	if err != nil {
		t.Fatalf("create label: %v", err)
	}
	if first.LabelCode != "LBL-0001" || first.LabelID != "LBL-0001" {
		t.Fatalf("unexpected codes: %+v", first)
	}
	if first.Battery != 100 || first.Status != domain.LabelStatusInactive || first.Location != "Aisle 3" {
		t.Fatalf("unexpected defaults: %+v", first)
	}

	second, err := svc.CreateLabel(ctx, CreateLabelCommand{Actor: vendorUser(), BranchID: "B1", LabelID: "SHELF-9"})
	if err != nil {
		t.Fatalf("create second label: %v", err)
	}
	if second.LabelCode != "LBL-0002" || second.LabelID != "SHELF-9" {
		t.Fatalf("unexpected second label: %+v", second)
	}
}

func TestLabelServiceCreateLabelCounterFailureCreatesNothing(t *testing.T) {
	store := seedStore()
	svc := newTestLabelService(t, store, unavailableCounter(), nil)
	ctx := context.Background()

	before, _ := store.Labels().List(ctx, "c1", "")
	if _, err := svc.CreateLabel(ctx, CreateLabelCommand{Actor: vendorUser(), BranchID: "B1"}); !errors.Is(err, ErrCounterUnavailable) {
		t.Fatalf("expected counter unavailable, got %v", err)
	}
	after, _ := store.Labels().List(ctx, "c1", "")
	if len(after) != len(before) {
		t.Fatalf("no label may be created, had %d now %d", len(before), len(after))
	}
}

func TestLabelServiceCreateLabelPermissions(t *testing.T) {
	store := seedStore()
	svc := newTestLabelService(t, store, memoryCounter(t, store), nil)
	ctx := context.Background()

	noCreate := staffUser("B1", domain.Permissions{CanChangePrices: true})
	if _, err := svc.CreateLabel(ctx, CreateLabelCommand{Actor: noCreate, BranchID: "B1"}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected denial without label grant, got %v", err)
	}
	granted := staffUser("B1", domain.Permissions{CanChangePrices: true, CanCreateLabels: true})
	if _, err := svc.CreateLabel(ctx, CreateLabelCommand{Actor: granted, BranchID: "B2"}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected denial for another branch, got %v", err)
	}
	if _, err := svc.CreateLabel(ctx, CreateLabelCommand{Actor: granted, BranchID: "B1"}); err != nil {
		t.Fatalf("expected staff with grant to create, got %v", err)
	}
	if _, err := svc.CreateLabel(ctx, CreateLabelCommand{Actor: vendorUser(), BranchID: "missing"}); !errors.Is(err, ErrBranchNotFound) {
		t.Fatalf("expected branch not found, got %v", err)
	}
}

func TestLabelServiceAssignUsesBranchPrice(t *testing.T) {
	store := seedStore()
	events := &recordingPublisher{}
	svc := newTestLabelService(t, store, memoryCounter(t, store), events)
	ctx := context.Background()

	created, err := svc.CreateLabel(ctx, CreateLabelCommand{Actor: vendorUser(), BranchID: "B1"})
	if err != nil {
		t.Fatalf("create label: %v", err)
	}

	label, err := svc.AssignLabel(ctx, AssignLabelCommand{Actor: vendorUser(), LabelID: created.ID, ProductID: "P1"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if label.BasePrice != 10 || label.ProductName != "Milk" || label.ProductSKU != "SKU-000001" {
		t.Fatalf("expected catalog price fallback, got %+v", label)
	}

	if _, err := store.BranchProducts().UpsertPrice(ctx, upsertAt("B1", "P1", 8.25)); err != nil {
		t.Fatalf("seed branch price: %v", err)
	}
	label, err = svc.AssignLabel(ctx, AssignLabelCommand{Actor: vendorUser(), LabelID: created.ID, ProductID: "P1"})
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if label.BasePrice != 8.25 || label.FinalPrice != 8.25 {
		t.Fatalf("expected branch price, got %+v", label)
	}
	if len(events.events) != 2 || events.events[0].Reason != priceReasonAssigned {
		t.Fatalf("expected assignment events, got %+v", events.events)
	}
}

func TestLabelServiceCreateLabelRejectsTakenLabelID(t *testing.T) {
	store := seedStore()
	svc := newTestLabelService(t, store, memoryCounter(t, store), nil)
	ctx := context.Background()

	if _, err := svc.CreateLabel(ctx, CreateLabelCommand{Actor: vendorUser(), BranchID: "B1", LabelID: " SHELF-1 "}); !errors.Is(err, ErrLabelConflict) {
		t.Fatalf("expected conflict for taken label id, got %v", err)
	}
	existing, err := store.Labels().FindByLabelID(ctx, "SHELF-1")
	if err != nil || existing.ID != "L1" {
		t.Fatalf("existing label must stay in place, got %+v (%v)", existing, err)
	}
	created, err := svc.CreateLabel(ctx, CreateLabelCommand{Actor: vendorUser(), BranchID: "B1"})
	if err != nil {
		t.Fatalf("create label: %v", err)
	}
	if created.LabelCode != "LBL-0001" {
		t.Fatalf("rejected create must not consume a code, got %s", created.LabelCode)
	}
}

func TestLabelServiceAssignHonoursPriceChangeLimit(t *testing.T) {
	store := seedStore()
	svc := newTestLabelService(t, store, memoryCounter(t, store), nil)
	ctx := context.Background()

	if _, err := store.BranchProducts().UpsertPrice(ctx, upsertAt("B1", "P1", 15)); err != nil {
		t.Fatalf("seed branch price: %v", err)
	}
	limited := staffUser("B1", domain.Permissions{CanChangePrices: true, MaxPriceChange: 10})
	if _, err := svc.AssignLabel(ctx, AssignLabelCommand{Actor: limited, LabelID: "L1", ProductID: "P1"}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected denial beyond price change limit, got %v", err)
	}
	if got, _ := store.Labels().Get(ctx, "L1"); got.FinalPrice != 10 {
		t.Fatalf("label price must not change, got %+v", got)
	}

	if _, err := store.BranchProducts().UpsertPrice(ctx, upsertAt("B1", "P1", 10.5)); err != nil {
		t.Fatalf("seed branch price: %v", err)
	}
	label, err := svc.AssignLabel(ctx, AssignLabelCommand{Actor: limited, LabelID: "L1", ProductID: "P1"})
	if err != nil {
		t.Fatalf("assign within limit: %v", err)
	}
	if label.FinalPrice != 10.5 {
		t.Fatalf("expected branch price within limit, got %+v", label)
	}
}

func TestLabelServiceListScopesStaffToBranch(t *testing.T) {
	store := seedStore()
	ctx := context.Background()
	_ = store.Labels().Insert(ctx, domain.Label{ID: "L2", CompanyID: "c1", BranchID: "B2", LabelID: "SHELF-2"})
	svc := newTestLabelService(t, store, memoryCounter(t, store), nil)

	all, err := svc.ListLabels(ctx, vendorUser(), "")
	if err != nil || len(all) != 2 {
		t.Fatalf("vendor should see both labels, got %d (%v)", len(all), err)
	}
	own, err := svc.ListLabels(ctx, staffUser("B2", domain.Permissions{}), "B1")
	if err != nil {
		t.Fatalf("staff list: %v", err)
	}
	if len(own) != 1 || own[0].ID != "L2" {
		t.Fatalf("staff must only see own branch, got %+v", own)
	}
}

func TestLabelServiceGetLabelChecksTenant(t *testing.T) {
	store := seedStore()
	svc := newTestLabelService(t, store, memoryCounter(t, store), nil)
	ctx := context.Background()

	if label, err := svc.GetLabel(ctx, vendorUser(), "LBL-0100"); err != nil || label.ID != "L1" {
		t.Fatalf("expected label by code, got %+v (%v)", label, err)
	}
	outsider := &User{ID: "x", CompanyID: "c2", Role: domain.RoleVendor}
	if _, err := svc.GetLabel(ctx, outsider, "L1"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected denial across tenants, got %v", err)
	}
}

func TestLabelServiceWatchStreamsUpdates(t *testing.T) {
	store := seedStore()
	svc := newTestLabelService(t, store, memoryCounter(t, store), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var sets [][]Label
	updated := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- svc.WatchLabels(ctx, vendorUser(), "B1", func(labels []Label) {
			mu.Lock()
			sets = append(sets, labels)
			mu.Unlock()
			updated <- struct{}{}
		})
	}()

	waitFor(t, updated)
	if _, err := svc.AssignLabel(context.Background(), AssignLabelCommand{Actor: vendorUser(), LabelID: "L1", ProductID: "P1"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	waitFor(t, updated)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch returned %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	last := sets[len(sets)-1]
	if len(last) != 1 || last[0].Status != domain.LabelStatusSyncing {
		t.Fatalf("expected updated label in last set, got %+v", last)
	}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch update")
	}
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories/memory"
)

type pricingFixture struct {
	store  *memory.Registry
	clock  *manualClock
	cache  *recordingCache
	events *recordingPublisher
	logger *recordingLogger
	prices *countingPriceObserver
	engine PricingEngine
}

func newPricingFixture(t *testing.T) *pricingFixture {
	t.Helper()
	f := &pricingFixture{
		store:  seedStore(),
		clock:  &manualClock{now: testNow},
		cache:  newRecordingCache(),
		events: &recordingPublisher{},
		logger: &recordingLogger{},
		prices: &countingPriceObserver{},
	}
	engine, err := NewPricingEngine(PricingEngineDeps{
		Labels:         f.store.Labels(),
		Products:       f.store.Products(),
		BranchProducts: f.store.BranchProducts(),
		Cache:          f.cache,
		Events:         f.events,
		Observer:       f.prices,
		Clock:          f.clock.Now,
		Logger:         f.logger.log,
	})
	if err != nil {
		t.Fatalf("new pricing engine: %v", err)
	}
	f.engine = engine
	return f
}

func (f *pricingFixture) label(t *testing.T) Label {
	t.Helper()
	label, err := f.store.Labels().Get(context.Background(), "L1")
	if err != nil {
		t.Fatalf("get label: %v", err)
	}
	return label
}

func TestPricingEngineApplyDiscountExpiresAfterDuration(t *testing.T) {
	f := newPricingFixture(t)
	ctx := context.Background()

	label, err := f.engine.ApplyDiscount(ctx, ApplyDiscountCommand{
		Actor: vendorUser(), LabelID: "L1", BasePrice: 10, Percent: 25, DurationHours: ptr(2.0),
	})
	if err != nil {
		t.Fatalf("apply discount: %v", err)
	}
	if label.FinalPrice != 7.5 || label.CurrentPrice != 7.5 {
		t.Fatalf("expected 7.50, got final=%v current=%v", label.FinalPrice, label.CurrentPrice)
	}
	if label.DiscountPercent == nil || *label.DiscountPercent != 25 {
		t.Fatalf("expected discount percent 25, got %v", label.DiscountPercent)
	}
	wantEnd := testNow.Add(2 * time.Hour)
	if label.DiscountEndAt == nil || !label.DiscountEndAt.Equal(wantEnd) {
		t.Fatalf("expected end %v, got %v", wantEnd, label.DiscountEndAt)
	}
	if label.Status != domain.LabelStatusSyncing {
		t.Fatalf("expected syncing status, got %s", label.Status)
	}

	stored := f.label(t)
	if got := stored.EffectivePrice(f.clock.Now()); got != 7.5 {
		t.Fatalf("expected effective 7.50 during window, got %v", got)
	}
	f.clock.Advance(2 * time.Hour)
	if got := stored.EffectivePrice(f.clock.Now()); got != 10 {
		t.Fatalf("expected effective 10 after expiry, got %v", got)
	}

	if len(f.events.events) != 1 {
		t.Fatalf("expected one price event, got %d", len(f.events.events))
	}
	event := f.events.events[0]
	if event.Reason != priceReasonDiscountApplied || event.FinalPrice != 7.5 || event.LabelDocID != "L1" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if len(f.cache.invalidated) != 1 || f.cache.invalidated[0] != "L1" {
		t.Fatalf("expected cache invalidation for L1, got %v", f.cache.invalidated)
	}
	if len(f.prices.reasons) != 1 || f.prices.reasons[0] != priceReasonDiscountApplied {
		t.Fatalf("expected one observed price change, got %v", f.prices.reasons)
	}
}

func TestPricingEngineZeroPercentClearsDiscount(t *testing.T) {
	f := newPricingFixture(t)
	ctx := context.Background()

	if _, err := f.engine.ApplyDiscount(ctx, ApplyDiscountCommand{Actor: vendorUser(), LabelID: "L1", BasePrice: 10, Percent: 50}); err != nil {
		t.Fatalf("apply discount: %v", err)
	}
	label, err := f.engine.ApplyDiscount(ctx, ApplyDiscountCommand{Actor: vendorUser(), LabelID: "L1", BasePrice: 10, Percent: 0})
	if err != nil {
		t.Fatalf("apply zero discount: %v", err)
	}
	if label.DiscountPercent != nil || label.DiscountPrice != nil || label.DiscountEndAt != nil {
		t.Fatalf("expected discount fields removed, got %+v", label)
	}
	if label.FinalPrice != 10 || label.CurrentPrice != 10 || label.BasePrice != 10 {
		t.Fatalf("expected prices reset to 10, got %+v", label)
	}
	if got := f.events.events[len(f.events.events)-1].Reason; got != priceReasonDiscountCleared {
		t.Fatalf("expected clear event, got %s", got)
	}
}

func TestPricingEngineClearDiscountIsIdempotent(t *testing.T) {
	f := newPricingFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		label, err := f.engine.ClearDiscount(ctx, ClearDiscountCommand{Actor: vendorUser(), LabelID: "L1", BasePrice: 11})
		if err != nil {
			t.Fatalf("clear %d: %v", i, err)
		}
		if label.FinalPrice != 11 || label.DiscountPercent != nil {
			t.Fatalf("clear %d: unexpected label %+v", i, label)
		}
	}
}

func TestPricingEngineApplyDiscountIsIdempotent(t *testing.T) {
	f := newPricingFixture(t)
	ctx := context.Background()
	cmd := ApplyDiscountCommand{Actor: vendorUser(), LabelID: "L1", BasePrice: 20, Percent: 15, DurationHours: ptr(2.0)}

	first, err := f.engine.ApplyDiscount(ctx, cmd)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	second, err := f.engine.ApplyDiscount(ctx, cmd)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	stored := f.label(t)
	for _, got := range []Label{second, stored} {
		if got.BasePrice != first.BasePrice || got.CurrentPrice != first.CurrentPrice || got.FinalPrice != first.FinalPrice {
			t.Fatalf("prices drifted: first %+v, got %+v", first, got)
		}
		if got.DiscountPercent == nil || *got.DiscountPercent != *first.DiscountPercent {
			t.Fatalf("discount percent drifted: %v", got.DiscountPercent)
		}
		if got.DiscountEndAt == nil || !got.DiscountEndAt.Equal(*first.DiscountEndAt) {
			t.Fatalf("discount end drifted: %v", got.DiscountEndAt)
		}
	}
	if first.FinalPrice != 17 {
		t.Fatalf("expected final price 17, got %v", first.FinalPrice)
	}
}

func TestPricingEngineRejectsInvalidInputWithoutWriting(t *testing.T) {
	cases := map[string]ApplyDiscountCommand{
		"percent above range": {LabelID: "L1", BasePrice: 10, Percent: 150},
		"negative percent":    {LabelID: "L1", BasePrice: 10, Percent: -5},
		"zero price":          {LabelID: "L1", BasePrice: 0, Percent: 10},
		"zero duration":       {LabelID: "L1", BasePrice: 10, Percent: 10, DurationHours: ptr(0.0)},
		"blank label":         {LabelID: " ", BasePrice: 10, Percent: 10},
	}
	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			f := newPricingFixture(t)
			before := f.label(t)
			cmd.Actor = vendorUser()
			_, err := f.engine.ApplyDiscount(context.Background(), cmd)
			if !errors.Is(err, ErrPricingInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
			after := f.label(t)
			if after.FinalPrice != before.FinalPrice || after.DiscountPercent != nil {
				t.Fatalf("label must not change, got %+v", after)
			}
			if len(f.events.events) != 0 {
				t.Fatalf("no event expected, got %d", len(f.events.events))
			}
		})
	}
}

func TestPricingEngineUnknownLabel(t *testing.T) {
	f := newPricingFixture(t)
	_, err := f.engine.ApplyDiscount(context.Background(), ApplyDiscountCommand{Actor: vendorUser(), LabelID: "missing", BasePrice: 10, Percent: 10})
	if !errors.Is(err, ErrLabelNotFound) {
		t.Fatalf("expected label not found, got %v", err)
	}
}

func TestPricingEngineEnforcesPolicy(t *testing.T) {
	f := newPricingFixture(t)
	ctx := context.Background()

	otherBranch := staffUser("B2", domain.Permissions{CanChangePrices: true})
	if _, err := f.engine.ApplyDiscount(ctx, ApplyDiscountCommand{Actor: otherBranch, LabelID: "L1", BasePrice: 10, Percent: 10}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected denial for staff of another branch, got %v", err)
	}

	limited := staffUser("B1", domain.Permissions{CanChangePrices: true, MaxPriceChange: 10})
	if _, err := f.engine.ApplyDiscount(ctx, ApplyDiscountCommand{Actor: limited, LabelID: "L1", BasePrice: 10, Percent: 25}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected denial beyond price change limit, got %v", err)
	}
	if label, err := f.engine.ApplyDiscount(ctx, ApplyDiscountCommand{Actor: limited, LabelID: "L1", BasePrice: 10, Percent: 10}); err != nil || label.FinalPrice != 9 {
		t.Fatalf("expected 10%% discount within limit, got %+v (%v)", label, err)
	}

	if err := f.store.Labels().Insert(ctx, domain.Label{
		ID: "L2", CompanyID: "c1", BranchID: "B2", ProductID: "P1", ProductName: "Milk",
		LabelID: "SHELF-2", LabelCode: "LBL-0101", BasePrice: 10, CurrentPrice: 10, FinalPrice: 10,
		Status: domain.LabelStatusActive,
	}); err != nil {
		t.Fatalf("insert label: %v", err)
	}
	sameBranch := staffUser("B1", domain.Permissions{CanChangePrices: true})
	foreign := PropagatePriceCommand{Actor: sameBranch, LabelID: "L2", ProductID: "P1", BranchID: "B1", Name: "Milk", NewBranchPrice: 1}
	if _, err := f.engine.PropagatePriceChange(ctx, foreign); !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected rejection of label from another branch, got %v", err)
	}
	foreign.BranchID = "B2"
	if _, err := f.engine.PropagatePriceChange(ctx, foreign); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected denial when propagating into another branch, got %v", err)
	}
	if got, err := f.store.Labels().Get(ctx, "L2"); err != nil || got.FinalPrice != 10 {
		t.Fatalf("label in other branch must not change, got %+v (%v)", got, err)
	}
	if records, _ := f.store.BranchProducts().ListByBranch(ctx, "B2"); len(records) != 0 {
		t.Fatalf("no branch product expected in other branch, got %+v", records)
	}

	outsider := &User{ID: "u-x", CompanyID: "c2", Role: domain.RoleVendor}
	if _, err := f.engine.ClearDiscount(ctx, ClearDiscountCommand{Actor: outsider, LabelID: "L1", BasePrice: 10}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected denial across tenants, got %v", err)
	}
	if _, err := f.engine.ClearDiscount(ctx, ClearDiscountCommand{LabelID: "L1", BasePrice: 10}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected denial without actor, got %v", err)
	}
}

func TestPricingEnginePropagatePriceChange(t *testing.T) {
	f := newPricingFixture(t)
	ctx := context.Background()

	cmd := PropagatePriceCommand{
		Actor:           vendorUser(),
		LabelID:         "L1",
		ProductID:       "P1",
		BranchID:        "B1",
		Name:            "  Whole Milk ",
		Description:     "1L bottle",
		NewBranchPrice:  12,
		DiscountPercent: ptr(10.0),
		DiscountHours:   ptr(1.5),
	}
	result, err := f.engine.PropagatePriceChange(ctx, cmd)
	if err != nil {
		t.Fatalf("propagate: %v", err)
	}
	if result.Product.Name != "Whole Milk" || result.Product.Description != "1L bottle" {
		t.Fatalf("unexpected product: %+v", result.Product)
	}
	if result.BranchProduct.ID != domain.BranchProductID("B1", "P1") || result.BranchProduct.CurrentPrice != 12 {
		t.Fatalf("unexpected branch product: %+v", result.BranchProduct)
	}
	if result.BranchProduct.Stock != 0 || result.BranchProduct.Status != domain.StockStatusInStock {
		t.Fatalf("new branch product should start empty: %+v", result.BranchProduct)
	}
	label := result.Label
	if label.BasePrice != 12 || label.FinalPrice != 10.8 || label.ProductName != "Whole Milk" {
		t.Fatalf("unexpected label: %+v", label)
	}
	if label.DiscountEndAt == nil || !label.DiscountEndAt.Equal(testNow.Add(90*time.Minute)) {
		t.Fatalf("unexpected discount end: %v", label.DiscountEndAt)
	}

	product, err := f.store.Products().Get(ctx, "P1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.BasePrice != 10 || product.SKU != "SKU-000001" {
		t.Fatalf("propagation must leave base price and sku alone: %+v", product)
	}

	cmd.DiscountPercent = nil
	cmd.NewBranchPrice = 11
	if _, err := f.engine.PropagatePriceChange(ctx, cmd); err != nil {
		t.Fatalf("second propagate: %v", err)
	}
	records, err := f.store.BranchProducts().ListByBranch(ctx, "B1")
	if err != nil {
		t.Fatalf("list branch products: %v", err)
	}
	if len(records) != 1 || records[0].CurrentPrice != 11 {
		t.Fatalf("expected single record at 11, got %+v", records)
	}
	if got := f.label(t); got.DiscountPercent != nil || got.FinalPrice != 11 {
		t.Fatalf("expected discount removed, got %+v", got)
	}
}

func TestPricingEnginePropagateValidation(t *testing.T) {
	f := newPricingFixture(t)
	ctx := context.Background()

	base := PropagatePriceCommand{Actor: vendorUser(), LabelID: "L1", ProductID: "P1", BranchID: "B1", Name: "Milk", NewBranchPrice: 10}

	blank := base
	blank.Name = "   "
	if _, err := f.engine.PropagatePriceChange(ctx, blank); !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected invalid input for blank name, got %v", err)
	}
	negative := base
	negative.NewBranchPrice = -3
	if _, err := f.engine.PropagatePriceChange(ctx, negative); !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected invalid input for negative price, got %v", err)
	}
	missing := base
	missing.ProductID = "nope"
	if _, err := f.engine.PropagatePriceChange(ctx, missing); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
	wrongBranch := base
	wrongBranch.BranchID = "B2"
	if _, err := f.engine.PropagatePriceChange(ctx, wrongBranch); !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected invalid input for branch mismatch, got %v", err)
	}
	if err := f.store.Products().Save(ctx, domain.Product{ID: "P2", CompanyID: "c1", Name: "Bread", SKU: "SKU-000002", BasePrice: 3}); err != nil {
		t.Fatalf("save product: %v", err)
	}
	wrongProduct := base
	wrongProduct.ProductID = "P2"
	if _, err := f.engine.PropagatePriceChange(ctx, wrongProduct); !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected invalid input for product mismatch, got %v", err)
	}
	if records, _ := f.store.BranchProducts().ListByBranch(ctx, "B1"); len(records) != 0 {
		t.Fatalf("no branch product expected after failures, got %+v", records)
	}
}

func TestPricingEngineSideEffectFailuresAreLogged(t *testing.T) {
	f := newPricingFixture(t)
	f.events.err = errors.New("topic unavailable")

	label, err := f.engine.ApplyDiscount(context.Background(), ApplyDiscountCommand{Actor: vendorUser(), LabelID: "L1", BasePrice: 10, Percent: 20})
	if err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
	if label.FinalPrice != 8 {
		t.Fatalf("expected 8, got %v", label.FinalPrice)
	}
	found := false
	for _, event := range f.logger.events {
		if event == "label.price_event_publish_failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected publish failure to be logged, got %v", f.logger.events)
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/policy"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

var (
	// ErrPricingInvalidInput signals a bad price, percent or duration. No write happens.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrLabelNotFound indicates no label matched the identifier.
	ErrLabelNotFound = errors.New("label: not found")
	// ErrProductNotFound indicates the referenced product does not exist.
	ErrProductNotFound = errors.New("product: not found")
)

const (
	priceReasonDiscountApplied = "discount_applied"
	priceReasonDiscountCleared = "discount_cleared"
	priceReasonPropagated      = "price_propagated"
	priceReasonAssigned        = "label_assigned"
)

// PricingEngineDeps bundles collaborators for the pricing engine.
type PricingEngineDeps struct {
	Labels         repositories.LabelRepository
	Products       repositories.ProductRepository
	BranchProducts repositories.BranchProductRepository
	Cache          LabelCache
	Events         PriceEventPublisher
	Observer       PriceChangeObserver
	Clock          func() time.Time
	Logger         EventLogger
}

type pricingEngine struct {
	labels         repositories.LabelRepository
	products       repositories.ProductRepository
	branchProducts repositories.BranchProductRepository
	notifier       labelChangeNotifier
	now            func() time.Time
}

var _ PricingEngine = (*pricingEngine)(nil)

// NewPricingEngine wires the engine. Cache and Events are optional.
func NewPricingEngine(deps PricingEngineDeps) (PricingEngine, error) {
	if deps.Labels == nil {
		return nil, errors.New("pricing engine: label repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("pricing engine: product repository is required")
	}
	if deps.BranchProducts == nil {
		return nil, errors.New("pricing engine: branch product repository is required")
	}
	now := clockOrNow(deps.Clock)
	return &pricingEngine{
		labels:         deps.Labels,
		products:       deps.Products,
		branchProducts: deps.BranchProducts,
		notifier:       labelChangeNotifier{cache: deps.Cache, events: deps.Events, observer: deps.Observer, logger: loggerOrNoop(deps.Logger), now: now},
		now:            now,
	}, nil
}

func (e *pricingEngine) ApplyDiscount(ctx context.Context, cmd ApplyDiscountCommand) (Label, error) {
	if math.IsNaN(cmd.Percent) || cmd.Percent < 0 || cmd.Percent > 100 {
		return Label{}, fmt.Errorf("%w: percent must be between 0 and 100", ErrPricingInvalidInput)
	}
	if cmd.Percent == 0 {
		return e.ClearDiscount(ctx, ClearDiscountCommand{Actor: cmd.Actor, LabelID: cmd.LabelID, BasePrice: cmd.BasePrice})
	}
	if !domain.ValidPrice(cmd.BasePrice) {
		return Label{}, fmt.Errorf("%w: base price must be a positive amount", ErrPricingInvalidInput)
	}
	if err := validateHours(cmd.DurationHours); err != nil {
		return Label{}, err
	}

	label, err := e.loadLabel(ctx, cmd.LabelID)
	if err != nil {
		return Label{}, err
	}
	if err := authorize(cmd.Actor, policy.ActionLabelEdit, labelResource(label)); err != nil {
		return Label{}, err
	}

	now := e.now()
	price := domain.DiscountedPrice(cmd.BasePrice, cmd.Percent)
	if err := authorizePriceChange(cmd.Actor, label.EffectivePrice(now), price); err != nil {
		return Label{}, err
	}

	updated, err := e.labels.UpdatePricing(ctx, label.ID, repositories.LabelPriceUpdate{
		BasePrice:    cmd.BasePrice,
		CurrentPrice: price,
		FinalPrice:   price,
		Discount:     &repositories.LabelDiscount{Percent: cmd.Percent, Price: price, EndAt: discountEnd(now, cmd.DurationHours)},
		Status:       domain.LabelStatusSyncing,
		LastSync:     now,
	})
	if err != nil {
		return Label{}, translateRepoError(err, ErrLabelNotFound, cmd.LabelID)
	}
	e.notifier.labelChanged(ctx, updated, priceReasonDiscountApplied)
	return updated, nil
}

func (e *pricingEngine) ClearDiscount(ctx context.Context, cmd ClearDiscountCommand) (Label, error) {
	if !domain.ValidPrice(cmd.BasePrice) {
		return Label{}, fmt.Errorf("%w: base price must be a positive amount", ErrPricingInvalidInput)
	}
	label, err := e.loadLabel(ctx, cmd.LabelID)
	if err != nil {
		return Label{}, err
	}
	if err := authorize(cmd.Actor, policy.ActionLabelEdit, labelResource(label)); err != nil {
		return Label{}, err
	}
	now := e.now()
	if err := authorizePriceChange(cmd.Actor, label.EffectivePrice(now), cmd.BasePrice); err != nil {
		return Label{}, err
	}

	updated, err := e.labels.UpdatePricing(ctx, label.ID, repositories.LabelPriceUpdate{
		BasePrice:    cmd.BasePrice,
		CurrentPrice: cmd.BasePrice,
		FinalPrice:   cmd.BasePrice,
		Status:       domain.LabelStatusSyncing,
		LastSync:     now,
	})
	if err != nil {
		return Label{}, translateRepoError(err, ErrLabelNotFound, cmd.LabelID)
	}
	e.notifier.labelChanged(ctx, updated, priceReasonDiscountCleared)
	return updated, nil
}

// PropagatePriceChange writes product, branch product and label in that
// order. A failure part way leaves earlier writes in place; re-running the
// same command converges.
func (e *pricingEngine) PropagatePriceChange(ctx context.Context, cmd PropagatePriceCommand) (PropagationResult, error) {
	name := strings.TrimSpace(cmd.Name)
	switch {
	case strings.TrimSpace(cmd.LabelID) == "", strings.TrimSpace(cmd.ProductID) == "", strings.TrimSpace(cmd.BranchID) == "":
		return PropagationResult{}, fmt.Errorf("%w: label, product and branch are required", ErrPricingInvalidInput)
	case name == "":
		return PropagationResult{}, fmt.Errorf("%w: name is required", ErrPricingInvalidInput)
	case !domain.ValidPrice(cmd.NewBranchPrice):
		return PropagationResult{}, fmt.Errorf("%w: price must be a positive amount", ErrPricingInvalidInput)
	case cmd.DiscountPercent != nil && !domain.ValidPercent(*cmd.DiscountPercent):
		return PropagationResult{}, fmt.Errorf("%w: percent must be between 0 and 100", ErrPricingInvalidInput)
	}
	if err := validateHours(cmd.DiscountHours); err != nil {
		return PropagationResult{}, err
	}

	label, err := e.loadLabel(ctx, cmd.LabelID)
	if err != nil {
		return PropagationResult{}, err
	}
	product, err := e.products.Get(ctx, cmd.ProductID)
	if err != nil {
		return PropagationResult{}, translateRepoError(err, ErrProductNotFound, cmd.ProductID)
	}
	if product.CompanyID != label.CompanyID {
		return PropagationResult{}, fmt.Errorf("%w: product belongs to another company", ErrPricingInvalidInput)
	}
	if label.BranchID != strings.TrimSpace(cmd.BranchID) {
		return PropagationResult{}, fmt.Errorf("%w: label belongs to another branch", ErrPricingInvalidInput)
	}
	if label.ProductID != "" && label.ProductID != product.ID {
		return PropagationResult{}, fmt.Errorf("%w: label is assigned to another product", ErrPricingInvalidInput)
	}
	if err := authorize(cmd.Actor, policy.ActionLabelEdit, labelResource(label)); err != nil {
		return PropagationResult{}, err
	}
	if err := authorize(cmd.Actor, policy.ActionProductEdit, policy.Resource{CompanyID: label.CompanyID, BranchID: cmd.BranchID}); err != nil {
		return PropagationResult{}, err
	}

	now := e.now()
	var discount *repositories.LabelDiscount
	final := cmd.NewBranchPrice
	if cmd.DiscountPercent != nil && *cmd.DiscountPercent > 0 {
		final = domain.DiscountedPrice(cmd.NewBranchPrice, *cmd.DiscountPercent)
		discount = &repositories.LabelDiscount{Percent: *cmd.DiscountPercent, Price: final, EndAt: discountEnd(now, cmd.DiscountHours)}
	}
	if err := authorizePriceChange(cmd.Actor, label.EffectivePrice(now), final); err != nil {
		return PropagationResult{}, err
	}

	if err := e.products.UpdateDisplay(ctx, product.ID, name, cmd.Description, now); err != nil {
		return PropagationResult{}, translateRepoError(err, ErrProductNotFound, product.ID)
	}
	product.Name = name
	product.Description = cmd.Description
	product.UpdatedAt = now

	branchProduct, err := e.branchProducts.UpsertPrice(ctx, repositories.BranchProductUpsert{
		BranchID:  label.BranchID,
		CompanyID: label.CompanyID,
		ProductID: product.ID,
		Price:     cmd.NewBranchPrice,
		At:        now,
	})
	if err != nil {
		return PropagationResult{}, translateRepoError(err, nil, "")
	}

	sku := product.SKU
	updated, err := e.labels.UpdatePricing(ctx, label.ID, repositories.LabelPriceUpdate{
		BasePrice:    cmd.NewBranchPrice,
		CurrentPrice: final,
		FinalPrice:   final,
		Discount:     discount,
		ProductName:  &name,
		ProductSKU:   &sku,
		Status:       domain.LabelStatusSyncing,
		LastSync:     now,
	})
	if err != nil {
		return PropagationResult{}, translateRepoError(err, ErrLabelNotFound, label.ID)
	}
	e.notifier.labelChanged(ctx, updated, priceReasonPropagated)

	return PropagationResult{Product: product, BranchProduct: branchProduct, Label: updated}, nil
}

func (e *pricingEngine) loadLabel(ctx context.Context, id string) (Label, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Label{}, fmt.Errorf("%w: label id is required", ErrPricingInvalidInput)
	}
	label, err := e.labels.Get(ctx, id)
	if err != nil {
		return Label{}, translateRepoError(err, ErrLabelNotFound, id)
	}
	return label, nil
}

func validateHours(hours *float64) error {
	if hours == nil {
		return nil
	}
	if math.IsNaN(*hours) || math.IsInf(*hours, 0) || *hours <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrPricingInvalidInput)
	}
	return nil
}

func discountEnd(now time.Time, hours *float64) *time.Time {
	if hours == nil {
		return nil
	}
	end := now.Add(time.Duration(*hours * float64(time.Hour)))
	return &end
}

func labelResource(label Label) policy.Resource {
	return policy.Resource{CompanyID: label.CompanyID, BranchID: label.BranchID}
}

// labelChangeNotifier runs the best-effort side effects of a label write.
type labelChangeNotifier struct {
	cache    LabelCache
	events   PriceEventPublisher
	observer PriceChangeObserver
	logger   EventLogger
	now      func() time.Time
}

func (n labelChangeNotifier) labelChanged(ctx context.Context, label Label, reason string) {
	if n.observer != nil {
		n.observer.ObservePriceChange(reason)
	}
	if n.cache != nil {
		if err := n.cache.Invalidate(ctx, label); err != nil {
			n.logger(ctx, "label.cache_invalidate_failed", map[string]any{"labelId": label.ID, "error": err.Error()})
		}
	}
	if n.events == nil {
		return
	}
	event := PriceChangeEvent{
		CompanyID:       label.CompanyID,
		BranchID:        label.BranchID,
		LabelDocID:      label.ID,
		LabelID:         label.LabelID,
		ProductID:       label.ProductID,
		Reason:          reason,
		BasePrice:       label.BasePrice,
		FinalPrice:      label.FinalPrice,
		DiscountPercent: label.DiscountPercent,
		DiscountEndAt:   label.DiscountEndAt,
		OccurredAt:      n.now(),
	}
	if err := n.events.PublishPriceChange(ctx, event); err != nil {
		n.logger(ctx, "label.price_event_publish_failed", map[string]any{"labelId": label.ID, "reason": reason, "error": err.Error()})
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/policy"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

var (
	// ErrLabelInvalidInput signals a malformed label command.
	ErrLabelInvalidInput = errors.New("label: invalid input")
	// ErrLabelConflict is returned when a requested labelId is already taken.
	ErrLabelConflict = errors.New("label: already exists")
)

// LabelServiceDeps bundles collaborators for the label service.
type LabelServiceDeps struct {
	Labels         repositories.LabelRepository
	Branches       repositories.BranchRepository
	Products       repositories.ProductRepository
	BranchProducts repositories.BranchProductRepository
	Counters       CounterService
	Resolver       LabelResolver
	Cache          LabelCache
	Events         PriceEventPublisher
	Observer       PriceChangeObserver
	Clock          func() time.Time
	IDGenerator    func() string
	Logger         EventLogger
}

type labelService struct {
	labels         repositories.LabelRepository
	branches       repositories.BranchRepository
	products       repositories.ProductRepository
	branchProducts repositories.BranchProductRepository
	counters       CounterService
	resolver       LabelResolver
	notifier       labelChangeNotifier
	now            func() time.Time
	newID          func() string
}

var _ LabelService = (*labelService)(nil)

func NewLabelService(deps LabelServiceDeps) (LabelService, error) {
	switch {
	case deps.Labels == nil:
		return nil, errors.New("label service: label repository is required")
	case deps.Branches == nil:
		return nil, errors.New("label service: branch repository is required")
	case deps.Products == nil:
		return nil, errors.New("label service: product repository is required")
	case deps.BranchProducts == nil:
		return nil, errors.New("label service: branch product repository is required")
	case deps.Counters == nil:
		return nil, errors.New("label service: counter service is required")
	case deps.Resolver == nil:
		return nil, errors.New("label service: resolver is required")
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	now := clockOrNow(deps.Clock)
	return &labelService{
		labels:         deps.Labels,
		branches:       deps.Branches,
		products:       deps.Products,
		branchProducts: deps.BranchProducts,
		counters:       deps.Counters,
		resolver:       deps.Resolver,
		notifier:       labelChangeNotifier{cache: deps.Cache, events: deps.Events, observer: deps.Observer, logger: loggerOrNoop(deps.Logger), now: now},
		now:            now,
		newID:          newID,
	}, nil
}

// ListLabels returns the tenant's labels. Staff are pinned to their own branch.
func (s *labelService) ListLabels(ctx context.Context, actor *User, branchID string) ([]Label, error) {
	branchID = scopedBranch(actor, branchID)
	if err := authorize(actor, policy.ActionLabelView, policy.Resource{CompanyID: tenantOf(actor), BranchID: branchID}); err != nil {
		return nil, err
	}
	labels, err := s.labels.List(ctx, actor.CompanyID, branchID)
	if err != nil {
		return nil, translateRepoError(err, nil, "")
	}
	return labels, nil
}

func (s *labelService) GetLabel(ctx context.Context, actor *User, segment string) (Label, error) {
	label, err := s.resolver.Resolve(ctx, segment)
	if err != nil {
		return Label{}, err
	}
	if err := authorize(actor, policy.ActionLabelView, labelResource(label)); err != nil {
		return Label{}, err
	}
	return label, nil
}

func (s *labelService) CreateLabel(ctx context.Context, cmd CreateLabelCommand) (Label, error) {
	branchID := strings.TrimSpace(cmd.BranchID)
	if branchID == "" {
		return Label{}, fmt.Errorf("%w: branch id is required", ErrLabelInvalidInput)
	}
	branch, err := s.branches.Get(ctx, branchID)
	if err != nil {
		return Label{}, translateRepoError(err, ErrBranchNotFound, branchID)
	}
	if err := authorize(cmd.Actor, policy.ActionLabelEdit, policy.Resource{CompanyID: branch.CompanyID, BranchID: branch.ID}); err != nil {
		return Label{}, err
	}
	if cmd.Actor.Role == domain.RoleStaff && !cmd.Actor.Permissions.CanCreateLabels {
		return Label{}, fmt.Errorf("%w: label creation", ErrPermissionDenied)
	}

	requested := strings.TrimSpace(cmd.LabelID)
	if requested != "" {
		switch _, err := s.labels.FindByLabelID(ctx, requested); {
		case err == nil:
			return Label{}, fmt.Errorf("%w: %s", ErrLabelConflict, requested)
		case !repositories.IsNotFound(err):
			return Label{}, translateRepoError(err, nil, "")
		}
	}

	seq, err := s.counters.NextSequence(ctx, branch.CompanyID, domain.CounterLabelNumber)
	if err != nil {
		return Label{}, err
	}
	now := s.now()
	code := domain.FormatLabelCode(seq)
	labelID := requested
	if labelID == "" {
		labelID = code
	}
	label := Label{
		ID:        s.newID(),
		CompanyID: branch.CompanyID,
		BranchID:  branch.ID,
		LabelID:   labelID,
		LabelCode: code,
		Location:  strings.TrimSpace(cmd.Location),
		Battery:   100,
		Status:    domain.LabelStatusInactive,
		LastSync:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.labels.Insert(ctx, label); err != nil {
		if repositories.IsConflict(err) {
			return Label{}, fmt.Errorf("%w: %s", ErrLabelConflict, label.ID)
		}
		return Label{}, translateRepoError(err, nil, "")
	}
	return label, nil
}

// AssignLabel binds the label to a product and resets its price to the
// branch price, falling back to the catalog base price.
func (s *labelService) AssignLabel(ctx context.Context, cmd AssignLabelCommand) (Label, error) {
	if strings.TrimSpace(cmd.LabelID) == "" || strings.TrimSpace(cmd.ProductID) == "" {
		return Label{}, fmt.Errorf("%w: label id and product id are required", ErrLabelInvalidInput)
	}
	label, err := s.labels.Get(ctx, cmd.LabelID)
	if err != nil {
		return Label{}, translateRepoError(err, ErrLabelNotFound, cmd.LabelID)
	}
	if err := authorize(cmd.Actor, policy.ActionLabelEdit, labelResource(label)); err != nil {
		return Label{}, err
	}
	product, err := s.products.Get(ctx, cmd.ProductID)
	if err != nil {
		return Label{}, translateRepoError(err, ErrProductNotFound, cmd.ProductID)
	}
	if product.CompanyID != label.CompanyID {
		return Label{}, fmt.Errorf("%w: product belongs to another company", ErrLabelInvalidInput)
	}

	price := product.BasePrice
	bp, err := s.branchProducts.Get(ctx, label.BranchID, product.ID)
	switch {
	case err == nil && bp.CurrentPrice > 0:
		price = bp.CurrentPrice
	case err != nil && !repositories.IsNotFound(err):
		return Label{}, translateRepoError(err, nil, "")
	}

	now := s.now()
	if err := authorizePriceChange(cmd.Actor, label.EffectivePrice(now), price); err != nil {
		return Label{}, err
	}

	updated, err := s.labels.Assign(ctx, label.ID, repositories.LabelAssignment{
		ProductID:   product.ID,
		ProductName: product.Name,
		ProductSKU:  product.SKU,
		BasePrice:   price,
		At:          now,
	})
	if err != nil {
		return Label{}, translateRepoError(err, ErrLabelNotFound, label.ID)
	}
	s.notifier.labelChanged(ctx, updated, priceReasonAssigned)
	return updated, nil
}

func (s *labelService) WatchLabels(ctx context.Context, actor *User, branchID string, fn func([]Label)) error {
	branchID = scopedBranch(actor, branchID)
	if err := authorize(actor, policy.ActionLabelView, policy.Resource{CompanyID: tenantOf(actor), BranchID: branchID}); err != nil {
		return err
	}
	return s.labels.Watch(ctx, actor.CompanyID, branchID, fn)
}

// scopedBranch forces staff onto their own branch.
func scopedBranch(actor *User, requested string) string {
	if pinned := policy.BranchScope(actor); pinned != "" {
		return pinned
	}
	return strings.TrimSpace(requested)
}

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
	// ErrBranchInvalidInput signals a malformed branch command.
	ErrBranchInvalidInput = errors.New("branch: invalid input")
	// ErrBranchNotFound indicates the branch or branch product does not exist.
	ErrBranchNotFound = errors.New("branch: not found")
)

// BranchServiceDeps bundles collaborators for the branch service.
type BranchServiceDeps struct {
	Branches       repositories.BranchRepository
	BranchProducts repositories.BranchProductRepository
	Products       repositories.ProductRepository
	Counters       CounterService
	Clock          func() time.Time
	IDGenerator    func() string
}

type branchService struct {
	branches       repositories.BranchRepository
	branchProducts repositories.BranchProductRepository
	products       repositories.ProductRepository
	counters       CounterService
	now            func() time.Time
	newID          func() string
}

var _ BranchService = (*branchService)(nil)

func NewBranchService(deps BranchServiceDeps) (BranchService, error) {
	switch {
	case deps.Branches == nil:
		return nil, errors.New("branch service: branch repository is required")
	case deps.BranchProducts == nil:
		return nil, errors.New("branch service: branch product repository is required")
	case deps.Products == nil:
		return nil, errors.New("branch service: product repository is required")
	case deps.Counters == nil:
		return nil, errors.New("branch service: counter service is required")
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	return &branchService{
		branches:       deps.Branches,
		branchProducts: deps.BranchProducts,
		products:       deps.Products,
		counters:       deps.Counters,
		now:            clockOrNow(deps.Clock),
		newID:          newID,
	}, nil
}

func (s *branchService) ListBranches(ctx context.Context, actor *User) ([]Branch, error) {
	if err := authorize(actor, policy.ActionBranchView, policy.Resource{CompanyID: tenantOf(actor)}); err != nil {
		return nil, err
	}
	branches, err := s.branches.ListByCompany(ctx, actor.CompanyID)
	if err != nil {
		return nil, translateRepoError(err, nil, "")
	}
	if pinned := policy.BranchScope(actor); pinned != "" {
		own := branches[:0]
		for _, b := range branches {
			if b.ID == pinned {
				own = append(own, b)
			}
		}
		branches = own
	}
	return branches, nil
}

// CreateBranch reserves the next branch number and mints BR-xxxx from it.
func (s *branchService) CreateBranch(ctx context.Context, cmd UpsertBranchCommand) (Branch, error) {
	if err := authorize(cmd.Actor, policy.ActionBranchesManage, policy.Resource{CompanyID: tenantOf(cmd.Actor)}); err != nil {
		return Branch{}, err
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Branch{}, fmt.Errorf("%w: name is required", ErrBranchInvalidInput)
	}
	if cmd.Actor.CompanyID == "" {
		return Branch{}, fmt.Errorf("%w: actor has no company", ErrBranchInvalidInput)
	}
	status, err := branchStatus(cmd.Status)
	if err != nil {
		return Branch{}, err
	}
	seq, err := s.counters.NextSequence(ctx, cmd.Actor.CompanyID, domain.CounterBranchNumber)
	if err != nil {
		return Branch{}, err
	}
	now := s.now()
	branch := Branch{
		ID:        s.newID(),
		CompanyID: cmd.Actor.CompanyID,
		Name:      name,
		Code:      domain.FormatBranchCode(seq),
		Address:   strings.TrimSpace(cmd.Address),
		Phone:     strings.TrimSpace(cmd.Phone),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.branches.Save(ctx, branch); err != nil {
		return Branch{}, translateRepoError(err, nil, "")
	}
	return branch, nil
}

func (s *branchService) UpdateBranch(ctx context.Context, cmd UpsertBranchCommand) (Branch, error) {
	branch, err := s.loadBranch(ctx, cmd.Actor, cmd.BranchID, policy.ActionBranchesManage)
	if err != nil {
		return Branch{}, err
	}
	if name := strings.TrimSpace(cmd.Name); name != "" {
		branch.Name = name
	}
	branch.Address = strings.TrimSpace(cmd.Address)
	branch.Phone = strings.TrimSpace(cmd.Phone)
	if cmd.Status != "" {
		status, err := branchStatus(cmd.Status)
		if err != nil {
			return Branch{}, err
		}
		branch.Status = status
	}
	branch.UpdatedAt = s.now()
	if err := s.branches.Save(ctx, branch); err != nil {
		return Branch{}, translateRepoError(err, nil, "")
	}
	return branch, nil
}

// DeleteBranch removes the branch record only. Its counter number is not reused.
func (s *branchService) DeleteBranch(ctx context.Context, actor *User, branchID string) error {
	branch, err := s.loadBranch(ctx, actor, branchID, policy.ActionBranchesManage)
	if err != nil {
		return err
	}
	return translateRepoError(s.branches.Delete(ctx, branch.ID), ErrBranchNotFound, branch.ID)
}

func (s *branchService) ListBranchProducts(ctx context.Context, actor *User, branchID string) ([]BranchProduct, error) {
	branch, err := s.loadBranch(ctx, actor, branchID, policy.ActionProductView)
	if err != nil {
		return nil, err
	}
	items, err := s.branchProducts.ListByBranch(ctx, branch.ID)
	if err != nil {
		return nil, translateRepoError(err, nil, "")
	}
	return items, nil
}

// UpdateBranchProduct sets price and/or stock for a product at a branch.
// Setting a price creates the record when missing; stock updates require it.
func (s *branchService) UpdateBranchProduct(ctx context.Context, cmd UpdateBranchProductCommand) (BranchProduct, error) {
	if cmd.Price == nil && cmd.Stock == nil && cmd.MinStock == nil {
		return BranchProduct{}, fmt.Errorf("%w: price or stock is required", ErrBranchInvalidInput)
	}
	branch, err := s.branches.Get(ctx, strings.TrimSpace(cmd.BranchID))
	if err != nil {
		return BranchProduct{}, translateRepoError(err, ErrBranchNotFound, cmd.BranchID)
	}
	res := policy.Resource{CompanyID: branch.CompanyID, BranchID: branch.ID}
	product, err := s.products.Get(ctx, strings.TrimSpace(cmd.ProductID))
	if err != nil {
		return BranchProduct{}, translateRepoError(err, ErrProductNotFound, cmd.ProductID)
	}
	if product.CompanyID != branch.CompanyID {
		return BranchProduct{}, fmt.Errorf("%w: product belongs to another company", ErrBranchInvalidInput)
	}

	now := s.now()
	var item BranchProduct
	if cmd.Price != nil {
		if err := authorize(cmd.Actor, policy.ActionProductEdit, res); err != nil {
			return BranchProduct{}, err
		}
		if !domain.ValidPrice(*cmd.Price) {
			return BranchProduct{}, fmt.Errorf("%w: price must be a positive amount", ErrBranchInvalidInput)
		}
		price := domain.RoundPrice(*cmd.Price)
		old := product.BasePrice
		if current, err := s.branchProducts.Get(ctx, branch.ID, product.ID); err == nil {
			old = current.CurrentPrice
		}
		if err := authorizePriceChange(cmd.Actor, old, price); err != nil {
			return BranchProduct{}, err
		}
		item, err = s.branchProducts.UpsertPrice(ctx, repositories.BranchProductUpsert{
			BranchID:  branch.ID,
			CompanyID: branch.CompanyID,
			ProductID: product.ID,
			Price:     price,
			At:        now,
		})
		if err != nil {
			return BranchProduct{}, translateRepoError(err, nil, "")
		}
	}
	if cmd.Stock != nil || cmd.MinStock != nil {
		if err := authorize(cmd.Actor, policy.ActionStockUpdate, res); err != nil {
			return BranchProduct{}, err
		}
		if cmd.Price == nil {
			item, err = s.branchProducts.Get(ctx, branch.ID, product.ID)
			if err != nil {
				return BranchProduct{}, translateRepoError(err, ErrBranchNotFound, domain.BranchProductID(branch.ID, product.ID))
			}
		}
		stock, minStock := item.Stock, item.MinStock
		if cmd.Stock != nil {
			stock = *cmd.Stock
		}
		if cmd.MinStock != nil {
			minStock = *cmd.MinStock
		}
		if stock < 0 || minStock < 0 {
			return BranchProduct{}, fmt.Errorf("%w: stock cannot be negative", ErrBranchInvalidInput)
		}
		item, err = s.branchProducts.UpdateStock(ctx, branch.ID, product.ID, stock, minStock, now)
		if err != nil {
			return BranchProduct{}, translateRepoError(err, ErrBranchNotFound, domain.BranchProductID(branch.ID, product.ID))
		}
	}
	return item, nil
}

func (s *branchService) loadBranch(ctx context.Context, actor *User, branchID string, action policy.Action) (Branch, error) {
	branchID = strings.TrimSpace(branchID)
	if branchID == "" {
		return Branch{}, fmt.Errorf("%w: branch id is required", ErrBranchInvalidInput)
	}
	branch, err := s.branches.Get(ctx, branchID)
	if err != nil {
		return Branch{}, translateRepoError(err, ErrBranchNotFound, branchID)
	}
	if err := authorize(actor, action, policy.Resource{CompanyID: branch.CompanyID, BranchID: branch.ID}); err != nil {
		return Branch{}, err
	}
	return branch, nil
}

func branchStatus(status domain.BranchStatus) (domain.BranchStatus, error) {
	switch status {
	case "":
		return domain.BranchStatusActive, nil
	case domain.BranchStatusActive, domain.BranchStatusInactive:
		return status, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrBranchInvalidInput, status)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/policy"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

// ErrSalesInvalidInput signals a malformed sale.
var ErrSalesInvalidInput = errors.New("sales: invalid input")

const (
	defaultSalesLimit = 50
	maxSalesLimit     = 500
)

// SalesServiceDeps bundles collaborators for the sales service.
type SalesServiceDeps struct {
	Sales       repositories.SaleRepository
	Branches    repositories.BranchRepository
	Counters    CounterService
	Clock       func() time.Time
	IDGenerator func() string
	Logger      EventLogger
}

type salesService struct {
	sales    repositories.SaleRepository
	branches repositories.BranchRepository
	counters CounterService
	now      func() time.Time
	newID    func() string
	logger   EventLogger
}

var _ SalesService = (*salesService)(nil)

func NewSalesService(deps SalesServiceDeps) (SalesService, error) {
	switch {
	case deps.Sales == nil:
		return nil, errors.New("sales service: sale repository is required")
	case deps.Branches == nil:
		return nil, errors.New("sales service: branch repository is required")
	case deps.Counters == nil:
		return nil, errors.New("sales service: counter service is required")
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	return &salesService{
		sales:    deps.Sales,
		branches: deps.Branches,
		counters: deps.Counters,
		now:      clockOrNow(deps.Clock),
		newID:    newID,
		logger:   loggerOrNoop(deps.Logger),
	}, nil
}

func (s *salesService) ListSales(ctx context.Context, actor *User, filter SaleListFilter) ([]Sale, error) {
	branchID := scopedBranch(actor, filter.BranchID)
	if err := authorize(actor, policy.ActionSalesView, policy.Resource{CompanyID: tenantOf(actor), BranchID: branchID}); err != nil {
		return nil, err
	}
	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = defaultSalesLimit
	case limit > maxSalesLimit:
		limit = maxSalesLimit
	}
	sales, err := s.sales.List(ctx, actor.CompanyID, repositories.SaleFilter{BranchID: branchID, Limit: limit})
	if err != nil {
		return nil, translateRepoError(err, nil, "")
	}
	return sales, nil
}

// RecordSale totals the items and stamps a receipt number reserved from the
// tenant counter. Sales are append-only.
func (s *salesService) RecordSale(ctx context.Context, cmd RecordSaleCommand) (Sale, error) {
	branchID := scopedBranch(cmd.Actor, cmd.BranchID)
	if branchID == "" {
		return Sale{}, fmt.Errorf("%w: branch id is required", ErrSalesInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Sale{}, fmt.Errorf("%w: at least one item is required", ErrSalesInvalidInput)
	}
	branch, err := s.branches.Get(ctx, branchID)
	if err != nil {
		return Sale{}, translateRepoError(err, ErrBranchNotFound, branchID)
	}
	if err := authorize(cmd.Actor, policy.ActionSalesCreate, policy.Resource{CompanyID: branch.CompanyID, BranchID: branch.ID}); err != nil {
		return Sale{}, err
	}

	total := decimal.Zero
	items := make([]SaleItem, 0, len(cmd.Items))
	for i, item := range cmd.Items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Qty <= 0 {
			return Sale{}, fmt.Errorf("%w: item %d quantity must be positive", ErrSalesInvalidInput, i)
		}
		if !domain.ValidPrice(item.Price) {
			return Sale{}, fmt.Errorf("%w: item %d price must be a positive amount", ErrSalesInvalidInput, i)
		}
		item.Price = domain.RoundPrice(item.Price)
		total = total.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Qty))))
		items = append(items, item)
	}

	seq, err := s.counters.NextSequence(ctx, branch.CompanyID, domain.CounterReceiptNumber)
	if err != nil {
		return Sale{}, err
	}
	now := s.now()
	sum, _ := total.Round(2).Float64()
	sale := Sale{
		ID:         s.newID(),
		CompanyID:  branch.CompanyID,
		BranchID:   branch.ID,
		StaffName:  cmd.Actor.Name,
		StaffEmail: cmd.Actor.Email,
		Items:      items,
		Total:      sum,
		ReceiptNo:  domain.FormatReceiptNo(seq, now),
		CreatedAt:  now,
	}
	if err := s.sales.Insert(ctx, sale); err != nil {
		return Sale{}, translateRepoError(err, nil, "")
	}
	return sale, nil
}

// ClearSales bulk-deletes the tenant's sales, or one branch's when branchID is set.
func (s *salesService) ClearSales(ctx context.Context, actor *User, branchID string) (int, error) {
	branchID = scopedBranch(actor, branchID)
	if err := authorize(actor, policy.ActionSalesClear, policy.Resource{CompanyID: tenantOf(actor), BranchID: branchID}); err != nil {
		return 0, err
	}
	if actor.CompanyID == "" {
		return 0, fmt.Errorf("%w: actor has no company", ErrSalesInvalidInput)
	}
	removed, err := s.sales.DeleteAll(ctx, actor.CompanyID, branchID)
	s.logger(ctx, "sales.cleared", map[string]any{
		"companyId": actor.CompanyID,
		"branchId":  branchID,
		"removed":   removed,
	})
	if err != nil {
		return removed, translateRepoError(err, nil, "")
	}
	return removed, nil
}

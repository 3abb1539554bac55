package memory

import (
	"context"
	"errors"
	"sort"
	"strings"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

var (
	errMissingID = errors.New("id is required")
	errExists    = errors.New("document already exists")
)

type saleRepo struct{ r *Registry }

func (s saleRepo) Insert(_ context.Context, sale domain.Sale) error {
	if strings.TrimSpace(sale.ID) == "" || strings.TrimSpace(sale.CompanyID) == "" {
		return errMissingID
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	for _, existing := range s.r.sales[sale.CompanyID] {
		if existing.ID == sale.ID {
			return repositories.NewConflictError("sales.insert", errExists)
		}
	}
	sale.Items = append([]domain.SaleItem(nil), sale.Items...)
	s.r.sales[sale.CompanyID] = append(s.r.sales[sale.CompanyID], sale)
	return nil
}

func (s saleRepo) List(_ context.Context, companyID string, filter repositories.SaleFilter) ([]domain.Sale, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	out := make([]domain.Sale, 0)
	for _, sale := range s.r.sales[companyID] {
		if filter.BranchID != "" && sale.BranchID != filter.BranchID {
			continue
		}
		out = append(out, sale)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s saleRepo) DeleteAll(_ context.Context, companyID, branchID string) (int, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	kept := s.r.sales[companyID][:0]
	removed := 0
	for _, sale := range s.r.sales[companyID] {
		if branchID != "" && sale.BranchID != branchID {
			kept = append(kept, sale)
			continue
		}
		removed++
	}
	s.r.sales[companyID] = kept
	return removed, nil
}

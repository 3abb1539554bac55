package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/Heang0/Digital-Label-sub001/internal/platform/firestore"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

// Registry wires every Firestore repository onto one shared Provider.
type Registry struct {
	provider       *pfirestore.Provider
	counters       *CounterRepository
	companies      *CompanyRepository
	branches       *BranchRepository
	categories     *CategoryRepository
	products       *ProductRepository
	branchProducts *BranchProductRepository
	labels         *LabelRepository
	sales          *SaleRepository
	users          *UserRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds the Firestore repositories.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	reg := &Registry{provider: provider}
	var err error
	if reg.counters, err = NewCounterRepository(provider); err != nil {
		return nil, err
	}
	if reg.companies, err = NewCompanyRepository(provider); err != nil {
		return nil, err
	}
	if reg.branches, err = NewBranchRepository(provider); err != nil {
		return nil, err
	}
	if reg.categories, err = NewCategoryRepository(provider); err != nil {
		return nil, err
	}
	if reg.products, err = NewProductRepository(provider); err != nil {
		return nil, err
	}
	if reg.branchProducts, err = NewBranchProductRepository(provider); err != nil {
		return nil, err
	}
	if reg.labels, err = NewLabelRepository(provider); err != nil {
		return nil, err
	}
	if reg.sales, err = NewSaleRepository(provider); err != nil {
		return nil, err
	}
	if reg.users, err = NewUserRepository(provider); err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }

func (r *Registry) Counters() repositories.CounterRepository { return r.counters }
func (r *Registry) Companies() repositories.CompanyRepository { return r.companies }
func (r *Registry) Branches() repositories.BranchRepository { return r.branches }
func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }
func (r *Registry) Products() repositories.ProductRepository { return r.products }
func (r *Registry) BranchProducts() repositories.BranchProductRepository { return r.branchProducts }
func (r *Registry) Labels() repositories.LabelRepository { return r.labels }
func (r *Registry) Sales() repositories.SaleRepository { return r.sales }
func (r *Registry) Users() repositories.UserRepository { return r.users }

// Package memory implements every repository on process memory. It backs
// tests and local runs with API_STORE_DRIVER=memory.
package memory

import (
	"context"
	"sync"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

// Registry holds all collections behind one lock so multi-record operations
// observe a consistent view.
type Registry struct {
	mu sync.Mutex

	counters       map[string]map[domain.CounterKey]int64
	companies      map[string]domain.Company
	branches       map[string]domain.Branch
	categories     map[string]domain.Category
	products       map[string]domain.Product
	branchProducts map[string]domain.BranchProduct
	labels         map[string]domain.Label
	sales          map[string][]domain.Sale
	users          map[string]domain.User

	watchers map[int]*labelWatcher
	nextWID  int
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry returns an empty store.
func NewRegistry() *Registry {
	return &Registry{
		counters:       make(map[string]map[domain.CounterKey]int64),
		companies:      make(map[string]domain.Company),
		branches:       make(map[string]domain.Branch),
		categories:     make(map[string]domain.Category),
		products:       make(map[string]domain.Product),
		branchProducts: make(map[string]domain.BranchProduct),
		labels:         make(map[string]domain.Label),
		sales:          make(map[string][]domain.Sale),
		users:          make(map[string]domain.User),
		watchers:       make(map[int]*labelWatcher),
	}
}

func (r *Registry) Close(context.Context) error { return nil }

func (r *Registry) Counters() repositories.CounterRepository { return counterRepo{r} }
func (r *Registry) Companies() repositories.CompanyRepository { return companyRepo{r} }
func (r *Registry) Branches() repositories.BranchRepository { return branchRepo{r} }
func (r *Registry) Categories() repositories.CategoryRepository { return categoryRepo{r} }
func (r *Registry) Products() repositories.ProductRepository { return productRepo{r} }
func (r *Registry) BranchProducts() repositories.BranchProductRepository { return branchProductRepo{r} }
func (r *Registry) Labels() repositories.LabelRepository { return labelRepo{r} }
func (r *Registry) Sales() repositories.SaleRepository { return saleRepo{r} }
func (r *Registry) Users() repositories.UserRepository { return userRepo{r} }

// PutCompany seeds a tenant root.
func (r *Registry) PutCompany(company domain.Company) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.companies[company.ID] = company
}

// PutUser seeds a user profile. Profiles are provisioned outside this service.
func (r *Registry) PutUser(user domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
}

func notFound(op, what string) error {
	return repositories.NewNotFoundError(op, what)
}

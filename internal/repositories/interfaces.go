package repositories

import (
	"context"
	"time"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
)

// Registry exposes access to the repositories backing a store driver.
type Registry interface {
	Close(ctx context.Context) error

	Counters() CounterRepository
	Companies() CompanyRepository
	Branches() BranchRepository
	Categories() CategoryRepository
	Products() ProductRepository
	BranchProducts() BranchProductRepository
	Labels() LabelRepository
	Sales() SaleRepository
	Users() UserRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CounterRepository reserves per-tenant sequence numbers atomically.
type CounterRepository interface {
	// Next returns the current value of key (1 when unset) and persists value+1
	// in a single atomic step.
	Next(ctx context.Context, companyID string, key domain.CounterKey) (int64, error)
	// Peek returns the value Next would issue without reserving it.
	Peek(ctx context.Context, companyID string, key domain.CounterKey) (int64, error)
}

// CompanyRepository reads tenant roots.
type CompanyRepository interface {
	Get(ctx context.Context, companyID string) (domain.Company, error)
}

// BranchRepository persists branches.
type BranchRepository interface {
	Get(ctx context.Context, branchID string) (domain.Branch, error)
	ListByCompany(ctx context.Context, companyID string) ([]domain.Branch, error)
	Save(ctx context.Context, branch domain.Branch) error
	Delete(ctx context.Context, branchID string) error
}

// CategoryRepository persists categories.
type CategoryRepository interface {
	Get(ctx context.Context, categoryID string) (domain.Category, error)
	ListByCompany(ctx context.Context, companyID string) ([]domain.Category, error)
	Save(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, categoryID string) error
}

// ProductRepository persists the tenant catalog.
type ProductRepository interface {
	Get(ctx context.Context, productID string) (domain.Product, error)
	ListByCompany(ctx context.Context, companyID string) ([]domain.Product, error)
	Save(ctx context.Context, product domain.Product) error
	// UpdateDisplay merges only name and description, leaving other fields untouched.
	UpdateDisplay(ctx context.Context, productID, name, description string, at time.Time) error
	// RenameCategory rewrites the denormalised category name on matching products
	// and returns the number of products changed.
	RenameCategory(ctx context.Context, companyID, from, to string, at time.Time) (int, error)
	Delete(ctx context.Context, productID string) error
}

// BranchProductUpsert carries the fields used when a branch product is created or repriced.
type BranchProductUpsert struct {
	BranchID  string
	CompanyID string
	ProductID string
	Price     float64
	At        time.Time
}

// BranchProductRepository persists per-branch price and stock.
type BranchProductRepository interface {
	Get(ctx context.Context, branchID, productID string) (domain.BranchProduct, error)
	ListByBranch(ctx context.Context, branchID string) ([]domain.BranchProduct, error)
	// UpsertPrice updates currentPrice of the (branch, product) record or creates it
	// with zero stock. Implementations must be atomic so at most one record exists per pair.
	UpsertPrice(ctx context.Context, in BranchProductUpsert) (domain.BranchProduct, error)
	UpdateStock(ctx context.Context, branchID, productID string, stock, minStock int, at time.Time) (domain.BranchProduct, error)
}

// LabelDiscount describes an active discount to persist on a label.
type LabelDiscount struct {
	Percent float64
	Price   float64
	EndAt   *time.Time
}

// LabelPriceUpdate merges pricing fields into a label. A nil Discount removes the
// discount fields; a nil EndAt removes discountEndAt.
type LabelPriceUpdate struct {
	BasePrice    float64
	CurrentPrice float64
	FinalPrice   float64
	Discount     *LabelDiscount
	ProductName  *string
	ProductSKU   *string
	Status       domain.LabelStatus
	LastSync     time.Time
}

// LabelAssignment binds a label to a product.
type LabelAssignment struct {
	ProductID   string
	ProductName string
	ProductSKU  string
	BasePrice   float64
	At          time.Time
}

// LabelRepository persists digital labels.
type LabelRepository interface {
	Get(ctx context.Context, id string) (domain.Label, error)
	FindByLabelID(ctx context.Context, labelID string) (domain.Label, error)
	FindByLabelCode(ctx context.Context, labelCode string) (domain.Label, error)
	List(ctx context.Context, companyID, branchID string) ([]domain.Label, error)
	Insert(ctx context.Context, label domain.Label) error
	UpdatePricing(ctx context.Context, id string, update LabelPriceUpdate) (domain.Label, error)
	Assign(ctx context.Context, id string, assignment LabelAssignment) (domain.Label, error)
	// Watch streams the label set matching companyID and branchID until ctx ends.
	Watch(ctx context.Context, companyID, branchID string, fn func([]domain.Label)) error
}

// SaleFilter narrows sale listings.
type SaleFilter struct {
	BranchID string
	Limit    int
}

// SaleRepository persists the append-only sales log under companies/{id}/sales.
type SaleRepository interface {
	Insert(ctx context.Context, sale domain.Sale) error
	List(ctx context.Context, companyID string, filter SaleFilter) ([]domain.Sale, error)
	// DeleteAll removes every sale of the company, or only those of branchID when set.
	DeleteAll(ctx context.Context, companyID, branchID string) (int, error)
}

// UserRepository reads tenant user profiles.
type UserRepository interface {
	Get(ctx context.Context, uid string) (domain.User, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

package services

import (
	"context"
	"time"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Company            = domain.Company
	Branch             = domain.Branch
	Category           = domain.Category
	Product            = domain.Product
	BranchProduct      = domain.BranchProduct
	Label              = domain.Label
	Sale               = domain.Sale
	SaleItem           = domain.SaleItem
	User               = domain.User
	SystemHealthReport = domain.SystemHealthReport
)

// CounterService hands out per-tenant sequence numbers.
type CounterService interface {
	NextSequence(ctx context.Context, companyID string, key domain.CounterKey) (int64, error)
	Peek(ctx context.Context, companyID string, key domain.CounterKey) (int64, error)
}

// PricingEngine owns every write that changes what a label displays.
type PricingEngine interface {
	ApplyDiscount(ctx context.Context, cmd ApplyDiscountCommand) (Label, error)
	ClearDiscount(ctx context.Context, cmd ClearDiscountCommand) (Label, error)
	PropagatePriceChange(ctx context.Context, cmd PropagatePriceCommand) (PropagationResult, error)
}

// LabelResolver maps a public URL segment to a label.
type LabelResolver interface {
	Resolve(ctx context.Context, segment string) (Label, error)
}

// LabelService manages label inventory for a tenant.
type LabelService interface {
	ListLabels(ctx context.Context, actor *User, branchID string) ([]Label, error)
	GetLabel(ctx context.Context, actor *User, segment string) (Label, error)
	CreateLabel(ctx context.Context, cmd CreateLabelCommand) (Label, error)
	AssignLabel(ctx context.Context, cmd AssignLabelCommand) (Label, error)
	WatchLabels(ctx context.Context, actor *User, branchID string, fn func([]Label)) error
}

// CatalogService manages products and categories.
type CatalogService interface {
	ListProducts(ctx context.Context, actor *User) ([]Product, error)
	CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, actor *User, productID string) error
	UploadProductImage(ctx context.Context, cmd UploadProductImageCommand) (Product, error)
	PreviewProductCode(ctx context.Context, actor *User, category string) (CodePreview, error)

	ListCategories(ctx context.Context, actor *User) ([]Category, error)
	CreateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error)
	UpdateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error)
	DeleteCategory(ctx context.Context, cmd DeleteCategoryCommand) error
}

// BranchService manages branches and per-branch stock.
type BranchService interface {
	ListBranches(ctx context.Context, actor *User) ([]Branch, error)
	CreateBranch(ctx context.Context, cmd UpsertBranchCommand) (Branch, error)
	UpdateBranch(ctx context.Context, cmd UpsertBranchCommand) (Branch, error)
	DeleteBranch(ctx context.Context, actor *User, branchID string) error
	ListBranchProducts(ctx context.Context, actor *User, branchID string) ([]BranchProduct, error)
	UpdateBranchProduct(ctx context.Context, cmd UpdateBranchProductCommand) (BranchProduct, error)
}

// SalesService records and reports checkouts.
type SalesService interface {
	ListSales(ctx context.Context, actor *User, filter SaleListFilter) ([]Sale, error)
	RecordSale(ctx context.Context, cmd RecordSaleCommand) (Sale, error)
	ClearSales(ctx context.Context, actor *User, branchID string) (int, error)
}

// SystemService reports process and dependency health.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
	Build() BuildInfo
}

// PriceEventPublisher receives label price changes for downstream consumers.
type PriceEventPublisher interface {
	PublishPriceChange(ctx context.Context, event PriceChangeEvent) error
}

// PriceChangeObserver counts label price writes by reason.
type PriceChangeObserver interface {
	ObservePriceChange(reason string)
}

// LabelCache stores resolved labels keyed by lookup segment.
type LabelCache interface {
	Get(ctx context.Context, segment string) (Label, bool, error)
	Set(ctx context.Context, segment string, label Label) error
	Invalidate(ctx context.Context, label Label) error
}

// ImageStore persists product images and returns their public URL.
type ImageStore interface {
	PutProductImage(ctx context.Context, companyID, productID, contentType string, data []byte) (string, error)
}

// Command and DTO definitions ------------------------------------------------

type ApplyDiscountCommand struct {
	Actor         *User
	LabelID       string
	BasePrice     float64
	Percent       float64
	DurationHours *float64
}

type ClearDiscountCommand struct {
	Actor     *User
	LabelID   string
	BasePrice float64
}

type PropagatePriceCommand struct {
	Actor           *User
	LabelID         string
	ProductID       string
	BranchID        string
	Name            string
	Description     string
	NewBranchPrice  float64
	DiscountPercent *float64
	DiscountHours   *float64
}

// PropagationResult holds the records written by a propagation.
type PropagationResult struct {
	Product       Product
	BranchProduct BranchProduct
	Label         Label
}

// PriceChangeEvent is published after a label's displayed price is rewritten.
type PriceChangeEvent struct {
	CompanyID       string     `json:"companyId"`
	BranchID        string     `json:"branchId"`
	LabelDocID      string     `json:"labelDocId"`
	LabelID         string     `json:"labelId"`
	ProductID       string     `json:"productId,omitempty"`
	Reason          string     `json:"reason"`
	BasePrice       float64    `json:"basePrice"`
	FinalPrice      float64    `json:"finalPrice"`
	DiscountPercent *float64   `json:"discountPercent,omitempty"`
	DiscountEndAt   *time.Time `json:"discountEndAt,omitempty"`
	OccurredAt      time.Time  `json:"occurredAt"`
}

type CreateLabelCommand struct {
	Actor    *User
	BranchID string
	LabelID  string
	Location string
}

type AssignLabelCommand struct {
	Actor     *User
	LabelID   string
	ProductID string
}

type CreateProductCommand struct {
	Actor       *User
	Name        string
	Category    string
	BasePrice   float64
	Description string
}

type UpdateProductCommand struct {
	Actor       *User
	ProductID   string
	Name        *string
	Category    *string
	BasePrice   *float64
	Description *string
}

type UploadProductImageCommand struct {
	Actor       *User
	ProductID   string
	ContentType string
	Data        []byte
}

// CodePreview shows the identifiers the next product in a category would get.
type CodePreview struct {
	SKU         string
	ProductCode string
}

type UpsertCategoryCommand struct {
	Actor       *User
	CategoryID  string
	Name        string
	Description string
	Color       string
}

type DeleteCategoryCommand struct {
	Actor      *User
	CategoryID string
	// ReassignTo renames products still pointing at the deleted category's name.
	// Empty leaves them untouched.
	ReassignTo string
}

type UpsertBranchCommand struct {
	Actor    *User
	BranchID string
	Name     string
	Address  string
	Phone    string
	Status   domain.BranchStatus
}

type UpdateBranchProductCommand struct {
	Actor     *User
	BranchID  string
	ProductID string
	Price     *float64
	Stock     *int
	MinStock  *int
}

type SaleListFilter struct {
	BranchID string
	Limit    int
}

type RecordSaleCommand struct {
	Actor    *User
	BranchID string
	Items    []SaleItem
}

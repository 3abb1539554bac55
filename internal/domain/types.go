package domain

import (
	"time"
)

// Role identifies the tenant role assigned to a user profile.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleVendor Role = "vendor"
	RoleStaff  Role = "staff"
)

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// Company is the tenant root. Every other record carries its ID.
type Company struct {
	ID               string
	Name             string
	SubscriptionTier string
	Status           string
	CreatedAt        time.Time
}

// BranchStatus enumerates branch lifecycle states.
type BranchStatus string

const (
	BranchStatusActive   BranchStatus = "active"
	BranchStatusInactive BranchStatus = "inactive"
)

// Branch is a physical store location owned by a company.
type Branch struct {
	ID        string
	CompanyID string
	Name      string
	Code      string
	Address   string
	Phone     string
	Status    BranchStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Category groups products. Products reference categories by name, not ID.
type Category struct {
	ID          string
	CompanyID   string
	Name        string
	Description string
	Color       string
	Number      int64
	CreatedAt   time.Time
}

// Product is the tenant-wide catalog entry.
type Product struct {
	ID          string
	CompanyID   string
	Name        string
	SKU         string
	ProductCode string
	Category    string
	BasePrice   float64
	Description string
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StockStatus captures the shelf availability of a branch product.
type StockStatus string

const (
	StockStatusInStock    StockStatus = "in-stock"
	StockStatusLowStock   StockStatus = "low-stock"
	StockStatusOutOfStock StockStatus = "out-of-stock"
)

// BranchProduct holds the price and stock of a product at one branch.
type BranchProduct struct {
	ID           string
	BranchID     string
	CompanyID    string
	ProductID    string
	CurrentPrice float64
	Stock        int
	MinStock     int
	Status       StockStatus
	LastUpdated  time.Time
}

// BranchProductID returns the deterministic document id for a (branch, product) pair.
func BranchProductID(branchID, productID string) string {
	return branchID + "_" + productID
}

// StockStatusFor derives the availability status from stock levels.
func StockStatusFor(stock, minStock int) StockStatus {
	switch {
	case stock <= 0:
		return StockStatusOutOfStock
	case stock <= minStock:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

// LabelStatus is the display state of a digital label.
type LabelStatus string

const (
	LabelStatusActive   LabelStatus = "active"
	LabelStatusSyncing  LabelStatus = "syncing"
	LabelStatusError    LabelStatus = "error"
	LabelStatusInactive LabelStatus = "inactive"
)

// Label is a price display surface bound to a branch and optionally a product.
type Label struct {
	ID              string
	CompanyID       string
	BranchID        string
	ProductID       string
	ProductName     string
	ProductSKU      string
	LabelID         string
	LabelCode       string
	Location        string
	BasePrice       float64
	CurrentPrice    float64
	FinalPrice      float64
	DiscountPercent *float64
	DiscountPrice   *float64
	DiscountEndAt   *time.Time
	Battery         int
	LastSync        time.Time
	Status          LabelStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SaleItem is a single line on a receipt.
type SaleItem struct {
	ProductID string
	Name      string
	Qty       int
	Price     float64
}

// Sale is an append-only record of a completed checkout.
type Sale struct {
	ID         string
	CompanyID  string
	BranchID   string
	StaffName  string
	StaffEmail string
	Items      []SaleItem
	Total      float64
	ReceiptNo  string
	CreatedAt  time.Time
}

// CounterKey names a per-tenant sequence stored on the counter document.
type CounterKey string

const (
	CounterProductNumber  CounterKey = "nextProductNumber"
	CounterLabelNumber    CounterKey = "nextLabelNumber"
	CounterCategoryNumber CounterKey = "nextCategoryNumber"
	CounterBranchNumber   CounterKey = "nextBranchNumber"
	CounterReceiptNumber  CounterKey = "nextReceiptNumber"
)

// Valid reports whether the key is one of the known counters.
func (k CounterKey) Valid() bool {
	switch k {
	case CounterProductNumber, CounterLabelNumber, CounterCategoryNumber, CounterBranchNumber, CounterReceiptNumber:
		return true
	}
	return false
}

// Permissions are the fine-grained grants carried on staff profiles.
type Permissions struct {
	CanViewProducts     bool
	CanUpdateStock      bool
	CanReportIssues     bool
	CanViewReports      bool
	CanChangePrices     bool
	CanCreateProducts   bool
	CanCreateLabels     bool
	CanCreatePromotions bool
	MaxPriceChange      float64
	CanManageSales      bool
}

// User is the tenant profile stored under users/{uid}.
type User struct {
	ID          string
	CompanyID   string
	BranchID    string
	Name        string
	Email       string
	Role        Role
	Permissions Permissions
	Status      string
}

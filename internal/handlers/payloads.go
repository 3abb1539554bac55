package handlers

import (
	"time"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
)

type labelPayload struct {
	ID              string   `json:"id"`
	CompanyID       string   `json:"companyId"`
	BranchID        string   `json:"branchId"`
	ProductID       string   `json:"productId,omitempty"`
	ProductName     string   `json:"productName,omitempty"`
	ProductSKU      string   `json:"productSku,omitempty"`
	LabelID         string   `json:"labelId"`
	LabelCode       string   `json:"labelCode"`
	Location        string   `json:"location,omitempty"`
	BasePrice       float64  `json:"basePrice"`
	CurrentPrice    float64  `json:"currentPrice"`
	FinalPrice      float64  `json:"finalPrice"`
	EffectivePrice  float64  `json:"effectivePrice"`
	DiscountActive  bool     `json:"discountActive"`
	DiscountPercent *float64 `json:"discountPercent,omitempty"`
	DiscountPrice   *float64 `json:"discountPrice,omitempty"`
	DiscountEndAt   *string  `json:"discountEndAt,omitempty"`
	Battery         int      `json:"battery"`
	LastSync        string   `json:"lastSync,omitempty"`
	Status          string   `json:"status"`
	CreatedAt       string   `json:"createdAt,omitempty"`
	UpdatedAt       string   `json:"updatedAt,omitempty"`
}

func buildLabelPayload(label domain.Label, now time.Time) labelPayload {
	return labelPayload{
		ID:              label.ID,
		CompanyID:       label.CompanyID,
		BranchID:        label.BranchID,
		ProductID:       label.ProductID,
		ProductName:     label.ProductName,
		ProductSKU:      label.ProductSKU,
		LabelID:         label.LabelID,
		LabelCode:       label.LabelCode,
		Location:        label.Location,
		BasePrice:       label.BasePrice,
		CurrentPrice:    label.CurrentPrice,
		FinalPrice:      label.FinalPrice,
		EffectivePrice:  label.EffectivePrice(now),
		DiscountActive:  label.DiscountActive(now),
		DiscountPercent: label.DiscountPercent,
		DiscountPrice:   label.DiscountPrice,
		DiscountEndAt:   formatTimePtr(label.DiscountEndAt),
		Battery:         label.Battery,
		LastSync:        formatTime(label.LastSync),
		Status:          string(label.Status),
		CreatedAt:       formatTime(label.CreatedAt),
		UpdatedAt:       formatTime(label.UpdatedAt),
	}
}

func buildLabelPayloads(labels []domain.Label, now time.Time) []labelPayload {
	out := make([]labelPayload, 0, len(labels))
	for _, label := range labels {
		out = append(out, buildLabelPayload(label, now))
	}
	return out
}

type productPayload struct {
	ID          string  `json:"id"`
	CompanyID   string  `json:"companyId"`
	Name        string  `json:"name"`
	SKU         string  `json:"sku"`
	ProductCode string  `json:"productCode"`
	Category    string  `json:"category"`
	BasePrice   float64 `json:"basePrice"`
	Description string  `json:"description,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	CreatedAt   string  `json:"createdAt,omitempty"`
	UpdatedAt   string  `json:"updatedAt,omitempty"`
}

func buildProductPayload(p domain.Product) productPayload {
	return productPayload{
		ID:          p.ID,
		CompanyID:   p.CompanyID,
		Name:        p.Name,
		SKU:         p.SKU,
		ProductCode: p.ProductCode,
		Category:    p.Category,
		BasePrice:   p.BasePrice,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}

type categoryPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	Number      int64  `json:"number"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

func buildCategoryPayload(c domain.Category) categoryPayload {
	return categoryPayload{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Color:       c.Color,
		Number:      c.Number,
		CreatedAt:   formatTime(c.CreatedAt),
	}
}

type branchPayload struct {
	ID        string `json:"id"`
	CompanyID string `json:"companyId"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Address   string `json:"address,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func buildBranchPayload(b domain.Branch) branchPayload {
	return branchPayload{
		ID:        b.ID,
		CompanyID: b.CompanyID,
		Name:      b.Name,
		Code:      b.Code,
		Address:   b.Address,
		Phone:     b.Phone,
		Status:    string(b.Status),
		CreatedAt: formatTime(b.CreatedAt),
		UpdatedAt: formatTime(b.UpdatedAt),
	}
}

type branchProductPayload struct {
	ID           string  `json:"id"`
	BranchID     string  `json:"branchId"`
	ProductID    string  `json:"productId"`
	CurrentPrice float64 `json:"currentPrice"`
	Stock        int     `json:"stock"`
	MinStock     int     `json:"minStock"`
	Status       string  `json:"status"`
	LastUpdated  string  `json:"lastUpdated,omitempty"`
}

func buildBranchProductPayload(bp domain.BranchProduct) branchProductPayload {
	return branchProductPayload{
		ID:           bp.ID,
		BranchID:     bp.BranchID,
		ProductID:    bp.ProductID,
		CurrentPrice: bp.CurrentPrice,
		Stock:        bp.Stock,
		MinStock:     bp.MinStock,
		Status:       string(bp.Status),
		LastUpdated:  formatTime(bp.LastUpdated),
	}
}

type saleItemPayload struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Qty       int     `json:"qty"`
	Price     float64 `json:"price"`
}

type salePayload struct {
	ID         string            `json:"id"`
	BranchID   string            `json:"branchId"`
	StaffName  string            `json:"staffName,omitempty"`
	StaffEmail string            `json:"staffEmail,omitempty"`
	Items      []saleItemPayload `json:"items"`
	Total      float64           `json:"total"`
	ReceiptNo  string            `json:"receiptNo"`
	CreatedAt  string            `json:"createdAt,omitempty"`
}

func buildSalePayload(s domain.Sale) salePayload {
	items := make([]saleItemPayload, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, saleItemPayload{ProductID: item.ProductID, Name: item.Name, Qty: item.Qty, Price: item.Price})
	}
	return salePayload{
		ID:         s.ID,
		BranchID:   s.BranchID,
		StaffName:  s.StaffName,
		StaffEmail: s.StaffEmail,
		Items:      items,
		Total:      s.Total,
		ReceiptNo:  s.ReceiptNo,
		CreatedAt:  formatTime(s.CreatedAt),
	}
}

type permissionsPayload struct {
	CanViewProducts     bool    `json:"canViewProducts"`
	CanUpdateStock      bool    `json:"canUpdateStock"`
	CanReportIssues     bool    `json:"canReportIssues"`
	CanViewReports      bool    `json:"canViewReports"`
	CanChangePrices     bool    `json:"canChangePrices"`
	CanCreateProducts   bool    `json:"canCreateProducts"`
	CanCreateLabels     bool    `json:"canCreateLabels"`
	CanCreatePromotions bool    `json:"canCreatePromotions"`
	MaxPriceChange      float64 `json:"maxPriceChange"`
	CanManageSales      bool    `json:"canManageSales"`
}

type userPayload struct {
	ID          string             `json:"id"`
	CompanyID   string             `json:"companyId"`
	BranchID    string             `json:"branchId,omitempty"`
	Name        string             `json:"name,omitempty"`
	Email       string             `json:"email,omitempty"`
	Role        string             `json:"role"`
	Status      string             `json:"status,omitempty"`
	Permissions permissionsPayload `json:"permissions"`
}

func buildUserPayload(u domain.User) userPayload {
	p := u.Permissions
	return userPayload{
		ID:        u.ID,
		CompanyID: u.CompanyID,
		BranchID:  u.BranchID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		Status:    u.Status,
		Permissions: permissionsPayload{
			CanViewProducts:     p.CanViewProducts,
			CanUpdateStock:      p.CanUpdateStock,
			CanReportIssues:     p.CanReportIssues,
			CanViewReports:      p.CanViewReports,
			CanChangePrices:     p.CanChangePrices,
			CanCreateProducts:   p.CanCreateProducts,
			CanCreateLabels:     p.CanCreateLabels,
			CanCreatePromotions: p.CanCreatePromotions,
			MaxPriceChange:      p.MaxPriceChange,
			CanManageSales:      p.CanManageSales,
		},
	}
}

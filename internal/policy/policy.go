// Package policy decides whether a tenant user may perform an action on a resource.
// Every function here is total and denies when inputs are missing.
package policy

import (
	"math"
	"strings"

	"github.com/Heang0/Digital-Label-sub001/internal/domain"
)

// Action is a guarded operation.
type Action string

const (
	ActionSalesView        Action = "sales.view"
	ActionSalesClear       Action = "sales.clear"
	ActionSalesCreate      Action = "sales.create"
	ActionLabelEdit        Action = "labels.edit"
	ActionLabelView        Action = "labels.view"
	ActionProductEdit      Action = "products.edit"
	ActionProductView      Action = "products.view"
	ActionBranchView       Action = "branches.view"
	ActionStockUpdate      Action = "stock.update"
	ActionCatalogManage    Action = "catalog.manage"
	ActionCategoriesManage Action = "categories.manage"
	ActionBranchesManage   Action = "branches.manage"
)

// Resource carries the tenancy of the record being acted on.
type Resource struct {
	CompanyID string
	BranchID  string
}

type staffRule func(p domain.Permissions, sameBranch bool) bool

var staffRules = map[Action]staffRule{
	ActionSalesView: func(p domain.Permissions, _ bool) bool {
		return p.CanViewReports
	},
	ActionSalesClear: func(p domain.Permissions, _ bool) bool {
		return p.CanManageSales || (p.CanViewReports && p.CanUpdateStock && p.CanChangePrices)
	},
	ActionSalesCreate: func(_ domain.Permissions, sameBranch bool) bool {
		return sameBranch
	},
	ActionLabelEdit: func(p domain.Permissions, sameBranch bool) bool {
		return sameBranch && (p.CanCreateProducts || p.CanChangePrices)
	},
	ActionProductEdit: func(p domain.Permissions, sameBranch bool) bool {
		return sameBranch && (p.CanCreateProducts || p.CanChangePrices)
	},
	ActionLabelView: func(_ domain.Permissions, _ bool) bool {
		return true
	},
	ActionStockUpdate: func(p domain.Permissions, sameBranch bool) bool {
		return sameBranch && (p.CanUpdateStock || p.CanCreateProducts || p.CanChangePrices)
	},
	ActionProductView: func(_ domain.Permissions, _ bool) bool {
		return true
	},
	ActionBranchView: func(_ domain.Permissions, _ bool) bool {
		return true
	},
	ActionCatalogManage:    nil,
	ActionCategoriesManage: nil,
	ActionBranchesManage:   nil,
}

// CanPerform reports whether user may perform action on res.
func CanPerform(user *domain.User, action Action, res Resource) bool {
	if user == nil {
		return false
	}
	rule, known := staffRules[action]
	if !known {
		return false
	}

	switch user.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleVendor:
		return sameTenant(user, res)
	case domain.RoleStaff:
		if !sameTenant(user, res) || rule == nil {
			return false
		}
		return rule(user.Permissions, sameBranch(user, res))
	default:
		return false
	}
}

// WithinPriceChangeLimit reports whether moving a price from oldPrice to newPrice
// stays within the user's maxPriceChange percentage. Admins, vendors and staff
// without a configured limit are unrestricted.
func WithinPriceChangeLimit(user *domain.User, oldPrice, newPrice float64) bool {
	if user == nil {
		return false
	}
	if user.Role != domain.RoleStaff {
		return user.Role == domain.RoleAdmin || user.Role == domain.RoleVendor
	}
	limit := user.Permissions.MaxPriceChange
	if limit <= 0 {
		return true
	}
	if oldPrice <= 0 || math.IsNaN(newPrice) {
		return false
	}
	change := math.Abs(newPrice-oldPrice) / oldPrice * 100
	return change <= limit+1e-9
}

// BranchScope returns the branch a user is pinned to, or "" when the user may
// select any branch of the tenant.
func BranchScope(user *domain.User) string {
	if user == nil || user.Role != domain.RoleStaff {
		return ""
	}
	return strings.TrimSpace(user.BranchID)
}

func sameTenant(user *domain.User, res Resource) bool {
	companyID := strings.TrimSpace(user.CompanyID)
	if companyID == "" {
		return false
	}
	target := strings.TrimSpace(res.CompanyID)
	return target == "" || target == companyID
}

func sameBranch(user *domain.User, res Resource) bool {
	own := strings.TrimSpace(user.BranchID)
	target := strings.TrimSpace(res.BranchID)
	return own != "" && target != "" && own == target
}

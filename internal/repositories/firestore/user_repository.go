package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	pfirestore "github.com/Heang0/Digital-Label-sub001/internal/platform/firestore"
)

const usersCollection = "users"

type permissionsDocument struct {
	CanViewProducts     bool    `firestore:"canViewProducts"`
	CanUpdateStock      bool    `firestore:"canUpdateStock"`
	CanReportIssues     bool    `firestore:"canReportIssues"`
	CanViewReports      bool    `firestore:"canViewReports"`
	CanChangePrices     bool    `firestore:"canChangePrices"`
	CanCreateProducts   bool    `firestore:"canCreateProducts"`
	CanCreateLabels     bool    `firestore:"canCreateLabels"`
	CanCreatePromotions bool    `firestore:"canCreatePromotions"`
	MaxPriceChange      float64 `firestore:"maxPriceChange"`
	CanManageSales      bool    `firestore:"canManageSales"`
}

type userDocument struct {
	CompanyID   string               `firestore:"companyId"`
	BranchID    string               `firestore:"branchId,omitempty"`
	Name        string               `firestore:"name"`
	Email       string               `firestore:"email"`
	Role        string               `firestore:"role"`
	Permissions *permissionsDocument `firestore:"permissions,omitempty"`
	Status      string               `firestore:"status,omitempty"`
}

// UserRepository reads tenant profiles keyed by Firebase uid.
type UserRepository struct {
	users *pfirestore.Collection[userDocument]
}

func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{users: pfirestore.NewCollection[userDocument](provider, usersCollection)}, nil
}

func (r *UserRepository) Get(ctx context.Context, uid string) (domain.User, error) {
	if strings.TrimSpace(uid) == "" {
		return domain.User{}, errors.New("user id is required")
	}
	doc, err := r.users.Get(ctx, uid)
	if err != nil {
		return domain.User{}, err
	}
	user := domain.User{
		ID:        doc.ID,
		CompanyID: doc.Data.CompanyID,
		BranchID:  doc.Data.BranchID,
		Name:      doc.Data.Name,
		Email:     doc.Data.Email,
		Role:      domain.Role(strings.ToLower(strings.TrimSpace(doc.Data.Role))),
		Status:    doc.Data.Status,
	}
	if p := doc.Data.Permissions; p != nil {
		user.Permissions = domain.Permissions(*p)
	}
	return user, nil
}

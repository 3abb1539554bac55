package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	pfirestore "github.com/Heang0/Digital-Label-sub001/internal/platform/firestore"
)

const companiesCollection = "companies"

type companyDocument struct {
	Name             string    `firestore:"name"`
	SubscriptionTier string    `firestore:"subscriptionTier,omitempty"`
	Status           string    `firestore:"status,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt"`
}

// CompanyRepository reads tenant roots.
type CompanyRepository struct {
	companies *pfirestore.Collection[companyDocument]
}

func NewCompanyRepository(provider *pfirestore.Provider) (*CompanyRepository, error) {
	if provider == nil {
		return nil, errors.New("company repository requires firestore provider")
	}
	return &CompanyRepository{companies: pfirestore.NewCollection[companyDocument](provider, companiesCollection)}, nil
}

func (r *CompanyRepository) Get(ctx context.Context, companyID string) (domain.Company, error) {
	if strings.TrimSpace(companyID) == "" {
		return domain.Company{}, errors.New("company id is required")
	}
	doc, err := r.companies.Get(ctx, companyID)
	if err != nil {
		return domain.Company{}, err
	}
	return domain.Company{
		ID:               doc.ID,
		Name:             doc.Data.Name,
		SubscriptionTier: doc.Data.SubscriptionTier,
		Status:           doc.Data.Status,
		CreatedAt:        doc.Data.CreatedAt,
	}, nil
}

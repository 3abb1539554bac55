package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	pfirestore "github.com/Heang0/Digital-Label-sub001/internal/platform/firestore"
)

const categoriesCollection = "categories"

type categoryDocument struct {
	CompanyID   string    `firestore:"companyId"`
	Name        string    `firestore:"name"`
	Description string    `firestore:"description,omitempty"`
	Color       string    `firestore:"color,omitempty"`
	Number      int64     `firestore:"number"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

// CategoryRepository persists categories.
type CategoryRepository struct {
	categories *pfirestore.Collection[categoryDocument]
}

func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	return &CategoryRepository{categories: pfirestore.NewCollection[categoryDocument](provider, categoriesCollection)}, nil
}

func (r *CategoryRepository) Get(ctx context.Context, categoryID string) (domain.Category, error) {
	if strings.TrimSpace(categoryID) == "" {
		return domain.Category{}, errors.New("category id is required")
	}
	doc, err := r.categories.Get(ctx, categoryID)
	if err != nil {
		return domain.Category{}, err
	}
	return toDomainCategory(doc.ID, doc.Data), nil
}

func (r *CategoryRepository) ListByCompany(ctx context.Context, companyID string) ([]domain.Category, error) {
	docs, err := r.categories.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("companyId", "==", companyID)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDomainCategory(doc.ID, doc.Data))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *CategoryRepository) Save(ctx context.Context, category domain.Category) error {
	if strings.TrimSpace(category.ID) == "" {
		return errors.New("category id is required")
	}
	return r.categories.Set(ctx, category.ID, categoryDocument{
		CompanyID:   category.CompanyID,
		Name:        category.Name,
		Description: category.Description,
		Color:       category.Color,
		Number:      category.Number,
		CreatedAt:   category.CreatedAt.UTC(),
	})
}

func (r *CategoryRepository) Delete(ctx context.Context, categoryID string) error {
	return r.categories.Delete(ctx, categoryID)
}

func toDomainCategory(id string, doc categoryDocument) domain.Category {
	return domain.Category{
		ID:          id,
		CompanyID:   doc.CompanyID,
		Name:        doc.Name,
		Description: doc.Description,
		Color:       doc.Color,
		Number:      doc.Number,
		CreatedAt:   doc.CreatedAt,
	}
}

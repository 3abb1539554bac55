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

const productsCollection = "products"

type productDocument struct {
	CompanyID   string    `firestore:"companyId"`
	Name        string    `firestore:"name"`
	SKU         string    `firestore:"sku"`
	ProductCode string    `firestore:"productCode,omitempty"`
	Category    string    `firestore:"category"`
	BasePrice   float64   `firestore:"basePrice"`
	Description string    `firestore:"description"`
	ImageURL    string    `firestore:"imageUrl,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// ProductRepository persists the tenant catalog in the products collection.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.Collection[productDocument]
}

func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewCollection[productDocument](provider, productsCollection),
	}, nil
}

func (r *ProductRepository) Get(ctx context.Context, productID string) (domain.Product, error) {
	if strings.TrimSpace(productID) == "" {
		return domain.Product{}, errors.New("product id is required")
	}
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return toDomainProduct(doc.ID, doc.Data), nil
}

func (r *ProductRepository) ListByCompany(ctx context.Context, companyID string) ([]domain.Product, error) {
	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("companyId", "==", companyID)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDomainProduct(doc.ID, doc.Data))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *ProductRepository) Save(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product id is required")
	}
	return r.products.Set(ctx, product.ID, productDocument{
		CompanyID:   product.CompanyID,
		Name:        product.Name,
		SKU:         product.SKU,
		ProductCode: product.ProductCode,
		Category:    product.Category,
		BasePrice:   product.BasePrice,
		Description: product.Description,
		ImageURL:    product.ImageURL,
		CreatedAt:   product.CreatedAt.UTC(),
		UpdatedAt:   product.UpdatedAt.UTC(),
	})
}

// UpdateDisplay fails with a not-found error when the product does not exist.
func (r *ProductRepository) UpdateDisplay(ctx context.Context, productID, name, description string, at time.Time) error {
	return r.products.Update(ctx, productID, []firestore.Update{
		{Path: "name", Value: name},
		{Path: "description", Value: description},
		{Path: "updatedAt", Value: at.UTC()},
	})
}

func (r *ProductRepository) RenameCategory(ctx context.Context, companyID, from, to string, at time.Time) (int, error) {
	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("companyId", "==", companyID).Where("category", "==", from)
	})
	if err != nil {
		return 0, err
	}
	ops := make([]bulkOp, 0, len(docs))
	for _, doc := range docs {
		ref, err := r.products.Ref(ctx, doc.ID)
		if err != nil {
			return 0, err
		}
		ops = append(ops, func(bw *firestore.BulkWriter) (*firestore.BulkWriterJob, error) {
			return bw.Update(ref, []firestore.Update{
				{Path: "category", Value: to},
				{Path: "updatedAt", Value: at.UTC()},
			})
		})
	}
	return runBulk(ctx, r.provider, "products.renameCategory", ops)
}

func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	return r.products.Delete(ctx, productID)
}

func toDomainProduct(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:          id,
		CompanyID:   doc.CompanyID,
		Name:        doc.Name,
		SKU:         doc.SKU,
		ProductCode: doc.ProductCode,
		Category:    doc.Category,
		BasePrice:   doc.BasePrice,
		Description: doc.Description,
		ImageURL:    doc.ImageURL,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

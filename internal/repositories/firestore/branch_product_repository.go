package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	pfirestore "github.com/Heang0/Digital-Label-sub001/internal/platform/firestore"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

const branchProductsCollection = "branch_products"

type branchProductDocument struct {
	BranchID     string    `firestore:"branchId"`
	CompanyID    string    `firestore:"companyId"`
	ProductID    string    `firestore:"productId"`
	CurrentPrice float64   `firestore:"currentPrice"`
	Stock        int       `firestore:"stock"`
	MinStock     int       `firestore:"minStock"`
	Status       string    `firestore:"status"`
	LastUpdated  time.Time `firestore:"lastUpdated"`
}

// BranchProductRepository stores one document per (branch, product) pair under
// the deterministic id branchId_productId, so concurrent upserts converge on a
// single record.
type BranchProductRepository struct {
	provider *pfirestore.Provider
	items    *pfirestore.Collection[branchProductDocument]
}

func NewBranchProductRepository(provider *pfirestore.Provider) (*BranchProductRepository, error) {
	if provider == nil {
		return nil, errors.New("branch product repository requires firestore provider")
	}
	return &BranchProductRepository{
		provider: provider,
		items:    pfirestore.NewCollection[branchProductDocument](provider, branchProductsCollection),
	}, nil
}

func (r *BranchProductRepository) Get(ctx context.Context, branchID, productID string) (domain.BranchProduct, error) {
	if strings.TrimSpace(branchID) == "" || strings.TrimSpace(productID) == "" {
		return domain.BranchProduct{}, errors.New("branch id and product id are required")
	}
	doc, err := r.items.Get(ctx, domain.BranchProductID(branchID, productID))
	if err != nil {
		return domain.BranchProduct{}, err
	}
	return toDomainBranchProduct(doc.ID, doc.Data), nil
}

func (r *BranchProductRepository) ListByBranch(ctx context.Context, branchID string) ([]domain.BranchProduct, error) {
	docs, err := r.items.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("branchId", "==", branchID)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.BranchProduct, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDomainBranchProduct(doc.ID, doc.Data))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *BranchProductRepository) UpsertPrice(ctx context.Context, in repositories.BranchProductUpsert) (domain.BranchProduct, error) {
	if strings.TrimSpace(in.BranchID) == "" || strings.TrimSpace(in.ProductID) == "" {
		return domain.BranchProduct{}, errors.New("branch id and product id are required")
	}
	id := domain.BranchProductID(in.BranchID, in.ProductID)
	at := in.At.UTC()

	var saved branchProductDocument
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.items.Ref(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.OK:
			current, err := r.items.Decode(snap)
			if err != nil {
				return err
			}
			saved = current.Data
			saved.CurrentPrice = in.Price
			saved.LastUpdated = at
			return tx.Update(ref, []firestore.Update{
				{Path: "currentPrice", Value: in.Price},
				{Path: "lastUpdated", Value: at},
			})
		case codes.NotFound:
			saved = branchProductDocument{
				BranchID:     in.BranchID,
				CompanyID:    in.CompanyID,
				ProductID:    in.ProductID,
				CurrentPrice: in.Price,
				Status:       string(domain.StockStatusInStock),
				LastUpdated:  at,
			}
			return tx.Create(ref, saved)
		default:
			return err
		}
	})
	if err != nil {
		return domain.BranchProduct{}, pfirestore.WrapError("branch_products.upsertPrice", err)
	}
	return toDomainBranchProduct(id, saved), nil
}

func (r *BranchProductRepository) UpdateStock(ctx context.Context, branchID, productID string, stock, minStock int, at time.Time) (domain.BranchProduct, error) {
	id := domain.BranchProductID(branchID, productID)
	statusValue := domain.StockStatusFor(stock, minStock)
	if err := r.items.Update(ctx, id, []firestore.Update{
		{Path: "stock", Value: stock},
		{Path: "minStock", Value: minStock},
		{Path: "status", Value: string(statusValue)},
		{Path: "lastUpdated", Value: at.UTC()},
	}); err != nil {
		return domain.BranchProduct{}, err
	}
	return r.Get(ctx, branchID, productID)
}

func toDomainBranchProduct(id string, doc branchProductDocument) domain.BranchProduct {
	return domain.BranchProduct{
		ID:           id,
		BranchID:     doc.BranchID,
		CompanyID:    doc.CompanyID,
		ProductID:    doc.ProductID,
		CurrentPrice: doc.CurrentPrice,
		Stock:        doc.Stock,
		MinStock:     doc.MinStock,
		Status:       domain.StockStatus(doc.Status),
		LastUpdated:  doc.LastUpdated,
	}
}

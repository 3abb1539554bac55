package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	pfirestore "github.com/Heang0/Digital-Label-sub001/internal/platform/firestore"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

const salesSubcollection = "sales"

type saleItemDocument struct {
	ProductID string  `firestore:"productId"`
	Name      string  `firestore:"name"`
	Qty       int     `firestore:"qty"`
	Price     float64 `firestore:"price"`
}

type saleDocument struct {
	BranchID   string             `firestore:"branchId"`
	StaffName  string             `firestore:"staffName,omitempty"`
	StaffEmail string             `firestore:"staffEmail,omitempty"`
	Items      []saleItemDocument `firestore:"items"`
	Total      float64            `firestore:"total"`
	ReceiptNo  string             `firestore:"receiptNo"`
	CreatedAt  time.Time          `firestore:"createdAt"`
}

// SaleRepository persists sales under companies/{companyId}/sales.
type SaleRepository struct {
	provider *pfirestore.Provider
}

func NewSaleRepository(provider *pfirestore.Provider) (*SaleRepository, error) {
	if provider == nil {
		return nil, errors.New("sale repository requires firestore provider")
	}
	return &SaleRepository{provider: provider}, nil
}

func (r *SaleRepository) collection(ctx context.Context, companyID string) (*firestore.CollectionRef, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, errors.New("company id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(companiesCollection).Doc(companyID).Collection(salesSubcollection), nil
}

func (r *SaleRepository) Insert(ctx context.Context, sale domain.Sale) error {
	if strings.TrimSpace(sale.ID) == "" {
		return errors.New("sale id is required")
	}
	coll, err := r.collection(ctx, sale.CompanyID)
	if err != nil {
		return err
	}
	items := make([]saleItemDocument, 0, len(sale.Items))
	for _, item := range sale.Items {
		items = append(items, saleItemDocument(item))
	}
	if _, err := coll.Doc(sale.ID).Create(ctx, saleDocument{
		BranchID:   sale.BranchID,
		StaffName:  sale.StaffName,
		StaffEmail: sale.StaffEmail,
		Items:      items,
		Total:      sale.Total,
		ReceiptNo:  sale.ReceiptNo,
		CreatedAt:  sale.CreatedAt.UTC(),
	}); err != nil {
		return pfirestore.WrapError("sales.insert", err)
	}
	return nil
}

// List returns sales newest first. A branch filter combined with the
// createdAt ordering requires a composite index on (branchId, createdAt).
func (r *SaleRepository) List(ctx context.Context, companyID string, filter repositories.SaleFilter) ([]domain.Sale, error) {
	coll, err := r.collection(ctx, companyID)
	if err != nil {
		return nil, err
	}
	q := coll.Query
	if filter.BranchID != "" {
		q = q.Where("branchId", "==", filter.BranchID)
	}
	q = q.OrderBy("createdAt", firestore.Desc)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	docs, err := pfirestore.QueryDocuments[saleDocument](ctx, q, "sales.list")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Sale, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDomainSale(companyID, doc.ID, doc.Data))
	}
	return out, nil
}

func (r *SaleRepository) DeleteAll(ctx context.Context, companyID, branchID string) (int, error) {
	coll, err := r.collection(ctx, companyID)
	if err != nil {
		return 0, err
	}
	q := coll.Query
	if branchID != "" {
		q = q.Where("branchId", "==", branchID)
	}
	refs, err := q.Select().Documents(ctx).GetAll()
	if err != nil {
		return 0, pfirestore.WrapError("sales.deleteAll", err)
	}
	ops := make([]bulkOp, 0, len(refs))
	for _, snap := range refs {
		ref := snap.Ref
		ops = append(ops, func(bw *firestore.BulkWriter) (*firestore.BulkWriterJob, error) {
			return bw.Delete(ref)
		})
	}
	return runBulk(ctx, r.provider, "sales.deleteAll", ops)
}

func toDomainSale(companyID, id string, doc saleDocument) domain.Sale {
	items := make([]domain.SaleItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.SaleItem(item))
	}
	return domain.Sale{
		ID:         id,
		CompanyID:  companyID,
		BranchID:   doc.BranchID,
		StaffName:  doc.StaffName,
		StaffEmail: doc.StaffEmail,
		Items:      items,
		Total:      doc.Total,
		ReceiptNo:  doc.ReceiptNo,
		CreatedAt:  doc.CreatedAt,
	}
}

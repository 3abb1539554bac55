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
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

const labelsCollection = "labels"

type labelDocument struct {
	CompanyID       string     `firestore:"companyId"`
	BranchID        string     `firestore:"branchId"`
	ProductID       *string    `firestore:"productId"`
	ProductName     string     `firestore:"productName,omitempty"`
	ProductSKU      string     `firestore:"productSku,omitempty"`
	LabelID         string     `firestore:"labelId"`
	LabelCode       string     `firestore:"labelCode,omitempty"`
	Location        string     `firestore:"location,omitempty"`
	BasePrice       float64    `firestore:"basePrice"`
	CurrentPrice    float64    `firestore:"currentPrice"`
	FinalPrice      float64    `firestore:"finalPrice"`
	DiscountPercent *float64   `firestore:"discountPercent,omitempty"`
	DiscountPrice   *float64   `firestore:"discountPrice,omitempty"`
	DiscountEndAt   *time.Time `firestore:"discountEndAt,omitempty"`
	Battery         int        `firestore:"battery"`
	LastSync        time.Time  `firestore:"lastSync"`
	Status          string     `firestore:"status"`
	CreatedAt       time.Time  `firestore:"createdAt"`
	UpdatedAt       time.Time  `firestore:"updatedAt"`
}

// LabelRepository persists digital labels.
type LabelRepository struct {
	labels *pfirestore.Collection[labelDocument]
}

func NewLabelRepository(provider *pfirestore.Provider) (*LabelRepository, error) {
	if provider == nil {
		return nil, errors.New("label repository requires firestore provider")
	}
	return &LabelRepository{labels: pfirestore.NewCollection[labelDocument](provider, labelsCollection)}, nil
}

func (r *LabelRepository) Get(ctx context.Context, id string) (domain.Label, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Label{}, errors.New("label id is required")
	}
	doc, err := r.labels.Get(ctx, id)
	if err != nil {
		return domain.Label{}, err
	}
	return toDomainLabel(doc.ID, doc.Data), nil
}

func (r *LabelRepository) FindByLabelID(ctx context.Context, labelID string) (domain.Label, error) {
	return r.findBy(ctx, "labelId", labelID)
}

func (r *LabelRepository) FindByLabelCode(ctx context.Context, labelCode string) (domain.Label, error) {
	return r.findBy(ctx, "labelCode", labelCode)
}

func (r *LabelRepository) findBy(ctx context.Context, field, value string) (domain.Label, error) {
	doc, err := r.labels.First(ctx, func(q firestore.Query) firestore.Query {
		return q.Where(field, "==", value)
	})
	if err != nil {
		return domain.Label{}, err
	}
	return toDomainLabel(doc.ID, doc.Data), nil
}

func (r *LabelRepository) List(ctx context.Context, companyID, branchID string) ([]domain.Label, error) {
	docs, err := r.labels.Query(ctx, labelScope(companyID, branchID))
	if err != nil {
		return nil, err
	}
	return toDomainLabels(docs), nil
}

func (r *LabelRepository) Insert(ctx context.Context, label domain.Label) error {
	if strings.TrimSpace(label.ID) == "" {
		return errors.New("label id is required")
	}
	ref, err := r.labels.Ref(ctx, label.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, fromDomainLabel(label)); err != nil {
		return pfirestore.WrapError("labels.insert", err)
	}
	return nil
}

func (r *LabelRepository) UpdatePricing(ctx context.Context, id string, update repositories.LabelPriceUpdate) (domain.Label, error) {
	updates := []firestore.Update{
		{Path: "basePrice", Value: update.BasePrice},
		{Path: "currentPrice", Value: update.CurrentPrice},
		{Path: "finalPrice", Value: update.FinalPrice},
		{Path: "status", Value: string(update.Status)},
		{Path: "lastSync", Value: update.LastSync.UTC()},
		{Path: "updatedAt", Value: update.LastSync.UTC()},
	}
	if d := update.Discount; d != nil {
		updates = append(updates,
			firestore.Update{Path: "discountPercent", Value: d.Percent},
			firestore.Update{Path: "discountPrice", Value: d.Price},
		)
		if d.EndAt != nil {
			updates = append(updates, firestore.Update{Path: "discountEndAt", Value: d.EndAt.UTC()})
		} else {
			updates = append(updates, firestore.Update{Path: "discountEndAt", Value: firestore.Delete})
		}
	} else {
		updates = append(updates,
			firestore.Update{Path: "discountPercent", Value: firestore.Delete},
			firestore.Update{Path: "discountPrice", Value: firestore.Delete},
			firestore.Update{Path: "discountEndAt", Value: firestore.Delete},
		)
	}
	if update.ProductName != nil {
		updates = append(updates, firestore.Update{Path: "productName", Value: *update.ProductName})
	}
	if update.ProductSKU != nil {
		updates = append(updates, firestore.Update{Path: "productSku", Value: *update.ProductSKU})
	}
	if err := r.labels.Update(ctx, id, updates); err != nil {
		return domain.Label{}, err
	}
	return r.Get(ctx, id)
}

func (r *LabelRepository) Assign(ctx context.Context, id string, assignment repositories.LabelAssignment) (domain.Label, error) {
	if err := r.labels.Update(ctx, id, []firestore.Update{
		{Path: "productId", Value: assignment.ProductID},
		{Path: "productName", Value: assignment.ProductName},
		{Path: "productSku", Value: assignment.ProductSKU},
		{Path: "basePrice", Value: assignment.BasePrice},
		{Path: "currentPrice", Value: assignment.BasePrice},
		{Path: "finalPrice", Value: assignment.BasePrice},
		{Path: "discountPercent", Value: firestore.Delete},
		{Path: "discountPrice", Value: firestore.Delete},
		{Path: "discountEndAt", Value: firestore.Delete},
		{Path: "status", Value: string(domain.LabelStatusSyncing)},
		{Path: "lastSync", Value: assignment.At.UTC()},
		{Path: "updatedAt", Value: assignment.At.UTC()},
	}); err != nil {
		return domain.Label{}, err
	}
	return r.Get(ctx, id)
}

func (r *LabelRepository) Watch(ctx context.Context, companyID, branchID string, fn func([]domain.Label)) error {
	return r.labels.Watch(ctx, labelScope(companyID, branchID), func(docs []pfirestore.Decoded[labelDocument]) {
		fn(toDomainLabels(docs))
	})
}

func labelScope(companyID, branchID string) pfirestore.QueryBuilder {
	return func(q firestore.Query) firestore.Query {
		q = q.Where("companyId", "==", companyID)
		if branchID != "" {
			q = q.Where("branchId", "==", branchID)
		}
		return q
	}
}

func toDomainLabels(docs []pfirestore.Decoded[labelDocument]) []domain.Label {
	out := make([]domain.Label, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDomainLabel(doc.ID, doc.Data))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LabelID < out[j].LabelID })
	return out
}

func fromDomainLabel(label domain.Label) labelDocument {
	doc := labelDocument{
		CompanyID:       label.CompanyID,
		BranchID:        label.BranchID,
		ProductName:     label.ProductName,
		ProductSKU:      label.ProductSKU,
		LabelID:         label.LabelID,
		LabelCode:       label.LabelCode,
		Location:        label.Location,
		BasePrice:       label.BasePrice,
		CurrentPrice:    label.CurrentPrice,
		FinalPrice:      label.FinalPrice,
		DiscountPercent: label.DiscountPercent,
		DiscountPrice:   label.DiscountPrice,
		DiscountEndAt:   label.DiscountEndAt,
		Battery:         label.Battery,
		LastSync:        label.LastSync.UTC(),
		Status:          string(label.Status),
		CreatedAt:       label.CreatedAt.UTC(),
		UpdatedAt:       label.UpdatedAt.UTC(),
	}
	if label.ProductID != "" {
		productID := label.ProductID
		doc.ProductID = &productID
	}
	return doc
}

func toDomainLabel(id string, doc labelDocument) domain.Label {
	label := domain.Label{
		ID:              id,
		CompanyID:       doc.CompanyID,
		BranchID:        doc.BranchID,
		ProductName:     doc.ProductName,
		ProductSKU:      doc.ProductSKU,
		LabelID:         doc.LabelID,
		LabelCode:       doc.LabelCode,
		Location:        doc.Location,
		BasePrice:       doc.BasePrice,
		CurrentPrice:    doc.CurrentPrice,
		FinalPrice:      doc.FinalPrice,
		DiscountPercent: doc.DiscountPercent,
		DiscountPrice:   doc.DiscountPrice,
		DiscountEndAt:   doc.DiscountEndAt,
		Battery:         doc.Battery,
		LastSync:        doc.LastSync,
		Status:          domain.LabelStatus(doc.Status),
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	if doc.ProductID != nil {
		label.ProductID = *doc.ProductID
	}
	if label.LabelID == "" {
		label.LabelID = id
	}
	return label
}

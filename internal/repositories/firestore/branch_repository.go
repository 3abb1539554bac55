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

const branchesCollection = "branches"

type branchDocument struct {
	CompanyID string    `firestore:"companyId"`
	Name      string    `firestore:"name"`
	Code      string    `firestore:"code"`
	Address   string    `firestore:"address,omitempty"`
	Phone     string    `firestore:"phone,omitempty"`
	Status    string    `firestore:"status"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// BranchRepository persists branches in the top-level branches collection.
type BranchRepository struct {
	branches *pfirestore.Collection[branchDocument]
}

func NewBranchRepository(provider *pfirestore.Provider) (*BranchRepository, error) {
	if provider == nil {
		return nil, errors.New("branch repository requires firestore provider")
	}
	return &BranchRepository{branches: pfirestore.NewCollection[branchDocument](provider, branchesCollection)}, nil
}

func (r *BranchRepository) Get(ctx context.Context, branchID string) (domain.Branch, error) {
	if strings.TrimSpace(branchID) == "" {
		return domain.Branch{}, errors.New("branch id is required")
	}
	doc, err := r.branches.Get(ctx, branchID)
	if err != nil {
		return domain.Branch{}, err
	}
	return toDomainBranch(doc.ID, doc.Data), nil
}

// ListByCompany returns branches ordered by code. Ordering happens in memory
// so the query needs no composite index.
func (r *BranchRepository) ListByCompany(ctx context.Context, companyID string) ([]domain.Branch, error) {
	docs, err := r.branches.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("companyId", "==", companyID)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Branch, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDomainBranch(doc.ID, doc.Data))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *BranchRepository) Save(ctx context.Context, branch domain.Branch) error {
	if strings.TrimSpace(branch.ID) == "" {
		return errors.New("branch id is required")
	}
	return r.branches.Set(ctx, branch.ID, branchDocument{
		CompanyID: branch.CompanyID,
		Name:      branch.Name,
		Code:      branch.Code,
		Address:   branch.Address,
		Phone:     branch.Phone,
		Status:    string(branch.Status),
		CreatedAt: branch.CreatedAt.UTC(),
		UpdatedAt: branch.UpdatedAt.UTC(),
	})
}

func (r *BranchRepository) Delete(ctx context.Context, branchID string) error {
	return r.branches.Delete(ctx, branchID)
}

func toDomainBranch(id string, doc branchDocument) domain.Branch {
	status := domain.BranchStatus(doc.Status)
	if status == "" {
		status = domain.BranchStatusActive
	}
	return domain.Branch{
		ID:        id,
		CompanyID: doc.CompanyID,
		Name:      doc.Name,
		Code:      doc.Code,
		Address:   doc.Address,
		Phone:     doc.Phone,
		Status:    status,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

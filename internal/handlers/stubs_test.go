package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/auth"
	"github.com/Heang0/Digital-Label-sub001/internal/services"
)

var testVendor = domain.User{
	ID:        "vendor-1",
	CompanyID: "company-1",
	Name:      "Vendor",
	Email:     "vendor@example.com",
	Role:      domain.RoleVendor,
}

func withActor(req *http.Request, user domain.User) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), auth.NewIdentity(user)))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

type stubLabelService struct {
	labels     []domain.Label
	label      domain.Label
	err        error
	lastCreate services.CreateLabelCommand
	lastAssign services.AssignLabelCommand
	lastBranch string
}

func (s *stubLabelService) ListLabels(_ context.Context, _ *domain.User, branchID string) ([]domain.Label, error) {
	s.lastBranch = branchID
	return s.labels, s.err
}

func (s *stubLabelService) GetLabel(context.Context, *domain.User, string) (domain.Label, error) {
	return s.label, s.err
}

func (s *stubLabelService) CreateLabel(_ context.Context, cmd services.CreateLabelCommand) (domain.Label, error) {
	s.lastCreate = cmd
	return s.label, s.err
}

func (s *stubLabelService) AssignLabel(_ context.Context, cmd services.AssignLabelCommand) (domain.Label, error) {
	s.lastAssign = cmd
	return s.label, s.err
}

func (s *stubLabelService) WatchLabels(ctx context.Context, _ *domain.User, _ string, fn func([]domain.Label)) error {
	if s.err != nil {
		return s.err
	}
	fn(s.labels)
	return nil
}

type stubPricingEngine struct {
	label         domain.Label
	result        services.PropagationResult
	err           error
	lastApply     services.ApplyDiscountCommand
	lastClear     services.ClearDiscountCommand
	lastPropagate services.PropagatePriceCommand
}

func (s *stubPricingEngine) ApplyDiscount(_ context.Context, cmd services.ApplyDiscountCommand) (domain.Label, error) {
	s.lastApply = cmd
	return s.label, s.err
}

func (s *stubPricingEngine) ClearDiscount(_ context.Context, cmd services.ClearDiscountCommand) (domain.Label, error) {
	s.lastClear = cmd
	return s.label, s.err
}

func (s *stubPricingEngine) PropagatePriceChange(_ context.Context, cmd services.PropagatePriceCommand) (services.PropagationResult, error) {
	s.lastPropagate = cmd
	return s.result, s.err
}

type stubResolver struct {
	label   domain.Label
	err     error
	segment string
}

func (s *stubResolver) Resolve(_ context.Context, segment string) (domain.Label, error) {
	s.segment = segment
	return s.label, s.err
}

type stubSalesService struct {
	sales      []domain.Sale
	sale       domain.Sale
	removed    int
	err        error
	lastFilter services.SaleListFilter
	lastRecord services.RecordSaleCommand
}

func (s *stubSalesService) ListSales(_ context.Context, _ *domain.User, filter services.SaleListFilter) ([]domain.Sale, error) {
	s.lastFilter = filter
	return s.sales, s.err
}

func (s *stubSalesService) RecordSale(_ context.Context, cmd services.RecordSaleCommand) (domain.Sale, error) {
	s.lastRecord = cmd
	return s.sale, s.err
}

func (s *stubSalesService) ClearSales(context.Context, *domain.User, string) (int, error) {
	return s.removed, s.err
}

var (
	_ services.LabelService  = (*stubLabelService)(nil)
	_ services.PricingEngine = (*stubPricingEngine)(nil)
	_ services.LabelResolver = (*stubResolver)(nil)
	_ services.SalesService  = (*stubSalesService)(nil)
)

package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/services"
)

// stubCatalogService implements the image and preview paths; other methods
// panic through the nil embedded interface.
type stubCatalogService struct {
	services.CatalogService
	product     domain.Product
	preview     services.CodePreview
	err         error
	lastUpload  services.UploadProductImageCommand
	lastPreview string
	lastDelete  services.DeleteCategoryCommand
}

func (s *stubCatalogService) UploadProductImage(_ context.Context, cmd services.UploadProductImageCommand) (domain.Product, error) {
	s.lastUpload = cmd
	return s.product, s.err
}

func (s *stubCatalogService) PreviewProductCode(_ context.Context, _ *domain.User, category string) (services.CodePreview, error) {
	s.lastPreview = category
	return s.preview, s.err
}

func (s *stubCatalogService) DeleteCategory(_ context.Context, cmd services.DeleteCategoryCommand) error {
	s.lastDelete = cmd
	return s.err
}

func newCatalogRouter(svc *stubCatalogService, opts ...CatalogOption) chi.Router {
	h := NewCatalogHandlers(svc, opts...)
	r := chi.NewRouter()
	r.Route("/products", h.ProductRoutes)
	r.Route("/categories", h.CategoryRoutes)
	return r
}

func TestCatalogHandlersUploadImage(t *testing.T) {
	svc := &stubCatalogService{product: domain.Product{ID: "p-1", ImageURL: "https://cdn.example.com/p-1.png"}}
	req := httptest.NewRequest(http.MethodPut, "/products/p-1/image", bytes.NewReader([]byte{0x89, 'P', 'N', 'G'}))
	req.Header.Set("Content-Type", "image/png; charset=binary")
	rr := httptest.NewRecorder()
	newCatalogRouter(svc).ServeHTTP(rr, withActor(req, testVendor))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastUpload.ContentType != "image/png" || svc.lastUpload.ProductID != "p-1" || len(svc.lastUpload.Data) != 4 {
		t.Fatalf("unexpected upload %+v", svc.lastUpload)
	}
	if got := decodeBody(t, rr)["imageUrl"]; got != "https://cdn.example.com/p-1.png" {
		t.Fatalf("expected image url, got %v", got)
	}
}

func TestCatalogHandlersUploadImageTooLarge(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/products/p-1/image", bytes.NewReader(make([]byte, 11)))
	req.Header.Set("Content-Type", "image/jpeg")
	rr := httptest.NewRecorder()
	newCatalogRouter(&stubCatalogService{}, WithMaxImageBytes(10)).ServeHTTP(rr, withActor(req, testVendor))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

func TestCatalogHandlersUploadImageDisabled(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/products/p-1/image", bytes.NewReader([]byte("x")))
	req.Header.Set("Content-Type", "image/jpeg")
	rr := httptest.NewRecorder()
	newCatalogRouter(&stubCatalogService{err: services.ErrCatalogImagesDisabled}).ServeHTTP(rr, withActor(req, testVendor))

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rr.Code)
	}
}

func TestCatalogHandlersPreviewCode(t *testing.T) {
	svc := &stubCatalogService{preview: services.CodePreview{SKU: "BEV-0007", ProductCode: "P0007"}}
	rr := httptest.NewRecorder()
	newCatalogRouter(svc).ServeHTTP(rr, withActor(httptest.NewRequest(http.MethodGet, "/products/code-preview?category=Beverages", nil), testVendor))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["sku"] != "BEV-0007" || body["productCode"] != "P0007" || svc.lastPreview != "Beverages" {
		t.Fatalf("unexpected preview %v (category %q)", body, svc.lastPreview)
	}
}

func TestCatalogHandlersDeleteCategoryReassign(t *testing.T) {
	svc := &stubCatalogService{}
	rr := httptest.NewRecorder()
	newCatalogRouter(svc).ServeHTTP(rr, withActor(httptest.NewRequest(http.MethodDelete, "/categories/cat-1?reassign=General", nil), testVendor))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if svc.lastDelete.CategoryID != "cat-1" || svc.lastDelete.ReassignTo != "General" {
		t.Fatalf("unexpected command %+v", svc.lastDelete)
	}
}

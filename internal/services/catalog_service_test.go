package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories/memory"
)

type stubImageStore struct {
	calls int
	url   string
	err   error
}

func (s *stubImageStore) PutProductImage(_ context.Context, companyID, productID, _ string, _ []byte) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if s.url != "" {
		return s.url, nil
	}
	return "https://images.example.com/" + companyID + "/" + productID, nil
}

func newTestCatalogService(t *testing.T, store *memory.Registry, counters CounterService, images ImageStore) CatalogService {
	t.Helper()
	svc, err := NewCatalogService(CatalogServiceDeps{
		Products:      store.Products(),
		Categories:    store.Categories(),
		Counters:      counters,
		Images:        images,
		ImageMaxBytes: 16,
		Clock:         func() time.Time { return testNow },
		IDGenerator:   sequentialIDs("prod"),
	})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	return svc
}

func TestCatalogServiceCreateProductSharesOneNumber(t *testing.T) {
	store := memory.NewRegistry()
	svc := newTestCatalogService(t, store, memoryCounter(t, store), nil)
	ctx := context.Background()

	preview, err := svc.PreviewProductCode(ctx, vendorUser(), "Beverages")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.SKU != "SKU-000001" || preview.ProductCode != "PRD-BEV-0001" {
		t.Fatalf("unexpected preview: %+v", preview)
	}

	product, err := svc.CreateProduct(ctx, CreateProductCommand{Actor: vendorUser(), Name: " Cola ", Category: "Beverages", BasePrice: 1.255})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if product.SKU != preview.SKU || product.ProductCode != preview.ProductCode {
		t.Fatalf("created codes %s/%s differ from preview %+v", product.SKU, product.ProductCode, preview)
	}
	if product.Name != "Cola" || product.BasePrice != 1.26 || product.CompanyID != "c1" {
		t.Fatalf("unexpected product: %+v", product)
	}

	next, err := svc.CreateProduct(ctx, CreateProductCommand{Actor: vendorUser(), Name: "Tea", Category: "Hot Drinks", BasePrice: 3})
	if err != nil {
		t.Fatalf("create second product: %v", err)
	}
	if next.SKU != "SKU-000002" || next.ProductCode != "PRD-HOT-0002" {
		t.Fatalf("unexpected second codes: %s %s", next.SKU, next.ProductCode)
	}
}

func TestCatalogServiceCreateProductValidation(t *testing.T) {
	store := memory.NewRegistry()
	svc := newTestCatalogService(t, store, memoryCounter(t, store), nil)
	ctx := context.Background()

	if _, err := svc.CreateProduct(ctx, CreateProductCommand{Actor: vendorUser(), Name: " ", BasePrice: 2}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid input for blank name, got %v", err)
	}
	if _, err := svc.CreateProduct(ctx, CreateProductCommand{Actor: vendorUser(), Name: "Bread", BasePrice: -1}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid input for negative price, got %v", err)
	}
	staff := staffUser("B1", domain.Permissions{CanCreateProducts: true})
	if _, err := svc.CreateProduct(ctx, CreateProductCommand{Actor: staff, Name: "Bread", BasePrice: 2}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected staff denial, got %v", err)
	}
	if next, _ := store.Counters().Peek(ctx, "c1", domain.CounterProductNumber); next != 1 {
		t.Fatalf("rejected creates must not consume numbers, next=%d", next)
	}
}

func TestCatalogServiceCounterFailureCreatesNothing(t *testing.T) {
	store := memory.NewRegistry()
	svc := newTestCatalogService(t, store, unavailableCounter(), nil)
	ctx := context.Background()

	if _, err := svc.CreateProduct(ctx, CreateProductCommand{Actor: vendorUser(), Name: "Bread", BasePrice: 2}); !errors.Is(err, ErrCounterUnavailable) {
		t.Fatalf("expected counter unavailable, got %v", err)
	}
	products, _ := store.Products().ListByCompany(ctx, "c1")
	if len(products) != 0 {
		t.Fatalf("expected no products, got %+v", products)
	}
}

func TestCatalogServiceUpdateProductKeepsCodes(t *testing.T) {
	store := memory.NewRegistry()
	svc := newTestCatalogService(t, store, memoryCounter(t, store), nil)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductCommand{Actor: vendorUser(), Name: "Cheese", Category: "Dairy", BasePrice: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, err := svc.UpdateProduct(ctx, UpdateProductCommand{Actor: vendorUser(), ProductID: product.ID, Category: ptr("Deli"), BasePrice: ptr(4.5)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ProductCode != product.ProductCode || updated.SKU != product.SKU {
		t.Fatalf("codes must not change: %+v", updated)
	}
	if updated.Category != "Deli" || updated.BasePrice != 4.5 || updated.Name != "Cheese" {
		t.Fatalf("unexpected update: %+v", updated)
	}

	outsider := &User{ID: "x", CompanyID: "c2", Role: domain.RoleVendor}
	if _, err := svc.UpdateProduct(ctx, UpdateProductCommand{Actor: outsider, ProductID: product.ID, Name: ptr("Stolen")}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected cross-tenant denial, got %v", err)
	}
	if err := svc.DeleteProduct(ctx, vendorUser(), product.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteProduct(ctx, vendorUser(), product.ID); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestCatalogServiceUploadProductImage(t *testing.T) {
	store := seedStore()
	images := &stubImageStore{}
	svc := newTestCatalogService(t, store, memoryCounter(t, store), images)
	ctx := context.Background()

	if _, err := svc.UploadProductImage(ctx, UploadProductImageCommand{Actor: vendorUser(), ProductID: "P1", ContentType: "text/plain", Data: []byte("x")}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected content type rejection, got %v", err)
	}
	if _, err := svc.UploadProductImage(ctx, UploadProductImageCommand{Actor: vendorUser(), ProductID: "P1", ContentType: "image/png", Data: []byte(strings.Repeat("x", 17))}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected size rejection, got %v", err)
	}
	if images.calls != 0 {
		t.Fatalf("rejected uploads must not reach the store")
	}

	product, err := svc.UploadProductImage(ctx, UploadProductImageCommand{Actor: vendorUser(), ProductID: "P1", ContentType: "image/png", Data: []byte("png")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if product.ImageURL != "https://images.example.com/c1/P1" {
		t.Fatalf("unexpected image url %q", product.ImageURL)
	}

	disabled := newTestCatalogService(t, store, memoryCounter(t, store), nil)
	if _, err := disabled.UploadProductImage(ctx, UploadProductImageCommand{Actor: vendorUser(), ProductID: "P1", ContentType: "image/png", Data: []byte("png")}); !errors.Is(err, ErrCatalogImagesDisabled) {
		t.Fatalf("expected images disabled, got %v", err)
	}
}

func TestCatalogServiceCategories(t *testing.T) {
	store := memory.NewRegistry()
	logger := &recordingLogger{}
	svc, err := NewCatalogService(CatalogServiceDeps{
		Products:    store.Products(),
		Categories:  store.Categories(),
		Counters:    memoryCounter(t, store),
		Clock:       func() time.Time { return testNow },
		IDGenerator: sequentialIDs("cat"),
		Logger:      logger.log,
	})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	ctx := context.Background()

	dairy, err := svc.CreateCategory(ctx, UpsertCategoryCommand{Actor: vendorUser(), Name: "Dairy", Color: "#fff"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if dairy.Number != 1 {
		t.Fatalf("expected category number 1, got %d", dairy.Number)
	}
	if _, err := svc.CreateCategory(ctx, UpsertCategoryCommand{Actor: vendorUser(), Name: "  "}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	_ = store.Products().Save(ctx, domain.Product{ID: "P1", CompanyID: "c1", Name: "Milk", Category: "Dairy", BasePrice: 1})
	_ = store.Products().Save(ctx, domain.Product{ID: "P2", CompanyID: "c1", Name: "Yogurt", Category: "Dairy", BasePrice: 1})

	if err := svc.DeleteCategory(ctx, DeleteCategoryCommand{Actor: vendorUser(), CategoryID: dairy.ID, ReassignTo: "Chilled"}); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	for _, id := range []string{"P1", "P2"} {
		product, _ := store.Products().Get(ctx, id)
		if product.Category != "Chilled" {
			t.Fatalf("product %s not reassigned: %+v", id, product)
		}
	}
	if len(logger.events) != 1 || logger.events[0] != "catalog.category_reassigned" {
		t.Fatalf("expected reassignment logged, got %v", logger.events)
	}
	if err := svc.DeleteCategory(ctx, DeleteCategoryCommand{Actor: vendorUser(), CategoryID: dairy.ID}); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected category not found, got %v", err)
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/policy"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

var (
	// ErrCatalogInvalidInput signals a malformed product or category command.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCategoryNotFound indicates the category does not exist in the tenant.
	ErrCategoryNotFound = errors.New("category: not found")
	// ErrCatalogImagesDisabled indicates no image store is configured.
	ErrCatalogImagesDisabled = errors.New("catalog: image upload disabled")
)

// CatalogServiceDeps bundles collaborators for the catalog service.
type CatalogServiceDeps struct {
	Products      repositories.ProductRepository
	Categories    repositories.CategoryRepository
	Counters      CounterService
	Images        ImageStore
	ImageMaxBytes int
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        EventLogger
}

type catalogService struct {
	products      repositories.ProductRepository
	categories    repositories.CategoryRepository
	counters      CounterService
	images        ImageStore
	imageMaxBytes int
	now           func() time.Time
	newID         func() string
	logger        EventLogger
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService constructs the catalog service. Images is optional.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	switch {
	case deps.Products == nil:
		return nil, errors.New("catalog service: product repository is required")
	case deps.Categories == nil:
		return nil, errors.New("catalog service: category repository is required")
	case deps.Counters == nil:
		return nil, errors.New("catalog service: counter service is required")
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	maxBytes := deps.ImageMaxBytes
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &catalogService{
		products:      deps.Products,
		categories:    deps.Categories,
		counters:      deps.Counters,
		images:        deps.Images,
		imageMaxBytes: maxBytes,
		now:           clockOrNow(deps.Clock),
		newID:         newID,
		logger:        loggerOrNoop(deps.Logger),
	}, nil
}

func (s *catalogService) ListProducts(ctx context.Context, actor *User) ([]Product, error) {
	if err := authorize(actor, policy.ActionProductView, policy.Resource{CompanyID: tenantOf(actor)}); err != nil {
		return nil, err
	}
	products, err := s.products.ListByCompany(ctx, actor.CompanyID)
	if err != nil {
		return nil, translateRepoError(err, nil, "")
	}
	return products, nil
}

// CreateProduct reserves one product number, used for both SKU and product
// code, before writing. A failed reservation creates nothing.
func (s *catalogService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error) {
	if err := authorize(cmd.Actor, policy.ActionCatalogManage, policy.Resource{CompanyID: tenantOf(cmd.Actor)}); err != nil {
		return Product{}, err
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if !domain.ValidPrice(cmd.BasePrice) {
		return Product{}, fmt.Errorf("%w: base price must be a positive amount", ErrCatalogInvalidInput)
	}
	companyID := cmd.Actor.CompanyID
	if companyID == "" {
		return Product{}, fmt.Errorf("%w: actor has no company", ErrCatalogInvalidInput)
	}
	category := strings.TrimSpace(cmd.Category)

	seq, err := s.counters.NextSequence(ctx, companyID, domain.CounterProductNumber)
	if err != nil {
		return Product{}, err
	}
	now := s.now()
	product := Product{
		ID:          s.newID(),
		CompanyID:   companyID,
		Name:        name,
		SKU:         domain.FormatSKU(seq),
		ProductCode: domain.FormatProductCode(category, seq),
		Category:    category,
		BasePrice:   domain.RoundPrice(cmd.BasePrice),
		Description: strings.TrimSpace(cmd.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Save(ctx, product); err != nil {
		return Product{}, translateRepoError(err, nil, "")
	}
	return product, nil
}

// UpdateProduct changes catalog fields. SKU and product code are immutable.
func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error) {
	product, err := s.loadProduct(ctx, cmd.Actor, cmd.ProductID)
	if err != nil {
		return Product{}, err
	}
	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return Product{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
		}
		product.Name = name
	}
	if cmd.Category != nil {
		product.Category = strings.TrimSpace(*cmd.Category)
	}
	if cmd.BasePrice != nil {
		if !domain.ValidPrice(*cmd.BasePrice) {
			return Product{}, fmt.Errorf("%w: base price must be a positive amount", ErrCatalogInvalidInput)
		}
		product.BasePrice = domain.RoundPrice(*cmd.BasePrice)
	}
	if cmd.Description != nil {
		product.Description = strings.TrimSpace(*cmd.Description)
	}
	product.UpdatedAt = s.now()
	if err := s.products.Save(ctx, product); err != nil {
		return Product{}, translateRepoError(err, nil, "")
	}
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, actor *User, productID string) error {
	product, err := s.loadProduct(ctx, actor, productID)
	if err != nil {
		return err
	}
	return translateRepoError(s.products.Delete(ctx, product.ID), ErrProductNotFound, product.ID)
}

func (s *catalogService) UploadProductImage(ctx context.Context, cmd UploadProductImageCommand) (Product, error) {
	if s.images == nil {
		return Product{}, ErrCatalogImagesDisabled
	}
	if len(cmd.Data) == 0 {
		return Product{}, fmt.Errorf("%w: image is empty", ErrCatalogInvalidInput)
	}
	if len(cmd.Data) > s.imageMaxBytes {
		return Product{}, fmt.Errorf("%w: image exceeds %d bytes", ErrCatalogInvalidInput, s.imageMaxBytes)
	}
	if !strings.HasPrefix(cmd.ContentType, "image/") {
		return Product{}, fmt.Errorf("%w: content type %q is not an image", ErrCatalogInvalidInput, cmd.ContentType)
	}
	product, err := s.loadProduct(ctx, cmd.Actor, cmd.ProductID)
	if err != nil {
		return Product{}, err
	}
	url, err := s.images.PutProductImage(ctx, product.CompanyID, product.ID, cmd.ContentType, cmd.Data)
	if err != nil {
		s.logger(ctx, "catalog.image_upload_failed", map[string]any{"productId": product.ID, "error": err.Error()})
		return Product{}, err
	}
	product.ImageURL = url
	product.UpdatedAt = s.now()
	if err := s.products.Save(ctx, product); err != nil {
		return Product{}, translateRepoError(err, nil, "")
	}
	return product, nil
}

// PreviewProductCode shows the codes the next product would get without
// reserving a number. Concurrent creates may consume it first.
func (s *catalogService) PreviewProductCode(ctx context.Context, actor *User, category string) (CodePreview, error) {
	if err := authorize(actor, policy.ActionCatalogManage, policy.Resource{CompanyID: tenantOf(actor)}); err != nil {
		return CodePreview{}, err
	}
	seq, err := s.counters.Peek(ctx, actor.CompanyID, domain.CounterProductNumber)
	if err != nil {
		return CodePreview{}, err
	}
	return CodePreview{
		SKU:         domain.FormatSKU(seq),
		ProductCode: domain.FormatProductCode(strings.TrimSpace(category), seq),
	}, nil
}

func (s *catalogService) ListCategories(ctx context.Context, actor *User) ([]Category, error) {
	if err := authorize(actor, policy.ActionProductView, policy.Resource{CompanyID: tenantOf(actor)}); err != nil {
		return nil, err
	}
	categories, err := s.categories.ListByCompany(ctx, actor.CompanyID)
	if err != nil {
		return nil, translateRepoError(err, nil, "")
	}
	return categories, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error) {
	if err := authorize(cmd.Actor, policy.ActionCategoriesManage, policy.Resource{CompanyID: tenantOf(cmd.Actor)}); err != nil {
		return Category{}, err
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrCatalogInvalidInput)
	}
	if cmd.Actor.CompanyID == "" {
		return Category{}, fmt.Errorf("%w: actor has no company", ErrCatalogInvalidInput)
	}
	seq, err := s.counters.NextSequence(ctx, cmd.Actor.CompanyID, domain.CounterCategoryNumber)
	if err != nil {
		return Category{}, err
	}
	category := Category{
		ID:          s.newID(),
		CompanyID:   cmd.Actor.CompanyID,
		Name:        name,
		Description: strings.TrimSpace(cmd.Description),
		Color:       strings.TrimSpace(cmd.Color),
		Number:      seq,
		CreatedAt:   s.now(),
	}
	if err := s.categories.Save(ctx, category); err != nil {
		return Category{}, translateRepoError(err, nil, "")
	}
	return category, nil
}

// UpdateCategory renames a category. Products keep the old name; callers
// wanting to move them use DeleteCategory with ReassignTo or edit products.
func (s *catalogService) UpdateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error) {
	category, err := s.loadCategory(ctx, cmd.Actor, cmd.CategoryID)
	if err != nil {
		return Category{}, err
	}
	if name := strings.TrimSpace(cmd.Name); name != "" {
		category.Name = name
	}
	category.Description = strings.TrimSpace(cmd.Description)
	category.Color = strings.TrimSpace(cmd.Color)
	if err := s.categories.Save(ctx, category); err != nil {
		return Category{}, translateRepoError(err, nil, "")
	}
	return category, nil
}

// DeleteCategory removes the category. Products referencing it by name are
// left as they are unless ReassignTo is set.
func (s *catalogService) DeleteCategory(ctx context.Context, cmd DeleteCategoryCommand) error {
	category, err := s.loadCategory(ctx, cmd.Actor, cmd.CategoryID)
	if err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, category.ID); err != nil {
		return translateRepoError(err, ErrCategoryNotFound, category.ID)
	}
	target := strings.TrimSpace(cmd.ReassignTo)
	if target == "" || target == category.Name {
		return nil
	}
	moved, err := s.products.RenameCategory(ctx, category.CompanyID, category.Name, target, s.now())
	if err != nil {
		return translateRepoError(err, nil, "")
	}
	s.logger(ctx, "catalog.category_reassigned", map[string]any{
		"categoryId": category.ID,
		"from":       category.Name,
		"to":         target,
		"products":   moved,
	})
	return nil
}

func (s *catalogService) loadProduct(ctx context.Context, actor *User, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return Product{}, translateRepoError(err, ErrProductNotFound, productID)
	}
	if err := authorize(actor, policy.ActionCatalogManage, policy.Resource{CompanyID: product.CompanyID}); err != nil {
		return Product{}, err
	}
	return product, nil
}

func (s *catalogService) loadCategory(ctx context.Context, actor *User, categoryID string) (Category, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return Category{}, fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	category, err := s.categories.Get(ctx, categoryID)
	if err != nil {
		return Category{}, translateRepoError(err, ErrCategoryNotFound, categoryID)
	}
	if err := authorize(actor, policy.ActionCategoriesManage, policy.Resource{CompanyID: category.CompanyID}); err != nil {
		return Category{}, err
	}
	return category, nil
}

package handlers

import (
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Heang0/Digital-Label-sub001/internal/platform/httpx"
	"github.com/Heang0/Digital-Label-sub001/internal/services"
)

const defaultMaxImageBytes = 5 << 20

// CatalogHandlers exposes product and category management.
type CatalogHandlers struct {
	catalog       services.CatalogService
	maxImageBytes int64
}

// CatalogOption customises CatalogHandlers.
type CatalogOption func(*CatalogHandlers)

// WithMaxImageBytes bounds how much of an image upload body is read.
func WithMaxImageBytes(limit int64) CatalogOption {
	return func(h *CatalogHandlers) {
		if limit > 0 {
			h.maxImageBytes = limit
		}
	}
}

// NewCatalogHandlers constructs catalog handlers.
func NewCatalogHandlers(catalog services.CatalogService, opts ...CatalogOption) *CatalogHandlers {
	h := &CatalogHandlers{catalog: catalog, maxImageBytes: defaultMaxImageBytes}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// ProductRoutes registers /products endpoints.
func (h *CatalogHandlers) ProductRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Post("/", h.createProduct)
	r.Get("/code-preview", h.previewCode)
	r.Patch("/{productID}", h.updateProduct)
	r.Delete("/{productID}", h.deleteProduct)
	r.Put("/{productID}/image", h.uploadImage)
}

// CategoryRoutes registers /categories endpoints.
func (h *CatalogHandlers) CategoryRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listCategories)
	r.Post("/", h.createCategory)
	r.Patch("/{categoryID}", h.updateCategory)
	r.Delete("/{categoryID}", h.deleteCategory)
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	products, err := h.catalog.ListProducts(r.Context(), actor)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	items := make([]productPayload, 0, len(products))
	for _, p := range products {
		items = append(items, buildProductPayload(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type createProductRequest struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	BasePrice   float64 `json:"basePrice"`
	Description string  `json:"description"`
}

func (h *CatalogHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createProductRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	product, err := h.catalog.CreateProduct(r.Context(), services.CreateProductCommand{
		Actor:       actor,
		Name:        cleanText(req.Name),
		Category:    cleanText(req.Category),
		BasePrice:   req.BasePrice,
		Description: cleanText(req.Description),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, buildProductPayload(product))
}

type updateProductRequest struct {
	Name        *string  `json:"name"`
	Category    *string  `json:"category"`
	BasePrice   *float64 `json:"basePrice"`
	Description *string  `json:"description"`
}

func (h *CatalogHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateProductRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == nil && req.Category == nil && req.BasePrice == nil && req.Description == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "no editable fields provided", http.StatusBadRequest))
		return
	}
	product, err := h.catalog.UpdateProduct(r.Context(), services.UpdateProductCommand{
		Actor:       actor,
		ProductID:   chi.URLParam(r, "productID"),
		Name:        cleanTextPtr(req.Name),
		Category:    cleanTextPtr(req.Category),
		BasePrice:   req.BasePrice,
		Description: cleanTextPtr(req.Description),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildProductPayload(product))
}

func (h *CatalogHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(r.Context(), actor, chi.URLParam(r, "productID")); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandlers) uploadImage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "a valid Content-Type header is required", http.StatusBadRequest))
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, h.maxImageBytes+1))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if int64(len(data)) > h.maxImageBytes {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "image exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}
	product, err := h.catalog.UploadProductImage(ctx, services.UploadProductImageCommand{
		Actor:       actor,
		ProductID:   chi.URLParam(r, "productID"),
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildProductPayload(product))
}

func (h *CatalogHandlers) previewCode(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	preview, err := h.catalog.PreviewProductCode(r.Context(), actor, r.URL.Query().Get("category"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sku": preview.SKU, "productCode": preview.ProductCode})
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	categories, err := h.catalog.ListCategories(r.Context(), actor)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	items := make([]categoryPayload, 0, len(categories))
	for _, c := range categories {
		items = append(items, buildCategoryPayload(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

func (h *CatalogHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	h.upsertCategory(w, r, "")
}

func (h *CatalogHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	h.upsertCategory(w, r, chi.URLParam(r, "categoryID"))
}

func (h *CatalogHandlers) upsertCategory(w http.ResponseWriter, r *http.Request, categoryID string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req categoryRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	cmd := services.UpsertCategoryCommand{
		Actor:       actor,
		CategoryID:  categoryID,
		Name:        cleanText(req.Name),
		Description: cleanText(req.Description),
		Color:       strings.TrimSpace(req.Color),
	}
	var (
		category services.Category
		err      error
		status   = http.StatusOK
	)
	if categoryID == "" {
		category, err = h.catalog.CreateCategory(r.Context(), cmd)
		status = http.StatusCreated
	} else {
		category, err = h.catalog.UpdateCategory(r.Context(), cmd)
	}
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, status, buildCategoryPayload(category))
}

func (h *CatalogHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	err := h.catalog.DeleteCategory(r.Context(), services.DeleteCategoryCommand{
		Actor:      actor,
		CategoryID: chi.URLParam(r, "categoryID"),
		ReassignTo: cleanText(r.URL.Query().Get("reassign")),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}


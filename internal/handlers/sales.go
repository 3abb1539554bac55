package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Heang0/Digital-Label-sub001/internal/platform/httpx"
	"github.com/Heang0/Digital-Label-sub001/internal/services"
)

const (
	defaultSalesLimit = 50
	maxSalesLimit     = 500
)

// SalesHandlers exposes receipt recording and the sales report.
type SalesHandlers struct {
	sales services.SalesService
}

// NewSalesHandlers constructs sales handlers.
func NewSalesHandlers(sales services.SalesService) *SalesHandlers {
	return &SalesHandlers{sales: sales}
}

// Routes registers /sales endpoints.
func (h *SalesHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listSales)
	r.Post("/", h.recordSale)
	r.Delete("/", h.clearSales)
}

func (h *SalesHandlers) listSales(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultSalesLimit, maxSalesLimit)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	sales, err := h.sales.ListSales(r.Context(), actor, services.SaleListFilter{
		BranchID: strings.TrimSpace(r.URL.Query().Get("branchId")),
		Limit:    limit,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	items := make([]salePayload, 0, len(sales))
	for _, s := range sales {
		items = append(items, buildSalePayload(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type recordSaleRequest struct {
	BranchID string            `json:"branchId"`
	Items    []saleItemPayload `json:"items"`
}

func (h *SalesHandlers) recordSale(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req recordSaleRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	items := make([]services.SaleItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.SaleItem{
			ProductID: strings.TrimSpace(item.ProductID),
			Name:      cleanText(item.Name),
			Qty:       item.Qty,
			Price:     item.Price,
		})
	}
	sale, err := h.sales.RecordSale(r.Context(), services.RecordSaleCommand{
		Actor:    actor,
		BranchID: strings.TrimSpace(req.BranchID),
		Items:    items,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, buildSalePayload(sale))
}

func (h *SalesHandlers) clearSales(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	removed, err := h.sales.ClearSales(r.Context(), actor, strings.TrimSpace(r.URL.Query().Get("branchId")))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

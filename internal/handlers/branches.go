package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/services"
)

// BranchHandlers exposes branch management and per-branch price/stock.
type BranchHandlers struct {
	branches services.BranchService
}

// NewBranchHandlers constructs branch handlers.
func NewBranchHandlers(branches services.BranchService) *BranchHandlers {
	return &BranchHandlers{branches: branches}
}

// Routes registers /branches endpoints.
func (h *BranchHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listBranches)
	r.Post("/", h.createBranch)
	r.Patch("/{branchID}", h.updateBranch)
	r.Delete("/{branchID}", h.deleteBranch)
	r.Get("/{branchID}/products", h.listBranchProducts)
	r.Put("/{branchID}/products/{productID}", h.updateBranchProduct)
}

func (h *BranchHandlers) listBranches(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	branches, err := h.branches.ListBranches(r.Context(), actor)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	items := make([]branchPayload, 0, len(branches))
	for _, b := range branches {
		items = append(items, buildBranchPayload(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type branchRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Status  string `json:"status"`
}

func (h *BranchHandlers) createBranch(w http.ResponseWriter, r *http.Request) {
	h.upsertBranch(w, r, "")
}

func (h *BranchHandlers) updateBranch(w http.ResponseWriter, r *http.Request) {
	h.upsertBranch(w, r, chi.URLParam(r, "branchID"))
}

func (h *BranchHandlers) upsertBranch(w http.ResponseWriter, r *http.Request, branchID string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req branchRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	cmd := services.UpsertBranchCommand{
		Actor:    actor,
		BranchID: branchID,
		Name:     cleanText(req.Name),
		Address:  cleanText(req.Address),
		Phone:    strings.TrimSpace(req.Phone),
		Status:   domain.BranchStatus(strings.ToLower(strings.TrimSpace(req.Status))),
	}
	var (
		branch services.Branch
		err    error
		status = http.StatusOK
	)
	if branchID == "" {
		branch, err = h.branches.CreateBranch(r.Context(), cmd)
		status = http.StatusCreated
	} else {
		branch, err = h.branches.UpdateBranch(r.Context(), cmd)
	}
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, status, buildBranchPayload(branch))
}

func (h *BranchHandlers) deleteBranch(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.branches.DeleteBranch(r.Context(), actor, chi.URLParam(r, "branchID")); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BranchHandlers) listBranchProducts(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	records, err := h.branches.ListBranchProducts(r.Context(), actor, chi.URLParam(r, "branchID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	items := make([]branchProductPayload, 0, len(records))
	for _, bp := range records {
		items = append(items, buildBranchProductPayload(bp))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type branchProductRequest struct {
	Price    *float64 `json:"price"`
	Stock    *int     `json:"stock"`
	MinStock *int     `json:"minStock"`
}

func (h *BranchHandlers) updateBranchProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req branchProductRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	record, err := h.branches.UpdateBranchProduct(r.Context(), services.UpdateBranchProductCommand{
		Actor:     actor,
		BranchID:  chi.URLParam(r, "branchID"),
		ProductID: chi.URLParam(r, "productID"),
		Price:     req.Price,
		Stock:     req.Stock,
		MinStock:  req.MinStock,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildBranchProductPayload(record))
}

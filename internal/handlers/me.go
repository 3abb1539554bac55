package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Heang0/Digital-Label-sub001/internal/policy"
)

// profileCapabilities are the actions the dashboard toggles controls for.
var profileCapabilities = []policy.Action{
	policy.ActionLabelEdit,
	policy.ActionProductEdit,
	policy.ActionStockUpdate,
	policy.ActionSalesView,
	policy.ActionSalesCreate,
	policy.ActionSalesClear,
	policy.ActionCatalogManage,
	policy.ActionCategoriesManage,
	policy.ActionBranchesManage,
}

// MeHandlers exposes the caller's own profile.
type MeHandlers struct{}

// NewMeHandlers constructs the /me handlers.
func NewMeHandlers() *MeHandlers { return &MeHandlers{} }

// Routes wires the /me endpoints onto the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	r.Get("/", h.getProfile)
}

// getProfile returns the profile plus the actions the caller may take within
// their own branch, so clients can hide controls the API would refuse.
func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	home := policy.Resource{CompanyID: actor.CompanyID, BranchID: actor.BranchID}
	allowed := make(map[string]bool, len(profileCapabilities))
	for _, action := range profileCapabilities {
		allowed[string(action)] = policy.CanPerform(actor, action, home)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile":      buildUserPayload(*actor),
		"branchScope":  policy.BranchScope(actor),
		"capabilities": allowed,
	})
}

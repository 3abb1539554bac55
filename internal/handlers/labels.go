package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/httpx"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/requestctx"
	"github.com/Heang0/Digital-Label-sub001/internal/services"
)

const streamKeepAlive = 25 * time.Second

// LabelHandlers exposes label CRUD, live streaming and the price operations.
type LabelHandlers struct {
	labels  services.LabelService
	pricing services.PricingEngine
	stream  bool
	now     func() time.Time
}

// LabelOption customises LabelHandlers.
type LabelOption func(*LabelHandlers)

// WithLabelStream toggles the server-sent events endpoint.
func WithLabelStream(enabled bool) LabelOption {
	return func(h *LabelHandlers) { h.stream = enabled }
}

// WithLabelClock injects the clock used to evaluate discount expiry in responses.
func WithLabelClock(now func() time.Time) LabelOption {
	return func(h *LabelHandlers) {
		if now != nil {
			h.now = now
		}
	}
}

// NewLabelHandlers constructs label handlers.
func NewLabelHandlers(labels services.LabelService, pricing services.PricingEngine, opts ...LabelOption) *LabelHandlers {
	h := &LabelHandlers{labels: labels, pricing: pricing, stream: true, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers /labels endpoints. Price operations use the
// `{labelId}:verb` custom-method form.
func (h *LabelHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listLabels)
	r.Post("/", h.createLabel)
	if h.stream {
		r.Get("/stream", h.streamLabels)
	}
	r.Get("/{segment}", h.getLabel)
	r.Post("/{segment}", h.labelAction)
}

func (h *LabelHandlers) listLabels(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	labels, err := h.labels.ListLabels(r.Context(), actor, strings.TrimSpace(r.URL.Query().Get("branchId")))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": buildLabelPayloads(labels, h.now())})
}

func (h *LabelHandlers) getLabel(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	label, err := h.labels.GetLabel(r.Context(), actor, chi.URLParam(r, "segment"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildLabelPayload(label, h.now()))
}

type createLabelRequest struct {
	BranchID string `json:"branchId"`
	LabelID  string `json:"labelId"`
	Location string `json:"location"`
}

func (h *LabelHandlers) createLabel(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createLabelRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	label, err := h.labels.CreateLabel(r.Context(), services.CreateLabelCommand{
		Actor:    actor,
		BranchID: strings.TrimSpace(req.BranchID),
		LabelID:  cleanText(req.LabelID),
		Location: cleanText(req.Location),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, buildLabelPayload(label, h.now()))
}

// labelAction dispatches POST /labels/{labelId}:{verb}.
func (h *LabelHandlers) labelAction(w http.ResponseWriter, r *http.Request) {
	segment := chi.URLParam(r, "segment")
	idx := strings.LastIndex(segment, ":")
	if idx <= 0 {
		httpx.WriteError(r.Context(), w, httpx.NewError("method_not_allowed", "POST requires an action such as :applyDiscount", http.StatusMethodNotAllowed))
		return
	}
	labelID, verb := segment[:idx], segment[idx+1:]
	switch verb {
	case "applyDiscount":
		h.applyDiscount(w, r, labelID)
	case "clearDiscount":
		h.clearDiscount(w, r, labelID)
	case "propagate":
		h.propagate(w, r, labelID)
	case "assign":
		h.assign(w, r, labelID)
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("route_not_found", fmt.Sprintf("unknown label action %q", verb), http.StatusNotFound))
	}
}

type applyDiscountRequest struct {
	BasePrice     float64  `json:"basePrice"`
	Percent       float64  `json:"percent"`
	DurationHours *float64 `json:"durationHours"`
}

func (h *LabelHandlers) applyDiscount(w http.ResponseWriter, r *http.Request, labelID string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req applyDiscountRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	label, err := h.pricing.ApplyDiscount(r.Context(), services.ApplyDiscountCommand{
		Actor:         actor,
		LabelID:       labelID,
		BasePrice:     req.BasePrice,
		Percent:       req.Percent,
		DurationHours: req.DurationHours,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildLabelPayload(label, h.now()))
}

type clearDiscountRequest struct {
	BasePrice float64 `json:"basePrice"`
}

func (h *LabelHandlers) clearDiscount(w http.ResponseWriter, r *http.Request, labelID string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req clearDiscountRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	label, err := h.pricing.ClearDiscount(r.Context(), services.ClearDiscountCommand{
		Actor:     actor,
		LabelID:   labelID,
		BasePrice: req.BasePrice,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildLabelPayload(label, h.now()))
}

type propagateRequest struct {
	ProductID       string   `json:"productId"`
	BranchID        string   `json:"branchId"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	NewBranchPrice  float64  `json:"newBranchPrice"`
	DiscountPercent *float64 `json:"discountPercent"`
	DiscountHours   *float64 `json:"discountHours"`
}

func (h *LabelHandlers) propagate(w http.ResponseWriter, r *http.Request, labelID string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req propagateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	result, err := h.pricing.PropagatePriceChange(r.Context(), services.PropagatePriceCommand{
		Actor:           actor,
		LabelID:         labelID,
		ProductID:       strings.TrimSpace(req.ProductID),
		BranchID:        strings.TrimSpace(req.BranchID),
		Name:            cleanText(req.Name),
		Description:     cleanText(req.Description),
		NewBranchPrice:  req.NewBranchPrice,
		DiscountPercent: req.DiscountPercent,
		DiscountHours:   req.DiscountHours,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product":       buildProductPayload(result.Product),
		"branchProduct": buildBranchProductPayload(result.BranchProduct),
		"label":         buildLabelPayload(result.Label, h.now()),
	})
}

type assignRequest struct {
	ProductID string `json:"productId"`
}

func (h *LabelHandlers) assign(w http.ResponseWriter, r *http.Request, labelID string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	label, err := h.labels.AssignLabel(r.Context(), services.AssignLabelCommand{
		Actor:     actor,
		LabelID:   labelID,
		ProductID: strings.TrimSpace(req.ProductID),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildLabelPayload(label, h.now()))
}

// streamLabels pushes the branch's label set as server-sent events every time
// it changes, until the client disconnects.
func (h *LabelHandlers) streamLabels(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("streaming_unsupported", "streaming is not supported by this connection", http.StatusInternalServerError))
		return
	}
	ctx := r.Context()
	logger := requestctx.Logger(ctx)

	updates := make(chan []domain.Label, 1)
	errs := make(chan error, 1)
	go func() {
		errs <- h.labels.WatchLabels(ctx, actor, strings.TrimSpace(r.URL.Query().Get("branchId")), func(labels []domain.Label) {
			select {
			case <-updates:
			default:
			}
			updates <- labels
		})
	}()

	headersSent := false
	sendHeaders := func() {
		if headersSent {
			return
		}
		headersSent = true
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
	}

	writeSnapshot := func(labels []domain.Label) {
		sendHeaders()
		data, err := json.Marshal(buildLabelPayloads(labels, h.now()))
		if err != nil {
			logger.Error("encode label snapshot", zap.Error(err))
			return
		}
		fmt.Fprintf(w, "event: labels\ndata: %s\n\n", data)
		flusher.Flush()
	}

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errs:
			select {
			case labels := <-updates:
				writeSnapshot(labels)
			default:
			}
			if err == nil {
				return
			}
			if !headersSent {
				writeServiceError(ctx, w, err)
				return
			}
			logger.Warn("label stream ended", zap.Error(err))
			fmt.Fprintf(w, "event: error\ndata: %q\n\n", "stream interrupted")
			flusher.Flush()
			return
		case labels := <-updates:
			writeSnapshot(labels)
		case <-keepAlive.C:
			sendHeaders()
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

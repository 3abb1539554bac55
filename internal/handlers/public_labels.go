package handlers

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/httpx"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/requestctx"
	"github.com/Heang0/Digital-Label-sub001/internal/services"
)

const (
	publicLabelCacheControl = "public, max-age=15"
	defaultEditorPath       = "/editor/labels"
)

var supportedLocales = language.NewMatcher([]language.Tag{
	language.AmericanEnglish,
	language.BritishEnglish,
	language.German,
	language.French,
	language.Khmer,
})

// PublicLabelHandlers serve the unauthenticated price card that a shopper
// reaches by scanning a label.
type PublicLabelHandlers struct {
	resolver   services.LabelResolver
	baseURL    string
	editorPath string
	qrProvider string
	rateLimit  int
	rateWindow time.Duration
	limiter    rateLimiter
	now        func() time.Time
	page       *template.Template
}

// PublicLabelOption customises PublicLabelHandlers.
type PublicLabelOption func(*PublicLabelHandlers)

// WithPublicBaseURL sets the absolute origin used in QR payloads.
func WithPublicBaseURL(base string) PublicLabelOption {
	return func(h *PublicLabelHandlers) { h.baseURL = strings.TrimRight(strings.TrimSpace(base), "/") }
}

// WithEditorPath sets the path prefix of the label editor.
func WithEditorPath(path string) PublicLabelOption {
	return func(h *PublicLabelHandlers) {
		if path = strings.TrimRight(strings.TrimSpace(path), "/"); path != "" {
			h.editorPath = path
		}
	}
}

// WithQRProvider sets the QR image endpoint; the encoded URL is appended as data=.
func WithQRProvider(provider string) PublicLabelOption {
	return func(h *PublicLabelHandlers) { h.qrProvider = strings.TrimSpace(provider) }
}

// WithPublicRateLimit caps requests per client address within window.
func WithPublicRateLimit(limit int, window time.Duration) PublicLabelOption {
	return func(h *PublicLabelHandlers) { h.rateLimit, h.rateWindow = limit, window }
}

// WithPublicClock injects the clock used for discount expiry.
func WithPublicClock(now func() time.Time) PublicLabelOption {
	return func(h *PublicLabelHandlers) {
		if now != nil {
			h.now = now
		}
	}
}

// NewPublicLabelHandlers constructs the public label handlers.
func NewPublicLabelHandlers(resolver services.LabelResolver, opts ...PublicLabelOption) *PublicLabelHandlers {
	h := &PublicLabelHandlers{
		resolver:   resolver,
		editorPath: defaultEditorPath,
		now:        time.Now,
		page:       template.Must(template.New("label").Parse(labelPageTemplate)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.limiter = newWindowRateLimiter(h.rateLimit, h.rateWindow, h.now)
	return h
}

// APIRoutes registers JSON endpoints under /api/v1/public.
func (h *PublicLabelHandlers) APIRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(rateLimitMiddleware(h.limiter)).Get("/labels/{segment}", h.getLabelJSON)
}

// SiteRoutes registers the HTML page and the short link at the site root.
func (h *PublicLabelHandlers) SiteRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(rateLimitMiddleware(h.limiter)).Get("/labels/{segment}", h.getLabelPage)
	r.Get("/l/{labelID}", h.redirectToEditor)
}

type publicLabelPayload struct {
	ID              string   `json:"id"`
	CompanyID       string   `json:"companyId,omitempty"`
	LabelID         string   `json:"labelId"`
	LabelCode       string   `json:"labelCode"`
	ProductName     string   `json:"productName"`
	ProductSKU      string   `json:"productSku,omitempty"`
	Price           float64  `json:"price"`
	RegularPrice    float64  `json:"regularPrice"`
	DiscountActive  bool     `json:"discountActive"`
	DiscountPercent *float64 `json:"discountPercent,omitempty"`
	DiscountEndAt   *string  `json:"discountEndAt,omitempty"`
	QRImageURL      string   `json:"qrImageUrl,omitempty"`
}

func (h *PublicLabelHandlers) resolve(w http.ResponseWriter, r *http.Request) (domain.Label, bool) {
	label, err := h.resolver.Resolve(r.Context(), chi.URLParam(r, "segment"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return domain.Label{}, false
	}
	if label.CompanyID == "" {
		label.CompanyID = strings.TrimSpace(r.URL.Query().Get("companyId"))
	}
	return label, true
}

func (h *PublicLabelHandlers) getLabelJSON(w http.ResponseWriter, r *http.Request) {
	label, ok := h.resolve(w, r)
	if !ok {
		return
	}
	now := h.now()
	payload := publicLabelPayload{
		ID:             label.ID,
		CompanyID:      label.CompanyID,
		LabelID:        label.LabelID,
		LabelCode:      label.LabelCode,
		ProductName:    label.ProductName,
		ProductSKU:     label.ProductSKU,
		Price:          label.EffectivePrice(now),
		RegularPrice:   label.RegularPrice(),
		DiscountActive: label.DiscountActive(now),
		QRImageURL:     h.qrImageURL(label),
	}
	if payload.DiscountActive {
		payload.DiscountPercent = label.DiscountPercent
		payload.DiscountEndAt = formatTimePtr(label.DiscountEndAt)
	}
	w.Header().Set("Cache-Control", publicLabelCacheControl)
	writeJSON(w, http.StatusOK, payload)
}

type labelPageData struct {
	ProductName    string
	ProductSKU     string
	Location       string
	Price          string
	RegularPrice   string
	DiscountActive bool
	PercentBadge   string
	EndsAt         string
	QRImageURL     string
	EditorURL      string
	Lang           string
}

func (h *PublicLabelHandlers) getLabelPage(w http.ResponseWriter, r *http.Request) {
	label, ok := h.resolve(w, r)
	if !ok {
		return
	}
	tag, _ := language.MatchStrings(supportedLocales, r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
	printer := message.NewPrinter(tag)
	now := h.now()

	data := labelPageData{
		ProductName:    fallbackText(label.ProductName, "Unassigned label"),
		ProductSKU:     label.ProductSKU,
		Location:       label.Location,
		Price:          printer.Sprintf("%.2f", label.EffectivePrice(now)),
		RegularPrice:   printer.Sprintf("%.2f", label.RegularPrice()),
		DiscountActive: label.DiscountActive(now),
		QRImageURL:     h.qrImageURL(label),
		EditorURL:      h.editorURL(label.ID),
		Lang:           tag.String(),
	}
	if data.DiscountActive {
		data.PercentBadge = printer.Sprintf("-%.0f%%", *label.DiscountPercent)
		if label.DiscountEndAt != nil {
			data.EndsAt = label.DiscountEndAt.UTC().Format("2006-01-02 15:04 MST")
		}
	}

	var buf bytes.Buffer
	if err := h.page.Execute(&buf, data); err != nil {
		requestctx.Logger(r.Context()).Error("render label page", zap.Error(err))
		httpx.WriteError(r.Context(), w, httpx.NewError("internal", "could not render label", http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", publicLabelCacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *PublicLabelHandlers) redirectToEditor(w http.ResponseWriter, r *http.Request) {
	labelID := strings.TrimSpace(chi.URLParam(r, "labelID"))
	if labelID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_identifier", "label id is required", http.StatusBadRequest))
		return
	}
	http.Redirect(w, r, h.editorPath+"/"+url.PathEscape(labelID), http.StatusFound)
}

func (h *PublicLabelHandlers) editorURL(labelID string) string {
	return h.baseURL + h.editorPath + "/" + url.PathEscape(labelID)
}

func (h *PublicLabelHandlers) qrImageURL(label domain.Label) string {
	if h.qrProvider == "" || label.ID == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(h.qrProvider, "?") {
		sep = "&"
	}
	return h.qrProvider + sep + "data=" + url.QueryEscape(h.editorURL(label.ID))
}

func fallbackText(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

const labelPageTemplate = `<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.ProductName}}</title>
<style>
body{font-family:system-ui,sans-serif;margin:0;display:flex;justify-content:center;padding:2rem;background:#f4f4f5}
.card{background:#fff;border-radius:12px;padding:1.5rem 2rem;max-width:22rem;width:100%;box-shadow:0 2px 8px rgba(0,0,0,.08)}
.price{font-size:2.5rem;font-weight:700;margin:.5rem 0}
.was{text-decoration:line-through;color:#71717a;margin-right:.5rem}
.badge{background:#dc2626;color:#fff;border-radius:999px;padding:.1rem .6rem;font-size:.9rem}
.meta{color:#52525b;font-size:.85rem}
</style>
</head>
<body>
<main class="card">
<h1>{{.ProductName}}</h1>
{{if .ProductSKU}}<p class="meta">{{.ProductSKU}}</p>{{end}}
{{if .DiscountActive}}
<p><span class="was">${{.RegularPrice}}</span><span class="badge">{{.PercentBadge}}</span></p>
<p class="price">${{.Price}}</p>
{{if .EndsAt}}<p class="meta">Offer ends {{.EndsAt}}</p>{{end}}
{{else}}
<p class="price">${{.Price}}</p>
{{end}}
{{if .Location}}<p class="meta">{{.Location}}</p>{{end}}
{{if .QRImageURL}}<a href="{{.EditorURL}}"><img src="{{.QRImageURL}}" alt="QR code" width="160" height="160"></a>{{end}}
</main>
</body>
</html>
`

package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Heang0/Digital-Label-sub001/internal/platform/auth"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/httpx"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/requestctx"
)

const (
	// HeaderKey carries the client-chosen idempotency key.
	HeaderKey = "Idempotency-Key"
	// HeaderReplayed marks a response served from the store.
	HeaderReplayed = "Idempotent-Replayed"

	maxKeyLength     = 255
	maxBufferedBody  = 1 << 20
	storeCallTimeout = 3 * time.Second
)

// Middleware replays responses for repeated POST requests that carry an
// Idempotency-Key. Requests without the header pass through.
type Middleware struct {
	store      Store
	ttl        time.Duration
	pendingTTL time.Duration
}

// Option customises the middleware.
type Option func(*Middleware)

// WithTTL overrides how long completed responses are replayed.
func WithTTL(ttl time.Duration) Option {
	return func(m *Middleware) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithPendingTTL overrides how long an unfinished request holds its key.
func WithPendingTTL(ttl time.Duration) Option {
	return func(m *Middleware) {
		if ttl > 0 {
			m.pendingTTL = ttl
		}
	}
}

// NewMiddleware builds the middleware. A nil store disables it.
func NewMiddleware(store Store, opts ...Option) *Middleware {
	m := &Middleware{store: store, ttl: DefaultTTL, pendingTTL: DefaultPendingTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Handler wraps next.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	if m == nil || m.store == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(HeaderKey))
		if r.Method != http.MethodPost || key == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		if len(key) > maxKeyLength {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_idempotency_key", "idempotency key is too long", http.StatusBadRequest))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBufferedBody+1))
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
			return
		}
		if len(body) > maxBufferedBody {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body is too large", http.StatusRequestEntityTooLarge))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		logger := requestctx.Logger(ctx).With(zap.String("idempotencyKey", key))
		scoped := scopeKey(ctx, key)
		fingerprint := requestFingerprint(r, body)

		state, stored, err := m.reserve(ctx, scoped, fingerprint)
		switch {
		case errors.Is(err, ErrFingerprintMismatch):
			httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_reused", "idempotency key was used for a different request", http.StatusUnprocessableEntity))
			return
		case err != nil:
			logger.Warn("idempotency reserve failed", zap.Error(err))
			httpx.WriteError(ctx, w, httpx.NewError("store_unavailable", "unable to process request", http.StatusServiceUnavailable))
			return
		}

		switch state {
		case StateCompleted:
			replay(w, stored)
			return
		case StatePending:
			w.Header().Set("Retry-After", "1")
			httpx.WriteError(ctx, w, httpx.NewError("request_in_progress", "a request with this idempotency key is still running", http.StatusConflict))
			return
		}

		rec := &recorder{header: make(http.Header), status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.status >= http.StatusInternalServerError {
			if err := m.release(ctx, scoped); err != nil {
				logger.Warn("idempotency release failed", zap.Error(err))
			}
		} else {
			resp := Response{Status: rec.status, Headers: replayableHeaders(rec.header), Body: rec.body.Bytes()}
			if err := m.complete(ctx, scoped, fingerprint, resp); err != nil {
				logger.Warn("idempotency save failed", zap.Error(err))
				if err := m.release(ctx, scoped); err != nil {
					logger.Warn("idempotency release failed", zap.Error(err))
				}
			}
		}
		rec.flushTo(w)
	})
}

func (m *Middleware) reserve(ctx context.Context, key, fingerprint string) (State, Response, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeCallTimeout)
	defer cancel()
	return m.store.Reserve(ctx, key, fingerprint, m.pendingTTL)
}

func (m *Middleware) complete(ctx context.Context, key, fingerprint string, resp Response) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeCallTimeout)
	defer cancel()
	return m.store.Complete(ctx, key, fingerprint, resp, m.ttl)
}

func (m *Middleware) release(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeCallTimeout)
	defer cancel()
	return m.store.Release(ctx, key)
}

// scopeKey namespaces keys by tenant and caller so two vendors cannot collide.
func scopeKey(ctx context.Context, key string) string {
	company, uid := "-", "anonymous"
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		if identity.UID != "" {
			uid = identity.UID
		}
		if user := identity.User(); user != nil && user.CompanyID != "" {
			company = user.CompanyID
		}
	}
	return hashHex(company + "\x00" + uid + "\x00" + key)
}

func requestFingerprint(r *http.Request, body []byte) string {
	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte('\n')
	b.WriteString(r.URL.Path)
	b.WriteByte('\n')
	b.WriteString(r.URL.RawQuery)
	b.WriteByte('\n')
	b.WriteString(r.Header.Get("Content-Type"))
	b.WriteByte('\n')
	b.WriteString(hashHex(string(body)))
	return hashHex(b.String())
}

func replay(w http.ResponseWriter, resp Response) {
	for name, values := range resp.Headers {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.Header().Set(HeaderReplayed, "true")
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

// recorder buffers the downstream response until it has been stored.
type recorder struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
}

func (r *recorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(p)
}

func (r *recorder) flushTo(w http.ResponseWriter) {
	for name, values := range r.header {
		w.Header()[name] = values
	}
	w.WriteHeader(r.status)
	_, _ = w.Write(r.body.Bytes())
}

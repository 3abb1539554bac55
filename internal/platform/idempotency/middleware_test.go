package idempotency

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/auth"
)

func countingHandler(calls *int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"receiptNo":"RCPT-%06d","echo":%q}`, n, string(body))
	})
}

func vendorRequest(uid, company, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	identity := auth.NewIdentity(domain.User{ID: uid, CompanyID: company, Role: domain.RoleVendor})
	return req.WithContext(auth.WithIdentity(req.Context(), identity))
}

func TestMiddlewareReplaysCompletedResponse(t *testing.T) {
	var calls int32
	h := NewMiddleware(NewMemoryStore()).Handler(countingHandler(&calls, http.StatusCreated))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, vendorRequest("vendor-1", "company-1", "k1", `{"total":5}`))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, vendorRequest("vendor-1", "company-1", "k1", `{"total":5}`))

	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("expected identical body, got %q vs %q", second.Body.String(), first.Body.String())
	}
	if second.Header().Get(HeaderReplayed) != "true" {
		t.Fatalf("expected replay header")
	}
	if first.Header().Get(HeaderReplayed) != "" {
		t.Fatalf("first response must not be marked as replay")
	}
	if got := second.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected content type to be replayed, got %q", got)
	}
}

func TestMiddlewarePassesThroughWithoutKey(t *testing.T) {
	var calls int32
	h := NewMiddleware(NewMemoryStore()).Handler(countingHandler(&calls, http.StatusCreated))

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), vendorRequest("vendor-1", "company-1", "", `{}`))
	}
	get := httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil)
	get.Header.Set(HeaderKey, "k1")
	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), get)
	}
	if calls != 4 {
		t.Fatalf("expected every request to reach the handler, got %d", calls)
	}
}

func TestMiddlewareRejectsReusedKeyWithDifferentBody(t *testing.T) {
	var calls int32
	h := NewMiddleware(NewMemoryStore()).Handler(countingHandler(&calls, http.StatusCreated))

	h.ServeHTTP(httptest.NewRecorder(), vendorRequest("vendor-1", "company-1", "k1", `{"total":5}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, vendorRequest("vendor-1", "company-1", "k1", `{"total":6}`))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "idempotency_key_reused") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("expected a single execution, got %d", calls)
	}
}

func TestMiddlewareScopesKeysPerCaller(t *testing.T) {
	var calls int32
	h := NewMiddleware(NewMemoryStore()).Handler(countingHandler(&calls, http.StatusCreated))

	h.ServeHTTP(httptest.NewRecorder(), vendorRequest("vendor-1", "company-1", "k1", `{}`))
	h.ServeHTTP(httptest.NewRecorder(), vendorRequest("vendor-2", "company-1", "k1", `{}`))
	h.ServeHTTP(httptest.NewRecorder(), vendorRequest("vendor-1", "company-2", "k1", `{}`))

	if calls != 3 {
		t.Fatalf("expected keys to be scoped per caller and company, got %d executions", calls)
	}
}

func TestMiddlewareReleasesKeyOnServerError(t *testing.T) {
	var calls int32
	h := NewMiddleware(NewMemoryStore()).Handler(countingHandler(&calls, http.StatusServiceUnavailable))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, vendorRequest("vendor-1", "company-1", "k1", `{}`))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected retry after server error to run again, got %d", calls)
	}
}

func TestMiddlewareReportsPendingRequest(t *testing.T) {
	store := NewMemoryStore()
	req := vendorRequest("vendor-1", "company-1", "k1", `{}`)
	body := []byte(`{}`)
	if _, _, err := store.Reserve(context.Background(), scopeKey(req.Context(), "k1"), requestFingerprint(req, body), time.Minute); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var calls int32
	rec := httptest.NewRecorder()
	NewMiddleware(store).Handler(countingHandler(&calls, http.StatusCreated)).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After header")
	}
	if calls != 0 {
		t.Fatalf("handler must not run while the key is pending")
	}
}

func TestMiddlewareRejectsOversizedKey(t *testing.T) {
	var calls int32
	rec := httptest.NewRecorder()
	NewMiddleware(NewMemoryStore()).Handler(countingHandler(&calls, http.StatusCreated)).
		ServeHTTP(rec, vendorRequest("vendor-1", "company-1", strings.Repeat("k", maxKeyLength+1), `{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

type failingStore struct{ MemoryStore }

func (*failingStore) Reserve(context.Context, string, string, time.Duration) (State, Response, error) {
	return StatePending, Response{}, errors.New("redis down")
}

func TestMiddlewareStoreFailure(t *testing.T) {
	var calls int32
	rec := httptest.NewRecorder()
	NewMiddleware(&failingStore{}).Handler(countingHandler(&calls, http.StatusCreated)).
		ServeHTTP(rec, vendorRequest("vendor-1", "company-1", "k1", `{}`))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if calls != 0 {
		t.Fatalf("handler must not run when the store is unavailable")
	}
}

func TestNilStoreDisablesMiddleware(t *testing.T) {
	var calls int32
	next := countingHandler(&calls, http.StatusCreated)
	h := NewMiddleware(nil).Handler(next)
	h.ServeHTTP(httptest.NewRecorder(), vendorRequest("vendor-1", "company-1", "k1", `{}`))
	h.ServeHTTP(httptest.NewRecorder(), vendorRequest("vendor-1", "company-1", "k1", `{}`))
	if calls != 2 {
		t.Fatalf("expected pass-through, got %d", calls)
	}
}

func TestMemoryStoreExpiresRecords(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if state, _, _ := store.Reserve(ctx, "k", "fp", time.Minute); state != StateNew {
		t.Fatalf("expected new reservation, got %v", state)
	}
	if err := store.Complete(ctx, "k", "fp", Response{Status: 201}, time.Hour); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if state, resp, _ := store.Reserve(ctx, "k", "fp", time.Minute); state != StateCompleted || resp.Status != 201 {
		t.Fatalf("expected completed replay, got %v %+v", state, resp)
	}
	now = now.Add(2 * time.Hour)
	if state, _, _ := store.Reserve(ctx, "k", "fp", time.Minute); state != StateNew {
		t.Fatalf("expected expired key to be reusable, got %v", state)
	}
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

type stubTokenVerifier struct {
	token    *firebaseauth.Token
	err      error
	received string
}

func (s *stubTokenVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	s.received = idToken
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

type stubProfiles struct {
	users   map[string]domain.User
	err     error
	lastUID string
}

func (s *stubProfiles) Get(ctx context.Context, uid string) (domain.User, error) {
	s.lastUID = uid
	if s.err != nil {
		return domain.User{}, s.err
	}
	user, ok := s.users[uid]
	if !ok {
		return domain.User{}, repositories.NewNotFoundError("users.get", "user")
	}
	return user, nil
}

func validToken(uid string) *stubTokenVerifier {
	return &stubTokenVerifier{token: &firebaseauth.Token{
		UID:    uid,
		Claims: map[string]interface{}{"email": "user@example.com"},
	}}
}

func serve(t *testing.T, handler http.Handler, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	code, _ := body["error"].(string)
	return code
}

func TestRequireFirebaseAuth_AttachesProfile(t *testing.T) {
	verifier := validToken("uid-123")
	profiles := &stubProfiles{users: map[string]domain.User{
		"uid-123": {ID: "uid-123", CompanyID: "c1", BranchID: "B1", Role: domain.RoleStaff, Name: "Sam"},
	}}
	authn := NewAuthenticator(verifier, profiles)

	handlerCalled := false
	handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		user, ok := UserFromContext(r.Context())
		if !ok {
			t.Fatalf("expected user in context")
		}
		if user.CompanyID != "c1" || user.BranchID != "B1" || user.Role != domain.RoleStaff {
			t.Fatalf("unexpected profile %+v", user)
		}
		if user.Email != "user@example.com" {
			t.Fatalf("expected email copied from token, got %q", user.Email)
		}
		identity, _ := IdentityFromContext(r.Context())
		if identity.Token() == nil || identity.UID != "uid-123" {
			t.Fatalf("expected token on identity")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := serve(t, handler, "Bearer token-value")
	if rr.Code != http.StatusNoContent || !handlerCalled {
		t.Fatalf("expected handler to run, got %d", rr.Code)
	}
	if verifier.received != "token-value" || profiles.lastUID != "uid-123" {
		t.Fatalf("unexpected calls: token=%s uid=%s", verifier.received, profiles.lastUID)
	}
}

func TestRequireFirebaseAuth_MissingHeader(t *testing.T) {
	authn := NewAuthenticator(validToken("u"), &stubProfiles{})
	handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not run")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer   "} {
		rr := serve(t, handler, header)
		if rr.Code != http.StatusUnauthorized || errorCode(t, rr) != "unauthenticated" {
			t.Fatalf("header %q: expected 401 unauthenticated, got %d", header, rr.Code)
		}
	}
}

func TestRequireFirebaseAuth_VerificationErrors(t *testing.T) {
	cases := map[string]error{
		"token_expired": fmt.Errorf("%w: exp in the past", ErrTokenExpired),
		"token_revoked": ErrTokenRevoked,
		"invalid_token": errors.New("boom"),
	}
	for want, verifyErr := range cases {
		authn := NewAuthenticator(&stubTokenVerifier{err: verifyErr}, &stubProfiles{})
		handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatalf("handler should not execute when verification fails")
		}))

		rr := serve(t, handler, "Bearer some-token")
		if rr.Code != http.StatusUnauthorized || errorCode(t, rr) != want {
			t.Fatalf("expected 401 %s, got %d %s", want, rr.Code, rr.Body.String())
		}
	}
}

func TestRequireFirebaseAuth_ProfileFailures(t *testing.T) {
	cases := []struct {
		name     string
		profiles *stubProfiles
		allowed  []domain.Role
		status   int
		code     string
	}{
		{"missing profile", &stubProfiles{}, nil, http.StatusForbidden, "profile_missing"},
		{"store down", &stubProfiles{err: errors.New("unavailable")}, nil, http.StatusServiceUnavailable, "profile_unavailable"},
		{"disabled", &stubProfiles{users: map[string]domain.User{"u": {Role: domain.RoleVendor, Status: "disabled"}}}, nil, http.StatusForbidden, "account_disabled"},
		{"wrong role", &stubProfiles{users: map[string]domain.User{"u": {Role: domain.RoleStaff}}}, []domain.Role{domain.RoleAdmin}, http.StatusForbidden, "insufficient_role"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			authn := NewAuthenticator(validToken("u"), tc.profiles)
			handler := authn.RequireFirebaseAuth(tc.allowed...)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatalf("handler should not run")
			}))
			rr := serve(t, handler, "Bearer t")
			if rr.Code != tc.status || errorCode(t, rr) != tc.code {
				t.Fatalf("expected %d %s, got %d %s", tc.status, tc.code, rr.Code, rr.Body.String())
			}
		})
	}
}

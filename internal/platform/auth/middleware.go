package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/observability"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/requestctx"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

const (
	defaultEmailClaim    = "email"
	defaultVerifyTimeout = 5 * time.Second
	statusDisabled       = "disabled"
)

var (
	// ErrTokenExpired signals that the provided Firebase ID token has expired.
	ErrTokenExpired = errors.New("auth: firebase id token expired")
	// ErrTokenInvalid signals that the provided Firebase ID token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
	// ErrTokenRevoked signals a revoked session or a disabled Firebase account.
	ErrTokenRevoked = errors.New("auth: firebase session revoked")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// ProfileLoader reads the tenant profile of a verified UID.
type ProfileLoader interface {
	Get(ctx context.Context, uid string) (domain.User, error)
}

// Authenticator wires Firebase token verification and profile loading into
// HTTP middleware.
type Authenticator struct {
	verifier TokenVerifier
	profiles ProfileLoader

	emailClaim string
	timeout    time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithEmailClaim overrides the claim used to populate Identity.Email.
func WithEmailClaim(claim string) Option {
	return func(a *Authenticator) {
		claim = strings.TrimSpace(claim)
		if claim != "" {
			a.emailClaim = claim
		}
	}
}

// WithVerificationTimeout bounds token verification and the profile read.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs the middleware factory.
func NewAuthenticator(verifier TokenVerifier, profiles ProfileLoader, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:   verifier,
		profiles:   profiles,
		emailClaim: defaultEmailClaim,
		timeout:    defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireFirebaseAuth verifies the bearer token, loads the caller's profile and
// rejects callers whose role is not in allowed. No roles means any role.
func (a *Authenticator) RequireFirebaseAuth(allowed ...domain.Role) func(http.Handler) http.Handler {
	roles := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		roles[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if a == nil || a.verifier == nil || a.profiles == nil {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
				return
			}

			verifyCtx, cancel := context.WithTimeout(r.Context(), a.timeout)
			defer cancel()

			token, err := a.verifier.VerifyIDToken(verifyCtx, tokenStr)
			if err != nil {
				respondVerificationError(w, err)
				return
			}

			profile, err := a.profiles.Get(verifyCtx, token.UID)
			switch {
			case repositories.IsNotFound(err):
				respondAuthError(w, http.StatusForbidden, "profile_missing", "no user profile for this account")
				return
			case err != nil:
				requestctx.Logger(r.Context()).Warn("profile load failed", zap.String("user_id", token.UID), zap.Error(err))
				respondAuthError(w, http.StatusServiceUnavailable, "profile_unavailable", "user profile could not be loaded")
				return
			}
			if strings.EqualFold(profile.Status, statusDisabled) {
				respondAuthError(w, http.StatusForbidden, "account_disabled", "user account is disabled")
				return
			}
			if len(roles) > 0 {
				if _, ok := roles[profile.Role]; !ok {
					respondAuthError(w, http.StatusForbidden, "insufficient_role", "user role may not access this resource")
					return
				}
			}

			identity := &Identity{
				UID:     token.UID,
				Email:   claimAsString(token.Claims, a.emailClaim),
				token:   token,
				profile: profile,
			}
			if identity.Email == "" {
				identity.Email = claimAsString(token.Claims, defaultEmailClaim)
			}
			if identity.profile.ID == "" {
				identity.profile.ID = token.UID
			}
			if identity.profile.Email == "" {
				identity.profile.Email = identity.Email
			}

			ctx := WithIdentity(r.Context(), identity)
			logger := requestctx.Logger(ctx).With(
				observability.TenantFields(identity.UID, identity.profile.CompanyID, string(identity.profile.Role))...,
			)
			ctx = requestctx.WithLogger(ctx, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func claimAsString(claims map[string]interface{}, key string) string {
	raw, ok := claims[key]
	if !ok {
		return ""
	}
	if v, ok := raw.(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
		"status":  status,
	})
}

func respondVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired):
		respondAuthError(w, http.StatusUnauthorized, "token_expired", "firebase id token expired")
	case errors.Is(err, ErrTokenRevoked):
		respondAuthError(w, http.StatusUnauthorized, "token_revoked", "firebase session revoked")
	case errors.Is(err, ErrTokenInvalid):
		respondAuthError(w, http.StatusUnauthorized, "invalid_token", "firebase id token invalid")
	default:
		respondAuthError(w, http.StatusUnauthorized, "invalid_token", "firebase id token verification failed")
	}
}

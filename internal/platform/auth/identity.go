package auth

import (
	"context"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/Heang0/Digital-Label-sub001/internal/domain"
)

// Identity is the verified caller of a request: the Firebase token subject and
// the tenant profile stored under users/{uid}.
type Identity struct {
	UID   string
	Email string

	token   *firebaseauth.Token
	profile domain.User
}

// Token exposes the decoded Firebase ID token.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// User returns a copy of the caller's tenant profile.
func (i *Identity) User() *domain.User {
	if i == nil {
		return nil
	}
	user := i.profile
	return &user
}

type contextKey string

const identityContextKey contextKey = "auth.identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

// UserFromContext returns the tenant profile of the authenticated caller.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, false
	}
	return identity.User(), true
}

// NewIdentity builds an identity for an already verified caller. Used by tests
// and by the memory driver's development login.
func NewIdentity(user domain.User) *Identity {
	return &Identity{UID: user.ID, Email: user.Email, profile: user}
}

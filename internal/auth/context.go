// Package auth carries the request-scoped identity extracted by the OIDC
// session middleware into handler code. It knows nothing about how that
// identity was established — see internal/middleware for the verification
// gate and internal/auth/oidc.go for ID-token parsing.
package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// Identity is the authenticated user attached to a request's context.
// Anonymous is true when auth_enabled is false and the middleware injected
// the anonymous fixture instead of verifying a token.
type Identity struct {
	UserID    uuid.UUID
	Email     string
	Name      string
	Anonymous bool
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// UserID returns the authenticated user's id, or the zero UUID if none is set.
func UserID(ctx context.Context) uuid.UUID {
	id, ok := FromContext(ctx)
	if !ok {
		return uuid.UUID{}
	}
	return id.UserID
}

package middleware

import (
	"context"

	"github.com/pinielabera/thriftndrift-backend/pkg/auth"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// IdentityFromContext returns the authenticated caller, or a zero
// Identity when the request was not authenticated.
func IdentityFromContext(ctx context.Context) auth.Identity {
	if v, ok := ctx.Value(ctxIdentity).(auth.Identity); ok {
		return v
	}
	return auth.Identity{}
}

// WithIdentity seeds the context with the caller identity. Used by
// tests and by the auth middleware.
func WithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentity, identity)
}

package gateway

import (
	"context"

	"github.com/Sriharan2222/medlog/pkg/types"
)

type contextKey string

const identityKey contextKey = "identity"

// ContextWithIdentity stores the verified caller in ctx
func ContextWithIdentity(ctx context.Context, identity *types.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the caller stored by the authentication
// middleware, if any.
func IdentityFromContext(ctx context.Context) (*types.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*types.Identity)
	return identity, ok && identity != nil
}

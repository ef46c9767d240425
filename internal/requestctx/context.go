// Package requestctx provides request-scoped values (e.g. caller identity)
// set by middleware.
package requestctx

import "context"

type contextKey struct{}

var identityKey = &contextKey{}

// SetIdentity stores the caller identity in the context.
func SetIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// Identity returns the caller identity from context, or "" if not set.
func Identity(ctx context.Context) string {
	v, _ := ctx.Value(identityKey).(string)
	return v
}

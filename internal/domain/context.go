package domain

import "context"

type ctxKey string

const identityCtxKey ctxKey = "identity"

// Identity is the resolved caller context every tool executes under.
// It is supplied by the auth collaborator at the system boundary and
// flows through context; tools never see raw credentials.
type Identity struct {
	TenantID string
	UserID   string
	ThreadID string
	Roles    []AuthRole
}

// ContextWithIdentity returns a new context carrying the caller identity.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, id)
}

// IdentityFromContext extracts the caller identity from the context.
// Returns a zero Identity if not set.
func IdentityFromContext(ctx context.Context) Identity {
	if v, ok := ctx.Value(identityCtxKey).(Identity); ok {
		return v
	}
	return Identity{}
}

package tools

import "context"

// Scope carries the caller's tenancy into tool executors.
type Scope struct {
	OrganizationID string
	ProjectID      string
	SessionID      string
}

type scopeKey struct{}

// WithScope attaches s to ctx for the tools invoked under it.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope attached by WithScope, if any.
func ScopeFrom(ctx context.Context) Scope {
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

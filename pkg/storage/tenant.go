package storage

import "context"

type tenantCtxKey struct{}

// SetTenant attaches a tenant identifier to the context. Stores use it
// to partition turn records between callers.
func SetTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, tenantID)
}

// GetTenant returns the tenant from the context. An empty string means
// single-tenant mode: stores skip tenant filtering entirely.
func GetTenant(ctx context.Context) string {
	id, _ := ctx.Value(tenantCtxKey{}).(string)
	return id
}

package domain

import (
	"context"
	"fmt"
)

// Caller identifies who issued a lifecycle request
type Caller struct {
	TenantID string
	IsAdmin  bool
}

type callerKey struct{}

// WithCaller returns a context carrying the caller
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller carried by ctx. A context without a caller
// yields an admin caller, which is what internal callers (CLI, tests) expect.
func CallerFrom(ctx context.Context) Caller {
	if c, ok := ctx.Value(callerKey{}).(Caller); ok {
		return c
	}
	return Caller{IsAdmin: true}
}

// CanSee reports whether the caller may reference an entity owned by tenantID
func (c Caller) CanSee(tenantID string, shared bool) bool {
	return c.IsAdmin || shared || c.TenantID == tenantID
}

// TenantFor returns the tenant a new entity belongs to. Only admins may
// create on behalf of another tenant.
func (c Caller) TenantFor(requested string) (string, error) {
	if requested == "" || requested == c.TenantID {
		return c.TenantID, nil
	}
	if !c.IsAdmin {
		return "", &AdminRequiredError{
			Reason: fmt.Sprintf("cannot create resources for tenant %s", requested),
		}
	}
	return requested, nil
}

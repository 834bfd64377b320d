package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Space captures the resolved tenant routing metadata for a request.
// It is attached to the context by middleware once the tenant has been
// resolved from the request host.
type Space struct {
	TenantID   uuid.UUID
	Slug       string
	SchemaName string
	Domain     string
	// Shared is true when no tenant matched and the request runs against the
	// shared default schema.
	Shared bool
}

type ctxKey string

const spaceKey ctxKey = "BRICKLINE_TENANT_SPACE"

// WithSpace returns a derived context carrying the tenant Space.
func WithSpace(ctx context.Context, space Space) context.Context {
	return context.WithValue(ctx, spaceKey, space)
}

// FromContext extracts the tenant Space and a boolean indicating presence.
func FromContext(ctx context.Context) (Space, bool) {
	v := ctx.Value(spaceKey)
	if v == nil {
		return Space{}, false
	}

	space, ok := v.(Space)
	return space, ok
}

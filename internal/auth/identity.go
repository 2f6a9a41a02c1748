package auth

import (
	"context"

	"nodebase/backend/pkg/models"
)

// Identity is what the gate knows about the caller of a request. The zero
// value is an unauthenticated caller.
type Identity struct {
	CallerID      string
	Email         string
	Tier          models.Tier
	Authenticated bool
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the caller identity, or an unauthenticated Identity
// when the request never passed the gate.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here. This
// prevents typos, documents dependencies, and makes key usage
// discoverable.
package contextkeys

import (
	"context"

	"github.com/tasknest/tasknest/pkg/claims"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// ClaimsKey contains *claims.Snapshot
	// Set by: api.ClaimsMiddleware after verifying the bearer token
	// Required by: all authenticated endpoints
	ClaimsKey Key = "claims_snapshot"

	// RequestIDKey contains the request ID string
	// Set by: api request middleware
	// Used by: logger, audit trail
	RequestIDKey Key = "request_id"
)

// WithClaims attaches the verified claims snapshot to the context.
func WithClaims(ctx context.Context, snap *claims.Snapshot) context.Context {
	return context.WithValue(ctx, ClaimsKey, snap)
}

// ClaimsFrom returns the verified claims snapshot, or nil when the request
// carried no credential.
func ClaimsFrom(ctx context.Context) *claims.Snapshot {
	snap, _ := ctx.Value(ClaimsKey).(*claims.Snapshot)
	return snap
}

// WithRequestID attaches the request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestIDFrom returns the request ID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Values are set by middleware and consumed by services and stores. Keeping this
// package free of net/http lets the persistence layer read the caller's
// organization scope without importing transport code.
//
// Usage in services and stores (read values):
//
//	caller := requestcontext.CallerFrom(ctx)
//	if !caller.CanAccess(orgID) { ... }
//	now := requestcontext.Now(ctx)
//
// Usage in middleware and tests (set values):
//
//	ctx = requestcontext.WithCaller(ctx, caller)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"slices"
	"time"

	id "fasela/pkg/domain"
)

type (
	callerKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

var (
	ContextKeyCaller      = callerKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Caller identity
// -----------------------------------------------------------------------------

// Caller is the authenticated principal as asserted by the identity provider.
// The zero value is an anonymous caller that can access no organization.
type Caller struct {
	UserID          id.UserID
	Role            id.Role
	OrganizationIDs []id.OrganizationID
}

// IsAnonymous reports whether no identity was presented.
func (c Caller) IsAnonymous() bool {
	return c.UserID.IsNil()
}

// CanAccess is the tenant predicate applied at every store boundary.
func (c Caller) CanAccess(orgID id.OrganizationID) bool {
	return slices.Contains(c.OrganizationIDs, orgID)
}

// CallerFrom retrieves the caller from the context, or an anonymous caller.
func CallerFrom(ctx context.Context) Caller {
	if caller, ok := ctx.Value(ContextKeyCaller).(Caller); ok {
		return caller
	}
	return Caller{}
}

// WithCaller injects the caller into the context.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, ContextKeyCaller, caller)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request correlation ID from the context.
func RequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return rid
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the request-scoped time, falling back to time.Now for contexts that
// did not pass through the request-time middleware (workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed time into the context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

package testutil

import (
	"context"
	"net/http"
	"time"

	id "fasela/pkg/domain"
	"fasela/pkg/requestcontext"
)

// Admin returns an admin caller scoped to orgs.
func Admin(orgs ...id.OrganizationID) requestcontext.Caller {
	return requestcontext.Caller{UserID: id.NewUserID(), Role: id.RoleAdmin, OrganizationIDs: orgs}
}

// Volunteer returns a volunteer caller scoped to orgs.
func Volunteer(orgs ...id.OrganizationID) requestcontext.Caller {
	return requestcontext.Caller{UserID: id.NewUserID(), Role: id.RoleVolunteer, OrganizationIDs: orgs}
}

// AsCaller returns ctx carrying caller. This simulates what the auth middleware
// does for authenticated requests.
func AsCaller(ctx context.Context, caller requestcontext.Caller) context.Context {
	return requestcontext.WithCaller(ctx, caller)
}

// AdminContext is a background context for an admin of orgs.
func AdminContext(orgs ...id.OrganizationID) context.Context {
	return AsCaller(context.Background(), Admin(orgs...))
}

// WithCaller adds caller to the request context.
func WithCaller(req *http.Request, caller requestcontext.Caller) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}

// AtTime pins the request-scoped clock.
func AtTime(ctx context.Context, t time.Time) context.Context {
	return requestcontext.WithTime(ctx, t)
}

package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "fasela/pkg/domain"
	request "fasela/pkg/platform/middleware/request"
	"fasela/pkg/requestcontext"
)

// CallerValidator turns a bearer token into a caller identity.
type CallerValidator interface {
	ValidateCaller(token string) (requestcontext.Caller, error)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// Authenticate resolves the caller from the Authorization header. Requests without
// a header continue as anonymous (the donor-facing flow); a header that is present
// but invalid is rejected.
func Authenticate(validator CallerValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - malformed authorization header",
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			caller, err := validator.ValidateCaller(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, caller)))
		})
	}
}

// RequireRole rejects anonymous callers with 401 and callers whose role fails
// allowed with 403. Organization scoping is enforced further down, in the stores.
func RequireRole(allowed func(id.Role) bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			caller := requestcontext.CallerFrom(ctx)
			if caller.IsAnonymous() {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			if !allowed(caller.Role) {
				logger.WarnContext(ctx, "forbidden - insufficient role",
					"role", caller.Role.String(),
					"user_id", caller.UserID.String(),
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLedgerAdmin allows admins only.
func RequireLedgerAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return RequireRole(id.Role.CanManageLedger, logger)
}

// RequireLedgerReader allows admins and volunteers.
func RequireLedgerReader(logger *slog.Logger) func(http.Handler) http.Handler {
	return RequireRole(id.Role.CanReadLedger, logger)
}

package authz

import (
	"log/slog"
	"net/http"

	"github.com/campusdesk/campusdesk/internal/platform/httpx"
)

// Middleware gates HTTP handlers on the principal stored in the request context.
type Middleware struct {
	Logger *slog.Logger
}

// Require rejects requests whose principal lacks (feature, action).
func (m Middleware) Require(feature, action string) func(http.Handler) http.Handler {
	return m.RequireAny(feature, action)
}

// RequireAny admits requests whose principal holds any of actions on feature.
func (m Middleware) RequireAny(feature string, actions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if !HasAny(user, feature, actions...) {
				if m.Logger != nil {
					m.Logger.Warn("authz denied",
						slog.String("user", user.ID),
						slog.String("feature", feature),
						slog.Any("actions", actions),
						slog.String("path", r.URL.Path))
				}
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/campusdesk/campusdesk/internal/dashboard"
	"github.com/campusdesk/campusdesk/internal/observability"
	"github.com/campusdesk/campusdesk/internal/platform/httpx"
	"github.com/campusdesk/campusdesk/internal/session"
	"github.com/campusdesk/campusdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger    *slog.Logger
	Config    *Config
	Sessions  *session.Manager
	Dashboard *dashboard.Handler
	Jobs      *jobs.Handler
	Metrics   *observability.Metrics
}

// NewRouter constructs the chi.Router with campusdesk defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(chimw.Logger)
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Sessions: params.Sessions,
		Metrics:  params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Sessions != nil {
		r.Post("/session/refresh", func(w http.ResponseWriter, r *http.Request) {
			token := session.TokenFromContext(r.Context())
			if token == "" {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if err := params.Sessions.Refresh(r.Context(), token); err != nil {
				params.Logger.Warn("session refresh", slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
	if params.Dashboard != nil {
		params.Dashboard.MountRoutes(r)
	}
	if params.Jobs != nil {
		r.Route("/jobs", params.Jobs.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}

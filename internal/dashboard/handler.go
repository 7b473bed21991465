package dashboard

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campusdesk/campusdesk/internal/apiclient"
	"github.com/campusdesk/campusdesk/internal/authz"
	"github.com/campusdesk/campusdesk/internal/debounce"
	"github.com/campusdesk/campusdesk/internal/platform/httpx"
	"github.com/campusdesk/campusdesk/internal/session"
)

const maxMutationBody = 1 << 20

// Forwarder relays mutations to the institution API.
type Forwarder interface {
	Forward(ctx context.Context, token, method, path string, body []byte, contentType string) (*apiclient.Response, error)
}

// WarmupEnqueuer schedules a cache warmup for a session.
type WarmupEnqueuer interface {
	EnqueueWarmup(ctx context.Context, scope Scope) error
}

// Handler serves the dashboard screens and the mutation proxy.
type Handler struct {
	service        *Service
	forwarder      Forwarder
	warmup         WarmupEnqueuer
	gate           authz.Middleware
	logger         *slog.Logger
	searchDebounce time.Duration
}

// HandlerOption customises a Handler.
type HandlerOption func(*Handler)

// WithSearchDebounce sets the search debounce window advertised to clients.
func WithSearchDebounce(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.searchDebounce = d
		}
	}
}

// NewHandler builds the dashboard HTTP handler. warmup may be nil.
func NewHandler(service *Service, forwarder Forwarder, warmup WarmupEnqueuer, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		service:        service,
		forwarder:      forwarder,
		warmup:         warmup,
		gate:           authz.Middleware{Logger: logger},
		logger:         logger,
		searchDebounce: debounce.DefaultWindow,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// MountRoutes attaches the dashboard and proxy routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/me", h.me)
		r.With(h.gate.Require(authz.FeatureDashboard, authz.ActionView)).Get("/overview", h.overview)
		r.With(h.gate.Require(authz.FeatureStudents, authz.ActionView)).Get("/students", h.students)
		r.Group(func(r chi.Router) {
			r.Use(h.gate.RequireAny(authz.FeatureAttendance, authz.ActionView, authz.ActionAttend))
			r.Get("/attendance", h.attendanceBoard)
			r.Get("/attendance/sheet", h.attendanceSheet)
		})
		r.With(h.gate.Require(authz.FeaturePayment, authz.ActionView)).Get("/payments", h.payments)
		r.With(h.gate.Require(authz.FeatureCashflow, authz.ActionView)).Get("/cashflow", h.cashflow)
		r.With(h.gate.Require(authz.FeatureCashflow, authz.ActionExport)).Get("/cashflow/export.csv", h.cashflowCSV)
	})
	r.Route("/api", func(r chi.Router) {
		r.HandleFunc("/{feature}", h.mutate)
		r.HandleFunc("/{feature}/*", h.mutate)
	})
}

func scopeOf(r *http.Request) Scope {
	return Scope{User: authz.UserFromContext(r.Context()), Token: session.TokenFromContext(r.Context())}
}

type meResponse struct {
	User             *authz.User     `json:"user"`
	Navigation       authz.Decisions `json:"navigation"`
	Timezone         string          `json:"timezone"`
	SearchDebounceMS int64           `json:"searchDebounceMs"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user := authz.UserFromContext(r.Context())
	if user == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.OK(w, meResponse{
		User:             user,
		Navigation:       authz.Decide(user, authz.NavigationControls()),
		Timezone:         h.service.Location().String(),
		SearchDebounceMS: h.searchDebounce.Milliseconds(),
	})
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Overview(r.Context(), scopeOf(r))
	h.render(w, r, view, err)
}

func (h *Handler) students(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.Students(r.Context(), scopeOf(r), q)
	h.render(w, r, view, err)
}

func (h *Handler) attendanceBoard(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.AttendanceBoard(r.Context(), scopeOf(r), q)
	h.render(w, r, view, err)
}

func (h *Handler) attendanceSheet(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.AttendanceByShift(r.Context(), scopeOf(r), q)
	h.render(w, r, view, err)
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.PaymentStatement(r.Context(), scopeOf(r), q)
	h.render(w, r, view, err)
}

func (h *Handler) cashflow(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.CashflowStatement(r.Context(), scopeOf(r), q)
	h.render(w, r, view, err)
}

func (h *Handler) cashflowCSV(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.CashflowStatement(r.Context(), scopeOf(r), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := WriteCashflowCSV(&buf, view); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="cashflow-`+view.Granularity+`.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, view any, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, view)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("dashboard request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// mutationTargets maps proxied features to their API collection path.
var mutationTargets = map[string]string{
	authz.FeatureStudents:    apiclient.PathStudents,
	authz.FeaturePayment:     apiclient.PathPayments,
	authz.FeatureCourses:     "/courses",
	authz.FeatureAttendance:  apiclient.PathAttendance,
	authz.FeatureInventory:   "/inventory",
	authz.FeatureTeam:        "/team",
	authz.FeatureCashflow:    apiclient.PathCashflow,
	authz.FeatureInstitution: "/institution",
	authz.FeatureRecycleBin:  "/recyclebin",
}

// MutationAction returns the action a proxied request needs on feature.
// Attendance creation is marking attendance and recycle bin writes to a
// restore path are restores. ok is false for non-mutating methods.
func MutationAction(feature, method, rest string) (string, bool) {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		if feature == authz.FeatureRecycleBin && strings.HasSuffix(strings.TrimSuffix(rest, "/"), "restore") {
			return authz.ActionRestore, true
		}
		if method != http.MethodPost {
			return authz.ActionUpdate, true
		}
		if feature == authz.FeatureAttendance {
			return authz.ActionAttend, true
		}
		return authz.ActionCreate, true
	case http.MethodDelete:
		return authz.ActionDelete, true
	default:
		return "", false
	}
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request) {
	feature := chi.URLParam(r, "feature")
	base, known := mutationTargets[feature]
	if !known {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	rest := chi.URLParam(r, "*")
	action, ok := MutationAction(feature, r.Method, rest)
	if !ok {
		w.Header().Set("Allow", "POST, PUT, PATCH, DELETE")
		httpx.Problem(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), "")
		return
	}
	scope := scopeOf(r)
	if scope.User == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if !authz.HasPermission(scope.User, feature, action) {
		h.logger.Warn("authz denied",
			slog.String("user", scope.User.ID),
			slog.String("feature", feature),
			slog.String("action", action))
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}

	path, err := upstreamPath(base, rest, r.URL.RawPath != "")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMutationBody))
	if err != nil {
		httpx.RespondError(w, errors.Join(httpx.ErrValidation, err))
		return
	}
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}
	resp, err := h.forwarder.Forward(r.Context(), scope.Token, r.Method, path, body, r.Header.Get("Content-Type"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if resp.Status < http.StatusMultipleChoices {
		h.afterMutation(r.Context(), scope)
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

var errResourcePath = errors.New("dashboard: invalid resource path")

// upstreamPath joins rest under base one escaped segment at a time. Dot
// segments are rejected in plain and percent-encoded form so the request
// cannot leave the feature it was authorised for. escaped reports whether
// rest is still percent-encoded.
func upstreamPath(base, rest string, escaped bool) (string, error) {
	var b strings.Builder
	b.WriteString(base)
	for _, seg := range strings.Split(rest, "/") {
		if seg == "" {
			continue
		}
		if escaped {
			decoded, err := url.PathUnescape(seg)
			if err != nil {
				return "", errors.Join(httpx.ErrValidation, errResourcePath, err)
			}
			seg = decoded
		}
		if seg == "." || seg == ".." || strings.ContainsAny(seg, "/\\") {
			return "", errors.Join(httpx.ErrValidation, errResourcePath)
		}
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	return b.String(), nil
}

func (h *Handler) afterMutation(ctx context.Context, scope Scope) {
	ctx = context.WithoutCancel(ctx)
	if err := h.service.Invalidate(ctx, scope); err != nil {
		h.logger.Warn("dashboard invalidate", slog.String("institution", scope.institution()), slog.Any("error", err))
	}
	if h.warmup == nil {
		return
	}
	if err := h.warmup.EnqueueWarmup(ctx, scope); err != nil {
		h.logger.Warn("dashboard warmup enqueue", slog.Any("error", err))
	}
}

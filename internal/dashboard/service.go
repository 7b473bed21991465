// Package dashboard builds the render-ready view models of the dashboard
// screens from institution API records.
package dashboard

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/campusdesk/campusdesk/internal/authz"
	"github.com/campusdesk/campusdesk/internal/records"
)

// Dataset names used in cache keys and metrics.
const (
	DatasetStudents   = "students"
	DatasetAttendance = "attendance"
	DatasetPayments   = "payments"
	DatasetCashflow   = "cashflow"
)

// DataSource lists institution records on behalf of a session token.
type DataSource interface {
	Students(ctx context.Context, token string, query url.Values) ([]records.Student, error)
	Attendance(ctx context.Context, token string, query url.Values) ([]records.Attendance, error)
	Payments(ctx context.Context, token string, query url.Values) ([]records.Payment, error)
	Cashflow(ctx context.Context, token string, query url.Values) ([]records.Cashflow, error)
}

// Scope identifies who a view is computed for.
type Scope struct {
	User  *authz.User
	Token string
}

func (s Scope) institution() string {
	if s.User == nil {
		return ""
	}
	return s.User.InstitutionID
}

// Service computes dashboard view models.
type Service struct {
	source DataSource
	cache  *Cache
	loc    *time.Location
	logger *slog.Logger
	clock  func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithClock overrides the service's notion of now.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService builds a Service. Calendar keys are computed in loc; a nil loc
// means time.Local. A nil cache fetches every dataset upstream.
func NewService(source DataSource, cache *Cache, loc *time.Location, opts ...ServiceOption) *Service {
	if loc == nil {
		loc = time.Local
	}
	s := &Service{source: source, cache: cache, loc: loc, logger: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the zone calendar keys are computed in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// grantScope fingerprints the principal's grant set. Principals holding the
// same grants share cached datasets; any other principal gets its own entry.
func grantScope(user *authz.User) string {
	if user == nil || user.Role == nil {
		return "none"
	}
	grants := make([]string, 0, len(user.Role.Permissions))
	for _, g := range user.Role.Permissions {
		grants = append(grants, g.FeatureID+":"+g.Permission)
	}
	slices.Sort(grants)
	grants = slices.Compact(grants)
	sum := blake2b.Sum256([]byte(strings.Join(grants, "\n")))
	return hex.EncodeToString(sum[:8])
}

func (s *Service) now() time.Time {
	return s.clock().In(s.loc)
}

func dataset[T any](ctx context.Context, s *Service, scope Scope, name string, fetch func(context.Context, string, url.Values) ([]T, error)) ([]T, error) {
	institution := scope.institution()
	if s.cache == nil || institution == "" {
		return fetch(ctx, scope.Token, nil)
	}
	key, err := s.cache.BuildKey(ctx, institution, name, grantScope(scope.User))
	if err != nil {
		s.logger.Warn("dashboard cache key", slog.String("dataset", name), slog.Any("error", err))
		return fetch(ctx, scope.Token, nil)
	}
	var (
		out       []T
		loaderErr error
	)
	err = s.cache.FetchJSON(ctx, name, key, &out, func(ctx context.Context) (interface{}, error) {
		items, err := fetch(ctx, scope.Token, nil)
		loaderErr = err
		return items, err
	})
	if err == nil {
		return out, nil
	}
	if loaderErr != nil {
		return nil, loaderErr
	}
	s.logger.Warn("dashboard cache", slog.String("dataset", name), slog.Any("error", err))
	return fetch(ctx, scope.Token, nil)
}

func (s *Service) students(ctx context.Context, scope Scope) ([]records.Student, error) {
	return dataset(ctx, s, scope, DatasetStudents, s.source.Students)
}

func (s *Service) attendance(ctx context.Context, scope Scope) ([]records.Attendance, error) {
	return dataset(ctx, s, scope, DatasetAttendance, s.source.Attendance)
}

func (s *Service) payments(ctx context.Context, scope Scope) ([]records.Payment, error) {
	return dataset(ctx, s, scope, DatasetPayments, s.source.Payments)
}

func (s *Service) cashflow(ctx context.Context, scope Scope) ([]records.Cashflow, error) {
	return dataset(ctx, s, scope, DatasetCashflow, s.source.Cashflow)
}

// Invalidate drops every cached dataset of the scope's institution.
func (s *Service) Invalidate(ctx context.Context, scope Scope) error {
	return s.cache.Bump(ctx, scope.institution())
}

// Warm loads every dataset the scope's principal may view into the cache.
func (s *Service) Warm(ctx context.Context, scope Scope) error {
	g, ctx := errgroup.WithContext(ctx)
	if authz.HasPermission(scope.User, authz.FeatureStudents, authz.ActionView) {
		g.Go(func() error {
			_, err := s.students(ctx, scope)
			return err
		})
	}
	if authz.HasPermission(scope.User, authz.FeatureAttendance, authz.ActionView) {
		g.Go(func() error {
			_, err := s.attendance(ctx, scope)
			return err
		})
	}
	if authz.HasPermission(scope.User, authz.FeaturePayment, authz.ActionView) {
		g.Go(func() error {
			_, err := s.payments(ctx, scope)
			return err
		})
	}
	if authz.HasPermission(scope.User, authz.FeatureCashflow, authz.ActionView) {
		g.Go(func() error {
			_, err := s.cashflow(ctx, scope)
			return err
		})
	}
	return g.Wait()
}

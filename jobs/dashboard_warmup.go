package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/campusdesk/campusdesk/internal/authz"
	"github.com/campusdesk/campusdesk/internal/dashboard"
	jobmetrics "github.com/campusdesk/campusdesk/internal/jobs"
	"github.com/campusdesk/campusdesk/internal/platform/httpx"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SessionResolver opens sealed session tokens and resolves their principal.
type SessionResolver interface {
	OpenToken(sealed string) (string, error)
	Principal(ctx context.Context, token string) (*authz.User, error)
}

// Warmer loads the datasets a principal may view into the cache.
type Warmer interface {
	Warm(ctx context.Context, scope dashboard.Scope) error
}

// DashboardWarmupJob pre-populates the dashboard dataset cache.
type DashboardWarmupJob struct {
	Sessions SessionResolver
	Warmer   Warmer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Timeout  time.Duration
}

// NewDashboardWarmupJob wires dependencies for the warmup handler.
func NewDashboardWarmupJob(sessions SessionResolver, warmer Warmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DashboardWarmupJob {
	return &DashboardWarmupJob{Sessions: sessions, Warmer: warmer, Logger: logger, Metrics: metrics, Timeout: 30 * time.Second}
}

// Handle processes dashboard warmup tasks. Sessions that no longer open or
// resolve to the principal they were queued for are dropped without retry.
func (j *DashboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Sessions == nil || j.Warmer == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	var payload DashboardWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.Session == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskDashboardWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	logger := j.logger()
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	token, err := j.Sessions.OpenToken(payload.Session)
	if err != nil {
		logger.Warn("skip warmup with unreadable session", slog.Any("error", err))
		return errors.Join(err, asynq.SkipRetry)
	}
	user, err := j.Sessions.Principal(ctx, token)
	if err != nil {
		if errors.Is(err, httpx.ErrUnauthorized) || errors.Is(err, httpx.ErrForbidden) {
			logger.Info("skip warmup for stale session", slog.Any("error", err))
			return errors.Join(err, asynq.SkipRetry)
		}
		logger.Error("resolve warmup principal", slog.Any("error", err))
		return err
	}
	if (payload.UserID != "" && payload.UserID != user.ID) || (payload.Institution != "" && payload.Institution != user.InstitutionID) {
		logger.Warn("skip warmup for changed principal",
			slog.String("user", payload.UserID),
			slog.String("institution", payload.Institution))
		return asynq.SkipRetry
	}
	logger = logger.With(slog.String("institution", user.InstitutionID))
	if err := j.Warmer.Warm(ctx, dashboard.Scope{User: user, Token: token}); err != nil {
		logger.Error("warm dashboard", slog.Any("error", err))
		return err
	}
	logger.Info("completed dashboard warmup", slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *DashboardWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDashboardWarmup))
	}
	return slog.Default().With(slog.String("job", TaskDashboardWarmup))
}

func (j *DashboardWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

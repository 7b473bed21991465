package jobs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"github.com/campusdesk/campusdesk/internal/dashboard"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDashboardWarmup refills the dashboard dataset cache for a session.
	TaskDashboardWarmup = "dashboard:warmup"
)

// warmupUniqueness collapses warmups enqueued for the same session in a burst
// of mutations into one task.
const warmupUniqueness = 30 * time.Second

// TokenSealer encrypts session tokens before they are queued.
type TokenSealer interface {
	SealToken(token string) (string, error)
}

// DashboardWarmupPayload names the session whose datasets are warmed. The
// session token travels sealed; Institution and UserID are empty for
// scheduled warmups.
type DashboardWarmupPayload struct {
	Institution string `json:"institution,omitempty"`
	UserID      string `json:"userId,omitempty"`
	Session     string `json:"session"`
}

// NewDashboardWarmupTask constructs a dashboard warmup task for scope.
func NewDashboardWarmupTask(sealer TokenSealer, scope dashboard.Scope) (*asynq.Task, error) {
	if sealer == nil {
		return nil, errors.New("dashboard warmup: token sealer required")
	}
	if scope.Token == "" {
		return nil, errors.New("dashboard warmup: token required")
	}
	sealed, err := sealer.SealToken(scope.Token)
	if err != nil {
		return nil, err
	}
	payload := DashboardWarmupPayload{Session: sealed}
	if scope.User != nil {
		payload.Institution = scope.User.InstitutionID
		payload.UserID = scope.User.ID
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDashboardWarmup, data, asynq.MaxRetry(3), asynq.Timeout(time.Minute)), nil
}

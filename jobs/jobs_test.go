package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/campusdesk/internal/authz"
	"github.com/campusdesk/campusdesk/internal/dashboard"
	jobmetrics "github.com/campusdesk/campusdesk/internal/jobs"
	"github.com/campusdesk/campusdesk/internal/platform/httpx"
	"github.com/campusdesk/campusdesk/internal/session"
)

var testSessions = session.NewManager(nil, nil, "test-secret", 0, nil)

type stubResolver struct {
	*session.Manager
	user *authz.User
	err  error
}

func (s stubResolver) Principal(context.Context, string) (*authz.User, error) {
	return s.user, s.err
}

func resolver(user *authz.User, err error) stubResolver {
	return stubResolver{Manager: testSessions, user: user, err: err}
}

type stubWarmer struct {
	scopes []dashboard.Scope
	err    error
}

func (s *stubWarmer) Warm(_ context.Context, scope dashboard.Scope) error {
	s.scopes = append(s.scopes, scope)
	return s.err
}

func warmupTask(t *testing.T, scope dashboard.Scope) *asynq.Task {
	t.Helper()
	task, err := NewDashboardWarmupTask(testSessions, scope)
	require.NoError(t, err)
	return task
}

func sessionScope() dashboard.Scope {
	return dashboard.Scope{User: &authz.User{ID: "u1", InstitutionID: "inst-1"}, Token: "eyJ.live-session.token"}
}

func TestNewDashboardWarmupTaskSealsToken(t *testing.T) {
	task := warmupTask(t, sessionScope())
	assert.Equal(t, TaskDashboardWarmup, task.Type())
	assert.NotContains(t, string(task.Payload()), "eyJ.live-session.token")
	assert.NotContains(t, string(task.Payload()), "live-session")

	var payload DashboardWarmupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "inst-1", payload.Institution)
	assert.Equal(t, "u1", payload.UserID)
	token, err := testSessions.OpenToken(payload.Session)
	require.NoError(t, err)
	assert.Equal(t, "eyJ.live-session.token", token)

	again := warmupTask(t, sessionScope())
	assert.Equal(t, task.Payload(), again.Payload())

	_, err = NewDashboardWarmupTask(testSessions, dashboard.Scope{})
	assert.Error(t, err)
	_, err = NewDashboardWarmupTask(nil, sessionScope())
	assert.Error(t, err)
}

func TestDashboardWarmupWarmsPrincipalScope(t *testing.T) {
	user := &authz.User{ID: "u1", InstitutionID: "inst-1"}
	warmer := &stubWarmer{}
	job := NewDashboardWarmupJob(resolver(user, nil), warmer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), warmupTask(t, sessionScope())))
	require.Len(t, warmer.scopes, 1)
	assert.Equal(t, user, warmer.scopes[0].User)
	assert.Equal(t, "eyJ.live-session.token", warmer.scopes[0].Token)
}

func TestDashboardWarmupScheduledWithoutPrincipal(t *testing.T) {
	user := &authz.User{ID: "svc", InstitutionID: "inst-9"}
	warmer := &stubWarmer{}
	job := NewDashboardWarmupJob(resolver(user, nil), warmer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), warmupTask(t, dashboard.Scope{Token: "service-token"})))
	require.Len(t, warmer.scopes, 1)
	assert.Equal(t, "service-token", warmer.scopes[0].Token)
}

func TestDashboardWarmupSkipsStaleSessions(t *testing.T) {
	warmer := &stubWarmer{}
	job := NewDashboardWarmupJob(resolver(nil, httpx.ErrUnauthorized), warmer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), warmupTask(t, sessionScope()))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, warmer.scopes)
}

func TestDashboardWarmupSkipsChangedPrincipal(t *testing.T) {
	warmer := &stubWarmer{}
	other := &authz.User{ID: "u2", InstitutionID: "inst-1"}
	job := NewDashboardWarmupJob(resolver(other, nil), warmer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), warmupTask(t, sessionScope()))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, warmer.scopes)
}

func TestDashboardWarmupSkipsForeignSeal(t *testing.T) {
	foreign := session.NewManager(nil, nil, "other-secret", 0, nil)
	task, err := NewDashboardWarmupTask(foreign, sessionScope())
	require.NoError(t, err)

	warmer := &stubWarmer{}
	job := NewDashboardWarmupJob(resolver(&authz.User{ID: "u1", InstitutionID: "inst-1"}, nil), warmer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	err = job.Handle(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, session.ErrSealedToken)
	assert.Empty(t, warmer.scopes)
}

func TestDashboardWarmupRetriesUpstreamFailures(t *testing.T) {
	user := &authz.User{ID: "u1", InstitutionID: "inst-1"}
	job := NewDashboardWarmupJob(resolver(user, nil), &stubWarmer{err: httpx.ErrUpstream}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), warmupTask(t, sessionScope()))
	assert.True(t, errors.Is(err, httpx.ErrUpstream))
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestDashboardWarmupRejectsBadPayload(t *testing.T) {
	job := NewDashboardWarmupJob(resolver(nil, nil), &stubWarmer{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskDashboardWarmup, []byte("not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	var unconfigured *DashboardWarmupJob
	assert.Error(t, unconfigured.Handle(context.Background(), warmupTask(t, sessionScope())))
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   int
	}{
		{"no inspector", nil, http.StatusOK, 0},
		{"queue info", stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4}}, http.StatusOK, 4},
		{"queue missing", stubInspector{err: asynq.ErrQueueNotFound}, http.StatusOK, 0},
		{"redis down", stubInspector{err: errors.New("dial tcp")}, http.StatusServiceUnavailable, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.inspector, nil).MountRoutes(r)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tc.status, rec.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body queueHealth
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, QueueDefault, body.Queue)
			assert.Equal(t, tc.pending, body.Pending)
		})
	}
}

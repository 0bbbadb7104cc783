package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/repodigest/internal/adapter/driving/http"
	"github.com/ericfisherdev/repodigest/internal/application"
	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// --- Stub implementations ---

type stubGateway struct {
	activities map[string][]model.Activity
	fetchErr   error
	search     []model.Repository
	searchErr  error
	hot        []model.Repository
	hotErr     error

	mu       sync.Mutex
	hotDays  int
	hotLimit int
}

func (s *stubGateway) FetchActivities(_ context.Context, repoFullName string, _ int) ([]model.Activity, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.activities[repoFullName], nil
}

func (s *stubGateway) Search(_ context.Context, _ string) ([]model.Repository, error) {
	return s.search, s.searchErr
}

func (s *stubGateway) HotRepositories(_ context.Context, days, limit int) ([]model.Repository, error) {
	s.mu.Lock()
	s.hotDays, s.hotLimit = days, limit
	s.mu.Unlock()
	return s.hot, s.hotErr
}

type memRepoStore struct {
	mu    sync.Mutex
	repos map[string]model.TrackedRepository
}

func (m *memRepoStore) Track(_ context.Context, repo model.TrackedRepository) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.repos[repo.FullName]; !ok {
		m.repos[repo.FullName] = repo
	}
	return nil
}

func (m *memRepoStore) Untrack(_ context.Context, fullName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.repos, fullName)
	return nil
}

func (m *memRepoStore) ListAll(_ context.Context) ([]model.TrackedRepository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.TrackedRepository, 0, len(m.repos))
	for _, r := range m.repos {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *memRepoStore) SaveRefresh(_ context.Context, fullName string, checkedAt time.Time, lookbackDays int, summary string, activities []model.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo, ok := m.repos[fullName]
	if !ok {
		return driven.ErrRepoNotFound
	}
	repo.LastCheckedAt = &checkedAt
	repo.LookbackDays = lookbackDays
	repo.Summary = summary
	repo.Activities = activities
	m.repos[fullName] = repo
	return nil
}

type memTaskStore struct {
	mu     sync.Mutex
	tasks  map[string]model.ScheduledTask
	nextID int
}

func (m *memTaskStore) Create(_ context.Context, task model.ScheduledTask) (model.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	task.ID = fmt.Sprintf("task-%d", m.nextID)
	task.CreatedAt = time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	m.tasks[task.ID] = task
	return task, nil
}

func (m *memTaskStore) Get(_ context.Context, id string) (model.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return model.ScheduledTask{}, driven.ErrTaskNotFound
	}
	return task, nil
}

func (m *memTaskStore) List(_ context.Context) ([]model.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memTaskStore) Update(_ context.Context, task model.ScheduledTask) (model.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.tasks[task.ID]
	if !ok {
		return model.ScheduledTask{}, driven.ErrTaskNotFound
	}
	task.CreatedAt = old.CreatedAt
	m.tasks[task.ID] = task
	return task, nil
}

func (m *memTaskStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return driven.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

type recordingExecutor struct {
	mu       sync.Mutex
	executed []string
	err      error
}

func (e *recordingExecutor) Execute(_ context.Context, task model.ScheduledTask) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, task.ID)
	return e.err
}

func (e *recordingExecutor) ids() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.executed...)
}

// --- Test helpers ---

type testEnv struct {
	server   http.Handler
	registry *application.TrackedRepoRegistry
	gateway  *stubGateway
	executor *recordingExecutor
}

func newTestEnv(t *testing.T, gateway *stubGateway) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := application.NewTrackedRepoRegistry(&memRepoStore{repos: make(map[string]model.TrackedRepository)}, nil)
	orchestrator := application.NewRefreshOrchestrator(gateway, registry, 4)
	executor := &recordingExecutor{}
	engine := application.NewScheduleEngine(&memTaskStore{tasks: make(map[string]model.ScheduledTask)}, registry, executor, time.UTC)

	h := httphandler.NewHandler(registry, orchestrator, engine, application.NewCatalogService(gateway, nil), nil, 7, logger)

	return &testEnv{
		server:   httphandler.NewServeMux(h, logger),
		registry: registry,
		gateway:  gateway,
		executor: executor,
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) track(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, e.registry.Track(context.Background(), name))
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func recentActivity(title string, age time.Duration) model.Activity {
	return model.Activity{
		Type:        model.ActivityCommit,
		Title:       title,
		Description: "by alice",
		CreatedAt:   time.Now().UTC().Add(-age),
	}
}

// --- Tests ---

func TestHealth(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})
	env.track(t, "golang/go")

	rec := env.do(t, http.MethodGet, "/api/v1/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	resp := decode[httphandler.HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.TrackedRepos)
	assert.Equal(t, 7, resp.DefaultLookbackDays)
}

func TestListRepos_Empty(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	rec := env.do(t, http.MethodGet, "/api/v1/repos", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListRepos_WindowDecidesHasUpdates(t *testing.T) {
	gateway := &stubGateway{activities: map[string][]model.Activity{
		"golang/go": {recentActivity("old change", 3*24*time.Hour)},
	}}
	env := newTestEnv(t, gateway)
	env.track(t, "golang/go", "rust-lang/rust")

	rec := env.do(t, http.MethodPost, "/api/v1/repos/refresh?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/repos?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	repos := decode[[]httphandler.TrackedRepoResponse](t, rec)
	require.Len(t, repos, 2)
	assert.Equal(t, "golang/go", repos[0].FullName)
	assert.True(t, repos[0].HasUpdates)
	require.NotNil(t, repos[0].LatestActivity)
	assert.Equal(t, "old change", repos[0].LatestActivity.Title)
	assert.NotNil(t, repos[0].LastCheckedAt)
	assert.False(t, repos[1].HasUpdates)
	assert.Empty(t, repos[1].Activities)

	rec = env.do(t, http.MethodGet, "/api/v1/repos?days=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	repos = decode[[]httphandler.TrackedRepoResponse](t, rec)
	assert.False(t, repos[0].HasUpdates)
	assert.Nil(t, repos[0].LatestActivity)
}

func TestListRepos_InvalidDays(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	for _, days := range []string{"2", "abc", "0", "-7"} {
		rec := env.do(t, http.MethodGet, "/api/v1/repos?days="+days, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "days=%s", days)
		assert.Contains(t, rec.Body.String(), `"field":"days"`)
	}
}

func TestTrackRepo(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	rec := env.do(t, http.MethodPost, "/api/v1/repos",
		`{"full_name":"golang/go","description":"The Go language","stars":120000,"forks":17000}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[httphandler.TrackedRepoResponse](t, rec)
	assert.Equal(t, "golang/go", resp.FullName)
	assert.Equal(t, "golang", resp.Owner)
	assert.Equal(t, "go", resp.Name)
	assert.Equal(t, 120000, resp.Stars)
	assert.Equal(t, "https://github.com/golang/go", resp.URL)
	assert.True(t, env.registry.IsTracked("golang/go"))
}

func TestTrackRepo_Idempotent(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	first := env.do(t, http.MethodPost, "/api/v1/repos", `{"full_name":"golang/go"}`)
	second := env.do(t, http.MethodPost, "/api/v1/repos", `{"full_name":"golang/go"}`)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, []string{"golang/go"}, env.registry.Names())
}

func TestTrackRepo_InvalidName(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	for _, body := range []string{`{"full_name":"no-slash"}`, `{"full_name":"a/b/c"}`, `{"full_name":""}`} {
		rec := env.do(t, http.MethodPost, "/api/v1/repos", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, env.registry.Names())
}

func TestTrackRepo_InvalidBody(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	rec := env.do(t, http.MethodPost, "/api/v1/repos", `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestUntrackRepo(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})
	env.track(t, "golang/go")

	rec := env.do(t, http.MethodDelete, "/api/v1/repos/golang/go", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, env.registry.IsTracked("golang/go"))

	rec = env.do(t, http.MethodDelete, "/api/v1/repos/golang/go", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRefreshRepo(t *testing.T) {
	gateway := &stubGateway{activities: map[string][]model.Activity{
		"golang/go": {recentActivity("a", time.Hour), recentActivity("b", 2*time.Hour)},
	}}
	env := newTestEnv(t, gateway)
	env.track(t, "golang/go")

	rec := env.do(t, http.MethodPost, "/api/v1/repos/golang/go/refresh?days=1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[httphandler.RefreshResultResponse](t, rec)
	assert.Equal(t, "golang/go", resp.Repo)
	assert.Equal(t, 2, resp.Activities)
	assert.Empty(t, resp.Error)

	repo, ok := env.registry.Get("golang/go")
	require.True(t, ok)
	assert.Equal(t, 1, repo.LookbackDays)
}

func TestRefreshRepo_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		fetchErr error
		track    bool
		want     int
	}{
		{name: "untracked", track: false, want: http.StatusNotFound},
		{name: "remote unavailable", track: true, fetchErr: fmt.Errorf("timeout: %w", driven.ErrRemoteUnavailable), want: http.StatusBadGateway},
		{name: "deleted upstream", track: true, fetchErr: fmt.Errorf("gone: %w", driven.ErrRepoNotFound), want: http.StatusNotFound},
		{name: "unexpected", track: true, fetchErr: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &stubGateway{fetchErr: tt.fetchErr})
			if tt.track {
				env.track(t, "golang/go")
			}

			rec := env.do(t, http.MethodPost, "/api/v1/repos/golang/go/refresh", "")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRefreshAll_ReportsFailuresIndividually(t *testing.T) {
	env := newTestEnv(t, &stubGateway{fetchErr: driven.ErrRemoteUnavailable})
	env.track(t, "golang/go", "rust-lang/rust")

	rec := env.do(t, http.MethodPost, "/api/v1/repos/refresh", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[httphandler.RefreshReportResponse](t, rec)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 2, resp.Failed)
	for _, res := range resp.Results {
		assert.Contains(t, res.Error, "remote unavailable")
	}
}

func TestSearch(t *testing.T) {
	gateway := &stubGateway{search: []model.Repository{
		{FullName: "golang/go", Owner: "golang", Name: "go", Stars: 120000},
	}}
	env := newTestEnv(t, gateway)

	rec := env.do(t, http.MethodGet, "/api/v1/search?q=go", "")

	require.Equal(t, http.StatusOK, rec.Code)
	repos := decode[[]httphandler.RepositoryResponse](t, rec)
	require.Len(t, repos, 1)
	assert.Equal(t, "golang/go", repos[0].FullName)
	assert.Equal(t, 120000, repos[0].Stars)
}

func TestSearch_EmptyQuery(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	rec := env.do(t, http.MethodGet, "/api/v1/search?q=%20", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch_RemoteFailure(t *testing.T) {
	env := newTestEnv(t, &stubGateway{searchErr: fmt.Errorf("search: %w", driven.ErrRemoteUnavailable)})

	rec := env.do(t, http.MethodGet, "/api/v1/search?q=go", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHot(t *testing.T) {
	gateway := &stubGateway{hot: []model.Repository{{FullName: "new/thing", Stars: 900}}}
	env := newTestEnv(t, gateway)

	rec := env.do(t, http.MethodGet, "/api/v1/hot?days=30&limit=5", "")

	require.Equal(t, http.StatusOK, rec.Code)
	repos := decode[[]httphandler.RepositoryResponse](t, rec)
	require.Len(t, repos, 1)
	assert.Equal(t, 30, gateway.hotDays)
	assert.Equal(t, 5, gateway.hotLimit)

	rec = env.do(t, http.MethodGet, "/api/v1/hot?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHotSummary(t *testing.T) {
	gateway := &stubGateway{hot: []model.Repository{
		{FullName: "new/thing", Stars: 900},
		{FullName: "new/other", Stars: 40},
	}}
	env := newTestEnv(t, gateway)

	rec := env.do(t, http.MethodGet, "/api/v1/hot/summary?days=7&limit=2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[httphandler.SummaryResponse](t, rec)
	assert.Equal(t, "builtin", resp.Source)
	assert.Equal(t, 7, resp.LookbackDays)
	assert.Equal(t, "2 repositories created in the last 7 days. Most starred: new/thing (900 stars), new/other (40 stars).", resp.Summary)
	assert.Equal(t, 2, gateway.hotLimit)

	rec = env.do(t, http.MethodGet, "/api/v1/hot/summary?days=5", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHotSummary_RemoteFailure(t *testing.T) {
	env := newTestEnv(t, &stubGateway{hotErr: fmt.Errorf("hot: %w", driven.ErrRemoteUnavailable)})

	rec := env.do(t, http.MethodGet, "/api/v1/hot/summary", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestTrackedSummary(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	rec := env.do(t, http.MethodGet, "/api/v1/repos/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "No tracked repositories.", decode[httphandler.SummaryResponse](t, rec).Summary)

	env.track(t, "golang/go")
	rec = env.do(t, http.MethodGet, "/api/v1/repos/summary?days=30", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[httphandler.SummaryResponse](t, rec)
	assert.Equal(t, "builtin", resp.Source)
	assert.Equal(t, 30, resp.LookbackDays)
	assert.Equal(t, "golang/go: not refreshed yet.", resp.Summary)
}

func TestTrackRepo_KeepsLocalizedDescription(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	rec := env.do(t, http.MethodPost, "/api/v1/repos",
		`{"full_name":"golang/go","description":"The Go language","description_localized":"Go 语言"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Go 语言", decode[httphandler.TrackedRepoResponse](t, rec).DescriptionLocalized)
	repo, ok := env.registry.Get("golang/go")
	require.True(t, ok)
	assert.Equal(t, "Go 语言", repo.DescriptionLocalized)
}

func TestTasks_CreateGetList(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})
	env.track(t, "golang/go")

	rec := env.do(t, http.MethodPost, "/api/v1/tasks",
		`{"email":"dev@example.com","repositories":["golang/go"],"frequency":"weekly","weekday":1,"execute_time":"09:00"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[httphandler.TaskResponse](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "weekly", created.Frequency)
	require.NotNil(t, created.Weekday)
	assert.Equal(t, 1, *created.Weekday)
	assert.Equal(t, "09:00", created.ExecuteTime)
	assert.Equal(t, "every Monday 09:00", created.Schedule)
	assert.NotEmpty(t, created.NextRunAt)
	assert.Empty(t, env.executor.ids())

	rec = env.do(t, http.MethodGet, "/api/v1/tasks/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[httphandler.TaskResponse](t, rec).ID)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]httphandler.TaskResponse](t, rec), 1)
}

func TestTasks_ImmediateRunsOnCreate(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})
	env.track(t, "golang/go")

	rec := env.do(t, http.MethodPost, "/api/v1/tasks",
		`{"email":"dev@example.com","repositories":["golang/go"],"frequency":"immediate"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[httphandler.TaskResponse](t, rec)
	assert.Empty(t, created.NextRunAt)
	assert.Equal(t, []string{created.ID}, env.executor.ids())
}

func TestTasks_Validation(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})
	env.track(t, "golang/go")

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "bad email", body: `{"email":"nope","repositories":["golang/go"],"frequency":"daily","execute_time":"09:00"}`, field: "email"},
		{name: "no repositories", body: `{"email":"dev@example.com","repositories":[],"frequency":"daily","execute_time":"09:00"}`, field: "repositories"},
		{name: "untracked repository", body: `{"email":"dev@example.com","repositories":["rust-lang/rust"],"frequency":"daily","execute_time":"09:00"}`, field: "repositories"},
		{name: "weekly without weekday", body: `{"email":"dev@example.com","repositories":["golang/go"],"frequency":"weekly","execute_time":"09:00"}`, field: "weekday"},
		{name: "monthly day out of range", body: `{"email":"dev@example.com","repositories":["golang/go"],"frequency":"monthly","month_day":31,"execute_time":"09:00"}`, field: "monthDay"},
		{name: "bad clock", body: `{"email":"dev@example.com","repositories":["golang/go"],"frequency":"daily","execute_time":"25:00"}`, field: "executeTime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/tasks", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"field":"`+tt.field+`"`)
		})
	}

	rec := env.do(t, http.MethodGet, "/api/v1/tasks", "")
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestTasks_UpdateKeepsIdentity(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})
	env.track(t, "golang/go", "rust-lang/rust")

	rec := env.do(t, http.MethodPost, "/api/v1/tasks",
		`{"email":"dev@example.com","repositories":["golang/go"],"frequency":"daily","execute_time":"08:30"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[httphandler.TaskResponse](t, rec)

	rec = env.do(t, http.MethodPut, "/api/v1/tasks/"+created.ID,
		`{"email":"ops@example.com","repositories":["rust-lang/rust"],"frequency":"monthly","month_day":15,"execute_time":"07:00"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[httphandler.TaskResponse](t, rec)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "ops@example.com", updated.Email)
	assert.Equal(t, []string{"rust-lang/rust"}, updated.Repositories)
	assert.Equal(t, "monthly", updated.Frequency)
}

func TestTasks_NotFound(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})
	env.track(t, "golang/go")

	rec := env.do(t, http.MethodGet, "/api/v1/tasks/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/tasks/missing",
		`{"email":"dev@example.com","repositories":["golang/go"],"frequency":"daily","execute_time":"09:00"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/tasks/missing/execute", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/tasks/missing", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTasks_ExecuteAndDelete(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})
	env.track(t, "golang/go")

	rec := env.do(t, http.MethodPost, "/api/v1/tasks",
		`{"email":"dev@example.com","repositories":["golang/go"],"frequency":"daily","execute_time":"09:00"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[httphandler.TaskResponse](t, rec).ID

	rec = env.do(t, http.MethodPost, "/api/v1/tasks/"+id+"/execute", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{id}, env.executor.ids())

	rec = env.do(t, http.MethodDelete, "/api/v1/tasks/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := newTestEnv(t, &stubGateway{})
	registry := application.NewTrackedRepoRegistry(&memRepoStore{repos: make(map[string]model.TrackedRepository)}, nil)

	// A nil engine panics on the first task call.
	h := httphandler.NewHandler(registry, application.NewRefreshOrchestrator(env.gateway, registry, 1), nil,
		application.NewCatalogService(env.gateway, nil), nil, 7, logger)
	server := httphandler.NewServeMux(h, logger)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

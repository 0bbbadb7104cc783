package application_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// --- Mock implementations ---

// mockGateway is a testify mock of driven.ActivityGateway.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) FetchActivities(ctx context.Context, repoFullName string, lookbackDays int) ([]model.Activity, error) {
	args := m.Called(ctx, repoFullName, lookbackDays)
	activities, _ := args.Get(0).([]model.Activity)
	return activities, args.Error(1)
}

func (m *mockGateway) Search(ctx context.Context, query string) ([]model.Repository, error) {
	args := m.Called(ctx, query)
	repos, _ := args.Get(0).([]model.Repository)
	return repos, args.Error(1)
}

func (m *mockGateway) HotRepositories(ctx context.Context, days, limit int) ([]model.Repository, error) {
	args := m.Called(ctx, days, limit)
	repos, _ := args.Get(0).([]model.Repository)
	return repos, args.Error(1)
}

// memRepoStore is an in-memory driven.RepoStore. The *Err fields make the
// corresponding call fail.
type memRepoStore struct {
	mu           sync.Mutex
	repos        map[string]model.TrackedRepository
	trackCalls   int
	trackErr     error
	untrackErr   error
	saveErr      error
	saveRefreshN int
}

func newMemRepoStore() *memRepoStore {
	return &memRepoStore{repos: make(map[string]model.TrackedRepository)}
}

func (m *memRepoStore) Track(_ context.Context, repo model.TrackedRepository) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackCalls++
	if m.trackErr != nil {
		return m.trackErr
	}
	if _, ok := m.repos[repo.FullName]; !ok {
		m.repos[repo.FullName] = repo
	}
	return nil
}

func (m *memRepoStore) Untrack(_ context.Context, fullName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.untrackErr != nil {
		return m.untrackErr
	}
	delete(m.repos, fullName)
	return nil
}

func (m *memRepoStore) ListAll(_ context.Context) ([]model.TrackedRepository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	repos := make([]model.TrackedRepository, 0, len(m.repos))
	for _, r := range m.repos {
		repos = append(repos, r)
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].FullName < repos[j].FullName })
	return repos, nil
}

func (m *memRepoStore) SaveRefresh(_ context.Context, fullName string, checkedAt time.Time, lookbackDays int, summary string, activities []model.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	repo, ok := m.repos[fullName]
	if !ok {
		return fmt.Errorf("save refresh %s: %w", fullName, driven.ErrRepoNotFound)
	}
	repo.LastCheckedAt = &checkedAt
	repo.LookbackDays = lookbackDays
	repo.Summary = summary
	repo.Activities = activities
	m.repos[fullName] = repo
	m.saveRefreshN++
	return nil
}

// memTaskStore is an in-memory driven.TaskStore assigning sequential IDs.
type memTaskStore struct {
	mu      sync.Mutex
	tasks   map[string]model.ScheduledTask
	nextID  int
	calls   int
	now     time.Time
	listErr error
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{
		tasks: make(map[string]model.ScheduledTask),
		now:   time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (m *memTaskStore) Create(_ context.Context, task model.ScheduledTask) (model.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.nextID++
	task.ID = fmt.Sprintf("task-%d", m.nextID)
	task.CreatedAt = m.now
	m.tasks[task.ID] = task
	return task, nil
}

func (m *memTaskStore) Get(_ context.Context, id string) (model.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	task, ok := m.tasks[id]
	if !ok {
		return model.ScheduledTask{}, driven.ErrTaskNotFound
	}
	return task, nil
}

func (m *memTaskStore) List(_ context.Context) ([]model.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	tasks := make([]model.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (m *memTaskStore) Update(_ context.Context, task model.ScheduledTask) (model.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	existing, ok := m.tasks[task.ID]
	if !ok {
		return model.ScheduledTask{}, driven.ErrTaskNotFound
	}
	task.CreatedAt = existing.CreatedAt
	m.tasks[task.ID] = task
	return task, nil
}

func (m *memTaskStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if _, ok := m.tasks[id]; !ok {
		return driven.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

// recordingExecutor records executed tasks.
type recordingExecutor struct {
	mu       sync.Mutex
	executed []model.ScheduledTask
	err      error
}

func (r *recordingExecutor) Execute(_ context.Context, task model.ScheduledTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executed = append(r.executed, task)
	return r.err
}

func (r *recordingExecutor) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.executed)
}

// recordingMailer records sent messages.
type recordingMailer struct {
	mu   sync.Mutex
	sent []model.Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, msg model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// fixedClock returns a clock function frozen at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// staticTracked is a TrackedChecker over a fixed set.
type staticTracked map[string]bool

func (s staticTracked) IsTracked(fullName string) bool { return s[fullName] }

// prefixTranslator "translates" by prefixing each non-empty text with "zh:".
type prefixTranslator struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (p *prefixTranslator) TranslateBatch(_ context.Context, texts []string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, texts)
	if p.err != nil {
		return nil, p.err
	}
	out := make([]string, len(texts))
	for i, text := range texts {
		if text != "" {
			out[i] = "zh:" + text
		}
	}
	return out, nil
}

// stubSummarizer returns canned summaries, or err for every call.
type stubSummarizer struct {
	activity string
	tracked  string
	hot      string
	err      error

	mu      sync.Mutex
	repos   []string
	windows []int
}

func (s *stubSummarizer) SummarizeActivity(_ context.Context, repoFullName string, _ []model.Activity, lookbackDays int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos = append(s.repos, repoFullName)
	s.windows = append(s.windows, lookbackDays)
	return s.activity, s.err
}

func (s *stubSummarizer) SummarizeTracked(_ context.Context, _ []model.TrackedRepoStatus) (string, error) {
	return s.tracked, s.err
}

func (s *stubSummarizer) SummarizeHot(_ context.Context, _ []model.Repository) (string, error) {
	return s.hot, s.err
}

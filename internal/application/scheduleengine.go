package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// TrackedChecker reports repository membership in the tracked set.
type TrackedChecker interface {
	IsTracked(fullName string) bool
}

// ScheduleEngine owns scheduled task definitions: validation, persistence
// through a TaskStore, recurrence math and manual execution.
type ScheduleEngine struct {
	store    driven.TaskStore
	tracked  TrackedChecker
	executor driven.TaskExecutor
	loc      *time.Location
}

// NewScheduleEngine creates a ScheduleEngine. Recurrences are evaluated in loc;
// a nil loc means UTC.
func NewScheduleEngine(store driven.TaskStore, tracked TrackedChecker, executor driven.TaskExecutor, loc *time.Location) *ScheduleEngine {
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleEngine{
		store:    store,
		tracked:  tracked,
		executor: executor,
		loc:      loc,
	}
}

// Validate checks a draft without touching the store. Failures are
// *model.ValidationError.
func (e *ScheduleEngine) Validate(draft model.TaskDraft) error {
	email := strings.TrimSpace(draft.Email)
	if email == "" {
		return &model.ValidationError{Field: "email", Reason: "is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &model.ValidationError{Field: "email", Reason: "must be a valid email address"}
	}

	if len(draft.Repositories) == 0 {
		return &model.ValidationError{Field: "repositories", Reason: "must not be empty"}
	}
	for _, repo := range draft.Repositories {
		if _, _, err := model.ParseFullName(repo); err != nil {
			return &model.ValidationError{Field: "repositories", Reason: fmt.Sprintf("%q is not an owner/name identifier", repo)}
		}
		if !e.tracked.IsTracked(repo) {
			return &model.ValidationError{Field: "repositories", Reason: fmt.Sprintf("%q is not tracked", repo)}
		}
	}

	return model.ValidateRecurrence(draft.Recurrence)
}

// normalize trims the email and drops duplicate repositories, keeping order.
func normalize(draft model.TaskDraft) model.TaskDraft {
	seen := make(map[string]bool, len(draft.Repositories))
	repos := make([]string, 0, len(draft.Repositories))
	for _, repo := range draft.Repositories {
		if seen[repo] {
			continue
		}
		seen[repo] = true
		repos = append(repos, repo)
	}

	return model.TaskDraft{
		Email:        strings.TrimSpace(draft.Email),
		Repositories: repos,
		Recurrence:   draft.Recurrence,
	}
}

// Save creates or replaces a task depending on target.
func (e *ScheduleEngine) Save(ctx context.Context, target model.SaveTarget, draft model.TaskDraft) (model.ScheduledTask, error) {
	switch t := target.(type) {
	case model.NewTask:
		return e.Create(ctx, draft)
	case model.EditTask:
		return e.Update(ctx, t.ID, draft)
	default:
		return model.ScheduledTask{}, fmt.Errorf("save task: unsupported target %T", target)
	}
}

// Create validates and persists a new task. The store assigns its ID.
// Immediate tasks are executed once after they are saved.
func (e *ScheduleEngine) Create(ctx context.Context, draft model.TaskDraft) (model.ScheduledTask, error) {
	draft = normalize(draft)
	if err := e.Validate(draft); err != nil {
		return model.ScheduledTask{}, err
	}

	task, err := e.store.Create(ctx, model.ScheduledTask{
		Email:        draft.Email,
		Repositories: draft.Repositories,
		Recurrence:   draft.Recurrence,
	})
	if err != nil {
		return model.ScheduledTask{}, fmt.Errorf("create task: %w", err)
	}

	slog.Info("task created", "task_id", task.ID, "schedule", e.Describe(task))

	if task.Recurrence.Frequency() == model.FrequencyImmediate {
		e.fireImmediate(ctx, task)
	}

	return task, nil
}

// Update replaces the mutable fields of an existing task. It returns
// driven.ErrTaskNotFound if id is unknown. A task edited into an immediate
// one fires once, like a newly created immediate task; editing a task that
// was already immediate does not re-fire it.
func (e *ScheduleEngine) Update(ctx context.Context, id string, draft model.TaskDraft) (model.ScheduledTask, error) {
	draft = normalize(draft)
	if err := e.Validate(draft); err != nil {
		return model.ScheduledTask{}, err
	}

	prev, err := e.store.Get(ctx, id)
	if err != nil {
		return model.ScheduledTask{}, fmt.Errorf("update task %s: %w", id, err)
	}

	task, err := e.store.Update(ctx, model.ScheduledTask{
		ID:           id,
		Email:        draft.Email,
		Repositories: draft.Repositories,
		Recurrence:   draft.Recurrence,
	})
	if err != nil {
		return model.ScheduledTask{}, fmt.Errorf("update task %s: %w", id, err)
	}

	slog.Info("task updated", "task_id", task.ID, "schedule", e.Describe(task))

	if task.Recurrence.Frequency() == model.FrequencyImmediate &&
		prev.Recurrence.Frequency() != model.FrequencyImmediate {
		e.fireImmediate(ctx, task)
	}

	return task, nil
}

// fireImmediate runs a just-saved immediate task. A failed run is logged and
// does not undo the save.
func (e *ScheduleEngine) fireImmediate(ctx context.Context, task model.ScheduledTask) {
	if err := e.Run(ctx, task); err != nil {
		slog.Error("immediate task execution failed", "task_id", task.ID, "error", err)
	}
}

// Delete removes a task. Deleting a task that does not exist succeeds.
func (e *ScheduleEngine) Delete(ctx context.Context, id string) error {
	if err := e.store.Delete(ctx, id); err != nil {
		if errors.Is(err, driven.ErrTaskNotFound) {
			return nil
		}
		return fmt.Errorf("delete task %s: %w", id, err)
	}

	slog.Info("task deleted", "task_id", id)
	return nil
}

// Get returns a single task.
func (e *ScheduleEngine) Get(ctx context.Context, id string) (model.ScheduledTask, error) {
	task, err := e.store.Get(ctx, id)
	if err != nil {
		return model.ScheduledTask{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

// List returns all tasks.
func (e *ScheduleEngine) List(ctx context.Context) ([]model.ScheduledTask, error) {
	tasks, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ExecuteNow runs the notification of task id regardless of its schedule.
// Stored fields are left untouched.
func (e *ScheduleEngine) ExecuteNow(ctx context.Context, id string) error {
	task, err := e.Get(ctx, id)
	if err != nil {
		return err
	}
	return e.Run(ctx, task)
}

// Run executes an already loaded task.
func (e *ScheduleEngine) Run(ctx context.Context, task model.ScheduledTask) error {
	if err := e.executor.Execute(ctx, task); err != nil {
		return fmt.Errorf("execute task %s: %w", task.ID, err)
	}
	slog.Info("task executed", "task_id", task.ID, "repos", len(task.Repositories))
	return nil
}

// Describe formats the task's recurrence, e.g. "every Monday 09:00".
func (e *ScheduleEngine) Describe(task model.ScheduledTask) string {
	if task.Recurrence == nil {
		return "unscheduled"
	}
	return task.Recurrence.Describe()
}

// NextFire returns the first firing instant strictly after after, in the
// engine's time zone. Immediate tasks never fire on their own.
func (e *ScheduleEngine) NextFire(task model.ScheduledTask, after time.Time) (time.Time, bool) {
	if task.Recurrence == nil {
		return time.Time{}, false
	}
	expr, ok := task.Recurrence.CronExpr()
	if !ok {
		return time.Time{}, false
	}

	next, err := gronx.NextTickAfter(expr, after.In(e.loc), false)
	if err != nil {
		slog.Error("next fire computation failed", "task_id", task.ID, "cron", expr, "error", err)
		return time.Time{}, false
	}
	return next, true
}

// Location returns the time zone recurrences are evaluated in.
func (e *ScheduleEngine) Location() *time.Location {
	return e.loc
}

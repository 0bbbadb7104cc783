package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TaskStore = (*TaskRepo)(nil)

// TaskRepo is the SQLite implementation of the TaskStore port interface.
type TaskRepo struct {
	db  *DB
	now func() time.Time
}

// NewTaskRepo creates a new TaskRepo backed by the given DB.
func NewTaskRepo(db *DB) *TaskRepo {
	return &TaskRepo{db: db, now: time.Now}
}

// Create stores a new task under a freshly generated ID and returns it with
// ID and CreatedAt filled in.
func (r *TaskRepo) Create(ctx context.Context, task model.ScheduledTask) (model.ScheduledTask, error) {
	task.ID = uuid.NewString()
	task.CreatedAt = r.now().UTC().Truncate(time.Second)

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return model.ScheduledTask{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	const query = `
		INSERT INTO scheduled_tasks (id, email, frequency, weekday, month_day, execute_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	fields := task.Recurrence.Fields()
	_, err = tx.ExecContext(ctx, query,
		task.ID, task.Email, string(fields.Frequency),
		nullableInt(fields.Weekday), nullableInt(fields.MonthDay), nullableString(fields.ExecuteTime),
		formatTime(task.CreatedAt),
	)
	if err != nil {
		return model.ScheduledTask{}, fmt.Errorf("insert task: %w", err)
	}

	if err := insertTaskRepositories(ctx, tx, task.ID, task.Repositories); err != nil {
		return model.ScheduledTask{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.ScheduledTask{}, fmt.Errorf("commit task %s: %w", task.ID, err)
	}

	return task, nil
}

// Get returns the task with the given ID, or driven.ErrTaskNotFound.
func (r *TaskRepo) Get(ctx context.Context, id string) (model.ScheduledTask, error) {
	const query = `
		SELECT id, email, frequency, weekday, month_day, execute_time, created_at
		FROM scheduled_tasks WHERE id = ?`

	task, err := scanTask(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScheduledTask{}, fmt.Errorf("get task %s: %w", id, driven.ErrTaskNotFound)
	}
	if err != nil {
		return model.ScheduledTask{}, fmt.Errorf("get task %s: %w", id, err)
	}

	repos, err := r.taskRepositories(ctx, id)
	if err != nil {
		return model.ScheduledTask{}, err
	}
	task.Repositories = repos[id]

	return task, nil
}

// List returns all tasks ordered by creation time.
func (r *TaskRepo) List(ctx context.Context) ([]model.ScheduledTask, error) {
	const query = `
		SELECT id, email, frequency, weekday, month_day, execute_time, created_at
		FROM scheduled_tasks ORDER BY created_at, id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	repos, err := r.taskRepositories(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].Repositories = repos[tasks[i].ID]
	}

	return tasks, nil
}

// Update replaces the stored definition of task.ID. CreatedAt is preserved.
// Returns driven.ErrTaskNotFound if no such task exists.
func (r *TaskRepo) Update(ctx context.Context, task model.ScheduledTask) (model.ScheduledTask, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return model.ScheduledTask{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	const query = `
		UPDATE scheduled_tasks
		SET email = ?, frequency = ?, weekday = ?, month_day = ?, execute_time = ?
		WHERE id = ?
		RETURNING created_at`

	fields := task.Recurrence.Fields()
	var createdAt string
	err = tx.QueryRowContext(ctx, query,
		task.Email, string(fields.Frequency),
		nullableInt(fields.Weekday), nullableInt(fields.MonthDay), nullableString(fields.ExecuteTime),
		task.ID,
	).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScheduledTask{}, fmt.Errorf("update task %s: %w", task.ID, driven.ErrTaskNotFound)
	}
	if err != nil {
		return model.ScheduledTask{}, fmt.Errorf("update task %s: %w", task.ID, err)
	}

	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.ScheduledTask{}, fmt.Errorf("parse created_at: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scheduled_task_repositories WHERE task_id = ?`, task.ID); err != nil {
		return model.ScheduledTask{}, fmt.Errorf("delete repositories for task %s: %w", task.ID, err)
	}
	if err := insertTaskRepositories(ctx, tx, task.ID, task.Repositories); err != nil {
		return model.ScheduledTask{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.ScheduledTask{}, fmt.Errorf("commit task %s: %w", task.ID, err)
	}

	return task, nil
}

// Delete removes a task. Returns driven.ErrTaskNotFound if it does not exist.
func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.Writer.ExecContext(ctx, `DELETE FROM scheduled_tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete task %s: %w", id, driven.ErrTaskNotFound)
	}

	return nil
}

// taskRepositories loads repository names grouped by task ID. An empty id
// loads every task's repositories.
func (r *TaskRepo) taskRepositories(ctx context.Context, id string) (map[string][]string, error) {
	query := `SELECT task_id, repo_full_name FROM scheduled_task_repositories`
	var args []any
	if id != "" {
		query += ` WHERE task_id = ?`
		args = append(args, id)
	}
	query += ` ORDER BY task_id, position`

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list task repositories: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var taskID, name string
		if err := rows.Scan(&taskID, &name); err != nil {
			return nil, fmt.Errorf("scan task repository: %w", err)
		}
		out[taskID] = append(out[taskID], name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task repositories: %w", err)
	}

	return out, nil
}

func insertTaskRepositories(ctx context.Context, tx *sql.Tx, taskID string, repos []string) error {
	const query = `INSERT INTO scheduled_task_repositories (task_id, position, repo_full_name) VALUES (?, ?, ?)`

	for i, name := range repos {
		if _, err := tx.ExecContext(ctx, query, taskID, i, name); err != nil {
			return fmt.Errorf("insert repository %s for task %s: %w", name, taskID, err)
		}
	}

	return nil
}

func scanTask(s scanner) (model.ScheduledTask, error) {
	var (
		task        model.ScheduledTask
		frequency   string
		weekday     sql.NullInt64
		monthDay    sql.NullInt64
		executeTime sql.NullString
		createdAt   string
	)

	if err := s.Scan(&task.ID, &task.Email, &frequency, &weekday, &monthDay, &executeTime, &createdAt); err != nil {
		return task, err
	}

	fields := model.RecurrenceFields{
		Frequency:   model.Frequency(frequency),
		ExecuteTime: executeTime.String,
	}
	if weekday.Valid {
		v := int(weekday.Int64)
		fields.Weekday = &v
	}
	if monthDay.Valid {
		v := int(monthDay.Int64)
		fields.MonthDay = &v
	}

	recurrence, err := model.ParseRecurrence(fields)
	if err != nil {
		return task, fmt.Errorf("decode recurrence of task %s: %w", task.ID, err)
	}
	task.Recurrence = recurrence

	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return task, fmt.Errorf("parse created_at: %w", err)
	}

	return task, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

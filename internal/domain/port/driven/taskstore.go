package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
)

// ErrTaskNotFound indicates the requested scheduled task does not exist.
var ErrTaskNotFound = errors.New("scheduled task not found")

// TaskStore defines the driven port for scheduled task persistence.
// Create assigns ID and CreatedAt. Get, Update and Delete return
// ErrTaskNotFound for an unknown ID. Update never changes CreatedAt.
type TaskStore interface {
	Create(ctx context.Context, task model.ScheduledTask) (model.ScheduledTask, error)
	Get(ctx context.Context, id string) (model.ScheduledTask, error)
	List(ctx context.Context) ([]model.ScheduledTask, error)
	Update(ctx context.Context, task model.ScheduledTask) (model.ScheduledTask, error)
	Delete(ctx context.Context, id string) error
}

// TaskExecutor runs a scheduled task's notification once.
type TaskExecutor interface {
	Execute(ctx context.Context, task model.ScheduledTask) error
}

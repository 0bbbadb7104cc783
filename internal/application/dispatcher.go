package application

import (
	"context"
	"log/slog"
	"time"
)

// Dispatcher fires recurring scheduled tasks when their next firing instant
// has passed. It checks on a fixed interval and covers the whole span since
// the previous check, so a late tick does not skip a task.
type Dispatcher struct {
	engine   *ScheduleEngine
	interval time.Duration
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher. now may be nil, in which case time.Now is used.
func NewDispatcher(engine *ScheduleEngine, interval time.Duration, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		engine:   engine,
		interval: interval,
		now:      now,
	}
}

// Start runs the dispatch loop until ctx is canceled.
func (d *Dispatcher) Start(ctx context.Context) {
	last := d.now()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	slog.Info("dispatcher started", "interval", d.interval, "timezone", d.engine.Location().String())

	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatcher stopped")
			return
		case <-ticker.C:
			now := d.now()
			d.DispatchDue(ctx, last, now)
			last = now
		}
	}
}

// DispatchDue executes every recurring task whose next firing instant after
// from is not later than to. It returns the IDs of the tasks it fired.
func (d *Dispatcher) DispatchDue(ctx context.Context, from, to time.Time) []string {
	tasks, err := d.engine.List(ctx)
	if err != nil {
		slog.Error("dispatch: list tasks failed", "error", err)
		return nil
	}

	var fired []string
	var failures int
	for _, task := range tasks {
		next, ok := d.engine.NextFire(task, from)
		if !ok || next.After(to) {
			continue
		}

		fired = append(fired, task.ID)
		if err := d.engine.Run(ctx, task); err != nil {
			failures++
			slog.Error("scheduled task failed", "task_id", task.ID, "due", next, "error", err)
		}
	}

	if len(fired) > 0 {
		slog.Info("dispatch cycle complete", "fired", len(fired), "errors", failures)
	}
	return fired
}

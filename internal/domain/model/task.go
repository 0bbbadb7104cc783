package model

import (
	"fmt"
	"time"
)

// ValidationError reports a malformed task draft field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ScheduledTask is a digest subscription: who receives it, which repositories
// it covers, and when it fires. It carries no execution history.
type ScheduledTask struct {
	ID           string
	Email        string
	Repositories []string
	Recurrence   Recurrence
	CreatedAt    time.Time
}

// Draft returns the mutable fields of the task, as loaded into an edit form.
func (t ScheduledTask) Draft() TaskDraft {
	repos := make([]string, len(t.Repositories))
	copy(repos, t.Repositories)
	return TaskDraft{
		Email:        t.Email,
		Repositories: repos,
		Recurrence:   t.Recurrence,
	}
}

// TaskDraft holds the user-editable fields of a scheduled task.
type TaskDraft struct {
	Email        string
	Repositories []string
	Recurrence   Recurrence
}

// SaveTarget tells a save operation whether the draft creates a new task or
// replaces an existing one. The variants are NewTask and EditTask.
type SaveTarget interface {
	isSaveTarget()
}

// NewTask targets creation of a new task.
type NewTask struct{}

// EditTask targets a full replace of the task with the given ID.
type EditTask struct {
	ID string
}

func (NewTask) isSaveTarget()  {}
func (EditTask) isSaveTarget() {}

// Message is an outgoing notification.
type Message struct {
	To      string
	Subject string
	// Markdown is the message body; mail adapters render it to HTML.
	Markdown string
}

package persistence

import (
	"context"
	"time"
)

// EventFilter narrows event queries. From and To select the events overlapping
// [From, To): an event matches when it ends after From and starts before To.
type EventFilter struct {
	From       *time.Time
	To         *time.Time
	Kind       string
	GovernorID *int64
}

// EventRepository stores calendar events and their notes.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id int64) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	DeleteEvent(ctx context.Context, id int64) error
	AddEventNote(ctx context.Context, note EventNote) (EventNote, error)
}

// DivisionRepository stores divisions.
type DivisionRepository interface {
	CreateDivision(ctx context.Context, division Division) (Division, error)
	GetDivision(ctx context.Context, id int64) (Division, error)
	ListDivisions(ctx context.Context) ([]Division, error)
}

// TaskFilter narrows task queries.
type TaskFilter struct {
	DivisionID  *int64
	Status      string
	ForFollowUp *bool
	Search      string
}

// TaskRepository stores tasks together with their status and free-form history.
type TaskRepository interface {
	CreateTask(ctx context.Context, task Task) (Task, error)
	UpdateTask(ctx context.Context, task Task) (Task, error)
	GetTask(ctx context.Context, id int64) (Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error)
	DeleteTask(ctx context.Context, id int64) error

	// ChangeTaskStatus updates the task status and appends change in one transaction.
	ChangeTaskStatus(ctx context.Context, task Task, change TaskStatusChange) (Task, error)
	ListTaskStatusChanges(ctx context.Context, taskID int64) ([]TaskStatusChange, error)
	AddTaskHistory(ctx context.Context, entry TaskHistoryEntry) (TaskHistoryEntry, error)
	ListTaskHistory(ctx context.Context, taskID int64) ([]TaskHistoryEntry, error)

	CountTasksByStatus(ctx context.Context) ([]TaskStatusCount, error)
}

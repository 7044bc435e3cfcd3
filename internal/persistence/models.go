package persistence

import "time"

// Event is a calendar entry stored in persistence.
type Event struct {
	ID          int64
	Title       string
	Description *string
	Location    *string
	Start       time.Time
	End         time.Time
	Kind        string
	Status      string
	GovernorID  int64
	CreatedBy   int64
	Notes       []EventNote
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventNote is an append-only note attached to an event.
type EventNote struct {
	ID        int64
	EventID   int64
	Content   string
	CreatedBy int64
	CreatedAt time.Time
}

// Division is an administrative division tasks are assigned to.
type Division struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Task is a unit of work tracked for a division.
type Task struct {
	ID                       int64
	Name                     string
	Description              *string
	DueDate                  time.Time
	FinishedAt               *time.Time
	Status                   string
	Priority                 string
	DivisionID               int64
	DivisionName             string
	CreatedBy                int64
	AssignedToDivisionHeadID *int64
	AssignedTo               *string
	ForFollowUp              bool
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// TaskStatusChange records one status transition of a task.
type TaskStatusChange struct {
	ID            int64
	TaskID        int64
	Status        string
	ChangedAt     time.Time
	ChangedBy     int64
	ChangedByRole string
	Note          *string
}

// TaskHistoryEntry is a free-form history line on a task.
type TaskHistoryEntry struct {
	ID            int64
	TaskID        int64
	Description   string
	ChangedAt     time.Time
	ChangedBy     int64
	ChangedByRole string
}

// TaskStatusCount is one bucket of the task statistics.
type TaskStatusCount struct {
	DivisionID   int64
	DivisionName string
	Status       string
	Count        int
}

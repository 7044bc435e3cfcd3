package application

import (
	"time"

	"github.com/example/gov-agenda/internal/authz"
	"github.com/example/gov-agenda/internal/scheduler"
)

// Principal represents the user invoking a service method.
type Principal struct {
	UserID     int64
	Role       authz.Role
	DivisionID *int64
}

// inDivision reports whether the principal belongs to the given division.
func (p Principal) inDivision(divisionID int64) bool {
	return p.DivisionID != nil && *p.DivisionID == divisionID
}

// EventInput captures caller provided event fields.
type EventInput struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=4000"`
	Location    string    `json:"location" validate:"max=200"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	GovernorID  int64     `json:"governor_id" validate:"gt=0"`
}

// ConflictWarning describes a stored event overlapping a created or updated event.
type ConflictWarning struct {
	EventID        int64
	Title          string
	OverlapStart   time.Time
	OverlapEnd     time.Time
	OverlapMinutes int
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	Principal Principal
	Input     EventInput
}

// UpdateEventParams wraps the data required to update an existing event.
type UpdateEventParams struct {
	Principal Principal
	EventID   int64
	Input     EventInput
}

// ListPeriod identifies the range preset requested for event listings.
type ListPeriod string

const (
	// ListPeriodNone indicates no preset; caller supplied explicit bounds.
	ListPeriodNone ListPeriod = ""
	// ListPeriodDay constrains results to a single day.
	ListPeriodDay ListPeriod = "day"
	// ListPeriodWeek constrains results to the Monday-start week containing the reference time.
	ListPeriodWeek ListPeriod = "week"
	// ListPeriodMonth constrains results to the month containing the reference time.
	ListPeriodMonth ListPeriod = "month"
)

// ListEventsParams narrows event listings.
type ListEventsParams struct {
	Principal  Principal
	Period     ListPeriod
	Reference  time.Time
	From       *time.Time
	To         *time.Time
	Kind       string
	GovernorID *int64
}

// EventFilter is the query handed to the event repository.
type EventFilter struct {
	From       *time.Time
	To         *time.Time
	Kind       scheduler.Kind
	GovernorID *int64
}

// ConflictReportParams selects the events checked for conflicts.
type ConflictReportParams struct {
	Principal  Principal
	From       time.Time
	To         time.Time
	GovernorID *int64
}

// ConflictReport lists every overlapping pair among the events of a range.
type ConflictReport struct {
	From       time.Time
	To         time.Time
	EventCount int
	Conflicts  []scheduler.Conflict
}

// AvailabilityParams describes a candidate slot. ExcludeID lets an event being
// rescheduled ignore itself.
type AvailabilityParams struct {
	Principal  Principal
	Start      time.Time
	End        time.Time
	ExcludeID  int64
	GovernorID *int64
}

// Availability is the answer to an availability check.
type Availability struct {
	Start     time.Time
	End       time.Time
	Available bool
	Conflicts []scheduler.Event
}

// SuggestSlotsParams selects the day whose working hours are split into slots.
type SuggestSlotsParams struct {
	Principal     Principal
	Day           time.Time
	GovernorID    *int64
	AvailableOnly bool
}

// CalendarSettings carries the working hours used for slot suggestions.
type CalendarSettings struct {
	Location *time.Location
	DayStart scheduler.ClockTime
	DayEnd   scheduler.ClockTime
	SlotStep time.Duration
}

// Division groups the staff tasks are assigned to.
type Division struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskCancelled  TaskStatus = "cancelled"
)

// TaskStatuses returns every task status in lifecycle order.
func TaskStatuses() []TaskStatus {
	return []TaskStatus{TaskPending, TaskInProgress, TaskDone, TaskCancelled}
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskDone, TaskCancelled:
		return true
	}
	return false
}

// TaskPriority ranks tasks.
type TaskPriority string

const (
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

// Task is a unit of work tracked for a division.
type Task struct {
	ID                       int64
	Name                     string
	Description              string
	DueDate                  time.Time
	FinishedAt               *time.Time
	Status                   TaskStatus
	Priority                 TaskPriority
	DivisionID               int64
	DivisionName             string
	CreatedBy                int64
	AssignedToDivisionHeadID *int64
	AssignedTo               string
	ForFollowUp              bool
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// TaskInput captures caller provided task fields.
type TaskInput struct {
	Name                     string    `json:"name" validate:"required,max=200"`
	Description              string    `json:"description" validate:"max=4000"`
	DueDate                  time.Time `json:"due_date"`
	Priority                 string    `json:"priority" validate:"omitempty,oneof=high medium low"`
	DivisionID               int64     `json:"division_id" validate:"gt=0"`
	AssignedToDivisionHeadID *int64    `json:"assigned_to_division_head_id" validate:"omitempty,gt=0"`
	AssignedTo               string    `json:"assigned_to" validate:"max=200"`
	ForFollowUp              bool      `json:"for_followup"`
}

// CreateTaskParams wraps the data required to create a task.
type CreateTaskParams struct {
	Principal Principal
	Input     TaskInput
}

// UpdateTaskParams wraps the data required to update a task.
type UpdateTaskParams struct {
	Principal Principal
	TaskID    int64
	Input     TaskInput
}

// ChangeTaskStatusParams requests a status transition.
type ChangeTaskStatusParams struct {
	Principal Principal
	TaskID    int64
	Status    string
	Note      string
}

// ListTasksParams narrows task listings.
type ListTasksParams struct {
	Principal   Principal
	DivisionID  *int64
	Status      string
	ForFollowUp *bool
	Search      string
}

// TaskFilter is the query handed to the task repository.
type TaskFilter struct {
	DivisionID  *int64
	Status      TaskStatus
	ForFollowUp *bool
	Search      string
}

// TaskStatusChange records one status transition of a task.
type TaskStatusChange struct {
	ID            int64
	TaskID        int64
	Status        TaskStatus
	ChangedAt     time.Time
	ChangedBy     int64
	ChangedByRole authz.Role
	Note          string
}

// TaskHistoryEntry is a free-form history line on a task.
type TaskHistoryEntry struct {
	ID            int64
	TaskID        int64
	Description   string
	ChangedAt     time.Time
	ChangedBy     int64
	ChangedByRole authz.Role
}

// TaskStatusCount is one bucket of stored task counts.
type TaskStatusCount struct {
	DivisionID   int64
	DivisionName string
	Status       TaskStatus
	Count        int
}

// DivisionTaskStatistics totals the tasks of one division.
type DivisionTaskStatistics struct {
	DivisionID   int64
	DivisionName string
	Total        int
	ByStatus     map[TaskStatus]int
}

// TaskStatistics summarises task progress across divisions.
type TaskStatistics struct {
	Total      int
	ByStatus   map[TaskStatus]int
	ByDivision []DivisionTaskStatistics
}

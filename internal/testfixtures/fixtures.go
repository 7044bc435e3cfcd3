package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/gov-agenda/internal/persistence"
	"github.com/example/gov-agenda/internal/scheduler"
)

var (
	eventIDs        = NewSequence(0)
	divisionCounter uint64
	taskCounter     uint64
)

// referenceTime is a Monday morning, so day and week ranges line up.
var referenceTime = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the baseline instant used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// At returns ReferenceTime's day at hour:minute UTC.
func At(hour, minute int) time.Time {
	return time.Date(referenceTime.Year(), referenceTime.Month(), referenceTime.Day(), hour, minute, 0, 0, time.UTC)
}

// ----------------------------- Event fixtures -----------------------------

// EventFixture is a deterministic calendar event.
type EventFixture struct {
	ID          int64
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Kind        scheduler.Kind
	Status      scheduler.Status
	GovernorID  int64
	CreatedBy   int64
}

// EventOption configures an EventFixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a one hour meeting starting at ReferenceTime. Each
// fixture takes the next ID of a package-wide sequence.
func NewEventFixture(opts ...EventOption) EventFixture {
	id := eventIDs.Next()
	fixture := EventFixture{
		ID:         id,
		Title:      fmt.Sprintf("Réunion %03d", id),
		Start:      referenceTime,
		End:        referenceTime.Add(time.Hour),
		Kind:       scheduler.KindMeeting,
		Status:     scheduler.StatusScheduled,
		GovernorID: 1,
		CreatedBy:  2,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithEventID(id int64) EventOption {
	return func(f *EventFixture) { f.ID = id }
}

func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) { f.Title = title }
}

func WithEventDescription(description string) EventOption {
	return func(f *EventFixture) { f.Description = description }
}

func WithEventLocation(location string) EventOption {
	return func(f *EventFixture) { f.Location = location }
}

// WithEventWindow sets the half-open span [start, end).
func WithEventWindow(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

func WithEventKind(kind scheduler.Kind) EventOption {
	return func(f *EventFixture) { f.Kind = kind }
}

func WithEventStatus(status scheduler.Status) EventOption {
	return func(f *EventFixture) { f.Status = status }
}

func WithEventGovernor(id int64) EventOption {
	return func(f *EventFixture) { f.GovernorID = id }
}

// Event returns the fixture as a domain event.
func (f EventFixture) Event() scheduler.Event {
	return scheduler.Event{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		Location:    f.Location,
		Start:       f.Start,
		End:         f.End,
		Kind:        f.Kind,
		Status:      f.Status,
		GovernorID:  f.GovernorID,
		CreatedBy:   f.CreatedBy,
	}
}

// Persistence returns the fixture as a storage row without its ID, ready for CreateEvent.
func (f EventFixture) Persistence() persistence.Event {
	return persistence.Event{
		Title:       f.Title,
		Description: optional(f.Description),
		Location:    optional(f.Location),
		Start:       f.Start,
		End:         f.End,
		Kind:        string(f.Kind),
		Status:      string(f.Status),
		GovernorID:  f.GovernorID,
		CreatedBy:   f.CreatedBy,
	}
}

// Events builds one domain event per fixture.
func Events(fixtures ...EventFixture) []scheduler.Event {
	out := make([]scheduler.Event, 0, len(fixtures))
	for _, f := range fixtures {
		out = append(out, f.Event())
	}
	return out
}

// --------------------------- Division fixtures ----------------------------

// NewDivision returns a division row with a unique name.
func NewDivision(name string) persistence.Division {
	idx := atomic.AddUint64(&divisionCounter, 1)
	if name == "" {
		name = fmt.Sprintf("Division %03d", idx)
	}
	return persistence.Division{Name: name}
}

// ----------------------------- Task fixtures ------------------------------

// TaskFixture is a deterministic division task.
type TaskFixture struct {
	Name        string
	Description string
	DueDate     time.Time
	Status      string
	Priority    string
	DivisionID  int64
	CreatedBy   int64
	AssignedTo  string
	ForFollowUp bool
}

// TaskOption configures a TaskFixture.
type TaskOption func(*TaskFixture)

// NewTaskFixture returns a pending medium priority task due two days after
// ReferenceTime.
func NewTaskFixture(divisionID int64, opts ...TaskOption) TaskFixture {
	idx := atomic.AddUint64(&taskCounter, 1)
	fixture := TaskFixture{
		Name:       fmt.Sprintf("Tâche %03d", idx),
		DueDate:    referenceTime.AddDate(0, 0, 2),
		Status:     "pending",
		Priority:   "medium",
		DivisionID: divisionID,
		CreatedBy:  2,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithTaskName(name string) TaskOption {
	return func(f *TaskFixture) { f.Name = name }
}

func WithTaskDescription(description string) TaskOption {
	return func(f *TaskFixture) { f.Description = description }
}

func WithTaskDueDate(due time.Time) TaskOption {
	return func(f *TaskFixture) { f.DueDate = due }
}

func WithTaskStatus(status string) TaskOption {
	return func(f *TaskFixture) { f.Status = status }
}

func WithTaskPriority(priority string) TaskOption {
	return func(f *TaskFixture) { f.Priority = priority }
}

func WithTaskAssignee(name string) TaskOption {
	return func(f *TaskFixture) { f.AssignedTo = name }
}

func WithTaskFollowUp() TaskOption {
	return func(f *TaskFixture) { f.ForFollowUp = true }
}

// Persistence returns the fixture as a storage row ready for CreateTask.
func (f TaskFixture) Persistence() persistence.Task {
	return persistence.Task{
		Name:        f.Name,
		Description: optional(f.Description),
		DueDate:     f.DueDate,
		Status:      f.Status,
		Priority:    f.Priority,
		DivisionID:  f.DivisionID,
		CreatedBy:   f.CreatedBy,
		AssignedTo:  optional(f.AssignedTo),
		ForFollowUp: f.ForFollowUp,
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

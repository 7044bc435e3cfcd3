package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a calendar event.
type Kind string

const (
	KindMeeting     Kind = "meeting"
	KindAppointment Kind = "appointment"
	KindConference  Kind = "conference"
	KindPublicEvent Kind = "public_event"
	KindOther       Kind = "other"
)

// Kinds returns every known event kind in display order.
func Kinds() []Kind {
	return []Kind{KindMeeting, KindAppointment, KindConference, KindPublicEvent, KindOther}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMeeting, KindAppointment, KindConference, KindPublicEvent, KindOther:
		return true
	}
	return false
}

// Status is the lifecycle state of an event.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

var (
	// ErrInvalidBounds is returned when an event or interval does not end strictly after it starts.
	ErrInvalidBounds = errors.New("scheduler: end must be after start")
	// ErrUnknownKind is returned for event kinds outside the closed set.
	ErrUnknownKind = errors.New("scheduler: unknown event kind")
	// ErrUnknownStatus is returned for statuses outside the closed set.
	ErrUnknownStatus = errors.New("scheduler: unknown event status")
	// ErrMissingTitle is returned when an event has a blank title.
	ErrMissingTitle = errors.New("scheduler: title is required")
)

// Note is an append-only annotation attached to an event.
type Note struct {
	ID        int64
	EventID   int64
	Content   string
	CreatedBy int64
	CreatedAt time.Time
}

// Event is a calendar entry on a governor's agenda.
type Event struct {
	ID          int64
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Kind        Kind
	Status      Status
	GovernorID  int64
	CreatedBy   int64
	Notes       []Note
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Interval returns the half-open span occupied by the event.
func (e Event) Interval() Interval {
	return Interval{Start: e.Start, End: e.End}
}

// Duration returns the length of the event.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// EventSpec carries the caller-supplied fields used to build an Event.
type EventSpec struct {
	ID          int64
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Kind        Kind
	Status      Status
	GovernorID  int64
	CreatedBy   int64
}

// NewEvent validates spec and returns the corresponding Event.
// An empty kind defaults to appointment and an empty status to scheduled.
func NewEvent(spec EventSpec) (Event, error) {
	title := strings.TrimSpace(spec.Title)
	if title == "" {
		return Event{}, ErrMissingTitle
	}
	if !spec.End.After(spec.Start) {
		return Event{}, fmt.Errorf("%w: start=%s end=%s", ErrInvalidBounds,
			spec.Start.Format(time.RFC3339), spec.End.Format(time.RFC3339))
	}

	kind := spec.Kind
	if kind == "" {
		kind = KindAppointment
	}
	if !kind.Valid() {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	status := spec.Status
	if status == "" {
		status = StatusScheduled
	}
	if !status.Valid() {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}

	return Event{
		ID:          spec.ID,
		Title:       title,
		Description: spec.Description,
		Location:    spec.Location,
		Start:       spec.Start,
		End:         spec.End,
		Kind:        kind,
		Status:      status,
		GovernorID:  spec.GovernorID,
		CreatedBy:   spec.CreatedBy,
	}, nil
}

package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/gov-agenda/internal/authz"
	"github.com/example/gov-agenda/internal/scheduler"
)

// EventRepository captures the persistence operations needed by the event service.
type EventRepository interface {
	CreateEvent(ctx context.Context, event scheduler.Event) (scheduler.Event, error)
	UpdateEvent(ctx context.Context, event scheduler.Event) (scheduler.Event, error)
	GetEvent(ctx context.Context, id int64) (scheduler.Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]scheduler.Event, error)
	DeleteEvent(ctx context.Context, id int64) error
	AddEventNote(ctx context.Context, note scheduler.Note) (scheduler.Note, error)
}

// EventService orchestrates validation, authorization, conflict checks and
// persistence for calendar events.
type EventService struct {
	events   EventRepository
	calendar CalendarSettings
	now      func() time.Time
	logger   *slog.Logger
}

// NewEventService constructs an event service with the provided dependencies.
func NewEventService(events EventRepository, calendar CalendarSettings, now func() time.Time, logger *slog.Logger) *EventService {
	if now == nil {
		now = time.Now
	}
	if calendar.Location == nil {
		calendar.Location = time.UTC
	}
	if calendar.SlotStep <= 0 {
		calendar.SlotStep = scheduler.DefaultSlotStep
	}
	if !calendar.DayStart.Before(calendar.DayEnd) {
		calendar.DayStart = scheduler.ClockTime{Hour: 8}
		calendar.DayEnd = scheduler.ClockTime{Hour: 18}
	}
	return &EventService{events: events, calendar: calendar, now: now, logger: defaultLogger(logger)}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

func (s *EventService) ready() error {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return fmt.Errorf("event repository not configured")
	}
	return nil
}

// CreateEvent validates input, stores the event and reports the stored events it overlaps.
// Conflicts are warnings: the event is created regardless.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (event scheduler.Event, warnings []ConflictWarning, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreateEvent", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", event.ID, "conflict_count", len(warnings)).InfoContext(ctx, "event created")
	}()

	if !authz.HasPermission(params.Principal.Role, authz.ResourceCalendar, authz.ActionCreate) {
		err = ErrUnauthorized
		return
	}

	candidate, err := buildEvent(params.Input, params.Principal.UserID)
	if err != nil {
		return
	}

	event, err = s.events.CreateEvent(ctx, candidate)
	if err != nil {
		err = mapRepoError(err, "end")
		return
	}

	warnings, err = s.detectConflicts(ctx, event)
	return
}

// UpdateEvent replaces the mutable fields of an event. Warnings never include
// the event itself.
func (s *EventService) UpdateEvent(ctx context.Context, params UpdateEventParams) (event scheduler.Event, warnings []ConflictWarning, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateEvent", "principal_id", params.Principal.UserID, "event_id", params.EventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("conflict_count", len(warnings)).InfoContext(ctx, "event updated")
	}()

	if !authz.HasPermission(params.Principal.Role, authz.ResourceCalendar, authz.ActionUpdate) {
		err = ErrUnauthorized
		return
	}

	existing, err := s.events.GetEvent(ctx, params.EventID)
	if err != nil {
		err = mapRepoError(err, "id")
		return
	}

	candidate, err := buildEvent(params.Input, existing.CreatedBy)
	if err != nil {
		return
	}
	candidate.ID = existing.ID
	candidate.CreatedAt = existing.CreatedAt
	if strings.TrimSpace(params.Input.Status) == "" {
		candidate.Status = existing.Status
	}

	event, err = s.events.UpdateEvent(ctx, candidate)
	if err != nil {
		err = mapRepoError(err, "end")
		return
	}

	warnings, err = s.detectConflicts(ctx, event)
	return
}

// ChangeEventStatus moves an event to another status.
func (s *EventService) ChangeEventStatus(ctx context.Context, principal Principal, eventID int64, status string) (event scheduler.Event, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ChangeEventStatus", "principal_id", principal.UserID, "event_id", eventID, "status", status)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to change event status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event status changed")
	}()

	if !authz.HasPermission(principal.Role, authz.ResourceCalendar, authz.ActionUpdate) {
		err = ErrUnauthorized
		return
	}

	next := scheduler.Status(strings.TrimSpace(status))
	if !next.Valid() {
		err = fieldError("status", "statut inconnu")
		return
	}

	event, err = s.events.GetEvent(ctx, eventID)
	if err != nil {
		err = mapRepoError(err, "id")
		return
	}
	event.Status = next

	event, err = s.events.UpdateEvent(ctx, event)
	if err != nil {
		err = mapRepoError(err, "status")
	}
	return
}

// DeleteEvent removes an event and its notes.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, eventID int64) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteEvent", "principal_id", principal.UserID, "event_id", eventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event deleted")
	}()

	if !authz.HasPermission(principal.Role, authz.ResourceCalendar, authz.ActionDelete) {
		return ErrUnauthorized
	}
	return mapRepoError(s.events.DeleteEvent(ctx, eventID), "id")
}

// AddEventNote appends a note written by the principal.
func (s *EventService) AddEventNote(ctx context.Context, principal Principal, eventID int64, content string) (note scheduler.Note, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "AddEventNote", "principal_id", principal.UserID, "event_id", eventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add event note", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("note_id", note.ID).InfoContext(ctx, "event note added")
	}()

	if !authz.HasPermission(principal.Role, authz.ResourceCalendar, authz.ActionUpdate) {
		err = ErrUnauthorized
		return
	}

	content = strings.TrimSpace(content)
	switch {
	case content == "":
		err = fieldError("content", "ce champ est obligatoire")
		return
	case len([]rune(content)) > 4000:
		err = fieldError("content", "4000 caractères au maximum")
		return
	}

	note, err = s.events.AddEventNote(ctx, scheduler.Note{
		EventID:   eventID,
		Content:   content,
		CreatedBy: principal.UserID,
		CreatedAt: s.now(),
	})
	if err != nil {
		err = mapRepoError(err, "event_id")
	}
	return
}

// GetEvent loads one event with its notes.
func (s *EventService) GetEvent(ctx context.Context, principal Principal, eventID int64) (scheduler.Event, error) {
	if err := s.ready(); err != nil {
		return scheduler.Event{}, err
	}
	if !authz.HasPermission(principal.Role, authz.ResourceCalendar, authz.ActionRead) {
		return scheduler.Event{}, ErrUnauthorized
	}
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return scheduler.Event{}, mapRepoError(err, "id")
	}
	return event, nil
}

// ListEvents returns the events matching params ordered by start time.
func (s *EventService) ListEvents(ctx context.Context, params ListEventsParams) (events []scheduler.Event, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ListEvents", "principal_id", params.Principal.UserID, "period", string(params.Period))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(events)).DebugContext(ctx, "events listed")
	}()

	if !authz.HasPermission(params.Principal.Role, authz.ResourceCalendar, authz.ActionRead) {
		err = ErrUnauthorized
		return
	}

	filter, err := s.buildListFilter(params)
	if err != nil {
		return
	}

	events, err = s.events.ListEvents(ctx, filter)
	if err != nil {
		err = mapRepoError(err, "filter")
	}
	return
}

// ConflictReport lists every overlapping pair among the events of [From, To).
func (s *EventService) ConflictReport(ctx context.Context, params ConflictReportParams) (ConflictReport, error) {
	if err := s.ready(); err != nil {
		return ConflictReport{}, err
	}
	if !authz.HasPermission(params.Principal.Role, authz.ResourceCalendar, authz.ActionRead) {
		return ConflictReport{}, ErrUnauthorized
	}
	if !params.To.After(params.From) {
		return ConflictReport{}, fieldError("to", "la fin doit être postérieure au début")
	}

	events, err := s.eventsBetween(ctx, params.From, params.To, params.GovernorID)
	if err != nil {
		return ConflictReport{}, err
	}

	conflicts := scheduler.DetectGovernorConflicts(events)
	s.loggerWith(ctx, "ConflictReport", "principal_id", params.Principal.UserID).
		DebugContext(ctx, "conflicts detected", "event_count", len(events), "conflict_count", len(conflicts))
	return ConflictReport{
		From:       params.From,
		To:         params.To,
		EventCount: len(events),
		Conflicts:  conflicts,
	}, nil
}

// CheckAvailability reports whether [Start, End) is free and which events block it.
func (s *EventService) CheckAvailability(ctx context.Context, params AvailabilityParams) (Availability, error) {
	if err := s.ready(); err != nil {
		return Availability{}, err
	}
	if !authz.HasPermission(params.Principal.Role, authz.ResourceCalendar, authz.ActionRead) {
		return Availability{}, ErrUnauthorized
	}

	candidate, err := scheduler.NewInterval(params.Start, params.End)
	if err != nil {
		return Availability{}, fieldError("end", "la fin doit être postérieure au début")
	}

	events, err := s.eventsBetween(ctx, candidate.Start, candidate.End, params.GovernorID)
	if err != nil {
		return Availability{}, err
	}

	blocking := scheduler.ConflictsWith(events, candidate, params.ExcludeID)
	return Availability{
		Start:     candidate.Start,
		End:       candidate.End,
		Available: len(blocking) == 0,
		Conflicts: blocking,
	}, nil
}

// SuggestSlots splits the working hours of a day into slots and marks each one
// free or busy.
func (s *EventService) SuggestSlots(ctx context.Context, params SuggestSlotsParams) ([]scheduler.TimeSlot, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !authz.HasPermission(params.Principal.Role, authz.ResourceCalendar, authz.ActionRead) {
		return nil, ErrUnauthorized
	}
	if params.Day.IsZero() {
		return nil, fieldError("day", "ce champ est obligatoire")
	}

	window := s.DayWindow(params.Day)
	events, err := s.eventsBetween(ctx, window.Start, window.End, params.GovernorID)
	if err != nil {
		return nil, err
	}

	slots := scheduler.SuggestSlots(events, window, s.calendar.SlotStep)
	if params.AvailableOnly {
		slots = scheduler.AvailableSlots(slots)
	}
	return slices.Collect(slots), nil
}

// DayWindow returns the configured working hours of day.
func (s *EventService) DayWindow(day time.Time) scheduler.WorkWindow {
	return scheduler.DayWindow(day, s.calendar.DayStart, s.calendar.DayEnd, s.calendar.Location)
}

func (s *EventService) eventsBetween(ctx context.Context, from, to time.Time, governorID *int64) ([]scheduler.Event, error) {
	events, err := s.events.ListEvents(ctx, EventFilter{From: &from, To: &to, GovernorID: governorID})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, mapRepoError(err, "filter")
	}
	return events, nil
}

func (s *EventService) detectConflicts(ctx context.Context, candidate scheduler.Event) ([]ConflictWarning, error) {
	gov := candidate.GovernorID
	existing, err := s.eventsBetween(ctx, candidate.Start, candidate.End, &gov)
	if err != nil {
		return nil, err
	}
	return toConflictWarnings(candidate, scheduler.ConflictsWith(existing, candidate.Interval(), candidate.ID)), nil
}

func toConflictWarnings(candidate scheduler.Event, overlapping []scheduler.Event) []ConflictWarning {
	if len(overlapping) == 0 {
		return nil
	}
	warnings := make([]ConflictWarning, 0, len(overlapping))
	for _, other := range overlapping {
		overlap := candidate.Interval().Intersection(other.Interval())
		warnings = append(warnings, ConflictWarning{
			EventID:        other.ID,
			Title:          other.Title,
			OverlapStart:   overlap.Start,
			OverlapEnd:     overlap.End,
			OverlapMinutes: overlap.Minutes(),
		})
	}
	return warnings
}

func (s *EventService) buildListFilter(params ListEventsParams) (EventFilter, error) {
	from, to := params.From, params.To
	if params.Period != ListPeriodNone {
		start, end, ok := computePeriodRange(params.Period, params.Reference, s.calendar.Location)
		if !ok {
			return EventFilter{}, fieldError("period", "période inconnue")
		}
		if from == nil {
			from = &start
		}
		if to == nil {
			to = &end
		}
	}
	if from != nil && to != nil && !to.After(*from) {
		return EventFilter{}, fieldError("to", "la fin doit être postérieure au début")
	}

	kind := scheduler.Kind(strings.TrimSpace(params.Kind))
	if kind != "" && !kind.Valid() {
		return EventFilter{}, fieldError("kind", "type d'événement inconnu")
	}

	return EventFilter{From: from, To: to, Kind: kind, GovernorID: params.GovernorID}, nil
}

// buildEvent validates input and turns it into a scheduler event authored by createdBy.
func buildEvent(input EventInput, createdBy int64) (scheduler.Event, error) {
	vErr := &ValidationError{}
	validateStruct(input, vErr)
	if input.Start.IsZero() {
		vErr.add("start", "ce champ est obligatoire")
	}
	if input.End.IsZero() {
		vErr.add("end", "ce champ est obligatoire")
	}
	if vErr.HasErrors() {
		return scheduler.Event{}, vErr
	}

	event, err := scheduler.NewEvent(scheduler.EventSpec{
		Title:       input.Title,
		Description: strings.TrimSpace(input.Description),
		Location:    strings.TrimSpace(input.Location),
		Start:       input.Start,
		End:         input.End,
		Kind:        scheduler.Kind(strings.TrimSpace(input.Kind)),
		Status:      scheduler.Status(strings.TrimSpace(input.Status)),
		GovernorID:  input.GovernorID,
		CreatedBy:   createdBy,
	})
	switch {
	case err == nil:
		return event, nil
	case errors.Is(err, scheduler.ErrMissingTitle):
		return scheduler.Event{}, fieldError("title", "ce champ est obligatoire")
	case errors.Is(err, scheduler.ErrInvalidBounds):
		return scheduler.Event{}, fieldError("end", "la fin doit être postérieure au début")
	case errors.Is(err, scheduler.ErrUnknownKind):
		return scheduler.Event{}, fieldError("kind", "type d'événement inconnu")
	case errors.Is(err, scheduler.ErrUnknownStatus):
		return scheduler.Event{}, fieldError("status", "statut inconnu")
	}
	return scheduler.Event{}, err
}

func computePeriodRange(period ListPeriod, reference time.Time, loc *time.Location) (time.Time, time.Time, bool) {
	day := startOfDay(reference, loc)
	switch period {
	case ListPeriodDay:
		return day, day.AddDate(0, 0, 1), true
	case ListPeriodWeek:
		// Monday starts the week; time.Sunday is 0.
		start := day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
		return start, start.AddDate(0, 0, 7), true
	case ListPeriodMonth:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		return start, start.AddDate(0, 1, 0), true
	}
	return time.Time{}, time.Time{}, false
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

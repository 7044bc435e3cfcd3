package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/gov-agenda/internal/application"
	"github.com/example/gov-agenda/internal/ical"
	"github.com/example/gov-agenda/internal/scheduler"
)

type eventService interface {
	CreateEvent(ctx context.Context, params application.CreateEventParams) (scheduler.Event, []application.ConflictWarning, error)
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (scheduler.Event, []application.ConflictWarning, error)
	ChangeEventStatus(ctx context.Context, principal application.Principal, eventID int64, status string) (scheduler.Event, error)
	DeleteEvent(ctx context.Context, principal application.Principal, eventID int64) error
	AddEventNote(ctx context.Context, principal application.Principal, eventID int64, content string) (scheduler.Note, error)
	GetEvent(ctx context.Context, principal application.Principal, eventID int64) (scheduler.Event, error)
	ListEvents(ctx context.Context, params application.ListEventsParams) ([]scheduler.Event, error)
	ConflictReport(ctx context.Context, params application.ConflictReportParams) (application.ConflictReport, error)
	CheckAvailability(ctx context.Context, params application.AvailabilityParams) (application.Availability, error)
	SuggestSlots(ctx context.Context, params application.SuggestSlotsParams) ([]scheduler.TimeSlot, error)
}

// EventHandler serves the calendar endpoints.
type EventHandler struct {
	service   eventService
	loc       *time.Location
	logger    *slog.Logger
	responder responder
}

// NewEventHandler creates an event handler. Dates without a time of day are
// interpreted in loc.
func NewEventHandler(service eventService, loc *time.Location, logger *slog.Logger) *EventHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &EventHandler{service: service, loc: loc, logger: defaultLogger(logger), responder: newResponder(logger)}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, warnings, err := h.service.CreateEvent(r.Context(), application.CreateEventParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, eventResponse{
		Event:    toEventDTO(event),
		Warnings: toWarningDTOs(warnings),
	})
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, warnings, err := h.service.UpdateEvent(r.Context(), application.UpdateEventParams{
		Principal: principal,
		EventID:   eventID,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{
		Event:    toEventDTO(event),
		Warnings: toWarningDTOs(warnings),
	})
}

func (h *EventHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.ChangeEventStatus(r.Context(), principal, eventID, req.Status)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	note, err := h.service.AddEventNote(r.Context(), principal, eventID, req.Content)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toNoteDTO(note))
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteEvent(r.Context(), principal, eventID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.GetEvent(r.Context(), principal, eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	params, err := h.listParams(r, principal)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	events, err := h.service.ListEvents(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeCacheableJSON(w, r, listEventsResponse{Events: toEventDTOs(events)})
}

// Conflicts reports every overlapping pair on ?day= or within ?from=&to=.
func (h *EventHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query(), h.loc)
	from, to := q.timestamp("from"), q.timestamp("to")
	if day := q.date("day", time.DateOnly); day != nil {
		start, end := *day, day.AddDate(0, 0, 1)
		from, to = &start, &end
	}
	governorID := q.integer("governor_id")
	if q.err == nil && (from == nil || to == nil) {
		q.fail("day")
	}
	if q.err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, q.err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	report, err := h.service.ConflictReport(r.Context(), application.ConflictReportParams{
		Principal:  principal,
		From:       *from,
		To:         *to,
		GovernorID: governorID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeCacheableJSON(w, r, toConflictReportDTO(report))
}

func (h *EventHandler) Availability(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query(), h.loc)
	start, end := q.timestamp("start"), q.timestamp("end")
	exclude := q.integer("exclude")
	governorID := q.integer("governor_id")
	if q.err == nil && start == nil {
		q.fail("start")
	}
	if q.err == nil && end == nil {
		q.fail("end")
	}
	if q.err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, q.err)
		return
	}

	params := application.AvailabilityParams{Start: *start, End: *end, GovernorID: governorID}
	params.Principal, _ = PrincipalFromContext(r.Context())
	if exclude != nil {
		params.ExcludeID = *exclude
	}

	availability, err := h.service.CheckAvailability(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityDTO{
		Start:     formatTime(availability.Start),
		End:       formatTime(availability.End),
		Available: availability.Available,
		Conflicts: toEventDTOs(availability.Conflicts),
	})
}

func (h *EventHandler) Slots(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query(), h.loc)
	day := q.date("day", time.DateOnly)
	availableOnly := q.boolean("available")
	governorID := q.integer("governor_id")
	if q.err == nil && day == nil {
		q.fail("day")
	}
	if q.err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, q.err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	slots, err := h.service.SuggestSlots(r.Context(), application.SuggestSlotsParams{
		Principal:     principal,
		Day:           *day,
		GovernorID:    governorID,
		AvailableOnly: availableOnly != nil && *availableOnly,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeCacheableJSON(w, r, slotsResponse{Day: day.Format(time.DateOnly), Slots: toSlotDTOs(slots)})
}

// ExportICS serves the listed events as an iCalendar feed. It accepts the same
// filters as List.
func (h *EventHandler) ExportICS(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	params, err := h.listParams(r, principal)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	events, err := h.service.ListEvents(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	// DTSTAMP is pinned to the newest modification so the body, and its ETag,
	// only change when an event does.
	if err := ical.Export(&buf, events, ical.ExportOptions{Name: "Agenda", Now: latestUpdate(events)}); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="agenda.ics"`)
	h.responder.writeCacheable(w, r, "text/calendar; charset=utf-8", buf.Bytes())
}

// ImportICS creates one event per VEVENT of a text/calendar body. VEVENTs
// that cannot be converted or are refused are reported, not fatal.
func (h *EventHandler) ImportICS(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query(), h.loc)
	governorID := q.integer("governor_id")
	if q.err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, q.err)
		return
	}

	result, err := ical.Parse(io.LimitReader(r.Body, maxBodyBytes), h.loc)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	resp := importResponse{Created: []eventDTO{}, Warnings: []conflictWarningDTO{}, Problems: []importProblemDTO{}}
	for _, problem := range result.Problems {
		resp.Problems = append(resp.Problems, importProblemDTO{UID: problem.UID, Error: problem.Err.Error()})
	}

	for _, entry := range result.Entries {
		input := inputFromSpec(entry.Spec)
		if governorID != nil {
			input.GovernorID = *governorID
		}
		event, warnings, err := h.service.CreateEvent(r.Context(), application.CreateEventParams{Principal: principal, Input: input})
		if err != nil {
			if errors.Is(err, application.ErrUnauthorized) {
				h.responder.handleServiceError(r.Context(), w, err)
				return
			}
			resp.Problems = append(resp.Problems, importProblemDTO{UID: entry.UID, Error: err.Error()})
			continue
		}
		resp.Created = append(resp.Created, toEventDTO(event))
		resp.Warnings = append(resp.Warnings, toWarningDTOs(warnings)...)
	}

	handlerLogger(r.Context(), h.logger, "EventHandler", "ImportICS").InfoContext(r.Context(), "calendar imported",
		"created", len(resp.Created), "problems", len(resp.Problems))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *EventHandler) listParams(r *http.Request, principal application.Principal) (application.ListEventsParams, error) {
	q := newQueryParser(r.URL.Query(), h.loc)
	params := application.ListEventsParams{
		Principal:  principal,
		From:       q.timestamp("from"),
		To:         q.timestamp("to"),
		Kind:       q.str("kind"),
		GovernorID: q.integer("governor_id"),
	}

	switch {
	case q.has("day"):
		if day := q.date("day", time.DateOnly); day != nil {
			params.Period, params.Reference = application.ListPeriodDay, *day
		}
	case q.has("week"):
		if week := q.date("week", time.DateOnly); week != nil {
			params.Period, params.Reference = application.ListPeriodWeek, *week
		}
	case q.has("month"):
		if month := q.date("month", "2006-01"); month != nil {
			params.Period, params.Reference = application.ListPeriodMonth, *month
		}
	}
	return params, q.err
}

func latestUpdate(events []scheduler.Event) time.Time {
	var latest time.Time
	for _, e := range events {
		if e.UpdatedAt.After(latest) {
			latest = e.UpdatedAt
		}
	}
	if latest.IsZero() {
		latest = time.Unix(0, 0)
	}
	return latest
}

func inputFromSpec(spec scheduler.EventSpec) application.EventInput {
	return application.EventInput{
		Title:       spec.Title,
		Description: spec.Description,
		Location:    spec.Location,
		Start:       spec.Start,
		End:         spec.End,
		Kind:        string(spec.Kind),
		Status:      string(spec.Status),
		GovernorID:  spec.GovernorID,
	}
}

type eventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	GovernorID  int64  `json:"governor_id"`
}

func (r eventRequest) toInput() application.EventInput {
	return application.EventInput{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Start:       parseTime(r.Start),
		End:         parseTime(r.End),
		Kind:        r.Kind,
		Status:      r.Status,
		GovernorID:  r.GovernorID,
	}
}

type statusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type noteRequest struct {
	Content string `json:"content"`
}

type eventResponse struct {
	Event    eventDTO             `json:"event"`
	Warnings []conflictWarningDTO `json:"warnings,omitempty"`
}

type listEventsResponse struct {
	Events []eventDTO `json:"events"`
}

type eventDTO struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       string    `json:"start"`
	End         string    `json:"end"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	GovernorID  int64     `json:"governor_id"`
	CreatedBy   int64     `json:"created_by"`
	Notes       []noteDTO `json:"notes"`
	CreatedAt   string    `json:"created_at,omitempty"`
	UpdatedAt   string    `json:"updated_at,omitempty"`
}

type noteDTO struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	CreatedBy int64  `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

func toEventDTO(event scheduler.Event) eventDTO {
	notes := make([]noteDTO, 0, len(event.Notes))
	for _, note := range event.Notes {
		notes = append(notes, toNoteDTO(note))
	}
	return eventDTO{
		ID:          event.ID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       formatTime(event.Start),
		End:         formatTime(event.End),
		Kind:        string(event.Kind),
		Status:      string(event.Status),
		GovernorID:  event.GovernorID,
		CreatedBy:   event.CreatedBy,
		Notes:       notes,
		CreatedAt:   formatTime(event.CreatedAt),
		UpdatedAt:   formatTime(event.UpdatedAt),
	}
}

func toEventDTOs(events []scheduler.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toEventDTO(event))
	}
	return out
}

func toNoteDTO(note scheduler.Note) noteDTO {
	return noteDTO{
		ID:        note.ID,
		Content:   note.Content,
		CreatedBy: note.CreatedBy,
		CreatedAt: formatTime(note.CreatedAt),
	}
}

type conflictWarningDTO struct {
	EventID        int64  `json:"event_id"`
	Title          string `json:"title"`
	OverlapStart   string `json:"overlap_start"`
	OverlapEnd     string `json:"overlap_end"`
	OverlapMinutes int    `json:"overlap_minutes"`
}

func toWarningDTOs(warnings []application.ConflictWarning) []conflictWarningDTO {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]conflictWarningDTO, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, conflictWarningDTO{
			EventID:        warning.EventID,
			Title:          warning.Title,
			OverlapStart:   formatTime(warning.OverlapStart),
			OverlapEnd:     formatTime(warning.OverlapEnd),
			OverlapMinutes: warning.OverlapMinutes,
		})
	}
	return out
}

type conflictDTO struct {
	First          eventDTO `json:"first"`
	Second         eventDTO `json:"second"`
	OverlapStart   string   `json:"overlap_start"`
	OverlapEnd     string   `json:"overlap_end"`
	OverlapMinutes int      `json:"overlap_minutes"`
}

type conflictReportDTO struct {
	From          string        `json:"from"`
	To            string        `json:"to"`
	EventCount    int           `json:"event_count"`
	ConflictCount int           `json:"conflict_count"`
	Conflicts     []conflictDTO `json:"conflicts"`
}

func toConflictReportDTO(report application.ConflictReport) conflictReportDTO {
	out := conflictReportDTO{
		From:          formatTime(report.From),
		To:            formatTime(report.To),
		EventCount:    report.EventCount,
		ConflictCount: len(report.Conflicts),
		Conflicts:     make([]conflictDTO, 0, len(report.Conflicts)),
	}
	for _, c := range report.Conflicts {
		out.Conflicts = append(out.Conflicts, conflictDTO{
			First:          toEventDTO(c.First),
			Second:         toEventDTO(c.Second),
			OverlapStart:   formatTime(c.OverlapStart),
			OverlapEnd:     formatTime(c.OverlapEnd),
			OverlapMinutes: c.OverlapMinutes,
		})
	}
	return out
}

type availabilityDTO struct {
	Start     string     `json:"start"`
	End       string     `json:"end"`
	Available bool       `json:"available"`
	Conflicts []eventDTO `json:"conflicts"`
}

type slotDTO struct {
	Start         string  `json:"start"`
	End           string  `json:"end"`
	Available     bool    `json:"available"`
	ConflictsWith []int64 `json:"conflicts_with"`
}

type slotsResponse struct {
	Day   string    `json:"day"`
	Slots []slotDTO `json:"slots"`
}

func toSlotDTOs(slots []scheduler.TimeSlot) []slotDTO {
	out := make([]slotDTO, 0, len(slots))
	for _, slot := range slots {
		ids := make([]int64, 0, len(slot.ConflictsWith))
		for _, e := range slot.ConflictsWith {
			ids = append(ids, e.ID)
		}
		out = append(out, slotDTO{
			Start:         formatTime(slot.Start),
			End:           formatTime(slot.End),
			Available:     slot.Available,
			ConflictsWith: ids,
		})
	}
	return out
}

type importProblemDTO struct {
	UID   string `json:"uid"`
	Error string `json:"error"`
}

type importResponse struct {
	Created  []eventDTO           `json:"created"`
	Warnings []conflictWarningDTO `json:"warnings"`
	Problems []importProblemDTO   `json:"problems"`
}

// Package ical converts agenda events to and from iCalendar (RFC 5545) data.
package ical

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/example/gov-agenda/internal/scheduler"
)

const (
	propKind       ics.ComponentProperty = "X-GOVAGENDA-KIND"
	propStatus     ics.ComponentProperty = "X-GOVAGENDA-STATUS"
	propGovernorID ics.ComponentProperty = "X-GOVAGENDA-GOVERNOR"

	defaultProductID = "-//gov-agenda//calendar//FR"
	uidDomain        = "gov-agenda"
)

// ExportOptions controls calendar level properties of an export.
type ExportOptions struct {
	Name      string
	ProductID string
	// Now stamps DTSTAMP; zero means time.Now.
	Now time.Time
}

// UID returns the stable iCalendar UID of a stored event.
func UID(event scheduler.Event) string {
	return fmt.Sprintf("event-%d@%s", event.ID, uidDomain)
}

// Export writes events as one VCALENDAR to w.
func Export(w io.Writer, events []scheduler.Event, opts ExportOptions) error {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	productID := opts.ProductID
	if productID == "" {
		productID = defaultProductID
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, event := range events {
		ve := cal.AddEvent(UID(event))
		ve.SetDtStampTime(now.UTC())
		ve.SetStartAt(event.Start.UTC())
		ve.SetEndAt(event.End.UTC())
		ve.SetSummary(event.Title)
		if event.Description != "" {
			ve.SetDescription(event.Description)
		}
		if event.Location != "" {
			ve.SetLocation(event.Location)
		}
		if !event.CreatedAt.IsZero() {
			ve.SetCreatedTime(event.CreatedAt.UTC())
		}
		if !event.UpdatedAt.IsZero() {
			ve.SetModifiedAt(event.UpdatedAt.UTC())
		}
		ve.SetStatus(objectStatus(event.Status))
		ve.SetProperty(ics.ComponentPropertyCategories, strings.ToUpper(string(event.Kind)))
		ve.SetProperty(propKind, string(event.Kind))
		ve.SetProperty(propStatus, string(event.Status))
		ve.SetProperty(propGovernorID, fmt.Sprint(event.GovernorID))
	}

	return cal.SerializeTo(w)
}

func objectStatus(status scheduler.Status) ics.ObjectStatus {
	switch status {
	case scheduler.StatusCancelled:
		return ics.ObjectStatusCancelled
	case scheduler.StatusScheduled:
		return ics.ObjectStatusTentative
	}
	return ics.ObjectStatusConfirmed
}

// Entry is one VEVENT converted into event fields.
type Entry struct {
	UID  string
	Spec scheduler.EventSpec
}

// Problem records a VEVENT that could not be converted.
type Problem struct {
	UID string
	Err error
}

// Result is the outcome of Parse. Unusable VEVENTs are reported in Problems
// and do not abort the parse.
type Result struct {
	Entries  []Entry
	Problems []Problem
}

var (
	// ErrEmptyCalendar is returned when the payload is empty.
	ErrEmptyCalendar = errors.New("ical: empty calendar")
	errMissingStart  = errors.New("ical: missing DTSTART")
	errMissingEnd    = errors.New("ical: missing DTEND")
)

// Parse reads a VCALENDAR and converts its VEVENTs. Floating and all-day
// times are interpreted in loc. VEVENTs without a UID receive a random one.
func Parse(r io.Reader, loc *time.Location) (Result, error) {
	if loc == nil {
		loc = time.UTC
	}
	if r == nil {
		return Result{}, ErrEmptyCalendar
	}

	cal, err := ics.ParseCalendar(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Result{}, ErrEmptyCalendar
		}
		return Result{}, fmt.Errorf("ical: parse: %w", err)
	}

	var result Result
	for _, ve := range cal.Events() {
		entry, err := parseVEvent(ve, loc)
		if err != nil {
			result.Problems = append(result.Problems, Problem{UID: entry.UID, Err: err})
			continue
		}
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}

func parseVEvent(ve *ics.VEvent, loc *time.Location) (Entry, error) {
	entry := Entry{UID: propertyValue(ve, ics.ComponentPropertyUniqueId)}
	if entry.UID == "" {
		entry.UID = uuid.NewString()
	}

	start, allDay, err := eventTime(ve, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return entry, err
	}
	if start.IsZero() {
		return entry, errMissingStart
	}
	end, _, err := eventTime(ve, ics.ComponentPropertyDtEnd, loc)
	if err != nil {
		return entry, err
	}
	if end.IsZero() {
		if !allDay {
			return entry, errMissingEnd
		}
		end = start.AddDate(0, 0, 1)
	}

	spec := scheduler.EventSpec{
		Title:       propertyValue(ve, ics.ComponentPropertySummary),
		Description: propertyValue(ve, ics.ComponentPropertyDescription),
		Location:    propertyValue(ve, ics.ComponentPropertyLocation),
		Start:       start,
		End:         end,
		Kind:        scheduler.Kind(propertyValue(ve, propKind)),
		Status:      scheduler.Status(propertyValue(ve, propStatus)),
	}
	if spec.Status == "" {
		spec.Status = statusFromObject(propertyValue(ve, ics.ComponentPropertyStatus))
	}
	if spec.Kind != "" && !spec.Kind.Valid() {
		spec.Kind = scheduler.KindOther
	}
	if id := propertyValue(ve, propGovernorID); id != "" {
		if _, err := fmt.Sscan(id, &spec.GovernorID); err != nil {
			return entry, fmt.Errorf("ical: %s: %w", propGovernorID, err)
		}
	}

	// Run the same checks as event creation so callers get one error per VEVENT.
	if _, err := scheduler.NewEvent(spec); err != nil {
		return entry, err
	}
	entry.Spec = spec
	return entry, nil
}

func statusFromObject(value string) scheduler.Status {
	switch strings.ToUpper(value) {
	case string(ics.ObjectStatusCancelled):
		return scheduler.StatusCancelled
	case string(ics.ObjectStatusConfirmed):
		return scheduler.StatusConfirmed
	}
	return scheduler.StatusScheduled
}

func propertyValue(ve *ics.VEvent, prop ics.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

// eventTime reads a DTSTART or DTEND property. Date-only values are all-day.
func eventTime(ve *ics.VEvent, prop ics.ComponentProperty, loc *time.Location) (time.Time, bool, error) {
	p := ve.GetProperty(prop)
	if p == nil || strings.TrimSpace(p.Value) == "" {
		return time.Time{}, false, nil
	}
	value := strings.TrimSpace(p.Value)

	if !strings.Contains(value, "T") {
		t, err := time.ParseInLocation("20060102", value, loc)
		if err != nil {
			return time.Time{}, true, fmt.Errorf("ical: %s: %w", prop, err)
		}
		return t, true, nil
	}

	if tzids, ok := p.ICalParameters["TZID"]; ok && len(tzids) > 0 {
		if tz, err := time.LoadLocation(tzids[0]); err == nil {
			t, err := time.ParseInLocation("20060102T150405", value, tz)
			if err != nil {
				return time.Time{}, false, fmt.Errorf("ical: %s: %w", prop, err)
			}
			return t, false, nil
		}
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse("20060102T150405Z", value)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("ical: %s: %w", prop, err)
		}
		return t, false, nil
	}

	t, err := time.ParseInLocation("20060102T150405", value, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("ical: %s: %w", prop, err)
	}
	return t, false, nil
}

// Events converts parsed entries into scheduler events numbered from 1 in
// entry order, for offline conflict checks.
func Events(entries []Entry) []scheduler.Event {
	events := make([]scheduler.Event, 0, len(entries))
	for i, entry := range entries {
		spec := entry.Spec
		spec.ID = int64(i + 1)
		event, err := scheduler.NewEvent(spec)
		if err != nil {
			continue
		}
		events = append(events, event)
	}
	return events
}

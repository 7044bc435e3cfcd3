package scheduler

import (
	"fmt"
	"iter"
	"time"
)

// DefaultSlotStep is the granularity of suggested slots.
const DefaultSlotStep = 30 * time.Minute

// TimeSlot is a candidate time range together with its availability.
type TimeSlot struct {
	Start         time.Time
	End           time.Time
	Available     bool
	ConflictsWith []Event
}

// WorkWindow bounds the range SuggestSlots walks over.
type WorkWindow struct {
	Start time.Time
	End   time.Time
}

// ClockTime is a wall-clock time of day such as 08:00.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(value string) (ClockTime, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return ClockTime{}, fmt.Errorf("scheduler: invalid clock time %q: %w", value, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String formats the clock time as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Before reports whether c is earlier in the day than other.
func (c ClockTime) Before(other ClockTime) bool {
	return c.Hour*60+c.Minute < other.Hour*60+other.Minute
}

// DayWindow builds the window from..to on the calendar day of day, in loc.
func DayWindow(day time.Time, from, to ClockTime, loc *time.Location) WorkWindow {
	if loc == nil {
		loc = day.Location()
	}
	d := day.In(loc)
	return WorkWindow{
		Start: time.Date(d.Year(), d.Month(), d.Day(), from.Hour, from.Minute, 0, 0, loc),
		End:   time.Date(d.Year(), d.Month(), d.Day(), to.Hour, to.Minute, 0, 0, loc),
	}
}

// SuggestSlots yields consecutive step-long slots covering window, each marked
// with its availability against events. A trailing remainder shorter than step
// is not yielded. A non-positive step or an empty window yields nothing.
//
// The sequence holds no state between iterations: ranging over it again
// re-evaluates every slot against events.
func SuggestSlots(events []Event, window WorkWindow, step time.Duration) iter.Seq[TimeSlot] {
	return func(yield func(TimeSlot) bool) {
		if step <= 0 || !window.End.After(window.Start) {
			return
		}
		for start := window.Start; !start.Add(step).After(window.End); start = start.Add(step) {
			end := start.Add(step)
			hits := ConflictsWith(events, Interval{Start: start, End: end}, 0)
			slot := TimeSlot{
				Start:         start,
				End:           end,
				Available:     len(hits) == 0,
				ConflictsWith: hits,
			}
			if !yield(slot) {
				return
			}
		}
	}
}

// AvailableSlots filters a slot sequence down to the free slots.
func AvailableSlots(slots iter.Seq[TimeSlot]) iter.Seq[TimeSlot] {
	return func(yield func(TimeSlot) bool) {
		for slot := range slots {
			if !slot.Available {
				continue
			}
			if !yield(slot) {
				return
			}
		}
	}
}

package scheduler

import (
	"math"
	"time"
)

// Interval is a half-open time span [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval returns the interval [start, end) or ErrInvalidBounds when end <= start.
func NewInterval(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, ErrInvalidBounds
	}
	return Interval{Start: start, End: end}, nil
}

// Overlaps reports whether the two intervals share any instant.
// Intervals that only touch at an endpoint do not overlap.
//
// Every overlap decision in this package goes through this method.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Intersection returns the shared span of two overlapping intervals.
// The result is only meaningful when Overlaps is true.
func (i Interval) Intersection(other Interval) Interval {
	start := i.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := i.End
	if other.End.Before(end) {
		end = other.End
	}
	return Interval{Start: start, End: end}
}

// Minutes returns the length of the interval rounded to the nearest minute.
func (i Interval) Minutes() int {
	return int(math.Round(i.End.Sub(i.Start).Minutes()))
}

// Conflict describes two events whose time ranges overlap.
type Conflict struct {
	First          Event
	Second         Event
	OverlapStart   time.Time
	OverlapEnd     time.Time
	OverlapMinutes int
}

// Overlaps reports whether two events overlap in time.
func Overlaps(a, b Event) bool {
	return a.Interval().Overlaps(b.Interval())
}

// DetectConflicts returns one Conflict per unordered pair of overlapping events.
// Pairs are reported in input order (i < j). Pairs sharing an ID are treated as
// the same event and skipped.
func DetectConflicts(events []Event) []Conflict {
	conflicts := make([]Conflict, 0)
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			a, b := events[i], events[j]
			if a.ID == b.ID || !Overlaps(a, b) {
				continue
			}
			conflicts = append(conflicts, newConflict(a, b))
		}
	}
	return conflicts
}

// DetectGovernorConflicts runs DetectConflicts separately on each governor's
// events, so events on different agendas never conflict. Governors are visited
// in order of first appearance.
func DetectGovernorConflicts(events []Event) []Conflict {
	var order []int64
	byGovernor := make(map[int64][]Event)
	for _, e := range events {
		if _, seen := byGovernor[e.GovernorID]; !seen {
			order = append(order, e.GovernorID)
		}
		byGovernor[e.GovernorID] = append(byGovernor[e.GovernorID], e)
	}

	conflicts := make([]Conflict, 0)
	for _, gov := range order {
		conflicts = append(conflicts, DetectConflicts(byGovernor[gov])...)
	}
	return conflicts
}

// HasConflicts reports whether any two events overlap.
func HasConflicts(events []Event) bool {
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			if events[i].ID != events[j].ID && Overlaps(events[i], events[j]) {
				return true
			}
		}
	}
	return false
}

// ConflictCount returns the number of conflicting pairs.
func ConflictCount(events []Event) int {
	return len(DetectConflicts(events))
}

// ConflictsWith returns the events overlapping candidate, ignoring the event
// whose ID equals excludeID. Pass 0 to exclude nothing.
func ConflictsWith(events []Event, candidate Interval, excludeID int64) []Event {
	hits := make([]Event, 0)
	for _, e := range events {
		if excludeID != 0 && e.ID == excludeID {
			continue
		}
		if e.Interval().Overlaps(candidate) {
			hits = append(hits, e)
		}
	}
	return hits
}

// IsSlotAvailable reports whether [start, end) overlaps none of the events.
func IsSlotAvailable(events []Event, start, end time.Time) bool {
	return IsSlotAvailableExcluding(events, start, end, 0)
}

// IsSlotAvailableExcluding is IsSlotAvailable ignoring the event with excludeID,
// which lets an event being rescheduled check its new slot against the rest.
func IsSlotAvailableExcluding(events []Event, start, end time.Time, excludeID int64) bool {
	candidate := Interval{Start: start, End: end}
	for _, e := range events {
		if excludeID != 0 && e.ID == excludeID {
			continue
		}
		if e.Interval().Overlaps(candidate) {
			return false
		}
	}
	return true
}

func newConflict(a, b Event) Conflict {
	shared := a.Interval().Intersection(b.Interval())
	return Conflict{
		First:          a,
		Second:         b,
		OverlapStart:   shared.Start,
		OverlapEnd:     shared.End,
		OverlapMinutes: shared.Minutes(),
	}
}

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func event(id int64, startH, startM, endH, endM int) Event {
	return Event{
		ID:     id,
		Title:  "event",
		Start:  at(startH, startM),
		End:    at(endH, endM),
		Kind:   KindMeeting,
		Status: StatusScheduled,
	}
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b Event
		want bool
	}{
		{"partial overlap", event(1, 10, 0, 11, 0), event(2, 10, 30, 11, 30), true},
		{"containment", event(1, 9, 0, 12, 0), event(2, 10, 0, 11, 0), true},
		{"identical bounds", event(1, 9, 0, 10, 0), event(2, 9, 0, 10, 0), true},
		{"touching end to start", event(1, 9, 0, 10, 0), event(2, 10, 0, 11, 0), false},
		{"disjoint", event(1, 9, 0, 10, 0), event(2, 14, 0, 15, 0), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Overlaps(tc.a, tc.b))
			assert.Equal(t, tc.want, Overlaps(tc.b, tc.a), "overlap must be symmetric")
		})
	}
}

func TestEventNeverConflictsWithItself(t *testing.T) {
	t.Parallel()

	e := event(1, 9, 0, 10, 0)
	assert.True(t, Overlaps(e, e), "a non-empty event shares its own instants")
	assert.Empty(t, DetectConflicts([]Event{e, e}), "an event never conflicts with itself")
}

func TestDetectConflicts(t *testing.T) {
	t.Parallel()

	t.Run("empty and single inputs", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, DetectConflicts(nil))
		assert.Empty(t, DetectConflicts([]Event{event(1, 9, 0, 10, 0)}))
	})

	t.Run("partial overlap window", func(t *testing.T) {
		t.Parallel()
		conflicts := DetectConflicts([]Event{event(1, 10, 0, 11, 0), event(2, 10, 30, 11, 30)})
		require.Len(t, conflicts, 1)
		c := conflicts[0]
		assert.Equal(t, int64(1), c.First.ID)
		assert.Equal(t, int64(2), c.Second.ID)
		assert.Equal(t, at(10, 30), c.OverlapStart)
		assert.Equal(t, at(11, 0), c.OverlapEnd)
		assert.Equal(t, 30, c.OverlapMinutes)
	})

	t.Run("containment spans the inner event", func(t *testing.T) {
		t.Parallel()
		conflicts := DetectConflicts([]Event{event(1, 9, 0, 12, 0), event(2, 10, 0, 11, 0)})
		require.Len(t, conflicts, 1)
		assert.Equal(t, at(10, 0), conflicts[0].OverlapStart)
		assert.Equal(t, at(11, 0), conflicts[0].OverlapEnd)
		assert.Equal(t, 60, conflicts[0].OverlapMinutes)
	})

	t.Run("touching events do not conflict", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, DetectConflicts([]Event{event(1, 9, 0, 10, 0), event(2, 10, 0, 11, 0)}))
	})

	t.Run("minutes are rounded", func(t *testing.T) {
		t.Parallel()
		a := event(1, 9, 0, 10, 0)
		b := Event{ID: 2, Start: at(9, 59).Add(31 * time.Second), End: at(11, 0)}
		conflicts := DetectConflicts([]Event{a, b})
		require.Len(t, conflicts, 1)
		assert.Equal(t, 0, conflicts[0].OverlapMinutes)

		b.Start = at(9, 59).Add(-30 * time.Second)
		conflicts = DetectConflicts([]Event{a, b})
		require.Len(t, conflicts, 1)
		assert.Equal(t, 2, conflicts[0].OverlapMinutes)
	})

	t.Run("pairs follow input order", func(t *testing.T) {
		t.Parallel()
		events := []Event{event(3, 9, 0, 12, 0), event(1, 10, 0, 11, 0), event(2, 10, 30, 13, 0)}
		conflicts := DetectConflicts(events)
		require.Len(t, conflicts, 3)
		got := make([][2]int64, 0, len(conflicts))
		for _, c := range conflicts {
			got = append(got, [2]int64{c.First.ID, c.Second.ID})
		}
		assert.Equal(t, [][2]int64{{3, 1}, {3, 2}, {1, 2}}, got)
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()
		events := []Event{event(1, 9, 0, 10, 0), event(2, 9, 30, 10, 30)}
		assert.Equal(t, DetectConflicts(events), DetectConflicts(events))
	})
}

func TestThreeEventScenario(t *testing.T) {
	t.Parallel()

	events := []Event{
		event(1, 9, 0, 10, 0),
		event(2, 9, 30, 10, 30),
		event(3, 10, 30, 11, 0),
	}

	conflicts := DetectConflicts(events)
	require.Len(t, conflicts, 1)
	assert.Equal(t, int64(1), conflicts[0].First.ID)
	assert.Equal(t, int64(2), conflicts[0].Second.ID)
	assert.Equal(t, 30, conflicts[0].OverlapMinutes)
	assert.True(t, HasConflicts(events))
	assert.Equal(t, 1, ConflictCount(events))
}

func TestHasConflictsAgreesWithCount(t *testing.T) {
	t.Parallel()

	sets := [][]Event{
		nil,
		{event(1, 9, 0, 10, 0)},
		{event(1, 9, 0, 10, 0), event(2, 10, 0, 11, 0)},
		{event(1, 9, 0, 10, 0), event(2, 9, 0, 10, 0), event(3, 9, 30, 9, 45)},
	}
	for _, events := range sets {
		assert.Equal(t, ConflictCount(events) > 0, HasConflicts(events))
	}
	assert.Equal(t, 3, ConflictCount(sets[3]))
}

func TestIsSlotAvailable(t *testing.T) {
	t.Parallel()

	events := []Event{event(1, 9, 0, 10, 0), event(2, 14, 0, 15, 0)}

	assert.True(t, IsSlotAvailable(events, at(10, 0), at(11, 0)), "slot starting at an event end is free")
	assert.True(t, IsSlotAvailable(events, at(8, 0), at(9, 0)), "slot ending at an event start is free")
	assert.False(t, IsSlotAvailable(events, at(9, 30), at(10, 30)))
	assert.False(t, IsSlotAvailable(events, at(8, 0), at(16, 0)), "covering slot")
	assert.False(t, IsSlotAvailable(events, at(14, 15), at(14, 45)), "contained slot")
	assert.True(t, IsSlotAvailable(nil, at(9, 0), at(10, 0)))

	assert.True(t, IsSlotAvailableExcluding(events, at(9, 30), at(10, 30), 1))
	assert.False(t, IsSlotAvailableExcluding(events, at(9, 30), at(14, 30), 1))
}

func TestIsSlotAvailableMatchesOverlaps(t *testing.T) {
	t.Parallel()

	events := []Event{event(1, 9, 0, 10, 0), event(2, 11, 15, 12, 45)}
	for start := 8 * 60; start < 14*60; start += 15 {
		for length := 15; length <= 120; length += 15 {
			s := day.Add(time.Duration(start) * time.Minute)
			e := s.Add(time.Duration(length) * time.Minute)
			pseudo := Event{ID: -1, Start: s, End: e}

			want := true
			for _, existing := range events {
				if Overlaps(existing, pseudo) {
					want = false
				}
			}
			assert.Equal(t, want, IsSlotAvailable(events, s, e), "candidate %s-%s", s.Format("15:04"), e.Format("15:04"))
		}
	}
}

func TestConflictsWith(t *testing.T) {
	t.Parallel()

	events := []Event{event(1, 9, 0, 10, 0), event(2, 9, 30, 11, 0), event(3, 12, 0, 13, 0)}
	hits := ConflictsWith(events, Interval{Start: at(9, 45), End: at(10, 15)}, 0)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].ID)
	assert.Equal(t, int64(2), hits[1].ID)

	hits = ConflictsWith(events, Interval{Start: at(9, 45), End: at(10, 15)}, 2)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1), hits[0].ID)
}

func TestNewInterval(t *testing.T) {
	t.Parallel()

	_, err := NewInterval(at(10, 0), at(10, 0))
	assert.ErrorIs(t, err, ErrInvalidBounds)

	iv, err := NewInterval(at(10, 0), at(11, 0))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, iv.End.Sub(iv.Start))
}

func TestDetectGovernorConflicts(t *testing.T) {
	t.Parallel()

	onAgenda := func(e Event, governor int64) Event {
		e.GovernorID = governor
		return e
	}
	events := []Event{
		onAgenda(event(1, 9, 0, 10, 0), 1),
		onAgenda(event(2, 9, 0, 10, 0), 2),
		onAgenda(event(3, 9, 30, 10, 30), 2),
		onAgenda(event(4, 9, 45, 11, 0), 1),
	}

	assert.Len(t, DetectConflicts(events), 6, "a flat detection compares every pair")

	conflicts := DetectGovernorConflicts(events)
	require.Len(t, conflicts, 2)
	assert.Equal(t, [2]int64{1, 4}, [2]int64{conflicts[0].First.ID, conflicts[0].Second.ID})
	assert.Equal(t, [2]int64{2, 3}, [2]int64{conflicts[1].First.ID, conflicts[1].Second.ID})
	for _, c := range conflicts {
		assert.Equal(t, c.First.GovernorID, c.Second.GovernorID)
	}

	assert.Empty(t, DetectGovernorConflicts(nil))
}

func TestIntervalMinutes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		span Interval
		want int
	}{
		{"whole minutes", Interval{Start: at(10, 0), End: at(10, 30)}, 30},
		{"rounds half up", Interval{Start: at(10, 0), End: at(10, 0).Add(90 * time.Second)}, 2},
		{"rounds down", Interval{Start: at(10, 0), End: at(10, 0).Add(29 * time.Second)}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.span.Minutes())
		})
	}

	a := Event{ID: 1, Start: at(10, 0), End: at(11, 0).Add(30 * time.Second)}
	b := Event{ID: 2, Start: at(10, 59), End: at(12, 0)}
	conflicts := DetectConflicts([]Event{a, b})
	require.Len(t, conflicts, 1)
	assert.Equal(t, a.Interval().Intersection(b.Interval()).Minutes(), conflicts[0].OverlapMinutes)
	assert.Equal(t, 2, conflicts[0].OverlapMinutes)
}

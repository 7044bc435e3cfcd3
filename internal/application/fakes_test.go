package application

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/example/gov-agenda/internal/authz"
	"github.com/example/gov-agenda/internal/scheduler"
)

var (
	secretary = Principal{UserID: 2, Role: authz.RolePersonalSecretary}
	governor  = Principal{UserID: 1, Role: authz.RoleGovernor}
	admin     = Principal{UserID: 9, Role: authz.RoleAdmin}
)

func divisionHead(userID, divisionID int64) Principal {
	return Principal{UserID: userID, Role: authz.RoleDivisionHead, DivisionID: &divisionID}
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

// memoryEvents is an in-memory EventRepository with the same overlap filter as the store.
type memoryEvents struct {
	mu     sync.Mutex
	nextID int64
	events map[int64]scheduler.Event
}

func newMemoryEvents(seed ...scheduler.Event) *memoryEvents {
	m := &memoryEvents{events: make(map[int64]scheduler.Event)}
	for _, e := range seed {
		m.events[e.ID] = e
		m.nextID = max(m.nextID, e.ID)
	}
	return m
}

func (m *memoryEvents) CreateEvent(ctx context.Context, event scheduler.Event) (scheduler.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	event.ID = m.nextID
	m.events[event.ID] = event
	return event, nil
}

func (m *memoryEvents) UpdateEvent(ctx context.Context, event scheduler.Event) (scheduler.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.events[event.ID]
	if !ok {
		return scheduler.Event{}, ErrNotFound
	}
	event.Notes = existing.Notes
	m.events[event.ID] = event
	return event, nil
}

func (m *memoryEvents) GetEvent(ctx context.Context, id int64) (scheduler.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return scheduler.Event{}, ErrNotFound
	}
	return event, nil
}

func (m *memoryEvents) ListEvents(ctx context.Context, filter EventFilter) ([]scheduler.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]scheduler.Event, 0, len(m.events))
	for _, e := range m.events {
		if filter.From != nil && !e.End.After(*filter.From) {
			continue
		}
		if filter.To != nil && !e.Start.Before(*filter.To) {
			continue
		}
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		if filter.GovernorID != nil && e.GovernorID != *filter.GovernorID {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b scheduler.Event) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	return out, nil
}

func (m *memoryEvents) DeleteEvent(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *memoryEvents) AddEventNote(ctx context.Context, note scheduler.Note) (scheduler.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[note.EventID]
	if !ok {
		return scheduler.Note{}, ErrNotFound
	}
	note.ID = int64(len(event.Notes) + 1)
	event.Notes = append(event.Notes, note)
	m.events[event.ID] = event
	return note, nil
}

// memoryTasks is an in-memory TaskRepository.
type memoryTasks struct {
	mu      sync.Mutex
	nextID  int64
	tasks   map[int64]Task
	changes []TaskStatusChange
	history []TaskHistoryEntry
	counts  []TaskStatusCount
}

func newMemoryTasks(seed ...Task) *memoryTasks {
	m := &memoryTasks{tasks: make(map[int64]Task)}
	for _, task := range seed {
		m.tasks[task.ID] = task
		m.nextID = max(m.nextID, task.ID)
	}
	return m
}

func (m *memoryTasks) CreateTask(ctx context.Context, task Task) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	task.ID = m.nextID
	m.tasks[task.ID] = task
	return task, nil
}

func (m *memoryTasks) UpdateTask(ctx context.Context, task Task) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; !ok {
		return Task{}, ErrNotFound
	}
	m.tasks[task.ID] = task
	return task, nil
}

func (m *memoryTasks) GetTask(ctx context.Context, id int64) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return task, nil
}

func (m *memoryTasks) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, 0)
	for _, task := range m.tasks {
		if filter.DivisionID != nil && task.DivisionID != *filter.DivisionID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.ForFollowUp != nil && task.ForFollowUp != *filter.ForFollowUp {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(task.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, task)
	}
	slices.SortFunc(out, func(a, b Task) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *memoryTasks) DeleteTask(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *memoryTasks) ChangeTaskStatus(ctx context.Context, task Task, change TaskStatusChange) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	change.ID = int64(len(m.changes) + 1)
	m.changes = append(m.changes, change)
	m.tasks[task.ID] = task
	return task, nil
}

func (m *memoryTasks) ListTaskStatusChanges(ctx context.Context, taskID int64) ([]TaskStatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TaskStatusChange
	for _, c := range m.changes {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryTasks) AddTaskHistory(ctx context.Context, entry TaskHistoryEntry) (TaskHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.history) + 1)
	m.history = append(m.history, entry)
	return entry, nil
}

func (m *memoryTasks) ListTaskHistory(ctx context.Context, taskID int64) ([]TaskHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TaskHistoryEntry
	for _, e := range m.history {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryTasks) CountTasksByStatus(ctx context.Context) ([]TaskStatusCount, error) {
	return m.counts, nil
}

// divisionStub serves a fixed set of divisions.
type divisionStub struct {
	divisions map[int64]Division
	createErr error
	created   Division
}

func newDivisionStub(divisions ...Division) *divisionStub {
	s := &divisionStub{divisions: make(map[int64]Division)}
	for _, d := range divisions {
		s.divisions[d.ID] = d
	}
	return s
}

func (s *divisionStub) GetDivision(ctx context.Context, id int64) (Division, error) {
	d, ok := s.divisions[id]
	if !ok {
		return Division{}, ErrNotFound
	}
	return d, nil
}

func (s *divisionStub) CreateDivision(ctx context.Context, division Division) (Division, error) {
	if s.createErr != nil {
		return Division{}, s.createErr
	}
	division.ID = int64(len(s.divisions) + 1)
	s.divisions[division.ID] = division
	s.created = division
	return division, nil
}

func (s *divisionStub) ListDivisions(ctx context.Context) ([]Division, error) {
	out := make([]Division, 0, len(s.divisions))
	for _, d := range s.divisions {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b Division) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

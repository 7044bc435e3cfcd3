package main

import (
	"context"
	"strings"
	"time"

	"github.com/example/gov-agenda/internal/application"
	"github.com/example/gov-agenda/internal/authz"
	"github.com/example/gov-agenda/internal/persistence"
	"github.com/example/gov-agenda/internal/scheduler"
)

type eventRepositoryAdapter struct {
	repo persistence.EventRepository
}

func newEventRepositoryAdapter(repo persistence.EventRepository) *eventRepositoryAdapter {
	return &eventRepositoryAdapter{repo: repo}
}

func (a *eventRepositoryAdapter) CreateEvent(ctx context.Context, event scheduler.Event) (scheduler.Event, error) {
	stored, err := a.repo.CreateEvent(ctx, toPersistenceEvent(event))
	if err != nil {
		return scheduler.Event{}, err
	}
	return toSchedulerEvent(stored), nil
}

func (a *eventRepositoryAdapter) UpdateEvent(ctx context.Context, event scheduler.Event) (scheduler.Event, error) {
	stored, err := a.repo.UpdateEvent(ctx, toPersistenceEvent(event))
	if err != nil {
		return scheduler.Event{}, err
	}
	return toSchedulerEvent(stored), nil
}

func (a *eventRepositoryAdapter) GetEvent(ctx context.Context, id int64) (scheduler.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return scheduler.Event{}, err
	}
	return toSchedulerEvent(stored), nil
}

func (a *eventRepositoryAdapter) ListEvents(ctx context.Context, filter application.EventFilter) ([]scheduler.Event, error) {
	models, err := a.repo.ListEvents(ctx, persistence.EventFilter{
		From:       cloneTime(filter.From),
		To:         cloneTime(filter.To),
		Kind:       string(filter.Kind),
		GovernorID: cloneInt64(filter.GovernorID),
	})
	if err != nil {
		return nil, err
	}
	events := make([]scheduler.Event, 0, len(models))
	for _, model := range models {
		events = append(events, toSchedulerEvent(model))
	}
	return events, nil
}

func (a *eventRepositoryAdapter) DeleteEvent(ctx context.Context, id int64) error {
	return a.repo.DeleteEvent(ctx, id)
}

func (a *eventRepositoryAdapter) AddEventNote(ctx context.Context, note scheduler.Note) (scheduler.Note, error) {
	stored, err := a.repo.AddEventNote(ctx, persistence.EventNote{
		EventID:   note.EventID,
		Content:   note.Content,
		CreatedBy: note.CreatedBy,
		CreatedAt: note.CreatedAt,
	})
	if err != nil {
		return scheduler.Note{}, err
	}
	return toSchedulerNote(stored), nil
}

type divisionRepositoryAdapter struct {
	repo persistence.DivisionRepository
}

func newDivisionRepositoryAdapter(repo persistence.DivisionRepository) *divisionRepositoryAdapter {
	return &divisionRepositoryAdapter{repo: repo}
}

func (a *divisionRepositoryAdapter) CreateDivision(ctx context.Context, division application.Division) (application.Division, error) {
	stored, err := a.repo.CreateDivision(ctx, persistence.Division{Name: division.Name, CreatedAt: division.CreatedAt})
	if err != nil {
		return application.Division{}, err
	}
	return toApplicationDivision(stored), nil
}

func (a *divisionRepositoryAdapter) GetDivision(ctx context.Context, id int64) (application.Division, error) {
	stored, err := a.repo.GetDivision(ctx, id)
	if err != nil {
		return application.Division{}, err
	}
	return toApplicationDivision(stored), nil
}

func (a *divisionRepositoryAdapter) ListDivisions(ctx context.Context) ([]application.Division, error) {
	models, err := a.repo.ListDivisions(ctx)
	if err != nil {
		return nil, err
	}
	divisions := make([]application.Division, 0, len(models))
	for _, model := range models {
		divisions = append(divisions, toApplicationDivision(model))
	}
	return divisions, nil
}

type taskRepositoryAdapter struct {
	repo persistence.TaskRepository
}

func newTaskRepositoryAdapter(repo persistence.TaskRepository) *taskRepositoryAdapter {
	return &taskRepositoryAdapter{repo: repo}
}

func (a *taskRepositoryAdapter) CreateTask(ctx context.Context, task application.Task) (application.Task, error) {
	stored, err := a.repo.CreateTask(ctx, toPersistenceTask(task))
	if err != nil {
		return application.Task{}, err
	}
	return toApplicationTask(stored), nil
}

func (a *taskRepositoryAdapter) UpdateTask(ctx context.Context, task application.Task) (application.Task, error) {
	stored, err := a.repo.UpdateTask(ctx, toPersistenceTask(task))
	if err != nil {
		return application.Task{}, err
	}
	return toApplicationTask(stored), nil
}

func (a *taskRepositoryAdapter) GetTask(ctx context.Context, id int64) (application.Task, error) {
	stored, err := a.repo.GetTask(ctx, id)
	if err != nil {
		return application.Task{}, err
	}
	return toApplicationTask(stored), nil
}

func (a *taskRepositoryAdapter) ListTasks(ctx context.Context, filter application.TaskFilter) ([]application.Task, error) {
	var followUp *bool
	if filter.ForFollowUp != nil {
		v := *filter.ForFollowUp
		followUp = &v
	}
	models, err := a.repo.ListTasks(ctx, persistence.TaskFilter{
		DivisionID:  cloneInt64(filter.DivisionID),
		Status:      string(filter.Status),
		ForFollowUp: followUp,
		Search:      filter.Search,
	})
	if err != nil {
		return nil, err
	}
	tasks := make([]application.Task, 0, len(models))
	for _, model := range models {
		tasks = append(tasks, toApplicationTask(model))
	}
	return tasks, nil
}

func (a *taskRepositoryAdapter) DeleteTask(ctx context.Context, id int64) error {
	return a.repo.DeleteTask(ctx, id)
}

func (a *taskRepositoryAdapter) ChangeTaskStatus(ctx context.Context, task application.Task, change application.TaskStatusChange) (application.Task, error) {
	stored, err := a.repo.ChangeTaskStatus(ctx, toPersistenceTask(task), persistence.TaskStatusChange{
		TaskID:        change.TaskID,
		Status:        string(change.Status),
		ChangedAt:     change.ChangedAt,
		ChangedBy:     change.ChangedBy,
		ChangedByRole: string(change.ChangedByRole),
		Note:          optionalString(change.Note),
	})
	if err != nil {
		return application.Task{}, err
	}
	return toApplicationTask(stored), nil
}

func (a *taskRepositoryAdapter) ListTaskStatusChanges(ctx context.Context, taskID int64) ([]application.TaskStatusChange, error) {
	models, err := a.repo.ListTaskStatusChanges(ctx, taskID)
	if err != nil {
		return nil, err
	}
	changes := make([]application.TaskStatusChange, 0, len(models))
	for _, model := range models {
		changes = append(changes, application.TaskStatusChange{
			ID:            model.ID,
			TaskID:        model.TaskID,
			Status:        application.TaskStatus(model.Status),
			ChangedAt:     model.ChangedAt,
			ChangedBy:     model.ChangedBy,
			ChangedByRole: authz.Role(model.ChangedByRole),
			Note:          derefString(model.Note),
		})
	}
	return changes, nil
}

func (a *taskRepositoryAdapter) AddTaskHistory(ctx context.Context, entry application.TaskHistoryEntry) (application.TaskHistoryEntry, error) {
	stored, err := a.repo.AddTaskHistory(ctx, persistence.TaskHistoryEntry{
		TaskID:        entry.TaskID,
		Description:   entry.Description,
		ChangedAt:     entry.ChangedAt,
		ChangedBy:     entry.ChangedBy,
		ChangedByRole: string(entry.ChangedByRole),
	})
	if err != nil {
		return application.TaskHistoryEntry{}, err
	}
	return toApplicationHistoryEntry(stored), nil
}

func (a *taskRepositoryAdapter) ListTaskHistory(ctx context.Context, taskID int64) ([]application.TaskHistoryEntry, error) {
	models, err := a.repo.ListTaskHistory(ctx, taskID)
	if err != nil {
		return nil, err
	}
	entries := make([]application.TaskHistoryEntry, 0, len(models))
	for _, model := range models {
		entries = append(entries, toApplicationHistoryEntry(model))
	}
	return entries, nil
}

func (a *taskRepositoryAdapter) CountTasksByStatus(ctx context.Context) ([]application.TaskStatusCount, error) {
	models, err := a.repo.CountTasksByStatus(ctx)
	if err != nil {
		return nil, err
	}
	counts := make([]application.TaskStatusCount, 0, len(models))
	for _, model := range models {
		counts = append(counts, application.TaskStatusCount{
			DivisionID:   model.DivisionID,
			DivisionName: model.DivisionName,
			Status:       application.TaskStatus(model.Status),
			Count:        model.Count,
		})
	}
	return counts, nil
}

func toSchedulerEvent(model persistence.Event) scheduler.Event {
	notes := make([]scheduler.Note, 0, len(model.Notes))
	for _, note := range model.Notes {
		notes = append(notes, toSchedulerNote(note))
	}
	return scheduler.Event{
		ID:          model.ID,
		Title:       model.Title,
		Description: derefString(model.Description),
		Location:    derefString(model.Location),
		Start:       model.Start,
		End:         model.End,
		Kind:        scheduler.Kind(model.Kind),
		Status:      scheduler.Status(model.Status),
		GovernorID:  model.GovernorID,
		CreatedBy:   model.CreatedBy,
		Notes:       notes,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// toPersistenceEvent drops notes; they are only written through AddEventNote.
func toPersistenceEvent(event scheduler.Event) persistence.Event {
	return persistence.Event{
		ID:          event.ID,
		Title:       event.Title,
		Description: optionalString(event.Description),
		Location:    optionalString(event.Location),
		Start:       event.Start,
		End:         event.End,
		Kind:        string(event.Kind),
		Status:      string(event.Status),
		GovernorID:  event.GovernorID,
		CreatedBy:   event.CreatedBy,
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
}

func toSchedulerNote(model persistence.EventNote) scheduler.Note {
	return scheduler.Note{
		ID:        model.ID,
		EventID:   model.EventID,
		Content:   model.Content,
		CreatedBy: model.CreatedBy,
		CreatedAt: model.CreatedAt,
	}
}

func toApplicationDivision(model persistence.Division) application.Division {
	return application.Division{ID: model.ID, Name: model.Name, CreatedAt: model.CreatedAt}
}

func toApplicationTask(model persistence.Task) application.Task {
	return application.Task{
		ID:                       model.ID,
		Name:                     model.Name,
		Description:              derefString(model.Description),
		DueDate:                  model.DueDate,
		FinishedAt:               cloneTime(model.FinishedAt),
		Status:                   application.TaskStatus(model.Status),
		Priority:                 application.TaskPriority(model.Priority),
		DivisionID:               model.DivisionID,
		DivisionName:             model.DivisionName,
		CreatedBy:                model.CreatedBy,
		AssignedToDivisionHeadID: cloneInt64(model.AssignedToDivisionHeadID),
		AssignedTo:               derefString(model.AssignedTo),
		ForFollowUp:              model.ForFollowUp,
		CreatedAt:                model.CreatedAt,
		UpdatedAt:                model.UpdatedAt,
	}
}

func toPersistenceTask(task application.Task) persistence.Task {
	return persistence.Task{
		ID:                       task.ID,
		Name:                     task.Name,
		Description:              optionalString(task.Description),
		DueDate:                  task.DueDate,
		FinishedAt:               cloneTime(task.FinishedAt),
		Status:                   string(task.Status),
		Priority:                 string(task.Priority),
		DivisionID:               task.DivisionID,
		CreatedBy:                task.CreatedBy,
		AssignedToDivisionHeadID: cloneInt64(task.AssignedToDivisionHeadID),
		AssignedTo:               optionalString(task.AssignedTo),
		ForFollowUp:              task.ForFollowUp,
		CreatedAt:                task.CreatedAt,
		UpdatedAt:                task.UpdatedAt,
	}
}

func toApplicationHistoryEntry(model persistence.TaskHistoryEntry) application.TaskHistoryEntry {
	return application.TaskHistoryEntry{
		ID:            model.ID,
		TaskID:        model.TaskID,
		Description:   model.Description,
		ChangedAt:     model.ChangedAt,
		ChangedBy:     model.ChangedBy,
		ChangedByRole: authz.Role(model.ChangedByRole),
	}
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func cloneInt64(value *int64) *int64 {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

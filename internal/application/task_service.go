package application

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/gov-agenda/internal/authz"
)

// TaskRepository captures the persistence operations needed by the task service.
type TaskRepository interface {
	CreateTask(ctx context.Context, task Task) (Task, error)
	UpdateTask(ctx context.Context, task Task) (Task, error)
	GetTask(ctx context.Context, id int64) (Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error)
	DeleteTask(ctx context.Context, id int64) error
	ChangeTaskStatus(ctx context.Context, task Task, change TaskStatusChange) (Task, error)
	ListTaskStatusChanges(ctx context.Context, taskID int64) ([]TaskStatusChange, error)
	AddTaskHistory(ctx context.Context, entry TaskHistoryEntry) (TaskHistoryEntry, error)
	ListTaskHistory(ctx context.Context, taskID int64) ([]TaskHistoryEntry, error)
	CountTasksByStatus(ctx context.Context) ([]TaskStatusCount, error)
}

// DivisionLookup resolves divisions referenced by tasks.
type DivisionLookup interface {
	GetDivision(ctx context.Context, id int64) (Division, error)
}

// TaskService orchestrates validation, division scoped authorization and
// persistence for tasks.
type TaskService struct {
	tasks     TaskRepository
	divisions DivisionLookup
	now       func() time.Time
	logger    *slog.Logger
}

// NewTaskService constructs a task service with the provided dependencies.
func NewTaskService(tasks TaskRepository, divisions DivisionLookup, now func() time.Time, logger *slog.Logger) *TaskService {
	if now == nil {
		now = time.Now
	}
	return &TaskService{tasks: tasks, divisions: divisions, now: now, logger: defaultLogger(logger)}
}

func (s *TaskService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TaskService", operation, attrs...)
}

func (s *TaskService) ready() error {
	if s == nil {
		return fmt.Errorf("TaskService is nil")
	}
	if s.tasks == nil {
		return fmt.Errorf("task repository not configured")
	}
	return nil
}

// canActOnTask grants action on a task of divisionID when the role holds it on
// all tasks, or holds it on division tasks and the principal belongs to that division.
func canActOnTask(p Principal, divisionID int64, action authz.Action) bool {
	if authz.HasPermission(p.Role, authz.ResourceTasks, action) {
		return true
	}
	if !p.inDivision(divisionID) {
		return false
	}
	return authz.HasPermission(p.Role, authz.ResourceDivisionTasks, action) ||
		authz.HasPermission(p.Role, authz.ResourceOwnDivisionTasks, action)
}

// divisionScoped reports whether the role reaches tasks only through its own division.
func divisionScoped(p Principal, action authz.Action) bool {
	return p.DivisionID != nil &&
		(authz.HasPermission(p.Role, authz.ResourceDivisionTasks, action) ||
			authz.HasPermission(p.Role, authz.ResourceOwnDivisionTasks, action))
}

// CreateTask validates input and stores a pending task.
func (s *TaskService) CreateTask(ctx context.Context, params CreateTaskParams) (task Task, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreateTask",
		"principal_id", params.Principal.UserID,
		"division_id", params.Input.DivisionID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create task", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("task_id", task.ID).InfoContext(ctx, "task created")
	}()

	if !canActOnTask(params.Principal, params.Input.DivisionID, authz.ActionCreate) {
		err = ErrUnauthorized
		return
	}

	input := normalizeTaskInput(params.Input)
	if err = s.validateTaskInput(ctx, input); err != nil {
		return
	}

	now := s.now()
	task = applyTaskInput(Task{
		Status:    TaskPending,
		CreatedBy: params.Principal.UserID,
		CreatedAt: now,
	}, input)
	task.UpdatedAt = now

	task, err = s.tasks.CreateTask(ctx, task)
	if err != nil {
		err = mapRepoError(err, "division_id")
	}
	return
}

// UpdateTask replaces the editable fields of a task. Moving a task to another
// division requires update rights on both divisions.
func (s *TaskService) UpdateTask(ctx context.Context, params UpdateTaskParams) (task Task, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateTask", "principal_id", params.Principal.UserID, "task_id", params.TaskID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update task", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "task updated")
	}()

	existing, err := s.tasks.GetTask(ctx, params.TaskID)
	if err != nil {
		err = mapRepoError(err, "id")
		return
	}
	if !canActOnTask(params.Principal, existing.DivisionID, authz.ActionUpdate) ||
		!canActOnTask(params.Principal, params.Input.DivisionID, authz.ActionUpdate) {
		err = ErrUnauthorized
		return
	}

	input := normalizeTaskInput(params.Input)
	if err = s.validateTaskInput(ctx, input); err != nil {
		return
	}

	task = applyTaskInput(existing, input)
	task.UpdatedAt = s.now()

	task, err = s.tasks.UpdateTask(ctx, task)
	if err != nil {
		err = mapRepoError(err, "division_id")
	}
	return
}

// DeleteTask removes a task with its history.
func (s *TaskService) DeleteTask(ctx context.Context, principal Principal, taskID int64) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteTask", "principal_id", principal.UserID, "task_id", taskID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete task", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "task deleted")
	}()

	if _, err = s.authorizedTask(ctx, principal, taskID, authz.ActionDelete); err != nil {
		return
	}
	return mapRepoError(s.tasks.DeleteTask(ctx, taskID), "id")
}

// GetTask loads one task.
func (s *TaskService) GetTask(ctx context.Context, principal Principal, taskID int64) (Task, error) {
	if err := s.ready(); err != nil {
		return Task{}, err
	}
	return s.authorizedTask(ctx, principal, taskID, authz.ActionRead)
}

// ListTasks returns tasks matching params. Division scoped roles only ever see
// the tasks of their own division.
func (s *TaskService) ListTasks(ctx context.Context, params ListTasksParams) (tasks []Task, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ListTasks", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list tasks", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(tasks)).DebugContext(ctx, "tasks listed")
	}()

	filter := TaskFilter{
		DivisionID:  params.DivisionID,
		ForFollowUp: params.ForFollowUp,
		Search:      strings.TrimSpace(params.Search),
	}
	if raw := strings.TrimSpace(params.Status); raw != "" {
		filter.Status = TaskStatus(raw)
		if !filter.Status.Valid() {
			err = fieldError("status", "statut inconnu")
			return
		}
	}

	switch {
	case authz.HasPermission(params.Principal.Role, authz.ResourceTasks, authz.ActionRead):
	case divisionScoped(params.Principal, authz.ActionRead):
		if filter.DivisionID != nil && *filter.DivisionID != *params.Principal.DivisionID {
			err = ErrUnauthorized
			return
		}
		own := *params.Principal.DivisionID
		filter.DivisionID = &own
	default:
		err = ErrUnauthorized
		return
	}

	tasks, err = s.tasks.ListTasks(ctx, filter)
	if err != nil {
		err = mapRepoError(err, "filter")
	}
	return
}

// ChangeTaskStatus moves a task to another status and records the transition.
// Reaching done stamps FinishedAt; leaving done clears it.
func (s *TaskService) ChangeTaskStatus(ctx context.Context, params ChangeTaskStatusParams) (task Task, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ChangeTaskStatus",
		"principal_id", params.Principal.UserID,
		"task_id", params.TaskID,
		"status", params.Status,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to change task status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "task status changed")
	}()

	next := TaskStatus(strings.TrimSpace(params.Status))
	if !next.Valid() {
		err = fieldError("status", "statut inconnu")
		return
	}

	task, err = s.authorizedTask(ctx, params.Principal, params.TaskID, authz.ActionUpdate)
	if err != nil {
		return
	}

	now := s.now()
	task.Status = next
	task.UpdatedAt = now
	if next == TaskDone {
		finished := now
		task.FinishedAt = &finished
	} else {
		task.FinishedAt = nil
	}

	task, err = s.tasks.ChangeTaskStatus(ctx, task, TaskStatusChange{
		TaskID:        task.ID,
		Status:        next,
		ChangedAt:     now,
		ChangedBy:     params.Principal.UserID,
		ChangedByRole: params.Principal.Role,
		Note:          strings.TrimSpace(params.Note),
	})
	if err != nil {
		err = mapRepoError(err, "status")
	}
	return
}

// AddTaskHistory appends a free-form history line to a task.
func (s *TaskService) AddTaskHistory(ctx context.Context, principal Principal, taskID int64, description string) (entry TaskHistoryEntry, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "AddTaskHistory", "principal_id", principal.UserID, "task_id", taskID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add task history", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("entry_id", entry.ID).InfoContext(ctx, "task history added")
	}()

	description = strings.TrimSpace(description)
	if description == "" {
		err = fieldError("description", "ce champ est obligatoire")
		return
	}
	if _, err = s.authorizedTask(ctx, principal, taskID, authz.ActionUpdate); err != nil {
		return
	}

	entry, err = s.tasks.AddTaskHistory(ctx, TaskHistoryEntry{
		TaskID:        taskID,
		Description:   description,
		ChangedAt:     s.now(),
		ChangedBy:     principal.UserID,
		ChangedByRole: principal.Role,
	})
	if err != nil {
		err = mapRepoError(err, "task_id")
	}
	return
}

// TaskStatusHistory returns the status transitions of a task, oldest first.
func (s *TaskService) TaskStatusHistory(ctx context.Context, principal Principal, taskID int64) ([]TaskStatusChange, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, err := s.authorizedTask(ctx, principal, taskID, authz.ActionRead); err != nil {
		return nil, err
	}
	changes, err := s.tasks.ListTaskStatusChanges(ctx, taskID)
	if err != nil {
		return nil, mapRepoError(err, "task_id")
	}
	return changes, nil
}

// TaskHistory returns the free-form history of a task, oldest first.
func (s *TaskService) TaskHistory(ctx context.Context, principal Principal, taskID int64) ([]TaskHistoryEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, err := s.authorizedTask(ctx, principal, taskID, authz.ActionRead); err != nil {
		return nil, err
	}
	entries, err := s.tasks.ListTaskHistory(ctx, taskID)
	if err != nil {
		return nil, mapRepoError(err, "task_id")
	}
	return entries, nil
}

// FollowUpTasks lists the tasks flagged for follow-up.
func (s *TaskService) FollowUpTasks(ctx context.Context, principal Principal) ([]Task, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !authz.HasPermission(principal.Role, authz.ResourceFollowUp, authz.ActionRead) &&
		!authz.HasPermission(principal.Role, authz.ResourceTasks, authz.ActionRead) {
		return nil, ErrUnauthorized
	}
	flagged := true
	tasks, err := s.tasks.ListTasks(ctx, TaskFilter{ForFollowUp: &flagged})
	if err != nil {
		return nil, mapRepoError(err, "filter")
	}
	return tasks, nil
}

// TaskStatistics totals tasks per status, overall and per division.
func (s *TaskService) TaskStatistics(ctx context.Context, principal Principal) (TaskStatistics, error) {
	if err := s.ready(); err != nil {
		return TaskStatistics{}, err
	}
	if !authz.HasPermission(principal.Role, authz.ResourceStatistics, authz.ActionRead) {
		return TaskStatistics{}, ErrUnauthorized
	}

	counts, err := s.tasks.CountTasksByStatus(ctx)
	if err != nil {
		return TaskStatistics{}, mapRepoError(err, "statistics")
	}
	return summarizeTaskCounts(counts), nil
}

// authorizedTask loads a task the principal may act on. Roles that cannot
// perform action on any task are refused before the lookup, so they cannot
// tell missing IDs from existing ones.
func (s *TaskService) authorizedTask(ctx context.Context, principal Principal, taskID int64, action authz.Action) (Task, error) {
	if !authz.HasPermission(principal.Role, authz.ResourceTasks, action) && !divisionScoped(principal, action) {
		return Task{}, ErrUnauthorized
	}
	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, mapRepoError(err, "id")
	}
	if !canActOnTask(principal, task.DivisionID, action) {
		return Task{}, ErrUnauthorized
	}
	return task, nil
}

func (s *TaskService) validateTaskInput(ctx context.Context, input TaskInput) error {
	vErr := &ValidationError{}
	validateStruct(input, vErr)
	if input.DueDate.IsZero() {
		vErr.add("due_date", "ce champ est obligatoire")
	}
	if vErr.HasErrors() {
		return vErr
	}

	if s.divisions == nil {
		return nil
	}
	if _, err := s.divisions.GetDivision(ctx, input.DivisionID); err != nil {
		if isNotFoundError(err) {
			return fieldError("division_id", "division inconnue")
		}
		return err
	}
	return nil
}

func normalizeTaskInput(input TaskInput) TaskInput {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.AssignedTo = strings.TrimSpace(input.AssignedTo)
	input.Priority = strings.TrimSpace(input.Priority)
	if input.Priority == "" {
		input.Priority = string(PriorityMedium)
	}
	return input
}

func applyTaskInput(task Task, input TaskInput) Task {
	task.Name = input.Name
	task.Description = input.Description
	task.DueDate = input.DueDate
	task.Priority = TaskPriority(input.Priority)
	task.DivisionID = input.DivisionID
	task.AssignedToDivisionHeadID = input.AssignedToDivisionHeadID
	task.AssignedTo = input.AssignedTo
	task.ForFollowUp = input.ForFollowUp
	return task
}

func summarizeTaskCounts(counts []TaskStatusCount) TaskStatistics {
	stats := TaskStatistics{ByStatus: emptyStatusCounts()}
	byDivision := make(map[int64]*DivisionTaskStatistics)

	for _, c := range counts {
		stats.Total += c.Count
		stats.ByStatus[c.Status] += c.Count

		division, ok := byDivision[c.DivisionID]
		if !ok {
			division = &DivisionTaskStatistics{
				DivisionID:   c.DivisionID,
				DivisionName: c.DivisionName,
				ByStatus:     emptyStatusCounts(),
			}
			byDivision[c.DivisionID] = division
		}
		division.Total += c.Count
		division.ByStatus[c.Status] += c.Count
	}

	stats.ByDivision = make([]DivisionTaskStatistics, 0, len(byDivision))
	for _, division := range byDivision {
		stats.ByDivision = append(stats.ByDivision, *division)
	}
	slices.SortFunc(stats.ByDivision, func(a, b DivisionTaskStatistics) int {
		return cmp.Or(cmp.Compare(a.DivisionName, b.DivisionName), cmp.Compare(a.DivisionID, b.DivisionID))
	})
	return stats
}

func emptyStatusCounts() map[TaskStatus]int {
	counts := make(map[TaskStatus]int, len(TaskStatuses()))
	for _, status := range TaskStatuses() {
		counts[status] = 0
	}
	return counts
}

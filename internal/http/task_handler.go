package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/gov-agenda/internal/application"
)

type taskService interface {
	CreateTask(ctx context.Context, params application.CreateTaskParams) (application.Task, error)
	UpdateTask(ctx context.Context, params application.UpdateTaskParams) (application.Task, error)
	DeleteTask(ctx context.Context, principal application.Principal, taskID int64) error
	GetTask(ctx context.Context, principal application.Principal, taskID int64) (application.Task, error)
	ListTasks(ctx context.Context, params application.ListTasksParams) ([]application.Task, error)
	ChangeTaskStatus(ctx context.Context, params application.ChangeTaskStatusParams) (application.Task, error)
	AddTaskHistory(ctx context.Context, principal application.Principal, taskID int64, description string) (application.TaskHistoryEntry, error)
	TaskStatusHistory(ctx context.Context, principal application.Principal, taskID int64) ([]application.TaskStatusChange, error)
	TaskHistory(ctx context.Context, principal application.Principal, taskID int64) ([]application.TaskHistoryEntry, error)
	FollowUpTasks(ctx context.Context, principal application.Principal) ([]application.Task, error)
	TaskStatistics(ctx context.Context, principal application.Principal) (application.TaskStatistics, error)
}

// TaskHandler serves division task endpoints.
type TaskHandler struct {
	service   taskService
	loc       *time.Location
	responder responder
}

// NewTaskHandler creates a task handler. Due dates given as plain dates are
// read in loc.
func NewTaskHandler(service taskService, loc *time.Location, logger *slog.Logger) *TaskHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &TaskHandler{service: service, loc: loc, responder: newResponder(logger)}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, ok := req.toInput(h.loc)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDueDate)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	task, err := h.service.CreateTask(r.Context(), application.CreateTaskParams{Principal: principal, Input: input})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toTaskDTO(task))
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, ok := req.toInput(h.loc)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDueDate)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	task, err := h.service.UpdateTask(r.Context(), application.UpdateTaskParams{
		Principal: principal,
		TaskID:    taskID,
		Input:     input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTaskDTO(task))
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteTask(r.Context(), principal, taskID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	task, err := h.service.GetTask(r.Context(), principal, taskID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTaskDTO(task))
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query(), h.loc)
	params := application.ListTasksParams{
		DivisionID:  q.integer("division_id"),
		Status:      q.str("status"),
		ForFollowUp: q.boolean("for_followup"),
		Search:      q.str("q"),
	}
	if q.err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, q.err)
		return
	}
	params.Principal, _ = PrincipalFromContext(r.Context())

	tasks, err := h.service.ListTasks(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeCacheableJSON(w, r, listTasksResponse{Tasks: toTaskDTOs(tasks)})
}

func (h *TaskHandler) FollowUp(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	tasks, err := h.service.FollowUpTasks(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeCacheableJSON(w, r, listTasksResponse{Tasks: toTaskDTOs(tasks)})
}

func (h *TaskHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
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
	task, err := h.service.ChangeTaskStatus(r.Context(), application.ChangeTaskStatusParams{
		Principal: principal,
		TaskID:    taskID,
		Status:    req.Status,
		Note:      req.Note,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTaskDTO(task))
}

func (h *TaskHandler) StatusHistory(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	changes, err := h.service.TaskStatusHistory(r.Context(), principal, taskID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]statusChangeDTO, 0, len(changes))
	for _, c := range changes {
		out = append(out, statusChangeDTO{
			ID:            c.ID,
			Status:        string(c.Status),
			ChangedAt:     formatTime(c.ChangedAt),
			ChangedBy:     c.ChangedBy,
			ChangedByRole: c.ChangedByRole.String(),
			Note:          c.Note,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, statusHistoryResponse{TaskID: taskID, Changes: out})
}

func (h *TaskHandler) History(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	entries, err := h.service.TaskHistory(r.Context(), principal, taskID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]historyEntryDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toHistoryEntryDTO(entry))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, historyResponse{TaskID: taskID, Entries: out})
}

func (h *TaskHandler) AddHistory(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	var req historyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	entry, err := h.service.AddTaskHistory(r.Context(), principal, taskID, req.Description)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toHistoryEntryDTO(entry))
}

func (h *TaskHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	stats, err := h.service.TaskStatistics(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := statisticsDTO{
		Total:      stats.Total,
		ByStatus:   statusCounts(stats.ByStatus),
		ByDivision: make([]divisionStatisticsDTO, 0, len(stats.ByDivision)),
	}
	for _, d := range stats.ByDivision {
		out.ByDivision = append(out.ByDivision, divisionStatisticsDTO{
			DivisionID:   d.DivisionID,
			DivisionName: d.DivisionName,
			Total:        d.Total,
			ByStatus:     statusCounts(d.ByStatus),
		})
	}
	h.responder.writeCacheableJSON(w, r, out)
}

func statusCounts(counts map[application.TaskStatus]int) map[string]int {
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out
}

type taskRequest struct {
	Name                     string `json:"name"`
	Description              string `json:"description"`
	DueDate                  string `json:"due_date"`
	Priority                 string `json:"priority"`
	DivisionID               int64  `json:"division_id"`
	AssignedToDivisionHeadID *int64 `json:"assigned_to_division_head_id"`
	AssignedTo               string `json:"assigned_to"`
	ForFollowUp              bool   `json:"for_followup"`
}

// toInput converts the request. The due date accepts a plain date or an
// RFC 3339 timestamp; ok is false when it is neither.
func (r taskRequest) toInput(loc *time.Location) (application.TaskInput, bool) {
	input := application.TaskInput{
		Name:                     r.Name,
		Description:              r.Description,
		Priority:                 r.Priority,
		DivisionID:               r.DivisionID,
		AssignedToDivisionHeadID: r.AssignedToDivisionHeadID,
		AssignedTo:               r.AssignedTo,
		ForFollowUp:              r.ForFollowUp,
	}

	raw := strings.TrimSpace(r.DueDate)
	if raw == "" {
		return input, true
	}
	if due, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		input.DueDate = due
		return input, true
	}
	due := parseTime(raw)
	if due.IsZero() {
		return input, false
	}
	input.DueDate = due
	return input, true
}

type historyRequest struct {
	Description string `json:"description"`
}

type taskDTO struct {
	ID                       int64   `json:"id"`
	Name                     string  `json:"name"`
	Description              string  `json:"description,omitempty"`
	DueDate                  string  `json:"due_date,omitempty"`
	FinishedAt               *string `json:"finished_at,omitempty"`
	Status                   string  `json:"status"`
	Priority                 string  `json:"priority"`
	DivisionID               int64   `json:"division_id"`
	DivisionName             string  `json:"division_name,omitempty"`
	CreatedBy                int64   `json:"created_by"`
	AssignedToDivisionHeadID *int64  `json:"assigned_to_division_head_id,omitempty"`
	AssignedTo               string  `json:"assigned_to,omitempty"`
	ForFollowUp              bool    `json:"for_followup"`
	CreatedAt                string  `json:"created_at,omitempty"`
	UpdatedAt                string  `json:"updated_at,omitempty"`
}

func toTaskDTO(task application.Task) taskDTO {
	return taskDTO{
		ID:                       task.ID,
		Name:                     task.Name,
		Description:              task.Description,
		DueDate:                  formatTime(task.DueDate),
		FinishedAt:               formatTimePtr(task.FinishedAt),
		Status:                   string(task.Status),
		Priority:                 string(task.Priority),
		DivisionID:               task.DivisionID,
		DivisionName:             task.DivisionName,
		CreatedBy:                task.CreatedBy,
		AssignedToDivisionHeadID: task.AssignedToDivisionHeadID,
		AssignedTo:               task.AssignedTo,
		ForFollowUp:              task.ForFollowUp,
		CreatedAt:                formatTime(task.CreatedAt),
		UpdatedAt:                formatTime(task.UpdatedAt),
	}
}

func toTaskDTOs(tasks []application.Task) []taskDTO {
	out := make([]taskDTO, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, toTaskDTO(task))
	}
	return out
}

type listTasksResponse struct {
	Tasks []taskDTO `json:"tasks"`
}

type statusChangeDTO struct {
	ID            int64  `json:"id"`
	Status        string `json:"status"`
	ChangedAt     string `json:"changed_at"`
	ChangedBy     int64  `json:"changed_by"`
	ChangedByRole string `json:"changed_by_role"`
	Note          string `json:"note,omitempty"`
}

type statusHistoryResponse struct {
	TaskID  int64             `json:"task_id"`
	Changes []statusChangeDTO `json:"changes"`
}

type historyEntryDTO struct {
	ID            int64  `json:"id"`
	Description   string `json:"description"`
	ChangedAt     string `json:"changed_at"`
	ChangedBy     int64  `json:"changed_by"`
	ChangedByRole string `json:"changed_by_role"`
}

func toHistoryEntryDTO(entry application.TaskHistoryEntry) historyEntryDTO {
	return historyEntryDTO{
		ID:            entry.ID,
		Description:   entry.Description,
		ChangedAt:     formatTime(entry.ChangedAt),
		ChangedBy:     entry.ChangedBy,
		ChangedByRole: entry.ChangedByRole.String(),
	}
}

type historyResponse struct {
	TaskID  int64             `json:"task_id"`
	Entries []historyEntryDTO `json:"entries"`
}

type divisionStatisticsDTO struct {
	DivisionID   int64          `json:"division_id"`
	DivisionName string         `json:"division_name"`
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"by_status"`
}

type statisticsDTO struct {
	Total      int                     `json:"total"`
	ByStatus   map[string]int          `json:"by_status"`
	ByDivision []divisionStatisticsDTO `json:"by_division"`
}

package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/gov-agenda/internal/persistence"
)

// TaskRepository implements persistence.TaskRepository using SQLite.
type TaskRepository struct {
	pool *ConnectionPool
	now  func() time.Time
}

// NewTaskRepository creates a new SQLite task repository.
func NewTaskRepository(pool *ConnectionPool, now func() time.Time) *TaskRepository {
	return &TaskRepository{pool: pool, now: now}
}

const taskSelect = `
	SELECT t.id, t.name, t.description, t.due_date, t.finished_at, t.status, t.priority,
	       t.division_id, d.name, t.created_by, t.assigned_to_division_head_id, t.assigned_to,
	       t.for_followup, t.created_at, t.updated_at
	FROM tasks t
	JOIN divisions d ON d.id = t.division_id`

// CreateTask inserts a task and returns it with the division name resolved.
func (r *TaskRepository) CreateTask(ctx context.Context, task persistence.Task) (persistence.Task, error) {
	now := r.now()
	task.CreatedAt = now
	task.UpdatedAt = now

	var id int64
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (name, description, due_date, finished_at, status, priority, division_id, created_by,
			                   assigned_to_division_head_id, assigned_to, for_followup, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			task.Name,
			nullString(task.Description),
			formatTime(task.DueDate),
			nullTime(task.FinishedAt),
			task.Status,
			task.Priority,
			task.DivisionID,
			task.CreatedBy,
			nullInt64(task.AssignedToDivisionHeadID),
			nullString(task.AssignedTo),
			task.ForFollowUp,
			formatTime(task.CreatedAt),
			formatTime(task.UpdatedAt),
		)
		if err != nil {
			return mapError(err)
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return persistence.Task{}, err
	}
	return r.GetTask(ctx, id)
}

// UpdateTask replaces the mutable fields of a task. Status changes go through ChangeTaskStatus.
func (r *TaskRepository) UpdateTask(ctx context.Context, task persistence.Task) (persistence.Task, error) {
	task.UpdatedAt = r.now()
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE tasks
			SET name = ?, description = ?, due_date = ?, priority = ?, division_id = ?,
			    assigned_to_division_head_id = ?, assigned_to = ?, for_followup = ?, updated_at = ?
			WHERE id = ?`,
			task.Name,
			nullString(task.Description),
			formatTime(task.DueDate),
			task.Priority,
			task.DivisionID,
			nullInt64(task.AssignedToDivisionHeadID),
			nullString(task.AssignedTo),
			task.ForFollowUp,
			formatTime(task.UpdatedAt),
			task.ID,
		)
		if err != nil {
			return mapError(err)
		}
		return requireAffected(result)
	})
	if err != nil {
		return persistence.Task{}, err
	}
	return r.GetTask(ctx, task.ID)
}

// GetTask loads one task.
func (r *TaskRepository) GetTask(ctx context.Context, id int64) (persistence.Task, error) {
	task, err := scanTask(r.pool.DB().QueryRowContext(ctx, taskSelect+` WHERE t.id = ?`, id))
	if err != nil {
		return persistence.Task{}, mapError(err)
	}
	return task, nil
}

// ListTasks returns tasks matching filter ordered by due date then ID.
func (r *TaskRepository) ListTasks(ctx context.Context, filter persistence.TaskFilter) ([]persistence.Task, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.DivisionID != nil {
		clauses = append(clauses, "t.division_id = ?")
		args = append(args, *filter.DivisionID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "t.status = ?")
		args = append(args, filter.Status)
	}
	if filter.ForFollowUp != nil {
		clauses = append(clauses, "t.for_followup = ?")
		args = append(args, *filter.ForFollowUp)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		clauses = append(clauses, "(t.name LIKE ? OR COALESCE(t.description, '') LIKE ?)")
		pattern := "%" + s + "%"
		args = append(args, pattern, pattern)
	}

	query := taskSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY t.due_date ASC, t.id ASC"

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	tasks := make([]persistence.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, mapError(err)
		}
		tasks = append(tasks, task)
	}
	return tasks, mapError(rows.Err())
}

// DeleteTask removes a task together with its history.
func (r *TaskRepository) DeleteTask(ctx context.Context, id int64) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM task_status_changes WHERE task_id = ?`,
			`DELETE FROM task_history WHERE task_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return mapError(err)
			}
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
		if err != nil {
			return mapError(err)
		}
		return requireAffected(result)
	})
}

// ChangeTaskStatus writes the new status and finished_at of task and appends
// change to the status history atomically.
func (r *TaskRepository) ChangeTaskStatus(ctx context.Context, task persistence.Task, change persistence.TaskStatusChange) (persistence.Task, error) {
	task.UpdatedAt = r.now()
	if change.ChangedAt.IsZero() {
		change.ChangedAt = task.UpdatedAt
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status = ?, finished_at = ?, updated_at = ? WHERE id = ?`,
			task.Status, nullTime(task.FinishedAt), formatTime(task.UpdatedAt), task.ID,
		)
		if err != nil {
			return mapError(err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_status_changes (task_id, status, changed_at, changed_by, changed_by_role, note)
			VALUES (?, ?, ?, ?, ?, ?)`,
			task.ID, change.Status, formatTime(change.ChangedAt), change.ChangedBy, change.ChangedByRole, nullString(change.Note),
		)
		return mapError(err)
	})
	if err != nil {
		return persistence.Task{}, err
	}
	return r.GetTask(ctx, task.ID)
}

// ListTaskStatusChanges returns the status history of a task, oldest first.
func (r *TaskRepository) ListTaskStatusChanges(ctx context.Context, taskID int64) ([]persistence.TaskStatusChange, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, task_id, status, changed_at, changed_by, changed_by_role, note
		FROM task_status_changes
		WHERE task_id = ?
		ORDER BY changed_at ASC, id ASC`, taskID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	changes := make([]persistence.TaskStatusChange, 0)
	for rows.Next() {
		var (
			c         persistence.TaskStatusChange
			changedAt string
			note      sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Status, &changedAt, &c.ChangedBy, &c.ChangedByRole, &note); err != nil {
			return nil, mapError(err)
		}
		if c.ChangedAt, err = parseTime("task_status_changes.changed_at", changedAt); err != nil {
			return nil, err
		}
		c.Note = stringPtr(note)
		changes = append(changes, c)
	}
	return changes, mapError(rows.Err())
}

// AddTaskHistory appends a free-form history entry to an existing task.
func (r *TaskRepository) AddTaskHistory(ctx context.Context, entry persistence.TaskHistoryEntry) (persistence.TaskHistoryEntry, error) {
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = r.now()
	}
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, entry.TaskID).Scan(&exists); err != nil {
			return mapError(err)
		}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO task_history (task_id, description, changed_at, changed_by, changed_by_role)
			VALUES (?, ?, ?, ?, ?)`,
			entry.TaskID, entry.Description, formatTime(entry.ChangedAt), entry.ChangedBy, entry.ChangedByRole,
		)
		if err != nil {
			return mapError(err)
		}
		entry.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return persistence.TaskHistoryEntry{}, err
	}
	return entry, nil
}

// ListTaskHistory returns the free-form history of a task, oldest first.
func (r *TaskRepository) ListTaskHistory(ctx context.Context, taskID int64) ([]persistence.TaskHistoryEntry, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, task_id, description, changed_at, changed_by, changed_by_role
		FROM task_history
		WHERE task_id = ?
		ORDER BY changed_at ASC, id ASC`, taskID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	entries := make([]persistence.TaskHistoryEntry, 0)
	for rows.Next() {
		var (
			e         persistence.TaskHistoryEntry
			changedAt string
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Description, &changedAt, &e.ChangedBy, &e.ChangedByRole); err != nil {
			return nil, mapError(err)
		}
		if e.ChangedAt, err = parseTime("task_history.changed_at", changedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, mapError(rows.Err())
}

// CountTasksByStatus groups task counts by division and status.
func (r *TaskRepository) CountTasksByStatus(ctx context.Context) ([]persistence.TaskStatusCount, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT t.division_id, d.name, t.status, COUNT(*)
		FROM tasks t
		JOIN divisions d ON d.id = t.division_id
		GROUP BY t.division_id, d.name, t.status
		ORDER BY d.name ASC, t.status ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	counts := make([]persistence.TaskStatusCount, 0)
	for rows.Next() {
		var c persistence.TaskStatusCount
		if err := rows.Scan(&c.DivisionID, &c.DivisionName, &c.Status, &c.Count); err != nil {
			return nil, mapError(err)
		}
		counts = append(counts, c)
	}
	return counts, mapError(rows.Err())
}

func scanTask(row rowScanner) (persistence.Task, error) {
	var (
		task                 persistence.Task
		description          sql.NullString
		assignedTo           sql.NullString
		finishedAt           sql.NullString
		assignedHead         sql.NullInt64
		dueDate              string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&task.ID,
		&task.Name,
		&description,
		&dueDate,
		&finishedAt,
		&task.Status,
		&task.Priority,
		&task.DivisionID,
		&task.DivisionName,
		&task.CreatedBy,
		&assignedHead,
		&assignedTo,
		&task.ForFollowUp,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Task{}, err
	}

	task.Description = stringPtr(description)
	task.AssignedTo = stringPtr(assignedTo)
	task.AssignedToDivisionHeadID = int64Ptr(assignedHead)

	var err error
	if task.DueDate, err = parseTime("due_date", dueDate); err != nil {
		return persistence.Task{}, err
	}
	if finishedAt.Valid {
		finished, err := parseTime("finished_at", finishedAt.String)
		if err != nil {
			return persistence.Task{}, err
		}
		task.FinishedAt = &finished
	}
	if task.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Task{}, err
	}
	if task.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Task{}, err
	}
	return task, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

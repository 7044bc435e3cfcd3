package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/gov-agenda/internal/persistence"
)

// EventRepository implements persistence.EventRepository using SQLite.
type EventRepository struct {
	pool *ConnectionPool
	now  func() time.Time
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(pool *ConnectionPool, now func() time.Time) *EventRepository {
	return &EventRepository{pool: pool, now: now}
}

const eventColumns = `id, title, description, location, start_time, end_time, kind, status, governor_id, created_by, created_at, updated_at`

// CreateEvent inserts the event and returns it with its assigned ID and timestamps.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	if !event.End.After(event.Start) {
		return persistence.Event{}, persistence.ErrConstraintViolation
	}
	now := r.now()
	event.CreatedAt = now
	event.UpdatedAt = now

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO events (title, description, location, start_time, end_time, kind, status, governor_id, created_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			event.Title,
			nullString(event.Description),
			nullString(event.Location),
			formatTime(event.Start),
			formatTime(event.End),
			event.Kind,
			event.Status,
			event.GovernorID,
			event.CreatedBy,
			formatTime(event.CreatedAt),
			formatTime(event.UpdatedAt),
		)
		if err != nil {
			return mapError(err)
		}
		event.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return persistence.Event{}, err
	}
	event.Notes = []persistence.EventNote{}
	return event, nil
}

// UpdateEvent replaces the mutable fields of an existing event.
// Notes and the creation metadata are left untouched.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	if !event.End.After(event.Start) {
		return persistence.Event{}, persistence.ErrConstraintViolation
	}
	event.UpdatedAt = r.now()

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE events
			SET title = ?, description = ?, location = ?, start_time = ?, end_time = ?, kind = ?, status = ?, governor_id = ?, updated_at = ?
			WHERE id = ?`,
			event.Title,
			nullString(event.Description),
			nullString(event.Location),
			formatTime(event.Start),
			formatTime(event.End),
			event.Kind,
			event.Status,
			event.GovernorID,
			formatTime(event.UpdatedAt),
			event.ID,
		)
		if err != nil {
			return mapError(err)
		}
		return requireAffected(result)
	})
	if err != nil {
		return persistence.Event{}, err
	}
	return r.GetEvent(ctx, event.ID)
}

// GetEvent loads one event with its notes.
func (r *EventRepository) GetEvent(ctx context.Context, id int64) (persistence.Event, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	event, err := scanEvent(row)
	if err != nil {
		return persistence.Event{}, mapError(err)
	}

	notes, err := r.loadNotes(ctx, []int64{id})
	if err != nil {
		return persistence.Event{}, err
	}
	event.Notes = notes[id]
	if event.Notes == nil {
		event.Notes = []persistence.EventNote{}
	}
	return event, nil
}

// ListEvents returns events matching filter ordered by start time then ID.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.From != nil {
		clauses = append(clauses, "end_time > ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		clauses = append(clauses, "start_time < ?")
		args = append(args, formatTime(*filter.To))
	}
	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.GovernorID != nil {
		clauses = append(clauses, "governor_id = ?")
		args = append(args, *filter.GovernorID)
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY start_time ASC, id ASC"

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	events := make([]persistence.Event, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
		ids = append(ids, event.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	notes, err := r.loadNotes(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Notes = notes[events[i].ID]
		if events[i].Notes == nil {
			events[i].Notes = []persistence.EventNote{}
		}
	}
	return events, nil
}

// DeleteEvent removes an event; its notes are removed by cascade.
func (r *EventRepository) DeleteEvent(ctx context.Context, id int64) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM event_notes WHERE event_id = ?`, id); err != nil {
			return mapError(err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
		if err != nil {
			return mapError(err)
		}
		return requireAffected(result)
	})
}

// AddEventNote appends a note to an existing event.
func (r *EventRepository) AddEventNote(ctx context.Context, note persistence.EventNote) (persistence.EventNote, error) {
	note.CreatedAt = r.now()
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, note.EventID).Scan(&exists); err != nil {
			return mapError(err)
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO event_notes (event_id, content, created_by, created_at) VALUES (?, ?, ?, ?)`,
			note.EventID, note.Content, note.CreatedBy, formatTime(note.CreatedAt),
		)
		if err != nil {
			return mapError(err)
		}
		note.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return persistence.EventNote{}, err
	}
	return note, nil
}

func (r *EventRepository) loadNotes(ctx context.Context, eventIDs []int64) (map[int64][]persistence.EventNote, error) {
	out := make(map[int64][]persistence.EventNote, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(eventIDs)), ",")
	args := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		args[i] = id
	}

	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, event_id, content, created_by, created_at
		FROM event_notes
		WHERE event_id IN (`+placeholders+`)
		ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			note      persistence.EventNote
			createdAt string
		)
		if err := rows.Scan(&note.ID, &note.EventID, &note.Content, &note.CreatedBy, &createdAt); err != nil {
			return nil, mapError(err)
		}
		if note.CreatedAt, err = parseTime("event_notes.created_at", createdAt); err != nil {
			return nil, err
		}
		out[note.EventID] = append(out[note.EventID], note)
	}
	return out, mapError(rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event                 persistence.Event
		description, location sql.NullString
		startTime, endTime    string
		created, updated      string
	)
	if err := row.Scan(
		&event.ID,
		&event.Title,
		&description,
		&location,
		&startTime,
		&endTime,
		&event.Kind,
		&event.Status,
		&event.GovernorID,
		&event.CreatedBy,
		&created,
		&updated,
	); err != nil {
		return persistence.Event{}, err
	}

	event.Description = stringPtr(description)
	event.Location = stringPtr(location)

	var err error
	if event.Start, err = parseTime("start_time", startTime); err != nil {
		return persistence.Event{}, err
	}
	if event.End, err = parseTime("end_time", endTime); err != nil {
		return persistence.Event{}, err
	}
	if event.CreatedAt, err = parseTime("created_at", created); err != nil {
		return persistence.Event{}, err
	}
	if event.UpdatedAt, err = parseTime("updated_at", updated); err != nil {
		return persistence.Event{}, err
	}
	return event, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/gov-agenda/internal/persistence"
)

// DivisionRepository implements persistence.DivisionRepository using SQLite.
type DivisionRepository struct {
	pool *ConnectionPool
	now  func() time.Time
}

// NewDivisionRepository creates a new SQLite division repository.
func NewDivisionRepository(pool *ConnectionPool, now func() time.Time) *DivisionRepository {
	return &DivisionRepository{pool: pool, now: now}
}

// CreateDivision inserts a division. Names are unique.
func (r *DivisionRepository) CreateDivision(ctx context.Context, division persistence.Division) (persistence.Division, error) {
	division.Name = strings.TrimSpace(division.Name)
	if division.Name == "" {
		return persistence.Division{}, persistence.ErrConstraintViolation
	}
	division.CreatedAt = r.now()

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO divisions (name, created_at) VALUES (?, ?)`,
			division.Name, formatTime(division.CreatedAt),
		)
		if err != nil {
			return mapError(err)
		}
		division.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return persistence.Division{}, err
	}
	return division, nil
}

// GetDivision loads a division by ID.
func (r *DivisionRepository) GetDivision(ctx context.Context, id int64) (persistence.Division, error) {
	var (
		division  persistence.Division
		createdAt string
	)
	err := r.pool.DB().QueryRowContext(ctx,
		`SELECT id, name, created_at FROM divisions WHERE id = ?`, id,
	).Scan(&division.ID, &division.Name, &createdAt)
	if err != nil {
		return persistence.Division{}, mapError(err)
	}
	if division.CreatedAt, err = parseTime("divisions.created_at", createdAt); err != nil {
		return persistence.Division{}, err
	}
	return division, nil
}

// ListDivisions returns every division ordered by name.
func (r *DivisionRepository) ListDivisions(ctx context.Context) ([]persistence.Division, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT id, name, created_at FROM divisions ORDER BY name ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	divisions := make([]persistence.Division, 0)
	for rows.Next() {
		var (
			division  persistence.Division
			createdAt string
		)
		if err := rows.Scan(&division.ID, &division.Name, &createdAt); err != nil {
			return nil, mapError(err)
		}
		if division.CreatedAt, err = parseTime("divisions.created_at", createdAt); err != nil {
			return nil, err
		}
		divisions = append(divisions, division)
	}
	return divisions, mapError(rows.Err())
}

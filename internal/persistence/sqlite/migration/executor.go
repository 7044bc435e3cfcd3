package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteExecutor applies migrations to a SQLite database.
type SQLiteExecutor struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteExecutor creates an executor bound to db.
func NewSQLiteExecutor(db *sql.DB) *SQLiteExecutor {
	return &SQLiteExecutor{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// InitializeVersionTable creates schema_migrations when missing.
func (e *SQLiteExecutor) InitializeVersionTable(ctx context.Context) error {
	const stmt = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT,
			execution_time_ms INTEGER
		)`
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return newDatabaseError("", "create schema_migrations table", err)
	}
	return nil
}

// ExecuteMigration runs every statement of migration in one transaction.
func (e *SQLiteExecutor) ExecuteMigration(ctx context.Context, migration Migration) (err error) {
	statements := splitStatements(migration.SQL)
	if len(statements) == 0 {
		return newMigrationError(migration.Version, migration.FilePath, "parse SQL",
			fmt.Errorf("%w: no SQL statements", ErrInvalidMigrationFile))
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return newDatabaseError(migration.Version, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return newDatabaseError(migration.Version, fmt.Sprintf("execute statement %d", i+1), err)
		}
	}
	if err = tx.Commit(); err != nil {
		return newDatabaseError(migration.Version, "commit transaction", err)
	}
	return nil
}

// RecordMigration stores a successful migration in schema_migrations.
func (e *SQLiteExecutor) RecordMigration(ctx context.Context, migration Migration, executionTime time.Duration) error {
	const stmt = `INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`
	_, err := e.db.ExecContext(ctx, stmt,
		migration.Version,
		e.now().Format(time.RFC3339),
		migration.Checksum,
		executionTime.Milliseconds(),
	)
	if err != nil {
		return newDatabaseError(migration.Version, "record migration", err)
	}
	return nil
}

// AppliedMigrations lists schema_migrations ordered by version.
func (e *SQLiteExecutor) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	const query = `
		SELECT version, applied_at, COALESCE(execution_time_ms, 0), COALESCE(checksum, '')
		FROM schema_migrations
		ORDER BY CAST(version AS INTEGER) ASC`
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, newDatabaseError("", "list applied migrations", err)
	}
	defer rows.Close()

	applied := make([]AppliedMigration, 0)
	for rows.Next() {
		var (
			a           AppliedMigration
			appliedAt   string
			executionMs int64
		)
		if err := rows.Scan(&a.Version, &appliedAt, &executionMs, &a.Checksum); err != nil {
			return nil, newDatabaseError("", "scan applied migration", err)
		}
		if a.AppliedAt, err = time.Parse(time.RFC3339, appliedAt); err != nil {
			return nil, newDatabaseError(a.Version, "parse applied_at", err)
		}
		a.ExecutionTime = time.Duration(executionMs) * time.Millisecond
		applied = append(applied, a)
	}
	if err := rows.Err(); err != nil {
		return nil, newDatabaseError("", "iterate applied migrations", err)
	}
	return applied, nil
}

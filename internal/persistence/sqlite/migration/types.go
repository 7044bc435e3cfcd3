package migration

import (
	"context"
	"time"
)

// Migration is a single versioned schema change.
type Migration struct {
	Version     string // numeric version, e.g. "001"
	Description string
	SQL         string
	FilePath    string
	Checksum    string
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status summarises the migration state of a database.
type Status struct {
	CurrentVersion string
	Applied        []AppliedMigration
	Pending        []Migration
}

// Scanner discovers migration files.
type Scanner interface {
	ScanMigrations() ([]Migration, error)
}

// Executor applies migrations and tracks applied versions.
type Executor interface {
	InitializeVersionTable(ctx context.Context) error
	ExecuteMigration(ctx context.Context, migration Migration) error
	RecordMigration(ctx context.Context, migration Migration, executionTime time.Duration) error
	AppliedMigrations(ctx context.Context) ([]AppliedMigration, error)
}

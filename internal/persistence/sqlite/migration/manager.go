package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Manager applies pending migrations in version order.
type Manager struct {
	scanner  Scanner
	executor Executor
	logger   *slog.Logger
}

// NewManager wires a scanner and executor together.
func NewManager(scanner Scanner, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{scanner: scanner, executor: executor, logger: logger.With("component", "migration")}
}

// RunMigrations executes every pending migration and records it.
// It stops at the first failure; earlier migrations stay applied.
func (m *Manager) RunMigrations(ctx context.Context) error {
	start := time.Now()

	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	if len(status.Pending) == 0 {
		m.logger.InfoContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations",
		"current_version", status.CurrentVersion,
		"pending", len(status.Pending),
	)

	for _, migration := range status.Pending {
		stepStart := time.Now()
		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				"version", migration.Version,
				"file", migration.FilePath,
				"error", err,
			)
			return newMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}

		elapsed := time.Since(stepStart)
		if err := m.executor.RecordMigration(ctx, migration, elapsed); err != nil {
			return newMigrationError(migration.Version, migration.FilePath, "record migration", err)
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	m.logger.InfoContext(ctx, "migrations complete",
		"applied", len(status.Pending),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Status reports the applied and pending migrations. It verifies that the
// file sequence has no gaps, that every applied version still has a file and
// that applied files were not edited since.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("initialize version table: %w", err)
	}

	available, err := m.scanner.ScanMigrations()
	if err != nil {
		return nil, fmt.Errorf("scan migrations: %w", err)
	}
	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}

	if err := validateSequence(available, applied); err != nil {
		return nil, err
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, a := range applied {
		v, _ := strconv.Atoi(a.Version)
		appliedByVersion[v] = a
	}

	status := &Status{Applied: applied, Pending: make([]Migration, 0)}
	for _, migration := range available {
		v, _ := strconv.Atoi(migration.Version)
		if _, done := appliedByVersion[v]; !done {
			status.Pending = append(status.Pending, migration)
		}
	}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	return status, nil
}

func validateSequence(available []Migration, applied []AppliedMigration) error {
	files := make(map[int]Migration, len(available))
	for i, migration := range available {
		v, err := strconv.Atoi(migration.Version)
		if err != nil {
			return newMigrationError(migration.Version, migration.FilePath, "validate sequence",
				fmt.Errorf("%w: version is not numeric", ErrInvalidMigrationFile))
		}
		if i > 0 {
			prev, _ := strconv.Atoi(available[i-1].Version)
			if v != prev+1 {
				return fmt.Errorf("%w: missing migration version %03d", ErrVersionConflict, prev+1)
			}
		}
		files[v] = migration
	}

	for _, a := range applied {
		v, err := strconv.Atoi(a.Version)
		if err != nil {
			return fmt.Errorf("%w: applied version %q is not numeric", ErrVersionConflict, a.Version)
		}
		file, ok := files[v]
		if !ok {
			return fmt.Errorf("%w: applied migration %03d has no file", ErrVersionConflict, v)
		}
		if a.Checksum != "" && file.Checksum != a.Checksum {
			return newMigrationError(file.Version, file.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}

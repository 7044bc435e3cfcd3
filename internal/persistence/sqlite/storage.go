package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/gov-agenda/internal/persistence/sqlite/migration"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Storage bundles the SQLite repositories over one connection pool.
// It satisfies every repository interface of the persistence package.
type Storage struct {
	*EventRepository
	*DivisionRepository
	*TaskRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

// Option customises a Storage opened by Open.
type Option func(*storageOptions)

type storageOptions struct {
	now func() time.Time
}

// WithClock replaces the time source used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(o *storageOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// Open connects to the database at dsn. Call Migrate before first use.
func Open(ctx context.Context, dsn string, logger *slog.Logger, opts ...Option) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	options := storageOptions{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&options)
	}

	pool, err := NewConnectionPool(ctx, PoolOptions{
		DSN: dsn,
		// SQLite allows a single writer; one connection avoids SQLITE_BUSY between
		// our own goroutines and keeps per-connection pragmas in effect.
		MaxOpenConns: 1,
	})
	if err != nil {
		return nil, err
	}
	return newStorage(pool, options.now, logger), nil
}

func newStorage(pool *ConnectionPool, now func() time.Time, logger *slog.Logger) *Storage {
	return &Storage{
		EventRepository:    NewEventRepository(pool, now),
		DivisionRepository: NewDivisionRepository(pool, now),
		TaskRepository:     NewTaskRepository(pool, now),
		pool:               pool,
		logger:             logger,
	}
}

// DB exposes the underlying handle for health checks and tests.
func (s *Storage) DB() *sql.DB {
	return s.pool.DB()
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := s.migrationManager().RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending schema migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (*migration.Status, error) {
	return s.migrationManager().Status(ctx)
}

func (s *Storage) migrationManager() *migration.Manager {
	return migration.NewManager(
		migration.NewScanner(schemaFS, "schema"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
}

const timeLayout = time.RFC3339

// formatTime stores instants as UTC RFC 3339 text so lexical order matches time order.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(column, value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse %s: %w", column, err)
	}
	return t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

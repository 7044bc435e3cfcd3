package testfixtures

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/gov-agenda/internal/persistence"
	"github.com/example/gov-agenda/internal/persistence/sqlite"
)

// SQLiteHarness exposes the repositories of a migrated SQLite database stored
// in a temporary directory.
type SQLiteHarness struct {
	Storage   *sqlite.Storage
	Events    persistence.EventRepository
	Divisions persistence.DivisionRepository
	Tasks     persistence.TaskRepository
	Clock     *Clock

	cleanup func()
}

// Close releases the database. It is also registered with tb.Cleanup.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a fresh database. Row timestamps come
// from a clock that starts at ReferenceTime and ticks one second per write.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "govagenda.db")
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	clock := NewSteppingClock(ReferenceTime(), time.Second)

	ctx := context.Background()
	storage, err := sqlite.Open(ctx, dsn, slog.New(slog.DiscardHandler), sqlite.WithClock(clock.NowFunc()))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:   storage,
		Events:    storage,
		Divisions: storage,
		Tasks:     storage,
		Clock:     clock,
		cleanup: func() {
			_ = storage.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

// MustDivision stores a division and fails the test on error.
func (h *SQLiteHarness) MustDivision(tb testing.TB, name string) persistence.Division {
	tb.Helper()
	division, err := h.Divisions.CreateDivision(context.Background(), NewDivision(name))
	if err != nil {
		tb.Fatalf("CreateDivision(%q) failed: %v", name, err)
	}
	return division
}

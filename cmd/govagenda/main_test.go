package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/gov-agenda/internal/application"
	"github.com/example/gov-agenda/internal/ical"
	"github.com/example/gov-agenda/internal/scheduler"
	"github.com/example/gov-agenda/internal/testfixtures"
)

func overlappingCalendar(t *testing.T) []byte {
	t.Helper()

	events := testfixtures.Events(
		testfixtures.NewEventFixture(
			testfixtures.WithEventTitle("Conseil"),
			testfixtures.WithEventWindow(testfixtures.At(9, 0), testfixtures.At(10, 0)),
		),
		testfixtures.NewEventFixture(
			testfixtures.WithEventTitle("Audience"),
			testfixtures.WithEventWindow(testfixtures.At(9, 30), testfixtures.At(10, 30)),
		),
		testfixtures.NewEventFixture(
			testfixtures.WithEventTitle("Inauguration"),
			testfixtures.WithEventWindow(testfixtures.At(14, 0), testfixtures.At(15, 0)),
		),
	)
	var buf bytes.Buffer
	if err := ical.Export(&buf, events, ical.ExportOptions{Now: testfixtures.ReferenceTime()}); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	return buf.Bytes()
}

func TestWriteRoles(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		var out bytes.Buffer
		if err := writeRoles(&out, "yaml"); err != nil {
			t.Fatalf("writeRoles failed: %v", err)
		}
		for _, want := range []string{"role: governor", "role: division_head", "dashboard_path:"} {
			if !strings.Contains(out.String(), want) {
				t.Fatalf("yaml output misses %q:\n%s", want, out.String())
			}
		}
	})

	t.Run("table", func(t *testing.T) {
		var out bytes.Buffer
		if err := writeRoles(&out, "table"); err != nil {
			t.Fatalf("writeRoles failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		if len(lines) < 6 || !strings.HasPrefix(lines[0], "RÔLE") {
			t.Fatalf("unexpected table:\n%s", out.String())
		}
		if !strings.Contains(out.String(), "personal_secretary") {
			t.Fatalf("table misses a role:\n%s", out.String())
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if err := writeRoles(&bytes.Buffer{}, "xml"); err == nil {
			t.Fatal("expected an error for an unknown format")
		}
	})
}

func TestCheckCalendar(t *testing.T) {
	data := overlappingCalendar(t)

	var out bytes.Buffer
	n, err := checkCalendar(&out, bytes.NewReader(data), "", time.UTC)
	if err != nil {
		t.Fatalf("checkCalendar failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one conflict, got %d:\n%s", n, out.String())
	}
	if !strings.Contains(out.String(), "3 événement(s), 1 conflit(s)") {
		t.Fatalf("unexpected summary:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "(30 min)") {
		t.Fatalf("expected the overlap length in the report:\n%s", out.String())
	}

	out.Reset()
	n, err = checkCalendar(&out, bytes.NewReader(data), "2025-03-11", time.UTC)
	if err != nil {
		t.Fatalf("checkCalendar failed: %v", err)
	}
	if n != 0 || !strings.Contains(out.String(), "0 événement(s), 0 conflit(s)") {
		t.Fatalf("expected an empty day, got %d:\n%s", n, out.String())
	}

	if _, err := checkCalendar(&out, bytes.NewReader(data), "11/03/2025", time.UTC); err == nil {
		t.Fatal("expected an error for a malformed day")
	}
}

func TestExecute(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GOVAGENDA_CONFIG", "")
	dsn := "file:" + filepath.Join(dir, "cli.db") + "?_pragma=foreign_keys(1)"

	t.Run("migrate", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if code := execute([]string{"migrate", "--db", dsn, "--log-level", "error"}, &stdout, &stderr); code != 0 {
			t.Fatalf("exit code %d, stderr: %s", code, stderr.String())
		}
		if !strings.Contains(stdout.String(), "en attente: 0") {
			t.Fatalf("unexpected migrate output:\n%s", stdout.String())
		}

		stdout.Reset()
		if code := execute([]string{"migrate", "--status", "--db", dsn, "--log-level", "error"}, &stdout, &stderr); code != 0 {
			t.Fatalf("status exit code %d, stderr: %s", code, stderr.String())
		}
		if strings.Contains(stdout.String(), "version courante: aucune") {
			t.Fatalf("expected a current version after migrating:\n%s", stdout.String())
		}
	})

	t.Run("check reports conflicts through the exit code", func(t *testing.T) {
		path := filepath.Join(dir, "agenda.ics")
		if err := os.WriteFile(path, overlappingCalendar(t), 0o600); err != nil {
			t.Fatalf("write calendar: %v", err)
		}

		var stdout, stderr bytes.Buffer
		if code := execute([]string{"check", "--ics", path, "--log-level", "error"}, &stdout, &stderr); code != 1 {
			t.Fatalf("expected exit code 1, got %d", code)
		}
		if !strings.Contains(stderr.String(), "1 conflit(s) détecté(s)") {
			t.Fatalf("unexpected stderr: %s", stderr.String())
		}

		stdout.Reset()
		stderr.Reset()
		if code := execute([]string{"check", "--ics", path, "--day", "2025-03-12", "--log-level", "error"}, &stdout, &stderr); code != 0 {
			t.Fatalf("expected exit code 0 for a free day, got %d: %s", code, stderr.String())
		}
	})

	t.Run("rejects unknown formats", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if code := execute([]string{"roles", "--format", "xml"}, &stdout, &stderr); code != 1 {
			t.Fatalf("expected exit code 1, got %d", code)
		}
		if !strings.HasPrefix(stderr.String(), "Erreur:") {
			t.Fatalf("unexpected stderr: %s", stderr.String())
		}
	})
}

func TestEventRepositoryAdapter(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewSQLiteHarness(t)
	adapter := newEventRepositoryAdapter(h.Events)

	fixture := testfixtures.NewEventFixture(
		testfixtures.WithEventDescription("Budget 2025"),
		testfixtures.WithEventKind(scheduler.KindConference),
	)
	created, err := adapter.CreateEvent(ctx, fixture.Event())
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	if created.Description != "Budget 2025" || created.Location != "" || created.Kind != scheduler.KindConference {
		t.Fatalf("unexpected round trip: %+v", created)
	}

	if _, err := adapter.AddEventNote(ctx, scheduler.Note{EventID: created.ID, Content: "Dossier transmis", CreatedBy: 2}); err != nil {
		t.Fatalf("AddEventNote failed: %v", err)
	}

	from, to := testfixtures.At(0, 0), testfixtures.At(23, 59)
	listed, err := adapter.ListEvents(ctx, application.EventFilter{From: &from, To: &to, Kind: scheduler.KindConference})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(listed) != 1 || len(listed[0].Notes) != 1 || listed[0].Notes[0].Content != "Dossier transmis" {
		t.Fatalf("unexpected listing: %+v", listed)
	}
}

func TestTaskRepositoryAdapter(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewSQLiteHarness(t)
	divisions := newDivisionRepositoryAdapter(h.Divisions)
	tasks := newTaskRepositoryAdapter(h.Tasks)

	division, err := divisions.CreateDivision(ctx, application.Division{Name: "Culture"})
	if err != nil {
		t.Fatalf("CreateDivision failed: %v", err)
	}

	created, err := tasks.CreateTask(ctx, application.Task{
		Name:       "Festival régional",
		DueDate:    testfixtures.ReferenceTime().AddDate(0, 0, 7),
		Status:     application.TaskPending,
		Priority:   application.TaskPriority("high"),
		DivisionID: division.ID,
		CreatedBy:  2,
	})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if created.DivisionName != "Culture" || created.Description != "" || created.AssignedTo != "" {
		t.Fatalf("unexpected round trip: %+v", created)
	}

	stored, err := h.Tasks.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if stored.Description != nil || stored.AssignedTo != nil {
		t.Fatalf("empty strings must be stored as NULL: %+v", stored)
	}

	if _, err := tasks.AddTaskHistory(ctx, application.TaskHistoryEntry{TaskID: created.ID, Description: "Lieu réservé", ChangedBy: 2, ChangedByRole: "secretary_general"}); err != nil {
		t.Fatalf("AddTaskHistory failed: %v", err)
	}
	entries, err := tasks.ListTaskHistory(ctx, created.ID)
	if err != nil {
		t.Fatalf("ListTaskHistory failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Description != "Lieu réservé" {
		t.Fatalf("unexpected history: %+v", entries)
	}
}

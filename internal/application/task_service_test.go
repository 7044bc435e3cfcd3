package application

import (
	"context"
	"errors"
	"testing"

	"github.com/example/gov-agenda/internal/authz"
)

var (
	finance = Division{ID: 1, Name: "Finances"}
	roads   = Division{ID: 2, Name: "Routes"}
)

func newTestTaskService(tasks *memoryTasks) *TaskService {
	return NewTaskService(tasks, newDivisionStub(finance, roads), fixedNow, nil)
}

func storedTask(id, divisionID int64, name string) Task {
	return Task{
		ID:         id,
		Name:       name,
		DueDate:    fixedNow().AddDate(0, 0, 7),
		Status:     TaskPending,
		Priority:   PriorityMedium,
		DivisionID: divisionID,
		CreatedBy:  2,
	}
}

func taskInput(divisionID int64) TaskInput {
	return TaskInput{Name: "Budget 2026", DueDate: fixedNow().AddDate(0, 1, 0), DivisionID: divisionID}
}

func TestTaskService_CreateTask(t *testing.T) {
	t.Run("personal secretary creates in any division", func(t *testing.T) {
		svc := newTestTaskService(newMemoryTasks())

		task, err := svc.CreateTask(context.Background(), CreateTaskParams{Principal: secretary, Input: taskInput(2)})
		if err != nil {
			t.Fatalf("CreateTask returned error: %v", err)
		}
		if task.ID == 0 || task.Status != TaskPending || task.Priority != PriorityMedium {
			t.Fatalf("unexpected task: %+v", task)
		}
		if task.CreatedBy != secretary.UserID || !task.CreatedAt.Equal(fixedNow()) {
			t.Fatalf("unexpected metadata: %+v", task)
		}
	})

	t.Run("division head creates only in own division", func(t *testing.T) {
		svc := newTestTaskService(newMemoryTasks())

		if _, err := svc.CreateTask(context.Background(), CreateTaskParams{Principal: divisionHead(5, 1), Input: taskInput(1)}); err != nil {
			t.Fatalf("expected own division to be allowed, got %v", err)
		}
		if _, err := svc.CreateTask(context.Background(), CreateTaskParams{Principal: divisionHead(5, 1), Input: taskInput(2)}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized for other division, got %v", err)
		}
	})

	t.Run("governor cannot create", func(t *testing.T) {
		svc := newTestTaskService(newMemoryTasks())

		if _, err := svc.CreateTask(context.Background(), CreateTaskParams{Principal: governor, Input: taskInput(1)}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("validates fields and division", func(t *testing.T) {
		svc := newTestTaskService(newMemoryTasks())

		_, err := svc.CreateTask(context.Background(), CreateTaskParams{Principal: admin, Input: TaskInput{DivisionID: 1, Priority: "urgent"}})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		for _, field := range []string{"name", "due_date", "priority"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}

		_, err = svc.CreateTask(context.Background(), CreateTaskParams{Principal: admin, Input: taskInput(99)})
		if !errors.As(err, &vErr) || vErr.FieldErrors["division_id"] != "division inconnue" {
			t.Fatalf("expected unknown division error, got %v", err)
		}
	})
}

func TestTaskService_UpdateTask(t *testing.T) {
	tasks := newMemoryTasks(storedTask(1, 1, "Budget"), storedTask(2, 2, "Voirie"))
	svc := newTestTaskService(tasks)
	head := divisionHead(5, 1)
	ctx := context.Background()

	updated, err := svc.UpdateTask(ctx, UpdateTaskParams{Principal: head, TaskID: 1, Input: taskInput(1)})
	if err != nil {
		t.Fatalf("UpdateTask returned error: %v", err)
	}
	if updated.Name != "Budget 2026" || updated.Status != TaskPending {
		t.Fatalf("unexpected task: %+v", updated)
	}

	if _, err := svc.UpdateTask(ctx, UpdateTaskParams{Principal: head, TaskID: 2, Input: taskInput(2)}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected other division update to be refused, got %v", err)
	}
	if _, err := svc.UpdateTask(ctx, UpdateTaskParams{Principal: head, TaskID: 1, Input: taskInput(2)}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected move to other division to be refused, got %v", err)
	}
	if _, err := svc.UpdateTask(ctx, UpdateTaskParams{Principal: head, TaskID: 42, Input: taskInput(1)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTaskService_ListTasks(t *testing.T) {
	tasks := newMemoryTasks(storedTask(1, 1, "Budget"), storedTask(2, 2, "Voirie"), storedTask(3, 1, "Audit"))
	svc := newTestTaskService(tasks)
	ctx := context.Background()

	all, err := svc.ListTasks(ctx, ListTasksParams{Principal: governor})
	if err != nil || len(all) != 3 {
		t.Fatalf("expected governor to see 3 tasks, got %d (%v)", len(all), err)
	}

	own, err := svc.ListTasks(ctx, ListTasksParams{Principal: divisionHead(5, 1)})
	if err != nil || len(own) != 2 {
		t.Fatalf("expected division head to see 2 tasks, got %d (%v)", len(own), err)
	}

	other := int64(2)
	if _, err := svc.ListTasks(ctx, ListTasksParams{Principal: divisionHead(5, 1), DivisionID: &other}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected other division listing to be refused, got %v", err)
	}

	if _, err := svc.ListTasks(ctx, ListTasksParams{Principal: Principal{Role: authz.RoleDivisionHead}}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected division head without division to be refused, got %v", err)
	}

	if _, err := svc.ListTasks(ctx, ListTasksParams{Principal: governor, Status: "archived"}); err == nil {
		t.Fatalf("expected unknown status to be rejected")
	}

	found, err := svc.ListTasks(ctx, ListTasksParams{Principal: governor, Search: "aud"})
	if err != nil || len(found) != 1 || found[0].ID != 3 {
		t.Fatalf("expected search to find task 3, got %+v (%v)", found, err)
	}
}

func TestTaskService_ChangeTaskStatus(t *testing.T) {
	tasks := newMemoryTasks(storedTask(1, 1, "Budget"))
	svc := newTestTaskService(tasks)
	head := divisionHead(5, 1)
	ctx := context.Background()

	done, err := svc.ChangeTaskStatus(ctx, ChangeTaskStatusParams{Principal: head, TaskID: 1, Status: "done", Note: " validé "})
	if err != nil {
		t.Fatalf("ChangeTaskStatus returned error: %v", err)
	}
	if done.Status != TaskDone || done.FinishedAt == nil || !done.FinishedAt.Equal(fixedNow()) {
		t.Fatalf("expected done task with finish time, got %+v", done)
	}

	reopened, err := svc.ChangeTaskStatus(ctx, ChangeTaskStatusParams{Principal: head, TaskID: 1, Status: "in_progress"})
	if err != nil {
		t.Fatalf("ChangeTaskStatus returned error: %v", err)
	}
	if reopened.FinishedAt != nil {
		t.Fatalf("expected finish time to be cleared, got %v", reopened.FinishedAt)
	}

	history, err := svc.TaskStatusHistory(ctx, governor, 1)
	if err != nil {
		t.Fatalf("TaskStatusHistory returned error: %v", err)
	}
	if len(history) != 2 || history[0].Status != TaskDone || history[0].Note != "validé" || history[0].ChangedByRole != authz.RoleDivisionHead {
		t.Fatalf("unexpected history: %+v", history)
	}

	if _, err := svc.ChangeTaskStatus(ctx, ChangeTaskStatusParams{Principal: head, TaskID: 1, Status: "archived"}); err == nil {
		t.Fatalf("expected unknown status to be rejected")
	}
	if _, err := svc.ChangeTaskStatus(ctx, ChangeTaskStatusParams{Principal: governor, TaskID: 1, Status: "done"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected governor to be refused, got %v", err)
	}
}

func TestTaskService_HistoryAndDelete(t *testing.T) {
	tasks := newMemoryTasks(storedTask(1, 1, "Budget"))
	svc := newTestTaskService(tasks)
	ctx := context.Background()

	if _, err := svc.AddTaskHistory(ctx, secretary, 1, ""); err == nil {
		t.Fatalf("expected blank history to be rejected")
	}
	entry, err := svc.AddTaskHistory(ctx, secretary, 1, "Relance envoyée")
	if err != nil {
		t.Fatalf("AddTaskHistory returned error: %v", err)
	}
	if entry.ChangedBy != secretary.UserID || entry.ChangedByRole != authz.RolePersonalSecretary {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	entries, err := svc.TaskHistory(ctx, governor, 1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one history entry, got %d (%v)", len(entries), err)
	}

	if err := svc.DeleteTask(ctx, governor, 1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected governor delete to be refused, got %v", err)
	}
	if err := svc.DeleteTask(ctx, secretary, 1); err != nil {
		t.Fatalf("DeleteTask returned error: %v", err)
	}
	if _, err := svc.GetTask(ctx, secretary, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestTaskService_FollowUpTasks(t *testing.T) {
	flagged := storedTask(2, 2, "Voirie")
	flagged.ForFollowUp = true
	svc := newTestTaskService(newMemoryTasks(storedTask(1, 1, "Budget"), flagged))
	ctx := context.Background()

	sg := Principal{UserID: 3, Role: authz.RoleSecretaryGeneral}
	tasks, err := svc.FollowUpTasks(ctx, sg)
	if err != nil {
		t.Fatalf("FollowUpTasks returned error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != 2 {
		t.Fatalf("expected only flagged task, got %+v", tasks)
	}

	if _, err := svc.FollowUpTasks(ctx, divisionHead(5, 1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected division head to be refused, got %v", err)
	}
}

func TestTaskService_TaskStatistics(t *testing.T) {
	tasks := newMemoryTasks()
	tasks.counts = []TaskStatusCount{
		{DivisionID: 2, DivisionName: "Routes", Status: TaskPending, Count: 2},
		{DivisionID: 1, DivisionName: "Finances", Status: TaskDone, Count: 3},
		{DivisionID: 1, DivisionName: "Finances", Status: TaskPending, Count: 1},
	}
	svc := newTestTaskService(tasks)

	stats, err := svc.TaskStatistics(context.Background(), governor)
	if err != nil {
		t.Fatalf("TaskStatistics returned error: %v", err)
	}
	if stats.Total != 6 || stats.ByStatus[TaskPending] != 3 || stats.ByStatus[TaskDone] != 3 || stats.ByStatus[TaskCancelled] != 0 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if len(stats.ByDivision) != 2 || stats.ByDivision[0].DivisionName != "Finances" || stats.ByDivision[0].Total != 4 {
		t.Fatalf("unexpected division breakdown: %+v", stats.ByDivision)
	}

	if _, err := svc.TaskStatistics(context.Background(), secretary); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected personal secretary to be refused, got %v", err)
	}
}

func TestDivisionService(t *testing.T) {
	repo := newDivisionStub(finance)
	svc := NewDivisionService(repo, fixedNow, nil)
	ctx := context.Background()

	if _, err := svc.CreateDivision(ctx, governor, "Santé"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected governor create to be refused, got %v", err)
	}
	if _, err := svc.CreateDivision(ctx, admin, "  "); err == nil {
		t.Fatalf("expected blank name to be rejected")
	}

	created, err := svc.CreateDivision(ctx, admin, " Santé ")
	if err != nil {
		t.Fatalf("CreateDivision returned error: %v", err)
	}
	if created.Name != "Santé" || created.ID == 0 {
		t.Fatalf("unexpected division: %+v", created)
	}

	repo.createErr = ErrAlreadyExists
	if _, err := svc.CreateDivision(ctx, admin, "Santé"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	divisions, err := svc.ListDivisions(ctx, governor)
	if err != nil || len(divisions) != 2 {
		t.Fatalf("expected 2 divisions, got %d (%v)", len(divisions), err)
	}
	if _, err := svc.ListDivisions(ctx, secretary); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected personal secretary to be refused, got %v", err)
	}
}

func TestTaskService_RefusesBeforeLookup(t *testing.T) {
	svc := newTestTaskService(newMemoryTasks(storedTask(1, 1, "Budget")))
	ctx := context.Background()
	headless := Principal{UserID: 6, Role: authz.RoleDivisionHead}

	for _, id := range []int64{1, 404} {
		if err := svc.DeleteTask(ctx, governor, id); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("governor delete of task %d: expected ErrUnauthorized, got %v", id, err)
		}
		if _, err := svc.GetTask(ctx, headless, id); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("division head without division reading task %d: expected ErrUnauthorized, got %v", id, err)
		}
	}

	if _, err := svc.GetTask(ctx, divisionHead(5, 1), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a division-scoped role, got %v", err)
	}
	if _, err := svc.GetTask(ctx, governor, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a role with task access, got %v", err)
	}
}

package persistence

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.CreateRun(ctx, "run-1", "https://example.test/repo.git", "main", "add feature"); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := store.UpdateRunStatus(ctx, "run-1", "executing"); err != nil {
		t.Fatalf("UpdateRunStatus: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", "success"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	// Duplicate run IDs are rejected by the primary key.
	if err := store.CreateRun(ctx, "run-1", "x", "y", "z"); err == nil {
		t.Fatal("expected error creating duplicate run")
	}
}

func TestSaveTask_Upsert(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.CreateRun(ctx, "run-1", "url", "main", "req"); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	rec := TaskRecord{
		RunID: "run-1", TaskID: "task-001", Title: "Add endpoint",
		Category: "backend", Priority: "high", Status: "pending", Attempts: 1,
	}
	if err := store.SaveTask(ctx, rec); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}

	rec.Status = "failed"
	rec.Attempts = 3
	rec.Notes = []string{"attempt 1 failed", "attempt 2 failed"}
	if err := store.SaveTask(ctx, rec); err != nil {
		t.Fatalf("SaveTask update: %v", err)
	}

	tasks, err := store.ListTasks(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1 (upsert)", len(tasks))
	}
	got := tasks[0]
	if got.Status != "failed" || got.Attempts != 3 {
		t.Errorf("task = %+v, want updated status and attempts", got)
	}
	if !reflect.DeepEqual(got.Notes, rec.Notes) {
		t.Errorf("notes = %v, want %v", got.Notes, rec.Notes)
	}
}

func TestListTasks_OrderedByID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.CreateRun(ctx, "run-1", "url", "main", "req"); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	for _, id := range []string{"task-003", "task-001", "task-002"} {
		if err := store.SaveTask(ctx, TaskRecord{RunID: "run-1", TaskID: id, Status: "pending"}); err != nil {
			t.Fatalf("SaveTask(%s): %v", id, err)
		}
	}

	tasks, err := store.ListTasks(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.TaskID)
	}
	want := []string{"task-001", "task-002", "task-003"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("task order = %v, want %v", ids, want)
	}
}

func TestRecordInvocation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.CreateRun(ctx, "run-1", "url", "main", "req"); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	err := store.RecordInvocation(ctx, "run-1", "task-001", 0, 2, "succeeded", 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("RecordInvocation: %v", err)
	}
	err = store.RecordInvocation(ctx, "run-1", "task-001", 1, 1, "timed_out", 120*time.Second)
	if err != nil {
		t.Fatalf("RecordInvocation: %v", err)
	}
}

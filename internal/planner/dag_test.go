package planner

import (
	"errors"
	"reflect"
	"testing"
)

func mustAdd(t *testing.T, d *DAG, task *Task) {
	t.Helper()
	if err := d.AddTask(task); err != nil {
		t.Fatalf("AddTask(%s): %v", task.ID, err)
	}
}

func TestValidate_MissingDependency(t *testing.T) {
	d := NewDAG()
	mustAdd(t, d, &Task{ID: "a", DependsOn: []string{"ghost"}})

	if err := d.Validate(); err == nil {
		t.Fatal("expected error for dependency on non-existent task")
	}
}

func TestValidate_CycleNamesParticipants(t *testing.T) {
	d := NewDAG()
	mustAdd(t, d, &Task{ID: "a", DependsOn: []string{"c"}})
	mustAdd(t, d, &Task{ID: "b", DependsOn: []string{"a"}})
	mustAdd(t, d, &Task{ID: "c", DependsOn: []string{"b"}})
	mustAdd(t, d, &Task{ID: "d"}) // Not on the cycle

	err := d.Validate()
	if err == nil {
		t.Fatal("expected cycle error")
	}

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T: %v", err, err)
	}
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(cycleErr.Tasks, want) {
		t.Errorf("cycle members = %v, want %v", cycleErr.Tasks, want)
	}
}

func TestExecutionOrder_RespectsDependencies(t *testing.T) {
	d := NewDAG()
	mustAdd(t, d, &Task{ID: "build", DependsOn: []string{"schema"}})
	mustAdd(t, d, &Task{ID: "schema"})
	mustAdd(t, d, &Task{ID: "docs", DependsOn: []string{"build"}})

	if err := d.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	order := d.ExecutionOrder()
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, task := range d.Tasks() {
		for _, dep := range task.DependsOn {
			if pos[dep] > pos[task.ID] {
				t.Errorf("dependency %s ordered after dependent %s: %v", dep, task.ID, order)
			}
		}
	}
}

func TestExecutionOrder_PriorityThenInsertion(t *testing.T) {
	d := NewDAG()
	mustAdd(t, d, &Task{ID: "low", Priority: PriorityLow})
	mustAdd(t, d, &Task{ID: "med-1", Priority: PriorityMedium})
	mustAdd(t, d, &Task{ID: "high", Priority: PriorityHigh})
	mustAdd(t, d, &Task{ID: "med-2", Priority: PriorityMedium})

	if err := d.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	want := []string{"high", "med-1", "med-2", "low"}
	got := d.ExecutionOrder()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExecutionOrder() = %v, want %v", got, want)
	}

	// Identical input must produce identical order on repeat calls.
	if again := d.ExecutionOrder(); !reflect.DeepEqual(again, got) {
		t.Errorf("order not stable: first %v, second %v", got, again)
	}
}

func TestMarkFailed_CascadesToTransitiveDependents(t *testing.T) {
	d := NewDAG()
	mustAdd(t, d, &Task{ID: "a"})
	mustAdd(t, d, &Task{ID: "b", DependsOn: []string{"a"}})
	mustAdd(t, d, &Task{ID: "c", DependsOn: []string{"b"}})
	mustAdd(t, d, &Task{ID: "e"}) // Independent, must be untouched

	skipped, err := d.MarkFailed("a", "tests failed")
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	want := []string{"b", "c"}
	if !reflect.DeepEqual(skipped, want) {
		t.Errorf("skipped = %v, want %v", skipped, want)
	}

	for _, id := range want {
		task, _ := d.Get(id)
		if task.Status != StatusSkipped {
			t.Errorf("task %s status = %s, want %s", id, task.Status, StatusSkipped)
		}
		if len(task.Notes) == 0 {
			t.Errorf("task %s has no skip note", id)
		}
	}
	if task, _ := d.Get("e"); task.Status != StatusPending {
		t.Errorf("independent task status = %s, want %s", task.Status, StatusPending)
	}
}

func TestMarkFailed_DoesNotSkipFinishedDependents(t *testing.T) {
	d := NewDAG()
	mustAdd(t, d, &Task{ID: "a"})
	mustAdd(t, d, &Task{ID: "b", DependsOn: []string{"a"}})

	if err := d.MarkCompleted("b"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	skipped, err := d.MarkFailed("a", "")
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if len(skipped) != 0 {
		t.Errorf("skipped = %v, want none (dependent already terminal)", skipped)
	}
	if task, _ := d.Get("b"); task.Status != StatusCompleted {
		t.Errorf("completed dependent was overwritten to %s", task.Status)
	}
}

func TestMarkInProgress_RefusesUnresolvedDependency(t *testing.T) {
	d := NewDAG()
	mustAdd(t, d, &Task{ID: "a"})
	mustAdd(t, d, &Task{ID: "b", DependsOn: []string{"a"}})

	if err := d.MarkInProgress("b"); err == nil {
		t.Fatal("expected error starting task before its dependency completed")
	}

	if err := d.MarkCompleted("a"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if err := d.MarkInProgress("b"); err != nil {
		t.Errorf("MarkInProgress after dependency completed: %v", err)
	}
}

func TestAddTask_DuplicateID(t *testing.T) {
	d := NewDAG()
	mustAdd(t, d, &Task{ID: "a"})
	if err := d.AddTask(&Task{ID: "a"}); err == nil {
		t.Fatal("expected error adding duplicate task ID")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	d := NewDAG()
	mustAdd(t, d, &Task{ID: "a", Notes: []string{"original"}})

	task, _ := d.Get("a")
	task.Notes[0] = "mutated"
	task.Status = StatusFailed

	fresh, _ := d.Get("a")
	if fresh.Notes[0] != "original" || fresh.Status != StatusPending {
		t.Error("Get returned a live reference instead of a copy")
	}
}

package planner

import (
	"reflect"
	"testing"

	"github.com/repoforge/repoforge/internal/config"
)

func TestParseRecommendations(t *testing.T) {
	raw := `{"tasks": [
		{"id": "task-001", "file_path": "app.py", "specific_changes": "Add endpoint"},
		{"id": "", "file_path": "util.py", "specific_changes": "Extract helper"},
		{"id": "task-003", "file_path": "", "specific_changes": "dropped, no path"},
		{"id": "task-004", "file_path": "x.py", "specific_changes": ""}
	]}`

	recs, err := ParseRecommendations(raw)
	if err != nil {
		t.Fatalf("ParseRecommendations: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d recommendations, want 2 (invalid entries dropped)", len(recs))
	}
	if recs[0].ID != "task-001" || recs[0].Path != "app.py" {
		t.Errorf("first rec = %+v", recs[0])
	}
}

func TestParseRecommendations_FencedJSON(t *testing.T) {
	raw := "```json\n{\"tasks\": [{\"id\": \"t1\", \"file_path\": \"a.py\", \"specific_changes\": \"x\"}]}\n```"
	recs, err := ParseRecommendations(raw)
	if err != nil {
		t.Fatalf("ParseRecommendations: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(recs))
	}
}

func TestParseRecommendations_Invalid(t *testing.T) {
	for _, raw := range []string{
		"not json",
		`{"tasks": "nope"}`,
		`{"tasks": []}`,
		`{"other": []}`,
	} {
		if _, err := ParseRecommendations(raw); err == nil {
			t.Errorf("ParseRecommendations(%q): expected error", raw)
		}
	}
}

func TestDecompose_BuildsOrderedPlan(t *testing.T) {
	recs := []Recommendation{
		{Path: "app.py", Details: "Add an api endpoint for health checks"},
		{Path: "app.py", Details: "Add logging to the endpoint"},
		{Path: "README.md", Details: "Update the readme with the new endpoint docs"},
	}

	plan, err := Decompose(recs, nil, config.DefaultTables())
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	if len(plan.Order) != 3 {
		t.Fatalf("order = %v, want 3 tasks", plan.Order)
	}

	// Same-target tasks run in recommendation order.
	second, _ := plan.DAG.Get("task-002")
	if !reflect.DeepEqual(second.DependsOn, []string{"task-001"}) {
		t.Errorf("task-002 deps = %v, want [task-001]", second.DependsOn)
	}

	first, _ := plan.DAG.Get("task-001")
	if first.Category != CategoryBackend {
		t.Errorf("task-001 category = %s, want %s", first.Category, CategoryBackend)
	}
	if first.Priority != PriorityHigh {
		t.Errorf("task-001 priority = %s, want high (api keyword)", first.Priority)
	}
	third, _ := plan.DAG.Get("task-003")
	if third.Category != CategoryDocumentation {
		t.Errorf("task-003 category = %s, want %s", third.Category, CategoryDocumentation)
	}
}

func TestDecompose_DescriptionMentionCreatesDependency(t *testing.T) {
	recs := []Recommendation{
		{Path: "models.py", Details: "Define the user model"},
		{Path: "views.py", Details: "Render users defined in models.py"},
	}

	plan, err := Decompose(recs, nil, config.DefaultTables())
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	second, _ := plan.DAG.Get("task-002")
	if !reflect.DeepEqual(second.DependsOn, []string{"task-001"}) {
		t.Errorf("task-002 deps = %v, want [task-001]", second.DependsOn)
	}
}

func TestDecompose_EmptyInput(t *testing.T) {
	if _, err := Decompose(nil, nil, config.DefaultTables()); err == nil {
		t.Fatal("expected error for no recommendations")
	}
	if _, err := Decompose([]Recommendation{{Path: "a", Details: "  "}}, nil, config.DefaultTables()); err == nil {
		t.Fatal("expected error when every recommendation is blank")
	}
}

package planner

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/repoforge/repoforge/internal/analysis"
	"github.com/repoforge/repoforge/internal/config"
)

// Recommendation is one proposed change, typically produced by the planning
// agent from the user's request and the analysis profile.
type Recommendation struct {
	ID      string // Optional; generated from the index when empty
	Path    string // File the change targets
	Details string // Natural-language description of the change
}

// Plan is the ordered, validated output of Decompose.
type Plan struct {
	DAG   *DAG
	Order []string // Task IDs in execution order
}

// Decompose converts recommendations into a categorized, prioritized,
// dependency-ordered task plan. Fails with *CycleError if the inferred
// dependency graph contains a cycle, naming the offending tasks.
func Decompose(recs []Recommendation, profile *analysis.Profile, tables *config.Tables) (*Plan, error) {
	if len(recs) == 0 {
		return nil, fmt.Errorf("no recommendations to plan from")
	}

	dag := NewDAG()
	var tasks []*Task

	for i, rec := range recs {
		if strings.TrimSpace(rec.Details) == "" {
			continue
		}
		id := rec.ID
		if id == "" {
			id = fmt.Sprintf("task-%03d", i+1)
		}

		task := &Task{
			ID:          id,
			Title:       title(rec),
			Description: rec.Details,
			TargetPath:  rec.Path,
			Category:    Categorize(rec.Details, tables, profile),
			Priority:    Prioritize(rec.Details, tables),
			Status:      StatusPending,
		}
		inferDependencies(task, tasks)

		if err := dag.AddTask(task); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("no valid tasks created from recommendations")
	}

	if err := dag.Validate(); err != nil {
		return nil, err
	}

	return &Plan{DAG: dag, Order: dag.ExecutionOrder()}, nil
}

// inferDependencies links a task to earlier tasks whose artifacts it builds
// on: a task targeting the same file as an earlier task must wait for it, and
// a task whose description mentions another task's target file depends on it.
func inferDependencies(task *Task, earlier []*Task) {
	seen := make(map[string]bool)
	desc := strings.ToLower(task.Description)

	for _, prev := range earlier {
		if seen[prev.ID] {
			continue
		}
		sameTarget := prev.TargetPath != "" && prev.TargetPath == task.TargetPath
		mentioned := prev.TargetPath != "" && prev.TargetPath != task.TargetPath &&
			strings.Contains(desc, strings.ToLower(prev.TargetPath))
		if sameTarget || mentioned {
			task.DependsOn = append(task.DependsOn, prev.ID)
			seen[prev.ID] = true
		}
	}
}

func title(rec Recommendation) string {
	t := rec.Details
	if idx := strings.IndexAny(t, ".\n"); idx > 0 {
		t = t[:idx]
	}
	if len(t) > 80 {
		t = t[:77] + "..."
	}
	return strings.TrimSpace(t)
}

// ParseRecommendations extracts recommendations from the planning agent's
// JSON output. The expected shape is {"tasks": [{"id", "file_path",
// "specific_changes"}, ...]}; entries missing a file path or change text are
// dropped.
func ParseRecommendations(raw string) ([]Recommendation, error) {
	doc := gjson.Parse(extractJSON(raw))
	tasks := doc.Get("tasks")
	if !tasks.IsArray() {
		return nil, fmt.Errorf("planning output has no tasks array")
	}

	var recs []Recommendation
	tasks.ForEach(func(_, item gjson.Result) bool {
		rec := Recommendation{
			ID:      item.Get("id").String(),
			Path:    item.Get("file_path").String(),
			Details: item.Get("specific_changes").String(),
		}
		if rec.Path != "" && rec.Details != "" {
			recs = append(recs, rec)
		}
		return true
	})

	if len(recs) == 0 {
		return nil, fmt.Errorf("planning output contained no usable tasks")
	}
	return recs, nil
}

// extractJSON strips fenced code blocks that completion models commonly wrap
// JSON payloads in.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

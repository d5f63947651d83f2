package planner

// Category classifies which kind of change a task represents and therefore
// which specialized prompt it is dispatched with.
type Category string

const (
	CategoryFrontend      Category = "frontend"
	CategoryBackend       Category = "backend"
	CategoryConfig        Category = "config"
	CategoryData          Category = "data"
	CategoryDocumentation Category = "documentation"
	CategoryMixed         Category = "mixed" // No keyword matched any category
)

// categoryPrecedence breaks score ties: the earlier entry wins.
var categoryPrecedence = []Category{
	CategoryBackend,
	CategoryFrontend,
	CategoryConfig,
	CategoryData,
	CategoryDocumentation,
}

// Priority is an ordinal rank; lower runs earlier among independent tasks.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "medium"
	}
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// Task is one discrete unit of requested change, independently implementable
// and testable.
type Task struct {
	ID          string
	Title       string
	Description string   // Natural-language change description
	TargetPath  string   // Primary file or directory the change touches
	Category    Category
	Priority    Priority
	DependsOn   []string // Task IDs that must complete first
	Status      Status
	RetryCount  int
	Notes       []string // Accumulated diagnostics (validation logs, retry reasons)

	order int // Insertion index, preserved for stable ordering
}

// AddNote appends a diagnostic note to the task.
func (t *Task) AddNote(note string) {
	t.Notes = append(t.Notes, note)
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}
	cp := *task
	if task.DependsOn != nil {
		cp.DependsOn = append([]string(nil), task.DependsOn...)
	}
	if task.Notes != nil {
		cp.Notes = append([]string(nil), task.Notes...)
	}
	return &cp
}

package planner

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gammazero/toposort"
)

// CycleError reports a dependency cycle. Tasks holds the ids of every task
// participating in the cycle, sorted for deterministic messages.
type CycleError struct {
	Tasks []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle between tasks: %s", strings.Join(e.Tasks, ", "))
}

// DAG is the dependency graph of a run's tasks.
type DAG struct {
	mu         sync.RWMutex
	tasks      map[string]*Task
	dependents map[string][]string // taskID -> tasks that depend on it
	insertion  []string            // IDs in insertion order
}

// NewDAG creates an empty DAG.
func NewDAG() *DAG {
	return &DAG{
		tasks:      make(map[string]*Task),
		dependents: make(map[string][]string),
	}
}

// AddTask adds a task. Returns an error if the ID already exists.
func (d *DAG) AddTask(task *Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.tasks[task.ID]; exists {
		return fmt.Errorf("task with ID %q already exists", task.ID)
	}

	task.order = len(d.insertion)
	d.tasks[task.ID] = task
	d.insertion = append(d.insertion, task.ID)

	for _, depID := range task.DependsOn {
		d.dependents[depID] = append(d.dependents[depID], task.ID)
	}
	return nil
}

// Validate verifies that every referenced dependency exists and that the
// graph is acyclic. Cycles are reported as *CycleError naming every task on
// the cycle.
func (d *DAG) Validate() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for taskID, task := range d.tasks {
		for _, depID := range task.DependsOn {
			if _, exists := d.tasks[depID]; !exists {
				return fmt.Errorf("task %q depends on non-existent task %q", taskID, depID)
			}
		}
	}

	var edges []toposort.Edge
	for taskID, task := range d.tasks {
		if len(task.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, taskID})
			continue
		}
		for _, depID := range task.DependsOn {
			edges = append(edges, toposort.Edge{depID, taskID})
		}
	}

	if _, err := toposort.Toposort(edges); err != nil {
		// toposort only reports that a cycle exists; walk the graph to name
		// the participants.
		return &CycleError{Tasks: d.findCycleLocked()}
	}
	return nil
}

// findCycleLocked locates cycle members via iterative DFS coloring.
// Caller must hold at least the read lock.
func (d *DAG) findCycleLocked() []string {
	const (
		white = iota // unvisited
		gray         // on the current DFS path
		black        // fully explored
	)
	color := make(map[string]int, len(d.tasks))
	parent := make(map[string]string)

	var cycle []string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, depID := range d.tasks[id].DependsOn {
			if _, ok := d.tasks[depID]; !ok {
				continue
			}
			switch color[depID] {
			case white:
				parent[depID] = id
				if visit(depID) {
					return true
				}
			case gray:
				// Back edge: walk parents from id back to depID.
				cycle = append(cycle, depID)
				for cur := id; cur != depID; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, id := range d.insertion {
		if color[id] == white && visit(id) {
			break
		}
	}
	sort.Strings(cycle)
	return cycle
}

// ExecutionOrder returns a topologically valid ordering of all task IDs.
// Among tasks whose dependencies are equally satisfied, higher priority runs
// first and insertion order breaks remaining ties, keeping runs reproducible.
// The DAG must already have passed Validate.
func (d *DAG) ExecutionOrder() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	indegree := make(map[string]int, len(d.tasks))
	for id, task := range d.tasks {
		indegree[id] = len(task.DependsOn)
	}

	ready := make([]string, 0, len(d.tasks))
	for _, id := range d.insertion {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(d.tasks))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			a, b := d.tasks[ready[i]], d.tasks[ready[j]]
			if a.Priority != b.Priority {
				return a.Priority < b.Priority
			}
			return a.order < b.order
		})

		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, depID := range d.dependents[next] {
			indegree[depID]--
			if indegree[depID] == 0 {
				ready = append(ready, depID)
			}
		}
	}
	return order
}

// Get returns a copy of the task by ID.
func (d *DAG) Get(taskID string) (*Task, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	task, exists := d.tasks[taskID]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// Tasks returns copies of all tasks in insertion order.
func (d *DAG) Tasks() []*Task {
	d.mu.RLock()
	defer d.mu.RUnlock()

	tasks := make([]*Task, 0, len(d.tasks))
	for _, id := range d.insertion {
		tasks = append(tasks, cloneTask(d.tasks[id]))
	}
	return tasks
}

// Ready reports whether every dependency of the task has completed.
func (d *DAG) Ready(taskID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	task, exists := d.tasks[taskID]
	if !exists {
		return false
	}
	for _, depID := range task.DependsOn {
		dep, ok := d.tasks[depID]
		if !ok || dep.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// MarkInProgress transitions a task to in_progress. It refuses the transition
// while any dependency is not completed.
func (d *DAG) MarkInProgress(taskID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, exists := d.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	for _, depID := range task.DependsOn {
		dep, ok := d.tasks[depID]
		if !ok || dep.Status != StatusCompleted {
			return fmt.Errorf("task %q has unresolved dependency %q", taskID, depID)
		}
	}
	task.Status = StatusInProgress
	return nil
}

// MarkCompleted transitions a task to completed.
func (d *DAG) MarkCompleted(taskID string) error {
	return d.setStatus(taskID, StatusCompleted)
}

// MarkFailed transitions a task to failed and cascades StatusSkipped to every
// direct and transitive dependent that has not already finished. Skipped
// dependents are never attempted.
func (d *DAG) MarkFailed(taskID string, note string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, exists := d.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("task %q not found", taskID)
	}
	task.Status = StatusFailed
	if note != "" {
		task.Notes = append(task.Notes, note)
	}

	var skipped []string
	queue := append([]string(nil), d.dependents[taskID]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		dep, ok := d.tasks[id]
		if !ok || dep.Status.Terminal() {
			continue
		}
		dep.Status = StatusSkipped
		dep.Notes = append(dep.Notes, fmt.Sprintf("skipped: dependency %s failed", taskID))
		skipped = append(skipped, id)
		queue = append(queue, d.dependents[id]...)
	}
	sort.Strings(skipped)
	return skipped, nil
}

// IncrementRetry bumps the retry count and returns the new value.
func (d *DAG) IncrementRetry(taskID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, exists := d.tasks[taskID]
	if !exists {
		return 0, fmt.Errorf("task %q not found", taskID)
	}
	task.RetryCount++
	return task.RetryCount, nil
}

// AddNote appends a diagnostic note to a task.
func (d *DAG) AddNote(taskID, note string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if task, exists := d.tasks[taskID]; exists {
		task.Notes = append(task.Notes, note)
	}
}

func (d *DAG) setStatus(taskID string, status Status) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, exists := d.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	task.Status = status
	return nil
}

package chunk

import (
	"fmt"
	"sort"
	"strings"
)

// Outcome is the terminal result of dispatching one chunk.
type Outcome struct {
	Index  int    // Chunk sequence number
	OK     bool   // True only for a successful completion
	Output string // Agent output when OK
}

// MergedResult is the single coherent change assembled from all of a task's
// chunk outputs.
type MergedResult struct {
	TaskID string
	Output string // Chunk outputs concatenated in sequence order
	Chunks int
}

// IncompleteError reports a merge attempted before every chunk succeeded.
// Missing holds the indices with no successful outcome, sorted ascending.
type IncompleteError struct {
	TaskID  string
	Missing []int
}

func (e *IncompleteError) Error() string {
	idx := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		idx[i] = fmt.Sprintf("%d", m)
	}
	return fmt.Sprintf("task %s: cannot merge, missing chunk outcomes at indices %s",
		e.TaskID, strings.Join(idx, ", "))
}

// Merge assembles chunk outcomes into one result. Every index in [0, total)
// must be present with OK set; otherwise merge fails with *IncompleteError
// naming the exact missing indices. A task is never partially merged.
func Merge(taskID string, total int, outcomes []Outcome) (*MergedResult, error) {
	byIndex := make(map[int]Outcome, len(outcomes))
	for _, o := range outcomes {
		if o.OK {
			byIndex[o.Index] = o
		}
	}

	var missing []int
	for i := 0; i < total; i++ {
		if _, ok := byIndex[i]; !ok {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		sort.Ints(missing)
		return nil, &IncompleteError{TaskID: taskID, Missing: missing}
	}

	var b strings.Builder
	for i := 0; i < total; i++ {
		b.WriteString(byIndex[i].Output)
	}

	return &MergedResult{TaskID: taskID, Output: b.String(), Chunks: total}, nil
}

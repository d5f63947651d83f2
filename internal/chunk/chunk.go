// Package chunk bounds the amount of repository context sent per completion
// call. Context is partitioned along file boundaries first; a file exceeding
// the token budget is further split by line ranges, with a few lines of
// overlap carried between consecutive pieces so the agent resuming a partial
// file has local context.
package chunk

import (
	"fmt"
	"strings"
)

// File is one unit of task context.
type File struct {
	Path    string
	Content string
}

// Span records which slice of a source file a chunk carries.
type Span struct {
	Path      string
	StartLine int // 1-based, first fresh (non-overlap) line
	EndLine   int
	Part      int // 1-based piece number when the file was split, else 0
	Parts     int // Total pieces for the file, else 0
}

// Chunk is a budget-bounded slice of a task's context. Chunks of one task are
// strictly ordered by Index; later chunks' prompts may reference earlier
// chunks' outputs.
type Chunk struct {
	TaskID        string
	Index         int    // Position in the task's chunk sequence, 0-based
	Spans         []Span // Files (or file slices) this chunk carries
	Content       string // Fresh context; concatenating all chunks' Content restores the input
	OverlapPrefix string // Trailing lines of the previous piece, context only
	Tokens        int    // Estimated tokens of OverlapPrefix + Content
}

// Header renders a prompt heading naming the chunk's file spans.
func (c *Chunk) Header() string {
	var b strings.Builder
	for _, s := range c.Spans {
		if s.Parts > 1 {
			fmt.Fprintf(&b, "=== FILE: %s (part %d/%d, lines %d-%d) ===\n",
				s.Path, s.Part, s.Parts, s.StartLine, s.EndLine)
		} else {
			fmt.Fprintf(&b, "=== FILE: %s ===\n", s.Path)
		}
	}
	return b.String()
}

// EstimateTokens approximates the token count of a text. Completion tokenizers
// average roughly four bytes per token on source code; the budget is applied
// against this estimate.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

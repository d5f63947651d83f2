package agent

import (
	"context"
	"fmt"
	"strings"
)

// Mock is a deterministic offline completion capability used for dry runs and
// tests. It echoes a summary of the prompt, or a canned plan when the prompt
// asks for one.
type Mock struct{}

// NewMock creates a Mock completion capability.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Complete(_ context.Context, req Request) (string, error) {
	if strings.Contains(req.Prompt, `"tasks"`) {
		return `{"tasks": [{"id": "task-001", "file_path": "README.md", "specific_changes": "Document the requested change."}]}`, nil
	}
	lines := strings.SplitN(req.Prompt, "\n", 2)
	return fmt.Sprintf("// mock completion for: %s\n", strings.TrimSpace(lines[0])), nil
}

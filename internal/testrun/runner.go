// Package testrun is the test-validation capability: run the repository's
// test suite in the working copy and report pass/fail with logs.
package testrun

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Result is the outcome of one validation run.
type Result struct {
	Passed   bool
	Command  string
	Log      string // Combined stdout/stderr, truncated
	Duration time.Duration
}

// maxLogBytes caps the log carried back into retry prompts and reports.
const maxLogBytes = 16 * 1024

// Runner executes a configured test command inside the working copy.
type Runner struct {
	command string // e.g. "go test ./..." or "npm test"
}

// NewRunner creates a Runner for the given shell command. An empty command
// means the repository has no test suite; Run then reports a pass with a note.
func NewRunner(command string) *Runner {
	return &Runner{command: command}
}

// Run executes the test command in dir. A non-zero exit is a failed
// validation, not an error; errors are reserved for being unable to run the
// suite at all.
func (r *Runner) Run(ctx context.Context, dir string) (*Result, error) {
	if strings.TrimSpace(r.command) == "" {
		return &Result{
			Passed:  true,
			Command: "",
			Log:     "no test command configured, validation skipped",
		}, nil
	}

	started := time.Now()
	cmd := exec.CommandContext(ctx, "sh", "-c", r.command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	duration := time.Since(started)

	if ctx.Err() != nil {
		return nil, fmt.Errorf("validation canceled: %w", ctx.Err())
	}

	result := &Result{
		Passed:   err == nil,
		Command:  r.command,
		Log:      truncate(string(out)),
		Duration: duration,
	}

	if err != nil {
		if _, isExit := err.(*exec.ExitError); !isExit {
			return nil, fmt.Errorf("running %q: %w", r.command, err)
		}
	}
	return result, nil
}

// truncate keeps the tail of the log, where test failures usually are.
func truncate(log string) string {
	if len(log) <= maxLogBytes {
		return log
	}
	return "... (truncated)\n" + log[len(log)-maxLogBytes:]
}

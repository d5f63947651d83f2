package testrun

import (
	"context"
	"strings"
	"testing"
)

func TestRun_EmptyCommandPasses(t *testing.T) {
	r := NewRunner("")
	result, err := r.Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Passed {
		t.Error("empty command should pass trivially")
	}
}

func TestRun_PassingCommand(t *testing.T) {
	r := NewRunner("echo ok")
	result, err := r.Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Passed {
		t.Errorf("Passed = false, log: %s", result.Log)
	}
	if !strings.Contains(result.Log, "ok") {
		t.Errorf("log = %q, want command output captured", result.Log)
	}
}

func TestRun_FailingCommand(t *testing.T) {
	r := NewRunner("echo boom && exit 3")
	result, err := r.Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Passed {
		t.Error("Passed = true for a failing command")
	}
	if !strings.Contains(result.Log, "boom") {
		t.Errorf("log = %q, want failure output captured", result.Log)
	}
}

func TestRun_LogTruncatedToTail(t *testing.T) {
	// Output far beyond the log cap; only the tail is kept, which is where
	// test failures usually print.
	r := NewRunner("i=0; while [ $i -lt 4000 ]; do echo \"line $i\"; i=$((i+1)); done; echo LAST")
	result, err := r.Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Log) > maxLogBytes+len("... (truncated)\n") {
		t.Errorf("log length %d exceeds cap %d", len(result.Log), maxLogBytes)
	}
	if !strings.HasPrefix(result.Log, "... (truncated)") {
		t.Error("truncated log is not marked")
	}
	if !strings.Contains(result.Log, "LAST") {
		t.Error("tail of output was not preserved")
	}
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner("sleep 5")
	if _, err := r.Run(ctx, t.TempDir()); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

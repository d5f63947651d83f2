package chunk

import (
	"errors"
	"reflect"
	"testing"
)

func TestMerge_AllPresent(t *testing.T) {
	outcomes := []Outcome{
		{Index: 2, OK: true, Output: "three"},
		{Index: 0, OK: true, Output: "one"},
		{Index: 1, OK: true, Output: "two"},
	}

	result, err := Merge("t1", 3, outcomes)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if result.Output != "onetwothree" {
		t.Errorf("merged output = %q, want outputs in index order", result.Output)
	}
	if result.Chunks != 3 {
		t.Errorf("Chunks = %d, want 3", result.Chunks)
	}
}

func TestMerge_MissingOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		outcomes    []Outcome
		wantMissing []int
	}{
		{
			name:        "no outcomes at all",
			total:       2,
			outcomes:    nil,
			wantMissing: []int{0, 1},
		},
		{
			name:  "failed chunk counts as missing",
			total: 3,
			outcomes: []Outcome{
				{Index: 0, OK: true, Output: "a"},
				{Index: 1, OK: false, Output: "ignored"},
				{Index: 2, OK: true, Output: "c"},
			},
			wantMissing: []int{1},
		},
		{
			name:  "several gaps sorted",
			total: 4,
			outcomes: []Outcome{
				{Index: 2, OK: true, Output: "c"},
			},
			wantMissing: []int{0, 1, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Merge("t1", tt.total, tt.outcomes)
			if err == nil {
				t.Fatal("expected incomplete merge error")
			}

			var incomplete *IncompleteError
			if !errors.As(err, &incomplete) {
				t.Fatalf("expected *IncompleteError, got %T: %v", err, err)
			}
			if !reflect.DeepEqual(incomplete.Missing, tt.wantMissing) {
				t.Errorf("Missing = %v, want %v", incomplete.Missing, tt.wantMissing)
			}
			if incomplete.TaskID != "t1" {
				t.Errorf("TaskID = %q, want t1", incomplete.TaskID)
			}
		})
	}
}

func TestMerge_ZeroChunks(t *testing.T) {
	result, err := Merge("t1", 0, nil)
	if err != nil {
		t.Fatalf("Merge with zero chunks: %v", err)
	}
	if result.Output != "" {
		t.Errorf("output = %q, want empty", result.Output)
	}
}

package gitrepo

import (
	"context"
	"testing"
)

func TestRepoName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/acme/widget.git", "widget"},
		{"https://github.com/acme/widget", "widget"},
		{"git@github.com:acme/widget.git", "widget"},
		{"widget", "widget"},
		{"", "repo"},
	}

	for _, tt := range tests {
		if got := repoName(tt.url); got != tt.want {
			t.Errorf("repoName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestApply_RejectsPathEscape(t *testing.T) {
	c := NewClient(t.TempDir())
	wc := &WorkingCopy{Path: t.TempDir()}

	edits := []FileEdit{{Path: "../outside.txt", Content: "nope"}}
	if err := c.Apply(context.Background(), wc, edits); err == nil {
		t.Fatal("expected error for edit escaping the working copy")
	}
}

// Package gitrepo is the version-control capability: clone a repository,
// branch, apply file edits and commit, all through the git CLI.
package gitrepo

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// WorkingCopy is a handle to a cloned repository on disk. It is acquired at
// run start and released (or deliberately retained) at exactly one point by
// its owner.
type WorkingCopy struct {
	Path   string
	URL    string
	Branch string // Branch currently checked out
}

// FileEdit is one file write to apply to the working copy.
type FileEdit struct {
	Path    string // Relative to the working copy root
	Content string
}

// Client runs git operations for the pipeline.
type Client struct {
	reposDir string
}

// NewClient creates a Client that clones under reposDir.
func NewClient(reposDir string) *Client {
	return &Client{reposDir: reposDir}
}

// Clone clones url at branch into a directory derived from the repository
// name, replacing any previous clone of the same repository.
func (c *Client) Clone(ctx context.Context, url, branch string) (*WorkingCopy, error) {
	dest := filepath.Join(c.reposDir, repoName(url))
	if err := os.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("clearing %s: %w", dest, err)
	}
	if err := os.MkdirAll(c.reposDir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", c.reposDir, err)
	}

	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, dest)

	if out, err := gitCtx(ctx, "", args...); err != nil {
		return nil, fmt.Errorf("cloning %s: %w (output: %s)", url, err, out)
	}

	return &WorkingCopy{Path: dest, URL: url, Branch: branch}, nil
}

// CreateBranch creates and checks out a new branch in the working copy.
func (c *Client) CreateBranch(ctx context.Context, wc *WorkingCopy, name string) error {
	if out, err := gitCtx(ctx, wc.Path, "checkout", "-b", name); err != nil {
		return fmt.Errorf("creating branch %s: %w (output: %s)", name, err, out)
	}
	wc.Branch = name
	return nil
}

// Apply writes the given edits into the working copy and stages them.
func (c *Client) Apply(ctx context.Context, wc *WorkingCopy, edits []FileEdit) error {
	for _, edit := range edits {
		target := filepath.Join(wc.Path, filepath.FromSlash(edit.Path))
		if !strings.HasPrefix(target, filepath.Clean(wc.Path)+string(os.PathSeparator)) {
			return fmt.Errorf("edit escapes working copy: %s", edit.Path)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", edit.Path, err)
		}
		if err := os.WriteFile(target, []byte(edit.Content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", edit.Path, err)
		}
	}

	if out, err := gitCtx(ctx, wc.Path, "add", "-A"); err != nil {
		return fmt.Errorf("staging edits: %w (output: %s)", err, out)
	}
	return nil
}

// Commit records staged changes and returns the new commit hash. Committing
// with nothing staged is an error.
func (c *Client) Commit(ctx context.Context, wc *WorkingCopy, message string) (string, error) {
	if out, err := gitCtx(ctx, wc.Path, "commit", "-m", message); err != nil {
		return "", fmt.Errorf("committing: %w (output: %s)", err, out)
	}
	out, err := gitCtx(ctx, wc.Path, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w (output: %s)", err, out)
	}
	return strings.TrimSpace(out), nil
}

// Reset discards all uncommitted changes in the working copy, staged or not.
func (c *Client) Reset(ctx context.Context, wc *WorkingCopy) error {
	if out, err := gitCtx(ctx, wc.Path, "reset", "--hard", "HEAD"); err != nil {
		return fmt.Errorf("resetting working copy: %w (output: %s)", err, out)
	}
	if out, err := gitCtx(ctx, wc.Path, "clean", "-fd"); err != nil {
		return fmt.Errorf("cleaning working copy: %w (output: %s)", err, out)
	}
	return nil
}

// Remove deletes the working copy from disk.
func (c *Client) Remove(wc *WorkingCopy) error {
	return os.RemoveAll(wc.Path)
}

func gitCtx(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// repoName derives a directory name from a repository URL.
func repoName(url string) string {
	name := strings.TrimSuffix(url, ".git")
	if idx := strings.LastIndexAny(name, "/:"); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" {
		name = "repo"
	}
	return name
}

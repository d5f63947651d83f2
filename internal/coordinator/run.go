package coordinator

import (
	"context"
	"time"

	"github.com/repoforge/repoforge/internal/agent"
	"github.com/repoforge/repoforge/internal/gitrepo"
	"github.com/repoforge/repoforge/internal/persistence"
	"github.com/repoforge/repoforge/internal/planner"
	"github.com/repoforge/repoforge/internal/testrun"
)

// Stage is a coordinator state. A run moves forward through the stages and
// can reach StageAborted from any of them.
type Stage string

const (
	StageCreated   Stage = "created"
	StageAnalyzing Stage = "analyzing"
	StagePlanning  Stage = "planning"
	StageExecuting Stage = "executing"
	StageReporting Stage = "reporting"
	StageDone      Stage = "done"
	StageAborted   Stage = "aborted"
)

// OverallStatus summarizes a finished run.
type OverallStatus string

const (
	StatusSuccess        OverallStatus = "success"         // Every task completed
	StatusPartialFailure OverallStatus = "partial_failure" // Some completed, some failed
	StatusFailure        OverallStatus = "failure"         // No task completed
	StatusAborted        OverallStatus = "aborted"         // Run-level error before or during execution
)

// Request describes one end-to-end run.
type Request struct {
	RepoURL     string
	Branch      string
	Description string // Natural-language change request
	Recipient   string // Notification address, may be empty
}

// TaskOutcome is the terminal record of one planned task.
type TaskOutcome struct {
	TaskID      string
	Title       string
	Category    planner.Category
	Status      planner.Status
	Attempts    int // 1 + task retries consumed
	Diagnostics []string
}

// Report is the produced artifact of a run: every planned task with a
// definite terminal status, plus the overall status.
type Report struct {
	RunID         string
	RepoURL       string
	Branch        string
	FeatureBranch string
	Status        OverallStatus
	Tasks         []TaskOutcome
	Started       time.Time
	Finished      time.Time
	Abort         string // Reason when Status is StatusAborted
}

// Completed counts tasks that finished successfully.
func (r *Report) Completed() int {
	n := 0
	for _, t := range r.Tasks {
		if t.Status == planner.StatusCompleted {
			n++
		}
	}
	return n
}

// VersionControl is the version-control capability consumed by the
// coordinator. The working copy is mutated only by the coordinator, never by
// two tasks concurrently.
type VersionControl interface {
	Clone(ctx context.Context, url, branch string) (*gitrepo.WorkingCopy, error)
	CreateBranch(ctx context.Context, wc *gitrepo.WorkingCopy, name string) error
	Apply(ctx context.Context, wc *gitrepo.WorkingCopy, edits []gitrepo.FileEdit) error
	Commit(ctx context.Context, wc *gitrepo.WorkingCopy, message string) (string, error)
	Reset(ctx context.Context, wc *gitrepo.WorkingCopy) error
	Remove(wc *gitrepo.WorkingCopy) error
}

// Validator is the test-validation capability.
type Validator interface {
	Run(ctx context.Context, dir string) (*testrun.Result, error)
}

// Dispatcher is the agent-dispatch capability (normally *agent.Manager).
type Dispatcher interface {
	Dispatch(ctx context.Context, inv *agent.Invocation, c agent.Constraints) error
	Healthy() bool
}

// Recorder persists run progress (normally *persistence.Store). A nil
// Recorder disables persistence.
type Recorder interface {
	CreateRun(ctx context.Context, runID, repoURL, branch, request string) error
	UpdateRunStatus(ctx context.Context, runID, status string) error
	FinishRun(ctx context.Context, runID, status string) error
	SaveTask(ctx context.Context, rec persistence.TaskRecord) error
	RecordInvocation(ctx context.Context, runID, taskID string, chunkIndex, attempts int, outcome string, latency time.Duration) error
}

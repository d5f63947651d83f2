// Package coordinator drives the end-to-end run state machine: analyze the
// repository, plan tasks, execute each task in dependency order through the
// chunk system and agent manager, validate with the test capability, and
// aggregate the final report.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/repoforge/repoforge/internal/agent"
	"github.com/repoforge/repoforge/internal/analysis"
	"github.com/repoforge/repoforge/internal/chunk"
	"github.com/repoforge/repoforge/internal/config"
	"github.com/repoforge/repoforge/internal/events"
	"github.com/repoforge/repoforge/internal/gitrepo"
	"github.com/repoforge/repoforge/internal/notify"
	"github.com/repoforge/repoforge/internal/persistence"
	"github.com/repoforge/repoforge/internal/planner"
)

// Config wires the coordinator's collaborators. Dispatcher, VersionControl
// and Validator are required; Notifier, Recorder and Bus may be nil.
type Config struct {
	Orchestration  *config.OrchestratorConfig
	Tables         *config.Tables
	Dispatcher     Dispatcher
	VersionControl VersionControl
	Validator      Validator
	Notifier       notify.Notifier
	Recorder       Recorder
	Bus            *events.Bus
}

// Coordinator owns the task collection and analysis profile of a run. All
// working-copy mutation happens here, one task at a time; only chunk
// dispatches within a task run concurrently.
type Coordinator struct {
	cfg      Config
	splitter *chunk.Splitter
	analyzer *analysis.Analyzer
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Noop{}
	}
	return &Coordinator{
		cfg:      cfg,
		splitter: chunk.NewSplitter(cfg.Orchestration.Chunking),
		analyzer: analysis.New(cfg.Tables),
	}
}

// Execute runs the pipeline end to end and always returns a report in which
// every planned task has a definite terminal status. The returned error is
// non-nil only for run-level aborts.
func (c *Coordinator) Execute(ctx context.Context, req Request) (*Report, error) {
	report := &Report{
		RunID:   uuid.NewString()[:8],
		RepoURL: req.RepoURL,
		Branch:  req.Branch,
		Started: time.Now(),
	}

	if c.cfg.Recorder != nil {
		if err := c.cfg.Recorder.CreateRun(ctx, report.RunID, req.RepoURL, req.Branch, req.Description); err != nil {
			log.Printf("WARNING: failed to record run: %v", err)
		}
	}
	c.setStage(ctx, report.RunID, StageCreated)

	// Stage: analyzing.
	c.setStage(ctx, report.RunID, StageAnalyzing)
	wc, err := c.cfg.VersionControl.Clone(ctx, req.RepoURL, req.Branch)
	if err != nil {
		return c.abort(ctx, report, nil, req, fmt.Sprintf("clone failed: %v", err), err)
	}
	// The clone is released at exactly this point, or deliberately retained.
	defer func() {
		if c.cfg.Orchestration.Execution.KeepClone {
			log.Printf("retaining working copy at %s", wc.Path)
			return
		}
		if err := c.cfg.VersionControl.Remove(wc); err != nil {
			log.Printf("WARNING: failed to remove working copy: %v", err)
		}
	}()

	profile, err := c.analyzer.Analyze(wc.Path)
	if err != nil {
		return c.abort(ctx, report, nil, req, fmt.Sprintf("analysis failed: %v", err), err)
	}

	viability := analysis.AssessViability(profile)
	c.notify(notify.Notification{
		Title:   "Repository analyzed",
		Message: fmt.Sprintf("%s: confidence %.0f%% (%s)", req.RepoURL, viability.Confidence, viability.Reasoning),
		Kind:    notify.KindInfo,
		RunID:   report.RunID,
	})
	if !viability.Viable {
		err := fmt.Errorf("request not viable: %s", viability.Reasoning)
		return c.abort(ctx, report, nil, req, err.Error(), err)
	}

	// Stage: planning.
	c.setStage(ctx, report.RunID, StagePlanning)
	plan, err := c.plan(ctx, report.RunID, req, profile)
	if err != nil {
		return c.abort(ctx, report, nil, req, fmt.Sprintf("planning failed: %v", err), err)
	}

	featureBranch := fmt.Sprintf("feature/auto-update-%s", time.Now().Format("2006-01-02-15-04-05"))
	if err := c.cfg.VersionControl.CreateBranch(ctx, wc, featureBranch); err != nil {
		return c.abort(ctx, report, plan, req, fmt.Sprintf("branching failed: %v", err), err)
	}
	report.FeatureBranch = featureBranch

	// Stage: executing. Tasks run strictly in dependency order; only chunks
	// within one task are dispatched concurrently.
	c.setStage(ctx, report.RunID, StageExecuting)
	for _, taskID := range plan.Order {
		if ctx.Err() != nil {
			return c.abort(ctx, report, plan, req, "run canceled", ctx.Err())
		}

		task, ok := plan.DAG.Get(taskID)
		if !ok || task.Status.Terminal() {
			continue // Already skipped by a failed dependency
		}
		if !plan.DAG.Ready(taskID) {
			// Execution order guarantees dependencies ran first, so an
			// unready task here means a dependency did not complete.
			_, _ = plan.DAG.MarkFailed(taskID, "dependency not completed")
			continue
		}
		c.executeTask(ctx, report.RunID, plan, taskID, wc)
		c.persistTasks(ctx, report.RunID, plan)
	}

	// Stage: reporting.
	c.setStage(ctx, report.RunID, StageReporting)
	c.finishReport(report, plan)
	c.persistTasks(ctx, report.RunID, plan)
	c.notify(summaryNotification(report))
	if c.cfg.Recorder != nil {
		if err := c.cfg.Recorder.FinishRun(ctx, report.RunID, string(report.Status)); err != nil {
			log.Printf("WARNING: failed to record run finish: %v", err)
		}
	}
	c.publish(events.RunFinishedEvent{RunID: report.RunID, Status: string(report.Status), Timestamp: time.Now()})
	c.setStage(ctx, report.RunID, StageDone)
	return report, nil
}

// plan asks the planning agent to decompose the request, then categorizes,
// prioritizes and dependency-orders the result.
func (c *Coordinator) plan(ctx context.Context, runID string, req Request, profile *analysis.Profile) (*planner.Plan, error) {
	inv := &agent.Invocation{
		TaskID: "planning",
		Request: agent.Request{
			System:      "You are a software architect decomposing change requests into implementation tasks.",
			Prompt:      planningPrompt(req, profile),
			MaxOutput:   c.cfg.Orchestration.Completion.MaxOutput,
			Temperature: c.cfg.Orchestration.Completion.Temperature,
		},
	}
	err := c.cfg.Dispatcher.Dispatch(ctx, inv, agent.Constraints{ExpectJSON: true})
	c.recordInvocation(ctx, runID, inv)
	if err != nil {
		return nil, err
	}

	recs, err := planner.ParseRecommendations(inv.Output)
	if err != nil {
		return nil, err
	}
	return planner.Decompose(recs, profile, c.cfg.Tables)
}

// executeTask drives one task to a terminal status, regenerating up to the
// configured task retry limit when validation fails.
func (c *Coordinator) executeTask(ctx context.Context, runID string, plan *planner.Plan, taskID string, wc *gitrepo.WorkingCopy) {
	if err := plan.DAG.MarkInProgress(taskID); err != nil {
		log.Printf("WARNING: cannot start task %s: %v", taskID, err)
		return
	}

	maxTaskRetries := c.cfg.Orchestration.Retry.MaxTaskRetries
	diagnostics := ""
	started := time.Now()

	for attempt := 1; ; attempt++ {
		task, _ := plan.DAG.Get(taskID)
		c.publish(events.TaskStartedEvent{
			RunID: runID, TaskID: taskID, Title: task.Title,
			Attempt: attempt, Timestamp: time.Now(),
		})

		failReason, unhealthy := c.attemptTask(ctx, runID, task, wc, diagnostics)
		if failReason == "" {
			_ = plan.DAG.MarkCompleted(taskID)
			c.publish(events.TaskCompletedEvent{
				RunID: runID, TaskID: taskID,
				Duration: time.Since(started), Timestamp: time.Now(),
			})
			return
		}

		// Reset the working copy so a failed attempt leaves no edits behind.
		if err := c.cfg.VersionControl.Reset(ctx, wc); err != nil {
			log.Printf("WARNING: failed to reset working copy after task %s: %v", taskID, err)
		}

		// An unhealthy capability fails the task immediately: burning task
		// retries against an open circuit only wastes the cool-down.
		if unhealthy || ctx.Err() != nil || attempt > maxTaskRetries {
			c.failTask(runID, plan, taskID, failReason)
			return
		}

		diagnostics = failReason
		if _, err := plan.DAG.IncrementRetry(taskID); err != nil {
			log.Printf("WARNING: %v", err)
		}
		plan.DAG.AddNote(taskID, fmt.Sprintf("attempt %d failed: %s", attempt, firstLine(failReason)))
	}
}

// attemptTask runs one full cycle of chunking, dispatching, merging, applying
// and validating. It returns a failure reason ("" on success) and whether the
// failure came from an unhealthy completion capability.
func (c *Coordinator) attemptTask(ctx context.Context, runID string, task *planner.Task, wc *gitrepo.WorkingCopy, diagnostics string) (string, bool) {
	// An already-open circuit fails the attempt up front; every chunk dispatch
	// below would only fast-fail against it anyway.
	if !c.cfg.Dispatcher.Healthy() {
		return "completion capability unhealthy", true
	}

	files, err := c.taskContext(task, wc)
	if err != nil {
		return fmt.Sprintf("gathering context: %v", err), false
	}

	chunks, err := c.splitter.Split(task.ID, files)
	if err != nil {
		return fmt.Sprintf("chunking: %v", err), false
	}

	// Dispatch chunks concurrently up to the fan-out limit. Chunk prompts are
	// independent until merge; the merge below never proceeds before every
	// chunk reached a terminal outcome.
	invocations := make([]*agent.Invocation, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	fanOut := c.cfg.Orchestration.Execution.ChunkFanOut
	if fanOut <= 0 {
		fanOut = 1
	}
	g.SetLimit(fanOut)

	for i, ch := range chunks {
		inv := &agent.Invocation{
			TaskID:     task.ID,
			ChunkIndex: ch.Index,
			Request: agent.Request{
				System:      systemPrompts[task.Category],
				Prompt:      chunkPrompt(task, ch, len(chunks), diagnostics),
				MaxOutput:   c.cfg.Orchestration.Completion.MaxOutput,
				Temperature: c.cfg.Orchestration.Completion.Temperature,
			},
		}
		invocations[i] = inv
		g.Go(func() error {
			// Dispatch errors surface through the invocation outcome; they
			// must not cancel sibling chunk dispatches.
			_ = c.cfg.Dispatcher.Dispatch(gctx, inv, agent.Constraints{})
			c.publish(events.ChunkDoneEvent{
				RunID: runID, TaskID: task.ID, Index: inv.ChunkIndex,
				Total: len(chunks), Outcome: string(inv.Outcome), Timestamp: time.Now(),
			})
			return nil
		})
	}
	_ = g.Wait()

	outcomes := make([]chunk.Outcome, len(invocations))
	unhealthy := false
	for i, inv := range invocations {
		c.recordInvocation(ctx, runID, inv)
		outcomes[i] = chunk.Outcome{
			Index:  inv.ChunkIndex,
			OK:     inv.Outcome == agent.OutcomeSucceeded,
			Output: inv.Output,
		}
		if inv.Outcome == agent.OutcomeUnhealthy {
			unhealthy = true
		}
	}

	merged, err := chunk.Merge(task.ID, len(chunks), outcomes)
	if err != nil {
		return err.Error(), unhealthy
	}

	edits := parseFileEdits(task, merged.Output)
	if err := c.cfg.VersionControl.Apply(ctx, wc, edits); err != nil {
		return fmt.Sprintf("applying edits: %v", err), false
	}

	result, err := c.cfg.Validator.Run(ctx, wc.Path)
	if err != nil {
		return fmt.Sprintf("validation error: %v", err), false
	}
	if !result.Passed {
		return fmt.Sprintf("tests failed (%s):\n%s", result.Command, result.Log), false
	}

	message := fmt.Sprintf("%s: %s", task.ID, task.Title)
	if _, err := c.cfg.VersionControl.Commit(ctx, wc, message); err != nil {
		return fmt.Sprintf("committing: %v", err), false
	}
	return "", false
}

// taskContext reads the files a task's prompt needs from the working copy.
// A task targeting a file that does not exist yet gets an empty slot for it.
func (c *Coordinator) taskContext(task *planner.Task, wc *gitrepo.WorkingCopy) ([]chunk.File, error) {
	path := filepath.Join(wc.Path, filepath.FromSlash(task.TargetPath))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []chunk.File{{Path: task.TargetPath, Content: ""}}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", task.TargetPath, err)
	}
	return []chunk.File{{Path: task.TargetPath, Content: string(data)}}, nil
}

// failTask marks a task failed and publishes skip events for every dependent
// the failure cascaded to.
func (c *Coordinator) failTask(runID string, plan *planner.Plan, taskID, reason string) {
	skipped, err := plan.DAG.MarkFailed(taskID, firstLine(reason))
	if err != nil {
		log.Printf("WARNING: %v", err)
		return
	}
	c.publish(events.TaskFailedEvent{RunID: runID, TaskID: taskID, Reason: firstLine(reason), Timestamp: time.Now()})
	for _, id := range skipped {
		c.publish(events.TaskSkippedEvent{RunID: runID, TaskID: id, FailedDep: taskID, Timestamp: time.Now()})
	}
}

// abort finalizes a run that cannot proceed. Planned tasks that never ran are
// marked Skipped so the report still enumerates every task.
func (c *Coordinator) abort(ctx context.Context, report *Report, plan *planner.Plan, req Request, reason string, cause error) (*Report, error) {
	log.Printf("run %s aborted: %s", report.RunID, reason)
	report.Status = StatusAborted
	report.Abort = reason

	if plan != nil {
		c.fillOutcomes(report, plan)
		c.persistTasks(ctx, report.RunID, plan)
	}
	report.Finished = time.Now()

	c.notify(notify.Notification{
		Title:   "Run aborted",
		Message: fmt.Sprintf("%s\n%s", req.RepoURL, reason),
		Kind:    notify.KindError,
		RunID:   report.RunID,
	})
	if c.cfg.Recorder != nil {
		if err := c.cfg.Recorder.FinishRun(ctx, report.RunID, string(StatusAborted)); err != nil {
			log.Printf("WARNING: failed to record run finish: %v", err)
		}
	}
	c.publish(events.RunFinishedEvent{RunID: report.RunID, Status: string(StatusAborted), Timestamp: time.Now()})
	c.setStage(ctx, report.RunID, StageAborted)
	return report, fmt.Errorf("run aborted: %s: %w", reason, cause)
}

// finishReport derives task outcomes and the overall status.
func (c *Coordinator) finishReport(report *Report, plan *planner.Plan) {
	c.fillOutcomes(report, plan)
	report.Finished = time.Now()

	completed, failed := 0, 0
	for _, t := range report.Tasks {
		switch t.Status {
		case planner.StatusCompleted:
			completed++
		case planner.StatusFailed, planner.StatusSkipped:
			failed++
		}
	}
	switch {
	case failed == 0:
		report.Status = StatusSuccess
	case completed == 0:
		report.Status = StatusFailure
	default:
		report.Status = StatusPartialFailure
	}
}

// fillOutcomes copies task states into the report in plan order. Tasks that
// never reached a terminal status report as Skipped.
func (c *Coordinator) fillOutcomes(report *Report, plan *planner.Plan) {
	report.Tasks = report.Tasks[:0]
	for _, id := range plan.Order {
		task, ok := plan.DAG.Get(id)
		if !ok {
			continue
		}
		status := task.Status
		if !status.Terminal() {
			status = planner.StatusSkipped
		}
		report.Tasks = append(report.Tasks, TaskOutcome{
			TaskID:      task.ID,
			Title:       task.Title,
			Category:    task.Category,
			Status:      status,
			Attempts:    task.RetryCount + 1,
			Diagnostics: task.Notes,
		})
	}
}

func (c *Coordinator) persistTasks(ctx context.Context, runID string, plan *planner.Plan) {
	if c.cfg.Recorder == nil {
		return
	}
	for _, task := range plan.DAG.Tasks() {
		rec := persistence.TaskRecord{
			RunID:    runID,
			TaskID:   task.ID,
			Title:    task.Title,
			Category: string(task.Category),
			Priority: task.Priority.String(),
			Status:   string(task.Status),
			Attempts: task.RetryCount + 1,
			Notes:    task.Notes,
		}
		if err := c.cfg.Recorder.SaveTask(ctx, rec); err != nil {
			log.Printf("WARNING: failed to persist task %s: %v", task.ID, err)
		}
	}
}

func (c *Coordinator) recordInvocation(ctx context.Context, runID string, inv *agent.Invocation) {
	if c.cfg.Recorder == nil {
		return
	}
	err := c.cfg.Recorder.RecordInvocation(ctx, runID, inv.TaskID, inv.ChunkIndex,
		inv.Attempts, string(inv.Outcome), inv.Latency)
	if err != nil {
		log.Printf("WARNING: failed to record invocation: %v", err)
	}
}

func (c *Coordinator) setStage(ctx context.Context, runID string, stage Stage) {
	c.publish(events.RunStageEvent{RunID: runID, Stage: string(stage), Timestamp: time.Now()})
	if c.cfg.Recorder != nil && stage != StageDone && stage != StageAborted {
		if err := c.cfg.Recorder.UpdateRunStatus(ctx, runID, string(stage)); err != nil {
			log.Printf("WARNING: failed to record stage: %v", err)
		}
	}
}

func (c *Coordinator) publish(e events.Event) {
	if c.cfg.Bus != nil {
		c.cfg.Bus.Publish(e)
	}
}

// notify sends a notification; delivery failures are logged, never escalated.
func (c *Coordinator) notify(n notify.Notification) {
	if err := c.cfg.Notifier.Send(n); err != nil {
		log.Printf("WARNING: notification failed: %v", err)
	}
}

func summaryNotification(report *Report) notify.Notification {
	kind := notify.KindSuccess
	if report.Status != StatusSuccess {
		kind = notify.KindWarning
	}
	if report.Status == StatusFailure {
		kind = notify.KindError
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s finished: %s\n", report.RunID, report.Status)
	fmt.Fprintf(&b, "Repository: %s\n", report.RepoURL)
	if report.FeatureBranch != "" {
		fmt.Fprintf(&b, "Branch: %s\n", report.FeatureBranch)
	}
	b.WriteString("\nTasks:\n")
	for _, t := range report.Tasks {
		fmt.Fprintf(&b, "- [%s] %s (%s, %d attempt(s)): %s\n",
			t.Status, t.TaskID, t.Category, t.Attempts, t.Title)
	}

	return notify.Notification{
		Title:   fmt.Sprintf("repoforge run %s", report.Status),
		Message: b.String(),
		Kind:    kind,
		RunID:   report.RunID,
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

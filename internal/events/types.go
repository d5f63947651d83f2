package events

import "time"

// Event is implemented by all pipeline events.
type Event interface {
	EventType() string
}

const (
	TypeRunStage      = "run.stage"
	TypeTaskStarted   = "task.started"
	TypeTaskCompleted = "task.completed"
	TypeTaskFailed    = "task.failed"
	TypeTaskSkipped   = "task.skipped"
	TypeChunkDone     = "chunk.done"
	TypeRunFinished   = "run.finished"
)

// RunStageEvent marks a coordinator state transition.
type RunStageEvent struct {
	RunID     string
	Stage     string
	Timestamp time.Time
}

func (RunStageEvent) EventType() string { return TypeRunStage }

// TaskStartedEvent is published when a task begins execution.
type TaskStartedEvent struct {
	RunID     string
	TaskID    string
	Title     string
	Attempt   int // 1-based; >1 means a retry after failed validation
	Timestamp time.Time
}

func (TaskStartedEvent) EventType() string { return TypeTaskStarted }

// TaskCompletedEvent is published when a task passes validation.
type TaskCompletedEvent struct {
	RunID     string
	TaskID    string
	Duration  time.Duration
	Timestamp time.Time
}

func (TaskCompletedEvent) EventType() string { return TypeTaskCompleted }

// TaskFailedEvent is published when a task exhausts its retries.
type TaskFailedEvent struct {
	RunID     string
	TaskID    string
	Reason    string
	Timestamp time.Time
}

func (TaskFailedEvent) EventType() string { return TypeTaskFailed }

// TaskSkippedEvent is published for each dependent skipped after a failure.
type TaskSkippedEvent struct {
	RunID     string
	TaskID    string
	FailedDep string
	Timestamp time.Time
}

func (TaskSkippedEvent) EventType() string { return TypeTaskSkipped }

// ChunkDoneEvent is published when a chunk dispatch reaches a terminal
// outcome.
type ChunkDoneEvent struct {
	RunID     string
	TaskID    string
	Index     int
	Total     int
	Outcome   string
	Timestamp time.Time
}

func (ChunkDoneEvent) EventType() string { return TypeChunkDone }

// RunFinishedEvent carries the overall status of a finished run.
type RunFinishedEvent struct {
	RunID     string
	Status    string
	Timestamp time.Time
}

func (RunFinishedEvent) EventType() string { return TypeRunFinished }

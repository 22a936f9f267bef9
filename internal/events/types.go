package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	Topic() string
	EventType() string
	RunID() string
}

// Topic constants
const (
	TopicRun  = "run"
	TopicTask = "task"
)

// Event type constants
const (
	EventTypeRunStarted    = "run.started"
	EventTypeRunProgress   = "run.progress"
	EventTypeRunCompleted  = "run.completed"
	EventTypeWaveStarted   = "wave.started"
	EventTypeWaveCompleted = "wave.completed"
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskSucceeded = "task.succeeded"
	EventTypeTaskFailed    = "task.failed"
)

// RunStartedEvent is published once the graph is validated and scheduled.
type RunStartedEvent struct {
	Run       string
	Tasks     int
	Waves     int
	Timestamp time.Time
}

func (e RunStartedEvent) Topic() string     { return TopicRun }
func (e RunStartedEvent) EventType() string { return EventTypeRunStarted }
func (e RunStartedEvent) RunID() string     { return e.Run }

// WaveStartedEvent is published before a wave's tasks are launched.
type WaveStartedEvent struct {
	Run       string
	Index     int
	TaskIDs   []string
	Timestamp time.Time
}

func (e WaveStartedEvent) Topic() string     { return TopicRun }
func (e WaveStartedEvent) EventType() string { return EventTypeWaveStarted }
func (e WaveStartedEvent) RunID() string     { return e.Run }

// WaveCompletedEvent is published after every member of a wave settled.
type WaveCompletedEvent struct {
	Run       string
	Index     int
	Failed    int
	Duration  time.Duration
	Timestamp time.Time
}

func (e WaveCompletedEvent) Topic() string     { return TopicRun }
func (e WaveCompletedEvent) EventType() string { return EventTypeWaveCompleted }
func (e WaveCompletedEvent) RunID() string     { return e.Run }

// RunProgressEvent carries task counts per status.
type RunProgressEvent struct {
	Run       string
	Total     int
	Succeeded int
	Running   int
	Failed    int
	Pending   int
	Timestamp time.Time
}

func (e RunProgressEvent) Topic() string     { return TopicRun }
func (e RunProgressEvent) EventType() string { return EventTypeRunProgress }
func (e RunProgressEvent) RunID() string     { return e.Run }

// RunCompletedEvent is published when the run settles, including validation failures.
type RunCompletedEvent struct {
	Run         string
	Success     bool
	Parallelism int
	Duration    time.Duration
	Err         string
	Timestamp   time.Time
}

func (e RunCompletedEvent) Topic() string     { return TopicRun }
func (e RunCompletedEvent) EventType() string { return EventTypeRunCompleted }
func (e RunCompletedEvent) RunID() string     { return e.Run }

// TaskStartedEvent is published when a task begins execution.
type TaskStartedEvent struct {
	Run       string
	ID        string
	Name      string
	Agent     string
	Timestamp time.Time
}

func (e TaskStartedEvent) Topic() string     { return TopicTask }
func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) RunID() string     { return e.Run }

// TaskSucceededEvent is published when a task completes successfully.
type TaskSucceededEvent struct {
	Run       string
	ID        string
	Output    any
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskSucceededEvent) Topic() string     { return TopicTask }
func (e TaskSucceededEvent) EventType() string { return EventTypeTaskSucceeded }
func (e TaskSucceededEvent) RunID() string     { return e.Run }

// TaskFailedEvent is published when a task fails.
type TaskFailedEvent struct {
	Run       string
	ID        string
	Err       string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) Topic() string     { return TopicTask }
func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) RunID() string     { return e.Run }

package coordinator

import (
	"time"
)

// TaskResult is the normalized outcome of one task that reached running.
type TaskResult struct {
	TaskID     string        `json:"taskId"`
	Agent      string        `json:"agent"`
	Success    bool          `json:"success"`
	Output     any           `json:"output"`
	Error      string        `json:"error,omitempty"`
	DurationMs int64         `json:"durationMs"`
	Duration   time.Duration `json:"-"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
}

// RunResult is everything a run produced. Results are in wave order, then
// input order within a wave; tasks in waves that never started are absent.
type RunResult struct {
	RunID           string        `json:"runId"`
	Success         bool          `json:"success"`
	Results         []TaskResult  `json:"results"`
	Parallelism     int           `json:"parallelism"`
	Waves           int           `json:"waves"`
	SkippedWaves    int           `json:"skippedWaves"`
	TotalDurationMs int64         `json:"totalDurationMs"`
	TotalDuration   time.Duration `json:"-"`
	StartedAt       time.Time     `json:"startedAt"`
	Error           string        `json:"error,omitempty"`

	// Err keeps the typed error for errors.Is / errors.As.
	Err error `json:"-"`
}

// Result returns the result for taskID, if the task ran.
func (r RunResult) Result(taskID string) (TaskResult, bool) {
	for _, res := range r.Results {
		if res.TaskID == taskID {
			return res, true
		}
	}
	return TaskResult{}, false
}

// Failed returns the results of tasks that did not succeed.
func (r RunResult) Failed() []TaskResult {
	var failed []TaskResult
	for _, res := range r.Results {
		if !res.Success {
			failed = append(failed, res)
		}
	}
	return failed
}

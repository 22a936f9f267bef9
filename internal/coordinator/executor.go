package coordinator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aristath/coordinator/internal/agent"
	"github.com/aristath/coordinator/internal/scheduler"
)

// Retrier wraps an agent invocation with a retry policy.
// key identifies the agent so policies can keep per-agent state.
type Retrier interface {
	Execute(ctx context.Context, key string, fn func(ctx context.Context) (agent.Outcome, error)) (agent.Outcome, error)
}

// passthrough invokes fn once.
type passthrough struct{}

func (passthrough) Execute(ctx context.Context, _ string, fn func(ctx context.Context) (agent.Outcome, error)) (agent.Outcome, error) {
	return fn(ctx)
}

// TaskExecutor runs a single task through its resolved agent.
// Every failure path, including a panicking agent, becomes a failed TaskResult.
type TaskExecutor struct {
	resolver agent.Resolver
	retrier  Retrier
	locks    *scheduler.ResourceLocks
	logger   *zap.Logger
}

// NewTaskExecutor creates a TaskExecutor. retrier, locks and logger are optional.
func NewTaskExecutor(resolver agent.Resolver, retrier Retrier, locks *scheduler.ResourceLocks, logger *zap.Logger) *TaskExecutor {
	if retrier == nil {
		retrier = passthrough{}
	}
	if locks == nil {
		locks = scheduler.NewResourceLocks()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskExecutor{
		resolver: resolver,
		retrier:  retrier,
		locks:    locks,
		logger:   logger,
	}
}

// Run executes task and returns its result. It never panics.
func (e *TaskExecutor) Run(ctx context.Context, task *scheduler.Task) TaskResult {
	return e.run(ctx, task, runHooks{})
}

// runHooks observe a task's lifecycle. started fires once the task holds its
// resources, just before the agent is invoked; finished fires with the final
// result while the resources are still held. On early failures both still
// fire, in order.
type runHooks struct {
	started  func()
	finished func(TaskResult)
}

func (e *TaskExecutor) run(ctx context.Context, task *scheduler.Task, hooks runHooks) (res TaskResult) {
	start := time.Now()
	res = TaskResult{TaskID: task.ID, Agent: task.Agent, StartedAt: start}

	begun := false
	begin := func() {
		if hooks.started != nil && !begun {
			begun = true
			hooks.started()
		}
	}
	var release func()

	defer func() {
		r := recover()
		begin()
		if r != nil {
			e.logger.Error("agent panicked", zap.String("task_id", task.ID), zap.String("agent", task.Agent), zap.Any("panic", r))
			res.Success = false
			res.Output = nil
			res.Error = fmt.Sprintf("agent %q panicked: %v", task.Agent, r)
		}
		res.FinishedAt = time.Now()
		res.Duration = res.FinishedAt.Sub(start)
		res.DurationMs = res.Duration.Milliseconds()

		if hooks.finished != nil {
			hooks.finished(res)
		}
		if release != nil {
			release()
		}
	}()

	exec, ok, err := e.resolver.Resolve(ctx, task.Agent)
	if err != nil {
		res.Error = fmt.Sprintf("resolving agent %q: %v", task.Agent, err)
		return res
	}
	if !ok {
		res.Error = fmt.Sprintf("%v: %q", ErrExecutorNotFound, task.Agent)
		return res
	}

	release = e.locks.Acquire(task.Resources)
	begin()

	out, err := e.retrier.Execute(ctx, task.Agent, func(ctx context.Context) (agent.Outcome, error) {
		return exec.Execute(ctx, task.Input)
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Success = out.Success
	res.Output = out.Output
	if !out.Success {
		res.Error = out.Error
		if res.Error == "" {
			res.Error = fmt.Sprintf("agent %q reported failure", task.Agent)
		}
	}
	return res
}

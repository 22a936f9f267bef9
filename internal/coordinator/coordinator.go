package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/coordinator/internal/agent"
	"github.com/aristath/coordinator/internal/events"
	"github.com/aristath/coordinator/internal/metrics"
	"github.com/aristath/coordinator/internal/scheduler"
)

var (
	// ErrExecutorNotFound marks a task whose agent name did not resolve.
	ErrExecutorNotFound = errors.New("no executor registered for agent")

	// ErrTaskFailed marks a run stopped by a failed task.
	ErrTaskFailed = errors.New("task failed")
)

// Journal records settled runs.
type Journal interface {
	Record(ctx context.Context, result RunResult) error
}

// Options configures a Coordinator. Only Resolver is required.
type Options struct {
	Resolver         agent.Resolver
	Retrier          Retrier
	Locks            *scheduler.ResourceLocks
	Logger           *zap.Logger
	Bus              *events.EventBus
	Metrics          *metrics.Collector
	Journal          Journal
	ConcurrencyLimit int           // Max in-flight tasks per wave; 0 means the whole wave
	NewRunID         func() string // Defaults to random UUIDs
}

// Coordinator validates a task set, levels it into waves and runs the waves
// in order. Tasks of one wave run concurrently; the next wave starts only
// after every member of the current one settled, and only if all succeeded.
type Coordinator struct {
	executor *TaskExecutor
	logger   *zap.Logger
	bus      *events.EventBus
	metrics  *metrics.Collector
	journal  Journal
	limit    int
	newRunID func() string
}

// New creates a Coordinator.
func New(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	newRunID := opts.NewRunID
	if newRunID == nil {
		newRunID = func() string { return uuid.NewString() }
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = agent.NewRegistry(logger)
	}

	return &Coordinator{
		executor: NewTaskExecutor(resolver, opts.Retrier, opts.Locks, logger),
		logger:   logger,
		bus:      opts.Bus,
		metrics:  opts.Metrics,
		journal:  opts.Journal,
		limit:    opts.ConcurrencyLimit,
		newRunID: newRunID,
	}
}

// Plan validates specs and levels them into waves without running anything.
func Plan(specs []scheduler.TaskSpec) (*scheduler.Graph, []scheduler.Wave, error) {
	tasks := scheduler.NewTasks(specs)
	if err := scheduler.Validate(tasks); err != nil {
		return nil, nil, err
	}

	graph, err := scheduler.NewGraph(tasks)
	if err != nil {
		return nil, nil, err
	}

	waves, err := scheduler.Schedule(graph)
	if err != nil {
		return nil, nil, err
	}
	return graph, waves, nil
}

// Run executes specs and returns the settled outcome. Per-task failures are
// reported in the result, never as panics or returned errors.
func (c *Coordinator) Run(ctx context.Context, specs []scheduler.TaskSpec) RunResult {
	start := time.Now()
	result := RunResult{
		RunID:     c.newRunID(),
		Results:   []TaskResult{},
		StartedAt: start,
	}
	logger := c.logger.With(zap.String("run_id", result.RunID))

	graph, waves, err := Plan(specs)
	if err != nil {
		logger.Warn("task graph rejected", zap.Error(err))
		c.metrics.ValidationFailed(validationReason(err))
		return c.finish(ctx, logger, result, start, err)
	}

	logger.Info("run started", zap.Int("tasks", graph.Len()), zap.Int("waves", len(waves)))
	c.bus.Publish(events.RunStartedEvent{
		Run:       result.RunID,
		Tasks:     graph.Len(),
		Waves:     len(waves),
		Timestamp: time.Now(),
	})

	var runErr error
	for i, wave := range waves {
		if err := ctx.Err(); err != nil {
			result.SkippedWaves = len(waves) - i
			runErr = fmt.Errorf("run cancelled before wave %d: %w", i, err)
			break
		}

		waveResults := c.runWave(ctx, logger, result.RunID, graph, i, wave)
		result.Results = append(result.Results, waveResults...)
		result.Waves++
		result.Parallelism = max(result.Parallelism, len(wave))

		if failed := firstFailure(waveResults); failed != nil {
			result.SkippedWaves = len(waves) - i - 1
			runErr = fmt.Errorf("%w: %q in wave %d: %s", ErrTaskFailed, failed.TaskID, i, failed.Error)
			break
		}
	}

	if result.SkippedWaves > 0 {
		logger.Warn("remaining waves skipped", zap.Int("skipped", result.SkippedWaves))
		c.metrics.WavesSkipped(result.SkippedWaves)
	}

	return c.finish(ctx, logger, result, start, runErr)
}

// runWave launches every task of the wave and waits for all of them.
// Each task turns running once admitted and settles as soon as it finishes.
func (c *Coordinator) runWave(ctx context.Context, logger *zap.Logger, runID string, graph *scheduler.Graph, index int, wave scheduler.Wave) []TaskResult {
	waveStart := time.Now()
	ids := wave.IDs()

	logger.Debug("wave started", zap.Int("wave", index), zap.Strings("tasks", ids))
	c.bus.Publish(events.WaveStartedEvent{Run: runID, Index: index, TaskIDs: ids, Timestamp: waveStart})

	results := make([]TaskResult, len(wave))

	var g errgroup.Group
	if c.limit > 0 {
		g.SetLimit(c.limit)
	}

	for i, task := range wave {
		g.Go(func() error {
			// A task is running once it holds a group slot and its resources,
			// and settles before releasing them
			results[i] = c.executor.run(ctx, task, runHooks{
				started: func() {
					if err := graph.MarkRunning(task.ID); err != nil {
						logger.Error("marking task running", zap.String("task_id", task.ID), zap.Error(err))
					}
					c.metrics.TaskStarted()
					c.bus.Publish(events.TaskStartedEvent{
						Run:       runID,
						ID:        task.ID,
						Name:      task.Name,
						Agent:     task.Agent,
						Timestamp: time.Now(),
					})
					c.publishProgress(runID, graph)
				},
				finished: func(res TaskResult) {
					var err error
					if res.Success {
						err = graph.MarkSucceeded(task.ID)
					} else {
						err = graph.MarkFailed(task.ID)
					}
					if err != nil {
						logger.Error("recording task status", zap.String("task_id", task.ID), zap.Error(err))
					}
				},
			})
			res := results[i]

			c.metrics.TaskFinished(task.Agent, res.Success, res.Duration)
			c.reportTask(logger, runID, index, res)
			// Task errors live in the result, never in the group
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}

	duration := time.Since(waveStart)
	c.metrics.WaveCompleted()
	c.publishProgress(runID, graph)
	c.bus.Publish(events.WaveCompletedEvent{
		Run:       runID,
		Index:     index,
		Failed:    failed,
		Duration:  duration,
		Timestamp: time.Now(),
	})
	logger.Debug("wave completed", zap.Int("wave", index), zap.Int("failed", failed), zap.Duration("duration", duration))

	return results
}

func (c *Coordinator) reportTask(logger *zap.Logger, runID string, wave int, res TaskResult) {
	fields := []zap.Field{
		zap.String("task_id", res.TaskID),
		zap.String("agent", res.Agent),
		zap.Int("wave", wave),
		zap.Duration("duration", res.Duration),
	}

	if res.Success {
		logger.Info("task succeeded", fields...)
		c.bus.Publish(events.TaskSucceededEvent{
			Run:       runID,
			ID:        res.TaskID,
			Output:    res.Output,
			Duration:  res.Duration,
			Timestamp: res.FinishedAt,
		})
		return
	}

	logger.Warn("task failed", append(fields, zap.String("error", res.Error))...)
	c.bus.Publish(events.TaskFailedEvent{
		Run:       runID,
		ID:        res.TaskID,
		Err:       res.Error,
		Duration:  res.Duration,
		Timestamp: res.FinishedAt,
	})
}

func (c *Coordinator) publishProgress(runID string, graph *scheduler.Graph) {
	counts := graph.Counts()
	c.bus.Publish(events.RunProgressEvent{
		Run:       runID,
		Total:     graph.Len(),
		Succeeded: counts[scheduler.TaskSucceeded],
		Running:   counts[scheduler.TaskRunning],
		Failed:    counts[scheduler.TaskFailed],
		Pending:   counts[scheduler.TaskPending],
		Timestamp: time.Now(),
	})
}

// finish stamps totals, reports the run and hands it to the journal.
func (c *Coordinator) finish(ctx context.Context, logger *zap.Logger, result RunResult, start time.Time, err error) RunResult {
	result.TotalDuration = time.Since(start)
	result.TotalDurationMs = result.TotalDuration.Milliseconds()
	result.Success = err == nil
	if err != nil {
		result.Err = err
		result.Error = err.Error()
	}

	c.metrics.RunCompleted(result.Success, result.Parallelism, result.TotalDuration)
	c.bus.Publish(events.RunCompletedEvent{
		Run:         result.RunID,
		Success:     result.Success,
		Parallelism: result.Parallelism,
		Duration:    result.TotalDuration,
		Err:         result.Error,
		Timestamp:   time.Now(),
	})

	logger.Info("run completed",
		zap.Bool("success", result.Success),
		zap.Int("results", len(result.Results)),
		zap.Int("parallelism", result.Parallelism),
		zap.Duration("duration", result.TotalDuration))

	if c.journal != nil {
		// The caller's context may already be cancelled; the record should still land
		if jerr := c.journal.Record(context.WithoutCancel(ctx), result); jerr != nil {
			logger.Error("recording run in journal", zap.Error(jerr))
		}
	}

	return result
}

func firstFailure(results []TaskResult) *TaskResult {
	for i := range results {
		if !results[i].Success {
			return &results[i]
		}
	}
	return nil
}

func validationReason(err error) string {
	var (
		cycle   *scheduler.CircularDependencyError
		unknown *scheduler.UnknownDependencyError
		dup     *scheduler.DuplicateIDError
	)
	switch {
	case errors.As(err, &cycle):
		return "cycle"
	case errors.As(err, &unknown):
		return "unknown_dependency"
	case errors.As(err, &dup):
		return "duplicate_id"
	default:
		return "invalid"
	}
}

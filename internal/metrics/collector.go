package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector records scheduler metrics in Prometheus form.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	runParallelism  prometheus.Histogram
	wavesTotal      prometheus.Counter
	wavesSkipped    prometheus.Counter
	tasksTotal      *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	activeTasks     prometheus.Gauge
	validationFails *prometheus.CounterVec
}

// NewCollector creates a collector backed by its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_runs_total",
				Help: "Total number of runs by outcome",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coordinator_run_duration_seconds",
				Help:    "Run wall-clock duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),
		runParallelism: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coordinator_run_parallelism",
				Help:    "Size of the largest attempted wave per run",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
			},
		),
		wavesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "coordinator_waves_total",
				Help: "Total number of waves executed",
			},
		),
		wavesSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "coordinator_waves_skipped_total",
				Help: "Waves never started because an earlier wave failed",
			},
		),
		tasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_tasks_total",
				Help: "Total number of tasks executed by agent and outcome",
			},
			[]string{"agent", "status"},
		),
		taskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coordinator_task_duration_seconds",
				Help:    "Task execution duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"agent"},
		),
		activeTasks: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "coordinator_active_tasks",
				Help: "Tasks currently executing",
			},
		),
		validationFails: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_validation_failures_total",
				Help: "Graphs rejected before execution by reason",
			},
			[]string{"reason"},
		),
	}
}

// Registry exposes the underlying registry for exporting.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// TaskStarted marks a task as in flight.
func (c *Collector) TaskStarted() {
	if c == nil {
		return
	}
	c.activeTasks.Inc()
}

// TaskFinished records a settled task.
func (c *Collector) TaskFinished(agent string, success bool, d time.Duration) {
	if c == nil {
		return
	}
	c.activeTasks.Dec()
	c.tasksTotal.WithLabelValues(agent, status(success)).Inc()
	c.taskDuration.WithLabelValues(agent).Observe(d.Seconds())
}

// WaveCompleted counts an executed wave.
func (c *Collector) WaveCompleted() {
	if c == nil {
		return
	}
	c.wavesTotal.Inc()
}

// WavesSkipped counts waves abandoned by fail-fast.
func (c *Collector) WavesSkipped(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.wavesSkipped.Add(float64(n))
}

// ValidationFailed counts a rejected graph.
func (c *Collector) ValidationFailed(reason string) {
	if c == nil {
		return
	}
	c.validationFails.WithLabelValues(reason).Inc()
}

// RunCompleted records a settled run.
func (c *Collector) RunCompleted(success bool, parallelism int, d time.Duration) {
	if c == nil {
		return
	}
	c.runsTotal.WithLabelValues(status(success)).Inc()
	c.runDuration.Observe(d.Seconds())
	c.runParallelism.Observe(float64(parallelism))
}

// WriteTextfile dumps all metrics in the node-exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.registry)
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

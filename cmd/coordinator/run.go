package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aristath/coordinator/internal/agent"
	"github.com/aristath/coordinator/internal/config"
	"github.com/aristath/coordinator/internal/coordinator"
	"github.com/aristath/coordinator/internal/events"
	"github.com/aristath/coordinator/internal/journal"
	"github.com/aristath/coordinator/internal/metrics"
	"github.com/aristath/coordinator/internal/report"
	"github.com/aristath/coordinator/internal/resilience"
	"github.com/aristath/coordinator/internal/scheduler"
	"github.com/aristath/coordinator/internal/taskfile"
)

type runOptions struct {
	*globalOptions
	jsonOutput  bool
	concurrency int
	quiet       bool
}

func newRunCommand(global *globalOptions) *cobra.Command {
	opts := &runOptions{globalOptions: global}

	cmd := &cobra.Command{
		Use:   "run <task-file>",
		Short: "Execute a task file",
		Long: `Execute the tasks in a JSON or HCL task file.

Tasks run in waves: every task of a wave runs concurrently, and the next wave
starts only when all tasks of the current one succeeded. The exit code is 1
when any task fails or the task graph is invalid.

Examples:
  coordinator run tasks.json
  coordinator run --json tasks.hcl
  coordinator run --concurrency 4 tasks.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the run result as JSON")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", -1, "Maximum concurrent tasks per wave (0 = unlimited, -1 = use config)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print wave progress")

	return cmd
}

func (o *runOptions) run(ctx context.Context, stdout, stderr io.Writer, path string) error {
	cfg, logger, err := o.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if o.concurrency >= 0 {
		cfg.ConcurrencyLimit = o.concurrency
	}

	specs, err := taskfile.Load(path)
	if err != nil {
		return err
	}

	pm := agent.NewProcessManager()
	// Subprocesses die with the run on Ctrl+C or SIGTERM
	stopKill := context.AfterFunc(ctx, func() {
		if err := pm.KillAll(); err != nil {
			logger.Warn("killing agent processes", zap.Error(err))
		}
	})
	defer stopKill()

	registry := newRegistry(cfg, pm, logger)
	logger.Debug("agents registered", zap.Strings("agents", registry.Names()))

	var breakers *resilience.CircuitBreakerRegistry
	if cfg.Breaker.Enabled {
		breakers = resilience.NewCircuitBreakerRegistry(cfg.Breaker.Breaker(), logger)
	}

	bus := events.NewEventBus()
	var progress sync.WaitGroup
	if !o.quiet && !o.jsonOutput {
		ch := bus.SubscribeAll(256)
		progress.Add(1)
		go func() {
			defer progress.Done()
			showProgress(stderr, ch, logger)
		}()
	}

	collector := metrics.NewCollector()

	coordOpts := coordinator.Options{
		Resolver:         registry,
		Retrier:          resilience.NewPolicy(cfg.Retry.Policy(), breakers, logger),
		Locks:            scheduler.NewResourceLocks(),
		Logger:           logger,
		Bus:              bus,
		Metrics:          collector,
		ConcurrencyLimit: cfg.ConcurrencyLimit,
	}

	var store *journal.SQLiteStore
	if cfg.JournalPath != "" {
		store, err = journal.NewSQLiteStore(ctx, cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer store.Close()
		coordOpts.Journal = store
	}

	result := coordinator.New(coordOpts).Run(ctx, specs)

	bus.Close()
	progress.Wait()
	if dropped := bus.Dropped(); dropped > 0 {
		logger.Debug("progress events dropped", zap.Int64("count", dropped))
	}

	if store != nil && cfg.JournalKeep > 0 {
		if _, err := store.Prune(context.WithoutCancel(ctx), cfg.JournalKeep); err != nil {
			logger.Warn("pruning journal", zap.Error(err))
		}
	}

	if cfg.MetricsTextfile != "" {
		if err := collector.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warn("writing metrics textfile", zap.String("path", cfg.MetricsTextfile), zap.Error(err))
		}
	}

	if o.jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
	} else if err := report.RenderRun(stdout, result, len(specs)); err != nil {
		return err
	}

	if !result.Success {
		return errRunFailed
	}
	return nil
}

// newRegistry registers every configured agent as a lazily resolved command.
func newRegistry(cfg *config.Config, pm *agent.ProcessManager, logger *zap.Logger) *agent.Registry {
	registry := agent.NewRegistry(logger)
	for name, agentCfg := range cfg.Agents {
		registry.RegisterLoader(name, agent.CommandLoader(agentCfg.CommandConfig(name), pm))
	}
	return registry
}

// showProgress renders live progress with Bubble Tea when w is a terminal
// and falls back to plain lines otherwise.
func showProgress(w io.Writer, ch <-chan events.Event, logger *zap.Logger) {
	f, ok := w.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		report.PrintProgress(w, ch)
		return
	}

	p := tea.NewProgram(report.NewProgressModel(ch),
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	if _, err := p.Run(); err != nil {
		logger.Warn("progress display", zap.Error(err))
	}
	// Drain whatever the model did not consume
	for range ch {
	}
}

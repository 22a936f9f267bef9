package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aristath/coordinator/internal/config"
	"github.com/aristath/coordinator/internal/logging"
)

// errRunFailed signals a completed run that did not succeed. The report has
// already been printed, so main only sets the exit code.
var errRunFailed = errors.New("run failed")

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "coordinator",
		Short: "Run dependency-ordered agent tasks in concurrent waves",
		Long: `coordinator validates a set of tasks, groups them into waves by their
dependencies, and runs every wave concurrently through the configured agents.

Configuration is read from ~/.coordinator/config.json and
.coordinator/config.json, then from COORDINATOR_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a config file (replaces the global and project files)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	root.AddCommand(
		newRunCommand(opts),
		newPlanCommand(opts),
		newHistoryCommand(opts),
		newInitCommand(opts),
	)

	return root
}

// load resolves configuration and builds the logger.
func (o *globalOptions) load() (*config.Config, *zap.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.Load("", o.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

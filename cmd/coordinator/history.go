package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aristath/coordinator/internal/journal"
	"github.com/aristath/coordinator/internal/report"
)

type historyOptions struct {
	*globalOptions
	limit      int
	runID      string
	jsonOutput bool
}

func newHistoryCommand(global *globalOptions) *cobra.Command {
	opts := &historyOptions{globalOptions: global}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded in the journal, most recent first. With --run, print
the full result of one run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Number of runs to list (0 = all)")
	cmd.Flags().StringVar(&opts.runID, "run", "", "Show the full result of this run")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print as JSON")

	return cmd
}

func (o *historyOptions) run(ctx context.Context, stdout io.Writer) error {
	cfg, logger, err := o.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.JournalPath == "" {
		return errors.New("no journal configured (set journal_path)")
	}

	store, err := journal.NewSQLiteStore(ctx, cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer store.Close()

	if o.runID != "" {
		run, err := store.GetRun(ctx, o.runID)
		if err != nil {
			return err
		}
		if o.jsonOutput {
			return writeJSON(stdout, run)
		}
		return report.RenderRun(stdout, *run, len(run.Results))
	}

	runs, err := store.ListRuns(ctx, o.limit)
	if err != nil {
		return err
	}
	if o.jsonOutput {
		return writeJSON(stdout, runs)
	}
	return report.RenderHistory(stdout, runs)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

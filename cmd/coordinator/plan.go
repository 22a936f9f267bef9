package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aristath/coordinator/internal/coordinator"
	"github.com/aristath/coordinator/internal/report"
	"github.com/aristath/coordinator/internal/taskfile"
)

// planOutput is the --json form of a plan.
type planOutput struct {
	Waves       [][]string `json:"waves"`
	Order       []string   `json:"order"`
	Parallelism int        `json:"parallelism"`
}

func newPlanCommand(global *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "plan <task-file>",
		Short: "Validate a task file and show its waves",
		Long: `Validate a task file without running anything: check for duplicate ids,
missing dependencies and cycles, then print the waves the tasks would run in
and one topological order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.OutOrStdout(), args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the plan as JSON")

	return cmd
}

func runPlan(stdout io.Writer, path string, jsonOutput bool) error {
	specs, err := taskfile.Load(path)
	if err != nil {
		return err
	}

	graph, waves, err := coordinator.Plan(specs)
	if err != nil {
		return err
	}

	order, err := graph.Order()
	if err != nil {
		return err
	}

	if !jsonOutput {
		return report.RenderPlan(stdout, waves, order)
	}

	out := planOutput{
		Waves:       make([][]string, len(waves)),
		Order:       order,
		Parallelism: 0,
	}
	for i, wave := range waves {
		out.Waves[i] = wave.IDs()
		out.Parallelism = max(out.Parallelism, len(wave))
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	return nil
}

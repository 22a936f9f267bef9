package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/coordinator/internal/config"
)

func newInitCommand(global *globalOptions) *cobra.Command {
	var (
		project bool
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Write the default configuration to ~/.coordinator/config.json, or to
.coordinator/config.json with --project. --config picks an explicit path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := global.configPath
			if path == "" {
				globalPath, projectPath, err := config.Paths()
				if err != nil {
					return err
				}
				path = globalPath
				if project {
					path = projectPath
				}
			}

			if err := config.Save(config.DefaultConfig(), path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&project, "project", false, "Write the project config instead of the global one")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jasperalbers/nestgo/internal/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Check an experiment file without running it",
		Long: `Check an experiment file without running it.

This parses the YAML, applies environment overrides and runs the same
semantic checks the run command performs before building the network:
grid resolution, population sizes, connection indices, delay
quantization and recording settings.

Examples:
  nestgo validate experiment.yaml
  nestgo validate experiment.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid experiment: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"valid":       true,
					"steps":       cfg.Steps,
					"seed":        cfg.Seed,
					"workers":     cfg.Workers,
					"neurons":     cfg.NumNeurons(),
					"generators":  len(cfg.Generators),
					"connections": len(cfg.Connections),
				})
			}

			fmt.Printf("✓ %s is valid\n", args[0])
			fmt.Printf("  %d neurons, %d generators, %d explicit connections\n",
				cfg.NumNeurons(), len(cfg.Generators), len(cfg.Connections))
			fmt.Printf("  %d steps at %g ms, seed %d, %d workers\n",
				cfg.Steps, cfg.ResolutionMS, cfg.Seed, cfg.Workers)
			return nil
		},
	}
}

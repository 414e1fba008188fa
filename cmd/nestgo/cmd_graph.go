package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jasperalbers/nestgo/internal/config"
	"github.com/jasperalbers/nestgo/internal/kernel"
	"github.com/jasperalbers/nestgo/internal/logging"
	"github.com/jasperalbers/nestgo/internal/visualization"
)

func newGraphCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph <config>",
		Short: "Render the wired network without running it",
		Long: `Render the wired network without running it.

This builds the full network from the experiment file, including random
connectivity and recording devices, and prints its structure. The DOT
output feeds straight into Graphviz; the JSON output lists nodes and
edges for other tooling.

Examples:
  nestgo graph experiment.yaml | dot -Tsvg -o network.svg
  nestgo graph experiment.yaml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				format = string(visualization.FormatJSON)
			}

			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}

			// Build quietly: stdout carries the rendered graph and
			// nothing else.
			k, err := kernel.FromConfig(cfg, kernel.WithLogger(logging.NewLogger("info", io.Discard)))
			if err != nil {
				return err
			}
			defer k.Close()

			switch visualization.Format(format) {
			case visualization.FormatDOT:
				fmt.Print(visualization.RenderDOT(k.Network()))
				return nil
			case visualization.FormatJSON:
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(visualization.RenderJSON(k.Network()))
			default:
				return fmt.Errorf("unknown format %q (valid: dot, json)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", string(visualization.FormatDOT), "output format: dot or json")
	return cmd
}

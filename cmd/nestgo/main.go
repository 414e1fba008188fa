package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// A .env in the working directory can pre-set NESTGO_* overrides;
	// real environment variables still win.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "nestgo",
		Short: "Discrete-time simulator for stochastic spiking networks",
		Long: `nestgo simulates networks of stochastic SIRS neurons on a fixed time
grid. An experiment is a YAML file describing the populations, the
wiring and what to record; a run is deterministic for a given seed and
worker count.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("log-level", "info", "Log verbosity: info, debug or trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newValidateCmd(),
		newRunCmd(),
		newGraphCmd(),
		newModelsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

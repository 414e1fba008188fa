package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jasperalbers/nestgo/internal/models"
	"github.com/jasperalbers/nestgo/internal/node"
	"github.com/jasperalbers/nestgo/internal/status"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the registered node models",
		Long: `List the registered node models with their status keys and
recordable variables. Status keys are settable through config params
unless marked read-only by the model.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			type modelInfo struct {
				Kind        string   `json:"kind"`
				StatusKeys  []string `json:"status_keys"`
				Recordables []string `json:"recordables,omitempty"`
			}

			var infos []modelInfo
			for _, kind := range models.Kinds() {
				n, err := models.Create(kind)
				if err != nil {
					return fmt.Errorf("inspecting %s: %w", kind, err)
				}

				info := modelInfo{Kind: kind}
				for _, key := range status.Keys(n.Status()) {
					if key == "model" {
						continue
					}
					info.StatusKeys = append(info.StatusKeys, key)
				}
				if obs, ok := n.(node.Observable); ok {
					info.Recordables = obs.Readouts().Names()
				}
				infos = append(infos, info)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{"models": infos})
			}

			for _, info := range infos {
				fmt.Println(info.Kind)
				fmt.Printf("  status:      %s\n", strings.Join(info.StatusKeys, ", "))
				if len(info.Recordables) > 0 {
					fmt.Printf("  recordables: %s\n", strings.Join(info.Recordables, ", "))
				}
			}
			return nil
		},
	}
}

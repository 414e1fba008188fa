package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jasperalbers/nestgo/internal/config"
	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/exchange"
	"github.com/jasperalbers/nestgo/internal/kernel"
	"github.com/jasperalbers/nestgo/internal/logging"
	"github.com/jasperalbers/nestgo/internal/recording"
	"github.com/jasperalbers/nestgo/internal/simtime"
	"github.com/jasperalbers/nestgo/internal/topology"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Run an experiment",
		Long: `Run an experiment from a YAML file.

The run is deterministic for a given seed and worker count. An
interrupt stops the simulation at the next step boundary; a partially
delivered step never becomes visible.

Multi-process runs launch one nestgo process per rank against a shared
exchange hub, which rank 0 serves:

  nestgo run net.yaml --processes 2 --rank 0 --hub ws://127.0.0.1:7700/exchange &
  nestgo run net.yaml --processes 2 --rank 1 --hub ws://127.0.0.1:7700/exchange

Every rank needs the identical experiment file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperiment(cmd, args[0])
		},
	}

	cmd.Flags().Int64("steps", -1, "Override the configured step count")
	cmd.Flags().String("record", "", "Write results to a SQLite database at this path")
	cmd.Flags().String("label", "", "Label for the recorded run")
	cmd.Flags().Int64("trace", -1, "Print the sampled y trajectory of one node")
	cmd.Flags().Int("rank", 0, "This process's rank in a multi-process run")
	cmd.Flags().Int("processes", 1, "Total number of processes in the run")
	cmd.Flags().String("hub", "", "Exchange hub endpoint, e.g. ws://127.0.0.1:7700/exchange")

	return cmd
}

func runExperiment(cmd *cobra.Command, path string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	stepsFlag, _ := cmd.Flags().GetInt64("steps")
	recordPath, _ := cmd.Flags().GetString("record")
	label, _ := cmd.Flags().GetString("label")
	traceNode, _ := cmd.Flags().GetInt64("trace")
	rank, _ := cmd.Flags().GetInt("rank")
	procs, _ := cmd.Flags().GetInt("processes")
	hubURL, _ := cmd.Flags().GetString("hub")

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if stepsFlag >= 0 {
		cfg.Steps = stepsFlag
	}

	// The config's logging section applies unless --log-level was given
	// explicitly.
	level := cfg.Logging.Level
	if cmd.Flags().Changed("log-level") {
		level, _ = cmd.Flags().GetString("log-level")
	}
	log := logging.NewLogger(level, os.Stderr)

	opts := []kernel.Option{kernel.WithLogger(log)}
	if cfg.Logging.TraceDir != "" {
		if tracer := logging.NewPhaseTracer(cfg.Logging.TraceDir, level); tracer != nil {
			opts = append(opts, kernel.WithTracer(tracer))
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sig := make(chan os.Signal, 1)
	notifySignals(sig)
	go func() {
		<-sig
		log.Warn("interrupt received, stopping at the next step boundary")
		cancel()
	}()

	var k *kernel.Kernel
	if procs > 1 {
		if hubURL == "" {
			return fmt.Errorf("multi-process runs need --hub")
		}
		if rank == 0 {
			closeHub, err := serveHub(hubURL, procs, log)
			if err != nil {
				return err
			}
			defer closeHub()
		}
		client, err := dialHub(ctx, hubURL, rank, procs, log)
		if err != nil {
			return err
		}
		topo, err := topology.New(rank, procs, cfg.Workers)
		if err != nil {
			return err
		}
		opts = append(opts, kernel.WithExchanger(client))
		k, err = kernel.FromConfigAt(cfg, topo, opts...)
		if err != nil {
			return err
		}
	} else {
		k, err = kernel.FromConfig(cfg, opts...)
		if err != nil {
			return err
		}
	}
	defer k.Close()

	start := time.Now()
	if err := k.Run(ctx, simtime.Step(cfg.Steps)); err != nil {
		return err
	}
	elapsed := time.Since(start)

	records := k.SpikeRecords()
	samples := k.Samples()

	spikes := 0
	for _, r := range records {
		spikes += r.Multiplicity
	}

	summary := map[string]any{
		"steps":        int64(k.Now()),
		"time_ms":      k.TimeMS(),
		"transitions":  len(records),
		"spike_events": spikes,
		"samples":      len(samples),
		"elapsed":      elapsed.String(),
	}
	if procs > 1 {
		summary["rank"] = rank
	}

	if recordPath != "" {
		runID, err := persistRun(ctx, recordPath, label, records, samples)
		if err != nil {
			return err
		}
		summary["run_id"] = runID
		summary["database"] = recordPath
	}

	if jsonOut {
		if traceNode >= 0 {
			summary["trace"] = traceSamples(samples, event.NodeID(traceNode))
		}
		return json.NewEncoder(os.Stdout).Encode(summary)
	}

	fmt.Printf("completed %d steps (%g ms simulated) in %s\n",
		int64(k.Now()), k.TimeMS(), elapsed.Round(time.Millisecond))
	fmt.Printf("%d transitions, %d spike events, %d samples\n",
		len(records), spikes, len(samples))
	if id, ok := summary["run_id"]; ok {
		fmt.Printf("recorded run %s in %s\n", id, recordPath)
	}
	if traceNode >= 0 {
		printTrace(samples, event.NodeID(traceNode))
	}
	return nil
}

// serveHub starts the exchange hub on the host part of the hub URL.
// Only rank 0 serves; the returned function shuts the hub down.
func serveHub(hubURL string, procs int, log *slog.Logger) (func(), error) {
	u, err := url.Parse(hubURL)
	if err != nil {
		return nil, fmt.Errorf("parsing --hub: %w", err)
	}
	hub, err := exchange.NewHub(procs, log)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		hub.Close()
		return nil, fmt.Errorf("hub listen on %s: %w", u.Host, err)
	}
	srv := &http.Server{Handler: hub}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("hub server stopped", "error", err)
		}
	}()
	return func() {
		srv.Close()
		hub.Close()
	}, nil
}

// dialHub connects to the exchange hub, retrying while the serving
// rank is still coming up.
func dialHub(ctx context.Context, hubURL string, rank, procs int, log *slog.Logger) (*exchange.Client, error) {
	deadline := time.Now().Add(10 * time.Second)
	for {
		client, err := exchange.Dial(ctx, hubURL, rank, procs, log)
		if err == nil {
			return client, nil
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return nil, fmt.Errorf("connecting to hub %s: %w", hubURL, err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// persistRun writes the run's records into a SQLite result store.
func persistRun(ctx context.Context, path, label string, records []recording.SpikeRecord, samples []recording.Sample) (string, error) {
	store, err := recording.NewSQLiteStore(path)
	if err != nil {
		return "", err
	}
	defer store.Close()

	runID, err := store.NewRun(ctx, label)
	if err != nil {
		return "", err
	}
	if err := store.WriteSpikes(ctx, runID, records); err != nil {
		return "", err
	}
	if err := store.WriteSamples(ctx, runID, samples); err != nil {
		return "", err
	}
	return runID, nil
}

type tracePoint struct {
	Step int64   `json:"step"`
	Y    float64 `json:"y"`
}

// traceSamples filters one node's sampled y values, in step order.
func traceSamples(samples []recording.Sample, id event.NodeID) []tracePoint {
	var points []tracePoint
	for _, s := range samples {
		if s.Node == id && s.Name == "y" {
			points = append(points, tracePoint{Step: int64(s.Step), Y: s.Value})
		}
	}
	return points
}

func printTrace(samples []recording.Sample, id event.NodeID) {
	points := traceSamples(samples, id)
	if len(points) == 0 {
		fmt.Printf("no y samples for node %d; add y to record.multimeter\n", id)
		return
	}
	for _, p := range points {
		fmt.Printf("%d\t%g\n", p.Step, p.Y)
	}
}

package simulation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/jasperalbers/nestgo/internal/kernel"
	"github.com/jasperalbers/nestgo/internal/logging"
	"github.com/jasperalbers/nestgo/internal/simtime"
)

// Runner executes scenarios against the real kernel and delivery
// pipeline.
type Runner struct {
	t   *testing.T
	log *slog.Logger
}

// NewRunner creates a scenario runner. Kernel logs are discarded so
// long runs stay quiet; failures surface through the test instead.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	return &Runner{t: t, log: logging.NewLogger("info", io.Discard)}
}

// Run builds the scenario's network, runs it for the given number of
// steps and returns the collected records and samples.
func (r *Runner) Run(sc Scenario, steps simtime.Step) Result {
	r.t.Helper()

	k, err := kernel.FromConfig(sc.ToExperiment(), kernel.WithLogger(r.log))
	if err != nil {
		r.t.Fatalf("scenario %q: build: %v", sc.Name, err)
	}
	r.t.Cleanup(func() { k.Close() })

	if sc.BeforeRun != nil {
		if err := sc.BeforeRun(k); err != nil {
			r.t.Fatalf("scenario %q: before run: %v", sc.Name, err)
		}
	}

	if err := k.Run(context.Background(), steps); err != nil {
		r.t.Fatalf("scenario %q: run: %v", sc.Name, err)
	}

	return Result{
		Kernel:  k,
		Steps:   steps,
		Records: k.SpikeRecords(),
		Samples: k.Samples(),
	}
}

// FormatRecords returns a debug string for a result's spike records.
func FormatRecords(res Result) string {
	s := fmt.Sprintf("%d records over %d steps\n", len(res.Records), res.Steps)
	for _, rec := range res.Records {
		s += fmt.Sprintf("  step %6d  node %3d  multiplicity %d\n", rec.Step, rec.Source, rec.Multiplicity)
	}
	return s
}

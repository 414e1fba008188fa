package simulation_test

import (
	"testing"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/simulation"
	"github.com/jasperalbers/nestgo/internal/status"
)

// TestE2ENetworkDynamics is the capstone test: six spontaneously active
// sigmoid neurons coupled by random connectivity, a DC source driving
// the first one, and a beta-0 observer neuron wired into the same
// graph, running 20000 steps on 4 workers.
//
// This validates that the full pipeline (phase-gated update loop,
// routing, multiplicity-coded delivery, recording devices) keeps its
// invariants under sustained load:
//   - Multiplicity pairs are never split apart
//   - Every neuron walks the S -> I -> R cycle in order
//   - The observer integrates input but never fires
//   - Bookkeeping (step count, node count, edge count) stays exact
func TestE2ENetworkDynamics(t *testing.T) {
	r := simulation.NewRunner(t)

	scenario := simulation.Scenario{
		Name:    "e2e-network-dynamics",
		Seed:    11,
		Workers: 4,
		Neurons: []simulation.NeuronSpec{
			{Count: 6, Gain: "sigmoid"},
			{Count: 1, Params: map[string]any{"beta": 0.0}},
		},
		Generators: []simulation.GeneratorSpec{
			{Kind: "dc", Amplitude: 0.5},
		},
		Edges: []simulation.EdgeSpec{
			{Source: 7, Target: 0, Weight: 1.0, Kind: "current"},
		},
		Random:     &simulation.RandomSpec{FanOut: 2, Weight: 0.5, DelayMS: 0.3},
		RecordVars: []string{"y"},
		Interval:   10,
	}

	res := r.Run(scenario, 20000)

	// Assertion 1: no emission is ever recorded twice, i.e. no
	// multiplicity pair was split by an interleaved event.
	simulation.AssertNoSplitEmissions(t, res)

	// Assertion 2: every active neuron cycles S -> I -> R with the
	// 2, 1, 1 multiplicity pattern, and keeps transitioning at a
	// plausible pace for these rates.
	for id := event.NodeID(1); id <= 6; id++ {
		simulation.AssertTransitionCycle(t, res, id)
		simulation.AssertTransitionCount(t, res, id, 30, 600)
	}

	// Assertion 3: the beta-0 observer receives spikes from the random
	// graph but can never leave S.
	simulation.AssertQuiescent(t, res, 7)
	simulation.AssertOccupancy(t, res, 7, 0, 1.0, 1.0)

	// Assertion 4: the multimeter sampled y for every neuron at the
	// configured interval.
	for id := event.NodeID(1); id <= 7; id++ {
		if got := len(res.SampleSeries(id, "y")); got != 2000 {
			t.Errorf("node %d: %d y samples, want 2000", id, got)
		}
	}

	// Assertion 5: kernel bookkeeping. 7 neurons, 1 generator, spike
	// recorder and multimeter make 10 nodes; 14 random edges, 1 current
	// edge and 7 recorder taps make 22 connections.
	st := res.Kernel.Status()
	for key, want := range map[string]int64{"step": 20000, "nodes": 10, "connections": 22} {
		got, ok, err := status.Int(st, key)
		if err != nil || !ok {
			t.Fatalf("status %q: ok=%v err=%v", key, ok, err)
		}
		if got != want {
			t.Errorf("status %q = %d, want %d", key, got, want)
		}
	}

	total := 0
	for id := event.NodeID(1); id <= 6; id++ {
		n := len(res.RecordsFrom(id))
		total += n
		t.Logf("node %d: %d transitions", id, n)
	}
	t.Logf("total records: %d", total)
}

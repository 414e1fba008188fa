package simulation_test

import (
	"testing"

	"github.com/jasperalbers/nestgo/internal/simulation"
)

// TestIsolatedNeuronOccupancy checks the stationary distribution of a
// single sigmoid neuron with no input. At h=0 the hazards are 0.05/ms
// out of S and 0.1/ms out of I and R, so the mean dwell times are
// 20 ms, 10 ms, 10 ms and the neuron should spend about half its time
// susceptible and a quarter each infected and recovered.
func TestIsolatedNeuronOccupancy(t *testing.T) {
	r := simulation.NewRunner(t)

	res := r.Run(simulation.Scenario{
		Name:       "isolated-occupancy",
		Seed:       5,
		Neurons:    []simulation.NeuronSpec{{Count: 1, Gain: "sigmoid"}},
		RecordVars: []string{"y"},
	}, 100000)

	simulation.AssertTransitionCycle(t, res, 1)
	simulation.AssertNoSplitEmissions(t, res)

	// 10 s of simulated time is roughly 250 full cycles; the bands are
	// several standard deviations wide.
	simulation.AssertOccupancy(t, res, 1, 0, 0.33, 0.67)
	simulation.AssertOccupancy(t, res, 1, 1, 0.12, 0.40)
	simulation.AssertOccupancy(t, res, 1, 2, 0.12, 0.40)
	simulation.AssertTransitionCount(t, res, 1, 600, 900)

	t.Logf("%d transitions over %d steps", len(res.Records), res.Steps)
}

// TestOccupancyShiftsWithBias drives one of two otherwise identical
// sigmoid neurons with a constant positive current. The bias saturates
// the gain, halving the mean dwell time in S, so the driven neuron must
// spend measurably less time susceptible and fire more often than its
// twin.
func TestOccupancyShiftsWithBias(t *testing.T) {
	r := simulation.NewRunner(t)

	res := r.Run(simulation.Scenario{
		Name:    "occupancy-bias",
		Seed:    21,
		Neurons: []simulation.NeuronSpec{{Count: 2, Gain: "sigmoid"}},
		Generators: []simulation.GeneratorSpec{
			{Kind: "dc", Amplitude: 2.0},
		},
		Edges: []simulation.EdgeSpec{
			{Source: 2, Target: 0, Weight: 1.0, Kind: "current"},
		},
		RecordVars: []string{"y"},
	}, 100000)

	simulation.AssertNoSplitEmissions(t, res)
	simulation.AssertTransitionCycle(t, res, 1)
	simulation.AssertTransitionCycle(t, res, 2)

	// Saturated gain: dwell times 10/10/10 ms, occupancy near a third
	// each. Undriven: same stationary split as the isolated neuron.
	simulation.AssertOccupancy(t, res, 1, 0, 0.20, 0.47)
	simulation.AssertOccupancy(t, res, 2, 0, 0.33, 0.67)

	driven := len(res.RecordsFrom(1))
	undriven := len(res.RecordsFrom(2))
	if driven <= undriven {
		t.Errorf("driven neuron made %d transitions, undriven %d; bias should raise the firing rate", driven, undriven)
	}
	t.Logf("driven %d transitions, undriven %d", driven, undriven)
}

// Package simulation provides a scenario-based test harness for
// validating emergent dynamics of the full simulation pipeline.
//
// Scenarios exercise the real kernel, delivery manager, router and
// recording devices, no mocks. A Scenario is a Go builder that
// constructs a network declaratively, runs it for a fixed number of
// steps and captures spike records and multimeter samples for
// property-based assertions.
//
// Usage:
//
//	func TestOccupancy(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    res := r.Run(simulation.Scenario{
//	        Name:       "isolated-neuron",
//	        Seed:       42,
//	        Neurons:    []simulation.NeuronSpec{{Count: 1, Gain: "sigmoid"}},
//	        RecordVars: []string{"y"},
//	    }, 100000)
//	    simulation.AssertOccupancy(t, res, 1, 0, 0.38, 0.62)
//	}
package simulation

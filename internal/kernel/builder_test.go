package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasperalbers/nestgo/internal/config"
	"github.com/jasperalbers/nestgo/internal/event"
)

func TestFromConfigBuildsDeclaredNetwork(t *testing.T) {
	cfg := config.Default()
	cfg.Neurons = []config.NeuronGroup{{Count: 3}}
	cfg.Generators = []config.Generator{
		{Kind: "dc", Params: map[string]any{"amplitude": 0.5}},
	}
	cfg.Connections = []config.Connection{
		{Source: 3, Target: 0, DelayMS: 0.1, Weight: 1.0, Kind: "current"},
	}
	cfg.Record = config.Record{Spikes: true, Multimeter: []string{"y", "h"}, Interval: 2}

	k, err := FromConfig(cfg, WithLogger(testLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { k.Close() })

	d := k.Status()
	// 3 neurons, the generator, the spike recorder, the multimeter.
	assert.Equal(t, int64(6), statusInt(t, d, "nodes"))
	// The explicit edge plus one recorder edge per neuron.
	assert.Equal(t, int64(4), statusInt(t, d, "connections"))

	// Node IDs follow declaration order, starting at 1.
	for id, model := range map[int64]string{
		1: "sirs_neuron",
		4: "dc_generator",
		5: "spike_recorder",
		6: "multimeter",
	} {
		nd, err := k.NodeStatus(event.NodeID(id))
		require.NoError(t, err)
		assert.Equal(t, model, nd["model"], "node %d", id)
	}
}

func TestFromConfigRejectsUnknownNeuronModel(t *testing.T) {
	cfg := config.Default()
	cfg.Neurons = []config.NeuronGroup{{Count: 1, Model: "izhikevich"}}

	_, err := FromConfig(cfg, WithLogger(testLogger()))
	require.ErrorContains(t, err, "unknown model")
	require.ErrorContains(t, err, "neurons[0]")
}

func TestFromConfigRejectsBadParams(t *testing.T) {
	cfg := config.Default()
	cfg.Neurons = []config.NeuronGroup{
		{Count: 1, Params: map[string]any{"beta": -1.0}},
	}

	_, err := FromConfig(cfg, WithLogger(testLogger()))
	require.ErrorContains(t, err, "neurons[0] params")
}

func TestFromConfigRefusesDuplicateNeuronEdges(t *testing.T) {
	cfg := config.Default()
	cfg.Neurons = []config.NeuronGroup{{Count: 2}}
	cfg.Connections = []config.Connection{
		{Source: 0, Target: 1, DelayMS: 0.1, Weight: 1.0},
		{Source: 0, Target: 1, DelayMS: 0.2, Weight: 0.5},
	}

	_, err := FromConfig(cfg, WithLogger(testLogger()))
	require.ErrorContains(t, err, "duplicate connection 1 -> 2")

	// The same wiring is accepted when duplicates are explicitly
	// allowed.
	cfg.RandomConnectivity = &config.RandomConnectivity{AllowDuplicates: true}
	k, err := FromConfig(cfg, WithLogger(testLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { k.Close() })
	assert.Equal(t, int64(2), statusInt(t, k.Status(), "connections"))
}

func TestFromConfigAllowsDuplicateCurrentEdges(t *testing.T) {
	cfg := config.Default()
	cfg.Neurons = []config.NeuronGroup{{Count: 1}}
	cfg.Generators = []config.Generator{
		{Kind: "dc", Params: map[string]any{"amplitude": 1.0}},
	}
	// Two current edges between the same pair carry no multiplicity
	// code, so they are fine.
	cfg.Connections = []config.Connection{
		{Source: 1, Target: 0, DelayMS: 0.1, Weight: 1.0, Kind: "current"},
		{Source: 1, Target: 0, DelayMS: 0.1, Weight: 2.0, Kind: "current"},
	}

	k, err := FromConfig(cfg, WithLogger(testLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { k.Close() })
}

func TestFromConfigRandomFanOut(t *testing.T) {
	cfg := config.Default()
	cfg.Neurons = []config.NeuronGroup{{Count: 5}}
	cfg.RandomConnectivity = &config.RandomConnectivity{FanOut: 2, Weight: 0.5, DelayMS: 0.1}

	k, err := FromConfig(cfg, WithLogger(testLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { k.Close() })
	assert.Equal(t, int64(10), statusInt(t, k.Status(), "connections"))
}

func TestFromConfigRandomFanOutTooLarge(t *testing.T) {
	cfg := config.Default()
	cfg.Neurons = []config.NeuronGroup{{Count: 5}}
	cfg.RandomConnectivity = &config.RandomConnectivity{FanOut: 5, Weight: 0.5, DelayMS: 0.1}

	_, err := FromConfig(cfg, WithLogger(testLogger()))
	require.ErrorContains(t, err, "cannot avoid duplicate targets")

	// With duplicates allowed the same fan-out is fine.
	cfg.RandomConnectivity.AllowDuplicates = true
	k, err := FromConfig(cfg, WithLogger(testLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { k.Close() })
	assert.Equal(t, int64(25), statusInt(t, k.Status(), "connections"))
}

func TestFromConfigRandomNeedsTwoNeurons(t *testing.T) {
	cfg := config.Default()
	cfg.Neurons = []config.NeuronGroup{{Count: 1}}
	cfg.RandomConnectivity = &config.RandomConnectivity{FanOut: 1, Weight: 0.5, DelayMS: 0.1}

	_, err := FromConfig(cfg, WithLogger(testLogger()))
	require.ErrorContains(t, err, "at least 2 neurons")
}

func TestFromConfigRejectsInvalidExperiment(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = 0

	_, err := FromConfig(cfg, WithLogger(testLogger()))
	require.ErrorContains(t, err, "invalid experiment")
}

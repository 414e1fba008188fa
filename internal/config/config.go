// Package config provides experiment configuration loading for the
// simulator. It supports loading from YAML files and environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/simtime"
)

// Experiment describes one simulation: the grid, the populations, the
// wiring and what to record.
//
// Node indices used by connections count through the neuron groups in
// order (each group contributes Count nodes), then the generators.
type Experiment struct {
	// ResolutionMS is the step duration in milliseconds.
	ResolutionMS float64 `json:"resolution_ms" yaml:"resolution_ms"`

	// Steps is the number of steps to simulate.
	Steps int64 `json:"steps" yaml:"steps"`

	// Seed is the base seed; every worker derives its own stream from it.
	Seed int64 `json:"seed" yaml:"seed"`

	// Workers is the number of worker threads on this process.
	Workers int `json:"workers" yaml:"workers"`

	// Logging configures operational logging and phase tracing.
	Logging Logging `json:"logging" yaml:"logging"`

	// Neurons lists the neuron populations to create.
	Neurons []NeuronGroup `json:"neurons" yaml:"neurons"`

	// Generators lists the stimulus devices to create.
	Generators []Generator `json:"generators" yaml:"generators"`

	// Connections lists explicit edges by node index.
	Connections []Connection `json:"connections" yaml:"connections"`

	// RandomConnectivity, if present, wires every neuron to FanOut
	// randomly drawn neuron targets in addition to the explicit edges.
	RandomConnectivity *RandomConnectivity `json:"random_connectivity,omitempty" yaml:"random_connectivity,omitempty"`

	// Record configures the recording devices.
	Record Record `json:"record" yaml:"record"`
}

// Logging configures the simulator's logging behavior.
type Logging struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables phase tracing when TraceDir is set.
	Level string `json:"level" yaml:"level"`

	// TraceDir, if set, receives phases.jsonl with per-step phase events.
	TraceDir string `json:"trace_dir,omitempty" yaml:"trace_dir,omitempty"`
}

// NeuronGroup creates Count neurons of one model with shared parameters.
type NeuronGroup struct {
	// Count is the population size.
	Count int `json:"count" yaml:"count"`

	// Model is the model kind; defaults to "sirs_neuron".
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// Params is applied to each neuron through SetStatus.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Generator creates one stimulus device. Besides kind, all keys are
// passed to the device through SetStatus.
type Generator struct {
	// Kind selects the device: "dc" or "noise".
	Kind string `json:"kind" yaml:"kind"`

	// Params holds the device parameters (amplitude, mean, std, start, stop).
	Params map[string]any `json:"params,omitempty" yaml:",inline"`
}

// Connection is one explicit edge between node indices.
type Connection struct {
	Source  int64   `json:"source" yaml:"source"`
	Target  int64   `json:"target" yaml:"target"`
	DelayMS float64 `json:"delay_ms" yaml:"delay_ms"`
	Weight  float64 `json:"weight" yaml:"weight"`

	// Kind is the event kind carried: "spike" (default) or "current".
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// RandomConnectivity wires every neuron to FanOut random neuron targets.
type RandomConnectivity struct {
	FanOut  int     `json:"fan_out" yaml:"fan_out"`
	Weight  float64 `json:"weight" yaml:"weight"`
	DelayMS float64 `json:"delay_ms" yaml:"delay_ms"`

	// AllowDuplicates permits repeated source-target pairs. Off by
	// default: duplicate edges between multiplicity-coding neurons
	// corrupt the transition decoding at the receiver.
	AllowDuplicates bool `json:"allow_duplicates" yaml:"allow_duplicates"`
}

// Record configures the recording devices attached to the network.
type Record struct {
	// Spikes attaches a spike recorder to every neuron.
	Spikes bool `json:"spikes" yaml:"spikes"`

	// Multimeter lists the variables to sample from every neuron.
	// Empty means no multimeter.
	Multimeter []string `json:"multimeter,omitempty" yaml:"multimeter,omitempty"`

	// Interval is the sampling interval in steps (default 1).
	Interval int64 `json:"interval,omitempty" yaml:"interval,omitempty"`
}

// Default returns an Experiment with sensible defaults.
func Default() *Experiment {
	return &Experiment{
		ResolutionMS: simtime.DefaultResolutionMS,
		Steps:        1000,
		Seed:         12345,
		Workers:      1,
		Logging: Logging{
			Level: "info",
		},
		Record: Record{
			Interval: 1,
		},
	}
}

// Load loads an experiment from a YAML file and environment variables.
// Order: defaults -> file -> environment variables
func Load(path string) (*Experiment, error) {
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads an experiment from a YAML file. Values not present
// in the file keep their defaults.
func LoadFromFile(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Expand environment variables in the trace directory
	config.Logging.TraceDir = expandEnvVars(config.Logging.TraceDir)

	return config, nil
}

// Validate checks that the experiment is internally consistent. It
// catches grid, population and wiring errors before any node is built.
func (c *Experiment) Validate() error {
	res := simtime.Resolution(c.ResolutionMS)
	if err := res.Validate(); err != nil {
		return fmt.Errorf("resolution_ms: %w", err)
	}
	if c.Steps < 0 {
		return fmt.Errorf("steps must be >= 0, got %d", c.Steps)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}

	validLevels := map[string]bool{"": true, "info": true, "debug": true, "trace": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	for i, g := range c.Neurons {
		if g.Count < 1 {
			return fmt.Errorf("neurons[%d].count must be >= 1, got %d", i, g.Count)
		}
	}

	validGenerators := map[string]bool{"dc": true, "noise": true}
	for i, g := range c.Generators {
		if !validGenerators[g.Kind] {
			return fmt.Errorf("generators[%d].kind must be dc or noise, got %q", i, g.Kind)
		}
	}

	n := int64(c.NumNodes())
	for i, conn := range c.Connections {
		if conn.Source < 0 || conn.Source >= n {
			return fmt.Errorf("connections[%d].source %d out of range (have %d nodes)", i, conn.Source, n)
		}
		if conn.Target < 0 || conn.Target >= n {
			return fmt.Errorf("connections[%d].target %d out of range (have %d nodes)", i, conn.Target, n)
		}
		if conn.Kind != "" {
			if _, err := event.ParseKind(conn.Kind); err != nil {
				return fmt.Errorf("connections[%d].kind: %w", i, err)
			}
		}
		if err := validateDelay(res, conn.DelayMS); err != nil {
			return fmt.Errorf("connections[%d].delay_ms: %w", i, err)
		}
	}

	if rc := c.RandomConnectivity; rc != nil {
		if rc.FanOut < 0 {
			return fmt.Errorf("random_connectivity.fan_out must be >= 0, got %d", rc.FanOut)
		}
		if rc.FanOut > 0 {
			if err := validateDelay(res, rc.DelayMS); err != nil {
				return fmt.Errorf("random_connectivity.delay_ms: %w", err)
			}
		}
	}

	if c.Record.Interval < 1 {
		return fmt.Errorf("record.interval must be >= 1, got %d", c.Record.Interval)
	}

	return nil
}

// validateDelay checks that a delay lands on the grid at one step or more.
func validateDelay(res simtime.Resolution, delayMS float64) error {
	steps, err := res.StepsFromMS(delayMS)
	if err != nil {
		return err
	}
	if steps < 1 {
		return fmt.Errorf("delay %v ms is below one step at resolution %v ms", delayMS, float64(res))
	}
	return nil
}

// NumNodes returns the number of nodes the experiment creates, before
// recording devices are added.
func (c *Experiment) NumNodes() int {
	n := 0
	for _, g := range c.Neurons {
		n += g.Count
	}
	return n + len(c.Generators)
}

// NumNeurons returns the number of neurons across all groups.
func (c *Experiment) NumNeurons() int {
	n := 0
	for _, g := range c.Neurons {
		n += g.Count
	}
	return n
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Experiment) {
	if v := os.Getenv("NESTGO_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("NESTGO_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Seed = n
		}
	}

	if v := os.Getenv("NESTGO_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Workers = n
		}
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}

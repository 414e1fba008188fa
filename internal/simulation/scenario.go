package simulation

import (
	"github.com/jasperalbers/nestgo/internal/config"
	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/kernel"
	"github.com/jasperalbers/nestgo/internal/recording"
	"github.com/jasperalbers/nestgo/internal/simtime"
)

// Scenario defines a complete simulation experiment. Spikes are always
// recorded; RecordVars selects additional multimeter variables.
type Scenario struct {
	Name         string
	Seed         int64
	Workers      int
	ResolutionMS float64

	Neurons    []NeuronSpec
	Generators []GeneratorSpec
	Edges      []EdgeSpec
	Random     *RandomSpec

	RecordVars []string
	Interval   int64 // sampling interval in steps, 0 = every step

	// BeforeRun, when non-nil, is called with the built kernel before
	// the first step, e.g. to reconfigure individual nodes.
	BeforeRun func(k *kernel.Kernel) error
}

// NeuronSpec is a flat builder for one group of stochastic neurons.
// Zero-valued fields keep the model defaults (tau_m 10 ms, beta 1,
// mu 1, linear gain); Params overrides individual raw parameters, which
// is also the way to reach values the flat fields cannot express, such
// as beta 0.
type NeuronSpec struct {
	Count  int
	TauM   float64
	Beta   float64
	Mu     float64
	Gain   string
	Params map[string]any
}

// ToGroup converts the spec into a config neuron group.
func (s NeuronSpec) ToGroup() config.NeuronGroup {
	params := map[string]any{}
	if s.TauM != 0 {
		params["tau_m"] = s.TauM
	}
	if s.Beta != 0 {
		params["beta"] = s.Beta
	}
	if s.Mu != 0 {
		params["mu"] = s.Mu
	}
	if s.Gain != "" {
		params["gain"] = s.Gain
	}
	for k, v := range s.Params {
		params[k] = v
	}

	count := s.Count
	if count == 0 {
		count = 1
	}
	return config.NeuronGroup{Count: count, Params: params}
}

// GeneratorSpec builds one current source. Kind "dc" uses Amplitude,
// kind "noise" uses Mean and Std. Stop 0 leaves the emission window
// unbounded.
type GeneratorSpec struct {
	Kind      string
	Amplitude float64
	Mean      float64
	Std       float64
	Start     int64
	Stop      int64
}

// ToGenerator converts the spec into a config generator entry.
func (s GeneratorSpec) ToGenerator() config.Generator {
	params := map[string]any{}
	switch s.Kind {
	case "dc":
		params["amplitude"] = s.Amplitude
	case "noise":
		params["mean"] = s.Mean
		params["std"] = s.Std
	}
	if s.Start > 0 {
		params["start"] = s.Start
	}
	if s.Stop > 0 {
		params["stop"] = s.Stop
	}
	return config.Generator{Kind: s.Kind, Params: params}
}

// EdgeSpec defines one connection by config node index: neurons count
// first in declaration order, then generators. DelayMS 0 means one
// step at the scenario's resolution; Kind "" means spike.
type EdgeSpec struct {
	Source  int
	Target  int
	Weight  float64
	DelayMS float64
	Kind    string
}

// ToConnection converts the spec, filling the delay default from the
// scenario resolution.
func (s EdgeSpec) ToConnection(resolutionMS float64) config.Connection {
	delay := s.DelayMS
	if delay == 0 {
		delay = resolutionMS
	}
	return config.Connection{
		Source:  int64(s.Source),
		Target:  int64(s.Target),
		DelayMS: delay,
		Weight:  s.Weight,
		Kind:    s.Kind,
	}
}

// RandomSpec wires every neuron to FanOut randomly drawn other neurons.
type RandomSpec struct {
	FanOut          int
	Weight          float64
	DelayMS         float64
	AllowDuplicates bool
}

// ToExperiment converts the scenario into an experiment config.
func (sc Scenario) ToExperiment() *config.Experiment {
	cfg := config.Default()
	if sc.ResolutionMS > 0 {
		cfg.ResolutionMS = sc.ResolutionMS
	}
	if sc.Seed != 0 {
		cfg.Seed = sc.Seed
	}
	if sc.Workers > 0 {
		cfg.Workers = sc.Workers
	}

	for _, ns := range sc.Neurons {
		cfg.Neurons = append(cfg.Neurons, ns.ToGroup())
	}
	for _, gs := range sc.Generators {
		cfg.Generators = append(cfg.Generators, gs.ToGenerator())
	}
	for _, es := range sc.Edges {
		cfg.Connections = append(cfg.Connections, es.ToConnection(cfg.ResolutionMS))
	}
	if sc.Random != nil {
		delay := sc.Random.DelayMS
		if delay == 0 {
			delay = cfg.ResolutionMS
		}
		cfg.RandomConnectivity = &config.RandomConnectivity{
			FanOut:          sc.Random.FanOut,
			Weight:          sc.Random.Weight,
			DelayMS:         delay,
			AllowDuplicates: sc.Random.AllowDuplicates,
		}
	}

	interval := sc.Interval
	if interval == 0 {
		interval = 1
	}
	cfg.Record = config.Record{Spikes: true, Multimeter: sc.RecordVars, Interval: interval}
	return cfg
}

// Result captures one run: the spike records, the samples and the
// kernel for follow-up status queries.
type Result struct {
	Kernel  *kernel.Kernel
	Steps   simtime.Step
	Records []recording.SpikeRecord
	Samples []recording.Sample
}

// RecordsFrom filters the spike records of one source node, in
// emission order.
func (res Result) RecordsFrom(id event.NodeID) []recording.SpikeRecord {
	var out []recording.SpikeRecord
	for _, rec := range res.Records {
		if rec.Source == id {
			out = append(out, rec)
		}
	}
	return out
}

// SampleSeries returns the sampled values of one variable of one node,
// keyed by step.
func (res Result) SampleSeries(id event.NodeID, name string) map[int64]float64 {
	series := make(map[int64]float64)
	for _, s := range res.Samples {
		if s.Node == id && s.Name == name {
			series[int64(s.Step)] = s.Value
		}
	}
	return series
}

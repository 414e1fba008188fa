package kernel

import (
	"fmt"
	"math/rand"

	"github.com/jasperalbers/nestgo/internal/config"
	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/models"
	"github.com/jasperalbers/nestgo/internal/recording"
	"github.com/jasperalbers/nestgo/internal/simtime"
	"github.com/jasperalbers/nestgo/internal/status"
	"github.com/jasperalbers/nestgo/internal/topology"
)

// FromConfig builds a single-process kernel from an experiment config:
// neuron groups and generators become nodes in declaration order, then
// the explicit connections, the random connectivity and the recording
// devices are wired, and the result is calibrated. Config node indices
// count neurons first, then generators; node IDs are the index plus
// one.
func FromConfig(cfg *config.Experiment, opts ...Option) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid experiment: %w", err)
	}
	topo, err := topology.Single(cfg.Workers)
	if err != nil {
		return nil, err
	}
	return FromConfigAt(cfg, topo, opts...)
}

// FromConfigAt builds the rank-local kernel of a multi-process run.
// Every rank constructs the full network from the same config, so node
// identities and worker assignment agree everywhere; topo decides which
// nodes this process owns and updates.
func FromConfigAt(cfg *config.Experiment, topo *topology.Topology, opts ...Option) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid experiment: %w", err)
	}

	res := simtime.Resolution(cfg.ResolutionMS)
	net := NewNetwork(topo, res, cfg.Seed)

	var neuronIDs []event.NodeID
	for gi, grp := range cfg.Neurons {
		model := grp.Model
		if model == "" {
			model = "sirs_neuron"
		}
		for i := 0; i < grp.Count; i++ {
			n, err := models.Create(model)
			if err != nil {
				return nil, fmt.Errorf("neurons[%d]: %w", gi, err)
			}
			if len(grp.Params) > 0 {
				if err := n.SetStatus(status.Dict(grp.Params)); err != nil {
					return nil, fmt.Errorf("neurons[%d] params: %w", gi, err)
				}
			}
			neuronIDs = append(neuronIDs, net.AddNode(n))
		}
	}

	var genIDs []event.NodeID
	for gi, gen := range cfg.Generators {
		n, err := models.Create(gen.Kind + "_generator")
		if err != nil {
			return nil, fmt.Errorf("generators[%d]: %w", gi, err)
		}
		if len(gen.Params) > 0 {
			if err := n.SetStatus(status.Dict(gen.Params)); err != nil {
				return nil, fmt.Errorf("generators[%d] params: %w", gi, err)
			}
		}
		genIDs = append(genIDs, net.AddNode(n))
	}

	ids := make([]event.NodeID, 0, len(neuronIDs)+len(genIDs))
	ids = append(ids, neuronIDs...)
	ids = append(ids, genIDs...)

	for ci, c := range cfg.Connections {
		delay, err := res.StepsFromMS(c.DelayMS)
		if err != nil {
			return nil, fmt.Errorf("connections[%d]: %w", ci, err)
		}
		kind := event.KindSpike
		if c.Kind != "" {
			if kind, err = event.ParseKind(c.Kind); err != nil {
				return nil, fmt.Errorf("connections[%d]: %w", ci, err)
			}
		}
		if err := net.Connect(ids[c.Source], ids[c.Target], delay, c.Weight, kind); err != nil {
			return nil, fmt.Errorf("connections[%d]: %w", ci, err)
		}
	}

	if err := wireRandom(net, cfg, neuronIDs); err != nil {
		return nil, err
	}

	if cfg.Record.Spikes {
		rec := recording.NewSpikeRecorder()
		recID := net.AddNode(rec)
		for _, nid := range neuronIDs {
			if err := net.Connect(nid, recID, 1, 1.0, event.KindSpike); err != nil {
				return nil, fmt.Errorf("wiring spike recorder: %w", err)
			}
		}
	}
	if len(cfg.Record.Multimeter) > 0 {
		meter := recording.NewMultimeter(cfg.Record.Multimeter, simtime.Step(cfg.Record.Interval))
		net.AddNode(meter)
		for _, nid := range neuronIDs {
			if err := net.AttachSampler(meter, nid); err != nil {
				return nil, err
			}
		}
	}

	if cfg.RandomConnectivity == nil || !cfg.RandomConnectivity.AllowDuplicates {
		if dups := net.DuplicateCoderEdges(); len(dups) > 0 {
			e := dups[0]
			return nil, fmt.Errorf("duplicate connection %d -> %d would corrupt multiplicity decoding (%d duplicated edges; set allow_duplicates to permit)",
				e.Source, e.Target, len(dups))
		}
	}

	return NewKernel(net, opts...)
}

// wireRandom draws fan-out targets for every neuron. Self-connections
// are never drawn; repeated targets are redrawn unless duplicates are
// allowed. The wiring stream is seeded above the worker streams so the
// draws never alias a node's noise.
func wireRandom(net *Network, cfg *config.Experiment, neuronIDs []event.NodeID) error {
	rc := cfg.RandomConnectivity
	if rc == nil || rc.FanOut == 0 {
		return nil
	}
	if len(neuronIDs) < 2 {
		return fmt.Errorf("random connectivity needs at least 2 neurons, have %d", len(neuronIDs))
	}
	if !rc.AllowDuplicates && rc.FanOut > len(neuronIDs)-1 {
		return fmt.Errorf("random fan-out %d cannot avoid duplicate targets among %d neurons", rc.FanOut, len(neuronIDs))
	}
	delay, err := net.res.StepsFromMS(rc.DelayMS)
	if err != nil {
		return fmt.Errorf("random connectivity: %w", err)
	}

	wiring := rand.New(rand.NewSource(cfg.Seed + int64(net.workers)))
	for _, src := range neuronIDs {
		used := map[event.NodeID]bool{src: true}
		for f := 0; f < rc.FanOut; f++ {
			var tgt event.NodeID
			for {
				tgt = neuronIDs[wiring.Intn(len(neuronIDs))]
				if tgt == src {
					continue
				}
				if !rc.AllowDuplicates && used[tgt] {
					continue
				}
				break
			}
			used[tgt] = true
			if err := net.Connect(src, tgt, delay, rc.Weight, event.KindSpike); err != nil {
				return fmt.Errorf("random connection %d -> %d: %w", src, tgt, err)
			}
		}
	}
	return nil
}

package recording

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/models"
	"github.com/jasperalbers/nestgo/internal/node"
	"github.com/jasperalbers/nestgo/internal/readout"
	"github.com/jasperalbers/nestgo/internal/ring"
	"github.com/jasperalbers/nestgo/internal/simtime"
	"github.com/jasperalbers/nestgo/internal/status"
)

// SpikeRecorder is a node that collects the spikes routed to it. Copies
// of one emission arrive back to back, so the recorder folds each run
// of copies back into a single record carrying the multiplicity.
type SpikeRecorder struct {
	id      event.NodeID
	queue   *ring.Queue
	records []SpikeRecord
}

func NewSpikeRecorder() *SpikeRecorder {
	return &SpikeRecorder{}
}

func (r *SpikeRecorder) ID() event.NodeID         { return r.id }
func (r *SpikeRecorder) AssignID(id event.NodeID) { r.id = id }
func (r *SpikeRecorder) Model() string            { return "spike_recorder" }

// AcceptsEvent grants spike connections on port 0.
func (r *SpikeRecorder) AcceptsEvent(kind event.Kind, port event.Port) (event.Port, error) {
	if kind != event.KindSpike {
		return 0, fmt.Errorf("spike_recorder does not receive %s events", kind)
	}
	if port != 0 {
		return 0, fmt.Errorf("spike_recorder has no port %d", port)
	}
	return 0, nil
}

func (r *SpikeRecorder) Calibrate(c node.Calibration) error {
	q, err := ring.NewQueue(c.MaxDelay)
	if err != nil {
		return fmt.Errorf("spike_recorder queue: %w", err)
	}
	r.queue = q
	return nil
}

func (r *SpikeRecorder) Deliver(d event.Delivery) {
	r.queue.Deposit(d)
}

// Update folds the step's arrivals into records. Each record keeps the
// emission step, not the arrival step, so recorded times match the
// sender's transition times regardless of the connection delay.
func (r *SpikeRecorder) Update(step simtime.Step) []event.Event {
	for _, d := range r.queue.ReadAndClear(step) {
		last := len(r.records) - 1
		if last >= 0 && r.records[last].Source == d.Source && r.records[last].Step == d.EmissionStep {
			r.records[last].Multiplicity++
			continue
		}
		r.records = append(r.records, SpikeRecord{
			Step:         d.EmissionStep,
			Source:       d.Source,
			Multiplicity: 1,
		})
	}
	return nil
}

// Records returns the collected spike records in arrival order.
func (r *SpikeRecorder) Records() []SpikeRecord {
	out := make([]SpikeRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Drain returns the collected records and clears the recorder.
func (r *SpikeRecorder) Drain() []SpikeRecord {
	out := r.records
	r.records = nil
	return out
}

func (r *SpikeRecorder) Status() status.Dict {
	return status.Dict{
		"model":    r.Model(),
		"n_events": int64(len(r.records)),
	}
}

func (r *SpikeRecorder) SetStatus(d status.Dict) error {
	for _, key := range status.Keys(d) {
		switch key {
		case "model", "n_events":
			return status.Protected(key, d[key])
		default:
			return status.Unknown(key, d[key])
		}
	}
	return nil
}

// Sampler is implemented by devices the kernel polls once per step,
// after every node's update for that step has finished. Sampling runs
// outside the worker phases, so it may read other nodes' state.
type Sampler interface {
	Sample(step simtime.Step)
}

// Multimeter samples named variables of the nodes it is attached to.
// Attachment happens at build time through a read-out connection; the
// kernel then calls Sample after each step's update phase, so a sample
// at step t shows the state after update t.
type Multimeter struct {
	id       event.NodeID
	names    []string
	interval simtime.Step

	targets []attachment
	samples []Sample
}

type attachment struct {
	id    event.NodeID
	reads *readout.Table
}

// NewMultimeter creates a multimeter sampling the given variables every
// interval steps.
func NewMultimeter(names []string, interval simtime.Step) *Multimeter {
	m := &Multimeter{interval: interval}
	m.names = append(m.names, names...)
	if m.interval < 1 {
		m.interval = 1
	}
	return m
}

func (m *Multimeter) ID() event.NodeID         { return m.id }
func (m *Multimeter) AssignID(id event.NodeID) { m.id = id }
func (m *Multimeter) Model() string            { return "multimeter" }

// AcceptsEvent rejects everything: a multimeter polls, it is not a
// delivery target.
func (m *Multimeter) AcceptsEvent(kind event.Kind, _ event.Port) (event.Port, error) {
	return 0, fmt.Errorf("multimeter does not receive %s events", kind)
}

func (m *Multimeter) Calibrate(node.Calibration) error { return nil }

func (m *Multimeter) Deliver(event.Delivery) {}

func (m *Multimeter) Update(simtime.Step) []event.Event { return nil }

// Attach points the multimeter at one observable node. Every requested
// variable must be readable there.
func (m *Multimeter) Attach(id event.NodeID, obs node.Observable) error {
	reads := obs.Readouts()
	for _, name := range m.names {
		if !reads.Has(name) {
			return fmt.Errorf("node %d does not expose %q (available: %s)",
				id, name, strings.Join(reads.Names(), ", "))
		}
	}
	m.targets = append(m.targets, attachment{id: id, reads: reads})
	return nil
}

// Targets returns the IDs of the attached nodes, in attachment order.
func (m *Multimeter) Targets() []event.NodeID {
	out := make([]event.NodeID, len(m.targets))
	for i, t := range m.targets {
		out[i] = t.id
	}
	return out
}

// Sample records the selected variables of every attached node.
func (m *Multimeter) Sample(step simtime.Step) {
	if int64(step)%int64(m.interval) != 0 {
		return
	}
	for _, t := range m.targets {
		for _, name := range m.names {
			v, err := t.reads.Read(name)
			if err != nil {
				continue
			}
			m.samples = append(m.samples, Sample{
				Step: step, Node: t.id, Name: name, Value: v,
			})
		}
	}
}

// Samples returns the collected samples in sampling order.
func (m *Multimeter) Samples() []Sample {
	out := make([]Sample, len(m.samples))
	copy(out, m.samples)
	return out
}

// Drain returns the collected samples and clears the multimeter.
func (m *Multimeter) Drain() []Sample {
	out := m.samples
	m.samples = nil
	return out
}

func (m *Multimeter) Status() status.Dict {
	names := make([]string, len(m.names))
	copy(names, m.names)
	sort.Strings(names)
	return status.Dict{
		"model":       m.Model(),
		"record_from": strings.Join(names, ","),
		"interval":    int64(m.interval),
		"n_samples":   int64(len(m.samples)),
	}
}

func (m *Multimeter) SetStatus(d status.Dict) error {
	interval := m.interval
	for _, key := range status.Keys(d) {
		switch key {
		case "interval":
			v, _, err := status.Int(d, key)
			if err != nil {
				return err
			}
			if v < 1 {
				return status.Errf(key, v, "must be >= 1")
			}
			interval = simtime.Step(v)
		case "model", "record_from", "n_samples":
			return status.Protected(key, d[key])
		default:
			return status.Unknown(key, d[key])
		}
	}
	m.interval = interval
	return nil
}

var (
	_ node.Node = (*SpikeRecorder)(nil)
	_ node.Node = (*Multimeter)(nil)
	_ Sampler   = (*Multimeter)(nil)
)

func init() {
	models.Register("spike_recorder", func() node.Node { return NewSpikeRecorder() })
	models.Register("multimeter", func() node.Node { return NewMultimeter(nil, 1) })
}

// Package kernel drives the simulation: it owns the clock, the network
// and the delivery manager, and runs the lockstep phase cycle that every
// step goes through. Worker goroutines update the nodes they own and
// deposit deliveries on the targets they own; the run loop sequences the
// phases, runs the collective exchange between them and polls the
// recording devices. Nothing here overlaps phases: update everywhere,
// then deliver everywhere, then the clock advances.
package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jasperalbers/nestgo/internal/clock"
	"github.com/jasperalbers/nestgo/internal/delivery"
	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/logging"
	"github.com/jasperalbers/nestgo/internal/recording"
	"github.com/jasperalbers/nestgo/internal/simtime"
	"github.com/jasperalbers/nestgo/internal/status"
	"github.com/jasperalbers/nestgo/internal/topology"
)

// Kernel runs a calibrated network. Build one with FromConfig for the
// config-file path, or with NewKernel over a hand-assembled Network.
type Kernel struct {
	log    *slog.Logger
	tracer *logging.PhaseTracer
	ex     delivery.Exchanger

	topo *topology.Topology
	net  *Network
	clk  *clock.Clock
	mgr  *delivery.Manager
	seed int64

	// Shared with the worker goroutines. The run loop writes these
	// only while the workers are parked at the gate; the gate's lock
	// orders the accesses.
	gate    *gate
	curStep simtime.Step
	batches [][]event.Event
	errs    []error
}

// Option adjusts kernel construction.
type Option func(*Kernel)

// WithLogger sets the kernel logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(k *Kernel) { k.log = log }
}

// WithExchanger sets the collective event exchange. Defaults to the
// single-process exchange.
func WithExchanger(ex delivery.Exchanger) Option {
	return func(k *Kernel) { k.ex = ex }
}

// WithTracer attaches a phase tracer. A nil tracer is valid and
// records nothing.
func WithTracer(tr *logging.PhaseTracer) Option {
	return func(k *Kernel) { k.tracer = tr }
}

// NewKernel wraps a fully wired network. The network is frozen and
// calibrated here, so all AddNode and Connect calls must be done.
func NewKernel(net *Network, opts ...Option) (*Kernel, error) {
	k := &Kernel{
		net:  net,
		topo: net.topo,
		seed: net.seed,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.log == nil {
		k.log = slog.Default()
	}
	if k.ex == nil {
		k.ex = delivery.Local{}
	}

	clk, err := clock.New(net.res)
	if err != nil {
		return nil, err
	}
	k.clk = clk
	k.mgr = delivery.NewManager(net.table, net, k.ex, net.LocalWorkers())

	if err := net.Calibrate(); err != nil {
		return nil, err
	}
	return k, nil
}

// Run advances the simulation by steps. The cycle per step: update
// phase on all workers, collective exchange, delivery phase on all
// workers, device sampling, clock advance. Cancellation is honored at
// step boundaries only, so a canceled run still leaves the network in
// a consistent state at some step.
//
// Run may be called repeatedly; each call continues from the current
// clock step.
func (k *Kernel) Run(ctx context.Context, steps simtime.Step) error {
	if steps < 0 {
		return fmt.Errorf("cannot run %d steps", steps)
	}
	if steps == 0 {
		return nil
	}

	workers := k.net.LocalWorkers()
	k.log.Info("run starting",
		"from_step", int64(k.clk.Now()),
		"steps", int64(steps),
		"workers", workers,
		"nodes", k.net.NumNodes(),
		"connections", k.net.NumConnections())

	k.gate = newGate(workers)
	k.errs = make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go k.worker(w, &wg)
	}
	defer func() {
		k.gate.stop()
		wg.Wait()
	}()

	stop := k.clk.Now() + steps
	for k.clk.Now() < stop {
		step := k.clk.Now()
		if err := ctx.Err(); err != nil {
			k.log.Warn("run canceled at step boundary", "step", int64(step))
			return err
		}

		k.curStep = step
		k.gate.open(phaseUpdate)
		k.gate.waitDone()
		k.tracer.Log(map[string]any{"phase": "update", "step": int64(step)})

		batches, err := k.mgr.ExchangeStep(ctx, step)
		if err != nil {
			return err
		}
		k.batches = batches
		k.gate.open(phaseApply)
		k.gate.waitDone()
		if err := k.workerErr(); err != nil {
			return fmt.Errorf("delivery phase at step %d: %w", step, err)
		}
		k.mgr.CompleteStep()

		total := 0
		for _, b := range batches {
			total += len(b)
		}
		k.tracer.Log(map[string]any{"phase": "deliver", "step": int64(step), "events": total})
		k.log.Log(ctx, logging.LevelTrace, "step complete", "step", int64(step), "events", total)

		for _, s := range k.net.samplers {
			s.Sample(step)
		}

		if err := k.clk.Advance(k.mgr.Unresolved); err != nil {
			k.log.Error("step boundary violated", "step", int64(step), "error", err)
			return err
		}
	}

	k.log.Info("run finished", "step", int64(k.clk.Now()), "time_ms", k.clk.TimeMS())
	return nil
}

// worker executes phases as the gate opens them, against the node set
// this worker owns.
func (k *Kernel) worker(w int, wg *sync.WaitGroup) {
	defer wg.Done()
	lastGen := 0
	for {
		ph, gen, ok := k.gate.next(lastGen)
		if !ok {
			return
		}
		switch ph {
		case phaseUpdate:
			for _, n := range k.net.perWorker[w] {
				for _, ev := range n.Update(k.curStep) {
					k.mgr.Emit(w, ev)
				}
			}
		case phaseApply:
			k.errs[w] = k.mgr.ApplyOwned(w, k.batches)
		}
		k.gate.markDone(gen)
		lastGen = gen
	}
}

func (k *Kernel) workerErr() error {
	for _, err := range k.errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Now returns the current step.
func (k *Kernel) Now() simtime.Step { return k.clk.Now() }

// TimeMS returns the current simulation time in milliseconds.
func (k *Kernel) TimeMS() float64 { return k.clk.TimeMS() }

// Network exposes the built network for inspection and rendering.
func (k *Kernel) Network() *Network { return k.net }

// OverrideWorkerCount forces the worker count reported by Status to n,
// without touching placement or the workers actually running. This is
// the diagnostic knob for reproducing reports from differently sized
// setups; it is deliberately not reachable through SetStatus.
func (k *Kernel) OverrideWorkerCount(n int) error {
	return k.topo.OverrideNumWorkers(n)
}

// Status reports the kernel-level view: timing, topology and network
// size.
func (k *Kernel) Status() status.Dict {
	return status.Dict{
		"resolution_ms": float64(k.clk.Resolution()),
		"step":          int64(k.clk.Now()),
		"time_ms":       k.clk.TimeMS(),
		"seed":          k.seed,
		"rank":          k.topo.Rank(),
		"processes":     k.topo.Procs(),
		"workers":       k.topo.NumWorkers(),
		"nodes":         int64(k.net.NumNodes()),
		"connections":   int64(k.net.NumConnections()),
	}
}

// SetStatus rejects every kernel-level key: they are all reports, not
// settings. Timing is fixed at construction and the worker count only
// moves through OverrideWorkerCount.
func (k *Kernel) SetStatus(d status.Dict) error {
	view := k.Status()
	for _, key := range status.Keys(d) {
		if _, ok := view[key]; ok {
			return status.Protected(key, d[key])
		}
		return status.Unknown(key, d[key])
	}
	return nil
}

// NodeStatus returns the status dictionary of one node.
func (k *Kernel) NodeStatus(id event.NodeID) (status.Dict, error) {
	n, ok := k.net.Node(id)
	if !ok {
		return nil, fmt.Errorf("unknown node %d", id)
	}
	return n.Status(), nil
}

// SetNodeStatus reconfigures one node. The node applies all keys or
// none.
func (k *Kernel) SetNodeStatus(id event.NodeID, d status.Dict) error {
	n, ok := k.net.Node(id)
	if !ok {
		return fmt.Errorf("unknown node %d", id)
	}
	if err := n.SetStatus(d); err != nil {
		return fmt.Errorf("node %d: %w", id, err)
	}
	return nil
}

// SpikeRecords gathers the records of every spike recorder in the
// network, in recorder order.
func (k *Kernel) SpikeRecords() []recording.SpikeRecord {
	var out []recording.SpikeRecord
	for _, n := range k.net.order {
		if rec, ok := n.(*recording.SpikeRecorder); ok {
			out = append(out, rec.Records()...)
		}
	}
	return out
}

// Samples gathers the samples of every multimeter in the network.
func (k *Kernel) Samples() []recording.Sample {
	var out []recording.Sample
	for _, n := range k.net.order {
		if m, ok := n.(*recording.Multimeter); ok {
			out = append(out, m.Samples()...)
		}
	}
	return out
}

// Close releases the exchange and the tracer. The kernel is unusable
// afterwards.
func (k *Kernel) Close() error {
	k.tracer.Close()
	return k.mgr.Close()
}

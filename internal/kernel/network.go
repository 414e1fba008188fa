package kernel

import (
	"fmt"
	"math/rand"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/node"
	"github.com/jasperalbers/nestgo/internal/recording"
	"github.com/jasperalbers/nestgo/internal/router"
	"github.com/jasperalbers/nestgo/internal/simtime"
	"github.com/jasperalbers/nestgo/internal/topology"
)

// remoteOwner marks a node that lives on another process. Deliveries
// addressed to it are skipped by every local worker.
const remoteOwner = -1

// Network holds the nodes and wiring of a simulation. Every process
// builds the full structure with the same AddNode and Connect calls,
// so IDs and placement agree everywhere; ownership then decides which
// process and worker actually updates each node.
type Network struct {
	topo  *topology.Topology
	res   simtime.Resolution
	seed  int64
	table *router.Table

	nodes     map[event.NodeID]node.Node
	order     []node.Node
	owner     map[event.NodeID]int
	workers   int
	perWorker [][]node.Node
	rngs      map[int]*rand.Rand
	samplers  []recording.Sampler
	nextID    event.NodeID
}

// NewNetwork creates an empty network. The global worker count is
// frozen here; later diagnostic overrides change only what the
// topology reports, never where nodes were placed.
func NewNetwork(topo *topology.Topology, res simtime.Resolution, seed int64) *Network {
	return &Network{
		topo:      topo,
		res:       res,
		seed:      seed,
		table:     router.NewTable(),
		nodes:     make(map[event.NodeID]node.Node),
		owner:     make(map[event.NodeID]int),
		workers:   topo.NumWorkers(),
		perWorker: make([][]node.Node, topo.LocalThreads()),
		rngs:      make(map[int]*rand.Rand),
		nextID:    1,
	}
}

// AddNode registers a node and assigns the next ID, starting at 1.
// Placement hashes the ID over the global worker count, so every
// process computes the same owner for the same node.
func (nw *Network) AddNode(n node.Node) event.NodeID {
	id := nw.nextID
	nw.nextID++
	n.AssignID(id)
	nw.nodes[id] = n
	nw.order = append(nw.order, n)

	g := int(id) % nw.workers
	rank := g % nw.topo.Procs()
	if rank != nw.topo.Rank() {
		nw.owner[id] = remoteOwner
		return id
	}
	thread := (g / nw.topo.Procs()) % nw.topo.LocalThreads()
	nw.owner[id] = thread
	nw.perWorker[thread] = append(nw.perWorker[thread], n)
	return id
}

// Connect adds an edge between two registered nodes. Delay is in
// steps and must be at least one; the target negotiates the receptor
// port.
func (nw *Network) Connect(source, target event.NodeID, delay simtime.Step, weight float64, kind event.Kind) error {
	src, ok := nw.nodes[source]
	if !ok {
		return fmt.Errorf("connect %d -> %d: unknown source node", source, target)
	}
	tgt, ok := nw.nodes[target]
	if !ok {
		return fmt.Errorf("connect %d -> %d: unknown target node", source, target)
	}
	return nw.table.Connect(src, tgt, delay, weight, kind, 0)
}

// AttachSampler wires a multimeter to a target through the readout
// channel. The target must accept readout connections and expose a
// readout table. Samplers are polled once per step after the delivery
// phase.
func (nw *Network) AttachSampler(m *recording.Multimeter, target event.NodeID) error {
	tgt, ok := nw.nodes[target]
	if !ok {
		return fmt.Errorf("attach multimeter to %d: unknown node", target)
	}
	if _, err := tgt.AcceptsEvent(event.KindReadout, 0); err != nil {
		return fmt.Errorf("attach multimeter to %d: %w", target, err)
	}
	obs, ok := tgt.(node.Observable)
	if !ok {
		return fmt.Errorf("attach multimeter to %d: model %s has no recordable variables", target, tgt.Model())
	}
	if err := m.Attach(target, obs); err != nil {
		return fmt.Errorf("attach multimeter to %d: %w", target, err)
	}
	nw.addSampler(m)
	return nil
}

func (nw *Network) addSampler(s recording.Sampler) {
	for _, have := range nw.samplers {
		if have == s {
			return
		}
	}
	nw.samplers = append(nw.samplers, s)
}

// Calibrate freezes the wiring and prepares every locally owned node:
// ring buffers sized to the table's maximum delay, the owning worker's
// random stream attached. Connect calls fail after this.
func (nw *Network) Calibrate() error {
	nw.table.Freeze()
	maxDelay := nw.table.MaxDelay()
	for _, n := range nw.order {
		id := n.ID()
		if nw.owner[id] == remoteOwner {
			continue
		}
		c := node.Calibration{
			Resolution: nw.res,
			MaxDelay:   maxDelay,
			RNG:        nw.rng(int(id) % nw.workers),
		}
		if err := n.Calibrate(c); err != nil {
			return fmt.Errorf("calibrating node %d (%s): %w", id, n.Model(), err)
		}
	}
	return nil
}

// rng returns the deterministic stream of a global worker, created on
// first use. Streams derive from the base seed and the worker index,
// so identical seeds give identical trajectories.
func (nw *Network) rng(g int) *rand.Rand {
	r, ok := nw.rngs[g]
	if !ok {
		r = rand.New(rand.NewSource(nw.seed + int64(g)))
		nw.rngs[g] = r
	}
	return r
}

// DuplicateCoderEdges returns duplicated spike edges whose source and
// target both encode information in event multiplicity. A duplicated
// edge delivers a second copy of every emission, which the receiver
// cannot tell apart from a multiplicity pair, so builders refuse such
// wiring unless duplicates are explicitly allowed.
func (nw *Network) DuplicateCoderEdges() []router.Edge {
	var bad []router.Edge
	for _, e := range nw.table.Duplicates() {
		if e.Kind != event.KindSpike {
			continue
		}
		if nw.multiplicityCoded(e.Source) && nw.multiplicityCoded(e.Target) {
			bad = append(bad, e)
		}
	}
	return bad
}

func (nw *Network) multiplicityCoded(id event.NodeID) bool {
	mc, ok := nw.nodes[id].(node.MultiplicityCoder)
	return ok && mc.MultiplicityCoded()
}

// Node implements the delivery registry.
func (nw *Network) Node(id event.NodeID) (node.Node, bool) {
	n, ok := nw.nodes[id]
	return n, ok
}

// Owner returns the local worker slot that owns a node, or -1 when the
// node lives on another process.
func (nw *Network) Owner(id event.NodeID) int {
	w, ok := nw.owner[id]
	if !ok {
		return remoteOwner
	}
	return w
}

// NumNodes counts all registered nodes, local and remote alike.
func (nw *Network) NumNodes() int {
	return len(nw.order)
}

// NumConnections counts the edges in the local routing table.
func (nw *Network) NumConnections() int {
	return nw.table.NumConnections()
}

// LocalWorkers returns the number of worker slots on this process.
func (nw *Network) LocalWorkers() int {
	return len(nw.perWorker)
}

// Nodes returns all registered nodes in creation order.
func (nw *Network) Nodes() []node.Node {
	return nw.order
}

// Connections returns every edge in the local routing table, ordered by
// source ID.
func (nw *Network) Connections() []router.Connection {
	return nw.table.Connections()
}

// Resolution returns the simulation grid the network was built on.
func (nw *Network) Resolution() simtime.Resolution {
	return nw.res
}

// Package router maintains the connection table: who talks to whom, on
// which channel, with what weight and delay. Connections are validated
// and negotiated when they are made, so by the time the first step runs
// every edge in the table is known deliverable.
package router

import (
	"fmt"
	"sort"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/node"
	"github.com/jasperalbers/nestgo/internal/simtime"
)

// Connection is one directed edge of the network.
type Connection struct {
	Source event.NodeID
	Target event.NodeID
	Delay  simtime.Step
	Weight float64
	Kind   event.Kind
	Port   event.Port
}

// ConnectionError reports a rejected or impossible connection. It is
// recoverable: the table is left unchanged.
type ConnectionError struct {
	Source event.NodeID
	Target event.NodeID
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	msg := fmt.Sprintf("connect %d -> %d: %s", e.Source, e.Target, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Edge identifies a (source, target, kind) triple for duplicate
// detection.
type Edge struct {
	Source event.NodeID
	Target event.NodeID
	Kind   event.Kind
}

// Table is the connection table. It is append-only while the network is
// being built and read-only once frozen for a run; Route is safe for
// concurrent use after Freeze.
type Table struct {
	out      map[event.NodeID][]Connection
	edges    map[Edge]int
	count    int
	maxDelay simtime.Step
	frozen   bool
}

// NewTable creates an empty connection table.
func NewTable() *Table {
	return &Table{
		out:   make(map[event.NodeID][]Connection),
		edges: make(map[Edge]int),
	}
}

// Connect adds an edge from source to target. The delay is in steps and
// must be at least one: a delivery always lands strictly after the step
// it was emitted in. The target decides whether it can receive events
// of this kind on the requested port and which receptor port the
// deliveries should carry.
func (t *Table) Connect(source, target node.Node, delay simtime.Step, weight float64, kind event.Kind, port event.Port) error {
	sid, tid := source.ID(), target.ID()
	if t.frozen {
		return &ConnectionError{Source: sid, Target: tid, Reason: "connection table is frozen during a run"}
	}
	if sid == event.NoNode || tid == event.NoNode {
		return &ConnectionError{Source: sid, Target: tid, Reason: "node not registered"}
	}
	if delay < 1 {
		return &ConnectionError{Source: sid, Target: tid,
			Reason: fmt.Sprintf("delay must be at least one step, got %d", delay)}
	}

	granted, err := target.AcceptsEvent(kind, port)
	if err != nil {
		return &ConnectionError{Source: sid, Target: tid,
			Reason: fmt.Sprintf("target %s cannot receive %s events", target.Model(), kind), Err: err}
	}

	t.out[sid] = append(t.out[sid], Connection{
		Source: sid,
		Target: tid,
		Delay:  delay,
		Weight: weight,
		Kind:   kind,
		Port:   granted,
	})
	t.edges[Edge{Source: sid, Target: tid, Kind: kind}]++
	t.count++
	if delay > t.maxDelay {
		t.maxDelay = delay
	}
	return nil
}

// Freeze makes the table read-only. Called at run start; Connect fails
// afterwards.
func (t *Table) Freeze() { t.frozen = true }

// NumConnections returns the number of edges in the table.
func (t *Table) NumConnections() int { return t.count }

// MaxDelay returns the largest delay in the table, in steps. With no
// connections it returns 1 so ring buffers still get a usable capacity.
func (t *Table) MaxDelay() simtime.Step {
	if t.maxDelay < 1 {
		return 1
	}
	return t.maxDelay
}

// Connections returns every edge in the table, ordered by source and,
// per source, in the order the connections were made.
func (t *Table) Connections() []Connection {
	ids := make([]event.NodeID, 0, len(t.out))
	for id := range t.out {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	conns := make([]Connection, 0, t.count)
	for _, id := range ids {
		conns = append(conns, t.out[id]...)
	}
	return conns
}

// Out returns source's outgoing connections of the given kind, in the
// order they were made.
func (t *Table) Out(source event.NodeID, kind event.Kind) []Connection {
	var conns []Connection
	for _, c := range t.out[source] {
		if c.Kind == kind {
			conns = append(conns, c)
		}
	}
	return conns
}

// Duplicates returns the (source, target, kind) triples that appear on
// more than one connection. Duplicate spike edges between multiplicity
// coding models corrupt the pair decoding at the receiver, so builders
// check this before a run; the table itself does not forbid them.
func (t *Table) Duplicates() []Edge {
	var dups []Edge
	for e, n := range t.edges {
		if n > 1 {
			dups = append(dups, e)
		}
	}
	return dups
}

// Route expands an emitted event over the source's outgoing connections
// of the matching kind. Each connection contributes one delivery per
// unit of multiplicity, scheduled at emission step plus the connection
// delay; the copies of one emission stay consecutive in the returned
// slice and are never interleaved with another emission's copies.
func (t *Table) Route(ev event.Event) []event.Delivery {
	conns := t.out[ev.Source]
	if len(conns) == 0 {
		return nil
	}

	var ds []event.Delivery
	for _, c := range conns {
		if c.Kind != ev.Kind {
			continue
		}
		for i := 0; i < ev.Multiplicity; i++ {
			ds = append(ds, event.Delivery{
				Target:       c.Target,
				Source:       ev.Source,
				Step:         ev.Step + c.Delay,
				EmissionStep: ev.Step,
				Kind:         ev.Kind,
				Port:         c.Port,
				Weight:       c.Weight,
				Payload:      ev.Payload,
			})
		}
	}
	return ds
}

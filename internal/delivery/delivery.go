// Package delivery moves emitted events from per-worker outboxes to
// their targets' ring buffers. The order contract everything downstream
// leans on: the copies a single emission unfolds into arrive at any
// given target back to back, whatever worker or process emitted them.
//
// Per step the manager runs three phases. Collect snapshots the local
// outboxes in worker order. Exchange merges every process's batch into
// one rank-ordered sequence (a synchronous collective; a missing
// process blocks or fails the step, it never drops). Apply routes the
// merged sequence and deposits each delivery on the worker that owns
// the target, so every ring buffer keeps a single writer.
package delivery

import (
	"context"
	"fmt"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/node"
	"github.com/jasperalbers/nestgo/internal/router"
	"github.com/jasperalbers/nestgo/internal/simtime"
)

// Exchanger is the collective exchange across processes. Exchange
// submits this process's emission-ordered batch for a step and returns
// every process's batch for the same step, indexed by rank. All
// processes must call Exchange for the same step; the call blocks until
// the merged result is available.
type Exchanger interface {
	Exchange(ctx context.Context, step simtime.Step, local []event.Event) ([][]event.Event, error)
	Close() error
}

// Local is the single-process Exchanger: the merged result is just the
// local batch at rank 0.
type Local struct{}

// Exchange returns the local batch unchanged.
func (Local) Exchange(_ context.Context, _ simtime.Step, local []event.Event) ([][]event.Event, error) {
	return [][]event.Event{local}, nil
}

// Close is a no-op.
func (Local) Close() error { return nil }

// Registry resolves node IDs to nodes and to the local worker slot that
// owns them. Nodes owned by other processes resolve to ok == false and
// their deliveries are skipped here; the owning process deposits them.
type Registry interface {
	Node(id event.NodeID) (node.Node, bool)
	Owner(id event.NodeID) int
}

// Manager owns the outboxes and drives the per-step delivery cycle.
//
// Concurrency: Emit is called by each worker for its own slot only.
// Collect, ExchangeStep, CompleteStep and Unresolved run on the
// coordinator while workers are parked at the phase gate. ApplyOwned
// runs on all workers concurrently but only reads the merged batch and
// writes through nodes the calling worker owns.
type Manager struct {
	table *router.Table
	reg   Registry
	ex    Exchanger

	outboxes [][]event.Event
	inFlight int
}

// NewManager creates a manager with one outbox per local worker.
func NewManager(table *router.Table, reg Registry, ex Exchanger, workers int) *Manager {
	return &Manager{
		table:    table,
		reg:      reg,
		ex:       ex,
		outboxes: make([][]event.Event, workers),
	}
}

// Emit appends an emitted event to the worker's outbox, preserving
// emission order.
func (m *Manager) Emit(worker int, ev event.Event) {
	m.outboxes[worker] = append(m.outboxes[worker], ev)
}

// Collect drains the outboxes in worker order into this process's batch
// for the step. The drained events count as in flight until
// CompleteStep confirms the delivery phase finished.
func (m *Manager) Collect() []event.Event {
	var local []event.Event
	for w := range m.outboxes {
		local = append(local, m.outboxes[w]...)
		m.outboxes[w] = m.outboxes[w][:0]
	}
	m.inFlight += len(local)
	return local
}

// ExchangeStep runs Collect and the collective exchange, returning the
// rank-ordered batches for the step. Remote events join the in-flight
// count: they too must reach their local targets before the boundary.
func (m *Manager) ExchangeStep(ctx context.Context, step simtime.Step) ([][]event.Event, error) {
	local := m.Collect()
	localLen := len(local)

	batches, err := m.ex.Exchange(ctx, step, local)
	if err != nil {
		return nil, fmt.Errorf("event exchange at step %d: %w", step, err)
	}

	total := 0
	for _, b := range batches {
		total += len(b)
	}
	m.inFlight += total - localLen
	return batches, nil
}

// ApplyOwned routes every event of the merged batches and deposits the
// deliveries whose targets the given worker owns. Each worker scans the
// full sequence; the owner filter keeps every target buffer single
// writer while all workers share the routing work.
func (m *Manager) ApplyOwned(worker int, batches [][]event.Event) error {
	for _, batch := range batches {
		for _, ev := range batch {
			for _, d := range m.table.Route(ev) {
				if m.reg.Owner(d.Target) != worker {
					continue
				}
				n, ok := m.reg.Node(d.Target)
				if !ok {
					return fmt.Errorf("delivery to unknown node %d at step %d", d.Target, d.Step)
				}
				n.Deliver(d)
			}
		}
	}
	return nil
}

// CompleteStep marks the delivery phase as finished: everything that
// was in flight has been deposited. The coordinator calls this only
// after all workers returned from ApplyOwned without error.
func (m *Manager) CompleteStep() {
	m.inFlight = 0
}

// Unresolved reports how many events are emitted but not delivered:
// outbox residue plus anything in flight. At a clean step boundary this
// is zero; the clock refuses to advance otherwise.
func (m *Manager) Unresolved() int {
	n := m.inFlight
	for w := range m.outboxes {
		n += len(m.outboxes[w])
	}
	return n
}

// Close shuts down the exchanger.
func (m *Manager) Close() error {
	return m.ex.Close()
}

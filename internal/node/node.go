// Package node defines the interface every simulated element implements,
// neurons and devices alike. The kernel talks to nodes exclusively
// through this interface: negotiation at wiring time, Deliver during the
// delivery phase, Update during the update phase.
package node

import (
	"math/rand"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/readout"
	"github.com/jasperalbers/nestgo/internal/simtime"
	"github.com/jasperalbers/nestgo/internal/status"
)

// Calibration carries the network-level context a node needs before the
// first step: the step resolution, the maximum connection delay (which
// sizes the input ring buffers), and the deterministic random source of
// the worker that owns the node.
type Calibration struct {
	Resolution simtime.Resolution
	MaxDelay   simtime.Step
	RNG        *rand.Rand
}

// Node is a simulated element.
//
// The kernel drives nodes in phases: during the update phase of step t
// only the owning worker calls Update(t); during the delivery phase only
// the owning worker calls Deliver, and every delivery is scheduled for a
// step strictly after t. A node therefore never needs locking on its own
// state.
type Node interface {
	// ID returns the node's network ID, 0 before registration.
	ID() event.NodeID

	// AssignID is called exactly once, by the kernel, at registration.
	AssignID(event.NodeID)

	// Model names the model variant, e.g. "sirs_neuron".
	Model() string

	// AcceptsEvent is the wiring-time handshake. The node either
	// grants the connection (returning the receptor port deliveries
	// should carry) or rejects it with an error describing what the
	// model cannot receive.
	AcceptsEvent(kind event.Kind, port event.Port) (event.Port, error)

	// Calibrate prepares the node for simulation.
	Calibrate(c Calibration) error

	// Deliver hands the node one routed event copy. Copies of a
	// multiplicity-coded emission arrive back to back.
	Deliver(d event.Delivery)

	// Update advances the node through step and returns whatever it
	// emitted, in emission order, stamped with the current step.
	Update(step simtime.Step) []event.Event

	// Status returns the node's parameters and state as a dictionary.
	Status() status.Dict

	// SetStatus reconfigures the node. Implementations validate the
	// whole dictionary before touching anything; on error the node is
	// unchanged.
	SetStatus(d status.Dict) error
}

// Observable is implemented by nodes that expose recordable variables.
// Sampling devices attach through the read-out table.
type Observable interface {
	Readouts() *readout.Table
}

// MultiplicityCoder is implemented by models whose spike output encodes
// information in the event multiplicity. Builders refuse duplicate
// edges between two coders: overlapping copies of independent events
// are indistinguishable from a split pair at the receiver.
type MultiplicityCoder interface {
	MultiplicityCoded() bool
}

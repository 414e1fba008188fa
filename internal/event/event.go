// Package event defines the event and delivery records that move through
// the kernel. An Event is what a node emits; a Delivery is one routed
// copy of an event bound for a single target, produced by expanding the
// event over the connection table.
package event

import (
	"fmt"

	"github.com/jasperalbers/nestgo/internal/simtime"
)

// NodeID identifies a node in the network. IDs are assigned by the
// kernel starting at 1; 0 is reserved as the null ID.
type NodeID int64

// NoNode is the null node ID.
const NoNode NodeID = 0

// Port identifies a receptor port on the target side of a connection.
type Port int

// Kind is the event channel an event travels on.
type Kind int

const (
	// KindSpike is the discrete event channel. Spike payloads are
	// carried in the multiplicity, not the payload field.
	KindSpike Kind = iota

	// KindCurrent is the continuous channel; the payload is the
	// current amplitude emitted for one step.
	KindCurrent

	// KindReadout marks probe connections from sampling devices to
	// observable nodes. Readout connections transport no events; they
	// are negotiated at wiring time and used by samplers directly.
	KindReadout
)

func (k Kind) String() string {
	switch k {
	case KindSpike:
		return "spike"
	case KindCurrent:
		return "current"
	case KindReadout:
		return "readout"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a kind name to its Kind value.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "spike":
		return KindSpike, nil
	case "current":
		return KindCurrent, nil
	case "readout":
		return KindReadout, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q (valid: spike, current, readout)", s)
	}
}

// Event is one emission by a source node, stamped with the step it was
// emitted in. Multiplicity is the number of unit events folded into this
// record; models that encode information in the multiplicity rely on the
// kernel keeping the unfolded copies contiguous per target.
type Event struct {
	Source       NodeID
	Step         simtime.Step
	Kind         Kind
	Multiplicity int
	Payload      float64
}

// Delivery is one routed copy of an event: a single unit arrival at a
// single target. Copies that unfold from one Event share Source, Kind
// and EmissionStep; Step is the scheduled arrival step (emission plus
// the connection delay).
type Delivery struct {
	Target       NodeID
	Source       NodeID
	Step         simtime.Step
	EmissionStep simtime.Step
	Kind         Kind
	Port         Port
	Weight       float64
	Payload      float64
}

// SameEmission reports whether two deliveries are copies of the same
// logical emission. Multiplicity-decoding receivers use this to detect
// a split pair arriving back to back.
func (d Delivery) SameEmission(o Delivery) bool {
	return d.Source == o.Source && d.EmissionStep == o.EmissionStep && d.Kind == o.Kind
}

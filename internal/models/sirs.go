package models

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/node"
	"github.com/jasperalbers/nestgo/internal/readout"
	"github.com/jasperalbers/nestgo/internal/ring"
	"github.com/jasperalbers/nestgo/internal/simtime"
	"github.com/jasperalbers/nestgo/internal/status"
)

// SIRS state values. The integer encoding is part of the model's
// status interface.
const (
	StateS int64 = 0
	StateI int64 = 1
	StateR int64 = 2
)

// unscheduled marks a transition time that has to be (re)drawn before
// the next arrival check.
const unscheduled simtime.Step = -1

// SIRSNeuron is a stochastic three-state unit cycling Susceptible ->
// Infected -> Recovered -> Susceptible. Transitions happen at scheduled
// times drawn from an exponential waiting-time distribution whose rate
// depends on the current state: leaving S scales with beta times the
// gain of the accumulated input h, leaving I with mu, leaving R with
// the base rate. All rates share the time constant tau_m.
//
// The neuron signals transitions to its targets through spike events:
// an up-transition S -> I emits with multiplicity 2, the two
// down-transitions emit with multiplicity 1. On the receiving side the
// two copies of an up-transition are recognized by arriving back to
// back with the same source and emission step, which is exactly the
// contiguity the delivery layer guarantees. A second connection
// between the same pair of neurons duplicates every copy and silently
// breaks this decoding; network builders are expected to keep such
// edges unique.
type SIRSNeuron struct {
	id event.NodeID

	tauM      float64
	beta      float64
	mu        float64
	gainName  string
	gainSlope float64
	gainTheta float64
	gain      Gain

	y     int64
	h     float64
	tNext simtime.Step

	lastSpikeSource   event.NodeID
	lastSpikeEmission simtime.Step

	spikes   *ring.Accumulator
	currents *ring.Accumulator
	rng      *rand.Rand
	res      simtime.Resolution
	reads    *readout.Table
}

// NewSIRSNeuron creates a neuron in state S with default parameters:
// tau_m 10 ms, beta 1, mu 1, linear gain with slope 1.
func NewSIRSNeuron() *SIRSNeuron {
	n := &SIRSNeuron{
		tauM:              10.0,
		beta:              1.0,
		mu:                1.0,
		gainName:          "linear",
		gainSlope:         1.0,
		gainTheta:         0.0,
		gain:              LinearGain{Slope: 1.0},
		tNext:             unscheduled,
		lastSpikeEmission: -1,
		reads:             readout.NewTable(),
	}
	n.reads.Register("y", func() float64 { return float64(n.y) })
	n.reads.Register("h", func() float64 { return n.h })
	return n
}

func (n *SIRSNeuron) ID() event.NodeID         { return n.id }
func (n *SIRSNeuron) AssignID(id event.NodeID) { n.id = id }
func (n *SIRSNeuron) Model() string            { return "sirs_neuron" }

// MultiplicityCoded reports that this model's spike output encodes
// transition direction in the event multiplicity.
func (n *SIRSNeuron) MultiplicityCoded() bool { return true }

// Readouts exposes the recordable variables y and h.
func (n *SIRSNeuron) Readouts() *readout.Table { return n.reads }

// AcceptsEvent grants spike and current input and read-out probes, all
// on port 0.
func (n *SIRSNeuron) AcceptsEvent(kind event.Kind, port event.Port) (event.Port, error) {
	if port != 0 {
		return 0, fmt.Errorf("sirs_neuron has no port %d", port)
	}
	switch kind {
	case event.KindSpike, event.KindCurrent, event.KindReadout:
		return 0, nil
	default:
		return 0, fmt.Errorf("sirs_neuron does not receive %s events", kind)
	}
}

// Calibrate sizes the input buffers for the network's maximum delay and
// takes the owning worker's random source.
func (n *SIRSNeuron) Calibrate(c node.Calibration) error {
	if err := c.Resolution.Validate(); err != nil {
		return fmt.Errorf("sirs_neuron calibration: %w", err)
	}
	if c.RNG == nil {
		return fmt.Errorf("sirs_neuron calibration: no random source")
	}

	spikes, err := ring.NewAccumulator(c.MaxDelay)
	if err != nil {
		return fmt.Errorf("sirs_neuron spike buffer: %w", err)
	}
	currents, err := ring.NewAccumulator(c.MaxDelay)
	if err != nil {
		return fmt.Errorf("sirs_neuron current buffer: %w", err)
	}

	n.spikes = spikes
	n.currents = currents
	n.rng = c.RNG
	n.res = c.Resolution
	n.tNext = unscheduled
	return nil
}

// Deliver decodes one incoming event copy.
//
// Spike copies carry transition direction in how they arrive: a lone
// copy is a down-transition and contributes -weight; the second copy of
// a back-to-back pair from the same source and emission step marks an
// up-transition and contributes +2*weight, compensating the -weight the
// first copy booked. The net effect is +weight for an up-transition and
// -weight for a down-transition.
func (n *SIRSNeuron) Deliver(d event.Delivery) {
	switch d.Kind {
	case event.KindSpike:
		if d.Source == n.lastSpikeSource && d.EmissionStep == n.lastSpikeEmission {
			n.spikes.Deposit(d.Step, 2*d.Weight)
		} else {
			n.spikes.Deposit(d.Step, -d.Weight)
		}
		n.lastSpikeSource = d.Source
		n.lastSpikeEmission = d.EmissionStep
	case event.KindCurrent:
		n.currents.Deposit(d.Step, d.Weight*d.Payload)
	}
}

// Update advances the neuron through one step: fold the step's buffered
// input into h, then fire the scheduled transition if its time has
// arrived. A transition consumes h, emits the transition's spike and
// draws the next waiting time from the new state's rate. While in S,
// fresh input reshapes the hazard, so the waiting time is redrawn
// whenever h changes without a transition firing.
func (n *SIRSNeuron) Update(step simtime.Step) []event.Event {
	in := n.spikes.ReadAndClear(step) + n.currents.ReadAndClear(step)
	n.h += in

	drawn := false
	if n.tNext == unscheduled {
		n.tNext = n.schedule(step)
		drawn = true
	}

	if n.tNext != simtime.Never && step >= n.tNext {
		mult := 1
		if n.y == StateS {
			mult = 2
		}
		n.y = (n.y + 1) % 3
		n.h = 0
		n.tNext = n.schedule(step)

		return []event.Event{{
			Source:       n.id,
			Step:         step,
			Kind:         event.KindSpike,
			Multiplicity: mult,
		}}
	}

	if !drawn && n.y == StateS && in != 0 {
		n.tNext = n.schedule(step)
	}
	return nil
}

// rate returns the hazard for leaving the current state, per ms.
func (n *SIRSNeuron) rate() float64 {
	switch n.y {
	case StateS:
		return n.beta * n.gain.Eval(n.h) / n.tauM
	case StateI:
		return n.mu / n.tauM
	default:
		return 1 / n.tauM
	}
}

// schedule draws the next transition step from an exponential waiting
// time at the current rate. The wait is quantized up to whole steps, so
// a transition never lands on the step it was drawn in. A zero rate
// means the state cannot be left until the hazard changes.
func (n *SIRSNeuron) schedule(step simtime.Step) simtime.Step {
	r := n.rate()
	if r <= 0 {
		return simtime.Never
	}
	waitMS := n.rng.ExpFloat64() / r
	steps := simtime.Step(math.Ceil(waitMS / float64(n.res)))
	if steps < 1 {
		steps = 1
	}
	return step + steps
}

// Status returns parameters and state. t_next is the scheduled
// transition step, or -1 when no transition is scheduled.
func (n *SIRSNeuron) Status() status.Dict {
	tNext := int64(-1)
	if n.tNext != unscheduled && n.tNext != simtime.Never {
		tNext = int64(n.tNext)
	}
	return status.Dict{
		"model":      n.Model(),
		"tau_m":      n.tauM,
		"beta":       n.beta,
		"mu":         n.mu,
		"gain":       n.gainName,
		"gain_slope": n.gainSlope,
		"gain_theta": n.gainTheta,
		"y":          n.y,
		"h":          n.h,
		"t_next":     tNext,
	}
}

// SetStatus reconfigures parameters and state. The whole dictionary is
// validated before anything is applied; on error the neuron is exactly
// as it was. A successful set discards any scheduled transition time,
// since the rates it was drawn from may no longer hold.
func (n *SIRSNeuron) SetStatus(d status.Dict) error {
	tauM, beta, mu := n.tauM, n.beta, n.mu
	gainName, gainSlope, gainTheta := n.gainName, n.gainSlope, n.gainTheta
	y, h := n.y, n.h

	for _, key := range status.Keys(d) {
		switch key {
		case "tau_m":
			v, _, err := status.Float(d, key)
			if err != nil {
				return err
			}
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				return status.Errf(key, v, "must be a positive time constant in ms")
			}
			tauM = v
		case "beta":
			v, _, err := status.Float(d, key)
			if err != nil {
				return err
			}
			if math.IsNaN(v) || v < 0 {
				return status.Errf(key, v, "must be >= 0")
			}
			beta = v
		case "mu":
			v, _, err := status.Float(d, key)
			if err != nil {
				return err
			}
			if math.IsNaN(v) || v < 0 {
				return status.Errf(key, v, "must be >= 0")
			}
			mu = v
		case "gain":
			v, _, err := status.Str(d, key)
			if err != nil {
				return err
			}
			gainName = v
		case "gain_slope":
			v, _, err := status.Float(d, key)
			if err != nil {
				return err
			}
			gainSlope = v
		case "gain_theta":
			v, _, err := status.Float(d, key)
			if err != nil {
				return err
			}
			gainTheta = v
		case "y":
			v, _, err := status.Int(d, key)
			if err != nil {
				return err
			}
			if v != StateS && v != StateI && v != StateR {
				return status.Errf(key, v, "must be 0 (S), 1 (I) or 2 (R)")
			}
			y = v
		case "h":
			v, _, err := status.Float(d, key)
			if err != nil {
				return err
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return status.Errf(key, v, "must be finite")
			}
			h = v
		case "model", "t_next":
			return status.Protected(key, d[key])
		default:
			return status.Unknown(key, d[key])
		}
	}

	gain, err := NewGain(gainName, gainSlope, gainTheta)
	if err != nil {
		return status.Errf("gain", gainName, "%v", err)
	}

	n.tauM, n.beta, n.mu = tauM, beta, mu
	n.gainName, n.gainSlope, n.gainTheta = gainName, gainSlope, gainTheta
	n.gain = gain
	n.y, n.h = y, h
	if len(d) > 0 {
		n.tNext = unscheduled
	}
	return nil
}

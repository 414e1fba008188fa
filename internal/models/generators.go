package models

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/node"
	"github.com/jasperalbers/nestgo/internal/simtime"
	"github.com/jasperalbers/nestgo/internal/status"
)

// DCGenerator emits a constant current every step while its window is
// active. It is a pure source: it accepts no inbound connections.
type DCGenerator struct {
	id        event.NodeID
	amplitude float64
	window    simtime.Interval
}

// NewDCGenerator creates a generator with amplitude 0 and an unbounded
// active window.
func NewDCGenerator() *DCGenerator {
	return &DCGenerator{window: simtime.Interval{Start: 0, Stop: simtime.Never}}
}

func (g *DCGenerator) ID() event.NodeID         { return g.id }
func (g *DCGenerator) AssignID(id event.NodeID) { g.id = id }
func (g *DCGenerator) Model() string            { return "dc_generator" }

// AcceptsEvent rejects everything: generators only send.
func (g *DCGenerator) AcceptsEvent(kind event.Kind, _ event.Port) (event.Port, error) {
	return 0, fmt.Errorf("dc_generator does not receive %s events", kind)
}

func (g *DCGenerator) Calibrate(node.Calibration) error { return nil }

func (g *DCGenerator) Deliver(event.Delivery) {}

// Update emits the step's current sample while the window is active.
func (g *DCGenerator) Update(step simtime.Step) []event.Event {
	if g.amplitude == 0 || !g.window.Contains(step) {
		return nil
	}
	return []event.Event{{
		Source:       g.id,
		Step:         step,
		Kind:         event.KindCurrent,
		Multiplicity: 1,
		Payload:      g.amplitude,
	}}
}

func (g *DCGenerator) Status() status.Dict {
	stop := int64(-1)
	if g.window.Stop != simtime.Never {
		stop = int64(g.window.Stop)
	}
	return status.Dict{
		"model":     g.Model(),
		"amplitude": g.amplitude,
		"start":     int64(g.window.Start),
		"stop":      stop,
	}
}

func (g *DCGenerator) SetStatus(d status.Dict) error {
	amplitude := g.amplitude
	window := g.window

	for _, key := range status.Keys(d) {
		switch key {
		case "amplitude":
			v, _, err := status.Float(d, key)
			if err != nil {
				return err
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return status.Errf(key, v, "must be finite")
			}
			amplitude = v
		case "start":
			v, _, err := status.Int(d, key)
			if err != nil {
				return err
			}
			if v < 0 {
				return status.Errf(key, v, "must be >= 0")
			}
			window.Start = simtime.Step(v)
		case "stop":
			v, _, err := status.Int(d, key)
			if err != nil {
				return err
			}
			if v < 0 {
				window.Stop = simtime.Never
			} else {
				window.Stop = simtime.Step(v)
			}
		case "model":
			return status.Protected(key, d[key])
		default:
			return status.Unknown(key, d[key])
		}
	}

	if window.Stop != simtime.Never && window.Stop < window.Start {
		return status.Errf("stop", int64(window.Stop), "must not precede start %d", window.Start)
	}

	g.amplitude = amplitude
	g.window = window
	return nil
}

// NoiseGenerator emits a Gaussian current sample every step, drawn from
// its owning worker's random source, so runs with the same seed produce
// the same noise.
type NoiseGenerator struct {
	id     event.NodeID
	mean   float64
	std    float64
	window simtime.Interval
	rng    *rand.Rand
}

// NewNoiseGenerator creates a generator with mean 0, std 0 and an
// unbounded active window.
func NewNoiseGenerator() *NoiseGenerator {
	return &NoiseGenerator{window: simtime.Interval{Start: 0, Stop: simtime.Never}}
}

func (g *NoiseGenerator) ID() event.NodeID         { return g.id }
func (g *NoiseGenerator) AssignID(id event.NodeID) { g.id = id }
func (g *NoiseGenerator) Model() string            { return "noise_generator" }

// AcceptsEvent rejects everything: generators only send.
func (g *NoiseGenerator) AcceptsEvent(kind event.Kind, _ event.Port) (event.Port, error) {
	return 0, fmt.Errorf("noise_generator does not receive %s events", kind)
}

func (g *NoiseGenerator) Calibrate(c node.Calibration) error {
	if c.RNG == nil {
		return fmt.Errorf("noise_generator calibration: no random source")
	}
	g.rng = c.RNG
	return nil
}

func (g *NoiseGenerator) Deliver(event.Delivery) {}

// Update draws and emits the step's noise sample while the window is
// active. The draw happens only when a sample will actually be
// emitted, keeping disabled generators out of the random stream.
func (g *NoiseGenerator) Update(step simtime.Step) []event.Event {
	if !g.window.Contains(step) {
		return nil
	}
	if g.mean == 0 && g.std == 0 {
		return nil
	}
	sample := g.mean + g.std*g.rng.NormFloat64()
	return []event.Event{{
		Source:       g.id,
		Step:         step,
		Kind:         event.KindCurrent,
		Multiplicity: 1,
		Payload:      sample,
	}}
}

func (g *NoiseGenerator) Status() status.Dict {
	stop := int64(-1)
	if g.window.Stop != simtime.Never {
		stop = int64(g.window.Stop)
	}
	return status.Dict{
		"model": g.Model(),
		"mean":  g.mean,
		"std":   g.std,
		"start": int64(g.window.Start),
		"stop":  stop,
	}
}

func (g *NoiseGenerator) SetStatus(d status.Dict) error {
	mean, std := g.mean, g.std
	window := g.window

	for _, key := range status.Keys(d) {
		switch key {
		case "mean":
			v, _, err := status.Float(d, key)
			if err != nil {
				return err
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return status.Errf(key, v, "must be finite")
			}
			mean = v
		case "std":
			v, _, err := status.Float(d, key)
			if err != nil {
				return err
			}
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return status.Errf(key, v, "must be >= 0")
			}
			std = v
		case "start":
			v, _, err := status.Int(d, key)
			if err != nil {
				return err
			}
			if v < 0 {
				return status.Errf(key, v, "must be >= 0")
			}
			window.Start = simtime.Step(v)
		case "stop":
			v, _, err := status.Int(d, key)
			if err != nil {
				return err
			}
			if v < 0 {
				window.Stop = simtime.Never
			} else {
				window.Stop = simtime.Step(v)
			}
		case "model":
			return status.Protected(key, d[key])
		default:
			return status.Unknown(key, d[key])
		}
	}

	if window.Stop != simtime.Never && window.Stop < window.Start {
		return status.Errf("stop", int64(window.Stop), "must not precede start %d", window.Start)
	}

	g.mean, g.std = mean, std
	g.window = window
	return nil
}

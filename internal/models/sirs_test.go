package models

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/node"
	"github.com/jasperalbers/nestgo/internal/simtime"
	"github.com/jasperalbers/nestgo/internal/status"
)

func calibratedSIRS(t *testing.T, seed int64) *SIRSNeuron {
	t.Helper()
	n := NewSIRSNeuron()
	n.AssignID(1)
	err := n.Calibrate(node.Calibration{
		Resolution: simtime.DefaultResolutionMS,
		MaxDelay:   10,
		RNG:        rand.New(rand.NewSource(seed)),
	})
	if err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}
	return n
}

func readVar(t *testing.T, n *SIRSNeuron, name string) float64 {
	t.Helper()
	v, err := n.Readouts().Read(name)
	if err != nil {
		t.Fatalf("Read(%q) error = %v", name, err)
	}
	return v
}

// A neuron pushed into S with positive drive walks the full cycle
// S -> I -> R -> S. The up-transition announces itself with a
// multiplicity-2 spike, the two down-transitions with multiplicity 1,
// and the accumulated input is consumed by the transition that used it.
func TestTransitionCycle(t *testing.T) {
	n := calibratedSIRS(t, 7)
	if err := n.SetStatus(status.Dict{"h": 1.0}); err != nil {
		t.Fatalf("SetStatus(h) error = %v", err)
	}

	type transition struct {
		step simtime.Step
		mult int
		from int64
		to   int64
	}
	var seen []transition

	const maxSteps = 500000
	for step := simtime.Step(0); step < maxSteps && len(seen) < 3; step++ {
		before := int64(readVar(t, n, "y"))
		out := n.Update(step)
		after := int64(readVar(t, n, "y"))

		if len(out) == 0 {
			if before != after {
				t.Fatalf("y changed %d -> %d at step %d without an event", before, after, step)
			}
			continue
		}
		if len(out) != 1 {
			t.Fatalf("Update(%d) emitted %d events, want 1", step, len(out))
		}
		ev := out[0]
		if ev.Kind != event.KindSpike {
			t.Errorf("event kind = %s, want spike", ev.Kind)
		}
		if ev.Source != n.ID() {
			t.Errorf("event source = %d, want %d", ev.Source, n.ID())
		}
		if ev.Step != step {
			t.Errorf("event step = %d, want %d", ev.Step, step)
		}
		seen = append(seen, transition{step: step, mult: ev.Multiplicity, from: before, to: after})
	}

	if len(seen) != 3 {
		t.Fatalf("saw %d transitions in %d steps, want 3", len(seen), maxSteps)
	}

	want := []struct {
		mult int
		from int64
		to   int64
	}{
		{2, StateS, StateI},
		{1, StateI, StateR},
		{1, StateR, StateS},
	}
	for i, tr := range seen {
		if tr.mult != want[i].mult || tr.from != want[i].from || tr.to != want[i].to {
			t.Errorf("transition %d = m%d %d->%d at step %d, want m%d %d->%d",
				i, tr.mult, tr.from, tr.to, tr.step, want[i].mult, want[i].from, want[i].to)
		}
	}
	if seen[0].step < 1 {
		t.Errorf("first transition at step %d, want >= 1 (waits are at least one step)", seen[0].step)
	}

	// The up-transition consumed h; with a linear gain and no further
	// input the neuron is silent for good once back in S.
	if got := readVar(t, n, "h"); got != 0 {
		t.Errorf("h after cycle = %v, want 0", got)
	}
	for step := seen[2].step + 1; step < seen[2].step+1001; step++ {
		if out := n.Update(step); len(out) != 0 {
			t.Fatalf("Update(%d) emitted after h was consumed, want silence", step)
		}
	}
}

// Spike copies carry the transition direction in their arrival pattern:
// a back-to-back pair from one emission nets +weight, a lone copy nets
// -weight. Currents contribute weight times payload.
func TestDeliverDecoding(t *testing.T) {
	pair := func(src event.NodeID, emission, at simtime.Step, w float64) []event.Delivery {
		d := event.Delivery{
			Target: 1, Source: src, Step: at, EmissionStep: emission,
			Kind: event.KindSpike, Weight: w,
		}
		return []event.Delivery{d, d}
	}
	lone := func(src event.NodeID, emission, at simtime.Step, w float64) []event.Delivery {
		return []event.Delivery{{
			Target: 1, Source: src, Step: at, EmissionStep: emission,
			Kind: event.KindSpike, Weight: w,
		}}
	}

	tests := []struct {
		name       string
		deliveries []event.Delivery
		at         simtime.Step
		wantH      float64
	}{
		{"pair nets plus weight", pair(7, 0, 1, 0.5), 1, 0.5},
		{"lone copy nets minus weight", lone(7, 0, 1, 0.5), 1, -0.5},
		{"distinct emissions do not pair", append(pair(7, 0, 1, 0.5), lone(7, 5, 1, 0.5)...), 1, 0},
		{"distinct sources do not pair", append(lone(7, 0, 1, 0.5), lone(8, 0, 1, 0.5)...), 1, -1},
		{"current scales payload by weight", []event.Delivery{{
			Target: 1, Source: 9, Step: 1, EmissionStep: 0,
			Kind: event.KindCurrent, Weight: 2, Payload: 1.5,
		}}, 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := calibratedSIRS(t, 3)
			// Freeze the S state so the accumulated input is
			// observable instead of being consumed by a transition.
			if err := n.SetStatus(status.Dict{"beta": 0.0}); err != nil {
				t.Fatalf("SetStatus(beta) error = %v", err)
			}
			for _, d := range tt.deliveries {
				n.Deliver(d)
			}
			for step := simtime.Step(0); step <= tt.at; step++ {
				if out := n.Update(step); len(out) != 0 {
					t.Fatalf("unexpected emission at step %d", step)
				}
			}
			if got := readVar(t, n, "h"); got != tt.wantH {
				t.Errorf("h = %v, want %v", got, tt.wantH)
			}
		})
	}
}

// With the linear gain and no input the S hazard is zero: the neuron
// never leaves S on its own.
func TestLinearGainSilentWithoutInput(t *testing.T) {
	n := calibratedSIRS(t, 11)
	for step := simtime.Step(0); step < 1000; step++ {
		if out := n.Update(step); len(out) != 0 {
			t.Fatalf("Update(%d) emitted without input, want silence", step)
		}
	}
	if got := int64(readVar(t, n, "y")); got != StateS {
		t.Errorf("y = %d after silent run, want %d", got, StateS)
	}
	if got := n.Status()["t_next"]; got != int64(-1) {
		t.Errorf("status t_next = %v, want -1 (nothing scheduled)", got)
	}
}

// The sigmoid gain is positive at h = 0, so the neuron cycles
// spontaneously, and two neurons fed the same seed produce identical
// emission trains.
func TestSpontaneousActivityIsDeterministic(t *testing.T) {
	run := func(seed int64) []event.Event {
		n := calibratedSIRS(t, seed)
		if err := n.SetStatus(status.Dict{"gain": "sigmoid"}); err != nil {
			t.Fatalf("SetStatus(gain) error = %v", err)
		}
		var train []event.Event
		for step := simtime.Step(0); step < 5000; step++ {
			train = append(train, n.Update(step)...)
		}
		return train
	}

	a := run(42)
	b := run(42)
	if len(a) == 0 {
		t.Fatal("no spontaneous transitions in 5000 steps with sigmoid gain")
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same seed produced different trains: %d vs %d events", len(a), len(b))
	}
}

func TestSetStatusValidatesBeforeApplying(t *testing.T) {
	tests := []struct {
		name string
		dict status.Dict
	}{
		{"non-positive tau_m", status.Dict{"tau_m": -1.0}},
		{"negative beta", status.Dict{"beta": -0.5}},
		{"out-of-range state", status.Dict{"y": int64(3)}},
		{"unknown gain", status.Dict{"gain": "cubic"}},
		{"protected model", status.Dict{"model": "other"}},
		{"protected t_next", status.Dict{"t_next": int64(5)}},
		{"unknown key", status.Dict{"voltage": 1.0}},
		{"valid key does not rescue invalid one", status.Dict{"beta": 2.0, "tau_m": 0.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewSIRSNeuron()
			before := n.Status()
			if err := n.SetStatus(tt.dict); err == nil {
				t.Fatal("SetStatus() error = nil, want rejection")
			}
			if !reflect.DeepEqual(n.Status(), before) {
				t.Errorf("rejected SetStatus changed state: %v -> %v", before, n.Status())
			}
		})
	}
}

func TestSetStatusDiscardsScheduledTransition(t *testing.T) {
	n := calibratedSIRS(t, 5)
	if err := n.SetStatus(status.Dict{"gain": "sigmoid"}); err != nil {
		t.Fatalf("SetStatus(gain) error = %v", err)
	}
	n.Update(0)
	if got := n.Status()["t_next"]; got == int64(-1) {
		t.Fatal("no transition scheduled after an update in S with sigmoid gain")
	}

	if err := n.SetStatus(status.Dict{"mu": 2.0}); err != nil {
		t.Fatalf("SetStatus(mu) error = %v", err)
	}
	if got := n.Status()["t_next"]; got != int64(-1) {
		t.Errorf("t_next after SetStatus = %v, want -1 (stale schedule discarded)", got)
	}
}

func TestSetStatusAppliesParameters(t *testing.T) {
	n := NewSIRSNeuron()
	err := n.SetStatus(status.Dict{
		"tau_m":      5.0,
		"beta":       0.5,
		"mu":         2.0,
		"gain":       "sigmoid",
		"gain_slope": 3.0,
		"gain_theta": 1.0,
		"y":          StateI,
		"h":          0.25,
	})
	if err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	d := n.Status()
	want := status.Dict{
		"model":      "sirs_neuron",
		"tau_m":      5.0,
		"beta":       0.5,
		"mu":         2.0,
		"gain":       "sigmoid",
		"gain_slope": 3.0,
		"gain_theta": 1.0,
		"y":          StateI,
		"h":          0.25,
		"t_next":     int64(-1),
	}
	if !reflect.DeepEqual(d, want) {
		t.Errorf("Status() = %v, want %v", d, want)
	}
}

func TestAcceptsEventPorts(t *testing.T) {
	n := NewSIRSNeuron()

	for _, kind := range []event.Kind{event.KindSpike, event.KindCurrent, event.KindReadout} {
		port, err := n.AcceptsEvent(kind, 0)
		if err != nil {
			t.Errorf("AcceptsEvent(%s, 0) error = %v, want granted", kind, err)
		}
		if port != 0 {
			t.Errorf("AcceptsEvent(%s, 0) port = %d, want 0", kind, port)
		}
	}
	if _, err := n.AcceptsEvent(event.KindSpike, 1); err == nil {
		t.Error("AcceptsEvent(spike, 1) error = nil, want port rejection")
	}
}

func TestCalibrateRequiresRNGAndDelay(t *testing.T) {
	n := NewSIRSNeuron()
	err := n.Calibrate(node.Calibration{Resolution: 0.1, MaxDelay: 1})
	if err == nil {
		t.Error("Calibrate() without RNG error = nil, want error")
	}

	err = n.Calibrate(node.Calibration{
		Resolution: 0.1,
		MaxDelay:   0,
		RNG:        rand.New(rand.NewSource(1)),
	})
	if err == nil {
		t.Error("Calibrate() with zero max delay error = nil, want error")
	}
}

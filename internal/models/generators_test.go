package models

import (
	"math/rand"
	"testing"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/node"
	"github.com/jasperalbers/nestgo/internal/simtime"
	"github.com/jasperalbers/nestgo/internal/status"
)

func TestDCGeneratorWindow(t *testing.T) {
	g := NewDCGenerator()
	g.AssignID(9)
	if err := g.SetStatus(status.Dict{"amplitude": 1.5, "start": 2, "stop": 5}); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if err := g.Calibrate(node.Calibration{}); err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}

	for step := simtime.Step(0); step < 8; step++ {
		out := g.Update(step)
		active := step >= 2 && step < 5
		if !active {
			if len(out) != 0 {
				t.Errorf("Update(%d) emitted outside window", step)
			}
			continue
		}
		if len(out) != 1 {
			t.Fatalf("Update(%d) emitted %d events, want 1", step, len(out))
		}
		ev := out[0]
		if ev.Kind != event.KindCurrent || ev.Payload != 1.5 || ev.Multiplicity != 1 {
			t.Errorf("Update(%d) = %+v, want current payload 1.5 multiplicity 1", step, ev)
		}
		if ev.Source != 9 || ev.Step != step {
			t.Errorf("Update(%d) stamped source %d step %d, want 9 %d", step, ev.Source, ev.Step, step)
		}
	}
}

func TestDCGeneratorZeroAmplitudeIsSilent(t *testing.T) {
	g := NewDCGenerator()
	for step := simtime.Step(0); step < 10; step++ {
		if out := g.Update(step); len(out) != 0 {
			t.Fatalf("Update(%d) emitted with amplitude 0", step)
		}
	}
}

func TestDCGeneratorStatus(t *testing.T) {
	g := NewDCGenerator()
	d := g.Status()
	if d["amplitude"] != 0.0 || d["start"] != int64(0) || d["stop"] != int64(-1) {
		t.Errorf("default Status() = %v, want amplitude 0, start 0, stop -1", d)
	}

	if err := g.SetStatus(status.Dict{"amplitude": 2.0, "start": 3, "stop": 7}); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	d = g.Status()
	if d["amplitude"] != 2.0 || d["start"] != int64(3) || d["stop"] != int64(7) {
		t.Errorf("Status() = %v, want amplitude 2, start 3, stop 7", d)
	}

	// stop -1 reopens the window.
	if err := g.SetStatus(status.Dict{"stop": -1}); err != nil {
		t.Fatalf("SetStatus(stop -1) error = %v", err)
	}
	if got := g.Status()["stop"]; got != int64(-1) {
		t.Errorf("stop = %v, want -1", got)
	}
}

func TestDCGeneratorRejectsBadWindow(t *testing.T) {
	g := NewDCGenerator()
	if err := g.SetStatus(status.Dict{"start": 3, "stop": 1}); err == nil {
		t.Fatal("SetStatus(stop before start) error = nil, want rejection")
	}
	d := g.Status()
	if d["start"] != int64(0) || d["stop"] != int64(-1) {
		t.Errorf("rejected SetStatus changed window: %v", d)
	}
}

func TestGeneratorsRejectConnections(t *testing.T) {
	for _, g := range []node.Node{NewDCGenerator(), NewNoiseGenerator()} {
		for _, kind := range []event.Kind{event.KindSpike, event.KindCurrent} {
			if _, err := g.AcceptsEvent(kind, 0); err == nil {
				t.Errorf("%s.AcceptsEvent(%s) error = nil, want rejection", g.Model(), kind)
			}
		}
	}
}

func TestNoiseGeneratorDeterminism(t *testing.T) {
	sample := func(seed int64) []float64 {
		g := NewNoiseGenerator()
		err := g.Calibrate(node.Calibration{RNG: rand.New(rand.NewSource(seed))})
		if err != nil {
			t.Fatalf("Calibrate() error = %v", err)
		}
		if err := g.SetStatus(status.Dict{"mean": 1.0, "std": 0.5}); err != nil {
			t.Fatalf("SetStatus() error = %v", err)
		}
		var out []float64
		for step := simtime.Step(0); step < 100; step++ {
			for _, ev := range g.Update(step) {
				out = append(out, ev.Payload)
			}
		}
		return out
	}

	a := sample(13)
	b := sample(13)
	if len(a) != 100 {
		t.Fatalf("emitted %d samples in 100 steps, want 100", len(a))
	}
	varies := false
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs across same-seed runs: %v vs %v", i, a[i], b[i])
		}
		if a[i] != a[0] {
			varies = true
		}
	}
	if !varies {
		t.Error("all 100 samples identical, want Gaussian variation")
	}
}

func TestNoiseGeneratorMeanOnly(t *testing.T) {
	g := NewNoiseGenerator()
	if err := g.Calibrate(node.Calibration{RNG: rand.New(rand.NewSource(1))}); err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}
	if err := g.SetStatus(status.Dict{"mean": 2.0}); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	for step := simtime.Step(0); step < 5; step++ {
		out := g.Update(step)
		if len(out) != 1 || out[0].Payload != 2.0 {
			t.Fatalf("Update(%d) = %+v, want one event with payload 2", step, out)
		}
	}
}

func TestNoiseGeneratorDisabledIsSilent(t *testing.T) {
	g := NewNoiseGenerator()
	if err := g.Calibrate(node.Calibration{RNG: rand.New(rand.NewSource(1))}); err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}
	for step := simtime.Step(0); step < 10; step++ {
		if out := g.Update(step); len(out) != 0 {
			t.Fatalf("Update(%d) emitted with mean 0 and std 0", step)
		}
	}
}

func TestNoiseGeneratorRejectsBadParameters(t *testing.T) {
	g := NewNoiseGenerator()
	if err := g.SetStatus(status.Dict{"std": -1.0}); err == nil {
		t.Error("SetStatus(std -1) error = nil, want rejection")
	}
	if err := g.Calibrate(node.Calibration{}); err == nil {
		t.Error("Calibrate() without RNG error = nil, want error")
	}
}

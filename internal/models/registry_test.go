package models

import (
	"reflect"
	"testing"

	"github.com/jasperalbers/nestgo/internal/node"
)

func TestCreate(t *testing.T) {
	n, err := Create("sirs_neuron")
	if err != nil {
		t.Fatalf("Create(sirs_neuron) error = %v", err)
	}
	if n.Model() != "sirs_neuron" {
		t.Errorf("Model() = %q, want sirs_neuron", n.Model())
	}

	// Each call builds a fresh node.
	m, err := Create("sirs_neuron")
	if err != nil {
		t.Fatalf("Create(sirs_neuron) error = %v", err)
	}
	n.AssignID(4)
	if m.ID() != 0 {
		t.Errorf("second instance ID = %d, want 0", m.ID())
	}

	if _, err := Create("grid_cell"); err == nil {
		t.Error("Create(grid_cell) error = nil, want unknown kind error")
	}
}

func TestKinds(t *testing.T) {
	want := []string{"dc_generator", "noise_generator", "sirs_neuron"}
	if got := Kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("Kinds() = %v, want %v", got, want)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Register() with a taken kind did not panic")
		}
	}()
	Register("sirs_neuron", func() node.Node { return NewSIRSNeuron() })
}

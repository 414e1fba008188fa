package readout

import "testing"

func TestTableReadTracksState(t *testing.T) {
	tbl := NewTable()
	y := 0.0
	tbl.Register("y", func() float64 { return y })

	got, err := tbl.Read("y")
	if err != nil || got != 0 {
		t.Fatalf("Read(y) = (%v, %v), want (0, nil)", got, err)
	}

	y = 2
	got, err = tbl.Read("y")
	if err != nil || got != 2 {
		t.Errorf("Read(y) after change = (%v, %v), want (2, nil)", got, err)
	}
}

func TestTableUnknownName(t *testing.T) {
	tbl := NewTable()
	tbl.Register("h", func() float64 { return 0 })

	if _, err := tbl.Read("v_m"); err == nil {
		t.Error("Read(v_m) error = nil, want unknown variable error")
	}
	if tbl.Has("v_m") {
		t.Error("Has(v_m) = true, want false")
	}
}

func TestTableNamesOrder(t *testing.T) {
	tbl := NewTable()
	tbl.Register("y", func() float64 { return 0 })
	tbl.Register("h", func() float64 { return 0 })

	names := tbl.Names()
	if len(names) != 2 || names[0] != "y" || names[1] != "h" {
		t.Errorf("Names() = %v, want [y h] in registration order", names)
	}

	// The returned slice is a copy; mutating it must not corrupt the table.
	names[0] = "zzz"
	if got := tbl.Names(); got[0] != "y" {
		t.Errorf("Names() after caller mutation = %v, want [y h]", got)
	}
}

func TestTableDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Register duplicate did not panic")
		}
	}()

	tbl := NewTable()
	tbl.Register("y", func() float64 { return 0 })
	tbl.Register("y", func() float64 { return 1 })
}

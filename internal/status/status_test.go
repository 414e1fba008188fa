package status

import (
	"errors"
	"testing"
)

func TestFloat(t *testing.T) {
	d := Dict{"a": 1.5, "b": 2, "c": int64(3), "d": "nope"}

	got, ok, err := Float(d, "a")
	if err != nil || !ok || got != 1.5 {
		t.Errorf("Float(a) = (%v, %v, %v), want (1.5, true, nil)", got, ok, err)
	}

	got, ok, err = Float(d, "b")
	if err != nil || !ok || got != 2 {
		t.Errorf("Float(b) = (%v, %v, %v), want (2, true, nil)", got, ok, err)
	}

	got, ok, err = Float(d, "c")
	if err != nil || !ok || got != 3 {
		t.Errorf("Float(c) = (%v, %v, %v), want (3, true, nil)", got, ok, err)
	}

	if _, _, err = Float(d, "d"); err == nil {
		t.Error("Float(d) error = nil, want type error")
	}

	if _, ok, _ = Float(d, "missing"); ok {
		t.Error("Float(missing) present = true, want false")
	}
}

func TestInt(t *testing.T) {
	d := Dict{"whole": 4.0, "frac": 4.5, "int": 7}

	got, ok, err := Int(d, "whole")
	if err != nil || !ok || got != 4 {
		t.Errorf("Int(whole) = (%v, %v, %v), want (4, true, nil)", got, ok, err)
	}

	got, ok, err = Int(d, "int")
	if err != nil || !ok || got != 7 {
		t.Errorf("Int(int) = (%v, %v, %v), want (7, true, nil)", got, ok, err)
	}

	if _, _, err = Int(d, "frac"); err == nil {
		t.Error("Int(frac) error = nil, want fractional error")
	}
}

func TestConfigErrorIs(t *testing.T) {
	err := Protected("workers", 777)

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("errors.As(*ConfigError) = false for %v", err)
	}
	if cfgErr.Key != "workers" {
		t.Errorf("Key = %q, want %q", cfgErr.Key, "workers")
	}
	if cfgErr.Value != 777 {
		t.Errorf("Value = %v, want 777", cfgErr.Value)
	}
}

func TestMergeDoesNotMutate(t *testing.T) {
	base := Dict{"a": 1, "b": 2}
	overlay := Dict{"b": 3, "c": 4}

	merged := Merge(base, overlay)

	if base["b"] != 2 {
		t.Errorf("base mutated: b = %v, want 2", base["b"])
	}
	if merged["b"] != 3 || merged["a"] != 1 || merged["c"] != 4 {
		t.Errorf("merged = %v, want overlay to win on b", merged)
	}
}

func TestKeysSorted(t *testing.T) {
	d := Dict{"z": 1, "a": 2, "m": 3}
	keys := Keys(d)
	want := []string{"a", "m", "z"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() len = %d, want %d", len(keys), len(want))
	}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], k)
		}
	}
}

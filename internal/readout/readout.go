// Package readout provides the named read-out tables observable nodes
// expose. A model variant registers one closure per recordable variable
// at construction; sampling devices read through the table by name, so
// recording works against any model without knowing its internals.
package readout

import "fmt"

// Fn reads the current value of one recordable variable.
type Fn func() float64

// Table maps variable names to read-out functions, preserving
// registration order for stable listings.
type Table struct {
	names []string
	fns   map[string]Fn
}

// NewTable creates an empty read-out table.
func NewTable() *Table {
	return &Table{fns: make(map[string]Fn)}
}

// Register adds a read-out function under name. Registration happens in
// model constructors with fixed names; an empty name or a duplicate is
// a programming error, so Register panics like the stdlib registries.
func (t *Table) Register(name string, fn Fn) {
	if name == "" {
		panic("readout: empty variable name")
	}
	if fn == nil {
		panic("readout: nil read-out function for " + name)
	}
	if _, exists := t.fns[name]; exists {
		panic("readout: duplicate variable " + name)
	}
	t.names = append(t.names, name)
	t.fns[name] = fn
}

// Names returns the registered variable names in registration order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Has reports whether name is registered.
func (t *Table) Has(name string) bool {
	_, ok := t.fns[name]
	return ok
}

// Read returns the current value of the named variable.
func (t *Table) Read(name string) (float64, error) {
	fn, ok := t.fns[name]
	if !ok {
		return 0, fmt.Errorf("no recordable variable %q (have %v)", name, t.names)
	}
	return fn(), nil
}

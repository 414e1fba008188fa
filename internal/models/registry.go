package models

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jasperalbers/nestgo/internal/node"
)

// Compile-time interface checks for the models in this package.
var (
	_ node.Node              = (*SIRSNeuron)(nil)
	_ node.Observable        = (*SIRSNeuron)(nil)
	_ node.MultiplicityCoder = (*SIRSNeuron)(nil)
	_ node.Node              = (*DCGenerator)(nil)
	_ node.Node              = (*NoiseGenerator)(nil)
)

// Factory builds a fresh, unregistered node of one model kind.
type Factory func() node.Node

var (
	regMu     sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a model factory under its kind name. Packages that
// provide models call this from init; a duplicate or empty name is a
// programming error.
func Register(kind string, f Factory) {
	if kind == "" {
		panic("models: empty model kind")
	}
	if f == nil {
		panic("models: nil factory for " + kind)
	}

	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := factories[kind]; exists {
		panic("models: model kind already registered: " + kind)
	}
	factories[kind] = f
}

// Create builds a fresh node of the named kind.
func Create(kind string) (node.Node, error) {
	regMu.RLock()
	f, ok := factories[kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown model kind %q (have %v)", kind, Kinds())
	}
	return f(), nil
}

// Kinds returns the registered model kinds, sorted.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()

	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func init() {
	Register("sirs_neuron", func() node.Node { return NewSIRSNeuron() })
	Register("dc_generator", func() node.Node { return NewDCGenerator() })
	Register("noise_generator", func() node.Node { return NewNoiseGenerator() })
}

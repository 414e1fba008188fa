// Package recording provides the recording devices (spike recorder,
// multimeter) and the result stores they stream into.
package recording

import (
	"context"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/simtime"
)

// SpikeRecord is one recorded transition: the step the source emitted
// at and the emission's multiplicity.
type SpikeRecord struct {
	Step         simtime.Step `json:"step"`
	Source       event.NodeID `json:"source"`
	Multiplicity int          `json:"multiplicity"`
}

// Sample is one recorded value of a named node variable.
type Sample struct {
	Step  simtime.Step `json:"step"`
	Node  event.NodeID `json:"node"`
	Name  string       `json:"name"`
	Value float64      `json:"value"`
}

// Store persists recorded spikes and samples grouped into runs.
type Store interface {
	// NewRun registers a run and returns its ID.
	NewRun(ctx context.Context, label string) (string, error)

	// WriteSpikes appends spike records to a run.
	WriteSpikes(ctx context.Context, runID string, records []SpikeRecord) error

	// WriteSamples appends samples to a run.
	WriteSamples(ctx context.Context, runID string, samples []Sample) error

	// Spikes returns a run's spike records ordered by step, then source.
	Spikes(ctx context.Context, runID string) ([]SpikeRecord, error)

	// Samples returns a run's samples ordered by step, then node, then name.
	Samples(ctx context.Context, runID string) ([]Sample, error)

	Close() error
}

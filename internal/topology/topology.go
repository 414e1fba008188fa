// Package topology tracks the process layout of a simulation: this
// process's rank, the world size, and the number of update workers per
// process. The product of world size and per-process workers is the
// global worker count that distribution-aware code (node placement, RNG
// seeding, exchange sizing) keys on.
//
// The reported global worker count can be decoupled from the actual
// layout through a diagnostic override, so those algorithms can be
// exercised against arbitrary worker counts without launching real
// distributed processes. The override is deliberately not reachable
// through the generic status interface; setting the worker count there
// always fails.
package topology

import (
	"fmt"

	"github.com/jasperalbers/nestgo/internal/status"
)

// Topology describes the process layout. Zero value is not usable;
// construct with New or Single.
type Topology struct {
	rank    int
	procs   int
	threads int

	overridden bool
	logical    int
}

// New creates a topology for rank in a world of procs processes, each
// running threads update workers.
func New(rank, procs, threads int) (*Topology, error) {
	if procs < 1 {
		return nil, fmt.Errorf("world size must be >= 1, got %d", procs)
	}
	if threads < 1 {
		return nil, fmt.Errorf("workers per process must be >= 1, got %d", threads)
	}
	if rank < 0 || rank >= procs {
		return nil, fmt.Errorf("rank %d out of range [0, %d)", rank, procs)
	}
	return &Topology{rank: rank, procs: procs, threads: threads}, nil
}

// Single creates a single-process topology with the given worker count.
func Single(threads int) (*Topology, error) {
	return New(0, 1, threads)
}

// Rank returns this process's rank.
func (t *Topology) Rank() int { return t.rank }

// Procs returns the actual world size, ignoring any override.
func (t *Topology) Procs() int { return t.procs }

// LocalThreads returns the number of update workers this process runs.
func (t *Topology) LocalThreads() int { return t.threads }

// NumWorkers returns the global worker count. With an override active
// it returns exactly the overridden value; otherwise procs * threads.
func (t *Topology) NumWorkers() int {
	if t.overridden {
		return t.logical
	}
	return t.procs * t.threads
}

// Overridden reports whether a diagnostic override is active.
func (t *Topology) Overridden() bool { return t.overridden }

// OverrideNumWorkers decouples the reported global worker count from
// the actual layout. Any n >= 0 is accepted; subsequent NumWorkers
// calls return exactly n. This is the only way to change the reported
// worker count at runtime.
func (t *Topology) OverrideNumWorkers(n int) error {
	if n < 0 {
		return fmt.Errorf("worker count override must be >= 0, got %d", n)
	}
	t.logical = n
	t.overridden = true
	return nil
}

// Status returns the topology's status view.
func (t *Topology) Status() status.Dict {
	return status.Dict{
		"rank":               t.rank,
		"processes":          t.procs,
		"local_workers":      t.threads,
		"workers":            t.NumWorkers(),
		"workers_overridden": t.overridden,
	}
}

// SetStatus rejects every write: all topology keys are read-only
// through the generic status interface. The topology is never mutated
// here, whatever the input.
func (t *Topology) SetStatus(d status.Dict) error {
	view := t.Status()
	for _, key := range status.Keys(d) {
		if _, ok := view[key]; ok {
			return status.Protected(key, d[key])
		}
		return status.Unknown(key, d[key])
	}
	return nil
}

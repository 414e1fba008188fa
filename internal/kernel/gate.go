package kernel

import "sync"

// phase names one stretch of parallel worker execution within a step.
type phase int

const (
	// phaseUpdate runs every node's Update on its owning worker.
	phaseUpdate phase = iota

	// phaseApply routes the merged batches and deposits deliveries on
	// owned targets.
	phaseApply
)

// gate coordinates the worker goroutines through the phases of each
// step. The run loop opens a phase, every worker executes it exactly
// once and marks itself done, and the run loop resumes when all of
// them have. Between phases the workers are parked here, which is what
// lets the run loop touch shared state without locks.
type gate struct {
	mu   sync.Mutex
	cond *sync.Cond

	current phase
	gen     int
	done    int
	workers int
	stopped bool
}

func newGate(workers int) *gate {
	g := &gate{workers: workers}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// open releases the workers into a phase. The caller must have seen
// waitDone return for the previous phase.
func (g *gate) open(p phase) {
	g.mu.Lock()
	g.current = p
	g.gen++
	g.done = 0
	g.cond.Broadcast()
	g.mu.Unlock()
}

// next blocks until a phase newer than lastGen opens. ok is false once
// the gate is stopped.
func (g *gate) next(lastGen int) (p phase, gen int, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		if g.stopped {
			return 0, 0, false
		}
		if g.gen > lastGen {
			return g.current, g.gen, true
		}
		g.cond.Wait()
	}
}

// markDone records one worker's completion of the phase opened as gen.
func (g *gate) markDone(gen int) {
	g.mu.Lock()
	if gen == g.gen {
		g.done++
		if g.done == g.workers {
			g.cond.Broadcast()
		}
	}
	g.mu.Unlock()
}

// waitDone blocks until every worker finished the current phase.
func (g *gate) waitDone() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.done < g.workers && !g.stopped {
		g.cond.Wait()
	}
}

// stop releases every waiter for good; next reports not ok afterwards.
func (g *gate) stop() {
	g.mu.Lock()
	g.stopped = true
	g.cond.Broadcast()
	g.mu.Unlock()
}

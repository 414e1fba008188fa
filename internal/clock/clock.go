// Package clock owns the simulation step counter. The step only ever
// advances, and only after the step's bookkeeping has settled: if any
// emitted event has not been delivered by the time the boundary is
// reached, advancing fails hard instead of silently dropping it.
package clock

import (
	"fmt"

	"github.com/jasperalbers/nestgo/internal/simtime"
	"github.com/jasperalbers/nestgo/internal/status"
)

// FatalRunError reports a step boundary reached with undelivered
// events. A run that hits this is unrecoverable; discrete models have
// no notion of a late event, so dropping or retrying would corrupt
// every downstream trajectory.
type FatalRunError struct {
	Step       simtime.Step
	Unresolved int
}

func (e *FatalRunError) Error() string {
	return fmt.Sprintf("step %d: %d emitted events unresolved at step boundary", e.Step, e.Unresolved)
}

// Clock is the simulation step counter.
type Clock struct {
	step simtime.Step
	res  simtime.Resolution
}

// New creates a clock at step 0 with the given resolution.
func New(res simtime.Resolution) (*Clock, error) {
	if err := res.Validate(); err != nil {
		return nil, fmt.Errorf("clock resolution: %w", err)
	}
	return &Clock{res: res}, nil
}

// Now returns the current step.
func (c *Clock) Now() simtime.Step { return c.step }

// TimeMS returns the current simulation time in milliseconds.
func (c *Clock) TimeMS() float64 { return c.res.MSFromSteps(c.step) }

// Resolution returns the step duration.
func (c *Clock) Resolution() simtime.Resolution { return c.res }

// Advance moves the clock to the next step. The unresolved callback
// reports how many emitted events have not completed delivery; a
// non-zero count aborts the run with a FatalRunError naming the step.
func (c *Clock) Advance(unresolved func() int) error {
	if n := unresolved(); n > 0 {
		return &FatalRunError{Step: c.step, Unresolved: n}
	}
	c.step++
	return nil
}

// Reset returns the clock to step 0.
func (c *Clock) Reset() { c.step = 0 }

// Status returns the clock's status view.
func (c *Clock) Status() status.Dict {
	return status.Dict{
		"step":          int64(c.step),
		"time_ms":       c.TimeMS(),
		"resolution_ms": float64(c.res),
	}
}

// SetStatus rejects every write. The step counter is driven by the run
// loop alone, and the resolution is fixed when the network is built.
func (c *Clock) SetStatus(d status.Dict) error {
	view := c.Status()
	for _, key := range status.Keys(d) {
		if _, ok := view[key]; ok {
			return status.Protected(key, d[key])
		}
		return status.Unknown(key, d[key])
	}
	return nil
}

// Package simtime provides the discrete time axis of the simulation.
// All scheduling is expressed in integer steps; wall-clock units appear
// only at the boundary, where millisecond values are quantized onto the
// step grid defined by the resolution.
package simtime

import (
	"fmt"
	"math"
)

// Step is a discrete simulation step index. The simulation starts at
// step 0 and only ever moves forward.
type Step int64

// Never is the sentinel for "no step scheduled".
const Never Step = math.MaxInt64

// DefaultResolutionMS is the default step duration in milliseconds.
const DefaultResolutionMS = 0.1

// quantizationTolerance is the relative tolerance used when checking
// that a millisecond value sits on the step grid.
const quantizationTolerance = 1e-9

// Resolution is the duration of one step in milliseconds.
type Resolution float64

// Validate checks that the resolution is a usable step duration.
func (r Resolution) Validate() error {
	if math.IsNaN(float64(r)) || math.IsInf(float64(r), 0) {
		return fmt.Errorf("resolution must be finite, got %v", float64(r))
	}
	if r <= 0 {
		return fmt.Errorf("resolution must be positive, got %v", float64(r))
	}
	return nil
}

// StepsFromMS converts a millisecond duration to a step count.
// The duration must be positive and an exact multiple of the resolution
// (within a small relative tolerance); anything else is an error, so
// mis-specified delays surface at wiring time rather than shifting
// silently to a neighboring slot.
func (r Resolution) StepsFromMS(ms float64) (Step, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return 0, fmt.Errorf("duration must be finite, got %v", ms)
	}
	if ms <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %v ms", ms)
	}

	steps := ms / float64(r)
	rounded := math.Round(steps)
	if math.Abs(steps-rounded) > quantizationTolerance*math.Max(1, math.Abs(steps)) {
		return 0, fmt.Errorf("duration %v ms is not a multiple of the %v ms resolution", ms, float64(r))
	}
	if rounded < 1 {
		return 0, fmt.Errorf("duration %v ms is below the %v ms resolution", ms, float64(r))
	}
	return Step(rounded), nil
}

// MSFromSteps converts a step count back to milliseconds.
func (r Resolution) MSFromSteps(s Step) float64 {
	return float64(s) * float64(r)
}

// Interval is a half-open step window [Start, Stop).
type Interval struct {
	Start Step
	Stop  Step
}

// Contains reports whether the step falls inside the window.
func (iv Interval) Contains(s Step) bool {
	return s >= iv.Start && s < iv.Stop
}

// Empty reports whether the window covers no steps.
func (iv Interval) Empty() bool {
	return iv.Stop <= iv.Start
}

// Package models provides the node models the kernel can simulate:
// the stochastic SIRS neuron and the current generator devices, plus
// the registry the builder and CLI create them through.
package models

import (
	"fmt"
	"math"
)

// Gain maps a neuron's accumulated input h to the activation factor of
// its S -> I hazard. Implementations are monotone in h and never
// return a negative value.
type Gain interface {
	Name() string
	Eval(h float64) float64
}

// LinearGain is slope*h clamped at zero.
type LinearGain struct {
	Slope float64
}

func (g LinearGain) Name() string { return "linear" }

func (g LinearGain) Eval(h float64) float64 {
	return math.Max(0, g.Slope*h)
}

// SigmoidGain is the logistic function 1/(1+exp(-slope*(h-theta))).
// Unlike the linear gain it is positive everywhere, so a neuron in S
// can transition spontaneously even with no input.
type SigmoidGain struct {
	Slope float64
	Theta float64
}

func (g SigmoidGain) Name() string { return "sigmoid" }

func (g SigmoidGain) Eval(h float64) float64 {
	return 1 / (1 + math.Exp(-g.Slope*(h-g.Theta)))
}

// NewGain builds a gain function by name. Slope must be positive to
// keep the gain monotone increasing; theta only applies to the sigmoid.
func NewGain(name string, slope, theta float64) (Gain, error) {
	if math.IsNaN(slope) || math.IsInf(slope, 0) || slope <= 0 {
		return nil, fmt.Errorf("gain slope must be positive, got %v", slope)
	}
	if math.IsNaN(theta) || math.IsInf(theta, 0) {
		return nil, fmt.Errorf("gain theta must be finite, got %v", theta)
	}
	switch name {
	case "linear":
		return LinearGain{Slope: slope}, nil
	case "sigmoid":
		return SigmoidGain{Slope: slope, Theta: theta}, nil
	default:
		return nil, fmt.Errorf("unknown gain function %q (valid: linear, sigmoid)", name)
	}
}

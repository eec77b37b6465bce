// Package curve provides the crossfade gain laws and easing functions that
// drive transition automation.
package curve

import (
	"fmt"
	"math"
)

// Shape selects a crossfade gain law.
type Shape int

const (
	// EqualPower keeps combined perceived loudness constant (default).
	EqualPower Shape = iota
	// Linear is a straight trade of gain A for gain B.
	Linear
	// Rise brings B up faster than A drops, for energetic builds.
	Rise
	// DjS remaps progress through an S-curve before the equal-power law,
	// stretching the "mostly A" and "mostly B" ends.
	DjS
)

var shapeNames = [...]string{"equal-power", "linear", "rise", "dj-s"}

func (s Shape) String() string {
	if s < EqualPower || s > DjS {
		return "equal-power"
	}
	return shapeNames[s]
}

// ParseShape resolves a curve name from the API surface. Empty input means
// the default equal-power law.
func ParseShape(name string) (Shape, error) {
	if name == "" {
		return EqualPower, nil
	}
	for i, n := range shapeNames {
		if n == name {
			return Shape(i), nil
		}
	}
	return EqualPower, fmt.Errorf("unknown curve %q", name)
}

type gainFunc func(p float64) (gainA, gainB float64)

// gainTable dispatches each Shape to its law. Indexed by Shape so a new
// variant without an entry fails loudly in tests.
var gainTable = [...]gainFunc{
	EqualPower: equalPower,
	Linear:     linear,
	Rise:       rise,
	DjS:        djS,
}

// Gains maps transition progress in [0,1] to a (gainA, gainB) pair. Values
// are the raw law outputs; the scheduler clamps them to [0,1].
func (s Shape) Gains(p float64) (gainA, gainB float64) {
	if s < EqualPower || s > DjS {
		s = EqualPower
	}
	return gainTable[s](p)
}

func equalPower(p float64) (float64, float64) {
	return math.Cos(p * math.Pi / 2), math.Sin(p * math.Pi / 2)
}

func linear(p float64) (float64, float64) {
	return 1 - p, p
}

func rise(p float64) (float64, float64) {
	return 1 - math.Pow(p, 0.8), Smoothstep(p)
}

func djS(p float64) (float64, float64) {
	s := 0.5 - 0.5*math.Cos(math.Pi*Clamp01(p))
	return equalPower(s)
}

// Smoothstep returns the smoothstep interpolation 3t^2 - 2t^3 for t in [0,1].
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// EaseInCubic accelerates from zero: t^3.
func EaseInCubic(t float64) float64 {
	return t * t * t
}

// EaseOutCubic decelerates into one: 1 - (1-t)^3.
func EaseOutCubic(t float64) float64 {
	u := 1 - t
	return 1 - u*u*u
}

// Clamp01 clamps v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

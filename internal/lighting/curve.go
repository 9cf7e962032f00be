package lighting

import "math"

// Weights are the bright/dim/dark blend factors for one darkness level.
type Weights struct {
	Bright, Dim, Dark float64
}

// Curve maps a darkness level in [0,1] to blend weights. Implementations
// must be monotonic and return pure bright at 0 and pure dark at 1.
type Curve interface {
	Weights(darkness float64) Weights
}

// CurveFunc adapts a plain function to Curve.
type CurveFunc func(darkness float64) Weights

func (f CurveFunc) Weights(d float64) Weights { return f(d) }

// DefaultCurve ramps bright→dim over the first half of the range and dim→dark
// over the second.
var DefaultCurve Curve = CurveFunc(func(d float64) Weights {
	d = clamp01(d)
	if d <= 0.5 {
		return Weights{Bright: 1 - 2*d, Dim: 2 * d}
	}
	return Weights{Dim: 2 - 2*d, Dark: 2*d - 1}
})

// normalize clamps negatives and rescales so the weights sum to 1. It returns
// false when nothing usable is left.
func (w Weights) normalize() (Weights, bool) {
	w.Bright = math.Max(0, w.Bright)
	w.Dim = math.Max(0, w.Dim)
	w.Dark = math.Max(0, w.Dark)
	sum := w.Bright + w.Dim + w.Dark
	if !(sum > 0) || math.IsInf(sum, 0) {
		return Weights{}, false
	}
	return Weights{w.Bright / sum, w.Dim / sum, w.Dark / sum}, true
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

package likelihood

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate/quad"
)

// DefaultQuadraturePoints is the number of Gauss-Hermite points used by
// likelihoods without closed-form variational expectations.
var DefaultQuadraturePoints = 20

// hermite holds Gauss-Hermite nodes and weights, the weights normalized so
// that they sum to one.
type hermite struct {
	x []float64
	w []float64
}

func newHermite(n int) *hermite {
	h := &hermite{
		x: make([]float64, n),
		w: make([]float64, n),
	}
	quad.Hermite{}.FixedLocations(h.x, h.w, math.Inf(-1), math.Inf(1))
	floats.Scale(1/math.SqrtPi, h.w)
	return h
}

// expect returns the expectation of fn under N(mean, variance).
func (h *hermite) expect(mean, variance float64, fn func(float64) float64) float64 {
	scale := math.Sqrt(2 * variance)
	res := 0.0
	for i, x := range h.x {
		res += h.w[i] * fn(mean+scale*x)
	}
	return res
}

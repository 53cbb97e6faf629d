package kern

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	squaredExponential *SquaredExponential
	_                  Kernel = squaredExponential // Check that SquaredExponential respects the Kernel interface.
)

// SquaredExponential kernel, k(x, y) = variance * exp(-r^2 / 2) where r is
// the distance scaled by the lengthscales. One lengthscale means isotropic.
type SquaredExponential struct {
	stationary
}

func NewSquaredExponential(variance float64, lscales ...float64) *SquaredExponential {
	return &SquaredExponential{
		stationary: newStationary(variance, lscales),
	}
}

func (k *SquaredExponential) K(x, x2 mat.Matrix) *mat.Dense {
	return k.apply(x, x2, func(r2 float64) float64 {
		return math.Exp(-0.5 * r2)
	})
}

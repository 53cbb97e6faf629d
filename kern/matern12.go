package kern

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	matern12 *Matern12
	_        Kernel     = matern12 // Check that Matern12 respects the Kernel interface.
	_        StateSpace = matern12
)

// Matern12 (exponential) kernel, k(x, y) = variance * exp(-r).
type Matern12 struct {
	stationary
}

func NewMatern12(variance float64, lscales ...float64) *Matern12 {
	return &Matern12{
		stationary: newStationary(variance, lscales),
	}
}

func (k *Matern12) K(x, x2 mat.Matrix) *mat.Dense {
	return k.apply(x, x2, func(r2 float64) float64 {
		return math.Exp(-distance(r2))
	})
}

func (k *Matern12) Order() int {
	return 1
}

func (k *Matern12) StateMean(t float64) *mat.VecDense {
	return mat.NewVecDense(1, []float64{0.0})
}

func (k *Matern12) StateCov(t float64) *mat.Dense {
	return mat.NewDense(1, 1, []float64{k.Variance()})
}

func (k *Matern12) MeasurementVec() *mat.VecDense {
	return mat.NewVecDense(1, []float64{1.0})
}

func (k *Matern12) Transition(delta float64) *mat.Dense {
	lscale := k.Lengthscales(1)[0]
	return mat.NewDense(1, 1, []float64{math.Exp(-delta / lscale)})
}

func (k *Matern12) NoiseCov(delta float64) *mat.Dense {
	lscale := k.Lengthscales(1)[0]
	val := k.Variance() * (1 - math.Exp(-2*delta/lscale))
	return mat.NewDense(1, 1, []float64{val})
}

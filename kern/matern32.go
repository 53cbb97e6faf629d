package kern

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	matern32 *Matern32
	_        Kernel     = matern32 // Check that Matern32 respects the Kernel interface.
	_        StateSpace = matern32
)

// Matern32 kernel, k(x, y) = variance * (1 + sqrt(3) r) exp(-sqrt(3) r).
type Matern32 struct {
	stationary
}

func NewMatern32(variance float64, lscales ...float64) *Matern32 {
	return &Matern32{
		stationary: newStationary(variance, lscales),
	}
}

func (k *Matern32) K(x, x2 mat.Matrix) *mat.Dense {
	return k.apply(x, x2, func(r2 float64) float64 {
		sr := math.Sqrt(3) * distance(r2)
		return (1 + sr) * math.Exp(-sr)
	})
}

func (k *Matern32) lambda() float64 {
	return math.Sqrt(3) / k.Lengthscales(1)[0]
}

func (k *Matern32) Order() int {
	return 2
}

func (k *Matern32) StateMean(t float64) *mat.VecDense {
	return mat.NewVecDense(2, []float64{0.0, 0.0})
}

func (k *Matern32) StateCov(t float64) *mat.Dense {
	a := k.lambda()
	cov := mat.NewDense(2, 2, []float64{1.0, 0.0, 0.0, a * a})
	cov.Scale(k.Variance(), cov)
	return cov
}

func (k *Matern32) MeasurementVec() *mat.VecDense {
	return mat.NewVecDense(2, []float64{1.0, 0.0})
}

func (k *Matern32) Transition(delta float64) *mat.Dense {
	d := delta
	a := k.lambda()
	trans := mat.NewDense(2, 2, []float64{d*a + 1, d, -d * a * a, 1 - d*a})
	trans.Scale(math.Exp(-d*a), trans)
	return trans
}

func (k *Matern32) NoiseCov(delta float64) *mat.Dense {
	a := k.lambda()
	da := delta * a
	c := math.Exp(-2 * da)
	data := make([]float64, 4)
	data[0] = 1 - c*(2*da*da+2*da+1)
	data[1] = c * (2 * da * da * a)
	data[2] = data[1]
	data[3] = a * a * (1 - c*(2*da*da-2*da+1))
	cov := mat.NewDense(2, 2, data)
	cov.Scale(k.Variance(), cov)
	return cov
}

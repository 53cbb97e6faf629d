package kern

import (
	"github.com/lucasmaystre/govgp/param"
	"gonum.org/v1/gonum/mat"
)

var (
	constant *Constant
	_        Kernel     = constant // Check that Constant respects the Kernel interface.
	_        StateSpace = constant
)

type Constant struct {
	variance *param.Positive
}

func NewConstant(variance float64) *Constant {
	return &Constant{
		variance: param.MustPositive(variance),
	}
}

func (k *Constant) Variance() float64 {
	return k.variance.Float()
}

func (k *Constant) K(x, x2 mat.Matrix) *mat.Dense {
	if x2 == nil {
		x2 = x
	}
	n, _ := x.Dims()
	m, _ := x2.Dims()
	out := mat.NewDense(n, m, nil)
	variance := k.Variance()
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			out.Set(i, j, variance)
		}
	}
	return out
}

func (k *Constant) KDiag(x mat.Matrix) *mat.VecDense {
	return constantDiag(x, k.Variance())
}

func (k *Constant) Parameters() []param.Parameter {
	return []param.Parameter{k.variance}
}

func (k *Constant) Order() int {
	return 1
}

func (k *Constant) StateMean(t float64) *mat.VecDense {
	return mat.NewVecDense(1, []float64{0.0})
}

func (k *Constant) StateCov(t float64) *mat.Dense {
	return mat.NewDense(1, 1, []float64{k.Variance()})
}

func (k *Constant) MeasurementVec() *mat.VecDense {
	return mat.NewVecDense(1, []float64{1.0})
}

func (k *Constant) Transition(delta float64) *mat.Dense {
	return mat.NewDense(1, 1, []float64{1.0})
}

func (k *Constant) NoiseCov(delta float64) *mat.Dense {
	return mat.NewDense(1, 1, []float64{0.0})
}

package kern

import (
	"github.com/lucasmaystre/govgp/param"
	"gonum.org/v1/gonum/mat"
)

var (
	linear *Linear
	_      Kernel = linear // Check that Linear respects the Kernel interface.
)

// Linear kernel, k(x, y) = sum_d variance_d x_d y_d.
type Linear struct {
	variances *param.Positive
}

func NewLinear(variances ...float64) *Linear {
	return &Linear{
		variances: param.MustPositive(variances...),
	}
}

// Variances broadcast to d input dimensions.
func (k *Linear) Variances(d int) []float64 {
	return broadcast(k.variances.Values(), d)
}

func (k *Linear) K(x, x2 mat.Matrix) *mat.Dense {
	if x2 == nil {
		x2 = x
	}
	n, d := x.Dims()
	m, _ := x2.Dims()
	vs := k.Variances(d)
	// K = x diag(v) x2^T
	xv := mat.DenseCopyOf(x)
	for j := 0; j < d; j++ {
		for i := 0; i < n; i++ {
			xv.Set(i, j, xv.At(i, j)*vs[j])
		}
	}
	out := mat.NewDense(n, m, nil)
	out.Mul(xv, x2.T())
	return out
}

func (k *Linear) KDiag(x mat.Matrix) *mat.VecDense {
	n, d := x.Dims()
	vs := k.Variances(d)
	out := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		val := 0.0
		for j := 0; j < d; j++ {
			val += vs[j] * x.At(i, j) * x.At(i, j)
		}
		out.SetVec(i, val)
	}
	return out
}

func (k *Linear) Parameters() []param.Parameter {
	return []param.Parameter{k.variances}
}

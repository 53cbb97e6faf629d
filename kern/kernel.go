package kern

import (
	"math"

	"github.com/lucasmaystre/govgp/param"
	"gonum.org/v1/gonum/mat"
)

type Kernel interface {
	// Covariance matrix between the rows of x and the rows of x2. If x2 is
	// nil, the rows of x are used twice.
	K(x, x2 mat.Matrix) *mat.Dense

	// Diagonal of K(x, nil).
	KDiag(x mat.Matrix) *mat.VecDense

	// Hyperparameters of the kernel.
	Parameters() []param.Parameter
}

// broadcast repeats a single value d times, or checks the length otherwise.
func broadcast(values []float64, d int) []float64 {
	if len(values) == d {
		return values
	}
	if len(values) != 1 {
		panic("kern: hyperparameter length mismatch")
	}
	out := make([]float64, d)
	for i := range out {
		out[i] = values[0]
	}
	return out
}

// Squared distance between rows of x and x2, each dimension divided by its
// lengthscale.
func scaledSqDist(x, x2 mat.Matrix, lscales []float64) *mat.Dense {
	if x2 == nil {
		x2 = x
	}
	n, d := x.Dims()
	m, _ := x2.Dims()
	ls := broadcast(lscales, d)
	out := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			r2 := 0.0
			for k := 0; k < d; k++ {
				diff := (x.At(i, k) - x2.At(j, k)) / ls[k]
				r2 += diff * diff
			}
			out.Set(i, j, r2)
		}
	}
	return out
}

func constantDiag(x mat.Matrix, val float64) *mat.VecDense {
	n, _ := x.Dims()
	out := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		out.SetVec(i, val)
	}
	return out
}

// stationary holds the hyperparameters shared by isotropic and ARD kernels.
type stationary struct {
	variance *param.Positive
	lscales  *param.Positive
}

func newStationary(variance float64, lscales []float64) stationary {
	return stationary{
		variance: param.MustPositive(variance),
		lscales:  param.MustPositive(lscales...),
	}
}

// Variance of the kernel.
func (k *stationary) Variance() float64 {
	return k.variance.Float()
}

// Lengthscales broadcast to d input dimensions.
func (k *stationary) Lengthscales(d int) []float64 {
	return broadcast(k.lscales.Values(), d)
}

// ard reports whether the kernel has one lengthscale per input dimension.
func (k *stationary) ard() bool {
	return len(k.lscales.Values()) > 1
}

func (k *stationary) Parameters() []param.Parameter {
	return []param.Parameter{k.variance, k.lscales}
}

func (k *stationary) KDiag(x mat.Matrix) *mat.VecDense {
	return constantDiag(x, k.Variance())
}

func (k *stationary) apply(x, x2 mat.Matrix, fn func(r2 float64) float64) *mat.Dense {
	out := scaledSqDist(x, x2, k.lscales.Values())
	variance := k.Variance()
	out.Apply(func(i, j int, r2 float64) float64 {
		return variance * fn(r2)
	}, out)
	return out
}

// Euclidean distance, clamped so that the gradient at zero stays finite.
func distance(r2 float64) float64 {
	return math.Sqrt(math.Max(r2, 1e-36))
}

package likelihood

import (
	"math"

	"github.com/lucasmaystre/govgp/param"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var _ Likelihood = (*Poisson)(nil)

// Poisson counts with an exponential link, y ~ Poisson(exp(f)).
type Poisson struct{}

func NewPoisson() *Poisson {
	return &Poisson{}
}

func (l *Poisson) VariationalExpectations(fmean, fvar, y *mat.Dense) (*mat.Dense, error) {
	return elementwise(fmean, fvar, y, func(m, v, y float64) (float64, error) {
		if y < 0 || y != math.Floor(y) {
			return 0, errors.Wrapf(ErrInvalidObservation, "poisson observation %g is not a count", y)
		}
		lg, _ := math.Lgamma(y + 1)
		return y*m - math.Exp(m+v/2) - lg, nil
	})
}

func (l *Poisson) PredictMeanAndVar(fmean, fvar *mat.Dense) (*mat.Dense, *mat.Dense) {
	r, c := fmean.Dims()
	mean := mat.NewDense(r, c, nil)
	variance := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m, v := fmean.At(i, j), fvar.At(i, j)
			rate := math.Exp(m + v/2)
			mean.Set(i, j, rate)
			variance.Set(i, j, rate+math.Expm1(v)*rate*rate)
		}
	}
	return mean, variance
}

func (l *Poisson) Parameters() []param.Parameter {
	return nil
}

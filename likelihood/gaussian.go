package likelihood

import (
	"math"

	"github.com/lucasmaystre/govgp/param"
	"gonum.org/v1/gonum/mat"
)

var _ Likelihood = (*Gaussian)(nil)

// Gaussian observation noise, y = f + e with e ~ N(0, variance).
type Gaussian struct {
	variance *param.Positive
}

func NewGaussian(variance float64) *Gaussian {
	return &Gaussian{variance: param.MustPositive(variance)}
}

func (l *Gaussian) Variance() float64 {
	return l.variance.Float()
}

func (l *Gaussian) VariationalExpectations(fmean, fvar, y *mat.Dense) (*mat.Dense, error) {
	s2 := l.Variance()
	return elementwise(fmean, fvar, y, func(m, v, y float64) (float64, error) {
		return -0.5*math.Log(2*math.Pi) - 0.5*math.Log(s2) - 0.5*((y-m)*(y-m)+v)/s2, nil
	})
}

func (l *Gaussian) PredictMeanAndVar(fmean, fvar *mat.Dense) (*mat.Dense, *mat.Dense) {
	variance := mat.DenseCopyOf(fvar)
	s2 := l.Variance()
	variance.Apply(func(i, j int, v float64) float64 {
		return v + s2
	}, variance)
	return mat.DenseCopyOf(fmean), variance
}

func (l *Gaussian) Parameters() []param.Parameter {
	return []param.Parameter{l.variance}
}

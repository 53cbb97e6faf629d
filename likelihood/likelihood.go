// Package likelihood holds observation models p(y | f).
package likelihood

import (
	"github.com/lucasmaystre/govgp/param"
	"github.com/lucasmaystre/govgp/utils"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var ErrInvalidObservation = errors.New("invalid observation")

type Likelihood interface {
	// Elementwise expectation of log p(y | f) under f ~ N(fmean, fvar).
	VariationalExpectations(fmean, fvar, y *mat.Dense) (*mat.Dense, error)

	// Mean and variance of y when f ~ N(fmean, fvar).
	PredictMeanAndVar(fmean, fvar *mat.Dense) (mean, variance *mat.Dense)

	Parameters() []param.Parameter
}

func checkShapes(fmean, fvar, y *mat.Dense) error {
	if err := utils.CheckRows("fmean", fmean, "fvar", fvar); err != nil {
		return err
	}
	if err := utils.CheckCols("fmean", fmean, "fvar", fvar); err != nil {
		return err
	}
	if err := utils.CheckRows("fmean", fmean, "y", y); err != nil {
		return err
	}
	return utils.CheckCols("fmean", fmean, "y", y)
}

// elementwise applies fn to every (fmean, fvar, y) triple.
func elementwise(fmean, fvar, y *mat.Dense, fn func(m, v, y float64) (float64, error)) (*mat.Dense, error) {
	if err := checkShapes(fmean, fvar, y); err != nil {
		return nil, err
	}
	r, c := fmean.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			val, err := fn(fmean.At(i, j), fvar.At(i, j), y.At(i, j))
			if err != nil {
				return nil, errors.Wrapf(err, "entry (%d, %d)", i, j)
			}
			out.Set(i, j, val)
		}
	}
	return out, nil
}

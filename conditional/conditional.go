// Package conditional projects a Gaussian distribution over function values
// at training inputs onto new inputs.
package conditional

import (
	"github.com/lucasmaystre/govgp/kern"
	"github.com/lucasmaystre/govgp/utils"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Variance of a prediction. Diag holds one column per latent function; Full
// holds one covariance matrix per latent function.
type Variance struct {
	Diag *mat.Dense
	Full []*mat.Dense
}

// Conditional returns the mean and variance of f(xNew) given that the values
// of f at x are distributed as N(f, qSqrt qSqrt^T), one column of f (and one
// factor of qSqrt) per latent function. If white is set, f and qSqrt are
// expressed relative to the Cholesky factor of K(x, x). A nil qSqrt means that
// the values at x are known exactly.
func Conditional(xNew, x mat.Matrix, kernel kern.Kernel, f *mat.Dense, qSqrt []*mat.TriDense,
	fullCov, white bool, jitter float64) (*mat.Dense, Variance, error) {
	if err := utils.CheckCols("xNew", xNew, "x", x); err != nil {
		return nil, Variance{}, err
	}
	if err := utils.CheckRows("f", f, "x", x); err != nil {
		return nil, Variance{}, err
	}
	m, _ := x.Dims()
	n, _ := xNew.Dims()
	_, numLatent := f.Dims()
	if qSqrt != nil && len(qSqrt) != numLatent {
		return nil, Variance{}, errors.Wrapf(utils.ErrShapeMismatch,
			"conditional: f has %d columns, q_sqrt has %d factors", numLatent, len(qSqrt))
	}
	for l, lq := range qSqrt {
		if r, _ := lq.Dims(); r != m {
			return nil, Variance{}, errors.Wrapf(utils.ErrShapeMismatch,
				"conditional: x has %d rows, q_sqrt[%d] is %dx%d", m, l, r, r)
		}
	}

	kmm := kernel.K(x, nil)
	utils.AddJitter(kmm, jitter)
	kmn := kernel.K(x, xNew)
	lm, err := utils.Cholesky(kmm, "K(x, x) + jitter*I")
	if err != nil {
		return nil, Variance{}, err
	}

	// A = Lm^-1 Kmn
	a, err := utils.SolveTriangular(lm, kmn, false)
	if err != nil {
		return nil, Variance{}, err
	}

	var fvar Variance
	if fullCov {
		// fvar = Knn - A^T A
		knn := kernel.K(xNew, nil)
		var ata mat.Dense
		ata.Mul(a.T(), a)
		knn.Sub(knn, &ata)
		fvar.Full = make([]*mat.Dense, numLatent)
		for l := range fvar.Full {
			fvar.Full[l] = mat.DenseCopyOf(knn)
		}
	} else {
		// fvar = diag(Knn) - sum(A^2, 0)
		kdiag := kernel.KDiag(xNew)
		fvar.Diag = mat.NewDense(n, numLatent, nil)
		for i := 0; i < n; i++ {
			v := kdiag.AtVec(i)
			for j := 0; j < m; j++ {
				v -= a.At(j, i) * a.At(j, i)
			}
			for l := 0; l < numLatent; l++ {
				fvar.Diag.Set(i, l, v)
			}
		}
	}

	// A = Lm^-T A
	if !white {
		if a, err = utils.SolveTriangular(lm, a, true); err != nil {
			return nil, Variance{}, err
		}
	}

	// fmean = A^T f
	fmean := mat.NewDense(n, numLatent, nil)
	fmean.Mul(a.T(), f)

	for l, lq := range qSqrt {
		// LTA = Lq^T A
		var lta mat.Dense
		lta.Mul(lq.T(), a)
		if fullCov {
			var cov mat.Dense
			cov.Mul(lta.T(), &lta)
			fvar.Full[l].Add(fvar.Full[l], &cov)
		} else {
			for i := 0; i < n; i++ {
				v := fvar.Diag.At(i, l)
				for j := 0; j < m; j++ {
					v += lta.At(j, i) * lta.At(j, i)
				}
				fvar.Diag.Set(i, l, v)
			}
		}
	}
	return fmean, fvar, nil
}

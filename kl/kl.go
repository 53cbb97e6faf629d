// Package kl computes KL divergences between Gaussian posteriors and GP priors.
package kl

import (
	"math"

	"github.com/lucasmaystre/govgp/utils"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// GaussKL returns KL[q(f) || p(f)] summed over the L columns of qMu, where
// q(f_l) = N(qMu[:, l], qSqrt[l] qSqrt[l]^T). If kChol is nil the prior is
// N(0, I) (whitened), otherwise N(0, kChol kChol^T).
func GaussKL(qMu *mat.Dense, qSqrt []*mat.TriDense, kChol *mat.TriDense) (float64, error) {
	n, numLatent := qMu.Dims()
	if len(qSqrt) != numLatent {
		return 0, errors.Wrapf(utils.ErrShapeMismatch, "kl: q_mu has %d columns, q_sqrt has %d factors", numLatent, len(qSqrt))
	}
	for l, s := range qSqrt {
		if r, _ := s.Dims(); r != n {
			return 0, errors.Wrapf(utils.ErrShapeMismatch, "kl: q_mu has %d rows, q_sqrt[%d] is %dx%d", n, l, r, r)
		}
	}
	if kChol != nil {
		if r, _ := kChol.Dims(); r != n {
			return 0, errors.Wrapf(utils.ErrShapeMismatch, "kl: q_mu has %d rows, prior is %dx%d", n, r, r)
		}
	}

	// Mahalanobis term mu^T K^-1 mu.
	alpha := mat.DenseCopyOf(qMu)
	if kChol != nil {
		var err error
		if alpha, err = utils.SolveTriangular(kChol, qMu, false); err != nil {
			return 0, err
		}
	}
	mahalanobis := sumSquares(alpha)

	// Trace term tr(K^-1 S) and log-determinant of S.
	trace := 0.0
	logdetS := 0.0
	for _, s := range qSqrt {
		lk := mat.Matrix(s)
		if kChol != nil {
			var err error
			if lk, err = utils.SolveTriangular(kChol, s, false); err != nil {
				return 0, err
			}
		}
		trace += sumSquares(lk)
		for i := 0; i < n; i++ {
			logdetS += math.Log(s.At(i, i) * s.At(i, i))
		}
	}

	twoKL := mahalanobis + trace - float64(n*numLatent) - logdetS
	if kChol != nil {
		twoKL += float64(numLatent) * utils.LogDetChol(kChol)
	}
	return 0.5 * twoKL, nil
}

func sumSquares(a mat.Matrix) float64 {
	r, c := a.Dims()
	res := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			res += a.At(i, j) * a.At(i, j)
		}
	}
	return res
}

package models

import (
	"fmt"

	"github.com/lucasmaystre/govgp/conditional"
	"github.com/lucasmaystre/govgp/kern"
	"github.com/lucasmaystre/govgp/likelihood"
	"github.com/lucasmaystre/govgp/meanfn"
	"github.com/lucasmaystre/govgp/param"
	"github.com/lucasmaystre/govgp/utils"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

var _ Model = (*VGPOpperArchambeau)(nil)

// VGPOpperArchambeau approximates the posterior with
// q(f) = N(K alpha + mean, [K^-1 + diag(lambda^2)]^-1), per latent function.
// Only the diagonal of the posterior precision departs from the prior, so
// there are 2N parameters per latent function.
//
// See Opper and Archambeau, The Variational Gaussian Approximation
// Revisited, Neural Computation, 2009.
type VGPOpperArchambeau struct {
	baseModel
	QAlpha  *param.Dense    // N×L
	QLambda *param.Positive // N×L
}

// NewVGPOpperArchambeau builds a model of the N×D inputs x and N×R outputs y,
// starting from alpha = 0 and lambda = 1.
func NewVGPOpperArchambeau(x, y *mat.Dense, kernel kern.Kernel, lik likelihood.Likelihood,
	mean meanfn.Function, numLatent int) (*VGPOpperArchambeau, error) {
	base, err := newBaseModel(x, y, kernel, lik, mean, numLatent)
	if err != nil {
		return nil, err
	}
	ones := make([]float64, base.numData*base.numLatent)
	for i := range ones {
		ones[i] = 1.0
	}
	qLambda, err := param.NewPositive(base.numData, base.numLatent, ones)
	if err != nil {
		return nil, err
	}
	return &VGPOpperArchambeau{
		baseModel: base,
		QAlpha:    param.NewDense(base.numData, base.numLatent, nil),
		QLambda:   qLambda,
	}, nil
}

func (m *VGPOpperArchambeau) Parameters() []param.Parameter {
	return m.parameters(m.QAlpha, m.QLambda)
}

// ELBO returns E_q[log p(Y | f)] - KL[q(f) || p(f)].
func (m *VGPOpperArchambeau) ELBO() (float64, error) {
	n := m.numData
	qAlpha := m.QAlpha.Value()
	qLambda := m.QLambda.Value()
	k := m.kernel.K(m.x, nil)

	// fmean = K alpha + mean(X)
	kAlpha := mat.NewDense(n, m.numLatent, nil)
	kAlpha.Mul(k, qAlpha)
	fmean := mat.NewDense(n, m.numLatent, nil)
	fmean.Add(kAlpha, m.mean.Evaluate(m.x))

	eye := utils.Eye(n)
	fvar := mat.NewDense(n, m.numLatent, nil)
	aLogdet, trAi := 0.0, 0.0
	for l := 0; l < m.numLatent; l++ {
		// A = I + outer(lambda, lambda) * K
		lambda := utils.Col(qLambda, l)
		a := mat.NewDense(n, n, nil)
		a.Outer(1.0, lambda, lambda)
		a.MulElem(a, k)
		a.Add(a, eye)
		chol, err := utils.Cholesky(a, fmt.Sprintf("A[latent %d]", l))
		if err != nil {
			return 0, err
		}
		li, err := utils.SolveTriangular(chol, eye, false)
		if err != nil {
			return 0, err
		}
		// fvar = 1/lambda^2 - sum(square(Li / lambda), 0)
		for j := 0; j < n; j++ {
			lj := lambda.AtVec(j)
			colSum := 0.0
			for i := 0; i < n; i++ {
				colSum += li.At(i, j) * li.At(i, j)
			}
			trAi += colSum
			fvar.Set(j, l, 1/(lj*lj)-colSum/(lj*lj))
		}
		aLogdet += utils.LogDetChol(chol)
	}

	var kAlphaAlpha mat.Dense
	kAlphaAlpha.MulElem(kAlpha, qAlpha)
	kl := 0.5 * (aLogdet + trAi - float64(n*m.numLatent) + mat.Sum(&kAlphaAlpha))

	varExp, err := m.likelihood.VariationalExpectations(fmean, fvar, m.y)
	if err != nil {
		return 0, err
	}
	sum := mat.Sum(varExp)
	log.WithFields(log.Fields{
		"model":   "vgp_oa",
		"var_exp": sum,
		"kl":      kl,
	}).Debug("elbo")
	return sum - kl, nil
}

// PredictF projects q(f) onto xNew:
// q(f*) = N(K*f alpha + mean, K** - K*f [K + diag(lambda^-2)]^-1 Kf*).
// fullOutputCov has no effect.
func (m *VGPOpperArchambeau) PredictF(xNew mat.Matrix, fullCov, fullOutputCov bool) (*mat.Dense, conditional.Variance, error) {
	if err := utils.CheckCols("xNew", xNew, "X", m.x); err != nil {
		return nil, conditional.Variance{}, err
	}
	n := m.numData
	numNew, _ := xNew.Dims()
	kx := m.kernel.K(m.x, xNew)
	k := m.kernel.K(m.x, nil)
	qLambda := m.QLambda.Value()

	// fmean = Kx^T alpha + mean(xNew)
	fmean := mat.NewDense(numNew, m.numLatent, nil)
	fmean.Mul(kx.T(), m.QAlpha.Value())
	fmean.Add(fmean, m.mean.Evaluate(xNew))

	var fvar conditional.Variance
	var kNew *mat.Dense
	var kNewDiag *mat.VecDense
	if fullCov {
		kNew = m.kernel.K(xNew, nil)
		fvar.Full = make([]*mat.Dense, m.numLatent)
	} else {
		kNewDiag = m.kernel.KDiag(xNew)
		fvar.Diag = mat.NewDense(numNew, m.numLatent, nil)
	}
	for l := 0; l < m.numLatent; l++ {
		// A = K + diag(1 / lambda^2)
		a := mat.DenseCopyOf(k)
		for i := 0; i < n; i++ {
			lambda := qLambda.At(i, l)
			a.Set(i, i, a.At(i, i)+1/(lambda*lambda))
		}
		chol, err := utils.Cholesky(a, fmt.Sprintf("K + diag(lambda^-2)[latent %d]", l))
		if err != nil {
			return nil, conditional.Variance{}, err
		}
		liKx, err := utils.SolveTriangular(chol, kx, false)
		if err != nil {
			return nil, conditional.Variance{}, err
		}
		if fullCov {
			// fvar = K** - LiKx^T LiKx
			cov := mat.NewDense(numNew, numNew, nil)
			cov.Mul(liKx.T(), liKx)
			cov.Sub(kNew, cov)
			fvar.Full[l] = cov
		} else {
			// fvar = diag(K**) - sum(square(LiKx), 0)
			for j := 0; j < numNew; j++ {
				v := kNewDiag.AtVec(j)
				for i := 0; i < n; i++ {
					v -= liKx.At(i, j) * liKx.At(i, j)
				}
				fvar.Diag.Set(j, l, v)
			}
		}
	}
	return fmean, fvar, nil
}

package models

import (
	"github.com/lucasmaystre/govgp/conditional"
	"github.com/lucasmaystre/govgp/kern"
	"github.com/lucasmaystre/govgp/kl"
	"github.com/lucasmaystre/govgp/likelihood"
	"github.com/lucasmaystre/govgp/meanfn"
	"github.com/lucasmaystre/govgp/param"
	"github.com/lucasmaystre/govgp/utils"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

var _ Model = (*VGP)(nil)

// VGP approximates the posterior over the latent function values at the
// training inputs with a Gaussian, q(f) = N(L qMu, L qSqrt qSqrt^T L^T),
// where L is the Cholesky factor of the prior covariance (whitened
// representation).
type VGP struct {
	baseModel
	Jitter float64
	QMu    *param.Dense      // N×L
	QSqrt  *param.Triangular // L factors of size N×N
}

// NewVGP builds a model of the N×D inputs x and N×R outputs y. A nil mean
// means zero; numLatent 0 means R. The posterior starts at the prior.
func NewVGP(x, y *mat.Dense, kernel kern.Kernel, lik likelihood.Likelihood,
	mean meanfn.Function, numLatent int) (*VGP, error) {
	base, err := newBaseModel(x, y, kernel, lik, mean, numLatent)
	if err != nil {
		return nil, err
	}
	return &VGP{
		baseModel: base,
		Jitter:    utils.DefaultJitter,
		QMu:       param.NewDense(base.numData, base.numLatent, nil),
		QSqrt:     param.NewTriangularEye(base.numLatent, base.numData),
	}, nil
}

func (m *VGP) Parameters() []param.Parameter {
	return m.parameters(m.QMu, m.QSqrt)
}

// KL returns KL[q(f) || p(f)] in the whitened space.
func (m *VGP) KL() (float64, error) {
	return kl.GaussKL(m.QMu.Value(), m.QSqrt.Value(), nil)
}

// marginals returns the mean and variance of q(f) at the training inputs,
// both N×L.
func (m *VGP) marginals() (fmean, fvar *mat.Dense, err error) {
	n := m.numData
	k := m.kernel.K(m.x, nil)
	utils.AddJitter(k, m.Jitter)
	l, err := utils.Cholesky(k, "K + jitter*I")
	if err != nil {
		return nil, nil, err
	}

	// fmean = L q_mu + mean(X)
	fmean = mat.NewDense(n, m.numLatent, nil)
	fmean.Mul(l, m.QMu.Value())
	fmean.Add(fmean, m.mean.Evaluate(m.x))

	// fvar[:, i] = sum(square(L q_sqrt[i]), 1)
	fvar = mat.NewDense(n, m.numLatent, nil)
	lta := blas64.General{
		Rows:   n,
		Cols:   n,
		Stride: n,
		Data:   make([]float64, n*n),
	}
	for i, s := range m.QSqrt.Value() {
		band := utils.LowerBand(s)
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				lta.Data[r*n+c] = band.At(r, c)
			}
		}
		blas64.Trmm(blas.Left, blas.NoTrans, 1.0, l.RawTriangular(), lta)
		for r := 0; r < n; r++ {
			row := lta.Data[r*n : (r+1)*n]
			fvar.Set(r, i, blas64.Dot(blas64.Vector{N: n, Inc: 1, Data: row}, blas64.Vector{N: n, Inc: 1, Data: row}))
		}
	}
	return fmean, fvar, nil
}

// ELBO returns E_q[log p(Y | f)] - KL[q(f) || p(f)].
func (m *VGP) ELBO() (float64, error) {
	// Get prior KL.
	kl, err := m.KL()
	if err != nil {
		return 0, err
	}

	// Get conditionals.
	fmean, fvar, err := m.marginals()
	if err != nil {
		return 0, err
	}

	// Get variational expectations.
	varExp, err := m.likelihood.VariationalExpectations(fmean, fvar, m.y)
	if err != nil {
		return 0, err
	}
	sum := mat.Sum(varExp)
	log.WithFields(log.Fields{
		"model":   "vgp",
		"var_exp": sum,
		"kl":      kl,
	}).Debug("elbo")
	return sum - kl, nil
}

// PredictF projects q(f) onto xNew. Latent functions are independent, so
// fullOutputCov has no effect.
func (m *VGP) PredictF(xNew mat.Matrix, fullCov, fullOutputCov bool) (*mat.Dense, conditional.Variance, error) {
	mu, variance, err := conditional.Conditional(xNew, m.x, m.kernel, m.QMu.Value(), m.QSqrt.Value(),
		fullCov, true, m.Jitter)
	if err != nil {
		return nil, conditional.Variance{}, err
	}
	mu.Add(mu, m.mean.Evaluate(xNew))
	return mu, variance, nil
}

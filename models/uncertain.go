package models

import (
	"github.com/lucasmaystre/govgp/expect"
	"github.com/lucasmaystre/govgp/inducing"
	"github.com/lucasmaystre/govgp/meanfn"
	"github.com/lucasmaystre/govgp/probdist"
	"github.com/lucasmaystre/govgp/utils"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// PredictFUncertain returns the mean and variance of the latent functions at
// inputs distributed as p, with the input uncertainty integrated out. Both
// results are N×L. Only models with a zero mean function are supported.
func (m *VGP) PredictFUncertain(p probdist.Distribution) (mean, variance *mat.Dense, err error) {
	if _, ok := m.mean.(*meanfn.Zero); !ok {
		return nil, nil, errors.Wrapf(expect.ErrUnsupportedExpectation, "uncertain inputs with mean function %T", m.mean)
	}
	feat := inducing.NewPoints(m.x)
	psi0, err := expect.Expectation(p, expect.Op(m.kernel), expect.Operand{})
	if err != nil {
		return nil, nil, err
	}
	psi1, err := expect.Expectation(p, expect.OpZ(m.kernel, feat), expect.Operand{})
	if err != nil {
		return nil, nil, err
	}
	psi2, err := expect.Expectation(p, expect.OpZ(m.kernel, feat), expect.OpZ(m.kernel, feat))
	if err != nil {
		return nil, nil, err
	}

	n, numNew := m.numData, p.Len()
	k := m.kernel.K(m.x, nil)
	utils.AddJitter(k, m.Jitter)
	l, err := utils.Cholesky(k, "K + jitter*I")
	if err != nil {
		return nil, nil, err
	}

	// mean = psi1 L^-T q_mu
	qMu := m.QMu.Value()
	a, err := utils.SolveTriangular(l, qMu, true)
	if err != nil {
		return nil, nil, err
	}
	mean = mat.NewDense(numNew, m.numLatent, nil)
	mean.Mul(psi1.Mat(), a)

	variance = mat.NewDense(numNew, m.numLatent, nil)
	for i, s := range m.QSqrt.Value() {
		// C = S + q_mu q_mu^T - I, B = L^-T C L^-1
		c := mat.NewDense(n, n, nil)
		c.Mul(s, s.T())
		var outer mat.Dense
		outer.Outer(1.0, qMu.ColView(i), qMu.ColView(i))
		c.Add(c, &outer)
		c.Sub(c, utils.Eye(n))
		tmp, err := utils.SolveTriangular(l, c, true)
		if err != nil {
			return nil, nil, err
		}
		b, err := utils.SolveTriangular(l, tmp.T(), true)
		if err != nil {
			return nil, nil, err
		}
		// var = psi0 + <psi2, B> - mean^2
		for j := 0; j < numNew; j++ {
			v := psi0.At(j) + mat.Sum(elemProduct(psi2.Slab(j), b)) - mean.At(j, i)*mean.At(j, i)
			variance.Set(j, i, v)
		}
	}
	return mean, variance, nil
}

func elemProduct(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.MulElem(a, b)
	return &out
}

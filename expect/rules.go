package expect

import (
	"github.com/lucasmaystre/govgp/kern"
	"github.com/lucasmaystre/govgp/meanfn"
	"github.com/lucasmaystre/govgp/probdist"
	"gonum.org/v1/gonum/mat"
)

func init() {
	registerLeafRules(Default)
	registerSumRules(Default)
}

func registerLeafRules(r *Registry) {
	leaves := Of(SquaredExponentialClass, LinearClass, ConstantClass)
	none := Of(NoneClass)
	points := Of(InducingPointsClass)
	r.Register(eKdiag, Of(GaussianClass), leaves, none, none, none)
	r.Register(eKxz, Of(GaussianClass), leaves, points, none, none)
	r.Register(eKzxKxz, Of(GaussianClass), leaves, points, leaves, points)
	r.Register(eMxKxz, Of(GaussianClass), Of(LinearMeanClass, ConstantMeanClass), none, leaves, points)
	r.Register(eMarkovXKxz, Of(MarkovGaussianClass), Of(IdentityMeanClass), none, leaves, points)
}

// <diag(K_{x, x})>_p, shape N.
func eKdiag(r *Registry, p probdist.Distribution, a, _ Operand) (*Tensor, error) {
	n := p.Len()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		mu, cov := p.Marginal(i)
		switch k := a.Obj.(type) {
		case *kern.SquaredExponential:
			out[i] = k.Variance()
		case *kern.Constant:
			out[i] = k.Variance()
		case *kern.Linear:
			vs := k.Variances(len(mu))
			for j, v := range vs {
				out[i] += v * (cov.At(j, j) + mu[j]*mu[j])
			}
		default:
			return nil, unexpected(k)
		}
	}
	return newTensor(out, n), nil
}

// <K_{x, Z}>_p, shape N×M.
func eKxz(r *Registry, p probdist.Distribution, a, _ Operand) (*Tensor, error) {
	k := a.Obj.(kern.Kernel)
	n, m := p.Len(), a.Feat.Len()
	out := make([]float64, 0, n*m)
	for i := 0; i < n; i++ {
		mu, cov := p.Marginal(i)
		eK, _, err := crossMoments(k, a.Feat.Z, mu, cov)
		if err != nil {
			return nil, err
		}
		out = append(out, eK...)
	}
	return newTensor(out, n, m), nil
}

// <K_{Z1, x} K_{x, Z2}>_p, shape N×M1×M2.
func eKzxKxz(r *Registry, p probdist.Distribution, a, b Operand) (*Tensor, error) {
	n, m1, m2 := p.Len(), a.Feat.Len(), b.Feat.Len()
	out := make([]float64, 0, n*m1*m2)
	for i := 0; i < n; i++ {
		mu, cov := p.Marginal(i)
		slab, err := pairMoment(a.Obj.(kern.Kernel), a.Feat.Z, b.Obj.(kern.Kernel), b.Feat.Z, mu, cov)
		if err != nil {
			return nil, err
		}
		out = append(out, slab.RawMatrix().Data...)
	}
	return newTensor(out, n, m1, m2), nil
}

// <m(x) K_{x, Z}>_p for affine mean functions, shape N×Q×M.
func eMxKxz(r *Registry, p probdist.Distribution, a, b Operand) (*Tensor, error) {
	n, d, m := p.Len(), p.Dim(), b.Feat.Len()
	k := b.Obj.(kern.Kernel)
	// Mean at the origin, which is the bias of affine mean functions.
	bias := a.Obj.(meanfn.Function).Evaluate(mat.NewDense(1, d, nil)).RawRowView(0)
	q := len(bias)
	if _, ok := a.Obj.(*meanfn.Identity); ok {
		q = d
	}
	out := make([]float64, 0, n*q*m)
	slab := mat.NewDense(q, m, nil)
	for i := 0; i < n; i++ {
		mu, cov := p.Marginal(i)
		eK, exK, err := crossMoments(k, b.Feat.Z, mu, cov)
		if err != nil {
			return nil, err
		}
		switch mean := a.Obj.(type) {
		case *meanfn.Identity:
			slab.Copy(exK)
		case *meanfn.Linear:
			// A^T <x k> + b <k>^T
			slab.Mul(mean.A.Value().T(), exK)
			for j := 0; j < q; j++ {
				for l := 0; l < m; l++ {
					slab.Set(j, l, slab.At(j, l)+bias[j]*eK[l])
				}
			}
		case *meanfn.Constant, *meanfn.Zero:
			for j := 0; j < q; j++ {
				for l := 0; l < m; l++ {
					slab.Set(j, l, bias[j]*eK[l])
				}
			}
		default:
			return nil, unexpected(mean)
		}
		out = append(out, slab.RawMatrix().Data...)
	}
	return newTensor(out, n, q, m), nil
}

// <x_{n+1} K_{x_n, Z}>_p over consecutive pairs, shape N×D×M.
func eMarkovXKxz(r *Registry, p probdist.Distribution, _, b Operand) (*Tensor, error) {
	markov := p.(*probdist.MarkovGaussian)
	n, d, m := markov.Len(), markov.Dim(), b.Feat.Len()
	z := b.Feat.Z
	out := make([]float64, 0, n*d*m)
	slab := mat.NewDense(d, m, nil)
	for i := 0; i < n; i++ {
		mu, cov := markov.Marginal(i)
		next, _ := markov.Marginal(i + 1)
		cross := markov.CrossCov(i)
		switch k := b.Obj.(type) {
		case *kern.SquaredExponential:
			eK, sol, err := seCross(k, z, mu, cov)
			if err != nil {
				return nil, err
			}
			// <x_{n+1} k> = <k> (mu_{n+1} + C^T sol)
			slab.Mul(cross.T(), sol)
			for j := 0; j < d; j++ {
				for l := 0; l < m; l++ {
					slab.Set(j, l, eK[l]*(slab.At(j, l)+next[j]))
				}
			}
		case *kern.Linear:
			// (C^T + mu_{n+1} mu_n^T) diag(v) Z^T
			joint := mat.NewDense(d, d, nil)
			for j := 0; j < d; j++ {
				for l := 0; l < d; l++ {
					joint.Set(j, l, cross.At(l, j)+next[j]*mu[l])
				}
			}
			slab.Mul(joint, scaledInducing(k, z))
		case *kern.Constant:
			for j := 0; j < d; j++ {
				for l := 0; l < m; l++ {
					slab.Set(j, l, k.Variance()*next[j])
				}
			}
		default:
			return nil, unexpected(k)
		}
		out = append(out, slab.RawMatrix().Data...)
	}
	return newTensor(out, n, d, m), nil
}

package expect

import (
	"github.com/lucasmaystre/govgp/kern"
	"github.com/lucasmaystre/govgp/probdist"
)

// Expectations involving sum kernels are sums of the expectations of the
// children, accumulated in child order.

func registerSumRules(r *Registry) {
	none := Of(NoneClass)
	points := Of(InducingPointsClass)
	sums := Of(SumClass)
	r.Register(eSumKdiag, Of(GaussianClass), sums, none, none, none)
	r.Register(eSumKxz, Of(GaussianClass), sums, points, none, none)
	r.Register(eMxSumKxz, Of(GaussianClass), Of(LinearMeanClass, IdentityMeanClass, ConstantMeanClass), none, sums, points)
	r.Register(eMxSumKxz, Of(MarkovGaussianClass), Of(IdentityMeanClass), none, sums, points)
	r.Register(eSumKzxSumKxz, Of(GaussianClass, DiagonalGaussianClass), sums, points, sums, points)
}

// <sum_i diag(Ki_{x, x})>_p, shape N.
func eSumKdiag(r *Registry, p probdist.Distribution, a, _ Operand) (*Tensor, error) {
	children := a.Obj.(*kern.Sum).Children()
	exps := make([]*Tensor, len(children))
	for i, k := range children {
		var err error
		if exps[i], err = r.Expectation(p, Op(k), Operand{}); err != nil {
			return nil, err
		}
	}
	return sumAll(exps)
}

// <sum_i Ki_{x, Z}>_p, shape N×M.
func eSumKxz(r *Registry, p probdist.Distribution, a, _ Operand) (*Tensor, error) {
	children := a.Obj.(*kern.Sum).Children()
	exps := make([]*Tensor, len(children))
	for i, k := range children {
		var err error
		if exps[i], err = r.Expectation(p, OpZ(k, a.Feat), Operand{}); err != nil {
			return nil, err
		}
	}
	return sumAll(exps)
}

// <m(x_n)^T sum_i Ki_{x_n, Z}>_p, shape N×Q×M. Under a Markov distribution
// the mean is the identity of the next state and the shape is N×D×M.
func eMxSumKxz(r *Registry, p probdist.Distribution, a, b Operand) (*Tensor, error) {
	children := b.Obj.(*kern.Sum).Children()
	exps := make([]*Tensor, len(children))
	for i, k := range children {
		var err error
		if exps[i], err = r.Expectation(p, a, OpZ(k, b.Feat)); err != nil {
			return nil, err
		}
	}
	return sumAll(exps)
}

// <(sum_i K1i_{Z1, x}) (sum_j K2j_{x, Z2})>_p, shape N×M1×M2.
func eSumKzxSumKxz(r *Registry, p probdist.Distribution, a, b Operand) (*Tensor, error) {
	kern1 := a.Obj.(*kern.Sum).Children()
	kern2 := b.Obj.(*kern.Sum).Children()
	var crossexps []*Tensor
	if sameObject(a.Obj, b.Obj) && a.Feat == b.Feat {
		// Term (i, j) is the adjoint of term (j, i): compute each once.
		for i, k1 := range kern1 {
			eKK, err := r.Expectation(p, OpZ(k1, a.Feat), OpZ(k1, a.Feat))
			if err != nil {
				return nil, err
			}
			crossexps = append(crossexps, eKK)
			for _, k2 := range kern1[:i] {
				eKK, err := r.Expectation(p, OpZ(k1, a.Feat), OpZ(k2, b.Feat))
				if err != nil {
					return nil, err
				}
				adj, err := eKK.Adjoint()
				if err != nil {
					return nil, err
				}
				if eKK, err = eKK.Add(adj); err != nil {
					return nil, err
				}
				crossexps = append(crossexps, eKK)
			}
		}
	} else {
		for _, k1 := range kern1 {
			for _, k2 := range kern2 {
				eKK, err := r.Expectation(p, OpZ(k1, a.Feat), OpZ(k2, b.Feat))
				if err != nil {
					return nil, err
				}
				crossexps = append(crossexps, eKK)
			}
		}
	}
	return sumAll(crossexps)
}

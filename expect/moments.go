package expect

import (
	"math"

	"github.com/lucasmaystre/govgp/kern"
	"github.com/lucasmaystre/govgp/utils"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Closed-form moments of kernels under a single Gaussian input
// x ~ N(mu, cov). Squared exponential results follow from the product of
// two Gaussian densities, the linear ones from the second moment of x.

func factorize(a *mat.SymDense, name string) (*mat.Cholesky, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		n := a.SymmetricDim()
		return nil, errors.Wrapf(utils.ErrNotPositiveDefinite, "cholesky of %s (%dx%d)", name, n, n)
	}
	return &chol, nil
}

func solveChol(chol *mat.Cholesky, b mat.Matrix) (*mat.Dense, error) {
	var x mat.Dense
	if err := chol.SolveTo(&x, b); err != nil {
		if _, ok := err.(mat.Condition); !ok {
			return nil, err
		}
	}
	return &x, nil
}

// secondMoment returns cov + mu mu^T.
func secondMoment(mu []float64, cov mat.Symmetric) *mat.Dense {
	d := len(mu)
	out := mat.NewDense(d, d, nil)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			out.Set(i, j, cov.At(i, j)+mu[i]*mu[j])
		}
	}
	return out
}

// scaledInducing returns diag(v) Z^T for a linear kernel.
func scaledInducing(k *kern.Linear, z mat.Matrix) *mat.Dense {
	m, d := z.Dims()
	vs := k.Variances(d)
	out := mat.NewDense(d, m, nil)
	for i := 0; i < d; i++ {
		for j := 0; j < m; j++ {
			out.Set(i, j, vs[i]*z.At(j, i))
		}
	}
	return out
}

// seCross returns <k(x, z_m)> for every inducing point and the D×M matrix
// (Lambda + cov)^-1 (z_m - mu), where Lambda holds the squared lengthscales.
func seCross(k *kern.SquaredExponential, z mat.Matrix, mu []float64, cov mat.Symmetric) ([]float64, *mat.Dense, error) {
	m, d := z.Dims()
	ls := k.Lengthscales(d)
	b := mat.NewSymDense(d, nil)
	b.CopySym(cov)
	logdetL := 0.0
	for i := 0; i < d; i++ {
		b.SetSym(i, i, b.At(i, i)+ls[i]*ls[i])
		logdetL += 2 * math.Log(ls[i])
	}
	chol, err := factorize(b, "Lambda + cov")
	if err != nil {
		return nil, nil, err
	}
	scale := k.Variance() * math.Exp(0.5*(logdetL-chol.LogDet()))
	diffs := mat.NewDense(d, m, nil)
	for j := 0; j < m; j++ {
		for i := 0; i < d; i++ {
			diffs.Set(i, j, z.At(j, i)-mu[i])
		}
	}
	sol, err := solveChol(chol, diffs)
	if err != nil {
		return nil, nil, err
	}
	eK := make([]float64, m)
	for j := range eK {
		q := 0.0
		for i := 0; i < d; i++ {
			q += diffs.At(i, j) * sol.At(i, j)
		}
		eK[j] = scale * math.Exp(-0.5*q)
	}
	return eK, sol, nil
}

// crossMoments returns <k(x, z_m)> and the D×M matrix <x k(x, z_m)>.
func crossMoments(k kern.Kernel, z mat.Matrix, mu []float64, cov mat.Symmetric) ([]float64, *mat.Dense, error) {
	m, d := z.Dims()
	switch k := k.(type) {
	case *kern.SquaredExponential:
		eK, sol, err := seCross(k, z, mu, cov)
		if err != nil {
			return nil, nil, err
		}
		// <x k(x, z_m)> = <k(x, z_m)> (mu + cov sol_m)
		exK := mat.NewDense(d, m, nil)
		exK.Mul(cov, sol)
		for j := 0; j < m; j++ {
			for i := 0; i < d; i++ {
				exK.Set(i, j, eK[j]*(exK.At(i, j)+mu[i]))
			}
		}
		return eK, exK, nil
	case *kern.Linear:
		vz := scaledInducing(k, z)
		eK := make([]float64, m)
		muVec := mat.NewVecDense(d, mu)
		for j := range eK {
			eK[j] = mat.Dot(muVec, vz.ColView(j))
		}
		// <x x^T> diag(v) Z^T
		exK := mat.NewDense(d, m, nil)
		exK.Mul(secondMoment(mu, cov), vz)
		return eK, exK, nil
	case *kern.Constant:
		c := k.Variance()
		eK := make([]float64, m)
		exK := mat.NewDense(d, m, nil)
		for j := range eK {
			eK[j] = c
			for i := 0; i < d; i++ {
				exK.Set(i, j, c*mu[i])
			}
		}
		return eK, exK, nil
	}
	return nil, nil, unexpected(k)
}

// seSECross returns the M1×M2 matrix <k1(z1, x) k2(x, z2)> for two squared
// exponential kernels.
func seSECross(k1 *kern.SquaredExponential, z1 mat.Matrix, k2 *kern.SquaredExponential, z2 mat.Matrix,
	mu []float64, cov mat.Symmetric) (*mat.Dense, error) {
	m1, d := z1.Dims()
	m2, _ := z2.Dims()
	l1 := k1.Lengthscales(d)
	l2 := k2.Lengthscales(d)
	// C = (Lambda1^-1 + Lambda2^-1)^-1, B = C + cov
	s := make([]float64, d)
	b := mat.NewSymDense(d, nil)
	b.CopySym(cov)
	logdetC := 0.0
	for i := 0; i < d; i++ {
		a1, a2 := l1[i]*l1[i], l2[i]*l2[i]
		s[i] = a1 + a2
		c := a1 * a2 / s[i]
		b.SetSym(i, i, b.At(i, i)+c)
		logdetC += math.Log(c)
	}
	chol, err := factorize(b, "C + cov")
	if err != nil {
		return nil, err
	}
	scale := k1.Variance() * k2.Variance() * math.Exp(0.5*(logdetC-chol.LogDet()))
	out := mat.NewDense(m1, m2, nil)
	diff := mat.NewVecDense(d, nil)
	var sol mat.VecDense
	for i := 0; i < m1; i++ {
		for j := 0; j < m2; j++ {
			t := 0.0
			for k := 0; k < d; k++ {
				za, zb := z1.At(i, k), z2.At(j, k)
				t += (za - zb) * (za - zb) / s[k]
				// Center of the product of the two kernels.
				center := (l2[k]*l2[k]*za + l1[k]*l1[k]*zb) / s[k]
				diff.SetVec(k, center-mu[k])
			}
			if err := chol.SolveVecTo(&sol, diff); err != nil {
				if _, ok := err.(mat.Condition); !ok {
					return nil, err
				}
			}
			q := mat.Dot(diff, &sol)
			out.Set(i, j, scale*math.Exp(-0.5*(t+q)))
		}
	}
	return out, nil
}

// pairMoment returns the M1×M2 matrix <k1(z1, x) k2(x, z2)>.
func pairMoment(k1 kern.Kernel, z1 mat.Matrix, k2 kern.Kernel, z2 mat.Matrix,
	mu []float64, cov mat.Symmetric) (*mat.Dense, error) {
	m1, _ := z1.Dims()
	m2, _ := z2.Dims()
	out := mat.NewDense(m1, m2, nil)
	// A constant factor scales the expectation of the other kernel.
	if c, ok := k1.(*kern.Constant); ok {
		eK, _, err := crossMoments(k2, z2, mu, cov)
		if err != nil {
			return nil, err
		}
		for i := 0; i < m1; i++ {
			for j := 0; j < m2; j++ {
				out.Set(i, j, c.Variance()*eK[j])
			}
		}
		return out, nil
	}
	if c, ok := k2.(*kern.Constant); ok {
		eK, _, err := crossMoments(k1, z1, mu, cov)
		if err != nil {
			return nil, err
		}
		for i := 0; i < m1; i++ {
			for j := 0; j < m2; j++ {
				out.Set(i, j, c.Variance()*eK[i])
			}
		}
		return out, nil
	}
	switch a := k1.(type) {
	case *kern.SquaredExponential:
		switch b := k2.(type) {
		case *kern.SquaredExponential:
			return seSECross(a, z1, b, z2, mu, cov)
		case *kern.Linear:
			// <k1(z1, x) x^T> diag(v2) Z2^T
			_, exK, err := crossMoments(a, z1, mu, cov)
			if err != nil {
				return nil, err
			}
			out.Mul(exK.T(), scaledInducing(b, z2))
			return out, nil
		}
		return nil, unexpected(k2)
	case *kern.Linear:
		switch b := k2.(type) {
		case *kern.SquaredExponential:
			_, exK, err := crossMoments(b, z2, mu, cov)
			if err != nil {
				return nil, err
			}
			out.Mul(scaledInducing(a, z1).T(), exK)
			return out, nil
		case *kern.Linear:
			// Z1 diag(v1) <x x^T> diag(v2) Z2^T
			out.Product(scaledInducing(a, z1).T(), secondMoment(mu, cov), scaledInducing(b, z2))
			return out, nil
		}
		return nil, unexpected(k2)
	}
	return nil, unexpected(k1)
}

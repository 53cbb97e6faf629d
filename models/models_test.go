package models

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/lucasmaystre/govgp/expect"
	"github.com/lucasmaystre/govgp/kern"
	"github.com/lucasmaystre/govgp/likelihood"
	"github.com/lucasmaystre/govgp/meanfn"
	"github.com/lucasmaystre/govgp/probdist"
	"github.com/lucasmaystre/govgp/utils"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const noise = 0.1

func regressionData() (x, y *mat.Dense) {
	xs := floats.Span(make([]float64, 6), -2, 3)
	x = mat.NewDense(6, 1, xs)
	y = mat.NewDense(6, 1, nil)
	for i, v := range xs {
		y.Set(i, 0, math.Sin(2*v)+0.1*v)
	}
	return x, y
}

func testKernel() kern.Kernel {
	return kern.NewSum(kern.NewSquaredExponential(1.2, 0.9), kern.NewLinear(0.05))
}

// logMarginal returns log N(y | 0, k + noise*I).
func logMarginal(t *testing.T, k *mat.Dense, y *mat.Dense, noise float64) float64 {
	t.Helper()
	n, _ := k.Dims()
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, k.At(i, j))
		}
		cov.SetSym(i, i, k.At(i, i)+noise)
	}
	var chol mat.Cholesky
	if !chol.Factorize(cov) {
		t.Fatalf("marginal covariance is not positive definite")
	}
	var sol mat.VecDense
	yVec := mat.NewVecDense(n, mat.Col(nil, 0, y))
	if err := chol.SolveVecTo(&sol, yVec); err != nil {
		t.Fatalf("SolveVecTo failed: %v", err)
	}
	return -0.5*mat.Dot(yVec, &sol) - 0.5*chol.LogDet() - 0.5*float64(n)*math.Log(2*math.Pi)
}

// optimalVGP sets the posterior of a single-output VGP with Gaussian
// likelihood to the exact one.
func optimalVGP(t *testing.T, m *VGP) {
	t.Helper()
	n := m.numData
	k := m.kernel.K(m.x, nil)
	utils.AddJitter(k, m.Jitter)
	l, err := utils.Cholesky(k, "K")
	if err != nil {
		t.Fatalf("Cholesky failed: %v", err)
	}
	// S = (I + L^T L / noise)^-1, mu = S L^T y / noise
	prec := mat.NewDense(n, n, nil)
	prec.Mul(l.T(), l)
	prec.Scale(1/noise, prec)
	prec.Add(prec, utils.Eye(n))
	var s mat.Dense
	if err := s.Inverse(prec); err != nil {
		t.Fatalf("Inverse failed: %v", err)
	}
	var lty, mu mat.Dense
	lty.Mul(l.T(), m.y)
	mu.Mul(&s, &lty)
	mu.Scale(1/noise, &mu)
	sqrt, err := utils.Cholesky(&s, "S")
	if err != nil {
		t.Fatalf("Cholesky failed: %v", err)
	}
	if err := m.QMu.Set(&mu); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := m.QSqrt.Set([]mat.Matrix{sqrt}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
}

// optimalOA sets alpha = (K + noise*I)^-1 y and lambda^2 = 1 / noise.
func optimalOA(t *testing.T, m *VGPOpperArchambeau) {
	t.Helper()
	n := m.numData
	k := m.kernel.K(m.x, nil)
	utils.AddJitter(k, noise)
	var alpha mat.Dense
	if err := alpha.Solve(k, m.y); err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if err := m.QAlpha.Set(&alpha); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	lambda := make([]float64, n)
	for i := range lambda {
		lambda[i] = 1 / math.Sqrt(noise)
	}
	if err := m.QLambda.Set(mat.NewDense(n, 1, lambda)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
}

func TestVGPAtPrior(t *testing.T) {
	x, y := regressionData()
	m, err := NewVGP(x, y, testKernel(), likelihood.NewGaussian(noise), nil, 0)
	if err != nil {
		t.Fatalf("NewVGP failed: %v", err)
	}
	kl, err := m.KL()
	if err != nil {
		t.Fatalf("KL failed: %v", err)
	}
	if kl != 0 {
		t.Errorf("KL at initialization = %v, want 0", kl)
	}

	// With q(f) = p(f) the bound is the expected log-likelihood under the prior.
	kdiag := m.kernel.KDiag(x)
	want := 0.0
	for i := 0; i < 6; i++ {
		v := kdiag.AtVec(i) + m.Jitter
		r := y.At(i, 0)
		want += -0.5*math.Log(2*math.Pi*noise) - 0.5*(r*r+v)/noise
	}
	got, err := m.ELBO()
	if err != nil {
		t.Fatalf("ELBO failed: %v", err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(1e-10, 0)); diff != "" {
		t.Errorf("ELBO (-want +got):\n%s", diff)
	}
}

func TestVGPExactPosterior(t *testing.T) {
	x, y := regressionData()
	m, err := NewVGP(x, y, testKernel(), likelihood.NewGaussian(noise), nil, 0)
	if err != nil {
		t.Fatalf("NewVGP failed: %v", err)
	}
	optimalVGP(t, m)
	k := m.kernel.K(x, nil)
	utils.AddJitter(k, m.Jitter)
	want := logMarginal(t, k, y, noise)
	got, err := m.ELBO()
	if err != nil {
		t.Fatalf("ELBO failed: %v", err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("ELBO at the exact posterior (-log marginal +got):\n%s", diff)
	}

	// Predictions at the training inputs reproduce the marginals of q(f).
	fmean, fvar, err := m.marginals()
	if err != nil {
		t.Fatalf("marginals failed: %v", err)
	}
	pmean, pvar, err := m.PredictF(x, false, false)
	if err != nil {
		t.Fatalf("PredictF failed: %v", err)
	}
	if !mat.EqualApprox(fmean, pmean, 1e-4) {
		t.Errorf("predicted mean %v, want %v", mat.Formatted(pmean), mat.Formatted(fmean))
	}
	if !mat.EqualApprox(fvar, pvar.Diag, 1e-4) {
		t.Errorf("predicted variance %v, want %v", mat.Formatted(pvar.Diag), mat.Formatted(fvar))
	}
}

func TestOAExactPosterior(t *testing.T) {
	x, y := regressionData()
	m, err := NewVGPOpperArchambeau(x, y, testKernel(), likelihood.NewGaussian(noise), nil, 0)
	if err != nil {
		t.Fatalf("NewVGPOpperArchambeau failed: %v", err)
	}
	optimalOA(t, m)
	want := logMarginal(t, m.kernel.K(x, nil), y, noise)
	got, err := m.ELBO()
	if err != nil {
		t.Fatalf("ELBO failed: %v", err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("ELBO at the exact posterior (-log marginal +got):\n%s", diff)
	}

	// Both parameterizations of the exact posterior predict alike.
	vgp, err := NewVGP(x, y, testKernel(), likelihood.NewGaussian(noise), nil, 0)
	if err != nil {
		t.Fatalf("NewVGP failed: %v", err)
	}
	optimalVGP(t, vgp)
	xNew := mat.NewDense(4, 1, []float64{-3, -0.25, 1.1, 4})
	for _, full := range []bool{false, true} {
		oaMean, oaVar, err := m.PredictF(xNew, full, false)
		if err != nil {
			t.Fatalf("PredictF failed: %v", err)
		}
		vMean, vVar, err := vgp.PredictF(xNew, full, false)
		if err != nil {
			t.Fatalf("PredictF failed: %v", err)
		}
		if !mat.EqualApprox(oaMean, vMean, 1e-4) {
			t.Errorf("full=%v: means %v and %v differ", full, mat.Formatted(oaMean), mat.Formatted(vMean))
		}
		if full {
			if !mat.EqualApprox(oaVar.Full[0], vVar.Full[0], 1e-4) {
				t.Errorf("covariances %v and %v differ", mat.Formatted(oaVar.Full[0]), mat.Formatted(vVar.Full[0]))
			}
		} else if !mat.EqualApprox(oaVar.Diag, vVar.Diag, 1e-4) {
			t.Errorf("variances %v and %v differ", mat.Formatted(oaVar.Diag), mat.Formatted(vVar.Diag))
		}
	}
}

func TestOAVanishingLambda(t *testing.T) {
	x, y := regressionData()
	mean := meanfn.NewConstant(0.3)
	lik := likelihood.NewGaussian(noise)
	m, err := NewVGPOpperArchambeau(x, y, testKernel(), lik, mean, 0)
	if err != nil {
		t.Fatalf("NewVGPOpperArchambeau failed: %v", err)
	}
	small := make([]float64, 6)
	for i := range small {
		small[i] = 1e-3
	}
	if err := m.QLambda.Set(mat.NewDense(6, 1, small)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	// q(f) tends to the prior: the bound tends to the expected log-likelihood
	// under N(mean, diag(K)).
	fmean := mean.Evaluate(x)
	fvar := mat.NewDense(6, 1, m.kernel.KDiag(x).RawVector().Data)
	varExp, err := lik.VariationalExpectations(fmean, fvar, y)
	if err != nil {
		t.Fatalf("VariationalExpectations failed: %v", err)
	}
	got, err := m.ELBO()
	if err != nil {
		t.Fatalf("ELBO failed: %v", err)
	}
	if diff := cmp.Diff(mat.Sum(varExp), got, cmpopts.EquateApprox(1e-4, 0)); diff != "" {
		t.Errorf("ELBO (-limit +got):\n%s", diff)
	}
}

func TestMultipleLatents(t *testing.T) {
	x, y := regressionData()
	y2 := mat.NewDense(6, 2, nil)
	y2.Apply(func(i, j int, _ float64) float64 {
		if j == 0 {
			return y.At(i, 0)
		}
		return -y.At(i, 0)
	}, y2)
	for name, build := range map[string]func() (Model, error){
		"vgp": func() (Model, error) {
			return NewVGP(x, y2, testKernel(), likelihood.NewGaussian(noise), nil, 0)
		},
		"vgp_oa": func() (Model, error) {
			return NewVGPOpperArchambeau(x, y2, testKernel(), likelihood.NewGaussian(noise), nil, 0)
		},
	} {
		m, err := build()
		if err != nil {
			t.Fatalf("%s: constructor failed: %v", name, err)
		}
		elbo, err := m.ELBO()
		if err != nil {
			t.Fatalf("%s: ELBO failed: %v", name, err)
		}
		if math.IsNaN(elbo) || math.IsInf(elbo, 0) {
			t.Errorf("%s: ELBO = %v", name, elbo)
		}
		mean, variance, err := PredictY(m, mat.NewDense(3, 1, []float64{0, 1, 2}))
		if err != nil {
			t.Fatalf("%s: PredictY failed: %v", name, err)
		}
		if r, c := mean.Dims(); r != 3 || c != 2 {
			t.Errorf("%s: predictive mean is %dx%d, want 3x2", name, r, c)
		}
		for i := 0; i < 3; i++ {
			for j := 0; j < 2; j++ {
				if variance.At(i, j) < noise {
					t.Errorf("%s: predictive variance %v below the noise", name, variance.At(i, j))
				}
			}
		}
	}
}

func TestParameters(t *testing.T) {
	x, y := regressionData()
	se := kern.NewSquaredExponential(1, 1)
	// The same kernel twice contributes its parameters once.
	k := kern.NewSum(se, se)
	m, err := NewVGP(x, y, k, likelihood.NewGaussian(noise), nil, 0)
	if err != nil {
		t.Fatalf("NewVGP failed: %v", err)
	}
	// q_mu, q_sqrt, variance, lengthscales, noise.
	if got := len(m.Parameters()); got != 5 {
		t.Errorf("got %d parameters, want 5", got)
	}
}

// randomPosterior returns a q_mu and a lower-triangular q_sqrt with a
// positive diagonal.
func randomPosterior(src *rand.Rand, n int) (*mat.Dense, *mat.TriDense) {
	mu := mat.NewDense(n, 1, nil)
	sqrt := mat.NewTriDense(n, mat.Lower, nil)
	for i := 0; i < n; i++ {
		mu.Set(i, 0, src.NormFloat64())
		for j := 0; j < i; j++ {
			sqrt.SetTri(i, j, 0.3*src.NormFloat64())
		}
		sqrt.SetTri(i, i, 0.5+src.Float64())
	}
	return mu, sqrt
}

func TestSumOrder(t *testing.T) {
	x, y := regressionData()
	se := kern.NewSquaredExponential(1.2, 0.9)
	lin := kern.NewLinear(0.05)
	forward, backward := kern.NewSum(se, lin), kern.NewSum(lin, se)
	mu, sqrt := randomPosterior(rand.New(rand.NewSource(7)), 6)
	approx := cmpopts.EquateApprox(1e-12, 1e-12)

	elbos := make([]float64, 2)
	for i, k := range []kern.Kernel{forward, backward} {
		m, err := NewVGP(x, y, k, likelihood.NewGaussian(noise), nil, 0)
		if err != nil {
			t.Fatalf("NewVGP failed: %v", err)
		}
		if err := m.QMu.Set(mu); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := m.QSqrt.Set([]mat.Matrix{sqrt}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if elbos[i], err = m.ELBO(); err != nil {
			t.Fatalf("ELBO failed: %v", err)
		}
	}
	if diff := cmp.Diff(elbos[0], elbos[1], approx); diff != "" {
		t.Errorf("VGP ELBO depends on the order of the sum (-forward +backward):\n%s", diff)
	}

	lambda := mat.NewDense(6, 1, nil)
	lambda.Apply(func(i, _ int, _ float64) float64 { return 0.5 + 0.2*float64(i) }, lambda)
	for i, k := range []kern.Kernel{forward, backward} {
		m, err := NewVGPOpperArchambeau(x, y, k, likelihood.NewGaussian(noise), nil, 0)
		if err != nil {
			t.Fatalf("NewVGPOpperArchambeau failed: %v", err)
		}
		if err := m.QAlpha.Set(mu); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := m.QLambda.Set(lambda); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if elbos[i], err = m.ELBO(); err != nil {
			t.Fatalf("ELBO failed: %v", err)
		}
	}
	if diff := cmp.Diff(elbos[0], elbos[1], approx); diff != "" {
		t.Errorf("VGPOpperArchambeau ELBO depends on the order of the sum (-forward +backward):\n%s", diff)
	}
}

func TestKLNonNegative(t *testing.T) {
	x, y := regressionData()
	src := rand.New(rand.NewSource(11))
	m, err := NewVGP(x, y, testKernel(), likelihood.NewGaussian(noise), nil, 0)
	if err != nil {
		t.Fatalf("NewVGP failed: %v", err)
	}
	for trial := 0; trial < 5; trial++ {
		mu, sqrt := randomPosterior(src, 6)
		if err := m.QMu.Set(mu); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := m.QSqrt.Set([]mat.Matrix{sqrt}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		kl, err := m.KL()
		if err != nil {
			t.Fatalf("KL failed: %v", err)
		}
		if kl < 0 {
			t.Errorf("trial %d: KL = %v, want a non-negative value", trial, kl)
		}
	}
}

func TestErrors(t *testing.T) {
	x, y := regressionData()
	lik := likelihood.NewGaussian(noise)
	if _, err := NewVGP(x, mat.NewDense(5, 1, nil), testKernel(), lik, nil, 0); errors.Cause(err) != utils.ErrShapeMismatch {
		t.Errorf("got error %v, want %v", err, utils.ErrShapeMismatch)
	}
	if _, err := NewVGPOpperArchambeau(x, y, testKernel(), lik, meanfn.NewZero(2), 0); errors.Cause(err) != utils.ErrShapeMismatch {
		t.Errorf("got error %v, want %v", err, utils.ErrShapeMismatch)
	}
	if _, err := NewVGP(x, y, testKernel(), lik, nil, 2); errors.Cause(err) != utils.ErrShapeMismatch {
		t.Errorf("got error %v, want %v", err, utils.ErrShapeMismatch)
	}

	m, err := NewVGP(x, y, testKernel(), lik, nil, 0)
	if err != nil {
		t.Fatalf("NewVGP failed: %v", err)
	}
	if _, _, err := m.PredictF(mat.NewDense(2, 3, nil), false, false); errors.Cause(err) != utils.ErrShapeMismatch {
		t.Errorf("got error %v, want %v", err, utils.ErrShapeMismatch)
	}

	// A linear kernel on inputs at the origin has an all-zero covariance.
	degenerate, err := NewVGP(mat.NewDense(3, 1, nil), mat.NewDense(3, 1, nil), kern.NewLinear(1), lik, nil, 0)
	if err != nil {
		t.Fatalf("NewVGP failed: %v", err)
	}
	degenerate.Jitter = 0
	if _, err := degenerate.ELBO(); errors.Cause(err) != utils.ErrNotPositiveDefinite {
		t.Errorf("got error %v, want %v", err, utils.ErrNotPositiveDefinite)
	}

	bernoulli, err := NewVGP(x, y, testKernel(), likelihood.NewBernoulli(), nil, 0)
	if err != nil {
		t.Fatalf("NewVGP failed: %v", err)
	}
	if _, err := bernoulli.ELBO(); errors.Cause(err) != likelihood.ErrInvalidObservation {
		t.Errorf("got error %v, want %v", err, likelihood.ErrInvalidObservation)
	}
}

func TestPredictFUncertain(t *testing.T) {
	x, y := regressionData()
	m, err := NewVGP(x, y, testKernel(), likelihood.NewGaussian(noise), nil, 0)
	if err != nil {
		t.Fatalf("NewVGP failed: %v", err)
	}
	optimalVGP(t, m)
	xNew := mat.NewDense(4, 1, []float64{-3, -0.25, 1.1, 4})

	// Inputs without uncertainty give the usual predictions.
	certain, err := probdist.NewDiagonalGaussian(xNew, mat.NewDense(4, 1, nil))
	if err != nil {
		t.Fatalf("NewDiagonalGaussian failed: %v", err)
	}
	mean, variance, err := m.PredictFUncertain(certain)
	if err != nil {
		t.Fatalf("PredictFUncertain failed: %v", err)
	}
	wantMean, wantVar, err := m.PredictF(xNew, false, false)
	if err != nil {
		t.Fatalf("PredictF failed: %v", err)
	}
	if !mat.EqualApprox(mean, wantMean, 1e-6) {
		t.Errorf("mean %v, want %v", mat.Formatted(mean), mat.Formatted(wantMean))
	}
	if !mat.EqualApprox(variance, wantVar.Diag, 1e-6) {
		t.Errorf("variance %v, want %v", mat.Formatted(variance), mat.Formatted(wantVar.Diag))
	}

	// Input noise can only add to the predictive variance of a point far
	// from the data, where the posterior is close to flat.
	far := mat.NewDense(1, 1, []float64{8})
	noisy, err := probdist.NewDiagonalGaussian(far, mat.NewDense(1, 1, []float64{0.5}))
	if err != nil {
		t.Fatalf("NewDiagonalGaussian failed: %v", err)
	}
	_, noisyVar, err := m.PredictFUncertain(noisy)
	if err != nil {
		t.Fatalf("PredictFUncertain failed: %v", err)
	}
	_, farVar, err := m.PredictF(far, false, false)
	if err != nil {
		t.Fatalf("PredictF failed: %v", err)
	}
	if noisyVar.At(0, 0) < farVar.Diag.At(0, 0)-1e-6 {
		t.Errorf("variance with input noise %v, without %v", noisyVar.At(0, 0), farVar.Diag.At(0, 0))
	}

	withMean, err := NewVGP(x, y, testKernel(), likelihood.NewGaussian(noise), meanfn.NewConstant(1), 0)
	if err != nil {
		t.Fatalf("NewVGP failed: %v", err)
	}
	if _, _, err := withMean.PredictFUncertain(certain); errors.Cause(err) != expect.ErrUnsupportedExpectation {
		t.Errorf("got error %v, want %v", err, expect.ErrUnsupportedExpectation)
	}
}

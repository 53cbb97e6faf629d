package ssm

import (
	"testing"

	"github.com/lucasmaystre/govgp/expect"
	"github.com/lucasmaystre/govgp/inducing"
	"github.com/lucasmaystre/govgp/kern"
	"github.com/lucasmaystre/govgp/meanfn"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

var (
	ts = []float64{0.0, 0.4, 1.1, 1.2, 2.5, 3.0}
	ys = []float64{0.3, 0.5, -0.2, -0.1, 0.8, 1.0}
)

const noise = 0.2

// exactPosterior returns the posterior mean and covariance of f at ts by
// batch GP regression.
func exactPosterior(t *testing.T, k kern.Kernel) (*mat.VecDense, *mat.Dense) {
	t.Helper()
	n := len(ts)
	x := mat.NewDense(n, 1, ts)
	kxx := k.K(x, nil)
	a := mat.DenseCopyOf(kxx)
	for i := 0; i < n; i++ {
		a.Set(i, i, a.At(i, i)+noise)
	}
	var sol mat.Dense
	if err := sol.Solve(a, kxx); err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	// mean = K (K + noise I)^-1 y, cov = K - K (K + noise I)^-1 K
	var mean mat.VecDense
	mean.MulVec(sol.T(), mat.NewVecDense(n, ys))
	var cov mat.Dense
	cov.Mul(kxx, &sol)
	cov.Sub(kxx, &cov)
	return &mean, &cov
}

func fit(t *testing.T, k kern.Kernel) *Smoother {
	t.Helper()
	ss, err := kern.AsStateSpace(k)
	if err != nil {
		t.Fatalf("AsStateSpace failed: %v", err)
	}
	s := NewSmoother(ss)
	for i, t0 := range ts {
		if err := s.AddObservation(t0, ys[i], noise); err != nil {
			t.Fatalf("AddObservation failed: %v", err)
		}
	}
	if err := s.Fit(); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	return s
}

func TestMatchesBatchRegression(t *testing.T) {
	for _, k := range []kern.Kernel{
		kern.NewMatern12(1.5, 0.8),
		kern.NewMatern32(0.7, 1.3),
		kern.NewSum(kern.NewMatern32(1.0, 0.5), kern.NewConstant(0.4)),
	} {
		s := fit(t, k)
		wantMean, wantCov := exactPosterior(t, k)
		ms, vs := s.Marginals()
		for i := range ts {
			if !scalar.EqualWithinAbs(ms[i], wantMean.AtVec(i), 1e-8) {
				t.Errorf("%T: mean at t=%v is %v, want %v", k, ts[i], ms[i], wantMean.AtVec(i))
			}
			if !scalar.EqualWithinAbs(vs[i], wantCov.At(i, i), 1e-8) {
				t.Errorf("%T: variance at t=%v is %v, want %v", k, ts[i], vs[i], wantCov.At(i, i))
			}
		}
	}
}

func TestChain(t *testing.T) {
	k := kern.NewMatern12(1.5, 0.8)
	s := fit(t, k)
	chain, err := s.Chain()
	if err != nil {
		t.Fatalf("Chain failed: %v", err)
	}
	if chain.Len() != len(ts)-1 || chain.Dim() != 1 {
		t.Fatalf("chain has %d pairs of dimension %d", chain.Len(), chain.Dim())
	}
	// The state of a Matern12 process is the function itself.
	_, wantCov := exactPosterior(t, k)
	for i := 0; i+1 < len(ts); i++ {
		if got := chain.CrossCov(i).At(0, 0); !scalar.EqualWithinAbs(got, wantCov.At(i, i+1), 1e-8) {
			t.Errorf("Cov(f_%d, f_%d) = %v, want %v", i, i+1, got, wantCov.At(i, i+1))
		}
	}

	// The chain is a valid input distribution for expectations.
	z := inducing.NewPoints(mat.NewDense(2, 1, []float64{0.5, 2.0}))
	res, err := expect.Expectation(chain, expect.Op(meanfn.NewIdentity()), expect.OpZ(kern.NewSquaredExponential(1, 1), z))
	if err != nil {
		t.Fatalf("Expectation failed: %v", err)
	}
	if shape := res.Shape(); shape[0] != len(ts)-1 || shape[1] != 1 || shape[2] != 2 {
		t.Errorf("expectation has shape %v", shape)
	}
}

func TestErrors(t *testing.T) {
	s := NewSmoother(kern.NewMatern32(1, 1))
	if err := s.AddObservation(1.0, 0.0, 1.0); err != nil {
		t.Fatalf("AddObservation failed: %v", err)
	}
	if err := s.AddObservation(0.5, 0.0, 1.0); errors.Cause(err) != ErrNotChronological {
		t.Errorf("got error %v, want %v", err, ErrNotChronological)
	}
	if s.Len() != 1 {
		t.Errorf("rejected sample was stored")
	}
	if _, err := kern.AsStateSpace(kern.NewSum(kern.NewMatern12(1, 1), kern.NewSquaredExponential(1, 1))); errors.Cause(err) != kern.ErrNoStateSpace {
		t.Errorf("got error %v, want %v", err, kern.ErrNoStateSpace)
	}
}

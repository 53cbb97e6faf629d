package conditional

import (
	"testing"

	"github.com/lucasmaystre/govgp/kern"
	"github.com/lucasmaystre/govgp/utils"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	x    = mat.NewDense(4, 1, []float64{-1.0, 0.0, 0.5, 2.0})
	xNew = mat.NewDense(3, 1, []float64{-0.5, 0.5, 3.0})
)

func TestWhitenedMatchesPlain(t *testing.T) {
	k := kern.NewSum(kern.NewSquaredExponential(1.0, 0.8), kern.NewLinear(0.2))
	v := mat.NewDense(4, 2, []float64{0.5, -1, 1, 0, -0.3, 0.2, 0.8, 1.5})
	sv := []*mat.TriDense{
		mat.NewTriDense(4, mat.Lower, []float64{1, 0, 0, 0, 0.1, 0.5, 0, 0, 0, 0.2, 0.7, 0, 0.3, 0, 0.1, 0.4}),
		mat.NewTriDense(4, mat.Lower, []float64{0.2, 0, 0, 0, 0, 0.2, 0, 0, 0, 0, 0.2, 0, 0, 0, 0, 0.2}),
	}
	kxx := k.K(x, nil)
	utils.AddJitter(kxx, utils.DefaultJitter)
	l, err := utils.Cholesky(kxx, "K")
	if err != nil {
		t.Fatalf("Cholesky failed: %v", err)
	}
	// f = L v, S = (L Sv)(L Sv)^T
	var f mat.Dense
	f.Mul(l, v)
	s := make([]*mat.TriDense, len(sv))
	for i, lv := range sv {
		s[i] = mat.NewTriDense(4, mat.Lower, nil)
		s[i].MulTri(l, lv)
	}

	for _, full := range []bool{false, true} {
		wMean, wVar, err := Conditional(xNew, x, k, v, sv, full, true, utils.DefaultJitter)
		if err != nil {
			t.Fatalf("whitened conditional failed: %v", err)
		}
		pMean, pVar, err := Conditional(xNew, x, k, &f, s, full, false, utils.DefaultJitter)
		if err != nil {
			t.Fatalf("plain conditional failed: %v", err)
		}
		if !mat.EqualApprox(wMean, pMean, 1e-8) {
			t.Errorf("full=%v: means %v and %v differ", full, mat.Formatted(wMean), mat.Formatted(pMean))
		}
		if full {
			for l := range wVar.Full {
				if !mat.EqualApprox(wVar.Full[l], pVar.Full[l], 1e-8) {
					t.Errorf("covariances of latent %d differ", l)
				}
			}
		} else if !mat.EqualApprox(wVar.Diag, pVar.Diag, 1e-8) {
			t.Errorf("variances %v and %v differ", mat.Formatted(wVar.Diag), mat.Formatted(pVar.Diag))
		}
	}
}

func TestDiagMatchesFull(t *testing.T) {
	k := kern.NewMatern32(1.3, 0.6)
	f := mat.NewDense(4, 1, []float64{0.1, 0.2, -0.4, 1.0})
	sqrt := []*mat.TriDense{mat.NewTriDense(4, mat.Lower, []float64{
		0.5, 0, 0, 0,
		0.1, 0.5, 0, 0,
		0, 0.1, 0.5, 0,
		0, 0, 0.1, 0.5,
	})}
	_, diag, err := Conditional(xNew, x, k, f, sqrt, false, true, utils.DefaultJitter)
	if err != nil {
		t.Fatalf("Conditional failed: %v", err)
	}
	_, full, err := Conditional(xNew, x, k, f, sqrt, true, true, utils.DefaultJitter)
	if err != nil {
		t.Fatalf("Conditional failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if d, c := diag.Diag.At(i, 0), full.Full[0].At(i, i); d-c > 1e-10 || c-d > 1e-10 {
			t.Errorf("variance %d: diag %v, full %v", i, d, c)
		}
	}
}

func TestNoiselessInterpolation(t *testing.T) {
	k := kern.NewSquaredExponential(1.0, 1.0)
	f := mat.NewDense(4, 1, []float64{0.3, -0.2, 0.5, 1.0})
	mean, variance, err := Conditional(x, x, k, f, nil, false, false, 1e-10)
	if err != nil {
		t.Fatalf("Conditional failed: %v", err)
	}
	if !mat.EqualApprox(mean, f, 1e-5) {
		t.Errorf("mean at training inputs %v, want %v", mat.Formatted(mean), mat.Formatted(f))
	}
	for i := 0; i < 4; i++ {
		if v := variance.Diag.At(i, 0); v > 1e-6 || v < -1e-6 {
			t.Errorf("variance at training input %d is %v, want 0", i, v)
		}
	}
}

func TestShapes(t *testing.T) {
	k := kern.NewSquaredExponential(1.0, 1.0)
	f := mat.NewDense(4, 1, nil)
	cases := map[string]func() error{
		"input dimension": func() error {
			_, _, err := Conditional(mat.NewDense(2, 2, nil), x, k, f, nil, false, false, 1e-6)
			return err
		},
		"function values": func() error {
			_, _, err := Conditional(xNew, x, k, mat.NewDense(3, 1, nil), nil, false, false, 1e-6)
			return err
		},
		"factor count": func() error {
			sqrt := []*mat.TriDense{mat.NewTriDense(4, mat.Lower, nil), mat.NewTriDense(4, mat.Lower, nil)}
			_, _, err := Conditional(xNew, x, k, f, sqrt, false, false, 1e-6)
			return err
		},
		"factor size": func() error {
			_, _, err := Conditional(xNew, x, k, f, []*mat.TriDense{mat.NewTriDense(3, mat.Lower, nil)}, false, false, 1e-6)
			return err
		},
	}
	for name, fn := range cases {
		if err := fn(); errors.Cause(err) != utils.ErrShapeMismatch {
			t.Errorf("%s: got error %v, want %v", name, err, utils.ErrShapeMismatch)
		}
	}
}

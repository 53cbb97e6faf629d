package utils

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotPositiveDefinite = errors.New("matrix is not positive definite")
	ErrSingular            = errors.New("matrix is singular")
	ErrShapeMismatch       = errors.New("shape mismatch")
)

// DefaultJitter is added to the diagonal of covariance matrices before they
// are factorized.
var DefaultJitter = 1e-6

// AddJitter adds jitter to the diagonal of the square matrix a, in place.
func AddJitter(a *mat.Dense, jitter float64) {
	n, _ := a.Dims()
	for i := 0; i < n; i++ {
		a.Set(i, i, a.At(i, i)+jitter)
	}
}

// Cholesky returns the lower-triangular factor L such that a = L L^T. Only the
// lower triangle of a is read. The name identifies the matrix in errors.
func Cholesky(a mat.Matrix, name string) (*mat.TriDense, error) {
	n, c := a.Dims()
	if n != c {
		return nil, errors.Wrapf(ErrShapeMismatch, "cholesky of %s: %dx%d is not square", name, n, c)
	}
	sym := blas64.Symmetric{
		N:      n,
		Stride: n,
		Data:   make([]float64, n*n),
		Uplo:   blas.Lower,
	}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sym.Data[i*n+j] = a.At(i, j)
		}
	}
	// L = cholesky(a) (lower triangular)
	t, ok := lapack64.Potrf(sym)
	if !ok {
		return nil, errors.Wrapf(ErrNotPositiveDefinite, "cholesky of %s (%dx%d)", name, n, n)
	}
	l := mat.NewTriDense(n, mat.Lower, nil)
	l.SetRawTriangular(t)
	return l, nil
}

// SolveTriangular returns L^-1 b, or L^-T b if trans is set.
func SolveTriangular(l *mat.TriDense, b mat.Matrix, trans bool) (*mat.Dense, error) {
	n, _ := l.Dims()
	r, _ := b.Dims()
	if r != n {
		return nil, errors.Wrapf(ErrShapeMismatch, "triangular solve: factor is %dx%d, rhs has %d rows", n, n, r)
	}
	x := mat.DenseCopyOf(b)
	op := blas.NoTrans
	if trans {
		op = blas.Trans
	}
	if ok := lapack64.Trtrs(op, l.RawTriangular(), x.RawMatrix()); !ok {
		return nil, errors.Wrapf(ErrSingular, "triangular solve with %dx%d factor", n, n)
	}
	return x, nil
}

// LogDetChol returns log|A| given the Cholesky factor of A.
func LogDetChol(l *mat.TriDense) float64 {
	n, _ := l.Dims()
	res := 0.0
	for i := 0; i < n; i++ {
		res += math.Log(l.At(i, i))
	}
	return 2 * res
}

// LowerBand keeps the lower triangle (diagonal included) of a square matrix.
func LowerBand(a mat.Matrix) *mat.TriDense {
	n, _ := a.Dims()
	out := mat.NewTriDense(n, mat.Lower, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			out.SetTri(i, j, a.At(i, j))
		}
	}
	return out
}

// CheckRows fails unless a and b have the same number of rows.
func CheckRows(nameA string, a mat.Matrix, nameB string, b mat.Matrix) error {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra != rb {
		return errors.Wrapf(ErrShapeMismatch, "%s is %dx%d but %s is %dx%d", nameA, ra, ca, nameB, rb, cb)
	}
	return nil
}

// CheckCols fails unless a and b have the same number of columns.
func CheckCols(nameA string, a mat.Matrix, nameB string, b mat.Matrix) error {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ca != cb {
		return errors.Wrapf(ErrShapeMismatch, "%s is %dx%d but %s is %dx%d", nameA, ra, ca, nameB, rb, cb)
	}
	return nil
}

package utils

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Concatenate multiple vectors.
func ConcatVecs(size int, vecs ...*mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(size, nil)
	offset := 0
	var slice *mat.VecDense
	for _, vec := range vecs {
		slice = out.SliceVec(offset, size).(*mat.VecDense)
		slice.CopyVec(vec)
		offset += vec.Len()
	}
	return out
}

// Make a block diagonal matrix.
func BlockDiag(size int, mats ...mat.Matrix) *mat.Dense {
	out := mat.NewDense(size, size, nil)
	offset := 0
	var r int
	var slice mat.Matrix
	for _, matrix := range mats {
		slice = out.Slice(offset, size, offset, size)
		slice.(*mat.Dense).Copy(matrix)
		r, _ = matrix.Dims()
		offset += r
	}
	return out
}

// Identity Matrix.
func Eye(n int) *mat.Dense {
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, 1)
	}
	return out
}

// Column j of m as a fresh vector.
func Col(m mat.Matrix, j int) *mat.VecDense {
	r, _ := m.Dims()
	out := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		out.SetVec(i, m.At(i, j))
	}
	return out
}

// Probability density function of the standard normal distribution.
func NormalPdf(x float64) float64 {
	return math.Exp(-0.5*x*x) / (math.Sqrt2 * math.SqrtPi)
}

// Cumulative density function of the standard normal distribution.
func NormalCdf(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

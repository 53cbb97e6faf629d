package param

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var _ Parameter = (*Triangular)(nil)

// Triangular is a stack of lower-triangular n×n matrices. Only the lower
// triangles are stored, so an upper entry can never become non-zero.
type Triangular struct {
	n     int
	count int
	data  []float64 // Packed lower triangles, row by row.
}

// NewTriangularEye returns a stack of count n×n identity matrices.
func NewTriangularEye(count, n int) *Triangular {
	p := &Triangular{
		n:     n,
		count: count,
		data:  make([]float64, count*packedLen(n)),
	}
	for l := 0; l < count; l++ {
		for i := 0; i < n; i++ {
			p.data[p.index(l, i, i)] = 1.0
		}
	}
	return p
}

func packedLen(n int) int {
	return n * (n + 1) / 2
}

func (p *Triangular) index(l, i, j int) int {
	return l*packedLen(p.n) + i*(i+1)/2 + j
}

// Dims returns the number of matrices and their size.
func (p *Triangular) Dims() (count, n int) {
	return p.count, p.n
}

// At returns a copy of the l-th factor.
func (p *Triangular) At(l int) *mat.TriDense {
	out := mat.NewTriDense(p.n, mat.Lower, nil)
	for i := 0; i < p.n; i++ {
		for j := 0; j <= i; j++ {
			out.SetTri(i, j, p.data[p.index(l, i, j)])
		}
	}
	return out
}

// Value returns copies of all the factors.
func (p *Triangular) Value() []*mat.TriDense {
	out := make([]*mat.TriDense, p.count)
	for l := range out {
		out[l] = p.At(l)
	}
	return out
}

// Set stores the matrices ms. Nothing is modified unless every matrix is
// n×n with zeros above the diagonal.
func (p *Triangular) Set(ms []mat.Matrix) error {
	if len(ms) != p.count {
		return errors.Wrapf(ErrConstraintViolation, "triangular parameter holds %d matrices, got %d", p.count, len(ms))
	}
	for l, m := range ms {
		r, c := m.Dims()
		if r != p.n || c != p.n {
			return errors.Wrapf(ErrConstraintViolation, "matrix %d is %dx%d, want %dx%d", l, r, c, p.n, p.n)
		}
		for i := 0; i < p.n; i++ {
			for j := i + 1; j < p.n; j++ {
				if m.At(i, j) != 0 {
					return errors.Wrapf(ErrConstraintViolation, "matrix %d has non-zero entry (%d, %d) above the diagonal", l, i, j)
				}
			}
		}
	}
	for l, m := range ms {
		for i := 0; i < p.n; i++ {
			for j := 0; j <= i; j++ {
				p.data[p.index(l, i, j)] = m.At(i, j)
			}
		}
	}
	return nil
}

func (p *Triangular) Size() int {
	return len(p.data)
}

func (p *Triangular) Unconstrained() []float64 {
	return append([]float64(nil), p.data...)
}

func (p *Triangular) SetUnconstrained(x []float64) {
	checkLen(p, x)
	copy(p.data, x)
}

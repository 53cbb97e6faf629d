package param

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var _ Parameter = (*Positive)(nil)

// PositiveLowerBound is added to the softplus of the unconstrained value.
var PositiveLowerBound = 0.0

// Positive is a matrix-valued parameter with strictly positive entries,
// obtained as softplus(u) + PositiveLowerBound.
type Positive struct {
	rows, cols int
	u          []float64
	lower      float64
}

// NewPositive returns an r×c positive parameter. It fails with
// ErrConstraintViolation if an entry of data is not above the lower bound.
func NewPositive(r, c int, data []float64) (*Positive, error) {
	if len(data) != r*c {
		panic("param: length mismatch")
	}
	p := &Positive{
		rows:  r,
		cols:  c,
		u:     make([]float64, r*c),
		lower: PositiveLowerBound,
	}
	if err := p.Set(mat.NewDense(r, c, data)); err != nil {
		return nil, err
	}
	return p, nil
}

// MustPositive is NewPositive for literal values; it panics on violation.
func MustPositive(values ...float64) *Positive {
	p, err := NewPositive(1, len(values), values)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Positive) Dims() (r, c int) {
	return p.rows, p.cols
}

func (p *Positive) Value() *mat.Dense {
	out := mat.NewDense(p.rows, p.cols, nil)
	data := out.RawMatrix().Data
	for i, u := range p.u {
		data[i] = softplus(u) + p.lower
	}
	return out
}

// Values returns the entries in row-major order.
func (p *Positive) Values() []float64 {
	return p.Value().RawMatrix().Data
}

// Float returns the first entry, for scalar parameters.
func (p *Positive) Float() float64 {
	return softplus(p.u[0]) + p.lower
}

// Set stores v. Nothing is modified if an entry of v violates the bound.
func (p *Positive) Set(v mat.Matrix) error {
	r, c := v.Dims()
	if r != p.rows || c != p.cols {
		return errors.Wrapf(ErrConstraintViolation, "positive parameter is %dx%d, got %dx%d", p.rows, p.cols, r, c)
	}
	u := make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			x := v.At(i, j) - p.lower
			if !(x > 0) || math.IsInf(x, 1) {
				return errors.Wrapf(ErrConstraintViolation, "entry (%d, %d) = %g is not above %g", i, j, v.At(i, j), p.lower)
			}
			u[i*c+j] = softplusInv(x)
		}
	}
	copy(p.u, u)
	return nil
}

func (p *Positive) Size() int {
	return len(p.u)
}

func (p *Positive) Unconstrained() []float64 {
	return append([]float64(nil), p.u...)
}

func (p *Positive) SetUnconstrained(x []float64) {
	checkLen(p, x)
	copy(p.u, x)
}

func softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

func softplusInv(y float64) float64 {
	if y > 30 {
		return y
	}
	return y + math.Log(-math.Expm1(-y))
}

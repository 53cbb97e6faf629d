package param

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var _ Parameter = (*Dense)(nil)

// Dense is an unconstrained matrix-valued parameter.
type Dense struct {
	value *mat.Dense
}

func NewDense(r, c int, data []float64) *Dense {
	return &Dense{value: mat.NewDense(r, c, data)}
}

func (p *Dense) Dims() (r, c int) {
	return p.value.Dims()
}

// Value returns a copy of the parameter.
func (p *Dense) Value() *mat.Dense {
	return mat.DenseCopyOf(p.value)
}

func (p *Dense) Set(v mat.Matrix) error {
	if err := checkDims(p.value, v); err != nil {
		return err
	}
	p.value.Copy(v)
	return nil
}

func (p *Dense) Size() int {
	r, c := p.value.Dims()
	return r * c
}

func (p *Dense) Unconstrained() []float64 {
	return append([]float64(nil), p.value.RawMatrix().Data...)
}

func (p *Dense) SetUnconstrained(x []float64) {
	checkLen(p, x)
	copy(p.value.RawMatrix().Data, x)
}

func checkDims(dst *mat.Dense, v mat.Matrix) error {
	r, c := dst.Dims()
	vr, vc := v.Dims()
	if r != vr || c != vc {
		return errors.Wrapf(ErrConstraintViolation, "parameter is %dx%d, got %dx%d", r, c, vr, vc)
	}
	return nil
}

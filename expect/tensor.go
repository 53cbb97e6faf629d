package expect

import (
	"github.com/lucasmaystre/govgp/utils"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// Tensor holds the value of an expectation. Its shape is N for diagonal
// expectations, N×M for cross-covariances and N×P×M for products.
type Tensor struct {
	dense *tensor.Dense
}

func newTensor(data []float64, shape ...int) *Tensor {
	return &Tensor{
		dense: tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data)),
	}
}

func (t *Tensor) Shape() []int {
	return []int(t.dense.Shape().Clone())
}

// Data returns the entries in row-major order.
func (t *Tensor) Data() []float64 {
	return t.dense.Float64s()
}

func (t *Tensor) At(idx ...int) float64 {
	shape := t.dense.Shape()
	if len(idx) != len(shape) {
		panic("expect: index rank mismatch")
	}
	offset := 0
	for i, k := range idx {
		if k < 0 || k >= shape[i] {
			panic("expect: index out of range")
		}
		offset = offset*shape[i] + k
	}
	return t.Data()[offset]
}

// Add returns the elementwise sum of t and o.
func (t *Tensor) Add(o *Tensor) (*Tensor, error) {
	if !t.dense.Shape().Eq(o.dense.Shape()) {
		return nil, errors.Wrapf(utils.ErrShapeMismatch, "adding expectations of shape %v and %v",
			t.dense.Shape(), o.dense.Shape())
	}
	sum, err := t.dense.Add(o.dense)
	if err != nil {
		return nil, errors.Wrap(err, "adding expectations")
	}
	return &Tensor{dense: sum}, nil
}

// Adjoint transposes the last two axes of an N×P×M tensor.
func (t *Tensor) Adjoint() (*Tensor, error) {
	if t.dense.Dims() != 3 {
		return nil, errors.Wrapf(utils.ErrShapeMismatch, "adjoint of expectation of shape %v", t.dense.Shape())
	}
	c := t.dense.Clone().(*tensor.Dense)
	if err := c.T(0, 2, 1); err != nil {
		return nil, errors.Wrap(err, "adjoint")
	}
	if err := c.Transpose(); err != nil {
		return nil, errors.Wrap(err, "adjoint")
	}
	return &Tensor{dense: c}, nil
}

// Vec copies a tensor of shape N.
func (t *Tensor) Vec() *mat.VecDense {
	return mat.NewVecDense(t.Shape()[0], append([]float64(nil), t.Data()...))
}

// Mat copies a tensor of shape N×M.
func (t *Tensor) Mat() *mat.Dense {
	shape := t.Shape()
	return mat.NewDense(shape[0], shape[1], append([]float64(nil), t.Data()...))
}

// Slab copies the n-th P×M matrix of an N×P×M tensor.
func (t *Tensor) Slab(n int) *mat.Dense {
	shape := t.Shape()
	size := shape[1] * shape[2]
	return mat.NewDense(shape[1], shape[2], append([]float64(nil), t.Data()[n*size:(n+1)*size]...))
}

// sumAll adds the tensors in order.
func sumAll(ts []*Tensor) (*Tensor, error) {
	acc := ts[0]
	for _, t := range ts[1:] {
		var err error
		if acc, err = acc.Add(t); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

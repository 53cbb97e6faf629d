// Package meanfn holds GP mean functions.
package meanfn

import (
	"github.com/lucasmaystre/govgp/param"
	"gonum.org/v1/gonum/mat"
)

var (
	_ Function = (*Zero)(nil)
	_ Function = (*Identity)(nil)
	_ Function = (*Linear)(nil)
	_ Function = (*Constant)(nil)
)

type Function interface {
	// Mean at each row of x, one column per output.
	Evaluate(x mat.Matrix) *mat.Dense

	Parameters() []param.Parameter
}

// Zero mean with a fixed number of outputs.
type Zero struct {
	outputDim int
}

func NewZero(outputDim int) *Zero {
	return &Zero{outputDim: outputDim}
}

func (m *Zero) Evaluate(x mat.Matrix) *mat.Dense {
	n, _ := x.Dims()
	return mat.NewDense(n, m.outputDim, nil)
}

func (m *Zero) Parameters() []param.Parameter {
	return nil
}

// Identity mean, m(x) = x.
type Identity struct{}

func NewIdentity() *Identity {
	return &Identity{}
}

func (m *Identity) Evaluate(x mat.Matrix) *mat.Dense {
	return mat.DenseCopyOf(x)
}

func (m *Identity) Parameters() []param.Parameter {
	return nil
}

// Linear mean, m(x) = x A + b with A of size D×Q and b of size Q.
type Linear struct {
	A *param.Dense
	B *param.Dense
}

func NewLinear(a *mat.Dense, b []float64) *Linear {
	d, q := a.Dims()
	if len(b) != q {
		panic("meanfn: bias length mismatch")
	}
	return &Linear{
		A: param.NewDense(d, q, mat.DenseCopyOf(a).RawMatrix().Data),
		B: param.NewDense(1, q, append([]float64(nil), b...)),
	}
}

func (m *Linear) Evaluate(x mat.Matrix) *mat.Dense {
	n, _ := x.Dims()
	_, q := m.A.Dims()
	out := mat.NewDense(n, q, nil)
	out.Mul(x, m.A.Value())
	b := m.B.Value()
	for i := 0; i < n; i++ {
		for j := 0; j < q; j++ {
			out.Set(i, j, out.At(i, j)+b.At(0, j))
		}
	}
	return out
}

func (m *Linear) Parameters() []param.Parameter {
	return []param.Parameter{m.A, m.B}
}

// Constant mean, m(x) = c.
type Constant struct {
	C *param.Dense
}

func NewConstant(c ...float64) *Constant {
	return &Constant{
		C: param.NewDense(1, len(c), append([]float64(nil), c...)),
	}
}

func (m *Constant) Evaluate(x mat.Matrix) *mat.Dense {
	n, _ := x.Dims()
	_, q := m.C.Dims()
	out := mat.NewDense(n, q, nil)
	c := m.C.Value()
	for i := 0; i < n; i++ {
		out.SetRow(i, c.RawRowView(0))
	}
	return out
}

func (m *Constant) Parameters() []param.Parameter {
	return []param.Parameter{m.C}
}

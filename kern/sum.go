package kern

import (
	"github.com/lucasmaystre/govgp/param"
	"gonum.org/v1/gonum/mat"
)

var (
	sum *Sum
	_   Kernel = sum // Check that Sum respects the Kernel interface.
)

// Sum of kernels. Children are kept in the order they were given, nested sums
// being flattened in place.
type Sum struct {
	parts []Kernel
}

func NewSum(first Kernel, rest ...Kernel) *Sum {
	parts := make([]Kernel, 0, 1+len(rest))
	for _, k := range append([]Kernel{first}, rest...) {
		switch k := k.(type) {
		case *Sum:
			parts = append(parts, k.parts...)
		default:
			parts = append(parts, k)
		}
	}
	return &Sum{
		parts: parts,
	}
}

// Children returns the kernels being summed, in order.
func (k *Sum) Children() []Kernel {
	return k.parts
}

func (k *Sum) K(x, x2 mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(k.parts[0].K(x, x2))
	for _, part := range k.parts[1:] {
		out.Add(out, part.K(x, x2))
	}
	return out
}

func (k *Sum) KDiag(x mat.Matrix) *mat.VecDense {
	out := mat.VecDenseCopyOf(k.parts[0].KDiag(x))
	for _, part := range k.parts[1:] {
		out.AddVec(out, part.KDiag(x))
	}
	return out
}

func (k *Sum) Parameters() []param.Parameter {
	var params []param.Parameter
	seen := make(map[param.Parameter]bool)
	for _, part := range k.parts {
		for _, p := range part.Parameters() {
			if !seen[p] {
				seen[p] = true
				params = append(params, p)
			}
		}
	}
	return params
}

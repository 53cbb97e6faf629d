// Package param holds model parameters. Every parameter stores an
// unconstrained backing vector which an optimizer may move freely; the
// constrained value is only ever derived from it through a transform.
package param

import (
	"github.com/pkg/errors"
)

var ErrConstraintViolation = errors.New("value violates parameter constraint")

type Parameter interface {
	// Number of unconstrained values.
	Size() int

	// Copy of the unconstrained values.
	Unconstrained() []float64

	// Overwrite the unconstrained values. Any vector of the right length
	// maps to a valid constrained value.
	SetUnconstrained(x []float64)
}

// Flatten concatenates the unconstrained values of ps.
func Flatten(ps []Parameter) []float64 {
	n := 0
	for _, p := range ps {
		n += p.Size()
	}
	out := make([]float64, 0, n)
	for _, p := range ps {
		out = append(out, p.Unconstrained()...)
	}
	return out
}

// Unflatten is the inverse of Flatten.
func Unflatten(ps []Parameter, x []float64) {
	offset := 0
	for _, p := range ps {
		p.SetUnconstrained(x[offset : offset+p.Size()])
		offset += p.Size()
	}
	if offset != len(x) {
		panic("param: length mismatch")
	}
}

func checkLen(p Parameter, x []float64) {
	if len(x) != p.Size() {
		panic("param: length mismatch")
	}
}

// Package inducing holds inducing variables. Two inducing variables are the
// same only if they are the same *Points.
package inducing

import (
	"gonum.org/v1/gonum/mat"
)

// Points is a fixed set of M inducing input locations.
type Points struct {
	Z *mat.Dense
}

func NewPoints(z *mat.Dense) *Points {
	return &Points{Z: z}
}

// Len returns the number of inducing points M.
func (p *Points) Len() int {
	m, _ := p.Z.Dims()
	return m
}

// Dim returns the input dimension D.
func (p *Points) Dim() int {
	_, d := p.Z.Dims()
	return d
}

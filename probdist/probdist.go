// Package probdist holds distributions over a sequence of latent inputs.
package probdist

import (
	"github.com/lucasmaystre/govgp/utils"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

var (
	_ Distribution = (*Gaussian)(nil)
	_ Distribution = (*DiagonalGaussian)(nil)
	_ Distribution = (*MarkovGaussian)(nil)
)

// Distribution over N input vectors of dimension D.
type Distribution interface {
	// Number of inputs N.
	Len() int

	// Input dimension D.
	Dim() int

	// Mean and covariance of the n-th input.
	Marginal(n int) (mean []float64, cov *mat.SymDense)
}

// Gaussian has an independent full D×D covariance per input.
type Gaussian struct {
	Mu  *mat.Dense
	Cov []*mat.SymDense
}

func NewGaussian(mu *mat.Dense, cov []*mat.SymDense) (*Gaussian, error) {
	n, d := mu.Dims()
	if len(cov) != n {
		return nil, errors.Wrapf(utils.ErrShapeMismatch, "gaussian: mean has %d rows, %d covariances given", n, len(cov))
	}
	for i, c := range cov {
		if c.SymmetricDim() != d {
			return nil, errors.Wrapf(utils.ErrShapeMismatch, "gaussian: covariance %d is %dx%d, want %dx%d",
				i, c.SymmetricDim(), c.SymmetricDim(), d, d)
		}
	}
	return &Gaussian{Mu: mu, Cov: cov}, nil
}

func (p *Gaussian) Len() int {
	n, _ := p.Mu.Dims()
	return n
}

func (p *Gaussian) Dim() int {
	_, d := p.Mu.Dims()
	return d
}

func (p *Gaussian) Marginal(n int) ([]float64, *mat.SymDense) {
	return mat.Row(nil, n, p.Mu), p.Cov[n]
}

// Sample draws one realisation of every input.
func (p *Gaussian) Sample(src rand.Source) (*mat.Dense, error) {
	out := mat.NewDense(p.Len(), p.Dim(), nil)
	for n := 0; n < p.Len(); n++ {
		mean, cov := p.Marginal(n)
		normal, ok := distmv.NewNormal(mean, cov, src)
		if !ok {
			return nil, errors.Wrapf(utils.ErrNotPositiveDefinite, "covariance of input %d", n)
		}
		out.SetRow(n, normal.Rand(nil))
	}
	return out, nil
}

// DiagonalGaussian has a factorized covariance per input.
type DiagonalGaussian struct {
	Mu  *mat.Dense
	Var *mat.Dense
}

func NewDiagonalGaussian(mu, variance *mat.Dense) (*DiagonalGaussian, error) {
	nm, dm := mu.Dims()
	nv, dv := variance.Dims()
	if nm != nv || dm != dv {
		return nil, errors.Wrapf(utils.ErrShapeMismatch, "diagonal gaussian: mean is %dx%d, variance is %dx%d", nm, dm, nv, dv)
	}
	return &DiagonalGaussian{Mu: mu, Var: variance}, nil
}

func (p *DiagonalGaussian) Len() int {
	n, _ := p.Mu.Dims()
	return n
}

func (p *DiagonalGaussian) Dim() int {
	_, d := p.Mu.Dims()
	return d
}

func (p *DiagonalGaussian) Marginal(n int) ([]float64, *mat.SymDense) {
	d := p.Dim()
	cov := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		cov.SetSym(i, i, p.Var.At(n, i))
	}
	return mat.Row(nil, n, p.Mu), cov
}

// AsGaussian expands the diagonal covariances.
func (p *DiagonalGaussian) AsGaussian() *Gaussian {
	cov := make([]*mat.SymDense, p.Len())
	for n := range cov {
		_, cov[n] = p.Marginal(n)
	}
	return &Gaussian{Mu: p.Mu, Cov: cov}
}

// MarkovGaussian is a Gaussian over a chain x_0, ..., x_N. Cov[0][n] is the
// covariance of x_n and Cov[1][n] the cross-covariance of x_n and x_{n+1}.
// Len is N, the number of consecutive pairs.
type MarkovGaussian struct {
	Mu  *mat.Dense
	Cov [2][]*mat.Dense
}

func NewMarkovGaussian(mu *mat.Dense, marginal, cross []*mat.Dense) (*MarkovGaussian, error) {
	n, d := mu.Dims()
	if len(marginal) != n || len(cross) < n-1 {
		return nil, errors.Wrapf(utils.ErrShapeMismatch,
			"markov gaussian: %d states, %d marginal and %d cross covariances", n, len(marginal), len(cross))
	}
	for i := 0; i < n; i++ {
		for k, c := range [][]*mat.Dense{marginal, cross} {
			if k == 1 && i >= len(cross) {
				continue
			}
			r, cc := c[i].Dims()
			if r != d || cc != d {
				return nil, errors.Wrapf(utils.ErrShapeMismatch, "markov gaussian: covariance [%d][%d] is %dx%d, want %dx%d",
					k, i, r, cc, d, d)
			}
		}
	}
	return &MarkovGaussian{Mu: mu, Cov: [2][]*mat.Dense{marginal, cross}}, nil
}

func (p *MarkovGaussian) Len() int {
	n, _ := p.Mu.Dims()
	return n - 1
}

func (p *MarkovGaussian) Dim() int {
	_, d := p.Mu.Dims()
	return d
}

// Marginal of x_n for n in [0, N].
func (p *MarkovGaussian) Marginal(n int) ([]float64, *mat.SymDense) {
	d := p.Dim()
	cov := mat.NewSymDense(d, nil)
	c := p.Cov[0][n]
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			cov.SetSym(i, j, c.At(i, j))
		}
	}
	return mat.Row(nil, n, p.Mu), cov
}

// CrossCov returns Cov(x_n, x_{n+1}).
func (p *MarkovGaussian) CrossCov(n int) *mat.Dense {
	return p.Cov[1][n]
}

// Marginals returns the Gaussian over the first N states, the view used by
// expectations that do not involve consecutive pairs.
func (p *MarkovGaussian) Marginals() *Gaussian {
	n := p.Len()
	cov := make([]*mat.SymDense, n)
	for i := range cov {
		_, cov[i] = p.Marginal(i)
	}
	return &Gaussian{Mu: mat.DenseCopyOf(p.Mu.Slice(0, n, 0, p.Dim())), Cov: cov}
}

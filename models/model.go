// Package models holds variational Gaussian process models.
package models

import (
	"github.com/lucasmaystre/govgp/conditional"
	"github.com/lucasmaystre/govgp/kern"
	"github.com/lucasmaystre/govgp/likelihood"
	"github.com/lucasmaystre/govgp/meanfn"
	"github.com/lucasmaystre/govgp/param"
	"github.com/lucasmaystre/govgp/utils"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Model exposes a variational objective to an optimizer. Parameters are
// mutated in place between evaluations; evaluations and updates must not run
// concurrently.
type Model interface {
	// Evidence lower bound of the training data.
	ELBO() (float64, error)

	// Posterior mean and variance of the latent functions at xNew.
	PredictF(xNew mat.Matrix, fullCov, fullOutputCov bool) (*mat.Dense, conditional.Variance, error)

	Likelihood() likelihood.Likelihood

	// Every parameter the objective depends on, without duplicates.
	Parameters() []param.Parameter
}

type baseModel struct {
	x          *mat.Dense // Training inputs, N×D.
	y          *mat.Dense // Training outputs, N×R.
	kernel     kern.Kernel
	likelihood likelihood.Likelihood
	mean       meanfn.Function
	numData    int
	numLatent  int
}

func newBaseModel(x, y *mat.Dense, kernel kern.Kernel, lik likelihood.Likelihood,
	mean meanfn.Function, numLatent int) (baseModel, error) {
	if err := utils.CheckRows("X", x, "Y", y); err != nil {
		return baseModel{}, err
	}
	numData, numOutputs := y.Dims()
	if numLatent == 0 {
		numLatent = numOutputs
	}
	if numLatent != numOutputs {
		return baseModel{}, errors.Wrapf(utils.ErrShapeMismatch,
			"%d latent functions for %d output columns", numLatent, numOutputs)
	}
	if mean == nil {
		mean = meanfn.NewZero(numLatent)
	}
	if _, q := mean.Evaluate(x).Dims(); q != numLatent {
		return baseModel{}, errors.Wrapf(utils.ErrShapeMismatch,
			"mean function has %d outputs, model has %d latent functions", q, numLatent)
	}
	return baseModel{
		x:          x,
		y:          y,
		kernel:     kernel,
		likelihood: lik,
		mean:       mean,
		numData:    numData,
		numLatent:  numLatent,
	}, nil
}

func (m *baseModel) Likelihood() likelihood.Likelihood {
	return m.likelihood
}

func (m *baseModel) Kernel() kern.Kernel {
	return m.kernel
}

// parameters gathers own and collaborator parameters, first occurrence first.
func (m *baseModel) parameters(own ...param.Parameter) []param.Parameter {
	var params []param.Parameter
	seen := make(map[param.Parameter]bool)
	groups := [][]param.Parameter{
		own,
		m.kernel.Parameters(),
		m.likelihood.Parameters(),
		m.mean.Parameters(),
	}
	for _, group := range groups {
		for _, p := range group {
			if !seen[p] {
				seen[p] = true
				params = append(params, p)
			}
		}
	}
	return params
}

// PredictY returns the predictive mean and variance of the observations at
// xNew.
func PredictY(m Model, xNew mat.Matrix) (*mat.Dense, *mat.Dense, error) {
	fmean, fvar, err := m.PredictF(xNew, false, false)
	if err != nil {
		return nil, nil, err
	}
	mean, variance := m.Likelihood().PredictMeanAndVar(fmean, fvar.Diag)
	return mean, variance, nil
}

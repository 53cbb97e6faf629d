// Package train fits models by maximising their evidence lower bound.
package train

import (
	"math"

	"github.com/lucasmaystre/govgp/models"
	"github.com/lucasmaystre/govgp/param"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

type Settings struct {
	MaxIter     int     // Maximum number of major iterations, 0 for no limit.
	GradientTol float64 // Stop when the gradient norm falls below this.
	Step        float64 // Finite-difference step, 0 for the default.
	Verbose     bool
}

func DefaultSettings() Settings {
	return Settings{
		MaxIter:     100,
		GradientTol: 1e-5,
	}
}

// recorder logs the progress of the optimization.
type recorder struct {
	verbose bool
}

func (r *recorder) Init() error {
	return nil
}

func (r *recorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if r.verbose && op&optimize.MajorIteration != 0 {
		log.WithFields(log.Fields{
			"iteration": stats.MajorIterations,
			"elbo":      -loc.F,
			"evals":     stats.FuncEvaluations,
		}).Info("train: iteration")
	}
	return nil
}

// Minimize minimizes the negative ELBO of m over the unconstrained values of
// all its parameters, with L-BFGS and finite-difference gradients. The
// parameters are left at the best point found. The first error returned by
// the ELBO stops the run and is returned.
func Minimize(m models.Model, settings Settings) (*optimize.Result, error) {
	params := m.Parameters()
	x0 := param.Flatten(params)
	var evalErr error
	objective := func(x []float64) float64 {
		param.Unflatten(params, x)
		elbo, err := m.ELBO()
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			return math.Inf(1)
		}
		return -elbo
	}
	problem := optimize.Problem{
		Func: objective,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, objective, x, &fd.Settings{
				Formula: fd.Central,
				Step:    settings.Step,
			})
		},
		Status: func() (optimize.Status, error) {
			if evalErr != nil {
				return optimize.Failure, evalErr
			}
			return optimize.NotTerminated, nil
		},
	}
	result, err := optimize.Minimize(problem, x0, &optimize.Settings{
		MajorIterations:   settings.MaxIter,
		GradientThreshold: settings.GradientTol,
		Recorder:          &recorder{verbose: settings.Verbose},
	}, &optimize.LBFGS{})
	if evalErr != nil {
		return result, errors.Wrap(evalErr, "train: evaluating elbo")
	}
	if result != nil {
		param.Unflatten(params, result.X)
	}
	if err != nil {
		return result, errors.Wrap(err, "train")
	}
	return result, nil
}

package kern

import (
	"github.com/lucasmaystre/govgp/utils"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var ErrNoStateSpace = errors.New("kernel has no state-space representation")

// StateSpace is the linear SDE representation of a kernel over a scalar
// input (time).
type StateSpace interface {
	// Order of the SDE :math:`m`.
	Order() int

	// Prior mean of the state vector, :math:`\mathbf{m}_0(t)`.
	StateMean(t float64) *mat.VecDense

	// Prior covariance of the state vector, :math:`\mathbf{P}_0(t)`.
	StateCov(t float64) *mat.Dense

	// Measurement vector :math:`\mathbf{h}`.
	MeasurementVec() *mat.VecDense

	// Transition matrix :math:`\mathbf{A}` for a given time interval.
	Transition(delta float64) *mat.Dense

	// Noise covariance matrix :math:`\mathbf{Q}` for a given time interval.
	NoiseCov(delta float64) *mat.Dense
}

// AsStateSpace returns the state-space representation of k. A sum has one if
// all its children do; its state is the concatenation of theirs.
func AsStateSpace(k Kernel) (StateSpace, error) {
	switch k := k.(type) {
	case *Sum:
		parts := make([]StateSpace, len(k.parts))
		order := 0
		for i, part := range k.parts {
			var err error
			if parts[i], err = AsStateSpace(part); err != nil {
				return nil, err
			}
			order += parts[i].Order()
		}
		return &stateSpaceSum{parts: parts, order: order}, nil
	case StateSpace:
		// The SDE form is over a scalar input.
		if s, ok := k.(interface{ ard() bool }); ok && s.ard() {
			return nil, errors.Wrapf(ErrNoStateSpace, "%T with one lengthscale per dimension", k)
		}
		return k, nil
	}
	return nil, errors.Wrapf(ErrNoStateSpace, "%T", k)
}

type stateSpaceSum struct {
	parts []StateSpace
	order int
}

func (k *stateSpaceSum) Order() int {
	return k.order
}

func (k *stateSpaceSum) StateMean(t float64) *mat.VecDense {
	vecs := make([]*mat.VecDense, len(k.parts))
	for i, part := range k.parts {
		vecs[i] = part.StateMean(t)
	}
	return utils.ConcatVecs(k.order, vecs...)
}

func (k *stateSpaceSum) StateCov(t float64) *mat.Dense {
	mats := make([]mat.Matrix, len(k.parts))
	for i, part := range k.parts {
		mats[i] = part.StateCov(t)
	}
	return utils.BlockDiag(k.order, mats...)
}

func (k *stateSpaceSum) MeasurementVec() *mat.VecDense {
	vecs := make([]*mat.VecDense, len(k.parts))
	for i, part := range k.parts {
		vecs[i] = part.MeasurementVec()
	}
	return utils.ConcatVecs(k.order, vecs...)
}

func (k *stateSpaceSum) Transition(delta float64) *mat.Dense {
	mats := make([]mat.Matrix, len(k.parts))
	for i, part := range k.parts {
		mats[i] = part.Transition(delta)
	}
	return utils.BlockDiag(k.order, mats...)
}

func (k *stateSpaceSum) NoiseCov(delta float64) *mat.Dense {
	mats := make([]mat.Matrix, len(k.parts))
	for i, part := range k.parts {
		mats[i] = part.NoiseCov(delta)
	}
	return utils.BlockDiag(k.order, mats...)
}

// Package ssm runs Kalman filtering and RTS smoothing on the state-space
// representation of a kernel, and exposes the smoothed posterior over the
// state trajectory as a Markov Gaussian.
package ssm

import (
	"github.com/lucasmaystre/govgp/kern"
	"github.com/lucasmaystre/govgp/probdist"
	"github.com/lucasmaystre/govgp/utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

var ErrNotChronological = errors.New("observation not in chronological order")

type Smoother struct {
	kernel kern.StateSpace
	ts     []float64 // Samples' times.
	ms     []float64 // Samples' means.
	vs     []float64 // Samples' variances.
	ns     []float64 // Pseudo-observations' precision-adjusted means.
	xs     []float64 // Pseudo-observations' precisions.

	// State-space model variables.
	vecH   *mat.VecDense   // Measurement vector.
	eye    *mat.Dense      // Identity of the state dimension.
	matsA  []*mat.Dense    // Transition matrices.
	matsQ  []*mat.Dense    // Noise covariance matrices.
	vecsMp []*mat.VecDense // Predictive means.
	matsPp []*mat.Dense    // Predictive covariances.
	vecsMf []*mat.VecDense // Filtering means.
	matsPf []*mat.Dense    // Filtering covariances.
	vecsMs []*mat.VecDense // Smoothing means.
	matsPs []*mat.Dense    // Smoothing covariances.
	matsC  []*mat.Dense    // Smoothing cross-covariances of consecutive states.
}

func NewSmoother(kernel kern.StateSpace) *Smoother {
	return &Smoother{
		kernel: kernel,
		ts:     make([]float64, 0, 10),
		ms:     make([]float64, 0, 10),
		vs:     make([]float64, 0, 10),
		ns:     make([]float64, 0, 10),
		xs:     make([]float64, 0, 10),
		vecH:   kernel.MeasurementVec(),
		eye:    utils.Eye(kernel.Order()),
		matsA:  make([]*mat.Dense, 0, 10),
		matsQ:  make([]*mat.Dense, 0, 10),
		vecsMp: make([]*mat.VecDense, 0, 10),
		matsPp: make([]*mat.Dense, 0, 10),
		vecsMf: make([]*mat.VecDense, 0, 10),
		matsPf: make([]*mat.Dense, 0, 10),
		vecsMs: make([]*mat.VecDense, 0, 10),
		matsPs: make([]*mat.Dense, 0, 10),
		matsC:  make([]*mat.Dense, 0, 10),
	}
}

// AddSample appends a Gaussian pseudo-observation at time t, with precision x
// and precision-adjusted mean n. Samples must be added in chronological order.
func (s *Smoother) AddSample(t, n, x float64) error {
	idx := len(s.ts)
	if idx > 0 && t < s.ts[idx-1] {
		return errors.Wrapf(ErrNotChronological, "t=%g after t=%g", t, s.ts[idx-1])
	}
	s.ts = append(s.ts, t)
	s.ms = append(s.ms, 0.0)
	s.vs = append(s.vs, 0.0)
	s.ns = append(s.ns, n)
	s.xs = append(s.xs, x)
	m := s.kernel.Order()
	s.vecsMp = append(s.vecsMp, mat.NewVecDense(m, nil))
	s.matsPp = append(s.matsPp, mat.NewDense(m, m, nil))
	s.vecsMf = append(s.vecsMf, mat.NewVecDense(m, nil))
	s.matsPf = append(s.matsPf, mat.NewDense(m, m, nil))
	s.vecsMs = append(s.vecsMs, mat.NewVecDense(m, nil))
	s.matsPs = append(s.matsPs, mat.NewDense(m, m, nil))
	if idx > 0 {
		delta := t - s.ts[idx-1]
		s.matsA = append(s.matsA, s.kernel.Transition(delta))
		s.matsQ = append(s.matsQ, s.kernel.NoiseCov(delta))
		s.matsC = append(s.matsC, mat.NewDense(m, m, nil))
	}
	return nil
}

// AddObservation appends an observation y at time t with Gaussian noise of
// the given variance.
func (s *Smoother) AddObservation(t, y, noise float64) error {
	return s.AddSample(t, y/noise, 1.0/noise)
}

func (s *Smoother) Len() int {
	return len(s.ts)
}

func (s *Smoother) Fit() error {
	var (
		ts  = s.ts
		ns  = s.ns
		xs  = s.xs
		h   = s.vecH
		A   = s.matsA
		Q   = s.matsQ
		mp  = s.vecsMp
		Pp  = s.matsPp
		mf  = s.vecsMf
		Pf  = s.matsPf
		ms  = s.vecsMs
		Ps  = s.matsPs
		C   = s.matsC
		m   = s.kernel.Order()
		num = len(ts)
	)
	k := mat.NewVecDense(m, nil)
	tmp1 := mat.NewVecDense(m, nil)
	tmp2 := mat.NewVecDense(m, nil)
	var Z, G, tmp3, tmp4 mat.Dense
	// Forward pass (Kalman filter).
	for i := 0; i < num; i++ {
		if i == 0 {
			mp[i].CopyVec(s.kernel.StateMean(ts[i]))
			Pp[i].Copy(s.kernel.StateCov(ts[i]))
		} else {
			mp[i].MulVec(A[i-1], mf[i-1])
			Pp[i].Product(A[i-1], Pf[i-1], A[i-1].T())
			Pp[i].Add(Pp[i], Q[i-1])
		}
		// k = P_p h / (1 + x h^T P_p h)
		tmp1.MulVec(Pp[i].T(), h)
		k.MulVec(Pp[i], h)
		k.ScaleVec(1.0/(1+xs[i]*mat.Dot(tmp1, h)), k)
		// m_f = m_p + k (n - x h^T m_p)
		mf[i].ScaleVec(ns[i]-xs[i]*mat.Dot(h, mp[i]), k)
		mf[i].AddVec(mf[i], mp[i])
		// Z = I - x k h^T
		Z.Outer(xs[i], k, h)
		Z.Sub(s.eye, &Z)
		// P_f = Z P_p Z^T + x k k^T
		tmp3.Outer(xs[i], k, k)
		Pf[i].Product(&Z, Pp[i], Z.T())
		Pf[i].Add(Pf[i], &tmp3)
	}
	// Backward pass (RTS smoother).
	for i := num - 1; i >= 0; i-- {
		if i == num-1 {
			ms[i].CopyVec(mf[i])
			Ps[i].Copy(Pf[i])
		} else {
			// G = P_p[i+1]^-1 A P_f
			tmp3.Mul(A[i], Pf[i])
			if err := G.Solve(Pp[i+1], &tmp3); err != nil {
				return errors.Wrapf(utils.ErrSingular, "ssm: predictive covariance at t=%g", ts[i+1])
			}
			// m_s = m_f + G^T (m_s[i+1] - m_p[i+1])
			tmp1.SubVec(ms[i+1], mp[i+1])
			tmp2.MulVec(G.T(), tmp1)
			ms[i].AddVec(mf[i], tmp2)
			// P_s = P_f + G^T (P_s[i+1] - P_p[i+1]) G
			tmp3.Sub(Ps[i+1], Pp[i+1])
			tmp4.Product(G.T(), &tmp3, &G)
			Ps[i].Add(Pf[i], &tmp4)
			// Cov(x_i, x_{i+1}) = G^T P_s[i+1]
			C[i].Mul(G.T(), Ps[i+1])
		}
		s.ms[i] = mat.Dot(h, ms[i])
		tmp1.MulVec(Ps[i].T(), h)
		s.vs[i] = mat.Dot(tmp1, h)
	}
	log.WithFields(log.Fields{
		"samples": num,
		"order":   m,
	}).Debug("state-space posterior smoothed")
	return nil
}

// Means and variances of the latent function at the sample times, valid
// after Fit.
func (s *Smoother) Marginals() (ms, vs []float64) {
	return s.ms, s.vs
}

// Chain returns the smoothed posterior over the state trajectory, one state
// per sample. It is valid after Fit.
func (s *Smoother) Chain() (*probdist.MarkovGaussian, error) {
	num, m := len(s.ts), s.kernel.Order()
	if num == 0 {
		return nil, errors.Wrap(utils.ErrShapeMismatch, "ssm: no samples")
	}
	mu := mat.NewDense(num, m, nil)
	marginal := make([]*mat.Dense, num)
	for i := 0; i < num; i++ {
		mu.SetRow(i, s.vecsMs[i].RawVector().Data)
		marginal[i] = mat.DenseCopyOf(s.matsPs[i])
	}
	cross := make([]*mat.Dense, num-1)
	for i := range cross {
		cross[i] = mat.DenseCopyOf(s.matsC[i])
	}
	return probdist.NewMarkovGaussian(mu, marginal, cross)
}

package likelihood

import (
	"math"

	"github.com/lucasmaystre/govgp/param"
	"github.com/lucasmaystre/govgp/utils"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	cs = []float64{
		0.00048204, -0.00142906, 0.0013200243174, 0.0009461589032,
		-0.0045563339802, 0.00556964649138, 0.00125993961762116,
		-0.01621575378835404, 0.02629651521057465, -0.001829764677455021,
		-0.09439510239319526, 0.28613578213673563, 1.0, 1.0}
	rs = []float64{
		1.2753666447299659525, 5.019049726784267463450, 6.1602098531096305441,
		7.409740605964741794425, 2.9788656263939928886}
	qs = []float64{
		2.260528520767326969592, 9.3960340162350541504,
		12.048951927855129036034, 17.081440747466004316,
		9.608965327192787870698, 3.3690752069827527677}
)

// Logarithm of the standard normal CDF, accurate in the far left tail.
func logPhi(z float64) float64 {
	if z*z < 0.0492 {
		coef := -z / (math.Sqrt2 * math.SqrtPi)
		val := 0.0
		for _, c := range cs {
			val = coef * (c + val)
		}
		return -2*val - math.Ln2
	} else if z < -11.3137 {
		num := 0.5641895835477550741
		for _, r := range rs {
			num = -z*num/math.Sqrt2 + r
		}
		den := 1.0
		for _, q := range qs {
			den = -z*den/math.Sqrt2 + q
		}
		return math.Log(num/(2*den)) - (z*z)/2
	}
	return math.Log(utils.NormalCdf(z))
}

var _ Likelihood = (*Bernoulli)(nil)

// Bernoulli observations y in {0, 1} with a probit link,
// p(y = 1 | f) = Phi(f).
type Bernoulli struct {
	quad *hermite
}

func NewBernoulli() *Bernoulli {
	return &Bernoulli{quad: newHermite(DefaultQuadraturePoints)}
}

func (l *Bernoulli) VariationalExpectations(fmean, fvar, y *mat.Dense) (*mat.Dense, error) {
	return elementwise(fmean, fvar, y, func(m, v, y float64) (float64, error) {
		if y != 0 && y != 1 {
			return 0, errors.Wrapf(ErrInvalidObservation, "bernoulli observation %g not in {0, 1}", y)
		}
		sign := 2*y - 1
		return l.quad.expect(m, v, func(f float64) float64 {
			return logPhi(sign * f)
		}), nil
	})
}

func (l *Bernoulli) PredictMeanAndVar(fmean, fvar *mat.Dense) (*mat.Dense, *mat.Dense) {
	r, c := fmean.Dims()
	mean := mat.NewDense(r, c, nil)
	variance := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			// p = Phi(m / sqrt(1 + v))
			p := utils.NormalCdf(fmean.At(i, j) / math.Sqrt(1+fvar.At(i, j)))
			mean.Set(i, j, p)
			variance.Set(i, j, p-p*p)
		}
	}
	return mean, variance
}

func (l *Bernoulli) Parameters() []param.Parameter {
	return nil
}

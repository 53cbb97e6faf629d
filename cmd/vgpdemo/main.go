package main

import (
	"flag"
	"math"
	"sort"

	"github.com/lucasmaystre/govgp/expect"
	"github.com/lucasmaystre/govgp/kern"
	"github.com/lucasmaystre/govgp/likelihood"
	"github.com/lucasmaystre/govgp/models"
	"github.com/lucasmaystre/govgp/probdist"
	"github.com/lucasmaystre/govgp/ssm"
	"github.com/lucasmaystre/govgp/train"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	numData  = flag.Int("n", 50, "number of training points")
	seed     = flag.Uint64("seed", 1, "random seed")
	likName  = flag.String("likelihood", "gaussian", "gaussian or bernoulli")
	variant  = flag.String("variant", "vgp", "vgp or oa")
	kernName = flag.String("kernel", "se", "se or matern32")
	inNoise  = flag.Float64("input-noise", 0, "input variance for uncertain-input predictions")
	maxIter  = flag.Int("iters", 50, "maximum number of optimizer iterations")
	plotPath = flag.String("plot", "", "write the predictions to this PNG file")
	verbose  = flag.Bool("v", false, "verbose output")
)

func setupLogging() {
	log.SetLevel(log.InfoLevel)
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	log.SetFormatter(&log.TextFormatter{
		ForceColors: true,
	})
}

// Noisy observations of sin(x) on [0, 10], thresholded for classification.
func dataset(n int, lik string, src *rand.Rand) (*mat.Dense, *mat.Dense) {
	x := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		xi := 10 * src.Float64()
		fi := math.Sin(xi) + 0.3*src.NormFloat64()
		x.Set(i, 0, xi)
		if lik == "bernoulli" {
			if fi > 0 {
				y.Set(i, 0, 1)
			}
		} else {
			y.Set(i, 0, fi)
		}
	}
	return x, y
}

func newKernel() kern.Kernel {
	if *kernName == "matern32" {
		return kern.NewSum(kern.NewMatern32(1.0, 1.0), kern.NewConstant(0.1))
	}
	return kern.NewSum(kern.NewSquaredExponential(1.0, 1.0), kern.NewConstant(0.1))
}

func newModel(x, y *mat.Dense, kernel kern.Kernel) (models.Model, error) {
	var lik likelihood.Likelihood = likelihood.NewGaussian(0.1)
	if *likName == "bernoulli" {
		lik = likelihood.NewBernoulli()
	}
	if *variant == "oa" {
		return models.NewVGPOpperArchambeau(x, y, kernel, lik, nil, 0)
	}
	return models.NewVGP(x, y, kernel, lik, nil, 0)
}

func savePlot(path string, m models.Model, x, y *mat.Dense) error {
	grid := make([]float64, 200)
	floats.Span(grid, -1, 11)
	xNew := mat.NewDense(len(grid), 1, grid)
	mean, variance, err := models.PredictY(m, xNew)
	if err != nil {
		return err
	}
	uncertain, err := uncertainMean(m, xNew)
	if err != nil {
		return err
	}
	p := plot.New()
	p.Title.Text = "Predictive distribution"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	n, _ := x.Dims()
	obs := make(plotter.XYs, n)
	for i := range obs {
		obs[i].X = x.At(i, 0)
		obs[i].Y = y.At(i, 0)
	}
	mu := make(plotter.XYs, len(grid))
	lower := make(plotter.XYs, len(grid))
	upper := make(plotter.XYs, len(grid))
	for i, g := range grid {
		sd := math.Sqrt(variance.At(i, 0))
		mu[i].X, mu[i].Y = g, mean.At(i, 0)
		lower[i].X, lower[i].Y = g, mean.At(i, 0)-2*sd
		upper[i].X, upper[i].Y = g, mean.At(i, 0)+2*sd
	}
	scatter, err := plotter.NewScatter(obs)
	if err != nil {
		return err
	}
	p.Add(scatter)
	for _, xys := range []plotter.XYs{mu, lower, upper} {
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		p.Add(line)
	}
	if uncertain != nil {
		xys := make(plotter.XYs, len(grid))
		for i, g := range grid {
			xys[i].X, xys[i].Y = g, uncertain.At(i, 0)
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
		p.Legend.Add("noisy inputs", line)
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// uncertainMean returns the latent mean at inputs blurred by -input-noise, or
// nil if not requested or if the kernel has no closed-form expectations.
func uncertainMean(m models.Model, xNew *mat.Dense) (*mat.Dense, error) {
	vgp, ok := m.(*models.VGP)
	if *inNoise <= 0 || !ok {
		return nil, nil
	}
	n, d := xNew.Dims()
	variance := mat.NewDense(n, d, nil)
	variance.Apply(func(i, j int, v float64) float64 {
		return *inNoise
	}, variance)
	p, err := probdist.NewDiagonalGaussian(xNew, variance)
	if err != nil {
		return nil, err
	}
	mean, _, err := vgp.PredictFUncertain(p)
	if errors.Cause(err) == expect.ErrUnsupportedExpectation {
		log.WithFields(log.Fields{"kernel": *kernName}).Info("no closed-form uncertain-input prediction, skipping")
		return nil, nil
	}
	return mean, err
}

// compareSmoother fits the exact posterior of a Gaussian-likelihood model with
// a Kalman smoother and logs how far the variational means are from it.
func compareSmoother(m models.Model, kernel kern.Kernel, x, y *mat.Dense, noise float64) error {
	ss, err := kern.AsStateSpace(kernel)
	if err != nil {
		return err
	}
	n, _ := x.Dims()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return x.At(order[a], 0) < x.At(order[b], 0)
	})
	smoother := ssm.NewSmoother(ss)
	for _, i := range order {
		if err := smoother.AddObservation(x.At(i, 0), y.At(i, 0), noise); err != nil {
			return err
		}
	}
	if err := smoother.Fit(); err != nil {
		return err
	}
	exact, _ := smoother.Marginals()
	fmean, _, err := m.PredictF(x, false, false)
	if err != nil {
		return err
	}
	sq := 0.0
	for k, i := range order {
		diff := fmean.At(i, 0) - exact[k]
		sq += diff * diff
	}
	log.WithFields(log.Fields{
		"rmse": math.Sqrt(sq / float64(n)),
	}).Info("distance to exact posterior mean")
	return nil
}

func main() {
	flag.Parse()
	setupLogging()

	src := rand.New(rand.NewSource(*seed))
	x, y := dataset(*numData, *likName, src)
	kernel := newKernel()
	m, err := newModel(x, y, kernel)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("building model")
	}
	before, err := m.ELBO()
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("evaluating elbo")
	}
	settings := train.DefaultSettings()
	settings.MaxIter = *maxIter
	settings.Verbose = *verbose
	result, err := train.Minimize(m, settings)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("training")
	}
	log.WithFields(log.Fields{
		"variant":    *variant,
		"likelihood": *likName,
		"before":     before,
		"after":      -result.F,
		"status":     result.Status,
	}).Info("trained")

	if lik, ok := m.Likelihood().(*likelihood.Gaussian); ok && *kernName == "matern32" {
		if err := compareSmoother(m, kernel, x, y, lik.Variance()); err != nil {
			log.WithFields(log.Fields{"error": err}).Fatal("smoothing")
		}
	}

	if *plotPath != "" {
		if err := savePlot(*plotPath, m, x, y); err != nil {
			log.WithFields(log.Fields{"error": err}).Fatal("plotting")
		}
	}
}

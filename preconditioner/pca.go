package preconditioner

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/precond/pkg/errors"
	"github.com/YuminosukeSato/precond/pkg/log"
	"github.com/YuminosukeSato/precond/spectrum"
)

// DefaultVarExplained is the variance-explained threshold, in percent, used
// when no component count is given.
const DefaultVarExplained = 99.0

type pcaConfig struct {
	varExplained  float64
	numComponents int
}

// PCAOption configures NewPCA and NewPCATransform.
type PCAOption func(*pcaConfig)

// WithVarExplained sets the percentage of input variance the kept
// components must exceed.
func WithVarExplained(percent float64) PCAOption {
	return func(c *pcaConfig) {
		c.varExplained = percent
	}
}

// WithNumComponents fixes the number of kept components. It takes
// precedence over the variance threshold; values above the input
// dimensionality are clamped and values ≤ 0 leave the count to the
// threshold.
func WithNumComponents(n int) PCAOption {
	return func(c *pcaConfig) {
		c.numComponents = n
	}
}

func newPCAConfig(opts []PCAOption) pcaConfig {
	cfg := pcaConfig{varExplained: DefaultVarExplained, numComponents: -1}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// components picks the number of components for an ascending spectrum.
func (c pcaConfig) components(eigenvalues []float64) int {
	if c.numComponents > 0 {
		return min(c.numComponents, len(eigenvalues))
	}
	return spectrum.NumComponents(eigenvalues, c.varExplained)
}

// fitPCAInput projects the input onto its top-variance eigenvectors and
// scales each component to unit variance. Components keep the ascending
// eigenvalue order. It returns the full ascending spectrum and the number
// of kept components whose eigenvalue was clamped.
func fitPCAInput(op string, input mat.Matrix, covXX mat.Symmetric, cfg pcaConfig) (Transform, []float64, int, error) {
	dimIn, n := input.Dims()
	meanIn := rowMeans(input)

	if n == 0 {
		eigenvalues := make([]float64, dimIn)
		k := cfg.components(eigenvalues)
		return Transform{
			meanIn:   meanIn,
			preIn:    mat.NewDense(k, dimIn, nil),
			preInInv: mat.NewDense(dimIn, k, nil),
		}, eigenvalues, 0, nil
	}

	eigenvalues, vectors, err := eigen(op, covXX)
	if err != nil {
		return Transform{}, nil, 0, err
	}
	k := cfg.components(eigenvalues)
	offset := dimIn - k
	kept, clamped := clampEigenvalues(eigenvalues[offset:])

	preIn := mat.NewDense(k, dimIn, nil)
	preInInv := mat.NewDense(dimIn, k, nil)
	for c := 0; c < k; c++ {
		s := math.Sqrt(kept[c])
		for i := 0; i < dimIn; i++ {
			v := vectors.At(i, offset+c)
			preIn.Set(c, i, v/s)
			preInInv.Set(i, c, v*s)
		}
	}
	return Transform{meanIn: meanIn, preIn: preIn, preInInv: preInInv}, eigenvalues, clamped, nil
}

func logPCAStart(logger log.Logger, cfg pcaConfig, n, dimIn, dimOut int) {
	logger.Info("Estimation started",
		log.OperationKey, log.OperationEstimate,
		log.PhaseKey, log.PhaseEstimation,
		log.SamplesKey, n,
		log.DimInKey, dimIn,
		log.DimOutKey, dimOut,
		log.VarExplainedKey, cfg.varExplained,
		log.ComponentsKey, cfg.numComponents,
	)
}

// NewPCA estimates a preconditioner that reduces the input to its principal
// components and whitens the output residual as NewWhitening does.
//
// Without options, the fewest components whose cumulative variance exceeds
// DefaultVarExplained percent are kept. Data without samples yields zero
// input maps, a zero predictor and an identity output map.
func NewPCA(input, output mat.Matrix, opts ...PCAOption) (p *Preconditioner, err error) {
	const op = "NewPCA"
	defer errors.Recover(&err, op)

	if err = checkSamples(op, input, output); err != nil {
		return nil, err
	}
	cfg := newPCAConfig(opts)
	dimIn, n := input.Dims()
	dimOut, _ := output.Dims()

	logger := estimationLogger(KindPCA)
	start := time.Now()
	logPCAStart(logger, cfg, n, dimIn, dimOut)

	cov := covariance(input, output)
	in, eigenvalues, clampedIn, err := fitPCAInput(op, input, cov.SliceSym(0, dimIn), cfg)
	if err != nil {
		return nil, err
	}

	p, clampedOut, err := fitOutput(op, KindPCA, in, rowMeans(output), cov, eigenvalues)
	if err != nil {
		return nil, err
	}

	finishEstimation(logger, op, p, n, clampedIn+clampedOut, start)
	return p, nil
}

// NewPCATransform estimates an input-only PCA transform. The output side of
// the result has dimOut dimensions, a zero predictor and a log-Jacobian of 0.
func NewPCATransform(input mat.Matrix, dimOut int, opts ...PCAOption) (p *Preconditioner, err error) {
	const op = "NewPCATransform"
	defer errors.Recover(&err, op)

	if err = checkInputSamples(op, input, dimOut); err != nil {
		return nil, err
	}
	cfg := newPCAConfig(opts)
	dimIn, n := input.Dims()

	logger := estimationLogger(KindPCATransform)
	start := time.Now()
	logPCAStart(logger, cfg, n, dimIn, dimOut)

	in, eigenvalues, clamped, err := fitPCAInput(op, input, covariance(input), cfg)
	if err != nil {
		return nil, err
	}
	p = detachedOutput(KindPCATransform, in, dimOut, eigenvalues)

	finishEstimation(logger, op, p, n, clamped, start)
	return p, nil
}

// RestorePCATransform rebuilds an input-only PCA transform from its stored
// spectrum, mean and maps. eigenvalues must hold the full input spectrum.
func RestorePCATransform(eigenvalues []float64, meanIn *mat.VecDense, preIn, preInInv *mat.Dense, dimOut int) (*Preconditioner, error) {
	const op = "RestorePCATransform"
	if err := checkTransform(op, meanIn, preIn, preInInv); err != nil {
		return nil, err
	}
	if len(eigenvalues) != meanIn.Len() {
		return nil, errors.NewArgumentDimensionError(op, "eigenvalues", meanIn.Len(), len(eigenvalues), errors.AxisRows)
	}
	if dimOut < 1 {
		return nil, errors.NewArgumentDimensionError(op, "dimOut", 1, dimOut, errors.AxisRows)
	}

	in := Transform{
		meanIn:   copyVec(meanIn),
		preIn:    copyDense(preIn),
		preInInv: copyDense(preInInv),
	}
	return detachedOutput(KindPCATransform, in, dimOut, append([]float64(nil), eigenvalues...)), nil
}

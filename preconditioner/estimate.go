package preconditioner

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/precond/pkg/errors"
	"github.com/YuminosukeSato/precond/pkg/log"
)

func estimationLogger(kind Kind) log.Logger {
	return log.GetLoggerWithName("preconditioner").With(log.ModelNameKey, kind.String())
}

// checkSamples validates paired training samples.
func checkSamples(op string, input, output mat.Matrix) error {
	dimIn, n := dims(input)
	if dimIn < 1 {
		return errors.NewArgumentDimensionError(op, "input", 1, dimIn, errors.AxisRows)
	}
	dimOut, nOut := dims(output)
	if dimOut < 1 {
		return errors.NewArgumentDimensionError(op, "output", 1, dimOut, errors.AxisRows)
	}
	if nOut != n {
		return errors.NewArgumentDimensionError(op, "output", n, nOut, errors.AxisColumns)
	}
	return nil
}

// checkInputSamples validates input-only training samples and the requested
// output dimensionality.
func checkInputSamples(op string, input mat.Matrix, dimOut int) error {
	dimIn, _ := dims(input)
	if dimIn < 1 {
		return errors.NewArgumentDimensionError(op, "input", 1, dimIn, errors.AxisRows)
	}
	if dimOut < 1 {
		return errors.NewArgumentDimensionError(op, "dimOut", 1, dimOut, errors.AxisRows)
	}
	return nil
}

// fitOutput regresses the output on the transformed input and whitens the
// residual. cov is the joint covariance of input (first rows) and output.
func fitOutput(op string, kind Kind, in Transform, meanOut *mat.VecDense, cov *mat.SymDense, eigenvalues []float64) (*Preconditioner, int, error) {
	dimIn := in.DimIn()
	d, _ := cov.Dims()

	covYX := block(cov, dimIn, d, 0, dimIn)
	predictor := mat.NewDense(d-dimIn, in.DimInPre(), nil)
	predictor.Mul(covYX, in.preIn.T())

	residual := conditionalCovariance(block(cov, dimIn, d, dimIn, d), predictor)
	preOut, preOutInv, clamped, err := inverseSqrt(op, residual)
	if err != nil {
		return nil, 0, err
	}
	return newPreconditioner(kind, in, meanOut, preOut, preOutInv, predictor, eigenvalues), clamped, nil
}

// detachedOutput completes an input-only estimate. The output side only
// passes values through: zero mean, identity maps and a zero predictor, so
// the log-Jacobian is 0.
func detachedOutput(kind Kind, in Transform, dimOut int, eigenvalues []float64) *Preconditioner {
	return newPreconditioner(kind, in,
		mat.NewVecDense(dimOut, nil), eye(dimOut), eye(dimOut),
		mat.NewDense(dimOut, in.DimInPre(), nil), eigenvalues)
}

// finishEstimation reports non-finite parameters as warnings and logs the
// estimate.
func finishEstimation(logger log.Logger, op string, p *Preconditioner, samples, clamped int, start time.Time) {
	if clamped > 0 {
		logger.Debug("Near-constant directions passed through unscaled",
			log.ClampedKey, clamped,
			log.SuggestionKey, "check for constant or collinear features",
		)
	}

	checks := []struct {
		name string
		m    mat.Matrix
	}{
		{"preIn", p.in.preIn},
		{"preInInv", p.in.preInInv},
		{"preOut", p.preOut},
		{"predictor", p.predictor},
	}
	for _, c := range checks {
		if err := errors.CheckMatrix(op+": "+c.name, c.m, 0); err != nil {
			errors.Warn(err)
		}
	}

	fields := []any{
		log.OperationKey, log.OperationEstimate,
		log.SamplesKey, samples,
		log.DimInKey, p.DimIn(),
		log.DimInPreKey, p.DimInPre(),
		log.DimOutKey, p.DimOut(),
		log.LogJacobianKey, p.logJacobian,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	}
	if p.eigenvalues != nil {
		fields = append(fields, log.ComponentsKey, p.NumComponents())
	}
	logger.Info("Estimation completed", fields...)
}

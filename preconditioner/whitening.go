package preconditioner

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/precond/pkg/errors"
	"github.com/YuminosukeSato/precond/pkg/log"
)

// NewWhitening estimates a whitening preconditioner from paired samples,
// one sample per column.
//
// The input is whitened with the symmetric inverse square root of its
// covariance. The output is regressed on the whitened input and the
// residual is whitened the same way, so both transformed blocks have
// identity covariance and are uncorrelated with each other. Eigenvalues
// below EigenvalueFloor are replaced by 1. With fewer than two samples the
// covariance is taken to be zero and the maps are identities.
func NewWhitening(input, output mat.Matrix) (p *Preconditioner, err error) {
	const op = "NewWhitening"
	defer errors.Recover(&err, op)

	if err = checkSamples(op, input, output); err != nil {
		return nil, err
	}
	dimIn, n := input.Dims()
	dimOut, _ := output.Dims()

	logger := estimationLogger(KindWhitening)
	start := time.Now()
	logger.Info("Estimation started",
		log.OperationKey, log.OperationEstimate,
		log.PhaseKey, log.PhaseEstimation,
		log.SamplesKey, n,
		log.DimInKey, dimIn,
		log.DimOutKey, dimOut,
	)

	cov := covariance(input, output)
	preIn, preInInv, clampedIn, err := inverseSqrt(op, cov.SliceSym(0, dimIn))
	if err != nil {
		return nil, err
	}
	in := Transform{meanIn: rowMeans(input), preIn: preIn, preInInv: preInInv}

	p, clampedOut, err := fitOutput(op, KindWhitening, in, rowMeans(output), cov, nil)
	if err != nil {
		return nil, err
	}

	finishEstimation(logger, op, p, n, clampedIn+clampedOut, start)
	return p, nil
}

// NewWhiteningTransform estimates an input-only whitening transform. The
// output side of the result has dimOut dimensions and passes values through
// unchanged.
func NewWhiteningTransform(input mat.Matrix, dimOut int) (p *Preconditioner, err error) {
	const op = "NewWhiteningTransform"
	defer errors.Recover(&err, op)

	if err = checkInputSamples(op, input, dimOut); err != nil {
		return nil, err
	}
	dimIn, n := input.Dims()

	logger := estimationLogger(KindWhitening)
	start := time.Now()
	logger.Info("Estimation started",
		log.OperationKey, log.OperationEstimate,
		log.PhaseKey, log.PhaseEstimation,
		log.SamplesKey, n,
		log.DimInKey, dimIn,
		log.DimOutKey, dimOut,
	)

	preIn, preInInv, clamped, err := inverseSqrt(op, covariance(input))
	if err != nil {
		return nil, err
	}
	in := Transform{meanIn: rowMeans(input), preIn: preIn, preInInv: preInInv}
	p = detachedOutput(KindWhitening, in, dimOut, nil)

	finishEstimation(logger, op, p, n, clamped, start)
	return p, nil
}

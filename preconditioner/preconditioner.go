package preconditioner

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/precond/pkg/errors"
	"github.com/YuminosukeSato/precond/pkg/log"
)

// Preconditioner is a joint affine map of paired input and output samples.
//
// The input side is a Transform. The output side is centred, has the
// predicted contribution of the transformed input removed and is then
// mapped by preOut:
//
//	inputTr  = preIn·(input − meanIn)
//	outputTr = preOut·(output − meanOut − predictor·inputTr)
//
// A Preconditioner is immutable once constructed. All methods may be called
// concurrently; accessors return copies.
type Preconditioner struct {
	kind Kind
	in   Transform

	meanOut   *mat.VecDense
	preOut    *mat.Dense
	preOutInv *mat.Dense
	predictor *mat.Dense

	logJacobian   float64
	gradTransform *mat.Dense

	// ascending input spectrum, PCA kinds only
	eigenvalues []float64
}

// newPreconditioner takes ownership of its arguments and precomputes the
// log-Jacobian and the gradient correction.
func newPreconditioner(kind Kind, in Transform, meanOut *mat.VecDense, preOut, preOutInv, predictor *mat.Dense, eigenvalues []float64) *Preconditioner {
	p := &Preconditioner{
		kind:        kind,
		in:          in,
		meanOut:     meanOut,
		preOut:      preOut,
		preOutInv:   preOutInv,
		predictor:   predictor,
		eigenvalues: eigenvalues,
	}
	p.logJacobian = logAbsDet(preOut)

	var tmp mat.Dense
	tmp.Mul(preOut, predictor)
	p.gradTransform = mat.NewDense(p.DimOut(), p.DimIn(), nil)
	p.gradTransform.Mul(&tmp, in.preIn)
	return p
}

// FromParameters creates a Preconditioner from means, square maps and a
// predictor. The inverse maps are computed here; an ill-conditioned map is
// reported through errors.Warn and its inverse used as is.
//
// preIn must be dimIn × dimIn, preOut dimOut × dimOut and predictor
// dimOut × dimIn. The arguments are copied.
func FromParameters(meanIn, meanOut *mat.VecDense, preIn, preOut, predictor *mat.Dense) (*Preconditioner, error) {
	const op = "FromParameters"
	dimIn := vecLen(meanIn)
	if dimIn < 1 {
		return nil, errors.NewArgumentDimensionError(op, "meanIn", 1, dimIn, errors.AxisRows)
	}
	r, c := dims(preIn)
	if r != dimIn {
		return nil, errors.NewArgumentDimensionError(op, "preIn", dimIn, r, errors.AxisRows)
	}
	if c != dimIn {
		return nil, errors.NewArgumentDimensionError(op, "preIn", dimIn, c, errors.AxisColumns)
	}
	if err := checkOutputSide(op, meanOut, preOut, nil, predictor, dimIn, false); err != nil {
		return nil, err
	}

	in := Transform{
		meanIn:   copyVec(meanIn),
		preIn:    copyDense(preIn),
		preInInv: invert(op, "preIn", preIn),
	}
	return newPreconditioner(KindAffine, in,
		copyVec(meanOut), copyDense(preOut), invert(op, "preOut", preOut), copyDense(predictor), nil), nil
}

// Restore rebuilds a Preconditioner from stored parameters, inverses
// included. No inversion or estimation takes place, so a restored instance
// computes exactly what the instance that produced the parameters computed.
func Restore(params Parameters) (*Preconditioner, error) {
	const op = "Restore"
	if err := checkTransform(op, params.MeanIn, params.PreIn, params.PreInInv); err != nil {
		return nil, err
	}
	dimIn := params.MeanIn.Len()
	dimInPre, _ := params.PreIn.Dims()
	if err := checkOutputSide(op, params.MeanOut, params.PreOut, params.PreOutInv, params.Predictor, dimInPre, true); err != nil {
		return nil, err
	}
	if params.Eigenvalues != nil && len(params.Eigenvalues) != dimIn {
		return nil, errors.NewArgumentDimensionError(op, "eigenvalues", dimIn, len(params.Eigenvalues), errors.AxisRows)
	}

	var eigenvalues []float64
	if params.Eigenvalues != nil {
		eigenvalues = append([]float64(nil), params.Eigenvalues...)
	}
	in := Transform{
		meanIn:   copyVec(params.MeanIn),
		preIn:    copyDense(params.PreIn),
		preInInv: copyDense(params.PreInInv),
	}
	p := newPreconditioner(params.Kind, in,
		copyVec(params.MeanOut), copyDense(params.PreOut), copyDense(params.PreOutInv), copyDense(params.Predictor), eigenvalues)

	log.GetLoggerWithName("preconditioner").Debug("Preconditioner restored",
		log.ModelNameKey, p.kind.String(),
		log.OperationKey, log.OperationRestore,
		log.DimInKey, p.DimIn(),
		log.DimInPreKey, p.DimInPre(),
		log.DimOutKey, p.DimOut(),
	)
	return p, nil
}

// checkOutputSide validates the output mean, the square output map, its
// inverse when withInverse is set, and the dimOut × dimInPre predictor.
func checkOutputSide(op string, meanOut *mat.VecDense, preOut, preOutInv, predictor *mat.Dense, dimInPre int, withInverse bool) error {
	dimOut := vecLen(meanOut)
	if dimOut < 1 {
		return errors.NewArgumentDimensionError(op, "meanOut", 1, dimOut, errors.AxisRows)
	}
	r, c := dims(preOut)
	if r != dimOut {
		return errors.NewArgumentDimensionError(op, "preOut", dimOut, r, errors.AxisRows)
	}
	if c != dimOut {
		return errors.NewArgumentDimensionError(op, "preOut", dimOut, c, errors.AxisColumns)
	}
	if withInverse {
		r, c = dims(preOutInv)
		if r != dimOut {
			return errors.NewArgumentDimensionError(op, "preOutInv", dimOut, r, errors.AxisRows)
		}
		if c != dimOut {
			return errors.NewArgumentDimensionError(op, "preOutInv", dimOut, c, errors.AxisColumns)
		}
	}
	r, c = dims(predictor)
	if r != dimOut {
		return errors.NewArgumentDimensionError(op, "predictor", dimOut, r, errors.AxisRows)
	}
	if c != dimInPre {
		return errors.NewArgumentDimensionError(op, "predictor", dimInPre, c, errors.AxisColumns)
	}
	return nil
}

// Kind reports how p was built.
func (p *Preconditioner) Kind() Kind { return p.kind }

// DimIn returns the input dimensionality.
func (p *Preconditioner) DimIn() int { return p.in.DimIn() }

// DimInPre returns the preconditioned input dimensionality.
func (p *Preconditioner) DimInPre() int { return p.in.DimInPre() }

// DimOut returns the output dimensionality.
func (p *Preconditioner) DimOut() int { return p.meanOut.Len() }

// DimOutPre returns the preconditioned output dimensionality. preOut is
// square, so it equals DimOut.
func (p *Preconditioner) DimOutPre() int {
	r, _ := p.preOut.Dims()
	return r
}

// NumComponents returns the number of retained input components.
func (p *Preconditioner) NumComponents() int { return p.DimInPre() }

// checkPair validates a paired input/output argument: equal column counts
// and the expected row counts.
func checkPair(op string, input, output mat.Matrix, dimIn, dimOut int) error {
	rIn, cIn := input.Dims()
	rOut, cOut := output.Dims()
	if cOut != cIn {
		return errors.NewArgumentDimensionError(op, "output", cIn, cOut, errors.AxisColumns)
	}
	if rIn != dimIn {
		return errors.NewArgumentDimensionError(op, "input", dimIn, rIn, errors.AxisRows)
	}
	if rOut != dimOut {
		return errors.NewArgumentDimensionError(op, "output", dimOut, rOut, errors.AxisRows)
	}
	return nil
}

// Forward preconditions paired samples. Rows of input and output must match
// DimIn and DimOut and both must have the same number of columns.
func (p *Preconditioner) Forward(input, output mat.Matrix) (inputTr, outputTr *mat.Dense, err error) {
	const op = "Preconditioner.Forward"
	defer errors.Recover(&err, op)

	if err = checkPair(op, input, output, p.DimIn(), p.DimOut()); err != nil {
		return nil, nil, err
	}
	_, n := input.Dims()
	if n == 0 {
		return &mat.Dense{}, &mat.Dense{}, nil
	}

	inputTr = p.in.forward(input)

	residual := center(output, p.meanOut)
	var predicted mat.Dense
	predicted.Mul(p.predictor, inputTr)
	residual.Sub(residual, &predicted)

	outputTr = mat.NewDense(p.DimOutPre(), n, nil)
	outputTr.Mul(p.preOut, residual)
	return inputTr, outputTr, nil
}

// ForwardInput preconditions input samples only.
func (p *Preconditioner) ForwardInput(input mat.Matrix) (*mat.Dense, error) {
	return p.in.Forward(input)
}

// Inverse maps preconditioned samples back to the original space. Rows of
// input and output must match DimInPre and DimOutPre.
func (p *Preconditioner) Inverse(input, output mat.Matrix) (origInput, origOutput *mat.Dense, err error) {
	const op = "Preconditioner.Inverse"
	defer errors.Recover(&err, op)

	if err = checkPair(op, input, output, p.DimInPre(), p.DimOutPre()); err != nil {
		return nil, nil, err
	}
	_, n := input.Dims()
	if n == 0 {
		return &mat.Dense{}, &mat.Dense{}, nil
	}

	origOutput = mat.NewDense(p.DimOut(), n, nil)
	origOutput.Mul(p.preOutInv, output)
	var predicted mat.Dense
	predicted.Mul(p.predictor, input)
	origOutput.Add(origOutput, &predicted)
	addMean(origOutput, p.meanOut)

	origInput = p.in.inverse(input)
	return origInput, origOutput, nil
}

// InverseInput maps preconditioned input samples back to the original space.
func (p *Preconditioner) InverseInput(input mat.Matrix) (*mat.Dense, error) {
	return p.in.Inverse(input)
}

// LogJacobian returns log|det preOut| once per sample column. The arguments
// are original-space samples and are only used for their shape.
//
// Only the output map contributes; the input density is assumed to be
// evaluated elsewhere.
func (p *Preconditioner) LogJacobian(input, output mat.Matrix) ([]float64, error) {
	const op = "Preconditioner.LogJacobian"
	if err := checkPair(op, input, output, p.DimIn(), p.DimOut()); err != nil {
		return nil, err
	}
	_, n := input.Dims()
	values := make([]float64, n)
	for i := range values {
		values[i] = p.logJacobian
	}
	return values, nil
}

// LogDetPreOut returns the constant that LogJacobian broadcasts.
func (p *Preconditioner) LogDetPreOut() float64 { return p.logJacobian }

// AdjustGradient converts gradients taken with respect to preconditioned
// samples into gradients with respect to the original samples:
//
//	inputGrad  = preInᵀ·inputGradTr − (preOut·predictor·preIn)ᵀ·outputGradTr
//	outputGrad = preOutᵀ·outputGradTr
func (p *Preconditioner) AdjustGradient(inputGradTr, outputGradTr mat.Matrix) (inputGrad, outputGrad *mat.Dense, err error) {
	const op = "Preconditioner.AdjustGradient"
	defer errors.Recover(&err, op)

	if err = checkPair(op, inputGradTr, outputGradTr, p.DimInPre(), p.DimOutPre()); err != nil {
		return nil, nil, err
	}
	_, n := inputGradTr.Dims()
	if n == 0 {
		return &mat.Dense{}, &mat.Dense{}, nil
	}

	inputGrad = mat.NewDense(p.DimIn(), n, nil)
	inputGrad.Mul(p.in.preIn.T(), inputGradTr)
	var indirect mat.Dense
	indirect.Mul(p.gradTransform.T(), outputGradTr)
	inputGrad.Sub(inputGrad, &indirect)

	outputGrad = mat.NewDense(p.DimOut(), n, nil)
	outputGrad.Mul(p.preOut.T(), outputGradTr)
	return inputGrad, outputGrad, nil
}

// InputTransform returns the input side of p as a Transform.
func (p *Preconditioner) InputTransform() *Transform {
	return &Transform{meanIn: p.in.meanIn, preIn: p.in.preIn, preInInv: p.in.preInInv}
}

// MeanIn returns a copy of the input mean.
func (p *Preconditioner) MeanIn() *mat.VecDense { return p.in.MeanIn() }

// MeanOut returns a copy of the output mean.
func (p *Preconditioner) MeanOut() *mat.VecDense { return copyVec(p.meanOut) }

// PreIn returns a copy of the input map.
func (p *Preconditioner) PreIn() *mat.Dense { return p.in.PreIn() }

// PreInInv returns a copy of the inverse input map.
func (p *Preconditioner) PreInInv() *mat.Dense { return p.in.PreInInv() }

// PreOut returns a copy of the output map.
func (p *Preconditioner) PreOut() *mat.Dense { return copyDense(p.preOut) }

// PreOutInv returns a copy of the inverse output map.
func (p *Preconditioner) PreOutInv() *mat.Dense { return copyDense(p.preOutInv) }

// Predictor returns a copy of the predictor.
func (p *Preconditioner) Predictor() *mat.Dense { return copyDense(p.predictor) }

// Eigenvalues returns a copy of the ascending input spectrum, or nil if p
// was not estimated by PCA.
func (p *Preconditioner) Eigenvalues() []float64 {
	if p.eigenvalues == nil {
		return nil
	}
	return append([]float64(nil), p.eigenvalues...)
}

// Parameters returns deep copies of every parameter of p.
func (p *Preconditioner) Parameters() Parameters {
	return Parameters{
		Kind:        p.kind,
		MeanIn:      p.MeanIn(),
		MeanOut:     p.MeanOut(),
		PreIn:       p.PreIn(),
		PreInInv:    p.PreInInv(),
		PreOut:      p.PreOut(),
		PreOutInv:   p.PreOutInv(),
		Predictor:   p.Predictor(),
		Eigenvalues: p.Eigenvalues(),
	}
}

func (p *Preconditioner) String() string {
	return fmt.Sprintf("%s(dim_in=%d, dim_in_pre=%d, dim_out=%d)", p.kind, p.DimIn(), p.DimInPre(), p.DimOut())
}

package preconditioner

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/precond/pkg/errors"
)

// Transform centres input samples and applies a linear map. The inverse map
// is stored explicitly. Samples are columns.
//
// A Transform is immutable once constructed and safe for concurrent use.
type Transform struct {
	meanIn   *mat.VecDense
	preIn    *mat.Dense
	preInInv *mat.Dense
}

// NewTransform creates a Transform from its mean, map and inverse map. The
// arguments are copied. preIn must be dimInPre × dimIn and preInInv
// dimIn × dimInPre, where dimIn is the length of meanIn.
func NewTransform(meanIn *mat.VecDense, preIn, preInInv *mat.Dense) (*Transform, error) {
	const op = "NewTransform"
	if err := checkTransform(op, meanIn, preIn, preInInv); err != nil {
		return nil, err
	}
	return &Transform{
		meanIn:   copyVec(meanIn),
		preIn:    copyDense(preIn),
		preInInv: copyDense(preInInv),
	}, nil
}

func checkTransform(op string, meanIn *mat.VecDense, preIn, preInInv *mat.Dense) error {
	dimIn := vecLen(meanIn)
	if dimIn < 1 {
		return errors.NewArgumentDimensionError(op, "meanIn", 1, dimIn, errors.AxisRows)
	}
	dimInPre, c := dims(preIn)
	if dimInPre < 1 {
		return errors.NewArgumentDimensionError(op, "preIn", 1, dimInPre, errors.AxisRows)
	}
	if c != dimIn {
		return errors.NewArgumentDimensionError(op, "preIn", dimIn, c, errors.AxisColumns)
	}
	r, c := dims(preInInv)
	if r != dimIn {
		return errors.NewArgumentDimensionError(op, "preInInv", dimIn, r, errors.AxisRows)
	}
	if c != dimInPre {
		return errors.NewArgumentDimensionError(op, "preInInv", dimInPre, c, errors.AxisColumns)
	}
	return nil
}

// DimIn returns the dimensionality of the original input space.
func (t *Transform) DimIn() int {
	return t.meanIn.Len()
}

// DimInPre returns the dimensionality of the preconditioned input space.
func (t *Transform) DimInPre() int {
	r, _ := t.preIn.Dims()
	return r
}

// Forward computes preIn·(input − meanIn).
func (t *Transform) Forward(input mat.Matrix) (*mat.Dense, error) {
	const op = "Transform.Forward"
	r, _ := input.Dims()
	if r != t.DimIn() {
		return nil, errors.NewArgumentDimensionError(op, "input", t.DimIn(), r, errors.AxisRows)
	}
	return t.forward(input), nil
}

// Inverse computes preInInv·input + meanIn.
func (t *Transform) Inverse(input mat.Matrix) (*mat.Dense, error) {
	const op = "Transform.Inverse"
	r, _ := input.Dims()
	if r != t.DimInPre() {
		return nil, errors.NewArgumentDimensionError(op, "input", t.DimInPre(), r, errors.AxisRows)
	}
	return t.inverse(input), nil
}

// forward and inverse assume validated shapes. Zero columns give an empty
// Dense since gonum cannot allocate r×0 matrices.
func (t *Transform) forward(input mat.Matrix) *mat.Dense {
	_, n := input.Dims()
	if n == 0 {
		return &mat.Dense{}
	}
	centered := center(input, t.meanIn)
	out := mat.NewDense(t.DimInPre(), n, nil)
	out.Mul(t.preIn, centered)
	return out
}

func (t *Transform) inverse(input mat.Matrix) *mat.Dense {
	_, n := input.Dims()
	if n == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(t.DimIn(), n, nil)
	out.Mul(t.preInInv, input)
	addMean(out, t.meanIn)
	return out
}

// MeanIn returns a copy of the input mean.
func (t *Transform) MeanIn() *mat.VecDense { return copyVec(t.meanIn) }

// PreIn returns a copy of the input map.
func (t *Transform) PreIn() *mat.Dense { return copyDense(t.preIn) }

// PreInInv returns a copy of the inverse input map.
func (t *Transform) PreInInv() *mat.Dense { return copyDense(t.preInInv) }

func (t *Transform) String() string {
	return fmt.Sprintf("Transform(dim_in=%d, dim_in_pre=%d)", t.DimIn(), t.DimInPre())
}

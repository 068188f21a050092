package preconditioner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/precond/pkg/errors"
)

func newTestTransform(t *testing.T) *Transform {
	t.Helper()
	tr, err := NewTransform(
		mat.NewVecDense(2, []float64{1, 2}),
		mat.NewDense(2, 2, []float64{2, 0, 1, 1}),
		mat.NewDense(2, 2, []float64{0.5, 0, -0.5, 1}),
	)
	require.NoError(t, err)
	return tr
}

func TestTransformForwardInverse(t *testing.T) {
	tr := newTestTransform(t)
	assert.Equal(t, 2, tr.DimIn())
	assert.Equal(t, 2, tr.DimInPre())

	input := mat.NewDense(2, 3, []float64{
		2, 1, 0,
		5, 2, -1,
	})
	forward, err := tr.Forward(input)
	require.NoError(t, err)

	// preIn·(x − meanIn) for each column
	want := mat.NewDense(2, 3, []float64{
		2, 0, -2,
		4, 0, -4,
	})
	assert.True(t, mat.EqualApprox(want, forward, 1e-12), "forward:\n%v", mat.Formatted(forward))

	back, err := tr.Inverse(forward)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(input, back, 1e-12), "inverse:\n%v", mat.Formatted(back))
}

func TestTransformDimensionGuard(t *testing.T) {
	tr := newTestTransform(t)

	_, err := tr.Forward(mat.NewDense(3, 4, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidDimension))

	var dimErr *errors.DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Got)
	assert.Equal(t, errors.AxisRows, dimErr.Axis)

	_, err = tr.Inverse(mat.NewDense(1, 4, nil))
	assert.True(t, errors.Is(err, errors.ErrInvalidDimension))
}

func TestTransformEmptyBatch(t *testing.T) {
	tr := newTestTransform(t)
	out, err := tr.Forward(emptyColumns{rows: 2})
	require.NoError(t, err)
	assert.True(t, out.IsEmpty())
}

func TestNewTransformValidation(t *testing.T) {
	mean := mat.NewVecDense(3, nil)
	tests := []struct {
		name     string
		meanIn   *mat.VecDense
		preIn    *mat.Dense
		preInInv *mat.Dense
	}{
		{"nil mean", nil, mat.NewDense(2, 3, nil), mat.NewDense(3, 2, nil)},
		{"map columns", mean, mat.NewDense(2, 2, nil), mat.NewDense(3, 2, nil)},
		{"inverse rows", mean, mat.NewDense(2, 3, nil), mat.NewDense(2, 2, nil)},
		{"inverse columns", mean, mat.NewDense(2, 3, nil), mat.NewDense(3, 3, nil)},
		{"missing map", mean, nil, mat.NewDense(3, 2, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransform(tt.meanIn, tt.preIn, tt.preInInv)
			assert.True(t, errors.Is(err, errors.ErrInvalidDimension), "got %v", err)
		})
	}

	// rectangular maps are valid
	tr, err := NewTransform(mean, mat.NewDense(2, 3, nil), mat.NewDense(3, 2, nil))
	require.NoError(t, err)
	assert.Equal(t, 3, tr.DimIn())
	assert.Equal(t, 2, tr.DimInPre())
}

func TestTransformAccessorsCopy(t *testing.T) {
	tr := newTestTransform(t)
	preIn := tr.PreIn()
	preIn.Set(0, 0, 100)
	mean := tr.MeanIn()
	mean.SetVec(0, 100)

	assert.Equal(t, 2.0, tr.PreIn().At(0, 0))
	assert.Equal(t, 1.0, tr.MeanIn().AtVec(0))
	assert.Equal(t, "Transform(dim_in=2, dim_in_pre=2)", tr.String())
}

package preconditioner

import (
	"bytes"
	"encoding/gob"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/precond/pkg/errors"
	"github.com/YuminosukeSato/precond/pkg/log"
)

// explicitPreconditioner has hand-checkable parameters:
//
//	meanIn = [1 2], preIn = [2 0; 1 1], meanOut = [3], preOut = [0.5],
//	predictor = [1 −1]
func explicitPreconditioner(t *testing.T) *Preconditioner {
	t.Helper()
	p, err := FromParameters(
		mat.NewVecDense(2, []float64{1, 2}),
		mat.NewVecDense(1, []float64{3}),
		mat.NewDense(2, 2, []float64{2, 0, 1, 1}),
		mat.NewDense(1, 1, []float64{0.5}),
		mat.NewDense(1, 2, []float64{1, -1}),
	)
	require.NoError(t, err)
	return p
}

func TestFromParametersForward(t *testing.T) {
	p := explicitPreconditioner(t)
	assert.Equal(t, KindAffine, p.Kind())
	assert.Equal(t, 2, p.DimIn())
	assert.Equal(t, 2, p.DimInPre())
	assert.Equal(t, 1, p.DimOut())
	assert.Equal(t, 1, p.DimOutPre())

	input := mat.NewDense(2, 1, []float64{2, 5})
	output := mat.NewDense(1, 1, []float64{10})

	inputTr, outputTr, err := p.Forward(input, output)
	require.NoError(t, err)

	// inputTr = [2 0; 1 1]·[1 3] = [2 4]
	assert.InDelta(t, 2, inputTr.At(0, 0), 1e-12)
	assert.InDelta(t, 4, inputTr.At(1, 0), 1e-12)
	// outputTr = 0.5·(10 − 3 − (2 − 4)) = 4.5
	assert.InDelta(t, 4.5, outputTr.At(0, 0), 1e-12)

	assert.True(t, mat.EqualApprox(mat.NewDense(2, 2, []float64{0.5, 0, -0.5, 1}), p.PreInInv(), 1e-12))
	assert.InDelta(t, 2, p.PreOutInv().At(0, 0), 1e-12)
}

func TestFromParametersRoundTrip(t *testing.T) {
	p := explicitPreconditioner(t)
	input := standardNormal(2, 20, 1)
	output := standardNormal(1, 20, 2)

	inputTr, outputTr, err := p.Forward(input, output)
	require.NoError(t, err)
	gotIn, gotOut, err := p.Inverse(inputTr, outputTr)
	require.NoError(t, err)

	assert.True(t, mat.EqualApprox(input, gotIn, 1e-12))
	assert.True(t, mat.EqualApprox(output, gotOut, 1e-12))
}

func TestForwardInputMatchesJointForward(t *testing.T) {
	p := explicitPreconditioner(t)
	input := standardNormal(2, 5, 3)
	output := standardNormal(1, 5, 4)

	joint, _, err := p.Forward(input, output)
	require.NoError(t, err)
	only, err := p.ForwardInput(input)
	require.NoError(t, err)
	assert.True(t, mat.Equal(joint, only))

	back, err := p.InverseInput(only)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(input, back, 1e-12))
}

func TestLogJacobianIsConstant(t *testing.T) {
	p, err := FromParameters(
		mat.NewVecDense(1, []float64{0}),
		mat.NewVecDense(2, []float64{1, 1}),
		mat.NewDense(1, 1, []float64{1}),
		mat.NewDense(2, 2, []float64{2, 1, 0, 3}),
		mat.NewDense(2, 1, []float64{0.2, -0.7}),
	)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(6), p.LogDetPreOut(), 1e-12)

	for seed := uint64(0); seed < 3; seed++ {
		n := 4 + int(seed)
		values, err := p.LogJacobian(standardNormal(1, n, seed), standardNormal(2, n, seed+10))
		require.NoError(t, err)
		require.Len(t, values, n)
		for _, v := range values {
			assert.Equal(t, p.LogDetPreOut(), v)
		}
	}
}

func TestAdjustGradientExplicit(t *testing.T) {
	p := explicitPreconditioner(t)

	// gradTransform = 0.5·[1 −1]·[2 0; 1 1] = [0.5 −0.5]
	inputGrad, outputGrad, err := p.AdjustGradient(
		mat.NewDense(2, 1, []float64{1, 0}),
		mat.NewDense(1, 1, []float64{2}),
	)
	require.NoError(t, err)
	assert.InDelta(t, 1, inputGrad.At(0, 0), 1e-12)
	assert.InDelta(t, 1, inputGrad.At(1, 0), 1e-12)
	assert.InDelta(t, 1, outputGrad.At(0, 0), 1e-12)
}

func TestAdjustGradientMatchesFiniteDifferences(t *testing.T) {
	input, output := correlatedPair(200, 7)

	whitening, err := NewWhitening(input, output)
	require.NoError(t, err)
	pca, err := NewPCA(input, output, WithNumComponents(2))
	require.NoError(t, err)

	for _, p := range []*Preconditioner{whitening, pca} {
		t.Run(p.Kind().String(), func(t *testing.T) {
			const n = 4
			x := standardNormal(p.DimIn(), n, 11)
			y := standardNormal(p.DimOut(), n, 12)
			w1 := standardNormal(p.DimInPre(), n, 13)
			w2 := standardNormal(p.DimOutPre(), n, 14)

			// f = Σ w1·sin(xTr) + ½ Σ w2·yTr²
			objective := func(x, y mat.Matrix) float64 {
				xTr, yTr, err := p.Forward(x, y)
				require.NoError(t, err)
				var f float64
				r, c := xTr.Dims()
				for i := 0; i < r; i++ {
					for j := 0; j < c; j++ {
						f += w1.At(i, j) * math.Sin(xTr.At(i, j))
					}
				}
				r, c = yTr.Dims()
				for i := 0; i < r; i++ {
					for j := 0; j < c; j++ {
						f += 0.5 * w2.At(i, j) * yTr.At(i, j) * yTr.At(i, j)
					}
				}
				return f
			}

			xTr, yTr, err := p.Forward(x, y)
			require.NoError(t, err)
			gradIn := mat.NewDense(p.DimInPre(), n, nil)
			gradIn.Apply(func(i, j int, v float64) float64 {
				return w1.At(i, j) * math.Cos(v)
			}, xTr)
			gradOut := mat.NewDense(p.DimOutPre(), n, nil)
			gradOut.MulElem(w2, yTr)

			gx, gy, err := p.AdjustGradient(gradIn, gradOut)
			require.NoError(t, err)

			const h = 1e-6
			numeric := func(m *mat.Dense, i, j int, eval func(*mat.Dense) float64) float64 {
				plus := mat.DenseCopyOf(m)
				plus.Set(i, j, m.At(i, j)+h)
				minus := mat.DenseCopyOf(m)
				minus.Set(i, j, m.At(i, j)-h)
				return (eval(plus) - eval(minus)) / (2 * h)
			}
			for i := 0; i < p.DimIn(); i++ {
				for j := 0; j < n; j++ {
					fd := numeric(x, i, j, func(m *mat.Dense) float64 { return objective(m, y) })
					assert.InDelta(t, fd, gx.At(i, j), 1e-6, "input gradient (%d, %d)", i, j)
				}
			}
			for i := 0; i < p.DimOut(); i++ {
				for j := 0; j < n; j++ {
					fd := numeric(y, i, j, func(m *mat.Dense) float64 { return objective(x, m) })
					assert.InDelta(t, fd, gy.At(i, j), 1e-6, "output gradient (%d, %d)", i, j)
				}
			}
		})
	}
}

func TestDimensionGuard(t *testing.T) {
	p := explicitPreconditioner(t)
	good2 := mat.NewDense(2, 3, nil)
	good1 := mat.NewDense(1, 3, nil)

	tests := []struct {
		name string
		call func() error
	}{
		{"forward input rows", func() error {
			_, _, err := p.Forward(mat.NewDense(3, 3, nil), good1)
			return err
		}},
		{"forward output rows", func() error {
			_, _, err := p.Forward(good2, mat.NewDense(2, 3, nil))
			return err
		}},
		{"forward column mismatch", func() error {
			_, _, err := p.Forward(good2, mat.NewDense(1, 4, nil))
			return err
		}},
		{"forward input only", func() error {
			_, err := p.ForwardInput(mat.NewDense(1, 3, nil))
			return err
		}},
		{"inverse input rows", func() error {
			_, _, err := p.Inverse(mat.NewDense(1, 3, nil), good1)
			return err
		}},
		{"inverse column mismatch", func() error {
			_, _, err := p.Inverse(good2, mat.NewDense(1, 2, nil))
			return err
		}},
		{"inverse input only", func() error {
			_, err := p.InverseInput(mat.NewDense(4, 3, nil))
			return err
		}},
		{"log-jacobian output rows", func() error {
			_, err := p.LogJacobian(good2, mat.NewDense(2, 3, nil))
			return err
		}},
		{"gradient output rows", func() error {
			_, _, err := p.AdjustGradient(good2, mat.NewDense(3, 3, nil))
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidDimension), "got %v", err)
		})
	}
}

func TestForwardEmptyBatch(t *testing.T) {
	p := explicitPreconditioner(t)

	inputTr, outputTr, err := p.Forward(emptyColumns{rows: 2}, emptyColumns{rows: 1})
	require.NoError(t, err)
	assert.True(t, inputTr.IsEmpty())
	assert.True(t, outputTr.IsEmpty())

	values, err := p.LogJacobian(emptyColumns{rows: 2}, emptyColumns{rows: 1})
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestFromParametersValidation(t *testing.T) {
	mean2 := mat.NewVecDense(2, nil)
	mean1 := mat.NewVecDense(1, nil)
	eye2 := eye(2)
	eye1 := eye(1)

	_, err := FromParameters(mean2, mean1, mat.NewDense(1, 2, nil), eye1, mat.NewDense(1, 2, nil))
	assert.True(t, errors.Is(err, errors.ErrInvalidDimension), "non-square input map")

	_, err = FromParameters(mean2, mean1, eye2, eye2, mat.NewDense(1, 2, nil))
	assert.True(t, errors.Is(err, errors.ErrInvalidDimension), "output map does not match mean")

	_, err = FromParameters(mean2, mean1, eye2, eye1, mat.NewDense(1, 3, nil))
	assert.True(t, errors.Is(err, errors.ErrInvalidDimension), "predictor columns")

	_, err = FromParameters(mean2, nil, eye2, eye1, mat.NewDense(1, 2, nil))
	assert.True(t, errors.Is(err, errors.ErrInvalidDimension), "missing output mean")
}

func TestFromParametersSingularMapWarns(t *testing.T) {
	logs := captureLogs(t, log.LevelDebug)

	p, err := FromParameters(
		mat.NewVecDense(1, nil),
		mat.NewVecDense(2, nil),
		eye(1),
		mat.NewDense(2, 2, []float64{1, 2, 2, 4}),
		mat.NewDense(2, 1, nil),
	)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(p.PreOutInv().At(0, 0)))
	assert.True(t, math.IsInf(p.LogDetPreOut(), -1))
	assert.True(t, strings.Contains(logs(), "ill-conditioned"), logs())
	assert.True(t, strings.Contains(logs(), "preOut"), logs())
}

func TestRestoreIsBitIdentical(t *testing.T) {
	input, output := correlatedPair(150, 21)
	p, err := NewPCA(input, output, WithNumComponents(2))
	require.NoError(t, err)

	restored, err := Restore(p.Parameters())
	require.NoError(t, err)
	assert.Equal(t, KindPCA, restored.Kind())
	assert.Equal(t, p.Eigenvalues(), restored.Eigenvalues())
	assert.Equal(t, p.LogDetPreOut(), restored.LogDetPreOut())

	x, y := correlatedPair(30, 99)
	wantIn, wantOut, err := p.Forward(x, y)
	require.NoError(t, err)
	gotIn, gotOut, err := restored.Forward(x, y)
	require.NoError(t, err)
	assert.True(t, mat.Equal(wantIn, gotIn))
	assert.True(t, mat.Equal(wantOut, gotOut))

	wantX, wantY, err := p.Inverse(wantIn, wantOut)
	require.NoError(t, err)
	gotX, gotY, err := restored.Inverse(gotIn, gotOut)
	require.NoError(t, err)
	assert.True(t, mat.Equal(wantX, gotX))
	assert.True(t, mat.Equal(wantY, gotY))
}

func TestParametersSurviveGob(t *testing.T) {
	input, output := correlatedPair(120, 5)
	p, err := NewWhitening(input, output)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(p.Parameters()))
	var decoded Parameters
	require.NoError(t, gob.NewDecoder(&buf).Decode(&decoded))

	restored, err := Restore(decoded)
	require.NoError(t, err)
	assert.Equal(t, KindWhitening, restored.Kind())
	assert.Nil(t, restored.Eigenvalues())

	wantIn, wantOut, err := p.Forward(input, output)
	require.NoError(t, err)
	gotIn, gotOut, err := restored.Forward(input, output)
	require.NoError(t, err)
	assert.True(t, mat.Equal(wantIn, gotIn))
	assert.True(t, mat.Equal(wantOut, gotOut))
}

func TestRestoreValidation(t *testing.T) {
	input, output := correlatedPair(50, 3)
	p, err := NewPCA(input, output)
	require.NoError(t, err)

	params := p.Parameters()
	params.Eigenvalues = params.Eigenvalues[:1]
	_, err = Restore(params)
	assert.True(t, errors.Is(err, errors.ErrInvalidDimension))

	params = p.Parameters()
	params.PreOutInv = nil
	_, err = Restore(params)
	assert.True(t, errors.Is(err, errors.ErrInvalidDimension))

	params = p.Parameters()
	params.Predictor = mat.NewDense(p.DimOut(), p.DimIn()+1, nil)
	_, err = Restore(params)
	assert.True(t, errors.Is(err, errors.ErrInvalidDimension))
}

func TestParametersAreCopies(t *testing.T) {
	p := explicitPreconditioner(t)

	params := p.Parameters()
	params.PreIn.Set(0, 0, 42)
	params.MeanOut.SetVec(0, 42)
	p.Predictor().Set(0, 0, 42)

	assert.Equal(t, 2.0, p.PreIn().At(0, 0))
	assert.Equal(t, 3.0, p.MeanOut().AtVec(0))
	assert.Equal(t, 1.0, p.Predictor().At(0, 0))
	assert.Equal(t, "AffinePreconditioner(dim_in=2, dim_in_pre=2, dim_out=1)", p.String())
}

func TestConcurrentReaders(t *testing.T) {
	input, output := correlatedPair(300, 8)
	p, err := NewWhitening(input, output)
	require.NoError(t, err)

	wantIn, wantOut, err := p.Forward(input, output)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gotIn, gotOut, err := p.Forward(input, output)
			assert.NoError(t, err)
			assert.True(t, mat.EqualApprox(wantIn, gotIn, 1e-12))
			assert.True(t, mat.EqualApprox(wantOut, gotOut, 1e-12))

			x, y, err := p.Inverse(gotIn, gotOut)
			assert.NoError(t, err)
			assert.True(t, mat.EqualApprox(input, x, 1e-9))
			assert.True(t, mat.EqualApprox(output, y, 1e-9))

			_, err = p.LogJacobian(input, output)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

package preconditioner

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/precond/core/parallel"
	"github.com/YuminosukeSato/precond/pkg/errors"
)

// EigenvalueFloor is the smallest eigenvalue that is scaled by its inverse
// square root. Smaller eigenvalues are replaced by 1, so near-constant
// directions pass through unscaled instead of being blown up.
const EigenvalueFloor = 1e-8

// dims returns the shape of m, treating nil and empty matrices as 0×0.
func dims(m mat.Matrix) (r, c int) {
	if m == nil {
		return 0, 0
	}
	if d, ok := m.(*mat.Dense); ok && (d == nil || d.IsEmpty()) {
		return 0, 0
	}
	return m.Dims()
}

func vecLen(v *mat.VecDense) int {
	if v == nil || v.IsEmpty() {
		return 0
	}
	return v.Len()
}

// rowMeans returns the mean of each row of m. Samples are columns; a matrix
// without samples has zero means.
func rowMeans(m mat.Matrix) *mat.VecDense {
	r, c := m.Dims()
	means := mat.NewVecDense(r, nil)
	if c == 0 {
		return means
	}
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, m)
		means.SetVec(i, stat.Mean(row, nil))
	}
	return means
}

// center returns m with mean subtracted from every column.
func center(m mat.Matrix, mean *mat.VecDense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	parallel.ParallelizeWithThreshold(c, parallel.DefaultThreshold, func(start, end int) {
		for j := start; j < end; j++ {
			for i := 0; i < r; i++ {
				out.Set(i, j, m.At(i, j)-mean.AtVec(i))
			}
		}
	})
	return out
}

// addMean adds mean to every column of m in place.
func addMean(m *mat.Dense, mean *mat.VecDense) {
	r, c := m.Dims()
	parallel.ParallelizeWithThreshold(c, parallel.DefaultThreshold, func(start, end int) {
		for j := start; j < end; j++ {
			for i := 0; i < r; i++ {
				m.Set(i, j, m.At(i, j)+mean.AtVec(i))
			}
		}
	})
}

// covariance returns the unbiased covariance of the rows of the vertically
// stacked blocks, which must share their column (sample) count. With fewer
// than two samples the covariance is zero.
func covariance(blocks ...mat.Matrix) *mat.SymDense {
	d, n := 0, 0
	for _, b := range blocks {
		r, c := b.Dims()
		d += r
		n = c
	}
	cov := mat.NewSymDense(d, nil)
	if n < 2 {
		return cov
	}

	// stat expects one observation per row
	observations := mat.NewDense(n, d, nil)
	offset := 0
	for _, b := range blocks {
		r, _ := b.Dims()
		for j := 0; j < n; j++ {
			for i := 0; i < r; i++ {
				observations.Set(j, offset+i, b.At(i, j))
			}
		}
		offset += r
	}
	stat.CovarianceMatrix(cov, observations, nil)
	return cov
}

// block copies the rows [i0, i1) and columns [j0, j1) of m.
func block(m mat.Matrix, i0, i1, j0, j1 int) *mat.Dense {
	out := mat.NewDense(i1-i0, j1-j0, nil)
	for i := i0; i < i1; i++ {
		for j := j0; j < j1; j++ {
			out.Set(i-i0, j-j0, m.At(i, j))
		}
	}
	return out
}

// symmetrize returns (a + aᵀ)/2 as a SymDense. Products such as covYY − P·Pᵀ
// are symmetric only up to rounding.
func symmetrize(a mat.Matrix) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (a.At(i, j)+a.At(j, i))/2)
		}
	}
	return s
}

// conditionalCovariance returns covYY − predictor·predictorᵀ, the covariance
// of the output residual once the whitened input has been regressed out.
func conditionalCovariance(covYY mat.Matrix, predictor *mat.Dense) *mat.SymDense {
	var explained mat.Dense
	explained.Mul(predictor, predictor.T())
	var residual mat.Dense
	residual.Sub(covYY, &explained)
	return symmetrize(&residual)
}

// eigen returns the ascending eigenvalues and matching eigenvectors (one per
// column) of a symmetric matrix.
func eigen(op string, a mat.Symmetric) ([]float64, *mat.Dense, error) {
	var es mat.EigenSym
	if ok := es.Factorize(a, true); !ok {
		return nil, nil, errors.NewModelError(op, "eigendecomposition", errors.ErrEigenDecomposition)
	}
	values := es.Values(nil)
	var vectors mat.Dense
	es.VectorsTo(&vectors)
	return values, &vectors, nil
}

// clampEigenvalues replaces eigenvalues below EigenvalueFloor by 1 and
// reports how many were replaced.
func clampEigenvalues(values []float64) ([]float64, int) {
	out := make([]float64, len(values))
	clamped := 0
	for i, v := range values {
		if v < EigenvalueFloor {
			out[i] = 1
			clamped++
			continue
		}
		out[i] = v
	}
	return out, clamped
}

// inverseSqrt returns the symmetric inverse square root V·diag(1/√λ)·Vᵀ of a
// covariance matrix together with its inverse V·diag(√λ)·Vᵀ.
func inverseSqrt(op string, cov mat.Symmetric) (white, whiteInv *mat.Dense, clamped int, err error) {
	values, vectors, err := eigen(op, cov)
	if err != nil {
		return nil, nil, 0, err
	}
	values, clamped = clampEigenvalues(values)

	n := len(values)
	scaled := mat.NewDense(n, n, nil)
	unscaled := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			s := math.Sqrt(values[j])
			scaled.Set(i, j, vectors.At(i, j)/s)
			unscaled.Set(i, j, vectors.At(i, j)*s)
		}
	}

	white = mat.NewDense(n, n, nil)
	white.Mul(scaled, vectors.T())
	whiteInv = mat.NewDense(n, n, nil)
	whiteInv.Mul(unscaled, vectors.T())
	return white, whiteInv, clamped, nil
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// invert computes a⁻¹. An ill-conditioned matrix is reported through
// errors.Warn; an exactly singular one yields an all-NaN inverse so the
// failure shows up in every downstream result.
func invert(op, name string, a mat.Matrix) *mat.Dense {
	r, _ := a.Dims()
	inv := mat.NewDense(r, r, nil)
	err := inv.Inverse(a)
	if err == nil {
		return inv
	}

	var cond mat.Condition
	if errors.As(err, &cond) {
		errors.Warn(errors.NewIllConditionedWarning(op, name, float64(cond)))
		if math.IsInf(float64(cond), 1) {
			nan := math.NaN()
			for i := 0; i < r; i++ {
				for j := 0; j < r; j++ {
					inv.Set(i, j, nan)
				}
			}
		}
		return inv
	}
	panic(err)
}

// logAbsDet returns Σ log|diag(U)| of the LU factorisation of a.
func logAbsDet(a mat.Matrix) float64 {
	var lu mat.LU
	lu.Factorize(a)
	logDet, _ := lu.LogDet()
	return logDet
}

func copyVec(v *mat.VecDense) *mat.VecDense {
	if v == nil {
		return nil
	}
	return mat.VecDenseCopyOf(v)
}

func copyDense(m mat.Matrix) *mat.Dense {
	if m == nil {
		return nil
	}
	return mat.DenseCopyOf(m)
}

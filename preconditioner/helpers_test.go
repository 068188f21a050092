package preconditioner

import (
	"math/rand/v2"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/precond/pkg/log"
)

// normalRows draws each row i from N(mu[i], sigma[i]²).
func normalRows(cols int, seed uint64, mu, sigma []float64) *mat.Dense {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	m := mat.NewDense(len(mu), cols, nil)
	for i := range mu {
		dist := distuv.Normal{Mu: mu[i], Sigma: sigma[i], Src: src}
		for j := 0; j < cols; j++ {
			m.Set(i, j, dist.Rand())
		}
	}
	return m
}

func standardNormal(rows, cols int, seed uint64) *mat.Dense {
	mu := make([]float64, rows)
	sigma := make([]float64, rows)
	for i := range sigma {
		sigma[i] = 1
	}
	return normalRows(cols, seed, mu, sigma)
}

// correlatedPair returns a 3-dimensional correlated input and a
// 2-dimensional output that depends linearly on it plus noise.
func correlatedPair(n int, seed uint64) (input, output *mat.Dense) {
	z := standardNormal(3, n, seed)
	mix := mat.NewDense(3, 3, []float64{
		2, 0, 0,
		0.5, 1, 0,
		-0.3, 0.4, 0.7,
	})
	input = mat.NewDense(3, n, nil)
	input.Mul(mix, z)
	addMean(input, mat.NewVecDense(3, []float64{1, -2, 0.5}))

	coupling := mat.NewDense(2, 3, []float64{
		0.8, -0.1, 0.3,
		0, 0.5, -0.4,
	})
	output = mat.NewDense(2, n, nil)
	output.Mul(coupling, input)
	output.Add(output, standardNormal(2, n, seed+1))
	addMean(output, mat.NewVecDense(2, []float64{3, -1}))
	return input, output
}

// sampleCovariance returns the covariance of the rows of m (columns are
// samples).
func sampleCovariance(m mat.Matrix) *mat.SymDense {
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, m.T(), nil)
	return &cov
}

func stack(top, bottom mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Stack(top, bottom)
	return &out
}

func assertIdentity(t *testing.T, m mat.Matrix, tol float64) {
	t.Helper()
	r, c := m.Dims()
	assert.Equal(t, r, c, "matrix is not square")
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, m.At(i, j), tol, "entry (%d, %d)", i, j)
		}
	}
}

// emptyColumns is an r×0 matrix; gonum's Dense cannot represent one.
type emptyColumns struct{ rows int }

func (e emptyColumns) Dims() (int, int) { return e.rows, 0 }
func (e emptyColumns) At(_, _ int) float64 { panic(mat.ErrIndexOutOfRange) }
func (e emptyColumns) T() mat.Matrix { return mat.Transpose{Matrix: e} }

// captureLogs routes logging to an in-memory provider for the duration of
// the test.
func captureLogs(t *testing.T, level log.Level) func() string {
	t.Helper()
	provider, buffer := log.NewTestLoggerProvider(level)
	log.SetProvider(provider)
	t.Cleanup(func() {
		log.SetProvider(log.NewZerologProvider(os.Stderr, log.LevelInfo))
	})
	return buffer.String
}

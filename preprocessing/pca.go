package preprocessing

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/precond/core/model"
	"github.com/YuminosukeSato/precond/pkg/errors"
	"github.com/YuminosukeSato/precond/pkg/log"
	"github.com/YuminosukeSato/precond/preconditioner"
	"github.com/YuminosukeSato/precond/spectrum"
)

var (
	_ model.InverseTransformer = (*PCA)(nil)
	_ model.ParameterGetter    = (*PCA)(nil)
)

// PCA projects samples onto their principal components and scales each
// component to unit variance.
type PCA struct {
	state *model.StateManager

	// NComponents is the requested number of components; values ≤ 0 select
	// the count from VarExplained.
	NComponents int

	// VarExplained is the percentage of variance the kept components must
	// exceed when NComponents is not set.
	VarExplained float64

	mu sync.RWMutex
	p  *preconditioner.Preconditioner
}

// NewPCA creates an unfitted PCA.
//
// Example:
//
//	pca := preprocessing.NewPCA(0, 95)
//	XReduced, err := pca.FitTransform(X)
func NewPCA(nComponents int, varExplained float64) *PCA {
	return &PCA{
		state:        model.NewStateManager(),
		NComponents:  nComponents,
		VarExplained: varExplained,
	}
}

// NewPCADefault keeps the components explaining
// preconditioner.DefaultVarExplained percent of the variance.
func NewPCADefault() *PCA {
	return NewPCA(0, preconditioner.DefaultVarExplained)
}

// Fit estimates the principal components of X (n_samples × n_features).
func (m *PCA) Fit(X mat.Matrix) (err error) {
	defer errors.Recover(&err, "PCA.Fit")

	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("PCA.Fit", "empty data", errors.ErrEmptyData)
	}

	p, err := preconditioner.NewPCATransform(X.T(), 1,
		preconditioner.WithVarExplained(m.VarExplained),
		preconditioner.WithNumComponents(m.NComponents),
	)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.p = p
	m.mu.Unlock()
	m.state.SetFitted(c, r, p.NumComponents())

	log.GetLoggerWithName("preprocessing").Debug("PCA fitted",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhasePreprocessing,
		log.SamplesKey, r,
		log.DimInKey, c,
		log.ComponentsKey, p.NumComponents(),
	)
	return nil
}

// Transform projects X onto the fitted components. The result has one
// column per component, ordered by increasing variance.
func (m *PCA) Transform(X mat.Matrix) (mat.Matrix, error) {
	nFeatures, _, _ := m.state.Dimensions()
	p, err := m.fitted("Transform", X, nFeatures)
	if err != nil {
		return nil, err
	}
	out, err := p.ForwardInput(X.T())
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(out.T()), nil
}

// FitTransform fits on X and returns its projection.
func (m *PCA) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform reconstructs samples in feature space from their
// component scores. Discarded components are lost, so the reconstruction is
// approximate unless every component was kept.
func (m *PCA) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	_, _, nComponents := m.state.Dimensions()
	p, err := m.fitted("InverseTransform", X, nComponents)
	if err != nil {
		return nil, err
	}
	out, err := p.InverseInput(X.T())
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(out.T()), nil
}

func (m *PCA) fitted(method string, X mat.Matrix, wantCols int) (*preconditioner.Preconditioner, error) {
	if err := m.state.RequireFitted("PCA", method); err != nil {
		return nil, err
	}
	if err := checkRows("PCA."+method, X, wantCols); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.p, nil
}

// NumComponents returns the number of kept components, or 0 before Fit.
func (m *PCA) NumComponents() int {
	_, _, k := m.state.Dimensions()
	return k
}

// ExplainedVarianceRatio returns the percentage of variance explained by
// each kept component, largest first.
func (m *PCA) ExplainedVarianceRatio() ([]float64, error) {
	if err := m.state.RequireFitted("PCA", "ExplainedVarianceRatio"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return spectrum.ExplainedVariance(m.p.Eigenvalues())[:m.p.NumComponents()], nil
}

// Preconditioner returns the fitted column-oriented preconditioner, or nil
// before Fit.
func (m *PCA) Preconditioner() *preconditioner.Preconditioner {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.p
}

// GetParams returns the PCA hyperparameters.
func (m *PCA) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_components":  m.NComponents,
		"var_explained": m.VarExplained,
	}
}

func (m *PCA) String() string {
	if !m.state.IsFitted() {
		return fmt.Sprintf("PCA(n_components=%d, var_explained=%g)", m.NComponents, m.VarExplained)
	}
	nFeatures, _, k := m.state.Dimensions()
	return fmt.Sprintf("PCA(n_components=%d, var_explained=%g, n_features=%d, kept=%d)",
		m.NComponents, m.VarExplained, nFeatures, k)
}

// Package preprocessing wraps the preconditioners in scikit-learn style
// transformers. Data here is row-major: one sample per row, one feature per
// column.
package preprocessing

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/precond/core/model"
	"github.com/YuminosukeSato/precond/pkg/errors"
	"github.com/YuminosukeSato/precond/pkg/log"
	"github.com/YuminosukeSato/precond/preconditioner"
)

var (
	_ model.InverseTransformer = (*Whitener)(nil)
	_ model.ParameterGetter    = (*Whitener)(nil)
)

// Whitener decorrelates features and scales them to unit variance, like a
// StandardScaler that also removes correlations. Eigen-directions with
// variance below preconditioner.EigenvalueFloor are left unscaled.
type Whitener struct {
	state *model.StateManager

	mu sync.RWMutex
	p  *preconditioner.Preconditioner
}

// NewWhitener creates an unfitted Whitener.
//
// Example:
//
//	w := preprocessing.NewWhitener()
//	XWhite, err := w.FitTransform(X)
func NewWhitener() *Whitener {
	return &Whitener{state: model.NewStateManager()}
}

// Fit estimates the feature means and the whitening map from X
// (n_samples × n_features).
func (w *Whitener) Fit(X mat.Matrix) (err error) {
	defer errors.Recover(&err, "Whitener.Fit")

	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("Whitener.Fit", "empty data", errors.ErrEmptyData)
	}

	// the preconditioner works on columns; the output side is unused
	p, err := preconditioner.NewWhiteningTransform(X.T(), 1)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.p = p
	w.mu.Unlock()
	w.state.SetFitted(c, r, c)

	log.GetLoggerWithName("preprocessing").Debug("Whitener fitted",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhasePreprocessing,
		log.SamplesKey, r,
		log.DimInKey, c,
	)
	return nil
}

// Transform whitens X with the fitted map.
func (w *Whitener) Transform(X mat.Matrix) (mat.Matrix, error) {
	p, err := w.fitted("Transform", X, w.nFeatures())
	if err != nil {
		return nil, err
	}
	out, err := p.ForwardInput(X.T())
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(out.T()), nil
}

// FitTransform fits on X and returns X whitened.
func (w *Whitener) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := w.Fit(X); err != nil {
		return nil, err
	}
	return w.Transform(X)
}

// InverseTransform maps whitened data back to the original feature space.
func (w *Whitener) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	p, err := w.fitted("InverseTransform", X, w.nFeatures())
	if err != nil {
		return nil, err
	}
	out, err := p.InverseInput(X.T())
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(out.T()), nil
}

func (w *Whitener) nFeatures() int {
	n, _, _ := w.state.Dimensions()
	return n
}

func (w *Whitener) fitted(method string, X mat.Matrix, wantCols int) (*preconditioner.Preconditioner, error) {
	if err := w.state.RequireFitted("Whitener", method); err != nil {
		return nil, err
	}
	if err := checkRows("Whitener."+method, X, wantCols); err != nil {
		return nil, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.p, nil
}

// Preconditioner returns the fitted column-oriented preconditioner, or nil
// before Fit.
func (w *Whitener) Preconditioner() *preconditioner.Preconditioner {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.p
}

// GetParams returns the Whitener's hyperparameters. It has none.
func (w *Whitener) GetParams() map[string]interface{} {
	return map[string]interface{}{}
}

func (w *Whitener) String() string {
	if !w.state.IsFitted() {
		return "Whitener()"
	}
	return fmt.Sprintf("Whitener(n_features=%d)", w.nFeatures())
}

// checkRows validates row-major data: at least one sample and wantCols
// features.
func checkRows(op string, X mat.Matrix, wantCols int) error {
	r, c := X.Dims()
	if r == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if c != wantCols {
		return errors.NewDimensionError(op, wantCols, c, errors.AxisColumns)
	}
	return nil
}

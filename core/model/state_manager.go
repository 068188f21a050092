// Package model provides the estimator interfaces and fitted-state tracking
// shared by the row-major adapters in package preprocessing.
package model

import (
	"sync"

	"github.com/YuminosukeSato/precond/pkg/errors"
)

// StateManager tracks whether an adapter has been fitted, together with the
// shape it was fitted on. It is safe for concurrent use.
type StateManager struct {
	mu sync.RWMutex

	fitted      bool
	nFeatures   int
	nSamples    int
	nComponents int
}

// NewStateManager returns an unfitted StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted reports whether SetFitted has been called since the last Reset.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted records a successful fit and the shape it was computed on.
func (s *StateManager) SetFitted(nFeatures, nSamples, nComponents int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
	s.nFeatures = nFeatures
	s.nSamples = nSamples
	s.nComponents = nComponents
}

// Reset forgets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nFeatures = 0
	s.nSamples = 0
	s.nComponents = 0
}

// Dimensions returns the number of features, samples and output components
// seen by the last fit.
func (s *StateManager) Dimensions() (nFeatures, nSamples, nComponents int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples, s.nComponents
}

// RequireFitted returns a NotFittedError naming modelName and method when the
// model has not been fitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}

package model

import "gonum.org/v1/gonum/mat"

// Transformer learns a data transform and applies it. Data passed to a
// Transformer is row-major: one sample per row.
type Transformer interface {
	// Fit learns the transform parameters.
	Fit(X mat.Matrix) error

	// Transform applies the learned transform.
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform runs Fit followed by Transform.
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// InverseTransformer maps transformed data back to the original space.
type InverseTransformer interface {
	Transformer

	// InverseTransform undoes Transform, exactly or approximately depending
	// on whether the transform reduces dimensionality.
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter exposes an estimator's hyperparameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

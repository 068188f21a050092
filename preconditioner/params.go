package preconditioner

import "gonum.org/v1/gonum/mat"

// Kind identifies how a Preconditioner was built.
type Kind int

const (
	// KindAffine is a preconditioner built from explicit parameters.
	KindAffine Kind = iota
	// KindWhitening is estimated by NewWhitening or NewWhiteningTransform.
	KindWhitening
	// KindPCA is estimated by NewPCA.
	KindPCA
	// KindPCATransform is estimated by NewPCATransform and models only the
	// input side.
	KindPCATransform
)

func (k Kind) String() string {
	switch k {
	case KindWhitening:
		return "WhiteningPreconditioner"
	case KindPCA:
		return "PCAPreconditioner"
	case KindPCATransform:
		return "PCATransform"
	default:
		return "AffinePreconditioner"
	}
}

// Parameters holds everything needed to rebuild a Preconditioner through
// Restore without re-estimation. The mat types implement
// encoding.BinaryMarshaler, so the struct can be persisted with encoding/gob
// or any codec the caller prefers.
type Parameters struct {
	Kind Kind

	MeanIn  *mat.VecDense
	MeanOut *mat.VecDense

	PreIn     *mat.Dense
	PreInInv  *mat.Dense
	PreOut    *mat.Dense
	PreOutInv *mat.Dense
	Predictor *mat.Dense

	// Eigenvalues is the full ascending input spectrum for PCA kinds and nil
	// otherwise.
	Eigenvalues []float64
}

// Package preconditioner centres, whitens and optionally reduces paired
// input/output samples before a conditional density model sees them, and
// maps results back.
//
// All data is column-oriented: each column of an input or output matrix is
// one sample, each row one dimension.
//
// A Preconditioner is built either from data or from parameters:
//
//	p, err := preconditioner.NewWhitening(input, output)
//	p, err := preconditioner.NewPCA(input, output, preconditioner.WithVarExplained(95))
//	p, err := preconditioner.NewPCATransform(input, dimOut, preconditioner.WithNumComponents(3))
//	p, err := preconditioner.FromParameters(meanIn, meanOut, preIn, preOut, predictor)
//	p, err := preconditioner.Restore(stored)
//
// Every variant shares the same protocol. Forward maps samples into the
// preconditioned space, Inverse maps them back, LogJacobian returns the
// density correction for the output change of variables and
// AdjustGradient converts gradients computed on preconditioned samples into
// gradients on the original samples.
//
// The output log-density of a model fitted on preconditioned data is
// recovered as
//
//	log p(y | x) = log q(yTr | xTr) + LogJacobian(x, y)
//
// Parameters returns deep copies of every parameter. Feeding them to
// Restore rebuilds an instance that computes bit-identical results, without
// re-estimation or matrix inversion.
//
// Shape errors wrap errors.ErrInvalidDimension from
// github.com/YuminosukeSato/precond/pkg/errors and are returned before any
// arithmetic happens. A Preconditioner never changes after construction and
// may be shared between goroutines.
package preconditioner

// Package precond provides affine preconditioners for density-estimation and
// regression models in Go.
//
// A preconditioner standardizes a pair of random vectors, an input x and an
// output y, before a model is trained on them. The input is centered and
// whitened (or projected onto its leading principal components), and the
// output is centered, has its best linear prediction from the input removed,
// and is whitened by its residual covariance. Every map is affine and
// invertible on its range, so densities and gradients computed in the
// preconditioned space can be carried back to the original one.
//
// # Installation
//
//	go get github.com/YuminosukeSato/precond
//
// # Quick Start
//
// Samples are stored as columns:
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/precond/preconditioner"
//	    "gonum.org/v1/gonum/mat"
//	)
//
//	func main() {
//	    input := mat.NewDense(2, 4, []float64{
//	        1, 2, 3, 4,
//	        2, 1, 4, 5,
//	    })
//	    output := mat.NewDense(1, 4, []float64{3, 3, 7, 9})
//
//	    p, err := preconditioner.NewWhitening(input, output)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    xTr, yTr, err := p.Forward(input, output)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(mat.Formatted(xTr), mat.Formatted(yTr), p.LogDetPreOut())
//	}
//
// # Packages
//
//   - preconditioner: whitening and PCA preconditioners, explicit
//     construction and parameter restore
//   - spectrum: explained-variance helpers and spectrum plots
//   - preprocessing: row-major Whitener and PCA transformers
//   - performance: streaming batches through preconditioners in parallel
//   - core/model: transformer interfaces and fitted-state tracking
//   - core/parallel: parallel loops used by the numerical kernels
//   - pkg/errors: structured errors and numerical warnings
//   - pkg/log: structured logging backed by zerolog
//
// # Error Handling
//
// Invalid shapes are reported as *errors.DimensionError, which matches
// errors.ErrInvalidDimension with errors.Is. Nearly singular maps are not
// errors: they raise an *errors.IllConditionedWarning through the
// configured warning handler, which logs it by default.
//
// # Logging
//
// Estimation logs through pkg/log. Call log.SetupLogger("debug") to see
// per-estimation details, or log.SetProvider to route logs elsewhere.
package precond

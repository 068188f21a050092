// Package log defines standard attribute keys for preconditioning operations.
//
// The keys follow a hierarchical naming convention ("data.samples",
// "pre.dim_in") so log lines can be filtered and aggregated by field.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator that produced the log line.
	// Examples: "WhiteningPreconditioner", "PCAPreconditioner", "PCATransform"
	ModelNameKey = "model.name"

	// OperationKey names the operation being performed.
	// Standard values: see the Operation* constants below.
	OperationKey = "ml.operation"

	// ComponentKey identifies the package doing the work.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	// SamplesKey is the number of samples (columns).
	SamplesKey = "data.samples"

	// BatchKey is the index of a batch in a streaming pipeline.
	BatchKey = "data.batch"

	// BatchSizeKey is the number of samples in a batch.
	BatchSizeKey = "data.batch_size"
)

// Preconditioner shape and spectrum.
const (
	// DimInKey is the input dimensionality before preconditioning.
	DimInKey = "pre.dim_in"

	// DimInPreKey is the input dimensionality after preconditioning.
	DimInPreKey = "pre.dim_in_pre"

	// DimOutKey is the output dimensionality.
	DimOutKey = "pre.dim_out"

	// ComponentsKey is the number of principal components kept.
	ComponentsKey = "pre.components"

	// VarExplainedKey is the requested variance-explained threshold in percent.
	VarExplainedKey = "pre.var_explained"

	// ClampedKey is the number of eigenvalues clamped to 1.
	ClampedKey = "pre.clamped"

	// EigenvaluesKey carries an eigen-spectrum.
	EigenvaluesKey = "pre.eigenvalues"

	// LogJacobianKey is the log-determinant of the output map.
	LogJacobianKey = "pre.log_jacobian"
)

// Performance.
const (
	// DurationMsKey is the execution time in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// WorkersKey is the number of concurrent workers.
	WorkersKey = "perf.workers"
)

// Error context.
const (
	// ErrorCodeKey is a structured error code.
	// Examples: "INVALID_DIMENSION", "ILL_CONDITIONED"
	ErrorCodeKey = "error.code"

	// ErrorTypeKey is the Go type of the error.
	ErrorTypeKey = "error.type"

	// SuggestionKey gives a hint for resolving the issue.
	SuggestionKey = "error.suggestion"
)

// Standard attribute values.
const (
	OperationEstimate     = "estimate"
	OperationRestore      = "restore"
	OperationForward      = "forward"
	OperationInverse      = "inverse"
	OperationFit          = "fit"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"

	PhaseEstimation    = "estimation"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"

	ErrorInvalidDimension = "INVALID_DIMENSION"
	ErrorNotFitted        = "NOT_FITTED"
	ErrorIllConditioned   = "ILL_CONDITIONED"
	ErrorEigen            = "EIGEN_FAILURE"
)

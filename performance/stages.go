package performance

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/precond/pkg/errors"
	"github.com/YuminosukeSato/precond/preconditioner"
)

// Direction selects the map a PreconditionStage applies.
type Direction int

const (
	// Forward maps original samples into the preconditioned space.
	Forward Direction = iota
	// Inverse maps preconditioned samples back.
	Inverse
)

func (d Direction) String() string {
	if d == Inverse {
		return "inverse"
	}
	return "forward"
}

// PreconditionStage applies a preconditioner to every batch. Batches without
// an output block are handled by the input-only maps.
type PreconditionStage struct {
	p         *preconditioner.Preconditioner
	direction Direction
}

// NewPreconditionStage creates a stage applying p in the given direction.
func NewPreconditionStage(p *preconditioner.Preconditioner, direction Direction) *PreconditionStage {
	return &PreconditionStage{p: p, direction: direction}
}

// Process implements StreamStage.
func (s *PreconditionStage) Process(ctx context.Context, b Batch) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return b, err
	}

	out := Batch{Index: b.Index}
	var err error
	switch {
	case b.Output == nil && s.direction == Forward:
		out.Input, err = s.p.ForwardInput(b.Input)
	case b.Output == nil:
		out.Input, err = s.p.InverseInput(b.Input)
	case s.direction == Forward:
		out.Input, out.Output, err = forwardPair(s.p, b)
	default:
		out.Input, out.Output, err = inversePair(s.p, b)
	}
	if err != nil {
		return b, errors.Wrapf(err, "%s stage", s.direction)
	}
	return out, nil
}

// Results are returned as mat.Matrix, so a nil *mat.Dense must not leak
// into a non-nil interface.
func forwardPair(p *preconditioner.Preconditioner, b Batch) (mat.Matrix, mat.Matrix, error) {
	in, out, err := p.Forward(b.Input, b.Output)
	if err != nil {
		return nil, nil, err
	}
	return in, out, nil
}

func inversePair(p *preconditioner.Preconditioner, b Batch) (mat.Matrix, mat.Matrix, error) {
	in, out, err := p.Inverse(b.Input, b.Output)
	if err != nil {
		return nil, nil, err
	}
	return in, out, nil
}

// SplitColumns cuts paired samples into batches of at most batchSize
// columns. output may be nil. Batches of *mat.Dense arguments are views
// that share storage with the argument.
func SplitColumns(input, output mat.Matrix, batchSize int) ([]Batch, error) {
	const op = "SplitColumns"
	if batchSize < 1 {
		return nil, errors.NewArgumentDimensionError(op, "batchSize", 1, batchSize, errors.AxisColumns)
	}
	_, n := input.Dims()
	if output != nil {
		if _, nOut := output.Dims(); nOut != n {
			return nil, errors.NewArgumentDimensionError(op, "output", n, nOut, errors.AxisColumns)
		}
	}

	batches := make([]Batch, 0, (n+batchSize-1)/batchSize)
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		b := Batch{Index: len(batches), Input: columns(input, start, end)}
		if output != nil {
			b.Output = columns(output, start, end)
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func columns(m mat.Matrix, start, end int) mat.Matrix {
	r, _ := m.Dims()
	if d, ok := m.(*mat.Dense); ok {
		return d.Slice(0, r, start, end)
	}
	out := mat.NewDense(r, end-start, nil)
	for i := 0; i < r; i++ {
		for j := start; j < end; j++ {
			out.Set(i, j-start, m.At(i, j))
		}
	}
	return out
}

// JoinColumns concatenates the input and output blocks of batches side by
// side, in slice order. output is nil when the batches carry no output.
func JoinColumns(batches []Batch) (input, output *mat.Dense) {
	for _, b := range batches {
		input = augment(input, b.Input)
		if b.Output != nil {
			output = augment(output, b.Output)
		}
	}
	return input, output
}

func augment(acc *mat.Dense, m mat.Matrix) *mat.Dense {
	if acc == nil {
		return mat.DenseCopyOf(m)
	}
	var out mat.Dense
	out.Augment(acc, m)
	return &out
}

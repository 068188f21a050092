// Package performance runs preconditioners over streams of sample batches
// with a bounded pool of workers.
package performance

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/precond/pkg/errors"
	"github.com/YuminosukeSato/precond/pkg/log"
)

// Batch is a group of samples travelling through a pipeline. Samples are
// columns. Output may be nil for input-only stages. Index records the
// position of the batch in the original stream, since workers finish out of
// order.
type Batch struct {
	Index  int
	Input  mat.Matrix
	Output mat.Matrix
}

// Samples returns the number of columns in the batch.
func (b Batch) Samples() int {
	if b.Input == nil {
		return 0
	}
	_, c := b.Input.Dims()
	return c
}

// StreamStage transforms one batch. Stages are shared between workers and
// must be safe for concurrent use.
type StreamStage interface {
	Process(ctx context.Context, b Batch) (Batch, error)
}

// StreamMetrics tracks pipeline throughput.
type StreamMetrics struct {
	ProcessedBatches uint64
	ProcessedSamples uint64
	ProcessedBytes   uint64
	// Throughput is samples per second over the last run.
	Throughput float64
	// Latency is the mean time spent per batch in milliseconds.
	Latency float64
}

// StreamingPipeline applies its stages, in order, to every batch read from
// an input channel.
type StreamingPipeline struct {
	bufferSize int
	workers    int
	stages     []StreamStage

	mu          sync.RWMutex
	metrics     StreamMetrics
	busy        time.Duration
	logger      log.Logger
	startedAt   time.Time
	runDuration time.Duration
}

// Option configures a StreamingPipeline.
type Option func(*StreamingPipeline)

// WithWorkers sets the number of concurrent workers. Values below 1 are
// ignored.
func WithWorkers(n int) Option {
	return func(s *StreamingPipeline) {
		if n >= 1 {
			s.workers = n
		}
	}
}

// NewStreamingPipeline creates a pipeline whose output channel buffers
// bufferSize batches. It uses one worker per CPU unless configured
// otherwise.
func NewStreamingPipeline(bufferSize int, opts ...Option) *StreamingPipeline {
	if bufferSize < 0 {
		bufferSize = 0
	}
	s := &StreamingPipeline{
		bufferSize: bufferSize,
		workers:    runtime.NumCPU(),
		stages:     make([]StreamStage, 0),
		logger:     log.GetLoggerWithName("performance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddStage appends a processing stage.
func (s *StreamingPipeline) AddStage(stage StreamStage) {
	s.stages = append(s.stages, stage)
}

// Workers returns the number of concurrent workers.
func (s *StreamingPipeline) Workers() int { return s.workers }

// Run starts the workers and returns the output channel together with a
// wait function. The output channel is closed once the input channel is
// drained or the first stage error cancels the run; wait then returns that
// error. The caller must consume the output channel until it is closed.
func (s *StreamingPipeline) Run(ctx context.Context, input <-chan Batch) (<-chan Batch, func() error) {
	output := make(chan Batch, s.bufferSize)
	g, ctx := errgroup.WithContext(ctx)

	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	for w := 0; w < s.workers; w++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case b, ok := <-input:
					if !ok {
						return nil
					}
					out, err := s.process(ctx, b)
					if err != nil {
						return err
					}
					select {
					case output <- out:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		})
	}

	var runErr error
	done := make(chan struct{})
	go func() {
		runErr = g.Wait()
		s.finish(runErr)
		close(output)
		close(done)
	}()

	wait := func() error {
		<-done
		return runErr
	}
	return output, wait
}

func (s *StreamingPipeline) process(ctx context.Context, b Batch) (Batch, error) {
	start := time.Now()
	for _, stage := range s.stages {
		next, err := stage.Process(ctx, b)
		if err != nil {
			s.logger.Error("Batch failed", err, log.BatchKey, b.Index)
			return b, errors.Wrapf(err, "batch %d", b.Index)
		}
		b = next
	}
	s.updateMetrics(b, time.Since(start))
	s.logger.Debug("Batch processed",
		log.BatchKey, b.Index,
		log.BatchSizeKey, b.Samples(),
	)
	return b, nil
}

func (s *StreamingPipeline) updateMetrics(b Batch, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.ProcessedBatches++
	s.busy += elapsed
	for _, m := range []mat.Matrix{b.Input, b.Output} {
		if m == nil {
			continue
		}
		rows, cols := m.Dims()
		s.metrics.ProcessedBytes += uint64(rows) * uint64(cols) * 8
	}
	s.metrics.ProcessedSamples += uint64(b.Samples())
	s.metrics.Latency = float64(s.busy.Microseconds()) / 1000 / float64(s.metrics.ProcessedBatches)
}

func (s *StreamingPipeline) finish(err error) {
	s.mu.Lock()
	s.runDuration = time.Since(s.startedAt)
	if secs := s.runDuration.Seconds(); secs > 0 {
		s.metrics.Throughput = float64(s.metrics.ProcessedSamples) / secs
	}
	metrics := s.metrics
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Pipeline stopped", err, log.WorkersKey, s.workers)
		return
	}
	s.logger.Info("Pipeline finished",
		log.WorkersKey, s.workers,
		log.SamplesKey, metrics.ProcessedSamples,
		log.DurationMsKey, s.runDuration.Milliseconds(),
	)
}

// GetMetrics returns a snapshot of the pipeline metrics.
func (s *StreamingPipeline) GetMetrics() StreamMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}

// ProcessAll feeds batches through the pipeline and returns the results
// ordered by Index.
func (s *StreamingPipeline) ProcessAll(ctx context.Context, batches []Batch) ([]Batch, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	input := make(chan Batch)
	go func() {
		defer close(input)
		for _, b := range batches {
			select {
			case input <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	output, wait := s.Run(ctx, input)
	results := make([]Batch, 0, len(batches))
	for b := range output {
		results = append(results, b)
	}
	if err := wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results, nil
}

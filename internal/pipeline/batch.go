package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/nucheck/internal/model"
)

// DefaultConcurrency is the number of targets validated at once.
const DefaultConcurrency = 4

// BatchProcessor validates several targets concurrently.
// It uses errgroup to manage goroutines and respect concurrency limits.
type BatchProcessor struct {
	// pipelineFactory creates the pipeline for one target.
	pipelineFactory func(target string) *Pipeline

	// runFactory creates the run for one target.
	runFactory func(target string) *model.Run

	// concurrency is the maximum number of concurrent runs.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed runs in target order.
	results []*model.Run
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithRunFactory sets how each target's run is created, for example to
// record the validator URL up front.
func WithRunFactory(factory func(target string) *model.Run) BatchOption {
	return func(b *BatchProcessor) {
		b.runFactory = factory
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory is called once per target, so targets can have their
// own session and site settings.
func NewBatchProcessor(pipelineFactory func(target string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
		results:         make([]*model.Run, 0),
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	if bp.runFactory == nil {
		bp.runFactory = func(target string) *model.Run {
			return model.NewRun(target, "")
		}
	}
	return bp
}

// ProcessBatch validates every target and returns the runs in target order.
//
// A failed target does not stop the others; its run carries the error. The
// returned error is only non-nil when the batch was cancelled, in which case
// runs that never started are nil.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.Run, error) {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	bp.mu.Lock()
	bp.results = make([]*model.Run, len(targets))
	bp.mu.Unlock()

	err := bp.ProcessBatchWithCallback(ctx, targets, func(run *model.Run, index int) {
		bp.mu.Lock()
		bp.results[index] = run
		bp.mu.Unlock()
	})

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.results, err
}

// ProcessBatchWithCallback validates every target and calls callback as
// each run finishes. The callback receives the run and the index of its
// target; it is called from worker goroutines and must be safe for
// concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(run *model.Run, index int),
) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Debug("validating target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			run := bp.runFactory(target)
			if err := bp.pipelineFactory(target).Execute(ctx, run); err != nil {
				bp.logger.Warn("validation run failed",
					"target", target,
					"error", err,
				)
			}

			callback(run, i)
			return nil
		})
	}

	return g.Wait()
}

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/nucheck/internal/model"
)

// ErrSkip is returned by a step to end the pipeline early without failing
// the run. Remaining steps are not executed.
var ErrSkip = errors.New("skip remaining steps")

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the run built so far.
type Step interface {
	// Do executes the pipeline step.
	// Returning an error marks the run as failed, except for ErrSkip.
	Do(ctx context.Context, run *model.Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError keeps executing steps after one fails.
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps executing steps after one fails. Later steps see
// the failed run and decide for themselves whether to act; the save step,
// for example, still records failed validations.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in order over run and sets run.Duration.
//
// Cancellation is checked between steps. The first step error is recorded
// on the run; it is also returned unless continueOnError is set, in which
// case Execute returns the first error after all steps ran.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) error {
	start := time.Now()
	defer func() {
		run.Duration = time.Since(start)
	}()

	var firstErr error
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"target", run.Target,
				"reason", ctx.Err(),
			)
			if !run.Failed() {
				run.SetError(ctx.Err())
			}
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"target", run.Target,
		)

		err := step.Do(ctx, run)
		run.Steps = append(run.Steps, step.Name())

		if errors.Is(err, ErrSkip) {
			p.logger.Debug("pipeline stopped early",
				"step", step.Name(),
				"target", run.Target,
			)
			return firstErr
		}
		if err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"target", run.Target,
				"error", err,
			)
			if !run.Failed() {
				run.SetError(err)
			}
			if firstErr == nil {
				firstErr = err
			}
			if !p.continueOnError {
				return err
			}
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"target", run.Target,
		)
	}

	return firstErr
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}

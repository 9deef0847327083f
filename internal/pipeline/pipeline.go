package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/newslettercheck/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the report
// accumulated by the previous ones.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry their collaborators (fetcher, auditor, ...)
// 2. It provides a Name() method for logging and the performed-steps list
// 3. Tests can replace a single stage with a fake
type Step interface {
	// Do executes the pipeline step. It must advance the report by exactly
	// one state on success. Returning an error stops the scrape.
	Do(ctx context.Context, report *model.ScrapeReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to keep running steps after
// one fails. Every step after a failure normally fails too, because the
// report state no longer lines up, so this is mainly useful with custom
// steps that do not depend on each other.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
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
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
//
// Design decision: We check ctx before each step rather than only inside
// steps, so a cancelled scrape stops at a step boundary with a consistent
// State. Steps that block (fetch, audit) also honour ctx themselves.
//
// The first error is recorded on the report and returned. Only steps that
// succeed are appended to report.PerformedSteps.
func (p *Pipeline) Execute(ctx context.Context, report *model.ScrapeReport) error {
	var firstErr error

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"url", report.URL,
				"reason", err,
			)
			report.TimedOut = true
			if firstErr == nil {
				report.SetError(err)
				firstErr = err
			}
			return firstErr
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"url", report.URL,
		)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"url", report.URL,
				"state", report.State.String(),
				"error", err,
			)

			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				report.TimedOut = true
			}
			if firstErr == nil {
				report.SetError(err)
				firstErr = err
			}
			if !p.continueOnError {
				return err
			}
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"url", report.URL,
			"state", report.State.String(),
		)
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
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

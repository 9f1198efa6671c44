package pipeline

import (
	"context"
	"log/slog"
)

// Step is one stage of a scan.
//
// Design decision: steps are an interface rather than function types so that
// each step can carry its own dependencies (stores, fetchers) and report a
// name for logging and metrics.
type Step interface {
	// Do executes the step. A returned error stops the pipeline and triggers
	// the job's registered cleanups.
	Do(ctx context.Context, job *ScanJob) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0)}
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

// Execute runs every step in order and stops at the first failure.
//
// When a step fails, or ctx is cancelled between steps, the job's cleanups
// run with a context that is detached from ctx's cancellation, so a client
// that disconnects mid-crawl still gets its quota back.
func (p *Pipeline) Execute(ctx context.Context, job *ScanJob) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"target", job.Domain,
				"reason", err,
			)
			job.rollback(context.WithoutCancel(ctx))
			return err
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"target", job.Domain,
		)

		if err := step.Do(ctx, job); err != nil {
			p.logger.Info("step failed",
				"step", step.Name(),
				"target", job.Domain,
				"error", err,
			)
			job.rollback(context.WithoutCancel(ctx))
			return err
		}

		job.Performed = append(job.Performed, step.Name())
	}
	return nil
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

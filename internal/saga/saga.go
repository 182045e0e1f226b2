// Package saga runs a sequence of steps, undoing completed ones when a later step fails.
package saga

import (
	"context"
	"errors"
	"log/slog"
)

// Step is a single unit of work with a compensating action.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// StepFunc adapts a pair of functions to a Step. A nil undo means nothing to compensate.
type StepFunc struct {
	StepName string
	Do       func(ctx context.Context) error
	Undo     func(ctx context.Context) error
}

func (s StepFunc) Name() string { return s.StepName }

func (s StepFunc) Execute(ctx context.Context) error { return s.Do(ctx) }

func (s StepFunc) Compensate(ctx context.Context) error {
	if s.Undo == nil {
		return nil
	}
	return s.Undo(ctx)
}

// CompensationError reports steps whose compensation failed after the saga aborted.
type CompensationError struct {
	Cause  error
	Failed map[string]error
}

func (e *CompensationError) Error() string {
	return "saga aborted with incomplete compensation: " + e.Cause.Error()
}

func (e *CompensationError) Unwrap() error { return e.Cause }

// Orchestrator executes steps in order.
type Orchestrator struct {
	steps []Step
	log   *slog.Logger
}

// NewOrchestrator creates an orchestrator for steps.
func NewOrchestrator(log *slog.Logger, steps ...Step) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{steps: steps, log: log}
}

// Run executes each step. On the first failure, completed steps are
// compensated in reverse order and the step's error is returned. If any
// compensation fails too, the result is a *CompensationError wrapping it.
func (o *Orchestrator) Run(ctx context.Context) error {
	done := make([]Step, 0, len(o.steps))

	for _, step := range o.steps {
		o.log.DebugContext(ctx, "executing saga step", "step", step.Name())
		if err := step.Execute(ctx); err != nil {
			o.log.WarnContext(ctx, "saga step failed, rolling back", "step", step.Name(), "error", err)
			return o.rollback(ctx, done, err)
		}
		done = append(done, step)
	}
	return nil
}

func (o *Orchestrator) rollback(ctx context.Context, done []Step, cause error) error {
	// compensation must still run when the request context is already cancelled
	ctx = context.WithoutCancel(ctx)

	failed := make(map[string]error)
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if err := step.Compensate(ctx); err != nil {
			o.log.ErrorContext(ctx, "saga compensation failed", "step", step.Name(), "error", err)
			failed[step.Name()] = err
		}
	}

	if len(failed) > 0 {
		return &CompensationError{Cause: cause, Failed: failed}
	}
	return cause
}

// IsCompensationError reports whether err carries incomplete compensation.
func IsCompensationError(err error) bool {
	var ce *CompensationError
	return errors.As(err, &ce)
}

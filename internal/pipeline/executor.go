package pipeline

import (
	"context"
	"log/slog"

	"github.com/capstan/capstan/internal/cmdexec"
)

// StepExecutor runs one step at a time: candidate commands strictly in
// listed order, first success ends the attempt loop, required steps
// that exhaust every candidate become fatal.
type StepExecutor struct {
	runner  *cmdexec.Runner
	printer *Printer
	logger  *slog.Logger
}

// NewExecutor creates a StepExecutor around the given runner.
func NewExecutor(runner *cmdexec.Runner, printer *Printer, logger *slog.Logger) *StepExecutor {
	return &StepExecutor{runner: runner, printer: printer, logger: logger}
}

// Runner exposes the underlying command runner so embedded step
// functions can issue their own invocations.
func (e *StepExecutor) Runner() *cmdexec.Runner { return e.runner }

// Printer exposes the progress printer for embedded step functions.
func (e *StepExecutor) Printer() *Printer { return e.printer }

// Run executes a single step and returns its result. Index is the
// 0-based position of the step in the run.
func (e *StepExecutor) Run(ctx context.Context, step Step, index int) StepResult {
	e.printer.StepHeader(index+1, step.Name)
	log := e.logger.With("step", step.Name)

	result := StepResult{Name: step.Name, Index: index}

	if step.Fn != nil {
		outcome := step.Fn(ctx)
		result.Outcomes = append(result.Outcomes, outcome)
		result.Succeeded = outcome.OK()
		if result.Succeeded {
			e.printer.Success(step.Name, outcome.Stdout)
		} else {
			e.printer.Failure(step.Name, failureText(outcome))
		}
	} else {
		for _, candidate := range step.Commands {
			e.printer.Attempt(candidate.Description, candidate.Line)
			outcome := e.runner.Run(ctx, candidate)
			result.Outcomes = append(result.Outcomes, outcome)
			if outcome.OK() {
				result.Succeeded = true
				e.printer.Success(candidate.Description, outcome.Stdout)
				break
			}
			e.printer.Failure(candidate.Description, failureText(outcome))
			log.Debug("candidate failed", "command", candidate.Line, "kind", outcome.Kind)
		}
	}

	if result.Succeeded {
		log.Info("step succeeded", "attempts", len(result.Outcomes))
		return result
	}

	if step.Required {
		result.Fatal = true
		log.Error("required step failed", "attempts", len(result.Outcomes))
		return result
	}

	e.printer.Degraded(step.Name, step.Hint)
	log.Warn("optional step degraded", "attempts", len(result.Outcomes))
	return result
}

// failureText picks the most useful diagnostic string from a failed
// outcome: stderr when the process ran, the diagnostic otherwise.
func failureText(o cmdexec.Outcome) string {
	if o.Stderr != "" {
		return o.Stderr
	}
	return o.Diagnostic
}

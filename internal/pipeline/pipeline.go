// Package pipeline implements the step-sequencing engine: an ordered
// list of named steps executed strictly in order, where a required
// step's failure aborts the run and an optional step's failure degrades
// it. There is no rollback of already-applied effects and no step-level
// retry beyond each step's fallback candidate list.
package pipeline

import (
	"context"
	"log/slog"
)

// State is the pipeline's position in its lifecycle.
type State string

const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StateCompleted  State = "completed"
	StateAborted    State = "aborted"
)

// RunReport is the terminal result of one pipeline run.
type RunReport struct {
	State       State
	AbortedAt   string // failing step name, empty unless aborted on a fatal failure
	Interrupted bool   // aborted by user cancellation rather than a step failure
	Summary     RunSummary
}

// Pipeline executes an ordered list of steps through a StepExecutor.
// One instance drives one run; it is not shared across goroutines.
type Pipeline struct {
	steps  []Step
	exec   *StepExecutor
	logger *slog.Logger
	state  State
}

// New creates a pipeline over the given ordered steps.
func New(exec *StepExecutor, logger *slog.Logger, steps []Step) *Pipeline {
	return &Pipeline{steps: steps, exec: exec, logger: logger, state: StateNotStarted}
}

// State returns the pipeline's current lifecycle state.
func (p *Pipeline) State() State { return p.state }

// Run executes the steps in order. Cancellation is honored at step
// boundaries only: an in-flight command keeps its own timeout and is
// never killed mid-command by the interrupt.
func (p *Pipeline) Run(ctx context.Context) RunReport {
	p.state = StateRunning
	report := RunReport{}
	stepCtx := context.WithoutCancel(ctx)

	for i, step := range p.steps {
		if ctx.Err() != nil {
			p.logger.Warn("run interrupted", "completed_steps", i)
			p.state = StateAborted
			report.State = StateAborted
			report.Interrupted = true
			p.exec.Printer().Interrupted()
			return report
		}

		result := p.exec.Run(stepCtx, step, i)
		report.Summary.Add(result)

		if result.Fatal {
			p.logger.Error("run aborted", "step", step.Name)
			p.state = StateAborted
			report.State = StateAborted
			report.AbortedAt = step.Name
			p.exec.Printer().Aborted(step.Name, failureText(result.LastOutcome()))
			p.exec.Printer().Summary(report.Summary)
			return report
		}
	}

	// A cancellation during the final step must still abort the run.
	if ctx.Err() != nil {
		p.logger.Warn("run interrupted", "completed_steps", len(p.steps))
		p.state = StateAborted
		report.State = StateAborted
		report.Interrupted = true
		p.exec.Printer().Interrupted()
		return report
	}

	p.state = StateCompleted
	report.State = StateCompleted
	p.exec.Printer().Summary(report.Summary)
	return report
}

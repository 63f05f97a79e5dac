package pipeline

import (
	"context"

	"github.com/capstan/capstan/internal/cmdexec"
)

// StepFunc is an embedded operation: a step whose work cannot be
// expressed as a single command line, e.g. "start a helper process and
// probe through it". It reports through the same Outcome shape commands
// do.
type StepFunc func(ctx context.Context) cmdexec.Outcome

// Step is one unit of pipeline work. A step is bound either to an
// ordered list of fallback candidate commands (first success wins) or
// to a StepFunc, never both.
type Step struct {
	Name     string
	Required bool
	Commands []cmdexec.Command
	Fn       StepFunc
	Hint     string // manual-remediation hint printed when an optional step degrades
}

// StepResult is the verdict of one executed step, appended to the run
// log in order and never mutated afterwards.
type StepResult struct {
	Name      string
	Index     int // ordinal position in the run, starting at 0
	Succeeded bool
	Fatal     bool // required step that exhausted all candidates
	Outcomes  []cmdexec.Outcome
}

// LastOutcome returns the final attempted outcome, or a zero Outcome if
// nothing was attempted.
func (r StepResult) LastOutcome() cmdexec.Outcome {
	if len(r.Outcomes) == 0 {
		return cmdexec.Outcome{}
	}
	return r.Outcomes[len(r.Outcomes)-1]
}

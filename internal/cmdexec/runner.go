package cmdexec

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Kind classifies the outcome of one command invocation.
type Kind string

const (
	// KindSuccess means the process ran and exited zero.
	KindSuccess Kind = "success"
	// KindFailure means the process ran and exited nonzero.
	KindFailure Kind = "failure"
	// KindTimeout means the process was killed after exceeding its timeout.
	KindTimeout Kind = "timeout"
	// KindException means the process could never be started.
	KindException Kind = "exception"
)

// Command is one external invocation. The command line is opaque to the
// runner: only the exit code and captured output are interpreted.
type Command struct {
	Line        string
	Description string
	Dir         string // working directory, empty for the current one
	Timeout     time.Duration
}

// Outcome is the result of executing one Command. All failure modes are
// encoded here rather than returned as errors, so callers can apply a
// uniform policy.
type Outcome struct {
	Kind       Kind
	Stdout     string
	Stderr     string
	ExitCode   int
	Exited     bool // ExitCode is only meaningful when true
	Diagnostic string
	Duration   time.Duration
}

// OK reports whether the command completed with exit code zero.
func (o Outcome) OK() bool { return o.Kind == KindSuccess }

// Runner executes external commands through a shell and captures their
// output. The zero value is not usable; construct with New.
type Runner struct {
	shell  string
	logger *slog.Logger
}

// New creates a Runner that invokes commands via "sh -c".
func New(logger *slog.Logger) *Runner {
	return &Runner{shell: "sh", logger: logger}
}

// Run executes the command and blocks until it completes or its timeout
// expires. It never returns an error: timeouts and launch failures are
// reported through the Outcome kind.
func (r *Runner) Run(ctx context.Context, command Command) Outcome {
	if command.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, command.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.shell, "-c", command.Line)
	cmd.Dir = command.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	outcome := Outcome{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			outcome.Kind = KindTimeout
			outcome.Stderr = ""
			outcome.Diagnostic = fmt.Sprintf("operation timed out after %d seconds", int(command.Timeout.Seconds()))
			r.logger.Warn("command timed out", "command", command.Line, "timeout", command.Timeout)
			return outcome
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			outcome.Kind = KindFailure
			outcome.ExitCode = exitErr.ExitCode()
			outcome.Exited = true
			r.logger.Debug("command failed", "command", command.Line, "exit_code", outcome.ExitCode)
			return outcome
		}
		outcome.Kind = KindException
		outcome.Diagnostic = err.Error()
		r.logger.Warn("command could not start", "command", command.Line, "error", err)
		return outcome
	}

	outcome.Kind = KindSuccess
	outcome.Exited = true
	r.logger.Debug("command succeeded", "command", command.Line, "duration", duration)
	return outcome
}

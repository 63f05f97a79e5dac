package cmdexec

import (
	"bytes"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"
)

// Background is a helper process started by a step to support an in-step
// probe, e.g. a port-forward tunnel. It must be stopped on every exit
// path of the step that started it.
type Background struct {
	cmd    *exec.Cmd
	stderr bytes.Buffer
	done   chan error
	logger *slog.Logger
}

// Start launches a long-running helper process. Unlike Run, a launch
// failure is returned as an error: there is nothing to supervise if the
// process never existed.
func (r *Runner) Start(command Command) (*Background, error) {
	cmd := exec.Command(r.shell, "-c", command.Line)
	cmd.Dir = command.Dir

	b := &Background{cmd: cmd, done: make(chan error, 1), logger: r.logger}
	cmd.Stderr = &b.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %q: %w", command.Line, err)
	}
	r.logger.Debug("background process started", "command", command.Line, "pid", cmd.Process.Pid)

	go func() { b.done <- cmd.Wait() }()
	return b, nil
}

// Stop terminates the process and waits up to grace for it to exit,
// escalating to SIGKILL if it does not. Safe to call once.
func (b *Background) Stop(grace time.Duration) error {
	if err := b.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone; collect the exit status.
		<-b.done
		return nil
	}

	select {
	case <-b.done:
		return nil
	case <-time.After(grace):
		b.logger.Warn("background process ignored SIGTERM, killing", "pid", b.cmd.Process.Pid)
		if err := b.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("killing pid %d: %w", b.cmd.Process.Pid, err)
		}
		<-b.done
		return nil
	}
}

// Stderr returns whatever the process has written to stderr so far.
func (b *Background) Stderr() string { return b.stderr.String() }

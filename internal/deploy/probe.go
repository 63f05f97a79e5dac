package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/capstan/capstan/internal/cmdexec"
	"github.com/capstan/capstan/internal/health"
)

const probeDelay = 500 * time.Millisecond

// waitReady polls the URL until it answers as up or maxWait elapses.
// A bounded poll replaces the fixed warm-up sleeps the workflow would
// otherwise need after starting containers and tunnels.
func (d *Deployer) waitReady(ctx context.Context, url string, maxWait time.Duration) cmdexec.Outcome {
	checker := health.New(url, 2*time.Second, d.logger)

	// Wall-clock bound: slow probes must not stretch the poll past
	// maxWait, so the attempt cap alone is not enough.
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	attempts := uint(maxWait / probeDelay)
	if attempts == 0 {
		attempts = 1
	}

	start := time.Now()
	err := retry.Do(
		func() error {
			status := checker.Check(ctx)
			if !status.Up() {
				return errors.New(status.Reason)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(probeDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	elapsed := time.Since(start)

	if err != nil {
		return cmdexec.Outcome{
			Kind:       cmdexec.KindTimeout,
			Diagnostic: fmt.Sprintf("%s not ready after %s: %v", url, maxWait, err),
			Duration:   elapsed,
		}
	}

	d.logger.Info("endpoint ready", "url", url, "waited", elapsed)
	return cmdexec.Outcome{Kind: cmdexec.KindSuccess, Exited: true, Duration: elapsed}
}

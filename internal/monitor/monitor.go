// Package monitor implements the system threshold monitor: a sampling
// loop that collects a metrics snapshot each tick, compares it against
// configured thresholds, and emits alerts. Structurally a one-step
// pipeline that never completes until cancelled.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/capstan/capstan/internal/alert"
)

// Monitor drives sampling ticks. One instance, one logical flow; no
// state is carried between ticks except the thresholds.
type Monitor struct {
	thresholds Thresholds
	collect    CollectFunc
	sink       *alert.Sink
	notifier   *alert.Notifier
	reporter   *Reporter
	logger     *slog.Logger
}

// New creates a Monitor. Sink and notifier may be nil; the reporter may
// be nil to suppress the human-readable report.
func New(t Thresholds, collect CollectFunc, sink *alert.Sink, notifier *alert.Notifier, reporter *Reporter, logger *slog.Logger) *Monitor {
	return &Monitor{
		thresholds: t,
		collect:    collect,
		sink:       sink,
		notifier:   notifier,
		reporter:   reporter,
		logger:     logger,
	}
}

// RunOnce performs a single tick: collect, check, report, persist,
// notify. Sink and notification failures are logged and never
// propagated; only a collection failure is an error.
func (m *Monitor) RunOnce(ctx context.Context) (Snapshot, error) {
	snap, err := m.collect(ctx)
	if err != nil {
		return snap, err
	}
	snap.Alerts = Check(m.thresholds, snap)

	if m.reporter != nil {
		m.reporter.Report(snap, m.thresholds)
	}

	for _, a := range snap.Alerts {
		m.logger.Warn("threshold breached", "type", a.Type, "current", a.Current, "threshold", a.Threshold)
		if m.sink != nil {
			if err := m.sink.Append(snap.Timestamp, a); err != nil {
				m.logger.Error("writing alert to sink", "error", err)
			}
		}
		if m.notifier != nil {
			if err := m.notifier.Notify(a); err != nil {
				m.logger.Error("notifying alert", "error", err)
			}
		}
	}

	if snap.Healthy() {
		m.logger.Info("all systems normal")
	}
	return snap, nil
}

// Loop ticks at the given interval until the context is cancelled. The
// in-flight tick always completes; no partial tick is ever reported.
func (m *Monitor) Loop(ctx context.Context, interval time.Duration) {
	m.logger.Info("starting system health monitoring",
		"cpu_threshold", m.thresholds.CPU,
		"memory_threshold", m.thresholds.Memory,
		"disk_threshold", m.thresholds.Disk,
		"interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			m.logger.Info("monitoring stopped by user")
			return
		}
		if _, err := m.RunOnce(context.WithoutCancel(ctx)); err != nil {
			m.logger.Error("tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
			m.logger.Info("monitoring stopped by user")
			return
		case <-ticker.C:
		}
	}
}

// LoopCron ticks on a cron schedule instead of a fixed interval.
func (m *Monitor) LoopCron(ctx context.Context, spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := m.RunOnce(context.WithoutCancel(ctx)); err != nil {
			m.logger.Error("tick failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	m.logger.Info("starting scheduled monitoring", "cron", spec)
	c.Start()
	<-ctx.Done()

	// Stop returns once the in-flight tick, if any, has finished.
	<-c.Stop().Done()
	m.logger.Info("monitoring stopped by user")
	return nil
}

package monitor

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/capstan/capstan/internal/alert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func defaultThresholds() Thresholds {
	return Thresholds{CPU: 80, Memory: 80, Disk: 80}
}

func TestCheck_CPUBreach(t *testing.T) {
	snap := Snapshot{CPUPercent: 85, Memory: MemoryStat{Percent: 50}}
	alerts := Check(defaultThresholds(), snap)

	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want exactly 1", len(alerts))
	}
	a := alerts[0]
	if a.Type != "CPU" || a.Current != 85 || a.Threshold != 80 {
		t.Errorf("alert = %+v, want CPU 85/80", a)
	}
	if a.Message != "CPU usage (85.0%) exceeds threshold (80.0%)" {
		t.Errorf("message = %q", a.Message)
	}
}

func TestCheck_NoBreach(t *testing.T) {
	snap := Snapshot{CPUPercent: 75, Memory: MemoryStat{Percent: 40}, Disk: &DiskStat{Percent: 60}}
	if alerts := Check(defaultThresholds(), snap); len(alerts) != 0 {
		t.Fatalf("got %d alerts, want 0", len(alerts))
	}
	if !snap.Healthy() {
		t.Error("snapshot with no alerts must be healthy")
	}
}

func TestCheck_AtThresholdDoesNotAlert(t *testing.T) {
	// Comparison is strictly-exceeds.
	snap := Snapshot{CPUPercent: 80, Memory: MemoryStat{Percent: 80}, Disk: &DiskStat{Percent: 80}}
	if alerts := Check(defaultThresholds(), snap); len(alerts) != 0 {
		t.Fatalf("got %d alerts at exact threshold, want 0", len(alerts))
	}
}

func TestCheck_MultipleSimultaneousBreaches(t *testing.T) {
	snap := Snapshot{
		CPUPercent: 95,
		Memory:     MemoryStat{Percent: 91},
		Disk:       &DiskStat{Percent: 99},
	}
	alerts := Check(defaultThresholds(), snap)
	if len(alerts) != 3 {
		t.Fatalf("got %d alerts, want 3 independent ones", len(alerts))
	}
	types := map[string]bool{}
	for _, a := range alerts {
		types[a.Type] = true
	}
	for _, want := range []string{"CPU", "MEMORY", "DISK"} {
		if !types[want] {
			t.Errorf("missing %s alert", want)
		}
	}
}

func TestCheck_MissingDiskSkipsDiskAlert(t *testing.T) {
	snap := Snapshot{CPUPercent: 10, Memory: MemoryStat{Percent: 10}, Disk: nil}
	if alerts := Check(defaultThresholds(), snap); len(alerts) != 0 {
		t.Fatalf("got %d alerts with nil disk, want 0", len(alerts))
	}
}

func stubCollector(snap Snapshot) CollectFunc {
	return func(ctx context.Context) (Snapshot, error) {
		snap.Timestamp = time.Now()
		return snap, nil
	}
}

func TestRunOnce_PersistsAlerts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	sink, err := alert.OpenSink(path)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	m := New(defaultThresholds(), stubCollector(Snapshot{
		CPUPercent: 85,
		Memory:     MemoryStat{Percent: 50},
	}), sink, nil, nil, testLogger())

	snap, err := m.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if snap.Healthy() {
		t.Fatal("expected an unhealthy snapshot")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("sink is empty")
	}
	var rec alert.Record
	if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
		t.Fatalf("bad sink line: %v", err)
	}
	if rec.Alert.Type != "CPU" || rec.Alert.Current != 85 {
		t.Errorf("persisted alert = %+v", rec.Alert)
	}
	if scanner.Scan() {
		t.Error("expected exactly one record")
	}
}

func TestRunOnce_TicksAreIndependent(t *testing.T) {
	m := New(defaultThresholds(), stubCollector(Snapshot{
		CPUPercent: 85,
		Memory:     MemoryStat{Percent: 50},
	}), nil, nil, nil, testLogger())

	first, err := m.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// Every breaching tick re-alerts; nothing is carried over.
	if len(first.Alerts) != 1 || len(second.Alerts) != 1 {
		t.Errorf("alerts per tick = %d, %d; want 1, 1", len(first.Alerts), len(second.Alerts))
	}
}

func TestLoop_CancelledContextNeverTicks(t *testing.T) {
	ticks := 0
	collect := func(ctx context.Context) (Snapshot, error) {
		ticks++
		return Snapshot{Timestamp: time.Now()}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := New(defaultThresholds(), collect, nil, nil, nil, testLogger())
	m.Loop(ctx, 10*time.Millisecond)

	if ticks != 0 {
		t.Errorf("ticked %d times with a cancelled context, want 0", ticks)
	}
}

func TestLoop_StopsOnCancel(t *testing.T) {
	ticks := 0
	collect := func(ctx context.Context) (Snapshot, error) {
		ticks++
		return Snapshot{Timestamp: time.Now()}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := New(defaultThresholds(), collect, nil, nil, nil, testLogger())

	done := make(chan struct{})
	go func() {
		m.Loop(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
	if ticks == 0 {
		t.Error("loop never ticked")
	}
}

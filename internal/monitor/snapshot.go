package monitor

import (
	"fmt"
	"time"

	"github.com/capstan/capstan/internal/alert"
)

// Thresholds are the configured breach limits, in percent. Comparison
// is always "strictly exceeds".
type Thresholds struct {
	CPU    float64
	Memory float64
	Disk   float64
}

// MemoryStat describes memory usage at one instant.
type MemoryStat struct {
	TotalGB     float64
	UsedGB      float64
	AvailableGB float64
	Percent     float64
}

// DiskStat describes usage of one filesystem.
type DiskStat struct {
	Path    string
	TotalGB float64
	UsedGB  float64
	FreeGB  float64
	Percent float64
}

// ProcessStat is one entry in the top-consumers list.
type ProcessStat struct {
	PID           int32
	Name          string
	CPUPercent    float64
	MemoryPercent float64
}

// Snapshot is the full picture of one sampling tick. Disk is nil when
// collection for the configured path failed; that is logged, not fatal.
type Snapshot struct {
	Timestamp  time.Time
	CPUPercent float64
	Memory     MemoryStat
	Disk       *DiskStat
	Processes  []ProcessStat
	Alerts     []alert.Alert
}

// Healthy reports whether the tick produced no alerts.
func (s Snapshot) Healthy() bool { return len(s.Alerts) == 0 }

// Check compares a snapshot against the thresholds and returns one
// alert per breached metric. Every breaching tick re-alerts: no
// deduplication, no hysteresis.
func Check(t Thresholds, s Snapshot) []alert.Alert {
	var alerts []alert.Alert

	if s.CPUPercent > t.CPU {
		alerts = append(alerts, alert.Alert{
			Type:      "CPU",
			Current:   s.CPUPercent,
			Threshold: t.CPU,
			Message:   fmt.Sprintf("CPU usage (%.1f%%) exceeds threshold (%.1f%%)", s.CPUPercent, t.CPU),
		})
	}

	if s.Memory.Percent > t.Memory {
		alerts = append(alerts, alert.Alert{
			Type:      "MEMORY",
			Current:   s.Memory.Percent,
			Threshold: t.Memory,
			Message:   fmt.Sprintf("Memory usage (%.1f%%) exceeds threshold (%.1f%%)", s.Memory.Percent, t.Memory),
		})
	}

	if s.Disk != nil && s.Disk.Percent > t.Disk {
		alerts = append(alerts, alert.Alert{
			Type:      "DISK",
			Current:   s.Disk.Percent,
			Threshold: t.Disk,
			Message:   fmt.Sprintf("Disk usage (%.1f%%) exceeds threshold (%.1f%%)", s.Disk.Percent, t.Disk),
		})
	}

	return alerts
}

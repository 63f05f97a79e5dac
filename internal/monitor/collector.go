package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// CollectFunc produces a fresh snapshot for one tick. Alerts are filled
// in afterwards by the monitor.
type CollectFunc func(ctx context.Context) (Snapshot, error)

const gib = float64(1 << 30)

// SystemCollector samples CPU, memory, disk, and the top processes by
// CPU usage from the local machine.
func SystemCollector(diskPath string, topN int, logger *slog.Logger) CollectFunc {
	return func(ctx context.Context) (Snapshot, error) {
		snap := Snapshot{Timestamp: time.Now()}

		// One-second sampling window.
		cpuPct, err := cpu.PercentWithContext(ctx, time.Second, false)
		if err != nil || len(cpuPct) == 0 {
			return snap, fmt.Errorf("sampling cpu: %w", err)
		}
		snap.CPUPercent = cpuPct[0]

		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return snap, fmt.Errorf("sampling memory: %w", err)
		}
		snap.Memory = MemoryStat{
			TotalGB:     float64(vm.Total) / gib,
			UsedGB:      float64(vm.Used) / gib,
			AvailableGB: float64(vm.Available) / gib,
			Percent:     vm.UsedPercent,
		}

		// Disk failures degrade the snapshot instead of failing the tick.
		if usage, err := disk.UsageWithContext(ctx, diskPath); err != nil {
			logger.Error("sampling disk", "path", diskPath, "error", err)
		} else {
			snap.Disk = &DiskStat{
				Path:    diskPath,
				TotalGB: float64(usage.Total) / gib,
				UsedGB:  float64(usage.Used) / gib,
				FreeGB:  float64(usage.Free) / gib,
				Percent: usage.UsedPercent,
			}
		}

		if topN > 0 {
			snap.Processes = topProcesses(ctx, topN)
		}
		return snap, nil
	}
}

func topProcesses(ctx context.Context, n int) []ProcessStat {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil
	}

	stats := make([]ProcessStat, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue // process vanished or access denied
		}
		cpuPct, _ := p.CPUPercentWithContext(ctx)
		memPct, _ := p.MemoryPercentWithContext(ctx)
		stats = append(stats, ProcessStat{
			PID:           p.Pid,
			Name:          name,
			CPUPercent:    cpuPct,
			MemoryPercent: float64(memPct),
		})
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].CPUPercent > stats[j].CPUPercent })
	if len(stats) > n {
		stats = stats[:n]
	}
	return stats
}

package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/capstan/capstan/internal/alert"
	"github.com/capstan/capstan/internal/config"
	"github.com/capstan/capstan/internal/monitor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor system health against thresholds",
	Long:  "Samples CPU, memory, and disk usage and alerts when a metric strictly exceeds its threshold. Alerts can be appended to a JSONL file and delivered to notification services. With --continuous, samples until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closeLog, err := setupLogger()
		if err != nil {
			return err
		}
		defer closeLog()

		cfg, err := config.Resolve(cfgFile)
		if err != nil {
			return err
		}
		overlayMonitorFlags(cmd, cfg)
		if err := config.Validate(cfg); err != nil {
			return err
		}

		thresholds := monitor.Thresholds{
			CPU:    cfg.Monitor.CPUThreshold,
			Memory: cfg.Monitor.MemoryThreshold,
			Disk:   cfg.Monitor.DiskThreshold,
		}

		var sink *alert.Sink
		if cfg.Monitor.AlertFile != "" {
			sink, err = alert.OpenSink(cfg.Monitor.AlertFile)
			if err != nil {
				return err
			}
			defer sink.Close()
		}

		m := monitor.New(
			thresholds,
			monitor.SystemCollector(cfg.Monitor.DiskPath, cfg.Monitor.TopProcesses, logger),
			sink,
			alert.NewNotifier(cfg.Notify, cfg.Monitor.AlertTemplate, logger),
			monitor.NewReporter(os.Stdout, colorEnabled()),
			logger,
		)

		continuous, _ := cmd.Flags().GetBool("continuous")
		if continuous {
			if cfg.Monitor.Cron != "" {
				return m.LoopCron(cmd.Context(), cfg.Monitor.Cron)
			}
			m.Loop(cmd.Context(), config.MustDuration(cfg.Monitor.Interval))
			return nil
		}

		snap, err := m.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		if !snap.Healthy() {
			if sink != nil {
				sink.Close()
			}
			closeLog()
			os.Exit(1)
		}
		return nil
	},
}

// overlayMonitorFlags applies explicitly set CLI flags over the config.
func overlayMonitorFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("cpu-threshold") {
		cfg.Monitor.CPUThreshold, _ = cmd.Flags().GetFloat64("cpu-threshold")
	}
	if cmd.Flags().Changed("memory-threshold") {
		cfg.Monitor.MemoryThreshold, _ = cmd.Flags().GetFloat64("memory-threshold")
	}
	if cmd.Flags().Changed("disk-threshold") {
		cfg.Monitor.DiskThreshold, _ = cmd.Flags().GetFloat64("disk-threshold")
	}
	if cmd.Flags().Changed("interval") {
		seconds, _ := cmd.Flags().GetInt("interval")
		cfg.Monitor.Interval = (time.Duration(seconds) * time.Second).String()
	}
	if cmd.Flags().Changed("alert-file") {
		cfg.Monitor.AlertFile, _ = cmd.Flags().GetString("alert-file")
	}
	if cmd.Flags().Changed("cron") {
		cfg.Monitor.Cron, _ = cmd.Flags().GetString("cron")
	}
}

func init() {
	monitorCmd.Flags().Float64("cpu-threshold", 80, "CPU usage threshold percentage")
	monitorCmd.Flags().Float64("memory-threshold", 80, "memory usage threshold percentage")
	monitorCmd.Flags().Float64("disk-threshold", 80, "disk usage threshold percentage")
	monitorCmd.Flags().Int("interval", 60, "check interval in seconds for continuous monitoring")
	monitorCmd.Flags().Bool("continuous", false, "sample repeatedly instead of once")
	monitorCmd.Flags().String("alert-file", "", "append JSONL alert records to this file")
	monitorCmd.Flags().String("cron", "", "cron schedule instead of a fixed interval")
	rootCmd.AddCommand(monitorCmd)
}

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/capstan/capstan/internal/cmdexec"
	"github.com/capstan/capstan/internal/pipeline"
)

var (
	cfgFile string
	verbose bool
	noColor bool
	logFile string
)

var rootCmd = &cobra.Command{
	Use:   "capstan",
	Short: "Application rollout orchestrator",
	Long:  "Capstan drives an application rollout end to end: validates the environment, builds and smoke-tests the image, applies cluster manifests, verifies reachability, and keeps watch afterwards with health probes and system threshold monitoring.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable styled output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
}

// setupLogger builds the process logger, optionally teeing to a file.
// The returned closer releases the log file.
func setupLogger() (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closer := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = func() { f.Close() }
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closer, nil
}

func colorEnabled() bool {
	return !noColor && pipeline.ColorEnabled(os.Stdout)
}

func newExecutor(logger *slog.Logger) *pipeline.StepExecutor {
	printer := pipeline.NewPrinter(os.Stdout, colorEnabled())
	return pipeline.NewExecutor(cmdexec.New(logger), printer, logger)
}

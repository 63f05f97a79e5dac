package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/capstan/capstan/internal/health"
)

var healthCmd = &cobra.Command{
	Use:   "health <url>",
	Short: "Probe application health over HTTP",
	Long:  "Issues a GET against the URL and classifies the application as up or down. With --continuous, probes repeatedly at the given interval until interrupted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("url must start with http:// or https://")
		}

		timeout, _ := cmd.Flags().GetInt("timeout")
		interval, _ := cmd.Flags().GetInt("interval")
		continuous, _ := cmd.Flags().GetBool("continuous")

		logger, closeLog, err := setupLogger()
		if err != nil {
			return err
		}
		defer closeLog()

		checker := health.New(url, time.Duration(timeout)*time.Second, logger)

		if recordFile, _ := cmd.Flags().GetString("record-file"); recordFile != "" {
			f, err := os.OpenFile(recordFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("opening record file: %w", err)
			}
			defer f.Close()
			checker.RecordTo(f)
		}

		if continuous {
			checker.Loop(cmd.Context(), time.Duration(interval)*time.Second)
			return nil
		}

		s := checker.Check(cmd.Context())
		checker.Log(s)
		if !s.Up() {
			closeLog()
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().Int("timeout", 10, "request timeout in seconds")
	healthCmd.Flags().Int("interval", 30, "check interval in seconds for continuous monitoring")
	healthCmd.Flags().Bool("continuous", false, "probe repeatedly instead of once")
	healthCmd.Flags().String("record-file", "", "append JSONL probe records to this file")
	rootCmd.AddCommand(healthCmd)
}

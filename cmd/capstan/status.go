package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/capstan/capstan/internal/config"
	"github.com/capstan/capstan/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the current state of a rollout",
	Long:  "Runs read-only checks against the container runtime, the cluster, and the monitoring and security components, then prints a success-rate summary with next-step guidance. Individual check failures never abort the run.",
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

		c := status.New(cfg, newExecutor(logger), logger)
		report := c.Run(cmd.Context())

		if report.Summary.Ratio() < cfg.Status.GuidanceThreshold {
			closeLog()
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

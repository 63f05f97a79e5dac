package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/capstan/capstan/internal/config"
	"github.com/capstan/capstan/internal/deploy"
	"github.com/capstan/capstan/internal/pipeline"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run the full rollout pipeline",
	Long:  "Validates prerequisites, builds and smoke-tests the image, applies manifests, verifies the deployment, and wires up monitoring. A failed required step aborts the run; already-applied cluster state is left in place.",
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
		if cmd.Flags().Changed("timeout") {
			seconds, _ := cmd.Flags().GetInt("timeout")
			cfg.Deploy.CommandTimeout = (time.Duration(seconds) * time.Second).String()
		}
		if err := config.Validate(cfg); err != nil {
			return err
		}

		withSecurity, _ := cmd.Flags().GetBool("with-security")

		d := deploy.New(cfg, newExecutor(logger), logger, withSecurity)
		report := d.Run(cmd.Context())

		if report.State != pipeline.StateCompleted {
			closeLog()
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	deployCmd.Flags().Bool("with-security", false, "install the runtime-security component")
	deployCmd.Flags().Int("timeout", 0, "per-command timeout in seconds")
	rootCmd.AddCommand(deployCmd)
}

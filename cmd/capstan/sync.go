package main

import (
	"github.com/spf13/cobra"

	"github.com/capstan/capstan/internal/cmdexec"
	"github.com/capstan/capstan/internal/config"
	"github.com/capstan/capstan/internal/watch"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Watch manifests and re-apply on change",
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

		dir := cfg.Deploy.ManifestDir
		if cmd.Flags().Changed("dir") {
			dir, _ = cmd.Flags().GetString("dir")
		}

		s := watch.New(dir, cmdexec.New(logger), config.MustDuration(cfg.Deploy.CommandTimeout), logger)
		return s.Run(cmd.Context())
	},
}

func init() {
	syncCmd.Flags().String("dir", "", "manifest directory to watch (defaults to deploy.manifest_dir)")
	rootCmd.AddCommand(syncCmd)
}

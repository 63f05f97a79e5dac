package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capstan/capstan/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the capstan configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve(cfgFile)
		if err != nil {
			return err
		}
		fmt.Printf("configuration OK: app=%s image=%s manifests=%d\n",
			cfg.App.Name, cfg.App.Image, len(cfg.Deploy.Manifests))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

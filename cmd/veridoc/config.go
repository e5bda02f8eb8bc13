package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veridocproj/veridoc/internal/api"
	"github.com/veridocproj/veridoc/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage veridoc configuration",
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write a commented default config file.

The file goes to --config if set, otherwise to {home}/config.yaml.
Edit it to enable providers, set API keys, and point at a registry
workbook import.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			h, err := getHome()
			if err != nil {
				return err
			}
			path = h.ConfigPath()
		}

		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}

		if err := config.WriteDefault(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		fmt.Printf("Wrote default config to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration after defaults, the config file,
and VERIDOC_ environment variables are merged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}

		cm, err := getConfigManager(h)
		if err != nil {
			return err
		}

		return api.Output(cm.Get())
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

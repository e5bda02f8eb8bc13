package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veridocproj/veridoc/internal/api"
	"github.com/veridocproj/veridoc/internal/config"
	"github.com/veridocproj/veridoc/internal/home"
	"github.com/veridocproj/veridoc/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "veridoc",
	Short: "Document verification and matching for admissions helpdesks",
	Long: `Veridoc verifies applicant documents against a student registry.

Uploaded marksheets and certificates are rasterized page by page, OCR'd,
and the extracted identity fields are matched against registered records.

The pipeline includes:
  - PDF and image rasterization at 300 DPI
  - Per-page OCR with bounded timeouts (tesseract or tesseract-server)
  - Field extraction via pattern tables or LLM structured output
  - Registry matching with deterministic tie-breaking`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.veridoc/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "veridoc home directory (default: ~/.veridoc)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// getHome returns the home directory manager.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// getConfigManager loads configuration, writing the default config file on
// first run so commands work out of the box.
func getConfigManager(h *home.Dir) (*config.Manager, error) {
	path := cfgFile
	if path == "" {
		path = h.ConfigPath()
		if !h.ConfigExists() {
			if err := config.WriteDefault(path); err != nil {
				return nil, fmt.Errorf("failed to write default config: %w", err)
			}
		}
	}
	return config.NewManager(path)
}

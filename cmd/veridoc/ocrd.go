package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridocproj/veridoc/internal/home"
	"github.com/veridocproj/veridoc/internal/ocrd"
	"github.com/veridocproj/veridoc/internal/providers"
)

var ocrdCmd = &cobra.Command{
	Use:   "ocrd",
	Short: "Manage the tesseract-server container",
	Long: `Manage the tesseract-server container lifecycle.

tesseract-server backs the tessd OCR provider. It exposes OCR over HTTP
from a Docker container, so the host needs no tesseract install.

Examples:
  veridoc ocrd start   # Start the tesseract-server container
  veridoc ocrd stop    # Stop the container
  veridoc ocrd status  # Check container status
  veridoc ocrd logs    # View container logs`,
}

var ocrdStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tesseract-server container",
	Long: `Start the tesseract-server container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}

		mgr, err := getOcrdManager(h)
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting tesseract-server...")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start tesseract-server: %w", err)
		}

		fmt.Printf("tesseract-server is running at %s\n", mgr.URL())
		return nil
	},
}

var ocrdStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the tesseract-server container",
	Long: `Stop the tesseract-server container.

This stops the container but does not remove it. Use 'veridoc ocrd start'
to restart it later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}

		mgr, err := getOcrdManager(h)
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping tesseract-server...")
		if err := mgr.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop tesseract-server: %w", err)
		}

		fmt.Println("tesseract-server stopped")
		return nil
	},
}

var ocrdStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tesseract-server container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}

		mgr, err := getOcrdManager(h)
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		switch status {
		case ocrd.StatusRunning:
			fmt.Printf("Status: %s\n", status)
			fmt.Printf("URL: %s\n", mgr.URL())

			// Try health check
			client := providers.NewTessServerClient(providers.TessServerConfig{BaseURL: mgr.URL()})
			if err := client.HealthCheck(ctx); err != nil {
				fmt.Printf("Health: unhealthy (%v)\n", err)
			} else {
				fmt.Println("Health: healthy")
			}
		case ocrd.StatusStopped:
			fmt.Printf("Status: %s (use 'veridoc ocrd start' to start)\n", status)
		case ocrd.StatusNotFound:
			fmt.Printf("Status: %s (use 'veridoc ocrd start' to create)\n", status)
		default:
			fmt.Printf("Status: %s\n", status)
		}

		return nil
	},
}

var ocrdLogsTail string

var ocrdLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show tesseract-server container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}

		mgr, err := getOcrdManager(h)
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(ctx, ocrdLogsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}

		fmt.Print(logs)
		return nil
	},
}

var ocrdRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the tesseract-server container",
	Long: `Remove the tesseract-server container.

This stops and removes the container. The image stays cached, so the
next 'veridoc ocrd start' recreates it without a pull.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}

		mgr, err := getOcrdManager(h)
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Removing tesseract-server container...")
		if err := mgr.Remove(ctx); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}

		fmt.Println("tesseract-server container removed")
		return nil
	},
}

var ocrdWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for tesseract-server to be ready",
	Long: `Wait for tesseract-server to be ready to accept requests.

This is useful in scripts to ensure OCR is fully started before
running verifications.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}

		mgr, err := getOcrdManager(h)
		if err != nil {
			return err
		}
		defer mgr.Close()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		fmt.Printf("Waiting for tesseract-server (timeout: %s)...\n", timeout)

		if err := mgr.WaitReady(ctx, timeout); err != nil {
			return fmt.Errorf("tesseract-server not ready: %w", err)
		}

		fmt.Println("tesseract-server is ready")
		return nil
	},
}

func init() {
	// Add subcommands
	ocrdCmd.AddCommand(ocrdStartCmd)
	ocrdCmd.AddCommand(ocrdStopCmd)
	ocrdCmd.AddCommand(ocrdStatusCmd)
	ocrdCmd.AddCommand(ocrdLogsCmd)
	ocrdCmd.AddCommand(ocrdRemoveCmd)
	ocrdCmd.AddCommand(ocrdWaitCmd)

	// Logs flags
	ocrdLogsCmd.Flags().StringVar(&ocrdLogsTail, "tail", "100", "Number of lines to show from the end")

	// Wait flags
	ocrdWaitCmd.Flags().Duration("timeout", 30*time.Second, "Timeout waiting for tesseract-server")

	// Add to root
	rootCmd.AddCommand(ocrdCmd)
}

// getOcrdManager creates a container manager from the configured ocrd settings.
func getOcrdManager(h *home.Dir) (*ocrd.Manager, error) {
	cm, err := getConfigManager(h)
	if err != nil {
		return nil, err
	}
	conf := cm.Get()

	return ocrd.NewManager(ocrd.Config{
		ContainerName: conf.Ocrd.ContainerName,
		Image:         conf.Ocrd.Image,
		HostPort:      conf.Ocrd.Port,
		HomePath:      h.Path(),
	})
}

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/veridocproj/veridoc/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the veridoc server",
	Long: `Start the veridoc HTTP server.

When a tessd OCR provider is enabled in config, this also starts the
tesseract-server container; on shutdown (Ctrl+C or SIGTERM) the container
is stopped with the server.

The server provides:
  /health           - Basic server health check
  /ready            - Readiness check (stores, engine, container)
  /status           - Detailed server status
  /verify           - Document verification calls
  /students         - Student registry
  /calls            - Provider call history

Examples:
  veridoc serve                    # Start on default port 8080
  veridoc serve --port 3000        # Start on custom port
  veridoc serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		h, err := getHome()
		if err != nil {
			return err
		}

		cm, err := getConfigManager(h)
		if err != nil {
			return err
		}
		cm.WatchConfig()

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			Home:          h,
			ConfigManager: cm,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}

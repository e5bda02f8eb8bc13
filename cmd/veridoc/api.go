package main

import (
	"github.com/spf13/cobra"

	"github.com/veridocproj/veridoc/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running veridoc server via HTTP.

These commands require a running server (veridoc serve).
Use --server to specify a custom server URL.

Examples:
  veridoc api health                       # Check server health
  veridoc api verify marksheet.pdf         # Verify documents
  veridoc api students list                # List registry records`,
}

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Student registry commands",
}

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Provider call history commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Verification at top level of api
	apiCmd.AddCommand((&endpoints.VerifyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ListProgramsEndpoint{}).Command(getServerURL))

	// Students as subcommand group
	studentsCmd.AddCommand((&endpoints.ListStudentsEndpoint{}).Command(getServerURL))
	studentsCmd.AddCommand((&endpoints.ImportStudentsEndpoint{}).Command(getServerURL))

	// Calls as subcommand group
	callsCmd.AddCommand((&endpoints.ListCallsEndpoint{}).Command(getServerURL))
	callsCmd.AddCommand((&endpoints.CallCountsEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(studentsCmd)
	apiCmd.AddCommand(callsCmd)
	rootCmd.AddCommand(apiCmd)
}

package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/veridocproj/veridoc/internal/api"
	"github.com/veridocproj/veridoc/internal/ocrd"
	"github.com/veridocproj/veridoc/internal/providers"
	"github.com/veridocproj/veridoc/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string `json:"status"`
	Ocrd   string `json:"ocrd,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}

	if svcctx.StudentsFrom(r.Context()) == nil || svcctx.EngineFrom(r.Context()) == nil {
		resp.Status = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	// The container only matters when a tessd provider is enabled.
	if mgr := svcctx.OcrdFrom(r.Context()); mgr != nil {
		status, err := mgr.Status(r.Context())
		if err != nil || status != ocrd.StatusRunning {
			resp.Status = "degraded"
			resp.Ocrd = string(status)
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Ocrd = "ok"
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (includes tesseract-server)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			if resp.Ocrd != "" {
				fmt.Printf("Ocrd:   %s\n", resp.Ocrd)
			}
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server    string          `json:"server"`
	Providers ProvidersStatus `json:"providers"`
	Ocrd      OcrdStatus      `json:"ocrd"`
	Registry  RegistryStatus  `json:"registry"`
}

// ProvidersStatus shows registered OCR and LLM providers.
type ProvidersStatus struct {
	OCR []string `json:"ocr"`
	LLM []string `json:"llm"`
}

// OcrdStatus shows tesseract-server container and health status.
type OcrdStatus struct {
	Container string `json:"container"`
	Health    string `json:"health"`
	URL       string `json:"url"`
}

// RegistryStatus shows the student registry location and size.
type RegistryStatus struct {
	Path    string `json:"path"`
	Records int    `json:"records"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct {
	// OcrdManager is set by the server since it's not in Services before init
	OcrdManager *ocrd.Manager
	// RegistryPath is the student registry database location
	RegistryPath string
}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Server: "running",
	}

	// Get registered providers
	provReg := svcctx.ProvidersFrom(r.Context())
	if provReg != nil {
		resp.Providers.OCR = provReg.ListOCR()
		resp.Providers.LLM = provReg.ListLLM()
	}

	// Get tesseract-server container status
	if e.OcrdManager != nil {
		status, err := e.OcrdManager.Status(r.Context())
		if err != nil {
			resp.Ocrd.Container = "error"
		} else {
			resp.Ocrd.Container = string(status)
		}
		resp.Ocrd.URL = e.OcrdManager.URL()

		client := providers.NewTessServerClient(providers.TessServerConfig{BaseURL: e.OcrdManager.URL()})
		if err := client.HealthCheck(r.Context()); err != nil {
			resp.Ocrd.Health = "unhealthy"
		} else {
			resp.Ocrd.Health = "healthy"
		}
	} else {
		resp.Ocrd.Container = "disabled"
	}

	// Student registry size
	resp.Registry.Path = e.RegistryPath
	if store := svcctx.StudentsFrom(r.Context()); store != nil {
		if n, err := store.Count(r.Context()); err == nil {
			resp.Registry.Records = n
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			fmt.Printf("Server: %s\n", resp.Server)
			fmt.Printf("Ocrd:\n")
			fmt.Printf("  Container: %s\n", resp.Ocrd.Container)
			if resp.Ocrd.Health != "" {
				fmt.Printf("  Health:    %s\n", resp.Ocrd.Health)
			}
			if resp.Ocrd.URL != "" {
				fmt.Printf("  URL:       %s\n", resp.Ocrd.URL)
			}
			fmt.Printf("Registry:\n")
			fmt.Printf("  Path:      %s\n", resp.Registry.Path)
			fmt.Printf("  Records:   %d\n", resp.Registry.Records)
			fmt.Printf("Providers:\n")
			fmt.Printf("  OCR: %v\n", resp.Providers.OCR)
			fmt.Printf("  LLM: %v\n", resp.Providers.LLM)
			return nil
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

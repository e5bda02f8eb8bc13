package endpoints

import (
	"github.com/veridocproj/veridoc/internal/api"
	"github.com/veridocproj/veridoc/internal/ocrd"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// OcrdManager is nil when no tessd provider is enabled.
	OcrdManager *ocrd.Manager
	// RegistryPath is the student registry database location, for status
	// reporting.
	RegistryPath string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{OcrdManager: cfg.OcrdManager, RegistryPath: cfg.RegistryPath},

		// Verification
		&VerifyEndpoint{},

		// Program checklists
		&ListProgramsEndpoint{},

		// Student registry
		&ListStudentsEndpoint{},
		&ImportStudentsEndpoint{},

		// Provider call history
		&ListCallsEndpoint{},
		&CallCountsEndpoint{},
	}
}

// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/veridocproj/veridoc/internal/calllog"
	"github.com/veridocproj/veridoc/internal/config"
	"github.com/veridocproj/veridoc/internal/home"
	"github.com/veridocproj/veridoc/internal/ocrd"
	"github.com/veridocproj/veridoc/internal/providers"
	"github.com/veridocproj/veridoc/internal/registry"
	"github.com/veridocproj/veridoc/internal/verify"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	ConfigManager *config.Manager
	Providers     *providers.Registry
	Students      *registry.Store
	Calls         *calllog.Store
	Engine        *verify.Engine
	Ocrd          *ocrd.Manager
	Logger        *slog.Logger
	Home          *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// ConfigManagerFrom extracts the config manager from context.
func ConfigManagerFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigManager
	}
	return nil
}

// ProvidersFrom extracts the provider registry from context.
func ProvidersFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Providers
	}
	return nil
}

// StudentsFrom extracts the student registry store from context.
func StudentsFrom(ctx context.Context) *registry.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Students
	}
	return nil
}

// CallsFrom extracts the provider call audit store from context.
func CallsFrom(ctx context.Context) *calllog.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Calls
	}
	return nil
}

// EngineFrom extracts the verification engine from context.
func EngineFrom(ctx context.Context) *verify.Engine {
	if s := ServicesFrom(ctx); s != nil {
		return s.Engine
	}
	return nil
}

// OcrdFrom extracts the tesseract-server container manager from context.
func OcrdFrom(ctx context.Context) *ocrd.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Ocrd
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/veridocproj/veridoc/internal/api"
	"github.com/veridocproj/veridoc/internal/calllog"
	"github.com/veridocproj/veridoc/internal/config"
	"github.com/veridocproj/veridoc/internal/extract"
	"github.com/veridocproj/veridoc/internal/home"
	"github.com/veridocproj/veridoc/internal/ocr"
	"github.com/veridocproj/veridoc/internal/ocrd"
	"github.com/veridocproj/veridoc/internal/providers"
	"github.com/veridocproj/veridoc/internal/raster"
	"github.com/veridocproj/veridoc/internal/registry"
	"github.com/veridocproj/veridoc/internal/server/endpoints"
	"github.com/veridocproj/veridoc/internal/svcctx"
	"github.com/veridocproj/veridoc/internal/verify"
)

// Server is the main veridoc HTTP server. It owns the verification engine,
// the provider registry, the student registry, and the provider call log.
// When a tessd OCR provider is enabled it also manages the tesseract-server
// container lifecycle, starting it on server start and stopping it on
// shutdown.
type Server struct {
	httpServer  *http.Server
	ocrdManager *ocrd.Manager
	provReg     *providers.Registry
	configMgr   *config.Manager
	homeDir     *home.Dir
	students    *registry.Store
	calls       *calllog.Store
	recorder    *calllog.Recorder
	engine      *verify.Engine
	logger      *slog.Logger

	registryPath string

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Home is the veridoc home directory
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// RegistryPath overrides the student registry database location.
	// Empty falls back to the configured path, then {home}/veridoc.db.
	RegistryPath string
	// Ocrd overrides tesseract-server container settings. Only consulted
	// when an enabled OCR provider has type "tessd".
	Ocrd ocrd.Config
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}

	conf := cfg.ConfigManager.Get()

	s := &Server{
		configMgr:    cfg.ConfigManager,
		homeDir:      cfg.Home,
		logger:       cfg.Logger,
		registryPath: cfg.RegistryPath,
	}
	if s.registryPath == "" {
		s.registryPath = conf.Registry.Path
	}
	if s.registryPath == "" {
		s.registryPath = cfg.Home.DatabasePath()
	}

	// Container manager, only when a tessd provider is enabled.
	if hasTessd(conf) {
		oc := cfg.Ocrd
		if oc.ContainerName == "" {
			oc.ContainerName = conf.Ocrd.ContainerName
		}
		if oc.Image == "" {
			oc.Image = conf.Ocrd.Image
		}
		if oc.HostPort == "" {
			oc.HostPort = conf.Ocrd.Port
		}
		if oc.HomePath == "" {
			oc.HomePath = cfg.Home.Path()
		}
		mgr, err := ocrd.NewManager(oc)
		if err != nil {
			return nil, fmt.Errorf("failed to create ocrd manager: %w", err)
		}
		s.ocrdManager = mgr
	}

	// Create provider registry
	s.provReg = providers.NewRegistry()
	s.provReg.SetLogger(cfg.Logger)
	s.provReg.Reload(s.providerConfig(conf))

	// Watch for config changes
	cfg.ConfigManager.OnChange(func(c *config.Config) {
		s.provReg.Reload(s.providerConfig(c))
		cfg.Logger.Info("provider registry reloaded from config")
	})

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{OcrdManager: s.ocrdManager, RegistryPath: s.registryPath}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:    net.JoinHostPort(cfg.Host, cfg.Port),
		Handler: s.withServices(mux),
		// Verification runs synchronously in the handler; the read and
		// write windows must cover document upload plus multi-page OCR
		// and LLM extraction.
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	return s, nil
}

// hasTessd reports whether any enabled OCR provider needs the managed
// tesseract-server container.
func hasTessd(conf *config.Config) bool {
	for _, p := range conf.EnabledOCRProviders() {
		if p.Type == "tessd" {
			return true
		}
	}
	return false
}

// providerConfig translates file config into provider registry config.
// When the server manages the tesseract-server container, tessd providers
// are pointed at the managed container's URL.
func (s *Server) providerConfig(conf *config.Config) providers.RegistryConfig {
	regCfg := conf.ToProviderRegistryConfig()
	if s.ocrdManager == nil {
		return regCfg
	}
	for name, p := range regCfg.OCRProviders {
		if p.Type == "tessd" {
			p.BaseURL = s.ocrdManager.URL()
			regCfg.OCRProviders[name] = p
		}
	}
	return regCfg
}

// Start starts the server, opening the registry and call log databases and
// starting the tesseract-server container when one is configured.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.homeDir.EnsureExists(); err != nil {
		s.setNotRunning()
		return err
	}

	// Start tesseract-server if a tessd provider needs it
	if s.ocrdManager != nil {
		if err := s.ocrdManager.ValidateExisting(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("existing tesseract-server container incompatible: %w", err)
		}

		s.logger.Info("starting tesseract-server", "container", s.ocrdManager.ContainerName())
		if err := s.ocrdManager.Start(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to start tesseract-server: %w", err)
		}
		s.logger.Info("tesseract-server is ready", "url", s.ocrdManager.URL())
	}

	// Open the student registry
	students, err := registry.Open(s.registryPath)
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to open student registry: %w", err)
	}
	s.students = students

	// Open the provider call log
	calls, err := calllog.Open(s.homeDir.DatabasePath())
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to open call log: %w", err)
	}
	s.calls = calls

	s.recorder = calllog.NewRecorder(s.calls, s.logger)
	s.recorder.Start()

	// Build the verification engine from current config
	engine, err := s.buildEngine(s.configMgr.Get())
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to build verification engine: %w", err)
	}
	s.engine = engine

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		ConfigManager: s.configMgr,
		Providers:     s.provReg,
		Students:      s.students,
		Calls:         s.calls,
		Engine:        s.engine,
		Ocrd:          s.ocrdManager,
		Logger:        s.logger,
		Home:          s.homeDir,
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown() // Clean up container and stores on HTTP error
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// buildEngine assembles the verification engine from configuration. The
// OCR provider is the first name in the configured preference order that
// is registered and enabled.
func (s *Server) buildEngine(conf *config.Config) (*verify.Engine, error) {
	var provider providers.OCRProvider
	for _, name := range conf.Defaults.OCRProviders {
		p, err := s.provReg.GetOCR(name)
		if err == nil {
			provider = p
			s.logger.Info("using OCR provider", "provider", name)
			break
		}
	}
	if provider == nil {
		return nil, fmt.Errorf("no enabled OCR provider among %v", conf.Defaults.OCRProviders)
	}

	extractor := ocr.New(ocr.Config{
		Provider:    provider,
		PageTimeout: time.Duration(conf.Defaults.PageTimeoutSeconds) * time.Second,
		Logger:      s.logger,
		Recorder:    s.recorder,
	})

	rasterizer := raster.New(raster.Config{
		ScratchDir: s.homeDir.ScratchPath(),
		Logger:     s.logger,
	})

	// The LLM client is only needed by the llm strategy.
	var llmClient providers.LLMClient
	var model string
	if conf.Defaults.Strategy == extract.LLMStrategyName {
		name := conf.Defaults.LLMProvider
		client, err := s.provReg.GetLLM(name)
		if err != nil {
			return nil, fmt.Errorf("llm strategy needs provider %q: %w", name, err)
		}
		llmClient = client
		if pc, ok := conf.GetLLMProvider(name); ok {
			model = pc.Model
		}
	}

	strategy, err := extract.New(extract.Config{
		Strategy: conf.Defaults.Strategy,
		Client:   llmClient,
		Model:    model,
		Recorder: s.recorder,
		Logger:   s.logger,
	})
	if err != nil {
		return nil, err
	}

	required, err := conf.RequiredFields()
	if err != nil {
		return nil, err
	}

	return verify.New(verify.Config{
		Rasterizer:    rasterizer,
		OCR:           extractor,
		Strategy:      strategy,
		Registry:      s.students,
		Required:      required,
		MatchRegistry: conf.Verification.MatchRegistry,
		Workers:       conf.Defaults.MaxWorkers,
		Logger:        s.logger,
	}), nil
}

// shutdown performs graceful shutdown of the HTTP server, the container,
// and the stores.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.recorder != nil {
		s.recorder.Stop()
	}

	if s.ocrdManager != nil {
		s.logger.Info("stopping tesseract-server")
		if err := s.ocrdManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("tesseract-server stop error", "error", err)
		}
		if err := s.ocrdManager.Close(); err != nil {
			s.logger.Error("ocrd manager close error", "error", err)
		}
	}

	if s.students != nil {
		if err := s.students.Close(); err != nil {
			s.logger.Error("student registry close error", "error", err)
		}
	}
	if s.calls != nil {
		if err := s.calls.Close(); err != nil {
			s.logger.Error("call log close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Providers returns the provider registry.
func (s *Server) Providers() *providers.Registry {
	return s.provReg
}

// Students returns the student registry store.
// Returns nil if the server hasn't started yet.
func (s *Server) Students() *registry.Store {
	return s.students
}

// Engine returns the verification engine.
// Returns nil if the server hasn't started yet.
func (s *Server) Engine() *verify.Engine {
	return s.engine
}

// OcrdManager returns the tesseract-server container manager.
// Returns nil when no tessd provider is enabled.
func (s *Server) OcrdManager() *ocrd.Manager {
	return s.ocrdManager
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the stores or engine aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.students == nil || s.engine == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}

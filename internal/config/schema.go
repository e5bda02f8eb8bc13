package config

import (
	"fmt"
	"strings"

	"github.com/veridocproj/veridoc/internal/fields"
)

// Config holds veridoc configuration.
// Stored at: ~/.veridoc/config.yaml
type Config struct {
	OCRProviders map[string]OCRProviderCfg `mapstructure:"ocr_providers" yaml:"ocr_providers"`
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Verification VerificationCfg           `mapstructure:"verification" yaml:"verification"`
	Registry     RegistryCfg               `mapstructure:"registry" yaml:"registry"`
	Ocrd         OcrdConfig                `mapstructure:"ocrd" yaml:"ocrd"`
}

// OCRProviderCfg configures an OCR engine. The local engines are keyless.
type OCRProviderCfg struct {
	Type        string   `mapstructure:"type" yaml:"type"`                   // "tesseract", "tessd"
	Binary      string   `mapstructure:"binary" yaml:"binary,omitempty"`     // tesseract binary path (tesseract type)
	BaseURL     string   `mapstructure:"base_url" yaml:"base_url,omitempty"` // server URL (tessd type)
	Languages   []string `mapstructure:"languages" yaml:"languages,omitempty"`
	PSM         int      `mapstructure:"psm" yaml:"psm,omitempty"` // Page segmentation mode
	OEM         int      `mapstructure:"oem" yaml:"oem,omitempty"` // Engine mode
	TessdataDir string   `mapstructure:"tessdata_dir" yaml:"tessdata_dir,omitempty"`
	RateLimit   float64  `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second
	Enabled     bool     `mapstructure:"enabled" yaml:"enabled"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type      string  `mapstructure:"type" yaml:"type"`       // "openrouter", "openai"
	Model     string  `mapstructure:"model" yaml:"model"`     // Model name
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	BaseURL   string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default selections for verification calls.
type DefaultsCfg struct {
	OCRProviders       []string `mapstructure:"ocr_providers" yaml:"ocr_providers"` // Ordered list of OCR providers
	LLMProvider        string   `mapstructure:"llm_provider" yaml:"llm_provider"`   // Default LLM provider
	Strategy           string   `mapstructure:"strategy" yaml:"strategy"`           // "pattern" or "llm"
	MaxWorkers         int      `mapstructure:"max_workers" yaml:"max_workers"`     // Max concurrent document pipelines
	PageTimeoutSeconds int      `mapstructure:"page_timeout_seconds" yaml:"page_timeout_seconds"`
}

// VerificationCfg holds the completeness and matching policy.
type VerificationCfg struct {
	// RequiredFields gates the verdict: a call missing any of these fails.
	RequiredFields []string `mapstructure:"required_fields" yaml:"required_fields"`
	// MatchRegistry controls whether complete field sets are scored
	// against the student registry.
	MatchRegistry bool `mapstructure:"match_registry" yaml:"match_registry"`
}

// RegistryCfg holds the student registry database location.
type RegistryCfg struct {
	// Path to the sqlite database. Empty means {home}/veridoc.db.
	Path string `mapstructure:"path" yaml:"path"`
}

// OcrdConfig holds tesseract-server container configuration.
type OcrdConfig struct {
	// ContainerName is the Docker container name (default: veridoc-ocrd)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: hertzg/tesseract-server:latest)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 8884)
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OCRProviders: map[string]OCRProviderCfg{
			"tesseract": {
				Type:      "tesseract",
				Languages: []string{"eng"},
				RateLimit: 4.0,
				Enabled:   true,
			},
			"tessd": {
				Type:      "tessd",
				BaseURL:   "http://localhost:8884",
				RateLimit: 8.0,
				Enabled:   false,
			},
		},
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:    "openrouter",
				Model:   "anthropic/claude-sonnet-4",
				APIKey:  "${OPENROUTER_API_KEY}",
				Enabled: true,
			},
		},
		Defaults: DefaultsCfg{
			OCRProviders:       []string{"tesseract"},
			LLMProvider:        "openrouter",
			Strategy:           "pattern",
			MaxWorkers:         4,
			PageTimeoutSeconds: 30,
		},
		Verification: VerificationCfg{
			RequiredFields: []string{"name", "dob", "board"},
			MatchRegistry:  true,
		},
		Registry: RegistryCfg{},
		Ocrd: OcrdConfig{
			ContainerName: "veridoc-ocrd",
			Image:         "hertzg/tesseract-server:latest",
			Port:          "8884",
		},
	}
}

// GetOCRProvider returns an OCR provider config by name.
func (c *Config) GetOCRProvider(name string) (OCRProviderCfg, bool) {
	cfg, ok := c.OCRProviders[name]
	return cfg, ok
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledOCRProviders returns all enabled OCR providers.
func (c *Config) EnabledOCRProviders() map[string]OCRProviderCfg {
	result := make(map[string]OCRProviderCfg)
	for name, cfg := range c.OCRProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// RequiredFields parses the configured required-field names.
func (c *Config) RequiredFields() ([]fields.Field, error) {
	out := make([]fields.Field, 0, len(c.Verification.RequiredFields))
	for _, name := range c.Verification.RequiredFields {
		f, ok := fields.Parse(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown required field %q", name)
		}
		out = append(out, f)
	}
	return out, nil
}

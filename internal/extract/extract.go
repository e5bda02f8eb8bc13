// Package extract turns OCR text into field observations. Two strategies
// implement the same interface: a deterministic offline pattern table, and a
// structured-extraction call to an LLM provider. The reconciliation stage
// downstream never knows which one produced an observation.
package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/veridocproj/veridoc/internal/calllog"
	"github.com/veridocproj/veridoc/internal/fields"
	"github.com/veridocproj/veridoc/internal/ocr"
	"github.com/veridocproj/veridoc/internal/providers"
)

// Strategy names, as they appear in configuration.
const (
	PatternStrategyName = "pattern"
	LLMStrategyName     = "llm"
)

// Strategy extracts field observations from one document's OCR text.
type Strategy interface {
	// ExtractFields returns the observations found in the text. A document
	// that yields nothing returns (nil, nil); an error means the strategy
	// itself could not run, not that the document was empty.
	ExtractFields(ctx context.Context, text *ocr.Text) ([]fields.Observation, error)

	// Name returns the strategy identifier.
	Name() string
}

// Config selects and wires a strategy.
type Config struct {
	Strategy string // "pattern" (default) or "llm"

	// LLM strategy dependencies, ignored by the pattern strategy.
	Client   providers.LLMClient
	Model    string
	Recorder *calllog.Recorder

	Logger *slog.Logger
}

// New builds the configured strategy. This is the single place strategy
// selection happens.
func New(cfg Config) (Strategy, error) {
	switch cfg.Strategy {
	case PatternStrategyName, "":
		return NewPatternStrategy(cfg.Logger), nil
	case LLMStrategyName:
		if cfg.Client == nil {
			return nil, fmt.Errorf("llm extraction strategy requires a provider client")
		}
		return NewLLMStrategy(LLMConfig{
			Client:   cfg.Client,
			Model:    cfg.Model,
			Recorder: cfg.Recorder,
			Logger:   cfg.Logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown extraction strategy %q", cfg.Strategy)
	}
}

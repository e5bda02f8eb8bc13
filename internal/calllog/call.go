// Package calllog records every OCR and LLM provider call for traceability.
// Records are written fire-and-forget; a lost audit row never fails a
// verification.
package calllog

import (
	"time"

	"github.com/google/uuid"

	"github.com/veridocproj/veridoc/internal/providers"
)

// Call kinds.
const (
	KindOCR = "ocr"
	KindLLM = "llm"
)

// Call represents a recorded provider call.
type Call struct {
	// Unique identifier
	ID string `json:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Context references
	VerificationID string `json:"verification_id,omitempty"`
	Document       string `json:"document,omitempty"`
	Page           int    `json:"page,omitempty"`

	// Provider info
	Kind     string `json:"kind"` // "ocr" or "llm"
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`

	// Usage
	InputTokens  int     `json:"input_tokens,omitempty"`
	OutputTokens int     `json:"output_tokens,omitempty"`
	CostUSD      float64 `json:"cost_usd,omitempty"`

	// Status
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RecordOptions provides context for recording a provider call.
type RecordOptions struct {
	// Verification run this call belongs to (optional)
	VerificationID string

	// Document filename the call processed (optional)
	Document string

	// Page number for OCR calls (optional)
	Page int
}

// FromChatResult creates a Call from a ChatResult.
// Returns nil if result is nil.
func FromChatResult(result *providers.ChatResult, opts RecordOptions) *Call {
	if result == nil {
		return nil
	}

	call := &Call{
		ID:             uuid.New().String(),
		Timestamp:      time.Now(),
		LatencyMs:      int(result.TotalTime.Milliseconds()),
		VerificationID: opts.VerificationID,
		Document:       opts.Document,
		Page:           opts.Page,
		Kind:           KindLLM,
		Provider:       result.Provider,
		Model:          result.ModelUsed,
		InputTokens:    result.PromptTokens,
		OutputTokens:   result.CompletionTokens,
		CostUSD:        result.CostUSD,
		Success:        result.Success,
	}

	if !result.Success {
		call.Error = result.ErrorMessage
	}

	return call
}

// FromOCRResult creates a Call from an OCRResult.
// Returns nil if result is nil.
func FromOCRResult(provider string, result *providers.OCRResult, opts RecordOptions) *Call {
	if result == nil {
		return nil
	}

	call := &Call{
		ID:             uuid.New().String(),
		Timestamp:      time.Now(),
		LatencyMs:      int(result.ExecutionTime.Milliseconds()),
		VerificationID: opts.VerificationID,
		Document:       opts.Document,
		Page:           opts.Page,
		Kind:           KindOCR,
		Provider:       provider,
		Success:        result.Success,
	}

	if !result.Success {
		call.Error = result.ErrorMessage
	}

	return call
}

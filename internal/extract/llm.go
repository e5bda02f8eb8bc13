package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/veridocproj/veridoc/internal/calllog"
	"github.com/veridocproj/veridoc/internal/fields"
	"github.com/veridocproj/veridoc/internal/ocr"
	"github.com/veridocproj/veridoc/internal/providers"
)

// maxPromptChars caps the OCR text sent per document. Admission documents
// are short; anything past this is usually rasterization noise.
const maxPromptChars = 8000

// ExtractionSystemPrompt is the system prompt for structured field extraction.
const ExtractionSystemPrompt = `You are a document verification assistant for a university admissions office. You are given noisy OCR text from one admission document (marksheet, certificate, or identity proof) and must extract candidate fields from it.

Rules:
- Extract only values that are visibly present in the text
- Use null for any field the text does not contain
- Copy dates exactly as printed, do not reformat them
- identity_number is the 12 digit identity number, keep digits and spaces as shown
- board must be one of: CBSE, ICSE, CISCE, NIOS, State Board, Other
- gender must be one of: male, female, other
- Never guess or invent a value

Return a JSON object with exactly these fields: name, dob, passing_year, board, gender, identity_number`

// extractionSchema returns the json_schema wrapper (name, strict, schema)
// for the closed six-field response.
func extractionSchema() map[string]any {
	nullable := func(desc string) map[string]any {
		return map[string]any{
			"type":        []string{"string", "null"},
			"description": desc,
		}
	}
	return map[string]any{
		"name":   "admission_fields",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": nullable("Candidate's full name exactly as printed"),
				"dob":  nullable("Date of birth as printed, e.g. 15-06-2004 or 2004-06-15"),
				"passing_year": map[string]any{
					"type":        []string{"string", "null"},
					"description": "Four digit year the qualifying examination was passed",
					"pattern":     "^(19[5-9][0-9]|20[0-2][0-9]|203[0-5])$",
				},
				"board": map[string]any{
					"type":        []string{"string", "null"},
					"description": "Issuing board or council",
					"enum":        []any{"CBSE", "ICSE", "CISCE", "NIOS", "State Board", "Other", nil},
				},
				"gender": map[string]any{
					"type": []string{"string", "null"},
					"enum": []any{"male", "female", "other", nil},
				},
				"identity_number": nullable("12 digit identity number if printed, digits and spaces as shown"),
			},
			"required":             []string{"name", "dob", "passing_year", "board", "gender", "identity_number"},
			"additionalProperties": false,
		},
	}
}

// buildExtractionPrompt builds the user prompt for one document.
func buildExtractionPrompt(filename, text string) string {
	return fmt.Sprintf("Document: %s\n\nOCR text:\n%s", filename, text)
}

var (
	nonPrintable = regexp.MustCompile(`[^\x20-\x7E\n\t]`)
	spaceRuns    = regexp.MustCompile(`[ \t]+`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
)

// cleanText strips non-printable and non-ASCII characters, collapses
// whitespace, and caps the length. The result is pure ASCII so the byte cap
// never splits a rune.
func cleanText(s string) string {
	s = nonPrintable.ReplaceAllString(s, "")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)
	if len(s) > maxPromptChars {
		s = s[:maxPromptChars]
	}
	return s
}

// extractionResult is the closed response shape. Pointer fields distinguish
// null from empty.
type extractionResult struct {
	Name           *string `json:"name"`
	DOB            *string `json:"dob"`
	PassingYear    *string `json:"passing_year"`
	Board          *string `json:"board"`
	Gender         *string `json:"gender"`
	IdentityNumber *string `json:"identity_number"`
}

// observations converts non-null fields to observations in stable order.
func (r *extractionResult) observations(source string) []fields.Observation {
	pairs := []struct {
		field fields.Field
		value *string
	}{
		{fields.FieldName, r.Name},
		{fields.FieldDOB, r.DOB},
		{fields.FieldPassingYear, r.PassingYear},
		{fields.FieldBoard, r.Board},
		{fields.FieldGender, r.Gender},
		{fields.FieldIdentityNumber, r.IdentityNumber},
	}

	var obs []fields.Observation
	for _, p := range pairs {
		if p.value == nil {
			continue
		}
		v := strings.TrimSpace(*p.value)
		if v == "" {
			continue
		}
		obs = append(obs, fields.Observation{Field: p.field, Value: v, Source: source})
	}
	return obs
}

// LLMConfig configures an LLMStrategy.
type LLMConfig struct {
	Client   providers.LLMClient
	Model    string // empty uses the client default
	Recorder *calllog.Recorder
	Logger   *slog.Logger
}

// LLMStrategy extracts fields through a structured-extraction call. It
// trades determinism for robustness to OCR noise; a failed or non-conforming
// response contributes zero observations and never fails the document.
type LLMStrategy struct {
	client   providers.LLMClient
	model    string
	recorder *calllog.Recorder
	logger   *slog.Logger
}

// NewLLMStrategy creates a structured-extraction strategy.
func NewLLMStrategy(cfg LLMConfig) *LLMStrategy {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &LLMStrategy{
		client:   cfg.Client,
		model:    cfg.Model,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}
}

// Name returns the strategy identifier.
func (s *LLMStrategy) Name() string {
	return LLMStrategyName
}

// ExtractFields sends the cleaned document text for structured extraction.
// Provider errors and non-conforming responses are logged and yield
// (nil, nil); only context cancellation propagates as an error.
func (s *LLMStrategy) ExtractFields(ctx context.Context, text *ocr.Text) ([]fields.Observation, error) {
	if text == nil {
		return nil, nil
	}
	cleaned := cleanText(text.Text)
	if cleaned == "" {
		return nil, nil
	}

	schemaBytes, err := json.Marshal(extractionSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extraction schema: %w", err)
	}

	req := &providers.ChatRequest{
		Model: s.model,
		Messages: []providers.Message{
			{Role: "system", Content: ExtractionSystemPrompt},
			{Role: "user", Content: buildExtractionPrompt(text.Filename, cleaned)},
		},
		ResponseFormat: &providers.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: schemaBytes,
		},
	}

	result, err := s.client.Chat(ctx, req)
	s.record(ctx, text.Filename, result)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("structured extraction call failed",
			"document", text.Filename,
			"provider", s.client.Name(),
			"error", err)
		return nil, nil
	}
	if !result.Success {
		s.logger.Warn("structured extraction unsuccessful",
			"document", text.Filename,
			"provider", s.client.Name(),
			"error_type", result.ErrorType,
			"error", result.ErrorMessage)
		return nil, nil
	}

	var content []byte
	if len(result.ParsedJSON) > 0 {
		content = result.ParsedJSON
	} else {
		content = []byte(result.Content)
	}

	var parsed extractionResult
	if err := json.Unmarshal(content, &parsed); err != nil {
		s.logger.Warn("structured extraction returned unparseable object",
			"document", text.Filename,
			"error", err)
		return nil, nil
	}

	obs := parsed.observations(text.Filename)
	s.logger.Debug("structured extraction complete",
		"document", text.Filename,
		"observations", len(obs))
	return obs, nil
}

func (s *LLMStrategy) record(ctx context.Context, document string, result *providers.ChatResult) {
	if s.recorder == nil || result == nil {
		return
	}
	s.recorder.RecordChat(result, calllog.RecordOptions{
		VerificationID: calllog.VerificationFrom(ctx),
		Document:       document,
	})
}

// Verify interface
var _ Strategy = (*LLMStrategy)(nil)

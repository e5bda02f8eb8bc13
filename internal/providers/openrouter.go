package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	OpenRouterName    = "openrouter"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	// Rate limiting
	RPS        float64       // Requests per second (default: 150)
	MaxRetries int           // Max retry attempts (default: 3)
	RetryDelay time.Duration // Base delay between retries (default: 1s)
}

// OpenRouterClient implements LLMClient using the OpenRouter API.
type OpenRouterClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
	// Rate limiting
	rps        float64
	maxRetries int
	retryDelay time.Duration
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenRouterBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic/claude-3.5-sonnet"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RPS == 0 {
		cfg.RPS = 150.0
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	return &OpenRouterClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rps:        cfg.RPS,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Name returns the client identifier.
func (c *OpenRouterClient) Name() string {
	return OpenRouterName
}

// RequestsPerSecond returns the RPS limit for rate limiting.
func (c *OpenRouterClient) RequestsPerSecond() float64 {
	return c.rps
}

// MaxRetries returns the maximum retry attempts.
func (c *OpenRouterClient) MaxRetries() int {
	return c.maxRetries
}

// RetryDelayBase returns the base delay between retries.
func (c *OpenRouterClient) RetryDelayBase() time.Duration {
	return c.retryDelay
}

// Chat sends a chat completion request.
func (c *OpenRouterClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	// Generate request ID if not provided
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	// Build OpenRouter request
	orReq := openRouterRequest{
		Model:       model,
		Messages:    make([]openRouterMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Usage:       &openRouterUsageRequest{Include: true},
	}

	for _, m := range req.Messages {
		orReq.Messages = append(orReq.Messages, openRouterMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	// Set response format if specified
	if req.ResponseFormat != nil {
		adapted, err := adaptedResponseFormat(model, req.ResponseFormat)
		if err != nil {
			return &ChatResult{
				RequestID:    requestID,
				Provider:     OpenRouterName,
				Success:      false,
				ErrorType:    "schema_error",
				ErrorMessage: err.Error(),
				TotalTime:    time.Since(start),
			}, err
		}
		orReq.ResponseFormat = adapted
	}

	// Make request (pass pointer for nonce injection on retries)
	orResp, httpErr := c.doRequest(ctx, "/chat/completions", &orReq)

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenRouterName,
		Attempts:  1,
	}

	if httpErr != nil {
		result.Success = false
		result.ErrorType = "http_error"
		result.ErrorMessage = httpErr.Error()
		result.TotalTime = time.Since(start)
		return result, httpErr
	}

	if len(orResp.Choices) == 0 {
		result.Success = false
		result.ErrorType = "empty_response"
		result.ErrorMessage = "no choices in response"
		result.TotalTime = time.Since(start)
		return result, fmt.Errorf("no choices in response")
	}

	result.Success = true
	result.Content = orResp.Choices[0].Message.Content
	result.ModelUsed = orResp.Model
	result.PromptTokens = orResp.Usage.PromptTokens
	result.CompletionTokens = orResp.Usage.CompletionTokens
	result.TotalTokens = orResp.Usage.TotalTokens
	result.CostUSD = orResp.Usage.Cost
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime

	// Parse and validate when structured output was requested, tolerating
	// code fences and surrounding prose. On failure, feed the validation
	// issue back to the model for a bounded number of repair attempts.
	if req.ResponseFormat != nil {
		schemaRaw := req.ResponseFormat.JSONSchema
		content := result.Content
		parsed, vErr := parseAndValidateStructured(schemaRaw, content)

		for attempt := 0; vErr != nil && attempt < maxStructuredRepairAttempts; attempt++ {
			orReq.Messages = append(orReq.Messages,
				openRouterMessage{Role: "assistant", Content: content},
				openRouterMessage{Role: "user", Content: structuredRepairPrompt(schemaRaw, content, vErr)},
			)

			repairResp, repairErr := c.doRequest(ctx, "/chat/completions", &orReq)
			result.Attempts++
			if repairErr != nil {
				vErr = repairErr
				break
			}
			if len(repairResp.Choices) == 0 {
				vErr = fmt.Errorf("no choices in repair response")
				continue
			}

			content = repairResp.Choices[0].Message.Content
			result.PromptTokens += repairResp.Usage.PromptTokens
			result.CompletionTokens += repairResp.Usage.CompletionTokens
			result.TotalTokens += repairResp.Usage.TotalTokens
			result.CostUSD += repairResp.Usage.Cost

			parsed, vErr = parseAndValidateStructured(schemaRaw, content)
		}

		if vErr != nil {
			result.Success = false
			result.ErrorType = "structured_output"
			result.ErrorMessage = fmt.Sprintf("structured output failed after %d attempts: %v", result.Attempts, vErr)
		} else {
			result.Content = content
			result.ParsedJSON = parsed
		}
		result.TotalTime = time.Since(start)
	}

	return result, nil
}

var _ LLMClient = (*OpenRouterClient)(nil)

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	TessServerName    = "tessd"
	TessServerBaseURL = "http://localhost:8884"
)

// TessServerConfig holds configuration for a tesseract-server HTTP deployment,
// typically the container managed by the ocrd package.
type TessServerConfig struct {
	BaseURL   string
	Languages []string // default ["eng"]
	PSM       int
	OEM       int
	Timeout   time.Duration
	RateLimit float64 // Requests per second
}

// TessServerClient implements OCRProvider against a tesseract-server instance.
type TessServerClient struct {
	baseURL   string
	languages []string
	psm       int
	oem       int
	rateLimit float64
	client    *http.Client
}

// tessServerOptions is the JSON options payload tesseract-server expects.
type tessServerOptions struct {
	Languages []string `json:"languages"`
	PSM       int      `json:"psm,omitempty"`
	OEM       int      `json:"oem,omitempty"`
}

// tessServerResponse is the tesseract-server response envelope.
type tessServerResponse struct {
	Data struct {
		Exit struct {
			Code   int    `json:"code"`
			Signal string `json:"signal"`
		} `json:"exit"`
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	} `json:"data"`
}

// NewTessServerClient creates a new tesseract-server client.
func NewTessServerClient(cfg TessServerConfig) *TessServerClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = TessServerBaseURL
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{TesseractDefaultLang}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 8.0
	}

	return &TessServerClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		languages: cfg.Languages,
		psm:       cfg.PSM,
		oem:       cfg.OEM,
		rateLimit: cfg.RateLimit,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (c *TessServerClient) Name() string {
	return TessServerName
}

// RequestsPerSecond returns the configured rate limit.
func (c *TessServerClient) RequestsPerSecond() float64 {
	return c.rateLimit
}

// MaxRetries returns the maximum retry attempts.
func (c *TessServerClient) MaxRetries() int {
	return 3
}

// RetryDelayBase returns the base delay for retry backoff.
func (c *TessServerClient) RetryDelayBase() time.Duration {
	return time.Second
}

// BaseURL returns the configured server URL.
func (c *TessServerClient) BaseURL() string {
	return c.baseURL
}

// HealthCheck verifies the tesseract-server instance responds.
func (c *TessServerClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("tesseract-server unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("tesseract-server unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

// ProcessImage extracts text from a page image via POST /tesseract.
func (c *TessServerClient) ProcessImage(ctx context.Context, image []byte, pageNum int) (*OCRResult, error) {
	start := time.Now()

	body, contentType, err := c.buildMultipart(image, pageNum)
	if err != nil {
		return &OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tesseract", body)
	if err != nil {
		err = fmt.Errorf("failed to create request: %w", err)
		return &OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		err = fmt.Errorf("tesseract-server request failed: %w", err)
		return &OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("failed to read response: %w", err)
		return &OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("tesseract-server error (status %d): %s", resp.StatusCode, truncate(string(respBody), 2048))
		return &OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	var tessResp tessServerResponse
	if err := json.Unmarshal(respBody, &tessResp); err != nil {
		err = fmt.Errorf("failed to unmarshal response: %w", err)
		return &OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	if tessResp.Data.Exit.Code != 0 {
		err = fmt.Errorf("tesseract exited with code %d: %s",
			tessResp.Data.Exit.Code, truncate(tessResp.Data.Stderr, 2048))
		return &OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	return &OCRResult{
		Success:       true,
		Text:          tessResp.Data.Stdout,
		ExecutionTime: time.Since(start),
		Metadata: map[string]any{
			"page_num":  pageNum,
			"languages": strings.Join(c.languages, "+"),
		},
	}, nil
}

func (c *TessServerClient) buildMultipart(image []byte, pageNum int) (*bytes.Buffer, string, error) {
	opts := tessServerOptions{
		Languages: c.languages,
		PSM:       c.psm,
		OEM:       c.oem,
	}
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal options: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("options", string(optsJSON)); err != nil {
		return nil, "", fmt.Errorf("failed to write options field: %w", err)
	}
	part, err := w.CreateFormFile("file", fmt.Sprintf("page_%04d.png", pageNum))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file field: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

var _ OCRProvider = (*TessServerClient)(nil)

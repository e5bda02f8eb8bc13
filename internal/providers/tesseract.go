package providers

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	TesseractName        = "tesseract"
	TesseractDefaultLang = "eng"
)

// Runner lets tests stub the external tesseract command.
type Runner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// TesseractConfig holds configuration for the local tesseract binary.
type TesseractConfig struct {
	Binary      string   // binary name or absolute path; if empty -> "tesseract"
	Languages   []string // default ["eng"]
	PSM         int      // page segmentation mode; 0 = tesseract default
	OEM         int      // engine mode; 0 = tesseract default
	TessdataDir string   // optional tessdata override
	RateLimit   float64  // requests per second (local binary, generous default)
	Runner      Runner   // optional, for tests
}

// TesseractClient implements OCRProvider by invoking the tesseract binary.
// Page images stream through stdin/stdout, so no scratch files are needed.
type TesseractClient struct {
	binary      string
	languages   string
	psm         int
	oem         int
	tessdataDir string
	rateLimit   float64
	runner      Runner
}

// NewTesseractClient creates a new local tesseract client.
func NewTesseractClient(cfg TesseractConfig) *TesseractClient {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{TesseractDefaultLang}
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 4.0
	}
	if cfg.Runner == nil {
		cfg.Runner = execRunner{}
	}

	return &TesseractClient{
		binary:      cfg.Binary,
		languages:   strings.Join(cfg.Languages, "+"),
		psm:         cfg.PSM,
		oem:         cfg.OEM,
		tessdataDir: cfg.TessdataDir,
		rateLimit:   cfg.RateLimit,
		runner:      cfg.Runner,
	}
}

// Name returns the provider identifier.
func (c *TesseractClient) Name() string {
	return TesseractName
}

// RequestsPerSecond returns the configured rate limit.
func (c *TesseractClient) RequestsPerSecond() float64 {
	return c.rateLimit
}

// MaxRetries returns the maximum retry attempts.
func (c *TesseractClient) MaxRetries() int {
	// Local binary failures are not transient.
	return 1
}

// RetryDelayBase returns the base delay for retry backoff.
func (c *TesseractClient) RetryDelayBase() time.Duration {
	return time.Second
}

// ProcessImage extracts text from a page image.
func (c *TesseractClient) ProcessImage(ctx context.Context, image []byte, pageNum int) (*OCRResult, error) {
	start := time.Now()

	// tesseract stdin stdout -l <langs> [--psm N] [--oem N] [--tessdata-dir D]
	args := []string{"stdin", "stdout", "-l", c.languages}
	if c.psm > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", c.psm))
	}
	if c.oem > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", c.oem))
	}
	if c.tessdataDir != "" {
		args = append(args, "--tessdata-dir", c.tessdataDir)
	}

	out, errb, err := c.runner.Run(ctx, image, c.binary, args...)
	if err != nil {
		execErr := fmt.Errorf("tesseract failed: %w (stderr: %s)", err, truncate(string(errb), 2048))
		return &OCRResult{
			Success:       false,
			ErrorMessage:  execErr.Error(),
			ExecutionTime: time.Since(start),
		}, execErr
	}

	return &OCRResult{
		Success:       true,
		Text:          string(out),
		ExecutionTime: time.Since(start),
		Metadata: map[string]any{
			"page_num":  pageNum,
			"languages": c.languages,
		},
	}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

var _ OCRProvider = (*TesseractClient)(nil)

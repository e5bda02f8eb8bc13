// Package ocr turns rasterized pages into text. Each page runs under a
// bounded timeout so one stuck page cannot wedge a whole document; failed
// pages are recorded in the page trail instead of being dropped.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/veridocproj/veridoc/internal/calllog"
	"github.com/veridocproj/veridoc/internal/providers"
	"github.com/veridocproj/veridoc/internal/raster"
)

// DefaultPageTimeout bounds a single page OCR call.
const DefaultPageTimeout = 30 * time.Second

// pageSeparator joins page texts in document order. The form feed keeps
// page boundaries recoverable downstream.
const pageSeparator = "\n\f\n"

// PageStatus records the outcome of OCR on one page.
type PageStatus struct {
	Number   int    `json:"number"`
	OK       bool   `json:"ok"`
	TimedOut bool   `json:"timed_out,omitempty"`
	Err      string `json:"error,omitempty"`
}

// Text is the OCR output for one document.
type Text struct {
	Filename string       `json:"filename"`
	Text     string       `json:"text"`
	Pages    []PageStatus `json:"pages"`
}

// PageCount returns the number of pages processed.
func (t *Text) PageCount() int {
	return len(t.Pages)
}

// SucceededPages returns how many pages produced text.
func (t *Text) SucceededPages() int {
	n := 0
	for _, p := range t.Pages {
		if p.OK {
			n++
		}
	}
	return n
}

// ExtractionError reports a document whose OCR capability was broken: pages
// were rendered, none produced text, and at least one failure was a hard
// provider error rather than a timeout.
type ExtractionError struct {
	Filename string
	Pages    int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("ocr extraction failed for %s (%d pages, none succeeded): %v", e.Filename, e.Pages, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// PageSource yields rendered pages in document order. *raster.Pages
// satisfies it.
type PageSource interface {
	Next() bool
	Page() raster.Page
	Err() error
	Close() error
}

var _ PageSource = (*raster.Pages)(nil)

// Config configures an Extractor.
type Config struct {
	Provider    providers.OCRProvider
	PageTimeout time.Duration          // default DefaultPageTimeout
	Limiter     *providers.RateLimiter // default: built from provider's RPS
	Logger      *slog.Logger
	Recorder    *calllog.Recorder // optional call audit
}

// Extractor runs per-page OCR against one provider.
type Extractor struct {
	provider    providers.OCRProvider
	pageTimeout time.Duration
	limiter     *providers.RateLimiter
	logger      *slog.Logger
	recorder    *calllog.Recorder
}

// New creates a new Extractor.
func New(cfg Config) *Extractor {
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = DefaultPageTimeout
	}
	if cfg.Limiter == nil && cfg.Provider != nil {
		cfg.Limiter = providers.NewRateLimiter(cfg.Provider.RequestsPerSecond())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Extractor{
		provider:    cfg.Provider,
		pageTimeout: cfg.PageTimeout,
		limiter:     cfg.Limiter,
		logger:      cfg.Logger,
		recorder:    cfg.Recorder,
	}
}

// Extract runs OCR over every page of the iterator and assembles the
// document text. Timed-out and failed pages contribute empty text and are
// flagged in the page trail. The returned Text is valid even when an
// ExtractionError accompanies it, so callers keep the trail.
func (e *Extractor) Extract(ctx context.Context, filename string, pages PageSource) (*Text, error) {
	defer pages.Close()

	var (
		texts     []string
		statuses  []PageStatus
		succeeded int
		hardErrs  int
		firstHard error
	)

	for pages.Next() {
		page := pages.Page()

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := e.processPage(ctx, filename, page)
		if ctx.Err() != nil {
			// Parent cancelled or deadlined; page-level timeouts never
			// trip this because they run on a child context.
			return nil, ctx.Err()
		}

		status := PageStatus{Number: page.Number}
		switch {
		case err == nil:
			status.OK = true
			texts = append(texts, result.Text)
			succeeded++
		case errors.Is(err, context.DeadlineExceeded):
			status.TimedOut = true
			texts = append(texts, "")
			e.logger.Warn("page OCR timed out",
				"document", filename,
				"page", page.Number,
				"timeout", e.pageTimeout)
		default:
			status.Err = err.Error()
			texts = append(texts, "")
			hardErrs++
			if firstHard == nil {
				firstHard = err
			}
			e.logger.Warn("page OCR failed",
				"document", filename,
				"page", page.Number,
				"error", err)
		}
		statuses = append(statuses, status)
	}
	if err := pages.Err(); err != nil {
		return nil, err
	}

	text := &Text{
		Filename: filename,
		Text:     strings.Join(texts, pageSeparator),
		Pages:    statuses,
	}

	if len(statuses) > 0 && succeeded == 0 && hardErrs > 0 {
		return text, &ExtractionError{Filename: filename, Pages: len(statuses), Err: firstHard}
	}
	return text, nil
}

// processPage runs one page with the provider's retry policy. Timeouts are
// recorded rather than retried; a page that cannot finish in the budget once
// will not finish it twice.
func (e *Extractor) processPage(ctx context.Context, filename string, page raster.Page) (*providers.OCRResult, error) {
	attempts := e.provider.MaxRetries()
	if attempts < 1 {
		attempts = 1
	}

	var result *providers.OCRResult
	err := retry.Do(
		func() error {
			pageCtx, cancel := context.WithTimeout(ctx, e.pageTimeout)
			defer cancel()

			var callErr error
			result, callErr = e.provider.ProcessImage(pageCtx, page.PNG, page.Number)
			e.record(ctx, filename, page.Number, result)
			return callErr
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(e.provider.RetryDelayBase()),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return false
			}
			var rle *providers.RateLimitError
			if errors.As(err, &rle) {
				e.limiter.Record429(rle.RetryAfter)
			}
			return true
		}),
	)
	return result, err
}

func (e *Extractor) record(ctx context.Context, filename string, pageNum int, result *providers.OCRResult) {
	if e.recorder == nil || result == nil {
		return
	}
	e.recorder.RecordOCR(e.provider.Name(), result, calllog.RecordOptions{
		VerificationID: calllog.VerificationFrom(ctx),
		Document:       filename,
		Page:           pageNum,
	})
}

package ocr

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/veridocproj/veridoc/internal/calllog"
	"github.com/veridocproj/veridoc/internal/providers"
	"github.com/veridocproj/veridoc/internal/raster"
)

type stubPages struct {
	pages  []raster.Page
	idx    int
	err    error
	closed bool
}

func (s *stubPages) Next() bool {
	if s.idx < len(s.pages) {
		s.idx++
		return true
	}
	return false
}

func (s *stubPages) Page() raster.Page { return s.pages[s.idx-1] }
func (s *stubPages) Err() error        { return s.err }
func (s *stubPages) Close() error      { s.closed = true; return nil }

func threePages() *stubPages {
	return &stubPages{pages: []raster.Page{
		{Number: 1, PNG: []byte("p1")},
		{Number: 2, PNG: []byte("p2")},
		{Number: 3, PNG: []byte("p3")},
	}}
}

func TestExtractor_Extract(t *testing.T) {
	t.Run("all pages succeed", func(t *testing.T) {
		provider := providers.NewMockOCRProvider()
		provider.PageText = map[int]string{1: "alpha", 2: "beta", 3: "gamma"}
		pages := threePages()

		text, err := New(Config{Provider: provider}).Extract(context.Background(), "marksheet.pdf", pages)
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if text.Text != "alpha\n\f\nbeta\n\f\ngamma" {
			t.Errorf("Text = %q", text.Text)
		}
		if text.PageCount() != 3 || text.SucceededPages() != 3 {
			t.Errorf("pages = %d succeeded = %d", text.PageCount(), text.SucceededPages())
		}
		for _, p := range text.Pages {
			if !p.OK || p.TimedOut || p.Err != "" {
				t.Errorf("page %d status = %+v", p.Number, p)
			}
		}
		if !pages.closed {
			t.Error("page source not closed")
		}
	})

	t.Run("timed-out page recorded not dropped", func(t *testing.T) {
		provider := providers.NewMockOCRProvider()
		provider.PageText = map[int]string{1: "alpha", 3: "gamma"}
		provider.PageLatency = map[int]time.Duration{2: time.Second}

		text, err := New(Config{
			Provider:    provider,
			PageTimeout: 50 * time.Millisecond,
		}).Extract(context.Background(), "marksheet.pdf", threePages())

		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if text.Text != "alpha\n\f\n\n\f\ngamma" {
			t.Errorf("Text = %q, want empty slot for page 2", text.Text)
		}
		if !text.Pages[1].TimedOut {
			t.Error("page 2 not flagged TimedOut")
		}
		if text.Pages[1].OK {
			t.Error("page 2 should not be OK")
		}
		if text.SucceededPages() != 2 {
			t.Errorf("SucceededPages() = %d, want 2", text.SucceededPages())
		}
	})

	t.Run("hard page failure recorded", func(t *testing.T) {
		provider := providers.NewMockOCRProvider()
		provider.FailPages = map[int]bool{2: true}

		text, err := New(Config{Provider: provider}).Extract(context.Background(), "marksheet.pdf", threePages())
		if err != nil {
			t.Fatalf("Extract() error = %v, partial failure should not error", err)
		}
		if text.Pages[1].Err == "" {
			t.Error("page 2 error not recorded")
		}
		if text.Pages[1].TimedOut {
			t.Error("hard failure must not be flagged as timeout")
		}
	})

	t.Run("total hard failure returns ExtractionError with trail", func(t *testing.T) {
		provider := providers.NewMockOCRProvider()
		provider.ShouldFail = true
		provider.Retries = 1

		text, err := New(Config{Provider: provider}).Extract(context.Background(), "blank.pdf", threePages())
		var extErr *ExtractionError
		if !errors.As(err, &extErr) {
			t.Fatalf("err = %v, want *ExtractionError", err)
		}
		if extErr.Filename != "blank.pdf" {
			t.Errorf("Filename = %q", extErr.Filename)
		}
		if extErr.Pages != 3 {
			t.Errorf("Pages = %d, want 3", extErr.Pages)
		}
		if text == nil {
			t.Fatal("Text should accompany ExtractionError")
		}
		if len(text.Pages) != 3 {
			t.Errorf("trail has %d pages", len(text.Pages))
		}
	})

	t.Run("all-timeout document is not an extraction error", func(t *testing.T) {
		provider := providers.NewMockOCRProvider()
		provider.PageLatency = map[int]time.Duration{1: time.Second, 2: time.Second, 3: time.Second}

		text, err := New(Config{
			Provider:    provider,
			PageTimeout: 30 * time.Millisecond,
		}).Extract(context.Background(), "scan.pdf", threePages())

		if err != nil {
			t.Fatalf("Extract() error = %v, timeouts alone must not escalate", err)
		}
		for _, p := range text.Pages {
			if !p.TimedOut {
				t.Errorf("page %d not flagged TimedOut", p.Number)
			}
		}
	})

	t.Run("mixed timeout and hard failure escalates when nothing succeeds", func(t *testing.T) {
		provider := providers.NewMockOCRProvider()
		provider.PageLatency = map[int]time.Duration{1: time.Second}
		provider.FailPages = map[int]bool{2: true, 3: true}
		provider.Retries = 1

		_, err := New(Config{
			Provider:    provider,
			PageTimeout: 30 * time.Millisecond,
		}).Extract(context.Background(), "scan.pdf", threePages())

		var extErr *ExtractionError
		if !errors.As(err, &extErr) {
			t.Fatalf("err = %v, want *ExtractionError", err)
		}
	})

	t.Run("raster error propagates", func(t *testing.T) {
		rasterErr := &raster.Error{Filename: "broken.pdf", Err: errors.New("pdftoppm exit 1")}
		pages := &stubPages{
			pages: []raster.Page{{Number: 1, PNG: []byte("p1")}},
			err:   rasterErr,
		}

		provider := providers.NewMockOCRProvider()
		_, err := New(Config{Provider: provider}).Extract(context.Background(), "broken.pdf", pages)

		var re *raster.Error
		if !errors.As(err, &re) {
			t.Fatalf("err = %v, want *raster.Error", err)
		}
	})

	t.Run("parent cancellation aborts", func(t *testing.T) {
		provider := providers.NewMockOCRProvider()
		provider.Latency = time.Second

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		text, err := New(Config{Provider: provider}).Extract(ctx, "doc.pdf", threePages())
		if err == nil {
			t.Fatal("expected error")
		}
		if text != nil {
			t.Error("no Text expected on abort")
		}
	})

	t.Run("transient hard errors retried per provider policy", func(t *testing.T) {
		provider := providers.NewMockOCRProvider()
		provider.FailFirst = 1
		provider.Retries = 3
		provider.RetryDelay = time.Millisecond

		pages := &stubPages{pages: []raster.Page{{Number: 1, PNG: []byte("p1")}}}
		text, err := New(Config{Provider: provider}).Extract(context.Background(), "doc.pdf", pages)
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if !text.Pages[0].OK {
			t.Error("page should succeed after retry")
		}
		if provider.RequestCount() != 2 {
			t.Errorf("RequestCount = %d, want 2 (one failure, one retry)", provider.RequestCount())
		}
	})

	t.Run("audit rows written per page attempt", func(t *testing.T) {
		store, err := calllog.Open(filepath.Join(t.TempDir(), "calls.db"))
		if err != nil {
			t.Fatalf("calllog.Open() error = %v", err)
		}
		defer store.Close()

		rec := calllog.NewRecorder(store, nil)
		rec.Start()

		provider := providers.NewMockOCRProvider()
		ctx := calllog.WithVerification(context.Background(), "run-42")

		_, err = New(Config{Provider: provider, Recorder: rec}).Extract(ctx, "marksheet.pdf", threePages())
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		rec.Stop()

		calls, err := store.ByVerification(context.Background(), "run-42")
		if err != nil {
			t.Fatalf("ByVerification() error = %v", err)
		}
		if len(calls) != 3 {
			t.Fatalf("recorded %d calls, want 3", len(calls))
		}
		for _, c := range calls {
			if c.Kind != calllog.KindOCR {
				t.Errorf("Kind = %q", c.Kind)
			}
			if c.Document != "marksheet.pdf" {
				t.Errorf("Document = %q", c.Document)
			}
		}
	})
}

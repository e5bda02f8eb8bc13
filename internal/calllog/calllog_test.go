package calllog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/veridocproj/veridoc/internal/providers"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "calls.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_InsertAndQuery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	calls := []*Call{
		{ID: "a", Timestamp: time.Now().Add(-2 * time.Minute), Kind: KindOCR, Provider: "tesseract", Document: "marksheet.pdf", Page: 1, Success: true, VerificationID: "run-1"},
		{ID: "b", Timestamp: time.Now().Add(-1 * time.Minute), Kind: KindOCR, Provider: "tesseract", Document: "marksheet.pdf", Page: 2, Success: false, Error: "deadline exceeded", VerificationID: "run-1"},
		{ID: "c", Timestamp: time.Now(), Kind: KindLLM, Provider: "openrouter", Model: "anthropic/claude-3.5-sonnet", InputTokens: 900, OutputTokens: 120, CostUSD: 0.004, Success: true, VerificationID: "run-2"},
	}
	for _, c := range calls {
		if err := store.Insert(ctx, c); err != nil {
			t.Fatalf("Insert(%s) error = %v", c.ID, err)
		}
	}

	t.Run("recent newest first", func(t *testing.T) {
		got, err := store.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("Recent() len = %d, want 3", len(got))
		}
		if got[0].ID != "c" {
			t.Errorf("newest = %s, want c", got[0].ID)
		}
		if got[0].CostUSD != 0.004 {
			t.Errorf("CostUSD = %v", got[0].CostUSD)
		}
	})

	t.Run("recent respects limit", func(t *testing.T) {
		got, err := store.Recent(ctx, 1)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(got) != 1 {
			t.Errorf("len = %d, want 1", len(got))
		}
	})

	t.Run("by verification oldest first", func(t *testing.T) {
		got, err := store.ByVerification(ctx, "run-1")
		if err != nil {
			t.Fatalf("ByVerification() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].ID != "a" || got[1].ID != "b" {
			t.Errorf("order = %s, %s", got[0].ID, got[1].ID)
		}
		if got[1].Success {
			t.Error("failed call should round-trip Success = false")
		}
		if got[1].Error != "deadline exceeded" {
			t.Errorf("Error = %q", got[1].Error)
		}
	})

	t.Run("count by provider", func(t *testing.T) {
		counts, err := store.CountByProvider(ctx)
		if err != nil {
			t.Fatalf("CountByProvider() error = %v", err)
		}
		if counts["tesseract"] != 2 {
			t.Errorf("tesseract count = %d, want 2", counts["tesseract"])
		}
		if counts["openrouter"] != 1 {
			t.Errorf("openrouter count = %d, want 1", counts["openrouter"])
		}
	})
}

func TestFromChatResult(t *testing.T) {
	result := &providers.ChatResult{
		Provider:         "openrouter",
		ModelUsed:        "anthropic/claude-3.5-sonnet",
		PromptTokens:     800,
		CompletionTokens: 90,
		CostUSD:          0.003,
		TotalTime:        1400 * time.Millisecond,
		Success:          true,
	}

	call := FromChatResult(result, RecordOptions{VerificationID: "run-9", Document: "transcript.pdf"})
	if call == nil {
		t.Fatal("FromChatResult returned nil")
	}
	if call.Kind != KindLLM {
		t.Errorf("Kind = %q", call.Kind)
	}
	if call.LatencyMs != 1400 {
		t.Errorf("LatencyMs = %d", call.LatencyMs)
	}
	if call.ID == "" {
		t.Error("missing generated ID")
	}
	if call.VerificationID != "run-9" {
		t.Errorf("VerificationID = %q", call.VerificationID)
	}

	if FromChatResult(nil, RecordOptions{}) != nil {
		t.Error("nil result should produce nil call")
	}
}

func TestFromOCRResult(t *testing.T) {
	result := &providers.OCRResult{
		Success:       false,
		ErrorMessage:  "tesseract failed",
		ExecutionTime: 250 * time.Millisecond,
	}

	call := FromOCRResult("tesseract", result, RecordOptions{Document: "idcard.png", Page: 1})
	if call.Kind != KindOCR {
		t.Errorf("Kind = %q", call.Kind)
	}
	if call.Provider != "tesseract" {
		t.Errorf("Provider = %q", call.Provider)
	}
	if call.Error != "tesseract failed" {
		t.Errorf("Error = %q", call.Error)
	}
	if call.Page != 1 {
		t.Errorf("Page = %d", call.Page)
	}
}

func TestRecorder(t *testing.T) {
	t.Run("records asynchronously", func(t *testing.T) {
		store := openTestStore(t)
		rec := NewRecorder(store, nil)
		rec.Start()

		rec.RecordOCR("tesseract", &providers.OCRResult{Success: true}, RecordOptions{Document: "a.pdf", Page: 1})
		rec.RecordChat(&providers.ChatResult{Provider: "openrouter", Success: true}, RecordOptions{Document: "a.pdf"})
		rec.Stop()

		got, err := store.Recent(context.Background(), 10)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("recorded %d calls, want 2", len(got))
		}
	})

	t.Run("nil store discards silently", func(t *testing.T) {
		rec := NewRecorder(nil, nil)
		rec.Start()
		rec.RecordOCR("tesseract", &providers.OCRResult{Success: true}, RecordOptions{})
		rec.Stop()
	})

	t.Run("record after stop does not panic", func(t *testing.T) {
		store := openTestStore(t)
		rec := NewRecorder(store, nil)
		rec.Start()
		rec.Stop()
		rec.RecordOCR("tesseract", &providers.OCRResult{Success: true}, RecordOptions{})
	})
}

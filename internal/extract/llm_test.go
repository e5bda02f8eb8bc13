package extract

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/veridocproj/veridoc/internal/calllog"
	"github.com/veridocproj/veridoc/internal/fields"
	"github.com/veridocproj/veridoc/internal/providers"
)

// recordingClient captures the request it receives.
type recordingClient struct {
	lastReq *providers.ChatRequest
	calls   int
	result  *providers.ChatResult
}

func (c *recordingClient) Name() string { return "recording" }

func (c *recordingClient) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
	c.calls++
	c.lastReq = req
	return c.result, nil
}

type blockingClient struct{}

func (blockingClient) Name() string { return "blocking" }

func (blockingClient) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestLLMStrategy_ExtractFields(t *testing.T) {
	ctx := context.Background()

	t.Run("successful extraction", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.ResponseJSON = json.RawMessage(`{
			"name": "PRIYA SHARMA",
			"dob": "15-06-2004",
			"passing_year": "2022",
			"board": "CBSE",
			"gender": "female",
			"identity_number": null
		}`)

		s := NewLLMStrategy(LLMConfig{Client: mock})
		obs, err := s.ExtractFields(ctx, docText("marksheet.pdf", "some ocr text"))
		if err != nil {
			t.Fatalf("ExtractFields() error = %v", err)
		}

		got := byField(obs)
		if len(obs) != 5 {
			t.Errorf("observations = %d, want 5 (identity_number is null)", len(obs))
		}
		if got[fields.FieldName] != "PRIYA SHARMA" {
			t.Errorf("name = %q", got[fields.FieldName])
		}
		if got[fields.FieldBoard] != "CBSE" {
			t.Errorf("board = %q", got[fields.FieldBoard])
		}
		if _, ok := got[fields.FieldIdentityNumber]; ok {
			t.Error("null field produced an observation")
		}
		for _, o := range obs {
			if o.Source != "marksheet.pdf" {
				t.Errorf("Source = %q", o.Source)
			}
		}
	})

	t.Run("request carries schema and cleaned text", func(t *testing.T) {
		client := &recordingClient{result: &providers.ChatResult{
			Success: true,
			Content: `{"name":null,"dob":null,"passing_year":null,"board":null,"gender":null,"identity_number":null}`,
		}}

		s := NewLLMStrategy(LLMConfig{Client: client, Model: "test-model"})
		_, err := s.ExtractFields(ctx, docText("cert.pdf", "Name:\tRAVI KUMAR\x00\n\n\n\nBoard: CBSE"))
		if err != nil {
			t.Fatalf("ExtractFields() error = %v", err)
		}

		req := client.lastReq
		if req == nil {
			t.Fatal("no request sent")
		}
		if req.Model != "test-model" {
			t.Errorf("Model = %q", req.Model)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
			t.Fatalf("ResponseFormat = %+v", req.ResponseFormat)
		}

		var schema struct {
			Name   string `json:"name"`
			Strict bool   `json:"strict"`
			Schema struct {
				Required []string `json:"required"`
			} `json:"schema"`
		}
		if err := json.Unmarshal(req.ResponseFormat.JSONSchema, &schema); err != nil {
			t.Fatalf("schema not valid JSON: %v", err)
		}
		if schema.Name != "admission_fields" || !schema.Strict {
			t.Errorf("schema wrapper = %+v", schema)
		}
		if len(schema.Schema.Required) != 6 {
			t.Errorf("required fields = %v, want 6", schema.Schema.Required)
		}

		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Fatalf("messages = %+v", req.Messages)
		}
		user := req.Messages[1].Content
		if !strings.Contains(user, "cert.pdf") {
			t.Error("user prompt missing document name")
		}
		if !strings.Contains(user, "Name: RAVIKUMAR") {
			t.Errorf("user prompt not cleaned: %q", user)
		}
		if strings.Contains(user, "\x00") || strings.Contains(user, " ") {
			t.Error("user prompt carries non-printable characters")
		}
	})

	t.Run("provider failure yields zero observations", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.ShouldFail = true

		s := NewLLMStrategy(LLMConfig{Client: mock})
		obs, err := s.ExtractFields(ctx, docText("cert.pdf", "some text"))
		if err != nil {
			t.Fatalf("ExtractFields() error = %v, provider failures are not fatal", err)
		}
		if obs != nil {
			t.Errorf("obs = %v, want nil", obs)
		}
	})

	t.Run("non-conforming response yields zero observations", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.ResponseJSON = json.RawMessage(`["not", "an", "object"]`)

		s := NewLLMStrategy(LLMConfig{Client: mock})
		obs, err := s.ExtractFields(ctx, docText("cert.pdf", "some text"))
		if err != nil {
			t.Fatalf("ExtractFields() error = %v", err)
		}
		if obs != nil {
			t.Errorf("obs = %v, want nil", obs)
		}
	})

	t.Run("all-null response yields zero observations", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.ResponseJSON = json.RawMessage(`{"name":null,"dob":null,"passing_year":null,"board":null,"gender":null,"identity_number":null}`)

		s := NewLLMStrategy(LLMConfig{Client: mock})
		obs, err := s.ExtractFields(ctx, docText("blank.pdf", "some text"))
		if err != nil {
			t.Fatalf("ExtractFields() error = %v", err)
		}
		if len(obs) != 0 {
			t.Errorf("obs = %v, want none", obs)
		}
	})

	t.Run("empty text never calls the provider", func(t *testing.T) {
		client := &recordingClient{result: &providers.ChatResult{Success: true}}
		s := NewLLMStrategy(LLMConfig{Client: client})

		obs, err := s.ExtractFields(ctx, docText("blank.pdf", " \x07 © "))
		if err != nil || obs != nil {
			t.Fatalf("obs = %v, err = %v", obs, err)
		}
		if client.calls != 0 {
			t.Errorf("provider called %d times for empty text", client.calls)
		}
	})

	t.Run("cancellation propagates", func(t *testing.T) {
		s := NewLLMStrategy(LLMConfig{Client: blockingClient{}})

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := s.ExtractFields(cctx, docText("cert.pdf", "some text"))
		if err == nil {
			t.Fatal("expected context error")
		}
	})

	t.Run("calls audited", func(t *testing.T) {
		store, err := calllog.Open(filepath.Join(t.TempDir(), "calls.db"))
		if err != nil {
			t.Fatalf("calllog.Open() error = %v", err)
		}
		defer store.Close()
		rec := calllog.NewRecorder(store, nil)
		rec.Start()

		mock := providers.NewMockClient()
		mock.ResponseJSON = json.RawMessage(`{"name":"A","dob":null,"passing_year":null,"board":null,"gender":null,"identity_number":null}`)

		s := NewLLMStrategy(LLMConfig{Client: mock, Recorder: rec})
		vctx := calllog.WithVerification(ctx, "run-7")
		if _, err := s.ExtractFields(vctx, docText("cert.pdf", "some text")); err != nil {
			t.Fatalf("ExtractFields() error = %v", err)
		}
		rec.Stop()

		calls, err := store.ByVerification(ctx, "run-7")
		if err != nil {
			t.Fatalf("ByVerification() error = %v", err)
		}
		if len(calls) != 1 {
			t.Fatalf("recorded %d calls, want 1", len(calls))
		}
		if calls[0].Kind != calllog.KindLLM {
			t.Errorf("Kind = %q", calls[0].Kind)
		}
		if calls[0].Document != "cert.pdf" {
			t.Errorf("Document = %q", calls[0].Document)
		}
	})
}

func TestCleanText(t *testing.T) {
	t.Run("strips and collapses", func(t *testing.T) {
		in := "Name:\tPRIYA SHARMA\x00\x1b\nBoard:   CBSE\n\n\n\n\nEnd"
		got := cleanText(in)
		want := "Name: PRIYASHARMA\nBoard: CBSE\n\nEnd"
		if got != want {
			t.Errorf("cleanText() = %q, want %q", got, want)
		}
	})

	t.Run("caps length", func(t *testing.T) {
		in := strings.Repeat("a", maxPromptChars+500)
		got := cleanText(in)
		if len(got) != maxPromptChars {
			t.Errorf("len = %d, want %d", len(got), maxPromptChars)
		}
	})

	t.Run("ascii text unchanged", func(t *testing.T) {
		in := "Name: RAVI KUMAR\nDOB: 15-06-2004"
		if got := cleanText(in); got != in {
			t.Errorf("cleanText() = %q", got)
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("pattern is the default", func(t *testing.T) {
		s, err := New(Config{})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if s.Name() != PatternStrategyName {
			t.Errorf("Name() = %q", s.Name())
		}
	})

	t.Run("llm requires a client", func(t *testing.T) {
		if _, err := New(Config{Strategy: LLMStrategyName}); err == nil {
			t.Error("expected error without client")
		}

		s, err := New(Config{Strategy: LLMStrategyName, Client: providers.NewMockClient()})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if s.Name() != LLMStrategyName {
			t.Errorf("Name() = %q", s.Name())
		}
	})

	t.Run("unknown strategy rejected", func(t *testing.T) {
		if _, err := New(Config{Strategy: "divination"}); err == nil {
			t.Error("expected error")
		}
	})
}

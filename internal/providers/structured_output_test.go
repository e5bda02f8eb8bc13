package providers

import (
	"encoding/json"
	"testing"
)

func TestParseStructuredJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{
			name:    "plain object",
			content: `{"name":"ada"}`,
			want:    `{"name":"ada"}`,
		},
		{
			name:    "code fence",
			content: "```json\n{\"name\":\"ada\"}\n```",
			want:    `{"name":"ada"}`,
		},
		{
			name:    "fence without language tag",
			content: "```\n{\"name\":\"ada\"}\n```",
			want:    `{"name":"ada"}`,
		},
		{
			name:    "surrounding prose",
			content: "Here is the extraction:\n{\"name\":\"ada\"}\nLet me know if you need anything else.",
			want:    `{"name":"ada"}`,
		},
		{
			name:    "array payload",
			content: `[{"field":"dob","value":"2004-03-12"}]`,
			want:    `[{"field":"dob","value":"2004-03-12"}]`,
		},
		{
			name:    "empty content",
			content: "",
			wantErr: true,
		},
		{
			name:    "no json at all",
			content: "the document was unreadable",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStructuredJSON(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseStructuredJSON(%q) expected error", tt.content)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseStructuredJSON() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("parseStructuredJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestValidateStructuredJSON(t *testing.T) {
	schema := json.RawMessage(`{
		"name":"student_fields",
		"strict":true,
		"schema":{
			"type":"object",
			"properties":{
				"name":{"type":["string","null"]},
				"dob":{"type":["string","null"]}
			},
			"required":["name","dob"],
			"additionalProperties":false
		}
	}`)

	t.Run("valid document", func(t *testing.T) {
		doc := json.RawMessage(`{"name":"ADA LOVELACE","dob":"2004-03-12"}`)
		if err := validateStructuredJSON(schema, doc); err != nil {
			t.Fatalf("validateStructuredJSON() error = %v", err)
		}
	})

	t.Run("null fields allowed", func(t *testing.T) {
		doc := json.RawMessage(`{"name":null,"dob":null}`)
		if err := validateStructuredJSON(schema, doc); err != nil {
			t.Fatalf("validateStructuredJSON() error = %v", err)
		}
	})

	t.Run("missing required field", func(t *testing.T) {
		doc := json.RawMessage(`{"name":"ADA LOVELACE"}`)
		if err := validateStructuredJSON(schema, doc); err == nil {
			t.Fatal("expected error for missing required field")
		}
	})

	t.Run("unexpected field rejected", func(t *testing.T) {
		doc := json.RawMessage(`{"name":"x","dob":"y","roll_no":"z"}`)
		if err := validateStructuredJSON(schema, doc); err == nil {
			t.Fatal("expected error for additional property")
		}
	})

	t.Run("empty schema is a no-op", func(t *testing.T) {
		if err := validateStructuredJSON(nil, json.RawMessage(`{"anything":1}`)); err != nil {
			t.Fatalf("validateStructuredJSON() error = %v", err)
		}
	})
}

func TestExtractValidationSchema(t *testing.T) {
	t.Run("unwraps name-strict-schema wrapper", func(t *testing.T) {
		raw := json.RawMessage(`{"name":"x","strict":true,"schema":{"type":"object"}}`)
		got, err := extractValidationSchema(raw)
		if err != nil {
			t.Fatalf("extractValidationSchema() error = %v", err)
		}
		if string(got) != `{"type":"object"}` {
			t.Errorf("got %s", got)
		}
	})

	t.Run("unwraps json_schema wrapper", func(t *testing.T) {
		raw := json.RawMessage(`{"type":"json_schema","json_schema":{"schema":{"type":"array"}}}`)
		got, err := extractValidationSchema(raw)
		if err != nil {
			t.Fatalf("extractValidationSchema() error = %v", err)
		}
		if string(got) != `{"type":"array"}` {
			t.Errorf("got %s", got)
		}
	})

	t.Run("raw schema passes through", func(t *testing.T) {
		raw := json.RawMessage(`{"type":"object","properties":{}}`)
		got, err := extractValidationSchema(raw)
		if err != nil {
			t.Fatalf("extractValidationSchema() error = %v", err)
		}
		if string(got) != string(raw) {
			t.Errorf("got %s", got)
		}
	})
}

func TestAdaptedResponseFormat(t *testing.T) {
	rf := &ResponseFormat{
		Type:       "json_schema",
		JSONSchema: json.RawMessage(`{"schema":{"type":"object"}}`),
	}

	t.Run("nil format stays nil", func(t *testing.T) {
		got, err := adaptedResponseFormat("test-model", nil)
		if err != nil || got != nil {
			t.Fatalf("got %v, %v", got, err)
		}
	})

	t.Run("anthropic models fall back to prompt mode", func(t *testing.T) {
		got, err := adaptedResponseFormat("anthropic/claude-3.5-sonnet", rf)
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		if got != nil {
			t.Errorf("expected nil format for anthropic model, got %+v", got)
		}
	})

	t.Run("other models keep native format", func(t *testing.T) {
		got, err := adaptedResponseFormat("openai/gpt-4o-mini", rf)
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		if got == nil {
			t.Fatal("expected native format")
		}
		if got.Type != "json_schema" {
			t.Errorf("Type = %q", got.Type)
		}
	})
}

func TestParseAndValidateStructured(t *testing.T) {
	schema := json.RawMessage(`{"schema":{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}}`)

	t.Run("fenced valid output", func(t *testing.T) {
		got, err := parseAndValidateStructured(schema, "```json\n{\"name\":\"ok\"}\n```")
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		if string(got) != `{"name":"ok"}` {
			t.Errorf("got %s", got)
		}
	})

	t.Run("schema violation", func(t *testing.T) {
		if _, err := parseAndValidateStructured(schema, `{"name":42}`); err == nil {
			t.Fatal("expected validation error")
		}
	})
}

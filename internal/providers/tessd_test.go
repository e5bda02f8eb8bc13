package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func tessServerOK(stdout string) string {
	return fmt.Sprintf(`{"data":{"exit":{"code":0,"signal":null},"stderr":"","stdout":%q}}`, stdout)
}

func TestTessServerClient_ProcessImage(t *testing.T) {
	t.Run("successful extraction", func(t *testing.T) {
		var gotOptions tessServerOptions
		var gotFilename string
		var gotImage []byte

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/tesseract" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if err := r.ParseMultipartForm(16 << 20); err != nil {
				t.Fatalf("ParseMultipartForm: %v", err)
			}
			if err := json.Unmarshal([]byte(r.FormValue("options")), &gotOptions); err != nil {
				t.Fatalf("options field: %v", err)
			}
			file, header, err := r.FormFile("file")
			if err != nil {
				t.Fatalf("file field: %v", err)
			}
			defer file.Close()
			gotFilename = header.Filename
			gotImage, _ = io.ReadAll(file)

			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, tessServerOK("Board: CBSE\nPassing Year: 2021\n"))
		}))
		defer server.Close()

		client := NewTessServerClient(TessServerConfig{
			BaseURL:   server.URL,
			Languages: []string{"eng"},
			PSM:       3,
		})

		result, err := client.ProcessImage(context.Background(), []byte("png-bytes"), 7)
		if err != nil {
			t.Fatalf("ProcessImage() error = %v", err)
		}
		if !result.Success {
			t.Error("expected Success = true")
		}
		if !strings.Contains(result.Text, "CBSE") {
			t.Errorf("Text = %q", result.Text)
		}
		if len(gotOptions.Languages) != 1 || gotOptions.Languages[0] != "eng" {
			t.Errorf("options languages = %v", gotOptions.Languages)
		}
		if gotOptions.PSM != 3 {
			t.Errorf("options psm = %d, want 3", gotOptions.PSM)
		}
		if gotFilename != "page_0007.png" {
			t.Errorf("upload filename = %q", gotFilename)
		}
		if string(gotImage) != "png-bytes" {
			t.Errorf("uploaded image = %q", gotImage)
		}
	})

	t.Run("nonzero exit code", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"data":{"exit":{"code":1,"signal":null},"stderr":"Error, unknown command line argument","stdout":""}}`)
		}))
		defer server.Close()

		client := NewTessServerClient(TessServerConfig{BaseURL: server.URL})

		result, err := client.ProcessImage(context.Background(), []byte("png"), 1)
		if err == nil {
			t.Fatal("expected error")
		}
		if result.Success {
			t.Error("expected Success = false")
		}
		if !strings.Contains(result.ErrorMessage, "exited with code 1") {
			t.Errorf("ErrorMessage = %q", result.ErrorMessage)
		}
		if !strings.Contains(result.ErrorMessage, "unknown command line argument") {
			t.Errorf("ErrorMessage = %q, want stderr detail", result.ErrorMessage)
		}
	})

	t.Run("http error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewTessServerClient(TessServerConfig{BaseURL: server.URL})

		result, err := client.ProcessImage(context.Background(), []byte("png"), 1)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(result.ErrorMessage, "status 500") {
			t.Errorf("ErrorMessage = %q", result.ErrorMessage)
		}
	})

	t.Run("unreachable server", func(t *testing.T) {
		client := NewTessServerClient(TessServerConfig{BaseURL: "http://127.0.0.1:1"})

		_, err := client.ProcessImage(context.Background(), []byte("png"), 1)
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestTessServerClient_HealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewTessServerClient(TessServerConfig{BaseURL: server.URL})
		if err := client.HealthCheck(context.Background()); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
	})

	t.Run("unhealthy on 5xx", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewTessServerClient(TessServerConfig{BaseURL: server.URL})
		if err := client.HealthCheck(context.Background()); err == nil {
			t.Error("expected error on 503")
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		client := NewTessServerClient(TessServerConfig{BaseURL: "http://127.0.0.1:1"})
		if err := client.HealthCheck(context.Background()); err == nil {
			t.Error("expected error")
		}
	})
}

func TestTessServerClient_Defaults(t *testing.T) {
	client := NewTessServerClient(TessServerConfig{})

	if client.Name() != TessServerName {
		t.Errorf("Name() = %q", client.Name())
	}
	if client.BaseURL() != TessServerBaseURL {
		t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), TessServerBaseURL)
	}
	if client.RequestsPerSecond() != 8.0 {
		t.Errorf("RequestsPerSecond() = %v, want 8.0", client.RequestsPerSecond())
	}
}

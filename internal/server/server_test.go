package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/veridocproj/veridoc/internal/config"
	"github.com/veridocproj/veridoc/internal/home"
	"github.com/veridocproj/veridoc/internal/ocrd"
	"github.com/veridocproj/veridoc/internal/registry"
	"github.com/veridocproj/veridoc/internal/verify"
)

func testConfigManager(t *testing.T) *config.Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := config.WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	cm, err := config.NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return cm
}

func testHome(t *testing.T) *home.Dir {
	t.Helper()
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}
	return h
}

func TestNew(t *testing.T) {
	t.Run("missing home is rejected", func(t *testing.T) {
		_, err := New(Config{ConfigManager: testConfigManager(t)})
		if err == nil || !strings.Contains(err.Error(), "home") {
			t.Fatalf("New() error = %v, want home directory error", err)
		}
	})

	t.Run("missing config manager is rejected", func(t *testing.T) {
		_, err := New(Config{Home: testHome(t)})
		if err == nil || !strings.Contains(err.Error(), "config") {
			t.Fatalf("New() error = %v, want config manager error", err)
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		srv, err := New(Config{Home: testHome(t), ConfigManager: testConfigManager(t)})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		if srv.Addr() != "127.0.0.1:8080" {
			t.Errorf("Addr() = %q, want %q", srv.Addr(), "127.0.0.1:8080")
		}
		if srv.IsRunning() {
			t.Error("IsRunning() = true before Start")
		}
		// Default config leaves tessd disabled, so no container manager.
		if srv.OcrdManager() != nil {
			t.Error("OcrdManager() != nil with tessd disabled")
		}
		if !srv.Providers().HasOCR("tesseract") {
			t.Errorf("tesseract not registered, OCR providers = %v", srv.Providers().ListOCR())
		}
	})

	t.Run("registry path override wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "override.db")
		srv, err := New(Config{
			Home:          testHome(t),
			ConfigManager: testConfigManager(t),
			RegistryPath:  path,
		})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if srv.registryPath != path {
			t.Errorf("registryPath = %q, want %q", srv.registryPath, path)
		}
	})

	t.Run("registry path falls back to home database", func(t *testing.T) {
		h := testHome(t)
		srv, err := New(Config{Home: h, ConfigManager: testConfigManager(t)})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if srv.registryPath != h.DatabasePath() {
			t.Errorf("registryPath = %q, want %q", srv.registryPath, h.DatabasePath())
		}
	})
}

func TestHasTessd(t *testing.T) {
	tests := []struct {
		name string
		conf *config.Config
		want bool
	}{
		{
			name: "enabled tessd",
			conf: &config.Config{OCRProviders: map[string]config.OCRProviderCfg{
				"tessd": {Type: "tessd", Enabled: true},
			}},
			want: true,
		},
		{
			name: "disabled tessd",
			conf: &config.Config{OCRProviders: map[string]config.OCRProviderCfg{
				"tessd": {Type: "tessd", Enabled: false},
			}},
			want: false,
		},
		{
			name: "only local tesseract",
			conf: &config.Config{OCRProviders: map[string]config.OCRProviderCfg{
				"tesseract": {Type: "tesseract", Enabled: true},
			}},
			want: false,
		},
		{
			name: "no providers",
			conf: &config.Config{},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasTessd(tt.conf); got != tt.want {
				t.Errorf("hasTessd() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProviderConfig_TessdRewrite(t *testing.T) {
	mgr, err := ocrd.NewManager(ocrd.Config{ContainerName: "veridoc-ocrd-test", HostPort: "19999"})
	if err != nil {
		t.Skipf("docker client unavailable: %v", err)
	}
	defer mgr.Close()

	s := &Server{ocrdManager: mgr}
	conf := &config.Config{
		OCRProviders: map[string]config.OCRProviderCfg{
			"tessd":     {Type: "tessd", BaseURL: "http://localhost:8884", Enabled: true},
			"tesseract": {Type: "tesseract", Enabled: true},
		},
	}

	regCfg := s.providerConfig(conf)
	if got := regCfg.OCRProviders["tessd"].BaseURL; got != "http://localhost:19999" {
		t.Errorf("tessd BaseURL = %q, want the managed container URL http://localhost:19999", got)
	}
	if got := regCfg.OCRProviders["tesseract"].BaseURL; got != "" {
		t.Errorf("tesseract BaseURL = %q, want empty", got)
	}
}

func TestRequireInit(t *testing.T) {
	srv, err := New(Config{Home: testHome(t), ConfigManager: testConfigManager(t)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	called := false
	handler := srv.requireInit(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	t.Run("before init returns 503", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/students", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
		if !strings.Contains(rec.Body.String(), "not fully initialized") {
			t.Errorf("body = %q, want initialization error", rec.Body.String())
		}
		if called {
			t.Error("handler called before init")
		}
	})

	t.Run("after init passes through", func(t *testing.T) {
		students, err := registry.Open(filepath.Join(t.TempDir(), "registry.db"))
		if err != nil {
			t.Fatalf("registry open error = %v", err)
		}
		t.Cleanup(func() { students.Close() })
		srv.students = students
		srv.engine = verify.New(verify.Config{})

		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/students", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if !called {
			t.Error("handler not called after init")
		}
	})
}

func TestBuildEngine(t *testing.T) {
	t.Run("default config builds pattern engine", func(t *testing.T) {
		srv, err := New(Config{Home: testHome(t), ConfigManager: testConfigManager(t)})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		engine, err := srv.buildEngine(srv.configMgr.Get())
		if err != nil {
			t.Fatalf("buildEngine() error = %v", err)
		}
		if engine == nil {
			t.Fatal("buildEngine() returned nil engine")
		}
	})

	t.Run("no registered OCR provider fails", func(t *testing.T) {
		srv, err := New(Config{Home: testHome(t), ConfigManager: testConfigManager(t)})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		conf := *srv.configMgr.Get()
		conf.Defaults.OCRProviders = []string{"nonexistent"}
		if _, err := srv.buildEngine(&conf); err == nil {
			t.Error("buildEngine() with unknown provider should fail")
		}
	})

	t.Run("llm strategy without provider fails", func(t *testing.T) {
		if os.Getenv("OPENROUTER_API_KEY") != "" {
			t.Skip("openrouter key present, llm provider would register")
		}
		srv, err := New(Config{Home: testHome(t), ConfigManager: testConfigManager(t)})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		conf := *srv.configMgr.Get()
		conf.Defaults.Strategy = "llm"
		if _, err := srv.buildEngine(&conf); err == nil {
			t.Error("buildEngine() with llm strategy and no provider should fail")
		}
	})
}

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func TestSetLogger(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.InfoLevel)
	SetLogger(logger)
}

func TestApplyDefaults(t *testing.T) {
	t.Run("Config struct defaults", func(t *testing.T) {
		config := &Config{}
		applyDefaults(config)

		if config.Site.Name != "Emkan CMS" {
			t.Errorf("Expected site name 'Emkan CMS', got %q", config.Site.Name)
		}
		if config.API.BaseURL != "https://cms.emkaan.sa/api" {
			t.Errorf("Expected default API URL, got %q", config.API.BaseURL)
		}
		if config.Upload.MaxBytes != 5242880 {
			t.Errorf("Expected 5 MiB upload limit, got %d", config.Upload.MaxBytes)
		}
		if config.Upload.Target != "backend" {
			t.Errorf("Expected backend upload target, got %q", config.Upload.Target)
		}
		if config.Session.Backend != "sqlite" {
			t.Errorf("Expected sqlite session backend, got %q", config.Session.Backend)
		}

		expected := []string{
			"Unauthorized: Please re-login to continue.",
			"Not authorized, no token",
			"User not found",
		}
		if !reflect.DeepEqual(config.API.InvalidSessionMessages, expected) {
			t.Errorf("Expected invalid session messages %v, got %v", expected, config.API.InvalidSessionMessages)
		}
	})

	t.Run("Comma separated slice", func(t *testing.T) {
		type TestStruct struct {
			SliceField []string `default:"a, b,c"`
			IntField   int      `default:"42"`
			BadBool    bool     `default:"nope"`
		}

		test := &TestStruct{}
		applyDefaults(test)

		if !reflect.DeepEqual(test.SliceField, []string{"a", "b", "c"}) {
			t.Errorf("Expected [a b c], got %v", test.SliceField)
		}
		if test.IntField != 42 {
			t.Errorf("Expected 42, got %d", test.IntField)
		}
		if test.BadBool {
			t.Error("Expected invalid bool default to remain false")
		}
	})

	t.Run("Non-struct input", func(t *testing.T) {
		stringVar := "test"
		applyDefaults(&stringVar)
		applyDefaults(stringVar)
		applyDefaults(42)
		applyDefaults(nil)
	})
}

func TestDefaultsGoldenFile(t *testing.T) {
	goldenData, err := os.ReadFile("testdata/defaults.yaml")
	if err != nil {
		t.Fatalf("Failed to read golden defaults file: %v", err)
	}

	var golden Config
	if err := yaml.Unmarshal(goldenData, &golden); err != nil {
		t.Fatalf("Failed to parse golden config: %v", err)
	}

	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Site != golden.Site {
		t.Errorf("Site mismatch: got %+v, want %+v", cfg.Site, golden.Site)
	}
	if cfg.Server != golden.Server {
		t.Errorf("Server mismatch: got %+v, want %+v", cfg.Server, golden.Server)
	}
	if !reflect.DeepEqual(cfg.API, golden.API) {
		t.Errorf("API mismatch: got %+v, want %+v", cfg.API, golden.API)
	}
	if cfg.Session != golden.Session {
		t.Errorf("Session mismatch: got %+v, want %+v", cfg.Session, golden.Session)
	}
	if cfg.Upload.MaxBytes != golden.Upload.MaxBytes || cfg.Upload.Target != golden.Upload.Target {
		t.Errorf("Upload mismatch: got %+v, want %+v", cfg.Upload, golden.Upload)
	}
}

func TestLoadConfig(t *testing.T) {
	SetLogger(zerolog.Nop())

	t.Run("Missing file uses defaults", func(t *testing.T) {
		err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if AppConfig.Server.Port != "12700" {
			t.Errorf("Expected default port, got %q", AppConfig.Server.Port)
		}
	})

	t.Run("File overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "api:\n  base_url: http://localhost:5000/api\n  timeout: 5s\nupload:\n  max_bytes: 1024\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}

		if err := LoadConfig(path); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if AppConfig.API.BaseURL != "http://localhost:5000/api" {
			t.Errorf("Expected overridden base URL, got %q", AppConfig.API.BaseURL)
		}
		if AppConfig.API.RequestTimeout() != 5*time.Second {
			t.Errorf("Expected 5s timeout, got %v", AppConfig.API.RequestTimeout())
		}
		if AppConfig.Upload.MaxBytes != 1024 {
			t.Errorf("Expected max bytes 1024, got %d", AppConfig.Upload.MaxBytes)
		}
		if AppConfig.Site.Name != "Emkan CMS" {
			t.Errorf("Expected untouched default site name, got %q", AppConfig.Site.Name)
		}
	})

	t.Run("Invalid YAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("api: [unclosed"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := LoadConfig(path); err == nil {
			t.Error("Expected parse error")
		}
	})

	t.Run("Environment wins over file", func(t *testing.T) {
		t.Setenv(EnvAPIURL, "http://env.example/api")
		if err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
			t.Fatal(err)
		}
		if AppConfig.API.BaseURL != "http://env.example/api" {
			t.Errorf("Expected env base URL, got %q", AppConfig.API.BaseURL)
		}
	})
}

func TestRequestTimeoutFallback(t *testing.T) {
	for _, raw := range []string{"", "garbage", "-1s"} {
		if got := (APIConfig{Timeout: raw}).RequestTimeout(); got != 30*time.Second {
			t.Errorf("Timeout %q: expected 30s fallback, got %v", raw, got)
		}
	}
}

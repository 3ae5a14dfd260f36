package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("TRUTHVISION_ADDR", "")
	t.Setenv("TRUTHVISION_MODEL_DIR", "")
	t.Setenv("XAI_API_URL", "")
	t.Setenv("XAI_MODEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Fatalf("expected :8000, got %q", cfg.Server.Addr)
	}
	if cfg.Server.MaxImageBytes != 5*1024*1024 || cfg.Server.MaxVideoBytes != 100*1024*1024 {
		t.Fatalf("unexpected limits %+v", cfg.Server)
	}
	if cfg.Model.Dir != "models/ai-image-detector" {
		t.Fatalf("unexpected model dir %q", cfg.Model.Dir)
	}
	if cfg.Video.SampleIntervalSec != 1.0 || cfg.Video.Workers != 1 {
		t.Fatalf("unexpected video config %+v", cfg.Video)
	}
	if cfg.Provider.BaseURL != "https://api.x.ai/v1/chat/completions" || cfg.Provider.Model != "grok-4" {
		t.Fatalf("unexpected provider config %+v", cfg.Provider)
	}
	if cfg.Provider.Timeout() != 60*time.Second {
		t.Fatalf("unexpected provider timeout %v", cfg.Provider.Timeout())
	}
}

func TestLoadYAMLAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truthvision.yaml")
	data := []byte(`
server:
  addr: ":9000"
  max_image_bytes: 1024
  allowed_origins: ["https://app.example.com"]
  read_header_timeout: 3s
video:
  sample_interval_sec: 0.5
  workers: 4
provider:
  type: gemini
  api_key_env: GEMINI_API_KEY
logging:
  format: json
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TRUTHVISION_ADDR", "")
	t.Setenv("TRUTHVISION_MODEL_DIR", "/srv/models/detector")
	t.Setenv("XAI_API_URL", "")
	t.Setenv("XAI_MODEL", "")
	t.Setenv("TRUTHVISION_LOG_LEVEL", "debug")
	t.Setenv("GEMINI_API_KEY", " g-key ")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.MaxImageBytes != 1024 {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Server.MaxVideoBytes != 100*1024*1024 {
		t.Fatalf("expected default video limit, got %d", cfg.Server.MaxVideoBytes)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://app.example.com" {
		t.Fatalf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.ReadHeaderTimeout != 3*time.Second {
		t.Fatalf("unexpected read header timeout %v", cfg.Server.ReadHeaderTimeout)
	}
	if cfg.Video.SampleIntervalSec != 0.5 || cfg.Video.Workers != 4 {
		t.Fatalf("unexpected video config %+v", cfg.Video)
	}
	if cfg.Model.Dir != "/srv/models/detector" {
		t.Fatalf("expected env model dir, got %q", cfg.Model.Dir)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
	if cfg.Provider.BaseURL != "" || cfg.Provider.Model != "" {
		t.Fatalf("gemini should not inherit openai defaults, got %+v", cfg.Provider)
	}
	if got := cfg.Provider.ProviderAPIKey(); got != "g-key" {
		t.Fatalf("expected key from env, got %q", got)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected yaml error")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `addr: :9999
backend: local
local:
  models_dir: /tmp/models
  runtime: server
  server_url: http://127.0.0.1:8081
assistant:
  model_match: qwen
  infer_timeout: 2s
  cache_dirs: [/tmp/a]
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.Backend != "local" || cfg.Local.ModelsDir != "/tmp/models" || cfg.Local.Runtime != "server" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Assistant.ModelMatch != "qwen" || cfg.Assistant.InferTimeout.D() != 2*time.Second {
		t.Fatalf("unexpected assistant cfg: %+v", cfg.Assistant)
	}
	if len(cfg.Assistant.CacheDirs) != 1 || cfg.Assistant.CacheDirs[0] != "/tmp/a" {
		t.Fatalf("cache dirs not replaced: %v", cfg.Assistant.CacheDirs)
	}
	// untouched fields keep defaults
	if cfg.Assistant.MaxResponseChars != 300 || cfg.Assistant.StartupDelay.D() != 3*time.Second {
		t.Fatalf("defaults lost: %+v", cfg.Assistant)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","ollama":{"base_url":"http://ollama:11434","keep_alive":"10m"},"assistant":{"model_match":"SmolLM2","load_tick":"250ms"}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.Ollama.BaseURL != "http://ollama:11434" || cfg.Ollama.KeepAlive != "10m" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Assistant.LoadTick.D() != 250*time.Millisecond {
		t.Fatalf("load tick: %v", cfg.Assistant.LoadTick.D())
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", `addr = ":8081"
log_level = "debug"

[assistant]
model_match = "SmolLM2"
startup_delay = "100ms"
max_response_chars = 120

[[catalog]]
name = "Tiny"
url = "https://example.com/tiny-q4.gguf"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.LogLevel != "debug" || cfg.Assistant.MaxResponseChars != 120 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Assistant.StartupDelay.D() != 100*time.Millisecond {
		t.Fatalf("startup delay: %v", cfg.Assistant.StartupDelay.D())
	}
	if len(cfg.Catalog) != 1 || cfg.Catalog[0].Name != "Tiny" {
		t.Fatalf("catalog: %+v", cfg.Catalog)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != "ollama" || cfg.Assistant.InferTimeout.D() != 8*time.Second || len(cfg.Catalog) != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

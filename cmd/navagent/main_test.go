package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"navagent/internal/config"
)

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestRootOptions_LogLevelOverride(t *testing.T) {
	o := &rootOptions{logLevel: "debug"}
	cfg, err := o.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level=%s", cfg.LogLevel)
	}
	o.logLevel = "loud"
	if _, err := o.load(); err == nil {
		t.Fatal("expected validation error for unknown level")
	}
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	o := &rootOptions{jsonLogs: true}
	log, err := o.logger("info", &buf)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"message":"shown"`) {
		t.Fatalf("output=%s", buf.String())
	}
	if _, err := o.logger("nope", &buf); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewService(t *testing.T) {
	cfg := config.Default()
	if _, err := newService(cfg, testLogger()); err != nil {
		t.Fatalf("ollama: %v", err)
	}
	cfg.Backend = "local"
	cfg.Local.ModelsDir = t.TempDir()
	if _, err := newService(cfg, testLogger()); err != nil {
		t.Fatalf("local: %v", err)
	}
	cfg.Local.Runtime = "server"
	cfg.Local.ServerURL = "http://127.0.0.1:8081"
	if _, err := newService(cfg, testLogger()); err != nil {
		t.Fatalf("local server: %v", err)
	}
	cfg.Backend = "other"
	if _, err := newService(cfg, testLogger()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestControllerConfig(t *testing.T) {
	cfg := config.Default()
	ac := controllerConfig(cfg, testLogger(), nil)
	if ac.InferTimeout != 8*time.Second || ac.MaxResponseChars != 300 || ac.ModelMatch != "SmolLM2" {
		t.Fatalf("unexpected %+v", ac)
	}
	if len(ac.CacheDirs) != len(cfg.Assistant.CacheDirs) {
		t.Fatalf("cache dirs=%v", ac.CacheDirs)
	}
}

func TestAskCommand_KeywordAnswer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "navagent.yaml")
	body := "log_level: disabled\nassistant:\n  model_match: SmolLM2\n  cache_dirs: [\"" + filepath.Join(dir, "cache") + "\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"ask", "--config", path, "how", "do", "I", "order", "food"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "To order food:") {
		t.Fatalf("output=%q", out.String())
	}
}

func TestAskCommand_FallbackWithoutModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "navagent.yaml")
	body := "log_level: disabled\nassistant:\n  cache_dirs: [\"" + filepath.Join(dir, "cache") + "\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"ask", "--config", path, "zzz"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "Popular features:") {
		t.Fatalf("output=%q", out.String())
	}
}

func testLogger() zerolog.Logger { return zerolog.Nop() }

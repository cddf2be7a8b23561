package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"navagent/internal/registry"
)

// Duration is a time.Duration that decodes from "3s"-style strings in YAML,
// JSON and TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// Config holds runtime parameters for the assistant daemon and CLI.
type Config struct {
	Addr      string           `json:"addr" yaml:"addr" toml:"addr" validate:"required"`
	LogLevel  string           `json:"log_level" yaml:"log_level" toml:"log_level" validate:"oneof=trace debug info warn error disabled"`
	Backend   string           `json:"backend" yaml:"backend" toml:"backend" validate:"oneof=ollama local"`
	Ollama    OllamaConfig     `json:"ollama" yaml:"ollama" toml:"ollama"`
	Local     LocalConfig      `json:"local" yaml:"local" toml:"local"`
	Catalog   []registry.Entry `json:"catalog" yaml:"catalog" toml:"catalog" validate:"dive"`
	Assistant AssistantConfig  `json:"assistant" yaml:"assistant" toml:"assistant"`
	HTTP      HTTPConfig       `json:"http" yaml:"http" toml:"http"`
}

// OllamaConfig configures the Ollama provisioning backend.
type OllamaConfig struct {
	BaseURL    string `json:"base_url" yaml:"base_url" toml:"base_url" validate:"omitempty,url"`
	KeepAlive  string `json:"keep_alive" yaml:"keep_alive" toml:"keep_alive"`
	NumPredict int    `json:"num_predict" yaml:"num_predict" toml:"num_predict" validate:"gte=0"`
}

// LocalConfig configures the GGUF download + llama.cpp backend.
type LocalConfig struct {
	ModelsDir   string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	Runtime     string `json:"runtime" yaml:"runtime" toml:"runtime" validate:"oneof=inprocess server"`
	ServerURL   string `json:"server_url" yaml:"server_url" toml:"server_url" validate:"omitempty,url"`
	ContextSize int    `json:"context_size" yaml:"context_size" toml:"context_size" validate:"gte=0"`
	Threads     int    `json:"threads" yaml:"threads" toml:"threads" validate:"gte=0"`
	MaxTokens   int    `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens" validate:"gte=0"`
}

// AssistantConfig tunes the lifecycle controller.
type AssistantConfig struct {
	ModelMatch       string   `json:"model_match" yaml:"model_match" toml:"model_match" validate:"required"`
	GuidePath        string   `json:"guide_path" yaml:"guide_path" toml:"guide_path"`
	CacheDirs        []string `json:"cache_dirs" yaml:"cache_dirs" toml:"cache_dirs"`
	StartupDelay     Duration `json:"startup_delay" yaml:"startup_delay" toml:"startup_delay" validate:"gte=0"`
	ReadyTimeout     Duration `json:"ready_timeout" yaml:"ready_timeout" toml:"ready_timeout" validate:"gte=0"`
	DownloadSettle   Duration `json:"download_settle" yaml:"download_settle" toml:"download_settle" validate:"gte=0"`
	LoadTick         Duration `json:"load_tick" yaml:"load_tick" toml:"load_tick" validate:"gte=0"`
	LoadHold         Duration `json:"load_hold" yaml:"load_hold" toml:"load_hold" validate:"gte=0"`
	InferTimeout     Duration `json:"infer_timeout" yaml:"infer_timeout" toml:"infer_timeout" validate:"gte=0"`
	MaxResponseChars int      `json:"max_response_chars" yaml:"max_response_chars" toml:"max_response_chars" validate:"gte=0"`
	MaxGuideChars    int      `json:"max_guide_chars" yaml:"max_guide_chars" toml:"max_guide_chars" validate:"gte=0"`
}

// HTTPConfig configures the HTTP surface.
type HTTPConfig struct {
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes" validate:"gte=0"`
}

const (
	defaultModelName = "SmolLM2-360M-Instruct"
	defaultModelURL  = "https://huggingface.co/HuggingFaceTB/SmolLM2-360M-Instruct-GGUF/resolve/main/smollm2-360m-instruct-q8_0.gguf"
	defaultModelTag  = "hf.co/HuggingFaceTB/SmolLM2-360M-Instruct-GGUF:Q8_0"
)

// Default returns the configuration used when no file is given. File values
// are decoded on top of it.
func Default() Config {
	return Config{
		Addr:     ":8080",
		LogLevel: "info",
		Backend:  "ollama",
		Ollama: OllamaConfig{
			BaseURL:   "http://127.0.0.1:11434",
			KeepAlive: "-1",
		},
		Local: LocalConfig{
			ModelsDir: "~/.local/share/navagent/models",
			Runtime:   "inprocess",
			MaxTokens: 256,
		},
		Catalog: []registry.Entry{{
			Name:   defaultModelName,
			URL:    defaultModelURL,
			Tag:    defaultModelTag,
			Quant:  "Q8_0",
			Family: "smollm",
		}},
		Assistant: AssistantConfig{
			ModelMatch: "SmolLM2",
			CacheDirs: []string{
				"~/.cache/navagent/models",
				"~/.cache/navagent/runtime",
				"~/.local/share/navagent/models",
				"~/.local/share/navagent/runtime",
			},
			StartupDelay:     Duration(3 * time.Second),
			ReadyTimeout:     Duration(30 * time.Second),
			DownloadSettle:   Duration(time.Second),
			LoadTick:         Duration(500 * time.Millisecond),
			LoadHold:         Duration(500 * time.Millisecond),
			InferTimeout:     Duration(8 * time.Second),
			MaxResponseChars: 300,
			MaxGuideChars:    2000,
		},
		HTTP: HTTPConfig{MaxBodyBytes: 1 << 20},
	}
}

var validate = validator.New()

// Validate checks field constraints and cross-field requirements.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Backend {
	case "ollama":
		if c.Ollama.BaseURL == "" {
			return fmt.Errorf("invalid config: ollama.base_url is required for the ollama backend")
		}
	case "local":
		if c.Local.ModelsDir == "" {
			return fmt.Errorf("invalid config: local.models_dir is required for the local backend")
		}
		if c.Local.Runtime == "server" && c.Local.ServerURL == "" {
			return fmt.Errorf("invalid config: local.server_url is required for runtime=server")
		}
	}
	return nil
}

// Load reads a configuration file based on its extension over Default() and
// validates the result. An empty path returns the validated defaults. List
// values (catalog, cache_dirs) replace the defaults when present.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	defaults := cfg
	cfg.Catalog = nil
	cfg.Assistant.CacheDirs = nil
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if len(cfg.Catalog) == 0 {
		cfg.Catalog = defaults.Catalog
	}
	if cfg.Assistant.CacheDirs == nil {
		cfg.Assistant.CacheDirs = defaults.Assistant.CacheDirs
	}
	return cfg, cfg.Validate()
}

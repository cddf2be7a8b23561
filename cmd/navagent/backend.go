package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"navagent/internal/assistant"
	"navagent/internal/config"
	"navagent/internal/llm"
	"navagent/internal/llm/local"
	"navagent/internal/llm/ollama"
)

// newService builds the provisioning backend selected by cfg.Backend.
func newService(cfg config.Config, log zerolog.Logger) (llm.Service, error) {
	switch cfg.Backend {
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL:    cfg.Ollama.BaseURL,
			KeepAlive:  cfg.Ollama.KeepAlive,
			NumPredict: cfg.Ollama.NumPredict,
			Catalog:    cfg.Catalog,
			Logger:     log,
		}), nil
	case "local":
		var ad local.InferenceAdapter
		switch cfg.Local.Runtime {
		case "server":
			ad = local.NewServerAdapter(cfg.Local.ServerURL)
		default:
			ad = local.NewLlamaAdapter(cfg.Local.ContextSize, cfg.Local.Threads)
		}
		b, err := local.New(local.Config{
			ModelsDir: cfg.Local.ModelsDir,
			Catalog:   cfg.Catalog,
			Adapter:   ad,
			Params:    local.InferParams{MaxTokens: cfg.Local.MaxTokens},
			Logger:    log,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// controllerConfig maps file configuration onto the controller's tunables.
func controllerConfig(cfg config.Config, log zerolog.Logger, pub assistant.EventPublisher) assistant.Config {
	a := cfg.Assistant
	return assistant.Config{
		ModelMatch:       a.ModelMatch,
		GuidePath:        a.GuidePath,
		CacheDirs:        a.CacheDirs,
		StartupDelay:     a.StartupDelay.D(),
		ReadyTimeout:     a.ReadyTimeout.D(),
		DownloadSettle:   a.DownloadSettle.D(),
		LoadTick:         a.LoadTick.D(),
		LoadHold:         a.LoadHold.D(),
		InferTimeout:     a.InferTimeout.D(),
		MaxResponseChars: a.MaxResponseChars,
		MaxGuideChars:    a.MaxGuideChars,
		Logger:           log,
		Publisher:        pub,
	}
}

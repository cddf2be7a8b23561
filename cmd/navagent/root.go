package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"navagent/internal/config"
)

type rootOptions struct {
	configPath string
	logLevel   string
	trace      bool
	jsonLogs   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "navagent",
		Short:         "On-device navigation assistant for the Campus Network app",
		Long:          "navagent resolves a small local model, downloads and loads it on request, and answers app navigation questions with keyword rules, bounded inference and a static fallback.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("NAVAGENT_CONFIG"), "Path to YAML, JSON or TOML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log level (trace, debug, info, warn, error, disabled)")
	root.PersistentFlags().BoolVar(&opts.trace, "trace", false, "Export OpenTelemetry spans to stderr")
	root.PersistentFlags().BoolVar(&opts.jsonLogs, "json-logs", false, "Write logs as JSON instead of console text")

	root.AddCommand(newServeCmd(opts), newAskCmd(opts), newModelsCmd(opts))
	return root
}

// load reads the config file (defaults when empty) and applies flag overrides.
func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

func (o *rootOptions) logger(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("log level: %w", err)
	}
	if !o.jsonLogs {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// splitCSV splits a comma-separated flag value, dropping empty items.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

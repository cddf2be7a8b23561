// Package guide loads the static app features guide that is inserted into
// inference prompts.
package guide

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"navagent/internal/common/fsutil"
)

// Placeholder is used when the guide cannot be read.
const Placeholder = "Features guide not available."

//go:embed app_features.txt
var builtin string

// Builtin returns the guide compiled into the binary.
func Builtin() string { return builtin }

// Load reads the guide at path. An empty path selects the built-in guide.
// Read failures are logged and degrade to Placeholder.
func Load(path string, log zerolog.Logger) string {
	if path == "" {
		return builtin
	}
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("features guide unavailable")
		return Placeholder
	}
	b, err := os.ReadFile(p)
	if err != nil {
		log.Error().Err(err).Str("path", p).Msg("features guide unavailable")
		return Placeholder
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		log.Warn().Str("path", p).Msg("features guide is empty")
		return Placeholder
	}
	log.Debug().Str("path", p).Int("bytes", len(b)).Msg("features guide loaded")
	return text
}

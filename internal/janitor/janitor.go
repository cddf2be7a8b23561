// Package janitor removes cached model artifacts at startup so every session
// re-evaluates download state from scratch.
package janitor

import (
	"errors"
	"os"

	"github.com/rs/zerolog"

	"navagent/internal/common/fsutil"
)

// Report summarizes one sweep.
type Report struct {
	Removed []string
	Skipped []string
	Errors  []error
}

// Sweep recursively deletes each directory in dirs. Missing directories are
// skipped. Failures are logged and collected; the sweep never stops early.
func Sweep(dirs []string, log zerolog.Logger) Report {
	var rep Report
	for _, d := range dirs {
		p, err := fsutil.ResolveRemovable(d)
		if err != nil {
			log.Error().Err(err).Str("dir", d).Msg("cache sweep refused")
			rep.Errors = append(rep.Errors, err)
			continue
		}
		if _, err := os.Lstat(p); errors.Is(err, os.ErrNotExist) {
			rep.Skipped = append(rep.Skipped, p)
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			log.Error().Err(err).Str("dir", p).Msg("cache sweep failed")
			rep.Errors = append(rep.Errors, err)
			continue
		}
		log.Info().Str("dir", p).Msg("deleted cached models")
		rep.Removed = append(rep.Removed, p)
	}
	return rep
}

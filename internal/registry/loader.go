package registry

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"navagent/internal/common/fsutil"
	"navagent/pkg/types"
)

// Entry registers a downloadable model. ID defaults to the artifact file name
// (without .gguf) taken from URL. Tag names the model for backends that pull
// by reference (e.g. Ollama) instead of by URL.
type Entry struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"`
	Name   string `json:"name" yaml:"name" toml:"name" validate:"required"`
	URL    string `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty" validate:"omitempty,url"`
	Tag    string `json:"tag,omitempty" yaml:"tag,omitempty" toml:"tag,omitempty"`
	Quant  string `json:"quant,omitempty" yaml:"quant,omitempty" toml:"quant,omitempty"`
	Family string `json:"family,omitempty" yaml:"family,omitempty" toml:"family,omitempty"`
}

// FileName returns the artifact file name for the entry's URL.
func (e Entry) FileName() string {
	u, err := url.Parse(e.URL)
	if err != nil || u.Path == "" {
		return ""
	}
	return path.Base(u.Path)
}

// FromCatalog resolves catalog entries into models stored under modelsDir.
// Entries without a URL are skipped; duplicate ids are an error.
func FromCatalog(modelsDir string, entries []Entry) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(modelsDir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(entries))
	var models []types.Model
	for _, e := range entries {
		file := e.FileName()
		if file == "" || file == "/" || file == "." {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(file), ".gguf") {
			return nil, fmt.Errorf("catalog entry %q: url does not point to a .gguf file", e.Name)
		}
		id := e.ID
		if id == "" {
			id = strings.TrimSuffix(file, filepath.Ext(file))
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("catalog entry %q: duplicate id %q", e.Name, id)
		}
		seen[id] = struct{}{}
		models = append(models, types.Model{
			ID:     id,
			Name:   e.Name,
			Path:   filepath.Join(base, file),
			URL:    e.URL,
			Quant:  e.Quant,
			Family: e.Family,
		})
	}
	return models, nil
}

// Tagged returns models for entries that carry a pull reference.
// The tag doubles as the model id.
func Tagged(entries []Entry) []types.Model {
	var models []types.Model
	for _, e := range entries {
		if e.Tag == "" {
			continue
		}
		models = append(models, types.Model{ID: e.Tag, Name: e.Name, URL: e.URL, Quant: e.Quant, Family: e.Family})
	}
	return models
}

// ScanDir lists *.gguf files already present in dir. A missing directory
// yields an empty list. ID is the file name without extension.
func ScanDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		models = append(models, types.Model{ID: id, Name: id, Path: filepath.Join(abs, name)})
	}
	return models, nil
}

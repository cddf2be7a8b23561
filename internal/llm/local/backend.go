// Package local provisions GGUF models by downloading them over HTTP and
// running them with llama.cpp, either in process or through llama-server.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"navagent/internal/common/fsutil"
	"navagent/internal/llm"
	"navagent/internal/registry"
	"navagent/pkg/types"
)

// minProgressStep bounds how often download progress is reported.
const minProgressStep = 0.001

// Config configures a Backend.
type Config struct {
	ModelsDir string
	Catalog   []registry.Entry
	Adapter   InferenceAdapter
	Params    InferParams
	// HTTPClient downloads artifacts; defaults to a client without a
	// request timeout.
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Backend implements llm.Service over a model catalog and an InferenceAdapter.
type Backend struct {
	dir     string
	catalog []registry.Entry
	adapter InferenceAdapter
	params  InferParams
	http    *http.Client
	log     zerolog.Logger

	mu      sync.Mutex
	session InferSession
	loaded  string
}

var (
	_ llm.Service = (*Backend)(nil)
	_ llm.Closer  = (*Backend)(nil)
)

// New constructs a Backend. A nil Adapter selects the in-process runtime.
func New(cfg Config) (*Backend, error) {
	dir, err := fsutil.ExpandHome(cfg.ModelsDir)
	if err != nil {
		return nil, err
	}
	if _, err := registry.FromCatalog(dir, cfg.Catalog); err != nil {
		return nil, err
	}
	ad := cfg.Adapter
	if ad == nil {
		ad = NewLlamaAdapter(0, 0)
	}
	cli := cfg.HTTPClient
	if cli == nil {
		cli = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		}}
	}
	log := cfg.Logger.With().Str("backend", "local").Logger()
	log.Debug().Str("models_dir", dir).Bool("llama_built", llamaBuilt).Msg("local backend ready")
	return &Backend{dir: dir, catalog: cfg.Catalog, adapter: ad, params: cfg.Params, http: cli, log: log}, nil
}

// ListModels returns catalog models plus GGUF files already in the models
// directory that the catalog does not name.
func (b *Backend) ListModels(ctx context.Context) ([]types.Model, error) {
	models, err := registry.FromCatalog(b.dir, b.catalog)
	if err != nil {
		return nil, err
	}
	onDisk, err := registry.ScanDir(b.dir)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(models))
	for _, m := range models {
		known[m.ID] = true
	}
	for _, m := range onDisk {
		if !known[m.ID] {
			models = append(models, m)
		}
	}
	return models, nil
}

func (b *Backend) lookup(ctx context.Context, id string) (types.Model, error) {
	models, err := b.ListModels(ctx)
	if err != nil {
		return types.Model{}, err
	}
	for _, m := range models {
		if m.ID == id {
			return m, nil
		}
	}
	return types.Model{}, llm.ErrUnknownModel(id)
}

// Download fetches the model artifact to <models_dir>/<file>.part and renames
// it into place once complete.
func (b *Backend) Download(ctx context.Context, id string, onProgress func(float64)) error {
	m, err := b.lookup(ctx, id)
	if err != nil {
		return err
	}
	if m.URL == "" {
		return fmt.Errorf("model %s has no download url", id)
	}
	if err := os.MkdirAll(filepath.Dir(m.Path), 0o755); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: http %d", id, resp.StatusCode)
	}

	part := m.Path + ".part"
	f, err := os.Create(part)
	if err != nil {
		return err
	}
	pw := &progressWriter{total: resp.ContentLength, onProgress: onProgress}
	_, err = io.Copy(io.MultiWriter(f, pw), resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && resp.ContentLength > 0 && pw.written != resp.ContentLength {
		err = fmt.Errorf("download %s: short body (%d of %d bytes)", id, pw.written, resp.ContentLength)
	}
	if err != nil {
		_ = os.Remove(part)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	if err := os.Rename(part, m.Path); err != nil {
		_ = os.Remove(part)
		return err
	}
	b.log.Info().Str("model", id).Str("path", m.Path).Int64("bytes", pw.written).Msg("model downloaded")
	if onProgress != nil {
		onProgress(1)
	}
	return nil
}

// progressWriter reports written/total as a fraction below 1. The final 1.0
// is reported after the artifact is in place.
type progressWriter struct {
	total      int64
	written    int64
	last       float64
	onProgress func(float64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.total <= 0 || p.onProgress == nil {
		return len(b), nil
	}
	frac := min(float64(p.written)/float64(p.total), 0.999)
	if frac-p.last >= minProgressStep {
		p.last = frac
		p.onProgress(frac)
	}
	return len(b), nil
}

// Load starts an inference session for id. A missing artifact yields false.
func (b *Backend) Load(ctx context.Context, id string) (bool, error) {
	m, err := b.lookup(ctx, id)
	if err != nil {
		return false, err
	}
	if !fsutil.PathExists(m.Path) {
		b.log.Warn().Str("model", id).Str("path", m.Path).Msg("model artifact missing")
		return false, nil
	}
	sess, err := b.adapter.Start(ctx, m.Path, b.params)
	if err != nil {
		return false, err
	}
	b.mu.Lock()
	prev := b.session
	b.session, b.loaded = sess, id
	b.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return true, nil
}

// GenerateStream streams tokens from the loaded session.
func (b *Backend) GenerateStream(ctx context.Context, prompt string, onToken func(string) error) error {
	b.mu.Lock()
	sess, model := b.session, b.loaded
	b.mu.Unlock()
	if sess == nil {
		return llm.ErrNotLoaded
	}
	res, err := sess.Generate(ctx, prompt, onToken)
	if errors.Is(err, llm.ErrStopGeneration) {
		err = nil
	}
	b.log.Debug().Str("model", model).Int("tokens", res.Tokens).Str("finish", res.FinishReason).Err(err).Msg("generate done")
	return err
}

// Close releases the loaded session.
func (b *Backend) Close() error {
	b.mu.Lock()
	sess := b.session
	b.session, b.loaded = nil, ""
	b.mu.Unlock()
	if sess != nil {
		return sess.Close()
	}
	return nil
}

// Package ollama provisions models through a local Ollama daemon.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"navagent/internal/llm"
	"navagent/internal/registry"
	"navagent/pkg/types"
)

const defaultPollInterval = 250 * time.Millisecond

// Config configures a Client.
type Config struct {
	BaseURL    string
	KeepAlive  string
	NumPredict int
	// Catalog entries with a Tag are the models this client offers.
	Catalog      []registry.Entry
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

// Client implements llm.Service and llm.ReadyWaiter over the Ollama HTTP API.
type Client struct {
	baseURL    string
	keepAlive  string
	numPredict int
	catalog    []types.Model
	poll       time.Duration
	http       *http.Client
	log        zerolog.Logger

	mu     sync.Mutex
	loaded string
}

var (
	_ llm.Service     = (*Client)(nil)
	_ llm.ReadyWaiter = (*Client)(nil)
)

// New constructs a Client. Requests carry no client-level timeout; callers
// bound them with contexts.
func New(cfg Config) *Client {
	cli := cfg.HTTPClient
	if cli == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:    16,
			IdleConnTimeout: 90 * time.Second,
		}
		cli = &http.Client{Transport: tr}
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		keepAlive:  cfg.KeepAlive,
		numPredict: cfg.NumPredict,
		catalog:    registry.Tagged(cfg.Catalog),
		poll:       poll,
		http:       cli,
		log:        cfg.Logger.With().Str("backend", "ollama").Logger(),
	}
}

// WaitReady polls /api/version until the daemon answers or ctx ends.
func (c *Client) WaitReady(ctx context.Context) error {
	t := time.NewTicker(c.poll)
	defer t.Stop()
	for {
		err := c.version(ctx)
		if err == nil {
			return nil
		}
		c.log.Debug().Err(err).Msg("ollama not ready")
		select {
		case <-ctx.Done():
			return fmt.Errorf("ollama not ready: %w", errors.Join(ctx.Err(), err))
		case <-t.C:
		}
	}
}

func (c *Client) version(ctx context.Context) error {
	var v struct {
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, "/api/version", &v); err != nil {
		return err
	}
	c.log.Debug().Str("version", v.Version).Msg("ollama ready")
	return nil
}

type tagsResponse struct {
	Models []struct {
		Name    string `json:"name"`
		Model   string `json:"model"`
		Details struct {
			Family            string `json:"family"`
			QuantizationLevel string `json:"quantization_level"`
		} `json:"details"`
	} `json:"models"`
}

// ListModels returns the tagged catalog entries. Installed tags are queried so
// an unreachable daemon surfaces as an error; they are logged, not listed.
func (c *Client) ListModels(ctx context.Context) ([]types.Model, error) {
	var tags tagsResponse
	if err := c.getJSON(ctx, "/api/tags", &tags); err != nil {
		return nil, err
	}
	installed := make(map[string]bool, len(tags.Models))
	for _, m := range tags.Models {
		installed[m.Name] = true
	}
	out := make([]types.Model, len(c.catalog))
	copy(out, c.catalog)
	for _, m := range out {
		c.log.Debug().Str("model", m.ID).Bool("installed", installed[m.ID]).Msg("catalog model")
	}
	return out, nil
}

type pullLine struct {
	Status    string `json:"status"`
	Digest    string `json:"digest"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Error     string `json:"error"`
}

// Download pulls id. Progress is aggregated over layers and reported as a
// running maximum, ending with 1.0 on success.
func (c *Client) Download(ctx context.Context, id string, onProgress func(float64)) error {
	body := map[string]any{"model": id, "stream": true}
	resp, err := c.post(ctx, "/api/pull", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	totals := map[string]int64{}
	done := map[string]int64{}
	best := 0.0
	report := func(p float64) {
		if p > best {
			best = p
			if onProgress != nil {
				onProgress(p)
			}
		}
	}
	err = scanNDJSON(resp.Body, func(line []byte) (bool, error) {
		var pl pullLine
		if err := json.Unmarshal(line, &pl); err != nil {
			return false, fmt.Errorf("decode pull line: %w", err)
		}
		if pl.Error != "" {
			return false, errors.New(pl.Error)
		}
		if pl.Status == "success" {
			report(1)
			return true, nil
		}
		if pl.Digest != "" && pl.Total > 0 {
			totals[pl.Digest] = pl.Total
			done[pl.Digest] = pl.Completed
			var sumT, sumC int64
			for d, t := range totals {
				sumT += t
				sumC += min(done[d], t)
			}
			// hold back the last step for the success line
			report(min(float64(sumC)/float64(sumT), 0.99))
		}
		return false, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	if best < 1 {
		return errors.New("pull stream ended before success")
	}
	return nil
}

// Load asks the daemon to load id into memory. An unknown model yields false.
func (c *Client) Load(ctx context.Context, id string) (bool, error) {
	body := map[string]any{"model": id, "stream": false}
	if ka := c.keepAliveValue(); ka != nil {
		body["keep_alive"] = ka
	}
	resp, err := c.post(ctx, "/api/generate", body)
	if err != nil {
		var se statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			c.log.Warn().Str("model", id).Msg("model not found by ollama")
			return false, nil
		}
		return false, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	c.mu.Lock()
	c.loaded = id
	c.mu.Unlock()
	return true, nil
}

type generateLine struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// GenerateStream streams completion tokens from the loaded model.
func (c *Client) GenerateStream(ctx context.Context, prompt string, onToken func(string) error) error {
	c.mu.Lock()
	model := c.loaded
	c.mu.Unlock()
	if model == "" {
		return llm.ErrNotLoaded
	}
	body := map[string]any{"model": model, "prompt": prompt, "stream": true}
	if ka := c.keepAliveValue(); ka != nil {
		body["keep_alive"] = ka
	}
	if c.numPredict > 0 {
		body["options"] = map[string]any{"num_predict": c.numPredict}
	}
	resp, err := c.post(ctx, "/api/generate", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	err = scanNDJSON(resp.Body, func(line []byte) (bool, error) {
		var gl generateLine
		if err := json.Unmarshal(line, &gl); err != nil {
			return false, fmt.Errorf("decode generate line: %w", err)
		}
		if gl.Error != "" {
			return false, errors.New(gl.Error)
		}
		if gl.Response != "" {
			if err := onToken(gl.Response); err != nil {
				return false, err
			}
		}
		return gl.Done, nil
	})
	if errors.Is(err, llm.ErrStopGeneration) {
		return nil
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// keepAliveValue sends numeric values as numbers; Ollama rejects "-1" as a
// duration string.
func (c *Client) keepAliveValue() any {
	if c.keepAlive == "" {
		return nil
	}
	if n, err := strconv.ParseFloat(c.keepAlive, 64); err == nil {
		return n
	}
	return c.keepAlive
}

type statusError struct {
	path string
	code int
	body string
}

func (e statusError) Error() string {
	return fmt.Sprintf("ollama %s: http %d: %s", e.path, e.code, strings.TrimSpace(e.body))
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError{path: path, code: resp.StatusCode, body: string(b)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := string(rb)
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(rb, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return nil, statusError{path: path, code: resp.StatusCode, body: msg}
	}
	return resp, nil
}

// scanNDJSON calls fn for each non-empty line until fn reports done or
// returns an error.
func scanNDJSON(r io.Reader, fn func([]byte) (bool, error)) error {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	for s.Scan() {
		line := bytes.TrimSpace(s.Bytes())
		if len(line) == 0 {
			continue
		}
		done, err := fn(line)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return s.Err()
}

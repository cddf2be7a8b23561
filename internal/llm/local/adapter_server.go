package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"navagent/internal/llm"
)

// serverAdapter talks to a running llama.cpp server through its
// OpenAI-compatible completions endpoint.
type serverAdapter struct {
	baseURL string
	http    *http.Client
	client  *openai.Client
}

// NewServerAdapter constructs an adapter for the llama-server at baseURL.
// Requests carry no client-level timeout; callers bound them with contexts.
func NewServerAdapter(baseURL string) InferenceAdapter {
	base := strings.TrimRight(baseURL, "/")
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:    16,
		IdleConnTimeout: 90 * time.Second,
	}
	cli := &http.Client{Transport: tr}
	cfg := openai.DefaultConfig("")
	cfg.BaseURL = base + "/v1"
	cfg.HTTPClient = cli
	return &serverAdapter{baseURL: base, http: cli, client: openai.NewClientWithConfig(cfg)}
}

type serverSession struct {
	client *openai.Client
	model  string
	params InferParams
}

// Start checks the server's health endpoint. The server owns its weights, so
// the model path only names the model in requests.
func (a *serverAdapter) Start(ctx context.Context, modelPath string, params InferParams) (InferSession, error) {
	if err := a.checkHealth(ctx); err != nil {
		return nil, llm.ErrDependencyUnavailable(fmt.Sprintf("llama-server unavailable at %s: %v", a.baseURL, err))
	}
	model := strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath))
	return &serverSession{client: a.client, model: model, params: params}, nil
}

func (a *serverAdapter) checkHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("health status %d", resp.StatusCode)
	}
	return nil
}

func (s *serverSession) Generate(ctx context.Context, prompt string, onToken func(string) error) (FinalResult, error) {
	req := openai.CompletionRequest{
		Model:       s.model,
		Prompt:      prompt,
		MaxTokens:   s.params.MaxTokens,
		Temperature: s.params.Temperature,
		TopP:        s.params.TopP,
		Stop:        s.params.Stop,
		Stream:      true,
	}
	stream, err := s.client.CreateCompletionStream(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return FinalResult{}, ctx.Err()
		}
		return FinalResult{}, fmt.Errorf("llama-server completion: %w", err)
	}
	defer stream.Close()

	var final FinalResult
	var b strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return final, ctx.Err()
			}
			return final, fmt.Errorf("llama-server stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		ch := resp.Choices[0]
		if ch.Text != "" {
			if err := onToken(ch.Text); err != nil {
				final.Content = b.String()
				return final, err
			}
			b.WriteString(ch.Text)
			final.Tokens++
		}
		if ch.FinishReason != "" {
			final.FinishReason = ch.FinishReason
		}
	}
	final.Content = b.String()
	return final, nil
}

func (s *serverSession) Close() error { return nil }

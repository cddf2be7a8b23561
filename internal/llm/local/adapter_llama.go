//go:build llama

package local

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt reports whether the binary links the in-process runtime.
const llamaBuilt = true

type llamaAdapter struct {
	ctxSize int
	threads int
}

// NewLlamaAdapter returns an adapter running go-llama.cpp in process.
func NewLlamaAdapter(ctxSize, threads int) InferenceAdapter {
	return &llamaAdapter{ctxSize: ctxSize, threads: threads}
}

type llamaSession struct {
	model   *llama.LLama
	threads int
	params  InferParams
}

func (a *llamaAdapter) Start(ctx context.Context, modelPath string, params InferParams) (InferSession, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	var mo []llama.ModelOption
	if a.ctxSize > 0 {
		mo = append(mo, llama.SetContext(a.ctxSize))
	}
	m, err := llama.New(modelPath, mo...)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		m.Free()
		return nil, ctx.Err()
	}
	return &llamaSession{model: m, threads: a.threads, params: params}, nil
}

func (s *llamaSession) Generate(ctx context.Context, prompt string, onToken func(string) error) (FinalResult, error) {
	if s.model == nil {
		return FinalResult{}, errors.New("llama model not initialized")
	}
	var tokens int
	var cbErr error
	s.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if err := onToken(tok); err != nil {
			cbErr = err
			return false
		}
		tokens++
		return true
	})
	text, err := s.model.Predict(prompt, predictOptions(s.params, s.threads)...)
	if ctx.Err() != nil {
		return FinalResult{}, ctx.Err()
	}
	if cbErr != nil {
		return FinalResult{Content: text, Tokens: tokens, FinishReason: "stop"}, cbErr
	}
	if err != nil {
		return FinalResult{}, err
	}
	return FinalResult{Content: text, Tokens: tokens, FinishReason: "stop"}, nil
}

func (s *llamaSession) Close() error {
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}

func atLeast(v, floor int) int {
	if v > floor {
		return v
	}
	return floor
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orFloat(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts adapter params into go-llama.cpp options.
func predictOptions(p InferParams, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(atLeast(p.MaxTokens, 1)),
		llama.SetThreads(atLeast(threads, 1)),
		llama.SetTopP(orFloat(p.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(orInt(p.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(orFloat(p.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(orFloat(p.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	return po
}

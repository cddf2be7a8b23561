//go:build !llama

package local

import (
	"context"

	"navagent/internal/llm"
)

// llamaBuilt reports whether the binary links the in-process runtime.
const llamaBuilt = false

// llamaAdapter refuses to start without the 'llama' build tag so default
// builds stay CGO-free.
type llamaAdapter struct {
	ctxSize int
	threads int
}

// NewLlamaAdapter returns the in-process adapter (unavailable in this build).
func NewLlamaAdapter(ctxSize, threads int) InferenceAdapter {
	return &llamaAdapter{ctxSize: ctxSize, threads: threads}
}

func (a *llamaAdapter) Start(ctx context.Context, modelPath string, params InferParams) (InferSession, error) {
	return nil, llm.ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

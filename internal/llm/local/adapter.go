package local

import "context"

// InferenceAdapter abstracts the llama runtime used by the local backend.
type InferenceAdapter interface {
	// Start prepares a session for the model at modelPath. It blocks while the
	// runtime loads weights.
	Start(ctx context.Context, modelPath string, params InferParams) (InferSession, error)
}

// InferSession is a loaded model ready to generate.
type InferSession interface {
	// Generate streams tokens for prompt, invoking onToken for each. It must
	// return when ctx is canceled or onToken returns an error.
	Generate(ctx context.Context, prompt string, onToken func(string) error) (FinalResult, error)
	// Close releases runtime resources.
	Close() error
}

// InferParams captures generation parameters passed to the adapter.
type InferParams struct {
	Temperature   float32
	TopP          float32
	TopK          int
	MaxTokens     int
	Stop          []string
	RepeatPenalty float32
}

// FinalResult summarizes a generation.
type FinalResult struct {
	Content      string
	Tokens       int
	FinishReason string
}

// Package llm defines the model provisioning service consumed by the
// assistant: catalog listing, artifact download, load and token streaming.
package llm

import (
	"context"
	"errors"

	"navagent/pkg/types"
)

// Service is implemented by provisioning backends.
//
// Download and GenerateStream model streams as blocking calls with callbacks:
// the stream completes when the call returns nil and errors when it returns an
// error. Implementations must not invoke a callback after returning.
type Service interface {
	// ListModels returns every model the backend can provision.
	ListModels(ctx context.Context) ([]types.Model, error)
	// Download fetches the artifact for id, reporting progress in [0,1].
	Download(ctx context.Context, id string, onProgress func(float64)) error
	// Load makes id available for inference. It may take tens of seconds.
	Load(ctx context.Context, id string) (bool, error)
	// GenerateStream streams tokens for prompt from the loaded model. When
	// onToken returns ErrStopGeneration the stream ends without error.
	GenerateStream(ctx context.Context, prompt string, onToken func(string) error) error
}

// ReadyWaiter is implemented by backends that can signal when they are able
// to serve ListModels.
type ReadyWaiter interface {
	WaitReady(ctx context.Context) error
}

// Closer is implemented by backends holding runtime resources.
type Closer interface {
	Close() error
}

// ErrStopGeneration is returned by token callbacks to end generation early.
var ErrStopGeneration = errors.New("stop generation")

// ErrNotLoaded is returned by GenerateStream before a successful Load.
var ErrNotLoaded = errors.New("model not loaded")

// unknownModelError reports an id the backend does not know.
type unknownModelError struct{ id string }

func (e unknownModelError) Error() string { return "unknown model: " + e.id }

// ErrUnknownModel constructs an unknownModelError.
func ErrUnknownModel(id string) error { return unknownModelError{id: id} }

// IsUnknownModel reports whether err indicates an id the backend does not know.
func IsUnknownModel(err error) bool {
	var e unknownModelError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing runtime dependency (e.g. a
// binary built without llama support).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

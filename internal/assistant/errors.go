package assistant

import (
	"errors"
	"fmt"
)

// Messages surfaced through the Error state.
const (
	msgNotRegistered = "Model not registered. Please restart app."
	msgLoadFailed    = "Failed to load model"
)

var (
	// ErrAlreadyProbed is returned when the registry probe runs twice.
	ErrAlreadyProbed = errors.New("model probe already ran")
	// ErrModelUnresolved is returned by DownloadModel before a successful probe.
	ErrModelUnresolved = errors.New("model handle not resolved")
	// ErrNotRegistered is returned when no registry entry matches.
	ErrNotRegistered = errors.New("model not registered")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("controller closed")

	errStale = errors.New("stale update")
)

// invalidTransitionError reports a command issued in a phase that does not
// permit it.
type invalidTransitionError struct{ from, to Phase }

func (e invalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.from, e.to)
}

// IsInvalidTransition reports whether err is an illegal lifecycle transition.
func IsInvalidTransition(err error) bool {
	var e invalidTransitionError
	return errors.As(err, &e)
}

// IsModelUnresolved reports whether err indicates a missing model handle.
func IsModelUnresolved(err error) bool { return errors.Is(err, ErrModelUnresolved) }

// IsNotRegistered reports whether the probe found no matching model.
func IsNotRegistered(err error) bool { return errors.Is(err, ErrNotRegistered) }

// IsAlreadyProbed reports whether the probe was invoked a second time.
func IsAlreadyProbed(err error) bool { return errors.Is(err, ErrAlreadyProbed) }

// ambiguousModelError reports more than one registry entry matching.
type ambiguousModelError struct {
	match string
	names []string
}

func (e ambiguousModelError) Error() string {
	return fmt.Sprintf("%d models match %q: %v", len(e.names), e.match, e.names)
}

// IsAmbiguousModel reports whether the probe matched several models.
func IsAmbiguousModel(err error) bool {
	var e ambiguousModelError
	return errors.As(err, &e)
}

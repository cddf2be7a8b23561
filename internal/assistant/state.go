package assistant

// Phase is the lifecycle state of the controller. Exactly one is active.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseCheckingModel Phase = "checking_model"
	PhaseNeedDownload  Phase = "need_download"
	PhaseDownloading   Phase = "downloading"
	PhaseLoadingModel  Phase = "loading_model"
	PhaseReady         Phase = "ready"
	PhaseThinking      Phase = "thinking"
	PhaseError         Phase = "error"
)

// transitions lists the legal successors of each phase. Error has no
// in-process successor besides a fresh probe.
var transitions = map[Phase][]Phase{
	PhaseIdle:          {PhaseCheckingModel},
	PhaseCheckingModel: {PhaseNeedDownload, PhaseError},
	PhaseNeedDownload:  {PhaseDownloading},
	PhaseDownloading:   {PhaseLoadingModel, PhaseError},
	PhaseLoadingModel:  {PhaseReady, PhaseError},
	PhaseReady:         {PhaseThinking},
	PhaseThinking:      {PhaseReady},
	PhaseError:         {PhaseCheckingModel},
}

// CanTransition reports whether from -> to is a legal lifecycle transition.
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// State is the tagged lifecycle state; Message is set only for PhaseError.
type State struct {
	Phase   Phase
	Message string
}

func (s State) String() string {
	if s.Phase == PhaseError {
		return "error(" + s.Message + ")"
	}
	return string(s.Phase)
}

// ModelHandle identifies the resolved target model. The zero value means
// "not yet resolved".
type ModelHandle struct {
	ID          string
	DisplayName string
}

// Resolved reports whether the handle was set by the registry probe.
func (h ModelHandle) Resolved() bool { return h.ID != "" }

// Snapshot is an atomic view of everything the presentation layer observes.
// Progress pointers are nil when absent and never mutated once published.
type Snapshot struct {
	State            State
	Model            ModelHandle
	DownloadProgress *float64
	LoadProgress     *int
	Response         string
	ModelLoaded      bool
	Seq              uint64
}

// Gate is the presentation gating derived from a snapshot.
type Gate struct {
	CanDownload     bool
	CanAsk          bool
	ControlsEnabled bool
}

// Gate derives which commands the presentation layer may enable.
func (s Snapshot) Gate() Gate {
	p := s.State.Phase
	return Gate{
		CanDownload:     p == PhaseNeedDownload,
		CanAsk:          p != PhaseThinking,
		ControlsEnabled: p != PhaseDownloading && p != PhaseLoadingModel,
	}
}

func ptr[T any](v T) *T { return &v }

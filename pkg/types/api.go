package types

// AskRequest is the payload of POST /ask.
type AskRequest struct {
	// Natural-language navigation question.
	// example: Where are my class notes?
	Query string `json:"query" example:"Where are my class notes?"`
}

// AskLine is one NDJSON line of the POST /ask stream. Intermediate lines carry
// the response text accumulated so far; the last line has Done set.
type AskLine struct {
	// Response text so far.
	Response string `json:"response,omitempty"`
	// True on the final line.
	Done bool `json:"done,omitempty"`
	// Final answer text.
	Text string `json:"text,omitempty"`
	// Which producer answered: keyword, inference or fallback.
	// example: keyword
	Source string `json:"source,omitempty" example:"keyword"`
	// Matching keyword rule, if any.
	// example: class_notes
	Rule string `json:"rule,omitempty" example:"class_notes"`
	// Inference stopped at the response length cap.
	Truncated bool `json:"truncated,omitempty"`
	// Inference hit the wall-clock timeout.
	TimedOut bool `json:"timed_out,omitempty"`
}

// ModelHandle identifies the resolved target model.
type ModelHandle struct {
	// example: smollm2-360m-instruct-q8_0
	ID string `json:"id" example:"smollm2-360m-instruct-q8_0"`
	// example: SmolLM2-360M-Instruct
	Name string `json:"name" example:"SmolLM2-360M-Instruct"`
}

// StateResponse is returned by GET /state and streamed by GET /events.
type StateResponse struct {
	// Lifecycle state.
	// example: ready
	State string `json:"state" example:"ready"`
	// Error message when State is "error".
	Message string `json:"message,omitempty"`
	// Resolved model, absent until the registry probe succeeds.
	Model *ModelHandle `json:"model,omitempty"`
	// Download progress in [0,1] while downloading.
	// example: 0.42
	DownloadProgress *float64 `json:"download_progress,omitempty" example:"0.42"`
	// Load progress in [0,100] while loading.
	// example: 34
	LoadProgress *int `json:"load_progress,omitempty" example:"34"`
	// Current response text.
	Response string `json:"response,omitempty"`
	// Whether the model is loaded and inference is available.
	ModelLoaded bool `json:"model_loaded"`
	// Download may be requested.
	CanDownload bool `json:"can_download"`
	// A query may be submitted.
	CanAsk bool `json:"can_ask"`
	// Navigation controls may be enabled.
	ControlsEnabled bool `json:"controls_enabled"`
	// Monotonic snapshot sequence number.
	// example: 12
	Seq uint64 `json:"seq" example:"12"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of registered models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

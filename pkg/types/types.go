package types

// Model represents a model known to the provisioning backend.
type Model struct {
	// Stable identifier used for download and load calls.
	// example: smollm2-360m-instruct-q8_0
	ID string `json:"id" example:"smollm2-360m-instruct-q8_0"`
	// Human-friendly name. The registry probe matches against this.
	// example: SmolLM2-360M-Instruct
	Name string `json:"name" example:"SmolLM2-360M-Instruct"`
	// Local path of the model artifact once downloaded (local backend only).
	// example: /home/user/.cache/navagent/models/smollm2-360m-instruct-q8_0.gguf
	Path string `json:"path,omitempty" example:"/home/user/.cache/navagent/models/smollm2-360m-instruct-q8_0.gguf"`
	// Download source for registered GGUF artifacts.
	URL string `json:"url,omitempty"`
	// Quantization level or variant string.
	// example: Q8_0
	Quant string `json:"quant,omitempty" example:"Q8_0"`
	// Optional family (e.g., llama, smollm).
	// example: smollm
	Family string `json:"family,omitempty" example:"smollm"`
}

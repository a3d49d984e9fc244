package types

import "time"

// ProviderResult is the uniform output of every chat provider call.
type ProviderResult struct {
	Content  string   `json:"content"`
	Model    string   `json:"model"`
	Provider Provider `json:"provider"`
}

// GeneratedImage is one image produced by an image provider.
type GeneratedImage struct {
	URL           string `json:"url"`
	RevisedPrompt string `json:"revisedPrompt,omitempty"`
}

// ImageResult is the uniform output of every image provider call.
type ImageResult struct {
	Images   []GeneratedImage `json:"images"`
	Model    string           `json:"model"`
	Provider Provider         `json:"provider"`
}

// ProviderHealthRecord is the health monitor's cached snapshot for one provider.
// ErrorCount is monotonic and reset only by an explicit admin action or a
// successful probe.
type ProviderHealthRecord struct {
	Provider       Provider  `json:"provider"`
	IsHealthy      bool      `json:"isHealthy"`
	LastChecked    time.Time `json:"lastChecked"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	ErrorCount     int64     `json:"errorCount"`
	LastError      string    `json:"lastError,omitempty"`
}

// GenerateResponse is the body returned by POST /api/generate.
type GenerateResponse struct {
	Content  string   `json:"content"`
	Provider Provider `json:"provider"`
	Model    string   `json:"model"`
	Routed   bool     `json:"routed"`
}

// ErrorResponse is the uniform error envelope for API handlers.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

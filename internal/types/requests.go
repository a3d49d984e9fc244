package types

// Message is one turn of a chat conversation passed to a provider.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// GenerateOptions carries the per-call tuning knobs every chat provider accepts.
type GenerateOptions struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Model        string   `json:"model,omitempty"`
	UserPrompt   string   `json:"userPrompt"`
	SystemPrompt string   `json:"systemPrompt,omitempty"`
	Temperature  *float32 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"maxTokens,omitempty"`
}

// ImageRequest is the body of POST /api/generate-image.
type ImageRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
	Size   string `json:"size,omitempty"`
	Count  int    `json:"count,omitempty"`
}


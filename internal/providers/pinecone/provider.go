package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/futurespeakai/sage-router/internal/providers"
	"github.com/futurespeakai/sage-router/internal/types"
)

const (
	defaultBaseURL = "https://prod-1-data.ke.pinecone.io"
	defaultModel   = "gpt-4o"
)

// Provider wraps Pinecone's assistant chat API, which grounds answers in
// the documents uploaded to a named assistant.
type Provider struct {
	httpClient *http.Client
	config     *Config
	logger     *logrus.Logger
}

// Config holds Pinecone-specific configuration.
type Config struct {
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url"`
	AssistantName string        `yaml:"assistant_name"`
	DefaultModel  string        `yaml:"default_model"`
	Timeout       time.Duration `yaml:"timeout"`
}

type chatRequest struct {
	Messages []types.Message `json:"messages"`
	Model    string          `json:"model,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

// New creates a Pinecone provider instance.
func New(config *Config, logger *logrus.Logger) *Provider {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Provider{
		httpClient: &http.Client{Timeout: timeout},
		config:     config,
		logger:     logger,
	}
}

func (p *Provider) Name() types.Provider {
	return types.ProviderPinecone
}

func (p *Provider) DefaultModel() string {
	if p.config.DefaultModel != "" {
		return p.config.DefaultModel
	}
	return defaultModel
}

func (p *Provider) baseURL() string {
	if p.config.BaseURL != "" {
		return p.config.BaseURL
	}
	return defaultBaseURL
}

// Generate sends the conversation to the configured assistant. The assistant
// API has no system role, so system turns are folded into the first user turn.
func (p *Provider) Generate(ctx context.Context, messages []types.Message, opts types.GenerateOptions) (*types.ProviderResult, error) {
	model := opts.Model
	if model == "" {
		model = p.DefaultModel()
	}

	var system string
	converted := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		converted = append(converted, m)
	}
	if system != "" && len(converted) > 0 {
		converted[0].Content = system + "\n\n" + converted[0].Content
	}

	body, err := json.Marshal(chatRequest{Messages: converted, Model: model})
	if err != nil {
		return nil, types.NewProviderError(types.ProviderPinecone, 0, "failed to encode request", err)
	}

	url := fmt.Sprintf("%s/assistant/chat/%s", p.baseURL(), p.config.AssistantName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewProviderError(types.ProviderPinecone, 0, "failed to build request", err)
	}
	req.Header.Set("Api-Key", p.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.WithError(err).Error("Pinecone assistant call failed")
		return nil, types.NewProviderError(types.ProviderPinecone, 0, err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, types.NewProviderError(types.ProviderPinecone, resp.StatusCode, string(msg), nil)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, types.NewProviderError(types.ProviderPinecone, resp.StatusCode, "failed to decode response", err)
	}

	resultModel := parsed.Model
	if resultModel == "" {
		resultModel = model
	}

	return &types.ProviderResult{
		Content:  parsed.Message.Content,
		Model:    resultModel,
		Provider: types.ProviderPinecone,
	}, nil
}

// HealthCheck verifies the assistant exists and the key is valid.
func (p *Provider) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/assistant/chat/%s", p.baseURL(), p.config.AssistantName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte(`{"messages":[{"role":"user","content":"ping"}]}`)))
	if err != nil {
		return types.NewProviderError(types.ProviderPinecone, 0, "failed to build request", err)
	}
	req.Header.Set("Api-Key", p.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return types.NewProviderError(types.ProviderPinecone, 0, err.Error(), err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.NewProviderError(types.ProviderPinecone, resp.StatusCode, "assistant probe failed", nil)
	}
	p.logger.Debug("Pinecone health check passed")
	return nil
}

var _ providers.ChatProvider = (*Provider)(nil)

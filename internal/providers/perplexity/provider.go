package perplexity

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/futurespeakai/sage-router/internal/providers"
	"github.com/futurespeakai/sage-router/internal/types"
)

const (
	defaultBaseURL = "https://api.perplexity.ai"
	defaultModel   = "sonar-pro"
)

// Provider wraps the Perplexity sonar API, which speaks the OpenAI
// chat-completions wire format.
type Provider struct {
	client *openai.Client
	config *Config
	logger *logrus.Logger
}

// Config holds Perplexity-specific configuration.
type Config struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	Timeout      time.Duration `yaml:"timeout"`
}

// New creates a Perplexity provider instance.
func New(config *Config, logger *logrus.Logger) *Provider {
	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = defaultBaseURL
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logger,
	}
}

func (p *Provider) Name() types.Provider {
	return types.ProviderPerplexity
}

func (p *Provider) DefaultModel() string {
	if p.config.DefaultModel != "" {
		return p.config.DefaultModel
	}
	return defaultModel
}

// Generate performs a single sonar chat completion.
func (p *Provider) Generate(ctx context.Context, messages []types.Message, opts types.GenerateOptions) (*types.ProviderResult, error) {
	model := opts.Model
	if model == "" {
		model = p.DefaultModel()
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		p.logger.WithError(err).WithField("model", model).Error("Perplexity chat completion failed")
		return nil, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, types.NewProviderError(types.ProviderPerplexity, 0, "empty response from perplexity", nil)
	}

	return &types.ProviderResult{
		Content:  resp.Choices[0].Message.Content,
		Model:    resp.Model,
		Provider: types.ProviderPerplexity,
	}, nil
}

// HealthCheck issues a minimal single-token completion; Perplexity has no
// models listing endpoint.
func (p *Provider) HealthCheck(ctx context.Context) error {
	one := 1
	_, err := p.Generate(ctx, []types.Message{{Role: "user", Content: "ping"}}, types.GenerateOptions{MaxTokens: &one})
	if err != nil {
		return err
	}
	p.logger.Debug("Perplexity health check passed")
	return nil
}

func wrapError(err error) *types.ProviderError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return types.NewProviderError(types.ProviderPerplexity, apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	return types.NewProviderError(types.ProviderPerplexity, 0, err.Error(), err)
}

var _ providers.ChatProvider = (*Provider)(nil)

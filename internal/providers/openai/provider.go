package openai

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

const defaultModel = "gpt-4o"

// Provider wraps the OpenAI chat completion and image generation APIs.
type Provider struct {
	client *openai.Client
	config *Config
	logger *logrus.Logger
}

// Config holds OpenAI-specific configuration.
type Config struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	OrgID        string        `yaml:"org_id"`
	DefaultModel string        `yaml:"default_model"`
	ImageModel   string        `yaml:"image_model"`
	Timeout      time.Duration `yaml:"timeout"`
}

// New creates an OpenAI provider instance.
func New(config *Config, logger *logrus.Logger) *Provider {
	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.OrgID != "" {
		clientConfig.OrgID = config.OrgID
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
	return types.ProviderOpenAI
}

func (p *Provider) DefaultModel() string {
	if p.config.DefaultModel != "" {
		return p.config.DefaultModel
	}
	return defaultModel
}

// Generate performs a single chat completion call. Failures are surfaced
// immediately as *types.ProviderError; the router owns retries.
func (p *Provider) Generate(ctx context.Context, messages []types.Message, opts types.GenerateOptions) (*types.ProviderResult, error) {
	model := opts.Model
	if model == "" {
		model = p.DefaultModel()
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertMessages(messages),
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		p.logger.WithError(err).WithField("model", model).Error("OpenAI chat completion failed")
		return nil, wrapError(types.ProviderOpenAI, err)
	}
	if len(resp.Choices) == 0 {
		return nil, types.NewProviderError(types.ProviderOpenAI, 0, "empty response from openai", nil)
	}

	return &types.ProviderResult{
		Content:  resp.Choices[0].Message.Content,
		Model:    resp.Model,
		Provider: types.ProviderOpenAI,
	}, nil
}

// GenerateImages performs a DALL-E image generation call.
func (p *Provider) GenerateImages(ctx context.Context, req types.ImageRequest) (*types.ImageResult, error) {
	model := req.Model
	if model == "" {
		model = p.config.ImageModel
	}
	if model == "" {
		model = openai.CreateImageModelDallE3
	}

	count := req.Count
	if count <= 0 {
		count = 1
	}
	size := req.Size
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}

	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt: req.Prompt,
		Model:  model,
		N:      count,
		Size:   size,
	})
	if err != nil {
		p.logger.WithError(err).WithField("model", model).Error("OpenAI image generation failed")
		return nil, wrapError(types.ProviderOpenAI, err)
	}

	images := make([]types.GeneratedImage, 0, len(resp.Data))
	for _, d := range resp.Data {
		images = append(images, types.GeneratedImage{
			URL:           d.URL,
			RevisedPrompt: d.RevisedPrompt,
		})
	}

	return &types.ImageResult{
		Images:   images,
		Model:    model,
		Provider: types.ProviderOpenAI,
	}, nil
}

// HealthCheck probes the models endpoint.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return wrapError(types.ProviderOpenAI, err)
	}
	p.logger.Debug("OpenAI health check passed")
	return nil
}

func convertMessages(messages []types.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}

func wrapError(provider types.Provider, err error) *types.ProviderError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return types.NewProviderError(provider, apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	return types.NewProviderError(provider, 0, err.Error(), err)
}

var _ providers.ChatProvider = (*Provider)(nil)
var _ providers.ImageProvider = (*Provider)(nil)

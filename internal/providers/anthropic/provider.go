package anthropic

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/futurespeakai/sage-router/internal/providers"
	"github.com/futurespeakai/sage-router/internal/types"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	healthCheckModel = "claude-3-5-haiku-latest"
	defaultMaxTokens = 4096
)

// Provider wraps the Anthropic Messages API.
type Provider struct {
	client *anthropic.Client
	config *Config
	logger *logrus.Logger
}

// Config holds Anthropic-specific configuration.
type Config struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	Timeout      time.Duration `yaml:"timeout"`
}

// New creates an Anthropic provider instance.
func New(config *Config, logger *logrus.Logger) *Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}

	client := anthropic.NewClient(opts...)

	return &Provider{
		client: &client,
		config: config,
		logger: logger,
	}
}

func (p *Provider) Name() types.Provider {
	return types.ProviderAnthropic
}

func (p *Provider) DefaultModel() string {
	if p.config.DefaultModel != "" {
		return p.config.DefaultModel
	}
	return defaultModel
}

// Generate performs a single Messages API call. System messages are lifted
// out of the conversation since Claude takes them as a separate field.
func (p *Provider) Generate(ctx context.Context, messages []types.Message, opts types.GenerateOptions) (*types.ProviderResult, error) {
	model := opts.Model
	if model == "" {
		model = p.DefaultModel()
	}

	var system string
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: defaultMaxTokens,
	}
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = msg.Content
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system, Type: "text"},
		}
	}
	if opts.MaxTokens != nil {
		params.MaxTokens = int64(*opts.MaxTokens)
	}
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*opts.Temperature))
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		p.logger.WithError(err).WithField("model", model).Error("Anthropic API call failed")
		return nil, wrapError(err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &types.ProviderResult{
		Content:  content.String(),
		Model:    string(resp.Model),
		Provider: types.ProviderAnthropic,
	}, nil
}

// HealthCheck issues a minimal single-token completion on the cheapest model.
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model: anthropic.Model(healthCheckModel),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
		MaxTokens: 1,
	})
	if err != nil {
		return wrapError(err)
	}
	p.logger.Debug("Anthropic health check passed")
	return nil
}

func wrapError(err error) *types.ProviderError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return types.NewProviderError(types.ProviderAnthropic, apiErr.StatusCode, apiErr.Error(), err)
	}
	return types.NewProviderError(types.ProviderAnthropic, 0, err.Error(), err)
}

var _ providers.ChatProvider = (*Provider)(nil)
